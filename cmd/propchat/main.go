// Command propchat is a terminal chat client for residents and property
// staff. It runs the composer and conversation surface against an in-memory
// or NATS transport.
package main

import (
	"fmt"
	"os"

	"propchat/internal/config"
	"propchat/internal/logging"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

var (
	// Global flags
	verbose    bool
	configPath string

	cfg    *config.Config
	logger *zap.Logger
)

// rootCmd represents the base command
var rootCmd = &cobra.Command{
	Use:   "propchat",
	Short: "propchat - resident and property staff chat",
	Long: `propchat is a terminal chat client.

It renders one conversation with grouped bubbles, delivery receipts and
typing indicators, and composes text, replies, attachments and voice notes.

Run without arguments to start the interactive chat.`,
	SilenceUsage: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		var err error
		cfg, err = config.Load(configPath)
		if err != nil {
			return err
		}
		if verbose {
			cfg.Logging.DebugMode = true
		}
		if err := logging.Initialize(cfg.Logging.ToLogging()); err != nil {
			return fmt.Errorf("failed to initialize logger: %w", err)
		}
		logger = logging.Get(logging.CategoryBoot)
		logger.Debug("config loaded", zap.String("path", configPath), zap.String("transport", cfg.Transport.Kind))
		return nil
	},
	PersistentPostRun: func(cmd *cobra.Command, args []string) {
		logging.Sync()
	},
	RunE: runChat,
}

func init() {
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "Enable debug logging")
	rootCmd.PersistentFlags().StringVarP(&configPath, "config", "c", "propchat.yaml", "Config file")

	chatCmd.Flags().StringVar(&chatFlags.conversation, "conversation", "", "Conversation id (overrides transport.conversation_id)")
	chatCmd.Flags().StringVar(&chatFlags.user, "user", "", "Current user id (overrides chat.current_user_id)")
	chatCmd.Flags().StringVar(&chatFlags.name, "name", "", "Current user display name")
	chatCmd.Flags().StringVar(&chatFlags.nats, "nats", "", "NATS url; selects the nats transport")
	chatCmd.Flags().StringVar(&chatFlags.attachDir, "attach-dir", "", "Directory the attach menu picks from")
	rootCmd.Flags().AddFlagSet(chatCmd.Flags())

	configCmd.AddCommand(configInitCmd)
	configCmd.AddCommand(configShowCmd)
	configInitCmd.Flags().BoolVar(&forceInit, "force", false, "Overwrite an existing config file")

	rootCmd.AddCommand(chatCmd)
	rootCmd.AddCommand(configCmd)
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
