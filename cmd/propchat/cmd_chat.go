package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"propchat/internal/composer"
	"propchat/internal/config"
	"propchat/internal/conversation"
	"propchat/internal/device"
	"propchat/internal/logging"
	"propchat/internal/transport"
	"propchat/internal/tui"
	"propchat/internal/upload"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

const (
	peerID   = "manager"
	peerName = "Property Manager"
	// uploadLatency paces the in-memory attachment store so progress shows.
	uploadLatency = 400 * time.Millisecond
)

var chatFlags struct {
	conversation string
	user         string
	name         string
	nats         string
	attachDir    string
}

// chatCmd starts the interactive chat
var chatCmd = &cobra.Command{
	Use:   "chat",
	Short: "Open the conversation in the terminal",
	Long: `Opens one conversation full screen.

With the memory transport a simulated property manager answers, acknowledges
and reads your messages. With --nats (or transport.kind: nats) every client
on the same conversation id shares the JetStream history.`,
	RunE: runChat,
}

// applyChatFlags folds command-line overrides into the loaded config.
func applyChatFlags(c *config.Config) {
	if chatFlags.conversation != "" {
		c.Transport.ConversationID = chatFlags.conversation
	}
	if chatFlags.user != "" {
		c.Chat.CurrentUserID = chatFlags.user
	}
	if chatFlags.name != "" {
		c.Chat.CurrentUserName = chatFlags.name
	}
	if chatFlags.nats != "" {
		c.Transport.Kind = config.TransportNATS
		c.Transport.NATSURL = chatFlags.nats
	}
	if chatFlags.attachDir != "" {
		c.Chat.AttachDir = chatFlags.attachDir
	}
}

func runChat(cmd *cobra.Command, args []string) error {
	applyChatFlags(cfg)
	if err := cfg.Validate(); err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	g, gctx := errgroup.WithContext(ctx)

	if cfg.Metrics.Enabled {
		srv := &http.Server{Addr: cfg.Metrics.ListenAddr, Handler: metricsMux(), ReadHeaderTimeout: 5 * time.Second}
		g.Go(func() error {
			logger.Info("metrics listening", zap.String("addr", srv.Addr))
			if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				return fmt.Errorf("metrics server: %w", err)
			}
			return nil
		})
		g.Go(func() error {
			<-gctx.Done()
			shutdownCtx, done := context.WithTimeout(context.Background(), 2*time.Second)
			defer done()
			return srv.Shutdown(shutdownCtx)
		})
	}

	tr, mem, err := openTransport(gctx, cfg)
	if err != nil {
		return err
	}
	defer tr.Close()

	bridge := tui.NewBridge()
	surface := conversation.NewSurface(tr, conversation.Options{
		CurrentUserID: cfg.Chat.CurrentUserID,
		OnChange:      bridge.Notify,
	})

	// Subscribe before the first refresh so the snapshot is not missed.
	events, unsubscribe := tr.Subscribe()
	g.Go(func() error {
		defer unsubscribe()
		if err := surface.Serve(gctx, events); err != nil && !errors.Is(err, context.Canceled) {
			return err
		}
		return nil
	})

	if mem != nil {
		p := &peer{tr: mem, id: peerID, name: peerName, delay: 700 * time.Millisecond, log: logging.Get(logging.CategoryTransport)}
		peerEvents, peerUnsubscribe := mem.Subscribe()
		g.Go(func() error {
			err := p.run(gctx, peerEvents)
			peerUnsubscribe()
			p.wg.Wait()
			return err
		})
	}

	outbox := conversation.NewOutbox(surface, tr, nil)
	orch := upload.NewOrchestrator(upload.NewMemoryStore(uploadLatency), upload.AllowAll{}, upload.Options{
		MaxDocumentBytes: cfg.Chat.MaxDocumentBytes,
	})
	comp := composer.New(outbox, composer.Options{
		CurrentUserID:   cfg.Chat.CurrentUserID,
		CurrentUserName: cfg.Chat.CurrentUserName,
		TypingIdle:      cfg.Chat.TypingIdle(),
		RecordingTick:   cfg.Chat.Tick(),
		MinVoiceSeconds: cfg.Chat.MinVoiceSeconds,
		Typing:          tr,
		UI:              bridge,
		Listener:        bridge,
		Recorder:        device.NewClockRecorder(),
		Uploader:        orch,
	})

	model := tui.New(gctx, tui.Options{
		Composer: comp,
		Surface:  surface,
		Bridge:   bridge,
		Picker:   device.NewDirPicker(cfg.Chat.AttachDir, cfg.Chat.Latitude, cfg.Chat.Longitude),
		Title:    fmt.Sprintf("propchat · %s", cfg.Transport.ConversationID),
		Markdown: cfg.Chat.Markdown,
	})

	logger.Info("chat starting",
		zap.String("transport", cfg.Transport.Kind),
		zap.String("conversation", cfg.Transport.ConversationID),
		zap.String("user", cfg.Chat.CurrentUserID))

	_, runErr := tea.NewProgram(model, tea.WithAltScreen(), tea.WithContext(gctx)).Run()
	if errors.Is(runErr, tea.ErrProgramKilled) {
		runErr = nil
	}

	bridge.Stop()
	comp.Close()
	outbox.Wait()
	orch.Wait()
	cancel()
	if err := g.Wait(); err != nil && !errors.Is(err, context.Canceled) {
		logger.Warn("background task failed", zap.Error(err))
	}
	return runErr
}

// openTransport builds the configured transport. The in-memory transport is
// also returned on its own so the demo peer can script it.
func openTransport(ctx context.Context, c *config.Config) (transport.Transport, *transport.Memory, error) {
	log := logging.Get(logging.CategoryTransport)
	switch c.Transport.Kind {
	case config.TransportNATS:
		t, err := transport.DialNATS(ctx, transport.NATSOptions{
			URL:            c.Transport.NATSURL,
			SubjectPrefix:  c.Transport.SubjectPrefix,
			StreamName:     c.Transport.StreamName,
			ConversationID: c.Transport.ConversationID,
			UserID:         c.Chat.CurrentUserID,
			UserName:       c.Chat.CurrentUserName,
			PageSize:       c.Chat.PageSize,
			MaxAge:         c.Transport.MaxAge(),
			Logger:         log,
		})
		if err != nil {
			return nil, nil, fmt.Errorf("failed to connect to %s: %w", c.Transport.NATSURL, err)
		}
		return t, nil, nil
	default:
		m := transport.NewMemory(transport.MemoryOptions{
			UserID:   c.Chat.CurrentUserID,
			UserName: c.Chat.CurrentUserName,
			PageSize: c.Chat.PageSize,
			Seed:     welcome(peerID, peerName, time.Now()),
			Logger:   log,
		})
		return m, m, nil
	}
}

func metricsMux() *http.ServeMux {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.Handler())
	return mux
}
