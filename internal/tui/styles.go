// Package tui is the terminal surface for propchat: a bubbletea program that
// renders the conversation list and drives the composer from the keyboard.
package tui

import (
	"os"
	"strconv"
	"strings"

	"propchat/internal/grouping"

	"github.com/charmbracelet/lipgloss"
)

// Palette
var (
	// Light Mode Colors (Default)
	LightForeground  = lipgloss.Color("#101F38")
	LightPrimary     = lipgloss.Color("#101F38")
	LightAccent      = lipgloss.Color("#8BC34A")
	LightMuted       = lipgloss.Color("#8a94a6")
	LightBorder      = lipgloss.Color("#c9ced6")
	LightOwnBubble   = lipgloss.Color("#2f6fdf")
	LightOtherBubble = lipgloss.Color("#9aa3b2")

	// Dark Mode Colors
	DarkForeground  = lipgloss.Color("#f2f2f2")
	DarkPrimary     = lipgloss.Color("#8BC34A")
	DarkAccent      = lipgloss.Color("#8BC34A")
	DarkMuted       = lipgloss.Color("#6b7a93")
	DarkBorder      = lipgloss.Color("#2a3850")
	DarkOwnBubble   = lipgloss.Color("#5b8def")
	DarkOtherBubble = lipgloss.Color("#4a5872")

	// Semantic Colors (same in both modes)
	Destructive = lipgloss.Color("#e53935")
	Success     = lipgloss.Color("#8BC34A")
	Warning     = lipgloss.Color("#FFC107")
)

// Theme holds the current color scheme
type Theme struct {
	Foreground  lipgloss.Color
	Primary     lipgloss.Color
	Accent      lipgloss.Color
	Muted       lipgloss.Color
	Border      lipgloss.Color
	OwnBubble   lipgloss.Color
	OtherBubble lipgloss.Color
	IsDark      bool
}

// LightTheme returns the light mode theme
func LightTheme() Theme {
	return Theme{
		Foreground:  LightForeground,
		Primary:     LightPrimary,
		Accent:      LightAccent,
		Muted:       LightMuted,
		Border:      LightBorder,
		OwnBubble:   LightOwnBubble,
		OtherBubble: LightOtherBubble,
	}
}

// DarkTheme returns the dark mode theme
func DarkTheme() Theme {
	return Theme{
		Foreground:  DarkForeground,
		Primary:     DarkPrimary,
		Accent:      DarkAccent,
		Muted:       DarkMuted,
		Border:      DarkBorder,
		OwnBubble:   DarkOwnBubble,
		OtherBubble: DarkOtherBubble,
		IsDark:      true,
	}
}

// DetectTheme picks the dark theme when PROPCHAT_DARK_MODE=1 or COLORFGBG
// reports a dark background.
func DetectTheme() Theme {
	if os.Getenv("PROPCHAT_DARK_MODE") == "1" {
		return DarkTheme()
	}
	// Format is "foreground;background"
	parts := strings.Split(os.Getenv("COLORFGBG"), ";")
	if len(parts) == 2 {
		if bg, err := strconv.Atoi(parts[1]); err == nil && ((bg >= 0 && bg <= 6) || bg == 8) {
			return DarkTheme()
		}
	}
	return LightTheme()
}

// Styles holds all the styled components
type Styles struct {
	Theme Theme

	Header    lipgloss.Style
	Footer    lipgloss.Style
	Muted     lipgloss.Style
	Error     lipgloss.Style
	Notice    lipgloss.Style
	Separator lipgloss.Style

	Avatar      lipgloss.Style
	SenderName  lipgloss.Style
	OwnBubble   lipgloss.Style
	OtherBubble lipgloss.Style
	Selected    lipgloss.Style
	Reply       lipgloss.Style
	Attachment  lipgloss.Style
	Status      lipgloss.Style
	Failed      lipgloss.Style
	Typing      lipgloss.Style

	Overlay   lipgloss.Style
	Recording lipgloss.Style
	Spinner   lipgloss.Style
}

// NewStyles creates a new Styles instance with the given theme
func NewStyles(theme Theme) Styles {
	bubble := lipgloss.NewStyle().
		Foreground(theme.Foreground).
		Padding(0, 1)

	return Styles{
		Theme: theme,

		Header: lipgloss.NewStyle().
			Background(theme.Primary).
			Foreground(lipgloss.Color("#ffffff")).
			Padding(0, 2).
			Bold(true),

		Footer: lipgloss.NewStyle().
			Foreground(theme.Muted).
			Padding(0, 1),

		Muted: lipgloss.NewStyle().
			Foreground(theme.Muted),

		Error: lipgloss.NewStyle().
			Foreground(Destructive).
			Bold(true),

		Notice: lipgloss.NewStyle().
			Foreground(Warning),

		Separator: lipgloss.NewStyle().
			Foreground(theme.Muted).
			Italic(true),

		Avatar: lipgloss.NewStyle().
			Foreground(lipgloss.Color("#ffffff")).
			Background(theme.OtherBubble).
			Bold(true).
			Width(4).
			Align(lipgloss.Center),

		SenderName: lipgloss.NewStyle().
			Foreground(theme.Muted).
			Bold(true),

		OwnBubble: bubble.BorderForeground(theme.OwnBubble),

		OtherBubble: bubble.BorderForeground(theme.OtherBubble),

		Selected: lipgloss.NewStyle().
			Foreground(theme.Accent).
			Bold(true),

		Reply: lipgloss.NewStyle().
			Foreground(theme.Muted).
			BorderLeft(true).
			BorderStyle(lipgloss.ThickBorder()).
			BorderForeground(theme.Accent).
			PaddingLeft(1),

		Attachment: lipgloss.NewStyle().
			Foreground(theme.Accent),

		Status: lipgloss.NewStyle().
			Foreground(theme.Muted),

		Failed: lipgloss.NewStyle().
			Foreground(Destructive).
			Bold(true),

		Typing: lipgloss.NewStyle().
			Foreground(theme.Muted).
			Italic(true).
			Padding(0, 1),

		Overlay: lipgloss.NewStyle().
			Border(lipgloss.RoundedBorder()).
			BorderForeground(theme.Border).
			Padding(0, 1),

		Recording: lipgloss.NewStyle().
			Foreground(Destructive).
			Bold(true).
			Padding(0, 1),

		Spinner: lipgloss.NewStyle().
			Foreground(theme.Accent),
	}
}

// DefaultStyles returns styles for the detected theme
func DefaultStyles() Styles {
	return NewStyles(DetectTheme())
}

// BubbleBorder maps bubble corner radii onto box-drawing corners: round
// radii draw arcs, tight radii draw square corners.
func BubbleBorder(c grouping.Corners) lipgloss.Border {
	b := lipgloss.NormalBorder()
	b.TopLeft = corner(c.TopLeft, "╭", "┌")
	b.TopRight = corner(c.TopRight, "╮", "┐")
	b.BottomLeft = corner(c.BottomLeft, "╰", "└")
	b.BottomRight = corner(c.BottomRight, "╯", "┘")
	return b
}

func corner(radius int, round, tight string) string {
	if radius >= grouping.RadiusRound {
		return round
	}
	return tight
}

// Initials derives a two-letter avatar label from a display name.
func Initials(name string) string {
	fields := strings.Fields(name)
	switch len(fields) {
	case 0:
		return "?"
	case 1:
		r := []rune(fields[0])
		if len(r) > 2 {
			r = r[:2]
		}
		return strings.ToUpper(string(r))
	default:
		first := []rune(fields[0])[0]
		last := []rune(fields[len(fields)-1])[0]
		return strings.ToUpper(string([]rune{first, last}))
	}
}
