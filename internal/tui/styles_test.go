package tui

import (
	"testing"

	"propchat/internal/grouping"

	"github.com/stretchr/testify/assert"
)

func TestBubbleBorder(t *testing.T) {
	b := BubbleBorder(grouping.BubbleCorners(true, true, false))
	assert.Equal(t, "╭", b.TopLeft)
	assert.Equal(t, "┐", b.TopRight, "own run continues above")
	assert.Equal(t, "╰", b.BottomLeft)
	assert.Equal(t, "╯", b.BottomRight)

	b = BubbleBorder(grouping.BubbleCorners(false, false, false))
	assert.Equal(t, "└", b.BottomLeft, "tail corner")
}

func TestInitials(t *testing.T) {
	tests := map[string]string{
		"":              "?",
		"ann":           "AN",
		"Ann Lee":       "AL",
		"Mary Ann Ober": "MO",
		"é":             "É",
	}
	for in, want := range tests {
		assert.Equal(t, want, Initials(in), in)
	}
}

func TestDetectTheme(t *testing.T) {
	t.Setenv("PROPCHAT_DARK_MODE", "")
	t.Setenv("COLORFGBG", "15;0")
	assert.True(t, DetectTheme().IsDark)

	t.Setenv("COLORFGBG", "0;15")
	assert.False(t, DetectTheme().IsDark)

	t.Setenv("COLORFGBG", "")
	t.Setenv("PROPCHAT_DARK_MODE", "1")
	assert.True(t, DetectTheme().IsDark)
}
