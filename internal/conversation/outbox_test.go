package conversation

import (
	"context"
	"errors"
	"testing"

	"propchat/internal/composer"
	"propchat/internal/message"
	"propchat/internal/transport"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestOutbox_OptimisticThenReconciled(t *testing.T) {
	h := newHarness(t, transport.MemoryOptions{UserID: "me", UserName: "Me"})
	out := NewOutbox(h.surface, h.tr, nil)

	m := optimistic("tok-1", "2024-01-01T10:00:00Z")
	out.Dispatch(context.Background(), m)

	h.waitChange(t) // optimistic add
	h.waitChange(t) // canonical echo
	out.Wait()

	rows := h.surface.Rows()
	require.Len(t, rows, 1)
	assert.NotEqual(t, "tok-1", rows[0].Message.ID)
	assert.Equal(t, "tok-1", rows[0].Message.ClientToken)
	assert.Equal(t, message.StatusSent, rows[0].Message.Status)
	assert.Equal(t, message.StatusSent.Icon(), rows[0].StatusIcon)

	require.NoError(t, h.tr.Advance(rows[0].Message.ID, message.StatusRead))
	h.waitChange(t)
	got, _ := h.surface.Message("tok-1")
	assert.Equal(t, message.StatusRead, got.Status)
}

func TestOutbox_SendFailureMarksFailed(t *testing.T) {
	h := newHarness(t, transport.MemoryOptions{UserID: "me"})
	out := NewOutbox(h.surface, h.tr, nil)
	h.tr.FailNext(errors.New("503"))

	out.Dispatch(context.Background(), optimistic("tok-2", "2024-01-01T10:00:00Z"))
	h.waitChange(t)
	h.waitChange(t)
	out.Wait()

	got, ok := h.surface.Message("tok-2")
	require.True(t, ok)
	assert.Equal(t, message.StatusFailed, got.Status)
	assert.Equal(t, "!", h.surface.Rows()[0].StatusIcon)
}

func TestOutbox_SurvivesCallerCancellation(t *testing.T) {
	h := newHarness(t, transport.MemoryOptions{UserID: "me"})
	out := NewOutbox(h.surface, h.tr, nil)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	out.Dispatch(ctx, optimistic("tok-3", "2024-01-01T10:00:00Z"))
	out.Wait()

	got, _ := h.surface.Message("tok-3")
	assert.NotEqual(t, message.StatusFailed, got.Status)
}

// The full path: composer draft to reconciled row.
func TestOutbox_WithComposer(t *testing.T) {
	h := newHarness(t, transport.MemoryOptions{UserID: "me", Seed: seeded(1)})
	out := NewOutbox(h.surface, h.tr, nil)
	c := composer.New(out, composer.Options{CurrentUserID: "me", Typing: h.tr})
	defer c.Close()

	require.NoError(t, h.surface.Refresh(context.Background()))
	h.waitChange(t)

	parent, _ := h.surface.Message("m00")
	c.SetReply(parent)
	c.SetText("see you at 5")
	assert.True(t, h.tr.LocalTyping())

	sent, err := c.Send(context.Background())
	require.NoError(t, err)
	assert.False(t, h.tr.LocalTyping(), "send clears typing")
	out.Wait()

	h.waitChange(t)
	h.waitChange(t)

	got, ok := h.surface.Message(sent.ID)
	require.True(t, ok)
	assert.Equal(t, message.StatusSent, got.Status)
	require.NotNil(t, got.ReplyTo)
	assert.Equal(t, "m00", got.ReplyTo.ID)
	assert.Len(t, h.surface.Rows(), 2)
}
