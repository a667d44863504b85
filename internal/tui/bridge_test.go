package tui

import (
	"errors"
	"testing"

	"propchat/internal/composer"
	"propchat/internal/message"
	"propchat/internal/upload"

	"github.com/stretchr/testify/assert"
)

func TestBridge_NotifyCoalesces(t *testing.T) {
	b := NewBridge()
	defer b.Stop()
	b.Notify()
	b.Notify()
	b.Notify()
	assert.Equal(t, wakeMsg{}, b.Listen()())
	assert.Len(t, b.wake, 0)
}

func TestBridge_ListenAfterStop(t *testing.T) {
	b := NewBridge()
	b.Stop()
	b.Stop()
	assert.Nil(t, b.Listen()())
}

func TestBridge_NoticesAreBounded(t *testing.T) {
	b := NewBridge()
	defer b.Stop()
	for i := 0; i < 5; i++ {
		b.AttachmentStaged(message.Attachment{Type: message.AttachmentImage})
	}
	b.AttachmentFailed(&upload.Failure{Kind: upload.KindPermissionDenied, Source: upload.SourceCamera, Err: errors.New("no")})

	n := b.Notices()
	assert.Len(t, n, maxNotices)
	assert.Equal(t, "Permission to use the camera was denied", n[len(n)-1])

	b.ClearNotices()
	assert.Empty(t, b.Notices())
}

func TestBridge_CuesAndDismiss(t *testing.T) {
	b := NewBridge()
	defer b.Stop()
	b.Cue(composer.CueSend)
	b.DismissKeyboard()
	assert.Equal(t, []composer.Cue{composer.CueSend}, b.takeCues())
	assert.Empty(t, b.takeCues())
	assert.True(t, b.takeDismiss())
	assert.False(t, b.takeDismiss())
}

func TestFailureText(t *testing.T) {
	assert.Equal(t, "That file is too large to send", FailureText(&upload.Failure{Kind: upload.KindSizeExceeded}))
	assert.Equal(t, "Upload cancelled", FailureText(&upload.Failure{Kind: upload.KindCancelled}))
	assert.Equal(t, "Upload failed, try again", FailureText(&upload.Failure{Kind: upload.KindUploadFailed}))
}
