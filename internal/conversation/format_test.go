package conversation

import (
	"strings"
	"testing"
	"time"

	"propchat/internal/grouping"
	"propchat/internal/message"

	"github.com/stretchr/testify/assert"
)

func TestAttachmentSummary(t *testing.T) {
	tests := []struct {
		name string
		att  message.Attachment
		want string
	}{
		{"photo", message.Attachment{Type: message.AttachmentImage}, "Photo"},
		{"sized photo", message.Attachment{Type: message.AttachmentCamera, Width: 640, Height: 480}, "Photo 640x480"},
		{"bundle", message.Attachment{Type: message.AttachmentMultipleImages, Items: make([]message.Attachment, 3)}, "3 photos"},
		{"document", message.Attachment{Type: message.AttachmentDocument, Name: "lease.pdf", Size: 1536}, "lease.pdf (1.5 KiB)"},
		{"unnamed document", message.Attachment{Type: message.AttachmentDocument}, "Document"},
		{"voice", message.Attachment{Type: message.AttachmentVoice, Duration: 65 * time.Second}, "Voice message 1:05"},
		{"location", message.Attachment{Type: message.AttachmentLocation, URI: "geo:52.520000,13.405000"}, "Location 52.520000,13.405000"},
		{"unknown", message.Attachment{Type: "hologram"}, "Attachment"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, []string{tt.want}, AttachmentSummary([]message.Attachment{tt.att}))
		})
	}
}

func TestReplyPreview(t *testing.T) {
	assert.Empty(t, ReplyPreview(nil))

	short := &message.ReplyRef{SenderName: "Ann", Content: "see\nyou"}
	assert.Equal(t, "Ann: see you", ReplyPreview(short))

	long := &message.ReplyRef{SenderName: "Ann", Content: strings.Repeat("x", 200)}
	got := ReplyPreview(long)
	assert.True(t, strings.HasSuffix(got, "…"))
	assert.Less(t, len([]rune(got)), 60)

	empty := &message.ReplyRef{SenderName: "Ann"}
	assert.Equal(t, "Ann: Attachment", ReplyPreview(empty))
}

func TestDateLabel(t *testing.T) {
	assert.Equal(t, "Unknown date", DateLabel(grouping.Facts{}))
	f := grouping.Facts{DateKnown: true, Date: time.Date(2024, 1, 2, 0, 0, 0, 0, time.UTC)}
	assert.Equal(t, "Tue, Jan 2 2024", DateLabel(f))
}
