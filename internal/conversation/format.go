package conversation

import (
	"fmt"
	"strings"
	"time"

	"propchat/internal/grouping"
	"propchat/internal/message"

	"github.com/dustin/go-humanize"
	"github.com/muesli/reflow/truncate"
)

// ReplyPreviewWidth bounds the quoted text above a reply bubble.
const ReplyPreviewWidth = 48

// DateLabel is the text of a date separator.
func DateLabel(f grouping.Facts) string {
	if !f.DateKnown {
		return "Unknown date"
	}
	return f.Date.Format("Mon, Jan 2 2006")
}

// ReplyPreview renders a reply snapshot on one line.
func ReplyPreview(r *message.ReplyRef) string {
	if r == nil {
		return ""
	}
	content := strings.Join(strings.Fields(r.Content), " ")
	if content == "" {
		content = "Attachment"
	}
	return r.SenderName + ": " + truncate.StringWithTail(content, ReplyPreviewWidth, "…")
}

// AttachmentSummary describes attachments in one line each.
func AttachmentSummary(atts []message.Attachment) []string {
	out := make([]string, 0, len(atts))
	for _, a := range atts {
		out = append(out, describe(a))
	}
	return out
}

func describe(a message.Attachment) string {
	switch a.Type {
	case message.AttachmentImage, message.AttachmentCamera:
		if a.Width > 0 && a.Height > 0 {
			return fmt.Sprintf("Photo %dx%d", a.Width, a.Height)
		}
		return "Photo"
	case message.AttachmentMultipleImages:
		return fmt.Sprintf("%d photos", len(a.Items))
	case message.AttachmentDocument:
		name := a.Name
		if name == "" {
			name = "Document"
		}
		if a.Size > 0 {
			return fmt.Sprintf("%s (%s)", name, humanize.IBytes(uint64(a.Size)))
		}
		return name
	case message.AttachmentVoice:
		return "Voice message " + clock(a.Duration)
	case message.AttachmentLocation:
		return "Location " + strings.TrimPrefix(a.URI, "geo:")
	default:
		return "Attachment"
	}
}

// clock formats d as m:ss.
func clock(d time.Duration) string {
	s := int(d.Round(time.Second) / time.Second)
	return fmt.Sprintf("%d:%02d", s/60, s%60)
}
