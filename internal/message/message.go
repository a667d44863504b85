// Package message holds the chat data model shared by the composer, the
// grouping engine and the conversation surface.
package message

import (
	"strings"
	"time"
)

// AttachmentType identifies the kind of an uploaded attachment.
type AttachmentType string

const (
	AttachmentImage          AttachmentType = "image"
	AttachmentMultipleImages AttachmentType = "multiple_images"
	AttachmentDocument       AttachmentType = "document"
	AttachmentCamera         AttachmentType = "camera"
	AttachmentLocation       AttachmentType = "location"
	AttachmentVoice          AttachmentType = "voice"
)

// Attachment is a durable, server-known attachment reference.
// A multiple_images bundle carries its members in Items.
type Attachment struct {
	Type     AttachmentType `json:"type"`
	URI      string         `json:"uri"`
	Name     string         `json:"name,omitempty"`
	Size     int64          `json:"size,omitempty"`
	Width    int            `json:"width,omitempty"`
	Height   int            `json:"height,omitempty"`
	Duration time.Duration  `json:"duration,omitempty"`
	Items    []Attachment   `json:"items,omitempty"`
}

// ReplyRef is a snapshot of the replied-to message taken at reply time.
// It is a value, not a link, so it still renders after the original is gone.
type ReplyRef struct {
	ID         string `json:"id"`
	SenderName string `json:"senderName"`
	Content    string `json:"content"`
}

// Message is one entry of a conversation.
type Message struct {
	ID          string       `json:"id"`
	ClientToken string       `json:"clientToken,omitempty"` // idempotency token, equals the provisional id
	SenderID    string       `json:"senderId"`
	SenderName  string       `json:"senderName"`
	SenderImage string       `json:"senderImage,omitempty"`
	Content     string       `json:"content"`
	Timestamp   string       `json:"timestamp"` // ISO instant, may be malformed on the wire
	Status      Status       `json:"status"`
	ReplyTo     *ReplyRef    `json:"replyTo,omitempty"`
	Attachments []Attachment `json:"attachments,omitempty"`
}

var (
	zonedLayouts = []string{time.RFC3339Nano, time.RFC3339}
	localLayouts = []string{
		"2006-01-02T15:04:05.999999999",
		"2006-01-02T15:04",
		"2006-01-02 15:04:05",
		"2006-01-02",
	}
)

// Time parses Timestamp in UTC. ok is false for empty or malformed values.
func (m Message) Time() (time.Time, bool) {
	return m.TimeIn(time.UTC)
}

// TimeIn parses Timestamp and expresses it in loc. Timestamps without a zone
// are read as wall-clock time in loc.
func (m Message) TimeIn(loc *time.Location) (time.Time, bool) {
	if loc == nil {
		loc = time.UTC
	}
	raw := strings.TrimSpace(m.Timestamp)
	if raw == "" {
		return time.Time{}, false
	}
	for _, layout := range zonedLayouts {
		if t, err := time.Parse(layout, raw); err == nil {
			return t.In(loc), true
		}
	}
	for _, layout := range localLayouts {
		if t, err := time.ParseInLocation(layout, raw, loc); err == nil {
			return t, true
		}
	}
	return time.Time{}, false
}

// Snapshot captures the reply reference for m.
func (m Message) Snapshot() ReplyRef {
	return ReplyRef{ID: m.ID, SenderName: m.SenderName, Content: m.Content}
}

// IsOwn reports whether m was sent by userID.
func (m Message) IsOwn(userID string) bool {
	return userID != "" && m.SenderID == userID
}

// Clone returns a deep copy so callers can mutate status without aliasing
// slices or the reply snapshot.
func (m Message) Clone() Message {
	out := m
	if m.ReplyTo != nil {
		r := *m.ReplyTo
		out.ReplyTo = &r
	}
	if m.Attachments != nil {
		out.Attachments = cloneAttachments(m.Attachments)
	}
	return out
}

func cloneAttachments(in []Attachment) []Attachment {
	out := make([]Attachment, len(in))
	for i, a := range in {
		out[i] = a
		if a.Items != nil {
			out[i].Items = cloneAttachments(a.Items)
		}
	}
	return out
}
