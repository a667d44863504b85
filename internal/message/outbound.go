package message

import (
	"errors"
	"strings"
)

// Outbound is what the core hands to Transport on send.
type Outbound struct {
	ClientToken string       `json:"clientToken"`
	Content     string       `json:"content"`
	ReplyToID   string       `json:"replyToId,omitempty"`
	Attachments []Attachment `json:"attachments,omitempty"`
}

// FromMessage builds the transport payload for an optimistic message.
func FromMessage(m Message) Outbound {
	out := Outbound{
		ClientToken: m.ClientToken,
		Content:     m.Content,
		Attachments: m.Attachments,
	}
	if m.ReplyTo != nil {
		out.ReplyToID = m.ReplyTo.ID
	}
	return out
}

// --------- validation ----------------

type ValidationIssue struct{ Field, Reason string }

type ValidationError struct{ Issues []ValidationIssue }

var ErrInvalidMessage = errors.New("invalid message")

func (e *ValidationError) Error() string {
	if len(e.Issues) == 0 {
		return ErrInvalidMessage.Error()
	}
	parts := make([]string, 0, len(e.Issues))
	for _, is := range e.Issues {
		parts = append(parts, is.Field+": "+is.Reason)
	}
	return ErrInvalidMessage.Error() + ": " + strings.Join(parts, "; ")
}

func (e *ValidationError) add(f, r string) {
	e.Issues = append(e.Issues, ValidationIssue{Field: f, Reason: r})
}

func (e *ValidationError) Is(target error) bool { return target == ErrInvalidMessage }

// Validate rejects payloads that must never reach Transport.
func (o *Outbound) Validate() error {
	ve := &ValidationError{}

	if o.ClientToken == "" {
		ve.add("client_token", "required")
	}
	if strings.TrimSpace(o.Content) == "" && len(o.Attachments) == 0 {
		ve.add("content", "required when no attachments are present")
	}
	for _, a := range o.Attachments {
		if a.Type == "" {
			ve.add("attachments.type", "required")
		}
		if a.Type == AttachmentMultipleImages {
			if len(a.Items) == 0 {
				ve.add("attachments.items", "required for multiple_images")
			}
			continue
		}
		if a.URI == "" {
			ve.add("attachments.uri", "required")
		}
	}

	if len(ve.Issues) > 0 {
		return ve
	}
	return nil
}
