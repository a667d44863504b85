package transport

import (
	"encoding/json"
	"fmt"
	"strconv"
	"strings"

	"propchat/internal/message"
)

// Subject layout for one conversation:
//
//	<prefix>.<conversation>.messages  JetStream, the durable history
//	<prefix>.<conversation>.status    core NATS, delivery and read receipts
//	<prefix>.<conversation>.typing    core NATS
//	<prefix>.<conversation>.deleted   core NATS
type subjects struct {
	prefix, conversation string
}

func (s subjects) messages() string { return s.subject("messages") }
func (s subjects) status() string   { return s.subject("status") }
func (s subjects) typing() string   { return s.subject("typing") }
func (s subjects) deleted() string  { return s.subject("deleted") }

func (s subjects) subject(kind string) string {
	return fmt.Sprintf("%s.%s.%s", s.prefix, s.conversation, kind)
}

// streamSubjects is what the JetStream stream captures: the message
// subject of every conversation under the prefix.
func (s subjects) streamSubjects() []string {
	return []string{fmt.Sprintf("%s.*.messages", s.prefix)}
}

// validToken reports whether v can be used as a single subject token.
func validToken(v string) bool {
	return v != "" && !strings.ContainsAny(v, ". *>\t\r\n")
}

// messageEnvelope is the JetStream payload. The canonical id is the stream
// sequence, so it is not carried in the body.
type messageEnvelope struct {
	ClientToken string               `json:"clientToken"`
	SenderID    string               `json:"senderId"`
	SenderName  string               `json:"senderName"`
	SenderImage string               `json:"senderImage,omitempty"`
	Content     string               `json:"content"`
	Timestamp   string               `json:"timestamp"`
	ReplyTo     *message.ReplyRef    `json:"replyTo,omitempty"`
	Attachments []message.Attachment `json:"attachments,omitempty"`
}

type statusEnvelope struct {
	StatusUpdate
	From string `json:"from"`
}

type typingEnvelope struct {
	UserID string `json:"userId"`
	Name   string `json:"name"`
	Typing bool   `json:"typing"`
}

type deleteEnvelope struct {
	ID string `json:"id"`
}

func (e messageEnvelope) toMessage(seq uint64) message.Message {
	return message.Message{
		ID:          sequenceID(seq),
		ClientToken: e.ClientToken,
		SenderID:    e.SenderID,
		SenderName:  e.SenderName,
		SenderImage: e.SenderImage,
		Content:     e.Content,
		Timestamp:   e.Timestamp,
		Status:      message.StatusSent,
		ReplyTo:     e.ReplyTo,
		Attachments: e.Attachments,
	}
}

func sequenceID(seq uint64) string {
	return strconv.FormatUint(seq, 10)
}

func parseSequenceID(id string) (uint64, error) {
	seq, err := strconv.ParseUint(id, 10, 64)
	if err != nil || seq == 0 {
		return 0, fmt.Errorf("%q is not a stream sequence: %w", id, ErrNotFound)
	}
	return seq, nil
}

func encode(v any) ([]byte, error) {
	data, err := json.Marshal(v)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal %T: %w", v, err)
	}
	return data, nil
}

func decode[T any](data []byte) (T, error) {
	var v T
	if err := json.Unmarshal(data, &v); err != nil {
		return v, fmt.Errorf("failed to unmarshal %T: %w", v, err)
	}
	return v, nil
}
