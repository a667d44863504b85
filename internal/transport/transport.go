// Package transport defines the conversation Transport collaborator and its
// adapters: an in-process Memory transport and a NATS JetStream transport.
//
// The core never persists messages itself. Everything it renders arrives as
// an Event from Transport and everything it sends leaves through Transport.
package transport

import (
	"context"
	"errors"

	"propchat/internal/message"
)

var (
	ErrNotFound = errors.New("message not found")
	ErrClosed   = errors.New("transport closed")
	// ErrSendFailed wraps every SendMessage failure; the message it was
	// meant for transitions to failed.
	ErrSendFailed = errors.New("send failed")
)

// Transport is the network side of a conversation.
type Transport interface {
	// SendMessage accepts an outbound message. The canonical message later
	// arrives as an EventMessage echoing out.ClientToken.
	SendMessage(ctx context.Context, out message.Outbound) error
	DeleteMessage(ctx context.Context, id string) error
	// SetTypingStatus publishes the local user's typing state.
	SetTypingStatus(ctx context.Context, typing bool) error
	// LoadMore requests the next older page; the answer is an EventPage.
	LoadMore(ctx context.Context) error
	// Refresh requests a fresh snapshot; the answer is an EventSnapshot.
	Refresh(ctx context.Context) error
	// Subscribe returns the event stream and a function that ends it.
	Subscribe() (<-chan Event, func())
	Close() error
}

// Conversation is an ordered window of a chat thread. Messages are
// newest-first, the way the list is displayed.
type Conversation struct {
	Messages []message.Message
	Typing   []string // display names of remote users currently typing
	HasMore  bool
}

// StatusUpdate targets a message by id, by client token, or both.
type StatusUpdate struct {
	ID          string         `json:"id,omitempty"`
	ClientToken string         `json:"clientToken,omitempty"`
	Status      message.Status `json:"status"`
}

// EventKind discriminates Event payloads.
type EventKind int

const (
	EventSnapshot EventKind = iota + 1
	EventPage
	EventMessage
	EventStatus
	EventRemoved
	EventTyping
)

func (k EventKind) String() string {
	switch k {
	case EventSnapshot:
		return "snapshot"
	case EventPage:
		return "page"
	case EventMessage:
		return "message"
	case EventStatus:
		return "status"
	case EventRemoved:
		return "removed"
	case EventTyping:
		return "typing"
	default:
		return "unknown"
	}
}

// Event is one notification from Transport.
type Event struct {
	// Seq orders events from the same transport.
	Seq  uint64
	Kind EventKind

	// Snapshot and Page
	Conversation Conversation
	// Message
	Message message.Message
	// Status
	Status StatusUpdate
	// Removed
	RemovedID string
	// Typing
	Typing []string
}
