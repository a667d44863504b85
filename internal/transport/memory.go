package transport

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"propchat/internal/logging"
	"propchat/internal/message"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

// MemoryOptions configure a Memory transport.
type MemoryOptions struct {
	UserID   string
	UserName string
	PageSize int
	// Seed is the initial conversation, oldest first.
	Seed   []message.Message
	Logger *zap.Logger
	Now    func() time.Time
}

// Memory is an in-process Transport acting as its own server. It assigns
// canonical ids, keeps the history, and lets callers script remote activity
// (Inject, Advance, SetRemoteTyping, FailNext).
type Memory struct {
	mu sync.Mutex
	// emitMu keeps publish order equal to mutation order.
	emitMu sync.Mutex

	hist        *history
	remote      map[string]string // user id -> display name of remote typers
	localTyping bool
	failNext    error
	closed      bool

	opts MemoryOptions
	bus  *Bus
	log  *zap.Logger
}

var _ Transport = (*Memory)(nil)

// NewMemory creates a Memory transport.
func NewMemory(opts MemoryOptions) *Memory {
	if opts.Logger == nil {
		opts.Logger = logging.Get(logging.CategoryTransport)
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}
	t := &Memory{
		hist:   newHistory(opts.PageSize),
		remote: make(map[string]string),
		opts:   opts,
		bus:    NewBus(0),
		log:    opts.Logger.With(zap.String("transport", "memory")),
	}
	for _, m := range opts.Seed {
		t.hist.add(m.Clone())
	}
	t.hist.window = t.hist.pageSize
	return t
}

// commit releases mu and publishes evs. Callers must hold mu.
func (t *Memory) commit(evs ...Event) {
	t.emitMu.Lock()
	t.mu.Unlock()
	defer t.emitMu.Unlock()
	for _, ev := range evs {
		t.bus.Publish(ev)
	}
}

func (t *Memory) lock() error {
	t.mu.Lock()
	if t.closed {
		t.mu.Unlock()
		return ErrClosed
	}
	return nil
}

// SendMessage stores out as a canonical message with status sent.
func (t *Memory) SendMessage(ctx context.Context, out message.Outbound) error {
	if err := out.Validate(); err != nil {
		return fmt.Errorf("%w: %w", ErrSendFailed, err)
	}
	if err := ctx.Err(); err != nil {
		return fmt.Errorf("%w: %w", ErrSendFailed, err)
	}
	if err := t.lock(); err != nil {
		return err
	}
	if err := t.failNext; err != nil {
		t.failNext = nil
		t.mu.Unlock()
		t.log.Debug("send rejected", zap.String("client_token", out.ClientToken), zap.Error(err))
		return fmt.Errorf("%w: %w", ErrSendFailed, err)
	}

	m := message.Message{
		ID:          uuid.NewString(),
		ClientToken: out.ClientToken,
		SenderID:    t.opts.UserID,
		SenderName:  t.opts.UserName,
		Content:     out.Content,
		Timestamp:   t.opts.Now().UTC().Format(time.RFC3339Nano),
		Status:      message.StatusSent,
		Attachments: out.Attachments,
	}
	if out.ReplyToID != "" {
		if parent, ok := t.hist.find(out.ReplyToID); ok {
			ref := parent.Snapshot()
			m.ReplyTo = &ref
		}
	}
	t.hist.add(m)
	t.log.Debug("message accepted", zap.String("id", m.ID), zap.String("client_token", m.ClientToken))
	t.commit(Event{Kind: EventMessage, Message: m.Clone()})
	return nil
}

// DeleteMessage removes a message from the history.
func (t *Memory) DeleteMessage(_ context.Context, id string) error {
	if err := t.lock(); err != nil {
		return err
	}
	if !t.hist.remove(id) {
		t.mu.Unlock()
		return fmt.Errorf("delete %s: %w", id, ErrNotFound)
	}
	t.commit(Event{Kind: EventRemoved, RemovedID: id})
	return nil
}

// SetTypingStatus records the local typing state. The local user never
// sees their own indicator, so no event is published.
func (t *Memory) SetTypingStatus(_ context.Context, typing bool) error {
	if err := t.lock(); err != nil {
		return err
	}
	t.localTyping = typing
	t.mu.Unlock()
	return nil
}

// LocalTyping reports the last typing state set by the local user.
func (t *Memory) LocalTyping() bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.localTyping
}

// LoadMore publishes the next older page.
func (t *Memory) LoadMore(context.Context) error {
	if err := t.lock(); err != nil {
		return err
	}
	page := t.hist.more()
	t.commit(Event{Kind: EventPage, Conversation: page})
	return nil
}

// Refresh publishes a snapshot of the newest page.
func (t *Memory) Refresh(context.Context) error {
	if err := t.lock(); err != nil {
		return err
	}
	conv := t.hist.snapshot()
	conv.Typing = t.typersLocked()
	t.commit(Event{Kind: EventSnapshot, Conversation: conv})
	return nil
}

// Subscribe implements Transport.
func (t *Memory) Subscribe() (<-chan Event, func()) {
	return t.bus.Subscribe()
}

// Close ends all subscriptions. Further calls fail with ErrClosed.
func (t *Memory) Close() error {
	t.mu.Lock()
	if t.closed {
		t.mu.Unlock()
		return nil
	}
	t.closed = true
	t.mu.Unlock()
	t.bus.Close()
	return nil
}

// =============================================================================
// SCRIPTED REMOTE ACTIVITY
// =============================================================================

// Inject delivers a message from a remote participant. A missing id or
// timestamp is filled in.
func (t *Memory) Inject(m message.Message) error {
	if err := t.lock(); err != nil {
		return err
	}
	if m.ID == "" {
		m.ID = uuid.NewString()
	}
	if m.Timestamp == "" {
		m.Timestamp = t.opts.Now().UTC().Format(time.RFC3339Nano)
	}
	if !m.Status.Valid() {
		m.Status = message.StatusSent
	}
	t.hist.add(m.Clone())
	t.commit(Event{Kind: EventMessage, Message: m.Clone()})
	return nil
}

// Advance moves a message to status, as a delivery or read receipt would.
// Updates that would regress the message are published anyway; receivers
// must ignore them.
func (t *Memory) Advance(id string, status message.Status) error {
	if err := t.lock(); err != nil {
		return err
	}
	m, ok := t.hist.find(id)
	if !ok {
		t.mu.Unlock()
		return fmt.Errorf("advance %s: %w", id, ErrNotFound)
	}
	t.hist.setStatus(id, status)
	t.commit(Event{Kind: EventStatus, Status: StatusUpdate{ID: id, ClientToken: m.ClientToken, Status: status}})
	return nil
}

// SetRemoteTyping updates a remote participant's typing state.
func (t *Memory) SetRemoteTyping(userID, name string, typing bool) error {
	if err := t.lock(); err != nil {
		return err
	}
	if typing {
		t.remote[userID] = name
	} else {
		delete(t.remote, userID)
	}
	t.commit(Event{Kind: EventTyping, Typing: t.typersLocked()})
	return nil
}

// FailNext makes the next SendMessage fail with err.
func (t *Memory) FailNext(err error) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.failNext = err
}

// Messages returns the full history, oldest first.
func (t *Memory) Messages() []message.Message {
	t.mu.Lock()
	defer t.mu.Unlock()
	out := make([]message.Message, len(t.hist.msgs))
	for i, m := range t.hist.msgs {
		out[i] = m.Clone()
	}
	return out
}

func (t *Memory) typersLocked() []string {
	names := make([]string, 0, len(t.remote))
	for _, n := range t.remote {
		names = append(names, n)
	}
	sort.Strings(names)
	return names
}
