package conversation

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"propchat/internal/grouping"
	"propchat/internal/logging"
	"propchat/internal/message"
	"propchat/internal/transport"
	"propchat/internal/typing"

	"go.uber.org/zap"
)

// ErrNotAcknowledged is returned when deleting a message Transport has not
// acknowledged yet.
var ErrNotAcknowledged = errors.New("message not acknowledged by the server")

// Options configure a Surface.
type Options struct {
	CurrentUserID string
	// Location decides date separators. Nil means time.Local.
	Location *time.Location
	Logger   *zap.Logger
	// OnChange runs after every applied change, outside the lock.
	OnChange func()
}

// Row is one rendered entry of the conversation list.
type Row struct {
	Message message.Message
	Facts   grouping.Facts
	// StatusIcon is empty for other users' messages.
	StatusIcon   string
	DateLabel    string
	ReplyPreview string
	Attachments  []string
}

// Surface is the conversation list: Transport events in, rows out.
type Surface struct {
	mu         sync.Mutex
	store      *Store
	typing     []string
	hasMore    bool
	loading    bool
	refreshing bool

	transport transport.Transport
	opts      Options
	log       *zap.Logger
}

// NewSurface creates a surface over t.
func NewSurface(t transport.Transport, opts Options) *Surface {
	if opts.Logger == nil {
		opts.Logger = logging.Get(logging.CategoryConversation)
	}
	return &Surface{
		store:     NewStore(opts.Logger),
		transport: t,
		opts:      opts,
		log:       opts.Logger,
	}
}

// Run applies Transport events until ctx ends or the transport closes.
// Events published before Run subscribes are not seen; callers that need
// them subscribe first and use Serve.
func (s *Surface) Run(ctx context.Context) error {
	events, unsubscribe := s.transport.Subscribe()
	defer unsubscribe()
	return s.Serve(ctx, events)
}

// Serve applies events from an existing subscription.
func (s *Surface) Serve(ctx context.Context, events <-chan transport.Event) error {
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case ev, ok := <-events:
			if !ok {
				return nil
			}
			s.Handle(ev)
		}
	}
}

// Handle applies one Transport event.
func (s *Surface) Handle(ev transport.Event) {
	s.mu.Lock()
	changed := true
	switch ev.Kind {
	case transport.EventSnapshot:
		s.store.ApplySnapshot(ev.Conversation.Messages)
		s.typing = ev.Conversation.Typing
		s.hasMore = ev.Conversation.HasMore
		s.refreshing = false
	case transport.EventPage:
		s.store.AppendPage(ev.Conversation.Messages)
		s.hasMore = ev.Conversation.HasMore
		s.loading = false
	case transport.EventMessage:
		changed = s.store.Upsert(ev.Message)
	case transport.EventStatus:
		changed = s.store.ApplyStatus(ev.Status)
	case transport.EventRemoved:
		changed = s.store.Remove(ev.RemovedID)
	case transport.EventTyping:
		s.typing = ev.Typing
	default:
		changed = false
		s.log.Warn("unknown transport event", zap.Int("kind", int(ev.Kind)))
	}
	s.mu.Unlock()

	s.log.Debug("event applied",
		zap.Uint64("seq", ev.Seq),
		zap.Stringer("kind", ev.Kind),
		zap.Bool("changed", changed))
	if changed {
		s.notify()
	}
}

func (s *Surface) notify() {
	if s.opts.OnChange != nil {
		s.opts.OnChange()
	}
}

// add inserts an optimistic message.
func (s *Surface) add(m message.Message) {
	s.mu.Lock()
	s.store.Upsert(m)
	s.mu.Unlock()
	s.notify()
}

func (s *Surface) applyStatus(u transport.StatusUpdate) {
	s.mu.Lock()
	changed := s.store.ApplyStatus(u)
	s.mu.Unlock()
	if changed {
		s.notify()
	}
}

// =============================================================================
// READ SIDE
// =============================================================================

// Rows returns the list newest-first with rendering facts attached.
func (s *Surface) Rows() []Row {
	s.mu.Lock()
	display := s.store.Display()
	s.mu.Unlock()

	tl := grouping.Chronological(display, grouping.Options{
		CurrentUserID: s.opts.CurrentUserID,
		Location:      s.opts.Location,
	})
	rows := make([]Row, len(display))
	for i, m := range display {
		f := tl.DisplayFacts(i)
		r := Row{
			Message:      m,
			Facts:        f,
			ReplyPreview: ReplyPreview(m.ReplyTo),
			Attachments:  AttachmentSummary(m.Attachments),
		}
		if f.Own {
			r.StatusIcon = m.Status.Icon()
		}
		if f.ShowDateSeparator {
			r.DateLabel = DateLabel(f)
		}
		rows[i] = r
	}
	return rows
}

// TypingLine is the aggregate remote typing indicator, empty when nobody
// types.
func (s *Surface) TypingLine() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return typing.Indicator(s.typing)
}

// Message looks a message up by id or provisional id.
func (s *Surface) Message(id string) (message.Message, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.store.Get(id)
}

// HasMore reports whether older messages can be loaded.
func (s *Surface) HasMore() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.hasMore
}

// Loading reports whether a page request is in flight.
func (s *Surface) Loading() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.loading
}

// Refreshing reports whether a snapshot request is in flight.
func (s *Surface) Refreshing() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.refreshing
}

// =============================================================================
// COMMANDS
// =============================================================================

// LoadMore requests the next older page. It reports false without calling
// Transport when there is nothing more or a request is already in flight.
func (s *Surface) LoadMore(ctx context.Context) (bool, error) {
	s.mu.Lock()
	if !s.hasMore || s.loading {
		s.mu.Unlock()
		return false, nil
	}
	s.loading = true
	s.mu.Unlock()

	if err := s.transport.LoadMore(ctx); err != nil {
		s.mu.Lock()
		s.loading = false
		s.mu.Unlock()
		return false, fmt.Errorf("load more: %w", err)
	}
	return true, nil
}

// Refresh requests a fresh snapshot (pull-to-refresh).
func (s *Surface) Refresh(ctx context.Context) error {
	s.mu.Lock()
	if s.refreshing {
		s.mu.Unlock()
		return nil
	}
	s.refreshing = true
	s.mu.Unlock()

	if err := s.transport.Refresh(ctx); err != nil {
		s.mu.Lock()
		s.refreshing = false
		s.mu.Unlock()
		return fmt.Errorf("refresh: %w", err)
	}
	return nil
}

// Delete asks Transport to delete a message. The row disappears when
// Transport reports the removal.
func (s *Surface) Delete(ctx context.Context, id string) error {
	s.mu.Lock()
	m, ok := s.store.Get(id)
	s.mu.Unlock()
	if !ok {
		return fmt.Errorf("delete %s: %w", id, transport.ErrNotFound)
	}
	if isLocalOnly(m) {
		return fmt.Errorf("delete %s: %w", id, ErrNotAcknowledged)
	}
	return s.transport.DeleteMessage(ctx, m.ID)
}
