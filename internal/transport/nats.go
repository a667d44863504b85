package transport

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"
	"time"

	"propchat/internal/logging"
	"propchat/internal/message"

	"github.com/nats-io/nats.go"
	"github.com/nats-io/nats.go/jetstream"
	"go.uber.org/zap"
)

// NATSOptions configure a NATS transport.
type NATSOptions struct {
	URL            string
	SubjectPrefix  string
	StreamName     string
	ConversationID string
	UserID         string
	UserName       string
	UserImage      string
	PageSize       int
	// MaxAge bounds how long the stream keeps history. Zero keeps it forever.
	MaxAge time.Duration
	Logger *zap.Logger
	Now    func() time.Time
}

// maxPendingReceipts bounds the receipts held for messages not received yet.
const maxPendingReceipts = 256

// NATS is a Transport over NATS. Messages live in a JetStream stream whose
// sequence numbers are the canonical message ids; the publish carries the
// client token as Nats-Msg-Id so a retried publish is deduplicated by the
// server. Receipts, typing and deletions travel on core NATS subjects.
type NATS struct {
	mu     sync.Mutex
	emitMu sync.Mutex

	hist   *history
	remote map[string]string
	closed bool

	// pending holds receipts that arrived before the message they
	// acknowledge, keyed by canonical id.
	pending map[string]message.Status
	// replayedTo is the last stream sequence stored before this connection.
	// Messages at or below it were already receipted by an earlier session.
	replayedTo uint64

	opts NATSOptions
	subj subjects
	bus  *Bus
	log  *zap.Logger

	nc      *nats.Conn
	stream  jetstream.Stream
	consume jetstream.ConsumeContext
	subs    []*nats.Subscription

	// network seams, bound to nc/js/stream by DialNATS
	publish   func(subject string, data []byte) error
	jsPublish func(ctx context.Context, subject string, data []byte, msgID string) error
	deleteSeq func(ctx context.Context, seq uint64) error
}

var _ Transport = (*NATS)(nil)

func newNATS(opts NATSOptions) (*NATS, error) {
	if opts.Logger == nil {
		opts.Logger = logging.Get(logging.CategoryTransport)
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}
	if opts.SubjectPrefix == "" {
		opts.SubjectPrefix = "propchat"
	}
	if opts.StreamName == "" {
		opts.StreamName = "PROPCHAT"
	}
	if !validToken(opts.ConversationID) {
		return nil, fmt.Errorf("invalid conversation id %q", opts.ConversationID)
	}
	if opts.UserID == "" {
		return nil, errors.New("nats transport requires a user id")
	}

	return &NATS{
		hist:    newHistory(opts.PageSize),
		remote:  make(map[string]string),
		pending: make(map[string]message.Status),
		opts:   opts,
		subj:   subjects{prefix: opts.SubjectPrefix, conversation: opts.ConversationID},
		bus:    NewBus(0),
		log: opts.Logger.With(
			zap.String("transport", "nats"),
			zap.String("conversation", opts.ConversationID)),
	}, nil
}

// DialNATS connects, ensures the stream exists and starts consuming the
// conversation from its first message.
func DialNATS(ctx context.Context, opts NATSOptions) (*NATS, error) {
	t, err := newNATS(opts)
	if err != nil {
		return nil, err
	}

	nc, err := nats.Connect(opts.URL, nats.Name("propchat-"+opts.UserID))
	if err != nil {
		return nil, fmt.Errorf("failed to connect to NATS: %w", err)
	}
	t.nc = nc

	js, err := jetstream.New(nc)
	if err != nil {
		nc.Close()
		return nil, fmt.Errorf("failed to create jetstream context: %w", err)
	}

	stream, err := js.Stream(ctx, t.opts.StreamName)
	if err != nil {
		t.log.Info("stream not found, creating", zap.String("stream", t.opts.StreamName))
		stream, err = js.CreateStream(ctx, jetstream.StreamConfig{
			Name:        t.opts.StreamName,
			Description: "propchat conversation history",
			Subjects:    t.subj.streamSubjects(),
			MaxAge:      t.opts.MaxAge,
			Storage:     jetstream.FileStorage,
			Duplicates:  2 * time.Minute,
		})
		if err != nil {
			nc.Close()
			return nil, fmt.Errorf("failed to create stream %q: %w", t.opts.StreamName, err)
		}
	}
	t.stream = stream
	if info := stream.CachedInfo(); info != nil {
		t.replayedTo = info.State.LastSeq
	}

	t.publish = nc.Publish
	t.jsPublish = func(ctx context.Context, subject string, data []byte, msgID string) error {
		_, err := js.Publish(ctx, subject, data, jetstream.WithMsgID(msgID))
		return err
	}
	t.deleteSeq = stream.DeleteMsg

	for subject, handle := range map[string]func([]byte){
		t.subj.status():  t.onStatus,
		t.subj.typing():  t.onTyping,
		t.subj.deleted(): t.onDeleted,
	} {
		sub, err := nc.Subscribe(subject, func(m *nats.Msg) { handle(m.Data) })
		if err != nil {
			t.shutdown()
			return nil, fmt.Errorf("failed to subscribe to %q: %w", subject, err)
		}
		t.subs = append(t.subs, sub)
	}

	cons, err := js.CreateOrUpdateConsumer(ctx, t.opts.StreamName, jetstream.ConsumerConfig{
		FilterSubject:     t.subj.messages(),
		DeliverPolicy:     jetstream.DeliverAllPolicy,
		AckPolicy:         jetstream.AckNonePolicy,
		InactiveThreshold: 5 * time.Minute,
	})
	if err != nil {
		t.shutdown()
		return nil, fmt.Errorf("failed to create consumer for %q: %w", t.subj.messages(), err)
	}

	t.consume, err = cons.Consume(func(msg jetstream.Msg) {
		meta, err := msg.Metadata()
		if err != nil {
			t.log.Warn("message without metadata", zap.String("subject", msg.Subject()), zap.Error(err))
			return
		}
		t.onMessage(meta.Sequence.Stream, msg.Data())
	})
	if err != nil {
		t.shutdown()
		return nil, fmt.Errorf("failed to consume %q: %w", t.subj.messages(), err)
	}

	t.log.Info("connected", zap.String("url", opts.URL), zap.String("subject", t.subj.messages()))
	return t, nil
}

func (t *NATS) commit(evs ...Event) {
	t.emitMu.Lock()
	t.mu.Unlock()
	defer t.emitMu.Unlock()
	for _, ev := range evs {
		t.bus.Publish(ev)
	}
}

func (t *NATS) lock() error {
	t.mu.Lock()
	if t.closed {
		t.mu.Unlock()
		return ErrClosed
	}
	return nil
}

// =============================================================================
// TRANSPORT
// =============================================================================

// SendMessage publishes out to the conversation stream.
func (t *NATS) SendMessage(ctx context.Context, out message.Outbound) error {
	if err := out.Validate(); err != nil {
		return fmt.Errorf("%w: %w", ErrSendFailed, err)
	}
	if err := t.lock(); err != nil {
		return err
	}
	env := messageEnvelope{
		ClientToken: out.ClientToken,
		SenderID:    t.opts.UserID,
		SenderName:  t.opts.UserName,
		SenderImage: t.opts.UserImage,
		Content:     out.Content,
		Timestamp:   t.opts.Now().UTC().Format(time.RFC3339Nano),
		Attachments: out.Attachments,
	}
	if out.ReplyToID != "" {
		if parent, ok := t.hist.find(out.ReplyToID); ok {
			ref := parent.Snapshot()
			env.ReplyTo = &ref
		}
	}
	t.mu.Unlock()

	data, err := encode(env)
	if err != nil {
		return fmt.Errorf("%w: %w", ErrSendFailed, err)
	}
	if err := t.jsPublish(ctx, t.subj.messages(), data, out.ClientToken); err != nil {
		return fmt.Errorf("%w: failed to publish to %q: %w", ErrSendFailed, t.subj.messages(), err)
	}
	t.log.Debug("message published", zap.String("client_token", out.ClientToken))
	return nil
}

// DeleteMessage removes the message from the stream and tells the other
// participants.
func (t *NATS) DeleteMessage(ctx context.Context, id string) error {
	seq, err := parseSequenceID(id)
	if err != nil {
		return err
	}
	if err := t.deleteSeq(ctx, seq); err != nil && !errors.Is(err, jetstream.ErrMsgNotFound) {
		return fmt.Errorf("failed to delete %s: %w", id, err)
	}
	data, err := encode(deleteEnvelope{ID: id})
	if err != nil {
		return err
	}
	if err := t.publish(t.subj.deleted(), data); err != nil {
		return fmt.Errorf("failed to announce deletion of %s: %w", id, err)
	}
	return nil
}

// SetTypingStatus announces the local typing state.
func (t *NATS) SetTypingStatus(_ context.Context, typing bool) error {
	data, err := encode(typingEnvelope{UserID: t.opts.UserID, Name: t.opts.UserName, Typing: typing})
	if err != nil {
		return err
	}
	return t.publish(t.subj.typing(), data)
}

// LoadMore publishes the next older page of the received history.
func (t *NATS) LoadMore(context.Context) error {
	if err := t.lock(); err != nil {
		return err
	}
	t.commit(Event{Kind: EventPage, Conversation: t.hist.more()})
	return nil
}

// Refresh publishes a snapshot of the newest page of the received history.
func (t *NATS) Refresh(context.Context) error {
	if err := t.lock(); err != nil {
		return err
	}
	conv := t.hist.snapshot()
	conv.Typing = t.typersLocked()
	t.commit(Event{Kind: EventSnapshot, Conversation: conv})
	return nil
}

// Subscribe implements Transport.
func (t *NATS) Subscribe() (<-chan Event, func()) {
	return t.bus.Subscribe()
}

// Close stops consuming and closes the connection.
func (t *NATS) Close() error {
	t.mu.Lock()
	if t.closed {
		t.mu.Unlock()
		return nil
	}
	t.closed = true
	t.mu.Unlock()

	t.shutdown()
	t.bus.Close()
	return nil
}

func (t *NATS) shutdown() {
	if t.consume != nil {
		t.consume.Stop()
	}
	for _, sub := range t.subs {
		_ = sub.Unsubscribe()
	}
	if t.nc != nil {
		t.nc.Close()
	}
}

// =============================================================================
// INBOUND
// =============================================================================

func (t *NATS) onMessage(seq uint64, data []byte) {
	env, err := decode[messageEnvelope](data)
	if err != nil {
		t.log.Warn("dropping malformed message", zap.Uint64("seq", seq), zap.Error(err))
		return
	}
	m := env.toMessage(seq)
	own := m.SenderID == t.opts.UserID

	if err := t.lock(); err != nil {
		return
	}
	prev, seen := t.hist.find(m.ID)
	if seen {
		m.Status = message.Merge(prev.Status, m.Status)
	}
	if status, ok := t.pending[m.ID]; ok {
		delete(t.pending, m.ID)
		if own {
			m.Status = message.Merge(m.Status, status)
		}
	}
	t.hist.add(m)
	receipt := !own && !seen && seq > t.replayedTo
	t.commit(Event{Kind: EventMessage, Message: m.Clone()})

	if receipt {
		t.sendReceipt(m, message.StatusDelivered)
	}
}

// sendReceipt tells the sender that m reached this participant.
func (t *NATS) sendReceipt(m message.Message, status message.Status) {
	data, err := encode(statusEnvelope{
		StatusUpdate: StatusUpdate{ID: m.ID, ClientToken: m.ClientToken, Status: status},
		From:         t.opts.UserID,
	})
	if err == nil {
		err = t.publish(t.subj.status(), data)
	}
	if err != nil {
		t.log.Warn("receipt not sent", zap.String("id", m.ID), zap.Error(err))
	}
}

func (t *NATS) onStatus(data []byte) {
	env, err := decode[statusEnvelope](data)
	if err != nil || !env.Status.Valid() {
		t.log.Warn("dropping malformed status", zap.ByteString("data", data), zap.Error(err))
		return
	}
	if env.From == t.opts.UserID {
		return
	}
	if err := t.lock(); err != nil {
		return
	}
	m, ok := t.hist.find(env.ID)
	if !ok {
		// the receipt overtook the echo of our own message
		t.holdLocked(env.ID, env.Status)
		t.mu.Unlock()
		return
	}
	if m.SenderID != t.opts.UserID {
		// receipts for other people's messages are not ours to show
		t.mu.Unlock()
		return
	}
	t.hist.setStatus(env.ID, env.Status)
	t.commit(Event{Kind: EventStatus, Status: env.StatusUpdate})
}

// holdLocked keeps a receipt for a message not received yet. t.mu must be
// held.
func (t *NATS) holdLocked(id string, status message.Status) {
	cur, ok := t.pending[id]
	if !ok && len(t.pending) >= maxPendingReceipts {
		t.log.Debug("pending receipts full, dropping", zap.String("id", id))
		return
	}
	t.pending[id] = message.Merge(cur, status)
}

func (t *NATS) onTyping(data []byte) {
	env, err := decode[typingEnvelope](data)
	if err != nil {
		t.log.Warn("dropping malformed typing event", zap.Error(err))
		return
	}
	if env.UserID == t.opts.UserID {
		return
	}
	if err := t.lock(); err != nil {
		return
	}
	_, was := t.remote[env.UserID]
	if env.Typing == was {
		t.mu.Unlock()
		return
	}
	if env.Typing {
		t.remote[env.UserID] = env.Name
	} else {
		delete(t.remote, env.UserID)
	}
	t.commit(Event{Kind: EventTyping, Typing: t.typersLocked()})
}

func (t *NATS) onDeleted(data []byte) {
	env, err := decode[deleteEnvelope](data)
	if err != nil {
		t.log.Warn("dropping malformed deletion", zap.Error(err))
		return
	}
	if err := t.lock(); err != nil {
		return
	}
	if !t.hist.remove(env.ID) {
		t.mu.Unlock()
		return
	}
	t.commit(Event{Kind: EventRemoved, RemovedID: env.ID})
}

func (t *NATS) typersLocked() []string {
	names := make([]string, 0, len(t.remote))
	for _, n := range t.remote {
		names = append(names, n)
	}
	sort.Strings(names)
	return names
}
