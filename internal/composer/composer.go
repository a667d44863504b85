package composer

import (
	"context"
	"errors"
	"strings"
	"sync"
	"time"

	"propchat/internal/logging"
	"propchat/internal/message"
	"propchat/internal/metrics"
	"propchat/internal/typing"
	"propchat/internal/upload"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

const (
	// DefaultRecordingTick is the voice duration counter resolution.
	DefaultRecordingTick = time.Second
	// DefaultMinVoiceSeconds: recordings must be strictly longer to be kept.
	DefaultMinVoiceSeconds = 1
)

// Options configure a Composer. Zero values fall back to defaults and no-op
// collaborators.
type Options struct {
	CurrentUserID    string
	CurrentUserName  string
	CurrentUserImage string

	TypingIdle      time.Duration
	RecordingTick   time.Duration
	MinVoiceSeconds int

	Typing   TypingSink
	UI       UI
	Recorder Recorder
	Uploader Uploader
	Listener Listener
	Logger   *zap.Logger

	// Now stamps outbound messages. Defaults to time.Now.
	Now func() time.Time
}

// Composer is the input-box state machine.
//
// Collaborator callbacks (UI, Listener, Dispatcher) run after the internal
// lock is released, so they may call back into the Composer.
type Composer struct {
	mu        sync.Mutex
	draft     Draft
	uploading bool
	starting  bool // a recorder start is in flight
	closed    bool

	opts       Options
	dispatcher Dispatcher
	typing     *typing.Controller
	log        *zap.Logger

	// recording ticker
	recGen   uint64
	tickStop chan struct{}
	tickDone chan struct{}

	// upload watchers
	wg sync.WaitGroup
}

// New creates a composer that hands sent messages to d.
func New(d Dispatcher, opts Options) *Composer {
	if opts.RecordingTick <= 0 {
		opts.RecordingTick = DefaultRecordingTick
	}
	if opts.MinVoiceSeconds <= 0 {
		opts.MinVoiceSeconds = DefaultMinVoiceSeconds
	}
	if opts.UI == nil {
		opts.UI = noopUI{}
	}
	if opts.Listener == nil {
		opts.Listener = noopListener{}
	}
	if opts.Logger == nil {
		opts.Logger = logging.Get(logging.CategoryComposer)
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}

	c := &Composer{
		opts:       opts,
		dispatcher: d,
		log:        opts.Logger,
	}

	sink := opts.Typing
	c.typing = typing.NewController(func(on bool) {
		if sink == nil {
			return
		}
		if err := sink.SetTypingStatus(context.Background(), on); err != nil {
			c.log.Warn("typing status not delivered", zap.Bool("typing", on), zap.Error(err))
		}
	}, typing.Options{IdleTimeout: opts.TypingIdle, Logger: logging.Get(logging.CategoryTyping)})

	return c
}

// =============================================================================
// STATE
// =============================================================================

// State derives the current state from the draft.
func (c *Composer) State() State {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.stateLocked()
}

func (c *Composer) stateLocked() State {
	switch {
	case c.draft.Recording == RecordingActive:
		return StateRecording
	case c.draft.Recording == RecordingCancelling:
		return StateRecordingCancelling
	case c.draft.Overlay == OverlayAttachMenu:
		return StateAttachMenuOpen
	case len(c.draft.Text) > 0:
		return StateComposing
	default:
		return StateIdle
	}
}

// Draft returns a copy of the current draft.
func (c *Composer) Draft() Draft {
	c.mu.Lock()
	defer c.mu.Unlock()
	d := c.draft
	if d.ReplyingTo != nil {
		r := *d.ReplyingTo
		d.ReplyingTo = &r
	}
	d.Staged = append([]message.Attachment(nil), c.draft.Staged...)
	return d
}

// IsUploading reports whether an attachment pick is outstanding.
func (c *Composer) IsUploading() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.uploading
}

// CanSend reports whether Send would produce a message.
func (c *Composer) CanSend() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.canSendLocked()
}

func (c *Composer) canSendLocked() bool {
	if c.closed || c.draft.Recording != RecordingIdle {
		return false
	}
	return strings.TrimSpace(c.draft.Text) != "" || len(c.draft.Staged) > 0
}

// effects collects callbacks to run once the lock is released.
type effects []func()

func (e *effects) add(f func()) { *e = append(*e, f) }

func (e effects) run() {
	for _, f := range e {
		f()
	}
}

// transition runs mutate under the lock and reports a state change.
func (c *Composer) transition(mutate func(fx *effects) error) error {
	var fx effects

	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return ErrClosed
	}
	before := c.stateLocked()
	err := mutate(&fx)
	after := c.stateLocked()
	c.mu.Unlock()

	if before != after {
		c.log.Debug("composer state", zap.Stringer("from", before), zap.Stringer("to", after))
		fx.add(func() { c.opts.Listener.StateChanged(after) })
	}
	fx.run()
	return err
}

// =============================================================================
// TEXT & OVERLAYS
// =============================================================================

// SetText replaces the draft text; called on every keystroke.
func (c *Composer) SetText(text string) {
	_ = c.transition(func(*effects) error {
		c.draft.Text = text
		c.typing.OnTextChanged(text)
		return nil
	})
}

// FocusInput closes any open overlay.
func (c *Composer) FocusInput() {
	_ = c.transition(func(*effects) error {
		c.draft.Overlay = OverlayNone
		return nil
	})
}

// ToggleAttachMenu opens or closes the attach menu. Opening closes the
// emoji picker and dismisses the keyboard.
func (c *Composer) ToggleAttachMenu() {
	c.toggleOverlay(OverlayAttachMenu)
}

// ToggleEmojiPicker opens or closes the emoji picker. Opening closes the
// attach menu and dismisses the keyboard.
func (c *Composer) ToggleEmojiPicker() {
	c.toggleOverlay(OverlayEmojiPicker)
}

func (c *Composer) toggleOverlay(o Overlay) {
	_ = c.transition(func(fx *effects) error {
		if c.draft.Recording != RecordingIdle {
			return nil
		}
		if c.draft.Overlay == o {
			c.draft.Overlay = OverlayNone
		} else {
			c.draft.Overlay = o
			fx.add(c.opts.UI.DismissKeyboard)
		}
		fx.add(func() { c.opts.UI.Cue(CueMenuToggle) })
		return nil
	})
}

// CloseOverlays dismisses the attach menu and the emoji picker.
func (c *Composer) CloseOverlays() {
	c.FocusInput()
}

// SetReply snapshots m as the message being replied to.
func (c *Composer) SetReply(m message.Message) {
	_ = c.transition(func(*effects) error {
		ref := m.Snapshot()
		c.draft.ReplyingTo = &ref
		return nil
	})
}

// ClearReply drops the reply context.
func (c *Composer) ClearReply() {
	_ = c.transition(func(*effects) error {
		c.draft.ReplyingTo = nil
		return nil
	})
}

// =============================================================================
// SEND
// =============================================================================

// Send builds the optimistic message, resets the draft and hands the
// message to the dispatcher.
func (c *Composer) Send(ctx context.Context) (message.Message, error) {
	var m message.Message
	err := c.transition(func(fx *effects) error {
		if !c.canSendLocked() {
			return ErrNothingToSend
		}

		id := uuid.NewString()
		m = message.Message{
			ID:          id,
			ClientToken: id,
			SenderID:    c.opts.CurrentUserID,
			SenderName:  c.opts.CurrentUserName,
			SenderImage: c.opts.CurrentUserImage,
			Content:     strings.TrimSpace(c.draft.Text),
			Timestamp:   c.opts.Now().UTC().Format(time.RFC3339Nano),
			Status:      message.StatusSending,
			ReplyTo:     c.draft.ReplyingTo,
			Attachments: c.draft.Staged,
		}

		c.draft = Draft{}
		c.typing.OnSend()

		metrics.MessagesComposed.WithLabelValues(composedKind(m)).Inc()
		c.log.Debug("message composed",
			zap.String("client_token", m.ClientToken),
			zap.Int("attachments", len(m.Attachments)),
			zap.Bool("reply", m.ReplyTo != nil))

		fx.add(func() { c.opts.UI.Cue(CueSend) })
		if c.dispatcher != nil {
			out := m.Clone()
			fx.add(func() { c.dispatcher.Dispatch(ctx, out) })
		}
		return nil
	})
	if err != nil {
		return message.Message{}, err
	}
	return m, nil
}

func composedKind(m message.Message) string {
	switch {
	case m.ReplyTo != nil:
		return "reply"
	case len(m.Attachments) > 0:
		return "attachment"
	default:
		return "text"
	}
}

// =============================================================================
// ATTACHMENTS
// =============================================================================

// Attach runs one pick from src: permission, picker, then upload. A
// dismissed picker creates no upload task. The uploaded reference is staged
// for the next Send.
func (c *Composer) Attach(ctx context.Context, src upload.Source, picker upload.Picker) error {
	if c.opts.Uploader == nil || picker == nil {
		return errors.New("attachments are not configured")
	}

	err := c.transition(func(*effects) error {
		if c.uploading {
			return ErrUploadInProgress
		}
		c.uploading = true
		c.draft.Overlay = OverlayNone
		return nil
	})
	if err != nil {
		return err
	}

	if err := c.opts.Uploader.RequestPermission(ctx, src); err != nil {
		c.finishUpload(nil, asFailure(src, err))
		return err
	}

	descs, err := picker.Pick(ctx, src)
	if err != nil || len(descs) == 0 {
		c.finishUpload(nil, nil)
		if err != nil && !errors.Is(err, upload.ErrPickCancelled) {
			return err
		}
		return nil
	}

	c.watch(c.opts.Uploader.Start(ctx, src, descs))
	return nil
}

func (c *Composer) watch(task *upload.Task) {
	c.wg.Add(1)
	go func() {
		defer c.wg.Done()
		<-task.Done()
		r, _ := task.Result()
		if r.Failure != nil {
			c.finishUpload(nil, r.Failure)
			return
		}
		a := r.Attachment
		c.finishUpload(&a, nil)
	}()
}

func (c *Composer) finishUpload(a *message.Attachment, f *upload.Failure) {
	var fx effects

	c.mu.Lock()
	c.uploading = false
	closed := c.closed
	if !closed && a != nil {
		c.draft.Staged = append(c.draft.Staged, *a)
	}
	c.mu.Unlock()

	if closed {
		return
	}
	switch {
	case a != nil:
		staged := *a
		fx.add(func() { c.opts.Listener.AttachmentStaged(staged) })
	case f != nil:
		fx.add(func() { c.opts.Listener.AttachmentFailed(f) })
	}
	fx.run()
}

// RemoveStaged drops a staged attachment by index.
func (c *Composer) RemoveStaged(i int) {
	_ = c.transition(func(*effects) error {
		if i < 0 || i >= len(c.draft.Staged) {
			return nil
		}
		c.draft.Staged = append(c.draft.Staged[:i:i], c.draft.Staged[i+1:]...)
		return nil
	})
}

func asFailure(src upload.Source, err error) *upload.Failure {
	var f *upload.Failure
	if errors.As(err, &f) {
		return f
	}
	return &upload.Failure{Kind: upload.KindUploadFailed, Source: src, Err: err}
}

// =============================================================================
// LIFECYCLE
// =============================================================================

// Close releases the typing timer and the recording ticker and discards any
// recording in progress. It waits for running uploads to finish; their
// results are dropped.
func (c *Composer) Close() {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return
	}
	c.closed = true
	wasRecording := c.draft.Recording != RecordingIdle
	done := c.stopTickerLocked()
	c.draft = Draft{}
	c.mu.Unlock()

	c.typing.Close()
	if done != nil {
		<-done
	}
	if wasRecording && c.opts.Recorder != nil {
		c.opts.Recorder.Cancel()
	}
	c.wg.Wait()
}
