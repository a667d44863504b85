// Package typing turns local keystroke activity into discrete typing
// started/stopped events and renders the remote typing aggregate.
package typing

import (
	"fmt"
	"sync"
	"time"

	"propchat/internal/logging"

	"go.uber.org/zap"
)

// DefaultIdleTimeout is how long the user may pause before being reported
// as no longer typing.
const DefaultIdleTimeout = 2 * time.Second

// Options configure a Controller.
type Options struct {
	IdleTimeout time.Duration
	Logger      *zap.Logger
}

// Controller tracks whether the local user is typing.
//
// emit is called with the lock held so that started/stopped events are
// delivered in order; it must not call back into the Controller.
type Controller struct {
	mu     sync.Mutex
	typing bool
	closed bool
	epoch  uint64 // bumped on every arm/cancel so stale expiries are ignored
	emit   func(bool)
	idle   *Debouncer
	log    *zap.Logger
}

// NewController creates a controller reporting transitions to emit.
func NewController(emit func(bool), opts Options) *Controller {
	if opts.IdleTimeout <= 0 {
		opts.IdleTimeout = DefaultIdleTimeout
	}
	if opts.Logger == nil {
		opts.Logger = logging.Get(logging.CategoryTyping)
	}
	if emit == nil {
		emit = func(bool) {}
	}
	return &Controller{
		emit: emit,
		idle: NewDebouncer(opts.IdleTimeout),
		log:  opts.Logger,
	}
}

// OnTextChanged is called on every keystroke with the full input text.
func (c *Controller) OnTextChanged(text string) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.closed {
		return
	}

	c.epoch++
	if len(text) == 0 {
		c.idle.Cancel()
		c.setLocked(false, "cleared")
		return
	}

	c.setLocked(true, "keystroke")
	epoch := c.epoch
	c.idle.Debounce(func() { c.expire(epoch) })
}

// OnSend forces the not-typing state regardless of the current text.
func (c *Controller) OnSend() {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.closed {
		return
	}
	c.epoch++
	c.idle.Cancel()
	c.setLocked(false, "send")
}

// Close releases the idle timer. No events are emitted afterwards.
func (c *Controller) Close() {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.closed = true
	c.epoch++
	c.idle.Cancel()
}

// IsTyping reports the current local state.
func (c *Controller) IsTyping() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.typing
}

func (c *Controller) expire(epoch uint64) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.closed || epoch != c.epoch {
		return
	}
	c.setLocked(false, "idle")
}

func (c *Controller) setLocked(typing bool, reason string) {
	if c.typing == typing {
		return
	}
	c.typing = typing
	c.log.Debug("typing status changed", zap.Bool("typing", typing), zap.String("reason", reason))
	c.emit(typing)
}

// Indicator renders the aggregate line for remote typers.
// Zero names render as the empty string, meaning hidden.
func Indicator(names []string) string {
	switch len(names) {
	case 0:
		return ""
	case 1:
		return fmt.Sprintf("%s is typing...", names[0])
	default:
		return fmt.Sprintf("%d people are typing...", len(names))
	}
}
