package typing

import (
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"go.uber.org/goleak"
)

const testIdle = 50 * time.Millisecond

// recorder collects emitted typing events.
type recorder struct {
	mu     sync.Mutex
	events []bool
}

func (r *recorder) emit(v bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, v)
}

func (r *recorder) snapshot() []bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]bool, len(r.events))
	copy(out, r.events)
	return out
}

func newTestController(t *testing.T) (*Controller, *recorder) {
	t.Helper()
	rec := &recorder{}
	c := NewController(rec.emit, Options{IdleTimeout: testIdle})
	t.Cleanup(c.Close)
	return c, rec
}

func TestController_KeystrokesEmitStartedOnce(t *testing.T) {
	defer goleak.VerifyNone(t)
	c, rec := newTestController(t)

	c.OnTextChanged("h")
	time.Sleep(10 * time.Millisecond)
	c.OnTextChanged("he")
	time.Sleep(10 * time.Millisecond)
	c.OnTextChanged("hey")

	assert.Equal(t, []bool{true}, rec.snapshot())
	assert.True(t, c.IsTyping())

	// Wait for idle expiry
	time.Sleep(3 * testIdle)

	assert.Equal(t, []bool{true, false}, rec.snapshot())
	assert.False(t, c.IsTyping())
}

func TestController_KeystrokesRearmIdleTimer(t *testing.T) {
	defer goleak.VerifyNone(t)
	c, rec := newTestController(t)

	for i := 0; i < 6; i++ {
		c.OnTextChanged("typing")
		time.Sleep(testIdle / 3)
	}
	assert.Equal(t, []bool{true}, rec.snapshot(), "no expiry while keystrokes keep coming")

	time.Sleep(3 * testIdle)
	assert.Equal(t, []bool{true, false}, rec.snapshot())
}

func TestController_ClearingTextStopsTyping(t *testing.T) {
	defer goleak.VerifyNone(t)
	c, rec := newTestController(t)

	c.OnTextChanged("a")
	c.OnTextChanged("")

	time.Sleep(3 * testIdle)
	assert.Equal(t, []bool{true, false}, rec.snapshot(), "cleared text must not fire a second stop")
}

func TestController_SendClearsTypingAndCancelsTimer(t *testing.T) {
	defer goleak.VerifyNone(t)
	c, rec := newTestController(t)

	c.OnTextChanged("hello")
	c.OnSend()
	assert.Equal(t, []bool{true, false}, rec.snapshot())

	time.Sleep(3 * testIdle)
	assert.Equal(t, []bool{true, false}, rec.snapshot(), "idle timer must have been cancelled")
}

func TestController_SendWhileIdleEmitsNothing(t *testing.T) {
	defer goleak.VerifyNone(t)
	c, rec := newTestController(t)

	c.OnSend()
	assert.Empty(t, rec.snapshot())
}

func TestController_CloseStopsEmissions(t *testing.T) {
	defer goleak.VerifyNone(t)
	c, rec := newTestController(t)

	c.OnTextChanged("draft")
	c.Close()

	time.Sleep(3 * testIdle)
	c.OnTextChanged("after close")

	assert.Equal(t, []bool{true}, rec.snapshot())
}

func TestIndicator(t *testing.T) {
	tests := []struct {
		names []string
		want  string
	}{
		{nil, ""},
		{[]string{"Dana"}, "Dana is typing..."},
		{[]string{"Dana", "Lee"}, "2 people are typing..."},
		{[]string{"Dana", "Lee", "Sam"}, "3 people are typing..."},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, Indicator(tt.names))
	}
}
