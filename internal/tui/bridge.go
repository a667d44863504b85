package tui

import (
	"fmt"
	"sync"

	"propchat/internal/composer"
	"propchat/internal/conversation"
	"propchat/internal/message"
	"propchat/internal/upload"

	tea "github.com/charmbracelet/bubbletea"
)

// maxNotices bounds the notices kept for the footer.
const maxNotices = 3

// Bridge carries callbacks from the core into the bubbletea loop. It is the
// composer's UI and Listener and the surface's OnChange hook.
//
// Callbacks may fire on any goroutine, including inside Update, so they never
// block: they record what happened and poke a single-slot wake channel that
// the program drains with Listen.
type Bridge struct {
	wake chan struct{}
	done chan struct{}
	once sync.Once

	mu       sync.Mutex
	notices  []string
	cues     []composer.Cue
	keyboard bool // dismiss requested
}

// NewBridge creates a Bridge.
func NewBridge() *Bridge {
	return &Bridge{
		wake: make(chan struct{}, 1),
		done: make(chan struct{}),
	}
}

// wakeMsg tells the model to re-read core state.
type wakeMsg struct{}

// Notify requests a redraw.
func (b *Bridge) Notify() {
	select {
	case b.wake <- struct{}{}:
	default:
	}
}

// Listen waits for the next wake-up. It returns nil once the bridge stops.
func (b *Bridge) Listen() tea.Cmd {
	return func() tea.Msg {
		select {
		case <-b.wake:
			return wakeMsg{}
		case <-b.done:
			return nil
		}
	}
}

// Stop releases a pending Listen.
func (b *Bridge) Stop() {
	b.once.Do(func() { close(b.done) })
}

func (b *Bridge) notice(s string) {
	b.mu.Lock()
	b.notices = append(b.notices, s)
	if len(b.notices) > maxNotices {
		b.notices = b.notices[len(b.notices)-maxNotices:]
	}
	b.mu.Unlock()
	b.Notify()
}

// Notices returns the recent notices, oldest first.
func (b *Bridge) Notices() []string {
	b.mu.Lock()
	defer b.mu.Unlock()
	return append([]string(nil), b.notices...)
}

// ClearNotices drops the recent notices.
func (b *Bridge) ClearNotices() {
	b.mu.Lock()
	b.notices = nil
	b.mu.Unlock()
}

// takeDismiss reports and clears a pending keyboard dismissal.
func (b *Bridge) takeDismiss() bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	d := b.keyboard
	b.keyboard = false
	return d
}

// takeCues returns and clears the cues fired since the last call.
func (b *Bridge) takeCues() []composer.Cue {
	b.mu.Lock()
	defer b.mu.Unlock()
	c := b.cues
	b.cues = nil
	return c
}

// DismissKeyboard blurs the input on the next update.
func (b *Bridge) DismissKeyboard() {
	b.mu.Lock()
	b.keyboard = true
	b.mu.Unlock()
	b.Notify()
}

// Cue queues a presentation cue. A send cue scrolls the list to the newest
// message.
func (b *Bridge) Cue(c composer.Cue) {
	b.mu.Lock()
	b.cues = append(b.cues, c)
	b.mu.Unlock()
	b.Notify()
}

func (b *Bridge) AttachmentStaged(a message.Attachment) {
	b.notice("Attached " + conversation.AttachmentSummary([]message.Attachment{a})[0])
}

func (b *Bridge) AttachmentFailed(f *upload.Failure) {
	b.notice(FailureText(f))
}

func (b *Bridge) StateChanged(composer.State) {
	b.Notify()
}

// FailureText is the user-facing line for an upload failure.
func FailureText(f *upload.Failure) string {
	switch f.Kind {
	case upload.KindPermissionDenied:
		return fmt.Sprintf("Permission to use the %s was denied", f.Source)
	case upload.KindSizeExceeded:
		return "That file is too large to send"
	case upload.KindCancelled:
		return "Upload cancelled"
	default:
		return "Upload failed, try again"
	}
}
