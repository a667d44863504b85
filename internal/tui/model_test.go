package tui

import (
	"context"
	"strings"
	"sync"
	"testing"
	"time"

	"propchat/internal/composer"
	"propchat/internal/conversation"
	"propchat/internal/message"
	"propchat/internal/transport"
	"propchat/internal/upload"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type stubPicker struct {
	descs []upload.Descriptor
}

func (p stubPicker) Pick(context.Context, upload.Source) ([]upload.Descriptor, error) {
	if len(p.descs) == 0 {
		return nil, upload.ErrPickCancelled
	}
	return p.descs, nil
}

type stubRecorder struct {
	mu      sync.Mutex
	running bool
}

func (r *stubRecorder) Start(context.Context) error {
	r.mu.Lock()
	r.running = true
	r.mu.Unlock()
	return nil
}

func (r *stubRecorder) Stop(context.Context) (upload.Descriptor, error) {
	r.mu.Lock()
	r.running = false
	r.mu.Unlock()
	return upload.Descriptor{Type: message.AttachmentVoice, URI: "memory://voice/1"}, nil
}

func (r *stubRecorder) Cancel() {
	r.mu.Lock()
	r.running = false
	r.mu.Unlock()
}

type fixture struct {
	m        Model
	tr       *transport.Memory
	surface  *conversation.Surface
	composer *composer.Composer
	bridge   *Bridge
}

func seed() []message.Message {
	base := time.Date(2024, 3, 1, 9, 0, 0, 0, time.UTC)
	return []message.Message{
		{ID: "m1", SenderID: "ann", SenderName: "Ann Lee", Content: "boiler is loud", Timestamp: base.Format(time.RFC3339), Status: message.StatusDelivered},
		{ID: "m2", SenderID: "me", SenderName: "Me", Content: "on my way", Timestamp: base.Add(time.Minute).Format(time.RFC3339), Status: message.StatusRead},
	}
}

func newFixture(t *testing.T, picker upload.Picker) *fixture {
	t.Helper()
	f := &fixture{
		tr:     transport.NewMemory(transport.MemoryOptions{UserID: "me", UserName: "Me", Seed: seed()}),
		bridge: NewBridge(),
	}
	f.surface = conversation.NewSurface(f.tr, conversation.Options{
		CurrentUserID: "me",
		Location:      time.UTC,
		OnChange:      f.bridge.Notify,
	})

	events, unsub := f.tr.Subscribe()
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		defer close(done)
		defer unsub()
		_ = f.surface.Serve(ctx, events)
	}()

	out := conversation.NewOutbox(f.surface, f.tr, nil)
	orch := upload.NewOrchestrator(upload.NewMemoryStore(0), upload.AllowAll{}, upload.Options{MaxDocumentBytes: 1 << 20})
	f.composer = composer.New(out, composer.Options{
		CurrentUserID:   "me",
		CurrentUserName: "Me",
		RecordingTick:   time.Hour,
		Typing:          f.tr,
		UI:              f.bridge,
		Listener:        f.bridge,
		Uploader:        orch,
		Recorder:        &stubRecorder{},
	})

	f.m = New(ctx, Options{
		Composer: f.composer,
		Surface:  f.surface,
		Bridge:   f.bridge,
		Picker:   picker,
		Title:    "Unit 4B",
	})
	f.update(tea.WindowSizeMsg{Width: 100, Height: 40})

	t.Cleanup(func() {
		f.composer.Close()
		out.Wait()
		orch.Wait()
		cancel()
		<-done
		f.tr.Close()
		f.bridge.Stop()
	})
	return f
}

func (f *fixture) update(msg tea.Msg) tea.Cmd {
	next, cmd := f.m.Update(msg)
	f.m = next.(Model)
	return cmd
}

func (f *fixture) key(k tea.KeyType) tea.Cmd {
	return f.update(tea.KeyMsg{Type: k})
}

func (f *fixture) typeText(s string) {
	f.update(tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune(s)})
}

// exec runs a command the model returned and feeds its result back.
func (f *fixture) exec(t *testing.T, cmd tea.Cmd) {
	t.Helper()
	require.NotNil(t, cmd)
	f.update(cmd())
}

// settle waits for the surface to satisfy cond and then redraws.
func (f *fixture) settle(t *testing.T, cond func() bool) {
	t.Helper()
	require.Eventually(t, cond, time.Second, 5*time.Millisecond)
	f.update(wakeMsg{})
}

func (f *fixture) loaded(t *testing.T) {
	t.Helper()
	require.NoError(t, f.surface.Refresh(context.Background()))
	f.settle(t, func() bool { return len(f.surface.Rows()) == 2 })
}

func TestModel_RendersConversation(t *testing.T) {
	f := newFixture(t, nil)
	f.loaded(t)

	view := f.m.View()
	assert.Contains(t, view, "Unit 4B")
	assert.Contains(t, view, "boiler is loud")
	assert.Contains(t, view, "Ann Lee")
	assert.Contains(t, view, "AL", "avatar initials")
	assert.Contains(t, view, "Fri, Mar 1 2024")
	assert.Contains(t, view, message.StatusRead.Icon())
	assert.Less(t, strings.Index(view, "boiler is loud"), strings.Index(view, "on my way"), "oldest first on screen")
}

func TestModel_TypeAndSend(t *testing.T) {
	f := newFixture(t, nil)
	f.loaded(t)

	f.typeText("hello there")
	assert.Equal(t, "hello there", f.composer.Draft().Text)
	assert.Equal(t, composer.StateComposing, f.composer.State())
	assert.True(t, f.tr.LocalTyping())

	f.key(tea.KeyEnter)
	assert.Empty(t, f.composer.Draft().Text)
	assert.Empty(t, f.m.textarea.Value())
	assert.False(t, f.tr.LocalTyping())

	f.settle(t, func() bool {
		rows := f.surface.Rows()
		return len(rows) == 3 && rows[0].Message.Status == message.StatusSent
	})
	assert.Contains(t, f.m.View(), "hello there")
}

func TestModel_BlankSendIsIgnored(t *testing.T) {
	f := newFixture(t, nil)
	f.typeText("   ")
	f.key(tea.KeyEnter)
	assert.NoError(t, f.m.err)
	assert.Equal(t, "   ", f.m.textarea.Value())
}

func TestModel_AttachDocument(t *testing.T) {
	f := newFixture(t, stubPicker{descs: []upload.Descriptor{
		{Type: message.AttachmentDocument, URI: "file:///tmp/lease.pdf", Name: "lease.pdf", Size: 2048},
	}})

	f.key(tea.KeyCtrlA)
	assert.Equal(t, composer.StateAttachMenuOpen, f.composer.State())
	assert.Contains(t, f.m.View(), "Attach:")

	f.exec(t, f.update(tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune("d")}))
	assert.NoError(t, f.m.err)

	// the notice follows staging
	f.settle(t, func() bool { return len(f.bridge.Notices()) == 1 })
	require.Len(t, f.composer.Draft().Staged, 1)
	view := f.m.View()
	assert.Contains(t, view, "Attached lease.pdf (2.0 KiB)")
	assert.NotContains(t, view, "Attach:")
	assert.True(t, f.composer.CanSend(), "an attachment alone is sendable")

	f.key(tea.KeyCtrlZ)
	assert.Empty(t, f.composer.Draft().Staged)
}

func TestModel_AttachTooLargeShowsNotice(t *testing.T) {
	f := newFixture(t, stubPicker{descs: []upload.Descriptor{
		{Type: message.AttachmentDocument, Name: "scan.tiff", Size: 5 << 20},
	}})

	f.key(tea.KeyCtrlA)
	f.exec(t, f.update(tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune("d")}))

	f.settle(t, func() bool { return len(f.bridge.Notices()) == 1 })
	assert.Contains(t, f.m.View(), "That file is too large to send")
	assert.Empty(t, f.composer.Draft().Staged)
}

func TestModel_AttachWithoutPicker(t *testing.T) {
	f := newFixture(t, nil)
	f.key(tea.KeyCtrlA)
	assert.Error(t, f.m.err)
	assert.NotEqual(t, composer.StateAttachMenuOpen, f.composer.State())
}

func TestModel_EmojiPicker(t *testing.T) {
	f := newFixture(t, nil)
	f.typeText("thanks ")
	f.key(tea.KeyCtrlE)
	assert.Equal(t, composer.OverlayEmojiPicker, f.composer.Draft().Overlay)

	f.typeText("1")
	assert.Equal(t, "thanks 👍", f.composer.Draft().Text)

	f.key(tea.KeyEsc)
	assert.Equal(t, composer.OverlayNone, f.composer.Draft().Overlay)
}

func TestModel_OverlaysAreExclusive(t *testing.T) {
	f := newFixture(t, stubPicker{})
	f.key(tea.KeyCtrlE)
	f.key(tea.KeyEsc)
	f.key(tea.KeyCtrlA)
	assert.Equal(t, composer.OverlayAttachMenu, f.composer.Draft().Overlay)
}

func TestModel_SelectReplyAndDelete(t *testing.T) {
	f := newFixture(t, nil)
	f.loaded(t)

	f.key(tea.KeyCtrlP)
	f.key(tea.KeyCtrlP)
	f.key(tea.KeyCtrlY)
	d := f.composer.Draft()
	require.NotNil(t, d.ReplyingTo)
	assert.Equal(t, "m1", d.ReplyingTo.ID)
	assert.Contains(t, f.m.View(), "Replying to Ann Lee: boiler is loud")

	f.key(tea.KeyEsc)
	assert.Nil(t, f.composer.Draft().ReplyingTo)

	f.key(tea.KeyCtrlP)
	f.exec(t, f.key(tea.KeyCtrlD))
	assert.NoError(t, f.m.err)
	f.settle(t, func() bool { return len(f.surface.Rows()) == 1 })
	assert.NotContains(t, f.m.View(), "on my way")
}

func TestModel_Recording(t *testing.T) {
	f := newFixture(t, nil)

	f.exec(t, f.key(tea.KeyCtrlR))
	assert.Equal(t, composer.StateRecording, f.composer.State())
	assert.Contains(t, f.m.View(), "Recording 0:00")

	f.key(tea.KeyCtrlX)
	assert.Equal(t, composer.StateRecordingCancelling, f.composer.State())
	assert.Contains(t, f.m.View(), "Release to cancel")

	f.key(tea.KeyEsc)
	assert.Equal(t, composer.StateRecording, f.composer.State())

	f.key(tea.KeyCtrlX)
	f.exec(t, f.key(tea.KeyCtrlX))
	assert.Equal(t, composer.StateIdle, f.composer.State())
	assert.Empty(t, f.composer.Draft().Staged)
}

func TestModel_ShortRecordingIsDiscarded(t *testing.T) {
	f := newFixture(t, nil)
	f.exec(t, f.key(tea.KeyCtrlR))
	f.exec(t, f.key(tea.KeyCtrlR))
	assert.NoError(t, f.m.err)
	assert.Equal(t, composer.StateIdle, f.composer.State())
	assert.Empty(t, f.composer.Draft().Staged)
}

func TestModel_RecordingNeedsEmptyDraft(t *testing.T) {
	f := newFixture(t, nil)
	f.typeText("a")
	f.exec(t, f.key(tea.KeyCtrlR))
	require.ErrorIs(t, f.m.err, composer.ErrRecordingUnavailable)
	assert.Contains(t, f.m.View(), "recording requires an empty draft")
}

func TestModel_TypingIndicator(t *testing.T) {
	f := newFixture(t, nil)
	require.NoError(t, f.tr.SetRemoteTyping("ann", "Ann", true))
	f.settle(t, func() bool { return f.surface.TypingLine() != "" })
	assert.Contains(t, f.m.View(), "Ann is typing...")
}

func TestModel_LoadMoreWhenNothingOlder(t *testing.T) {
	f := newFixture(t, nil)
	f.loaded(t)
	f.exec(t, f.key(tea.KeyCtrlO))
	assert.NoError(t, f.m.err)
	assert.False(t, f.surface.Loading())
}

func TestModel_QuitStopsBridge(t *testing.T) {
	f := newFixture(t, nil)
	cmd := f.key(tea.KeyCtrlC)
	require.NotNil(t, cmd)
	assert.Nil(t, f.bridge.Listen()())
}

func TestModel_SafeRenderMarkdown(t *testing.T) {
	f := newFixture(t, nil)
	assert.Equal(t, "**plain**", f.m.safeRenderMarkdown("**plain**"), "no renderer keeps text")

	f.m.opts.Markdown = true
	f.m.renderer = f.m.newRenderer(40)
	require.NotNil(t, f.m.renderer)
	out := f.m.safeRenderMarkdown("**bold**")
	assert.Contains(t, out, "bold")
	assert.NotContains(t, out, "**")
}
