// Package composer owns the chat input box: draft text, reply context,
// attach/emoji overlays and the voice-recording sub-state. It decides when
// a send is valid and turns the draft into an optimistic outbound message.
package composer

import (
	"context"
	"errors"

	"propchat/internal/message"
	"propchat/internal/upload"
)

// State is the externally visible composer state.
type State int

const (
	StateIdle State = iota
	StateComposing
	StateAttachMenuOpen
	StateRecording
	StateRecordingCancelling
)

// String returns the display name for each state
func (s State) String() string {
	names := []string{"Idle", "Composing", "AttachMenuOpen", "Recording", "RecordingCancelling"}
	if int(s) < len(names) {
		return names[s]
	}
	return "Unknown"
}

// Overlay is the single active overlay above the keyboard.
type Overlay int

const (
	OverlayNone Overlay = iota
	OverlayAttachMenu
	OverlayEmojiPicker
)

// RecordingState is the voice recording sub-state.
type RecordingState int

const (
	RecordingIdle RecordingState = iota
	RecordingActive
	RecordingCancelling
)

// Cue names a presentation side effect such as a haptic tap.
type Cue string

const (
	CueSend            Cue = "send"
	CueMenuToggle      Cue = "menu_toggle"
	CueRecordingStart  Cue = "recording_start"
	CueRecordingStop   Cue = "recording_stop"
	CueRecordingCancel Cue = "recording_cancel"
)

var (
	ErrNothingToSend        = errors.New("nothing to send")
	ErrRecordingUnavailable = errors.New("recording requires an empty draft")
	ErrNotRecording         = errors.New("not recording")
	ErrUploadInProgress     = errors.New("an attachment is already uploading")
	ErrClosed               = errors.New("composer closed")
)

// Draft is the composer's transient state. It is destroyed on send or close.
type Draft struct {
	Text             string
	ReplyingTo       *message.ReplyRef
	Overlay          Overlay
	Recording        RecordingState
	RecordingSeconds int
	Staged           []message.Attachment
}

// =============================================================================
// COLLABORATORS
// =============================================================================

// Dispatcher receives the optimistic message on send and hands it to
// Transport.
type Dispatcher interface {
	Dispatch(ctx context.Context, m message.Message)
}

// TypingSink receives local typing transitions.
type TypingSink interface {
	SetTypingStatus(ctx context.Context, typing bool) error
}

// UI is the surrounding presentation layer. None of its effects are
// business logic.
type UI interface {
	DismissKeyboard()
	Cue(c Cue)
}

// Recorder captures voice notes.
type Recorder interface {
	Start(ctx context.Context) error
	// Stop ends the capture and describes the recorded file.
	Stop(ctx context.Context) (upload.Descriptor, error)
	// Cancel ends the capture and discards it.
	Cancel()
}

// Uploader is the part of the upload orchestrator the composer drives.
type Uploader interface {
	RequestPermission(ctx context.Context, src upload.Source) error
	Start(ctx context.Context, src upload.Source, descs []upload.Descriptor) *upload.Task
	Upload(ctx context.Context, d upload.Descriptor) *upload.Task
}

// Listener observes composer outcomes that the UI must surface.
type Listener interface {
	AttachmentStaged(a message.Attachment)
	AttachmentFailed(f *upload.Failure)
	StateChanged(s State)
}

type noopUI struct{}

func (noopUI) DismissKeyboard() {}
func (noopUI) Cue(Cue)          {}

type noopListener struct{}

func (noopListener) AttachmentStaged(message.Attachment) {}
func (noopListener) AttachmentFailed(*upload.Failure)    {}
func (noopListener) StateChanged(State)                  {}
