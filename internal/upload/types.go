// Package upload turns locally picked resources into uploaded attachment
// references. It owns one Task per pick and reports every terminal failure
// as a typed *Failure.
package upload

import (
	"context"
	"errors"
	"fmt"
	"time"

	"propchat/internal/message"
)

// Source is where a pick came from.
type Source string

const (
	SourceLibrary    Source = "library"
	SourceCamera     Source = "camera"
	SourceDocument   Source = "document"
	SourceLocation   Source = "location"
	SourceMicrophone Source = "microphone"
)

// Descriptor is a locally known, not yet uploaded resource.
type Descriptor struct {
	Type      message.AttachmentType
	URI       string
	Name      string
	MimeType  string
	Size      int64
	Width     int
	Height    int
	Duration  time.Duration
	Latitude  float64
	Longitude float64
}

// Store uploads a single resource. progress receives fractions in [0,1].
type Store interface {
	UploadAttachment(ctx context.Context, d Descriptor, progress func(float64)) (message.Attachment, error)
}

// Permissions grants access to a source. A non-nil error means denied.
type Permissions interface {
	Request(ctx context.Context, src Source) error
}

// AllowAll grants every permission.
type AllowAll struct{}

func (AllowAll) Request(context.Context, Source) error { return nil }

// ErrPickCancelled is returned by a Picker when the user dismisses it.
var ErrPickCancelled = errors.New("pick cancelled")

// Picker asks the user for resources from a source.
type Picker interface {
	Pick(ctx context.Context, src Source) ([]Descriptor, error)
}

// =============================================================================
// FAILURES
// =============================================================================

// FailureKind classifies a terminal upload failure.
type FailureKind string

const (
	KindPermissionDenied FailureKind = "permission_denied"
	KindSizeExceeded     FailureKind = "size_exceeded"
	KindUploadFailed     FailureKind = "upload_failed"
	KindCancelled        FailureKind = "cancelled"
)

var (
	ErrPermissionDenied = errors.New("permission denied")
	ErrSizeExceeded     = errors.New("size exceeded")
	ErrUploadFailed     = errors.New("upload failed")
	ErrCancelled        = errors.New("upload cancelled")
)

func (k FailureKind) sentinel() error {
	switch k {
	case KindPermissionDenied:
		return ErrPermissionDenied
	case KindSizeExceeded:
		return ErrSizeExceeded
	case KindCancelled:
		return ErrCancelled
	default:
		return ErrUploadFailed
	}
}

// Failure carries what the caller needs to offer a retry.
type Failure struct {
	Kind   FailureKind
	Source Source
	// Descriptor is the offending item when one can be singled out.
	Descriptor *Descriptor
	Err        error
}

func (f *Failure) Error() string {
	msg := fmt.Sprintf("%s (%s)", f.Kind.sentinel(), f.Source)
	if f.Descriptor != nil && f.Descriptor.Name != "" {
		msg += " " + f.Descriptor.Name
	}
	if f.Err != nil {
		msg += ": " + f.Err.Error()
	}
	return msg
}

func (f *Failure) Unwrap() error { return f.Err }

// Is matches the sentinel for the failure kind.
func (f *Failure) Is(target error) bool { return target == f.Kind.sentinel() }

// Result is the terminal outcome of a Task. Exactly one of Attachment or
// Failure is meaningful.
type Result struct {
	Attachment message.Attachment
	Failure    *Failure
}

// Err returns the failure as an error, or nil.
func (r Result) Err() error {
	if r.Failure == nil {
		return nil
	}
	return r.Failure
}
