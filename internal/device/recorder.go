package device

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"propchat/internal/message"
	"propchat/internal/upload"

	"github.com/google/uuid"
)

var ErrNotRecording = errors.New("recorder is not running")

// ClockRecorder stands in for a microphone: the note lasts as long as the
// clock runs between Start and Stop.
type ClockRecorder struct {
	Now func() time.Time

	mu      sync.Mutex
	started time.Time
	active  bool
}

// NewClockRecorder creates a recorder on the wall clock.
func NewClockRecorder() *ClockRecorder {
	return &ClockRecorder{Now: time.Now}
}

func (r *ClockRecorder) Start(ctx context.Context) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.active {
		return errors.New("recorder already running")
	}
	r.started = r.Now()
	r.active = true
	return nil
}

func (r *ClockRecorder) Stop(context.Context) (upload.Descriptor, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if !r.active {
		return upload.Descriptor{}, ErrNotRecording
	}
	r.active = false
	id := uuid.NewString()
	return upload.Descriptor{
		Type:     message.AttachmentVoice,
		URI:      fmt.Sprintf("memory://voice/%s.m4a", id),
		Name:     "voice-" + id[:8] + ".m4a",
		MimeType: "audio/mp4",
		Duration: r.Now().Sub(r.started).Round(time.Second),
	}, nil
}

func (r *ClockRecorder) Cancel() {
	r.mu.Lock()
	r.active = false
	r.mu.Unlock()
}
