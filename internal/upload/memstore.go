package upload

import (
	"context"
	"fmt"
	"sync"
	"time"

	"propchat/internal/message"

	"github.com/google/uuid"
)

// MemoryStore is an in-process Store used by the demo CLI and tests.
// It reports progress in steps and keeps every uploaded descriptor.
type MemoryStore struct {
	// Latency is spread across four progress steps.
	Latency time.Duration

	mu       sync.Mutex
	uploaded map[string]Descriptor
}

// NewMemoryStore creates an empty store.
func NewMemoryStore(latency time.Duration) *MemoryStore {
	return &MemoryStore{Latency: latency, uploaded: make(map[string]Descriptor)}
}

func (s *MemoryStore) UploadAttachment(ctx context.Context, d Descriptor, progress func(float64)) (message.Attachment, error) {
	const steps = 4
	for i := 1; i <= steps; i++ {
		if s.Latency > 0 {
			select {
			case <-ctx.Done():
				return message.Attachment{}, ctx.Err()
			case <-time.After(s.Latency / steps):
			}
		}
		if progress != nil {
			progress(float64(i) / steps)
		}
	}

	id := uuid.NewString()
	s.mu.Lock()
	s.uploaded[id] = d
	s.mu.Unlock()

	return message.Attachment{
		Type:     d.Type,
		URI:      fmt.Sprintf("mem://%s/%s", id, d.Name),
		Name:     d.Name,
		Size:     d.Size,
		Width:    d.Width,
		Height:   d.Height,
		Duration: d.Duration,
	}, nil
}

// Len returns the number of stored uploads.
func (s *MemoryStore) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.uploaded)
}
