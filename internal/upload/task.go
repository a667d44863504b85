package upload

import (
	"context"
	"sync"

	"github.com/google/uuid"
)

// Task tracks one pick from start to a terminal Result.
type Task struct {
	ID          string
	Source      Source
	Descriptors []Descriptor

	mu       sync.Mutex
	progress []float64
	result   Result
	done     chan struct{}
}

func newTask(src Source, descs []Descriptor) *Task {
	return &Task{
		ID:          uuid.NewString(),
		Source:      src,
		Descriptors: descs,
		progress:    make([]float64, len(descs)),
		done:        make(chan struct{}),
	}
}

// Progress is the mean completion fraction across all items.
func (t *Task) Progress() float64 {
	t.mu.Lock()
	defer t.mu.Unlock()
	if len(t.progress) == 0 {
		return 0
	}
	var sum float64
	for _, p := range t.progress {
		sum += p
	}
	return sum / float64(len(t.progress))
}

func (t *Task) setProgress(i int, p float64) {
	if p < 0 {
		p = 0
	}
	if p > 1 {
		p = 1
	}
	t.mu.Lock()
	defer t.mu.Unlock()
	if i >= 0 && i < len(t.progress) && p > t.progress[i] {
		t.progress[i] = p
	}
}

// Done is closed once the task has a terminal result.
func (t *Task) Done() <-chan struct{} { return t.done }

// Result returns the terminal result; ok is false while still running.
func (t *Task) Result() (Result, bool) {
	select {
	case <-t.done:
		return t.result, true
	default:
		return Result{}, false
	}
}

// Wait blocks until the task finishes or ctx ends. It does not cancel the
// upload itself.
func (t *Task) Wait(ctx context.Context) (Result, error) {
	select {
	case <-t.done:
		return t.result, nil
	case <-ctx.Done():
		return Result{}, ctx.Err()
	}
}

func (t *Task) finish(r Result) {
	t.mu.Lock()
	if r.Failure == nil {
		for i := range t.progress {
			t.progress[i] = 1
		}
	}
	t.result = r
	t.mu.Unlock()
	close(t.done)
}
