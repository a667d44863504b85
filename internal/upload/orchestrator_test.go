package upload

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"propchat/internal/message"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"
)

// fakeStore records calls and fails items whose name is in failNames.
type fakeStore struct {
	calls     atomic.Int32
	delay     time.Duration
	failNames map[string]bool
}

func (s *fakeStore) UploadAttachment(ctx context.Context, d Descriptor, progress func(float64)) (message.Attachment, error) {
	s.calls.Add(1)
	if s.delay > 0 {
		time.Sleep(s.delay)
	}
	progress(0.5)
	if s.failNames[d.Name] {
		return message.Attachment{}, errors.New("server said no")
	}
	progress(1)
	return message.Attachment{Type: d.Type, URI: "https://files.example/" + d.Name, Name: d.Name, Size: d.Size}, nil
}

type denyAll struct{}

func (denyAll) Request(context.Context, Source) error { return errors.New("user refused") }

func image(name string) Descriptor {
	return Descriptor{Type: message.AttachmentImage, URI: "file:///" + name, Name: name, Size: 1024}
}

func waitResult(t *testing.T, task *Task) Result {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	r, err := task.Wait(ctx)
	require.NoError(t, err)
	return r
}

func TestUpload_SingleImageResolves(t *testing.T) {
	defer goleak.VerifyNone(t)
	store := &fakeStore{}
	o := NewOrchestrator(store, nil, Options{})

	task := o.Upload(context.Background(), image("kitchen.jpg"))
	r := waitResult(t, task)
	o.Wait()

	require.Nil(t, r.Failure)
	assert.Equal(t, message.AttachmentImage, r.Attachment.Type)
	assert.Equal(t, "https://files.example/kitchen.jpg", r.Attachment.URI)
	assert.Equal(t, 1.0, task.Progress())
}

func TestUploadImages_AllOrNothing(t *testing.T) {
	defer goleak.VerifyNone(t)
	store := &fakeStore{failNames: map[string]bool{"2.jpg": true}}
	o := NewOrchestrator(store, nil, Options{})

	task := o.Start(context.Background(), SourceLibrary, []Descriptor{image("1.jpg"), image("2.jpg"), image("3.jpg")})
	r := waitResult(t, task)
	o.Wait()

	require.NotNil(t, r.Failure, "one rejected image fails the whole pick")
	assert.True(t, errors.Is(r.Err(), ErrUploadFailed))
	assert.Equal(t, KindUploadFailed, r.Failure.Kind)
	require.NotNil(t, r.Failure.Descriptor)
	assert.Equal(t, "2.jpg", r.Failure.Descriptor.Name)
	assert.Empty(t, r.Attachment.Items, "no partial bundle is surfaced")
	assert.Equal(t, int32(3), store.calls.Load(), "all uploads ran concurrently to completion")
}

func TestUploadImages_BundlePreservesPickOrder(t *testing.T) {
	defer goleak.VerifyNone(t)
	o := NewOrchestrator(&fakeStore{delay: 5 * time.Millisecond}, nil, Options{})

	task := o.Start(context.Background(), SourceLibrary, []Descriptor{image("a.jpg"), image("b.jpg"), image("c.jpg")})
	r := waitResult(t, task)
	o.Wait()

	require.Nil(t, r.Failure)
	assert.Equal(t, message.AttachmentMultipleImages, r.Attachment.Type)
	require.Len(t, r.Attachment.Items, 3)
	assert.Equal(t, []string{"a.jpg", "b.jpg", "c.jpg"},
		[]string{r.Attachment.Items[0].Name, r.Attachment.Items[1].Name, r.Attachment.Items[2].Name})
}

func TestUploadImages_RunConcurrently(t *testing.T) {
	defer goleak.VerifyNone(t)
	o := NewOrchestrator(&fakeStore{delay: 100 * time.Millisecond}, nil, Options{})

	start := time.Now()
	task := o.UploadImages(context.Background(), []Descriptor{image("a"), image("b"), image("c"), image("d")})
	waitResult(t, task)
	o.Wait()

	assert.Less(t, time.Since(start), 350*time.Millisecond)
}

func TestUpload_DocumentSizeGateIsSynchronous(t *testing.T) {
	defer goleak.VerifyNone(t)
	store := &fakeStore{}
	o := NewOrchestrator(store, nil, Options{})

	doc := Descriptor{Type: message.AttachmentDocument, Name: "lease.pdf", Size: 11_000_000}
	task := o.Upload(context.Background(), doc)

	r, done := task.Result()
	require.True(t, done, "size gate resolves before Upload returns")
	require.NotNil(t, r.Failure)
	assert.Equal(t, KindSizeExceeded, r.Failure.Kind)
	assert.True(t, errors.Is(r.Err(), ErrSizeExceeded))
	assert.Equal(t, int32(0), store.calls.Load(), "store must not be called")
}

func TestValidate_LimitIsInclusive(t *testing.T) {
	o := NewOrchestrator(nil, nil, Options{})

	atLimit := Descriptor{Type: message.AttachmentDocument, Size: DefaultMaxDocumentBytes}
	assert.NoError(t, o.Validate(SourceDocument, atLimit))

	over := Descriptor{Type: message.AttachmentDocument, Size: DefaultMaxDocumentBytes + 1}
	assert.Error(t, o.Validate(SourceDocument, over))

	bigImage := Descriptor{Type: message.AttachmentImage, Size: 50 << 20}
	assert.NoError(t, o.Validate(SourceLibrary, bigImage), "size gate is for documents only")
}

func TestRequestPermission_Denied(t *testing.T) {
	o := NewOrchestrator(&fakeStore{}, denyAll{}, Options{})

	err := o.RequestPermission(context.Background(), SourceCamera)
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrPermissionDenied))

	var f *Failure
	require.True(t, errors.As(err, &f))
	assert.Equal(t, SourceCamera, f.Source)
}

func TestStart_EmptyPickIsCancelled(t *testing.T) {
	o := NewOrchestrator(&fakeStore{}, nil, Options{})
	r, done := o.Start(context.Background(), SourceCamera, nil).Result()
	require.True(t, done)
	assert.Equal(t, KindCancelled, r.Failure.Kind)
}

func TestUpload_LocationResolvesWithoutStore(t *testing.T) {
	defer goleak.VerifyNone(t)
	store := &fakeStore{}
	o := NewOrchestrator(store, nil, Options{})

	task := o.Upload(context.Background(), Descriptor{Type: message.AttachmentLocation, Latitude: 52.52, Longitude: 13.405})
	r := waitResult(t, task)
	o.Wait()

	require.Nil(t, r.Failure)
	assert.Equal(t, "geo:52.520000,13.405000", r.Attachment.URI)
	assert.Equal(t, int32(0), store.calls.Load())
}

func TestUpload_IgnoresCallerCancellation(t *testing.T) {
	defer goleak.VerifyNone(t)
	o := NewOrchestrator(&fakeStore{delay: 30 * time.Millisecond}, nil, Options{})

	ctx, cancel := context.WithCancel(context.Background())
	task := o.Upload(ctx, image("late.jpg"))
	cancel()

	r := waitResult(t, task)
	o.Wait()
	assert.Nil(t, r.Failure, "in-flight uploads have no cancellation path")
}

func TestMemoryStore_ReportsProgress(t *testing.T) {
	s := NewMemoryStore(0)

	var mu sync.Mutex
	var seen []float64
	ref, err := s.UploadAttachment(context.Background(), image("x.png"), func(p float64) {
		mu.Lock()
		seen = append(seen, p)
		mu.Unlock()
	})
	require.NoError(t, err)
	assert.Equal(t, []float64{0.25, 0.5, 0.75, 1}, seen)
	assert.Contains(t, ref.URI, "x.png")
	assert.Equal(t, 1, s.Len())
}
