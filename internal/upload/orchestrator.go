package upload

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"propchat/internal/logging"
	"propchat/internal/message"
	"propchat/internal/metrics"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

// DefaultMaxDocumentBytes is the largest document accepted for upload (10 MiB).
const DefaultMaxDocumentBytes int64 = 10 << 20

// Options configure an Orchestrator.
type Options struct {
	MaxDocumentBytes int64
	Logger           *zap.Logger
}

// Orchestrator runs uploads against a Store.
//
// Uploads are detached from the caller's cancellation: once started they
// run to completion. There is no cancel or retry path for an in-flight
// upload; the user re-invokes the pick instead.
type Orchestrator struct {
	store  Store
	perms  Permissions
	maxDoc int64
	log    *zap.Logger

	wg sync.WaitGroup
}

// NewOrchestrator creates an orchestrator. A nil Permissions grants all.
func NewOrchestrator(store Store, perms Permissions, opts Options) *Orchestrator {
	if perms == nil {
		perms = AllowAll{}
	}
	if opts.MaxDocumentBytes <= 0 {
		opts.MaxDocumentBytes = DefaultMaxDocumentBytes
	}
	if opts.Logger == nil {
		opts.Logger = logging.Get(logging.CategoryUpload)
	}
	return &Orchestrator{
		store:  store,
		perms:  perms,
		maxDoc: opts.MaxDocumentBytes,
		log:    opts.Logger,
	}
}

// RequestPermission asks for access to src and maps a refusal to a
// permission_denied Failure.
func (o *Orchestrator) RequestPermission(ctx context.Context, src Source) error {
	if err := o.perms.Request(ctx, src); err != nil {
		o.log.Info("permission denied", zap.String("source", string(src)), zap.Error(err))
		metrics.UploadResults.WithLabelValues(string(src), string(KindPermissionDenied)).Inc()
		return &Failure{Kind: KindPermissionDenied, Source: src, Err: err}
	}
	return nil
}

// Validate applies local, I/O-free checks to a descriptor.
func (o *Orchestrator) Validate(src Source, d Descriptor) error {
	if d.Type == message.AttachmentDocument && d.Size > o.maxDoc {
		dd := d
		return &Failure{
			Kind:       KindSizeExceeded,
			Source:     src,
			Descriptor: &dd,
			Err:        fmt.Errorf("%d bytes exceeds limit of %d", d.Size, o.maxDoc),
		}
	}
	return nil
}

// Start uploads the result of one pick. Several library images become a
// single multiple_images bundle; anything else is uploaded on its own.
func (o *Orchestrator) Start(ctx context.Context, src Source, descs []Descriptor) *Task {
	if src == SourceLibrary && len(descs) > 1 {
		return o.UploadImages(ctx, descs)
	}
	if len(descs) == 0 {
		t := newTask(src, nil)
		t.finish(Result{Failure: &Failure{Kind: KindCancelled, Source: src, Err: ErrPickCancelled}})
		return t
	}
	return o.upload(ctx, src, descs[0])
}

// Upload starts a single-item upload and returns immediately. A descriptor
// that fails validation yields an already finished task and the store is
// never called.
func (o *Orchestrator) Upload(ctx context.Context, d Descriptor) *Task {
	return o.upload(ctx, sourceFor(d.Type), d)
}

func (o *Orchestrator) upload(ctx context.Context, src Source, d Descriptor) *Task {
	t := newTask(src, []Descriptor{d})

	if err := o.Validate(src, d); err != nil {
		o.fail(t, err)
		return t
	}

	o.spawn(ctx, t, func(ctx context.Context) Result {
		ref, err := o.uploadOne(ctx, d, func(p float64) { t.setProgress(0, p) })
		if err != nil {
			return Result{Failure: o.asFailure(src, &d, err)}
		}
		return Result{Attachment: ref}
	})
	return t
}

// UploadImages uploads images concurrently and resolves only when all of
// them have. If any one fails the whole pick fails; a partial bundle is
// never produced.
func (o *Orchestrator) UploadImages(ctx context.Context, descs []Descriptor) *Task {
	t := newTask(SourceLibrary, descs)

	for _, d := range descs {
		if err := o.Validate(SourceLibrary, d); err != nil {
			o.fail(t, err)
			return t
		}
	}

	o.spawn(ctx, t, func(ctx context.Context) Result {
		refs := make([]message.Attachment, len(descs))

		var g errgroup.Group
		for i, d := range descs {
			g.Go(func() error {
				ref, err := o.uploadOne(ctx, d, func(p float64) { t.setProgress(i, p) })
				if err != nil {
					return o.asFailure(SourceLibrary, &d, err)
				}
				refs[i] = ref
				return nil
			})
		}
		if err := g.Wait(); err != nil {
			var f *Failure
			if !errors.As(err, &f) {
				f = &Failure{Kind: KindUploadFailed, Source: SourceLibrary, Err: err}
			}
			return Result{Failure: f}
		}

		return Result{Attachment: message.Attachment{
			Type:  message.AttachmentMultipleImages,
			Items: refs,
		}}
	})
	return t
}

// Wait blocks until every spawned upload has finished.
func (o *Orchestrator) Wait() {
	o.wg.Wait()
}

func (o *Orchestrator) spawn(ctx context.Context, t *Task, run func(context.Context) Result) {
	detached := context.WithoutCancel(ctx)
	o.wg.Add(1)
	go func() {
		defer o.wg.Done()
		start := time.Now()
		r := run(detached)
		metrics.UploadDuration.WithLabelValues(string(t.Source)).Observe(time.Since(start).Seconds())
		if r.Failure != nil {
			o.fail(t, r.Failure)
			return
		}
		metrics.UploadResults.WithLabelValues(string(t.Source), "uploaded").Inc()
		o.log.Debug("upload finished",
			zap.String("task", t.ID),
			zap.String("source", string(t.Source)),
			zap.Int("items", len(t.Descriptors)))
		t.finish(r)
	}()
}

func (o *Orchestrator) fail(t *Task, err error) {
	f := o.asFailure(t.Source, nil, err)
	metrics.UploadResults.WithLabelValues(string(t.Source), string(f.Kind)).Inc()
	o.log.Info("upload failed",
		zap.String("task", t.ID),
		zap.String("source", string(t.Source)),
		zap.String("kind", string(f.Kind)),
		zap.Error(f.Err))
	t.finish(Result{Failure: f})
}

func (o *Orchestrator) uploadOne(ctx context.Context, d Descriptor, progress func(float64)) (message.Attachment, error) {
	if d.Type == message.AttachmentLocation {
		// A location has no payload to upload; it resolves locally.
		progress(1)
		return message.Attachment{
			Type: message.AttachmentLocation,
			URI:  fmt.Sprintf("geo:%.6f,%.6f", d.Latitude, d.Longitude),
			Name: d.Name,
		}, nil
	}
	if o.store == nil {
		return message.Attachment{}, errors.New("no attachment store configured")
	}
	ref, err := o.store.UploadAttachment(ctx, d, progress)
	if err != nil {
		return message.Attachment{}, err
	}
	if ref.Type == "" {
		ref.Type = d.Type
	}
	if ref.Name == "" {
		ref.Name = d.Name
	}
	return ref, nil
}

func (o *Orchestrator) asFailure(src Source, d *Descriptor, err error) *Failure {
	var f *Failure
	if errors.As(err, &f) {
		return f
	}
	kind := KindUploadFailed
	if errors.Is(err, context.Canceled) || errors.Is(err, ErrPickCancelled) {
		kind = KindCancelled
	}
	var dd *Descriptor
	if d != nil {
		cp := *d
		dd = &cp
	}
	return &Failure{Kind: kind, Source: src, Descriptor: dd, Err: err}
}

func sourceFor(t message.AttachmentType) Source {
	switch t {
	case message.AttachmentCamera:
		return SourceCamera
	case message.AttachmentDocument:
		return SourceDocument
	case message.AttachmentLocation:
		return SourceLocation
	case message.AttachmentVoice:
		return SourceMicrophone
	default:
		return SourceLibrary
	}
}
