package composer

import (
	"context"
	"strings"
	"time"

	"propchat/internal/message"
	"propchat/internal/metrics"
	"propchat/internal/upload"

	"go.uber.org/zap"
)

// StartRecording begins a voice note. Only allowed with an empty draft and
// an uploader to send the note through.
func (c *Composer) StartRecording(ctx context.Context) error {
	if c.opts.Recorder == nil || c.opts.Uploader == nil {
		return ErrRecordingUnavailable
	}

	c.mu.Lock()
	blocked := c.closed || c.starting || c.draft.Recording != RecordingIdle || strings.TrimSpace(c.draft.Text) != ""
	if !blocked {
		c.starting = true
	}
	c.mu.Unlock()
	if blocked {
		return ErrRecordingUnavailable
	}
	defer func() {
		c.mu.Lock()
		c.starting = false
		c.mu.Unlock()
	}()

	if err := c.opts.Uploader.RequestPermission(ctx, upload.SourceMicrophone); err != nil {
		f := asFailure(upload.SourceMicrophone, err)
		c.opts.Listener.AttachmentFailed(f)
		return err
	}
	if err := c.opts.Recorder.Start(ctx); err != nil {
		return err
	}

	err := c.transition(func(fx *effects) error {
		// the draft may have changed while the recorder was starting
		if c.draft.Recording != RecordingIdle || strings.TrimSpace(c.draft.Text) != "" {
			return ErrRecordingUnavailable
		}
		c.draft.Recording = RecordingActive
		c.draft.RecordingSeconds = 0
		c.draft.Overlay = OverlayNone
		c.startTickerLocked()
		fx.add(func() { c.opts.UI.Cue(CueRecordingStart) })
		return nil
	})
	if err != nil {
		c.opts.Recorder.Cancel()
	}
	return err
}

// ArmCancel moves an active recording into the cancelling sub-state, e.g.
// while the user slides toward the cancel target.
func (c *Composer) ArmCancel() {
	_ = c.transition(func(*effects) error {
		if c.draft.Recording == RecordingActive {
			c.draft.Recording = RecordingCancelling
		}
		return nil
	})
}

// DisarmCancel returns from the cancelling sub-state to recording.
func (c *Composer) DisarmCancel() {
	_ = c.transition(func(*effects) error {
		if c.draft.Recording == RecordingCancelling {
			c.draft.Recording = RecordingActive
		}
		return nil
	})
}

// StopRecording ends the recording. Voice notes longer than the minimum are
// uploaded and staged; shorter ones are discarded silently. Releasing while
// cancelling discards.
func (c *Composer) StopRecording(ctx context.Context) error {
	c.mu.Lock()
	state := c.draft.Recording
	c.mu.Unlock()

	switch state {
	case RecordingCancelling:
		return c.CancelRecording()
	case RecordingIdle:
		return ErrNotRecording
	}

	var (
		seconds int
		done    chan struct{}
	)
	err := c.transition(func(fx *effects) error {
		if c.draft.Recording != RecordingActive {
			return ErrNotRecording
		}
		seconds = c.draft.RecordingSeconds
		done = c.stopTickerLocked()
		c.draft.Recording = RecordingIdle
		c.draft.RecordingSeconds = 0
		fx.add(func() { c.opts.UI.Cue(CueRecordingStop) })
		return nil
	})
	if done != nil {
		<-done
	}
	if err != nil {
		return err
	}

	desc, err := c.opts.Recorder.Stop(ctx)
	if err != nil {
		return err
	}

	if seconds <= c.opts.MinVoiceSeconds {
		metrics.VoiceRecordings.WithLabelValues("too_short").Inc()
		c.log.Debug("voice note discarded", zap.Int("seconds", seconds))
		return nil
	}
	metrics.VoiceRecordings.WithLabelValues("kept").Inc()

	desc.Type = message.AttachmentVoice
	desc.Duration = time.Duration(seconds) * time.Second

	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return ErrClosed
	}
	c.uploading = true
	c.mu.Unlock()

	c.watch(c.opts.Uploader.Upload(ctx, desc))
	return nil
}

// CancelRecording discards the recording regardless of its duration.
func (c *Composer) CancelRecording() error {
	var done chan struct{}
	err := c.transition(func(fx *effects) error {
		if c.draft.Recording == RecordingIdle {
			return ErrNotRecording
		}
		done = c.stopTickerLocked()
		c.draft.Recording = RecordingIdle
		c.draft.RecordingSeconds = 0
		fx.add(func() { c.opts.UI.Cue(CueRecordingCancel) })
		return nil
	})
	if done != nil {
		<-done
	}
	if err != nil {
		return err
	}

	c.opts.Recorder.Cancel()
	metrics.VoiceRecordings.WithLabelValues("cancelled").Inc()
	return nil
}

// RecordingSeconds is the elapsed duration of the current recording.
func (c *Composer) RecordingSeconds() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.draft.RecordingSeconds
}

func (c *Composer) startTickerLocked() {
	c.recGen++
	gen := c.recGen
	stop := make(chan struct{})
	done := make(chan struct{})
	c.tickStop, c.tickDone = stop, done

	interval := c.opts.RecordingTick
	go func() {
		defer close(done)
		t := time.NewTicker(interval)
		defer t.Stop()
		for {
			select {
			case <-stop:
				return
			case <-t.C:
				c.tick(gen)
			}
		}
	}()
}

// stopTickerLocked signals the ticker goroutine and returns a channel that
// closes once it has exited. Wait on it only after releasing the lock.
func (c *Composer) stopTickerLocked() chan struct{} {
	if c.tickStop == nil {
		return nil
	}
	close(c.tickStop)
	done := c.tickDone
	c.tickStop, c.tickDone = nil, nil
	c.recGen++
	return done
}

func (c *Composer) tick(gen uint64) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if gen != c.recGen || c.draft.Recording == RecordingIdle {
		return
	}
	c.draft.RecordingSeconds++
}
