package main

import (
	"context"
	"strings"
	"sync"
	"time"

	"propchat/internal/message"
	"propchat/internal/transport"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

// peer plays the property manager on the in-memory transport: it
// acknowledges each incoming message, reads it, types for a moment and
// answers.
type peer struct {
	tr    *transport.Memory
	id    string
	name  string
	delay time.Duration
	log   *zap.Logger

	wg sync.WaitGroup
}

var peerReplies = []string{
	"Thanks, I have logged that with maintenance.",
	"Noted. Someone will come by tomorrow morning.",
	"Got it, I will check and get back to you.",
}

// welcome is the conversation the demo starts from, oldest first.
func welcome(peerID, peerName string, now time.Time) []message.Message {
	day := now.Add(-26 * time.Hour)
	lines := []string{
		"Hi! I manage the building. Message me here about repairs, parcels or anything else.",
		"Quiet hours are **10pm to 7am**.",
	}
	out := make([]message.Message, len(lines))
	for i, l := range lines {
		out[i] = message.Message{
			ID:         uuid.NewString(),
			SenderID:   peerID,
			SenderName: peerName,
			Content:    l,
			Timestamp:  day.Add(time.Duration(i) * time.Minute).UTC().Format(time.RFC3339),
			Status:     message.StatusRead,
		}
	}
	return out
}

// run consumes events until ctx ends or the transport closes. Replies run on
// their own goroutines so the subscription keeps draining; callers
// unsubscribe and then wait on wg.
func (p *peer) run(ctx context.Context, events <-chan transport.Event) error {
	for {
		select {
		case <-ctx.Done():
			return nil
		case ev, ok := <-events:
			if !ok {
				return nil
			}
			if ev.Kind != transport.EventMessage || ev.Message.SenderID == p.id {
				continue
			}
			m := ev.Message
			p.wg.Add(1)
			go func() {
				defer p.wg.Done()
				p.respond(ctx, m)
			}()
		}
	}
}

func (p *peer) respond(ctx context.Context, m message.Message) {
	step := func(d time.Duration) bool {
		select {
		case <-ctx.Done():
			return false
		case <-time.After(d):
			return true
		}
	}

	if !step(p.delay) {
		return
	}
	if err := p.tr.Advance(m.ID, message.StatusDelivered); err != nil {
		p.log.Debug("peer gave up", zap.String("id", m.ID), zap.Error(err))
		return
	}
	if !step(p.delay) {
		return
	}
	_ = p.tr.Advance(m.ID, message.StatusRead)
	_ = p.tr.SetRemoteTyping(p.id, p.name, true)
	if !step(3 * p.delay) {
		_ = p.tr.SetRemoteTyping(p.id, p.name, false)
		return
	}
	_ = p.tr.SetRemoteTyping(p.id, p.name, false)

	ref := m.Snapshot()
	reply := message.Message{
		ID:         uuid.NewString(),
		SenderID:   p.id,
		SenderName: p.name,
		Content:    p.answer(m),
		Timestamp:  time.Now().UTC().Format(time.RFC3339Nano),
		Status:     message.StatusDelivered,
		ReplyTo:    &ref,
	}
	if err := p.tr.Inject(reply); err != nil {
		p.log.Debug("peer reply dropped", zap.Error(err))
	}
}

func (p *peer) answer(m message.Message) string {
	if strings.TrimSpace(m.Content) == "" {
		return "Thanks for the attachment, I will take a look."
	}
	return peerReplies[len(m.Content)%len(peerReplies)]
}
