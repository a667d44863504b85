package conversation

import (
	"context"
	"sync"

	"propchat/internal/composer"
	"propchat/internal/logging"
	"propchat/internal/message"
	"propchat/internal/metrics"
	"propchat/internal/transport"

	"go.uber.org/zap"
)

// Outbox hands composed messages to Transport. The optimistic message is
// shown immediately; a failed send marks it failed. There is no retry.
type Outbox struct {
	surface   *Surface
	transport transport.Transport
	log       *zap.Logger
	wg        sync.WaitGroup
}

var _ composer.Dispatcher = (*Outbox)(nil)

// NewOutbox creates an outbox feeding s and t.
func NewOutbox(s *Surface, t transport.Transport, log *zap.Logger) *Outbox {
	if log == nil {
		log = logging.Get(logging.CategoryConversation)
	}
	return &Outbox{surface: s, transport: t, log: log}
}

// Dispatch implements composer.Dispatcher. It never blocks on the network.
func (o *Outbox) Dispatch(ctx context.Context, m message.Message) {
	o.surface.add(m)

	out := message.FromMessage(m)
	o.wg.Add(1)
	go func() {
		defer o.wg.Done()
		// the send outlives the screen that started it
		err := o.transport.SendMessage(context.WithoutCancel(ctx), out)
		if err == nil {
			metrics.SendResults.WithLabelValues("ok").Inc()
			return
		}

		metrics.SendResults.WithLabelValues("failed").Inc()
		o.log.Warn("send failed", zap.String("client_token", m.ClientToken), zap.Error(err))
		o.surface.applyStatus(transport.StatusUpdate{
			ID:          m.ID,
			ClientToken: m.ClientToken,
			Status:      message.StatusFailed,
		})
	}()
}

// Wait blocks until every dispatched send has returned.
func (o *Outbox) Wait() {
	o.wg.Wait()
}
