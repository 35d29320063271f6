package events

import (
	"context"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/MrJamesThe3rd/ledger/internal/observability"
)

// Dispatcher is the Publisher used by the services. Each event is sent on
// its own goroutine, detached from the caller's cancellation and bounded by
// timeout.
type Dispatcher struct {
	sender  Sender
	trigger TriggerType
	timeout time.Duration
	logger  *zap.Logger
	metrics *observability.Metrics
	wg      sync.WaitGroup
}

func NewDispatcher(sender Sender, trigger TriggerType, timeout time.Duration, logger *zap.Logger, metrics *observability.Metrics) *Dispatcher {
	return &Dispatcher{
		sender:  sender,
		trigger: trigger,
		timeout: timeout,
		logger:  logger,
		metrics: metrics,
	}
}

func (d *Dispatcher) Publish(ctx context.Context, eventType Type, payload Payload) {
	e := NewEvent(ctx, eventType, d.trigger, payload)

	d.wg.Add(1)

	go func() {
		defer d.wg.Done()

		sendCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), d.timeout)
		defer cancel()

		if err := d.sender.Send(sendCtx, e); err != nil {
			d.metrics.IncrEvent(string(eventType), "failed")
			d.logger.Warn("publishing event failed",
				zap.String("event_type", string(eventType)),
				zap.Stringer("message_id", e.MessageID),
				zap.Error(err),
			)

			return
		}

		d.metrics.IncrEvent(string(eventType), "sent")
		d.logger.Debug("event published",
			zap.String("event_type", string(eventType)),
			zap.Stringer("message_id", e.MessageID),
		)
	}()
}

// Wait blocks until in-flight events are sent or ctx is done.
func (d *Dispatcher) Wait(ctx context.Context) error {
	done := make(chan struct{})

	go func() {
		d.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// LogSender writes events to the log instead of a broker.
type LogSender struct {
	Logger *zap.Logger
}

func (s LogSender) Send(_ context.Context, e Event) error {
	s.Logger.Info("domain event",
		zap.String("event_type", string(e.EventType)),
		zap.Stringer("message_id", e.MessageID),
		zap.String("recipient", e.Recipient),
		zap.Any("payload", e.Payload),
	)

	return nil
}
