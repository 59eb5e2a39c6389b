package service

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/noah-isme/school-docs-api/internal/models"
	"github.com/noah-isme/school-docs-api/pkg/jobs"
)

// EventHandler consumes accepted lifecycle events. Handlers are read-only
// observers; they never originate mutations.
type EventHandler interface {
	HandleEvent(ctx context.Context, event models.LifecycleEvent) error
}

// EventDispatcher fans lifecycle events out to handlers on a background
// queue. Publishing never blocks or fails the triggering mutation.
type EventDispatcher struct {
	queue    *jobs.Queue
	handlers []EventHandler
	logger   *zap.Logger
}

// NewEventDispatcher constructs a dispatcher over the given handlers.
func NewEventDispatcher(handlers []EventHandler, cfg jobs.QueueConfig, logger *zap.Logger) *EventDispatcher {
	if logger == nil {
		logger = zap.NewNop()
	}
	d := &EventDispatcher{handlers: handlers, logger: logger}
	cfg.Logger = logger
	d.queue = jobs.NewQueue("lifecycle-events", d.dispatch, cfg)
	return d
}

// Start begins queue consumption.
func (d *EventDispatcher) Start(ctx context.Context) {
	d.queue.Start(ctx)
}

// Stop drains the dispatcher.
func (d *EventDispatcher) Stop() {
	d.queue.Stop()
}

// Publish enqueues an event. Failures are logged and swallowed: fan-out is
// best-effort relative to the committed transition.
func (d *EventDispatcher) Publish(event models.LifecycleEvent) {
	err := d.queue.Enqueue(jobs.Job{
		ID:      uuid.NewString(),
		Type:    string(event.Type),
		Payload: event,
	})
	if err != nil {
		d.logger.Error("failed to enqueue lifecycle event",
			zap.String("event", string(event.Type)),
			zap.String("request_id", event.RequestID),
			zap.Error(err),
		)
	}
}

func (d *EventDispatcher) dispatch(ctx context.Context, job jobs.Job) error {
	event, ok := job.Payload.(models.LifecycleEvent)
	if !ok {
		return fmt.Errorf("unexpected payload type %T", job.Payload)
	}
	var firstErr error
	for _, h := range d.handlers {
		if err := h.HandleEvent(ctx, event); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	return firstErr
}
