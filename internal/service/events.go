package service

import (
	"context"
	"encoding/json"
	"log/slog"
	"strings"

	cfotel "github.com/flourisha/brain/internal/adapter/otel"
	"github.com/flourisha/brain/internal/port/broadcast"
	"github.com/flourisha/brain/internal/port/messagequeue"
	"github.com/flourisha/brain/internal/resilience"
)

// relaySubjects are the domain event subjects the live relay forwards. Dead-letter
// subjects are deliberately absent.
var relaySubjects = []string{
	messagequeue.SubjectEnergyRecorded,
	messagequeue.SubjectOKRProgress,
	messagequeue.SubjectOKRTagged,
	messagequeue.SubjectExtractionFeedback,
	messagequeue.SubjectExtractionValidation,
}

// EventPublisher emits domain events. With a queue, events go to NATS through the
// circuit breaker and reach clients via the relay; without one they are broadcast
// in-process. Publishing is best effort: failures are logged and counted.
type EventPublisher struct {
	queue   messagequeue.Queue
	breaker *resilience.Breaker
	local   broadcast.Broadcaster
	metrics *cfotel.Metrics
}

// NewEventPublisher creates a publisher. queue and breaker may be nil.
func NewEventPublisher(queue messagequeue.Queue, breaker *resilience.Breaker, local broadcast.Broadcaster, metrics *cfotel.Metrics) *EventPublisher {
	return &EventPublisher{queue: queue, breaker: breaker, local: local, metrics: metrics}
}

// Publish sends payload on subject. The payload must embed messagequeue.Audience.
func (p *EventPublisher) Publish(ctx context.Context, subject, tenantID string, payload any) {
	if p == nil {
		return
	}

	if p.queue == nil {
		if p.local != nil {
			p.local.BroadcastEvent(ctx, strings.TrimPrefix(subject, "flourisha."), payload)
		}
		p.metrics.Count(ctx, cfotel.EventsPublished, tenantID, 1)
		return
	}

	data, err := json.Marshal(payload)
	if err != nil {
		slog.ErrorContext(ctx, "marshal event", "subject", subject, "error", err)
		p.metrics.Count(ctx, cfotel.EventsFailed, tenantID, 1)
		return
	}
	send := func() error { return p.queue.Publish(ctx, subject, data) }
	if p.breaker != nil {
		err = p.breaker.Execute(send)
	} else {
		err = send()
	}
	if err != nil {
		slog.WarnContext(ctx, "event publish failed", "subject", subject, "error", err)
		p.metrics.Count(ctx, cfotel.EventsFailed, tenantID, 1)
		return
	}
	p.metrics.Count(ctx, cfotel.EventsPublished, tenantID, 1)
}

// StartRelay subscribes handler to every domain event subject. It is a no-op without a
// queue. The returned function cancels all subscriptions.
func (p *EventPublisher) StartRelay(ctx context.Context, handler messagequeue.Handler) (func(), error) {
	if p == nil || p.queue == nil {
		return func() {}, nil
	}
	var cancels []func()
	stop := func() {
		for _, c := range cancels {
			c()
		}
	}
	for _, subject := range relaySubjects {
		cancel, err := p.queue.Subscribe(ctx, subject, handler)
		if err != nil {
			stop()
			return nil, err
		}
		cancels = append(cancels, cancel)
	}
	return stop, nil
}
