package service

import (
	"context"
	"encoding/json"
	"errors"
	"sort"
	"sync"
	"testing"
	"time"

	"github.com/flourisha/brain/internal/port/messagequeue"
	"github.com/flourisha/brain/internal/resilience"
)

type published struct {
	subject string
	data    []byte
}

type fakeQueue struct {
	mu         sync.Mutex
	publishErr error
	published  []published
	subjects   []string
	cancelled  int
}

func (q *fakeQueue) Publish(_ context.Context, subject string, data []byte) error {
	q.mu.Lock()
	defer q.mu.Unlock()
	if q.publishErr != nil {
		return q.publishErr
	}
	q.published = append(q.published, published{subject, data})
	return nil
}

func (q *fakeQueue) Subscribe(_ context.Context, subject string, _ messagequeue.Handler) (func(), error) {
	q.mu.Lock()
	defer q.mu.Unlock()
	q.subjects = append(q.subjects, subject)
	return func() {
		q.mu.Lock()
		q.cancelled++
		q.mu.Unlock()
	}, nil
}

func (q *fakeQueue) Drain() error      { return nil }
func (q *fakeQueue) Close() error      { return nil }
func (q *fakeQueue) IsConnected() bool { return true }

func TestEventPublisher_LocalBroadcastWithoutQueue(t *testing.T) {
	local := &recordingBroadcaster{}
	p := NewEventPublisher(nil, nil, local, nil)

	p.Publish(context.Background(), messagequeue.SubjectEnergyRecorded, tenant1, messagequeue.EnergyRecordedPayload{
		Audience: messagequeue.Audience{TenantID: tenant1, UserID: "alice"},
	})

	events := local.all()
	if len(events) != 1 || events[0].Type != "energy.recorded" || events[0].Payload["tenant_id"] != tenant1 {
		t.Fatalf("unexpected events %+v", events)
	}
}

func TestEventPublisher_PublishesToQueue(t *testing.T) {
	q := &fakeQueue{}
	local := &recordingBroadcaster{}
	p := NewEventPublisher(q, resilience.NewBreaker("nats", 3, time.Minute), local, nil)

	p.Publish(context.Background(), messagequeue.SubjectOKRTagged, tenant1, messagequeue.OKRTaggedPayload{
		Audience: messagequeue.Audience{TenantID: tenant1}, KeyResultID: "kr", TagID: "tag", Assigned: true,
	})

	if len(local.all()) != 0 {
		t.Fatal("queue-backed publisher must not broadcast locally")
	}
	if len(q.published) != 1 || q.published[0].subject != messagequeue.SubjectOKRTagged {
		t.Fatalf("unexpected publishes %+v", q.published)
	}
	if err := messagequeue.Validate(q.published[0].subject, q.published[0].data); err != nil {
		t.Fatalf("published payload does not validate: %v", err)
	}
	var got messagequeue.OKRTaggedPayload
	if err := json.Unmarshal(q.published[0].data, &got); err != nil || got.TagID != "tag" {
		t.Fatalf("payload = %s, %v", q.published[0].data, err)
	}
}

func TestEventPublisher_FailuresOpenBreaker(t *testing.T) {
	q := &fakeQueue{publishErr: errors.New("nats down")}
	breaker := resilience.NewBreaker("nats", 2, time.Minute)
	p := NewEventPublisher(q, breaker, nil, nil)

	for range 3 {
		p.Publish(context.Background(), messagequeue.SubjectEnergyRecorded, tenant1, messagequeue.Audience{TenantID: tenant1})
	}
	if breaker.State() != resilience.StateOpen {
		t.Fatalf("breaker state = %s, want open", breaker.State())
	}
}

func TestEventPublisher_NilIsNoop(t *testing.T) {
	var p *EventPublisher
	p.Publish(context.Background(), messagequeue.SubjectEnergyRecorded, tenant1, nil)
	stop, err := p.StartRelay(context.Background(), nil)
	if err != nil {
		t.Fatalf("relay: %v", err)
	}
	stop()
}

func TestEventPublisher_StartRelay(t *testing.T) {
	q := &fakeQueue{}
	p := NewEventPublisher(q, nil, nil, nil)

	stop, err := p.StartRelay(context.Background(), func(context.Context, string, []byte) error { return nil })
	if err != nil {
		t.Fatalf("relay: %v", err)
	}
	got := append([]string(nil), q.subjects...)
	sort.Strings(got)
	want := []string{
		messagequeue.SubjectEnergyRecorded,
		messagequeue.SubjectExtractionFeedback,
		messagequeue.SubjectExtractionValidation,
		messagequeue.SubjectOKRProgress,
		messagequeue.SubjectOKRTagged,
	}
	if len(got) != len(want) {
		t.Fatalf("subscribed to %v", got)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("subscribed to %v, want %v", got, want)
		}
	}

	stop()
	if q.cancelled != len(want) {
		t.Fatalf("cancelled %d subscriptions, want %d", q.cancelled, len(want))
	}
}
