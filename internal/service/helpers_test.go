package service

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"testing"
	"time"
)

const (
	tenant1        = "11111111-1111-1111-1111-111111111111"
	tenant2        = "22222222-2222-2222-2222-222222222222"
	tenantDisabled = "33333333-3333-3333-3333-333333333333"
)

var testNow = time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

type recordedEvent struct {
	Type    string
	Payload map[string]any
}

// recordingBroadcaster captures events published without a queue.
type recordingBroadcaster struct {
	mu     sync.Mutex
	events []recordedEvent
}

func (b *recordingBroadcaster) BroadcastEvent(_ context.Context, eventType string, payload any) {
	raw, _ := json.Marshal(payload)
	var m map[string]any
	_ = json.Unmarshal(raw, &m)
	b.mu.Lock()
	defer b.mu.Unlock()
	b.events = append(b.events, recordedEvent{Type: eventType, Payload: m})
}

func (b *recordingBroadcaster) all() []recordedEvent {
	b.mu.Lock()
	defer b.mu.Unlock()
	return append([]recordedEvent(nil), b.events...)
}

type testEnv struct {
	store  *fakeStore
	events *recordingBroadcaster
	deps   Deps
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()
	store := newFakeStore()
	store.addTenant(tenant1, true)
	store.addTenant(tenant2, true)
	store.addTenant(tenantDisabled, false)

	events := &recordingBroadcaster{}
	return &testEnv{
		store:  store,
		events: events,
		deps: Deps{
			Store:   store,
			Tenants: NewTenantService(store, nil, 0),
			Events:  NewEventPublisher(nil, nil, events, nil),
			Now:     func() time.Time { return testNow },
		},
	}
}

func wantErr(t *testing.T, err, target error) {
	t.Helper()
	if !errors.Is(err, target) {
		t.Fatalf("expected %v, got %v", target, err)
	}
}
