package otel

import (
	"context"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

const meterName = "flourisha"

// Counter names a domain counter.
type Counter int

const (
	EnergyReadings Counter = iota
	KeyResultMutations
	HistoryEntries
	TagAssignments
	FeedbackRecords
	ValidationResults
	EventsPublished
	EventsFailed
	numCounters
)

var counterDefs = [numCounters]struct{ name, desc string }{
	EnergyReadings:     {"flourisha.energy.readings", "Energy readings recorded"},
	KeyResultMutations: {"flourisha.okr.mutations", "Key result inserts and updates"},
	HistoryEntries:     {"flourisha.okr.history_entries", "Progress history entries appended"},
	TagAssignments:     {"flourisha.okr.tag_assignments", "Tag assignments created"},
	FeedbackRecords:    {"flourisha.extraction.feedback", "Extraction corrections recorded"},
	ValidationResults:  {"flourisha.extraction.validation_results", "Validation results recorded"},
	EventsPublished:    {"flourisha.events.published", "Domain events published"},
	EventsFailed:       {"flourisha.events.failed", "Domain events that could not be published"},
}

// Metrics holds the domain metric instruments. A nil *Metrics records nothing.
type Metrics struct {
	counters          [numCounters]metric.Int64Counter
	reviewQueueLength metric.Int64Histogram
}

// NewMetrics creates all metric instruments on the global meter provider.
func NewMetrics() (*Metrics, error) {
	meter := otel.Meter(meterName)
	m := &Metrics{}

	for i, def := range counterDefs {
		ctr, err := meter.Int64Counter(def.name, metric.WithDescription(def.desc))
		if err != nil {
			return nil, err
		}
		m.counters[i] = ctr
	}

	var err error
	m.reviewQueueLength, err = meter.Int64Histogram("flourisha.extraction.review_queue_length",
		metric.WithDescription("Documents in the review queue when built"))
	if err != nil {
		return nil, err
	}
	return m, nil
}

// Count adds n to counter c, tagged with the tenant.
func (m *Metrics) Count(ctx context.Context, c Counter, tenantID string, n int64) {
	if m == nil || c < 0 || c >= numCounters {
		return
	}
	m.counters[c].Add(ctx, n, metric.WithAttributes(attribute.String("tenant_id", tenantID)))
}

// RecordQueueLength records the size of a built review queue.
func (m *Metrics) RecordQueueLength(ctx context.Context, tenantID string, n int) {
	if m == nil {
		return
	}
	m.reviewQueueLength.Record(ctx, int64(n), metric.WithAttributes(attribute.String("tenant_id", tenantID)))
}
