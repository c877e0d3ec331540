// Package database defines the database store port (interface).
package database

import (
	"context"
	"time"

	"github.com/flourisha/brain/internal/domain/apikey"
	"github.com/flourisha/brain/internal/domain/audit"
	"github.com/flourisha/brain/internal/domain/energy"
	"github.com/flourisha/brain/internal/domain/extraction"
	"github.com/flourisha/brain/internal/domain/okr"
	"github.com/flourisha/brain/internal/domain/tenant"
)

// Store is the port interface for persistence. Implementations enforce the uniqueness and
// referential constraints; row-level authorization is applied by the service layer.
type Store interface {
	TenantStore
	EnergyStore
	OKRStore
	TagStore
	ExtractionStore
	APIKeyStore
	AuditStore
}

// TenantStore reads and writes the tenant registry.
type TenantStore interface {
	GetTenant(ctx context.Context, id string) (*tenant.Tenant, error)
	CreateTenant(ctx context.Context, req tenant.CreateRequest) (*tenant.Tenant, error)
	ListTenants(ctx context.Context) ([]tenant.Tenant, error)
}

// EnergyStore persists energy readings.
type EnergyStore interface {
	CreateEnergyReading(ctx context.Context, r *energy.Reading) error
	GetEnergyReading(ctx context.Context, id string) (*energy.Reading, error)
	UpdateEnergyReading(ctx context.Context, r *energy.Reading) error
	// ListEnergyReadings returns the user's readings in the tenant with timestamp in
	// [start, end], oldest first.
	ListEnergyReadings(ctx context.Context, tenantID, userID string, start, end time.Time) ([]energy.Reading, error)
}

// OKRStore persists key results and their progress history.
type OKRStore interface {
	GetKeyResult(ctx context.Context, id string) (*okr.KeyResult, error)
	// ApplyKeyResult locks the row identified by key (if any), runs fn, and persists the
	// returned row and history entry in one transaction. A nil entry appends nothing.
	ApplyKeyResult(ctx context.Context, key okr.Key, fn okr.Mutation) (*okr.KeyResult, *okr.HistoryEntry, error)
	// ListVisibleKeyResults returns rows matching f that are visible to (tenantID, subject)
	// under the personal/workspace/legacy visibility rule.
	ListVisibleKeyResults(ctx context.Context, tenantID, subject string, f okr.Filter) ([]okr.KeyResult, error)
	ListProgressHistory(ctx context.Context, keyResultID string) ([]okr.HistoryEntry, error)
}

// TagStore persists tags and their assignments to key results.
type TagStore interface {
	CreateTag(ctx context.Context, t *okr.Tag) error
	GetTag(ctx context.Context, id string) (*okr.Tag, error)
	ListTags(ctx context.Context, scope okr.TagScope) ([]okr.Tag, error)
	// AssignTag inserts the pair if absent and reports whether a row was inserted.
	AssignTag(ctx context.Context, okrID, tagID string) (bool, error)
	UnassignTag(ctx context.Context, okrID, tagID string) error
	ListTagsForKeyResult(ctx context.Context, okrID string) ([]okr.Tag, error)
}

// ExtractionStore persists extraction feedback, examples, rules and results.
type ExtractionStore interface {
	GetDocument(ctx context.Context, id string) (*extraction.Document, error)
	CreateFeedback(ctx context.Context, f *extraction.Feedback) error
	ListFeedback(ctx context.Context, tenantID, documentID string) ([]extraction.Feedback, error)
	MarkFeedbackForTraining(ctx context.Context, tenantID string, ids []string) (int64, error)

	CreateExample(ctx context.Context, e *extraction.Example) error
	GetExample(ctx context.Context, id string) (*extraction.Example, error)
	ListExamples(ctx context.Context, tenantID string, f extraction.ExampleFilter) ([]extraction.Example, error)
	// RecordExampleUsage applies fn to the locked example row and persists the result.
	RecordExampleUsage(ctx context.Context, id string, fn func(extraction.Example) extraction.Example) (*extraction.Example, error)

	CreateRule(ctx context.Context, r *extraction.Rule) error
	GetRule(ctx context.Context, id string) (*extraction.Rule, error)
	ListRules(ctx context.Context, tenantID string, activeOnly bool) ([]extraction.Rule, error)

	CreateResult(ctx context.Context, r *extraction.Result) error
	// CreateResults stores all of rs atomically, filling their IDs and timestamps.
	CreateResults(ctx context.Context, rs []*extraction.Result) error
	ListResults(ctx context.Context, documentID string) ([]extraction.Result, error)

	// ListReviewCandidates returns the tenant's documents with their failed-validation and
	// pending-feedback counts. Queue admission and ordering happen in the domain.
	ListReviewCandidates(ctx context.Context, tenantID string) ([]extraction.ReviewCandidate, error)
}

// APIKeyStore persists API keys.
type APIKeyStore interface {
	CreateAPIKey(ctx context.Context, k *apikey.APIKey) error
	GetAPIKeyByHash(ctx context.Context, hash string) (*apikey.APIKey, error)
}

// AuditStore appends audit entries.
type AuditStore interface {
	AppendAudit(ctx context.Context, e *audit.Entry) error
}
