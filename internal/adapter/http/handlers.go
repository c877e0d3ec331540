package http

import (
	"context"
	"net/http"
	"time"

	"github.com/flourisha/brain/internal/domain/access"
	"github.com/flourisha/brain/internal/domain/energy"
	"github.com/flourisha/brain/internal/domain/extraction"
	"github.com/flourisha/brain/internal/domain/okr"
)

// EnergyService records and summarizes energy readings.
type EnergyService interface {
	Record(ctx context.Context, c access.Claims, req energy.RecordRequest) (*energy.Reading, error)
	Update(ctx context.Context, c access.Claims, id string, req energy.UpdateRequest) (*energy.Reading, error)
	List(ctx context.Context, c access.Claims, userID string, start, end time.Time) ([]energy.Reading, error)
	AverageForPeriod(ctx context.Context, c access.Claims, userID string, start, end time.Time) (energy.PeriodSummary, error)
}

// OKRService maintains key results and computes the OKR analytics.
type OKRService interface {
	Upsert(ctx context.Context, c access.Claims, req okr.UpsertRequest) (*okr.KeyResult, *okr.HistoryEntry, error)
	Get(ctx context.Context, c access.Claims, id string) (*okr.KeyResult, error)
	List(ctx context.Context, c access.Claims, f okr.Filter) ([]okr.KeyResult, error)
	History(ctx context.Context, c access.Claims, keyResultID string) ([]okr.HistoryEntry, error)
	ObjectiveProgress(ctx context.Context, c access.Claims, quarter, objectiveID string) ([]okr.ObjectiveProgress, error)
	AtRisk(ctx context.Context, c access.Claims, quarter string, days *int) ([]okr.AtRiskKeyResult, error)
	Overview(ctx context.Context, c access.Claims, quarter string) ([]okr.ContextOverview, error)
}

// TagService manages tags and their assignment to key results.
type TagService interface {
	Create(ctx context.Context, c access.Claims, req okr.CreateTagRequest) (*okr.Tag, error)
	List(ctx context.Context, c access.Claims, scope okr.TagScope) ([]okr.Tag, error)
	Assign(ctx context.Context, c access.Claims, okrID, tagID string) (bool, error)
	Unassign(ctx context.Context, c access.Claims, okrID, tagID string) error
	ForKeyResult(ctx context.Context, c access.Claims, okrID string) ([]okr.Tag, error)
}

// ExtractionService records extraction feedback and validation.
type ExtractionService interface {
	RecordCorrection(ctx context.Context, c access.Claims, req extraction.CorrectionRequest) (*extraction.Feedback, error)
	ListFeedback(ctx context.Context, c access.Claims, documentID string) ([]extraction.Feedback, error)
	MarkForTraining(ctx context.Context, c access.Claims, ids []string) (int64, error)
	RecordValidationResult(ctx context.Context, c access.Claims, req extraction.ResultRequest) (*extraction.Result, error)
	RunValidation(ctx context.Context, c access.Claims, documentID string, fields map[string]string) ([]extraction.Result, error)
	ListResults(ctx context.Context, c access.Claims, documentID string) ([]extraction.Result, error)
	ReviewQueue(ctx context.Context, c access.Claims) ([]extraction.ReviewQueueEntry, error)
	CreateExample(ctx context.Context, c access.Claims, req extraction.CreateExampleRequest) (*extraction.Example, error)
	ListExamples(ctx context.Context, c access.Claims, f extraction.ExampleFilter) ([]extraction.Example, error)
	RecordExampleUsage(ctx context.Context, c access.Claims, id string, success bool) (*extraction.Example, error)
	CreateRule(ctx context.Context, c access.Claims, req extraction.CreateRuleRequest) (*extraction.Rule, error)
	ListRules(ctx context.Context, c access.Claims, activeOnly bool) ([]extraction.Rule, error)
}

// HealthChecker reports whether a dependency is reachable.
type HealthChecker func(ctx context.Context) error

// Handlers holds the services the HTTP API delegates to.
type Handlers struct {
	Energy     EnergyService
	OKRs       OKRService
	Tags       TagService
	Extraction ExtractionService

	// Checks are run by /health/ready, keyed by dependency name.
	Checks map[string]HealthChecker
	// Now is the clock for default query windows.
	Now func() time.Time
}

func (h *Handlers) now() time.Time {
	if h.Now != nil {
		return h.Now()
	}
	return time.Now()
}

// Health reports liveness.
func (h *Handlers) Health(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// Ready runs every dependency check and reports 503 if any fails.
func (h *Handlers) Ready(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 3*time.Second)
	defer cancel()

	status := http.StatusOK
	results := make(map[string]string, len(h.Checks))
	for name, check := range h.Checks {
		if err := check(ctx); err != nil {
			results[name] = err.Error()
			status = http.StatusServiceUnavailable
			continue
		}
		results[name] = "ok"
	}
	writeJSON(w, status, map[string]any{"status": http.StatusText(status), "checks": results})
}
