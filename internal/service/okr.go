package service

import (
	"context"
	"fmt"

	cfotel "github.com/flourisha/brain/internal/adapter/otel"
	"github.com/flourisha/brain/internal/domain"
	"github.com/flourisha/brain/internal/domain/access"
	"github.com/flourisha/brain/internal/domain/audit"
	"github.com/flourisha/brain/internal/domain/okr"
	"github.com/flourisha/brain/internal/port/messagequeue"
)

// OKRService maintains key results, their progress history, and the OKR analytics.
type OKRService struct {
	Deps
	atRiskDays int
}

// NewOKRService creates an OKRService. atRiskDays is the default deadline window for
// AtRisk; values <= 0 fall back to okr.DefaultAtRiskDays.
func NewOKRService(deps Deps, atRiskDays int) *OKRService {
	if atRiskDays <= 0 {
		atRiskDays = okr.DefaultAtRiskDays
	}
	return &OKRService{Deps: deps, atRiskDays: atRiskDays}
}

// Upsert creates or updates the key result identified by req.Key and, when current,
// status or target changed, appends a progress history entry in the same transaction.
// The caller must be able to write both the stored row and the row it becomes.
func (s *OKRService) Upsert(ctx context.Context, c access.Claims, req okr.UpsertRequest) (*okr.KeyResult, *okr.HistoryEntry, error) {
	if err := requireClaims(c); err != nil {
		return nil, nil, err
	}
	if req.TenantID == "" {
		req.TenantID = c.TenantID
	}
	if err := req.Key.Validate(); err != nil {
		return nil, nil, err
	}
	if err := s.requireTenant(ctx, req.TenantID); err != nil {
		return nil, nil, err
	}

	ctx, span := cfotel.StartMutationSpan(ctx, "key_result", req.TenantID)
	defer span.End()

	now := s.now()
	created := false
	mutate := func(prev *okr.KeyResult) (*okr.KeyResult, *okr.HistoryEntry, error) {
		if prev != nil && !access.CanUpdateKeyResult(prev, c) {
			return nil, nil, fmt.Errorf("update key result %s: %w", req.Key, domain.ErrForbidden)
		}
		next, err := okr.Merge(prev, &req, now)
		if err != nil {
			return nil, nil, err
		}
		allowed := access.CanInsertKeyResult
		if prev != nil {
			allowed = access.CanUpdateKeyResult
		}
		if !allowed(&next, c) {
			return nil, nil, fmt.Errorf("write key result %s: %w", req.Key, domain.ErrForbidden)
		}
		created = prev == nil
		return &next, okr.Diff(prev, &next, c.Subject, req.Notes, now), nil
	}

	kr, entry, err := s.Store.ApplyKeyResult(ctx, req.Key, mutate)
	if err != nil {
		return nil, nil, err
	}

	s.Metrics.Count(ctx, cfotel.KeyResultMutations, kr.TenantID, 1)
	action := audit.ActionUpdate
	if created {
		action = audit.ActionCreate
	}
	s.audit(ctx, c, action, "key_result", kr.ID, req)

	if entry != nil {
		s.Metrics.Count(ctx, cfotel.HistoryEntries, kr.TenantID, 1)
		s.Events.Publish(ctx, messagequeue.SubjectOKRProgress, kr.TenantID, messagequeue.OKRProgressPayload{
			Audience:      keyResultAudience(kr),
			KeyResultID:   kr.ID,
			Quarter:       kr.Quarter,
			ObjectiveID:   kr.ObjectiveID,
			ChangeType:    string(entry.ChangeType),
			PreviousValue: entry.PreviousValue,
			NewValue:      entry.NewValue,
			ProgressPct:   domain.Round2(kr.ProgressPercent()),
			Status:        string(kr.Status),
		})
	}
	return kr, entry, nil
}

// Get returns a key result by id. Rows the caller cannot see are reported as not found.
func (s *OKRService) Get(ctx context.Context, c access.Claims, id string) (*okr.KeyResult, error) {
	kr, err := s.Store.GetKeyResult(ctx, id)
	if err != nil {
		return nil, err
	}
	if !access.CanReadKeyResult(kr, c) {
		return nil, fmt.Errorf("key result %s: %w", id, domain.ErrNotFound)
	}
	return kr, nil
}

// List returns the key results matching f that the caller can see.
func (s *OKRService) List(ctx context.Context, c access.Claims, f okr.Filter) ([]okr.KeyResult, error) {
	if !c.Valid() {
		return []okr.KeyResult{}, nil
	}
	rows, err := s.Store.ListVisibleKeyResults(ctx, c.TenantID, c.Subject, f)
	if err != nil {
		return nil, err
	}
	return access.Filter(rows, c, access.CanReadKeyResult), nil
}

// History returns a key result's progress history, oldest first. It is visible iff the
// key result is.
func (s *OKRService) History(ctx context.Context, c access.Claims, keyResultID string) ([]okr.HistoryEntry, error) {
	kr, err := s.Get(ctx, c, keyResultID)
	if err != nil {
		return nil, err
	}
	if !access.CanReadHistory(kr, c) {
		return []okr.HistoryEntry{}, nil
	}
	return s.Store.ListProgressHistory(ctx, kr.ID)
}

// ObjectiveProgress summarizes the objectives of the caller's tenant in quarter, or only
// objectiveID when set.
func (s *OKRService) ObjectiveProgress(ctx context.Context, c access.Claims, quarter, objectiveID string) ([]okr.ObjectiveProgress, error) {
	if quarter == "" {
		return nil, fmt.Errorf("quarter is required: %w", domain.ErrValidation)
	}
	ctx, span := cfotel.StartAnalyticsSpan(ctx, "objective_progress", c.TenantID)
	defer span.End()

	rows, err := s.List(ctx, c, okr.Filter{TenantID: c.TenantID, Quarter: quarter, ObjectiveID: objectiveID})
	if err != nil {
		return nil, err
	}
	return okr.CalculateObjectiveProgress(rows), nil
}

// AtRisk returns the caller's tenant's key results in quarter (all quarters when empty)
// due within days of now and below the progress threshold. A nil days uses the
// configured default; zero only matches deadlines that are already due.
func (s *OKRService) AtRisk(ctx context.Context, c access.Claims, quarter string, days *int) ([]okr.AtRiskKeyResult, error) {
	window := s.atRiskDays
	if days != nil {
		if *days < 0 {
			return nil, fmt.Errorf("days must not be negative: %w", domain.ErrValidation)
		}
		window = *days
	}
	ctx, span := cfotel.StartAnalyticsSpan(ctx, "at_risk", c.TenantID)
	defer span.End()

	rows, err := s.List(ctx, c, okr.Filter{TenantID: c.TenantID, Quarter: quarter})
	if err != nil {
		return nil, err
	}
	out := okr.FindAtRisk(rows, s.now(), window)
	if out == nil {
		out = []okr.AtRiskKeyResult{}
	}
	return out, nil
}

// Overview summarizes the caller's own key results per context (Personal or tenant).
func (s *OKRService) Overview(ctx context.Context, c access.Claims, quarter string) ([]okr.ContextOverview, error) {
	ctx, span := cfotel.StartAnalyticsSpan(ctx, "overview", c.TenantID)
	defer span.End()

	rows, err := s.List(ctx, c, okr.Filter{UserID: c.Subject, Quarter: quarter})
	if err != nil {
		return nil, err
	}
	return okr.Overview(rows, c.Subject, quarter), nil
}

// keyResultAudience addresses events about kr to the clients that can read it.
func keyResultAudience(kr *okr.KeyResult) messagequeue.Audience {
	aud := messagequeue.Audience{TenantID: kr.TenantID}
	if kr.Visibility == okr.VisibilityPersonal {
		aud.UserID = kr.UserID
	}
	return aud
}
