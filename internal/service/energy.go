package service

import (
	"context"
	"fmt"
	"time"

	cfotel "github.com/flourisha/brain/internal/adapter/otel"
	"github.com/flourisha/brain/internal/domain"
	"github.com/flourisha/brain/internal/domain/access"
	"github.com/flourisha/brain/internal/domain/audit"
	"github.com/flourisha/brain/internal/domain/energy"
	"github.com/flourisha/brain/internal/port/messagequeue"
)

// EnergyService records energy readings and summarizes them.
type EnergyService struct {
	Deps
}

// NewEnergyService creates an EnergyService.
func NewEnergyService(deps Deps) *EnergyService {
	return &EnergyService{Deps: deps}
}

// Record validates and appends a reading. Tenant and user default to the caller's.
func (s *EnergyService) Record(ctx context.Context, c access.Claims, req energy.RecordRequest) (*energy.Reading, error) {
	if err := requireClaims(c); err != nil {
		return nil, err
	}
	if req.TenantID == "" {
		req.TenantID = c.TenantID
	}
	if req.UserID == "" {
		req.UserID = c.Subject
	}
	if req.Source == "" {
		req.Source = energy.SourceManual
	}
	if err := req.Validate(); err != nil {
		return nil, err
	}

	r := &energy.Reading{
		TenantID:     req.TenantID,
		UserID:       req.UserID,
		Timestamp:    req.Timestamp,
		EnergyLevel:  req.EnergyLevel,
		FocusQuality: req.FocusQuality,
		Source:       req.Source,
		Notes:        req.Notes,
	}
	if r.Timestamp.IsZero() {
		r.Timestamp = s.now()
	}
	if !access.CanInsertEnergy(r, c) {
		return nil, fmt.Errorf("record reading for %s/%s: %w", r.TenantID, r.UserID, domain.ErrForbidden)
	}
	if err := s.requireTenant(ctx, r.TenantID); err != nil {
		return nil, err
	}

	ctx, span := cfotel.StartMutationSpan(ctx, "energy_reading", r.TenantID)
	defer span.End()

	if err := s.Store.CreateEnergyReading(ctx, r); err != nil {
		return nil, err
	}

	s.Metrics.Count(ctx, cfotel.EnergyReadings, r.TenantID, 1)
	s.Events.Publish(ctx, messagequeue.SubjectEnergyRecorded, r.TenantID, messagequeue.EnergyRecordedPayload{
		Audience:     messagequeue.Audience{TenantID: r.TenantID},
		ReadingID:    r.ID,
		UserID:       r.UserID,
		EnergyLevel:  r.EnergyLevel,
		FocusQuality: string(r.FocusQuality),
		Timestamp:    r.Timestamp,
	})
	return r, nil
}

// Update corrects a reading. Only its author may do so; the change is audited with the
// values before and after.
func (s *EnergyService) Update(ctx context.Context, c access.Claims, id string, req energy.UpdateRequest) (*energy.Reading, error) {
	if err := requireClaims(c); err != nil {
		return nil, err
	}
	prev, err := s.Store.GetEnergyReading(ctx, id)
	if err != nil {
		return nil, err
	}
	if !access.CanReadEnergy(prev, c) {
		return nil, fmt.Errorf("energy reading %s: %w", id, domain.ErrNotFound)
	}
	if !access.CanUpdateEnergy(prev, c) {
		return nil, fmt.Errorf("update energy reading %s: %w", id, domain.ErrForbidden)
	}

	next, err := req.Apply(*prev)
	if err != nil {
		return nil, err
	}
	if err := s.Store.UpdateEnergyReading(ctx, &next); err != nil {
		return nil, err
	}

	s.audit(ctx, c, audit.ActionUpdate, "energy_reading", id, map[string]any{
		"before": prev,
		"after":  next,
	})
	return &next, nil
}

// List returns the user's readings in the caller's tenant within [start, end].
func (s *EnergyService) List(ctx context.Context, c access.Claims, userID string, start, end time.Time) ([]energy.Reading, error) {
	if err := requireClaims(c); err != nil {
		return nil, err
	}
	if userID == "" {
		userID = c.Subject
	}
	rows, err := s.Store.ListEnergyReadings(ctx, c.TenantID, userID, start, end)
	if err != nil {
		return nil, err
	}
	return access.Filter(rows, c, access.CanReadEnergy), nil
}

// AverageForPeriod summarizes the user's readings in the caller's tenant over [start, end]
// inclusive. An empty window yields zero aggregates.
func (s *EnergyService) AverageForPeriod(ctx context.Context, c access.Claims, userID string, start, end time.Time) (energy.PeriodSummary, error) {
	if end.Before(start) {
		return energy.PeriodSummary{}, fmt.Errorf("end before start: %w", domain.ErrValidation)
	}
	ctx, span := cfotel.StartAnalyticsSpan(ctx, "energy_summary", c.TenantID)
	defer span.End()

	rows, err := s.List(ctx, c, userID, start, end)
	if err != nil {
		return energy.PeriodSummary{}, err
	}
	return energy.Summarize(rows, start, end), nil
}
