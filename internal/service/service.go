// Package service implements the Flourisha use cases on top of the storage port.
// Every operation takes the caller's claims explicitly: reads silently drop rows the
// claims cannot see, and writes the claims may not make fail with domain.ErrForbidden
// before storage is touched.
package service

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	cfotel "github.com/flourisha/brain/internal/adapter/otel"
	"github.com/flourisha/brain/internal/domain"
	"github.com/flourisha/brain/internal/domain/access"
	"github.com/flourisha/brain/internal/domain/audit"
	"github.com/flourisha/brain/internal/port/database"
)

// Deps are the collaborators shared by the domain services. Only Store is required.
type Deps struct {
	Store   database.Store
	Tenants *TenantService
	Events  *EventPublisher
	Metrics *cfotel.Metrics
	Now     func() time.Time
}

func (d *Deps) now() time.Time {
	if d.Now != nil {
		return d.Now().UTC()
	}
	return time.Now().UTC()
}

// requireTenant rejects writes into unknown or disabled tenants.
func (d *Deps) requireTenant(ctx context.Context, tenantID string) error {
	if d.Tenants == nil {
		return nil
	}
	return d.Tenants.RequireActive(ctx, tenantID)
}

// audit appends an audit entry. Failures are logged and never fail the mutation.
func (d *Deps) audit(ctx context.Context, c access.Claims, action, entity, entityID string, details any) {
	e := &audit.Entry{
		TenantID: c.TenantID,
		Actor:    c.Subject,
		Action:   action,
		Entity:   entity,
		EntityID: entityID,
	}
	if details != nil {
		raw, err := json.Marshal(details)
		if err == nil {
			e.Details = raw
		}
	}
	if err := d.Store.AppendAudit(ctx, e); err != nil {
		slog.WarnContext(ctx, "audit append failed", "entity", entity, "entity_id", entityID, "error", err)
	}
}

func requireClaims(c access.Claims) error {
	if !c.Valid() {
		return fmt.Errorf("claims require tenant_id and subject: %w", domain.ErrForbidden)
	}
	return nil
}
