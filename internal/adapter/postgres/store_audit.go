package postgres

import (
	"context"

	"github.com/flourisha/brain/internal/domain/audit"
)

func (s *Store) AppendAudit(ctx context.Context, e *audit.Entry) error {
	err := s.pool.QueryRow(ctx,
		`INSERT INTO audit_logs (tenant_id, actor, action, entity, entity_id, details)
		 VALUES ($1, $2, $3, $4, $5, $6)
		 RETURNING id, created_at`,
		e.TenantID, e.Actor, e.Action, e.Entity, e.EntityID, nullJSON(e.Details),
	).Scan(&e.ID, &e.CreatedAt)
	if err != nil {
		return wrapErr(err, "append audit %s %s", e.Entity, e.EntityID)
	}
	return nil
}
