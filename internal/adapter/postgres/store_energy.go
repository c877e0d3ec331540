package postgres

import (
	"context"
	"fmt"
	"time"

	"github.com/flourisha/brain/internal/domain/energy"
)

const energyColumns = `id, tenant_id, user_id, timestamp, energy_level, focus_quality, source, notes, created_at`

func scanEnergyReading(row scannable) (energy.Reading, error) {
	var r energy.Reading
	err := row.Scan(&r.ID, &r.TenantID, &r.UserID, &r.Timestamp, &r.EnergyLevel,
		&r.FocusQuality, &r.Source, &r.Notes, &r.CreatedAt)
	return r, err
}

func (s *Store) CreateEnergyReading(ctx context.Context, r *energy.Reading) error {
	err := s.pool.QueryRow(ctx,
		`INSERT INTO energy_tracking (tenant_id, user_id, timestamp, energy_level, focus_quality, source, notes)
		 VALUES ($1, $2, $3, $4, $5, $6, $7)
		 RETURNING id, created_at`,
		r.TenantID, r.UserID, r.Timestamp, r.EnergyLevel, r.FocusQuality, r.Source, r.Notes,
	).Scan(&r.ID, &r.CreatedAt)
	if err != nil {
		return wrapErr(err, "create energy reading")
	}
	return nil
}

func (s *Store) GetEnergyReading(ctx context.Context, id string) (*energy.Reading, error) {
	r, err := scanEnergyReading(s.pool.QueryRow(ctx,
		`SELECT `+energyColumns+` FROM energy_tracking WHERE id = $1`, id))
	if err != nil {
		return nil, notFoundWrap(err, "get energy reading %s", id)
	}
	return &r, nil
}

func (s *Store) UpdateEnergyReading(ctx context.Context, r *energy.Reading) error {
	tag, err := s.pool.Exec(ctx,
		`UPDATE energy_tracking SET energy_level = $2, focus_quality = $3, notes = $4
		 WHERE id = $1`,
		r.ID, r.EnergyLevel, r.FocusQuality, r.Notes)
	return execExpectOne(tag, err, "update energy reading %s", r.ID)
}

func (s *Store) ListEnergyReadings(ctx context.Context, tenantID, userID string, start, end time.Time) ([]energy.Reading, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT `+energyColumns+` FROM energy_tracking
		 WHERE tenant_id = $1 AND user_id = $2 AND timestamp BETWEEN $3 AND $4
		 ORDER BY timestamp ASC`,
		tenantID, userID, start, end)
	if err != nil {
		return nil, fmt.Errorf("list energy readings: %w", err)
	}
	defer rows.Close()

	var out []energy.Reading
	for rows.Next() {
		r, err := scanEnergyReading(rows)
		if err != nil {
			return nil, fmt.Errorf("scan energy reading: %w", err)
		}
		out = append(out, r)
	}
	return orEmpty(out), rows.Err()
}
