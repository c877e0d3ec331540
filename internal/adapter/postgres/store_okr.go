package postgres

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"

	"github.com/jackc/pgx/v5"

	"github.com/flourisha/brain/internal/domain/okr"
)

const keyResultColumns = `id, tenant_id, quarter, objective_id, objective_title, objective_description, owner,
	target_completion_date, visibility, user_id, workspace_id, priority, department,
	key_result_id, key_result_title, key_result_target, key_result_current, key_result_unit,
	status, last_updated, created_at`

// visibleKeyResult is the SQL form of access.CanReadKeyResult; $1 is the tenant, $2 the subject.
const visibleKeyResult = `((visibility = 'personal' AND user_id = $2)
	OR (visibility = 'workspace' AND tenant_id = $1)
	OR (visibility IS NULL AND tenant_id = $1))`

// errLostInsertRace signals that a concurrent transaction created the same key first.
var errLostInsertRace = errors.New("concurrent key result insert")

func scanKeyResult(row scannable) (okr.KeyResult, error) {
	var k okr.KeyResult
	var visibility, userID, workspaceID *string
	err := row.Scan(&k.ID, &k.TenantID, &k.Quarter, &k.ObjectiveID, &k.ObjectiveTitle,
		&k.ObjectiveDescription, &k.Owner, &k.TargetCompletionDate, &visibility, &userID,
		&workspaceID, &k.Priority, &k.Department, &k.KeyResultID, &k.KeyResultTitle,
		&k.Target, &k.Current, &k.Unit, &k.Status, &k.LastUpdated, &k.CreatedAt)
	if err != nil {
		return k, err
	}
	k.Visibility = okr.Visibility(derefString(visibility))
	k.UserID = derefString(userID)
	k.WorkspaceID = derefString(workspaceID)
	return k, nil
}

func (s *Store) GetKeyResult(ctx context.Context, id string) (*okr.KeyResult, error) {
	k, err := scanKeyResult(s.pool.QueryRow(ctx,
		`SELECT `+keyResultColumns+` FROM okr_tracking WHERE id = $1`, id))
	if err != nil {
		return nil, notFoundWrap(err, "get key result %s", id)
	}
	return &k, nil
}

// ApplyKeyResult runs fn against the locked current row and writes the result and its
// history entry atomically. A create that loses a race against a concurrent create of the
// same key is retried once as an update.
func (s *Store) ApplyKeyResult(ctx context.Context, key okr.Key, fn okr.Mutation) (*okr.KeyResult, *okr.HistoryEntry, error) {
	var (
		next  *okr.KeyResult
		entry *okr.HistoryEntry
	)
	attempt := func(tx pgx.Tx) error {
		var prev *okr.KeyResult
		cur, err := scanKeyResult(tx.QueryRow(ctx,
			`SELECT `+keyResultColumns+` FROM okr_tracking
			 WHERE tenant_id = $1 AND quarter = $2 AND objective_id = $3 AND key_result_id = $4
			 FOR UPDATE`,
			key.TenantID, key.Quarter, key.ObjectiveID, key.KeyResultID))
		switch {
		case err == nil:
			prev = &cur
		case errors.Is(err, pgx.ErrNoRows):
		default:
			return wrapErr(err, "lock key result %s", key)
		}

		n, e, err := fn(prev)
		if err != nil {
			return err
		}

		if prev == nil {
			err = insertKeyResult(ctx, tx, n)
		} else {
			n.ID = prev.ID
			err = updateKeyResult(ctx, tx, n)
		}
		if err != nil {
			return err
		}

		if e != nil {
			e.OKRTrackingID = n.ID
			if err := insertHistory(ctx, tx, e); err != nil {
				return err
			}
		}
		next, entry = n, e
		return nil
	}

	err := s.inTx(ctx, attempt)
	if errors.Is(err, errLostInsertRace) {
		err = s.inTx(ctx, attempt)
	}
	if err != nil {
		return nil, nil, fmt.Errorf("apply key result %s: %w", key, err)
	}
	return next, entry, nil
}

func insertKeyResult(ctx context.Context, tx pgx.Tx, k *okr.KeyResult) error {
	err := tx.QueryRow(ctx,
		`INSERT INTO okr_tracking (tenant_id, quarter, objective_id, objective_title, objective_description,
			owner, target_completion_date, visibility, user_id, workspace_id, priority, department,
			key_result_id, key_result_title, key_result_target, key_result_current, key_result_unit,
			status, last_updated, created_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16, $17, $18, $19, $20)
		 ON CONFLICT (tenant_id, quarter, objective_id, key_result_id) DO NOTHING
		 RETURNING id`,
		k.TenantID, k.Quarter, k.ObjectiveID, k.ObjectiveTitle, k.ObjectiveDescription,
		k.Owner, k.TargetCompletionDate, nullIfEmpty(string(k.Visibility)), nullIfEmpty(k.UserID),
		nullIfEmpty(k.WorkspaceID), k.Priority, k.Department,
		k.KeyResultID, k.KeyResultTitle, k.Target, k.Current, k.Unit,
		k.Status, k.LastUpdated, k.CreatedAt,
	).Scan(&k.ID)
	if errors.Is(err, pgx.ErrNoRows) {
		return errLostInsertRace
	}
	if err != nil {
		return wrapErr(err, "insert key result")
	}
	return nil
}

func updateKeyResult(ctx context.Context, tx pgx.Tx, k *okr.KeyResult) error {
	tag, err := tx.Exec(ctx,
		`UPDATE okr_tracking SET objective_title = $2, objective_description = $3, owner = $4,
			target_completion_date = $5, visibility = $6, user_id = $7, workspace_id = $8,
			priority = $9, department = $10, key_result_title = $11, key_result_target = $12,
			key_result_current = $13, key_result_unit = $14, status = $15, last_updated = $16
		 WHERE id = $1`,
		k.ID, k.ObjectiveTitle, k.ObjectiveDescription, k.Owner,
		k.TargetCompletionDate, nullIfEmpty(string(k.Visibility)), nullIfEmpty(k.UserID), nullIfEmpty(k.WorkspaceID),
		k.Priority, k.Department, k.KeyResultTitle, k.Target,
		k.Current, k.Unit, k.Status, k.LastUpdated)
	return execExpectOne(tag, err, "update key result %s", k.ID)
}

func insertHistory(ctx context.Context, tx pgx.Tx, e *okr.HistoryEntry) error {
	err := tx.QueryRow(ctx,
		`INSERT INTO okr_progress_history (okr_tracking_id, previous_value, new_value, change_type, notes, recorded_by, recorded_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7)
		 RETURNING id`,
		e.OKRTrackingID, e.PreviousValue, e.NewValue, e.ChangeType, e.Notes, e.RecordedBy, e.RecordedAt,
	).Scan(&e.ID)
	if err != nil {
		return wrapErr(err, "insert progress history")
	}
	return nil
}

func (s *Store) ListVisibleKeyResults(ctx context.Context, tenantID, subject string, f okr.Filter) ([]okr.KeyResult, error) {
	var sb strings.Builder
	sb.WriteString(`SELECT ` + keyResultColumns + ` FROM okr_tracking WHERE ` + visibleKeyResult)
	args := []any{tenantID, subject}
	add := func(column, value string) {
		if value == "" {
			return
		}
		args = append(args, value)
		sb.WriteString(" AND " + column + " = $" + strconv.Itoa(len(args)))
	}
	add("tenant_id", f.TenantID)
	add("quarter", f.Quarter)
	add("objective_id", f.ObjectiveID)
	add("user_id", f.UserID)
	add("status", string(f.Status))
	sb.WriteString(` ORDER BY quarter, objective_id, key_result_id`)

	rows, err := s.pool.Query(ctx, sb.String(), args...)
	if err != nil {
		return nil, wrapErr(err, "list key results")
	}
	defer rows.Close()

	var out []okr.KeyResult
	for rows.Next() {
		k, err := scanKeyResult(rows)
		if err != nil {
			return nil, fmt.Errorf("scan key result: %w", err)
		}
		out = append(out, k)
	}
	return orEmpty(out), rows.Err()
}

func (s *Store) ListProgressHistory(ctx context.Context, keyResultID string) ([]okr.HistoryEntry, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT id, okr_tracking_id, previous_value, new_value, change_type, notes, recorded_by, recorded_at
		 FROM okr_progress_history WHERE okr_tracking_id = $1
		 ORDER BY recorded_at ASC, id ASC`, keyResultID)
	if err != nil {
		return nil, wrapErr(err, "list progress history %s", keyResultID)
	}
	defer rows.Close()

	var out []okr.HistoryEntry
	for rows.Next() {
		var e okr.HistoryEntry
		if err := rows.Scan(&e.ID, &e.OKRTrackingID, &e.PreviousValue, &e.NewValue,
			&e.ChangeType, &e.Notes, &e.RecordedBy, &e.RecordedAt); err != nil {
			return nil, fmt.Errorf("scan progress history: %w", err)
		}
		out = append(out, e)
	}
	return orEmpty(out), rows.Err()
}
