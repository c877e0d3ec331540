package postgres

import (
	"context"
	"fmt"

	"github.com/flourisha/brain/internal/domain/okr"
)

const tagColumns = `id, user_id, workspace_id, tenant_id, name, color, description, created_at`

func scanTag(row scannable) (okr.Tag, error) {
	var t okr.Tag
	var userID, workspaceID, tenantID *string
	if err := row.Scan(&t.ID, &userID, &workspaceID, &tenantID, &t.Name, &t.Color, &t.Description, &t.CreatedAt); err != nil {
		return t, err
	}
	t.UserID = derefString(userID)
	t.WorkspaceID = derefString(workspaceID)
	t.TenantID = derefString(tenantID)
	return t, nil
}

func (s *Store) CreateTag(ctx context.Context, t *okr.Tag) error {
	err := s.pool.QueryRow(ctx,
		`INSERT INTO okr_tags (user_id, workspace_id, tenant_id, name, color, description)
		 VALUES ($1, $2, $3, $4, $5, $6)
		 RETURNING id, created_at`,
		nullIfEmpty(t.UserID), nullIfEmpty(t.WorkspaceID), nullIfEmpty(t.TenantID),
		t.Name, t.Color, t.Description,
	).Scan(&t.ID, &t.CreatedAt)
	if err != nil {
		return wrapErr(err, "create tag %q", t.Name)
	}
	return nil
}

func (s *Store) GetTag(ctx context.Context, id string) (*okr.Tag, error) {
	t, err := scanTag(s.pool.QueryRow(ctx, `SELECT `+tagColumns+` FROM okr_tags WHERE id = $1`, id))
	if err != nil {
		return nil, notFoundWrap(err, "get tag %s", id)
	}
	return &t, nil
}

func (s *Store) ListTags(ctx context.Context, scope okr.TagScope) ([]okr.Tag, error) {
	query := `SELECT ` + tagColumns + ` FROM okr_tags WHERE user_id = $1 ORDER BY name`
	arg := scope.UserID
	if scope.UserID == "" {
		query = `SELECT ` + tagColumns + ` FROM okr_tags WHERE workspace_id = $1 ORDER BY name`
		arg = scope.WorkspaceID
	}
	return s.queryTags(ctx, query, arg)
}

// AssignTag is idempotent: the pair is inserted at most once.
func (s *Store) AssignTag(ctx context.Context, okrID, tagID string) (bool, error) {
	tag, err := s.pool.Exec(ctx,
		`INSERT INTO okr_tag_assignments (okr_id, tag_id) VALUES ($1, $2)
		 ON CONFLICT (okr_id, tag_id) DO NOTHING`, okrID, tagID)
	if err != nil {
		return false, wrapErr(err, "assign tag %s to %s", tagID, okrID)
	}
	return tag.RowsAffected() == 1, nil
}

func (s *Store) UnassignTag(ctx context.Context, okrID, tagID string) error {
	tag, err := s.pool.Exec(ctx,
		`DELETE FROM okr_tag_assignments WHERE okr_id = $1 AND tag_id = $2`, okrID, tagID)
	return execExpectOne(tag, err, "unassign tag %s from %s", tagID, okrID)
}

func (s *Store) ListTagsForKeyResult(ctx context.Context, okrID string) ([]okr.Tag, error) {
	return s.queryTags(ctx,
		`SELECT t.id, t.user_id, t.workspace_id, t.tenant_id, t.name, t.color, t.description, t.created_at
		 FROM okr_tags t JOIN okr_tag_assignments a ON a.tag_id = t.id
		 WHERE a.okr_id = $1 ORDER BY t.name`, okrID)
}

func (s *Store) queryTags(ctx context.Context, query string, args ...any) ([]okr.Tag, error) {
	rows, err := s.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, wrapErr(err, "list tags")
	}
	defer rows.Close()

	var out []okr.Tag
	for rows.Next() {
		t, err := scanTag(rows)
		if err != nil {
			return nil, fmt.Errorf("scan tag: %w", err)
		}
		out = append(out, t)
	}
	return orEmpty(out), rows.Err()
}
