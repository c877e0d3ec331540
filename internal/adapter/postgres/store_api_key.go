package postgres

import (
	"context"
	"database/sql"

	"github.com/flourisha/brain/internal/domain/apikey"
)

func (s *Store) CreateAPIKey(ctx context.Context, key *apikey.APIKey) error {
	err := s.pool.QueryRow(ctx, `
		INSERT INTO api_keys (tenant_id, user_id, name, prefix, key_hash, scopes, expires_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		RETURNING id, created_at`,
		key.TenantID, key.UserID, key.Name, key.Prefix, key.KeyHash, key.Scopes, nullTime(key.ExpiresAt),
	).Scan(&key.ID, &key.CreatedAt)
	if err != nil {
		return wrapErr(err, "create api key")
	}
	return nil
}

func (s *Store) GetAPIKeyByHash(ctx context.Context, keyHash string) (*apikey.APIKey, error) {
	row := s.pool.QueryRow(ctx, `
		SELECT id, tenant_id, user_id, name, prefix, key_hash, scopes, revoked, expires_at, created_at
		FROM api_keys WHERE key_hash = $1`, keyHash)

	var key apikey.APIKey
	var expiresAt sql.NullTime
	err := row.Scan(&key.ID, &key.TenantID, &key.UserID, &key.Name, &key.Prefix, &key.KeyHash,
		&key.Scopes, &key.Revoked, &expiresAt, &key.CreatedAt)
	if err != nil {
		return nil, notFoundWrap(err, "get api key")
	}
	if expiresAt.Valid {
		key.ExpiresAt = expiresAt.Time
	}
	return &key, nil
}
