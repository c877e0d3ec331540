package service

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"golang.org/x/sync/singleflight"

	"github.com/flourisha/brain/internal/domain"
	"github.com/flourisha/brain/internal/domain/tenant"
	"github.com/flourisha/brain/internal/port/cache"
	"github.com/flourisha/brain/internal/port/database"
)

const tenantCacheNamespace = "tenant"

// TenantService reads the tenant registry through a cache. Concurrent misses for the same
// tenant share one store lookup.
type TenantService struct {
	store database.TenantStore
	cache cache.Cache
	ttl   time.Duration
	group singleflight.Group
}

// NewTenantService creates a TenantService. c may be nil to disable caching.
func NewTenantService(store database.TenantStore, c cache.Cache, ttl time.Duration) *TenantService {
	return &TenantService{store: store, cache: c, ttl: ttl}
}

// Create validates and creates a new tenant.
func (s *TenantService) Create(ctx context.Context, req tenant.CreateRequest) (*tenant.Tenant, error) {
	if err := req.Validate(); err != nil {
		return nil, err
	}
	return s.store.CreateTenant(ctx, req)
}

// List returns all tenants.
func (s *TenantService) List(ctx context.Context) ([]tenant.Tenant, error) {
	return s.store.ListTenants(ctx)
}

// Get returns a tenant by ID.
func (s *TenantService) Get(ctx context.Context, id string) (*tenant.Tenant, error) {
	key := cache.Key(tenantCacheNamespace, id)
	if s.cache != nil {
		if raw, ok, err := s.cache.Get(ctx, key); err == nil && ok {
			var t tenant.Tenant
			if err := json.Unmarshal(raw, &t); err == nil {
				return &t, nil
			}
		}
	}

	v, err, _ := s.group.Do(id, func() (any, error) {
		t, err := s.store.GetTenant(ctx, id)
		if err != nil {
			return nil, err
		}
		if s.cache != nil {
			raw, _ := json.Marshal(t)
			if err := s.cache.Set(ctx, key, raw, s.ttl); err != nil {
				slog.WarnContext(ctx, "tenant cache fill failed", "tenant_id", id, "error", err)
			}
		}
		return t, nil
	})
	if err != nil {
		return nil, err
	}
	t := *v.(*tenant.Tenant)
	return &t, nil
}

// RequireActive returns domain.ErrNotFound for unknown tenants and domain.ErrForbidden for
// disabled ones.
func (s *TenantService) RequireActive(ctx context.Context, id string) error {
	t, err := s.Get(ctx, id)
	if err != nil {
		return fmt.Errorf("tenant %s: %w", id, err)
	}
	if !t.Enabled {
		return fmt.Errorf("tenant %s is disabled: %w", id, domain.ErrForbidden)
	}
	return nil
}
