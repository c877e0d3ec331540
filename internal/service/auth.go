package service

import (
	"context"
	"crypto/rand"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"github.com/flourisha/brain/internal/config"
	"github.com/flourisha/brain/internal/domain"
	"github.com/flourisha/brain/internal/domain/access"
	"github.com/flourisha/brain/internal/domain/apikey"
	"github.com/flourisha/brain/internal/middleware"
	"github.com/flourisha/brain/internal/port/database"
)

const displayPrefixLen = len(apikey.Prefix) + 8

// AuthService turns bearer tokens and API keys into caller claims. Tokens are issued by
// an external identity provider sharing the HS256 secret; this service only verifies them.
type AuthService struct {
	store   database.APIKeyStore
	tenants *TenantService
	cfg     config.Auth
	now     func() time.Time
	secret  func() string
}

var _ middleware.Authenticator = (*AuthService)(nil)

// NewAuthService creates an AuthService. tenants may be nil to skip tenant checks.
func NewAuthService(store database.APIKeyStore, tenants *TenantService, cfg config.Auth) *AuthService {
	return &AuthService{store: store, tenants: tenants, cfg: cfg, now: time.Now}
}

// UseSecretSource makes the signing key come from fn, falling back to the configured
// secret when fn returns "". The admin reload path swaps the key without a restart.
func (s *AuthService) UseSecretSource(fn func() string) {
	s.secret = fn
}

func (s *AuthService) signingKey() []byte {
	if s.secret != nil {
		if k := s.secret(); k != "" {
			return []byte(k)
		}
	}
	return []byte(s.cfg.JWTSecret)
}

// VerifyToken validates an HS256 token and extracts the subject and the configured tenant
// claim.
func (s *AuthService) VerifyToken(tokenStr string) (access.Claims, error) {
	opts := []jwt.ParserOption{
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithExpirationRequired(),
		jwt.WithTimeFunc(s.now),
	}
	if s.cfg.JWTIssuer != "" {
		opts = append(opts, jwt.WithIssuer(s.cfg.JWTIssuer))
	}

	mc := jwt.MapClaims{}
	_, err := jwt.NewParser(opts...).ParseWithClaims(tokenStr, mc, func(*jwt.Token) (any, error) {
		return s.signingKey(), nil
	})
	if err != nil {
		return access.Claims{}, fmt.Errorf("%w: %w", middleware.ErrUnauthenticated, err)
	}

	sub, err := mc.GetSubject()
	if err != nil {
		return access.Claims{}, fmt.Errorf("%w: %w", middleware.ErrUnauthenticated, err)
	}
	tenantID, _ := mc[s.tenantClaim()].(string)
	c := access.Claims{TenantID: tenantID, Subject: sub}
	if !c.Valid() {
		return access.Claims{}, fmt.Errorf("%w: token lacks subject or %s", middleware.ErrUnauthenticated, s.tenantClaim())
	}
	return c, nil
}

// IssueToken signs a token for c that expires after ttl. It serves the admin CLI and
// local development.
func (s *AuthService) IssueToken(c access.Claims, ttl time.Duration) (string, error) {
	if !c.Valid() {
		return "", fmt.Errorf("tenant and subject are required: %w", domain.ErrValidation)
	}
	now := s.now()
	mc := jwt.MapClaims{
		"sub":           c.Subject,
		s.tenantClaim(): c.TenantID,
		"iat":           jwt.NewNumericDate(now),
		"exp":           jwt.NewNumericDate(now.Add(ttl)),
	}
	if s.cfg.JWTIssuer != "" {
		mc["iss"] = s.cfg.JWTIssuer
	}
	return jwt.NewWithClaims(jwt.SigningMethodHS256, mc).SignedString(s.signingKey())
}

// VerifyAPIKey resolves a raw key to the claims of the user it was issued to. Unknown,
// revoked and expired keys are rejected.
func (s *AuthService) VerifyAPIKey(ctx context.Context, plain string) (access.Claims, *apikey.APIKey, error) {
	k, err := s.store.GetAPIKeyByHash(ctx, hashSHA256(plain))
	if errors.Is(err, domain.ErrNotFound) {
		return access.Claims{}, nil, middleware.ErrUnauthenticated
	}
	if err != nil {
		return access.Claims{}, nil, err
	}
	if !k.Usable(s.now()) {
		return access.Claims{}, nil, fmt.Errorf("%w: api key revoked or expired", middleware.ErrUnauthenticated)
	}
	if s.tenants != nil {
		if err := s.tenants.RequireActive(ctx, k.TenantID); err != nil {
			return access.Claims{}, nil, fmt.Errorf("%w: %w", middleware.ErrUnauthenticated, err)
		}
	}
	return access.Claims{TenantID: k.TenantID, Subject: k.UserID}, k, nil
}

// CreateAPIKey issues a new key. The plain key is returned once and only its hash is
// stored.
func (s *AuthService) CreateAPIKey(ctx context.Context, req apikey.CreateRequest) (*apikey.Issued, error) {
	if err := req.Validate(); err != nil {
		return nil, err
	}
	if s.tenants != nil {
		if err := s.tenants.RequireActive(ctx, req.TenantID); err != nil {
			return nil, err
		}
	}

	raw, err := generateRandomToken(32)
	if err != nil {
		return nil, fmt.Errorf("generate api key: %w", err)
	}
	plain := apikey.Prefix + raw

	k := apikey.APIKey{
		TenantID: req.TenantID,
		UserID:   req.UserID,
		Name:     req.Name,
		Prefix:   plain[:displayPrefixLen],
		KeyHash:  hashSHA256(plain),
		Scopes:   req.Scopes,
	}
	if req.ExpiresIn > 0 {
		k.ExpiresAt = s.now().Add(req.ExpiresIn)
	}
	if err := s.store.CreateAPIKey(ctx, &k); err != nil {
		return nil, err
	}
	return &apikey.Issued{APIKey: k, PlainKey: plain}, nil
}

func (s *AuthService) tenantClaim() string {
	if s.cfg.TenantClaim != "" {
		return s.cfg.TenantClaim
	}
	return "tenant_id"
}

func hashSHA256(data string) string {
	h := sha256.Sum256([]byte(data))
	return hex.EncodeToString(h[:])
}

func generateRandomToken(n int) (string, error) {
	b := make([]byte, n)
	if _, err := rand.Read(b); err != nil {
		return "", err
	}
	return hex.EncodeToString(b), nil
}
