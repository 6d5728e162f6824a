package identity

import (
	"context"
	"fmt"
	"log/slog"
	"strconv"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"golang.org/x/crypto/bcrypt"

	apperrors "github.com/moe-gov/beacon/pkg/errors"
)

// Config drives token issuance/validation.
type Config struct {
	Secret   string
	TokenTTL time.Duration
}

type tokenClaims struct {
	jwt.RegisteredClaims
	UserID string `json:"userId"`
}

// Service is the default Resolver: it decodes a BEACON-issued JWT and loads
// the backing user row, enforcing the approved/soft-delete gate from
// spec §4.2. Production deployments may swap in a different Resolver
// (e.g. one delegating to an institution-wide SSO) without touching any
// downstream component, since every consumer depends on the Resolver
// interface, not this type.
type Service struct {
	cfg    Config
	repo   Repository
	logger *slog.Logger
}

// NewService constructs the default token-backed resolver.
func NewService(cfg Config, repo Repository, logger *slog.Logger) *Service {
	return &Service{cfg: cfg, repo: repo, logger: logger.With("component", "identity.service")}
}

var _ Resolver = (*Service)(nil)

// Resolve implements Resolver.
func (s *Service) Resolve(ctx context.Context, token string) (Viewer, error) {
	token = strings.TrimSpace(token)
	if token == "" {
		return Viewer{}, apperrors.Wrap(apperrors.CodeUnauthenticated, "token missing", nil)
	}
	parsed, err := jwt.ParseWithClaims(token, &tokenClaims{}, func(t *jwt.Token) (any, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %s", t.Method.Alg())
		}
		return []byte(s.cfg.Secret), nil
	}, jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}))
	if err != nil {
		return Viewer{}, apperrors.Wrap(apperrors.CodeUnauthenticated, "token validation failed", err)
	}
	claims, ok := parsed.Claims.(*tokenClaims)
	if !ok || !parsed.Valid {
		return Viewer{}, apperrors.Wrap(apperrors.CodeUnauthenticated, "token invalid", nil)
	}
	userID, err := uuid.Parse(claims.UserID)
	if err != nil {
		return Viewer{}, apperrors.Wrap(apperrors.CodeUnauthenticated, "token subject invalid", err)
	}
	user, found, err := s.repo.GetByID(ctx, userID)
	if err != nil {
		return Viewer{}, apperrors.Wrap(apperrors.CodeStorageError, "failed to load user", err)
	}
	if !found {
		return Viewer{}, apperrors.Wrap(apperrors.CodeUnauthenticated, "user not found", nil)
	}
	if !user.Usable() {
		return Viewer{}, apperrors.Wrap(apperrors.CodeUnauthorized, "account not approved or deleted", nil)
	}
	return user.Viewer(), nil
}

// IssueToken signs a short-lived access token for a user; exposed for the
// dev/test seed path and for the auth collaborator's login flow to call.
func (s *Service) IssueToken(user User) (string, error) {
	now := time.Now()
	claims := tokenClaims{
		UserID: user.ID.String(),
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   user.ID.String(),
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(s.cfg.TokenTTL)),
		},
	}
	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte(s.cfg.Secret))
	if err != nil {
		return "", apperrors.Wrap(apperrors.CodeFatal, "failed to sign token", err)
	}
	return signed, nil
}

// SeedDeveloper creates the singleton developer account used by local/dev
// bootstrapping. The developer role is self-authoritative (spec §4.3).
func (s *Service) SeedDeveloper(ctx context.Context, email, password string) (User, error) {
	hashed, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return User{}, apperrors.Wrap(apperrors.CodeFatal, "failed to hash password", err)
	}
	user := User{
		ID:           uuid.New(),
		Email:        strings.ToLower(strings.TrimSpace(email)),
		Role:         RoleDeveloper,
		Approved:     true,
		Verified:     true,
		PasswordHash: string(hashed),
		CreatedAt:    time.Now(),
	}
	return s.repo.Create(ctx, user)
}

func parseRole(raw string) (Role, error) {
	r := Role(strings.TrimSpace(raw))
	if !ValidRole(r) {
		return "", apperrors.Wrap(apperrors.CodeInvalidInput, "unknown role: "+raw, nil)
	}
	return r, nil
}

// ChangeRole reassigns a user's role, validating against the closed set.
func (s *Service) ChangeRole(ctx context.Context, id uuid.UUID, rawRole string) error {
	role, err := parseRole(rawRole)
	if err != nil {
		return err
	}
	if err := s.repo.SetRole(ctx, id, role); err != nil {
		return apperrors.Wrap(apperrors.CodeStorageError, "failed to change role", err)
	}
	return nil
}

// Approve flips a user's approved flag; unapproved users fail Resolve.
func (s *Service) Approve(ctx context.Context, id uuid.UUID, approved bool) error {
	if err := s.repo.SetApproved(ctx, id, approved); err != nil {
		return apperrors.Wrap(apperrors.CodeStorageError, "failed to update approval", err)
	}
	return nil
}

// CachingResolver decorates a Resolver with a TTL cache and an at-most-one
// outstanding lookup per cache miss, per spec §4.2 ("Cacheable for the
// token's validity window; at most one outstanding lookup per cache miss").
type CachingResolver struct {
	inner Resolver
	cache TTLCache
	group singleflightGroup
}

// singleflightGroup is satisfied by golang.org/x/sync/singleflight.Group;
// declared as an interface here so domain code stays free of the infra
// import and tests can use a trivial stand-in.
type singleflightGroup interface {
	Do(key string, fn func() (any, error)) (any, error, bool)
}

// NewCachingResolver constructs the caching decorator.
func NewCachingResolver(inner Resolver, cache TTLCache, group singleflightGroup) *CachingResolver {
	return &CachingResolver{inner: inner, cache: cache, group: group}
}

var _ Resolver = (*CachingResolver)(nil)

// Resolve implements Resolver with cache-then-singleflight-then-inner.
func (c *CachingResolver) Resolve(ctx context.Context, token string) (Viewer, error) {
	key := cacheKey(token)
	if v, ok, err := c.cache.Get(ctx, key); err == nil && ok {
		return v, nil
	}
	result, err, _ := c.group.Do(key, func() (any, error) {
		v, err := c.inner.Resolve(ctx, token)
		if err != nil {
			return Viewer{}, err
		}
		_ = c.cache.Set(ctx, key, v)
		return v, nil
	})
	if err != nil {
		return Viewer{}, err
	}
	return result.(Viewer), nil
}

func cacheKey(token string) string {
	return "identity:" + strconv.Itoa(len(token)) + ":" + token
}
