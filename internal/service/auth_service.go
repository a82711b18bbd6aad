package service

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"time"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/tenacademy/onboarding-api/internal/models"
	appErrors "github.com/tenacademy/onboarding-api/pkg/errors"
)

// IdentityResolver resolves a bearer token to the identity it belongs to.
type IdentityResolver interface {
	Me(ctx context.Context, token string) (models.AuthUser, error)
}

// IdentityResolverFactory yields the resolver for one run stage.
type IdentityResolverFactory func(runStage string) (IdentityResolver, error)

// AuthService validates bearer tokens by delegating to the CMS me query for
// the request's run stage. Resolved identities are cached briefly in Redis
// (keyed by token hash) to keep hot admin tokens off the CMS.
type AuthService struct {
	resolverFor IdentityResolverFactory
	cache       *redis.Client
	cacheTTL    time.Duration
	adminRoles  map[string]struct{}
	logger      *zap.Logger
}

// NewAuthService constructs the auth service. A nil cache disables caching.
func NewAuthService(resolverFor IdentityResolverFactory, cache *redis.Client, cacheTTL time.Duration, adminRoles []string, logger *zap.Logger) *AuthService {
	if cacheTTL <= 0 {
		cacheTTL = 5 * time.Minute
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	roles := make(map[string]struct{}, len(adminRoles))
	for _, r := range adminRoles {
		roles[r] = struct{}{}
	}
	return &AuthService{
		resolverFor: resolverFor,
		cache:       cache,
		cacheTTL:    cacheTTL,
		adminRoles:  roles,
		logger:      logger,
	}
}

// Authenticate resolves a bearer token to the identity it belongs to.
func (s *AuthService) Authenticate(ctx context.Context, runStage, token string) (models.AuthUser, error) {
	if token == "" {
		return models.AuthUser{}, appErrors.ErrAuth
	}

	key := cacheKey(runStage, token)
	if s.cache != nil {
		if raw, err := s.cache.Get(ctx, key).Result(); err == nil {
			var cached models.AuthUser
			if err := json.Unmarshal([]byte(raw), &cached); err == nil {
				return cached, nil
			}
		}
	}

	resolver, err := s.resolverFor(runStage)
	if err != nil {
		return models.AuthUser{}, appErrors.Wrap(err, appErrors.ErrAuth.Code, appErrors.ErrAuth.Status, "unknown run stage")
	}

	user, err := resolver.Me(ctx, token)
	if err != nil {
		return models.AuthUser{}, appErrors.Wrap(err, appErrors.ErrAuth.Code, appErrors.ErrAuth.Status, "invalid authentication credentials")
	}

	if s.cache != nil {
		if encoded, err := json.Marshal(user); err == nil {
			if err := s.cache.Set(ctx, key, encoded, s.cacheTTL).Err(); err != nil {
				s.logger.Debug("auth cache write failed", zap.Error(err))
			}
		}
	}

	return user, nil
}

// IsAdmin reports whether the identity carries an allow-listed role.
func (s *AuthService) IsAdmin(user models.AuthUser) bool {
	_, ok := s.adminRoles[user.Role]
	return ok
}

func cacheKey(runStage, token string) string {
	sum := sha256.Sum256([]byte(token))
	return "onboarding:auth:" + runStage + ":" + hex.EncodeToString(sum[:])
}
