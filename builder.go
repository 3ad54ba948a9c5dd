package tenauth

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/tenantkit/tenauth/internal/audit"
	"github.com/tenantkit/tenauth/internal/logging"
	"github.com/tenantkit/tenauth/password"
	"github.com/tenantkit/tenauth/permission"
	"github.com/tenantkit/tenauth/token"
)

// Builder assembles an [Engine]. Configure with the With methods, then call
// Build once. A Builder is not safe for concurrent use.
type Builder struct {
	config    Config
	hasConfig bool

	stores    Stores
	redis     redis.UniversalClient
	permCache permission.Cache
	notifier  Notifier
	auditSink audit.Sink
	logger    logging.Logger

	built bool
}

// New returns a Builder loaded with default configuration.
func New() *Builder {
	return &Builder{config: defaultConfig()}
}

// WithConfig replaces the configuration. Zero-value fields are filled from
// defaults during Build.
func (b *Builder) WithConfig(cfg Config) *Builder {
	b.config = cfg
	b.hasConfig = true
	return b
}

// WithStores supplies the persistence collaborators. Required.
func (b *Builder) WithStores(s Stores) *Builder {
	b.stores = s
	return b
}

// WithRedis supplies the Redis client used for permission decision caching.
func (b *Builder) WithRedis(client redis.UniversalClient) *Builder {
	b.redis = client
	return b
}

// WithPermissionCache supplies a custom permission cache. Overrides
// WithRedis.
func (b *Builder) WithPermissionCache(cache permission.Cache) *Builder {
	b.permCache = cache
	return b
}

// WithNotifier supplies the outbound notification sink. Optional; without it
// verification, reset, and invitation tokens are generated but not delivered.
func (b *Builder) WithNotifier(n Notifier) *Builder {
	b.notifier = n
	return b
}

// WithAuditSink supplies the audit event sink. Optional.
func (b *Builder) WithAuditSink(sink audit.Sink) *Builder {
	b.auditSink = sink
	return b
}

// WithLogger supplies the structured logger. Defaults to slog on stderr.
func (b *Builder) WithLogger(logger logging.Logger) *Builder {
	b.logger = logger
	return b
}

// orgSource adapts OrganizationStore to the permission evaluator's Source.
type orgSource struct {
	store OrganizationStore
}

func (s orgSource) ActiveMembershipRole(ctx context.Context, userID, orgID string) (string, bool, error) {
	m, err := s.store.ActiveMembership(ctx, userID, orgID)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return "", false, nil
		}
		return "", false, fmt.Errorf("%w: %v", ErrStoreUnavailable, err)
	}
	return m.RoleID, true, nil
}

func (s orgSource) RoleHasPermission(ctx context.Context, roleID, code string) (bool, error) {
	allowed, err := s.store.RoleHasPermission(ctx, roleID, code)
	if err != nil {
		return false, fmt.Errorf("%w: %v", ErrStoreUnavailable, err)
	}
	return allowed, nil
}

// Build validates the configuration and returns a ready Engine.
func (b *Builder) Build() (*Engine, error) {
	if b.built {
		return nil, errors.New("tenauth: builder already used")
	}

	cfg := b.config
	if b.hasConfig {
		cfg.fill(defaultConfig())
	}
	if err := cfg.validate(); err != nil {
		return nil, err
	}

	if b.stores.Users == nil || b.stores.RefreshTokens == nil ||
		b.stores.ActionTokens == nil || b.stores.Organizations == nil {
		return nil, errors.New("tenauth: all stores are required")
	}

	codec, err := token.NewCodec(cfg.AccessToken)
	if err != nil {
		return nil, err
	}

	hasher, err := password.NewHasher(cfg.Password.Params)
	if err != nil {
		return nil, err
	}

	cache := b.permCache
	if cache == nil && b.redis != nil {
		cache = permission.NewRedisCache(b.redis)
	}

	logger := b.logger
	if logger == nil {
		logger = logging.Default()
	}

	metrics := NewMetrics(cfg.Metrics)

	e := &Engine{
		config:    cfg,
		stores:    b.stores,
		codec:     codec,
		hasher:    hasher,
		evaluator: permission.NewEvaluator(orgSource{store: b.stores.Organizations}, cache, cfg.PermissionCacheTTL),
		logger:    logger,
		metrics:   metrics,
		auditor:   audit.NewDispatcher(cfg.Audit, b.auditSink),
		now:       time.Now,
		built:     true,
	}
	e.notify = newNotifyDispatcher(b.notifier, cfg.NotifyBuffer, logger, metrics)

	b.built = true
	return e, nil
}
