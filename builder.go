package dashauth

import (
	"context"
	"errors"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/redis/go-redis/v9"
	"github.com/sirupsen/logrus"

	internalaudit "github.com/c2tech/dashauth/internal/audit"
	"github.com/c2tech/dashauth/internal/logging"
	"github.com/c2tech/dashauth/internal/rate"
	"github.com/c2tech/dashauth/session"
)

// Builder assembles an [Engine]. A Builder can be built once.
type Builder struct {
	config Config
	redis  redis.UniversalClient

	users       UserStore
	permissions PermissionStore
	auditSink   AuditSink
	log         logrus.FieldLogger
	now         func() time.Time

	built bool
}

// New returns a Builder seeded with [DefaultConfig].
func New() *Builder {
	return &Builder{
		config: DefaultConfig(),
	}
}

func (b *Builder) WithConfig(cfg Config) *Builder {
	b.config = cloneConfig(cfg)
	return b
}

// WithRedis supplies the client used by the redis rate-limit backend.
func (b *Builder) WithRedis(client redis.UniversalClient) *Builder {
	b.redis = client
	return b
}

func (b *Builder) WithUserStore(store UserStore) *Builder {
	b.users = store
	return b
}

func (b *Builder) WithPermissionStore(store PermissionStore) *Builder {
	b.permissions = store
	return b
}

func (b *Builder) WithAuditSink(sink AuditSink) *Builder {
	b.auditSink = sink
	return b
}

func (b *Builder) WithLogger(log logrus.FieldLogger) *Builder {
	b.log = log
	return b
}

// WithClock overrides the time source for token stamps, rate windows and
// audit timestamps.
func (b *Builder) WithClock(now func() time.Time) *Builder {
	b.now = now
	return b
}

func (b *Builder) WithMetricsEnabled(enabled bool) *Builder {
	b.config.Metrics.Enabled = enabled
	return b
}

func (b *Builder) WithLatencyHistograms(enabled bool) *Builder {
	b.config.Metrics.EnableLatencyHistograms = enabled
	return b
}

// Build validates the configuration and wires the engine. For the memory
// rate-limit backend it also starts the periodic sweeper; call
// [Engine.Close] to stop it.
func (b *Builder) Build() (*Engine, error) {
	if b.built {
		return nil, errors.New("builder already used")
	}

	cfg := cloneConfig(b.config)
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	if b.users == nil {
		return nil, errors.New("user store required")
	}
	if b.permissions == nil {
		return nil, errors.New("permission store required")
	}
	if cfg.RateLimit.Backend == RateLimitRedis && b.redis == nil {
		return nil, errors.New("redis rate-limit backend requires redis client")
	}

	log := b.log
	if log == nil {
		l, err := logging.New(logging.Config{}, nil)
		if err != nil {
			return nil, err
		}
		log = l
	}
	now := b.now
	if now == nil {
		now = time.Now
	}

	secret, degraded, err := cfg.signingSecret()
	if err != nil {
		return nil, err
	}
	codec, err := session.NewCodec(secret, cfg.Session.TTL, session.WithClock(now))
	if err != nil {
		return nil, err
	}

	engine := &Engine{
		config:         cloneConfig(cfg),
		codec:          codec,
		cookies:        cfg.cookiePolicy(),
		users:          b.users,
		permissions:    b.permissions,
		validate:       validator.New(validator.WithRequiredStructEnabled()),
		metrics:        NewMetrics(cfg.Metrics),
		log:            log,
		now:            now,
		degradedSecret: degraded,
	}

	switch cfg.RateLimit.Backend {
	case RateLimitRedis:
		engine.limiter = rate.NewRedis(b.redis, cfg.RateLimit.RedisPrefix, now)
	default:
		mem := rate.NewMemory(now)
		sweeper, err := rate.NewSweeper(mem, cfg.RateLimit.SweepInterval, log)
		if err != nil {
			return nil, err
		}
		engine.limiter = mem
		engine.sweeper = sweeper
	}

	engine.audit = internalaudit.NewDispatcher(internalaudit.Config{
		Enabled:     cfg.Audit.Enabled,
		BufferSize:  cfg.Audit.BufferSize,
		DropIfFull:  cfg.Audit.DropIfFull,
		SinkTimeout: cfg.Audit.SinkTimeout,
	}, engine.countingSink(b.auditSink), log)

	engine.loginDeps = engine.newLoginDeps()
	engine.authzDeps = engine.newAuthorizeDeps()

	if degraded {
		log.WithField("component", "session").
			Warn("session secret unset; signing with a secret derived from the break-glass secret (degraded, non-production only)")
	}
	if cfg.BreakGlass.Enabled {
		log.WithField("component", "login").Warn("break-glass login is enabled")
	}

	if engine.sweeper != nil {
		engine.sweeper.Start()
	}

	b.built = true

	return engine, nil
}

func (e *Engine) countingSink(sink AuditSink) AuditSink {
	if sink == nil {
		return nil
	}
	return AuditSinkFunc(func(ctx context.Context, event AuditEvent) error {
		err := sink.Emit(ctx, event)
		if err != nil {
			e.metricInc(MetricAuditSinkFailure)
		}
		return err
	})
}
