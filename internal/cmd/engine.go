package cmd

import (
	"context"
	"errors"
	"fmt"

	"github.com/redis/go-redis/v9"
	"github.com/sirupsen/logrus"

	"github.com/c2tech/dashauth"
	"github.com/c2tech/dashauth/permission"
	"github.com/c2tech/dashauth/store/memory"
	"github.com/c2tech/dashauth/store/nocodb"
	"github.com/c2tech/dashauth/store/postgres"
)

type backingStore interface {
	dashauth.UserStore
	dashauth.PermissionStore
	dashauth.AuditSink
}

// openStore connects the configured driver. The returned close func is
// never nil.
func openStore(ctx context.Context, cfg FileConfig, log logrus.FieldLogger) (backingStore, func(), error) {
	noop := func() {}

	switch cfg.Store.Driver {
	case StoreNocoDB:
		client, err := nocodb.New(cfg.Store.NocoDB, nil, log)
		if err != nil {
			return nil, noop, err
		}
		return client, noop, nil

	case StorePostgres:
		if cfg.Store.Postgres.DSN == "" {
			return nil, noop, errors.New("postgres store requires store.postgres.dsn")
		}
		s, err := postgres.Open(ctx, cfg.Store.Postgres.DSN, postgres.DefaultTables())
		if err != nil {
			return nil, noop, err
		}
		closeFn := func() {
			if err := s.Close(); err != nil {
				log.WithError(err).Warn("postgres close failed")
			}
		}
		if cfg.Store.Postgres.Migrate {
			if err := s.Migrate(ctx); err != nil {
				closeFn()
				return nil, noop, err
			}
		}
		return s, closeFn, nil

	default:
		s, err := seedMemory(cfg.Store.Users)
		if err != nil {
			return nil, noop, err
		}
		return s, noop, nil
	}
}

func seedMemory(users []SeedUser) (*memory.Store, error) {
	s := memory.New()
	for _, u := range users {
		if u.ID == "" || u.Email == "" {
			return nil, errors.New("seed user requires id and email")
		}
		if _, ok := permission.ParseRole(u.Role); !ok {
			return nil, fmt.Errorf("seed user %s: unknown role %q", u.ID, u.Role)
		}
		s.PutUser(dashauth.UserRecord{
			ID:                 u.ID,
			Identifier:         u.Email,
			DisplayName:        u.Name,
			Role:               u.Role,
			Active:             !u.Inactive,
			PasswordHash:       u.PasswordHash,
			ForcePasswordReset: u.ForcePasswordReset,
		})
		for _, g := range u.Grants {
			caps := make([]permission.Capability, 0, len(g.Capabilities))
			for _, name := range g.Capabilities {
				c, ok := permission.ParseCapability(name)
				if !ok {
					return nil, fmt.Errorf("seed user %s: unknown capability %q", u.ID, name)
				}
				caps = append(caps, c)
			}
			s.Grant(u.ID, g.Company, caps...)
		}
	}
	return s, nil
}

// buildEngine wires the engine over store. When ping is set the Redis
// limiter backend is checked before returning.
func buildEngine(ctx context.Context, cfg FileConfig, store backingStore, log *logrus.Logger, ping bool) (*dashauth.Engine, func(), error) {
	closers := []func(){}
	closeAll := func() {
		for i := len(closers) - 1; i >= 0; i-- {
			closers[i]()
		}
	}

	b := dashauth.New().
		WithConfig(cfg.Auth).
		WithUserStore(store).
		WithPermissionStore(store).
		WithAuditSink(store).
		WithLogger(log)

	if cfg.Auth.RateLimit.Backend == dashauth.RateLimitRedis {
		client := redis.NewClient(&redis.Options{
			Addr:     cfg.Redis.Addr,
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
		})
		closers = append(closers, func() { _ = client.Close() })
		if ping {
			if err := client.Ping(ctx).Err(); err != nil {
				closeAll()
				return nil, func() {}, fmt.Errorf("redis ping: %w", err)
			}
		}
		b.WithRedis(client)
	}

	engine, err := b.Build()
	if err != nil {
		closeAll()
		return nil, func() {}, err
	}
	closers = append(closers, engine.Close)
	return engine, closeAll, nil
}
