package app

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/fedormatantsev/candlerunner/internal/accountscache"
	"github.com/fedormatantsev/candlerunner/internal/archive"
	"github.com/fedormatantsev/candlerunner/internal/brokerclient"
	"github.com/fedormatantsev/candlerunner/internal/config"
	"github.com/fedormatantsev/candlerunner/internal/container"
	"github.com/fedormatantsev/candlerunner/internal/domain"
	"github.com/fedormatantsev/candlerunner/internal/instrumentcache"
	"github.com/fedormatantsev/candlerunner/internal/instrumentsync"
	"github.com/fedormatantsev/candlerunner/internal/marketdatasync"
	"github.com/fedormatantsev/candlerunner/internal/paramvalidator"
	"github.com/fedormatantsev/candlerunner/internal/persistence/postgres"
	"github.com/fedormatantsev/candlerunner/internal/persistence/rediscache"
	"github.com/fedormatantsev/candlerunner/internal/positionmanagercache"
	"github.com/fedormatantsev/candlerunner/internal/positionmanagerregistry"
	"github.com/fedormatantsev/candlerunner/internal/positionmanagerrunner"
	"github.com/fedormatantsev/candlerunner/internal/positionmanagers/quorum"
	"github.com/fedormatantsev/candlerunner/internal/positionscache"
	"github.com/fedormatantsev/candlerunner/internal/strategies/buyandhold"
	"github.com/fedormatantsev/candlerunner/internal/strategycache"
	"github.com/fedormatantsev/candlerunner/internal/strategyregistry"
	"github.com/fedormatantsev/candlerunner/internal/strategyrunner"
)

func optionalString(cfg config.Provider, key, def string) string {
	if v, err := cfg.GetString(key); err == nil {
		return v
	}
	return def
}

func optionalUint64(cfg config.Provider, key string, def uint64) uint64 {
	if v, err := cfg.GetUint64(key); err == nil {
		return v
	}
	return def
}

func optionalBool(cfg config.Provider, key string, def bool) bool {
	if v, err := cfg.GetBool(key); err == nil {
		return v
	}
	return def
}

func seconds(cfg config.Provider, key string, def uint64) time.Duration {
	return time.Duration(optionalUint64(cfg, key, def)) * time.Second
}

// Wire registers every component against b. Component registration names
// double as their config sub-scope: each one must have a corresponding
// (possibly empty) table in the loaded configuration.
func Wire(b *container.Builder) error {
	registrations := []func(*container.Builder) error{
		registerPostgres,
		registerRedis,
		registerStore,
		registerBrokerage,
		registerBrokerStream,
		registerInstrumentSync,
		registerInstrumentCache,
		registerAccountsCache,
		registerPositionsCache,
		registerStrategyRegistry,
		registerPositionManagerRegistry,
		registerParamValidator,
		registerStrategyCache,
		registerPositionManagerCache,
		registerMarketDataSync,
		registerStrategyRunner,
		registerPositionManagerRunner,
		registerArchiver,
	}

	for _, register := range registrations {
		if err := register(b); err != nil {
			return err
		}
	}
	return nil
}

func registerPostgres(b *container.Builder) error {
	return container.Register(b, "postgres", func(ctx context.Context, r *container.Resolver, cfg config.Provider) (*postgres.Client, container.DestroyFunc, error) {
		dsn := optionalString(cfg, "dsn", "")
		client, err := postgres.New(ctx, postgres.ClientConfig{
			DSN:      dsn,
			Host:     optionalString(cfg, "host", "localhost"),
			Port:     int(optionalUint64(cfg, "port", 5432)),
			Database: optionalString(cfg, "database", "candlerunner"),
			User:     optionalString(cfg, "user", ""),
			Password: optionalString(cfg, "password", ""),
			SSLMode:  optionalString(cfg, "sslmode", "disable"),
			MaxConns: int(optionalUint64(cfg, "max_conns", 0)),
			MinConns: int(optionalUint64(cfg, "min_conns", 0)),
		})
		if err != nil {
			return nil, nil, fmt.Errorf("app: postgres: %w", err)
		}

		if optionalBool(cfg, "run_migrations", true) {
			if err := client.RunMigrations(ctx); err != nil {
				client.Close()
				return nil, nil, fmt.Errorf("app: postgres migrations: %w", err)
			}
		}

		return client, func(context.Context) error {
			client.Close()
			return nil
		}, nil
	})
}

func registerRedis(b *container.Builder) error {
	return container.Register(b, "redis", func(ctx context.Context, r *container.Resolver, cfg config.Provider) (*rediscache.Client, container.DestroyFunc, error) {
		client, err := rediscache.New(ctx, rediscache.ClientConfig{
			Addr:       optionalString(cfg, "addr", "localhost:6379"),
			Password:   optionalString(cfg, "password", ""),
			DB:         int(optionalUint64(cfg, "db", 0)),
			PoolSize:   int(optionalUint64(cfg, "pool_size", 0)),
			MaxRetries: int(optionalUint64(cfg, "max_retries", 0)),
			TLSEnabled: optionalBool(cfg, "tls_enabled", false),
		})
		if err != nil {
			return nil, nil, fmt.Errorf("app: redis: %w", err)
		}
		return client, func(context.Context) error { return client.Close() }, nil
	})
}

// registerStore builds the persistence surface (C4): a durable Postgres
// store wrapped in a Redis read-through cache over candle availability.
func registerStore(b *container.Builder) error {
	return container.Register(b, "store", func(ctx context.Context, r *container.Resolver, cfg config.Provider) (domain.Store, container.DestroyFunc, error) {
		pg, err := container.Resolve[*postgres.Client](ctx, r)
		if err != nil {
			return nil, nil, err
		}
		rc, err := container.Resolve[*rediscache.Client](ctx, r)
		if err != nil {
			return nil, nil, err
		}

		ttl := time.Duration(optionalUint64(cfg, "cache_ttl_minutes", 5)) * time.Minute
		inner := postgres.NewStore(pg.Pool())
		store := rediscache.NewCache(inner, rc, ttl, slog.Default().With("component", "store"))
		return store, nil, nil
	})
}

func registerBrokerage(b *container.Builder) error {
	return container.Register(b, "brokerage", func(ctx context.Context, r *container.Resolver, cfg config.Provider) (domain.Brokerage, container.DestroyFunc, error) {
		baseURL, err := cfg.GetString("base_url")
		if err != nil {
			return nil, nil, fmt.Errorf("app: brokerage: %w", err)
		}
		apiKey := optionalString(cfg, "api_key", "")
		client := brokerclient.New(baseURL, apiKey, nil)
		return client, nil, nil
	})
}

// registerBrokerStream starts the streaming push hint (C5 supplement):
// on a "new data" message it nudges market-data-sync's ForceUpdate instead
// of waiting out the regular tick.
func registerBrokerStream(b *container.Builder) error {
	return container.Register(b, "brokerstream", func(ctx context.Context, r *container.Resolver, cfg config.Provider) (*brokerclient.Stream, container.DestroyFunc, error) {
		wsURL, err := cfg.GetString("ws_url")
		if err != nil {
			return nil, nil, nil
		}

		sync, err := container.Resolve[*marketdatasync.Sync](ctx, r)
		if err != nil {
			return nil, nil, err
		}

		stream := brokerclient.NewStream(wsURL, sync, slog.Default().With("component", "brokerstream"))
		if err := stream.Connect(ctx); err != nil {
			return nil, nil, fmt.Errorf("app: brokerstream: %w", err)
		}
		return stream, func(context.Context) error { return stream.Close() }, nil
	})
}

func registerInstrumentSync(b *container.Builder) error {
	return container.Register(b, "instrumentsync", func(ctx context.Context, r *container.Resolver, cfg config.Provider) (*instrumentsync.Sync, container.DestroyFunc, error) {
		brokerage, err := container.Resolve[domain.Brokerage](ctx, r)
		if err != nil {
			return nil, nil, err
		}
		store, err := container.Resolve[domain.Store](ctx, r)
		if err != nil {
			return nil, nil, err
		}

		sync := instrumentsync.New(ctx, seconds(cfg, "update_period_seconds", 3600), brokerage, store, slog.Default().With("component", "instrumentsync"))
		return sync, func(ctx context.Context) error { return sync.Destroy(ctx) }, nil
	})
}

func registerInstrumentCache(b *container.Builder) error {
	return container.Register(b, "instrumentcache", func(ctx context.Context, r *container.Resolver, cfg config.Provider) (*instrumentcache.Cache, container.DestroyFunc, error) {
		store, err := container.Resolve[domain.Store](ctx, r)
		if err != nil {
			return nil, nil, err
		}
		sync, err := container.Resolve[*instrumentsync.Sync](ctx, r)
		if err != nil {
			return nil, nil, err
		}

		cache := instrumentcache.New(ctx, seconds(cfg, "update_period_seconds", 60), store, sync, slog.Default().With("component", "instrumentcache"))
		return cache, func(ctx context.Context) error { return cache.Destroy(ctx) }, nil
	})
}

func registerAccountsCache(b *container.Builder) error {
	return container.Register(b, "accountscache", func(ctx context.Context, r *container.Resolver, cfg config.Provider) (*accountscache.Cache, container.DestroyFunc, error) {
		brokerage, err := container.Resolve[domain.Brokerage](ctx, r)
		if err != nil {
			return nil, nil, err
		}

		cache := accountscache.New(ctx, seconds(cfg, "update_period_seconds", 60), brokerage, slog.Default().With("component", "accountscache"))
		return cache, func(ctx context.Context) error { return cache.Destroy(ctx) }, nil
	})
}

func registerPositionsCache(b *container.Builder) error {
	return container.Register(b, "positionscache", func(ctx context.Context, r *container.Resolver, cfg config.Provider) (*positionscache.Cache, container.DestroyFunc, error) {
		brokerage, err := container.Resolve[domain.Brokerage](ctx, r)
		if err != nil {
			return nil, nil, err
		}
		accounts, err := container.Resolve[*accountscache.Cache](ctx, r)
		if err != nil {
			return nil, nil, err
		}

		cache := positionscache.New(ctx, seconds(cfg, "update_period_seconds", 30), brokerage, accounts, slog.Default().With("component", "positionscache"))
		return cache, func(ctx context.Context) error { return cache.Destroy(ctx) }, nil
	})
}

// registerStrategyRegistry registers every compiled-in strategy factory.
// Adding a new strategy implementation means adding one line here.
func registerStrategyRegistry(b *container.Builder) error {
	return container.Register(b, "strategyregistry", func(ctx context.Context, r *container.Resolver, cfg config.Provider) (*strategyregistry.Registry, container.DestroyFunc, error) {
		registry := strategyregistry.New()
		registry.Register(buyandhold.Factory{})
		return registry, nil, nil
	})
}

func registerPositionManagerRegistry(b *container.Builder) error {
	return container.Register(b, "positionmanagerregistry", func(ctx context.Context, r *container.Resolver, cfg config.Provider) (*positionmanagerregistry.Registry, container.DestroyFunc, error) {
		registry := positionmanagerregistry.New()
		registry.Register(quorum.Factory{})
		return registry, nil, nil
	})
}

func registerParamValidator(b *container.Builder) error {
	return container.Register(b, "paramvalidator", func(ctx context.Context, r *container.Resolver, cfg config.Provider) (*paramvalidator.Validator, container.DestroyFunc, error) {
		instruments, err := container.Resolve[*instrumentcache.Cache](ctx, r)
		if err != nil {
			return nil, nil, err
		}
		return paramvalidator.New(instruments), nil, nil
	})
}

func registerStrategyCache(b *container.Builder) error {
	return container.Register(b, "strategycache", func(ctx context.Context, r *container.Resolver, cfg config.Provider) (*strategycache.Cache, container.DestroyFunc, error) {
		store, err := container.Resolve[domain.Store](ctx, r)
		if err != nil {
			return nil, nil, err
		}
		registry, err := container.Resolve[*strategyregistry.Registry](ctx, r)
		if err != nil {
			return nil, nil, err
		}
		validator, err := container.Resolve[*paramvalidator.Validator](ctx, r)
		if err != nil {
			return nil, nil, err
		}

		cache := strategycache.New(ctx, seconds(cfg, "update_period_seconds", 30), store, registry, validator, slog.Default().With("component", "strategycache"))
		return cache, func(ctx context.Context) error { return cache.Destroy(ctx) }, nil
	})
}

func registerPositionManagerCache(b *container.Builder) error {
	return container.Register(b, "positionmanagercache", func(ctx context.Context, r *container.Resolver, cfg config.Provider) (*positionmanagercache.Cache, container.DestroyFunc, error) {
		store, err := container.Resolve[domain.Store](ctx, r)
		if err != nil {
			return nil, nil, err
		}
		registry, err := container.Resolve[*positionmanagerregistry.Registry](ctx, r)
		if err != nil {
			return nil, nil, err
		}
		validator, err := container.Resolve[*paramvalidator.Validator](ctx, r)
		if err != nil {
			return nil, nil, err
		}

		cache := positionmanagercache.New(ctx, seconds(cfg, "update_period_seconds", 30), store, registry, validator, slog.Default().With("component", "positionmanagercache"))
		return cache, func(ctx context.Context) error { return cache.Destroy(ctx) }, nil
	})
}

func registerMarketDataSync(b *container.Builder) error {
	return container.Register(b, "marketdatasync", func(ctx context.Context, r *container.Resolver, cfg config.Provider) (*marketdatasync.Sync, container.DestroyFunc, error) {
		strategies, err := container.Resolve[*strategycache.Cache](ctx, r)
		if err != nil {
			return nil, nil, err
		}
		brokerage, err := container.Resolve[domain.Brokerage](ctx, r)
		if err != nil {
			return nil, nil, err
		}
		store, err := container.Resolve[domain.Store](ctx, r)
		if err != nil {
			return nil, nil, err
		}

		maxChunks := int(optionalUint64(cfg, "max_chunks_per_instrument", 8))
		sync := marketdatasync.New(
			ctx,
			seconds(cfg, "update_period_seconds", 60),
			maxChunks,
			marketdatasync.LiveStrategyCache{Cache: strategies},
			brokerage,
			store,
			time.Now,
			slog.Default().With("component", "marketdatasync"),
		)
		return sync, func(ctx context.Context) error { return sync.Destroy(ctx) }, nil
	})
}

func registerStrategyRunner(b *container.Builder) error {
	return container.Register(b, "strategyrunner", func(ctx context.Context, r *container.Resolver, cfg config.Provider) (*strategyrunner.Runner, container.DestroyFunc, error) {
		strategies, err := container.Resolve[*strategycache.Cache](ctx, r)
		if err != nil {
			return nil, nil, err
		}
		store, err := container.Resolve[domain.Store](ctx, r)
		if err != nil {
			return nil, nil, err
		}

		runner := strategyrunner.New(ctx, seconds(cfg, "update_period_seconds", 60), strategies, store, time.Now, slog.Default().With("component", "strategyrunner"))
		return runner, func(ctx context.Context) error { return runner.Destroy(ctx) }, nil
	})
}

func registerPositionManagerRunner(b *container.Builder) error {
	return container.Register(b, "positionmanagerrunner", func(ctx context.Context, r *container.Resolver, cfg config.Provider) (*positionmanagerrunner.Runner, container.DestroyFunc, error) {
		pms, err := container.Resolve[*positionmanagercache.Cache](ctx, r)
		if err != nil {
			return nil, nil, err
		}
		positions, err := container.Resolve[*positionscache.Cache](ctx, r)
		if err != nil {
			return nil, nil, err
		}
		store, err := container.Resolve[domain.Store](ctx, r)
		if err != nil {
			return nil, nil, err
		}

		maxAge := seconds(cfg, "max_execution_context_age_seconds", 86400)
		runner := positionmanagerrunner.New(
			ctx,
			seconds(cfg, "update_period_seconds", 60),
			maxAge,
			pms,
			positions,
			store,
			time.Now,
			slog.Default().With("component", "positionmanagerrunner"),
		)
		return runner, func(ctx context.Context) error { return runner.Destroy(ctx) }, nil
	})
}

// registerArchiver wires the supplemental cold-storage sweep (not one of
// C1-C12, but implied by the teacher's ambient blob-storage stack). It is
// skipped entirely unless its config table sets enabled = true.
func registerArchiver(b *container.Builder) error {
	return container.Register(b, "archive", func(ctx context.Context, r *container.Resolver, cfg config.Provider) (*archive.Archiver, container.DestroyFunc, error) {
		if !optionalBool(cfg, "enabled", false) {
			return nil, nil, nil
		}

		instruments, err := container.Resolve[*instrumentcache.Cache](ctx, r)
		if err != nil {
			return nil, nil, err
		}
		strategies, err := container.Resolve[*strategycache.Cache](ctx, r)
		if err != nil {
			return nil, nil, err
		}
		store, err := container.Resolve[domain.Store](ctx, r)
		if err != nil {
			return nil, nil, err
		}

		client, err := archive.NewClient(ctx, archive.ClientConfig{
			Endpoint:       optionalString(cfg, "endpoint", ""),
			Region:         optionalString(cfg, "region", "us-east-1"),
			Bucket:         optionalString(cfg, "bucket", ""),
			AccessKey:      optionalString(cfg, "access_key", ""),
			SecretKey:      optionalString(cfg, "secret_key", ""),
			UseSSL:         optionalBool(cfg, "use_ssl", true),
			ForcePathStyle: optionalBool(cfg, "force_path_style", false),
		})
		if err != nil {
			return nil, nil, fmt.Errorf("app: archive: %w", err)
		}

		retention := time.Duration(optionalUint64(cfg, "retention_days", 30)) * 24 * time.Hour
		archiver := archive.New(
			ctx,
			seconds(cfg, "update_period_seconds", 3600),
			retention,
			archive.LiveInstruments{Cache: instruments},
			archive.LiveStrategies{Cache: strategies},
			store,
			client,
			time.Now,
			slog.Default().With("component", "archive"),
		)
		return archiver, func(ctx context.Context) error { return archiver.Destroy(ctx) }, nil
	})
}
