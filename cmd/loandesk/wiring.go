package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/redis/go-redis/v9"

	"github.com/AntonStoeckl/library-loans/app/coordinator"
	"github.com/AntonStoeckl/library-loans/app/jobs"
	"github.com/AntonStoeckl/library-loans/app/shared/shell/config"
	"github.com/AntonStoeckl/library-loans/coordination"
	"github.com/AntonStoeckl/library-loans/coordination/memcache"
	"github.com/AntonStoeckl/library-loans/coordination/pgcache"
	"github.com/AntonStoeckl/library-loans/coordination/rediscache"
	"github.com/AntonStoeckl/library-loans/loanstore"
	"github.com/AntonStoeckl/library-loans/loanstore/oteladapters"
	"github.com/AntonStoeckl/library-loans/loanstore/postgresengine"
)

const serviceName = "loandesk"

// runtime is everything a subcommand needs, opened from the persistent flags.
type runtime struct {
	coordinator *coordinator.LoanCoordinator
	logger      *oteladapters.SlogBridgeLogger

	// purger is nil for backends that expire entries on their own.
	purger jobs.Purger

	closers []func() error
}

func (r *runtime) Close() error {
	var errs []error
	for i := len(r.closers) - 1; i >= 0; i-- {
		errs = append(errs, r.closers[i]())
	}

	return errors.Join(errs...)
}

// backend is the opened database: the store plus a shared cache on the same connection.
type backend struct {
	store   loanstore.Store
	pgCache *pgcache.Cache
}

func (o *rootOptions) open(ctx context.Context) (*runtime, error) {
	level, err := o.level()
	if err != nil {
		return nil, err
	}

	rt := &runtime{
		logger: oteladapters.NewSlogBridgeLoggerWithHandler(slog.NewJSONHandler(os.Stderr, &slog.HandlerOptions{Level: level})),
	}

	var storeOpts []postgresengine.Option
	coordinatorOpts := []coordinator.Option{
		coordinator.WithLogger(rt.logger),
		coordinator.WithContextualLogger(rt.logger),
	}

	if o.otelEndpoint != "" {
		providers, providerErr := config.NewObservabilityProviders(ctx, serviceName, version, o.otelEndpoint)
		if providerErr != nil {
			return nil, fmt.Errorf("observability: %w", providerErr)
		}

		rt.closers = append(rt.closers, providers.Shutdown)

		metrics := oteladapters.NewMetricsCollector(providers.MeterProvider.Meter(serviceName))
		tracing := oteladapters.NewTracingCollector(providers.TracerProvider.Tracer(serviceName))

		storeOpts = append(storeOpts, postgresengine.WithMetrics(metrics), postgresengine.WithTracing(tracing))
		coordinatorOpts = append(coordinatorOpts, coordinator.WithMetrics(metrics), coordinator.WithTracing(tracing))
	}

	storeOpts = append(storeOpts, postgresengine.WithLogger(rt.logger), postgresengine.WithContextualLogger(rt.logger))

	db, err := o.openBackend(ctx, rt, storeOpts)
	if err != nil {
		return nil, errors.Join(err, rt.Close())
	}

	cache, err := o.openCache(rt, db)
	if err != nil {
		return nil, errors.Join(err, rt.Close())
	}

	rt.coordinator, err = coordinator.New(db.store, cache, o.library, coordinatorOpts...)
	if err != nil {
		return nil, errors.Join(err, rt.Close())
	}

	return rt, nil
}

func (o *rootOptions) openBackend(ctx context.Context, rt *runtime, storeOpts []postgresengine.Option) (backend, error) {
	cacheOpts := []pgcache.Option{pgcache.WithLogger(rt.logger)}

	switch o.adapter {
	case adapterSQLDB:
		db, err := config.PostgresSQLDB(ctx, o.dsn)
		if err != nil {
			return backend{}, err
		}

		rt.closers = append(rt.closers, db.Close)

		store, err := postgresengine.NewLoanStoreFromSQLDB(db, storeOpts...)
		if err != nil {
			return backend{}, err
		}

		cache, err := pgcache.NewFromSQLDB(db, cacheOpts...)

		return backend{store: store, pgCache: cache}, err

	case adapterSQLX:
		db, err := config.PostgresSQLX(ctx, o.dsn)
		if err != nil {
			return backend{}, err
		}

		rt.closers = append(rt.closers, db.Close)

		store, err := postgresengine.NewLoanStoreFromSQLX(db, storeOpts...)
		if err != nil {
			return backend{}, err
		}

		cache, err := pgcache.NewFromSQLX(db, cacheOpts...)

		return backend{store: store, pgCache: cache}, err

	default:
		primary, err := openPool(ctx, rt, o.dsn)
		if err != nil {
			return backend{}, err
		}

		var store *postgresengine.LoanStore
		if o.replicaDSN != "" {
			replica, replicaErr := openPool(ctx, rt, o.replicaDSN)
			if replicaErr != nil {
				return backend{}, replicaErr
			}

			store, err = postgresengine.NewLoanStoreFromPGXPoolAndReplica(primary, replica, storeOpts...)
		} else {
			store, err = postgresengine.NewLoanStoreFromPGXPool(primary, storeOpts...)
		}

		if err != nil {
			return backend{}, err
		}

		cache, err := pgcache.NewFromPGXPool(primary, cacheOpts...)

		return backend{store: store, pgCache: cache}, err
	}
}

func openPool(ctx context.Context, rt *runtime, dsn string) (*pgxpool.Pool, error) {
	poolConfig, err := config.PostgresPGXPoolConfig(dsn)
	if err != nil {
		return nil, err
	}

	pool, err := pgxpool.NewWithConfig(ctx, poolConfig)
	if err != nil {
		return nil, err
	}

	rt.closers = append(rt.closers, func() error {
		pool.Close()
		return nil
	})

	return pool, nil
}

func (o *rootOptions) openCache(rt *runtime, db backend) (coordination.SharedCache, error) {
	switch o.cache {
	case cacheMemory:
		cache := memcache.New()
		rt.purger = cache

		return cache, nil

	case cacheRedis:
		client := redis.NewClient(config.RedisOptions(o.redisAddr))
		rt.closers = append(rt.closers, client.Close)

		return rediscache.New(client)

	default:
		rt.purger = db.pgCache

		return db.pgCache, nil
	}
}
