package main

import (
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/spf13/cobra"

	"github.com/AntonStoeckl/library-loans/app/shared/shell/config"
)

const (
	adapterPGXPool = "pgx.pool"
	adapterSQLDB   = "sql.db"
	adapterSQLX    = "sqlx.db"

	cacheMemory   = "memory"
	cacheRedis    = "redis"
	cachePostgres = "postgres"
)

var (
	ErrUnknownAdapter = errors.New("unknown database adapter")
	ErrUnknownCache   = errors.New("unknown cache backend")
)

// rootOptions holds the persistent flags shared by every subcommand.
type rootOptions struct {
	dsn          string
	replicaDSN   string
	adapter      string
	cache        string
	redisAddr    string
	otelEndpoint string
	logLevel     string
	library      config.LibraryConfig
}

func newRootCommand() *cobra.Command {
	opts := &rootOptions{library: config.DefaultLibraryConfig()}

	root := &cobra.Command{
		Use:           "loandesk",
		Short:         "Borrow and return library books with per-member coordination",
		Version:       version,
		SilenceUsage:  true,
		PersistentPreRunE: func(_ *cobra.Command, _ []string) error {
			return opts.validate()
		},
	}

	flags := root.PersistentFlags()
	flags.StringVar(&opts.dsn, "dsn", config.PostgresDSN(), "PostgreSQL DSN of the primary")
	flags.StringVar(&opts.replicaDSN, "replica-dsn", config.PostgresReplicaDSN(), "PostgreSQL DSN of a read replica (pgx.pool only)")
	flags.StringVar(&opts.adapter, "adapter", adapterPGXPool, "database adapter: pgx.pool, sql.db or sqlx.db")
	flags.StringVar(&opts.cache, "cache", cachePostgres, "lock and result cache: memory, redis or postgres")
	flags.StringVar(&opts.redisAddr, "redis-addr", config.RedisAddr(), "Redis address for --cache redis")
	flags.StringVar(&opts.otelEndpoint, "otel-endpoint", "", "OTLP gRPC collector endpoint, empty disables export")
	flags.StringVar(&opts.logLevel, "log-level", "info", "debug, info, warn or error")

	flags.DurationVar(&opts.library.LoanPeriod, "loan-period", opts.library.LoanPeriod, "time until a loan is due")
	flags.IntVar(&opts.library.MaxBooksPerMember, "max-books", opts.library.MaxBooksPerMember, "active loans per member, 0 disables the cap")
	flags.DurationVar(&opts.library.LockLease, "lock-lease", opts.library.LockLease, "expiry of member and request locks")
	flags.DurationVar(&opts.library.LockWait, "lock-wait", opts.library.LockWait, "how long to wait for a busy member")
	flags.DurationVar(&opts.library.LockPollInterval, "lock-poll", opts.library.LockPollInterval, "poll interval while waiting for a lock")
	flags.DurationVar(&opts.library.IdempotencyTTL, "idempotency-ttl", opts.library.IdempotencyTTL, "how long request outcomes are kept")

	root.AddCommand(
		newBorrowCommand(opts),
		newReturnCommand(opts),
		newOutcomeCommand(opts),
		newLoansCommand(opts),
		newJobsCommand(opts),
	)

	return root
}

func (o *rootOptions) validate() error {
	switch o.adapter {
	case adapterPGXPool, adapterSQLDB, adapterSQLX:
	default:
		return fmt.Errorf("%w: %q", ErrUnknownAdapter, o.adapter)
	}

	switch o.cache {
	case cacheMemory, cacheRedis, cachePostgres:
	default:
		return fmt.Errorf("%w: %q", ErrUnknownCache, o.cache)
	}

	if _, err := o.level(); err != nil {
		return err
	}

	return o.library.Validate()
}

func (o *rootOptions) level() (slog.Level, error) {
	var level slog.Level
	if err := level.UnmarshalText([]byte(o.logLevel)); err != nil {
		return slog.LevelInfo, fmt.Errorf("log level: %w", err)
	}

	return level, nil
}

const shutdownTimeout = 10 * time.Second
