// Package pgcache provides a coordination.SharedCache on a PostgreSQL table.
//
// It lets deployments without Redis coordinate through the database they
// already run. The table needs a primary key on key:
//
//	CREATE TABLE shared_cache (key TEXT PRIMARY KEY, value TEXT NOT NULL, expires_at TIMESTAMPTZ NOT NULL);
//
// Expiry is evaluated against the database clock, so the application hosts'
// clocks do not need to agree. Expired rows stay in the table until they are
// overwritten or PurgeExpired removes them.
package pgcache

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/doug-martin/goqu/v9"
	_ "github.com/doug-martin/goqu/v9/dialect/postgres" // dialect registration
	"github.com/doug-martin/goqu/v9/exp"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/jmoiron/sqlx"

	"github.com/AntonStoeckl/library-loans/coordination"
	"github.com/AntonStoeckl/library-loans/internal/adapters"
	"github.com/AntonStoeckl/library-loans/loanstore"
)

const (
	defaultTableName = "shared_cache"
	colKey           = "key"
	colValue         = "value"
	colExpiresAt     = "expires_at"
	excludedValue    = "EXCLUDED.value"
	excludedExpires  = "EXCLUDED.expires_at"
	logMsgSQLFailed  = "shared cache statement failed"
	logAttrError     = "error"
	logAttrQuery     = "query"
)

var ErrEmptyTableNameSupplied = errors.New("empty table name supplied")

// Option defines a functional option for configuring Cache.
type Option func(*Cache) error

// WithTableName overrides the table name.
func WithTableName(tableName string) Option {
	return func(c *Cache) error {
		if tableName == "" {
			return ErrEmptyTableNameSupplied
		}

		c.tableName = tableName

		return nil
	}
}

// WithLogger sets a logger for failed statements.
func WithLogger(logger loanstore.Logger) Option {
	return func(c *Cache) error {
		c.logger = logger
		return nil
	}
}

// Cache implements coordination.SharedCache on a PostgreSQL table.
type Cache struct {
	db        adapters.DBAdapter
	tableName string
	logger    loanstore.Logger
}

// NewFromPGXPool creates a cache on a pgx pool.
func NewFromPGXPool(db *pgxpool.Pool, options ...Option) (*Cache, error) {
	if db == nil {
		return nil, loanstore.ErrNilDatabaseConnection
	}

	return newCache(adapters.NewPGXAdapter(db), options...)
}

// NewFromSQLDB creates a cache on a sql.DB.
func NewFromSQLDB(db *sql.DB, options ...Option) (*Cache, error) {
	if db == nil {
		return nil, loanstore.ErrNilDatabaseConnection
	}

	return newCache(adapters.NewSQLAdapter(db), options...)
}

// NewFromSQLX creates a cache on a sqlx.DB.
func NewFromSQLX(db *sqlx.DB, options ...Option) (*Cache, error) {
	if db == nil {
		return nil, loanstore.ErrNilDatabaseConnection
	}

	return newCache(adapters.NewSQLXAdapter(db), options...)
}

func newCache(db adapters.DBAdapter, options ...Option) (*Cache, error) {
	c := &Cache{db: db, tableName: defaultTableName}

	for _, option := range options {
		if err := option(c); err != nil {
			return nil, err
		}
	}

	return c, nil
}

func (c *Cache) dialect() goqu.DialectWrapper {
	return goqu.Dialect("postgres")
}

func expiresIn(ttl time.Duration) exp.LiteralExpression {
	return goqu.L("now() + ?::interval", fmt.Sprintf("%d microseconds", ttl.Microseconds()))
}

func (c *Cache) live() exp.Expression {
	return goqu.T(c.tableName).Col(colExpiresAt).Gt(goqu.L("now()"))
}

func (c *Cache) record(key, value string, ttl time.Duration) goqu.Record {
	return goqu.Record{colKey: key, colValue: value, colExpiresAt: expiresIn(ttl)}
}

func (c *Cache) overwrite() goqu.Record {
	return goqu.Record{colValue: goqu.L(excludedValue), colExpiresAt: goqu.L(excludedExpires)}
}

// SetIfAbsent inserts the entry, or takes over an expired one, in a single statement.
func (c *Cache) SetIfAbsent(ctx context.Context, key, value string, ttl time.Duration) (bool, error) {
	ds := c.dialect().Insert(c.tableName).
		Rows(c.record(key, value, ttl)).
		OnConflict(goqu.DoUpdate(colKey, c.overwrite()).
			Where(goqu.T(c.tableName).Col(colExpiresAt).Lte(goqu.L("now()")))).
		Returning(colKey)

	rows, err := c.query(ctx, ds)
	if err != nil {
		return false, err
	}
	defer c.closeRows(rows)

	stored := rows.Next()
	if rowsErr := rows.Err(); rowsErr != nil {
		return false, c.fail(rowsErr, "")
	}

	return stored, nil
}

func (c *Cache) Set(ctx context.Context, key, value string, ttl time.Duration) error {
	ds := c.dialect().Insert(c.tableName).
		Rows(c.record(key, value, ttl)).
		OnConflict(goqu.DoUpdate(colKey, c.overwrite()))

	_, err := c.exec(ctx, ds)

	return err
}

func (c *Cache) Get(ctx context.Context, key string) (string, bool, error) {
	ds := c.dialect().From(c.tableName).
		Select(colValue).
		Where(goqu.C(colKey).Eq(key), c.live())

	rows, err := c.query(ctx, ds)
	if err != nil {
		return "", false, err
	}
	defer c.closeRows(rows)

	if !rows.Next() {
		if rowsErr := rows.Err(); rowsErr != nil {
			return "", false, c.fail(rowsErr, "")
		}

		return "", false, nil
	}

	var value string
	if scanErr := rows.Scan(&value); scanErr != nil {
		return "", false, c.fail(scanErr, "")
	}

	return value, true, nil
}

func (c *Cache) Exists(ctx context.Context, key string) (bool, error) {
	_, found, err := c.Get(ctx, key)
	return found, err
}

func (c *Cache) Delete(ctx context.Context, key string) error {
	_, err := c.exec(ctx, c.dialect().Delete(c.tableName).Where(goqu.C(colKey).Eq(key)))
	return err
}

func (c *Cache) DeleteIfEquals(ctx context.Context, key, value string) (bool, error) {
	ds := c.dialect().Delete(c.tableName).
		Where(goqu.C(colKey).Eq(key), goqu.C(colValue).Eq(value), c.live())

	n, err := c.exec(ctx, ds)

	return n == 1, err
}

// PurgeExpired deletes expired rows and returns how many it deleted.
func (c *Cache) PurgeExpired(ctx context.Context) (int64, error) {
	return c.exec(ctx, c.dialect().Delete(c.tableName).Where(goqu.C(colExpiresAt).Lte(goqu.L("now()"))))
}

type sqlBuilder interface {
	ToSQL() (string, []any, error)
}

func (c *Cache) query(ctx context.Context, ds sqlBuilder) (adapters.DBRows, error) {
	sqlQuery, _, err := ds.ToSQL()
	if err != nil {
		return nil, c.fail(err, "")
	}

	rows, err := c.db.Query(ctx, sqlQuery)
	if err != nil {
		return nil, c.fail(err, sqlQuery)
	}

	return rows, nil
}

func (c *Cache) exec(ctx context.Context, ds sqlBuilder) (int64, error) {
	sqlQuery, _, err := ds.ToSQL()
	if err != nil {
		return 0, c.fail(err, "")
	}

	result, err := c.db.Exec(ctx, sqlQuery)
	if err != nil {
		return 0, c.fail(err, sqlQuery)
	}

	n, err := result.RowsAffected()
	if err != nil {
		return 0, c.fail(err, sqlQuery)
	}

	return n, nil
}

func (c *Cache) closeRows(rows adapters.DBRows) {
	_ = rows.Close() // makes no sense to handle this
}

func (c *Cache) fail(err error, sqlQuery string) error {
	if c.logger != nil {
		c.logger.Error(logMsgSQLFailed, logAttrError, err.Error(), logAttrQuery, sqlQuery)
	}

	return errors.Join(coordination.ErrSharedCacheFailed, err)
}
