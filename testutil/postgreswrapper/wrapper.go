package postgreswrapper

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"strings"
	"testing"

	"github.com/doug-martin/goqu/v9"
	_ "github.com/doug-martin/goqu/v9/dialect/postgres" // dialect registration
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/jmoiron/sqlx"
	"github.com/stretchr/testify/require"

	"github.com/AntonStoeckl/library-loans/app/shared/shell/config"
	"github.com/AntonStoeckl/library-loans/loanstore"
	"github.com/AntonStoeckl/library-loans/loanstore/postgresengine"
)

// Adapter type constants
const (
	TypePGXPool = "pgx.pool"
	TypeSQLDB   = "sql.db"
	TypeSQLXDB  = "sqlx.db"
)

// Wrapper holds one open connection of the selected type and a LoanStore on top of it.
type Wrapper struct {
	adapterType string
	pool        *pgxpool.Pool
	db          *sql.DB
	sqlxDB      *sqlx.DB
	store       *postgresengine.LoanStore
}

// New connects to the test database or skips the test when none is configured.
func New(t testing.TB, options ...postgresengine.Option) *Wrapper {
	dsn := config.PostgresTestDSN()
	if dsn == "" {
		t.Skip("LOANS_TEST_POSTGRES_DSN not set, skipping PostgreSQL integration test")
	}

	ctx := context.Background()
	adapterType := strings.ToLower(os.Getenv("ADAPTER_TYPE"))
	w := &Wrapper{adapterType: adapterType}

	var err error

	switch adapterType {
	case TypePGXPool, "":
		w.adapterType = TypePGXPool

		poolConfig, cfgErr := config.PostgresPGXPoolConfig(dsn)
		require.NoError(t, cfgErr, "error configuring the DB pool in test setup")

		w.pool, err = pgxpool.NewWithConfig(ctx, poolConfig)
		require.NoError(t, err, "error connecting to DB pool in test setup")

		w.store, err = postgresengine.NewLoanStoreFromPGXPool(w.pool, options...)

	case TypeSQLDB:
		w.db, err = config.PostgresSQLDB(ctx, dsn)
		require.NoError(t, err, "error connecting to DB in test setup")

		w.store, err = postgresengine.NewLoanStoreFromSQLDB(w.db, options...)

	case TypeSQLXDB:
		w.sqlxDB, err = config.PostgresSQLX(ctx, dsn)
		require.NoError(t, err, "error connecting to DB in test setup")

		w.store, err = postgresengine.NewLoanStoreFromSQLX(w.sqlxDB, options...)

	default: // neither one of the known types nor empty
		panic(fmt.Sprintf("unsupported wrapper type from env: %s", adapterType))
	}

	require.NoError(t, err, "error creating the loan store")

	w.Exec(t, Schema)
	t.Cleanup(w.Close)

	return w
}

// AdapterType returns the selected adapter type.
func (w *Wrapper) AdapterType() string {
	return w.adapterType
}

// LoanStore returns the store under test.
func (w *Wrapper) LoanStore() *postgresengine.LoanStore {
	return w.store
}

// Store returns the store under test as a loanstore.Store.
func (w *Wrapper) Store() loanstore.Store {
	return w.store
}

// PGXPool returns the pool, or nil for other adapter types.
func (w *Wrapper) PGXPool() *pgxpool.Pool {
	return w.pool
}

// SQLDB returns the sql.DB, or nil for other adapter types.
func (w *Wrapper) SQLDB() *sql.DB {
	return w.db
}

// SQLX returns the sqlx.DB, or nil for other adapter types.
func (w *Wrapper) SQLX() *sqlx.DB {
	return w.sqlxDB
}

// Close releases the connection.
func (w *Wrapper) Close() {
	switch {
	case w.pool != nil:
		w.pool.Close()
	case w.db != nil:
		_ = w.db.Close() // makes no sense to handle this
	case w.sqlxDB != nil:
		_ = w.sqlxDB.Close() // makes no sense to handle this
	}
}

// Exec runs a statement (or a script without arguments) on the underlying connection.
func (w *Wrapper) Exec(t testing.TB, query string) {
	var err error

	switch {
	case w.pool != nil:
		_, err = w.pool.Exec(context.Background(), query)
	case w.db != nil:
		_, err = w.db.ExecContext(context.Background(), query)
	case w.sqlxDB != nil:
		_, err = w.sqlxDB.ExecContext(context.Background(), query)
	}

	require.NoError(t, err, "error executing test setup statement")
}

// GivenMember inserts a member and returns its id.
func (w *Wrapper) GivenMember(t testing.TB) int64 {
	query, _, err := goqu.Dialect("postgres").
		Insert("members").
		Rows(goqu.Record{"name": t.Name()}).
		Returning("id").
		ToSQL()
	require.NoError(t, err, "error in arranging test data")

	return w.queryID(t, query)
}

// GivenItem inserts an item with the given stock and returns its id.
func (w *Wrapper) GivenItem(t testing.TB, totalCopies, availableCopies int) int64 {
	query, _, err := goqu.Dialect("postgres").
		Insert("items").
		Rows(goqu.Record{
			"title":            "Learning Domain-Driven Design",
			"author":           "Vlad Khononov",
			"isbn":             "978-1-098-10013-1",
			"total_copies":     totalCopies,
			"available_copies": availableCopies,
		}).
		Returning("id").
		ToSQL()
	require.NoError(t, err, "error in arranging test data")

	return w.queryID(t, query)
}

func (w *Wrapper) queryID(t testing.TB, query string) int64 {
	var id int64
	var err error

	switch {
	case w.pool != nil:
		err = w.pool.QueryRow(context.Background(), query).Scan(&id)
	case w.db != nil:
		err = w.db.QueryRowContext(context.Background(), query).Scan(&id)
	case w.sqlxDB != nil:
		err = w.sqlxDB.QueryRowxContext(context.Background(), query).Scan(&id)
	}

	require.NoError(t, err, "error in arranging test data")

	return id
}
