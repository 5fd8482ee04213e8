// Package postgreswrapper connects integration tests to a PostgreSQL test database.
//
// The connection type is selected by the ADAPTER_TYPE environment variable
// (pgx.pool, sql.db or sqlx.db; pgx.pool by default) and the database by
// LOANS_TEST_POSTGRES_DSN. Tests calling New are skipped when no test DSN is
// configured. The schema is created on first use.
package postgreswrapper
