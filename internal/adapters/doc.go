// Package adapters provide the database adapter implementations shared by the
// PostgreSQL loan store and the PostgreSQL shared cache.
//
// Three connection types are supported: pgxpool.Pool, sql.DB (lib/pq) and
// sqlx.DB. Each adapter runs plain SQL strings built by goqu, and can open a
// transaction whose Query/Exec calls run on the same connection until Commit
// or Rollback. The pgx adapter can optionally route reads outside a
// transaction to a replica pool when the context asks for eventual
// consistency.
package adapters
