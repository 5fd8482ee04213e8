// Package postgresengine provides a PostgreSQL implementation of the loanstore.Store interface.
//
// Inventory counters and loans live in ordinary tables. Every mutation runs in a
// read-committed transaction opened by RunInTx, and the Lock* methods of the
// transaction issue SELECT ... FOR UPDATE so concurrent borrowers of the same
// item queue on the item row and each sees the counter committed by the one
// before it.
//
// Key features:
//   - Multiple database adapter support (pgx, sql.DB, sqlx)
//   - Row-level pessimistic locking for items and loans
//   - Deadlocks and serialization failures surfaced as loanstore.ErrTransientConflict
//   - Optional read replica for eventually consistent history reads (pgx only)
//   - Optional logging, metrics and tracing through the loanstore observability interfaces
//
// Usage:
//
//	db, _ := pgxpool.New(ctx, dsn)
//	store, _ := postgresengine.NewLoanStoreFromPGXPool(db, postgresengine.WithLogger(slog.Default()))
//
//	err := store.RunInTx(ctx, func(ctx context.Context, tx loanstore.Tx) error {
//		item, err := tx.LockItem(ctx, itemID)
//		...
//	})
package postgresengine
