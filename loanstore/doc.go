// Package loanstore defines the shared counter store of the lending library:
// the durable record of how many copies of each item exist and are available,
// and of the loans that moved copies between the shelf and a member.
//
// The package itself has no database dependency. It holds the value types
// (Item, Loan), the sentinel errors every engine reports, the Store and Tx
// contracts, and the dependency-free observability interfaces that engines
// and callers share.
//
// Engines:
//   - postgresengine: PostgreSQL with row-level locks (SELECT ... FOR UPDATE)
//   - memoryengine: a single-process engine for tests, demos and tooling
//
// All mutations happen inside Store.RunInTx. The callback receives a Tx whose
// Lock* methods take an exclusive row lock that is held until the callback
// returns. A non-nil error from the callback rolls back every change made
// through that Tx:
//
//	err := store.RunInTx(ctx, func(ctx context.Context, tx loanstore.Tx) error {
//		item, err := tx.LockItem(ctx, itemID)
//		if err != nil {
//			return err
//		}
//
//		return tx.UpdateAvailableCopies(ctx, item.ID, item.AvailableCopies-1)
//	})
package loanstore
