package storecontract

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/AntonStoeckl/library-loans/loanstore"
)

// Fixture gives the contract a store plus a way to seed members and items in it.
type Fixture interface {
	Store() loanstore.Store
	GivenMember(t testing.TB) int64
	GivenItem(t testing.TB, totalCopies, availableCopies int) int64
}

var errAbort = errors.New("abort")

// Now returns a UTC instant at microsecond precision, the resolution PostgreSQL keeps.
func Now() time.Time {
	return time.Now().UTC().Truncate(time.Microsecond)
}

// Run executes the whole contract as subtests.
func Run(t *testing.T, newFixture func(t *testing.T) Fixture) {
	t.Run("LockItem unknown id", func(t *testing.T) { lockItemUnknown(t, newFixture(t)) })
	t.Run("LockLoan unknown id", func(t *testing.T) { lockLoanUnknown(t, newFixture(t)) })
	t.Run("MemberExists", func(t *testing.T) { memberExists(t, newFixture(t)) })
	t.Run("commit applies all writes", func(t *testing.T) { commitAppliesWrites(t, newFixture(t)) })
	t.Run("error rolls back all writes", func(t *testing.T) { errorRollsBack(t, newFixture(t)) })
	t.Run("copies stay within range", func(t *testing.T) { copiesStayInRange(t, newFixture(t)) })
	t.Run("return marks loan and hides it from active reads", func(t *testing.T) { returnLoan(t, newFixture(t)) })
	t.Run("overdue loans", func(t *testing.T) { overdueLoans(t, newFixture(t)) })
	t.Run("concurrent transactions never oversubscribe", func(t *testing.T) { noOversubscription(t, newFixture(t)) })
}

func lockItemUnknown(t *testing.T, f Fixture) {
	// act
	err := f.Store().RunInTx(context.Background(), func(ctx context.Context, tx loanstore.Tx) error {
		_, err := tx.LockItem(ctx, 987654321)
		return err
	})

	// assert
	assert.ErrorIs(t, err, loanstore.ErrItemNotFound)
}

func lockLoanUnknown(t *testing.T, f Fixture) {
	// act
	err := f.Store().RunInTx(context.Background(), func(ctx context.Context, tx loanstore.Tx) error {
		_, err := tx.LockLoan(ctx, 987654321)
		return err
	})

	// assert
	assert.ErrorIs(t, err, loanstore.ErrLoanNotFound)
}

func memberExists(t *testing.T, f Fixture) {
	// arrange
	memberID := f.GivenMember(t)
	var known, unknown bool

	// act
	err := f.Store().RunInTx(context.Background(), func(ctx context.Context, tx loanstore.Tx) error {
		var err error
		if known, err = tx.MemberExists(ctx, memberID); err != nil {
			return err
		}

		unknown, err = tx.MemberExists(ctx, memberID+1_000_000)

		return err
	})

	// assert
	require.NoError(t, err)
	assert.True(t, known)
	assert.False(t, unknown)
}

func commitAppliesWrites(t *testing.T, f Fixture) {
	// arrange
	ctx := context.Background()
	memberID := f.GivenMember(t)
	itemID := f.GivenItem(t, 3, 3)
	now := Now()
	var inserted loanstore.Loan

	// act
	err := f.Store().RunInTx(ctx, func(ctx context.Context, tx loanstore.Tx) error {
		item, err := tx.LockItem(ctx, itemID)
		if err != nil {
			return err
		}

		if err = tx.UpdateAvailableCopies(ctx, itemID, item.AvailableCopies-1); err != nil {
			return err
		}

		inserted, err = tx.InsertLoan(ctx, loanstore.Loan{
			MemberID:   memberID,
			ItemID:     itemID,
			BorrowDate: now,
			DueDate:    now.Add(14 * 24 * time.Hour),
		})

		return err
	})

	// assert
	require.NoError(t, err)
	assert.NotZero(t, inserted.ID)
	assert.Nil(t, inserted.ReturnDate)

	item, err := f.Store().Item(ctx, itemID)
	require.NoError(t, err)
	assert.Equal(t, 2, item.AvailableCopies)
	assert.Equal(t, 3, item.TotalCopies)

	loans, err := f.Store().LoansByMember(ctx, memberID, loanstore.ActiveLoan, now)
	require.NoError(t, err)
	require.Len(t, loans, 1)
	assert.Equal(t, inserted.ID, loans[0].ID)
	assert.True(t, now.Equal(loans[0].BorrowDate))
	assert.True(t, now.Add(14*24*time.Hour).Equal(loans[0].DueDate))

	var hasActive bool
	var activeCount int
	err = f.Store().RunInTx(ctx, func(ctx context.Context, tx loanstore.Tx) error {
		if hasActive, err = tx.HasActiveLoan(ctx, memberID, itemID); err != nil {
			return err
		}

		activeCount, err = tx.CountActiveLoans(ctx, memberID)

		return err
	})
	require.NoError(t, err)
	assert.True(t, hasActive)
	assert.Equal(t, 1, activeCount)
}

func errorRollsBack(t *testing.T, f Fixture) {
	// arrange
	ctx := context.Background()
	memberID := f.GivenMember(t)
	itemID := f.GivenItem(t, 2, 2)
	now := Now()

	// act
	err := f.Store().RunInTx(ctx, func(ctx context.Context, tx loanstore.Tx) error {
		if err := tx.UpdateAvailableCopies(ctx, itemID, 1); err != nil {
			return err
		}

		if _, err := tx.InsertLoan(ctx, loanstore.Loan{MemberID: memberID, ItemID: itemID, BorrowDate: now, DueDate: now}); err != nil {
			return err
		}

		return errAbort
	})

	// assert
	assert.ErrorIs(t, err, errAbort)

	item, err := f.Store().Item(ctx, itemID)
	require.NoError(t, err)
	assert.Equal(t, 2, item.AvailableCopies)

	loans, err := f.Store().LoansByItem(ctx, itemID, loanstore.AnyLoan, now)
	require.NoError(t, err)
	assert.Empty(t, loans)
}

func copiesStayInRange(t *testing.T, f Fixture) {
	// arrange
	ctx := context.Background()
	itemID := f.GivenItem(t, 1, 1)

	// act
	tooMany := f.Store().RunInTx(ctx, func(ctx context.Context, tx loanstore.Tx) error {
		return tx.UpdateAvailableCopies(ctx, itemID, 2)
	})
	negative := f.Store().RunInTx(ctx, func(ctx context.Context, tx loanstore.Tx) error {
		return tx.UpdateAvailableCopies(ctx, itemID, -1)
	})

	// assert
	assert.ErrorIs(t, tooMany, loanstore.ErrCopiesOutOfRange)
	assert.ErrorIs(t, negative, loanstore.ErrCopiesOutOfRange)

	item, err := f.Store().Item(ctx, itemID)
	require.NoError(t, err)
	assert.Equal(t, 1, item.AvailableCopies)
}

func returnLoan(t *testing.T, f Fixture) {
	// arrange
	ctx := context.Background()
	memberID := f.GivenMember(t)
	itemID := f.GivenItem(t, 1, 0)
	now := Now()
	loan := givenLoan(t, f, memberID, itemID, now, now.Add(time.Hour))
	returnedAt := now.Add(time.Minute)

	// act
	err := f.Store().RunInTx(ctx, func(ctx context.Context, tx loanstore.Tx) error {
		locked, err := tx.LockLoan(ctx, loan.ID)
		if err != nil {
			return err
		}

		if !locked.IsActive() {
			return errAbort
		}

		return tx.MarkLoanReturned(ctx, loan.ID, returnedAt)
	})

	// assert
	require.NoError(t, err)

	active, err := f.Store().LoansByMember(ctx, memberID, loanstore.ActiveLoan, now)
	require.NoError(t, err)
	assert.Empty(t, active)

	all, err := f.Store().LoansByMember(ctx, memberID, loanstore.AnyLoan, now)
	require.NoError(t, err)
	require.Len(t, all, 1)
	require.NotNil(t, all[0].ReturnDate)
	assert.True(t, returnedAt.Equal(*all[0].ReturnDate))

	again := f.Store().RunInTx(ctx, func(ctx context.Context, tx loanstore.Tx) error {
		return tx.MarkLoanReturned(ctx, loan.ID, returnedAt)
	})
	assert.ErrorIs(t, again, loanstore.ErrLoanNotFound)
}

func overdueLoans(t *testing.T, f Fixture) {
	// arrange
	ctx := context.Background()
	memberID := f.GivenMember(t)
	overdueItem := f.GivenItem(t, 1, 0)
	currentItem := f.GivenItem(t, 1, 0)
	now := Now()
	overdue := givenLoan(t, f, memberID, overdueItem, now.Add(-20*24*time.Hour), now.Add(-6*24*time.Hour))
	givenLoan(t, f, memberID, currentItem, now, now.Add(14*24*time.Hour))

	// act
	loans, err := f.Store().OverdueLoans(ctx, now)
	byItem, byItemErr := f.Store().LoansByItem(ctx, overdueItem, loanstore.OverdueLoan, now)

	// assert
	require.NoError(t, err)
	require.NoError(t, byItemErr)

	var found bool
	for _, loan := range loans {
		assert.True(t, loan.IsOverdueAt(now))
		if loan.ID == overdue.ID {
			found = true
			assert.Equal(t, 6, loan.DaysOverdueAt(now))
		}
	}
	assert.True(t, found)

	require.Len(t, byItem, 1)
	assert.Equal(t, overdue.ID, byItem[0].ID)
}

func noOversubscription(t *testing.T, f Fixture) {
	// arrange
	const copies = 3
	const contenders = 12
	itemID := f.GivenItem(t, copies, copies)
	errSoldOut := errors.New("sold out")

	var wg sync.WaitGroup
	var mu sync.Mutex
	succeeded := 0

	// act
	for range contenders {
		wg.Add(1)
		go func() {
			defer wg.Done()

			err := f.Store().RunInTx(context.Background(), func(ctx context.Context, tx loanstore.Tx) error {
				item, err := tx.LockItem(ctx, itemID)
				if err != nil {
					return err
				}

				if item.AvailableCopies == 0 {
					return errSoldOut
				}

				return tx.UpdateAvailableCopies(ctx, itemID, item.AvailableCopies-1)
			})

			if err == nil {
				mu.Lock()
				succeeded++
				mu.Unlock()
			} else {
				assert.ErrorIs(t, err, errSoldOut)
			}
		}()
	}
	wg.Wait()

	// assert
	assert.Equal(t, copies, succeeded)

	item, err := f.Store().Item(context.Background(), itemID)
	require.NoError(t, err)
	assert.Equal(t, 0, item.AvailableCopies)
}

func givenLoan(t testing.TB, f Fixture, memberID, itemID int64, borrowDate, dueDate time.Time) loanstore.Loan {
	var loan loanstore.Loan

	err := f.Store().RunInTx(context.Background(), func(ctx context.Context, tx loanstore.Tx) error {
		var err error
		loan, err = tx.InsertLoan(ctx, loanstore.Loan{
			MemberID:   memberID,
			ItemID:     itemID,
			BorrowDate: borrowDate,
			DueDate:    dueDate,
		})

		return err
	})
	require.NoError(t, err, "error in arranging test data")

	return loan
}
