package memoryengine_test

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/AntonStoeckl/library-loans/loanstore"
	"github.com/AntonStoeckl/library-loans/loanstore/memoryengine"
	"github.com/AntonStoeckl/library-loans/testutil/storecontract"
)

type fixture struct {
	store  *memoryengine.LoanStore
	nextID atomic.Int64
}

func (f *fixture) Store() loanstore.Store {
	return f.store
}

func (f *fixture) GivenMember(_ testing.TB) int64 {
	id := f.nextID.Add(1)
	f.store.AddMember(id)

	return id
}

func (f *fixture) GivenItem(t testing.TB, totalCopies, availableCopies int) int64 {
	id := f.nextID.Add(1)
	err := f.store.AddItem(loanstore.Item{ID: id, Title: "Item", TotalCopies: totalCopies, AvailableCopies: availableCopies})
	require.NoError(t, err, "error in arranging test data")

	return id
}

func newFixture(t *testing.T) storecontract.Fixture {
	store, err := memoryengine.NewLoanStore()
	require.NoError(t, err)

	return &fixture{store: store}
}

func Test_MemoryEngine_FulfillsStoreContract(t *testing.T) {
	storecontract.Run(t, newFixture)
}

func Test_AddItem_RejectsInconsistentCopies(t *testing.T) {
	store, err := memoryengine.NewLoanStore()
	require.NoError(t, err)

	err = store.AddItem(loanstore.Item{ID: 1, TotalCopies: 1, AvailableCopies: 2})

	assert.ErrorIs(t, err, memoryengine.ErrInvalidItem)
}

func Test_InsertLoan_RejectsSecondActiveLoanForSameMemberAndItem(t *testing.T) {
	// arrange
	f := newFixture(t)
	memberID := f.GivenMember(t)
	itemID := f.GivenItem(t, 2, 2)
	now := storecontract.Now()

	// act
	err := f.Store().RunInTx(context.Background(), func(ctx context.Context, tx loanstore.Tx) error {
		loan := loanstore.Loan{MemberID: memberID, ItemID: itemID, BorrowDate: now, DueDate: now}
		if _, err := tx.InsertLoan(ctx, loan); err != nil {
			return err
		}

		_, err := tx.InsertLoan(ctx, loan)
		return err
	})

	// assert
	assert.ErrorIs(t, err, memoryengine.ErrDuplicateActiveLoan)
}

func Test_RunInTx_WaitingForBusyStoreHonoursContext(t *testing.T) {
	// arrange
	store, err := memoryengine.NewLoanStore()
	require.NoError(t, err)

	entered := make(chan struct{})
	release := make(chan struct{})
	go func() {
		_ = store.RunInTx(context.Background(), func(_ context.Context, _ loanstore.Tx) error {
			close(entered)
			<-release
			return nil
		})
	}()
	<-entered
	defer close(release)

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()

	// act
	err = store.RunInTx(ctx, func(_ context.Context, _ loanstore.Tx) error {
		return errors.New("must not run")
	})

	// assert
	assert.ErrorIs(t, err, context.DeadlineExceeded)
}
