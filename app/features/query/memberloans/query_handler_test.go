package memberloans_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/AntonStoeckl/library-loans/app/features/command/borrowbooks"
	"github.com/AntonStoeckl/library-loans/app/features/command/returnbooks"
	"github.com/AntonStoeckl/library-loans/app/features/query/memberloans"
	"github.com/AntonStoeckl/library-loans/app/shared/core"
	"github.com/AntonStoeckl/library-loans/loanstore"
	"github.com/AntonStoeckl/library-loans/testutil/handlerfixture"
)

var fakeClock = time.Date(2025, 1, 1, 9, 0, 0, 0, time.UTC)

func Test_QueryHandler_Handle_ListsMemberLoans(t *testing.T) {
	// arrange
	ctx := context.Background()
	f := handlerfixture.New(t, time.Second)
	memberID := f.GivenMember(t)
	otherMember := f.GivenMember(t)
	item1 := f.GivenItem(t, 2, 2)
	item2 := f.GivenItem(t, 2, 2)

	borrow := borrowbooks.NewCommandHandler(f.Store, f.Locker, f.Guard(core.OperationBorrow), borrowbooks.Rules{LoanPeriod: 24 * time.Hour})
	borrowed, _, err := borrow.Handle(ctx, borrowbooks.BuildCommand(memberID, []int64{item1, item2}, "", fakeClock))
	require.NoError(t, err)
	_, _, err = borrow.Handle(ctx, borrowbooks.BuildCommand(otherMember, []int64{item1}, "", fakeClock))
	require.NoError(t, err)

	giveBack := returnbooks.NewCommandHandler(f.Store, f.Locker, f.Guard(core.OperationReturn))
	_, _, err = giveBack.Handle(ctx, returnbooks.BuildCommand(memberID,
		[]core.ReturnPair{{LoanID: borrowed.Entries[0].LoanID, ItemID: item1}}, "", fakeClock.Add(time.Hour)))
	require.NoError(t, err)

	handler := memberloans.NewQueryHandler(f.Store)
	asOf := fakeClock.Add(72 * time.Hour)

	// act
	all, errAll := handler.Handle(ctx, memberloans.BuildQuery(memberID, false, asOf))
	active, errActive := handler.Handle(ctx, memberloans.BuildQuery(memberID, true, asOf))

	// assert
	require.NoError(t, errAll)
	require.NoError(t, errActive)

	assert.Equal(t, 2, all.Count)
	assert.Equal(t, borrowed.Entries[0].LoanID, all.Loans[0].LoanID)
	assert.NotNil(t, all.Loans[0].ReturnDate)
	assert.Equal(t, 0, all.Loans[0].DaysOverdue, "returned loans are never overdue")

	require.Equal(t, 1, active.Count)
	assert.Equal(t, item2, active.Loans[0].ItemID)
	assert.Equal(t, 2, active.Loans[0].DaysOverdue)
}

func Test_QueryHandler_Handle_InvalidMember(t *testing.T) {
	// arrange
	handler := memberloans.NewQueryHandler(handlerfixture.New(t, time.Second).Store)

	// act
	_, err := handler.Handle(context.Background(), memberloans.BuildQuery(0, false, fakeClock))

	// assert
	assert.ErrorIs(t, err, core.ErrValidation)
}

type consistencyRecorder struct {
	level loanstore.ConsistencyLevel
	err   error
}

func (r *consistencyRecorder) LoansByMember(ctx context.Context, _ int64, _ loanstore.LoanStatus, _ time.Time) (loanstore.Loans, error) {
	r.level = loanstore.GetConsistencyLevel(ctx)
	return nil, r.err
}

func Test_QueryHandler_Handle_ReadsWithEventualConsistency(t *testing.T) {
	// arrange
	store := &consistencyRecorder{}
	handler := memberloans.NewQueryHandler(store)

	// act
	result, err := handler.Handle(context.Background(), memberloans.BuildQuery(5, true, fakeClock))

	// assert
	require.NoError(t, err)
	assert.Equal(t, loanstore.EventualConsistency, store.level)
	assert.Equal(t, 0, result.Count)
	assert.NotNil(t, result.Loans)
}

func Test_QueryHandler_Handle_StoreErrorIsInternal(t *testing.T) {
	// arrange
	handler := memberloans.NewQueryHandler(&consistencyRecorder{err: errors.New("connection refused")})

	// act
	_, err := handler.Handle(context.Background(), memberloans.BuildQuery(5, false, fakeClock))

	// assert
	assert.ErrorIs(t, err, core.ErrInternal)
}
