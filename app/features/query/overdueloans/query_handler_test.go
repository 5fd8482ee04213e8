package overdueloans_test

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/AntonStoeckl/library-loans/app/features/command/borrowbooks"
	"github.com/AntonStoeckl/library-loans/app/features/command/returnbooks"
	"github.com/AntonStoeckl/library-loans/app/features/query/overdueloans"
	"github.com/AntonStoeckl/library-loans/app/shared/core"
	"github.com/AntonStoeckl/library-loans/loanstore"
	"github.com/AntonStoeckl/library-loans/testutil/handlerfixture"
)

var fakeClock = time.Date(2025, 1, 1, 9, 0, 0, 0, time.UTC)

func Test_QueryHandler_Handle_ListsOverdueLoansOldestFirst(t *testing.T) {
	// arrange
	ctx := context.Background()
	f := handlerfixture.New(t, time.Second)
	memberID := f.GivenMember(t)
	newer := f.GivenItem(t, 1, 1)
	older := f.GivenItem(t, 1, 1)
	returned := f.GivenItem(t, 1, 1)
	notDue := f.GivenItem(t, 1, 1)

	borrow := borrowbooks.NewCommandHandler(f.Store, f.Locker, f.Guard(core.OperationBorrow), borrowbooks.Rules{LoanPeriod: 24 * time.Hour})
	borrowAt := func(itemID int64, at time.Time) core.LoanEntry {
		result, _, err := borrow.Handle(ctx, borrowbooks.BuildCommand(memberID, []int64{itemID}, "", at))
		require.NoError(t, err)
		return result.Entries[0]
	}

	borrowAt(newer, fakeClock.Add(2*24*time.Hour))
	borrowAt(older, fakeClock)
	returnedLoan := borrowAt(returned, fakeClock)
	borrowAt(notDue, fakeClock.Add(10*24*time.Hour))

	giveBack := returnbooks.NewCommandHandler(f.Store, f.Locker, f.Guard(core.OperationReturn))
	_, _, err := giveBack.Handle(ctx, returnbooks.BuildCommand(memberID,
		[]core.ReturnPair{{LoanID: returnedLoan.LoanID, ItemID: returned}}, "", fakeClock.Add(5*24*time.Hour)))
	require.NoError(t, err)

	handler := overdueloans.NewQueryHandler(f.Store)
	asOf := fakeClock.Add(10*24*time.Hour + time.Hour)

	// act
	result, err := handler.Handle(ctx, overdueloans.BuildQuery(asOf))

	// assert
	require.NoError(t, err)
	require.Equal(t, 2, result.Count)
	assert.Equal(t, older, result.Loans[0].ItemID)
	assert.Equal(t, 9, result.Loans[0].DaysOverdue)
	assert.Equal(t, newer, result.Loans[1].ItemID)
	assert.Equal(t, 7, result.Loans[1].DaysOverdue)
}

func Test_Project_SkipsLoansThatAreNotOverdue(t *testing.T) {
	// arrange
	asOf := fakeClock.Add(48 * time.Hour)
	returnedAt := fakeClock.Add(time.Hour)
	loans := loanstore.Loans{
		{ID: 1, DueDate: fakeClock},
		{ID: 2, DueDate: fakeClock, ReturnDate: &returnedAt},
		{ID: 3, DueDate: asOf.Add(time.Hour)},
	}

	// act
	result := overdueloans.Project(loans, asOf)

	// assert
	require.Equal(t, 1, result.Count)
	assert.Equal(t, int64(1), result.Loans[0].LoanID)
	assert.Equal(t, 2, result.Loans[0].DaysOverdue)
}
