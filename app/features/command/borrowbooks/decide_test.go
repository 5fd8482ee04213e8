package borrowbooks_test

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/AntonStoeckl/library-loans/app/features/command/borrowbooks"
	"github.com/AntonStoeckl/library-loans/app/shared/core"
	"github.com/AntonStoeckl/library-loans/loanstore"
)

func Test_ValidateCommand(t *testing.T) {
	now := time.Now()

	testCases := []struct {
		name       string
		command    borrowbooks.Command
		wantReason string
	}{
		{name: "valid", command: borrowbooks.BuildCommand(1, []int64{1}, "", now)},
		{name: "zero member", command: borrowbooks.BuildCommand(0, []int64{1}, "", now), wantReason: core.ReasonInvalidMemberID},
		{name: "negative member", command: borrowbooks.BuildCommand(-4, []int64{1}, "", now), wantReason: core.ReasonInvalidMemberID},
		{name: "empty batch", command: borrowbooks.BuildCommand(1, nil, "", now), wantReason: core.ReasonEmptyBatch},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			// act
			err := borrowbooks.ValidateCommand(tc.command)

			// assert
			if tc.wantReason == "" {
				assert.NoError(t, err)
				return
			}

			assert.ErrorIs(t, err, core.ErrValidation)
			failure, ok := core.AsFailure(err)
			require.True(t, ok)
			assert.Equal(t, tc.wantReason, failure.Reason)
		})
	}
}

func Test_BuildCommand_TruncatesToMicrosecondsUTC(t *testing.T) {
	// arrange
	local := time.Date(2025, 5, 1, 10, 0, 0, 123456789, time.FixedZone("CEST", 2*60*60))
	itemIDs := []int64{1, 2}

	// act
	command := borrowbooks.BuildCommand(3, itemIDs, "req", local)
	itemIDs[0] = 99

	// assert
	assert.Equal(t, time.UTC, command.BorrowedAt.Location())
	assert.Equal(t, 123456000, command.BorrowedAt.Nanosecond())
	assert.True(t, command.BorrowedAt.Equal(local.Truncate(time.Microsecond)))
	assert.Equal(t, []int64{1, 2}, command.ItemIDs)
	assert.Equal(t, "BorrowBooks", command.CommandType())
}

func Test_DecideMember(t *testing.T) {
	assert.NoError(t, borrowbooks.DecideMember(true))
	assert.ErrorIs(t, borrowbooks.DecideMember(false), core.ErrNotFound)
}

func Test_DecideLoanLimit(t *testing.T) {
	testCases := []struct {
		name      string
		max       int
		active    int
		batchSize int
		wantErr   bool
	}{
		{name: "cap disabled", max: 0, active: 100, batchSize: 5},
		{name: "below cap", max: 5, active: 2, batchSize: 2},
		{name: "exactly at cap", max: 5, active: 3, batchSize: 2},
		{name: "over cap", max: 5, active: 4, batchSize: 2, wantErr: true},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			// act
			err := borrowbooks.DecideLoanLimit(borrowbooks.Rules{MaxBooksPerMember: tc.max}, tc.active, tc.batchSize)

			// assert
			if !tc.wantErr {
				assert.NoError(t, err)
				return
			}

			assert.ErrorIs(t, err, core.ErrConflict)
			failure, _ := core.AsFailure(err)
			assert.Equal(t, core.ReasonLoanLimitReached, failure.Reason)
		})
	}
}

func Test_DecideNoActiveLoan(t *testing.T) {
	// act
	err := borrowbooks.DecideNoActiveLoan(42, true)

	// assert
	assert.NoError(t, borrowbooks.DecideNoActiveLoan(42, false))
	assert.ErrorIs(t, err, core.ErrConflict)
	failure, _ := core.AsFailure(err)
	assert.Equal(t, core.ReasonActiveLoanExists, failure.Reason)
	assert.Equal(t, int64(42), failure.ItemID)
}

func Test_DecideAvailability(t *testing.T) {
	// act
	err := borrowbooks.DecideAvailability(loanstore.Item{ID: 7, TotalCopies: 2, AvailableCopies: 0})

	// assert
	assert.NoError(t, borrowbooks.DecideAvailability(loanstore.Item{ID: 7, TotalCopies: 2, AvailableCopies: 1}))
	assert.ErrorIs(t, err, core.ErrConflict)
	failure, _ := core.AsFailure(err)
	assert.Equal(t, core.ReasonNotAvailable, failure.Reason)
	assert.Equal(t, int64(7), failure.ItemID)
}

func Test_NewLoan_DueDateIsBorrowDatePlusLoanPeriod(t *testing.T) {
	// arrange
	borrowedAt := time.Date(2025, 1, 10, 12, 0, 0, 0, time.UTC)

	// act
	loan := borrowbooks.NewLoan(3, 9, borrowedAt, borrowbooks.Rules{LoanPeriod: 14 * 24 * time.Hour})

	// assert
	assert.Equal(t, int64(3), loan.MemberID)
	assert.Equal(t, int64(9), loan.ItemID)
	assert.True(t, loan.BorrowDate.Equal(borrowedAt))
	assert.True(t, loan.DueDate.Equal(time.Date(2025, 1, 24, 12, 0, 0, 0, time.UTC)))
	assert.Nil(t, loan.ReturnDate)
}
