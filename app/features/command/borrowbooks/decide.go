package borrowbooks

import (
	"time"

	"github.com/AntonStoeckl/library-loans/app/shared/core"
	"github.com/AntonStoeckl/library-loans/loanstore"
)

// Rules are the lending rules applied inside the locked transaction.
type Rules struct {
	LoanPeriod        time.Duration
	MaxBooksPerMember int // 0 disables the cap
}

// ValidateCommand rejects commands that cannot succeed whatever the store holds.
func ValidateCommand(command Command) error {
	if command.MemberID <= 0 {
		return core.Validation(core.ReasonInvalidMemberID)
	}

	if len(command.ItemIDs) == 0 {
		return core.Validation(core.ReasonEmptyBatch)
	}

	return nil
}

func DecideMember(exists bool) error {
	if !exists {
		return core.NotFound(core.ReasonMemberNotFound)
	}

	return nil
}

// DecideLoanLimit rejects a batch that would take the member over the cap.
// It runs under the member lock, so two concurrent batches cannot both pass it.
func DecideLoanLimit(rules Rules, activeLoans, batchSize int) error {
	if rules.MaxBooksPerMember > 0 && activeLoans+batchSize > rules.MaxBooksPerMember {
		return core.Conflict(core.ReasonLoanLimitReached)
	}

	return nil
}

func DecideNoActiveLoan(itemID int64, hasActiveLoan bool) error {
	if hasActiveLoan {
		return core.Conflict(core.ReasonActiveLoanExists).ForItem(itemID)
	}

	return nil
}

// DecideAvailability expects the item to be read under its row lock.
func DecideAvailability(item loanstore.Item) error {
	if item.AvailableCopies <= 0 {
		return core.Conflict(core.ReasonNotAvailable).ForItem(item.ID)
	}

	return nil
}

// NewLoan builds the loan a successful borrow of itemID creates.
func NewLoan(memberID, itemID int64, borrowedAt time.Time, rules Rules) loanstore.Loan {
	return loanstore.Loan{
		MemberID:   memberID,
		ItemID:     itemID,
		BorrowDate: borrowedAt,
		DueDate:    borrowedAt.Add(rules.LoanPeriod),
	}
}
