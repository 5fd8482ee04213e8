package returnbooks

import (
	"errors"

	"github.com/AntonStoeckl/library-loans/app/shared/core"
	"github.com/AntonStoeckl/library-loans/loanstore"
)

// ErrInventoryInconsistent is returned when restocking would push an item over its total copies.
// It means the stored counters and loans disagree and is never a caller mistake.
var ErrInventoryInconsistent = errors.New("returning the loan would exceed the item's total copies")

// ValidateCommand rejects commands that cannot succeed whatever the store holds.
func ValidateCommand(command Command) error {
	if command.MemberID <= 0 {
		return core.Validation(core.ReasonInvalidMemberID)
	}

	if len(command.Returns) == 0 {
		return core.Validation(core.ReasonEmptyBatch)
	}

	return nil
}

// DecideReturn checks the locked loan against the returning member and the item named in the request.
func DecideReturn(loan loanstore.Loan, memberID int64, pair core.ReturnPair) error {
	if loan.MemberID != memberID {
		return core.Validation(core.ReasonLoanNotOwned).ForLoan(loan.ID)
	}

	if loan.ItemID != pair.ItemID {
		return core.Validation(core.ReasonLoanItemMismatch).ForLoan(loan.ID)
	}

	if !loan.IsActive() {
		return core.Conflict(core.ReasonAlreadyReturned).ForLoan(loan.ID)
	}

	return nil
}

// DecideRestock expects the item to be read under its row lock.
func DecideRestock(item loanstore.Item) error {
	if item.AvailableCopies+1 > item.TotalCopies {
		return core.Internal(ErrInventoryInconsistent)
	}

	return nil
}
