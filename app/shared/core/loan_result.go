package core

import (
	"time"

	"github.com/AntonStoeckl/library-loans/loanstore"
)

// LoanEntry is one loan touched by a borrow or return, in request order.
type LoanEntry struct {
	LoanID     int64      `json:"loan_id"`
	ItemID     int64      `json:"item_id"`
	BorrowDate time.Time  `json:"borrow_date"`
	DueDate    time.Time  `json:"due_date"`
	ReturnDate *time.Time `json:"return_date"`
}

// LoanResult is the outcome of a completed borrow or return.
// It is what the idempotency cache stores under the request id.
type LoanResult struct {
	MemberID int64       `json:"member_id"`
	Entries  []LoanEntry `json:"entries"`

	// Replayed is set when the result came from the idempotency cache instead of a fresh execution.
	Replayed bool `json:"-"`
}

// EntryFromLoan converts a stored loan into a result entry.
func EntryFromLoan(loan loanstore.Loan) LoanEntry {
	entry := LoanEntry{
		LoanID:     loan.ID,
		ItemID:     loan.ItemID,
		BorrowDate: loan.BorrowDate,
		DueDate:    loan.DueDate,
	}

	if loan.ReturnDate != nil {
		returned := *loan.ReturnDate
		entry.ReturnDate = &returned
	}

	return entry
}

// ItemIDs returns the item ids of all entries in order.
func (r LoanResult) ItemIDs() []int64 {
	ids := make([]int64, 0, len(r.Entries))
	for _, entry := range r.Entries {
		ids = append(ids, entry.ItemID)
	}

	return ids
}

// AsReplay returns a copy marked as served from the idempotency cache.
func (r LoanResult) AsReplay() LoanResult {
	r.Replayed = true
	return r
}
