package overdueloans

import (
	"time"

	"github.com/AntonStoeckl/library-loans/loanstore"
)

// OverdueLoan is one active loan past its due date.
type OverdueLoan struct {
	LoanID      int64
	MemberID    int64
	ItemID      int64
	BorrowDate  time.Time
	DueDate     time.Time
	DaysOverdue int
}

// OverdueLoans is the query result.
type OverdueLoans struct {
	AsOf  time.Time
	Loans []OverdueLoan
	Count int
}

// Project builds the result. Loans that are not overdue at asOf are skipped.
func Project(loans loanstore.Loans, asOf time.Time) OverdueLoans {
	result := OverdueLoans{
		AsOf:  asOf,
		Loans: make([]OverdueLoan, 0, len(loans)),
	}

	for _, loan := range loans {
		if !loan.IsOverdueAt(asOf) {
			continue
		}

		result.Loans = append(result.Loans, OverdueLoan{
			LoanID:      loan.ID,
			MemberID:    loan.MemberID,
			ItemID:      loan.ItemID,
			BorrowDate:  loan.BorrowDate,
			DueDate:     loan.DueDate,
			DaysOverdue: loan.DaysOverdueAt(asOf),
		})
	}

	result.Count = len(result.Loans)

	return result
}
