package memberloans

import (
	"time"

	"github.com/AntonStoeckl/library-loans/loanstore"
)

// LoanInfo is one loan of the member.
type LoanInfo struct {
	LoanID      int64
	ItemID      int64
	BorrowDate  time.Time
	DueDate     time.Time
	ReturnDate  *time.Time
	DaysOverdue int
}

// MemberLoans is the query result, loans ordered by loan id.
type MemberLoans struct {
	MemberID int64
	Loans    []LoanInfo
	Count    int
}

// Project builds the result from the stored loans.
func Project(memberID int64, loans loanstore.Loans, asOf time.Time) MemberLoans {
	result := MemberLoans{
		MemberID: memberID,
		Loans:    make([]LoanInfo, 0, len(loans)),
	}

	for _, loan := range loans {
		result.Loans = append(result.Loans, LoanInfo{
			LoanID:      loan.ID,
			ItemID:      loan.ItemID,
			BorrowDate:  loan.BorrowDate,
			DueDate:     loan.DueDate,
			ReturnDate:  loan.ReturnDate,
			DaysOverdue: loan.DaysOverdueAt(asOf),
		})
	}

	result.Count = len(result.Loans)

	return result
}
