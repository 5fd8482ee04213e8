package itemloans

import (
	"time"

	"github.com/AntonStoeckl/library-loans/loanstore"
)

// LoanInfo is one loan of the item.
type LoanInfo struct {
	LoanID      int64
	MemberID    int64
	BorrowDate  time.Time
	DueDate     time.Time
	ReturnDate  *time.Time
	DaysOverdue int
}

// ItemLoans is the query result.
type ItemLoans struct {
	ItemID          int64
	Title           string
	Author          string
	ISBN            string
	TotalCopies     int
	AvailableCopies int
	Status          string
	Loans           []LoanInfo
	Count           int
}

// Project builds the result from the item and its stored loans.
func Project(item loanstore.Item, status loanstore.LoanStatus, loans loanstore.Loans, asOf time.Time) ItemLoans {
	result := ItemLoans{
		ItemID:          item.ID,
		Title:           item.Title,
		Author:          item.Author,
		ISBN:            item.ISBN,
		TotalCopies:     item.TotalCopies,
		AvailableCopies: item.AvailableCopies,
		Status:          status.String(),
		Loans:           make([]LoanInfo, 0, len(loans)),
	}

	for _, loan := range loans {
		result.Loans = append(result.Loans, LoanInfo{
			LoanID:      loan.ID,
			MemberID:    loan.MemberID,
			BorrowDate:  loan.BorrowDate,
			DueDate:     loan.DueDate,
			ReturnDate:  loan.ReturnDate,
			DaysOverdue: loan.DaysOverdueAt(asOf),
		})
	}

	result.Count = len(result.Loans)

	return result
}
