package loanstore

import "time"

// Item is one catalog entry with a physical stock of copies.
// AvailableCopies stays within [0, TotalCopies].
type Item struct {
	ID              int64
	Title           string
	Author          string
	ISBN            string
	TotalCopies     int
	AvailableCopies int
}

// Loan records one copy of an item being lent to a member.
// A nil ReturnDate marks the loan as active.
type Loan struct {
	ID         int64
	MemberID   int64
	ItemID     int64
	BorrowDate time.Time
	DueDate    time.Time
	ReturnDate *time.Time
}

// Loans is a list of loans in store order.
type Loans []Loan

// IsActive reports whether the loan has not been returned yet.
func (l Loan) IsActive() bool {
	return l.ReturnDate == nil
}

// IsOverdueAt reports whether the loan is still active and past its due date at the given instant.
func (l Loan) IsOverdueAt(asOf time.Time) bool {
	return l.IsActive() && l.DueDate.Before(asOf)
}

// DaysOverdueAt returns the number of whole days the loan is past its due date, or 0.
func (l Loan) DaysOverdueAt(asOf time.Time) int {
	if !l.IsOverdueAt(asOf) {
		return 0
	}

	return int(asOf.Sub(l.DueDate).Hours() / 24)
}

// LoanStatus selects which loans a history read returns.
type LoanStatus int

const (
	// AnyLoan selects active and returned loans.
	AnyLoan LoanStatus = iota

	// ActiveLoan selects loans without a return date.
	ActiveLoan

	// OverdueLoan selects active loans whose due date lies before the read's reference time.
	OverdueLoan
)

// String provides a string representation of LoanStatus for logging and flags.
func (s LoanStatus) String() string {
	switch s {
	case AnyLoan:
		return "all"
	case ActiveLoan:
		return "active"
	case OverdueLoan:
		return "overdue"
	default:
		return "unknown"
	}
}

// ParseLoanStatus is the inverse of LoanStatus.String.
func ParseLoanStatus(s string) (LoanStatus, error) {
	switch s {
	case "all", "":
		return AnyLoan, nil
	case "active":
		return ActiveLoan, nil
	case "overdue":
		return OverdueLoan, nil
	default:
		return AnyLoan, ErrUnknownLoanStatus
	}
}

// Matches reports whether the loan belongs to the selection at the given instant.
func (s LoanStatus) Matches(l Loan, asOf time.Time) bool {
	switch s {
	case ActiveLoan:
		return l.IsActive()
	case OverdueLoan:
		return l.IsOverdueAt(asOf)
	default:
		return true
	}
}
