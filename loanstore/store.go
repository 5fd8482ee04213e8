package loanstore

import (
	"context"
	"time"
)

// Tx is the unit of work handed to the RunInTx callback.
// Row locks taken by LockItem and LockLoan are held until the transaction ends.
type Tx interface {
	MemberExists(ctx context.Context, memberID int64) (bool, error)
	HasActiveLoan(ctx context.Context, memberID, itemID int64) (bool, error)
	CountActiveLoans(ctx context.Context, memberID int64) (int, error)

	// LockItem reads the item under an exclusive row lock. It returns ErrItemNotFound for unknown ids.
	LockItem(ctx context.Context, itemID int64) (Item, error)

	// UpdateAvailableCopies returns ErrCopiesOutOfRange if the value leaves [0, TotalCopies].
	UpdateAvailableCopies(ctx context.Context, itemID int64, availableCopies int) error

	// InsertLoan stores the loan and returns it with the assigned ID.
	InsertLoan(ctx context.Context, loan Loan) (Loan, error)

	// LockLoan reads the loan under an exclusive row lock. It returns ErrLoanNotFound for unknown ids.
	LockLoan(ctx context.Context, loanID int64) (Loan, error)

	MarkLoanReturned(ctx context.Context, loanID int64, returnDate time.Time) error
}

// Store is the shared counter store.
type Store interface {
	// RunInTx runs fn in one transaction. The transaction commits only if fn returns nil.
	RunInTx(ctx context.Context, fn func(ctx context.Context, tx Tx) error) error

	Item(ctx context.Context, itemID int64) (Item, error)
	LoansByMember(ctx context.Context, memberID int64, status LoanStatus, asOf time.Time) (Loans, error)
	LoansByItem(ctx context.Context, itemID int64, status LoanStatus, asOf time.Time) (Loans, error)
	OverdueLoans(ctx context.Context, asOf time.Time) (Loans, error)
}
