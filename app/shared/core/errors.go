package core

import (
	"errors"
	"fmt"
)

// Error kinds. Every business failure unwraps to exactly one of them.
var (
	ErrNotFound          = errors.New("not found")
	ErrConflict          = errors.New("conflict")
	ErrValidation        = errors.New("validation failed")
	ErrLockTimeout       = errors.New("lock not acquired within the wait budget")
	ErrNotFoundOrExpired = errors.New("request outcome not found or expired")

	// ErrInternal wraps infrastructure failures (store, cache, lock backend).
	ErrInternal = errors.New("internal error")
)

// Failure reasons used by the borrow and return rules.
const (
	ReasonMemberNotFound      = "member not found"
	ReasonItemNotFound        = "item not found"
	ReasonLoanNotFound        = "loan not found"
	ReasonActiveLoanExists    = "active loan exists"
	ReasonNotAvailable        = "not available"
	ReasonAlreadyReturned     = "already returned"
	ReasonLoanLimitReached    = "member loan limit reached"
	ReasonLoanNotOwned        = "loan does not belong to member"
	ReasonLoanItemMismatch    = "loan does not match item"
	ReasonEmptyBatch          = "no items given"
	ReasonInvalidMemberID     = "member id must be positive"
	ReasonLockTimeout         = "member is busy with another request"
	ReasonRequestInProgress   = "request is still in progress"
	ReasonRequestNotCompleted = "no completed outcome for request"
	ReasonEmptyRequestID      = "request id must not be empty"
	ReasonUnknownOperation    = "unknown operation"
)

// Failure is a business rule violation. It names the offending item or loan where there is one.
type Failure struct {
	Kind   error
	Reason string
	ItemID int64
	LoanID int64
}

func (f *Failure) Error() string {
	switch {
	case f.LoanID != 0:
		return fmt.Sprintf("%s: %s (loan %d)", f.Kind, f.Reason, f.LoanID)
	case f.ItemID != 0:
		return fmt.Sprintf("%s: %s (item %d)", f.Kind, f.Reason, f.ItemID)
	default:
		return fmt.Sprintf("%s: %s", f.Kind, f.Reason)
	}
}

func (f *Failure) Unwrap() error {
	return f.Kind
}

func NotFound(reason string) *Failure {
	return &Failure{Kind: ErrNotFound, Reason: reason}
}

func Conflict(reason string) *Failure {
	return &Failure{Kind: ErrConflict, Reason: reason}
}

func Validation(reason string) *Failure {
	return &Failure{Kind: ErrValidation, Reason: reason}
}

func LockTimeout(reason string) *Failure {
	return &Failure{Kind: ErrLockTimeout, Reason: reason}
}

func NotFoundOrExpired(reason string) *Failure {
	return &Failure{Kind: ErrNotFoundOrExpired, Reason: reason}
}

// ForItem returns a copy naming the item.
func (f *Failure) ForItem(itemID int64) *Failure {
	c := *f
	c.ItemID = itemID

	return &c
}

// ForLoan returns a copy naming the loan.
func (f *Failure) ForLoan(loanID int64) *Failure {
	c := *f
	c.LoanID = loanID

	return &c
}

// Internal joins err with ErrInternal unless it already is a business failure.
func Internal(err error) error {
	var failure *Failure
	if err == nil || errors.As(err, &failure) || errors.Is(err, ErrInternal) {
		return err
	}

	return errors.Join(ErrInternal, err)
}

// AsFailure extracts the business failure from err.
func AsFailure(err error) (*Failure, bool) {
	var failure *Failure
	ok := errors.As(err, &failure)

	return failure, ok
}
