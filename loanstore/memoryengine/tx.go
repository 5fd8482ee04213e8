package memoryengine

import (
	"context"
	"time"

	"github.com/AntonStoeckl/library-loans/loanstore"
)

// memTx stages writes on top of the committed state. The store's transaction slot is held while it is in use,
// so reading the committed maps needs only the read lock.
type memTx struct {
	store        *LoanStore
	stagedItems  map[int64]loanstore.Item
	stagedLoans  map[int64]loanstore.Loan
	insertedLoan map[int64]bool
}

func (t *memTx) MemberExists(ctx context.Context, memberID int64) (bool, error) {
	if err := ctx.Err(); err != nil {
		return false, err
	}

	t.store.mu.RLock()
	defer t.store.mu.RUnlock()

	_, ok := t.store.members[memberID]

	return ok, nil
}

func (t *memTx) HasActiveLoan(ctx context.Context, memberID, itemID int64) (bool, error) {
	if err := ctx.Err(); err != nil {
		return false, err
	}

	for _, loan := range t.visibleLoans() {
		if loan.MemberID == memberID && loan.ItemID == itemID && loan.IsActive() {
			return true, nil
		}
	}

	return false, nil
}

func (t *memTx) CountActiveLoans(ctx context.Context, memberID int64) (int, error) {
	if err := ctx.Err(); err != nil {
		return 0, err
	}

	n := 0
	for _, loan := range t.visibleLoans() {
		if loan.MemberID == memberID && loan.IsActive() {
			n++
		}
	}

	return n, nil
}

func (t *memTx) LockItem(ctx context.Context, itemID int64) (loanstore.Item, error) {
	if err := ctx.Err(); err != nil {
		return loanstore.Item{}, err
	}

	if item, ok := t.stagedItems[itemID]; ok {
		return item, nil
	}

	t.store.mu.RLock()
	defer t.store.mu.RUnlock()

	item, ok := t.store.items[itemID]
	if !ok {
		return loanstore.Item{}, loanstore.ErrItemNotFound
	}

	return item, nil
}

func (t *memTx) UpdateAvailableCopies(ctx context.Context, itemID int64, availableCopies int) error {
	item, err := t.LockItem(ctx, itemID)
	if err != nil {
		return err
	}

	if availableCopies < 0 || availableCopies > item.TotalCopies {
		return loanstore.ErrCopiesOutOfRange
	}

	item.AvailableCopies = availableCopies
	t.stagedItems[itemID] = item

	return nil
}

func (t *memTx) InsertLoan(ctx context.Context, loan loanstore.Loan) (loanstore.Loan, error) {
	if err := ctx.Err(); err != nil {
		return loanstore.Loan{}, err
	}

	active, err := t.HasActiveLoan(ctx, loan.MemberID, loan.ItemID)
	if err != nil {
		return loanstore.Loan{}, err
	}

	if active {
		return loanstore.Loan{}, ErrDuplicateActiveLoan
	}

	t.store.nextLoanID++
	loan.ID = t.store.nextLoanID
	loan.ReturnDate = nil
	t.stagedLoans[loan.ID] = loan
	t.insertedLoan[loan.ID] = true

	return loan, nil
}

func (t *memTx) LockLoan(ctx context.Context, loanID int64) (loanstore.Loan, error) {
	if err := ctx.Err(); err != nil {
		return loanstore.Loan{}, err
	}

	if loan, ok := t.stagedLoans[loanID]; ok {
		return copyLoan(loan), nil
	}

	t.store.mu.RLock()
	defer t.store.mu.RUnlock()

	loan, ok := t.store.loans[loanID]
	if !ok {
		return loanstore.Loan{}, loanstore.ErrLoanNotFound
	}

	return copyLoan(loan), nil
}

func (t *memTx) MarkLoanReturned(ctx context.Context, loanID int64, returnDate time.Time) error {
	loan, err := t.LockLoan(ctx, loanID)
	if err != nil {
		return err
	}

	if !loan.IsActive() {
		return loanstore.ErrLoanNotFound
	}

	rd := returnDate
	loan.ReturnDate = &rd
	t.stagedLoans[loanID] = loan

	return nil
}

// visibleLoans merges committed and staged loans.
func (t *memTx) visibleLoans() []loanstore.Loan {
	t.store.mu.RLock()
	defer t.store.mu.RUnlock()

	loans := make([]loanstore.Loan, 0, len(t.store.loans)+len(t.insertedLoan))
	for id, loan := range t.store.loans {
		if staged, ok := t.stagedLoans[id]; ok {
			loan = staged
		}

		loans = append(loans, loan)
	}

	for id := range t.insertedLoan {
		loans = append(loans, t.stagedLoans[id])
	}

	return loans
}
