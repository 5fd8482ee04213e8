package memoryengine

import (
	"context"
	"errors"
	"sort"
	"sync"
	"time"

	"github.com/AntonStoeckl/library-loans/loanstore"
)

const (
	logMsgTxCommitted  = "transaction committed"
	logMsgTxRolledBack = "transaction rolled back"
	logAttrError       = "error"
	logAttrItems       = "items_changed"
	logAttrLoans       = "loans_changed"
)

var ErrInvalidItem = errors.New("invalid item")
var ErrDuplicateActiveLoan = errors.New("member already has an active loan for this item")

// Option defines a functional option for configuring LoanStore.
type Option func(*LoanStore) error

// WithLogger sets the logger for the LoanStore.
func WithLogger(logger loanstore.Logger) Option {
	return func(s *LoanStore) error {
		s.logger = logger
		return nil
	}
}

// LoanStore is the in-process implementation of loanstore.Store.
type LoanStore struct {
	txSlot chan struct{} // capacity 1, held for the duration of one transaction

	mu         sync.RWMutex
	members    map[int64]struct{}
	items      map[int64]loanstore.Item
	loans      map[int64]loanstore.Loan
	nextLoanID int64

	logger loanstore.Logger
}

// NewLoanStore creates an empty store.
func NewLoanStore(options ...Option) (*LoanStore, error) {
	s := &LoanStore{
		txSlot:  make(chan struct{}, 1),
		members: make(map[int64]struct{}),
		items:   make(map[int64]loanstore.Item),
		loans:   make(map[int64]loanstore.Loan),
	}

	for _, option := range options {
		if err := option(s); err != nil {
			return nil, err
		}
	}

	return s, nil
}

// AddMember registers a member id.
func (s *LoanStore) AddMember(memberID int64) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.members[memberID] = struct{}{}
}

// AddItem registers or replaces an item. AvailableCopies must lie within [0, TotalCopies].
func (s *LoanStore) AddItem(item loanstore.Item) error {
	if item.TotalCopies < 0 || item.AvailableCopies < 0 || item.AvailableCopies > item.TotalCopies {
		return errors.Join(ErrInvalidItem, loanstore.ErrCopiesOutOfRange)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	s.items[item.ID] = item

	return nil
}

// RunInTx runs fn while holding the store's transaction slot and applies the staged writes if fn returns nil.
// Waiting for the slot honours ctx.
func (s *LoanStore) RunInTx(ctx context.Context, fn func(ctx context.Context, tx loanstore.Tx) error) error {
	select {
	case s.txSlot <- struct{}{}:
	case <-ctx.Done():
		return ctx.Err()
	}
	defer func() { <-s.txSlot }()

	tx := &memTx{
		store:        s,
		stagedItems:  make(map[int64]loanstore.Item),
		stagedLoans:  make(map[int64]loanstore.Loan),
		insertedLoan: make(map[int64]bool),
	}

	if err := fn(ctx, tx); err != nil {
		s.logInfo(logMsgTxRolledBack, logAttrError, err.Error())
		return err
	}

	if err := ctx.Err(); err != nil {
		s.logInfo(logMsgTxRolledBack, logAttrError, err.Error())
		return err
	}

	s.commit(tx)
	s.logDebug(logMsgTxCommitted, logAttrItems, len(tx.stagedItems), logAttrLoans, len(tx.stagedLoans))

	return nil
}

func (s *LoanStore) commit(tx *memTx) {
	s.mu.Lock()
	defer s.mu.Unlock()

	for id, item := range tx.stagedItems {
		s.items[id] = item
	}

	for id, loan := range tx.stagedLoans {
		s.loans[id] = loan
	}
}

// Item reads an item.
func (s *LoanStore) Item(_ context.Context, itemID int64) (loanstore.Item, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	item, ok := s.items[itemID]
	if !ok {
		return loanstore.Item{}, loanstore.ErrItemNotFound
	}

	return item, nil
}

// LoansByMember returns the member's loans filtered by status, ordered by loan id.
func (s *LoanStore) LoansByMember(_ context.Context, memberID int64, status loanstore.LoanStatus, asOf time.Time) (loanstore.Loans, error) {
	return s.filterLoans(func(l loanstore.Loan) bool {
		return l.MemberID == memberID && status.Matches(l, asOf)
	}, byID), nil
}

// LoansByItem returns the item's loans filtered by status, ordered by loan id.
func (s *LoanStore) LoansByItem(_ context.Context, itemID int64, status loanstore.LoanStatus, asOf time.Time) (loanstore.Loans, error) {
	return s.filterLoans(func(l loanstore.Loan) bool {
		return l.ItemID == itemID && status.Matches(l, asOf)
	}, byID), nil
}

// OverdueLoans returns all active loans due before asOf, oldest due date first.
func (s *LoanStore) OverdueLoans(_ context.Context, asOf time.Time) (loanstore.Loans, error) {
	return s.filterLoans(func(l loanstore.Loan) bool {
		return l.IsOverdueAt(asOf)
	}, byDueDate), nil
}

func byID(a, b loanstore.Loan) bool {
	return a.ID < b.ID
}

func byDueDate(a, b loanstore.Loan) bool {
	if a.DueDate.Equal(b.DueDate) {
		return a.ID < b.ID
	}

	return a.DueDate.Before(b.DueDate)
}

func (s *LoanStore) filterLoans(keep func(loanstore.Loan) bool, less func(a, b loanstore.Loan) bool) loanstore.Loans {
	s.mu.RLock()
	defer s.mu.RUnlock()

	loans := make(loanstore.Loans, 0)
	for _, loan := range s.loans {
		if keep(loan) {
			loans = append(loans, copyLoan(loan))
		}
	}

	sort.Slice(loans, func(i, j int) bool { return less(loans[i], loans[j]) })

	return loans
}

func copyLoan(l loanstore.Loan) loanstore.Loan {
	if l.ReturnDate != nil {
		rd := *l.ReturnDate
		l.ReturnDate = &rd
	}

	return l
}

func (s *LoanStore) logDebug(msg string, args ...any) {
	if s.logger != nil {
		s.logger.Debug(msg, args...)
	}
}

func (s *LoanStore) logInfo(msg string, args ...any) {
	if s.logger != nil {
		s.logger.Info(msg, args...)
	}
}
