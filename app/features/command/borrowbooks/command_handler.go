package borrowbooks

import (
	"context"
	"errors"
	"time"

	"github.com/AntonStoeckl/library-loans/app/shared/core"
	"github.com/AntonStoeckl/library-loans/app/shared/shell"
	"github.com/AntonStoeckl/library-loans/loanstore"
)

// CommandHandler runs the borrow workflow: request guard, member lock, then one transaction with retry.
// External wrappers handle all observability concerns.
type CommandHandler struct {
	store        loanstore.Store
	locker       *shell.Locker
	guard        *shell.RequestGuard
	rules        Rules
	retryOptions []shell.RetryOption
	now          func() time.Time
}

// Option configures a CommandHandler.
type Option func(*CommandHandler)

// WithRetryOptions sets a custom retry configuration for the handler.
func WithRetryOptions(opts ...shell.RetryOption) Option {
	return func(h *CommandHandler) {
		h.retryOptions = opts
	}
}

// WithClock sets the clock used to stamp commands that carry no time of their own.
func WithClock(now func() time.Time) Option {
	return func(h *CommandHandler) {
		h.now = now
	}
}

// NewCommandHandler creates a new CommandHandler.
func NewCommandHandler(
	store loanstore.Store,
	locker *shell.Locker,
	guard *shell.RequestGuard,
	rules Rules,
	opts ...Option,
) CommandHandler {
	handler := CommandHandler{
		store:  store,
		locker: locker,
		guard:  guard,
		rules:  rules,
		now:    time.Now,
	}

	for _, opt := range opts {
		opt(&handler)
	}

	return handler
}

// Handle executes the borrow at most once per request id and returns the created loans in request order.
func (h CommandHandler) Handle(ctx context.Context, command Command) (core.LoanResult, shell.HandlerResult, error) {
	var retryMetrics shell.RetryMetrics

	if err := ValidateCommand(command); err != nil {
		return core.LoanResult{}, shell.NewErrorResult(retryMetrics), err
	}

	result, err := h.guard.Run(ctx, command.RequestID, func(ctx context.Context) (core.LoanResult, error) {
		var result core.LoanResult

		lockErr := h.locker.WithLock(ctx, core.MemberLockKey(command.MemberID), func(ctx context.Context) error {
			var retryErr error

			retryMetrics, retryErr = shell.RetryWithExponentialBackoff(ctx, func(retryCtx context.Context) error {
				var execErr error
				result, execErr = h.executeCommand(retryCtx, command)

				return execErr
			}, h.retryOptions...)

			return retryErr
		})

		return result, lockErr
	})

	if err != nil {
		return core.LoanResult{}, shell.NewErrorResult(retryMetrics), core.Internal(err)
	}

	if result.Replayed {
		return result, shell.NewReplayedResult(), nil
	}

	return result, shell.NewSuccessResult(retryMetrics, len(result.Entries)), nil
}

// executeCommand validates and mutates all items in one transaction. It is re-run as a whole on transient conflicts.
func (h CommandHandler) executeCommand(ctx context.Context, command Command) (core.LoanResult, error) {
	ctx = loanstore.WithStrongConsistency(ctx)

	if command.BorrowedAt.IsZero() {
		command.BorrowedAt = h.now().UTC().Truncate(time.Microsecond)
	}

	result := core.LoanResult{MemberID: command.MemberID}

	err := h.store.RunInTx(ctx, func(ctx context.Context, tx loanstore.Tx) error {
		exists, err := tx.MemberExists(ctx, command.MemberID)
		if err != nil {
			return err
		}

		if err = DecideMember(exists); err != nil {
			return err
		}

		if h.rules.MaxBooksPerMember > 0 {
			active, countErr := tx.CountActiveLoans(ctx, command.MemberID)
			if countErr != nil {
				return countErr
			}

			if err = DecideLoanLimit(h.rules, active, len(command.ItemIDs)); err != nil {
				return err
			}
		}

		entries := make([]core.LoanEntry, 0, len(command.ItemIDs))

		for _, itemID := range command.ItemIDs {
			loan, lendErr := h.lendItem(ctx, tx, command, itemID)
			if lendErr != nil {
				return lendErr
			}

			entries = append(entries, core.EntryFromLoan(loan))
		}

		result.Entries = entries

		return nil
	})

	return result, err
}

func (h CommandHandler) lendItem(ctx context.Context, tx loanstore.Tx, command Command, itemID int64) (loanstore.Loan, error) {
	hasActiveLoan, err := tx.HasActiveLoan(ctx, command.MemberID, itemID)
	if err != nil {
		return loanstore.Loan{}, err
	}

	if err = DecideNoActiveLoan(itemID, hasActiveLoan); err != nil {
		return loanstore.Loan{}, err
	}

	item, err := tx.LockItem(ctx, itemID)
	if errors.Is(err, loanstore.ErrItemNotFound) {
		return loanstore.Loan{}, core.NotFound(core.ReasonItemNotFound).ForItem(itemID)
	}

	if err != nil {
		return loanstore.Loan{}, err
	}

	if err = DecideAvailability(item); err != nil {
		return loanstore.Loan{}, err
	}

	if err = tx.UpdateAvailableCopies(ctx, itemID, item.AvailableCopies-1); err != nil {
		return loanstore.Loan{}, err
	}

	return tx.InsertLoan(ctx, NewLoan(command.MemberID, itemID, command.BorrowedAt, h.rules))
}
