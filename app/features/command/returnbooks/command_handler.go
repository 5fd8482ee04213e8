package returnbooks

import (
	"context"
	"errors"
	"time"

	"github.com/AntonStoeckl/library-loans/app/shared/core"
	"github.com/AntonStoeckl/library-loans/app/shared/shell"
	"github.com/AntonStoeckl/library-loans/loanstore"
)

// CommandHandler runs the return workflow: request guard, member lock, then one transaction with retry.
// External wrappers handle all observability concerns.
type CommandHandler struct {
	store        loanstore.Store
	locker       *shell.Locker
	guard        *shell.RequestGuard
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
func NewCommandHandler(store loanstore.Store, locker *shell.Locker, guard *shell.RequestGuard, opts ...Option) CommandHandler {
	handler := CommandHandler{
		store:  store,
		locker: locker,
		guard:  guard,
		now:    time.Now,
	}

	for _, opt := range opts {
		opt(&handler)
	}

	return handler
}

// Handle executes the return at most once per request id and returns the closed loans in request order.
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

func (h CommandHandler) executeCommand(ctx context.Context, command Command) (core.LoanResult, error) {
	ctx = loanstore.WithStrongConsistency(ctx)

	if command.ReturnedAt.IsZero() {
		command.ReturnedAt = h.now().UTC().Truncate(time.Microsecond)
	}

	result := core.LoanResult{MemberID: command.MemberID}

	err := h.store.RunInTx(ctx, func(ctx context.Context, tx loanstore.Tx) error {
		entries := make([]core.LoanEntry, 0, len(command.Returns))

		for _, pair := range command.Returns {
			loan, err := h.returnLoan(ctx, tx, command, pair)
			if err != nil {
				return err
			}

			entries = append(entries, core.EntryFromLoan(loan))
		}

		result.Entries = entries

		return nil
	})

	return result, err
}

func (h CommandHandler) returnLoan(ctx context.Context, tx loanstore.Tx, command Command, pair core.ReturnPair) (loanstore.Loan, error) {
	loan, err := tx.LockLoan(ctx, pair.LoanID)
	if errors.Is(err, loanstore.ErrLoanNotFound) {
		return loanstore.Loan{}, core.NotFound(core.ReasonLoanNotFound).ForLoan(pair.LoanID)
	}

	if err != nil {
		return loanstore.Loan{}, err
	}

	if err = DecideReturn(loan, command.MemberID, pair); err != nil {
		return loanstore.Loan{}, err
	}

	item, err := tx.LockItem(ctx, loan.ItemID)
	if err != nil {
		return loanstore.Loan{}, err
	}

	if err = DecideRestock(item); err != nil {
		return loanstore.Loan{}, err
	}

	if err = tx.UpdateAvailableCopies(ctx, item.ID, item.AvailableCopies+1); err != nil {
		return loanstore.Loan{}, err
	}

	if err = tx.MarkLoanReturned(ctx, loan.ID, command.ReturnedAt); err != nil {
		return loanstore.Loan{}, err
	}

	returnedAt := command.ReturnedAt
	loan.ReturnDate = &returnedAt

	return loan, nil
}
