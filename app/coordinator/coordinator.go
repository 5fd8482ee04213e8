package coordinator

import (
	"context"
	"fmt"
	"time"

	"github.com/AntonStoeckl/library-loans/app/features/command/borrowbooks"
	"github.com/AntonStoeckl/library-loans/app/features/command/returnbooks"
	"github.com/AntonStoeckl/library-loans/app/features/query/itemloans"
	"github.com/AntonStoeckl/library-loans/app/features/query/memberloans"
	"github.com/AntonStoeckl/library-loans/app/features/query/overdueloans"
	"github.com/AntonStoeckl/library-loans/app/features/query/requestoutcome"
	"github.com/AntonStoeckl/library-loans/app/shared/core"
	"github.com/AntonStoeckl/library-loans/app/shared/shell"
	"github.com/AntonStoeckl/library-loans/app/shared/shell/config"
	"github.com/AntonStoeckl/library-loans/app/shared/shell/observable"
	"github.com/AntonStoeckl/library-loans/coordination"
	"github.com/AntonStoeckl/library-loans/loanstore"
)

// LoanCoordinator serializes borrows and returns per member and makes them replayable by request id.
type LoanCoordinator struct {
	borrow      *observable.CommandWrapper[borrowbooks.Command]
	giveBack    *observable.CommandWrapper[returnbooks.Command]
	outcome     *observable.QueryWrapper[requestoutcome.Query, core.LoanResult]
	memberLoans *observable.QueryWrapper[memberloans.Query, memberloans.MemberLoans]
	itemLoans   *observable.QueryWrapper[itemloans.Query, itemloans.ItemLoans]
	overdue     *observable.QueryWrapper[overdueloans.Query, overdueloans.OverdueLoans]

	now              func() time.Time
	retryOptions     []shell.RetryOption
	logger           shell.Logger
	contextualLogger shell.ContextualLogger
	metricsCollector shell.MetricsCollector
	tracingCollector shell.TracingCollector
}

// New wires a LoanCoordinator on the given store and shared cache.
// The cache carries the member and request locks as well as the cached results.
func New(store loanstore.Store, cache coordination.SharedCache, cfg config.LibraryConfig, opts ...Option) (*LoanCoordinator, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	c := &LoanCoordinator{now: time.Now}

	for _, opt := range opts {
		if err := opt(c); err != nil {
			return nil, err
		}
	}

	mutex, err := coordination.NewMutex(cache, c.mutexOptions(cfg)...)
	if err != nil {
		return nil, fmt.Errorf("creating mutex: %w", err)
	}

	locker, err := shell.NewLocker(mutex, shell.LockPolicy{Lease: cfg.LockLease, MaxWait: cfg.LockWait}, c.lockerOptions()...)
	if err != nil {
		return nil, fmt.Errorf("creating locker: %w", err)
	}

	requestLocker, err := shell.NewLocker(mutex, shell.LockPolicy{Lease: cfg.RequestLockLease(), MaxWait: cfg.LockWait}, c.lockerOptions()...)
	if err != nil {
		return nil, fmt.Errorf("creating request locker: %w", err)
	}

	borrowResults := coordination.NewIdempotencyCache[core.LoanResult](cache, mutex, core.ResultCachePrefix(core.OperationBorrow))
	returnResults := coordination.NewIdempotencyCache[core.LoanResult](cache, mutex, core.ResultCachePrefix(core.OperationReturn))

	borrowHandler := borrowbooks.NewCommandHandler(
		store,
		locker,
		shell.NewRequestGuard(requestLocker, borrowResults, core.OperationBorrow, cfg.IdempotencyTTL, c.guardOptions()...),
		borrowbooks.Rules{LoanPeriod: cfg.LoanPeriod, MaxBooksPerMember: cfg.MaxBooksPerMember},
		borrowbooks.WithRetryOptions(c.handlerRetryOptions(borrowbooks.Command{}.CommandType())...),
		borrowbooks.WithClock(c.now),
	)

	returnHandler := returnbooks.NewCommandHandler(
		store,
		locker,
		shell.NewRequestGuard(requestLocker, returnResults, core.OperationReturn, cfg.IdempotencyTTL, c.guardOptions()...),
		returnbooks.WithRetryOptions(c.handlerRetryOptions(returnbooks.Command{}.CommandType())...),
		returnbooks.WithClock(c.now),
	)

	outcomeHandler := requestoutcome.NewQueryHandler(
		map[core.Operation]requestoutcome.OutcomeCache{
			core.OperationBorrow: borrowResults,
			core.OperationReturn: returnResults,
		},
		mutex,
		cfg.LockWait,
	)

	if c.borrow, err = newCommandWrapper[borrowbooks.Command](c, borrowHandler); err != nil {
		return nil, err
	}

	if c.giveBack, err = newCommandWrapper[returnbooks.Command](c, returnHandler); err != nil {
		return nil, err
	}

	if c.outcome, err = newQueryWrapper[requestoutcome.Query, core.LoanResult](c, outcomeHandler); err != nil {
		return nil, err
	}

	if c.memberLoans, err = newQueryWrapper[memberloans.Query, memberloans.MemberLoans](c, memberloans.NewQueryHandler(store)); err != nil {
		return nil, err
	}

	if c.itemLoans, err = newQueryWrapper[itemloans.Query, itemloans.ItemLoans](c, itemloans.NewQueryHandler(store)); err != nil {
		return nil, err
	}

	if c.overdue, err = newQueryWrapper[overdueloans.Query, overdueloans.OverdueLoans](c, overdueloans.NewQueryHandler(store)); err != nil {
		return nil, err
	}

	return c, nil
}

// Borrow lends all itemIDs to the member or none of them. An empty requestID disables replay protection.
func (c *LoanCoordinator) Borrow(ctx context.Context, memberID int64, itemIDs []int64, requestID string) (core.LoanResult, error) {
	result, _, err := c.borrow.Handle(ctx, borrowbooks.BuildCommand(memberID, itemIDs, requestID, time.Time{}))
	return result, err
}

// Return closes all given loans of the member or none of them. An empty requestID disables replay protection.
func (c *LoanCoordinator) Return(ctx context.Context, memberID int64, returns []core.ReturnPair, requestID string) (core.LoanResult, error) {
	result, _, err := c.giveBack.Handle(ctx, returnbooks.BuildCommand(memberID, returns, requestID, time.Time{}))
	return result, err
}

// GetByRequestID returns the cached result of a completed borrow or return.
// It waits for a request that is still executing, bounded by the lock wait budget.
func (c *LoanCoordinator) GetByRequestID(ctx context.Context, operation core.Operation, requestID string) (core.LoanResult, error) {
	return c.outcome.Handle(ctx, requestoutcome.BuildQuery(operation, requestID))
}

// MemberLoans lists the member's loans.
func (c *LoanCoordinator) MemberLoans(ctx context.Context, memberID int64, activeOnly bool) (memberloans.MemberLoans, error) {
	return c.memberLoans.Handle(ctx, memberloans.BuildQuery(memberID, activeOnly, c.now()))
}

// ItemLoans shows the item's stock and its loans in the given status.
func (c *LoanCoordinator) ItemLoans(ctx context.Context, itemID int64, status loanstore.LoanStatus) (itemloans.ItemLoans, error) {
	return c.itemLoans.Handle(ctx, itemloans.BuildQuery(itemID, status, c.now()))
}

// OverdueLoans lists every loan that is overdue now.
func (c *LoanCoordinator) OverdueLoans(ctx context.Context) (overdueloans.OverdueLoans, error) {
	return c.overdue.Handle(ctx, overdueloans.BuildQuery(c.now()))
}

func (c *LoanCoordinator) mutexOptions(cfg config.LibraryConfig) []coordination.MutexOption {
	opts := []coordination.MutexOption{coordination.WithPollInterval(cfg.LockPollInterval)}

	if c.logger != nil {
		opts = append(opts, coordination.WithMutexLogger(c.logger))
	}

	if c.metricsCollector != nil {
		opts = append(opts, coordination.WithMutexMetrics(c.metricsCollector))
	}

	return opts
}

func (c *LoanCoordinator) lockerOptions() []shell.LockerOption {
	var opts []shell.LockerOption

	if c.logger != nil {
		opts = append(opts, shell.WithLockerLogger(c.logger))
	}

	if c.contextualLogger != nil {
		opts = append(opts, shell.WithLockerContextualLogger(c.contextualLogger))
	}

	return opts
}

func (c *LoanCoordinator) guardOptions() []shell.RequestGuardOption {
	var opts []shell.RequestGuardOption

	if c.logger != nil {
		opts = append(opts, shell.WithRequestGuardLogger(c.logger))
	}

	if c.contextualLogger != nil {
		opts = append(opts, shell.WithRequestGuardContextualLogger(c.contextualLogger))
	}

	return opts
}

func (c *LoanCoordinator) handlerRetryOptions(commandType string) []shell.RetryOption {
	opts := append([]shell.RetryOption(nil), c.retryOptions...)

	if c.metricsCollector != nil {
		opts = append(opts, shell.WithMetrics(c.metricsCollector, commandType))
	}

	return opts
}

func newCommandWrapper[C shell.Command](c *LoanCoordinator, handler shell.CoreCommandHandler[C]) (*observable.CommandWrapper[C], error) {
	var opts []observable.CommandOption[C]

	if c.metricsCollector != nil {
		opts = append(opts, observable.WithCommandMetrics[C](c.metricsCollector))
	}

	if c.tracingCollector != nil {
		opts = append(opts, observable.WithCommandTracing[C](c.tracingCollector))
	}

	if c.contextualLogger != nil {
		opts = append(opts, observable.WithCommandContextualLogging[C](c.contextualLogger))
	}

	if c.logger != nil {
		opts = append(opts, observable.WithCommandLogging[C](c.logger))
	}

	return observable.NewCommandWrapper[C](handler, opts...)
}

func newQueryWrapper[Q shell.Query, R any](c *LoanCoordinator, handler shell.QueryHandler[Q, R]) (*observable.QueryWrapper[Q, R], error) {
	var opts []observable.QueryOption[Q, R]

	if c.metricsCollector != nil {
		opts = append(opts, observable.WithQueryMetrics[Q, R](c.metricsCollector))
	}

	if c.tracingCollector != nil {
		opts = append(opts, observable.WithQueryTracing[Q, R](c.tracingCollector))
	}

	if c.contextualLogger != nil {
		opts = append(opts, observable.WithQueryContextualLogging[Q, R](c.contextualLogger))
	}

	if c.logger != nil {
		opts = append(opts, observable.WithQueryLogging[Q, R](c.logger))
	}

	return observable.NewQueryWrapper[Q, R](handler, opts...)
}
