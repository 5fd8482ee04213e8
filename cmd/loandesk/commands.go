package main

import (
	"context"
	"errors"
	"fmt"
	"os/signal"
	"syscall"

	"github.com/google/uuid"
	"github.com/spf13/cobra"

	"github.com/AntonStoeckl/library-loans/app/jobs"
	"github.com/AntonStoeckl/library-loans/app/shared/core"
	"github.com/AntonStoeckl/library-loans/loanstore"
)

// withRuntime opens the runtime for the duration of fn.
func withRuntime(cmd *cobra.Command, opts *rootOptions, fn func(ctx context.Context, rt *runtime) error) (err error) {
	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}

	rt, err := opts.open(ctx)
	if err != nil {
		return err
	}

	defer func() {
		err = errors.Join(err, rt.Close())
	}()

	return fn(ctx, rt)
}

func newBorrowCommand(opts *rootOptions) *cobra.Command {
	var (
		memberID  int64
		itemIDs   []int64
		requestID string
	)

	cmd := &cobra.Command{
		Use:   "borrow",
		Short: "Lend all given items to a member, or none of them",
		RunE: func(cmd *cobra.Command, _ []string) error {
			if requestID == "" {
				requestID = uuid.NewString()
			}

			return withRuntime(cmd, opts, func(ctx context.Context, rt *runtime) error {
				result, err := rt.coordinator.Borrow(ctx, memberID, itemIDs, requestID)
				if err != nil {
					return err
				}

				return printJSON(cmd.OutOrStdout(), requestOutput{
					Operation: core.OperationBorrow,
					RequestID: requestID,
					Replayed:  result.Replayed,
					Result:    result,
				})
			})
		},
	}

	cmd.Flags().Int64Var(&memberID, "member", 0, "member id")
	cmd.Flags().Int64SliceVar(&itemIDs, "items", nil, "comma separated item ids")
	cmd.Flags().StringVar(&requestID, "request-id", "", "request id for safe retries, generated when empty")
	_ = cmd.MarkFlagRequired("member")
	_ = cmd.MarkFlagRequired("items")

	return cmd
}

func newReturnCommand(opts *rootOptions) *cobra.Command {
	var (
		memberID  int64
		loans     []string
		requestID string
	)

	cmd := &cobra.Command{
		Use:   "return",
		Short: "Return loans of a member, all of them or none",
		RunE: func(cmd *cobra.Command, _ []string) error {
			pairs, err := parseReturnPairs(loans)
			if err != nil {
				return err
			}

			if requestID == "" {
				requestID = uuid.NewString()
			}

			return withRuntime(cmd, opts, func(ctx context.Context, rt *runtime) error {
				result, err := rt.coordinator.Return(ctx, memberID, pairs, requestID)
				if err != nil {
					return err
				}

				return printJSON(cmd.OutOrStdout(), requestOutput{
					Operation: core.OperationReturn,
					RequestID: requestID,
					Replayed:  result.Replayed,
					Result:    result,
				})
			})
		},
	}

	cmd.Flags().Int64Var(&memberID, "member", 0, "member id")
	cmd.Flags().StringArrayVar(&loans, "loan", nil, "LOAN_ID:ITEM_ID, repeat for several loans")
	cmd.Flags().StringVar(&requestID, "request-id", "", "request id for safe retries, generated when empty")
	_ = cmd.MarkFlagRequired("member")
	_ = cmd.MarkFlagRequired("loan")

	return cmd
}

func newOutcomeCommand(opts *rootOptions) *cobra.Command {
	var (
		operation string
		requestID string
	)

	cmd := &cobra.Command{
		Use:   "outcome",
		Short: "Show the stored result of an earlier borrow or return",
		RunE: func(cmd *cobra.Command, _ []string) error {
			op, err := core.ParseOperation(operation)
			if err != nil {
				return err
			}

			return withRuntime(cmd, opts, func(ctx context.Context, rt *runtime) error {
				result, err := rt.coordinator.GetByRequestID(ctx, op, requestID)
				if err != nil {
					return err
				}

				return printJSON(cmd.OutOrStdout(), requestOutput{
					Operation: op,
					RequestID: requestID,
					Replayed:  true,
					Result:    result,
				})
			})
		},
	}

	cmd.Flags().StringVar(&operation, "operation", string(core.OperationBorrow), "borrow or return")
	cmd.Flags().StringVar(&requestID, "request-id", "", "request id of the earlier request")
	_ = cmd.MarkFlagRequired("request-id")

	return cmd
}

func newLoansCommand(opts *rootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "loans",
		Short: "List loan history",
	}

	var activeOnly bool

	member := &cobra.Command{
		Use:   "member MEMBER_ID",
		Short: "Loans of one member",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			memberID, err := parseID(args[0])
			if err != nil {
				return err
			}

			return withRuntime(cmd, opts, func(ctx context.Context, rt *runtime) error {
				loans, err := rt.coordinator.MemberLoans(ctx, memberID, activeOnly)
				if err != nil {
					return err
				}

				return printJSON(cmd.OutOrStdout(), loans)
			})
		},
	}
	member.Flags().BoolVar(&activeOnly, "active-only", false, "hide returned loans")

	var status string

	item := &cobra.Command{
		Use:   "item ITEM_ID",
		Short: "Loans of one item",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			itemID, err := parseID(args[0])
			if err != nil {
				return err
			}

			loanStatus, err := loanstore.ParseLoanStatus(status)
			if err != nil {
				return fmt.Errorf("%w: %q", err, status)
			}

			return withRuntime(cmd, opts, func(ctx context.Context, rt *runtime) error {
				loans, err := rt.coordinator.ItemLoans(ctx, itemID, loanStatus)
				if err != nil {
					return err
				}

				return printJSON(cmd.OutOrStdout(), loans)
			})
		},
	}
	item.Flags().StringVar(&status, "status", loanstore.AnyLoan.String(), "all, active or overdue")

	overdue := &cobra.Command{
		Use:   "overdue",
		Short: "All overdue loans, most overdue first",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return withRuntime(cmd, opts, func(ctx context.Context, rt *runtime) error {
				loans, err := rt.coordinator.OverdueLoans(ctx)
				if err != nil {
					return err
				}

				return printJSON(cmd.OutOrStdout(), loans)
			})
		},
	}

	cmd.AddCommand(member, item, overdue)

	return cmd
}

func newJobsCommand(opts *rootOptions) *cobra.Command {
	var (
		overdueSpec string
		purgeSpec   string
	)

	cmd := &cobra.Command{
		Use:   "jobs",
		Short: "Run the overdue report and the cache purge until interrupted",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return withRuntime(cmd, opts, func(ctx context.Context, rt *runtime) error {
				scheduler := jobs.NewScheduler(jobs.WithLogger(rt.logger))

				if _, err := scheduler.AddOverdueReport(overdueSpec, rt.coordinator); err != nil {
					return err
				}

				if rt.purger != nil {
					if _, err := scheduler.AddCachePurge(purgeSpec, rt.purger); err != nil {
						return err
					}
				}

				ctx, stop := signal.NotifyContext(ctx, syscall.SIGINT, syscall.SIGTERM)
				defer stop()

				scheduler.Start()
				rt.logger.Info("jobs scheduler started", "entries", len(scheduler.Entries()))

				<-ctx.Done()

				stopCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
				defer cancel()

				return scheduler.Stop(stopCtx)
			})
		},
	}

	cmd.Flags().StringVar(&overdueSpec, "overdue-report", jobs.DefaultOverdueReportSpec, "cron spec of the overdue report")
	cmd.Flags().StringVar(&purgeSpec, "cache-purge", jobs.DefaultCachePurgeSpec, "cron spec of the expired cache purge")

	return cmd
}
