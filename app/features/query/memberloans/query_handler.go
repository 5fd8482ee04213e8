package memberloans

import (
	"context"
	"time"

	"github.com/AntonStoeckl/library-loans/app/shared/core"
	"github.com/AntonStoeckl/library-loans/loanstore"
)

// LoanReader defines the store reads the QueryHandler needs.
type LoanReader interface {
	LoansByMember(ctx context.Context, memberID int64, status loanstore.LoanStatus, asOf time.Time) (loanstore.Loans, error)
}

// QueryHandler reads a member's loans. External wrappers handle all observability concerns.
type QueryHandler struct {
	store LoanReader
}

// NewQueryHandler creates a new QueryHandler.
func NewQueryHandler(store LoanReader) QueryHandler {
	return QueryHandler{store: store}
}

// Handle executes the query: Read -> Project.
func (h QueryHandler) Handle(ctx context.Context, query Query) (MemberLoans, error) {
	if query.MemberID <= 0 {
		return MemberLoans{}, core.Validation(core.ReasonInvalidMemberID)
	}

	status := loanstore.AnyLoan
	if query.ActiveOnly {
		status = loanstore.ActiveLoan
	}

	loans, err := h.store.LoansByMember(loanstore.WithEventualConsistency(ctx), query.MemberID, status, query.AsOf)
	if err != nil {
		return MemberLoans{}, core.Internal(err)
	}

	return Project(query.MemberID, loans, query.AsOf), nil
}
