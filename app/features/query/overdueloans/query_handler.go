package overdueloans

import (
	"context"
	"time"

	"github.com/AntonStoeckl/library-loans/app/shared/core"
	"github.com/AntonStoeckl/library-loans/loanstore"
)

// LoanReader defines the store reads the QueryHandler needs.
type LoanReader interface {
	OverdueLoans(ctx context.Context, asOf time.Time) (loanstore.Loans, error)
}

// QueryHandler reads overdue loans. External wrappers handle all observability concerns.
type QueryHandler struct {
	store LoanReader
}

// NewQueryHandler creates a new QueryHandler.
func NewQueryHandler(store LoanReader) QueryHandler {
	return QueryHandler{store: store}
}

// Handle executes the query: Read -> Project.
func (h QueryHandler) Handle(ctx context.Context, query Query) (OverdueLoans, error) {
	loans, err := h.store.OverdueLoans(loanstore.WithEventualConsistency(ctx), query.AsOf)
	if err != nil {
		return OverdueLoans{}, core.Internal(err)
	}

	return Project(loans, query.AsOf), nil
}
