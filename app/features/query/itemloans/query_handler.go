package itemloans

import (
	"context"
	"errors"
	"time"

	"github.com/AntonStoeckl/library-loans/app/shared/core"
	"github.com/AntonStoeckl/library-loans/loanstore"
)

// ItemReader defines the store reads the QueryHandler needs.
type ItemReader interface {
	Item(ctx context.Context, itemID int64) (loanstore.Item, error)
	LoansByItem(ctx context.Context, itemID int64, status loanstore.LoanStatus, asOf time.Time) (loanstore.Loans, error)
}

// QueryHandler reads an item and its loans. External wrappers handle all observability concerns.
type QueryHandler struct {
	store ItemReader
}

// NewQueryHandler creates a new QueryHandler.
func NewQueryHandler(store ItemReader) QueryHandler {
	return QueryHandler{store: store}
}

// Handle executes the query: Read -> Project. The item and the loans are two reads,
// so under concurrent borrows the counters and the list may be from slightly different moments.
func (h QueryHandler) Handle(ctx context.Context, query Query) (ItemLoans, error) {
	ctx = loanstore.WithEventualConsistency(ctx)

	item, err := h.store.Item(ctx, query.ItemID)
	if errors.Is(err, loanstore.ErrItemNotFound) {
		return ItemLoans{}, core.NotFound(core.ReasonItemNotFound).ForItem(query.ItemID)
	}

	if err != nil {
		return ItemLoans{}, core.Internal(err)
	}

	loans, err := h.store.LoansByItem(ctx, query.ItemID, query.Status, query.AsOf)
	if err != nil {
		return ItemLoans{}, core.Internal(err)
	}

	return Project(item, query.Status, loans, query.AsOf), nil
}
