package itemloans

import (
	"time"

	"github.com/AntonStoeckl/library-loans/loanstore"
)

const (
	queryType = "ItemLoans"
)

// Query asks for the loans of an item as of a point in time.
type Query struct {
	ItemID int64
	Status loanstore.LoanStatus
	AsOf   time.Time
}

// BuildQuery creates a new Query.
func BuildQuery(itemID int64, status loanstore.LoanStatus, asOf time.Time) Query {
	return Query{
		ItemID: itemID,
		Status: status,
		AsOf:   asOf.UTC(),
	}
}

// QueryType returns the query type.
func (q Query) QueryType() string {
	return queryType
}
