package overdueloans

import (
	"time"
)

const (
	queryType = "OverdueLoans"
)

// Query asks for the loans that are overdue at AsOf.
type Query struct {
	AsOf time.Time
}

// BuildQuery creates a new Query.
func BuildQuery(asOf time.Time) Query {
	return Query{AsOf: asOf.UTC()}
}

// QueryType returns the query type.
func (q Query) QueryType() string {
	return queryType
}
