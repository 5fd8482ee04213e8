package memberloans

import (
	"time"
)

const (
	queryType = "MemberLoans"
)

// Query asks for the loans of a member as of a point in time.
type Query struct {
	MemberID   int64
	ActiveOnly bool
	AsOf       time.Time
}

// BuildQuery creates a new Query.
func BuildQuery(memberID int64, activeOnly bool, asOf time.Time) Query {
	return Query{
		MemberID:   memberID,
		ActiveOnly: activeOnly,
		AsOf:       asOf.UTC(),
	}
}

// QueryType returns the query type.
func (q Query) QueryType() string {
	return queryType
}
