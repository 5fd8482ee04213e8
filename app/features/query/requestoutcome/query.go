package requestoutcome

import (
	"github.com/AntonStoeckl/library-loans/app/shared/core"
)

const (
	queryType = "RequestOutcome"
)

// Query asks for the outcome of the request with the given id.
type Query struct {
	Operation core.Operation
	RequestID string
}

// BuildQuery creates a new Query.
func BuildQuery(operation core.Operation, requestID string) Query {
	return Query{
		Operation: operation,
		RequestID: requestID,
	}
}

// QueryType returns the query type.
func (q Query) QueryType() string {
	return queryType
}
