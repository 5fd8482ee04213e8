package returnbooks

import (
	"slices"
	"time"

	"github.com/AntonStoeckl/library-loans/app/shared/core"
)

const (
	commandType = "ReturnBooks"
)

// Command represents the intent of a member to return the given loans.
type Command struct {
	MemberID   int64
	Returns    []core.ReturnPair
	RequestID  string
	ReturnedAt time.Time
}

// CommandType returns the type identifier for this command, used for observability and routing.
func (c Command) CommandType() string {
	return commandType
}

// BuildCommand creates a new Command. returnedAt is stored with microsecond precision in UTC.
// A zero returnedAt is stamped by the handler once the member lock is held.
func BuildCommand(memberID int64, returns []core.ReturnPair, requestID string, returnedAt time.Time) Command {
	return Command{
		MemberID:   memberID,
		Returns:    slices.Clone(returns),
		RequestID:  requestID,
		ReturnedAt: returnedAt.UTC().Truncate(time.Microsecond),
	}
}
