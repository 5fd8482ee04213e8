package borrowbooks

import (
	"slices"
	"time"
)

const (
	commandType = "BorrowBooks"
)

// Command represents the intent of a member to borrow the given items.
type Command struct {
	MemberID   int64
	ItemIDs    []int64
	RequestID  string
	BorrowedAt time.Time
}

// CommandType returns the type identifier for this command, used for observability and routing.
func (c Command) CommandType() string {
	return commandType
}

// BuildCommand creates a new Command. borrowedAt is stored with microsecond precision in UTC.
// A zero borrowedAt is stamped by the handler once the member lock is held.
func BuildCommand(memberID int64, itemIDs []int64, requestID string, borrowedAt time.Time) Command {
	return Command{
		MemberID:   memberID,
		ItemIDs:    slices.Clone(itemIDs),
		RequestID:  requestID,
		BorrowedAt: borrowedAt.UTC().Truncate(time.Microsecond),
	}
}
