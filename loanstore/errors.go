package loanstore

import "errors"

var ErrItemNotFound = errors.New("item not found")
var ErrLoanNotFound = errors.New("loan not found")
var ErrCopiesOutOfRange = errors.New("available copies out of range")
var ErrUnknownLoanStatus = errors.New("unknown loan status")
var ErrNilDatabaseConnection = errors.New("database connection must not be nil")

// ErrTransientConflict marks a transaction that the database aborted because of a lock or
// serialization conflict with a concurrent transaction. Re-running the whole transaction is safe.
var ErrTransientConflict = errors.New("transient conflict with a concurrent transaction")
