// Package core holds the pure domain vocabulary of the loan coordinator:
// the result shape returned by Borrow, Return and request-outcome lookups,
// the error kinds business rules fail with, and the operation names that scope
// request ids.
//
// Nothing in here performs I/O.
package core
