// Package shell is the imperative shell around the loan rules in package core.
//
// It owns everything the command and query handlers need besides the store:
// the lock discipline around members and request ids, the idempotent request
// flow, retrying transactions the database aborted for lock or serialization
// conflicts, and the metrics, tracing and logging helpers used by the
// observable wrappers.
//
// In Domain-Driven Design or Hexagonal Architecture terminology, this would be
// called the 'infrastructure' layer.
package shell
