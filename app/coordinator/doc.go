// Package coordinator provides LoanCoordinator, the entry point for borrowing and returning items.
//
// LoanCoordinator wires the shared counter store and a shared cache into the
// borrow and return command handlers and the loan queries. Every call is
// instrumented by the observable wrappers, so metrics, spans and logs come
// from one place whichever surface (CLI, scheduled job, tests) drives it.
//
// Borrow and Return are replay safe: a call repeated with the same request id
// returns the first call's result with Replayed set and changes nothing.
package coordinator
