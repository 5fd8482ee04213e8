// Package testdoubles provides spies for the loanstore observability interfaces
// and an slog.Handler that captures records, so tests can assert on emitted
// logs, metrics and spans.
package testdoubles
