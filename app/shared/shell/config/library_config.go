package config

import (
	"errors"
	"time"
)

var ErrInvalidLibraryConfig = errors.New("invalid library config")

// LibraryConfig holds the lending rules and the coordination timings.
type LibraryConfig struct {
	LoanPeriod        time.Duration // due date = borrow date + LoanPeriod
	MaxBooksPerMember int           // 0 disables the cap
	LockLease         time.Duration // expiry of a member or request lock
	LockWait          time.Duration // how long a contended caller waits for release
	LockPollInterval  time.Duration
	IdempotencyTTL    time.Duration
}

// DefaultLibraryConfig returns the standard lending rules: 14 day loans and at most 5 books per member.
func DefaultLibraryConfig() LibraryConfig {
	return LibraryConfig{
		LoanPeriod:        14 * 24 * time.Hour,
		MaxBooksPerMember: 5,
		LockLease:         30 * time.Second,
		LockWait:          30 * time.Second,
		LockPollInterval:  100 * time.Millisecond,
		IdempotencyTTL:    time.Hour,
	}
}

// RequestLockLease is the lease of a request id lock. Its holder may first wait LockWait for the member lock
// and then hold that for up to LockLease, so the request lock must outlive both or a resend could run again.
func (c LibraryConfig) RequestLockLease() time.Duration {
	return c.LockWait + 2*c.LockLease
}

// Validate rejects non-positive durations and a negative loan cap.
func (c LibraryConfig) Validate() error {
	if c.LoanPeriod <= 0 || c.LockLease <= 0 || c.LockWait <= 0 || c.LockPollInterval <= 0 || c.IdempotencyTTL <= 0 {
		return errors.Join(ErrInvalidLibraryConfig, errors.New("durations must be positive"))
	}

	if c.MaxBooksPerMember < 0 {
		return errors.Join(ErrInvalidLibraryConfig, errors.New("max books per member must not be negative"))
	}

	return nil
}
