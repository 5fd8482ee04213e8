// Command loandesk is the operator CLI of the loan coordinator.
//
// It borrows and returns books on behalf of members, looks up the outcome of
// earlier requests, lists loan history and runs the maintenance jobs:
//
//	loandesk borrow --member 7 --items 101,102
//	loandesk return --member 7 --loan 5001:101
//	loandesk outcome --operation borrow --request-id 3f0c...
//	loandesk loans overdue
//	loandesk jobs --cache postgres
//
// The store is always PostgreSQL. Locks and cached results live in the
// backend chosen with --cache.
package main

import (
	"os"
)

var version = "dev"

func main() {
	if err := newRootCommand().Execute(); err != nil {
		os.Exit(1)
	}
}
