// Package storecontract holds the behaviour every loanstore.Store engine must
// show, written once and run against the memory engine and, when a test
// database is configured, against each PostgreSQL adapter.
package storecontract
