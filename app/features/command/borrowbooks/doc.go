// Package borrowbooks lends one or more items to a member in a single all-or-nothing batch.
//
// The handler serializes all work on one member through the member lock, then
// validates and mutates every item in request order inside one transaction,
// taking a row lock on each item before reading its available copies. The first
// violated rule aborts the whole batch.
package borrowbooks
