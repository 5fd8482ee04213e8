// Package overdueloans lists all active loans past their due date, oldest due date first.
//
// The nightly report job in app/jobs runs this query.
package overdueloans
