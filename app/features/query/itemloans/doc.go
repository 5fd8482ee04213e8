// Package itemloans shows an item's stock together with its loans, filtered to all, active or overdue.
package itemloans
