// Package returnbooks closes one or more of a member's loans in a single all-or-nothing batch and restocks the items.
package returnbooks
