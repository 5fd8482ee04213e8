// Package requestoutcome looks up the cached result of a borrow or return by its request id.
//
// A request that is still executing is waited for, bounded by the lock wait
// budget. Failed requests were never cached and are reported the same way as
// unknown or expired ones.
package requestoutcome
