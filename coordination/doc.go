// Package coordination provides the cross-process primitives the loan
// coordinator is built from: a key-scoped distributed mutex and a time-bounded
// idempotency cache, both on top of a SharedCache.
//
// A SharedCache only needs an atomic set-if-absent with expiry and an atomic
// compare-and-delete. Three backends exist:
//   - rediscache: Redis through go-redis (SET NX PX, Lua compare-and-delete)
//   - pgcache: a PostgreSQL table (INSERT ... ON CONFLICT, conditional DELETE)
//   - memcache: an in-process map for tests and single-process use
//
// Mutex entries carry an opaque owner token and a lease. Only the owner can
// release an entry early; otherwise it disappears when the lease expires, so a
// crashed holder blocks others for at most one lease.
package coordination
