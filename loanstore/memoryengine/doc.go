// Package memoryengine provides an in-process implementation of loanstore.Store.
//
// Transactions are serialized: RunInTx holds a store-wide lock for the whole
// callback, which is a stricter form of the row locks the PostgreSQL engine
// takes. Writes are staged in the transaction and applied only when the
// callback returns nil, so a failed batch leaves no trace.
//
// The engine is meant for tests, demos and single-process tooling. Members
// and items are seeded with AddMember and AddItem.
package memoryengine
