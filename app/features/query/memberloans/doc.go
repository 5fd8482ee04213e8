// Package memberloans lists the loans of one member, either all of them or only the active ones.
//
// It is a read-only operation served with eventual consistency, so a Postgres
// engine with a replica may answer it from there.
package memberloans
