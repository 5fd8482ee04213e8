package postgreswrapper

// Schema is the DDL of the loan store and the shared cache. The advisory lock serializes
// concurrent test packages creating it.
const Schema = `
BEGIN;
SELECT pg_advisory_xact_lock(727401);

CREATE TABLE IF NOT EXISTS members (
    id   BIGSERIAL PRIMARY KEY,
    name TEXT NOT NULL DEFAULT ''
);

CREATE TABLE IF NOT EXISTS items (
    id               BIGSERIAL PRIMARY KEY,
    title            TEXT NOT NULL DEFAULT '',
    author           TEXT,
    isbn             TEXT,
    total_copies     INTEGER NOT NULL CHECK (total_copies >= 0),
    available_copies INTEGER NOT NULL,
    CONSTRAINT available_copies_in_range CHECK (available_copies BETWEEN 0 AND total_copies)
);

CREATE TABLE IF NOT EXISTS loans (
    id          BIGSERIAL PRIMARY KEY,
    member_id   BIGINT NOT NULL REFERENCES members (id),
    item_id     BIGINT NOT NULL REFERENCES items (id),
    borrow_date TIMESTAMPTZ NOT NULL,
    due_date    TIMESTAMPTZ NOT NULL,
    return_date TIMESTAMPTZ
);

CREATE UNIQUE INDEX IF NOT EXISTS loans_one_active_per_member_item
    ON loans (member_id, item_id) WHERE return_date IS NULL;

CREATE INDEX IF NOT EXISTS loans_active_due_date
    ON loans (due_date) WHERE return_date IS NULL;

CREATE TABLE IF NOT EXISTS shared_cache (
    key        TEXT PRIMARY KEY,
    value      TEXT NOT NULL,
    expires_at TIMESTAMPTZ NOT NULL
);

COMMIT;
`
