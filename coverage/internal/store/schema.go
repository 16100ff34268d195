package store

// Schema contains the DDL for the coverage ledger.
const Schema = `
-- Append-only coverage snapshots. No uniqueness on the natural key: the
-- current value of a (project, branch, test) triple is its latest row.
CREATE TABLE IF NOT EXISTS snapshots (
    id                   TEXT PRIMARY KEY,
    project_name         TEXT NOT NULL,
    branch               TEXT NOT NULL,
    base_branch          TEXT NOT NULL DEFAULT '',
    test_name            TEXT NOT NULL,
    statements           INTEGER NOT NULL,
    conditionals         INTEGER NOT NULL,
    methods              INTEGER NOT NULL,
    covered_statements   INTEGER NOT NULL,
    covered_conditionals INTEGER NOT NULL,
    covered_methods      INTEGER NOT NULL,
    ref                  TEXT NOT NULL DEFAULT '',
    created_at           INTEGER NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_snapshots_key_time
    ON snapshots(project_name, branch, test_name, created_at);
`
