package storage

// SchemaVersion is the current database schema version.
const SchemaVersion = 1

// Schema creates the audit tables.
const Schema = `
CREATE TABLE IF NOT EXISTS ingest_audit (
    id TEXT PRIMARY KEY,
    request_id TEXT NOT NULL,
    time_ns INTEGER NOT NULL,
    producer TEXT NOT NULL,
    remote_addr TEXT NOT NULL,
    status INTEGER NOT NULL,
    accepted INTEGER NOT NULL,
    bytes INTEGER NOT NULL,
    content_encoding TEXT NOT NULL DEFAULT '',
    body_hash TEXT NOT NULL DEFAULT '',
    duration_ns INTEGER NOT NULL,
    error TEXT NOT NULL DEFAULT ''
);

CREATE INDEX IF NOT EXISTS idx_ingest_audit_time ON ingest_audit(time_ns);
CREATE INDEX IF NOT EXISTS idx_ingest_audit_producer ON ingest_audit(producer, time_ns);

CREATE TABLE IF NOT EXISTS schema_version (
    version INTEGER PRIMARY KEY,
    applied_at INTEGER NOT NULL
);
`

// InsertSchemaVersion records the schema version once.
const InsertSchemaVersion = `INSERT OR IGNORE INTO schema_version (version, applied_at) VALUES (?, strftime('%s','now'))`

// GetSchemaVersion returns the newest applied version.
const GetSchemaVersion = `SELECT MAX(version) FROM schema_version`
