package storage

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"strings"
	"time"

	_ "github.com/mattn/go-sqlite3" // "sqlite3" driver
	_ "modernc.org/sqlite"          // "sqlite" driver

	"mercator-hq/pulse/pkg/audit"
)

// Drivers accepted by Open.
const (
	DriverSQLite  = "sqlite"
	DriverSQLite3 = "sqlite3"
	DriverMemory  = "memory"
)

// Config selects and configures a backend.
type Config struct {
	// Driver is sqlite, sqlite3 or memory. Default: sqlite
	Driver string

	// Path is the database file for the SQLite drivers.
	Path string

	// BusyTimeout is how long a writer waits on a locked database.
	// Default: 5s
	BusyTimeout time.Duration

	// WALMode enables write-ahead logging.
	WALMode bool
}

// Open returns the backend selected by cfg.Driver.
func Open(cfg Config, logger *slog.Logger) (audit.Storage, error) {
	switch cfg.Driver {
	case DriverMemory:
		return NewMemoryStorage(), nil
	case "", DriverSQLite, DriverSQLite3:
		return NewSQLiteStorage(cfg, logger)
	default:
		return nil, fmt.Errorf("unknown audit driver %q", cfg.Driver)
	}
}

// SQLiteStorage implements audit.Storage on a SQLite database.
type SQLiteStorage struct {
	db     *sql.DB
	driver string
	logger *slog.Logger
}

// NewSQLiteStorage opens (creating if needed) the database at cfg.Path.
func NewSQLiteStorage(cfg Config, logger *slog.Logger) (*SQLiteStorage, error) {
	if cfg.Driver == "" {
		cfg.Driver = DriverSQLite
	}
	if cfg.Path == "" {
		return nil, fmt.Errorf("audit database path is required")
	}
	if cfg.BusyTimeout <= 0 {
		cfg.BusyTimeout = 5 * time.Second
	}
	if logger == nil {
		logger = slog.Default()
	}

	db, err := sql.Open(cfg.Driver, cfg.Path)
	if err != nil {
		return nil, audit.NewStorageError(cfg.Driver, "open", err)
	}
	// One connection keeps pragmas in effect and serializes writers.
	db.SetMaxOpenConns(1)

	s := &SQLiteStorage{
		db:     db,
		driver: cfg.Driver,
		logger: logger.With("component", "audit.storage"),
	}
	if err := s.initialize(cfg); err != nil {
		_ = db.Close()
		return nil, err
	}

	s.logger.Info("audit storage initialized",
		"driver", cfg.Driver,
		"path", cfg.Path,
		"wal_mode", cfg.WALMode,
	)
	return s, nil
}

func (s *SQLiteStorage) initialize(cfg Config) error {
	if cfg.WALMode {
		if _, err := s.db.Exec("PRAGMA journal_mode=WAL;"); err != nil {
			return audit.NewStorageError(s.driver, "enable_wal", err)
		}
	}
	if _, err := s.db.Exec(fmt.Sprintf("PRAGMA busy_timeout=%d;", cfg.BusyTimeout.Milliseconds())); err != nil {
		return audit.NewStorageError(s.driver, "set_busy_timeout", err)
	}
	if _, err := s.db.Exec(Schema); err != nil {
		return audit.NewStorageError(s.driver, "create_schema", err)
	}
	if _, err := s.db.Exec(InsertSchemaVersion, SchemaVersion); err != nil {
		return audit.NewStorageError(s.driver, "insert_schema_version", err)
	}

	var version sql.NullInt64
	if err := s.db.QueryRow(GetSchemaVersion).Scan(&version); err != nil {
		return audit.NewStorageError(s.driver, "get_schema_version", err)
	}
	if version.Int64 != SchemaVersion {
		return audit.NewStorageError(s.driver, "schema_version_mismatch",
			fmt.Errorf("expected schema version %d, got %d", SchemaVersion, version.Int64))
	}
	return nil
}

// Store implements audit.Storage.
func (s *SQLiteStorage) Store(ctx context.Context, r *audit.Record) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO ingest_audit (
			id, request_id, time_ns, producer, remote_addr, status, accepted,
			bytes, content_encoding, body_hash, duration_ns, error
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		r.ID, r.RequestID, r.Time.UnixNano(), r.Producer, r.RemoteAddr, r.Status, r.Accepted,
		r.Bytes, r.ContentEncoding, r.BodyHash, int64(r.Duration), r.Error,
	)
	if err != nil {
		return audit.NewStorageError(s.driver, "store", err)
	}
	return nil
}

// Query implements audit.Storage.
func (s *SQLiteStorage) Query(ctx context.Context, q *audit.Query) ([]*audit.Record, error) {
	where, args := buildWhere(q)
	limit := q.Limit
	if limit <= 0 {
		limit = audit.DefaultLimit
	}

	query := `SELECT id, request_id, time_ns, producer, remote_addr, status, accepted,
		bytes, content_encoding, body_hash, duration_ns, error FROM ingest_audit` + where +
		` ORDER BY time_ns DESC, rowid DESC LIMIT ? OFFSET ?`
	args = append(args, limit, q.Offset)

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, audit.NewStorageError(s.driver, "query", err)
	}
	defer rows.Close()

	records := []*audit.Record{}
	for rows.Next() {
		var (
			r        audit.Record
			timeNS   int64
			duration int64
		)
		if err := rows.Scan(&r.ID, &r.RequestID, &timeNS, &r.Producer, &r.RemoteAddr, &r.Status, &r.Accepted,
			&r.Bytes, &r.ContentEncoding, &r.BodyHash, &duration, &r.Error); err != nil {
			return nil, audit.NewStorageError(s.driver, "scan", err)
		}
		r.Time = time.Unix(0, timeNS)
		r.Duration = time.Duration(duration)
		records = append(records, &r)
	}
	if err := rows.Err(); err != nil {
		return nil, audit.NewStorageError(s.driver, "query", err)
	}
	return records, nil
}

// Count implements audit.Storage.
func (s *SQLiteStorage) Count(ctx context.Context, q *audit.Query) (int64, error) {
	where, args := buildWhere(q)
	var n int64
	if err := s.db.QueryRowContext(ctx, "SELECT COUNT(*) FROM ingest_audit"+where, args...).Scan(&n); err != nil {
		return 0, audit.NewStorageError(s.driver, "count", err)
	}
	return n, nil
}

// Delete implements audit.Storage.
func (s *SQLiteStorage) Delete(ctx context.Context, q *audit.Query) (int64, error) {
	where, args := buildWhere(q)
	res, err := s.db.ExecContext(ctx, "DELETE FROM ingest_audit"+where, args...)
	if err != nil {
		return 0, audit.NewStorageError(s.driver, "delete", err)
	}
	n, _ := res.RowsAffected()
	return n, nil
}

// Trim implements audit.Storage.
func (s *SQLiteStorage) Trim(ctx context.Context, keep int64) (int64, error) {
	res, err := s.db.ExecContext(ctx, `
		DELETE FROM ingest_audit WHERE rowid NOT IN (
			SELECT rowid FROM ingest_audit ORDER BY time_ns DESC, rowid DESC LIMIT ?
		)`, keep)
	if err != nil {
		return 0, audit.NewStorageError(s.driver, "trim", err)
	}
	n, _ := res.RowsAffected()
	return n, nil
}

// Close implements audit.Storage.
func (s *SQLiteStorage) Close() error {
	return s.db.Close()
}

// buildWhere renders the filters of q as a WHERE clause with arguments.
func buildWhere(q *audit.Query) (string, []any) {
	var (
		conds []string
		args  []any
	)
	if q.Producer != "" {
		conds = append(conds, "producer = ?")
		args = append(args, q.Producer)
	}
	if q.StartTime != nil {
		conds = append(conds, "time_ns >= ?")
		args = append(args, q.StartTime.UnixNano())
	}
	if q.EndTime != nil {
		conds = append(conds, "time_ns < ?")
		args = append(args, q.EndTime.UnixNano())
	}
	if q.FailedOnly {
		conds = append(conds, "(status < 200 OR status >= 300)")
	}
	if len(conds) == 0 {
		return "", args
	}
	return " WHERE " + strings.Join(conds, " AND "), args
}
