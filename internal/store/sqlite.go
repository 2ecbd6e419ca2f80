package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/zyoung51/on-http/internal/model"

	_ "modernc.org/sqlite"
)

const createCallsTable = `
CREATE TABLE IF NOT EXISTS calls (
    id          TEXT PRIMARY KEY,
    method      TEXT NOT NULL,
    endpoint    TEXT NOT NULL DEFAULT '',
    status      TEXT NOT NULL,
    error_kind  TEXT NOT NULL DEFAULT '',
    error       TEXT NOT NULL DEFAULT '',
    duration_ms INTEGER NOT NULL,
    created_at  DATETIME NOT NULL
)`

const createCallsMethodIndex = `CREATE INDEX IF NOT EXISTS calls_method ON calls (method)`

const callColumns = `id, method, endpoint, status, error_kind, error, duration_ms, created_at`

// ErrNotFound is returned when a call record is not found.
var ErrNotFound = errors.New("call not found")

var _ Store = (*SQLiteStore)(nil)

// SQLiteStore implements Store using SQLite.
type SQLiteStore struct {
	db *sql.DB
}

// NewSQLiteStore opens the SQLite database at dbPath and runs migrations.
func NewSQLiteStore(dbPath string) (*SQLiteStore, error) {
	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}
	// :memory: databases are per connection.
	if dbPath == ":memory:" {
		db.SetMaxOpenConns(1)
	}

	for _, stmt := range []struct {
		name, sql string
	}{
		{"set WAL mode", "PRAGMA journal_mode=WAL"},
		{"set busy timeout", "PRAGMA busy_timeout = 5000"},
		{"create calls table", createCallsTable},
		{"create calls index", createCallsMethodIndex},
	} {
		if _, err := db.Exec(stmt.sql); err != nil {
			db.Close()
			return nil, fmt.Errorf("%s: %w", stmt.name, err)
		}
	}

	return &SQLiteStore{db: db}, nil
}

// Close closes the underlying database connection.
func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

// InsertCall appends a call record.
func (s *SQLiteStore) InsertCall(ctx context.Context, c *model.Call) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO calls (`+callColumns+`) VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		c.ID, c.Method, c.Endpoint, c.Status, c.ErrorKind, c.Error, c.DurationMS, c.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("insert call: %w", err)
	}
	return nil
}

type scanner interface {
	Scan(dest ...any) error
}

func scanCall(row scanner) (*model.Call, error) {
	c := &model.Call{}
	err := row.Scan(&c.ID, &c.Method, &c.Endpoint, &c.Status, &c.ErrorKind, &c.Error, &c.DurationMS, &c.CreatedAt)
	return c, err
}

// GetCall retrieves a call record by ID.
func (s *SQLiteStore) GetCall(ctx context.Context, id string) (*model.Call, error) {
	c, err := scanCall(s.db.QueryRowContext(ctx,
		`SELECT `+callColumns+` FROM calls WHERE id = ?`, id))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get call: %w", err)
	}
	return c, nil
}

// ListCalls returns a page of call records, newest first, along with the
// total number of records.
func (s *SQLiteStore) ListCalls(ctx context.Context, limit, offset int) ([]*model.Call, int, error) {
	tx, err := s.db.BeginTx(ctx, &sql.TxOptions{ReadOnly: true})
	if err != nil {
		return nil, 0, fmt.Errorf("begin read tx: %w", err)
	}
	defer tx.Rollback()

	var total int
	if err := tx.QueryRowContext(ctx, "SELECT COUNT(*) FROM calls").Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("count calls: %w", err)
	}

	rows, err := tx.QueryContext(ctx,
		`SELECT `+callColumns+` FROM calls ORDER BY created_at DESC, id DESC LIMIT ? OFFSET ?`,
		limit, offset,
	)
	if err != nil {
		return nil, 0, fmt.Errorf("list calls: %w", err)
	}
	defer rows.Close()

	var calls []*model.Call
	for rows.Next() {
		c, err := scanCall(rows)
		if err != nil {
			return nil, 0, fmt.Errorf("scan call: %w", err)
		}
		calls = append(calls, c)
	}
	if err := rows.Err(); err != nil {
		return nil, 0, fmt.Errorf("iterate calls: %w", err)
	}

	return calls, total, nil
}

// GetCallStats aggregates the journal by status and method.
func (s *SQLiteStore) GetCallStats(ctx context.Context) (*CallStats, error) {
	stats := &CallStats{
		CountByStatus: make(map[string]int),
		CountByMethod: make(map[string]int),
	}

	var avg sql.NullFloat64
	if err := s.db.QueryRowContext(ctx,
		"SELECT COUNT(*), AVG(duration_ms) FROM calls",
	).Scan(&stats.Total, &avg); err != nil {
		return nil, fmt.Errorf("count calls: %w", err)
	}
	stats.AvgDurationMS = avg.Float64

	for _, group := range []struct {
		column string
		into   map[string]int
	}{
		{"status", stats.CountByStatus},
		{"method", stats.CountByMethod},
	} {
		if err := s.countBy(ctx, group.column, group.into); err != nil {
			return nil, err
		}
	}

	return stats, nil
}

func (s *SQLiteStore) countBy(ctx context.Context, column string, into map[string]int) error {
	rows, err := s.db.QueryContext(ctx,
		"SELECT "+column+", COUNT(*) FROM calls GROUP BY "+column)
	if err != nil {
		return fmt.Errorf("count calls by %s: %w", column, err)
	}
	defer rows.Close()

	for rows.Next() {
		var key string
		var n int
		if err := rows.Scan(&key, &n); err != nil {
			return fmt.Errorf("scan %s count: %w", column, err)
		}
		into[key] = n
	}
	return rows.Err()
}
