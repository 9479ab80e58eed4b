// Package history persists command results in a local sqlite database so
// they survive the process that produced them.
package history

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	_ "modernc.org/sqlite"

	"github.com/Iron-Ham/droidbench/internal/command"
)

// DefaultLimit caps List when no limit is given.
const DefaultLimit = 50

const schema = `
CREATE TABLE IF NOT EXISTS command_results (
	id TEXT PRIMARY KEY,
	command TEXT NOT NULL,
	success INTEGER NOT NULL,
	stdout TEXT NOT NULL,
	stderr TEXT NOT NULL,
	return_code INTEGER NOT NULL,
	execution_ns INTEGER NOT NULL,
	timestamp_ns INTEGER NOT NULL,
	serial TEXT NOT NULL,
	platform_version INTEGER NOT NULL DEFAULT 0,
	screenshot_path TEXT NOT NULL DEFAULT '',
	attempt INTEGER NOT NULL DEFAULT 1
)`

const index = `CREATE INDEX IF NOT EXISTS command_results_serial_ts ON command_results (serial, timestamp_ns)`

// Store is a sqlite-backed command.Recorder.
type Store struct {
	db *sql.DB
}

// Open opens or creates the database at path.
func Open(path string) (*Store, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0o700); err != nil {
		return nil, fmt.Errorf("create history directory: %w", err)
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open history db: %w", err)
	}
	for _, stmt := range []string{
		`PRAGMA journal_mode = WAL`,
		`PRAGMA busy_timeout = 5000`,
		schema,
		index,
	} {
		if _, err := db.Exec(stmt); err != nil {
			_ = db.Close()
			return nil, fmt.Errorf("initialize history db: %w", err)
		}
	}
	return &Store{db: db}, nil
}

// Close closes the database.
func (s *Store) Close() error {
	if s == nil || s.db == nil {
		return nil
	}
	return s.db.Close()
}

// Record implements command.Recorder.
func (s *Store) Record(ctx context.Context, res command.Result) error {
	success := 0
	if res.Success {
		success = 1
	}
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO command_results
		 (id, command, success, stdout, stderr, return_code, execution_ns, timestamp_ns, serial, platform_version, screenshot_path, attempt)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		res.ID,
		res.Command,
		success,
		res.Stdout,
		res.Stderr,
		res.ReturnCode,
		int64(res.ExecutionTime),
		res.Timestamp.UnixNano(),
		res.Serial,
		res.PlatformVersion,
		res.ScreenshotPath,
		res.Attempt,
	)
	if err != nil {
		return fmt.Errorf("record command result %s: %w", res.ID, err)
	}
	return nil
}

// Query selects results for List.
type Query struct {
	// Limit defaults to DefaultLimit.
	Limit      int
	Serial     string
	FailedOnly bool
}

// List returns matching results, newest first.
func (s *Store) List(ctx context.Context, q Query) ([]command.Result, error) {
	limit := q.Limit
	if limit <= 0 {
		limit = DefaultLimit
	}

	var where []string
	var args []any
	if q.Serial != "" {
		where = append(where, "serial = ?")
		args = append(args, q.Serial)
	}
	if q.FailedOnly {
		where = append(where, "success = 0")
	}

	query := `SELECT id, command, success, stdout, stderr, return_code, execution_ns, timestamp_ns, serial, platform_version, screenshot_path, attempt
		FROM command_results`
	if len(where) > 0 {
		query += " WHERE " + strings.Join(where, " AND ")
	}
	query += " ORDER BY timestamp_ns DESC, rowid DESC LIMIT ?"
	args = append(args, limit)

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list command results: %w", err)
	}
	defer rows.Close()

	out := make([]command.Result, 0)
	for rows.Next() {
		var res command.Result
		var success int
		var execNS, tsNS int64
		if err := rows.Scan(&res.ID, &res.Command, &success, &res.Stdout, &res.Stderr, &res.ReturnCode,
			&execNS, &tsNS, &res.Serial, &res.PlatformVersion, &res.ScreenshotPath, &res.Attempt); err != nil {
			return nil, fmt.Errorf("scan command result: %w", err)
		}
		res.Success = success != 0
		res.ExecutionTime = time.Duration(execNS)
		res.Timestamp = time.Unix(0, tsNS)
		out = append(out, res)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate command results: %w", err)
	}
	return out, nil
}

// Clear deletes every stored result and returns how many were removed.
func (s *Store) Clear(ctx context.Context) (int64, error) {
	res, err := s.db.ExecContext(ctx, `DELETE FROM command_results`)
	if err != nil {
		return 0, fmt.Errorf("clear command results: %w", err)
	}
	return res.RowsAffected()
}

var _ command.Recorder = (*Store)(nil)
