package recorder

import (
	"database/sql"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"sync"
	"time"

	"go.uber.org/zap"
	_ "modernc.org/sqlite"

	"candlescope/internal/export"
)

// SQLiteRecorder persists run history to a SQLite database.
type SQLiteRecorder struct {
	db     *sql.DB
	mu     sync.Mutex
	logger *zap.Logger
}

// ErrNoHistory is returned by OpenExisting when no database was written yet
var ErrNoHistory = errors.New("no history database")

// OpenExisting opens a history database that a previous run created. A
// missing file is ErrNoHistory and nothing is written to disk.
func OpenExisting(dbPath string, logger *zap.Logger) (*SQLiteRecorder, error) {
	if _, err := os.Stat(dbPath); err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, fmt.Errorf("%w: %s", ErrNoHistory, dbPath)
		}
		return nil, fmt.Errorf("stat history database: %w", err)
	}
	return NewSQLiteRecorder(dbPath, logger)
}

// NewSQLiteRecorder opens (or creates) the SQLite database and runs migrations.
func NewSQLiteRecorder(dbPath string, logger *zap.Logger) (*SQLiteRecorder, error) {
	if logger == nil {
		logger = zap.NewNop()
	}

	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("open sqlite: %w", err)
	}

	if _, err := db.Exec("PRAGMA journal_mode=WAL"); err != nil {
		db.Close()
		return nil, fmt.Errorf("set WAL mode: %w", err)
	}

	r := &SQLiteRecorder{db: db, logger: logger}
	if err := r.migrate(); err != nil {
		db.Close()
		return nil, fmt.Errorf("migrate: %w", err)
	}

	logger.Debug("history database opened", zap.String("path", dbPath))
	return r, nil
}

func (r *SQLiteRecorder) migrate() error {
	stmts := []string{
		`CREATE TABLE IF NOT EXISTS runs (
			run_id      TEXT PRIMARY KEY,
			started_at  INTEGER NOT NULL,
			ticker      TEXT NOT NULL,
			category    TEXT NOT NULL,
			fallback    INTEGER NOT NULL,
			candles     INTEGER NOT NULL,
			last_bar    TEXT,
			chart_path  TEXT,
			export_path TEXT
		)`,
		`CREATE INDEX IF NOT EXISTS idx_runs_started ON runs(started_at)`,

		`CREATE TABLE IF NOT EXISTS pattern_events (
			id         INTEGER PRIMARY KEY AUTOINCREMENT,
			run_id     TEXT NOT NULL REFERENCES runs(run_id),
			bar_time   TEXT NOT NULL,
			pattern    TEXT NOT NULL
		)`,
		`CREATE INDEX IF NOT EXISTS idx_events_run ON pattern_events(run_id)`,
	}

	for _, s := range stmts {
		if _, err := r.db.Exec(s); err != nil {
			return fmt.Errorf("exec %q: %w", s[:40], err)
		}
	}
	return nil
}

// RecordRun stores the run and its events in one transaction
func (r *SQLiteRecorder) RecordRun(rec *RunRecord) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	tx, err := r.db.Begin()
	if err != nil {
		return fmt.Errorf("begin: %w", err)
	}
	defer tx.Rollback()

	var lastBar string
	if !rec.LastBar.IsZero() {
		lastBar = rec.LastBar.Format(export.TimeLayout)
	}

	_, err = tx.Exec(`INSERT INTO runs
		(run_id, started_at, ticker, category, fallback, candles, last_bar, chart_path, export_path)
		VALUES (?,?,?,?,?,?,?,?,?)`,
		rec.RunID, rec.StartedAt.Unix(), rec.Ticker, rec.Category, rec.Fallback,
		rec.Candles, lastBar, rec.ChartPath, rec.ExportPath,
	)
	if err != nil {
		return fmt.Errorf("insert run: %w", err)
	}

	for _, ev := range rec.Events {
		if _, err := tx.Exec(`INSERT INTO pattern_events (run_id, bar_time, pattern) VALUES (?,?,?)`,
			rec.RunID, ev.Time.Format(export.TimeLayout), string(ev.Kind)); err != nil {
			return fmt.Errorf("insert event: %w", err)
		}
	}

	return tx.Commit()
}

// RecentRuns returns up to limit runs, newest first
func (r *SQLiteRecorder) RecentRuns(limit int) ([]RunSummary, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	rows, err := r.db.Query(`SELECT r.run_id, r.started_at, r.ticker, r.category, r.fallback, r.candles,
			COALESCE(r.chart_path, ''), COUNT(e.id)
		FROM runs r LEFT JOIN pattern_events e ON e.run_id = r.run_id
		GROUP BY r.run_id
		ORDER BY r.started_at DESC, r.rowid DESC
		LIMIT ?`, limit)
	if err != nil {
		return nil, fmt.Errorf("query runs: %w", err)
	}
	defer rows.Close()

	var out []RunSummary
	for rows.Next() {
		var s RunSummary
		var started int64
		if err := rows.Scan(&s.RunID, &started, &s.Ticker, &s.Category, &s.Fallback,
			&s.Candles, &s.ChartPath, &s.Patterns); err != nil {
			return nil, fmt.Errorf("scan run: %w", err)
		}
		s.StartedAt = time.Unix(started, 0)
		out = append(out, s)
	}
	return out, rows.Err()
}

func (r *SQLiteRecorder) Close() error {
	r.logger.Debug("closing history database")
	return r.db.Close()
}
