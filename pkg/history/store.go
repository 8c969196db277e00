package history

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/cockroachdb/errors"

	"github.com/wonderfulspam/suitesync/pkg/syncer"

	_ "modernc.org/sqlite"
)

// DefaultPath is where the journal lives when none is configured.
const DefaultPath = ".suitesync/history.db"

var ErrNotFound = errors.New("run not found")

// Run is the journal summary of one sync report.
type Run struct {
	RunID      string    `json:"run_id" yaml:"run_id"`
	Source     string    `json:"source" yaml:"source"`
	Targets    []string  `json:"targets" yaml:"targets"`
	DryRun     bool      `json:"dry_run" yaml:"dry_run"`
	StartedAt  time.Time `json:"started_at" yaml:"started_at"`
	FinishedAt time.Time `json:"finished_at" yaml:"finished_at"`
	Successful int       `json:"successful" yaml:"successful"`
	Failed     int       `json:"failed" yaml:"failed"`
	Created    int       `json:"created" yaml:"created"`
	Updated    int       `json:"updated" yaml:"updated"`
	Aborted    string    `json:"aborted,omitempty" yaml:"aborted,omitempty"`
}

// SQLiteStore journals sync reports in a sqlite database.
type SQLiteStore struct {
	db *sql.DB
}

// Open opens or creates the journal at path.
func Open(path string) (*SQLiteStore, error) {
	if path == "" {
		path = DefaultPath
	}
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("failed to create history dir: %w", err)
		}
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("failed to open sqlite: %w", err)
	}
	// one writer at a time
	db.SetMaxOpenConns(1)

	s, err := NewSQLiteStore(db)
	if err != nil {
		_ = db.Close()
		return nil, err
	}
	return s, nil
}

// NewSQLiteStore wraps an open database and creates the schema.
func NewSQLiteStore(db *sql.DB) (*SQLiteStore, error) {
	s := &SQLiteStore{db: db}
	if err := s.migrate(); err != nil {
		return nil, fmt.Errorf("failed to init history: %w", err)
	}
	return s, nil
}

func (s *SQLiteStore) migrate() error {
	query := `
	CREATE TABLE IF NOT EXISTS runs (
		run_id TEXT PRIMARY KEY,
		source TEXT NOT NULL,
		targets TEXT NOT NULL,
		dry_run INTEGER NOT NULL DEFAULT 0,
		started_at TEXT NOT NULL,
		finished_at TEXT,
		successful INTEGER NOT NULL DEFAULT 0,
		failed INTEGER NOT NULL DEFAULT 0,
		created INTEGER NOT NULL DEFAULT 0,
		updated INTEGER NOT NULL DEFAULT 0,
		aborted TEXT NOT NULL DEFAULT '',
		report JSON NOT NULL
	);`
	if _, err := s.db.ExecContext(context.Background(), query); err != nil {
		return err
	}
	_, err := s.db.ExecContext(context.Background(), `CREATE INDEX IF NOT EXISTS runs_started_at ON runs (started_at)`)
	return err
}

func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

// Record stores a report. Recording the same run twice replaces it.
func (s *SQLiteStore) Record(ctx context.Context, report *syncer.Report) error {
	data, err := json.Marshal(report)
	if err != nil {
		return fmt.Errorf("failed to encode report: %w", err)
	}

	summary := report.Summary()
	query := `INSERT OR REPLACE INTO runs (
		run_id, source, targets, dry_run, started_at, finished_at, successful, failed, created, updated, aborted, report
	) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`

	_, err = s.db.ExecContext(ctx, query,
		report.RunID,
		report.Source,
		strings.Join(report.Targets, ","),
		report.Policy.DryRun,
		formatTime(report.StartedAt),
		formatTime(report.FinishedAt),
		summary.Successful,
		summary.Failed,
		summary.Created,
		summary.Updated,
		report.Aborted,
		string(data),
	)
	if err != nil {
		return fmt.Errorf("failed to insert run: %w", err)
	}
	return nil
}

// List returns the most recent runs first. A limit of zero or less means
// no limit.
func (s *SQLiteStore) List(ctx context.Context, limit int) ([]Run, error) {
	if limit <= 0 {
		limit = -1
	}
	query := `
		SELECT run_id, source, targets, dry_run, started_at, finished_at, successful, failed, created, updated, aborted
		FROM runs
		ORDER BY started_at DESC, run_id
		LIMIT ?`

	rows, err := s.db.QueryContext(ctx, query, limit)
	if err != nil {
		return nil, err
	}
	defer func() { _ = rows.Close() }()

	var runs []Run
	for rows.Next() {
		var (
			run        Run
			targets    string
			startedAt  string
			finishedAt sql.NullString
		)
		if err := rows.Scan(&run.RunID, &run.Source, &targets, &run.DryRun, &startedAt, &finishedAt,
			&run.Successful, &run.Failed, &run.Created, &run.Updated, &run.Aborted); err != nil {
			return nil, err
		}
		if targets != "" {
			run.Targets = strings.Split(targets, ",")
		}
		run.StartedAt = parseTime(startedAt)
		run.FinishedAt = parseTime(finishedAt.String)
		runs = append(runs, run)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return runs, nil
}

// Get returns the full report of one run.
func (s *SQLiteStore) Get(ctx context.Context, runID string) (*syncer.Report, error) {
	var data string
	err := s.db.QueryRowContext(ctx, `SELECT report FROM runs WHERE run_id = ?`, runID).Scan(&data)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, errors.Wrapf(ErrNotFound, "%s", runID)
		}
		return nil, err
	}

	var report syncer.Report
	if err := json.Unmarshal([]byte(data), &report); err != nil {
		return nil, fmt.Errorf("failed to decode run %s: %w", runID, err)
	}
	return &report, nil
}

// timeLayout has fixed width so stored timestamps sort as text.
const timeLayout = "2006-01-02T15:04:05.000000000Z"

func formatTime(t time.Time) string {
	if t.IsZero() {
		return ""
	}
	return t.UTC().Format(timeLayout)
}

func parseTime(s string) time.Time {
	if s == "" {
		return time.Time{}
	}
	t, err := time.Parse(timeLayout, s)
	if err != nil {
		return time.Time{}
	}
	return t
}
