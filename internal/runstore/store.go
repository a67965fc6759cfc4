package runstore

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	_ "modernc.org/sqlite"

	"surplus/internal/config"
	"surplus/internal/pipeline"
	"surplus/internal/services"
)

// Store manages run history backed by SQLite.
type Store struct {
	db   *sql.DB
	path string
}

const (
	sqliteBusyCode          = 5
	busyRetryAttempts       = 5
	busyRetryInitialBackoff = 10 * time.Millisecond
	busyRetryMaxBackoff     = 200 * time.Millisecond

	minPrefixLen = 6
)

func ensureContext(ctx context.Context) context.Context {
	if ctx != nil {
		return ctx
	}
	return context.Background()
}

func isSQLiteBusy(err error) bool {
	if err == nil {
		return false
	}
	var coder interface{ Code() int }
	if errors.As(err, &coder) && coder.Code() == sqliteBusyCode {
		return true
	}
	msg := err.Error()
	return strings.Contains(msg, "SQLITE_BUSY") || strings.Contains(msg, "database is locked")
}

func retryOnBusy(ctx context.Context, op func() error) error {
	delay := busyRetryInitialBackoff
	var lastErr error
	for attempt := 0; attempt < busyRetryAttempts; attempt++ {
		lastErr = op()
		if lastErr == nil {
			return nil
		}
		if !isSQLiteBusy(lastErr) || attempt == busyRetryAttempts-1 {
			break
		}
		select {
		case <-time.After(delay):
		case <-ctx.Done():
			return ctx.Err()
		}
		if next := delay * 2; next <= busyRetryMaxBackoff {
			delay = next
		}
	}
	return lastErr
}

// Open ensures the configured directories exist and opens state_dir/runs.db.
func Open(cfg *config.Config) (*Store, error) {
	if err := cfg.EnsureDirectories(); err != nil {
		return nil, fmt.Errorf("ensure directories: %w", err)
	}
	return OpenPath(cfg.RunStorePath())
}

// OpenPath opens or creates the run database at path.
func OpenPath(path string) (*Store, error) {
	if strings.TrimSpace(path) == "" {
		return nil, services.Wrap(services.ErrConfiguration, "runstore", "open", "database path is empty", nil)
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, fmt.Errorf("create database directory: %w", err)
	}
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open sqlite db: %w", err)
	}

	pragmas := []string{
		"PRAGMA journal_mode=WAL",
		"PRAGMA foreign_keys = ON",
		"PRAGMA busy_timeout = 5000",
	}
	for _, pragma := range pragmas {
		if _, execErr := db.Exec(pragma); execErr != nil {
			_ = db.Close()
			return nil, fmt.Errorf("apply pragma %q: %w", pragma, execErr)
		}
	}

	store := &Store{db: db, path: path}
	if err := store.initSchema(context.Background()); err != nil {
		_ = db.Close()
		return nil, err
	}
	return store, nil
}

// Close closes the underlying database connection.
func (s *Store) Close() error {
	if s == nil || s.db == nil {
		return nil
	}
	return s.db.Close()
}

// Path returns the database file path.
func (s *Store) Path() string {
	return s.path
}

// RecordRun stores report and its stage results in one transaction. Recording
// the same run id twice replaces the earlier rows.
func (s *Store) RecordRun(ctx context.Context, report *pipeline.RunReport) error {
	if report == nil {
		return errors.New("run report is nil")
	}
	ctx = ensureContext(ctx)
	err := retryOnBusy(ctx, func() error {
		return s.recordTx(ctx, report)
	})
	if err != nil {
		return services.Wrap(services.ErrPersistence, "runstore", "record run", report.RunID, err)
	}
	return nil
}

func (s *Store) recordTx(ctx context.Context, report *pipeline.RunReport) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	if _, err := tx.ExecContext(ctx, `DELETE FROM runs WHERE run_id = ?`, report.RunID); err != nil {
		return fmt.Errorf("replace run: %w", err)
	}
	_, err = tx.ExecContext(
		ctx,
		`INSERT INTO runs (
            run_id, pipeline, mode, status, artifact_id, started_at, finished_at,
            duration_ms, stage_count, canceled, artifact_error, audit_failures
        ) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		report.RunID,
		nullableString(report.Pipeline),
		report.Mode.String(),
		string(report.Status),
		nullableString(report.ArtifactID),
		report.StartedAt.UTC().Format(time.RFC3339Nano),
		report.FinishedAt.UTC().Format(time.RFC3339Nano),
		time.Duration(report.Duration).Milliseconds(),
		len(report.StageResults),
		boolToInt(report.Canceled),
		nullableString(report.Persistence.ArtifactError),
		report.Persistence.AuditFailures,
	)
	if err != nil {
		return fmt.Errorf("insert run: %w", err)
	}

	for i, result := range report.StageResults {
		_, err := tx.ExecContext(
			ctx,
			`INSERT INTO stage_results (
                run_id, position, stage_name, status, required, attempts_used,
                duration_ms, denied, error_kind, error_detail
            ) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
			report.RunID,
			i,
			result.StageName,
			string(result.Status),
			boolToInt(result.Required),
			result.AttemptsUsed,
			time.Duration(result.Duration).Milliseconds(),
			boolToInt(result.Denied),
			nullableString(result.ErrorKind),
			nullableString(result.ErrorDetail),
		)
		if err != nil {
			return fmt.Errorf("insert stage %s: %w", result.StageName, err)
		}
	}
	return tx.Commit()
}

// Get fetches a run by full id or unique prefix. It returns nil when nothing
// matches.
func (s *Store) Get(ctx context.Context, id string) (*Run, error) {
	ctx = ensureContext(ctx)
	id = strings.TrimSpace(id)
	if id == "" {
		return nil, services.Wrap(services.ErrValidation, "runstore", "get", "run id is required", nil)
	}

	row := s.db.QueryRowContext(ctx, `SELECT `+runColumns+` FROM runs WHERE run_id = ?`, id)
	run, err := scanRun(row)
	if errors.Is(err, sql.ErrNoRows) {
		run, err = s.getByPrefix(ctx, id)
	}
	if err != nil {
		return nil, err
	}
	if run == nil {
		return nil, nil
	}
	stages, err := s.stages(ctx, run.RunID)
	if err != nil {
		return nil, err
	}
	run.Stages = stages
	return run, nil
}

func (s *Store) getByPrefix(ctx context.Context, prefix string) (*Run, error) {
	if len(prefix) < minPrefixLen {
		return nil, nil
	}
	rows, err := s.db.QueryContext(
		ctx,
		`SELECT `+runColumns+` FROM runs WHERE run_id LIKE ? ESCAPE '\' ORDER BY started_at DESC LIMIT 2`,
		escapeLike(prefix)+"%",
	)
	if err != nil {
		return nil, fmt.Errorf("get run by prefix: %w", err)
	}
	defer rows.Close()

	var matches []*Run
	for rows.Next() {
		run, err := scanRun(rows)
		if err != nil {
			return nil, fmt.Errorf("scan run: %w", err)
		}
		matches = append(matches, run)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	switch len(matches) {
	case 0:
		return nil, nil
	case 1:
		return matches[0], nil
	default:
		return nil, services.Wrap(services.ErrValidation, "runstore", "get", fmt.Sprintf("run id prefix %q is ambiguous", prefix), nil)
	}
}

func (s *Store) stages(ctx context.Context, runID string) ([]StageRow, error) {
	rows, err := s.db.QueryContext(
		ctx,
		`SELECT position, stage_name, status, required, attempts_used, duration_ms, denied, error_kind, error_detail
         FROM stage_results WHERE run_id = ? ORDER BY position`,
		runID,
	)
	if err != nil {
		return nil, fmt.Errorf("list stage results: %w", err)
	}
	defer rows.Close()

	var out []StageRow
	for rows.Next() {
		var (
			row        StageRow
			status     string
			required   int
			durationMS int64
			denied     int
			errorKind  sql.NullString
			detail     sql.NullString
		)
		if err := rows.Scan(&row.Position, &row.Name, &status, &required, &row.AttemptsUsed, &durationMS, &denied, &errorKind, &detail); err != nil {
			return nil, fmt.Errorf("scan stage result: %w", err)
		}
		row.Status = pipeline.StageStatus(status)
		row.Required = required != 0
		row.Duration = time.Duration(durationMS) * time.Millisecond
		row.Denied = denied != 0
		row.ErrorKind = errorKind.String
		row.ErrorDetail = detail.String
		out = append(out, row)
	}
	return out, rows.Err()
}

// List returns runs newest first. Stage rows are not loaded.
func (s *Store) List(ctx context.Context, opts ListOptions) ([]*Run, error) {
	ctx = ensureContext(ctx)
	query := `SELECT ` + runColumns + ` FROM runs`
	var (
		clauses []string
		args    []any
	)
	if opts.Status != "" {
		clauses = append(clauses, "status = ?")
		args = append(args, string(opts.Status))
	}
	if strings.TrimSpace(opts.Pipeline) != "" {
		clauses = append(clauses, "pipeline = ?")
		args = append(args, strings.TrimSpace(opts.Pipeline))
	}
	if len(clauses) > 0 {
		query += " WHERE " + strings.Join(clauses, " AND ")
	}
	query += " ORDER BY started_at DESC"
	if opts.Limit > 0 {
		query += " LIMIT ?"
		args = append(args, opts.Limit)
	}

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list runs: %w", err)
	}
	defer rows.Close()

	var runs []*Run
	for rows.Next() {
		run, err := scanRun(rows)
		if err != nil {
			return nil, fmt.Errorf("scan run: %w", err)
		}
		runs = append(runs, run)
	}
	return runs, rows.Err()
}

// Stats returns a count of runs grouped by status.
func (s *Store) Stats(ctx context.Context) (map[pipeline.Status]int, error) {
	rows, err := s.db.QueryContext(ensureContext(ctx), `SELECT status, COUNT(1) FROM runs GROUP BY status`)
	if err != nil {
		return nil, fmt.Errorf("run stats: %w", err)
	}
	defer rows.Close()

	stats := make(map[pipeline.Status]int)
	for rows.Next() {
		var status string
		var count int
		if err := rows.Scan(&status, &count); err != nil {
			return nil, err
		}
		stats[pipeline.Status(status)] = count
	}
	return stats, rows.Err()
}

// Prune deletes runs that started before cutoff and returns how many were removed.
func (s *Store) Prune(ctx context.Context, cutoff time.Time) (int64, error) {
	ctx = ensureContext(ctx)
	var removed int64
	err := retryOnBusy(ctx, func() error {
		res, err := s.db.ExecContext(ctx, `DELETE FROM runs WHERE started_at < ?`, cutoff.UTC().Format(time.RFC3339Nano))
		if err != nil {
			return err
		}
		removed, err = res.RowsAffected()
		return err
	})
	if err != nil {
		return 0, fmt.Errorf("prune runs: %w", err)
	}
	return removed, nil
}
var _ pipeline.Recorder = (*Store)(nil)
