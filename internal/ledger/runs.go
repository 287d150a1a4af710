package ledger

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"deliver/internal/services"
)

// ErrAmbiguousID reports a run ID prefix matching more than one run.
var ErrAmbiguousID = errors.New("run id prefix is ambiguous")

const runColumns = `id, manifest_path, package, version, workspace, package_dir, status,
    started_at, finished_at, error_kind, error_message, archive_path, archive_digest`

// BeginRun inserts run with status running. A UUID is assigned when run.ID
// is empty; the stored run is returned.
func (l *Ledger) BeginRun(ctx context.Context, run Run) (*Run, error) {
	if strings.TrimSpace(run.ID) == "" {
		run.ID = uuid.NewString()
	}
	if run.StartedAt.IsZero() {
		run.StartedAt = time.Now()
	}
	run.Status = StatusRunning

	_, err := l.execWithRetry(ctx,
		`INSERT INTO runs (
            id, manifest_path, package, version, workspace, package_dir, status, started_at
        ) VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		run.ID,
		nullableString(run.ManifestPath),
		run.Package,
		run.Version,
		run.Workspace,
		run.PackageDir,
		run.Status,
		formatTime(run.StartedAt),
	)
	if err != nil {
		return nil, fmt.Errorf("insert run: %w", err)
	}
	return l.GetRun(ctx, run.ID)
}

// FinishRun marks a running run as succeeded (outcome.Err == nil) or failed.
func (l *Ledger) FinishRun(ctx context.Context, id string, outcome Outcome) error {
	status := StatusSucceeded
	var message, kind string
	if outcome.Err != nil {
		status = StatusFailed
		message = outcome.Err.Error()
		kind = outcome.ErrorKind
		if kind == "" {
			kind = services.Kind(outcome.Err)
		}
	}

	res, err := l.execWithRetry(ctx,
		`UPDATE runs
         SET status = ?, finished_at = ?, error_kind = ?, error_message = ?,
             archive_path = ?, archive_digest = ?
         WHERE id = ? AND status = ?`,
		status,
		formatTime(time.Now()),
		nullableString(kind),
		nullableString(message),
		nullableString(outcome.ArchivePath),
		nullableString(outcome.ArchiveDigest),
		id,
		StatusRunning,
	)
	if err != nil {
		return fmt.Errorf("finish run: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("finish run rows affected: %w", err)
	}
	if affected == 0 {
		return fmt.Errorf("finish run %s: no running run with that id", id)
	}
	return nil
}

// GetRun fetches a run by ID or unique ID prefix. It returns nil, nil when
// nothing matches.
func (l *Ledger) GetRun(ctx context.Context, id string) (*Run, error) {
	ctx = ensureContext(ctx)
	id = strings.TrimSpace(id)
	if id == "" {
		return nil, nil
	}

	run, err := scanRun(l.db.QueryRowContext(ctx, `SELECT `+runColumns+` FROM runs WHERE id = ?`, id))
	if err == nil {
		return run, nil
	}
	if !errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("get run: %w", err)
	}

	rows, err := l.db.QueryContext(ctx,
		`SELECT `+runColumns+` FROM runs WHERE substr(id, 1, ?) = ? LIMIT 2`, len(id), id)
	if err != nil {
		return nil, fmt.Errorf("get run by prefix: %w", err)
	}
	defer rows.Close()

	var matches []*Run
	for rows.Next() {
		run, err := scanRun(rows)
		if err != nil {
			return nil, err
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
		return nil, fmt.Errorf("%w: %s", ErrAmbiguousID, id)
	}
}

// ListRuns returns the most recent runs first. limit <= 0 returns all runs.
func (l *Ledger) ListRuns(ctx context.Context, limit int) ([]*Run, error) {
	ctx = ensureContext(ctx)
	query := `SELECT ` + runColumns + ` FROM runs ORDER BY started_at DESC, id`
	var args []any
	if limit > 0 {
		query += ` LIMIT ?`
		args = append(args, limit)
	}
	rows, err := l.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list runs: %w", err)
	}
	defer rows.Close()

	var runs []*Run
	for rows.Next() {
		run, err := scanRun(rows)
		if err != nil {
			return nil, err
		}
		runs = append(runs, run)
	}
	return runs, rows.Err()
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanRun(row rowScanner) (*Run, error) {
	var (
		run           Run
		status        string
		manifestPath  sql.NullString
		startedAt     sql.NullString
		finishedAt    sql.NullString
		errorKind     sql.NullString
		errorMessage  sql.NullString
		archivePath   sql.NullString
		archiveDigest sql.NullString
	)
	if err := row.Scan(
		&run.ID,
		&manifestPath,
		&run.Package,
		&run.Version,
		&run.Workspace,
		&run.PackageDir,
		&status,
		&startedAt,
		&finishedAt,
		&errorKind,
		&errorMessage,
		&archivePath,
		&archiveDigest,
	); err != nil {
		return nil, err
	}
	run.Status = Status(status)
	run.ManifestPath = manifestPath.String
	run.StartedAt = parseTime(startedAt)
	run.FinishedAt = parseTime(finishedAt)
	run.ErrorKind = errorKind.String
	run.ErrorMessage = errorMessage.String
	run.ArchivePath = archivePath.String
	run.ArchiveDigest = archiveDigest.String
	return &run, nil
}
