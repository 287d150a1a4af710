package ledger

import (
	"context"
	"database/sql"
	"fmt"
	"time"
)

// RecordArtifact stores one packaged binary for runID.
func (l *Ledger) RecordArtifact(ctx context.Context, runID string, artifact Artifact) error {
	if artifact.RecordedAt.IsZero() {
		artifact.RecordedAt = time.Now()
	}
	_, err := l.execWithRetry(ctx,
		`INSERT INTO artifacts (
            run_id, project, ref, name, source_path, dest_path, digest, size_bytes, recorded_at
        ) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		runID,
		artifact.Project,
		nullableString(artifact.Ref),
		artifact.Name,
		artifact.SourcePath,
		artifact.DestPath,
		artifact.Digest,
		artifact.SizeBytes,
		formatTime(artifact.RecordedAt),
	)
	if err != nil {
		return fmt.Errorf("insert artifact: %w", err)
	}
	return nil
}

// Artifacts lists the artifacts of a run in the order they were recorded.
func (l *Ledger) Artifacts(ctx context.Context, runID string) ([]*Artifact, error) {
	rows, err := l.db.QueryContext(ensureContext(ctx),
		`SELECT id, run_id, project, ref, name, source_path, dest_path, digest, size_bytes, recorded_at
         FROM artifacts WHERE run_id = ? ORDER BY id`, runID)
	if err != nil {
		return nil, fmt.Errorf("list artifacts: %w", err)
	}
	defer rows.Close()

	var artifacts []*Artifact
	for rows.Next() {
		var (
			a          Artifact
			ref        sql.NullString
			recordedAt sql.NullString
		)
		if err := rows.Scan(&a.ID, &a.RunID, &a.Project, &ref, &a.Name, &a.SourcePath, &a.DestPath, &a.Digest, &a.SizeBytes, &recordedAt); err != nil {
			return nil, fmt.Errorf("scan artifact: %w", err)
		}
		a.Ref = ref.String
		a.RecordedAt = parseTime(recordedAt)
		artifacts = append(artifacts, &a)
	}
	return artifacts, rows.Err()
}
