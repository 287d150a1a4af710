package ledger

import "time"

// Status is the lifecycle state of a run.
type Status string

const (
	StatusRunning   Status = "running"
	StatusSucceeded Status = "succeeded"
	StatusFailed    Status = "failed"
)

// Run is one recorded pipeline invocation.
type Run struct {
	ID            string
	ManifestPath  string
	Package       string
	Version       string
	Workspace     string
	PackageDir    string
	Status        Status
	StartedAt     time.Time
	FinishedAt    time.Time
	ErrorKind     string
	ErrorMessage  string
	ArchivePath   string
	ArchiveDigest string
}

// Duration returns how long the run took, or zero while it is running.
func (r Run) Duration() time.Duration {
	if r.FinishedAt.IsZero() || r.StartedAt.IsZero() {
		return 0
	}
	return r.FinishedAt.Sub(r.StartedAt)
}

// Artifact is one packaged binary.
type Artifact struct {
	ID         int64
	RunID      string
	Project    string
	Ref        string
	Name       string
	SourcePath string
	DestPath   string
	Digest     string
	SizeBytes  int64
	RecordedAt time.Time
}

// Outcome is the final state reported by FinishRun.
type Outcome struct {
	Err           error
	ErrorKind     string
	ArchivePath   string
	ArchiveDigest string
}
