package pipeline

import "time"

// Report describes what a run produced. It is returned even when the run
// fails part way through.
type Report struct {
	RunID         string
	Package       string
	PackageDir    string
	ArchivePath   string
	ArchiveDigest string
	Projects      []ProjectReport
	StartedAt     time.Time
	FinishedAt    time.Time
}

// ProjectReport lists the artifacts packaged for one project.
type ProjectReport struct {
	Name      string
	Ref       string
	RefKind   string
	Checkout  string
	Artifacts []Artifact
}

// Artifact is one binary copied into the package directory.
type Artifact struct {
	Name   string
	Source string
	Dest   string
	Digest string
	Size   int64
}

// ArtifactCount returns the number of packaged artifacts.
func (r *Report) ArtifactCount() int {
	if r == nil {
		return 0
	}
	total := 0
	for _, project := range r.Projects {
		total += len(project.Artifacts)
	}
	return total
}

// Duration returns the wall time of the run.
func (r *Report) Duration() time.Duration {
	if r == nil || r.FinishedAt.IsZero() {
		return 0
	}
	return r.FinishedAt.Sub(r.StartedAt)
}
