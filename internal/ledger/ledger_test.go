package ledger_test

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"testing"
	"time"

	"deliver/internal/ledger"
	"deliver/internal/services"
	"deliver/internal/testsupport"
)

func TestOpenAppliesMigrations(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	l := testsupport.MustOpenLedger(t, cfg)
	if l.Path() != filepath.Join(cfg.Paths.StateDir, "ledger.db") {
		t.Fatalf("unexpected ledger path %q", l.Path())
	}
	l.Close()

	reopened, err := ledger.Open(cfg.LedgerPath())
	if err != nil {
		t.Fatalf("reopen: %v", err)
	}
	defer reopened.Close()
	runs, err := reopened.ListRuns(context.Background(), 0)
	if err != nil {
		t.Fatalf("ListRuns: %v", err)
	}
	if len(runs) != 0 {
		t.Fatalf("expected empty ledger, got %d runs", len(runs))
	}
}

func TestRunLifecycleSucceeded(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	l := testsupport.MustOpenLedger(t, cfg)
	ctx := context.Background()

	run := testsupport.BeginRun(t, l, "suite", "1.0")
	if run.ID == "" || run.Status != ledger.StatusRunning {
		t.Fatalf("unexpected new run %#v", run)
	}
	if run.StartedAt.IsZero() {
		t.Fatal("expected start time")
	}

	for _, name := range []string{"agentd", "agentctl"} {
		err := l.RecordArtifact(ctx, run.ID, ledger.Artifact{
			Project:    "agent",
			Ref:        "v1.0",
			Name:       name,
			SourcePath: "/tmp/ws/agent/target/" + name,
			DestPath:   "/tmp/ws/suite.1.0/agent/" + name,
			Digest:     "e3b0c44298fc1c149afbf4c8996fb92427ae41e4649b934ca495991b7852b855",
			SizeBytes:  42,
		})
		if err != nil {
			t.Fatalf("RecordArtifact: %v", err)
		}
	}

	if err := l.FinishRun(ctx, run.ID, ledger.Outcome{ArchivePath: "/tmp/ws/suite.1.0.tar.gz", ArchiveDigest: "abc"}); err != nil {
		t.Fatalf("FinishRun: %v", err)
	}

	fetched, err := l.GetRun(ctx, run.ID)
	if err != nil || fetched == nil {
		t.Fatalf("GetRun: %v %v", fetched, err)
	}
	if fetched.Status != ledger.StatusSucceeded {
		t.Fatalf("expected succeeded, got %s", fetched.Status)
	}
	if fetched.ArchivePath != "/tmp/ws/suite.1.0.tar.gz" || fetched.ArchiveDigest != "abc" {
		t.Fatalf("unexpected archive fields %#v", fetched)
	}
	if fetched.FinishedAt.IsZero() || fetched.Duration() < 0 {
		t.Fatalf("unexpected finish time %#v", fetched)
	}
	if fetched.ErrorMessage != "" || fetched.ErrorKind != "" {
		t.Fatalf("unexpected error fields %#v", fetched)
	}

	artifacts, err := l.Artifacts(ctx, run.ID)
	if err != nil {
		t.Fatalf("Artifacts: %v", err)
	}
	if len(artifacts) != 2 || artifacts[0].Name != "agentd" || artifacts[1].Name != "agentctl" {
		t.Fatalf("unexpected artifacts %#v", artifacts)
	}
	if artifacts[0].SizeBytes != 42 || artifacts[0].Ref != "v1.0" || artifacts[0].RecordedAt.IsZero() {
		t.Fatalf("unexpected artifact fields %#v", artifacts[0])
	}

	if err := l.FinishRun(ctx, run.ID, ledger.Outcome{}); err == nil {
		t.Fatal("expected error finishing a run twice")
	}
}

func TestFailedRunRecordsErrorKind(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	l := testsupport.MustOpenLedger(t, cfg)
	ctx := context.Background()

	run := testsupport.BeginRun(t, l, "suite", "2.0")
	cause := services.Wrap(services.ErrExternalTool, "build", "agent", "make", errors.New("exit 2"))
	if err := l.FinishRun(ctx, run.ID, ledger.Outcome{Err: cause}); err != nil {
		t.Fatalf("FinishRun: %v", err)
	}
	fetched, _ := l.GetRun(ctx, run.ID)
	if fetched.Status != ledger.StatusFailed {
		t.Fatalf("expected failed, got %s", fetched.Status)
	}
	if fetched.ErrorKind != "external_tool" {
		t.Fatalf("expected external_tool kind, got %q", fetched.ErrorKind)
	}
	if fetched.ErrorMessage != cause.Error() {
		t.Fatalf("unexpected message %q", fetched.ErrorMessage)
	}
}

func TestListRunsNewestFirstWithLimit(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	l := testsupport.MustOpenLedger(t, cfg)
	ctx := context.Background()

	base := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	for i := 0; i < 3; i++ {
		_, err := l.BeginRun(ctx, ledger.Run{
			ID:         fmt.Sprintf("run-%d", i),
			Package:    "suite",
			Version:    fmt.Sprintf("1.%d", i),
			Workspace:  "/tmp/ws",
			PackageDir: "/tmp/ws/suite",
			StartedAt:  base.Add(time.Duration(i) * 1500 * time.Millisecond),
		})
		if err != nil {
			t.Fatalf("BeginRun: %v", err)
		}
	}

	runs, err := l.ListRuns(ctx, 2)
	if err != nil {
		t.Fatalf("ListRuns: %v", err)
	}
	if len(runs) != 2 || runs[0].ID != "run-2" || runs[1].ID != "run-1" {
		t.Fatalf("unexpected order %v", runIDs(runs))
	}
	all, _ := l.ListRuns(ctx, 0)
	if len(all) != 3 {
		t.Fatalf("expected 3 runs, got %d", len(all))
	}
	if !all[0].StartedAt.Equal(base.Add(3 * time.Second)) {
		t.Fatalf("unexpected start time %v", all[0].StartedAt)
	}
}

func TestGetRunByPrefix(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	l := testsupport.MustOpenLedger(t, cfg)
	ctx := context.Background()

	for _, id := range []string{"abc111", "abc222", "def333"} {
		if _, err := l.BeginRun(ctx, ledger.Run{ID: id, Package: "p", Version: "1", Workspace: "/w", PackageDir: "/w/p.1"}); err != nil {
			t.Fatalf("BeginRun: %v", err)
		}
	}

	run, err := l.GetRun(ctx, "def")
	if err != nil || run == nil || run.ID != "def333" {
		t.Fatalf("expected def333, got %v %v", run, err)
	}
	if _, err := l.GetRun(ctx, "abc"); !errors.Is(err, ledger.ErrAmbiguousID) {
		t.Fatalf("expected ambiguous error, got %v", err)
	}
	missing, err := l.GetRun(ctx, "zzz")
	if err != nil || missing != nil {
		t.Fatalf("expected nil for unknown id, got %v %v", missing, err)
	}
}

func TestRecordArtifactRequiresRun(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	l := testsupport.MustOpenLedger(t, cfg)
	err := l.RecordArtifact(context.Background(), "missing-run", ledger.Artifact{
		Project: "agent", Name: "agentd", SourcePath: "s", DestPath: "d", Digest: "x",
	})
	if err == nil {
		t.Fatal("expected foreign key violation")
	}
}

func runIDs(runs []*ledger.Run) []string {
	ids := make([]string, 0, len(runs))
	for _, run := range runs {
		ids = append(ids, run.ID)
	}
	return ids
}
