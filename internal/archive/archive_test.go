package archive_test

import (
	"archive/tar"
	"compress/gzip"
	"context"
	"errors"
	"io"
	"os"
	"os/exec"
	"path/filepath"
	"reflect"
	"sort"
	"testing"
	"time"

	"deliver/internal/archive"
	"deliver/internal/logging"
	"deliver/internal/runner"
	"deliver/internal/services"
	"deliver/internal/testsupport"
)

type recordingExecutor struct {
	calls    [][]string
	exitCode int
}

func (r *recordingExecutor) Run(ctx context.Context, dir string, env []string, name string, args []string) ([]byte, int, error) {
	r.calls = append(r.calls, append([]string{name}, args...))
	return []byte("tar: boom"), r.exitCode, nil
}

func makePackage(t *testing.T) string {
	t.Helper()
	pkg := filepath.Join(t.TempDir(), "suite.1.0")
	testsupport.WriteTree(t, pkg, map[string]string{
		"agent/agentd":  "agent/agentd",
		"tools/toolctl": "tools/toolctl",
	})
	return pkg
}

func TestCreateInvokesTarWithParentAndBase(t *testing.T) {
	pkg := makePackage(t)
	recorder := &recordingExecutor{exitCode: 2}
	a := archive.New(runner.New(logging.NewNop(), runner.WithExecutor(recorder)), logging.NewNop(), archive.WithTarBinary("gtar"))

	_, err := a.Create(context.Background(), pkg)
	if !errors.Is(err, services.ErrExternalTool) {
		t.Fatalf("expected external tool error, got %v", err)
	}
	want := []string{"gtar", "-C", filepath.Dir(pkg), "-czf", pkg + ".tar.gz", "suite.1.0"}
	if len(recorder.calls) != 1 || !reflect.DeepEqual(recorder.calls[0], want) {
		t.Fatalf("unexpected tar invocation %v", recorder.calls)
	}
}

type stallingExecutor struct{}

func (stallingExecutor) Run(ctx context.Context, dir string, env []string, name string, args []string) ([]byte, int, error) {
	<-ctx.Done()
	return nil, -1, ctx.Err()
}

func TestCreateHonoursTimeout(t *testing.T) {
	pkg := makePackage(t)
	a := archive.New(runner.New(logging.NewNop(), runner.WithExecutor(stallingExecutor{})), logging.NewNop(),
		archive.WithTimeout(20*time.Millisecond),
	)

	_, err := a.Create(context.Background(), pkg)
	if !errors.Is(err, services.ErrTimeout) {
		t.Fatalf("expected timeout error, got %v", err)
	}
	if _, statErr := os.Lstat(archive.PathFor(pkg)); !errors.Is(statErr, os.ErrNotExist) {
		t.Fatalf("timed out archive must be removed: %v", statErr)
	}
}

func TestCreateRefusesExistingArchive(t *testing.T) {
	pkg := makePackage(t)
	if err := os.WriteFile(archive.PathFor(pkg), []byte("old"), 0o644); err != nil {
		t.Fatal(err)
	}
	recorder := &recordingExecutor{}
	a := archive.New(runner.New(logging.NewNop(), runner.WithExecutor(recorder)), logging.NewNop())
	if _, err := a.Create(context.Background(), pkg); !errors.Is(err, archive.ErrArchiveExists) {
		t.Fatalf("expected ErrArchiveExists, got %v", err)
	}
	if len(recorder.calls) != 0 {
		t.Fatalf("tar must not run, got %v", recorder.calls)
	}
	got, _ := os.ReadFile(archive.PathFor(pkg))
	if string(got) != "old" {
		t.Fatal("existing archive was modified")
	}
}

func TestCreateRejectsMissingPackage(t *testing.T) {
	a := archive.New(runner.New(logging.NewNop()), logging.NewNop())
	_, err := a.Create(context.Background(), filepath.Join(t.TempDir(), "absent"))
	if !errors.Is(err, services.ErrFilesystem) || !errors.Is(err, os.ErrNotExist) {
		t.Fatalf("expected filesystem not-exist error, got %v", err)
	}
}

func TestCreateArchivesFullTree(t *testing.T) {
	if _, err := exec.LookPath("tar"); err != nil {
		t.Skip("tar not available")
	}
	pkg := makePackage(t)
	a := archive.New(runner.New(logging.NewNop()), logging.NewNop())

	path, err := a.Create(context.Background(), pkg)
	if err != nil {
		t.Fatalf("Create: %v", err)
	}
	if path != pkg+".tar.gz" {
		t.Fatalf("unexpected archive path %q", path)
	}

	names := listArchive(t, path)
	want := []string{"suite.1.0/agent/agentd", "suite.1.0/tools/toolctl"}
	if !reflect.DeepEqual(names, want) {
		t.Fatalf("unexpected archive entries %v", names)
	}
}

func listArchive(t *testing.T, path string) []string {
	t.Helper()
	f, err := os.Open(path)
	if err != nil {
		t.Fatal(err)
	}
	defer f.Close()
	gz, err := gzip.NewReader(f)
	if err != nil {
		t.Fatal(err)
	}
	tr := tar.NewReader(gz)
	var names []string
	for {
		hdr, err := tr.Next()
		if err == io.EOF {
			break
		}
		if err != nil {
			t.Fatal(err)
		}
		if hdr.Typeflag == tar.TypeReg {
			names = append(names, filepath.ToSlash(filepath.Clean(hdr.Name)))
		}
	}
	sort.Strings(names)
	return names
}
