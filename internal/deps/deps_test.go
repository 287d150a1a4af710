package deps

import (
	"os"
	"path/filepath"
	"testing"
)

func TestCheckBinaries(t *testing.T) {
	binDir := t.TempDir()
	present := filepath.Join(binDir, "present")
	script := []byte("#!/bin/sh\nexit 0\n")
	if err := os.WriteFile(present, script, 0o755); err != nil {
		t.Fatalf("write stub: %v", err)
	}
	reqs := []Requirement{
		{Name: "Present", Command: present},
		{Name: "Missing", Command: "clearly-not-present-binary"},
		{Name: "Blank", Command: "  "},
	}

	results := CheckBinaries(reqs)
	if len(results) != len(reqs) {
		t.Fatalf("expected %d results, got %d", len(reqs), len(results))
	}

	if !results[0].Available {
		t.Fatalf("expected first requirement to be available, got %#v", results[0])
	}
	if results[0].Detail != "" {
		t.Fatalf("unexpected detail for available dependency: %s", results[0].Detail)
	}

	if results[1].Available {
		t.Fatalf("expected missing binary to be unavailable")
	}
	if results[1].Detail == "" {
		t.Fatalf("expected detail message for missing binary")
	}
	if results[1].Command != "clearly-not-present-binary" {
		t.Fatalf("unexpected command recorded: %s", results[1].Command)
	}

	if results[2].Available || results[2].Detail != "command not configured" {
		t.Fatalf("expected unconfigured command, got %#v", results[2])
	}
}

func TestRequirementsMarkTarOptionalWithoutArchive(t *testing.T) {
	reqs := Requirements(Tools{Git: "git", Tar: "tar", Shell: "sh"})
	if len(reqs) != 3 {
		t.Fatalf("expected 3 requirements, got %d", len(reqs))
	}
	for _, req := range reqs {
		if req.Name == "tar" && !req.Optional {
			t.Fatal("tar should be optional when archiving is disabled")
		}
		if req.Name != "tar" && req.Optional {
			t.Fatalf("%s should be required", req.Name)
		}
	}
	for _, req := range Requirements(Tools{Git: "git", Tar: "tar", Shell: "sh", Archive: true}) {
		if req.Optional {
			t.Fatalf("%s should be required when archiving", req.Name)
		}
	}
}

func TestMissingIgnoresOptional(t *testing.T) {
	statuses := []Status{
		{Name: "git", Available: true},
		{Name: "tar", Optional: true},
		{Name: "shell"},
	}
	missing := Missing(statuses)
	if len(missing) != 1 || missing[0].Name != "shell" {
		t.Fatalf("unexpected missing set %#v", missing)
	}
}
