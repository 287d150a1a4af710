package main

import (
	"bytes"
	"fmt"
	"strings"
	"testing"
)

func TestRenderStatusLineNoColor(t *testing.T) {
	got := renderStatusLine("Workspace", statusError, "missing", false)
	want := fmt.Sprintf("%s%-*s %s", statusIndent, statusLabelWidth, "Workspace:", "[ERROR] missing")
	if got != want {
		t.Fatalf("renderStatusLine mismatch\n got: %q\nwant: %q", got, want)
	}
}

func TestRenderStatusLineWithColor(t *testing.T) {
	got := renderStatusLine("Workspace", statusOK, "ready", true)
	if !strings.HasPrefix(got, ansiGreen) {
		t.Fatalf("expected green prefix, got %q", got)
	}
	if !strings.HasSuffix(got, ansiReset) {
		t.Fatalf("expected reset suffix, got %q", got)
	}
}

func TestRenderStatusLineWithoutMessage(t *testing.T) {
	got := renderStatusLine("Ledger", statusWarn, "", false)
	if !strings.HasSuffix(got, "[WARN]") {
		t.Fatalf("unexpected line %q", got)
	}
}

func TestStatusPrinterSections(t *testing.T) {
	var buf bytes.Buffer
	printer := newStatusPrinter(&buf)
	printer.section("Preflight")
	printer.line("Archive", statusOK, "")
	lines := strings.Split(strings.TrimSuffix(buf.String(), "\n"), "\n")
	if len(lines) != 3 {
		t.Fatalf("expected heading, rule and status line, got %q", buf.String())
	}
	if lines[0] != "== Preflight ==" || lines[1] != strings.Repeat("-", len(lines[0])) {
		t.Fatalf("unexpected heading %q", lines[:2])
	}
	if strings.Contains(buf.String(), "\x1b[") {
		t.Fatal("buffers must not be coloured")
	}
}

func TestShouldColorizeIgnoresBuffers(t *testing.T) {
	if shouldColorize(&bytes.Buffer{}) {
		t.Fatal("buffers are never terminals")
	}
}

func TestRenderTableFillsBlankCells(t *testing.T) {
	out := renderTable([]string{"Run", "Error"}, [][]string{{"abc", ""}, {"def"}}, []columnAlignment{alignLeft, alignRight})
	if strings.Count(out, emptyCell) < 2 {
		t.Fatalf("expected blank cells to render as %q:\n%s", emptyCell, out)
	}
	if renderTable(nil, nil, nil) != "" {
		t.Fatal("expected empty output without headers")
	}
}

func TestShortID(t *testing.T) {
	if got := shortID("0123456789"); got != "01234567" {
		t.Fatalf("unexpected short id %q", got)
	}
	if got := shortID("abc"); got != "abc" {
		t.Fatalf("unexpected short id %q", got)
	}
}
