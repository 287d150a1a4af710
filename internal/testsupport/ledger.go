package testsupport

import (
	"context"
	"testing"

	"deliver/internal/config"
	"deliver/internal/ledger"
)

// MustOpenLedger opens the config's ledger for tests and registers cleanup.
func MustOpenLedger(t testing.TB, cfg *config.Config) *ledger.Ledger {
	t.Helper()

	l, err := ledger.Open(cfg.LedgerPath())
	if err != nil {
		t.Fatalf("ledger.Open: %v", err)
	}
	t.Cleanup(func() {
		l.Close()
	})
	return l
}

// BeginRun inserts a running run for tests.
func BeginRun(t testing.TB, l *ledger.Ledger, pkg, version string) *ledger.Run {
	t.Helper()

	run, err := l.BeginRun(context.Background(), ledger.Run{
		Package:    pkg,
		Version:    version,
		Workspace:  "/tmp/ws",
		PackageDir: "/tmp/ws/" + pkg + "." + version,
	})
	if err != nil {
		t.Fatalf("ledger.BeginRun: %v", err)
	}
	return run
}
