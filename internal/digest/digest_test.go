package digest

import (
	"bytes"
	"errors"
	"io"
	"os"
	"path/filepath"
	"strings"
	"testing"
)

const emptySHA256 = "e3b0c44298fc1c149afbf4c8996fb92427ae41e4649b934ca495991b7852b855"

func TestFileEmpty(t *testing.T) {
	path := filepath.Join(t.TempDir(), "empty")
	if err := os.WriteFile(path, nil, 0o644); err != nil {
		t.Fatal(err)
	}
	got, err := File(path)
	if err != nil {
		t.Fatal(err)
	}
	if got != emptySHA256 {
		t.Fatalf("empty digest = %s, want %s", got, emptySHA256)
	}
}

func TestFileKnownValue(t *testing.T) {
	path := filepath.Join(t.TempDir(), "abc")
	if err := os.WriteFile(path, []byte("abc"), 0o644); err != nil {
		t.Fatal(err)
	}
	got, err := File(path)
	if err != nil {
		t.Fatal(err)
	}
	const want = "ba7816bf8f01cfea414140de5dae2223b00361a396177a9cb410ff61f20015ad"
	if got != want {
		t.Fatalf("digest = %s, want %s", got, want)
	}
}

func TestFileIsStable(t *testing.T) {
	dir := t.TempDir()
	content := bytes.Repeat([]byte("artifact-"), 3000)
	a := filepath.Join(dir, "a")
	b := filepath.Join(dir, "b")
	for _, p := range []string{a, b} {
		if err := os.WriteFile(p, content, 0o755); err != nil {
			t.Fatal(err)
		}
	}
	first, err := File(a)
	if err != nil {
		t.Fatal(err)
	}
	second, err := File(a)
	if err != nil {
		t.Fatal(err)
	}
	other, err := File(b)
	if err != nil {
		t.Fatal(err)
	}
	if first != second || first != other {
		t.Fatalf("digests differ: %s %s %s", first, second, other)
	}
	if first != Bytes(content) {
		t.Fatalf("streamed digest %s differs from one-shot %s", first, Bytes(content))
	}
}

func TestFileMissing(t *testing.T) {
	_, err := File(filepath.Join(t.TempDir(), "missing"))
	if !errors.Is(err, os.ErrNotExist) {
		t.Fatalf("expected not-exist error, got %v", err)
	}
}

type blockRecorder struct {
	r     io.Reader
	sizes []int
}

func (b *blockRecorder) Read(p []byte) (int, error) {
	b.sizes = append(b.sizes, len(p))
	return b.r.Read(p)
}

func TestReaderUsesFixedBlocks(t *testing.T) {
	rec := &blockRecorder{r: strings.NewReader(strings.Repeat("x", 3*BlockSize+17))}
	if _, err := Reader(rec); err != nil {
		t.Fatal(err)
	}
	if len(rec.sizes) < 4 {
		t.Fatalf("expected at least 4 reads, got %d", len(rec.sizes))
	}
	for _, size := range rec.sizes {
		if size != BlockSize {
			t.Fatalf("expected %d-byte reads, got %d", BlockSize, size)
		}
	}
}

type failingReader struct{}

func (failingReader) Read([]byte) (int, error) { return 0, errors.New("disk gone") }

func TestReaderPropagatesErrors(t *testing.T) {
	if _, err := Reader(failingReader{}); err == nil {
		t.Fatal("expected read error")
	}
}
