package acquire

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"os"
	"path/filepath"
	"testing"
)

func TestVerifySize(t *testing.T) {
	path := filepath.Join(t.TempDir(), "pkg.rpm")
	if err := os.WriteFile(path, []byte("12345"), 0o644); err != nil {
		t.Fatalf("WriteFile: %v", err)
	}
	if err := VerifySize(path, 5); err != nil {
		t.Fatalf("VerifySize: %v", err)
	}

	if err := os.WriteFile(path, []byte("12345"), 0o644); err != nil {
		t.Fatalf("WriteFile: %v", err)
	}
	err := VerifySize(path, 6)
	if err == nil {
		t.Fatal("expected size mismatch error")
	}
	if _, statErr := os.Stat(path); !os.IsNotExist(statErr) {
		t.Error("expected file to be deleted on size mismatch")
	}
}

func TestVerifyDigest(t *testing.T) {
	path := filepath.Join(t.TempDir(), "pkg.rpm")
	content := []byte("package contents")
	if err := os.WriteFile(path, content, 0o644); err != nil {
		t.Fatalf("WriteFile: %v", err)
	}
	sum := sha256.Sum256(content)
	digest := hex.EncodeToString(sum[:])

	if err := VerifyDigest(path, "sha256", digest); err != nil {
		t.Fatalf("VerifyDigest: %v", err)
	}

	if err := os.WriteFile(path, content, 0o644); err != nil {
		t.Fatalf("WriteFile: %v", err)
	}
	if err := VerifyDigest(path, "sha256", "deadbeef"); err == nil {
		t.Fatal("expected digest mismatch error")
	}
	if _, statErr := os.Stat(path); !os.IsNotExist(statErr) {
		t.Error("expected file to be deleted on digest mismatch")
	}
}

func TestKeyCachePathContainment(t *testing.T) {
	dir := t.TempDir()
	p, err := KeyCachePath(dir, "https://example.com/RPM-GPG-KEY-example")
	if err != nil {
		t.Fatalf("KeyCachePath: %v", err)
	}
	if filepath.Dir(p) != dir {
		t.Errorf("expected key path under %q, got %q", dir, p)
	}
}

func TestResolveLocationAbsolute(t *testing.T) {
	got, err := ResolveLocation(context.Background(), nil, "/already/absolute.rpm", nil)
	if err != nil {
		t.Fatalf("ResolveLocation: %v", err)
	}
	if got != "/already/absolute.rpm" {
		t.Errorf("got %q", got)
	}
}

func TestResolveLocationTriesBaseURLsInOrder(t *testing.T) {
	var tried []string
	probe := func(_ context.Context, candidate string) bool {
		tried = append(tried, candidate)
		return len(tried) == 2 // accept the second base url
	}
	got, err := ResolveLocation(context.Background(), []string{
		"https://mirror1.example.com/repo",
		"https://mirror2.example.com/repo",
	}, "packages/foo.rpm", probe)
	if err != nil {
		t.Fatalf("ResolveLocation: %v", err)
	}
	if got != "https://mirror2.example.com/repo/packages/foo.rpm" {
		t.Errorf("got %q", got)
	}
	if len(tried) != 2 {
		t.Errorf("expected 2 probes, got %d", len(tried))
	}
}
