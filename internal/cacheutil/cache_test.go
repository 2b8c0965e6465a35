package cacheutil

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestLayoutPaths(t *testing.T) {
	l := New("/var/cache/tdnf", "base-1234")
	if l.Root() != filepath.Join("/var/cache/tdnf", "base-1234") {
		t.Errorf("Root() = %q", l.Root())
	}
	if l.RepodataDir() != filepath.Join(l.Root(), "repodata") {
		t.Errorf("RepodataDir() = %q", l.RepodataDir())
	}
	if l.MarkerPath() != filepath.Join(l.Root(), "lastrefresh") {
		t.Errorf("MarkerPath() = %q", l.MarkerPath())
	}
}

func TestRepoCacheNameStable(t *testing.T) {
	a := RepoCacheName("base", "https://example.com/repo")
	b := RepoCacheName("base", "https://example.com/repo")
	if a != b {
		t.Error("RepoCacheName must be deterministic for the same inputs")
	}
	c := RepoCacheName("base", "https://mirror.example.com/repo")
	if a == c {
		t.Error("RepoCacheName must differ when the URL differs for the same id")
	}
}

func TestEnsureDirsAndMarker(t *testing.T) {
	dir := t.TempDir()
	l := New(dir, "base")
	if err := l.EnsureDirs(); err != nil {
		t.Fatalf("EnsureDirs: %v", err)
	}
	for _, d := range []string{l.RepodataDir(), l.RPMsDir(), l.SolvcacheDir(), l.KeysDir(), l.StagingDir()} {
		if _, err := os.Stat(d); err != nil {
			t.Errorf("expected %q to exist: %v", d, err)
		}
	}

	if !l.MarkerTime().IsZero() {
		t.Error("marker should not exist yet")
	}
	if err := l.TouchMarker(); err != nil {
		t.Fatalf("TouchMarker: %v", err)
	}
	if l.MarkerTime().IsZero() {
		t.Error("marker should exist after TouchMarker")
	}
}

func TestStale(t *testing.T) {
	dir := t.TempDir()
	l := New(dir, "base")
	if err := l.EnsureDirs(); err != nil {
		t.Fatalf("EnsureDirs: %v", err)
	}

	if !l.Stale(time.Hour, false) {
		t.Error("missing marker must always be stale")
	}
	if l.Stale(time.Hour, true) {
		t.Error("cache-only must never report stale")
	}

	if err := l.TouchMarker(); err != nil {
		t.Fatalf("TouchMarker: %v", err)
	}
	if l.Stale(time.Hour, false) {
		t.Error("freshly touched marker must not be stale")
	}
	if l.Stale(-1, false) {
		t.Error("never-expire must not be stale regardless of age")
	}

	old := time.Now().Add(-2 * time.Hour)
	if err := os.Chtimes(l.MarkerPath(), old, old); err != nil {
		t.Fatalf("Chtimes: %v", err)
	}
	if !l.Stale(time.Hour, false) {
		t.Error("marker older than metadataExpire must be stale")
	}
}

func TestRemoveAllTolerant(t *testing.T) {
	dir := t.TempDir()
	l := New(dir, "base")
	if err := l.EnsureDirs(); err != nil {
		t.Fatalf("EnsureDirs: %v", err)
	}
	if err := os.WriteFile(filepath.Join(l.RPMsDir(), "a.rpm"), []byte("x"), 0o644); err != nil {
		t.Fatalf("WriteFile: %v", err)
	}
	if err := l.RemoveAll(); err != nil {
		t.Fatalf("RemoveAll: %v", err)
	}
	if _, err := os.Stat(l.Root()); !os.IsNotExist(err) {
		t.Errorf("expected cache root removed, stat err = %v", err)
	}
}

func TestParseMetadataExpire(t *testing.T) {
	cases := []struct {
		in      string
		want    time.Duration
		wantErr bool
	}{
		{"never", -1, false},
		{"", 0, false},
		{"100", 100 * time.Second, false},
		{"30m", 30 * time.Minute, false},
		{"2h", 2 * time.Hour, false},
		{"7d", 7 * 24 * time.Hour, false},
		{"abc", 0, true},
	}
	for _, c := range cases {
		got, err := ParseMetadataExpire(c.in)
		if c.wantErr {
			if err == nil {
				t.Errorf("ParseMetadataExpire(%q): expected error", c.in)
			}
			continue
		}
		if err != nil {
			t.Errorf("ParseMetadataExpire(%q): unexpected error %v", c.in, err)
			continue
		}
		if got != c.want {
			t.Errorf("ParseMetadataExpire(%q) = %v, want %v", c.in, got, c.want)
		}
	}
}
