package acquire

import (
	"compress/gzip"
	"context"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"
)

func TestDownloadRenamesIntoPlace(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte("package contents"))
	}))
	defer srv.Close()

	c, err := New(Options{})
	if err != nil {
		t.Fatalf("New: %v", err)
	}

	dest := filepath.Join(t.TempDir(), "sub", "foo.rpm")
	if err := c.Download(context.Background(), srv.URL, dest, "", ""); err != nil {
		t.Fatalf("Download: %v", err)
	}
	data, err := os.ReadFile(dest)
	if err != nil {
		t.Fatalf("ReadFile: %v", err)
	}
	if string(data) != "package contents" {
		t.Errorf("data = %q", data)
	}
	if _, err := os.Stat(dest + ".tmp"); !os.IsNotExist(err) {
		t.Error("expected .tmp file to be gone after rename")
	}
}

func TestDownloadAbortsOn4xx(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "nope", http.StatusNotFound)
	}))
	defer srv.Close()

	c, err := New(Options{Retries: 1})
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	dest := filepath.Join(t.TempDir(), "foo.rpm")
	if err := c.Download(context.Background(), srv.URL, dest, "", ""); err == nil {
		t.Fatal("expected error on 404")
	}
}

func TestGetDecompressedGzip(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gz := gzip.NewWriter(w)
		gz.Write([]byte("<repomd></repomd>"))
		gz.Close()
	}))
	defer srv.Close()

	c, err := New(Options{})
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	rc, err := c.GetDecompressed(context.Background(), srv.URL, "", "", ".gz")
	if err != nil {
		t.Fatalf("GetDecompressed: %v", err)
	}
	defer rc.Close()

	buf := make([]byte, 64)
	n, _ := rc.Read(buf)
	if string(buf[:n]) != "<repomd></repomd>" {
		t.Errorf("decompressed = %q", buf[:n])
	}
}

func TestExistsTreatsZeroByteAsAbsent(t *testing.T) {
	dir := t.TempDir()
	zero := filepath.Join(dir, "zero.rpm")
	if err := os.WriteFile(zero, nil, 0o644); err != nil {
		t.Fatalf("WriteFile: %v", err)
	}
	if Exists(zero) {
		t.Error("zero-byte file should be treated as absent")
	}

	nonzero := filepath.Join(dir, "real.rpm")
	if err := os.WriteFile(nonzero, []byte("x"), 0o644); err != nil {
		t.Fatalf("WriteFile: %v", err)
	}
	if !Exists(nonzero) {
		t.Error("non-empty file should exist")
	}
}

func TestExtOf(t *testing.T) {
	cases := map[string]string{
		"primary.xml.gz":  ".gz",
		"primary.xml.xz":  ".xz",
		"primary.xml.zst": ".zst",
		"primary.xml":     "",
	}
	for in, want := range cases {
		if got := ExtOf(in); got != want {
			t.Errorf("ExtOf(%q) = %q, want %q", in, got, want)
		}
	}
}
