package lock

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestTryLockExclusive(t *testing.T) {
	root := t.TempDir()
	if err := os.MkdirAll(filepath.Dir(Path(root)), 0o755); err != nil {
		t.Fatalf("MkdirAll: %v", err)
	}

	first := New(root)
	ok, err := first.TryLock()
	if err != nil {
		t.Fatalf("TryLock: %v", err)
	}
	if !ok {
		t.Fatal("expected first TryLock to succeed")
	}
	defer first.Unlock()

	second := New(root)
	ok, err = second.TryLock()
	if err != nil {
		t.Fatalf("second TryLock: %v", err)
	}
	if ok {
		t.Fatal("expected second TryLock to fail while first holds the lock")
	}
}

func TestLockContextTimesOut(t *testing.T) {
	root := t.TempDir()
	if err := os.MkdirAll(filepath.Dir(Path(root)), 0o755); err != nil {
		t.Fatalf("MkdirAll: %v", err)
	}

	first := New(root)
	if ok, err := first.TryLock(); err != nil || !ok {
		t.Fatalf("TryLock: ok=%v err=%v", ok, err)
	}
	defer first.Unlock()

	second := New(root)
	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()
	if err := second.Lock(ctx, 10*time.Millisecond); err == nil {
		t.Fatal("expected Lock to time out while first holds the lock")
	}
}

func TestUnlockThenRelock(t *testing.T) {
	root := t.TempDir()
	if err := os.MkdirAll(filepath.Dir(Path(root)), 0o755); err != nil {
		t.Fatalf("MkdirAll: %v", err)
	}

	l := New(root)
	if ok, err := l.TryLock(); err != nil || !ok {
		t.Fatalf("TryLock: ok=%v err=%v", ok, err)
	}
	if err := l.Unlock(); err != nil {
		t.Fatalf("Unlock: %v", err)
	}

	other := New(root)
	if ok, err := other.TryLock(); err != nil || !ok {
		t.Fatalf("expected lock reacquirable after Unlock: ok=%v err=%v", ok, err)
	}
	other.Unlock()
}
