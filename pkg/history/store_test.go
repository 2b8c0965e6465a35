package history

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/tdnf-go/tdnfcore/internal/rpmver"
)

func openTestStore(t *testing.T) *Store {
	t.Helper()
	path := filepath.Join(t.TempDir(), "history.db")
	s, err := Open(path, nil)
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	t.Cleanup(func() { s.Close() })
	return s
}

func nevra(s string) rpmver.NEVRA {
	n, err := rpmver.ParseNEVRA(s)
	if err != nil {
		panic(err)
	}
	return n
}

// TestInstallThenRollback covers spec §8 concrete scenario 1 + 4:
// install foo with nothing installed, then roll back, recovering the
// pre-install empty state.
func TestInstallThenRollback(t *testing.T) {
	ctx := context.Background()
	s := openTestStore(t)

	foo := nevra("foo-1.0-1.x86_64")
	id1, err := s.RecordDelta(ctx, "install foo", "cookie-1", 1000, nil, []rpmver.NEVRA{foo})
	if err != nil {
		t.Fatalf("RecordDelta: %v", err)
	}
	if err := s.SetAutoFlag(ctx, id1, "foo", false); err != nil {
		t.Fatalf("SetAutoFlag: %v", err)
	}

	state, err := s.StateAt(ctx, id1)
	if err != nil {
		t.Fatalf("StateAt: %v", err)
	}
	if len(state) != 1 || state[0] != foo {
		t.Fatalf("StateAt(%d) = %v, want [%v]", id1, state, foo)
	}

	base, err := s.LatestTransID(ctx)
	if err != nil {
		t.Fatalf("LatestTransID: %v", err)
	}
	baseline := base - 1 // the synthetic BASE RecordDelta inserted before the DELTA

	delta, err := s.Rollback(ctx, baseline)
	if err != nil {
		t.Fatalf("Rollback: %v", err)
	}
	if len(delta.Removed) != 1 || delta.Removed[0] != foo {
		t.Fatalf("Rollback(%d).Removed = %v, want [%v]", baseline, delta.Removed, foo)
	}
	if len(delta.Added) != 0 {
		t.Fatalf("Rollback(%d).Added = %v, want none", baseline, delta.Added)
	}
}

// TestRollbackIdempotent covers spec §8's round-trip law: "rollback to T
// immediately followed by rollback to T is a no-op (empty plan)" once
// the state already equals state(T).
func TestRollbackIdempotent(t *testing.T) {
	ctx := context.Background()
	s := openTestStore(t)

	foo := nevra("foo-1.0-1.x86_64")
	if _, err := s.RecordDelta(ctx, "install foo", "c1", 1, nil, []rpmver.NEVRA{foo}); err != nil {
		t.Fatalf("RecordDelta: %v", err)
	}
	latest, _ := s.LatestTransID(ctx)

	delta, err := s.Rollback(ctx, latest)
	if err != nil {
		t.Fatalf("Rollback: %v", err)
	}
	if len(delta.Added) != 0 || len(delta.Removed) != 0 {
		t.Fatalf("Rollback(latest) = %+v, want empty", delta)
	}
}

// TestUndoRedoRoundTrip covers spec §8: "undo(N, N) followed by redo(N,
// N) restores the pre-undo state."
func TestUndoRedoRoundTrip(t *testing.T) {
	ctx := context.Background()
	s := openTestStore(t)

	foo := nevra("foo-1.0-1.x86_64")
	bar := nevra("bar-2.0-1.x86_64")
	id1, err := s.RecordDelta(ctx, "install foo", "c1", 1, nil, []rpmver.NEVRA{foo})
	if err != nil {
		t.Fatalf("RecordDelta 1: %v", err)
	}
	preState, err := s.StateAt(ctx, id1)
	if err != nil {
		t.Fatalf("StateAt: %v", err)
	}
	id2, err := s.RecordDelta(ctx, "install bar", "c2", 2, preState, []rpmver.NEVRA{foo, bar})
	if err != nil {
		t.Fatalf("RecordDelta 2: %v", err)
	}

	undo, err := s.Undo(ctx, id2, id2)
	if err != nil {
		t.Fatalf("Undo: %v", err)
	}
	if len(undo.Removed) != 1 || undo.Removed[0] != bar {
		t.Fatalf("Undo(%d,%d).Removed = %v, want [%v]", id2, id2, undo.Removed, bar)
	}

	redo, err := s.Redo(ctx, id2, id2)
	if err != nil {
		t.Fatalf("Redo: %v", err)
	}
	if len(redo.Added) != 1 || redo.Added[0] != bar {
		t.Fatalf("Redo(%d,%d).Added = %v, want [%v]", id2, id2, redo.Added, bar)
	}
	if len(redo.Removed) != 0 {
		t.Fatalf("Redo(%d,%d).Removed = %v, want none", id2, id2, redo.Removed)
	}
}

func TestAutoFlagOnlyWritesOnChange(t *testing.T) {
	ctx := context.Background()
	s := openTestStore(t)

	id1, _ := s.RecordDelta(ctx, "install foo", "c1", 1, nil, []rpmver.NEVRA{nevra("foo-1.0-1.x86_64")})
	if err := s.SetAutoFlag(ctx, id1, "foo", true); err != nil {
		t.Fatalf("SetAutoFlag: %v", err)
	}
	if err := s.SetAutoFlag(ctx, id1, "foo", true); err != nil {
		t.Fatalf("SetAutoFlag (repeat): %v", err)
	}

	var count int
	if err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM flag_set`).Scan(&count); err != nil {
		t.Fatalf("count flag_set: %v", err)
	}
	if count != 1 {
		t.Fatalf("flag_set has %d rows after two identical SetAutoFlag calls, want 1", count)
	}

	val, ok, err := s.AutoFlagAt(ctx, id1, "foo")
	if err != nil {
		t.Fatalf("AutoFlagAt: %v", err)
	}
	if !ok || !val {
		t.Fatalf("AutoFlagAt = (%v, %v), want (true, true)", val, ok)
	}
}

func TestArrayDiff(t *testing.T) {
	a := []int64{1, 2, 3, 5}
	b := []int64{2, 3, 4}
	onlyA, onlyB := ArrayDiff(a, b)
	if len(onlyA) != 2 || onlyA[0] != 1 || onlyA[1] != 5 {
		t.Errorf("onlyA = %v, want [1 5]", onlyA)
	}
	if len(onlyB) != 1 || onlyB[0] != 4 {
		t.Errorf("onlyB = %v, want [4]", onlyB)
	}
}

func TestSyncReconciliation(t *testing.T) {
	ctx := context.Background()
	s := openTestStore(t)

	foo := nevra("foo-1.0-1.x86_64")
	if _, err := s.RecordBaseline(ctx, "init", "cookie-a", 1, nil); err != nil {
		t.Fatalf("RecordBaseline: %v", err)
	}
	if err := s.Sync(ctx, "cookie-b", []rpmver.NEVRA{foo}, 2); err != nil {
		t.Fatalf("Sync: %v", err)
	}

	txs, err := s.List(ctx)
	if err != nil {
		t.Fatalf("List: %v", err)
	}
	last := txs[len(txs)-1]
	if last.Cmdline != UnknownCmdline {
		t.Errorf("last transaction cmdline = %q, want %q", last.Cmdline, UnknownCmdline)
	}

	cookie, err := s.LatestCookie(ctx)
	if err != nil {
		t.Fatalf("LatestCookie: %v", err)
	}
	if cookie != "cookie-b" {
		t.Errorf("LatestCookie = %q, want cookie-b", cookie)
	}

	// A second Sync with the same cookie must be a no-op.
	before, _ := s.LatestTransID(ctx)
	if err := s.Sync(ctx, "cookie-b", []rpmver.NEVRA{foo}, 3); err != nil {
		t.Fatalf("Sync (repeat): %v", err)
	}
	after, _ := s.LatestTransID(ctx)
	if before != after {
		t.Errorf("Sync with unchanged cookie inserted a transaction (%d -> %d)", before, after)
	}
}
