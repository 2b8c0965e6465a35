// Delta operations and rollback/undo/redo semantics, spec §4.7:
// "get_delta(T) = diff(state(T), current state)" and
// "get_delta_range(T0, T1) = diff(state(T1), state(T0))", with rollback
// producing a plan from get_delta and undo/redo from get_delta_range in
// opposite directions.
package history

import (
	"context"
	"fmt"
	"sort"

	"github.com/tdnf-go/tdnfcore/internal/rpmver"
)

// Delta is {added_ids[], removed_ids[]} at the NEVRA level, spec §3
// "Delta operations".
type Delta struct {
	Added   []rpmver.NEVRA
	Removed []rpmver.NEVRA
}

func nevraDiff(a, b []rpmver.NEVRA) (onlyA, onlyB []rpmver.NEVRA) {
	as := append([]rpmver.NEVRA(nil), a...)
	bs := append([]rpmver.NEVRA(nil), b...)
	key := func(n rpmver.NEVRA) string { return n.String() }
	sort.Slice(as, func(i, j int) bool { return key(as[i]) < key(as[j]) })
	sort.Slice(bs, func(i, j int) bool { return key(bs[i]) < key(bs[j]) })

	i, j := 0, 0
	for i < len(as) && j < len(bs) {
		ka, kb := key(as[i]), key(bs[j])
		switch {
		case ka < kb:
			onlyA = append(onlyA, as[i])
			i++
		case ka > kb:
			onlyB = append(onlyB, bs[j])
			j++
		default:
			i++
			j++
		}
	}
	onlyA = append(onlyA, as[i:]...)
	onlyB = append(onlyB, bs[j:]...)
	return onlyA, onlyB
}

// GetDelta computes diff(state(T), current state), spec §4.7.
func (s *Store) GetDelta(ctx context.Context, t int64) (Delta, error) {
	latest, err := s.LatestTransID(ctx)
	if err != nil {
		return Delta{}, err
	}
	return s.getDeltaRange(ctx, t, latest)
}

// GetDeltaRange computes diff(state(t1), state(t0)), spec §4.7: "order
// of arguments allows reversed direction for undo."
func (s *Store) GetDeltaRange(ctx context.Context, t0, t1 int64) (Delta, error) {
	return s.getDeltaRange(ctx, t1, t0)
}

func (s *Store) getDeltaRange(ctx context.Context, t0, t1 int64) (Delta, error) {
	if err := s.validTransID(ctx, t0); err != nil {
		return Delta{}, err
	}
	if err := s.validTransID(ctx, t1); err != nil {
		return Delta{}, err
	}
	a, err := s.StateAt(ctx, t0)
	if err != nil {
		return Delta{}, err
	}
	b, err := s.StateAt(ctx, t1)
	if err != nil {
		return Delta{}, err
	}
	added, removed := nevraDiff(a, b)
	return Delta{Added: added, Removed: removed}, nil
}

func (s *Store) validTransID(ctx context.Context, t int64) error {
	if t == 0 {
		return nil // state(0) is the empty pre-history state
	}
	var exists bool
	err := s.db.QueryRowContext(ctx, `SELECT EXISTS(SELECT 1 FROM transactions WHERE id = ?)`, t).Scan(&exists)
	if err != nil {
		return err
	}
	if !exists {
		return fmt.Errorf("history: unknown transaction id %d", t)
	}
	return nil
}

// Rollback produces the plan to restore state(T), spec §4.7 "rollback to
// T (T ≥ 1): produce plan for get_delta(T); additionally restore every
// auto-flag to its value at T." The auto-flag restoration is the
// caller's responsibility via RestoreAutoFlags on the names touched by the
// returned Delta — Rollback itself only computes the package-level plan.
func (s *Store) Rollback(ctx context.Context, t int64) (Delta, error) {
	return s.GetDelta(ctx, t)
}

// Undo produces the reverse-delta plan for undoing the transaction range
// [from, to], spec §4.7: Added holds what state(from-1) has and state(to)
// lacks, Removed the reverse. Undo computes only the package-level plan;
// it does not replay auto-flag changes.
func (s *Store) Undo(ctx context.Context, from, to int64) (Delta, error) {
	return s.getDeltaRange(ctx, from-1, to)
}

// Redo produces the plan for redoing [from, to] after an Undo,
// symmetric to Undo: the plan from state(from-1) back to state(to).
func (s *Store) Redo(ctx context.Context, from, to int64) (Delta, error) {
	return s.getDeltaRange(ctx, to, from-1)
}
