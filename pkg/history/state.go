// State replay, spec §3 "State at transaction T" and §8 invariant 2:
// deterministically reconstruct the installed rpm-id set at any
// recorded transaction by walking back to the nearest BASE and
// forward-applying DELTAs.
package history

import (
	"context"
	"database/sql"
	"fmt"
	"sort"

	"github.com/tdnf-go/tdnfcore/internal/rpmver"
)

// StateAt reconstructs the set of NEVRAs installed at the moment
// transaction T completed, ordered by rpm id.
func (s *Store) StateAt(ctx context.Context, transID int64) ([]rpmver.NEVRA, error) {
	return s.stateAtTx(ctx, s.db, transID)
}

// querier is satisfied by both *sql.DB and *sql.Tx, so stateAtTx can run
// against either; the callers in this package pass s.db.
type querier interface {
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

func (s *Store) stateAtTx(ctx context.Context, q querier, transID int64) ([]rpmver.NEVRA, error) {
	var baseID sql.NullInt64
	err := q.QueryRowContext(ctx,
		`SELECT id FROM transactions WHERE type = 'BASE' AND id <= ? ORDER BY id DESC LIMIT 1`, transID).Scan(&baseID)
	if err != nil && err != sql.ErrNoRows {
		return nil, err
	}
	if !baseID.Valid {
		return nil, nil // no BASE at or before transID: empty state
	}

	set := make(map[int64]bool)
	rows, err := q.QueryContext(ctx,
		`SELECT rpm_id FROM trans_items WHERE trans_id = ? AND type = 'SET'`, baseID.Int64)
	if err != nil {
		return nil, err
	}
	if err := scanIDsInto(rows, set, true); err != nil {
		return nil, err
	}

	deltaRows, err := q.QueryContext(ctx,
		`SELECT rpm_id, type FROM trans_items
		 WHERE trans_id > ? AND trans_id <= ? AND type IN ('ADD','REMOVE')
		 ORDER BY trans_id ASC`, baseID.Int64, transID)
	if err != nil {
		return nil, err
	}
	defer deltaRows.Close()
	for deltaRows.Next() {
		var rpmID int64
		var typ string
		if err := deltaRows.Scan(&rpmID, &typ); err != nil {
			return nil, err
		}
		switch typ {
		case itemAdd:
			set[rpmID] = true
		case itemRemove:
			delete(set, rpmID)
		}
	}
	if err := deltaRows.Err(); err != nil {
		return nil, err
	}

	return s.resolveNEVRAs(ctx, q, set)
}

func scanIDsInto(rows *sql.Rows, set map[int64]bool, own bool) error {
	if own {
		defer rows.Close()
	}
	for rows.Next() {
		var id int64
		if err := rows.Scan(&id); err != nil {
			return err
		}
		set[id] = true
	}
	return rows.Err()
}

func (s *Store) resolveNEVRAs(ctx context.Context, q querier, ids map[int64]bool) ([]rpmver.NEVRA, error) {
	sorted := make([]int64, 0, len(ids))
	for id := range ids {
		sorted = append(sorted, id)
	}
	sort.Slice(sorted, func(i, j int) bool { return sorted[i] < sorted[j] })

	out := make([]rpmver.NEVRA, 0, len(sorted))
	for _, id := range sorted {
		var nevraStr string
		if err := q.QueryRowContext(ctx, `SELECT nevra FROM rpms WHERE id = ?`, id).Scan(&nevraStr); err != nil {
			return nil, fmt.Errorf("history: resolve rpm id %d: %w", id, err)
		}
		n, err := rpmver.ParseNEVRA(nevraStr)
		if err != nil {
			return nil, err
		}
		out = append(out, n)
	}
	return out, nil
}
