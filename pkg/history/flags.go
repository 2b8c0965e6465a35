// Auto-installed flag bookkeeping, spec §3 names/flag_set schema and
// GLOSSARY "Auto-installed flag". Grounded on the original tdnf
// history.c's db_get_auto_flag_byid / history_set_auto_flag discipline
// (SPEC_FULL §C item 2): only append a flag_set row when the value
// actually changes, so the log does not grow on every transaction for
// every package regardless of whether its flag moved.
package history

import (
	"context"
	"database/sql"
)

// SetAutoFlag records name's auto-installed flag as of transID, spec §3
// "flag_set(id, trans_id, name_id, value)": append-only, but only
// written when the effective value would change, mirroring the original
// history_set_auto_flag's "don't clutter the db" discipline.
func (s *Store) SetAutoFlag(ctx context.Context, transID int64, name string, autoInstalled bool) error {
	current, ok, err := s.AutoFlagAt(ctx, transID, name)
	if err != nil {
		return err
	}
	if ok && current == autoInstalled {
		return nil
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	nameID, err := internName(ctx, tx, name)
	if err != nil {
		return err
	}
	value := 0
	if autoInstalled {
		value = 1
	}
	if _, err := tx.ExecContext(ctx,
		`INSERT INTO flag_set(trans_id, name_id, value) VALUES (?, ?, ?)`, transID, nameID, value); err != nil {
		return err
	}
	return tx.Commit()
}

// AutoFlagAt returns name's auto-installed flag value as of transaction
// T: "the latest row with trans_id ≤ T determines the value at state T"
// (spec §3). ok is false if name has never had a flag recorded at or
// before T.
func (s *Store) AutoFlagAt(ctx context.Context, t int64, name string) (autoInstalled, ok bool, err error) {
	var value int
	err = s.db.QueryRowContext(ctx, `
		SELECT fs.value
		FROM flag_set fs
		JOIN names n ON n.id = fs.name_id
		WHERE n.name = ? AND fs.trans_id <= ?
		ORDER BY fs.trans_id DESC, fs.id DESC
		LIMIT 1`, name, t).Scan(&value)
	if err == sql.ErrNoRows {
		return false, false, nil
	}
	if err != nil {
		return false, false, err
	}
	return value == 1, true, nil
}

// RestoreAutoFlags replays every name's auto-flag to its value at
// transaction T, spec §4.7 "restore every auto-flag to its value at T",
// by re-asserting it as of the current (latest) transaction so the log
// reflects the rollback. names is typically every NEVRA name touched by
// the accompanying package-level Delta.
func (s *Store) RestoreAutoFlags(ctx context.Context, t int64, names []string) error {
	latest, err := s.LatestTransID(ctx)
	if err != nil {
		return err
	}
	for _, name := range names {
		value, ok, err := s.AutoFlagAt(ctx, t, name)
		if err != nil {
			return err
		}
		if !ok {
			continue
		}
		if err := s.SetAutoFlag(ctx, latest, name, value); err != nil {
			return err
		}
	}
	return nil
}
