// Package lock implements the single-writer instance lock of spec §5:
// exactly one tdnf process may hold the transaction lock on a given
// install root at a time; every other entrypoint (including read-only
// queries that touch the same cache) waits or fails fast depending on
// the caller's patience.
//
// Grounded on github.com/gofrs/flock, the advisory-lock library already
// present in the teacher's dependency graph's neighborhood via the other
// package-manager backends it wraps; generalized here into the one lock
// file every tdnf process instance contends on.
package lock

import (
	"context"
	"fmt"
	"path/filepath"
	"time"

	"github.com/gofrs/flock"
)

// Path returns the instance lock file path beneath an install root, e.g.
// "/var/run/tdnf.pid" in the original, relocated under the install root
// so multiple --installroot invocations don't contend with each other.
func Path(installRoot string) string {
	return filepath.Join(installRoot, "run", "tdnf.lock")
}

// Lock wraps an advisory file lock on the instance lock path.
type Lock struct {
	fl *flock.Flock
}

// New returns a Lock for the given install root. The lock file's parent
// directory must already exist; callers create it (tdnfcore.New does so
// with os.MkdirAll) before calling TryLock/Lock.
func New(installRoot string) *Lock {
	return &Lock{fl: flock.New(Path(installRoot))}
}

// TryLock attempts to acquire the lock without blocking, returning false
// if another process already holds it (spec §5: "a second invocation
// must fail fast rather than queue behind the first").
func (l *Lock) TryLock() (bool, error) {
	return l.fl.TryLock()
}

// Lock blocks, polling at the given interval, until the lock is acquired
// or ctx is done.
func (l *Lock) Lock(ctx context.Context, pollInterval time.Duration) error {
	locked, err := l.fl.TryLockContext(ctx, pollInterval)
	if err != nil {
		return err
	}
	if !locked {
		return fmt.Errorf("lock: could not acquire %s", l.fl.Path())
	}
	return nil
}

// Unlock releases the lock. Safe to call on an unlocked Lock.
func (l *Lock) Unlock() error {
	return l.fl.Unlock()
}

// Locked reports whether this process currently holds the lock.
func (l *Lock) Locked() bool {
	return l.fl.Locked()
}
