// Package tdnfcore is the root of the engine: it owns the repo registry,
// history database, and cache root, and drives the other packages through
// one install/upgrade/downgrade/erase/rollback request at a time.
package tdnfcore

import (
	"errors"
	"fmt"
)

// Kind classifies an error into one of the disjoint ranges of spec §7, so
// a caller can dispatch on the range instead of a concrete type.
type Kind int

const (
	// KindInvalidInput covers argument validation failures.
	KindInvalidInput Kind = iota + 1
	// KindNotFound covers missing repo, package, file, or history entry.
	KindNotFound
	// KindConflict covers duplicate ids, already-installed, no downgrade
	// path, and protected-package removal.
	KindConflict
	// KindCrypto covers signature, key, and checksum failures.
	KindCrypto
	// KindResource covers disk space, fd limits, and permissions.
	KindResource
	// KindRemote covers HTTP and TLS failures talking to a repository.
	KindRemote
	// KindSolver covers unsolvable requests and solver problem lists.
	KindSolver
	// KindHistory covers history database corruption or unknown ids.
	KindHistory
	// KindSystem wraps an errno-shaped failure from the OS.
	KindSystem
)

// String names the Kind for log lines and JSON-mode error objects.
func (k Kind) String() string {
	switch k {
	case KindInvalidInput:
		return "invalid-input"
	case KindNotFound:
		return "not-found"
	case KindConflict:
		return "conflict"
	case KindCrypto:
		return "crypto"
	case KindResource:
		return "resource"
	case KindRemote:
		return "remote"
	case KindSolver:
		return "solver"
	case KindHistory:
		return "history"
	case KindSystem:
		return "system"
	default:
		return "unknown"
	}
}

// Error is the engine's error type: every exported operation that can fail
// returns one of these wrapped in the standard error interface, following
// the teacher's errors.Error{Op, Package, Err} shape.
type Error struct {
	Op      string // operation that failed, e.g. "resolve", "download"
	Kind    Kind
	Package string // NEVRA or name, if applicable
	Err     error
}

func (e *Error) Error() string {
	if e.Package != "" {
		return fmt.Sprintf("%s %s: %v", e.Op, e.Package, e.Err)
	}
	return fmt.Sprintf("%s: %v", e.Op, e.Err)
}

func (e *Error) Unwrap() error { return e.Err }

// Code returns a stable numeric error code for this Kind, Kind*1000+1, so
// each Kind owns a disjoint range of one thousand codes that a caller can
// dispatch on.
func (e *Error) Code() int {
	return int(e.Kind)*1000 + 1
}

// Wrap constructs an *Error, the engine-wide helper every package in this
// module funnels its failures through before returning to a caller.
func Wrap(op string, kind Kind, pkg string, err error) error {
	if err == nil {
		return nil
	}
	return &Error{Op: op, Kind: kind, Package: pkg, Err: err}
}

// Sentinel errors for specific failure cases, returned to the caller for
// matching with errors.Is.
var (
	// ErrNoEnabledRepos is returned when a resolve is attempted with no
	// enabled repositories (spec §8, "Boundary behaviors").
	ErrNoEnabledRepos = errors.New("no enabled repos")
	// ErrPackageRequired is returned when install/remove/reinstall is
	// called with an empty argument list.
	ErrPackageRequired = errors.New("package required")
	// ErrNotSourceRPM is returned when --source is combined with a
	// binary-arch package on the command line.
	ErrNotSourceRPM = errors.New("not a source rpm")
	// ErrCacheDisabled is returned by cache-only operations when the
	// required metadata is not already present.
	ErrCacheDisabled = errors.New("cache disabled")
	// ErrOutOfDiskSpace is returned by the resolver driver's disk-space
	// guard (spec §4.5).
	ErrOutOfDiskSpace = errors.New("cache dir out of disk space")
	// ErrDuplicateRepoID is returned when two *.repo definitions declare
	// the same id.
	ErrDuplicateRepoID = errors.New("duplicate repo id")
)
