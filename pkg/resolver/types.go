// Package resolver implements the Resolver Driver of spec §4.5: it
// translates declarative intents (install/erase/upgrade/downgrade/
// reinstall/distro-sync/history-replay) into solver jobs, applies the
// global modifiers (excludes, locks, minversions, best/allow-erasing/
// clean-requirements), and interprets the solver's output into the six
// disjoint mutation lists of spec §3's "Solved plan".
//
// The real dependency solver is named in spec §1 as an external
// collaborator ("the low-level SAT-style dependency solver (consumed as
// a library with the contract in §6)"); no Go binding to a SAT-style
// solver like libsolv exists anywhere in the retrieval pack, so this
// package defines the contract as the Pool interface and ships Pool's
// one concrete implementation, a greedy name/EVR resolver, as the thing
// the driver actually consumes — grounded on the teacher's
// pkg/dnf.PackageManager.resolvePackage/installRecursive, which already
// walked a flat package index picking the highest-EVR candidate and
// recursing into Requires; this package generalizes that walk into the
// full job-oriented contract spec §4.5 and §6 describe.
package resolver

import (
	"fmt"

	"github.com/tdnf-go/tdnfcore/internal/rpmver"
)

// JobAction names one kind of solver job, spec §4.5 "Job construction"
// table.
type JobAction int

const (
	JobInstallByName JobAction = iota
	JobInstallSolvable
	JobUpgradeByName
	JobUpgradeAll
	JobDowngradeByName
	JobEraseByName
	JobReinstallByName
	JobDistroSync
	JobLock
)

func (a JobAction) String() string {
	switch a {
	case JobInstallByName:
		return "install-by-name"
	case JobInstallSolvable:
		return "install-by-solvable"
	case JobUpgradeByName:
		return "upgrade-by-name"
	case JobUpgradeAll:
		return "upgrade-all"
	case JobDowngradeByName:
		return "downgrade-by-name"
	case JobEraseByName:
		return "erase-by-name"
	case JobReinstallByName:
		return "reinstall-by-name"
	case JobDistroSync:
		return "dist-upgrade"
	case JobLock:
		return "lock"
	default:
		return "unknown"
	}
}

// Job is one unit of solver input, spec §4.5: "{action, solvable
// selector, flags}".
type Job struct {
	Action         JobAction
	Name           string      // name-based selector
	Solvable       rpmver.NEVRA // solvable-id-based selector (install *.rpm)
	RepoID         string      // repo the Solvable job's package lives in (usually @cmdline)
	AllowUninstall bool
	CleanDeps      bool
}

// Solvable is one candidate unit the pool can choose, spec GLOSSARY:
// "one per (repo, NEVRA) tuple plus one for each installed package."
type Solvable struct {
	NEVRA         rpmver.NEVRA
	RepoID        string
	DownloadSize  int64
	InstalledSize int64
	Location      string
	Checksum      string
	ChecksumType  string
	Provides      []string
	Requires      []string
	Conflicts     []string
	Obsoletes     []string
	Installed     bool
}

// Plan is the resolver's output, spec §3 "Solved plan": six disjoint
// mutation lists plus the extras the driver and history store need.
type Plan struct {
	ToInstall           []Solvable
	ToUpgrade           []Solvable
	ToDowngrade         []Solvable
	ToRemove            []Solvable
	ToReinstall         []Solvable
	Obsoleted           []Solvable
	Unneeded            []Solvable
	RemovedByDowngrade  []Solvable
	NotResolved         []string
	UserInstalled       []string
}

// NeedAction reports whether any mutation list is non-empty, spec §3
// invariant.
func (p *Plan) NeedAction() bool {
	return len(p.ToInstall) > 0 || len(p.ToUpgrade) > 0 || len(p.ToDowngrade) > 0 ||
		len(p.ToRemove) > 0 || len(p.ToReinstall) > 0
}

// Validate checks spec §8 invariant 1 for five of the mutation lists
// (to_install, to_upgrade, to_downgrade, to_remove, to_reinstall are
// pairwise disjoint by NEVRA; Obsoleted is not checked), and that every
// UserInstalled name appears in ToInstall.
func (p *Plan) Validate() error {
	lists := map[string][]Solvable{
		"to_install":   p.ToInstall,
		"to_upgrade":   p.ToUpgrade,
		"to_downgrade": p.ToDowngrade,
		"to_remove":    p.ToRemove,
		"to_reinstall": p.ToReinstall,
	}
	seen := make(map[string]string)
	for name, list := range lists {
		for _, s := range list {
			key := s.NEVRA.String()
			if other, ok := seen[key]; ok {
				return fmt.Errorf("resolver: %s appears in both %s and %s", key, other, name)
			}
			seen[key] = name
		}
	}
	for _, name := range p.UserInstalled {
		found := false
		for _, s := range p.ToInstall {
			if s.NEVRA.Name == name {
				found = true
				break
			}
		}
		if !found {
			return fmt.Errorf("resolver: user_installed %q not present in to_install", name)
		}
	}
	return nil
}

// DownloadSize sums the bytes the executor must fetch for this plan,
// spec §4.5 "Disk-space guard".
func (p *Plan) DownloadSize() int64 {
	var total int64
	for _, list := range [][]Solvable{p.ToInstall, p.ToUpgrade, p.ToDowngrade, p.ToReinstall} {
		for _, s := range list {
			total += s.DownloadSize
		}
	}
	return total
}

// ProblemType classifies a solver problem, spec §4.5 "Problem reporting"
// skip masks.
type ProblemType int

const (
	ProblemConflict ProblemType = iota
	ProblemObsoletes
	ProblemBroken
)

func (t ProblemType) String() string {
	switch t {
	case ProblemConflict:
		return "conflict"
	case ProblemObsoletes:
		return "obsoletes"
	case ProblemBroken:
		return "broken"
	default:
		return "unknown"
	}
}

// Problem is one unsatisfiable constraint the pool reports back.
type Problem struct {
	Type    ProblemType
	Message string
}

// SkipMask is the user's problem-skip selection, spec §4.5: "filtered by
// the user's skip mask (--skipconflicts, --skipobsoletes, --skipbroken)".
type SkipMask struct {
	SkipConflicts bool
	SkipObsoletes bool
	SkipBroken    bool
}

// Masks reports whether p should be treated as informational rather
// than fatal under this mask.
func (m SkipMask) Masks(p Problem) bool {
	switch p.Type {
	case ProblemConflict:
		return m.SkipConflicts
	case ProblemObsoletes:
		return m.SkipObsoletes
	case ProblemBroken:
		return m.SkipBroken
	default:
		return false
	}
}

// ResolveError wraps the unmasked problems a solve produced, spec §4.5:
// "Unmasked problems fail the resolve."
type ResolveError struct {
	Problems []Problem
}

func (e *ResolveError) Error() string {
	return fmt.Sprintf("resolver: %d unresolved problem(s): %s", len(e.Problems), e.Problems[0].Message)
}
