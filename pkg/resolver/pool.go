// Pool is the in-memory universe of solvables the driver resolves jobs
// against, spec GLOSSARY "Pool". MemPool is the one concrete
// implementation this package ships, a greedy name+EVR resolver
// standing in for the consumed SAT-style solver (see the package doc
// comment in types.go).
package resolver

import (
	"sort"
	"strings"

	"github.com/tdnf-go/tdnfcore/internal/rpmver"
)

// Pool is the contract the driver resolves jobs against, corresponding
// to spec §6's "low-level SAT-style dependency solver ... consumed as a
// library with the contract in §6."
type Pool interface {
	AddSolvable(s Solvable)
	Installed() []Solvable
	InstalledByName(name string) (Solvable, bool)
	AvailableNames() []string
	Candidates(name string) []Solvable
	Exclude(namePattern string)
	Lock(name string)
	MinVersion(name, evr string)
	Considered(s Solvable) bool
	Solve(jobs []Job, opts SolveOptions) (*Plan, []Problem, error)
}

// SolveOptions carries the per-solve modifiers spec §4.5 sets "on the
// solver": best, allow-uninstall, clean-deps, allow-downgrade, etc.
type SolveOptions struct {
	Best                      bool
	AllowUninstall            bool
	AllowDowngrade            bool
	CleanDeps                 bool
	KeepOrphans               bool
	AllowVendorChange         bool
	YumObsoletes              bool
	CleanRequirementsOnRemove bool
	// NotUserInstalled reports whether name is not recorded as
	// explicitly user-installed in history, spec §4.5 "Orphan
	// handling": consulted to decide whether an about-to-be-orphaned
	// dependency may be culled.
	NotUserInstalled func(name string) bool
}

// MemPool is a greedy, name-indexed Pool: among repo candidates for a
// name it always prefers the highest EVR from the lowest-priority repo
// (ties broken by insertion order), and resolves Requires recursively by
// package name within the pool; Provides entries are not matched.
type MemPool struct {
	installed  map[string]Solvable   // name -> installed solvable
	byName     map[string][]Solvable // name -> available candidates, all repos
	repoPrio   map[string]int
	excluded   []string
	locked     map[string]bool
	minVersion map[string]string
}

// NewMemPool returns an empty pool. repoPriority maps repo id to its
// configured priority, used to order candidates when EVRs tie, spec §5
// "Ordering guarantees": "Repos are refreshed in priority order
// (ascending)" extends naturally to candidate preference.
func NewMemPool(repoPriority map[string]int) *MemPool {
	return &MemPool{
		installed:  make(map[string]Solvable),
		byName:     make(map[string][]Solvable),
		repoPrio:   repoPriority,
		locked:     make(map[string]bool),
		minVersion: make(map[string]string),
	}
}

func (p *MemPool) AddSolvable(s Solvable) {
	if s.Installed {
		p.installed[s.NEVRA.Name] = s
		return
	}
	p.byName[s.NEVRA.Name] = append(p.byName[s.NEVRA.Name], s)
}

func (p *MemPool) Installed() []Solvable {
	out := make([]Solvable, 0, len(p.installed))
	for _, s := range p.installed {
		out = append(out, s)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].NEVRA.Name < out[j].NEVRA.Name })
	return out
}

func (p *MemPool) InstalledByName(name string) (Solvable, bool) {
	s, ok := p.installed[name]
	return s, ok
}

// AvailableNames returns every package name carried by some repo's
// candidate list, sorted, used by the "check" intent's "install job for
// every available package" semantics (spec §4.5).
func (p *MemPool) AvailableNames() []string {
	out := make([]string, 0, len(p.byName))
	for name := range p.byName {
		out = append(out, name)
	}
	sort.Strings(out)
	return out
}

// Candidates returns every non-excluded, considered candidate for name,
// sorted best-first: highest EVR, ties broken by ascending repo
// priority.
func (p *MemPool) Candidates(name string) []Solvable {
	if p.isExcluded(name) {
		return nil
	}
	all := p.byName[name]
	out := make([]Solvable, 0, len(all))
	for _, s := range all {
		if p.Considered(s) {
			out = append(out, s)
		}
	}
	sort.SliceStable(out, func(i, j int) bool {
		cmp := rpmver.Compare(out[i].NEVRA, out[j].NEVRA)
		if cmp != 0 {
			return cmp > 0
		}
		return p.repoPrio[out[i].RepoID] < p.repoPrio[out[j].RepoID]
	})
	return out
}

func (p *MemPool) Exclude(namePattern string) { p.excluded = append(p.excluded, namePattern) }

func (p *MemPool) isExcluded(name string) bool {
	for _, pat := range p.excluded {
		if ok, _ := matchGlob(pat, name); ok {
			return true
		}
	}
	return false
}

func matchGlob(pattern, name string) (bool, error) {
	if !strings.ContainsAny(pattern, "*?[") {
		return pattern == name, nil
	}
	return simpleGlobMatch(pattern, name), nil
}

// simpleGlobMatch supports '*' and '?' without pulling in path/filepath
// semantics (which treat '/' specially, irrelevant to package names).
func simpleGlobMatch(pattern, name string) bool {
	return globMatch([]rune(pattern), []rune(name))
}

func globMatch(pattern, name []rune) bool {
	if len(pattern) == 0 {
		return len(name) == 0
	}
	if pattern[0] == '*' {
		for i := 0; i <= len(name); i++ {
			if globMatch(pattern[1:], name[i:]) {
				return true
			}
		}
		return false
	}
	if len(name) == 0 {
		return false
	}
	if pattern[0] == '?' || pattern[0] == name[0] {
		return globMatch(pattern[1:], name[1:])
	}
	return false
}

func (p *MemPool) Lock(name string) { p.locked[name] = true }

func (p *MemPool) MinVersion(name, evr string) { p.minVersion[name] = evr }

// Considered reports whether s is usable by the solver: not below a
// configured minversion pin, spec §4.5 "Minimum versions": "marks all
// solvables of that name with EVR less than the pin as 'not considered'."
func (p *MemPool) Considered(s Solvable) bool {
	min, ok := p.minVersion[s.NEVRA.Name]
	if !ok {
		return true
	}
	return rpmver.CompareEVR(s.NEVRA.EVR(), min) >= 0
}

func (p *MemPool) isLocked(name string) bool { return p.locked[name] }
