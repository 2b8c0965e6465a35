// Package query implements the read-only query surfaces SPEC_FULL.md's
// supplemented-features section adds: list, search, provides, and
// repolist. None of these mutate a cache or a solver pool; they all run
// over the package metadata pkg/metadata.Fetched already parsed and the
// installed set a resolver.Pool already knows.
//
// Grounded on the original implementation's client/search.c (multi-term
// name+summary matching, QueryTermsInNameSummary) and client/provides.c
// (capability-reldep match falling back to a file-path glob match), with
// the hawkey query-object indirection those files drive replaced by
// plain slice filters over the already-loaded package set — this
// module's Pool has no query-object layer to reuse.
package query

import (
	"sort"
	"strings"

	"github.com/tdnf-go/tdnfcore/internal/rpmver"
	"github.com/tdnf-go/tdnfcore/pkg/metadata"
	"github.com/tdnf-go/tdnfcore/pkg/repo"
	"github.com/tdnf-go/tdnfcore/pkg/resolver"
)

// ListScope names which subset of the available/installed set Listing
// should return.
type ListScope int

const (
	ListAll ListScope = iota
	ListInstalled
	ListAvailable
	ListUpdates
	ListExtras
	ListObsoletes
)

// Info is one row of query output: enough to print and enough to
// disambiguate by repo.
type Info struct {
	NEVRA   rpmver.NEVRA
	RepoID  string
	Summary string
}

// List filters the combined installed+available solvable set per scope,
// spec list semantics: "installed" and "available" are disjoint views
// of the same name space, "updates" is the subset of installed names
// with a strictly higher available EVR, "extras" is installed names
// absent from every configured repo, "obsoletes" is installed names any
// available candidate's Obsoletes lists name.
func List(pool resolver.Pool, available []resolver.Solvable, scope ListScope) []Info {
	installed := pool.Installed()
	installedByName := make(map[string]resolver.Solvable, len(installed))
	for _, s := range installed {
		installedByName[s.NEVRA.Name] = s
	}
	availableByName := make(map[string][]resolver.Solvable)
	for _, s := range available {
		availableByName[s.NEVRA.Name] = append(availableByName[s.NEVRA.Name], s)
	}

	var out []Info
	switch scope {
	case ListInstalled:
		for _, s := range installed {
			out = append(out, Info{NEVRA: s.NEVRA, RepoID: repo.SystemID})
		}
	case ListAvailable:
		for _, s := range available {
			out = append(out, Info{NEVRA: s.NEVRA, RepoID: s.RepoID})
		}
	case ListUpdates:
		for name, inst := range installedByName {
			for _, cand := range availableByName[name] {
				if rpmver.Compare(cand.NEVRA, inst.NEVRA) > 0 {
					out = append(out, Info{NEVRA: cand.NEVRA, RepoID: cand.RepoID})
				}
			}
		}
	case ListExtras:
		for name, inst := range installedByName {
			if _, ok := availableByName[name]; !ok {
				out = append(out, Info{NEVRA: inst.NEVRA, RepoID: repo.SystemID})
			}
		}
	case ListObsoletes:
		for _, cand := range available {
			for _, obsoletedName := range cand.Obsoletes {
				if inst, ok := installedByName[resolver.CapabilityName(obsoletedName)]; ok {
					out = append(out, Info{NEVRA: inst.NEVRA, RepoID: repo.SystemID})
				}
			}
		}
	default: // ListAll
		for _, s := range installed {
			out = append(out, Info{NEVRA: s.NEVRA, RepoID: repo.SystemID})
		}
		for _, s := range available {
			if _, ok := installedByName[s.NEVRA.Name]; !ok {
				out = append(out, Info{NEVRA: s.NEVRA, RepoID: s.RepoID})
			}
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].NEVRA.Name < out[j].NEVRA.Name })
	return out
}

// Search returns every package entry whose name or summary contains any
// of terms (case-insensitive), spec-grounded on QueryTermsInNameSummary.
func Search(entries []metadata.PackageEntry, terms []string) []metadata.PackageEntry {
	var out []metadata.PackageEntry
	for _, e := range entries {
		haystack := strings.ToLower(e.NEVRA.Name + " " + e.Summary)
		for _, term := range terms {
			if strings.Contains(haystack, strings.ToLower(term)) {
				out = append(out, e)
				break
			}
		}
	}
	return out
}

// Provides returns every available solvable whose Provides list matches
// spec (an exact capability name) or, when spec contains no capability
// syntax and looks like an absolute path, whose payload would own that
// file — grounded on client/provides.c's fallback from a reldep filter
// to a HY_PKG_FILE glob filter when the spec isn't a valid reldep.
//
// This package has no parsed filelists to check path ownership against;
// callers that need file-to-package resolution pass fileOwners (built
// from pkg/metadata.FileEntry by the caller) and it is consulted only
// when spec looks like a path.
func Provides(available []resolver.Solvable, spec string, fileOwners map[string][]string) []resolver.Solvable {
	name := resolver.CapabilityName(spec)
	var out []resolver.Solvable
	for _, s := range available {
		for _, p := range s.Provides {
			if p == spec || (name != "" && resolver.CapabilityName(p) == name) {
				out = append(out, s)
				break
			}
		}
	}
	if len(out) > 0 || !strings.HasPrefix(spec, "/") {
		return out
	}
	owners := fileOwners[spec]
	if len(owners) == 0 {
		return nil
	}
	ownerSet := make(map[string]bool, len(owners))
	for _, o := range owners {
		ownerSet[o] = true
	}
	for _, s := range available {
		if ownerSet[s.NEVRA.Name] {
			out = append(out, s)
		}
	}
	return out
}

// RepoRow is one repolist output line, spec §4.2's "Public surface"
// repolist view.
type RepoRow struct {
	ID      string
	Name    string
	Enabled bool
}

// RepoScope narrows Repolist's output the way the "all"/"enabled"/
// "disabled" CLI argument does.
type RepoScope int

const (
	RepoScopeEnabled RepoScope = iota
	RepoScopeDisabled
	RepoScopeAll
)

// Repolist lists registry's repos, except the @cmdline and @system repos,
// in priority order, filtered by scope.
func Repolist(registry *repo.Registry, scope RepoScope) []RepoRow {
	var out []RepoRow
	repos := registry.All()
	sort.SliceStable(repos, func(i, j int) bool { return repos[i].Priority < repos[j].Priority })
	for _, d := range repos {
		if d.ID == repo.CmdlineID || d.ID == repo.SystemID {
			continue
		}
		switch scope {
		case RepoScopeEnabled:
			if !d.Enabled {
				continue
			}
		case RepoScopeDisabled:
			if d.Enabled {
				continue
			}
		}
		out = append(out, RepoRow{ID: d.ID, Name: d.Name, Enabled: d.Enabled})
	}
	return out
}
