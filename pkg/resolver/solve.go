// Solve interprets a job list against a MemPool, spec §4.5's per-intent
// job table turned into plan mutations.
package resolver

import (
	"fmt"

	"github.com/tdnf-go/tdnfcore/internal/rpmver"
)

func (p *MemPool) Solve(jobs []Job, opts SolveOptions) (*Plan, []Problem, error) {
	plan := &Plan{}
	var problems []Problem
	visited := make(map[string]bool) // guards recursive Requires resolution

	addInstall := func(s Solvable, userRequested bool) {
		plan.ToInstall = append(plan.ToInstall, s)
		if userRequested {
			plan.UserInstalled = append(plan.UserInstalled, s.NEVRA.Name)
		}
	}

	var resolveRequires func(s Solvable)
	resolveRequires = func(s Solvable) {
		for _, req := range s.Requires {
			name := CapabilityName(req)
			if name == "" || visited[name] {
				continue
			}
			visited[name] = true
			if _, ok := p.InstalledByName(name); ok {
				continue
			}
			if isInstalling(plan, name) {
				continue
			}
			cands := p.Candidates(name)
			if len(cands) == 0 {
				continue // best-effort: virtual/file/soname deps without an exact pool match are left to the consumed solver
			}
			addInstall(cands[0], false)
			resolveRequires(cands[0])
		}
	}

	for _, job := range jobs {
		switch job.Action {
		case JobInstallByName:
			if p.isLocked(job.Name) {
				continue
			}
			if installed, ok := p.InstalledByName(job.Name); ok {
				cands := p.Candidates(job.Name)
				if len(cands) == 0 || rpmver.Compare(cands[0].NEVRA, installed.NEVRA) <= 0 {
					continue // already installed at this version or better
				}
				plan.ToUpgrade = append(plan.ToUpgrade, cands[0])
				plan.UserInstalled = append(plan.UserInstalled, job.Name)
				resolveRequires(cands[0])
				continue
			}
			cands := p.Candidates(job.Name)
			if len(cands) == 0 {
				plan.NotResolved = append(plan.NotResolved, job.Name)
				continue
			}
			addInstall(cands[0], true)
			resolveRequires(cands[0])

		case JobInstallSolvable:
			addInstall(Solvable{NEVRA: job.Solvable, RepoID: job.RepoID}, true)

		case JobUpgradeByName:
			installed, ok := p.InstalledByName(job.Name)
			if !ok {
				plan.NotResolved = append(plan.NotResolved, job.Name)
				continue
			}
			cands := p.Candidates(job.Name)
			if len(cands) > 0 && rpmver.Compare(cands[0].NEVRA, installed.NEVRA) > 0 {
				plan.ToUpgrade = append(plan.ToUpgrade, cands[0])
				resolveRequires(cands[0])
			}

		case JobUpgradeAll:
			for _, installed := range p.Installed() {
				cands := p.Candidates(installed.NEVRA.Name)
				if len(cands) > 0 && rpmver.Compare(cands[0].NEVRA, installed.NEVRA) > 0 {
					plan.ToUpgrade = append(plan.ToUpgrade, cands[0])
					resolveRequires(cands[0])
				}
			}

		case JobDowngradeByName:
			installed, ok := p.InstalledByName(job.Name)
			if !ok {
				plan.NotResolved = append(plan.NotResolved, job.Name)
				continue
			}
			var best *Solvable
			for _, c := range p.Candidates(job.Name) {
				if rpmver.Compare(c.NEVRA, installed.NEVRA) < 0 {
					cand := c
					best = &cand
					break
				}
			}
			if best == nil {
				problems = append(problems, Problem{Type: ProblemBroken, Message: fmt.Sprintf("no downgrade path for %s", job.Name)})
				continue
			}
			plan.ToDowngrade = append(plan.ToDowngrade, *best)
			plan.RemovedByDowngrade = append(plan.RemovedByDowngrade, installed)

		case JobEraseByName:
			installed, ok := p.InstalledByName(job.Name)
			if !ok {
				plan.NotResolved = append(plan.NotResolved, job.Name)
				continue
			}
			plan.ToRemove = append(plan.ToRemove, installed)
			if (opts.CleanRequirementsOnRemove || job.CleanDeps) && opts.NotUserInstalled != nil {
				plan.Unneeded = append(plan.Unneeded, p.orphanCandidates(job.Name, opts)...)
			}

		case JobReinstallByName:
			installed, ok := p.InstalledByName(job.Name)
			if !ok {
				plan.NotResolved = append(plan.NotResolved, job.Name)
				continue
			}
			found := false
			for _, c := range p.byName[job.Name] {
				if c.NEVRA == installed.NEVRA {
					plan.ToReinstall = append(plan.ToReinstall, c)
					found = true
					break
				}
			}
			if !found {
				problems = append(problems, Problem{Type: ProblemBroken, Message: fmt.Sprintf("%s not available to reinstall", job.Name)})
			}

		case JobDistroSync:
			for _, installed := range p.Installed() {
				cands := p.Candidates(installed.NEVRA.Name)
				if len(cands) == 0 {
					continue
				}
				switch c := rpmver.Compare(cands[0].NEVRA, installed.NEVRA); {
				case c > 0:
					plan.ToUpgrade = append(plan.ToUpgrade, cands[0])
				case c < 0 && opts.AllowDowngrade:
					plan.ToDowngrade = append(plan.ToDowngrade, cands[0])
					plan.RemovedByDowngrade = append(plan.RemovedByDowngrade, installed)
				}
			}

		case JobLock:
			p.Lock(job.Name)
		}
	}

	return plan, problems, nil
}

// orphanCandidates returns every installed package other than
// removedName that is not user-installed and that no installed package
// other than removedName requires, spec §4.5 "Orphan
// handling": "every name recorded in the history as not user-installed
// is added as an ... eligible to be removed hint."
func (p *MemPool) orphanCandidates(removedName string, opts SolveOptions) []Solvable {
	var out []Solvable
	for _, s := range p.Installed() {
		if s.NEVRA.Name == removedName {
			continue
		}
		if opts.NotUserInstalled == nil || !opts.NotUserInstalled(s.NEVRA.Name) {
			continue
		}
		if stillNeeded(p, s.NEVRA.Name, removedName) {
			continue
		}
		out = append(out, s)
	}
	return out
}

// stillNeeded reports whether some other installed package (other than
// excludeName) still Requires name.
func stillNeeded(p *MemPool, name, excludeName string) bool {
	for _, other := range p.Installed() {
		if other.NEVRA.Name == name || other.NEVRA.Name == excludeName {
			continue
		}
		for _, req := range other.Requires {
			if CapabilityName(req) == name {
				return true
			}
		}
	}
	return false
}

func isInstalling(plan *Plan, name string) bool {
	for _, s := range plan.ToInstall {
		if s.NEVRA.Name == name {
			return true
		}
	}
	return false
}
