// Driver translates user intents into jobs and drives a Pool through
// them, spec §4.5 "Job construction" and "Global modifiers applied to
// every solve".
package resolver

import (
	"fmt"
	"io"
	"log"

	"github.com/tdnf-go/tdnfcore/internal/config"
	"github.com/tdnf-go/tdnfcore/internal/rpmver"
)

// IntentKind names one of the user-facing request shapes spec §4.5's
// job table maps from.
type IntentKind int

const (
	IntentInstall IntentKind = iota
	IntentInstallRPM
	IntentUpgrade
	IntentUpgradeAll
	IntentDowngrade
	IntentErase
	IntentReinstall
	IntentDistroSync
	IntentCheck
	IntentHistoryReplay
)

// Intent is one resolve request before job construction.
type Intent struct {
	Kind IntentKind
	// Names is the set of package names the intent applies to (install,
	// upgrade, downgrade, erase, reinstall).
	Names []string
	// CmdlineRPMs holds NEVRAs already added to the @cmdline repo for
	// IntentInstallRPM, spec §4.5 "The RPM is added to the @cmdline
	// repo; emit 'install by solvable id'."
	CmdlineRPMs []rpmver.NEVRA
	// HistoryAdd/HistoryRemove carry a history delta's NEVRAs for
	// IntentHistoryReplay, spec §4.5 "from the computed history delta,
	// emit install jobs ... and erase jobs".
	HistoryAdd    []rpmver.NEVRA
	HistoryRemove []rpmver.NEVRA
	AllowUninstall bool
	CleanDeps      bool
}

// Config holds the global modifiers spec §4.5 applies to every solve.
type Config struct {
	Excludes                  []string
	Locks                     []string // names, filtered to currently-installed ones at BuildJobs time
	MinVersions               []config.MinVersionPin
	Best                      bool
	AllowErasing              bool
	CleanRequirementsOnRemove bool
	AllowVendorChange         bool
	KeepOrphans               bool
	YumObsoletes              bool
	AllowDowngrade            bool
}

// Driver is the Resolver Driver of spec §4.5.
type Driver struct {
	pool   Pool
	cfg    Config
	logger *log.Logger
}

// New builds a Driver bound to pool, applying cfg's excludes/locks/
// minversions once up front (spec §4.5 "Global modifiers").
func New(pool Pool, cfg Config, logger *log.Logger) *Driver {
	if logger == nil {
		logger = log.New(io.Discard, "", 0)
	}
	d := &Driver{pool: pool, cfg: cfg, logger: logger}
	for _, pat := range cfg.Excludes {
		pool.Exclude(pat)
	}
	for _, pin := range cfg.MinVersions {
		pool.MinVersion(pin.Name, pin.EVR)
	}
	for _, name := range cfg.Locks {
		if _, ok := pool.InstalledByName(name); ok {
			pool.Lock(name)
		}
	}
	return d
}

// BuildJobs translates one Intent into jobs, spec §4.5's table.
func (d *Driver) BuildJobs(intent Intent) ([]Job, error) {
	switch intent.Kind {
	case IntentInstall:
		if len(intent.Names) == 0 {
			return nil, fmt.Errorf("resolver: package required")
		}
		var jobs []Job
		for _, name := range filterExcluded(intent.Names, d.cfg.Excludes) {
			jobs = append(jobs, Job{Action: JobInstallByName, Name: name})
		}
		return jobs, nil

	case IntentInstallRPM:
		var jobs []Job
		for _, n := range intent.CmdlineRPMs {
			jobs = append(jobs, Job{Action: JobInstallSolvable, Solvable: n, RepoID: "@cmdline"})
		}
		return jobs, nil

	case IntentUpgrade:
		var jobs []Job
		for _, name := range intent.Names {
			jobs = append(jobs, Job{Action: JobUpgradeByName, Name: name})
		}
		return jobs, nil

	case IntentUpgradeAll:
		return []Job{{Action: JobUpgradeAll}}, nil

	case IntentDowngrade:
		if len(intent.Names) == 0 {
			return nil, fmt.Errorf("resolver: package required")
		}
		var jobs []Job
		for _, name := range intent.Names {
			jobs = append(jobs, Job{Action: JobDowngradeByName, Name: name})
		}
		return jobs, nil

	case IntentErase:
		if len(intent.Names) == 0 {
			return nil, fmt.Errorf("resolver: package required")
		}
		var jobs []Job
		for _, name := range intent.Names {
			jobs = append(jobs, Job{
				Action:         JobEraseByName,
				Name:           name,
				AllowUninstall: true,
				CleanDeps:      intent.CleanDeps || d.cfg.CleanRequirementsOnRemove,
			})
		}
		return jobs, nil

	case IntentReinstall:
		if len(intent.Names) == 0 {
			return nil, fmt.Errorf("resolver: package required")
		}
		var jobs []Job
		for _, name := range intent.Names {
			jobs = append(jobs, Job{Action: JobReinstallByName, Name: name})
		}
		return jobs, nil

	case IntentDistroSync:
		return []Job{{Action: JobDistroSync}}, nil

	case IntentCheck:
		// spec §4.5: "install job for every available package, with
		// --assumeno to force exit before execution" — this only
		// resolves the hypothetical transaction; the CLI layer is
		// responsible for treating --assumeno as an unconditional "no"
		// to the confirmation prompt so nothing here ever executes.
		var jobs []Job
		for _, name := range d.pool.AvailableNames() {
			jobs = append(jobs, Job{Action: JobInstallByName, Name: name})
		}
		return jobs, nil

	case IntentHistoryReplay:
		var jobs []Job
		for _, n := range intent.HistoryAdd {
			jobs = append(jobs, Job{Action: JobInstallSolvable, Solvable: n})
		}
		for _, n := range intent.HistoryRemove {
			jobs = append(jobs, Job{Action: JobEraseByName, Name: n.Name, AllowUninstall: true})
		}
		return jobs, nil

	default:
		return nil, fmt.Errorf("resolver: unknown intent kind %d", intent.Kind)
	}
}

// Resolve runs jobs through the pool, filters the problem list through
// mask, and validates the resulting plan, spec §4.5 "Problem reporting"
// and §8 invariant 1.
func (d *Driver) Resolve(jobs []Job, mask SkipMask, notUserInstalled func(string) bool) (*Plan, []Problem, error) {
	opts := SolveOptions{
		Best:                      d.cfg.Best,
		AllowUninstall:            d.cfg.AllowErasing,
		AllowDowngrade:            d.cfg.AllowDowngrade,
		CleanDeps:                 d.cfg.CleanRequirementsOnRemove,
		KeepOrphans:               d.cfg.KeepOrphans,
		AllowVendorChange:         d.cfg.AllowVendorChange,
		YumObsoletes:              d.cfg.YumObsoletes,
		CleanRequirementsOnRemove: d.cfg.CleanRequirementsOnRemove,
		NotUserInstalled:          notUserInstalled,
	}
	for _, j := range jobs {
		if j.AllowUninstall {
			opts.AllowUninstall = true
		}
	}

	plan, problems, err := d.pool.Solve(jobs, opts)
	if err != nil {
		return nil, nil, err
	}

	var blocking []Problem
	var informational []Problem
	for _, p := range problems {
		if mask.Masks(p) {
			informational = append(informational, p)
		} else {
			blocking = append(blocking, p)
		}
	}
	if len(blocking) > 0 {
		return nil, informational, &ResolveError{Problems: blocking}
	}
	if err := plan.Validate(); err != nil {
		return nil, informational, err
	}
	return plan, informational, nil
}

func filterExcluded(names, excludes []string) []string {
	if len(excludes) == 0 {
		return names
	}
	out := make([]string, 0, len(names))
	for _, n := range names {
		excluded := false
		for _, pat := range excludes {
			if ok, _ := matchGlob(pat, n); ok {
				excluded = true
				break
			}
		}
		if !excluded {
			out = append(out, n)
		}
	}
	return out
}
