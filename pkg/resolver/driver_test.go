package resolver

import (
	"testing"

	"github.com/tdnf-go/tdnfcore/internal/rpmver"
)

func mustNEVRA(t *testing.T, s string) rpmver.NEVRA {
	t.Helper()
	n, err := rpmver.ParseNEVRA(s)
	if err != nil {
		t.Fatalf("ParseNEVRA(%q): %v", s, err)
	}
	return n
}

// TestInstallSimple covers spec §8 concrete scenario 1: installing foo
// with nothing installed and a single repo candidate.
func TestInstallSimple(t *testing.T) {
	pool := NewMemPool(map[string]int{"r1": 10})
	pool.AddSolvable(Solvable{NEVRA: mustNEVRA(t, "foo-1.0-1.x86_64"), RepoID: "r1", DownloadSize: 100})

	d := New(pool, Config{}, nil)
	jobs, err := d.BuildJobs(Intent{Kind: IntentInstall, Names: []string{"foo"}})
	if err != nil {
		t.Fatalf("BuildJobs: %v", err)
	}
	plan, _, err := d.Resolve(jobs, SkipMask{}, nil)
	if err != nil {
		t.Fatalf("Resolve: %v", err)
	}
	if len(plan.ToInstall) != 1 || plan.ToInstall[0].NEVRA.Name != "foo" {
		t.Fatalf("ToInstall = %+v, want [foo]", plan.ToInstall)
	}
	if len(plan.UserInstalled) != 1 || plan.UserInstalled[0] != "foo" {
		t.Fatalf("UserInstalled = %v, want [foo]", plan.UserInstalled)
	}
	if !plan.NeedAction() {
		t.Error("NeedAction() = false, want true")
	}
}

// TestInstallWithDependency covers spec §8 concrete scenario 2: foo
// requires bar; installing foo must pull in bar as an auto-install.
func TestInstallWithDependency(t *testing.T) {
	pool := NewMemPool(map[string]int{"r1": 10})
	pool.AddSolvable(Solvable{
		NEVRA: mustNEVRA(t, "foo-1.0-1.x86_64"), RepoID: "r1",
		Requires: []string{"bar"},
	})
	pool.AddSolvable(Solvable{NEVRA: mustNEVRA(t, "bar-2.0-1.x86_64"), RepoID: "r1"})

	d := New(pool, Config{}, nil)
	jobs, _ := d.BuildJobs(Intent{Kind: IntentInstall, Names: []string{"foo"}})
	plan, _, err := d.Resolve(jobs, SkipMask{}, nil)
	if err != nil {
		t.Fatalf("Resolve: %v", err)
	}
	names := map[string]bool{}
	for _, s := range plan.ToInstall {
		names[s.NEVRA.Name] = true
	}
	if !names["foo"] || !names["bar"] {
		t.Fatalf("ToInstall = %+v, want foo and bar", plan.ToInstall)
	}
	if len(plan.UserInstalled) != 1 || plan.UserInstalled[0] != "foo" {
		t.Fatalf("UserInstalled = %v, want only [foo]", plan.UserInstalled)
	}
}

// TestEraseWithOrphan covers spec §8 concrete scenario 3: removing bar
// with clean_requirements_on_remove orphans foo if nothing else needs it.
func TestEraseWithOrphan(t *testing.T) {
	pool := NewMemPool(nil)
	pool.AddSolvable(Solvable{NEVRA: mustNEVRA(t, "foo-1.0-1.x86_64"), Installed: true})
	pool.AddSolvable(Solvable{NEVRA: mustNEVRA(t, "bar-2.0-1.x86_64"), Installed: true})

	d := New(pool, Config{CleanRequirementsOnRemove: true}, nil)
	jobs, err := d.BuildJobs(Intent{Kind: IntentErase, Names: []string{"bar"}})
	if err != nil {
		t.Fatalf("BuildJobs: %v", err)
	}
	notUserInstalled := func(name string) bool { return name == "foo" }
	plan, _, err := d.Resolve(jobs, SkipMask{}, notUserInstalled)
	if err != nil {
		t.Fatalf("Resolve: %v", err)
	}
	if len(plan.ToRemove) != 1 || plan.ToRemove[0].NEVRA.Name != "bar" {
		t.Fatalf("ToRemove = %+v, want [bar]", plan.ToRemove)
	}
	if len(plan.Unneeded) != 1 || plan.Unneeded[0].NEVRA.Name != "foo" {
		t.Fatalf("Unneeded = %+v, want [foo]", plan.Unneeded)
	}
}

// TestDowngrade picks the highest available EVR strictly less than
// installed, spec §4.5 table.
func TestDowngrade(t *testing.T) {
	pool := NewMemPool(map[string]int{"r1": 10})
	pool.AddSolvable(Solvable{NEVRA: mustNEVRA(t, "foo-3.0-1.x86_64"), Installed: true})
	pool.AddSolvable(Solvable{NEVRA: mustNEVRA(t, "foo-2.0-1.x86_64"), RepoID: "r1"})
	pool.AddSolvable(Solvable{NEVRA: mustNEVRA(t, "foo-1.0-1.x86_64"), RepoID: "r1"})

	d := New(pool, Config{}, nil)
	jobs, _ := d.BuildJobs(Intent{Kind: IntentDowngrade, Names: []string{"foo"}})
	plan, _, err := d.Resolve(jobs, SkipMask{}, nil)
	if err != nil {
		t.Fatalf("Resolve: %v", err)
	}
	if len(plan.ToDowngrade) != 1 || plan.ToDowngrade[0].NEVRA.Version != "2.0" {
		t.Fatalf("ToDowngrade = %+v, want foo-2.0", plan.ToDowngrade)
	}
}

// TestNoDowngradePath reports a broken-type problem when nothing older
// is available, spec §8 boundary behaviors.
func TestNoDowngradePath(t *testing.T) {
	pool := NewMemPool(map[string]int{"r1": 10})
	pool.AddSolvable(Solvable{NEVRA: mustNEVRA(t, "foo-1.0-1.x86_64"), Installed: true})

	d := New(pool, Config{}, nil)
	jobs, _ := d.BuildJobs(Intent{Kind: IntentDowngrade, Names: []string{"foo"}})
	_, _, err := d.Resolve(jobs, SkipMask{}, nil)
	if err == nil {
		t.Fatal("expected a resolve error for no downgrade path")
	}
}

// TestExcludeFiltersInstall covers spec §4.5 "Excludes": glob patterns
// filter job inputs before the solve.
func TestExcludeFiltersInstall(t *testing.T) {
	pool := NewMemPool(map[string]int{"r1": 10})
	pool.AddSolvable(Solvable{NEVRA: mustNEVRA(t, "foo-1.0-1.x86_64"), RepoID: "r1"})

	d := New(pool, Config{Excludes: []string{"foo*"}}, nil)
	jobs, _ := d.BuildJobs(Intent{Kind: IntentInstall, Names: []string{"foo"}})
	if len(jobs) != 0 {
		t.Fatalf("jobs = %v, want none (foo excluded)", jobs)
	}
}

// TestSkipObsoletesMasksOnlyThatType covers spec §8 concrete scenario 5.
func TestSkipObsoletesMasksOnlyThatType(t *testing.T) {
	mask := SkipMask{SkipObsoletes: true}
	if !mask.Masks(Problem{Type: ProblemObsoletes}) {
		t.Error("obsoletes problem should be masked")
	}
	if mask.Masks(Problem{Type: ProblemConflict}) {
		t.Error("conflict problem should not be masked by --skipobsoletes")
	}
}

func TestPlanValidateRejectsOverlap(t *testing.T) {
	foo := mustNEVRA(t, "foo-1.0-1.x86_64")
	p := &Plan{
		ToInstall: []Solvable{{NEVRA: foo}},
		ToRemove:  []Solvable{{NEVRA: foo}},
	}
	if err := p.Validate(); err == nil {
		t.Fatal("expected Validate to reject overlapping mutation lists")
	}
}

// TestBuildJobsCheckUsesAvailablePackages covers spec §4.5's table entry
// for the "check" intent: an install job per available package, not per
// installed package.
func TestBuildJobsCheckUsesAvailablePackages(t *testing.T) {
	pool := NewMemPool(map[string]int{"r1": 10})
	pool.AddSolvable(Solvable{NEVRA: mustNEVRA(t, "bar-2.0-1.x86_64"), Installed: true})
	pool.AddSolvable(Solvable{NEVRA: mustNEVRA(t, "foo-1.0-1.x86_64"), RepoID: "r1"})

	d := New(pool, Config{}, nil)
	jobs, err := d.BuildJobs(Intent{Kind: IntentCheck})
	if err != nil {
		t.Fatalf("BuildJobs: %v", err)
	}
	if len(jobs) != 1 || jobs[0].Action != JobInstallByName || jobs[0].Name != "foo" {
		t.Fatalf("jobs = %+v, want one JobInstallByName for foo", jobs)
	}
}

func TestCapabilityName(t *testing.T) {
	cases := map[string]string{
		"bar":              "bar",
		"bar >= 1.2.3":     "bar",
		"/usr/bin/bash":    "",
		"libfoo.so.1()(64bit)": "",
		"rpmlib(CompressedFileNames)": "",
	}
	for in, want := range cases {
		if got := CapabilityName(in); got != want {
			t.Errorf("CapabilityName(%q) = %q, want %q", in, got, want)
		}
	}
}
