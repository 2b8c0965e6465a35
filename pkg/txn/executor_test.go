package txn

import (
	"context"
	"testing"

	"github.com/tdnf-go/tdnfcore/internal/rpmver"
	"github.com/tdnf-go/tdnfcore/pkg/resolver"
)

// fakeTransactor records staged work without touching go-rpmutils, so
// the executor's orchestration can be tested without a real .rpm file.
type fakeTransactor struct {
	flags            VerifyFlags
	filterOld        bool
	filterReplace    bool
	installedPaths   []string
	erased           []rpmver.NEVRA
	testRuns         int
	realRuns         int
}

func (f *fakeTransactor) AddInstall(pkgPath string, upgrade bool) error {
	f.installedPaths = append(f.installedPaths, pkgPath)
	return nil
}
func (f *fakeTransactor) AddErase(nevra rpmver.NEVRA) error {
	f.erased = append(f.erased, nevra)
	return nil
}
func (f *fakeTransactor) SetFlags(flags VerifyFlags)     { f.flags = flags }
func (f *fakeTransactor) SetFilterOldPackage(allow bool) { f.filterOld = allow }
func (f *fakeTransactor) SetFilterReplacePackage(allow bool) { f.filterReplace = allow }
func (f *fakeTransactor) Run(test bool, progress ProgressFunc) error {
	if test {
		f.testRuns++
	} else {
		f.realRuns++
	}
	progress(Event{Phase: PhaseInstallStart})
	return nil
}

// fakeHistory records what the executor reports without a real database.
type fakeHistory struct {
	synced       bool
	recordedPre  []rpmver.NEVRA
	recordedPost []rpmver.NEVRA
	autoFlags    map[string]bool
}

func newFakeHistory() *fakeHistory { return &fakeHistory{autoFlags: map[string]bool{}} }

func (h *fakeHistory) Sync(ctx context.Context, cookie string, installed []rpmver.NEVRA, ts int64) error {
	h.synced = true
	return nil
}
func (h *fakeHistory) RecordDelta(ctx context.Context, cmdline, cookie string, ts int64, pre, post []rpmver.NEVRA) (int64, error) {
	h.recordedPre = pre
	h.recordedPost = post
	return 1, nil
}
func (h *fakeHistory) SetAutoFlag(ctx context.Context, transID int64, name string, auto bool) error {
	h.autoFlags[name] = auto
	return nil
}

func TestExecutorRunInstallWithCmdlinePackage(t *testing.T) {
	foo := mustNEVRAExec(t, "foo-1.0-1.x86_64")
	plan := &resolver.Plan{
		ToInstall:     []resolver.Solvable{{NEVRA: foo, RepoID: "@cmdline", Location: "/tmp/foo-1.0-1.x86_64.rpm"}},
		UserInstalled: []string{"foo"},
	}

	transactor := &fakeTransactor{}
	hist := newFakeHistory()
	e := &Executor{Transactor: transactor, History: hist}

	opts := RunOptions{Cmdline: "install foo", VerifyFlags: VerifyFlags{CheckDigest: true, CheckSignature: true}}
	if err := e.Run(context.Background(), plan, nil, opts); err != nil {
		t.Fatalf("Run: %v", err)
	}

	if !hist.synced {
		t.Error("expected history.Sync to be called")
	}
	if len(transactor.installedPaths) != 1 || transactor.installedPaths[0] != "/tmp/foo-1.0-1.x86_64.rpm" {
		t.Fatalf("installedPaths = %v", transactor.installedPaths)
	}
	if transactor.testRuns != 1 || transactor.realRuns != 1 {
		t.Fatalf("testRuns=%d realRuns=%d, want 1 and 1", transactor.testRuns, transactor.realRuns)
	}
	if auto, ok := hist.autoFlags["foo"]; !ok || auto {
		t.Errorf("autoFlags[foo] = %v, want false (user requested)", auto)
	}
	if len(hist.recordedPost) != 1 || hist.recordedPost[0].Name != "foo" {
		t.Fatalf("recordedPost = %v", hist.recordedPost)
	}
}

func TestExecutorRunAutoInstalledDependency(t *testing.T) {
	foo := mustNEVRAExec(t, "foo-1.0-1.x86_64")
	bar := mustNEVRAExec(t, "bar-2.0-1.x86_64")
	plan := &resolver.Plan{
		ToInstall: []resolver.Solvable{
			{NEVRA: foo, RepoID: "@cmdline", Location: "/tmp/foo.rpm"},
			{NEVRA: bar, RepoID: "@cmdline", Location: "/tmp/bar.rpm"},
		},
		UserInstalled: []string{"foo"},
	}

	transactor := &fakeTransactor{}
	hist := newFakeHistory()
	e := &Executor{Transactor: transactor, History: hist}

	if err := e.Run(context.Background(), plan, nil, RunOptions{Cmdline: "install foo"}); err != nil {
		t.Fatalf("Run: %v", err)
	}
	if auto, ok := hist.autoFlags["bar"]; !ok || !auto {
		t.Errorf("autoFlags[bar] = %v, want true (pulled in as a dependency)", auto)
	}
	if auto, ok := hist.autoFlags["foo"]; !ok || auto {
		t.Errorf("autoFlags[foo] = %v, want false", auto)
	}
}

func TestToVerifyFlags(t *testing.T) {
	if f := ToVerifyFlags(true, false, false); f.CheckDigest || f.CheckSignature {
		t.Errorf("nogpgcheck should clear all bits, got %+v", f)
	}
	if f := ToVerifyFlags(false, true, false); f.CheckSignature {
		t.Errorf("skipsignature should clear signature bit, got %+v", f)
	}
	if f := ToVerifyFlags(false, false, true); f.CheckDigest {
		t.Errorf("skipdigest should clear digest bit, got %+v", f)
	}
	if f := ToVerifyFlags(false, false, false); !f.CheckDigest || !f.CheckSignature {
		t.Errorf("default should check both, got %+v", f)
	}
}

func mustNEVRAExec(t *testing.T, s string) rpmver.NEVRA {
	t.Helper()
	n, err := rpmver.ParseNEVRA(s)
	if err != nil {
		t.Fatalf("ParseNEVRA(%q): %v", s, err)
	}
	return n
}
