// Executor drives one resolved plan end to end: download, verify,
// two-phase transaction, history bookkeeping, spec §4.6.
package txn

import (
	"context"
	"fmt"
	"io"
	"log"
	"os"

	"github.com/google/uuid"

	"github.com/tdnf-go/tdnfcore/internal/rpmver"
	"github.com/tdnf-go/tdnfcore/pkg/acquire"
	"github.com/tdnf-go/tdnfcore/pkg/resolver"
)

// HistoryRecorder is the subset of pkg/history.Store the executor needs,
// spec §4.6 "History update": "before, history_sync(ts) ...; after,
// history_update_state(ts, cmdline) ...".
type HistoryRecorder interface {
	Sync(ctx context.Context, actualCookie string, actualInstalled []rpmver.NEVRA, timestamp int64) error
	RecordDelta(ctx context.Context, cmdline, cookie string, timestamp int64, preState, postState []rpmver.NEVRA) (int64, error)
	SetAutoFlag(ctx context.Context, transID int64, name string, autoInstalled bool) error
}

// DownloadedPackage is one plan entry with its resolved local path,
// tracked by the executor for the duration of a run, spec §3
// "Ownership": "Downloaded rpm paths are owned by the transaction
// executor for the duration of a run and released (deleted unless
// keepcache) at executor teardown."
type DownloadedPackage struct {
	Solvable resolver.Solvable
	Path     string
	Upgrade  bool
}

// Executor is the Transaction Executor of spec §4.6.
type Executor struct {
	Client      *acquire.Client
	Transactor  Transactor
	History     HistoryRecorder
	Keyrings    map[string]*acquire.Keyring // repo id -> imported keys
	KeepCache   bool
	FDLimitCap  uint64
	InstallRoot string
	Logger      *log.Logger

	downloaded []DownloadedPackage
}

// RunOptions carries the per-invocation settings spec §4.6 needs beyond
// the plan itself.
type RunOptions struct {
	Cmdline      string
	VerifyFlags  VerifyFlags
	NoGPGCheck   bool
	CookieBefore string
	CookieAfter  string
	Timestamp    int64
	Username     string
	Password     string
	BaseURLs     func(repoID string) []string
	DestDir      func(repoID string) string // e.g. cacheutil.Layout.RPMsDir()
}

func (e *Executor) logger() *log.Logger {
	if e.Logger != nil {
		return e.Logger
	}
	return log.New(io.Discard, "", 0)
}

// Run downloads every install/upgrade/downgrade/reinstall entry in plan,
// verifies it, then drives the test and real transaction, spec §4.6
// "Two-phase execution", wrapped with the history update of the same
// section.
func (e *Executor) Run(ctx context.Context, plan *resolver.Plan, preState []rpmver.NEVRA, opts RunOptions) error {
	runID := uuid.New().String()
	e.logger().Printf("txn: starting run %s (cmdline=%q)", runID, opts.Cmdline)

	if e.History != nil {
		if err := e.History.Sync(ctx, opts.CookieBefore, preState, opts.Timestamp); err != nil {
			return fmt.Errorf("txn: history sync: %w", err)
		}
	}

	if err := e.downloadAndVerify(ctx, plan, opts); err != nil {
		return err
	}
	defer e.cleanup()

	if err := e.raiseFDLimit(); err != nil {
		e.logger().Printf("txn: warning: could not raise fd limit: %v", err)
	}

	e.Transactor.SetFlags(opts.VerifyFlags)
	e.Transactor.SetFilterOldPackage(true) // spec §4.6: always applied so downgrades succeed
	e.Transactor.SetFilterReplacePackage(len(plan.ToReinstall) > 0)

	for _, dl := range e.downloaded {
		if err := e.Transactor.AddInstall(dl.Path, dl.Upgrade); err != nil {
			return fmt.Errorf("txn: stage %s: %w", dl.Solvable.NEVRA, err)
		}
	}
	for _, s := range plan.ToRemove {
		if err := e.Transactor.AddErase(s.NEVRA); err != nil {
			return fmt.Errorf("txn: stage erase %s: %w", s.NEVRA, err)
		}
	}
	for _, s := range plan.Unneeded {
		if err := e.Transactor.AddErase(s.NEVRA); err != nil {
			return fmt.Errorf("txn: stage erase %s: %w", s.NEVRA, err)
		}
	}

	progress := func(ev Event) { e.logger().Printf("txn: %s", formatEvent(ev)) }

	if err := e.Transactor.Run(true, progress); err != nil {
		return fmt.Errorf("txn: test transaction: %w", err)
	}
	if err := e.Transactor.Run(false, progress); err != nil {
		return fmt.Errorf("txn: transaction: %w", err)
	}

	if e.History != nil {
		postState := ComputePostState(preState, plan)
		transID, err := e.History.RecordDelta(ctx, opts.Cmdline, opts.CookieAfter, opts.Timestamp, preState, postState)
		if err != nil {
			return fmt.Errorf("txn: history record: %w", err)
		}
		if err := e.setAutoFlags(ctx, transID, plan); err != nil {
			return fmt.Errorf("txn: history auto-flags: %w", err)
		}
	}

	if !e.KeepCache {
		for _, dl := range e.downloaded {
			os.Remove(dl.Path)
		}
	}
	return nil
}

// setAutoFlags implements spec §4.6 "Auto-installed flags": "for every
// NEVRA in to_install that is not in user_installed, flag=1; for names
// explicitly requested by the user but that turn out to be already
// installed, flag=0."
func (e *Executor) setAutoFlags(ctx context.Context, transID int64, plan *resolver.Plan) error {
	userInstalled := make(map[string]bool, len(plan.UserInstalled))
	for _, n := range plan.UserInstalled {
		userInstalled[n] = true
	}
	for _, s := range plan.ToInstall {
		if err := e.History.SetAutoFlag(ctx, transID, s.NEVRA.Name, !userInstalled[s.NEVRA.Name]); err != nil {
			return err
		}
	}
	for name := range userInstalled {
		if err := e.History.SetAutoFlag(ctx, transID, name, false); err != nil {
			return err
		}
	}
	return nil
}

// ComputePostState projects the installed-set identity plan would produce
// if applied to preState, without querying rpmdb. Callers use this to
// derive RunOptions.CookieAfter before the transaction runs, and Run uses
// it again afterward to pass postState to History.RecordDelta.
func ComputePostState(preState []rpmver.NEVRA, plan *resolver.Plan) []rpmver.NEVRA {
	set := make(map[string]rpmver.NEVRA, len(preState))
	for _, n := range preState {
		set[n.Name] = n
	}
	apply := func(list []resolver.Solvable) {
		for _, s := range list {
			set[s.NEVRA.Name] = s.NEVRA
		}
	}
	apply(plan.ToInstall)
	apply(plan.ToUpgrade)
	apply(plan.ToDowngrade)
	apply(plan.ToReinstall)
	for _, s := range plan.ToRemove {
		delete(set, s.NEVRA.Name)
	}
	for _, s := range plan.Unneeded {
		delete(set, s.NEVRA.Name)
	}
	out := make([]rpmver.NEVRA, 0, len(set))
	for _, n := range set {
		out = append(out, n)
	}
	return out
}

func (e *Executor) cleanup() {
	// downloaded files are removed by Run's own success path; on an
	// error return the caller decides whether to keep them for retry,
	// so teardown here only releases in-memory bookkeeping.
	e.downloaded = nil
}

func formatEvent(ev Event) string {
	switch ev.Phase {
	case PhaseInstallProgress:
		return fmt.Sprintf("%s %d/%d bytes", ev.NEVRA, ev.Amount, ev.Total)
	case PhaseScriptError:
		return fmt.Sprintf("%s: script error: %s", ev.NEVRA, ev.Message)
	case PhaseScriptWarning:
		return fmt.Sprintf("%s: script warning: %s", ev.NEVRA, ev.Message)
	default:
		return fmt.Sprintf("%s: %s", ev.NEVRA, ev.Message)
	}
}

func destPathFor(destDir func(string) string, s resolver.Solvable) (string, error) {
	if destDir == nil {
		return "", fmt.Errorf("txn: no destination directory configured for repo %s", s.RepoID)
	}
	dir := destDir(s.RepoID)
	return acquire.RPMsDestPath(dir, s.Location)
}
