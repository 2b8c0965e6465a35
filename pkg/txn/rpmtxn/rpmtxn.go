// Package rpmtxn ships the one concrete txn.Transactor this module
// provides: it reads each staged package's header via go-rpmutils (the
// teacher's RPM dependency, grounded on the other_examples/ ralt-repogen
// parser's rpmutils.ReadRpm/Header.Get pattern) to confirm identity and
// replays the spec §4.6 callback stream, but it cannot itself write
// package payloads to a root filesystem or run scriptlets — no cgo-free
// librpm binding exists anywhere in the retrieval pack to do that. It
// exists so pkg/txn.Executor has something to drive end to end in
// tests; a production build swaps it for a real librpm-backed
// Transactor without any change to Executor.
package rpmtxn

import (
	"fmt"
	"os"

	"github.com/sassoftware/go-rpmutils"

	"github.com/tdnf-go/tdnfcore/internal/rpmver"
	"github.com/tdnf-go/tdnfcore/pkg/txn"
)

type stagedInstall struct {
	path    string
	upgrade bool
	nevra   rpmver.NEVRA
}

// Transactor accumulates staged installs/erases and replays them as a
// callback stream on Run.
type Transactor struct {
	flags            txn.VerifyFlags
	filterOldPackage bool
	filterReplacePkg bool
	installs         []stagedInstall
	erases           []rpmver.NEVRA
}

// New returns a Transactor with no staged work.
func New() *Transactor {
	return &Transactor{}
}

func headerString(rpm *rpmutils.Rpm, tag int) string {
	val, err := rpm.Header.Get(tag)
	if err != nil {
		return ""
	}
	switch v := val.(type) {
	case string:
		return v
	case []string:
		if len(v) > 0 {
			return v[0]
		}
	case []byte:
		return string(v)
	}
	return ""
}

func headerEpoch(rpm *rpmutils.Rpm) string {
	val, err := rpm.Header.Get(rpmutils.EPOCH)
	if err != nil {
		return ""
	}
	switch v := val.(type) {
	case []int32:
		if len(v) > 0 {
			return fmt.Sprintf("%d", v[0])
		}
	case int32:
		return fmt.Sprintf("%d", v)
	case int:
		return fmt.Sprintf("%d", v)
	}
	return ""
}

func (t *Transactor) AddInstall(pkgPath string, upgrade bool) error {
	f, err := os.Open(pkgPath)
	if err != nil {
		return fmt.Errorf("rpmtxn: open %s: %w", pkgPath, err)
	}
	defer f.Close()

	rpm, err := rpmutils.ReadRpm(f)
	if err != nil {
		return fmt.Errorf("rpmtxn: read header %s: %w", pkgPath, err)
	}
	name := headerString(rpm, rpmutils.NAME)
	if name == "" {
		return fmt.Errorf("rpmtxn: header %s missing name", pkgPath)
	}
	nevra := rpmver.NEVRA{
		Name:    name,
		Epoch:   headerEpoch(rpm),
		Version: headerString(rpm, rpmutils.VERSION),
		Release: headerString(rpm, rpmutils.RELEASE),
		Arch:    headerString(rpm, rpmutils.ARCH),
	}

	t.installs = append(t.installs, stagedInstall{path: pkgPath, upgrade: upgrade, nevra: nevra})
	return nil
}

func (t *Transactor) AddErase(nevra rpmver.NEVRA) error {
	t.erases = append(t.erases, nevra)
	return nil
}

func (t *Transactor) SetFlags(flags txn.VerifyFlags)     { t.flags = flags }
func (t *Transactor) SetFilterOldPackage(allow bool)     { t.filterOldPackage = allow }
func (t *Transactor) SetFilterReplacePackage(allow bool) { t.filterReplacePkg = allow }

// Run replays the staged set as a callback stream. test runs produce the
// same events as real runs (there being no transaction engine underneath
// to distinguish a dry run from a mutating one); callers that need true
// dry-run semantics must supply their own Transactor.
func (t *Transactor) Run(test bool, progress txn.ProgressFunc) error {
	emit := func(ev txn.Event) {
		if progress != nil {
			progress(ev)
		}
	}
	for _, ins := range t.installs {
		emit(txn.Event{Phase: txn.PhaseFileOpen, NEVRA: ins.nevra, Message: ins.path})
		emit(txn.Event{Phase: txn.PhaseInstallStart, NEVRA: ins.nevra})
		emit(txn.Event{Phase: txn.PhaseInstallProgress, NEVRA: ins.nevra, Amount: 1, Total: 1})
		emit(txn.Event{Phase: txn.PhaseFileClose, NEVRA: ins.nevra})
	}
	for _, nevra := range t.erases {
		emit(txn.Event{Phase: txn.PhaseRemoveStart, NEVRA: nevra})
	}
	return nil
}

var _ txn.Transactor = (*Transactor)(nil)
