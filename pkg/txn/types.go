// Package txn implements the Transaction Executor of spec §4.6:
// populating the RPM transaction set from a resolved plan, running the
// test-then-real two-phase transaction, propagating progress callbacks,
// and wrapping the run with the history-store sync/update hooks.
//
// The RPM transaction engine itself is named in spec §1 as an external
// collaborator ("the RPM transaction engine itself (consumed as a
// library)"); no cgo-free Go binding to librpm exists in the retrieval
// pack (github.com/sassoftware/go-rpmutils, the teacher's RPM dependency,
// only reads package headers and signatures — it does not drive
// transactions), so this package defines the consumed contract as the
// Transactor interface, grounded on spec §9's "Opaque handles with
// back-pointers" redesign note ("pass context explicitly through
// function boundaries rather than storing back-references"): the
// executor owns a Transactor and calls it directly instead of the
// original's rpmtsSetNotifyCallback indirection.
package txn

import (
	"github.com/tdnf-go/tdnfcore/internal/rpmver"
)

// VerifyFlags are the RPM verify-flags bits spec §4.6 "Signature policy
// flags" describes translating --nogpgcheck/--skipsignature/--skipdigest
// into.
type VerifyFlags struct {
	CheckDigest    bool
	CheckSignature bool
}

// ToVerifyFlags implements spec §4.6's translation: "--nogpgcheck clears
// all digest+signature bits; --skipsignature clears signature bits only;
// --skipdigest clears digest bits only."
func ToVerifyFlags(nogpgcheck, skipsignature, skipdigest bool) VerifyFlags {
	if nogpgcheck {
		return VerifyFlags{}
	}
	return VerifyFlags{
		CheckDigest:    !skipdigest,
		CheckSignature: !skipsignature,
	}
}

// Phase names one stage of the RPM callback progress stream, spec §4.6
// "Callback": "file-open on install, file-close on install-done, and
// pretty-prints progress lines for install/upgrade/remove."
type Phase int

const (
	PhaseFileOpen Phase = iota
	PhaseFileClose
	PhaseInstallStart
	PhaseInstallProgress
	PhaseRemoveStart
	PhaseScriptWarning
	PhaseScriptError
)

// Event is one progress callback invocation.
type Event struct {
	Phase   Phase
	NEVRA   rpmver.NEVRA
	Amount  int64
	Total   int64
	Message string
}

// ProgressFunc receives Events as the transaction runs.
type ProgressFunc func(Event)

// Transactor is the contract spec §6 names as "the RPM transaction
// engine itself (consumed as a library)": the executor populates it from
// a resolved plan and drives it through a test run then a real run.
type Transactor interface {
	// AddInstall stages pkgPath (a downloaded/verified .rpm) for
	// install or upgrade.
	AddInstall(pkgPath string, upgrade bool) error
	// AddErase stages nevra for removal.
	AddErase(nevra rpmver.NEVRA) error
	// SetFlags configures the digest/signature verify bits, spec §4.6.
	SetFlags(flags VerifyFlags)
	// SetFilterOldPackage applies RPMPROB_FILTER_OLDPACKAGE, spec §4.6
	// "the test phase is also the point where RPMPROB_FILTER_OLDPACKAGE
	// is applied (so downgrades succeed)."
	SetFilterOldPackage(allow bool)
	// SetFilterReplacePackage applies RPMPROB_FILTER_REPLACEPKG, spec
	// §4.6 "applied iff the plan contains reinstalls."
	SetFilterReplacePackage(allow bool)
	// Run executes ordering, dependency check, and file-conflict check
	// when test is true (RPMTRANS_FLAG_TEST); when false it performs
	// the real mutation. progress receives callback events.
	Run(test bool, progress ProgressFunc) error
}
