// Package rpmver provides the NEVRA identity type (spec §3, "Package
// identity") and EVR comparison, grounded on the teacher's
// pkg/dnf.PackageInfo.FullVersion but generalized into a proper parsed type
// instead of ad-hoc string concatenation, since the resolver driver needs
// to compare versions, not just print them.
package rpmver

import (
	"fmt"
	"strings"

	rpmversion "github.com/knqyf263/go-rpm-version"
)

// NEVRA is the canonical identity of a package version: Name, Epoch,
// Version, Release, Arch.
type NEVRA struct {
	Name    string
	Epoch   string // empty means unset/0, matches RPM convention
	Version string
	Release string
	Arch    string
}

// String renders "Name-Epoch:Version-Release.Arch", collapsing a zero/empty
// epoch the way rpm's %{nevra} does when epoch is unset.
func (n NEVRA) String() string {
	ev := n.Version
	if n.Epoch != "" && n.Epoch != "0" {
		ev = n.Epoch + ":" + n.Version
	}
	return fmt.Sprintf("%s-%s-%s.%s", n.Name, ev, n.Release, n.Arch)
}

// EVR renders "Epoch:Version-Release" for use as a sort/compare key.
func (n NEVRA) EVR() string {
	epoch := n.Epoch
	if epoch == "" {
		epoch = "0"
	}
	return epoch + ":" + n.Version + "-" + n.Release
}

// ParseNEVRA parses a "Name-Epoch:Version-Release.Arch" string. Epoch is
// optional; absence means epoch 0.
func ParseNEVRA(s string) (NEVRA, error) {
	var n NEVRA

	dot := strings.LastIndex(s, ".")
	if dot < 0 {
		return n, fmt.Errorf("rpmver: %q: missing arch suffix", s)
	}
	n.Arch = s[dot+1:]
	rest := s[:dot]

	// rest is Name-EV-Release; Release has no '-', Version may not either
	// (rpm forbids '-' in version/release), so splitting from the right
	// twice is unambiguous.
	relIdx := strings.LastIndex(rest, "-")
	if relIdx < 0 {
		return n, fmt.Errorf("rpmver: %q: missing release", s)
	}
	n.Release = rest[relIdx+1:]
	rest = rest[:relIdx]

	evIdx := strings.LastIndex(rest, "-")
	if evIdx < 0 {
		return n, fmt.Errorf("rpmver: %q: missing version", s)
	}
	n.Name = rest[:evIdx]
	ev := rest[evIdx+1:]

	if colon := strings.Index(ev, ":"); colon >= 0 {
		n.Epoch = ev[:colon]
		n.Version = ev[colon+1:]
	} else {
		n.Version = ev
	}

	return n, nil
}

// CompareEVR compares two Epoch:Version-Release strings the way rpm's
// rpmvercmp does, via the go-rpm-version package. Returns <0, 0, >0.
func CompareEVR(a, b string) int {
	va := rpmversion.NewVersion(normalizeEVR(a))
	vb := rpmversion.NewVersion(normalizeEVR(b))
	return va.Compare(vb)
}

// Compare compares two NEVRAs by EVR only (arch/name are assumed equal by
// the caller, as is the case whenever the resolver picks among candidates
// for one name+arch).
func Compare(a, b NEVRA) int {
	return CompareEVR(a.EVR(), b.EVR())
}

// normalizeEVR returns evr unchanged: go-rpm-version parses
// "epoch:version-release" natively, so no rewriting is done. It is kept
// as a seam in case the representation needs adjusting for release
// builds of the dependency.
func normalizeEVR(evr string) string {
	return evr
}
