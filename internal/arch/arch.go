// Package arch detects the values tdnf substitutes for $basearch, mirroring
// the uname(2)-based detection the teacher's pkg/platform did for
// cross-backend platform probing.
package arch

import "runtime"

// Basearch returns the RPM basearch string for the running system, the
// value $basearch expands to in repo definitions and cache paths.
func Basearch() string {
	return goarchToBasearch(runtime.GOARCH)
}

// goarchToBasearch maps a Go GOARCH value to the RPM basearch it
// corresponds to. RPM arches are decoupled from GOARCH spellings (x86_64
// vs amd64, aarch64 vs arm64) so the mapping cannot be the identity.
func goarchToBasearch(goarch string) string {
	switch goarch {
	case "amd64":
		return "x86_64"
	case "arm64":
		return "aarch64"
	case "386":
		return "i686"
	case "arm":
		return "armv7hl"
	case "ppc64le":
		return "ppc64le"
	case "s390x":
		return "s390x"
	case "riscv64":
		return "riscv64"
	default:
		return goarch
	}
}

// Noarch is the special architecture value that matches on every basearch.
const Noarch = "noarch"

// CompatibleWith reports whether a package built for pkgArch can be
// installed on a system whose basearch is sysArch.
func CompatibleWith(pkgArch, sysArch string) bool {
	return pkgArch == sysArch || pkgArch == Noarch
}
