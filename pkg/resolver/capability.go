// Capability string handling for Requires/Provides/Conflicts/Obsoletes
// entries, adapted from the teacher's pkg/dnf.classifyDependency /
// cleanDependencyName (which classified a flat dependency string as a
// file path, soname, versioned symbol, virtual capability, or plain
// package name before matching it against a resolved index). Rewritten
// here as the one primitive the resolver driver needs when walking
// Requires during job construction and orphan detection: reducing a
// capability string to the package name it is most likely satisfied by,
// so a name-indexed Pool lookup (spec §4.5) has something to key on.
package resolver

import "strings"

// CapabilityKind classifies one capability string.
type CapabilityKind int

const (
	CapabilityPackage CapabilityKind = iota
	CapabilityFile
	CapabilitySoname
	CapabilityVirtual
)

// ClassifyCapability reports what kind of capability string dep is.
func ClassifyCapability(dep string) CapabilityKind {
	switch {
	case strings.HasPrefix(dep, "/"):
		return CapabilityFile
	case strings.Contains(dep, ".so"):
		return CapabilitySoname
	case strings.Contains(dep, "("):
		return CapabilityVirtual
	default:
		return CapabilityPackage
	}
}

// CapabilityName extracts the plain package name a Requires/Provides
// entry is most likely satisfied by: version comparator operators and
// whitespace are stripped, and anything that is not a plain package
// name (file path, soname, virtual capability) is reported as "" since
// the greedy in-pool resolver (pool.go) cannot match those without a
// filelists/provides index, and leaves them for the consumed solver.
func CapabilityName(dep string) string {
	if ClassifyCapability(dep) != CapabilityPackage {
		return ""
	}
	name := dep
	for _, op := range []string{">=", "<=", "!=", "=", ">", "<"} {
		if idx := strings.Index(name, op); idx != -1 {
			name = name[:idx]
			break
		}
	}
	return strings.TrimSpace(name)
}
