// Location resolution, spec §4.4 "Resolving a location to a URL".
package acquire

import (
	"context"
	"fmt"
	"net/url"
	"path/filepath"
	"strings"
)

// ResolveLocation turns a repo-relative package location into a URL or
// local path. If location is already absolute (a filesystem path or a
// file:// URL), no network is used. Otherwise each base URL is tried,
// in order, via probe, and the first one probe accepts is used.
func ResolveLocation(ctx context.Context, baseURLs []string, location string, probe func(ctx context.Context, candidate string) bool) (string, error) {
	if filepath.IsAbs(location) {
		return location, nil
	}
	if u, err := url.Parse(location); err == nil && u.Scheme == "file" {
		return location, nil
	}
	if u, err := url.Parse(location); err == nil && (u.Scheme == "http" || u.Scheme == "https") {
		return location, nil
	}

	if len(baseURLs) == 0 {
		return "", fmt.Errorf("acquire: %q is not fully qualified and no base urls are configured", location)
	}

	for _, base := range baseURLs {
		candidate := joinURL(base, location)
		if probe == nil || probe(ctx, candidate) {
			return candidate, nil
		}
	}
	return "", fmt.Errorf("acquire: no base url served %q", location)
}

func joinURL(base, rel string) string {
	base = strings.TrimRight(base, "/")
	rel = strings.TrimLeft(rel, "/")
	return base + "/" + rel
}

// RPMsDestPath computes the on-disk path for a downloaded package under
// a cache's rpms/ subtree, preserving the location's relative subtree
// (spec §3, "rpms/ (binary packages with their source-relative subtree
// preserved)") with a containment check.
func RPMsDestPath(rpmsDir, location string) (string, error) {
	clean := filepath.Clean("/" + location)[1:] // strip any leading ".."  components
	full := filepath.Join(rpmsDir, clean)
	rel, err := filepath.Rel(rpmsDir, full)
	if err != nil || strings.HasPrefix(rel, "..") {
		return "", fmt.Errorf("acquire: location %q escapes cache root", location)
	}
	return full, nil
}

// FlatDestPath computes the on-disk path for a download placed into a
// flat user-chosen directory, basename only (spec §4.4 "Download
// placement", second mode).
func FlatDestPath(dir, location string) string {
	return filepath.Join(dir, filepath.Base(location))
}
