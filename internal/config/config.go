// Package config loads tdnf's main configuration file and the drop-in
// directories next to it (spec §6, "Configuration files"). The per-repo
// *.repo files are handled by pkg/repo, which shares the same INI parser.
//
// Grounded on the teacher's pkg/core.Config, which already used
// gopkg.in/yaml.v3 for a single flat settings file; this module keeps
// that "load one struct from one file, sections as named subgroups" shape
// but switches to gopkg.in/ini.v1 since the wire format here is RPM's INI
// dialect, not YAML, and ini.v1 is the library the rest of the pack
// reaches for when it needs that dialect (git-pkgs-proxy carries it
// indirectly for the same reason).
package config

import (
	"bufio"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"gopkg.in/ini.v1"
)

// Main is the parsed [main] section of tdnf.conf.
type Main struct {
	GPGCheck                   bool
	InstallOnlyLimit           int
	CleanRequirementsOnRemove  bool
	KeepCache                  bool
	RepoDir                    string
	CacheDir                   string
	PersistDir                 string
	DistroverPkg               string
	ExcludePkgs                []string
	MinVersions                []string
	OpenMax                    int
	DNFCheckUpdateCompat       bool
	DistrosyncReinstallChanged bool
	Proxy                      string
	ProxyUsername              string
	ProxyPassword              string
	Plugins                    bool
	PluginPath                 string
	PluginConfPath             string
}

// Defaults mirror tdnf's stock /etc/tdnf/tdnf.conf.
func Defaults() Main {
	return Main{
		GPGCheck:      true,
		RepoDir:       "/etc/yum.repos.d",
		CacheDir:      "/var/cache/tdnf",
		PersistDir:    "/var/lib/tdnf",
		DistroverPkg:  "system-release",
		Plugins:       false,
		PluginPath:    "/usr/lib/tdnf-plugins",
		PluginConfPath: "/etc/tdnf/pluginconf.d",
	}
}

// Load reads path ("" falls back to /etc/tdnf/tdnf.conf's stock defaults
// with no file applied) and overlays its [main] section onto the
// defaults.
func Load(path string) (Main, error) {
	m := Defaults()
	if path == "" {
		return m, nil
	}

	f, err := ini.Load(path)
	if err != nil {
		return m, err
	}
	sec := f.Section("main")

	m.GPGCheck = sec.Key("gpgcheck").MustBool(m.GPGCheck)
	m.InstallOnlyLimit = sec.Key("installonly_limit").MustInt(m.InstallOnlyLimit)
	m.CleanRequirementsOnRemove = sec.Key("clean_requirements_on_remove").MustBool(m.CleanRequirementsOnRemove)
	m.KeepCache = sec.Key("keepcache").MustBool(m.KeepCache)
	m.RepoDir = sec.Key("repodir").MustString(m.RepoDir)
	m.CacheDir = sec.Key("cachedir").MustString(m.CacheDir)
	m.PersistDir = sec.Key("persistdir").MustString(m.PersistDir)
	m.DistroverPkg = sec.Key("distroverpkg").MustString(m.DistroverPkg)
	m.OpenMax = sec.Key("openmax").MustInt(m.OpenMax)
	m.DNFCheckUpdateCompat = sec.Key("dnf_check_update_compat").MustBool(m.DNFCheckUpdateCompat)
	m.DistrosyncReinstallChanged = sec.Key("distrosync_reinstall_changed").MustBool(m.DistrosyncReinstallChanged)
	m.Proxy = sec.Key("proxy").MustString(m.Proxy)
	m.ProxyUsername = sec.Key("proxy_username").MustString(m.ProxyUsername)
	m.ProxyPassword = sec.Key("proxy_password").MustString(m.ProxyPassword)
	m.Plugins = sec.Key("plugins").MustBool(m.Plugins)
	m.PluginPath = sec.Key("pluginpath").MustString(m.PluginPath)
	m.PluginConfPath = sec.Key("pluginconfpath").MustString(m.PluginConfPath)

	if v := sec.Key("excludepkgs").String(); v != "" {
		m.ExcludePkgs = splitCommaList(v)
	}
	if v := sec.Key("minversions").String(); v != "" {
		m.MinVersions = splitCommaList(v)
	}

	return m, nil
}

func splitCommaList(v string) []string {
	parts := strings.FieldsFunc(v, func(r rune) bool { return r == ',' || r == ' ' })
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if p != "" {
			out = append(out, p)
		}
	}
	return out
}

// MinVersionPin is one parsed entry from minversions.d/*.conf.
type MinVersionPin struct {
	Name string
	EVR  string
}

// LoadMinVersionsDir reads every *.conf file in dir (minversions.d),
// one "name=EVR" entry per line, blank lines and '#' comments skipped.
// A missing directory is not an error (spec §6 drop-ins are optional).
func LoadMinVersionsDir(dir string) ([]MinVersionPin, error) {
	var pins []MinVersionPin
	err := forEachConfLine(dir, func(line string) error {
		idx := strings.IndexByte(line, '=')
		if idx < 0 {
			return nil
		}
		pins = append(pins, MinVersionPin{
			Name: strings.TrimSpace(line[:idx]),
			EVR:  strings.TrimSpace(line[idx+1:]),
		})
		return nil
	})
	return pins, err
}

// LoadNameListDir reads every *.conf file in dir, one bare package name
// per line, used for locks.d and protected.d alike.
func LoadNameListDir(dir string) ([]string, error) {
	var names []string
	err := forEachConfLine(dir, func(line string) error {
		names = append(names, line)
		return nil
	})
	return names, err
}

func forEachConfLine(dir string, fn func(line string) error) error {
	entries, err := os.ReadDir(dir)
	if err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		return err
	}
	for _, e := range entries {
		if e.IsDir() || !strings.HasSuffix(e.Name(), ".conf") {
			continue
		}
		if err := scanConfFile(filepath.Join(dir, e.Name()), fn); err != nil {
			return err
		}
	}
	return nil
}

func scanConfFile(path string, fn func(line string) error) error {
	f, err := os.Open(path)
	if err != nil {
		return err
	}
	defer f.Close()

	sc := bufio.NewScanner(f)
	for sc.Scan() {
		line := strings.TrimSpace(sc.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		if err := fn(line); err != nil {
			return err
		}
	}
	return sc.Err()
}

// ParseBool implements spec §6's boolean grammar: "1"/"true"
// case-insensitive is true, anything else is false. Exported for
// callers parsing repo-level booleans with the same rule outside of an
// ini.Key (e.g. command-line overrides).
func ParseBool(v string) bool {
	lv := strings.ToLower(strings.TrimSpace(v))
	return lv == "1" || lv == "true"
}

// FormatBool is ParseBool's inverse, for writing config back out (used
// by `mark`/history replay tooling that edits drop-ins).
func FormatBool(b bool) string {
	return strconv.FormatBool(b)
}
