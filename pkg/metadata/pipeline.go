// Pipeline orchestration, spec §4.3: the absent -> downloading -> present
// -> stale state machine a repo's cached metadata moves through, tying
// the XML parsers above to internal/cacheutil's on-disk layout and
// pkg/acquire's transfer client.
//
// Grounded on the teacher's pkg/dnf.PackageManager.refreshCache, which
// drove the same fetch-then-parse sequence directly off an http.Client;
// here the sequence is split into its own type so the repomd/primary/
// filelists/updateinfo fetch order and the plugin hook points (spec
// §4.3 "Plugin hook") are explicit and independently testable.
package metadata

import (
	"bytes"
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"github.com/tdnf-go/tdnfcore/internal/cacheutil"
	"github.com/tdnf-go/tdnfcore/pkg/acquire"
)

func newReader(b []byte) io.Reader { return bytes.NewReader(b) }

// ErrCacheDisabled is returned by Refresh in cache-only mode when the
// required metadata is not already present on disk, spec §4.3:
// "Cache-only mode may never fetch; if inputs are missing it fails with
// 'cache disabled'."
var ErrCacheDisabled = errors.New("cache disabled")

// State names one point in spec §4.3's cache state machine.
type State int

const (
	StateAbsent State = iota
	StateDownloading
	StatePresent
	StateStale
)

func (s State) String() string {
	switch s {
	case StateAbsent:
		return "absent"
	case StateDownloading:
		return "downloading"
	case StatePresent:
		return "present"
	case StateStale:
		return "stale"
	default:
		return "unknown"
	}
}

// Pipeline drives one repo's cache through the absent/downloading/
// present/stale states.
type Pipeline struct {
	Layout   *cacheutil.Layout
	Client   *acquire.Client
	BaseURLs []string
	Username string
	Password string
	Handlers []PluginHandler
}

// Fetched is the outcome of a successful Refresh: the parsed parts that
// were present in the repomd.xml, plus the layout paths they now live
// under.
type Fetched struct {
	RepoMD     *RepoMD
	Packages   []PackageEntry
	Files      []FileEntry
	UpdateInfo []UpdateRecord
}

// RefreshOptions controls Refresh's network and purge behavior.
type RefreshOptions struct {
	// CacheOnly, set, never performs a network fetch; Refresh fails with
	// ErrCacheDisabled if the required parts are not already cached,
	// spec §4.3 "Cache-only mode may never fetch."
	CacheOnly bool
	// KeepCache mirrors tdnf.conf's keepcache: when the repomd cookie
	// changes, rpms/ is purged along with repodata/ and solvcache/
	// unless KeepCache is set, spec §4.3.
	KeepCache bool
}

// CurrentState reports which spec §4.3 state the repo's cache is
// currently in, without making any network call.
func (p *Pipeline) CurrentState(metadataExpire time.Duration, cacheOnly bool) State {
	if p.Layout.MarkerTime().IsZero() {
		return StateAbsent
	}
	if p.Layout.Stale(metadataExpire, cacheOnly) {
		return StateStale
	}
	return StatePresent
}

func (p *Pipeline) fireHandlers(kind PluginEventKind, event PluginEvent, body io.Reader) error {
	event.Kind = kind
	for _, h := range p.Handlers {
		if !h.Handles(kind) {
			continue
		}
		if err := h.Handle(event, body); err != nil {
			return fmt.Errorf("metadata: plugin handler: %w", err)
		}
	}
	return nil
}

// Refresh performs the full fetch sequence: repomd.xml (through the
// before/after plugin hooks), staged into tmp/ and renamed into place
// only once parsed and plugin-verified, then whichever of primary/
// filelists/updateinfo repomd.xml names, spec §4.3 "Missing filelists,
// updateinfo, other is not an error". It drives the absent/downloading/
// present/stale state machine: if the freshly downloaded repomd.xml's
// cookie matches the one already on disk, the cached parts are reused
// untouched; otherwise repodata/, solvcache/, and the marker are purged
// (and rpms/ too, unless KeepCache) before the new metadata is installed.
func (p *Pipeline) Refresh(ctx context.Context, repoID string, opts RefreshOptions) (*Fetched, error) {
	if err := p.Layout.EnsureDirs(); err != nil {
		return nil, fmt.Errorf("metadata: ensure cache dirs: %w", err)
	}

	wasPresent := !p.Layout.MarkerTime().IsZero()

	if opts.CacheOnly {
		if !wasPresent {
			return nil, ErrCacheDisabled
		}
		return p.parseParts(ctx, nil, opts)
	}

	event := PluginEvent{RepoID: repoID, CacheDir: p.Layout.RepodataDir(), RepomdPath: p.repomdPath()}
	if err := p.fireHandlers(EventBeforeRepomdFetch, event, nil); err != nil {
		return nil, err
	}

	baseURLs := p.baseURLs(event)

	// repomd.xml is staged under tmp/ so a partial or failed fetch can
	// never corrupt the live cache, spec §4.3 "Download sequencing".
	stagedRepomd := p.Layout.Path("tmp/repomd.xml")
	if err := p.fetchPartToDisk(ctx, baseURLs, "repodata/repomd.xml", stagedRepomd); err != nil {
		return nil, fmt.Errorf("metadata: fetch repomd.xml: %w", err)
	}

	data, err := os.ReadFile(stagedRepomd)
	if err != nil {
		os.Remove(stagedRepomd)
		return nil, fmt.Errorf("metadata: read staged repomd.xml: %w", err)
	}
	if err := p.fireHandlers(EventAfterRepomdFetch, event, newReader(data)); err != nil {
		os.Remove(stagedRepomd)
		return nil, err
	}
	if _, err := ParseRepoMD(newReader(data)); err != nil {
		os.Remove(stagedRepomd)
		return nil, err
	}

	newCookie := computeCookie(data)
	oldCookie := p.readCookie()
	cookieMatches := wasPresent && oldCookie != "" && oldCookie == newCookie

	if wasPresent && !cookieMatches {
		if err := p.Layout.RemoveMetadata(); err != nil {
			os.Remove(stagedRepomd)
			return nil, fmt.Errorf("metadata: purge stale repodata: %w", err)
		}
		if err := p.Layout.RemoveSolvcache(); err != nil {
			os.Remove(stagedRepomd)
			return nil, fmt.Errorf("metadata: purge stale solvcache: %w", err)
		}
		if err := p.Layout.RemoveMarker(); err != nil {
			os.Remove(stagedRepomd)
			return nil, fmt.Errorf("metadata: remove stale marker: %w", err)
		}
		if !opts.KeepCache {
			if err := p.Layout.RemoveRPMs(); err != nil {
				os.Remove(stagedRepomd)
				return nil, fmt.Errorf("metadata: purge stale rpms: %w", err)
			}
		}
		if err := p.Layout.EnsureDirs(); err != nil {
			return nil, fmt.Errorf("metadata: recreate cache dirs: %w", err)
		}
	}

	// repomd.xml is only installed into the live cache after it parses
	// and passes plugin verification, and is removed again below if the
	// parts it names cannot be fetched, so a failed refresh does not leave
	// repomd.xml on disk without those parts (spec §8 invariant 6).
	if err := os.Rename(stagedRepomd, p.repomdPath()); err != nil {
		return nil, fmt.Errorf("metadata: install repomd.xml: %w", err)
	}
	if err := p.writeCookie(newCookie); err != nil {
		return nil, fmt.Errorf("metadata: write cookie: %w", err)
	}

	result, err := p.parseParts(ctx, baseURLs, opts)
	if err != nil {
		os.Remove(p.repomdPath())
		return nil, err
	}

	if err := p.Layout.TouchMarker(); err != nil {
		return nil, fmt.Errorf("metadata: touch marker: %w", err)
	}
	return result, nil
}

// parseParts reads the already-installed repomd.xml off disk and fetches
// (or, if already cached, simply parses) each part it names. baseURLs is
// ignored when opts.CacheOnly is set, since no part is fetched in that
// mode.
func (p *Pipeline) parseParts(ctx context.Context, baseURLs []string, opts RefreshOptions) (*Fetched, error) {
	data, err := os.ReadFile(p.repomdPath())
	if err != nil {
		if opts.CacheOnly {
			return nil, ErrCacheDisabled
		}
		return nil, fmt.Errorf("metadata: read repomd.xml: %w", err)
	}
	repomd, err := ParseRepoMD(newReader(data))
	if err != nil {
		return nil, err
	}

	result := &Fetched{RepoMD: repomd}

	primaryData := repomd.Find("primary")
	if primaryData == nil {
		return nil, fmt.Errorf("metadata: repomd.xml has no primary part")
	}
	pkgs, err := p.fetchAndParsePrimary(ctx, baseURLs, primaryData, opts)
	if err != nil {
		return nil, err
	}
	result.Packages = pkgs

	if flData := repomd.Find("filelists"); flData != nil {
		files, err := p.fetchAndParseFilelists(ctx, baseURLs, flData, opts)
		if err != nil {
			return nil, err
		}
		result.Files = files
	}
	if uiData := repomd.Find("updateinfo"); uiData != nil {
		records, err := p.fetchAndParseUpdateinfo(ctx, baseURLs, uiData, opts)
		if err != nil {
			return nil, err
		}
		result.UpdateInfo = records
	}
	return result, nil
}

// computeCookie hashes repomd.xml's content, spec §3: "A SHA-family
// cookie is computed over repomd.xml."
func computeCookie(data []byte) string {
	sum := sha256.Sum256(data)
	return hex.EncodeToString(sum[:])
}

func (p *Pipeline) readCookie() string {
	b, err := os.ReadFile(p.Layout.CookiePath())
	if err != nil {
		return ""
	}
	return strings.TrimSpace(string(b))
}

func (p *Pipeline) writeCookie(cookie string) error {
	return os.WriteFile(p.Layout.CookiePath(), []byte(cookie), 0o644)
}

func (p *Pipeline) baseURLs(event PluginEvent) []string {
	for _, h := range p.Handlers {
		if ml, ok := h.(*MetalinkHandler); ok && len(ml.BaseURLs) > 0 {
			return ml.BaseURLs
		}
	}
	return p.BaseURLs
}

func (p *Pipeline) repomdPath() string {
	return p.Layout.Path("repodata/repomd.xml")
}

// fetchPartToDisk downloads location to destPath via a tmp-then-rename
// (pkg/acquire.Client.Download), trying each base URL in turn, spec §4.4
// "Resolving a location to a URL".
func (p *Pipeline) fetchPartToDisk(ctx context.Context, baseURLs []string, location, destPath string) error {
	var lastErr error
	for _, base := range baseURLs {
		url, err := acquire.ResolveLocation(ctx, []string{base}, location, nil)
		if err != nil {
			lastErr = err
			continue
		}
		if err := p.Client.Download(ctx, url, destPath, p.Username, p.Password); err != nil {
			lastErr = err
			if acquire.IsFatal(err) {
				return err
			}
			continue
		}
		return nil
	}
	if lastErr == nil {
		lastErr = fmt.Errorf("metadata: no base URLs configured")
	}
	return lastErr
}

// fetchIfAbsent ensures location is present on disk at destPath, spec
// §4.3 "each part's presence is checked before fetching, so a repeated
// refresh after a partial failure resumes where it left off" — and fails
// with ErrCacheDisabled in cache-only mode instead of ever fetching.
func (p *Pipeline) fetchIfAbsent(ctx context.Context, baseURLs []string, location, destPath string, opts RefreshOptions) error {
	if acquire.Exists(destPath) {
		return nil
	}
	if opts.CacheOnly {
		return ErrCacheDisabled
	}
	return p.fetchPartToDisk(ctx, baseURLs, location, destPath)
}

func (p *Pipeline) fetchAndParsePrimary(ctx context.Context, baseURLs []string, data *RepoData, opts RefreshOptions) ([]PackageEntry, error) {
	destPath := p.Layout.Path(data.Location)
	if err := p.fetchIfAbsent(ctx, baseURLs, data.Location, destPath, opts); err != nil {
		return nil, fmt.Errorf("metadata: fetch primary.xml: %w", err)
	}
	body, err := acquire.DecompressFile(destPath)
	if err != nil {
		return nil, fmt.Errorf("metadata: open primary.xml: %w", err)
	}
	defer body.Close()
	return ParsePrimary(body)
}

func (p *Pipeline) fetchAndParseFilelists(ctx context.Context, baseURLs []string, data *RepoData, opts RefreshOptions) ([]FileEntry, error) {
	destPath := p.Layout.Path(data.Location)
	if err := p.fetchIfAbsent(ctx, baseURLs, data.Location, destPath, opts); err != nil {
		return nil, fmt.Errorf("metadata: fetch filelists.xml: %w", err)
	}
	body, err := acquire.DecompressFile(destPath)
	if err != nil {
		return nil, fmt.Errorf("metadata: open filelists.xml: %w", err)
	}
	defer body.Close()
	return ParseFilelists(body)
}

func (p *Pipeline) fetchAndParseUpdateinfo(ctx context.Context, baseURLs []string, data *RepoData, opts RefreshOptions) ([]UpdateRecord, error) {
	destPath := p.Layout.Path(data.Location)
	if err := p.fetchIfAbsent(ctx, baseURLs, data.Location, destPath, opts); err != nil {
		return nil, fmt.Errorf("metadata: fetch updateinfo.xml: %w", err)
	}
	body, err := acquire.DecompressFile(destPath)
	if err != nil {
		return nil, fmt.Errorf("metadata: open updateinfo.xml: %w", err)
	}
	defer body.Close()
	return ParseUpdateinfo(body)
}
