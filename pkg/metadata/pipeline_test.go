package metadata

import (
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"testing"

	"github.com/tdnf-go/tdnfcore/internal/cacheutil"
	"github.com/tdnf-go/tdnfcore/pkg/acquire"
)

const testRepomd = `<?xml version="1.0"?>
<repomd xmlns="http://linux.duke.edu/metadata/repo">
  <revision>1</revision>
  <data type="primary">
    <checksum type="sha256">abc</checksum>
    <location href="repodata/primary.xml"/>
    <size>100</size>
  </data>
</repomd>`

const testPrimary = `<?xml version="1.0"?>
<metadata xmlns="http://linux.duke.edu/metadata/common" packages="1">
  <package type="rpm">
    <name>foo</name>
    <arch>x86_64</arch>
    <version epoch="0" ver="1.0" rel="1"/>
    <checksum type="sha256">deadbeef</checksum>
    <summary>a package</summary>
    <location href="Packages/foo-1.0-1.x86_64.rpm"/>
    <size package="100" installed="200"/>
  </package>
</metadata>`

func newTestServer(t *testing.T, primaryHits *int) (*httptest.Server, *Pipeline) {
	t.Helper()
	mux := http.NewServeMux()
	mux.HandleFunc("/repodata/repomd.xml", func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(testRepomd))
	})
	mux.HandleFunc("/repodata/primary.xml", func(w http.ResponseWriter, r *http.Request) {
		if primaryHits != nil {
			*primaryHits++
		}
		w.Write([]byte(testPrimary))
	})
	srv := httptest.NewServer(mux)

	client, err := acquire.New(acquire.Options{})
	if err != nil {
		t.Fatalf("acquire.New: %v", err)
	}

	layout := cacheutil.New(t.TempDir(), "test-repo")
	p := &Pipeline{Layout: layout, Client: client, BaseURLs: []string{srv.URL}}
	return srv, p
}

func TestPipelineRefreshFetchesPrimary(t *testing.T) {
	var hits int
	srv, p := newTestServer(t, &hits)
	defer srv.Close()

	fetched, err := p.Refresh(context.Background(), "test-repo", RefreshOptions{})
	if err != nil {
		t.Fatalf("Refresh: %v", err)
	}
	if len(fetched.Packages) != 1 || fetched.Packages[0].NEVRA.Name != "foo" {
		t.Fatalf("Packages = %+v, want [foo]", fetched.Packages)
	}
	if p.Layout.MarkerTime().IsZero() {
		t.Error("expected marker file to be touched after a successful refresh")
	}
	if p.CurrentState(0, false) == StateAbsent {
		t.Error("CurrentState should not be absent after a refresh")
	}

	// spec §4.3 / §8 invariant 6: repomd.xml and primary must both land
	// on disk under repodata/, not just live in memory.
	if !acquire.Exists(p.repomdPath()) {
		t.Error("expected repomd.xml to be persisted under repodata/")
	}
	primaryPath := filepath.Join(p.Layout.RepodataDir(), "primary.xml")
	if !acquire.Exists(primaryPath) {
		t.Error("expected primary.xml to be persisted under repodata/")
	}
	if !acquire.Exists(p.Layout.CookiePath()) {
		t.Error("expected a repomd cookie to be written alongside solvcache/")
	}
	if hits != 1 {
		t.Fatalf("primary.xml fetched %d times, want 1", hits)
	}
}

func TestPipelineCurrentStateAbsentBeforeRefresh(t *testing.T) {
	layout := cacheutil.New(t.TempDir(), "test-repo")
	p := &Pipeline{Layout: layout}
	if got := p.CurrentState(0, false); got != StateAbsent {
		t.Errorf("CurrentState = %v, want absent", got)
	}
}

func TestPipelineRefreshReusesCachedPartsWhenCookieMatches(t *testing.T) {
	var hits int
	srv, p := newTestServer(t, &hits)
	defer srv.Close()

	if _, err := p.Refresh(context.Background(), "test-repo", RefreshOptions{}); err != nil {
		t.Fatalf("first Refresh: %v", err)
	}
	if hits != 1 {
		t.Fatalf("primary.xml fetched %d times after first refresh, want 1", hits)
	}

	// A second refresh against an unchanged repomd.xml must not
	// re-download primary.xml: spec §4.3 "if the newly downloaded
	// repomd.xml cookie matches the cached one, move back to present
	// without touching dependent parts."
	fetched, err := p.Refresh(context.Background(), "test-repo", RefreshOptions{})
	if err != nil {
		t.Fatalf("second Refresh: %v", err)
	}
	if len(fetched.Packages) != 1 {
		t.Fatalf("Packages after second refresh = %+v, want 1 entry", fetched.Packages)
	}
	if hits != 1 {
		t.Fatalf("primary.xml fetched %d times after second refresh, want still 1", hits)
	}
}

func TestPipelineRefreshPurgesOnCookieMismatch(t *testing.T) {
	mux := http.NewServeMux()
	revision := "1"
	mux.HandleFunc("/repodata/repomd.xml", func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`<?xml version="1.0"?>
<repomd xmlns="http://linux.duke.edu/metadata/repo">
  <revision>` + revision + `</revision>
  <data type="primary">
    <checksum type="sha256">abc</checksum>
    <location href="repodata/primary.xml"/>
    <size>100</size>
  </data>
</repomd>`))
	})
	var hits int
	mux.HandleFunc("/repodata/primary.xml", func(w http.ResponseWriter, r *http.Request) {
		hits++
		w.Write([]byte(testPrimary))
	})
	srv := httptest.NewServer(mux)
	defer srv.Close()

	client, err := acquire.New(acquire.Options{})
	if err != nil {
		t.Fatalf("acquire.New: %v", err)
	}
	layout := cacheutil.New(t.TempDir(), "test-repo")
	p := &Pipeline{Layout: layout, Client: client, BaseURLs: []string{srv.URL}}

	if _, err := p.Refresh(context.Background(), "test-repo", RefreshOptions{}); err != nil {
		t.Fatalf("first Refresh: %v", err)
	}
	if hits != 1 {
		t.Fatalf("primary.xml fetched %d times after first refresh, want 1", hits)
	}

	revision = "2" // repomd.xml content (and therefore its cookie) now differs
	if _, err := p.Refresh(context.Background(), "test-repo", RefreshOptions{}); err != nil {
		t.Fatalf("second Refresh: %v", err)
	}
	if hits != 2 {
		t.Fatalf("primary.xml fetched %d times after cookie changed, want 2", hits)
	}
}

func TestPipelineRefreshCacheOnlyFailsWhenAbsent(t *testing.T) {
	layout := cacheutil.New(t.TempDir(), "test-repo")
	p := &Pipeline{Layout: layout}
	if _, err := p.Refresh(context.Background(), "test-repo", RefreshOptions{CacheOnly: true}); err != ErrCacheDisabled {
		t.Fatalf("Refresh(CacheOnly) error = %v, want ErrCacheDisabled", err)
	}
}

func TestPipelineRefreshCacheOnlyServesFromDisk(t *testing.T) {
	var hits int
	srv, p := newTestServer(t, &hits)
	defer srv.Close()

	if _, err := p.Refresh(context.Background(), "test-repo", RefreshOptions{}); err != nil {
		t.Fatalf("priming Refresh: %v", err)
	}
	srv.Close() // further network access must not be attempted

	fetched, err := p.Refresh(context.Background(), "test-repo", RefreshOptions{CacheOnly: true})
	if err != nil {
		t.Fatalf("cache-only Refresh: %v", err)
	}
	if len(fetched.Packages) != 1 {
		t.Fatalf("Packages = %+v, want 1 entry", fetched.Packages)
	}
}

// kindRecordingHandler records the Kind it was dispatched with for each
// event, so the before/after distinction in fireHandlers can be tested
// directly.
type kindRecordingHandler struct {
	kinds []PluginEventKind
}

func (h *kindRecordingHandler) Handles(kind PluginEventKind) bool { return true }

func (h *kindRecordingHandler) Handle(event PluginEvent, body io.Reader) error {
	h.kinds = append(h.kinds, event.Kind)
	return nil
}

func TestFireHandlersSetsEventKind(t *testing.T) {
	layout := cacheutil.New(t.TempDir(), "test-repo")
	h := &kindRecordingHandler{}
	p := &Pipeline{Layout: layout, Handlers: []PluginHandler{h}}

	if err := p.fireHandlers(EventBeforeRepomdFetch, PluginEvent{RepoID: "r"}, nil); err != nil {
		t.Fatalf("fireHandlers before: %v", err)
	}
	if err := p.fireHandlers(EventAfterRepomdFetch, PluginEvent{RepoID: "r"}, nil); err != nil {
		t.Fatalf("fireHandlers after: %v", err)
	}
	if len(h.kinds) != 2 || h.kinds[0] != EventBeforeRepomdFetch || h.kinds[1] != EventAfterRepomdFetch {
		t.Fatalf("recorded kinds = %v, want [before after]", h.kinds)
	}
}

func TestMetalinkHandlerVerifiesOnRealRefresh(t *testing.T) {
	var hits int
	srv, p := newTestServer(t, &hits)
	defer srv.Close()

	sum := computeCookie([]byte(testRepomd))
	ml := &Metalink{
		Filename: "repomd.xml",
		Hashes:   []MetalinkHash{{Type: "sha256", Digest: sum}},
	}
	p.Handlers = []PluginHandler{NewMetalinkHandler(ml)}

	if _, err := p.Refresh(context.Background(), "test-repo", RefreshOptions{}); err != nil {
		t.Fatalf("Refresh with a matching metalink hash: %v", err)
	}

	// A metalink with a deliberately wrong digest must now actually fail
	// the refresh, proving VerifyAgainst runs on the after-fetch event
	// rather than being silently skipped.
	badML := &Metalink{
		Filename: "repomd.xml",
		Hashes:   []MetalinkHash{{Type: "sha256", Digest: "0000000000000000000000000000000000000000000000000000000000000000"}},
	}
	layout := cacheutil.New(t.TempDir(), "test-repo-2")
	p2 := &Pipeline{Layout: layout, Client: p.Client, BaseURLs: p.BaseURLs, Handlers: []PluginHandler{NewMetalinkHandler(badML)}}
	if _, err := p2.Refresh(context.Background(), "test-repo-2", RefreshOptions{}); err == nil {
		t.Fatal("Refresh with a mismatched metalink hash should fail, got nil error")
	}
}
