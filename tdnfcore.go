package tdnfcore

import (
	"context"
	"log"
	"os"
	"path/filepath"
	"time"

	"github.com/tdnf-go/tdnfcore/internal/cacheutil"
	"github.com/tdnf-go/tdnfcore/internal/config"
	"github.com/tdnf-go/tdnfcore/internal/lock"
	"github.com/tdnf-go/tdnfcore/pkg/acquire"
	"github.com/tdnf-go/tdnfcore/pkg/history"
	"github.com/tdnf-go/tdnfcore/pkg/repo"
	"github.com/tdnf-go/tdnfcore/pkg/resolver"
)

// Session is the engine instance of spec §3 "Ownership": it owns the
// repo registry, the solver pool, the cache-root path, and the open
// history connection for one process's lifetime; Close releases the
// history connection and then the instance lock.
//
// Grounded on the teacher's pkg/dnf.PackageManager (the same "one struct
// holds every subsystem, New returns it fully wired, Close tears it back
// down" shape), generalized from a single-backend manager into the
// multi-component engine spec §3 describes.
type Session struct {
	Config   config.Main
	Registry *repo.Registry
	Pool     resolver.Pool
	History  *history.Store
	Cache    *cacheutil.Layout
	Lock     *lock.Lock
	Client   *acquire.Client
	Logger   *log.Logger

	installRoot string
}

// Options configures New beyond what tdnf.conf supplies. ReposDir,
// PersistDir, and CacheDir override the loaded config's RepoDir/
// PersistDir/CacheDir when non-empty — tests and --installroot runs use
// this to keep every on-disk path under one root.
type Options struct {
	ConfigPath  string
	InstallRoot string
	ReposDir    string
	PersistDir  string
	CacheDir    string
	Logger      *log.Logger
}

// New opens a Session: loads tdnf.conf, takes the instance lock,
// populates the repo registry from ReposDir, and opens the history
// store, spec §3's construction order (reversed at Close).
func New(ctx context.Context, opts Options) (*Session, error) {
	logger := opts.Logger
	if logger == nil {
		logger = log.New(nowhere{}, "", 0)
	}

	cfg, err := config.Load(opts.ConfigPath)
	if err != nil {
		return nil, Wrap("open", KindInvalidInput, "", err)
	}

	if err := os.MkdirAll(filepath.Dir(lock.Path(opts.InstallRoot)), 0o755); err != nil {
		return nil, Wrap("open", KindResource, "", err)
	}
	l := lock.New(opts.InstallRoot)
	if err := l.Lock(ctx, 200*time.Millisecond); err != nil {
		return nil, Wrap("open", KindResource, "", err)
	}

	registry := repo.NewRegistry()
	reposDir := opts.ReposDir
	if reposDir == "" {
		reposDir = cfg.RepoDir
	}
	if err := registry.LoadDir(reposDir); err != nil {
		l.Unlock()
		return nil, Wrap("open", KindNotFound, "", err)
	}
	registry.Finalize("") // caller overrides $releasever via Registry.Finalize again if needed

	if opts.CacheDir != "" {
		cfg.CacheDir = opts.CacheDir
	}
	persistDir := opts.PersistDir
	if persistDir == "" {
		persistDir = cfg.PersistDir
	}
	if err := os.MkdirAll(persistDir, 0o755); err != nil {
		l.Unlock()
		return nil, Wrap("open", KindResource, "", err)
	}
	historyPath := filepath.Join(persistDir, "history.db")
	store, err := history.Open(historyPath, nil)
	if err != nil {
		l.Unlock()
		return nil, Wrap("open", KindHistory, "", err)
	}

	client, err := acquire.New(acquire.Options{})
	if err != nil {
		store.Close()
		l.Unlock()
		return nil, Wrap("open", KindRemote, "", err)
	}

	pool := resolver.NewMemPool(registryPriorities(registry))

	s := &Session{
		Config:      cfg,
		Registry:    registry,
		Pool:        pool,
		History:     store,
		Lock:        l,
		Client:      client,
		Logger:      logger,
		installRoot: opts.InstallRoot,
	}
	return s, nil
}

// Close tears the session down in spec §5's reverse-construction order:
// history db close, solver pool free (nothing to release — garbage
// collected), registry free (likewise), instance lock release. The
// transaction executor is owned by the caller per-run, not by Session,
// so it is not part of this cascade.
func (s *Session) Close() error {
	var firstErr error
	if s.History != nil {
		if err := s.History.Close(); err != nil && firstErr == nil {
			firstErr = Wrap("close", KindHistory, "", err)
		}
	}
	if s.Lock != nil {
		if err := s.Lock.Unlock(); err != nil && firstErr == nil {
			firstErr = Wrap("close", KindResource, "", err)
		}
	}
	return firstErr
}

// CacheFor returns the on-disk cache layout for one repo, spec §3's
// per-repo cache directory naming.
func (s *Session) CacheFor(d *repo.Descriptor) *cacheutil.Layout {
	name := cacheutil.RepoCacheName(d.ID, d.PrimaryURL())
	return cacheutil.New(s.Config.CacheDir, name)
}

func registryPriorities(r *repo.Registry) map[string]int {
	out := make(map[string]int)
	for _, d := range r.All() {
		out[d.ID] = d.Priority
	}
	return out
}

type nowhere struct{}

func (nowhere) Write(p []byte) (int, error) { return len(p), nil }
