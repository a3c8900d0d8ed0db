package cache

import (
	"context"
	"log/slog"
	"path/filepath"
	"slices"
	"strings"
	"time"

	"github.com/jpgfer/mws-restaurant-1/internal/id"
	"github.com/jpgfer/mws-restaurant-1/internal/watcher"
)

// DefaultQuietPeriod is how long the asset directory must be quiet before a
// new worker version is rolled out.
const DefaultQuietPeriod = 500 * time.Millisecond

// ManifestWatcher rolls out a new worker version whenever a manifest asset
// changes on disk.
type ManifestWatcher struct {
	container *Container
	logger    *slog.Logger
	assets    map[string]bool
	dir       string
	quiet     time.Duration
}

// NewManifestWatcher watches dir, the local copy of the assets the origin
// serves. Only files named in the container's manifest trigger a rollout.
func NewManifestWatcher(container *Container, dir string, quiet time.Duration, logger *slog.Logger) *ManifestWatcher {
	if quiet <= 0 {
		quiet = DefaultQuietPeriod
	}
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}

	assets := make(map[string]bool, len(container.cfg.Manifest))
	for _, asset := range container.cfg.Manifest {
		assets[filepath.FromSlash(asset)] = true
	}
	return &ManifestWatcher{
		container: container,
		logger:    logger,
		assets:    assets,
		dir:       filepath.Clean(dir),
		quiet:     quiet,
	}
}

// Run blocks until ctx is done.
func (m *ManifestWatcher) Run(ctx context.Context) error {
	w, err := watcher.New(m.logger, watcher.Options{Extensions: m.extensions()})
	if err != nil {
		return err
	}
	defer w.Stop() //nolint:errcheck // best effort on shutdown

	if err := w.Watch(m.dir); err != nil {
		return err
	}

	watchCtx, cancel := context.WithCancel(ctx)
	defer cancel()
	go w.Start(watchCtx) //nolint:errcheck // returns nil on cancel

	m.logger.Info("watching static assets", "dir", m.dir, "assets", len(m.assets))

	timer := time.NewTimer(m.quiet)
	timer.Stop()
	defer timer.Stop()

	for {
		select {
		case <-ctx.Done():
			return nil
		case err, ok := <-w.Errors():
			if ok {
				m.logger.Warn("asset watcher error", "error", err)
			}
		case event, ok := <-w.Events():
			if !ok {
				return nil
			}
			if !m.inManifest(event.Path) {
				continue
			}
			m.logger.Debug("manifest asset changed", "path", event.Path, "change", event.Change)
			timer.Reset(m.quiet)
		case <-timer.C:
			m.rollout(ctx)
		}
	}
}

func (m *ManifestWatcher) inManifest(path string) bool {
	rel, err := filepath.Rel(m.dir, path)
	if err != nil {
		return false
	}
	return m.assets[rel]
}

func (m *ManifestWatcher) rollout(ctx context.Context) {
	version := id.WorkerVersion(m.container.Version())
	w, err := m.container.Update(ctx, version)
	if err != nil {
		m.logger.Error("cache worker rollout failed", "version", version, "error", err)
		return
	}
	m.logger.Info("cache worker rolled out", "version", version, "state", w.State())
}

// extensions lists the distinct extensions of the manifest assets so the
// watcher skips unrelated files early. Assets without one disable the filter.
func (m *ManifestWatcher) extensions() []string {
	var exts []string
	for asset := range m.assets {
		ext := strings.ToLower(filepath.Ext(asset))
		if ext == "" {
			return nil
		}
		if !slices.Contains(exts, ext) {
			exts = append(exts, ext)
		}
	}
	return exts
}
