package workspace

import (
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"time"

	"github.com/driftscan/driftscan/internal/errkind"
	"github.com/driftscan/driftscan/pkg/config"
)

// contextCacheEntry is the on-disk shape of a cached WorkspaceContext,
// following internal/cache.Entry's timestamp-plus-payload shape.
type contextCacheEntry struct {
	Timestamp time.Time       `json:"timestamp"`
	Context   WorkspaceContext `json:"context"`
}

func (m *Manager) contextCachePath(proj Project) string {
	return filepath.Join(m.registryDir, "context-cache", proj.Name+".json")
}

// LoadContext returns proj's WorkspaceContext, served from cache when the
// cached entry is younger than cfg.Workspace.ContextCacheTTLSec and
// forceRefresh is false. On a cache miss or forced refresh it rebuilds by
// running every enrichment analyzer over files and writes the fresh
// result back to cache before returning it.
func (m *Manager) LoadContext(ctx context.Context, cfg *config.Config, proj Project, files []string, forceRefresh bool) (WorkspaceContext, []error) {
	ttl := time.Duration(cfg.Workspace.ContextCacheTTLSec) * time.Second
	if !forceRefresh {
		if entry, ok := m.readContextCache(proj); ok && time.Since(entry.Timestamp) < ttl {
			return entry.Context, nil
		}
	}

	builder := newContextBuilder(cfg)
	defer builder.Close()
	wc, errs := builder.BuildContext(ctx, proj, files)

	if err := m.writeContextCache(proj, wc); err != nil {
		errs = append(errs, err)
	}
	_ = m.TouchLoaded(proj.Path)
	return wc, errs
}

func (m *Manager) readContextCache(proj Project) (contextCacheEntry, bool) {
	var entry contextCacheEntry
	data, err := os.ReadFile(m.contextCachePath(proj))
	if err != nil {
		return entry, false
	}
	if err := json.Unmarshal(data, &entry); err != nil {
		return entry, false
	}
	return entry, true
}

func (m *Manager) writeContextCache(proj Project, wc WorkspaceContext) error {
	dir := filepath.Dir(m.contextCachePath(proj))
	if err := os.MkdirAll(dir, 0o700); err != nil {
		return errkind.InternalErr("workspace", err)
	}
	entry := contextCacheEntry{Timestamp: time.Now().UTC(), Context: wc}
	data, err := json.MarshalIndent(entry, "", "  ")
	if err != nil {
		return errkind.InternalErr("workspace", err)
	}
	tmp := m.contextCachePath(proj) + ".tmp"
	if err := os.WriteFile(tmp, data, 0o600); err != nil {
		return errkind.InternalErr("workspace", err)
	}
	return os.Rename(tmp, m.contextCachePath(proj))
}

// InvalidateContext removes proj's cached context, forcing the next
// LoadContext to rebuild regardless of TTL. It runs only when called;
// neither a scan nor Migrate calls it.
func (m *Manager) InvalidateContext(proj Project) error {
	err := os.Remove(m.contextCachePath(proj))
	if err != nil && !os.IsNotExist(err) {
		return errkind.InternalErr("workspace", err)
	}
	return nil
}
