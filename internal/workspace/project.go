// Package workspace implements C9, the Workspace Manager: a registry of
// known projects, schema-versioned on-disk state with backup/rollback
// migration, and a TTL-cached WorkspaceContext summary. The registry file
// follows pkg/config.Load*'s atomic read-then-decode discipline; the
// context cache is a per-project JSON file with its own TTL check (it
// does not use internal/cache); the
// context itself is built by composing pkg/analyzer/repomap (PageRank
// symbol map), pkg/analyzer/duplicates, pkg/analyzer/smells,
// pkg/analyzer/satd and pkg/analyzer/deadcode — the same analyzers the
// dropped pkg/analyzer/score package would have weighted into a single
// composite, now surfaced individually plus an optional DriftScore.
package workspace

import (
	"encoding/json"
	"os"
	"path/filepath"
	"time"

	"github.com/driftscan/driftscan/internal/errkind"
	"github.com/driftscan/driftscan/internal/vcs"
)

// Project is one registered workspace root.
type Project struct {
	Name       string    `json:"name"`
	Path       string    `json:"path"`
	Ref        string    `json:"ref"`
	SchemaVer  int       `json:"schema_version"`
	CreatedAt  time.Time `json:"created_at"`
	LastLoaded time.Time `json:"last_loaded"`
}

// registryFile is the on-disk shape of the project registry, kept under
// the first-registered project's .drift directory... in practice callers
// pass an explicit registryDir (typically ~/.driftscan).
type registryFile struct {
	Projects map[string]Project `json:"projects"`
	Active   string              `json:"active"`
}

// Manager owns the project registry and per-project context cache.
type Manager struct {
	registryDir string
}

// NewManager opens (without yet reading) the registry rooted at registryDir.
func NewManager(registryDir string) *Manager {
	return &Manager{registryDir: registryDir}
}

func (m *Manager) registryPath() string {
	return filepath.Join(m.registryDir, "projects.json")
}

func (m *Manager) readRegistry() (registryFile, error) {
	reg := registryFile{Projects: map[string]Project{}}
	data, err := os.ReadFile(m.registryPath())
	if err != nil {
		if os.IsNotExist(err) {
			return reg, nil
		}
		return reg, errkind.InternalErr("workspace", err)
	}
	if err := json.Unmarshal(data, &reg); err != nil {
		return reg, errkind.InternalErr("workspace", err)
	}
	if reg.Projects == nil {
		reg.Projects = map[string]Project{}
	}
	return reg, nil
}

// writeRegistry persists reg via write-to-temp-then-rename, the same
// atomic-write discipline internal/cache and internal/patternstore use.
func (m *Manager) writeRegistry(reg registryFile) error {
	if err := os.MkdirAll(m.registryDir, 0o700); err != nil {
		return errkind.InternalErr("workspace", err)
	}
	data, err := json.MarshalIndent(reg, "", "  ")
	if err != nil {
		return errkind.InternalErr("workspace", err)
	}
	tmp := m.registryPath() + ".tmp"
	if err := os.WriteFile(tmp, data, 0o600); err != nil {
		return errkind.InternalErr("workspace", err)
	}
	if err := os.Rename(tmp, m.registryPath()); err != nil {
		return errkind.InternalErr("workspace", err)
	}
	return nil
}

// InitProject registers path as a project, named by its base directory.
// If force is false and path is already registered, the existing record
// is returned unchanged rather than re-initialized.
func (m *Manager) InitProject(path string, force bool) (Project, error) {
	abs, err := filepath.Abs(path)
	if err != nil {
		return Project{}, errkind.InvalidArg("workspace", err)
	}
	reg, err := m.readRegistry()
	if err != nil {
		return Project{}, err
	}
	if existing, ok := reg.Projects[abs]; ok && !force {
		return existing, nil
	}

	ref, _ := vcs.GetCurrentRef(abs) // best-effort: non-git projects have no ref
	p := Project{
		Name:      filepath.Base(abs),
		Path:      abs,
		Ref:       ref,
		SchemaVer: CurrentSchemaVersion,
		CreatedAt: time.Now().UTC(),
	}
	reg.Projects[abs] = p
	if reg.Active == "" {
		reg.Active = abs
	}
	if err := m.writeRegistry(reg); err != nil {
		return Project{}, err
	}
	return p, nil
}

// SwitchProject makes ref (a project path or name) the active project.
func (m *Manager) SwitchProject(ref string) (Project, error) {
	reg, err := m.readRegistry()
	if err != nil {
		return Project{}, err
	}
	abs, err := filepath.Abs(ref)
	if err == nil {
		if p, ok := reg.Projects[abs]; ok {
			reg.Active = abs
			return p, m.writeRegistry(reg)
		}
	}
	for path, p := range reg.Projects {
		if p.Name == ref {
			reg.Active = path
			return p, m.writeRegistry(reg)
		}
	}
	return Project{}, errkind.NotFoundErr("workspace", ref, nil)
}

// ActiveProject returns the currently active project, if any.
func (m *Manager) ActiveProject() (Project, bool, error) {
	reg, err := m.readRegistry()
	if err != nil {
		return Project{}, false, err
	}
	if reg.Active == "" {
		return Project{}, false, nil
	}
	p, ok := reg.Projects[reg.Active]
	return p, ok, nil
}

// TouchLoaded records that path's context was just (re)loaded.
func (m *Manager) TouchLoaded(path string) error {
	abs, err := filepath.Abs(path)
	if err != nil {
		return errkind.InvalidArg("workspace", err)
	}
	reg, err := m.readRegistry()
	if err != nil {
		return err
	}
	p, ok := reg.Projects[abs]
	if !ok {
		return errkind.NotFoundErr("workspace", path, nil)
	}
	p.LastLoaded = time.Now().UTC()
	reg.Projects[abs] = p
	return m.writeRegistry(reg)
}
