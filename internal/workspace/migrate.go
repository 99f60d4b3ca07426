package workspace

import (
	"encoding/json"
	"os"
	"path/filepath"
	"sort"
	"time"

	"github.com/santhosh-tekuri/jsonschema/v6"

	"github.com/driftscan/driftscan/internal/errkind"
)

// CurrentSchemaVersion is the on-disk state schema version new projects
// are initialized at.
const CurrentSchemaVersion = 1

// Migration applies one schema step, From to To. To reach version N from
// M, Migrate runs every registered migration whose From lies in [M, N),
// one after another.
type Migration struct {
	From, To int
	Apply    func(stateDir string) error
}

// migrations is the registered sequence, in registration order; Migrate
// does not sort it. Migrations run only through an explicit Migrate
// call: SwitchProject and InitProject do not run them.
var migrations []Migration

// RegisterMigration adds a migration step. Intended for callers in
// cmd/driftscan that know about schema changes across releases; the
// workspace package itself ships no migrations yet since it defines the
// only schema version so far.
func RegisterMigration(m Migration) {
	migrations = append(migrations, m)
}

// Migrate advances the project's on-disk state from from to to,
// snapshotting a backup before applying any step, and restoring that
// backup if any step fails. Backups are timestamped and retained per
// retainCount (§4.9's count-based retention decision, see DESIGN.md).
func (m *Manager) Migrate(proj Project, stateDir string, from, to, retainCount int) error {
	if from == to {
		return nil
	}
	backupDir, err := m.backupState(proj, stateDir, retainCount)
	if err != nil {
		return err
	}

	applied := 0
	for _, step := range migrations {
		if step.From < from || step.From >= to {
			continue
		}
		if err := step.Apply(stateDir); err != nil {
			if rerr := restoreState(backupDir, stateDir); rerr != nil {
				return errkind.InternalErr("workspace", rerr)
			}
			return errkind.DetectorErr("workspace", stateDir, err)
		}
		applied++
	}

	reg, err := m.readRegistry()
	if err != nil {
		return err
	}
	p := reg.Projects[proj.Path]
	p.SchemaVer = to
	reg.Projects[proj.Path] = p
	return m.writeRegistry(reg)
}

// backupState copies stateDir into a timestamped backup directory under
// registryDir/backups/<project-name>/<timestamp>, then evicts backups
// beyond retainCount oldest-first. Age is taken from the timestamped
// directory names, which sort chronologically; file mtimes are not read.
func (m *Manager) backupState(proj Project, stateDir string, retainCount int) (string, error) {
	root := filepath.Join(m.registryDir, "backups", proj.Name)
	if err := os.MkdirAll(root, 0o700); err != nil {
		return "", errkind.InternalErr("workspace", err)
	}
	stamp := time.Now().UTC().Format("2006-01-02T15-04-05Z")
	dst := filepath.Join(root, stamp)
	if err := copyTree(stateDir, dst); err != nil {
		return "", errkind.InternalErr("workspace", err)
	}
	if retainCount > 0 {
		if err := evictOldBackups(root, retainCount); err != nil {
			return "", err
		}
	}
	return dst, nil
}

func evictOldBackups(root string, retainCount int) error {
	entries, err := os.ReadDir(root)
	if err != nil {
		return errkind.InternalErr("workspace", err)
	}
	var dirs []os.DirEntry
	for _, e := range entries {
		if e.IsDir() {
			dirs = append(dirs, e)
		}
	}
	sort.Slice(dirs, func(i, j int) bool { return dirs[i].Name() < dirs[j].Name() })
	for len(dirs) > retainCount {
		if err := os.RemoveAll(filepath.Join(root, dirs[0].Name())); err != nil {
			return errkind.InternalErr("workspace", err)
		}
		dirs = dirs[1:]
	}
	return nil
}

func restoreState(backupDir, stateDir string) error {
	if err := os.RemoveAll(stateDir); err != nil {
		return err
	}
	return copyTree(backupDir, stateDir)
}

func copyTree(src, dst string) error {
	return filepath.Walk(src, func(path string, info os.FileInfo, err error) error {
		if err != nil {
			return err
		}
		rel, err := filepath.Rel(src, path)
		if err != nil {
			return err
		}
		target := filepath.Join(dst, rel)
		if info.IsDir() {
			return os.MkdirAll(target, 0o700)
		}
		data, err := os.ReadFile(path)
		if err != nil {
			return err
		}
		if err := os.MkdirAll(filepath.Dir(target), 0o700); err != nil {
			return err
		}
		return os.WriteFile(target, data, 0o600)
	})
}

// compileStateSchema compiles a JSON Schema for a project's persisted
// state (config, registry entry) so that callers can compile it once and
// reuse the *jsonschema.Schema; it does not validate anything itself.
func compileStateSchema(schemaJSON string) (*jsonschema.Schema, error) {
	c := jsonschema.NewCompiler()
	if err := c.AddResource("workspace-state.json", mustDecodeJSON(schemaJSON)); err != nil {
		return nil, errkind.InternalErr("workspace", err)
	}
	sch, err := c.Compile("workspace-state.json")
	if err != nil {
		return nil, errkind.InternalErr("workspace", err)
	}
	return sch, nil
}

func mustDecodeJSON(s string) any {
	var v any
	if err := json.Unmarshal([]byte(s), &v); err != nil {
		panic(err)
	}
	return v
}

// ValidateState runs sch against the decoded JSON document doc.
func ValidateState(sch *jsonschema.Schema, doc any) error {
	if err := sch.Validate(doc); err != nil {
		return errkind.InvalidArg("workspace", err)
	}
	return nil
}

// CompileProjectStateSchema compiles ProjectStateSchema once; callers
// should reuse the returned *jsonschema.Schema across ValidateState calls.
func CompileProjectStateSchema() (*jsonschema.Schema, error) {
	return compileStateSchema(ProjectStateSchema)
}

// ProjectStateSchema is the schema every registry entry must satisfy.
const ProjectStateSchema = `{
  "type": "object",
  "required": ["name", "path", "schema_version"],
  "properties": {
    "name": {"type": "string", "minLength": 1},
    "path": {"type": "string", "minLength": 1},
    "ref": {"type": "string"},
    "schema_version": {"type": "integer", "minimum": 1}
  }
}`
