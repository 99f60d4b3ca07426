package patternstore

import (
	"encoding/json"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/driftscan/driftscan/internal/errkind"
	"github.com/driftscan/driftscan/pkg/models"
)

// LayeredJSON is the "one file per (status,category)" physical layout
// of §4.5, writing via a temp-file-then-rename to guarantee atomicity —
// the same directory/permission discipline as internal/cache.Cache,
// generalized with the rename step the cache doesn't need because it
// is read-repair tolerant, whereas the pattern store's partition
// invariant cannot tolerate a half-written file.
type LayeredJSON struct {
	mu      sync.RWMutex
	dir     string // <.drift>/patterns
	byID    map[string]*models.Pattern
	variant map[string][]models.Variant // pattern id -> variants
}

type patternFile struct {
	Version     string          `json:"version"`
	Category    models.Category `json:"category"`
	Patterns    []models.Pattern `json:"patterns"`
	LastUpdated time.Time       `json:"last_updated"`
}

// NewLayeredJSON constructs a store rooted at dir (typically
// "<project>/.drift/patterns").
func NewLayeredJSON(dir string) *LayeredJSON {
	return &LayeredJSON{dir: dir, byID: map[string]*models.Pattern{}, variant: map[string][]models.Variant{}}
}

func (s *LayeredJSON) Initialize() error {
	if err := os.MkdirAll(filepath.Join(s.dir, "variants"), 0o700); err != nil {
		return errkind.InternalErr("patternstore", err)
	}
	for _, status := range []models.Status{models.StatusDiscovered, models.StatusApproved, models.StatusIgnored} {
		if err := os.MkdirAll(filepath.Join(s.dir, string(status)), 0o700); err != nil {
			return errkind.InternalErr("patternstore", err)
		}
	}
	return s.loadAll()
}

func (s *LayeredJSON) loadAll() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, status := range []models.Status{models.StatusDiscovered, models.StatusApproved, models.StatusIgnored} {
		dirPath := filepath.Join(s.dir, string(status))
		entries, err := os.ReadDir(dirPath)
		if err != nil {
			continue // readers tolerate absent partitions
		}
		for _, e := range entries {
			if e.IsDir() || filepath.Ext(e.Name()) != ".json" {
				continue
			}
			data, err := os.ReadFile(filepath.Join(dirPath, e.Name()))
			if err != nil {
				continue
			}
			var pf patternFile
			if err := json.Unmarshal(data, &pf); err != nil {
				continue
			}
			for i := range pf.Patterns {
				p := pf.Patterns[i]
				p.Status = status
				cp := p
				s.byID[p.ID] = &cp
			}
		}
	}

	variantsDir := filepath.Join(s.dir, "variants")
	entries, err := os.ReadDir(variantsDir)
	if err == nil {
		for _, e := range entries {
			if e.IsDir() || filepath.Ext(e.Name()) != ".json" {
				continue
			}
			data, err := os.ReadFile(filepath.Join(variantsDir, e.Name()))
			if err != nil {
				continue
			}
			var vs []models.Variant
			if err := json.Unmarshal(data, &vs); err != nil {
				continue
			}
			for _, v := range vs {
				s.variant[v.PatternID] = append(s.variant[v.PatternID], v)
			}
		}
	}
	return nil
}

// SaveAll merges newly discovered patterns into the in-memory set and
// commits every touched (status,category) partition atomically.
func (s *LayeredJSON) SaveAll(patterns []models.Pattern) error {
	s.mu.Lock()
	touched := map[models.Status]map[models.Category]bool{}
	for _, p := range patterns {
		if existing, ok := s.byID[p.ID]; ok {
			p.Status = existing.Status
			p.Metadata.FirstSeen = existing.Metadata.FirstSeen
		} else if p.Status == "" {
			p.Status = models.StatusDiscovered
		}
		cp := p
		s.byID[p.ID] = &cp
		if touched[cp.Status] == nil {
			touched[cp.Status] = map[models.Category]bool{}
		}
		touched[cp.Status][cp.Category] = true
	}
	s.mu.Unlock()

	for status, cats := range touched {
		for cat := range cats {
			if err := s.commitPartition(status, cat); err != nil {
				return err
			}
		}
	}
	return nil
}

func (s *LayeredJSON) commitPartition(status models.Status, category models.Category) error {
	s.mu.RLock()
	var patterns []models.Pattern
	for _, p := range s.byID {
		if p.Status == status && p.Category == category {
			patterns = append(patterns, *p)
		}
	}
	s.mu.RUnlock()

	pf := patternFile{Version: "2.0", Category: category, Patterns: patterns, LastUpdated: time.Now().UTC()}
	data, err := json.MarshalIndent(pf, "", "  ")
	if err != nil {
		return errkind.InternalErr("patternstore", err)
	}
	path := filepath.Join(s.dir, string(status), string(category)+".json")
	return atomicWrite(path, data)
}

// atomicWrite implements §4.5's write-to-temp-then-rename discipline.
func atomicWrite(path string, data []byte) error {
	dir := filepath.Dir(path)
	tmp, err := os.CreateTemp(dir, ".tmp-*")
	if err != nil {
		return errkind.Transient("patternstore", path, err)
	}
	tmpPath := tmp.Name()
	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		os.Remove(tmpPath)
		return errkind.Transient("patternstore", path, err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpPath)
		return errkind.Transient("patternstore", path, err)
	}
	if err := os.Rename(tmpPath, path); err != nil {
		os.Remove(tmpPath)
		return errkind.Transient("patternstore", path, err)
	}
	return nil
}

func (s *LayeredJSON) Get(id string) (models.Pattern, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	p, ok := s.byID[id]
	if !ok {
		return models.Pattern{}, errkind.NotFoundErr("patternstore", id, nil)
	}
	return *p, nil
}

func (s *LayeredJSON) GetByCategory(cat models.Category) ([]models.Pattern, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []models.Pattern
	for _, p := range s.byID {
		if p.Category == cat {
			out = append(out, *p)
		}
	}
	return out, nil
}

func (s *LayeredJSON) GetByStatus(status models.Status) ([]models.Pattern, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []models.Pattern
	for _, p := range s.byID {
		if p.Status == status {
			out = append(out, *p)
		}
	}
	return out, nil
}

// Approve transitions id to approved, setting approved_at/approved_by.
// Allowed from discovered or ignored; patterns carry no ignore-specific
// metadata, so nothing else is reset.
func (s *LayeredJSON) Approve(id, by string) error {
	return s.changeStatus(id, models.StatusApproved, func(p *models.Pattern) {
		now := time.Now().UTC()
		p.Metadata.ApprovedAt = &now
		p.Metadata.ApprovedBy = by
	})
}

// Ignore transitions id to ignored. Allowed from discovered or approved.
func (s *LayeredJSON) Ignore(id string) error {
	return s.changeStatus(id, models.StatusIgnored, nil)
}

func (s *LayeredJSON) changeStatus(id string, to models.Status, mutate func(*models.Pattern)) error {
	s.mu.Lock()
	p, ok := s.byID[id]
	if !ok {
		s.mu.Unlock()
		return errkind.NotFoundErr("patternstore", id, nil)
	}
	from := p.Status
	if !transition(from, to) {
		s.mu.Unlock()
		return errkind.InvalidArg("patternstore", errBadTransition(from, to))
	}
	backup := *p
	p.Status = to
	if mutate != nil {
		mutate(p)
	}
	s.mu.Unlock()

	if err := s.commitPartition(from, backup.Category); err != nil {
		s.restore(&backup)
		return err
	}
	if err := s.commitPartition(to, backup.Category); err != nil {
		s.restore(&backup)
		return err
	}
	return nil
}

func (s *LayeredJSON) restore(backup *models.Pattern) {
	s.mu.Lock()
	defer s.mu.Unlock()
	cp := *backup
	s.byID[backup.ID] = &cp
}

func (s *LayeredJSON) Delete(id string) error {
	s.mu.Lock()
	p, ok := s.byID[id]
	if !ok {
		s.mu.Unlock()
		return errkind.NotFoundErr("patternstore", id, nil)
	}
	status, cat := p.Status, p.Category
	delete(s.byID, id)
	s.mu.Unlock()
	return s.commitPartition(status, cat)
}

func (s *LayeredJSON) CreateVariant(v models.Variant) (models.Variant, error) {
	s.mu.Lock()
	if _, ok := s.byID[v.PatternID]; !ok {
		s.mu.Unlock()
		return models.Variant{}, errkind.NotFoundErr("patternstore", v.PatternID, nil)
	}
	if v.ID == "" {
		v.ID = uuid.NewString()
	}
	if v.CreatedAt.IsZero() {
		v.CreatedAt = time.Now().UTC()
	}
	s.variant[v.PatternID] = append(s.variant[v.PatternID], v)
	variants := append([]models.Variant(nil), s.variant[v.PatternID]...)
	s.mu.Unlock()

	data, err := json.MarshalIndent(variants, "", "  ")
	if err != nil {
		return models.Variant{}, errkind.InternalErr("patternstore", err)
	}
	path := filepath.Join(s.dir, "variants", v.PatternID+".json")
	if err := atomicWrite(path, data); err != nil {
		return models.Variant{}, err
	}
	return v, nil
}

// IsLocationCovered implements §4.5's O(1)-by-pattern-id-then-linear-scan
// variant coverage rule.
func (s *LayeredJSON) IsLocationCovered(patternID string, loc models.Location) (bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	for _, v := range s.variant[patternID] {
		if v.Covers(loc) {
			return true, nil
		}
	}
	return false, nil
}

func (s *LayeredJSON) Close() error { return nil }

type badTransitionErr struct {
	from, to models.Status
}

func (e badTransitionErr) Error() string {
	return "invalid status transition: " + string(e.from) + " -> " + string(e.to)
}

func errBadTransition(from, to models.Status) error { return badTransitionErr{from, to} }
