// Package registry implements C2, the Detector Registry: it holds
// detector descriptors and factories keyed by unique id, supports lazy
// construction, and answers category/language/method queries. Grounded
// on two teacher shapes: the uniform Analyze/Close contract of
// pkg/analyzer/analyzer.go's FileAnalyzer[T], and the
// map-plus-category-index shape of VIGILUM's PatternDetector and
// code-pathfinder's PatternRegistry (Patterns map[string]*Pattern,
// PatternsByType map[Type][]*Pattern).
package registry

import (
	"fmt"
	"log"
	"regexp"
	"sort"
	"sync"

	"github.com/driftscan/driftscan/internal/detectors"
	"github.com/driftscan/driftscan/internal/errkind"
	"github.com/driftscan/driftscan/pkg/models"
)

var idPattern = regexp.MustCompile(`^[a-z][a-z0-9-]*(/[a-z][a-z0-9-]*)+$`)

// Factory lazily constructs a Detector on first use.
type Factory func() detectors.Detector

// Info is the registration metadata recorded alongside a detector.
type Info struct {
	Category        models.Category
	Subcategory     string
	Languages       []string // empty means "all languages"
	DetectionMethod models.DetectionMethod
	Priority        int
	Enabled         bool
}

type entry struct {
	id      string
	info    Info
	factory Factory
	built   detectors.Detector
	once    sync.Once
}

// Hooks are invoked synchronously around registration/unload/file-change
// events. A hook panic is recovered and logged, and never unregisters
// the detector (§4.2).
type Hooks struct {
	OnRegister  func(id string)
	OnUnload    func(id string)
	OnFileChange func(id, file string)
}

// Registry holds detector descriptors and factories keyed by id.
type Registry struct {
	mu      sync.RWMutex
	entries map[string]*entry
	order   []string // registration order, for stable prefix enumeration
	hooks   Hooks
}

// New creates an empty Registry.
func New(hooks Hooks) *Registry {
	return &Registry{entries: make(map[string]*entry), hooks: hooks}
}

// Register adds a detector under id. Fails with InvalidArgument
// (DuplicateId) if id is already present unless override is true.
func (r *Registry) Register(id string, d detectors.Detector, info Info, override bool) error {
	return r.RegisterFactory(id, func() detectors.Detector { return d }, info, override)
}

// RegisterFactory registers a lazy-construction factory for id.
func (r *Registry) RegisterFactory(id string, f Factory, info Info, override bool) error {
	if !idPattern.MatchString(id) {
		return errkind.InvalidArg("registry", fmt.Errorf("invalid detector id %q", id))
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.entries[id]; exists && !override {
		return errkind.InvalidArg("registry", fmt.Errorf("duplicate detector id %q", id))
	}
	if _, exists := r.entries[id]; !exists {
		r.order = append(r.order, id)
	}
	r.entries[id] = &entry{id: id, info: info, factory: f}

	if r.hooks.OnRegister != nil {
		safeCall(func() { r.hooks.OnRegister(id) })
	}
	return nil
}

// Get returns the (lazily constructed) detector for id.
func (r *Registry) Get(id string) (detectors.Detector, error) {
	r.mu.RLock()
	e, ok := r.entries[id]
	r.mu.RUnlock()
	if !ok {
		return nil, errkind.NotFoundErr("registry", id, fmt.Errorf("no detector registered with id %q", id))
	}
	e.once.Do(func() { e.built = e.factory() })
	return e.built, nil
}

// SetEnabled toggles a detector's enabled flag. Idempotent.
func (r *Registry) SetEnabled(id string, enabled bool) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	e, ok := r.entries[id]
	if !ok {
		return errkind.NotFoundErr("registry", id, fmt.Errorf("no detector registered with id %q", id))
	}
	e.info.Enabled = enabled
	return nil
}

// Unload removes a detector from the registry, invoking OnUnload.
func (r *Registry) Unload(id string) {
	r.mu.Lock()
	_, ok := r.entries[id]
	delete(r.entries, id)
	for i, o := range r.order {
		if o == id {
			r.order = append(r.order[:i], r.order[i+1:]...)
			break
		}
	}
	r.mu.Unlock()
	if ok && r.hooks.OnUnload != nil {
		safeCall(func() { r.hooks.OnUnload(id) })
	}
}

// NotifyFileChange invokes OnFileChange for every registered detector.
func (r *Registry) NotifyFileChange(file string) {
	r.mu.RLock()
	ids := append([]string(nil), r.order...)
	r.mu.RUnlock()
	if r.hooks.OnFileChange == nil {
		return
	}
	for _, id := range ids {
		id := id
		safeCall(func() { r.hooks.OnFileChange(id, file) })
	}
}

// Query is the filter set accepted by Query.
type Query struct {
	Category        models.Category
	Subcategory     string
	Language        string
	DetectionMethod models.DetectionMethod
	EnabledOnly     bool
	IDPattern       *regexp.Regexp
}

// QueryResult is one matched registration.
type QueryResult struct {
	ID   string
	Info Info
}

// Query returns matching detectors ordered by descending priority, then
// stably by id.
func (r *Registry) Query(q Query) []QueryResult {
	r.mu.RLock()
	defer r.mu.RUnlock()

	var out []QueryResult
	for _, id := range r.order {
		e, ok := r.entries[id]
		if !ok {
			continue
		}
		if q.Category != "" && e.info.Category != q.Category {
			continue
		}
		if q.Subcategory != "" && e.info.Subcategory != q.Subcategory {
			continue
		}
		if q.DetectionMethod != "" && e.info.DetectionMethod != q.DetectionMethod {
			continue
		}
		if q.EnabledOnly && !e.info.Enabled {
			continue
		}
		if q.IDPattern != nil && !q.IDPattern.MatchString(id) {
			continue
		}
		if q.Language != "" && len(e.info.Languages) > 0 && !contains(e.info.Languages, q.Language) {
			continue
		}
		out = append(out, QueryResult{ID: id, Info: e.info})
	}

	sort.SliceStable(out, func(i, j int) bool {
		if out[i].Info.Priority != out[j].Info.Priority {
			return out[i].Info.Priority > out[j].Info.Priority
		}
		return out[i].ID < out[j].ID
	})
	return out
}

// Size returns the number of registered detectors.
func (r *Registry) Size() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.entries)
}

func contains(xs []string, x string) bool {
	for _, v := range xs {
		if v == x {
			return true
		}
	}
	return false
}

func safeCall(f func()) {
	defer func() {
		if r := recover(); r != nil {
			log.Printf("registry: lifecycle hook panicked: %v", r)
		}
	}() // hooks must never propagate a panic per §4.2
	f()
}
