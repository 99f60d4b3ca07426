// Package patternstore implements C5, the Pattern & Variant Store, behind
// one interface with two physical layouts (§4.5): layered JSON
// (one file per (status,category) partition, write-to-temp-then-rename,
// grounded on internal/cache.Cache's atomic-write discipline) and a
// single SQLite database (modernc.org/sqlite, logical patterns/variants
// tables). Both honor the same state machine and variant-coverage rule.
package patternstore

import (
	"github.com/driftscan/driftscan/internal/errkind"
	"github.com/driftscan/driftscan/pkg/models"
)

// Store is C5's contract: initialize/save_all/get/get_by_category/
// get_by_status/approve/ignore/delete/create_variant/is_location_covered.
type Store interface {
	Initialize() error
	SaveAll(patterns []models.Pattern) error
	Get(id string) (models.Pattern, error)
	GetByCategory(cat models.Category) ([]models.Pattern, error)
	GetByStatus(status models.Status) ([]models.Pattern, error)
	Approve(id, by string) error
	Ignore(id string) error
	Delete(id string) error
	CreateVariant(v models.Variant) (models.Variant, error)
	IsLocationCovered(patternID string, loc models.Location) (bool, error)
	Close() error
}

// New builds a Store for the requested layout rooted at dir.
func New(layout, dir string) (Store, error) {
	switch layout {
	case "", "layered-json":
		return NewLayeredJSON(dir), nil
	case "sqlite":
		return NewSQLite(dir)
	default:
		return nil, errkind.InvalidArg("patternstore", errUnknownLayout(layout))
	}
}

type unknownLayoutErr string

func (e unknownLayoutErr) Error() string { return "unknown store layout: " + string(e) }

func errUnknownLayout(layout string) error { return unknownLayoutErr(layout) }

// transition validates one state-machine edge per §4.5: discovered ->
// approved/ignored, approved -> ignored, ignored -> approved. Every other
// edge is rejected, ignored -> discovered included; re-detection keeps a
// stored pattern's status, so an ignored pattern stays ignored.
func transition(from, to models.Status) bool {
	switch {
	case from == models.StatusDiscovered && (to == models.StatusApproved || to == models.StatusIgnored):
		return true
	case from == models.StatusApproved && to == models.StatusIgnored:
		return true
	case from == models.StatusIgnored && to == models.StatusApproved:
		return true
	default:
		return false
	}
}
