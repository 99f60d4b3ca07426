package patternstore

import (
	"database/sql"
	"encoding/json"
	"path/filepath"
	"time"

	"github.com/google/uuid"
	_ "modernc.org/sqlite"

	"github.com/driftscan/driftscan/internal/errkind"
	"github.com/driftscan/driftscan/pkg/models"
)

// SQLite is the "single database" physical layout of §4.5: a logical
// `patterns(id primary, status, category, payload_json)` table indexed
// on (status,category), plus a `variants` table keyed by pattern_id.
// Behaviorally equivalent to LayeredJSON.
type SQLite struct {
	db *sql.DB
}

// NewSQLite opens (creating if absent) a database file at dir/store.db.
func NewSQLite(dir string) (*SQLite, error) {
	db, err := sql.Open("sqlite", filepath.Join(dir, "store.db"))
	if err != nil {
		return nil, errkind.InternalErr("patternstore", err)
	}
	return &SQLite{db: db}, nil
}

func (s *SQLite) Initialize() error {
	stmts := []string{
		`CREATE TABLE IF NOT EXISTS patterns (
			id TEXT PRIMARY KEY,
			status TEXT NOT NULL,
			category TEXT NOT NULL,
			payload_json TEXT NOT NULL
		)`,
		`CREATE INDEX IF NOT EXISTS idx_patterns_status_category ON patterns(status, category)`,
		`CREATE TABLE IF NOT EXISTS variants (
			id TEXT PRIMARY KEY,
			pattern_id TEXT NOT NULL,
			payload_json TEXT NOT NULL
		)`,
		`CREATE INDEX IF NOT EXISTS idx_variants_pattern_id ON variants(pattern_id)`,
	}
	for _, stmt := range stmts {
		if _, err := s.db.Exec(stmt); err != nil {
			return errkind.InternalErr("patternstore", err)
		}
	}
	return nil
}

func (s *SQLite) SaveAll(patterns []models.Pattern) error {
	tx, err := s.db.Begin()
	if err != nil {
		return errkind.Transient("patternstore", "", err)
	}
	for _, p := range patterns {
		existing, err := s.getTx(tx, p.ID)
		if err == nil {
			p.Status = existing.Status
			p.Metadata.FirstSeen = existing.Metadata.FirstSeen
		} else if p.Status == "" {
			p.Status = models.StatusDiscovered
		}
		payload, merr := json.Marshal(p)
		if merr != nil {
			tx.Rollback()
			return errkind.InternalErr("patternstore", merr)
		}
		if _, err := tx.Exec(
			`INSERT INTO patterns(id,status,category,payload_json) VALUES(?,?,?,?)
			 ON CONFLICT(id) DO UPDATE SET status=excluded.status, category=excluded.category, payload_json=excluded.payload_json`,
			p.ID, string(p.Status), string(p.Category), string(payload),
		); err != nil {
			tx.Rollback()
			return errkind.Transient("patternstore", "", err)
		}
	}
	if err := tx.Commit(); err != nil {
		return errkind.Transient("patternstore", "", err)
	}
	return nil
}

func (s *SQLite) getTx(tx *sql.Tx, id string) (models.Pattern, error) {
	var payload string
	err := tx.QueryRow(`SELECT payload_json FROM patterns WHERE id = ?`, id).Scan(&payload)
	if err != nil {
		return models.Pattern{}, errkind.NotFoundErr("patternstore", id, err)
	}
	var p models.Pattern
	if err := json.Unmarshal([]byte(payload), &p); err != nil {
		return models.Pattern{}, errkind.InternalErr("patternstore", err)
	}
	return p, nil
}

func (s *SQLite) Get(id string) (models.Pattern, error) {
	var payload string
	err := s.db.QueryRow(`SELECT payload_json FROM patterns WHERE id = ?`, id).Scan(&payload)
	if err != nil {
		return models.Pattern{}, errkind.NotFoundErr("patternstore", id, err)
	}
	var p models.Pattern
	if err := json.Unmarshal([]byte(payload), &p); err != nil {
		return models.Pattern{}, errkind.InternalErr("patternstore", err)
	}
	return p, nil
}

func (s *SQLite) GetByCategory(cat models.Category) ([]models.Pattern, error) {
	return s.query(`SELECT payload_json FROM patterns WHERE category = ?`, string(cat))
}

func (s *SQLite) GetByStatus(status models.Status) ([]models.Pattern, error) {
	return s.query(`SELECT payload_json FROM patterns WHERE status = ?`, string(status))
}

func (s *SQLite) query(q string, arg string) ([]models.Pattern, error) {
	rows, err := s.db.Query(q, arg)
	if err != nil {
		return nil, errkind.Transient("patternstore", "", err)
	}
	defer rows.Close()
	var out []models.Pattern
	for rows.Next() {
		var payload string
		if err := rows.Scan(&payload); err != nil {
			return nil, errkind.InternalErr("patternstore", err)
		}
		var p models.Pattern
		if err := json.Unmarshal([]byte(payload), &p); err != nil {
			continue
		}
		out = append(out, p)
	}
	return out, nil
}

func (s *SQLite) Approve(id, by string) error {
	return s.changeStatus(id, models.StatusApproved, func(p *models.Pattern) {
		now := time.Now().UTC()
		p.Metadata.ApprovedAt = &now
		p.Metadata.ApprovedBy = by
	})
}

func (s *SQLite) Ignore(id string) error {
	return s.changeStatus(id, models.StatusIgnored, nil)
}

func (s *SQLite) changeStatus(id string, to models.Status, mutate func(*models.Pattern)) error {
	tx, err := s.db.Begin()
	if err != nil {
		return errkind.Transient("patternstore", "", err)
	}
	p, err := s.getTx(tx, id)
	if err != nil {
		tx.Rollback()
		return err
	}
	if !transition(p.Status, to) {
		tx.Rollback()
		return errkind.InvalidArg("patternstore", errBadTransition(p.Status, to))
	}
	p.Status = to
	if mutate != nil {
		mutate(&p)
	}
	payload, err := json.Marshal(p)
	if err != nil {
		tx.Rollback()
		return errkind.InternalErr("patternstore", err)
	}
	if _, err := tx.Exec(`UPDATE patterns SET status=?, payload_json=? WHERE id=?`, string(to), string(payload), id); err != nil {
		tx.Rollback()
		return errkind.Transient("patternstore", "", err)
	}
	if err := tx.Commit(); err != nil {
		return errkind.Transient("patternstore", "", err)
	}
	return nil
}

func (s *SQLite) Delete(id string) error {
	res, err := s.db.Exec(`DELETE FROM patterns WHERE id = ?`, id)
	if err != nil {
		return errkind.Transient("patternstore", "", err)
	}
	n, _ := res.RowsAffected()
	if n == 0 {
		return errkind.NotFoundErr("patternstore", id, nil)
	}
	return nil
}

func (s *SQLite) CreateVariant(v models.Variant) (models.Variant, error) {
	if _, err := s.Get(v.PatternID); err != nil {
		return models.Variant{}, err
	}
	if v.ID == "" {
		v.ID = uuid.NewString()
	}
	if v.CreatedAt.IsZero() {
		v.CreatedAt = time.Now().UTC()
	}
	payload, err := json.Marshal(v)
	if err != nil {
		return models.Variant{}, errkind.InternalErr("patternstore", err)
	}
	if _, err := s.db.Exec(`INSERT INTO variants(id,pattern_id,payload_json) VALUES(?,?,?)`, v.ID, v.PatternID, string(payload)); err != nil {
		return models.Variant{}, errkind.Transient("patternstore", "", err)
	}
	return v, nil
}

func (s *SQLite) IsLocationCovered(patternID string, loc models.Location) (bool, error) {
	rows, err := s.db.Query(`SELECT payload_json FROM variants WHERE pattern_id = ?`, patternID)
	if err != nil {
		return false, errkind.Transient("patternstore", "", err)
	}
	defer rows.Close()
	for rows.Next() {
		var payload string
		if err := rows.Scan(&payload); err != nil {
			continue
		}
		var v models.Variant
		if err := json.Unmarshal([]byte(payload), &v); err != nil {
			continue
		}
		if v.Covers(loc) {
			return true, nil
		}
	}
	return false, nil
}

func (s *SQLite) Close() error { return s.db.Close() }
