package store

// Snapshot persistence for the theorem corpus. Records are written once on
// add and loaded in bulk on open; embeddings travel as JSON columns so the
// snapshot stays portable across embedding engines of the same dimension.

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"go.uber.org/zap"
	_ "modernc.org/sqlite"

	"normlex/internal/types"
)

const snapshotSchema = `
CREATE TABLE IF NOT EXISTS theorems (
	theorem_id         TEXT PRIMARY KEY,
	formula            TEXT NOT NULL,
	embedding          TEXT,
	scope_start        TEXT,
	scope_end          TEXT,
	jurisdiction       TEXT NOT NULL DEFAULT '',
	legal_domain       TEXT NOT NULL DEFAULT '',
	source_case        TEXT NOT NULL DEFAULT '',
	precedent_strength REAL NOT NULL DEFAULT 1.0,
	created_at         TEXT NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_theorems_jurisdiction ON theorems(jurisdiction);
CREATE INDEX IF NOT EXISTS idx_theorems_domain ON theorems(legal_domain);
`

// openSnapshot opens (creating if needed) the sqlite snapshot and hydrates
// the in-memory indexes from it.
func (s *Store) openSnapshot(path string) error {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return fmt.Errorf("open sqlite snapshot %s: %w", path, err)
	}
	if _, err := db.Exec(snapshotSchema); err != nil {
		db.Close()
		return fmt.Errorf("apply snapshot schema: %w", err)
	}

	rows, err := db.Query(`SELECT theorem_id, formula, embedding, scope_start, scope_end,
		jurisdiction, legal_domain, source_case, precedent_strength, created_at FROM theorems`)
	if err != nil {
		db.Close()
		return fmt.Errorf("load snapshot: %w", err)
	}
	defer rows.Close()

	loaded := 0
	s.mu.Lock()
	for rows.Next() {
		var rec types.TheoremRecord
		var formulaJSON string
		var embeddingJSON, scopeStart, scopeEnd sql.NullString
		var createdAt string

		if err := rows.Scan(&rec.TheoremID, &formulaJSON, &embeddingJSON, &scopeStart, &scopeEnd,
			&rec.Jurisdiction, &rec.LegalDomain, &rec.SourceCase, &rec.PrecedentStrength, &createdAt); err != nil {
			s.log.Warn("skipping unreadable snapshot row", zap.Error(err))
			continue
		}
		if err := json.Unmarshal([]byte(formulaJSON), &rec.Formula); err != nil {
			s.log.Warn("skipping snapshot row with bad formula JSON",
				zap.String("theorem_id", rec.TheoremID), zap.Error(err))
			continue
		}
		if embeddingJSON.Valid && embeddingJSON.String != "" {
			if err := json.Unmarshal([]byte(embeddingJSON.String), &rec.Embedding); err != nil {
				s.log.Warn("skipping snapshot row with bad embedding JSON",
					zap.String("theorem_id", rec.TheoremID), zap.Error(err))
				continue
			}
		}
		rec.TemporalScope.Start = parseSnapshotTime(scopeStart)
		rec.TemporalScope.End = parseSnapshotTime(scopeEnd)
		if t, err := time.Parse(time.RFC3339Nano, createdAt); err == nil {
			rec.CreatedAt = t
		}

		if _, exists := s.records[rec.TheoremID]; !exists {
			s.insertLocked(rec)
			loaded++
		}
	}
	s.db = db
	s.mu.Unlock()

	if err := rows.Err(); err != nil {
		return fmt.Errorf("iterate snapshot rows: %w", err)
	}
	s.log.Info("theorem snapshot loaded", zap.String("path", path), zap.Int("theorems", loaded))
	return nil
}

// persist writes one record to the snapshot. INSERT OR IGNORE keeps the
// content-addressed idempotency at the storage layer too.
func (s *Store) persist(ctx context.Context, rec types.TheoremRecord) error {
	formulaJSON, err := json.Marshal(rec.Formula)
	if err != nil {
		return fmt.Errorf("marshal formula: %w", err)
	}
	embeddingJSON, err := json.Marshal(rec.Embedding)
	if err != nil {
		return fmt.Errorf("marshal embedding: %w", err)
	}

	s.mu.RLock()
	db := s.db
	s.mu.RUnlock()
	if db == nil {
		return nil
	}

	_, err = db.ExecContext(ctx,
		`INSERT OR IGNORE INTO theorems
		 (theorem_id, formula, embedding, scope_start, scope_end, jurisdiction, legal_domain, source_case, precedent_strength, created_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		rec.TheoremID, string(formulaJSON), string(embeddingJSON),
		formatSnapshotTime(rec.TemporalScope.Start), formatSnapshotTime(rec.TemporalScope.End),
		rec.Jurisdiction, rec.LegalDomain, rec.SourceCase, rec.PrecedentStrength,
		rec.CreatedAt.Format(time.RFC3339Nano))
	return err
}

func formatSnapshotTime(t *time.Time) any {
	if t == nil {
		return nil
	}
	return t.UTC().Format(time.RFC3339Nano)
}

func parseSnapshotTime(v sql.NullString) *time.Time {
	if !v.Valid || v.String == "" {
		return nil
	}
	t, err := time.Parse(time.RFC3339Nano, v.String)
	if err != nil {
		return nil
	}
	return &t
}
