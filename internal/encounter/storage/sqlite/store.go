// Package sqlite provides a SQLite-backed encounter storage implementation.
package sqlite

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"path/filepath"
	"strings"
	"time"

	"github.com/louisbranch/digivice/internal/encounter/domain"
	"github.com/louisbranch/digivice/internal/encounter/storage"
	sqlitemigrate "github.com/louisbranch/digivice/internal/platform/storage/sqlitemigrate"
	"github.com/louisbranch/digivice/internal/encounter/storage/sqlite/migrations"
	msqlite "modernc.org/sqlite"
	sqlite3lib "modernc.org/sqlite/lib"
)

// Store persists encounter state in SQLite. Encounter aggregates are kept
// as one JSON document per row with a version counter; entity sheets get
// the same treatment keyed by id.
type Store struct {
	sqlDB *sql.DB
}

func toMillis(value time.Time) int64 {
	return value.UTC().UnixMilli()
}

func fromMillis(value int64) time.Time {
	return time.UnixMilli(value).UTC()
}

// Open opens a SQLite encounter store and applies embedded migrations.
func Open(path string) (*Store, error) {
	if strings.TrimSpace(path) == "" {
		return nil, fmt.Errorf("storage path is required")
	}
	cleanPath := filepath.Clean(path)
	dsn := cleanPath + "?_journal_mode=WAL&_foreign_keys=ON&_busy_timeout=5000&_synchronous=NORMAL"
	sqlDB, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("open sqlite db: %w", err)
	}
	if err := sqlDB.Ping(); err != nil {
		_ = sqlDB.Close()
		return nil, fmt.Errorf("ping sqlite db: %w", err)
	}
	if err := sqlitemigrate.Apply(sqlDB, migrations.FS); err != nil {
		_ = sqlDB.Close()
		return nil, fmt.Errorf("run migrations: %w", err)
	}
	return &Store{sqlDB: sqlDB}, nil
}

// Close closes the SQLite handle.
func (s *Store) Close() error {
	if s == nil || s.sqlDB == nil {
		return nil
	}
	return s.sqlDB.Close()
}

// CreateEncounter inserts a new encounter aggregate at version 1.
func (s *Store) CreateEncounter(ctx context.Context, enc domain.Encounter) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if s == nil || s.sqlDB == nil {
		return fmt.Errorf("storage is not configured")
	}
	if strings.TrimSpace(enc.ID) == "" {
		return fmt.Errorf("encounter id is required")
	}
	data, err := json.Marshal(enc)
	if err != nil {
		return fmt.Errorf("marshal encounter: %w", err)
	}
	createdAt := enc.CreatedAt
	if createdAt.IsZero() {
		createdAt = time.Now().UTC()
	}
	updatedAt := enc.UpdatedAt
	if updatedAt.IsZero() {
		updatedAt = createdAt
	}

	_, err = s.sqlDB.ExecContext(
		ctx,
		`INSERT INTO encounters (
		   id, name, phase, round, participants, version, data, created_at, updated_at
		 ) VALUES (?, ?, ?, ?, ?, 1, ?, ?, ?)`,
		enc.ID,
		enc.Name,
		string(enc.Phase),
		enc.Round,
		len(enc.Participants),
		string(data),
		toMillis(createdAt),
		toMillis(updatedAt),
	)
	if err != nil {
		if isUniqueViolation(err) {
			return storage.ErrAlreadyExists
		}
		return fmt.Errorf("create encounter: %w", err)
	}
	return nil
}

// GetEncounter returns an encounter aggregate and its current version.
func (s *Store) GetEncounter(ctx context.Context, id string) (domain.Encounter, int64, error) {
	if err := ctx.Err(); err != nil {
		return domain.Encounter{}, 0, err
	}
	if s == nil || s.sqlDB == nil {
		return domain.Encounter{}, 0, fmt.Errorf("storage is not configured")
	}
	id = strings.TrimSpace(id)
	if id == "" {
		return domain.Encounter{}, 0, fmt.Errorf("encounter id is required")
	}

	row := s.sqlDB.QueryRowContext(
		ctx,
		`SELECT data, version FROM encounters WHERE id = ?`,
		id,
	)
	var data string
	var version int64
	if err := row.Scan(&data, &version); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return domain.Encounter{}, 0, storage.ErrNotFound
		}
		return domain.Encounter{}, 0, fmt.Errorf("get encounter: %w", err)
	}

	var enc domain.Encounter
	if err := json.Unmarshal([]byte(data), &enc); err != nil {
		return domain.Encounter{}, 0, fmt.Errorf("unmarshal encounter: %w", err)
	}
	return enc, version, nil
}

// UpdateEncounter replaces an encounter aggregate if the stored version
// still matches the one the caller read. A mismatch reports
// ErrVersionConflict so the caller can reload and retry or surface the
// lost race.
func (s *Store) UpdateEncounter(ctx context.Context, enc domain.Encounter, expectedVersion int64) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if s == nil || s.sqlDB == nil {
		return fmt.Errorf("storage is not configured")
	}
	if strings.TrimSpace(enc.ID) == "" {
		return fmt.Errorf("encounter id is required")
	}
	data, err := json.Marshal(enc)
	if err != nil {
		return fmt.Errorf("marshal encounter: %w", err)
	}
	updatedAt := enc.UpdatedAt
	if updatedAt.IsZero() {
		updatedAt = time.Now().UTC()
	}

	result, err := s.sqlDB.ExecContext(
		ctx,
		`UPDATE encounters
		    SET name = ?, phase = ?, round = ?, participants = ?,
		        version = version + 1, data = ?, updated_at = ?
		  WHERE id = ? AND version = ?`,
		enc.Name,
		string(enc.Phase),
		enc.Round,
		len(enc.Participants),
		string(data),
		toMillis(updatedAt),
		enc.ID,
		expectedVersion,
	)
	if err != nil {
		return fmt.Errorf("update encounter: %w", err)
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("update encounter: %w", err)
	}
	if affected == 0 {
		row := s.sqlDB.QueryRowContext(ctx, `SELECT 1 FROM encounters WHERE id = ?`, enc.ID)
		var one int
		if scanErr := row.Scan(&one); scanErr != nil {
			if errors.Is(scanErr, sql.ErrNoRows) {
				return storage.ErrNotFound
			}
			return fmt.Errorf("update encounter: %w", scanErr)
		}
		return storage.ErrVersionConflict
	}
	return nil
}

// DeleteEncounter removes an encounter aggregate.
func (s *Store) DeleteEncounter(ctx context.Context, id string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if s == nil || s.sqlDB == nil {
		return fmt.Errorf("storage is not configured")
	}
	id = strings.TrimSpace(id)
	if id == "" {
		return fmt.Errorf("encounter id is required")
	}
	result, err := s.sqlDB.ExecContext(ctx, `DELETE FROM encounters WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("delete encounter: %w", err)
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("delete encounter: %w", err)
	}
	if affected == 0 {
		return storage.ErrNotFound
	}
	return nil
}

// ListEncounters returns summaries ordered by most recently updated.
func (s *Store) ListEncounters(ctx context.Context) ([]storage.EncounterSummary, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if s == nil || s.sqlDB == nil {
		return nil, fmt.Errorf("storage is not configured")
	}

	rows, err := s.sqlDB.QueryContext(
		ctx,
		`SELECT id, name, phase, round, participants, updated_at
		   FROM encounters
		  ORDER BY updated_at DESC`,
	)
	if err != nil {
		return nil, fmt.Errorf("list encounters: %w", err)
	}
	defer rows.Close()

	var summaries []storage.EncounterSummary
	for rows.Next() {
		var summary storage.EncounterSummary
		var phase string
		var updatedAt int64
		if err := rows.Scan(&summary.ID, &summary.Name, &phase, &summary.Round, &summary.Participants, &updatedAt); err != nil {
			return nil, fmt.Errorf("list encounters: %w", err)
		}
		summary.Phase = domain.Phase(phase)
		summary.UpdatedAt = fromMillis(updatedAt)
		summaries = append(summaries, summary)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("list encounters: %w", err)
	}
	return summaries, nil
}

func isUniqueViolation(err error) bool {
	if err == nil {
		return false
	}
	var sqliteErr *msqlite.Error
	if errors.As(err, &sqliteErr) {
		switch sqliteErr.Code() {
		case sqlite3lib.SQLITE_CONSTRAINT_PRIMARYKEY, sqlite3lib.SQLITE_CONSTRAINT_UNIQUE:
			return true
		}
	}
	return strings.Contains(strings.ToLower(err.Error()), "unique constraint failed")
}

var _ storage.Store = (*Store)(nil)
