package sqlite

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/louisbranch/digivice/internal/encounter/domain"
	"github.com/louisbranch/digivice/internal/encounter/storage"
)

// PutTamer inserts or replaces a tamer sheet.
func (s *Store) PutTamer(ctx context.Context, tamer domain.Tamer) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if s == nil || s.sqlDB == nil {
		return fmt.Errorf("storage is not configured")
	}
	if strings.TrimSpace(tamer.ID) == "" {
		return fmt.Errorf("tamer id is required")
	}
	data, err := json.Marshal(tamer)
	if err != nil {
		return fmt.Errorf("marshal tamer: %w", err)
	}
	_, err = s.sqlDB.ExecContext(
		ctx,
		`INSERT INTO tamers (id, name, data, updated_at) VALUES (?, ?, ?, ?)
		 ON CONFLICT(id) DO UPDATE SET name = excluded.name, data = excluded.data, updated_at = excluded.updated_at`,
		tamer.ID,
		tamer.Name,
		string(data),
		toMillis(time.Now()),
	)
	if err != nil {
		return fmt.Errorf("put tamer: %w", err)
	}
	return nil
}

// GetTamer returns one tamer sheet by id.
func (s *Store) GetTamer(ctx context.Context, id string) (domain.Tamer, error) {
	var tamer domain.Tamer
	if err := s.getJSON(ctx, "tamers", id, &tamer); err != nil {
		return domain.Tamer{}, err
	}
	return tamer, nil
}

// ListTamers returns every tamer sheet.
func (s *Store) ListTamers(ctx context.Context) ([]domain.Tamer, error) {
	rows, err := s.listJSON(ctx, "tamers")
	if err != nil {
		return nil, err
	}
	tamers := make([]domain.Tamer, 0, len(rows))
	for _, raw := range rows {
		var tamer domain.Tamer
		if err := json.Unmarshal([]byte(raw), &tamer); err != nil {
			return nil, fmt.Errorf("unmarshal tamer: %w", err)
		}
		tamers = append(tamers, tamer)
	}
	return tamers, nil
}

// PutDigimon inserts or replaces a digimon sheet.
func (s *Store) PutDigimon(ctx context.Context, dig domain.Digimon) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if s == nil || s.sqlDB == nil {
		return fmt.Errorf("storage is not configured")
	}
	if strings.TrimSpace(dig.ID) == "" {
		return fmt.Errorf("digimon id is required")
	}
	data, err := json.Marshal(dig)
	if err != nil {
		return fmt.Errorf("marshal digimon: %w", err)
	}
	_, err = s.sqlDB.ExecContext(
		ctx,
		`INSERT INTO digimon (id, name, partner_id, data, updated_at) VALUES (?, ?, ?, ?, ?)
		 ON CONFLICT(id) DO UPDATE SET name = excluded.name, partner_id = excluded.partner_id,
		                               data = excluded.data, updated_at = excluded.updated_at`,
		dig.ID,
		dig.Name,
		dig.PartnerID,
		string(data),
		toMillis(time.Now()),
	)
	if err != nil {
		return fmt.Errorf("put digimon: %w", err)
	}
	return nil
}

// GetDigimon returns one digimon sheet by id.
func (s *Store) GetDigimon(ctx context.Context, id string) (domain.Digimon, error) {
	var dig domain.Digimon
	if err := s.getJSON(ctx, "digimon", id, &dig); err != nil {
		return domain.Digimon{}, err
	}
	return dig, nil
}

// ListDigimon returns every digimon sheet.
func (s *Store) ListDigimon(ctx context.Context) ([]domain.Digimon, error) {
	rows, err := s.listJSON(ctx, "digimon")
	if err != nil {
		return nil, err
	}
	digimon := make([]domain.Digimon, 0, len(rows))
	for _, raw := range rows {
		var dig domain.Digimon
		if err := json.Unmarshal([]byte(raw), &dig); err != nil {
			return nil, fmt.Errorf("unmarshal digimon: %w", err)
		}
		digimon = append(digimon, dig)
	}
	return digimon, nil
}

// PutEvolutionLine inserts or replaces an evolution line.
func (s *Store) PutEvolutionLine(ctx context.Context, line domain.EvolutionLine) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if s == nil || s.sqlDB == nil {
		return fmt.Errorf("storage is not configured")
	}
	if strings.TrimSpace(line.ID) == "" {
		return fmt.Errorf("evolution line id is required")
	}
	data, err := json.Marshal(line)
	if err != nil {
		return fmt.Errorf("marshal evolution line: %w", err)
	}
	_, err = s.sqlDB.ExecContext(
		ctx,
		`INSERT INTO evolution_lines (id, name, current_stage_index, data, updated_at) VALUES (?, ?, ?, ?, ?)
		 ON CONFLICT(id) DO UPDATE SET name = excluded.name, current_stage_index = excluded.current_stage_index,
		                               data = excluded.data, updated_at = excluded.updated_at`,
		line.ID,
		line.Name,
		line.CurrentStageIndex,
		string(data),
		toMillis(time.Now()),
	)
	if err != nil {
		return fmt.Errorf("put evolution line: %w", err)
	}
	return nil
}

// GetEvolutionLine returns one evolution line by id.
func (s *Store) GetEvolutionLine(ctx context.Context, id string) (domain.EvolutionLine, error) {
	var line domain.EvolutionLine
	if err := s.getJSON(ctx, "evolution_lines", id, &line); err != nil {
		return domain.EvolutionLine{}, err
	}
	return line, nil
}

// ListEvolutionLines returns every evolution line.
func (s *Store) ListEvolutionLines(ctx context.Context) ([]domain.EvolutionLine, error) {
	rows, err := s.listJSON(ctx, "evolution_lines")
	if err != nil {
		return nil, err
	}
	lines := make([]domain.EvolutionLine, 0, len(rows))
	for _, raw := range rows {
		var line domain.EvolutionLine
		if err := json.Unmarshal([]byte(raw), &line); err != nil {
			return nil, fmt.Errorf("unmarshal evolution line: %w", err)
		}
		lines = append(lines, line)
	}
	return lines, nil
}

// SetEvolutionLineStage persists a partnered line's new chain position
// after an evolve or devolve.
func (s *Store) SetEvolutionLineStage(ctx context.Context, id string, stageIndex int) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if s == nil || s.sqlDB == nil {
		return fmt.Errorf("storage is not configured")
	}
	line, err := s.GetEvolutionLine(ctx, id)
	if err != nil {
		return err
	}
	if stageIndex < 0 || stageIndex >= len(line.Chain) {
		return fmt.Errorf("stage index %d out of range for line %s", stageIndex, id)
	}
	line.CurrentStageIndex = stageIndex
	return s.PutEvolutionLine(ctx, line)
}

// getJSON reads the data document of a single row from one of the entity
// tables. The table name is always a compile-time constant here.
func (s *Store) getJSON(ctx context.Context, table, id string, out any) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if s == nil || s.sqlDB == nil {
		return fmt.Errorf("storage is not configured")
	}
	id = strings.TrimSpace(id)
	if id == "" {
		return fmt.Errorf("id is required")
	}
	row := s.sqlDB.QueryRowContext(ctx, `SELECT data FROM `+table+` WHERE id = ?`, id)
	var data string
	if err := row.Scan(&data); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return storage.ErrNotFound
		}
		return fmt.Errorf("get %s: %w", table, err)
	}
	if err := json.Unmarshal([]byte(data), out); err != nil {
		return fmt.Errorf("unmarshal %s: %w", table, err)
	}
	return nil
}

func (s *Store) listJSON(ctx context.Context, table string) ([]string, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if s == nil || s.sqlDB == nil {
		return nil, fmt.Errorf("storage is not configured")
	}
	rows, err := s.sqlDB.QueryContext(ctx, `SELECT data FROM `+table+` ORDER BY id ASC`)
	if err != nil {
		return nil, fmt.Errorf("list %s: %w", table, err)
	}
	defer rows.Close()

	var documents []string
	for rows.Next() {
		var data string
		if err := rows.Scan(&data); err != nil {
			return nil, fmt.Errorf("list %s: %w", table, err)
		}
		documents = append(documents, data)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("list %s: %w", table, err)
	}
	return documents, nil
}
