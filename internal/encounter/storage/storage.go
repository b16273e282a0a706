// Package storage defines persistence contracts for encounter state.
package storage

import (
	"context"
	"errors"
	"time"

	"github.com/louisbranch/digivice/internal/encounter/domain"
)

var (
	// ErrNotFound indicates a requested record is missing.
	ErrNotFound = errors.New("record not found")
	// ErrAlreadyExists indicates a uniqueness-constrained record already exists.
	ErrAlreadyExists = errors.New("record already exists")
	// ErrVersionConflict indicates a compare-and-swap update lost to a
	// concurrent writer.
	ErrVersionConflict = errors.New("version conflict")
)

// EncounterSummary is the listing projection of an encounter.
type EncounterSummary struct {
	ID           string       `json:"id"`
	Name         string       `json:"name"`
	Phase        domain.Phase `json:"phase"`
	Round        int          `json:"round"`
	Participants int          `json:"participants"`
	UpdatedAt    time.Time    `json:"updatedAt"`
}

// EncounterStore persists encounter aggregates. Updates are versioned:
// a write must present the version it read, and the first claim on a
// pending intercede group wins by winning the version race.
type EncounterStore interface {
	CreateEncounter(ctx context.Context, enc domain.Encounter) error
	GetEncounter(ctx context.Context, id string) (domain.Encounter, int64, error)
	UpdateEncounter(ctx context.Context, enc domain.Encounter, expectedVersion int64) error
	DeleteEncounter(ctx context.Context, id string) error
	ListEncounters(ctx context.Context) ([]EncounterSummary, error)
}

// EntityStore persists the tamer, digimon, and evolution line sheets the
// engine reads into its library.
type EntityStore interface {
	PutTamer(ctx context.Context, tamer domain.Tamer) error
	GetTamer(ctx context.Context, id string) (domain.Tamer, error)
	ListTamers(ctx context.Context) ([]domain.Tamer, error)

	PutDigimon(ctx context.Context, dig domain.Digimon) error
	GetDigimon(ctx context.Context, id string) (domain.Digimon, error)
	ListDigimon(ctx context.Context) ([]domain.Digimon, error)

	PutEvolutionLine(ctx context.Context, line domain.EvolutionLine) error
	GetEvolutionLine(ctx context.Context, id string) (domain.EvolutionLine, error)
	ListEvolutionLines(ctx context.Context) ([]domain.EvolutionLine, error)
	SetEvolutionLineStage(ctx context.Context, id string, stageIndex int) error
}

// Store is the combined persistence surface the encounter service uses.
type Store interface {
	EncounterStore
	EntityStore
}
