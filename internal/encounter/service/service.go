// Package service orchestrates encounter commands: load the aggregate,
// run the domain command, write back with a version check, and broadcast
// the new state to stream subscribers.
package service

import (
	"context"
	"log"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"github.com/louisbranch/digivice/internal/dice"
	"github.com/louisbranch/digivice/internal/encounter/domain"
	"github.com/louisbranch/digivice/internal/encounter/storage"
	"github.com/louisbranch/digivice/internal/platform/errors"
	"github.com/louisbranch/digivice/internal/rules"
)

// Event types pushed to stream subscribers.
const (
	EventEncounterCreated = "encounter-created"
	EventEncounterUpdated = "encounter-updated"
	EventEncounterDeleted = "encounter-deleted"
)

// Event is one stream notification. Updated events carry the full
// aggregate so clients never need a follow-up fetch.
type Event struct {
	Type        string            `json:"type"`
	EncounterID string            `json:"encounterId"`
	Encounter   *domain.Encounter `json:"encounter,omitempty"`
}

// Broadcaster pushes events to connected stream clients.
type Broadcaster interface {
	Broadcast(event Event)
}

// casAttempts bounds how often a command retries after losing a version
// race. Re-running the domain command against the fresh snapshot lets it
// decide whether the action still applies (a claimed intercede, for
// example, reports a conflict instead of retrying).
const casAttempts = 3

// Service executes encounter commands against a store.
type Service struct {
	store  storage.Store
	events Broadcaster
	roller *dice.Roller
	now    func() time.Time
	newID  func() (string, error)
	tracer trace.Tracer
}

// New builds a service. The broadcaster may be nil when no stream is
// attached.
func New(store storage.Store, events Broadcaster) (*Service, error) {
	seed, err := dice.NewSeed()
	if err != nil {
		return nil, errors.Wrap(errors.CodeStorage, "seed dice roller", err)
	}
	return &Service{
		store:  store,
		events: events,
		roller: dice.NewRoller(seed),
		now:    time.Now,
		newID:  domain.NewID,
		tracer: otel.Tracer("digivice/encounter"),
	}, nil
}

// newTestService is the deterministic constructor used by tests.
func newTestService(store storage.Store, events Broadcaster, seed int64, now func() time.Time, newID func() (string, error)) *Service {
	return &Service{
		store:  store,
		events: events,
		roller: dice.NewRoller(seed),
		now:    now,
		newID:  newID,
		tracer: otel.Tracer("digivice/encounter"),
	}
}

func (s *Service) publish(event Event) {
	if s.events == nil {
		return
	}
	s.events.Broadcast(event)
}

// loadLibrary reads every entity sheet into the engine's in-memory view.
func (s *Service) loadLibrary(ctx context.Context) (domain.Library, error) {
	tamers, err := s.store.ListTamers(ctx)
	if err != nil {
		return domain.Library{}, errors.Wrap(errors.CodeStorage, "load tamers", err)
	}
	digimon, err := s.store.ListDigimon(ctx)
	if err != nil {
		return domain.Library{}, errors.Wrap(errors.CodeStorage, "load digimon", err)
	}
	lines, err := s.store.ListEvolutionLines(ctx)
	if err != nil {
		return domain.Library{}, errors.Wrap(errors.CodeStorage, "load evolution lines", err)
	}

	library := domain.Library{
		Tamers:         make(map[string]domain.Tamer, len(tamers)),
		Digimon:        make(map[string]domain.Digimon, len(digimon)),
		EvolutionLines: make(map[string]domain.EvolutionLine, len(lines)),
	}
	for _, tamer := range tamers {
		library.Tamers[tamer.ID] = tamer
	}
	for _, dig := range digimon {
		library.Digimon[dig.ID] = dig
	}
	for _, line := range lines {
		library.EvolutionLines[line.ID] = line
	}
	return library, nil
}

func mapStorageErr(err error) error {
	switch {
	case errors.Is(err, storage.ErrNotFound):
		return errors.Wrap(errors.CodeEncounterNotFound, "encounter not found", err)
	case errors.Is(err, storage.ErrAlreadyExists):
		return errors.Wrap(errors.CodeEncounterConflict, "encounter already exists", err)
	case errors.Is(err, storage.ErrVersionConflict):
		return errors.Wrap(errors.CodeEncounterConflict, "encounter changed concurrently", err)
	}
	return errors.Wrap(errors.CodeStorage, "storage failure", err)
}

// mutate runs one command against the aggregate with a bounded
// compare-and-swap loop, then broadcasts the committed state.
func (s *Service) mutate(ctx context.Context, op, encounterID string, fn func(g *domain.Engine, enc *domain.Encounter) error) (*domain.Encounter, error) {
	ctx, span := s.tracer.Start(ctx, "encounter."+op,
		trace.WithAttributes(attribute.String("encounter.id", encounterID)))
	defer span.End()

	library, err := s.loadLibrary(ctx)
	if err != nil {
		return nil, err
	}
	engine := domain.NewEngine(library, s.roller, s.now, s.newID)

	var lastErr error
	for attempt := 0; attempt < casAttempts; attempt++ {
		enc, version, err := s.store.GetEncounter(ctx, encounterID)
		if err != nil {
			return nil, mapStorageErr(err)
		}
		if err := fn(engine, &enc); err != nil {
			span.RecordError(err)
			return nil, err
		}
		if err := s.store.UpdateEncounter(ctx, enc, version); err != nil {
			if errors.Is(err, storage.ErrVersionConflict) {
				lastErr = err
				continue
			}
			return nil, mapStorageErr(err)
		}
		s.publish(Event{Type: EventEncounterUpdated, EncounterID: enc.ID, Encounter: &enc})
		return &enc, nil
	}
	return nil, errors.Wrap(errors.CodeEncounterConflict, "encounter update kept losing version races", lastErr)
}

// CreateEncounter starts a fresh encounter in the setup phase.
func (s *Service) CreateEncounter(ctx context.Context, name string) (*domain.Encounter, error) {
	ctx, span := s.tracer.Start(ctx, "encounter.create")
	defer span.End()

	id, err := s.newID()
	if err != nil {
		return nil, errors.Wrap(errors.CodeStorage, "generate encounter id", err)
	}
	now := s.now()
	enc := domain.Encounter{
		ID:        id,
		Name:      name,
		Phase:     domain.PhaseSetup,
		CreatedAt: now,
		UpdatedAt: now,
	}
	if err := s.store.CreateEncounter(ctx, enc); err != nil {
		return nil, mapStorageErr(err)
	}
	s.publish(Event{Type: EventEncounterCreated, EncounterID: enc.ID, Encounter: &enc})
	return &enc, nil
}

// GetEncounter returns the current aggregate.
func (s *Service) GetEncounter(ctx context.Context, id string) (*domain.Encounter, error) {
	enc, _, err := s.store.GetEncounter(ctx, id)
	if err != nil {
		return nil, mapStorageErr(err)
	}
	return &enc, nil
}

// ListEncounters returns summaries of every stored encounter.
func (s *Service) ListEncounters(ctx context.Context) ([]storage.EncounterSummary, error) {
	summaries, err := s.store.ListEncounters(ctx)
	if err != nil {
		return nil, mapStorageErr(err)
	}
	return summaries, nil
}

// DeleteEncounter removes an encounter entirely.
func (s *Service) DeleteEncounter(ctx context.Context, id string) error {
	if err := s.store.DeleteEncounter(ctx, id); err != nil {
		return mapStorageErr(err)
	}
	s.publish(Event{Type: EventEncounterDeleted, EncounterID: id})
	return nil
}

// AddParticipant joins an entity to the roster.
func (s *Service) AddParticipant(ctx context.Context, encounterID string, in domain.AddParticipantInput) (*domain.Encounter, error) {
	return s.mutate(ctx, "add-participant", encounterID, func(g *domain.Engine, enc *domain.Encounter) error {
		_, err := g.AddParticipant(enc, in)
		return err
	})
}

// RemoveParticipant drops a combatant from the encounter.
func (s *Service) RemoveParticipant(ctx context.Context, encounterID, participantID string) (*domain.Encounter, error) {
	return s.mutate(ctx, "remove-participant", encounterID, func(g *domain.Engine, enc *domain.Encounter) error {
		return g.RemoveParticipant(enc, participantID)
	})
}

// SetStance switches a combatant's stance.
func (s *Service) SetStance(ctx context.Context, encounterID, participantID string, stance string) (*domain.Encounter, error) {
	return s.mutate(ctx, "set-stance", encounterID, func(g *domain.Engine, enc *domain.Encounter) error {
		return g.SetStance(enc, participantID, rules.Stance(stance))
	})
}

// BeginInitiative opens the initiative phase.
func (s *Service) BeginInitiative(ctx context.Context, encounterID string) (*domain.Encounter, error) {
	return s.mutate(ctx, "begin-initiative", encounterID, func(g *domain.Engine, enc *domain.Encounter) error {
		return g.BeginInitiative(enc)
	})
}

// StartCombat locks the turn order and enters combat.
func (s *Service) StartCombat(ctx context.Context, encounterID string) (*domain.Encounter, error) {
	return s.mutate(ctx, "start-combat", encounterID, func(g *domain.Engine, enc *domain.Encounter) error {
		return g.StartCombat(enc)
	})
}

// AdvanceTurn moves to the next turn slot.
func (s *Service) AdvanceTurn(ctx context.Context, encounterID string) (*domain.Encounter, error) {
	return s.mutate(ctx, "advance-turn", encounterID, func(g *domain.Engine, enc *domain.Encounter) error {
		return g.AdvanceTurn(enc)
	})
}

// EndEncounter closes an encounter.
func (s *Service) EndEncounter(ctx context.Context, encounterID string) (*domain.Encounter, error) {
	return s.mutate(ctx, "end-encounter", encounterID, func(g *domain.Engine, enc *domain.Encounter) error {
		return g.EndEncounter(enc)
	})
}

// DeclareAttack runs the attack pipeline until it resolves or suspends.
func (s *Service) DeclareAttack(ctx context.Context, encounterID string, in domain.DeclareAttackInput) (*domain.Encounter, *domain.AttackOutcome, error) {
	var outcome *domain.AttackOutcome
	enc, err := s.mutate(ctx, "declare-attack", encounterID, func(g *domain.Engine, enc *domain.Encounter) error {
		var err error
		outcome, err = g.DeclareAttack(enc, in)
		return err
	})
	if err != nil {
		return nil, nil, err
	}
	return enc, outcome, nil
}

// ResolveNPCAttack applies a GM-rolled attack in one step.
func (s *Service) ResolveNPCAttack(ctx context.Context, encounterID string, in domain.ResolveNPCAttackInput) (*domain.Encounter, error) {
	return s.mutate(ctx, "resolve-npc-attack", encounterID, func(g *domain.Engine, enc *domain.Encounter) error {
		return g.ResolveNPCAttack(enc, in)
	})
}

// ClaimIntercede redirects a suspended attack onto the interceptor. The
// version check on the write makes the first persisted claim win; a later
// claim re-runs against the new snapshot and observes the conflict.
func (s *Service) ClaimIntercede(ctx context.Context, encounterID string, in domain.ClaimIntercedeInput) (*domain.Encounter, error) {
	return s.mutate(ctx, "claim-intercede", encounterID, func(g *domain.Engine, enc *domain.Encounter) error {
		return g.ClaimIntercede(enc, in)
	})
}

// SkipIntercede declines one controller's intercede offer.
func (s *Service) SkipIntercede(ctx context.Context, encounterID string, in domain.SkipIntercedeInput) (*domain.Encounter, error) {
	return s.mutate(ctx, "skip-intercede", encounterID, func(g *domain.Engine, enc *domain.Encounter) error {
		return g.SkipIntercede(enc, in)
	})
}

// CreateRequest opens a GM-issued pending request.
func (s *Service) CreateRequest(ctx context.Context, encounterID string, in domain.CreateRequestInput) (*domain.Encounter, error) {
	return s.mutate(ctx, "create-request", encounterID, func(g *domain.Engine, enc *domain.Encounter) error {
		_, err := g.CreateRequest(enc, in)
		return err
	})
}

// SubmitResponse answers a pending request and applies its side effects.
func (s *Service) SubmitResponse(ctx context.Context, encounterID string, in domain.SubmitResponseInput) (*domain.Encounter, error) {
	return s.mutate(ctx, "submit-response", encounterID, func(g *domain.Engine, enc *domain.Encounter) error {
		return g.SubmitResponse(enc, in)
	})
}

// DeleteRequest force-closes a pending request without resolving it.
func (s *Service) DeleteRequest(ctx context.Context, encounterID, requestID string) (*domain.Encounter, error) {
	return s.mutate(ctx, "delete-request", encounterID, func(g *domain.Engine, enc *domain.Encounter) error {
		return g.DeleteRequest(enc, requestID)
	})
}

// DeleteResponse drops a recorded response.
func (s *Service) DeleteResponse(ctx context.Context, encounterID, responseID string) (*domain.Encounter, error) {
	return s.mutate(ctx, "delete-response", encounterID, func(g *domain.Engine, enc *domain.Encounter) error {
		return g.DeleteResponse(enc, responseID)
	})
}

// Direct grants a digimon a one-shot pool bonus.
func (s *Service) Direct(ctx context.Context, encounterID string, in domain.DirectInput) (*domain.Encounter, error) {
	return s.mutate(ctx, "direct", encounterID, func(g *domain.Engine, enc *domain.Encounter) error {
		return g.Direct(enc, in)
	})
}

// UseSpecialOrder invokes one of a tamer's unlocked special orders.
func (s *Service) UseSpecialOrder(ctx context.Context, encounterID string, in domain.SpecialOrderInput) (*domain.Encounter, error) {
	return s.mutate(ctx, "special-order", encounterID, func(g *domain.Engine, enc *domain.Encounter) error {
		return g.UseSpecialOrder(enc, in)
	})
}

// Digivolve moves a digimon along its evolution chain and persists the
// partnered line's new position.
func (s *Service) Digivolve(ctx context.Context, encounterID string, in domain.DigivolveInput) (*domain.Encounter, error) {
	var update *domain.EvolutionLineUpdate
	enc, err := s.mutate(ctx, "digivolve", encounterID, func(g *domain.Engine, enc *domain.Encounter) error {
		var err error
		update, err = g.Digivolve(enc, in)
		return err
	})
	if err != nil {
		return nil, err
	}
	if update != nil {
		// The aggregate already committed; a failed line write only skews
		// the sheet's remembered position, so log and move on.
		if err := s.store.SetEvolutionLineStage(ctx, update.LineID, update.NewStageIndex); err != nil {
			log.Printf("persist evolution line %s stage %d: %v", update.LineID, update.NewStageIndex, err)
		}
	}
	return enc, nil
}

// FailDigivolve records a failed evolution attempt.
func (s *Service) FailDigivolve(ctx context.Context, encounterID string, in domain.FailDigivolveInput) (*domain.Encounter, error) {
	return s.mutate(ctx, "fail-digivolve", encounterID, func(g *domain.Engine, enc *domain.Encounter) error {
		return g.FailDigivolve(enc, in)
	})
}
