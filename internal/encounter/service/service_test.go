package service

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/louisbranch/digivice/internal/encounter/domain"
	"github.com/louisbranch/digivice/internal/encounter/storage"
	"github.com/louisbranch/digivice/internal/platform/errors"
	"github.com/louisbranch/digivice/internal/rules"
)

// fakeStore is an in-memory storage.Store. Encounter reads and writes go
// through JSON so callers never alias the stored aggregate's slices.
// updateConflicts injects that many version conflicts before writes
// succeed; onConflict runs after each injected conflict so tests can
// simulate the concurrent writer that won the race.
type fakeStore struct {
	mu              sync.Mutex
	encounters      map[string]string
	versions        map[string]int64
	tamers          map[string]domain.Tamer
	digimon         map[string]domain.Digimon
	lines           map[string]domain.EvolutionLine
	stageWrites     []string
	updateConflicts int
	onConflict      func(s *fakeStore)
}

var _ storage.Store = (*fakeStore)(nil)

func newFakeStore() *fakeStore {
	return &fakeStore{
		encounters: make(map[string]string),
		versions:   make(map[string]int64),
		tamers:     make(map[string]domain.Tamer),
		digimon:    make(map[string]domain.Digimon),
		lines:      make(map[string]domain.EvolutionLine),
	}
}

func (s *fakeStore) seedEncounter(t *testing.T, enc domain.Encounter) {
	t.Helper()
	data, err := json.Marshal(enc)
	if err != nil {
		t.Fatalf("seed encounter: %v", err)
	}
	s.encounters[enc.ID] = string(data)
	s.versions[enc.ID] = 1
}

func (s *fakeStore) CreateEncounter(_ context.Context, enc domain.Encounter) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.encounters[enc.ID]; ok {
		return storage.ErrAlreadyExists
	}
	data, err := json.Marshal(enc)
	if err != nil {
		return err
	}
	s.encounters[enc.ID] = string(data)
	s.versions[enc.ID] = 1
	return nil
}

func (s *fakeStore) GetEncounter(_ context.Context, id string) (domain.Encounter, int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	data, ok := s.encounters[id]
	if !ok {
		return domain.Encounter{}, 0, storage.ErrNotFound
	}
	var enc domain.Encounter
	if err := json.Unmarshal([]byte(data), &enc); err != nil {
		return domain.Encounter{}, 0, err
	}
	return enc, s.versions[id], nil
}

func (s *fakeStore) UpdateEncounter(_ context.Context, enc domain.Encounter, expectedVersion int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.encounters[enc.ID]; !ok {
		return storage.ErrNotFound
	}
	if s.updateConflicts > 0 {
		s.updateConflicts--
		if s.onConflict != nil {
			s.onConflict(s)
		}
		return storage.ErrVersionConflict
	}
	if s.versions[enc.ID] != expectedVersion {
		return storage.ErrVersionConflict
	}
	data, err := json.Marshal(enc)
	if err != nil {
		return err
	}
	s.encounters[enc.ID] = string(data)
	s.versions[enc.ID]++
	return nil
}

func (s *fakeStore) DeleteEncounter(_ context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.encounters[id]; !ok {
		return storage.ErrNotFound
	}
	delete(s.encounters, id)
	delete(s.versions, id)
	return nil
}

func (s *fakeStore) ListEncounters(_ context.Context) ([]storage.EncounterSummary, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	summaries := make([]storage.EncounterSummary, 0, len(s.encounters))
	for id, data := range s.encounters {
		var enc domain.Encounter
		if err := json.Unmarshal([]byte(data), &enc); err != nil {
			return nil, err
		}
		summaries = append(summaries, storage.EncounterSummary{
			ID: id, Name: enc.Name, Phase: enc.Phase, Round: enc.Round,
			Participants: len(enc.Participants), UpdatedAt: enc.UpdatedAt,
		})
	}
	return summaries, nil
}

func (s *fakeStore) PutTamer(_ context.Context, tamer domain.Tamer) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.tamers[tamer.ID] = tamer
	return nil
}

func (s *fakeStore) GetTamer(_ context.Context, id string) (domain.Tamer, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	tamer, ok := s.tamers[id]
	if !ok {
		return domain.Tamer{}, storage.ErrNotFound
	}
	return tamer, nil
}

func (s *fakeStore) ListTamers(_ context.Context) ([]domain.Tamer, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	tamers := make([]domain.Tamer, 0, len(s.tamers))
	for _, tamer := range s.tamers {
		tamers = append(tamers, tamer)
	}
	return tamers, nil
}

func (s *fakeStore) PutDigimon(_ context.Context, dig domain.Digimon) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.digimon[dig.ID] = dig
	return nil
}

func (s *fakeStore) GetDigimon(_ context.Context, id string) (domain.Digimon, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	dig, ok := s.digimon[id]
	if !ok {
		return domain.Digimon{}, storage.ErrNotFound
	}
	return dig, nil
}

func (s *fakeStore) ListDigimon(_ context.Context) ([]domain.Digimon, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	digimon := make([]domain.Digimon, 0, len(s.digimon))
	for _, dig := range s.digimon {
		digimon = append(digimon, dig)
	}
	return digimon, nil
}

func (s *fakeStore) PutEvolutionLine(_ context.Context, line domain.EvolutionLine) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.lines[line.ID] = line
	return nil
}

func (s *fakeStore) GetEvolutionLine(_ context.Context, id string) (domain.EvolutionLine, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	line, ok := s.lines[id]
	if !ok {
		return domain.EvolutionLine{}, storage.ErrNotFound
	}
	return line, nil
}

func (s *fakeStore) ListEvolutionLines(_ context.Context) ([]domain.EvolutionLine, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	lines := make([]domain.EvolutionLine, 0, len(s.lines))
	for _, line := range s.lines {
		lines = append(lines, line)
	}
	return lines, nil
}

func (s *fakeStore) SetEvolutionLineStage(_ context.Context, id string, stageIndex int) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	line, ok := s.lines[id]
	if !ok {
		return storage.ErrNotFound
	}
	line.CurrentStageIndex = stageIndex
	s.lines[id] = line
	s.stageWrites = append(s.stageWrites, fmt.Sprintf("%s:%d", id, stageIndex))
	return nil
}

// recorder captures broadcast events in order.
type recorder struct {
	mu     sync.Mutex
	events []Event
}

func (r *recorder) Broadcast(event Event) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, event)
}

func (r *recorder) last(t *testing.T) Event {
	t.Helper()
	r.mu.Lock()
	defer r.mu.Unlock()
	if len(r.events) == 0 {
		t.Fatal("no events broadcast")
	}
	return r.events[len(r.events)-1]
}

func (r *recorder) count() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.events)
}

func seedLibrary(t *testing.T, store *fakeStore) {
	t.Helper()
	ctx := context.Background()
	if err := store.PutTamer(ctx, domain.Tamer{
		ID: "tam1", Name: "Kei", CampaignLevel: rules.CampaignStandard,
		Attributes: rules.TamerAttributes{Agility: 3, Body: 2, Charisma: 4, Willpower: 3},
		Skills:     rules.TamerSkills{Dodge: 2, Fight: 1, Endurance: 2},
	}); err != nil {
		t.Fatalf("seed tamer: %v", err)
	}
	if err := store.PutDigimon(ctx, domain.Digimon{
		ID: "agu", Name: "Agumon", Species: "Agumon", Stage: rules.StageRookie,
		BaseStats: rules.DigimonStats{Accuracy: 4, Damage: 3, Dodge: 3, Armor: 4, Health: 4},
		PartnerID: "tam1",
		Attacks:   []domain.Attack{{ID: "claw", Name: "Claw", Type: rules.AttackDamage}},
	}); err != nil {
		t.Fatalf("seed digimon: %v", err)
	}
	if err := store.PutDigimon(ctx, domain.Digimon{
		ID: "viru", Name: "Virusmon", Species: "Virusmon", Stage: rules.StageChampion,
		BaseStats: rules.DigimonStats{Accuracy: 4, Damage: 5, Dodge: 2, Armor: 3, Health: 6},
		Attacks:   []domain.Attack{{ID: "bite", Name: "Bite", Type: rules.AttackDamage}},
	}); err != nil {
		t.Fatalf("seed digimon: %v", err)
	}
}

func combatEncounter() domain.Encounter {
	return domain.Encounter{
		ID:    "enc1",
		Name:  "Sewer Ambush",
		Round: 1,
		Phase: domain.PhaseCombat,
		Participants: []domain.CombatParticipant{
			{ID: "p-viru", Type: domain.ParticipantDigimon, EntityID: "viru", IsEnemy: true, MaxWounds: 11, ActionsRemaining: domain.ActionsRemaining{Simple: 2}, CurrentStance: rules.StanceNeutral},
			{ID: "p-tam", Type: domain.ParticipantTamer, EntityID: "tam1", MaxWounds: 4, ActionsRemaining: domain.ActionsRemaining{Simple: 2}, CurrentStance: rules.StanceNeutral},
			{ID: "p-agu", Type: domain.ParticipantDigimon, EntityID: "agu", MaxWounds: 6, ActionsRemaining: domain.ActionsRemaining{Simple: 2}, CurrentStance: rules.StanceNeutral},
		},
		TurnOrder: []string{"p-viru", "p-tam", "p-agu"},
	}
}

func newService(t *testing.T, store *fakeStore, events Broadcaster) *Service {
	t.Helper()
	n := 0
	newID := func() (string, error) {
		n++
		return fmt.Sprintf("id-%03d", n), nil
	}
	now := func() time.Time { return time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC) }
	return newTestService(store, events, 7, now, newID)
}

func TestCreateEncounterPersistsAndBroadcasts(t *testing.T) {
	store := newFakeStore()
	events := &recorder{}
	svc := newService(t, store, events)

	enc, err := svc.CreateEncounter(context.Background(), "Sewer Ambush")
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	if enc.Phase != domain.PhaseSetup {
		t.Fatalf("new encounters start in setup, got %s", enc.Phase)
	}

	stored, err := svc.GetEncounter(context.Background(), enc.ID)
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if stored.Name != "Sewer Ambush" {
		t.Fatalf("stored name: %s", stored.Name)
	}

	event := events.last(t)
	if event.Type != EventEncounterCreated || event.EncounterID != enc.ID {
		t.Fatalf("unexpected event %+v", event)
	}
	if event.Encounter == nil {
		t.Fatal("created event should carry the aggregate")
	}
}

func TestGetEncounterNotFound(t *testing.T) {
	store := newFakeStore()
	svc := newService(t, store, nil)

	_, err := svc.GetEncounter(context.Background(), "missing")
	if !errors.IsCode(err, errors.CodeEncounterNotFound) {
		t.Fatalf("expected not-found code, got %v", err)
	}
}

func TestDeleteEncounterBroadcasts(t *testing.T) {
	store := newFakeStore()
	events := &recorder{}
	svc := newService(t, store, events)
	store.seedEncounter(t, combatEncounter())

	if err := svc.DeleteEncounter(context.Background(), "enc1"); err != nil {
		t.Fatalf("delete: %v", err)
	}
	event := events.last(t)
	if event.Type != EventEncounterDeleted || event.EncounterID != "enc1" {
		t.Fatalf("unexpected event %+v", event)
	}
	if err := svc.DeleteEncounter(context.Background(), "enc1"); !errors.IsCode(err, errors.CodeEncounterNotFound) {
		t.Fatalf("expected not-found on second delete, got %v", err)
	}
}

func TestMutateRetriesAfterVersionConflict(t *testing.T) {
	store := newFakeStore()
	events := &recorder{}
	svc := newService(t, store, events)
	seedLibrary(t, store)
	store.seedEncounter(t, combatEncounter())
	store.updateConflicts = 1

	enc, err := svc.AdvanceTurn(context.Background(), "enc1")
	if err != nil {
		t.Fatalf("advance after one conflict should retry and land: %v", err)
	}
	if enc.CurrentTurnIndex != 1 {
		t.Fatalf("turn should advance exactly once, got index %d", enc.CurrentTurnIndex)
	}
	if got := store.versions["enc1"]; got != 2 {
		t.Fatalf("expected one committed write, version %d", got)
	}
	if events.count() != 1 {
		t.Fatalf("only the committed state broadcasts, got %d events", events.count())
	}
	if events.last(t).Type != EventEncounterUpdated {
		t.Fatalf("unexpected event %+v", events.last(t))
	}
}

func TestMutateGivesUpAfterRepeatedConflicts(t *testing.T) {
	store := newFakeStore()
	events := &recorder{}
	svc := newService(t, store, events)
	seedLibrary(t, store)
	store.seedEncounter(t, combatEncounter())
	store.updateConflicts = casAttempts

	_, err := svc.AdvanceTurn(context.Background(), "enc1")
	if !errors.IsCode(err, errors.CodeEncounterConflict) {
		t.Fatalf("expected conflict code, got %v", err)
	}
	if events.count() != 0 {
		t.Fatal("failed commands must not broadcast")
	}
	if got := store.versions["enc1"]; got != 1 {
		t.Fatalf("aggregate must be untouched, version %d", got)
	}
}

func TestMutateDomainErrorShortCircuits(t *testing.T) {
	store := newFakeStore()
	events := &recorder{}
	svc := newService(t, store, events)
	seedLibrary(t, store)
	store.seedEncounter(t, combatEncounter())

	// Not Virusmon's controller's turn slot for Agumon.
	_, _, err := svc.DeclareAttack(context.Background(), "enc1", domain.DeclareAttackInput{
		AttackerID: "p-agu", TargetID: "p-viru", AttackID: "claw", AccuracySuccesses: 2,
	})
	if !errors.IsCode(err, errors.CodeNotYourTurn) {
		t.Fatalf("expected not-your-turn, got %v", err)
	}
	if events.count() != 0 {
		t.Fatal("rejected commands must not broadcast")
	}
}

func TestClaimIntercedeLostRaceSurfacesConflict(t *testing.T) {
	store := newFakeStore()
	svc := newService(t, store, nil)
	seedLibrary(t, store)

	enc := combatEncounter()
	enc.PendingRequests = []domain.PendingRequest{{
		ID:            "req1",
		Type:          domain.RequestIntercedeOffer,
		TargetTamerID: "tam1",
		Attack: &domain.AttackContext{
			IntercedeGroupID:      "grp1",
			AttackerParticipantID: "p-viru",
			TargetParticipantID:   "p-tam",
			AttackerName:          "Virusmon",
			TargetName:            "Kei",
			AttackID:              "bite",
			AccuracySuccesses:     2,
		},
	}}
	store.seedEncounter(t, enc)

	// The winning claim commits between this command's read and write: the
	// injected conflict swaps in a snapshot where the group is gone, and the
	// retry observes it.
	store.updateConflicts = 1
	store.onConflict = func(s *fakeStore) {
		won := combatEncounter()
		data, err := json.Marshal(won)
		if err != nil {
			t.Errorf("swap snapshot: %v", err)
			return
		}
		s.encounters["enc1"] = string(data)
		s.versions["enc1"] = 2
	}

	_, err := svc.ClaimIntercede(context.Background(), "enc1", domain.ClaimIntercedeInput{
		RequestID: "req1", InterceptorID: "p-agu",
	})
	if !errors.IsCode(err, errors.CodeIntercedeResolved) {
		t.Fatalf("losing claim should observe the resolved group, got %v", err)
	}
}

func TestClaimIntercedeWinsWithoutContention(t *testing.T) {
	store := newFakeStore()
	events := &recorder{}
	svc := newService(t, store, events)
	seedLibrary(t, store)

	enc := combatEncounter()
	enc.PendingRequests = []domain.PendingRequest{{
		ID:            "req1",
		Type:          domain.RequestIntercedeOffer,
		TargetTamerID: "tam1",
		Attack: &domain.AttackContext{
			IntercedeGroupID:      "grp1",
			AttackerParticipantID: "p-viru",
			TargetParticipantID:   "p-tam",
			AttackerName:          "Virusmon",
			TargetName:            "Kei",
			AttackID:              "bite",
			AccuracySuccesses:     2,
		},
	}}
	store.seedEncounter(t, enc)

	updated, err := svc.ClaimIntercede(context.Background(), "enc1", domain.ClaimIntercedeInput{
		RequestID: "req1", InterceptorID: "p-agu",
	})
	if err != nil {
		t.Fatalf("claim: %v", err)
	}
	if len(updated.PendingRequests) != 0 {
		t.Fatal("the claim closes the offer group")
	}
	if updated.Participant("p-agu").CurrentWounds == 0 {
		t.Fatal("interceptor takes the redirected hit")
	}
	if events.last(t).Type != EventEncounterUpdated {
		t.Fatalf("unexpected event %+v", events.last(t))
	}
}

func TestDigivolvePersistsLineStage(t *testing.T) {
	store := newFakeStore()
	svc := newService(t, store, &recorder{})
	seedLibrary(t, store)
	ctx := context.Background()

	if err := store.PutDigimon(ctx, domain.Digimon{
		ID: "greymon", Name: "Greymon", Species: "Greymon", Stage: rules.StageChampion,
		BaseStats: rules.DigimonStats{Accuracy: 5, Damage: 6, Dodge: 2, Armor: 5, Health: 7},
		PartnerID: "tam1",
	}); err != nil {
		t.Fatalf("seed greymon: %v", err)
	}
	if err := store.PutEvolutionLine(ctx, domain.EvolutionLine{
		ID: "line1", Name: "Agumon Line",
		Chain: []domain.ChainEntry{
			{DigimonID: "agu", Species: "Agumon", Stage: rules.StageRookie, EvolvesFromIndex: -1, IsUnlocked: true},
			{DigimonID: "greymon", Species: "Greymon", Stage: rules.StageChampion, EvolvesFromIndex: 0, IsUnlocked: true},
		},
	}); err != nil {
		t.Fatalf("seed line: %v", err)
	}

	enc := combatEncounter()
	enc.CurrentTurnIndex = 1 // Kei's turn
	enc.Participants[2].EvolutionLineID = "line1"
	store.seedEncounter(t, enc)

	updated, err := svc.Digivolve(ctx, "enc1", domain.DigivolveInput{ParticipantID: "p-agu", TargetChainIndex: 1})
	if err != nil {
		t.Fatalf("digivolve: %v", err)
	}
	if got := updated.Participant("p-agu").EntityID; got != "greymon" {
		t.Fatalf("participant should wear the new form, got %s", got)
	}
	if len(store.stageWrites) != 1 || store.stageWrites[0] != "line1:1" {
		t.Fatalf("expected one line stage write, got %v", store.stageWrites)
	}
	line, err := store.GetEvolutionLine(ctx, "line1")
	if err != nil {
		t.Fatalf("get line: %v", err)
	}
	if line.CurrentStageIndex != 1 {
		t.Fatalf("line position should follow the evolve, got %d", line.CurrentStageIndex)
	}
}

func TestListEncounters(t *testing.T) {
	store := newFakeStore()
	svc := newService(t, store, nil)
	store.seedEncounter(t, combatEncounter())

	summaries, err := svc.ListEncounters(context.Background())
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(summaries) != 1 {
		t.Fatalf("expected 1 summary, got %d", len(summaries))
	}
	if summaries[0].Participants != 3 || summaries[0].Phase != domain.PhaseCombat {
		t.Fatalf("unexpected summary %+v", summaries[0])
	}
}
