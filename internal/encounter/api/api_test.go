package api_test

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"testing"

	"github.com/louisbranch/digivice/internal/encounter/api"
	"github.com/louisbranch/digivice/internal/encounter/domain"
	"github.com/louisbranch/digivice/internal/encounter/service"
	"github.com/louisbranch/digivice/internal/encounter/storage/sqlite"
	"github.com/louisbranch/digivice/internal/rules"
)

func newTestServer(t *testing.T) *httptest.Server {
	t.Helper()
	store, err := sqlite.Open(filepath.Join(t.TempDir(), "encounters.db"))
	if err != nil {
		t.Fatalf("open store: %v", err)
	}
	t.Cleanup(func() { store.Close() })

	svc, err := service.New(store, nil)
	if err != nil {
		t.Fatalf("new service: %v", err)
	}

	mux := http.NewServeMux()
	api.New(svc, nil).Register(mux, nil)
	srv := httptest.NewServer(mux)
	t.Cleanup(srv.Close)
	return srv
}

func doJSON(t *testing.T, method, url string, body any) (int, []byte) {
	t.Helper()
	var reader io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			t.Fatalf("marshal request: %v", err)
		}
		reader = bytes.NewReader(data)
	}
	req, err := http.NewRequest(method, url, reader)
	if err != nil {
		t.Fatalf("build request: %v", err)
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatalf("%s %s: %v", method, url, err)
	}
	defer resp.Body.Close()
	payload, err := io.ReadAll(resp.Body)
	if err != nil {
		t.Fatalf("read body: %v", err)
	}
	return resp.StatusCode, payload
}

func decodeEncounter(t *testing.T, payload []byte) *domain.Encounter {
	t.Helper()
	var resp struct {
		Encounter *domain.Encounter `json:"encounter"`
	}
	if err := json.Unmarshal(payload, &resp); err != nil {
		t.Fatalf("decode encounter response: %v\n%s", err, payload)
	}
	if resp.Encounter == nil {
		t.Fatalf("response carries no encounter: %s", payload)
	}
	return resp.Encounter
}

func errorCode(t *testing.T, payload []byte) string {
	t.Helper()
	var resp struct {
		Error struct {
			Code string `json:"code"`
		} `json:"error"`
	}
	if err := json.Unmarshal(payload, &resp); err != nil {
		t.Fatalf("decode error response: %v\n%s", err, payload)
	}
	return resp.Error.Code
}

func seedEntities(t *testing.T, base string) {
	t.Helper()
	tamer := domain.Tamer{
		ID: "tam1", Name: "Kei", CampaignLevel: rules.CampaignStandard,
		Attributes: rules.TamerAttributes{Agility: 3, Body: 2, Charisma: 4, Willpower: 3},
		Skills:     rules.TamerSkills{Dodge: 2, Fight: 1, Endurance: 2},
	}
	if status, payload := doJSON(t, http.MethodPut, base+"/api/tamers/tam1", tamer); status != http.StatusOK {
		t.Fatalf("put tamer: %d %s", status, payload)
	}

	agumon := domain.Digimon{
		ID: "agu", Name: "Agumon", Species: "Agumon", Stage: rules.StageRookie,
		BaseStats: rules.DigimonStats{Accuracy: 4, Damage: 3, Dodge: 3, Armor: 4, Health: 4},
		PartnerID: "tam1",
		Attacks:   []domain.Attack{{ID: "claw", Name: "Claw", Type: rules.AttackDamage}},
	}
	if status, payload := doJSON(t, http.MethodPut, base+"/api/digimon/agu", agumon); status != http.StatusOK {
		t.Fatalf("put agumon: %d %s", status, payload)
	}

	virusmon := domain.Digimon{
		ID: "viru", Name: "Virusmon", Species: "Virusmon", Stage: rules.StageChampion,
		BaseStats: rules.DigimonStats{Accuracy: 4, Damage: 5, Dodge: 2, Armor: 3, Health: 6},
		Attacks:   []domain.Attack{{ID: "bite", Name: "Bite", Type: rules.AttackDamage}},
	}
	if status, payload := doJSON(t, http.MethodPut, base+"/api/digimon/viru", virusmon); status != http.StatusOK {
		t.Fatalf("put virusmon: %d %s", status, payload)
	}
}

// startCombatEncounter drives the full pre-battle flow over HTTP and
// returns the running encounter. Player initiatives are chosen so the
// order is tamer, partner, then the enemy regardless of the NPC's roll.
func startCombatEncounter(t *testing.T, base string) *domain.Encounter {
	t.Helper()
	seedEntities(t, base)

	status, payload := doJSON(t, http.MethodPost, base+"/api/encounters", map[string]string{"name": "Sewer Ambush"})
	if status != http.StatusCreated {
		t.Fatalf("create encounter: %d %s", status, payload)
	}
	enc := decodeEncounter(t, payload)

	for _, add := range []map[string]any{
		{"type": "tamer", "entityId": "tam1"},
		{"type": "digimon", "entityId": "agu"},
		{"type": "digimon", "entityId": "viru", "isEnemy": true},
	} {
		status, payload = doJSON(t, http.MethodPost, fmt.Sprintf("%s/api/encounters/%s/participants", base, enc.ID), add)
		if status != http.StatusCreated {
			t.Fatalf("add participant %v: %d %s", add, status, payload)
		}
	}

	status, payload = doJSON(t, http.MethodPost, fmt.Sprintf("%s/api/encounters/%s/initiative", base, enc.ID), nil)
	if status != http.StatusOK {
		t.Fatalf("begin initiative: %d %s", status, payload)
	}
	enc = decodeEncounter(t, payload)
	if len(enc.PendingRequests) != 2 {
		t.Fatalf("expected initiative requests for the tamer and partner, got %d", len(enc.PendingRequests))
	}

	// Well above any possible 3d6 NPC roll.
	initiatives := map[string]int{"p-tam": 50, "p-agu": 49}
	byEntity := map[string]string{}
	for _, p := range enc.Participants {
		byEntity[p.EntityID] = p.ID
	}
	for _, req := range enc.PendingRequests {
		initiative := initiatives["p-tam"]
		if req.TargetParticipantID == byEntity["agu"] {
			initiative = initiatives["p-agu"]
		}
		status, payload = doJSON(t, http.MethodPost, fmt.Sprintf("%s/api/encounters/%s/responses", base, enc.ID), map[string]any{
			"requestId": req.ID,
			"tamerId":   "tam1",
			"response": map[string]any{
				"type":           "initiative-rolled",
				"initiative":     initiative,
				"initiativeRoll": 12,
			},
		})
		if status != http.StatusOK {
			t.Fatalf("submit initiative: %d %s", status, payload)
		}
	}

	status, payload = doJSON(t, http.MethodPost, fmt.Sprintf("%s/api/encounters/%s/combat", base, enc.ID), nil)
	if status != http.StatusOK {
		t.Fatalf("start combat: %d %s", status, payload)
	}
	enc = decodeEncounter(t, payload)
	if enc.Phase != domain.PhaseCombat || enc.Round != 1 {
		t.Fatalf("combat should be running, got phase %s round %d", enc.Phase, enc.Round)
	}
	if got := enc.Participant(enc.TurnOrder[0]).EntityID; got != "tam1" {
		t.Fatalf("tamer should go first, got %s", got)
	}
	return enc
}

func TestEncounterLifecycle(t *testing.T) {
	srv := newTestServer(t)
	enc := startCombatEncounter(t, srv.URL)

	status, payload := doJSON(t, http.MethodPost, fmt.Sprintf("%s/api/encounters/%s/turn", srv.URL, enc.ID), nil)
	if status != http.StatusOK {
		t.Fatalf("advance turn: %d %s", status, payload)
	}
	enc = decodeEncounter(t, payload)
	if enc.CurrentTurnIndex != 1 {
		t.Fatalf("turn index should advance, got %d", enc.CurrentTurnIndex)
	}

	status, payload = doJSON(t, http.MethodPost, fmt.Sprintf("%s/api/encounters/%s/end", srv.URL, enc.ID), nil)
	if status != http.StatusOK {
		t.Fatalf("end encounter: %d %s", status, payload)
	}
	if enc = decodeEncounter(t, payload); enc.Phase != domain.PhaseEnded {
		t.Fatalf("encounter should be ended, got %s", enc.Phase)
	}
}

func TestDeclareAttackResolvesAgainstNPC(t *testing.T) {
	srv := newTestServer(t)
	enc := startCombatEncounter(t, srv.URL)

	var attacker, target string
	for _, p := range enc.Participants {
		switch p.EntityID {
		case "agu":
			attacker = p.ID
		case "viru":
			target = p.ID
		}
	}

	declare := map[string]any{
		"attackerId":        attacker,
		"targetId":          target,
		"attackId":          "claw",
		"accuracyDice":      []int{6, 6, 5},
		"accuracySuccesses": 3,
	}
	status, payload := doJSON(t, http.MethodPost, fmt.Sprintf("%s/api/encounters/%s/attacks", srv.URL, enc.ID), declare)
	if status != http.StatusOK {
		t.Fatalf("declare attack: %d %s", status, payload)
	}
	var resp struct {
		Encounter *domain.Encounter       `json:"encounter"`
		Resolved  bool                    `json:"resolved"`
		Pending   []domain.PendingRequest `json:"pending"`
	}
	if err := json.Unmarshal(payload, &resp); err != nil {
		t.Fatalf("decode attack response: %v", err)
	}

	// Kei has a partner present and the GM is always eligible, so the
	// attack suspends on their intercede offers first.
	if resp.Resolved {
		t.Fatal("attack should suspend on the intercede offers")
	}
	if len(resp.Pending) != 2 {
		t.Fatalf("expected offers for Kei and the GM, got %d", len(resp.Pending))
	}

	// Both controllers decline with a standing opt-out; the last skip
	// collapses the group and the NPC target resolves server-side.
	for _, offer := range resp.Pending {
		status, payload = doJSON(t, http.MethodPost, fmt.Sprintf("%s/api/encounters/%s/intercede/skip", srv.URL, enc.ID), map[string]any{
			"requestId": offer.ID,
			"optOut":    true,
		})
		if status != http.StatusOK {
			t.Fatalf("skip intercede: %d %s", status, payload)
		}
	}
	enc = decodeEncounter(t, payload)
	if len(enc.PendingRequests) != 0 {
		t.Fatalf("no requests should remain, got %d", len(enc.PendingRequests))
	}
	if wounds := enc.Participant(target).CurrentWounds; wounds < 1 {
		t.Fatalf("resolved hit should wound the target, got %d", wounds)
	}
	if len(enc.BattleLog) == 0 {
		t.Fatal("resolution should append to the battle log")
	}

	// The opt-outs persist, so a second attack on the same target skips
	// the fan-out and resolves immediately.
	status, payload = doJSON(t, http.MethodPost, fmt.Sprintf("%s/api/encounters/%s/attacks", srv.URL, enc.ID), declare)
	if status != http.StatusOK {
		t.Fatalf("second attack: %d %s", status, payload)
	}
	if err := json.Unmarshal(payload, &resp); err != nil {
		t.Fatalf("decode attack response: %v", err)
	}
	if !resp.Resolved {
		t.Fatal("attacks resolve immediately once every controller opted out")
	}
}

func TestErrorEnvelope(t *testing.T) {
	srv := newTestServer(t)

	status, payload := doJSON(t, http.MethodGet, srv.URL+"/api/encounters/missing", nil)
	if status != http.StatusNotFound {
		t.Fatalf("expected 404, got %d %s", status, payload)
	}
	if code := errorCode(t, payload); code != "ENCOUNTER_NOT_FOUND" {
		t.Fatalf("unexpected code %s", code)
	}

	req, err := http.NewRequest(http.MethodPost, srv.URL+"/api/encounters", bytes.NewReader([]byte("{not json")))
	if err != nil {
		t.Fatalf("build request: %v", err)
	}
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatalf("post: %v", err)
	}
	defer resp.Body.Close()
	body, _ := io.ReadAll(resp.Body)
	if resp.StatusCode != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d %s", resp.StatusCode, body)
	}
	if code := errorCode(t, body); code != "REQUEST_RESPONSE_INVALID" {
		t.Fatalf("unexpected code %s", code)
	}
}

func TestEntityRoutes(t *testing.T) {
	srv := newTestServer(t)
	seedEntities(t, srv.URL)

	status, payload := doJSON(t, http.MethodGet, srv.URL+"/api/tamers/tam1", nil)
	if status != http.StatusOK {
		t.Fatalf("get tamer: %d %s", status, payload)
	}
	var tamer domain.Tamer
	if err := json.Unmarshal(payload, &tamer); err != nil {
		t.Fatalf("decode tamer: %v", err)
	}
	if tamer.Name != "Kei" || tamer.Attributes.Charisma != 4 {
		t.Fatalf("unexpected tamer %+v", tamer)
	}

	status, payload = doJSON(t, http.MethodGet, srv.URL+"/api/digimon", nil)
	if status != http.StatusOK {
		t.Fatalf("list digimon: %d %s", status, payload)
	}
	var list struct {
		Digimon []domain.Digimon `json:"digimon"`
	}
	if err := json.Unmarshal(payload, &list); err != nil {
		t.Fatalf("decode list: %v", err)
	}
	if len(list.Digimon) != 2 {
		t.Fatalf("expected 2 digimon, got %d", len(list.Digimon))
	}

	status, payload = doJSON(t, http.MethodGet, srv.URL+"/api/digimon/missing", nil)
	if status != http.StatusNotFound {
		t.Fatalf("expected 404, got %d %s", status, payload)
	}
	if code := errorCode(t, payload); code != "DIGIMON_NOT_FOUND" {
		t.Fatalf("unexpected code %s", code)
	}

	mismatched := domain.Tamer{ID: "other", Name: "Imposter"}
	status, payload = doJSON(t, http.MethodPut, srv.URL+"/api/tamers/tam1", mismatched)
	if status != http.StatusBadRequest {
		t.Fatalf("expected 400 on id mismatch, got %d %s", status, payload)
	}
}
