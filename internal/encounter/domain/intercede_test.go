package domain

import (
	"testing"

	"github.com/louisbranch/digivice/internal/platform/errors"
)

// openOffers declares a Virusmon attack on Kei so both the GM and Kei
// receive intercede offers, and returns them.
func openOffers(t *testing.T, g *Engine, enc *Encounter, successes int) []PendingRequest {
	t.Helper()
	outcome, err := g.DeclareAttack(enc, DeclareAttackInput{
		AttackerID:        "p-viru",
		TargetID:          "p-tam",
		AttackID:          "bite",
		AccuracySuccesses: successes,
	})
	if err != nil {
		t.Fatalf("declare: %v", err)
	}
	if outcome.Resolved || len(outcome.Pending) == 0 {
		t.Fatalf("expected intercede offers, got %+v", outcome)
	}
	return outcome.Pending
}

func offerFor(t *testing.T, offers []PendingRequest, tamerID string) PendingRequest {
	t.Helper()
	for _, offer := range offers {
		if offer.TargetTamerID == tamerID {
			return offer
		}
	}
	t.Fatalf("no offer addressed to %s", tamerID)
	return PendingRequest{}
}

func TestClaimIntercedeRedirectsHit(t *testing.T) {
	g := testEngine(t, testLibrary())
	enc := combatEncounter()
	offers := openOffers(t, g, enc, 2)
	offer := offerFor(t, offers, "tam1")

	err := g.ClaimIntercede(enc, ClaimIntercedeInput{
		RequestID:     offer.ID,
		InterceptorID: "p-agu",
	})
	if err != nil {
		t.Fatalf("claim: %v", err)
	}

	// Forced hit on Agumon: base 5 + net 2 - armor 4 = 3.
	if got := enc.Participant("p-agu").CurrentWounds; got != 3 {
		t.Fatalf("interceptor should take 3 wounds, got %d", got)
	}
	if got := enc.Participant("p-tam").CurrentWounds; got != 0 {
		t.Fatalf("original target must take nothing, got %d", got)
	}
	// The original target still pays the dodge penalty for being targeted.
	if enc.Participant("p-tam").DodgePenalty != 1 {
		t.Fatal("original target's dodge penalty should increment")
	}
	if enc.Participant("p-agu").DodgePenalty != 0 {
		t.Fatal("interceptor's dodge penalty must not change")
	}
	if len(enc.PendingRequests) != 0 {
		t.Fatalf("claim must close the whole offer group, %d left", len(enc.PendingRequests))
	}
	entry := lastLog(t, enc)
	if entry.Action != "Interceded for Kei!" {
		t.Fatalf("unexpected log action %q", entry.Action)
	}
	if !entry.Hit {
		t.Fatal("an intercede is always a hit")
	}
}

func TestClaimIntercedeCostBeforeTurn(t *testing.T) {
	g := testEngine(t, testLibrary())
	enc := combatEncounter()
	offers := openOffers(t, g, enc, 1)

	// Kei's slot (index 1) has not come up yet, so Agumon pays a simple
	// action now.
	err := g.ClaimIntercede(enc, ClaimIntercedeInput{
		RequestID:     offerFor(t, offers, "tam1").ID,
		InterceptorID: "p-agu",
	})
	if err != nil {
		t.Fatalf("claim: %v", err)
	}
	agu := enc.Participant("p-agu")
	if agu.ActionsRemaining.Simple != 1 {
		t.Fatalf("expected an immediate action spend, %d left", agu.ActionsRemaining.Simple)
	}
	if agu.InterceptPenalty != 0 {
		t.Fatal("no deferred penalty when the turn is still coming")
	}
}

func TestClaimIntercedeCostAfterTurnDefers(t *testing.T) {
	g := testEngine(t, testLibrary())
	enc := combatEncounter()
	// Move past Kei's slot so Agumon's turn already went.
	enc.TurnOrder = []string{"p-tam", "p-viru", "p-agu"}
	enc.CurrentTurnIndex = 1
	offers := openOffers(t, g, enc, 1)

	err := g.ClaimIntercede(enc, ClaimIntercedeInput{
		RequestID:     offerFor(t, offers, "tam1").ID,
		InterceptorID: "p-agu",
	})
	if err != nil {
		t.Fatalf("claim: %v", err)
	}
	agu := enc.Participant("p-agu")
	if agu.ActionsRemaining.Simple != 2 {
		t.Fatalf("deferred cost must not spend this round, %d left", agu.ActionsRemaining.Simple)
	}
	if agu.InterceptPenalty != 1 {
		t.Fatalf("expected deferred penalty 1, got %d", agu.InterceptPenalty)
	}
}

func TestClaimIntercedeCapReached(t *testing.T) {
	g := testEngine(t, testLibrary())
	enc := combatEncounter()
	enc.TurnOrder = []string{"p-tam", "p-viru", "p-agu"}
	enc.CurrentTurnIndex = 1
	enc.Participant("p-agu").InterceptPenalty = maxInterceptPenalty
	offers := openOffers(t, g, enc, 1)

	err := g.ClaimIntercede(enc, ClaimIntercedeInput{
		RequestID:     offerFor(t, offers, "tam1").ID,
		InterceptorID: "p-agu",
	})
	if !errors.IsCode(err, errors.CodeIntercedeCapReached) {
		t.Fatalf("expected cap error, got %v", err)
	}
	if len(enc.GroupRequests(offers[0].Attack.IntercedeGroupID)) == 0 {
		t.Fatal("a refused claim must leave the group open")
	}
}

func TestClaimIntercedeLostRace(t *testing.T) {
	g := testEngine(t, testLibrary())
	enc := combatEncounter()
	offers := openOffers(t, g, enc, 1)

	first := offerFor(t, offers, "tam1")
	if err := g.ClaimIntercede(enc, ClaimIntercedeInput{RequestID: first.ID, InterceptorID: "p-agu"}); err != nil {
		t.Fatalf("first claim: %v", err)
	}

	// The GM's offer vanished with the group; claiming it now conflicts.
	err := g.ClaimIntercede(enc, ClaimIntercedeInput{
		RequestID:     offerFor(t, offers, GMControllerID).ID,
		InterceptorID: "p-viru",
	})
	if !errors.IsCode(err, errors.CodeIntercedeResolved) {
		t.Fatalf("expected lost-race conflict, got %v", err)
	}
}

func TestClaimIntercedeSelfTarget(t *testing.T) {
	g := testEngine(t, testLibrary())
	enc := combatEncounter()
	offers := openOffers(t, g, enc, 1)

	err := g.ClaimIntercede(enc, ClaimIntercedeInput{
		RequestID:     offerFor(t, offers, "tam1").ID,
		InterceptorID: "p-tam",
	})
	if !errors.IsCode(err, errors.CodeIntercedeSelfTarget) {
		t.Fatalf("expected self-target error, got %v", err)
	}
}

func TestSkipIntercedeCollapsesToDodgeRequest(t *testing.T) {
	g := testEngine(t, testLibrary())
	enc := combatEncounter()
	offers := openOffers(t, g, enc, 2)

	if err := g.SkipIntercede(enc, SkipIntercedeInput{RequestID: offerFor(t, offers, "tam1").ID}); err != nil {
		t.Fatalf("skip kei: %v", err)
	}
	if len(enc.PendingRequests) != 1 {
		t.Fatalf("one sibling offer should remain, got %d", len(enc.PendingRequests))
	}

	if err := g.SkipIntercede(enc, SkipIntercedeInput{RequestID: offerFor(t, offers, GMControllerID).ID}); err != nil {
		t.Fatalf("skip gm: %v", err)
	}
	// Kei is a player, so the collapsed group becomes a dodge request.
	if len(enc.PendingRequests) != 1 {
		t.Fatalf("expected a dodge request, got %d requests", len(enc.PendingRequests))
	}
	request := enc.PendingRequests[0]
	if request.Type != RequestDodgeRoll {
		t.Fatalf("expected dodge-roll, got %s", request.Type)
	}
	if request.TargetTamerID != "tam1" || request.TargetParticipantID != "p-tam" {
		t.Fatalf("dodge request misaddressed: %+v", request)
	}
	if request.Attack.IntercedeGroupID != "" {
		t.Fatal("the dodge request must leave the intercede group")
	}
}

func TestSkipIntercedeCollapsesToAutoResolveForNPC(t *testing.T) {
	g := testEngine(t, testLibrary())
	enc := combatEncounter()
	enc.CurrentTurnIndex = 1

	// Agumon attacks Virusmon; only the GM can intercede for an enemy
	// since Kei's own partner is the attacker.
	outcome, err := g.DeclareAttack(enc, DeclareAttackInput{
		AttackerID:        "p-agu",
		TargetID:          "p-viru",
		AttackID:          "claw",
		AccuracySuccesses: 3,
	})
	if err != nil {
		t.Fatalf("declare: %v", err)
	}
	if outcome.Resolved {
		t.Fatal("expected suspended attack")
	}

	for _, offer := range outcome.Pending {
		if err := g.SkipIntercede(enc, SkipIntercedeInput{RequestID: offer.ID}); err != nil {
			t.Fatalf("skip: %v", err)
		}
	}
	if len(enc.PendingRequests) != 0 {
		t.Fatalf("NPC target should auto-resolve, %d requests left", len(enc.PendingRequests))
	}
	entry := lastLog(t, enc)
	if entry.ActorName != "Virusmon" {
		t.Fatalf("expected a dodge log for Virusmon, got %q", entry.ActorName)
	}
}

func TestSkipIntercedeOptOutPersists(t *testing.T) {
	g := testEngine(t, testLibrary())
	enc := combatEncounter()
	offers := openOffers(t, g, enc, 1)

	err := g.SkipIntercede(enc, SkipIntercedeInput{
		RequestID: offerFor(t, offers, "tam1").ID,
		OptOut:    true,
	})
	if err != nil {
		t.Fatalf("skip: %v", err)
	}
	if !enc.Participant("p-tam").optedOutOf("p-tam") {
		t.Fatal("opt-out should persist on the tamer participant")
	}

	if err := g.SkipIntercede(enc, SkipIntercedeInput{RequestID: offerFor(t, offers, GMControllerID).ID, OptOut: true}); err != nil {
		t.Fatalf("skip gm: %v", err)
	}
	gm := enc.Participant(GMParticipantID)
	if gm == nil || !gm.optedOutOf("p-tam") {
		t.Fatal("GM opt-out should persist on the GM pseudo participant")
	}

	// The next attack on Kei skips the offers entirely.
	enc.Participant("p-viru").ActionsRemaining.Simple = 2
	outcome, err := g.DeclareAttack(enc, DeclareAttackInput{
		AttackerID:        "p-viru",
		TargetID:          "p-tam",
		AttackID:          "bite",
		AccuracySuccesses: 1,
	})
	if err != nil {
		t.Fatalf("second declare: %v", err)
	}
	if len(outcome.Pending) != 1 || outcome.Pending[0].Type != RequestDodgeRoll {
		t.Fatalf("expected straight dodge request, got %+v", outcome.Pending)
	}
}

func TestSkipIntercedeGMCharacterOptOutsLeaveOfferOpen(t *testing.T) {
	g := testEngine(t, testLibrary())
	enc := combatEncounter()
	offers := openOffers(t, g, enc, 1)
	gmOffer := offerFor(t, offers, GMControllerID)

	err := g.SkipIntercede(enc, SkipIntercedeInput{
		RequestID:        gmOffer.ID,
		CharacterOptOuts: []string{"p-viru"},
	})
	if err != nil {
		t.Fatalf("skip: %v", err)
	}
	if enc.Request(gmOffer.ID) == nil {
		t.Fatal("per-character opt-outs must leave the GM offer open")
	}
	gm := enc.Participant(GMParticipantID)
	if gm == nil || len(gm.GMCharacterOptOuts["p-tam"]) != 1 {
		t.Fatalf("expected recorded character opt-outs, got %+v", gm)
	}
}
