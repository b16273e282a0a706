package errors

import "net/http"

// Code is a machine-readable error code.
type Code string

const (
	// CodeUnknown represents an unknown error.
	CodeUnknown Code = "UNKNOWN"

	// Encounter errors
	CodeEncounterNameEmpty     Code = "ENCOUNTER_NAME_EMPTY"
	CodeEncounterNotFound      Code = "ENCOUNTER_NOT_FOUND"
	CodeEncounterPhaseDisallow Code = "ENCOUNTER_PHASE_DISALLOWS_OPERATION"
	CodeEncounterConflict      Code = "ENCOUNTER_VERSION_CONFLICT"

	// Participant errors
	CodeParticipantNotFound   Code = "PARTICIPANT_NOT_FOUND"
	CodeParticipantNotTamer   Code = "PARTICIPANT_NOT_TAMER"
	CodeParticipantNotDigimon Code = "PARTICIPANT_NOT_DIGIMON"
	CodeNotYourTurn           Code = "PARTICIPANT_NOT_YOUR_TURN"
	CodeInsufficientActions   Code = "PARTICIPANT_INSUFFICIENT_ACTIONS"
	CodeNoPartner             Code = "PARTICIPANT_NO_PARTNER"

	// Attack errors
	CodeTargetNotFound      Code = "ATTACK_TARGET_NOT_FOUND"
	CodeAttackNotFound      Code = "ATTACK_NOT_FOUND"
	CodeAttackOutOfAmmo     Code = "ATTACK_OUT_OF_AMMO"
	CodeBolsterSignature    Code = "ATTACK_SIGNATURE_CANNOT_BOLSTER"
	CodeBolsterLimit        Code = "ATTACK_BOLSTER_LIMIT_REACHED"
	CodeBolsterCooldown     Code = "ATTACK_BOLSTER_COOLDOWN"
	CodeAccuracyDiceInvalid Code = "ATTACK_ACCURACY_DICE_INVALID"

	// Request/response errors
	CodeRequestNotFound  Code = "REQUEST_NOT_FOUND"
	CodeRequestNotYours  Code = "REQUEST_NOT_YOURS"
	CodeResponseMismatch Code = "REQUEST_RESPONSE_TYPE_MISMATCH"
	CodeResponseInvalid  Code = "REQUEST_RESPONSE_INVALID"
	CodeResponseNotFound Code = "RESPONSE_NOT_FOUND"

	// Intercede errors
	CodeIntercedeResolved   Code = "INTERCEDE_ALREADY_RESOLVED"
	CodeIntercedeSelfTarget Code = "INTERCEDE_SELF_TARGET"
	CodeIntercedeCapReached Code = "INTERCEDE_CAP_REACHED"

	// Turn/order errors
	CodeDirectTwice      Code = "DIRECT_ALREADY_USED_THIS_TURN"
	CodeOrderLocked      Code = "SPECIAL_ORDER_LOCKED"
	CodeOrderAlreadyUsed Code = "SPECIAL_ORDER_ALREADY_USED"
	CodeOrderNeedsTarget Code = "SPECIAL_ORDER_NEEDS_TARGET"

	// Evolution errors
	CodeNoEvolutionLine       Code = "EVOLUTION_LINE_MISSING"
	CodeEvolutionLineNotFound Code = "EVOLUTION_LINE_NOT_FOUND"
	CodeChainIndexInvalid     Code = "EVOLUTION_CHAIN_INDEX_INVALID"
	CodeStageNotAdjacent      Code = "EVOLUTION_STAGE_NOT_ADJACENT"
	CodeStageLocked           Code = "EVOLUTION_STAGE_LOCKED"
	CodeDigivolveAttempted    Code = "EVOLUTION_ALREADY_ATTEMPTED"

	// Entity store errors
	CodeTamerNotFound   Code = "TAMER_NOT_FOUND"
	CodeDigimonNotFound Code = "DIGIMON_NOT_FOUND"

	// Storage errors
	CodeNotFound Code = "NOT_FOUND"
	CodeStorage  Code = "STORAGE_FAILURE"
)

// HTTPStatus maps domain codes to HTTP status codes.
func (c Code) HTTPStatus() int {
	switch c {
	// Bad request - validation failures, malformed input
	case CodeEncounterNameEmpty,
		CodeNotYourTurn,
		CodeInsufficientActions,
		CodeNoPartner,
		CodeParticipantNotTamer,
		CodeParticipantNotDigimon,
		CodeAccuracyDiceInvalid,
		CodeResponseMismatch,
		CodeResponseInvalid,
		CodeRequestNotYours,
		CodeIntercedeSelfTarget,
		CodeNoEvolutionLine,
		CodeChainIndexInvalid,
		CodeStageNotAdjacent,
		CodeOrderNeedsTarget:
		return http.StatusBadRequest

	// Not found - resource doesn't exist
	case CodeNotFound,
		CodeEncounterNotFound,
		CodeParticipantNotFound,
		CodeTargetNotFound,
		CodeAttackNotFound,
		CodeRequestNotFound,
		CodeResponseNotFound,
		CodeEvolutionLineNotFound,
		CodeTamerNotFound,
		CodeDigimonNotFound:
		return http.StatusNotFound

	// Conflict - lost race or double use; client should refresh and retry
	case CodeEncounterConflict,
		CodeIntercedeResolved,
		CodeAttackOutOfAmmo,
		CodeDirectTwice,
		CodeOrderAlreadyUsed,
		CodeDigivolveAttempted:
		return http.StatusConflict

	// Unprocessable - rules refuse the action in the current state
	case CodeEncounterPhaseDisallow,
		CodeBolsterSignature,
		CodeBolsterLimit,
		CodeBolsterCooldown,
		CodeIntercedeCapReached,
		CodeOrderLocked,
		CodeStageLocked:
		return http.StatusUnprocessableEntity

	default:
		return http.StatusInternalServerError
	}
}

// GetCode extracts the error code from any error.
// Returns CodeUnknown if the error is not a domain error.
func GetCode(err error) Code {
	var e *Error
	if As(err, &e) {
		return e.Code
	}
	return CodeUnknown
}

// IsCode checks if the error has the specified code.
func IsCode(err error, code Code) bool {
	return GetCode(err) == code
}
