package syncdto

// Stable error codes returned to clients.
const (
	CodeStaleTurn        = "stale_turn"
	CodeNotYourTurn      = "not_your_turn"
	CodeIllegalMove      = "illegal_move"
	CodeInvalidPayload   = "invalid_payload"
	CodeFlagInvalid      = "flag_invalid"
	CodeWrongRoleCounts  = "wrong_role_counts"
	CodeSessionNotFound  = "session_not_found"
	CodeLobbyNotFound    = "lobby_not_found"
	CodeLobbyFull        = "lobby_full"
	CodeNotInLobby       = "not_in_lobby"
	CodeSessionNotActive = "session_not_active"
	CodeWrongPhase       = "wrong_phase"
	CodeBadRequest       = "bad_request"
	CodeBusy             = "busy"
	CodeInternal         = "internal"
)

// DomainError is the wire form of a rejected request. Retryable errors are
// fixed by refetching the session and trying again.
type DomainError struct {
	Code      string `json:"code"`
	Message   string `json:"message,omitempty"`
	Retryable bool   `json:"retryable"`
}

func (e DomainError) Error() string {
	if e.Message != "" {
		return e.Message
	}
	if e.Code != "" {
		return e.Code
	}
	return "turnsync error"
}
