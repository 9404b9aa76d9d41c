package syncdto

import "time"

const (
	EventSessionCommitted = "session.committed"
	EventSessionDeleted   = "session.deleted"
)

// Event is the webhook body posted for each session change. It carries the
// summary fields only; receivers fetch the session for the full document.
type Event struct {
	Type       string    `json:"type"`
	SessionID  string    `json:"sessionId"`
	LobbyID    string    `json:"lobbyId,omitempty"`
	GameType   string    `json:"gameType,omitempty"`
	Revision   int64     `json:"revision,omitempty"`
	Status     string    `json:"status,omitempty"`
	TurnIndex  int       `json:"turnIndex"`
	CurrentID  string    `json:"currentPlayerId,omitempty"`
	WinnerID   string    `json:"winnerId,omitempty"`
	Outcome    string    `json:"outcome,omitempty"`
	OccurredAt time.Time `json:"occurredAt"`
}
