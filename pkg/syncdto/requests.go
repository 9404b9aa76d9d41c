package syncdto

import "encoding/json"

type CreateLobbyRequest struct {
	Name     string `json:"name"`
	GameType string `json:"gameType"`
}

type PlayerRequest struct {
	PlayerID string `json:"playerId"`
}

type JoinLobbyResponse struct {
	Team   int             `json:"team"`
	Lobby  json.RawMessage `json:"lobby"`
	Notice string          `json:"notice,omitempty"`
}

// LeaveLobbyResponse omits Lobby when the last member left and the lobby
// was deleted.
type LeaveLobbyResponse struct {
	Lobby  json.RawMessage `json:"lobby,omitempty"`
	Notice string          `json:"notice,omitempty"`
}

// SetupRequest carries a private freestyle setup. Setup is decoded by the
// rule engine.
type SetupRequest struct {
	PlayerID string          `json:"playerId"`
	Setup    json.RawMessage `json:"setup"`
}

type SetupResponse struct {
	OK       bool `json:"ok"`
	AllReady bool `json:"allReady"`
}

// MoveRequest submits one move for the turn the client last saw.
type MoveRequest struct {
	PlayerID  string          `json:"playerId"`
	TurnIndex int             `json:"turnIndex"`
	Move      json.RawMessage `json:"move"`
}

type MoveResponse struct {
	OK      bool            `json:"ok"`
	Session json.RawMessage `json:"session"`
}
