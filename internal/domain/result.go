package domain

import "time"

// MatchResult is the archived summary of one finished session.
type MatchResult struct {
	SessionID string
	LobbyID   string
	GameType  string
	Player1ID string
	Player2ID string
	WinnerID  string
	Outcome   string
	Turns     int
	Penalties map[string]int
	MovesUCI  []string
	MovesSAN  []string
	PGN       string
	Combats   int
	StartedAt time.Time
	EndedAt   time.Time
	Duration  time.Duration
}
