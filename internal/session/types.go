package session

import (
    "encoding/json"
    "time"

    "github.com/park285/turnsync/internal/freestyle"
    "github.com/park285/turnsync/internal/rules"
)

type Status string

const (
    StatusSetup    Status = "setup"
    StatusPlaying  Status = "playing"
    StatusFinished Status = "finished"
)

type Outcome string

const (
    OutcomeWin       Outcome = "win"
    OutcomeDraw      Outcome = "draw"
    OutcomeForfeit   Outcome = "forfeit"
    OutcomeAbandoned Outcome = "abandoned"
)

// Session is the single shared document of one match. TurnIndex is the
// optimistic version every writer compares against.
type Session struct {
    ID              string         `json:"id"`
    LobbyID         string         `json:"lobbyId"`
    GameType        rules.GameType `json:"gameType"`
    Player1ID       string         `json:"player1Id"`
    Player2ID       string         `json:"player2Id"`
    State           rules.Document `json:"state"`
    TurnIndex       int            `json:"turnIndex"`
    CurrentPlayerID string         `json:"currentPlayerId"`
    TurnDeadline    *time.Time     `json:"turnDeadline,omitempty"`
    SetupDeadline   *time.Time     `json:"setupDeadline,omitempty"`
    Penalties       map[string]int `json:"penalties"`
    WinnerID        string         `json:"winnerId,omitempty"`
    Outcome         Outcome        `json:"outcome,omitempty"`
    Status          Status         `json:"status"`
    Revision        int64          `json:"revision"`
    LastMove        *rules.Effects `json:"lastMove,omitempty"`
    CreatedAt       time.Time      `json:"createdAt"`
    UpdatedAt       time.Time      `json:"updatedAt"`
}

func (s *Session) Players() rules.Players { return rules.Players{One: s.Player1ID, Two: s.Player2ID} }

func (s *Session) HasPlayer(id string) bool { return s.Players().Has(id) }

func (s *Session) Opponent(id string) string { return s.Players().Other(id) }

func (s *Session) Seat(id string) freestyle.Seat { return s.Players().Seat(id) }

func (s *Session) Finished() bool { return s.Status == StatusFinished }

// Clone returns a deep copy through the document encoding.
func (s *Session) Clone() *Session {
    raw, err := json.Marshal(s)
    if err != nil { panic("session: clone: " + err.Error()) }
    var out Session
    if err := json.Unmarshal(raw, &out); err != nil { panic("session: clone: " + err.Error()) }
    return &out
}

// View is the snapshot a viewer may see. Hidden information is stripped
// while the match is running.
func (s *Session) View(viewerID string) *Session {
    out := s.Clone()
    out.State = s.State.View(viewerID, s.Finished())
    return out
}

// Start moves the session into play with first on move.
func (s *Session) Start(first string, deadline time.Time) {
    s.Status = StatusPlaying
    s.TurnIndex = 1
    s.CurrentPlayerID = first
    s.Penalties = map[string]int{s.Player1ID: 0, s.Player2ID: 0}
    s.SetupDeadline = nil
    d := deadline
    s.TurnDeadline = &d
}

// Advance hands the turn to next.
func (s *Session) Advance(next string, deadline time.Time) {
    s.TurnIndex++
    s.CurrentPlayerID = next
    d := deadline
    s.TurnDeadline = &d
}

// Finish ends the match. winner may be empty for draws.
func (s *Session) Finish(winner string, outcome Outcome) {
    s.Status = StatusFinished
    s.WinnerID = winner
    s.Outcome = outcome
    s.CurrentPlayerID = ""
    s.TurnDeadline = nil
    s.SetupDeadline = nil
}

type LobbyStatus string

const (
    LobbyWaiting  LobbyStatus = "waiting"
    LobbySetup    LobbyStatus = "setup"
    LobbyPlaying  LobbyStatus = "playing"
    LobbyFinished LobbyStatus = "finished"
)

type Member struct {
    PlayerID string    `json:"playerId"`
    Team     int       `json:"team"`
    JoinedAt time.Time `json:"joinedAt"`
}

// Lobby is the pre-game room two players meet in.
type Lobby struct {
    ID            string         `json:"id"`
    Name          string         `json:"name"`
    GameType      rules.GameType `json:"gameType"`
    Status        LobbyStatus    `json:"status"`
    Members       []Member       `json:"members"`
    SessionID     string         `json:"sessionId,omitempty"`
    SetupDeadline *time.Time     `json:"setupDeadline,omitempty"`
    CreatedAt     time.Time      `json:"createdAt"`
    UpdatedAt     time.Time      `json:"updatedAt"`
}

func (l *Lobby) Member(playerID string) (Member, bool) {
    for _, m := range l.Members {
        if m.PlayerID == playerID { return m, true }
    }
    return Member{}, false
}

// StatusFor maps a session status onto the lobby lifecycle.
func StatusFor(s Status) LobbyStatus {
    switch s {
    case StatusSetup:
        return LobbySetup
    case StatusPlaying:
        return LobbyPlaying
    case StatusFinished:
        return LobbyFinished
    }
    return LobbyWaiting
}
