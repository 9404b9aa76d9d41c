// Package rules holds the per-game rule engines behind one interface. The
// engines are pure: they take a state document and a move and return the
// next document plus the effects the commit controller needs.
package rules

import (
	"errors"
	"fmt"
	"strings"

	"github.com/park285/turnsync/internal/freestyle"
)

// GameType tags which engine owns a state document.
type GameType string

const (
	FreestyleChess GameType = "freestyle_chess"
	Chess          GameType = "chess"
	TicTacToe      GameType = "tictactoe"
	RPS            GameType = "rps"
)

var (
	ErrIllegalMove   = errors.New("illegal move")
	ErrUnknownGame   = errors.New("unknown game type")
	ErrStateMismatch = errors.New("state document does not match game type")
)

// ParseGameType normalises a game type name. Empty means freestyle chess.
func ParseGameType(raw string) (GameType, error) {
	switch t := GameType(strings.ToLower(strings.TrimSpace(raw))); t {
	case "":
		return FreestyleChess, nil
	case FreestyleChess, Chess, TicTacToe, RPS:
		return t, nil
	}
	return "", fmt.Errorf("%w: %q", ErrUnknownGame, raw)
}

// NeedsSetup reports whether the game has a private setup phase.
func (t GameType) NeedsSetup() bool { return t == FreestyleChess }

// Players binds the two seats. One always moves first.
type Players struct {
	One string
	Two string
}

func (p Players) Has(id string) bool { return id != "" && (id == p.One || id == p.Two) }

// Other returns the opponent of id.
func (p Players) Other(id string) string {
	switch id {
	case p.One:
		return p.Two
	case p.Two:
		return p.One
	}
	return ""
}

// Seat maps a player to their freestyle seat.
func (p Players) Seat(id string) freestyle.Seat {
	if id == p.Two {
		return freestyle.SeatTwo
	}
	return freestyle.SeatOne
}

// Move is the wire shape of a move for every game type; each engine reads
// the fields it understands.
type Move struct {
	From     *freestyle.Square `json:"from,omitempty"`
	To       *freestyle.Square `json:"to,omitempty"`
	Notation string            `json:"notation,omitempty"`
	Cell     *int              `json:"cell,omitempty"`
	Throw    string            `json:"throw,omitempty"`
}

// Effects reports what a move did beyond the new document.
type Effects struct {
	Combat   *freestyle.Combat `json:"combat,omitempty"`
	Notation string            `json:"notation,omitempty"`
	WinnerID string            `json:"winnerId,omitempty"`
	Draw     bool              `json:"draw,omitempty"`
	Finished bool              `json:"finished"`
}

// Engine is the rule set of one game type. Apply never mutates its input.
type Engine interface {
	Type() GameType
	NewState(p Players) Document
	Validate(doc Document, p Players, mover string, mv Move) error
	Apply(doc Document, p Players, mover string, mv Move) (Document, Effects, error)
}

// Passer is implemented by engines whose state tracks the side to move.
// Pass records that mover lost their turn without moving.
type Passer interface {
	Pass(doc Document, p Players, mover string) (Document, Effects, error)
}

// Pass hands the move to mover's opponent inside the state document. Engines
// that do not track the side to move return doc unchanged.
func Pass(doc Document, p Players, mover string) (Document, Effects, error) {
	e, err := For(doc.Type)
	if err != nil {
		return Document{}, Effects{}, err
	}
	if ps, ok := e.(Passer); ok {
		return ps.Pass(doc, p, mover)
	}
	return doc, Effects{}, nil
}

var engines = map[GameType]Engine{
	FreestyleChess: freestyleEngine{},
	Chess:          chessEngine{},
	TicTacToe:      tictactoeEngine{},
	RPS:            rpsEngine{},
}

// For returns the engine registered for t.
func For(t GameType) (Engine, error) {
	e, ok := engines[t]
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrUnknownGame, t)
	}
	return e, nil
}

func illegal(reason error) error {
	if errors.Is(reason, ErrIllegalMove) {
		return reason
	}
	return fmt.Errorf("%w: %w", ErrIllegalMove, reason)
}

func illegalf(format string, args ...any) error {
	return fmt.Errorf("%w: %s", ErrIllegalMove, fmt.Sprintf(format, args...))
}
