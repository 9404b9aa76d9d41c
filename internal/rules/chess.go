package rules

import (
	"fmt"
	"strconv"
	"strings"

	nchess "github.com/corentings/chess/v2"
)

// Null move markers recorded when a player times out.
const (
	PassUCI = "0000"
	PassSAN = "--"
)

// ChessState is a standard chess game kept as its move list. FEN is derived
// and stored for display. A timed-out turn is stored as PassUCI.
type ChessState struct {
	FEN      string   `json:"fen"`
	MovesUCI []string `json:"movesUci"`
	MovesSAN []string `json:"movesSan"`
	Outcome  string   `json:"outcome,omitempty"`
	Method   string   `json:"method,omitempty"`
}

type chessEngine struct{}

func (chessEngine) Type() GameType { return Chess }

func (chessEngine) NewState(Players) Document {
	return Document{Type: Chess, Chess: &ChessState{
		FEN:      nchess.NewGame().FEN(),
		MovesUCI: []string{},
		MovesSAN: []string{},
	}}
}

func (e chessEngine) Validate(doc Document, p Players, mover string, mv Move) error {
	_, _, err := e.play(doc, p, mover, mv)
	return err
}

func (e chessEngine) Apply(doc Document, p Players, mover string, mv Move) (Document, Effects, error) {
	game, san, err := e.play(doc, p, mover, mv)
	if err != nil {
		return Document{}, Effects{}, err
	}
	next := doc.Clone()
	st := next.Chess
	st.MovesUCI = append(st.MovesUCI, lastMove(game).String())
	st.MovesSAN = append(st.MovesSAN, san)
	st.FEN = game.FEN()

	eff := Effects{Notation: san}
	switch game.Outcome() {
	case nchess.WhiteWon:
		eff.Finished, eff.WinnerID = true, p.One
	case nchess.BlackWon:
		eff.Finished, eff.WinnerID = true, p.Two
	case nchess.Draw:
		eff.Finished, eff.Draw = true, true
	}
	if eff.Finished {
		st.Outcome = string(game.Outcome())
		st.Method = fmt.Sprint(game.Method())
	}
	return next, eff, nil
}

// Pass records a null move for mover. A side in check cannot pass, so the
// timeout ends the game in the opponent's favour instead.
func (e chessEngine) Pass(doc Document, p Players, mover string) (Document, Effects, error) {
	game, err := e.replay(doc, p, mover)
	if err != nil {
		return Document{}, Effects{}, err
	}
	next := doc.Clone()
	st := next.Chess
	if inCheck(game) {
		eff := Effects{Finished: true, WinnerID: p.Other(mover)}
		st.Outcome = "1-0"
		if eff.WinnerID == p.Two {
			st.Outcome = "0-1"
		}
		st.Method = "Timeout"
		return next, eff, nil
	}
	passed, err := passTurn(game)
	if err != nil {
		return Document{}, Effects{}, illegal(err)
	}
	st.MovesUCI = append(st.MovesUCI, PassUCI)
	st.MovesSAN = append(st.MovesSAN, PassSAN)
	st.FEN = passed.FEN()

	eff := Effects{Notation: PassSAN}
	if passed.Outcome() == nchess.Draw {
		eff.Finished, eff.Draw = true, true
		st.Outcome = string(passed.Outcome())
		st.Method = fmt.Sprint(passed.Method())
	}
	return next, eff, nil
}

// replay rebuilds the stored game and checks that mover is the side to move.
func (chessEngine) replay(doc Document, p Players, mover string) (*nchess.Game, error) {
	if doc.Chess == nil {
		return nil, ErrStateMismatch
	}
	game := reconstruct(doc.Chess.MovesUCI)
	if game == nil {
		return nil, illegalf("stored move list does not replay")
	}
	if game.Outcome() != nchess.NoOutcome {
		return nil, illegalf("game is over")
	}
	want := p.One
	if game.Position().Turn() == nchess.Black {
		want = p.Two
	}
	if mover != want {
		return nil, illegalf("%s is not on move", mover)
	}
	return game, nil
}

// play replays the stored moves and pushes mv, trying UCI before SAN.
func (e chessEngine) play(doc Document, p Players, mover string, mv Move) (*nchess.Game, string, error) {
	game, err := e.replay(doc, p, mover)
	if err != nil {
		return nil, "", err
	}
	raw := strings.TrimSpace(mv.Notation)
	if raw == "" {
		return nil, "", illegalf("notation is required")
	}
	pos := game.Position()
	decoded, err := nchess.UCINotation{}.Decode(pos, strings.ToLower(raw))
	if err != nil {
		if decoded, err = (nchess.AlgebraicNotation{}).Decode(pos, raw); err != nil {
			return nil, "", illegalf("%s: %v", raw, err)
		}
	}
	uci := decoded.String()
	if !isValid(game, uci) {
		return nil, "", illegalf("%s is not legal here", raw)
	}
	if err := game.PushNotationMove(uci, nchess.UCINotation{}, nil); err != nil {
		return nil, "", illegalf("%s: %v", raw, err)
	}
	last := lastMove(game)
	if last == nil {
		return nil, "", illegalf("%s", raw)
	}
	return game, nchess.AlgebraicNotation{}.Encode(pos, last), nil
}

func isValid(game *nchess.Game, uci string) bool {
	for _, v := range game.ValidMoves() {
		if v.String() == uci {
			return true
		}
	}
	return false
}

// reconstruct replays a UCI move list. A PassUCI entry restarts the game
// from the current position with the other side to move, so repetition
// history does not carry across a pass.
func reconstruct(moves []string) *nchess.Game {
	game := nchess.NewGame()
	for _, mv := range moves {
		if mv == PassUCI {
			next, err := passTurn(game)
			if err != nil {
				return nil
			}
			game = next
			continue
		}
		if err := game.PushNotationMove(mv, nchess.UCINotation{}, nil); err != nil {
			return nil
		}
	}
	return game
}

// passTurn flips the side to move and clears the en passant square.
func passTurn(game *nchess.Game) (*nchess.Game, error) {
	fields := strings.Fields(game.FEN())
	if len(fields) != 6 {
		return nil, fmt.Errorf("unexpected fen %q", game.FEN())
	}
	if fields[1] == "w" {
		fields[1] = "b"
	} else {
		fields[1] = "w"
		n, err := strconv.Atoi(fields[5])
		if err != nil {
			return nil, fmt.Errorf("fen move number: %w", err)
		}
		fields[5] = strconv.Itoa(n + 1)
	}
	fields[3] = "-"
	opt, err := nchess.FEN(strings.Join(fields, " "))
	if err != nil {
		return nil, err
	}
	return nchess.NewGame(opt), nil
}

// inCheck reports whether the side on move is in check. A position rebuilt
// by a pass has no move history, but it never starts in check.
func inCheck(game *nchess.Game) bool {
	last := lastMove(game)
	return last != nil && last.HasTag(nchess.Check)
}
