package rules

import (
	"encoding/json"
	"errors"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/park285/turnsync/internal/freestyle"
)

var players = Players{One: "alice", Two: "bob"}

func cell(i int) *int { return &i }

type step struct {
	by string
	mv Move
}

func play(t *testing.T, typ GameType, moves ...step) (Document, Effects) {
	t.Helper()
	e, err := For(typ)
	require.NoError(t, err)
	doc := e.NewState(players)
	var eff Effects
	for i, m := range moves {
		doc, eff, err = e.Apply(doc, players, m.by, m.mv)
		require.NoError(t, err, "move %d", i)
	}
	return doc, eff
}

func TestParseGameType(t *testing.T) {
	gt, err := ParseGameType("")
	require.NoError(t, err)
	require.Equal(t, FreestyleChess, gt)
	gt, err = ParseGameType(" Chess ")
	require.NoError(t, err)
	require.Equal(t, Chess, gt)
	_, err = ParseGameType("go")
	require.ErrorIs(t, err, ErrUnknownGame)
	require.True(t, FreestyleChess.NeedsSetup())
	require.False(t, RPS.NeedsSetup())
}

func TestChessUCIAndSAN(t *testing.T) {
	doc, eff := play(t, Chess,
		step{"alice", Move{Notation: "e2e4"}},
		step{"bob", Move{Notation: "e5"}},
		step{"alice", Move{Notation: "Nf3"}},
	)
	require.False(t, eff.Finished)
	require.Equal(t, []string{"e2e4", "e7e5", "g1f3"}, doc.Chess.MovesUCI)
	require.Equal(t, "Nf3", doc.Chess.MovesSAN[2])
	require.Contains(t, doc.Chess.FEN, " b ")
}

func TestChessRejectsIllegalAndWrongSide(t *testing.T) {
	e, _ := For(Chess)
	doc := e.NewState(players)
	_, _, err := e.Apply(doc, players, "alice", Move{Notation: "e2e5"})
	require.ErrorIs(t, err, ErrIllegalMove)
	_, _, err = e.Apply(doc, players, "bob", Move{Notation: "e7e5"})
	require.ErrorIs(t, err, ErrIllegalMove)
	_, _, err = e.Apply(doc, players, "alice", Move{})
	require.ErrorIs(t, err, ErrIllegalMove)
	require.Empty(t, doc.Chess.MovesUCI, "rejected moves must not touch the input")
}

func TestChessCheckmateWinner(t *testing.T) {
	doc, eff := play(t, Chess,
		step{"alice", Move{Notation: "f2f3"}},
		step{"bob", Move{Notation: "e7e5"}},
		step{"alice", Move{Notation: "g2g4"}},
		step{"bob", Move{Notation: "d8h4"}},
	)
	require.True(t, eff.Finished)
	require.Equal(t, "bob", eff.WinnerID)
	require.Equal(t, "0-1", doc.Chess.Outcome)
}

func TestChessPassFlipsSideToMove(t *testing.T) {
	e, _ := For(Chess)
	doc, _ := play(t, Chess, step{"alice", Move{Notation: "e2e4"}})

	doc, eff, err := Pass(doc, players, "bob")
	require.NoError(t, err)
	require.False(t, eff.Finished)
	require.Equal(t, PassSAN, eff.Notation)
	require.Equal(t, []string{"e2e4", PassUCI}, doc.Chess.MovesUCI)
	require.Contains(t, doc.Chess.FEN, " w KQkq - ")

	_, _, err = e.Apply(doc, players, "bob", Move{Notation: "e7e5"})
	require.ErrorIs(t, err, ErrIllegalMove)
	doc, _, err = e.Apply(doc, players, "alice", Move{Notation: "d4"})
	require.NoError(t, err)
	require.Equal(t, "d4", doc.Chess.MovesSAN[2])
	require.Contains(t, doc.Chess.FEN, " b ")

	_, _, err = Pass(doc, players, "alice")
	require.ErrorIs(t, err, ErrIllegalMove, "only the side on move can pass")
}

func TestChessPassInCheckEndsGame(t *testing.T) {
	doc, _ := play(t, Chess,
		step{"alice", Move{Notation: "e2e4"}},
		step{"bob", Move{Notation: "f7f6"}},
		step{"alice", Move{Notation: "d1h5"}},
	)
	next, eff, err := Pass(doc, players, "bob")
	require.NoError(t, err)
	require.True(t, eff.Finished)
	require.Equal(t, "alice", eff.WinnerID)
	require.Equal(t, "1-0", next.Chess.Outcome)
	require.Len(t, next.Chess.MovesUCI, 3)
}

func TestPassLeavesUntrackedGamesAlone(t *testing.T) {
	doc, _ := play(t, TicTacToe, step{"alice", Move{Cell: cell(4)}})
	next, eff, err := Pass(doc, players, "bob")
	require.NoError(t, err)
	require.Equal(t, Effects{}, eff)
	require.Equal(t, doc, next)
}

func TestTicTacToe(t *testing.T) {
	_, eff := play(t, TicTacToe,
		step{"alice", Move{Cell: cell(0)}},
		step{"bob", Move{Cell: cell(3)}},
		step{"alice", Move{Cell: cell(1)}},
		step{"bob", Move{Cell: cell(4)}},
		step{"alice", Move{Cell: cell(2)}},
	)
	require.True(t, eff.Finished)
	require.Equal(t, "alice", eff.WinnerID)

	_, eff = play(t, TicTacToe,
		step{"alice", Move{Cell: cell(0)}},
		step{"bob", Move{Cell: cell(1)}},
		step{"alice", Move{Cell: cell(2)}},
		step{"bob", Move{Cell: cell(4)}},
		step{"alice", Move{Cell: cell(3)}},
		step{"bob", Move{Cell: cell(5)}},
		step{"alice", Move{Cell: cell(7)}},
		step{"bob", Move{Cell: cell(6)}},
		step{"alice", Move{Cell: cell(8)}},
	)
	require.True(t, eff.Finished)
	require.True(t, eff.Draw)
	require.Empty(t, eff.WinnerID)

	e, _ := For(TicTacToe)
	doc, _ := play(t, TicTacToe, step{"alice", Move{Cell: cell(4)}})
	_, _, err := e.Apply(doc, players, "bob", Move{Cell: cell(4)})
	require.ErrorIs(t, err, ErrIllegalMove)
	_, _, err = e.Apply(doc, players, "bob", Move{Cell: cell(9)})
	require.ErrorIs(t, err, ErrIllegalMove)
}

func TestRPSTieThenWin(t *testing.T) {
	doc, eff := play(t, RPS,
		step{"alice", Move{Throw: "rock"}},
		step{"bob", Move{Throw: "rock"}},
	)
	require.False(t, eff.Finished)
	require.Len(t, doc.RPS.Rounds, 1)
	require.Empty(t, doc.RPS.Throws)

	doc, eff = play(t, RPS,
		step{"alice", Move{Throw: "rock"}},
		step{"bob", Move{Throw: "rock"}},
		step{"alice", Move{Throw: "paper"}},
		step{"bob", Move{Throw: "scissors"}},
	)
	require.True(t, eff.Finished)
	require.Equal(t, "bob", eff.WinnerID)
	require.Len(t, doc.RPS.Rounds, 2)
}

func TestRPSViewHidesPendingThrow(t *testing.T) {
	doc, _ := play(t, RPS, step{"alice", Move{Throw: "paper"}})
	require.Equal(t, hiddenThrow, doc.View("bob", false).RPS.Throws["alice"])
	require.Equal(t, "paper", doc.View("alice", false).RPS.Throws["alice"])
	require.Equal(t, "paper", doc.RPS.Throws["alice"])

	e, _ := For(RPS)
	_, _, err := e.Apply(doc, players, "alice", Move{Throw: "rock"})
	require.ErrorIs(t, err, ErrIllegalMove)
}

func TestFreestyleEngineWrapsRuleErrors(t *testing.T) {
	e, _ := For(FreestyleChess)
	doc := e.NewState(players)
	doc.Freestyle.Pieces = []freestyle.Piece{
		{ID: "a", Owner: "alice", Kind: freestyle.KindUnit, Role: freestyle.Rock, Row: 4, Col: 4},
		{ID: "b", Owner: "bob", Kind: freestyle.KindUnit, Role: freestyle.Scissors, HasFlag: true, Row: 3, Col: 4},
	}
	from, far, to := freestyle.Square{Row: 4, Col: 4}, freestyle.Square{Row: 2, Col: 4}, freestyle.Square{Row: 3, Col: 4}

	_, _, err := e.Apply(doc, players, "alice", Move{From: &from, To: &far})
	require.ErrorIs(t, err, ErrIllegalMove)
	require.ErrorIs(t, err, freestyle.ErrBadStep)

	next, eff, err := e.Apply(doc, players, "alice", Move{From: &from, To: &to})
	require.NoError(t, err)
	require.True(t, eff.Finished)
	require.Equal(t, "alice", eff.WinnerID)
	require.NotNil(t, eff.Combat)
	require.False(t, doc.Freestyle.Pieces[1].Dead, "input document must stay untouched")
	require.True(t, next.Freestyle.Pieces[1].Dead)
}

func TestDocumentCheckAndJSON(t *testing.T) {
	e, _ := For(TicTacToe)
	doc := e.NewState(players)
	require.NoError(t, doc.Check())

	raw, err := json.Marshal(doc)
	require.NoError(t, err)
	require.JSONEq(t, `{"type":"tictactoe","tictactoe":{"cells":["","","","","","","","",""]}}`, string(raw))

	bad := Document{Type: Chess, TicTacToe: doc.TicTacToe}
	require.True(t, errors.Is(bad.Check(), ErrStateMismatch))
}
