package freestyle

import (
	"encoding/json"
	"errors"
	"math/rand"
	"testing"

	"github.com/stretchr/testify/require"
)

func seatOneSetup() Setup {
	flag := Square{Row: 7, Col: 0}
	return Setup{
		Flag: &flag,
		Assignments: map[string]string{
			"7-0": "rock", "7-1": "paper", "7-2": "scissors", "7-3": "rock",
			"7-4": "command", "7-5": "paper", "7-6": "scissors", "7-7": "rock",
			"6-0": "paper", "6-1": "scissors", "6-2": "rock", "6-3": "paper", "6-4": "scissors",
		},
		CommandRole: Rock,
	}
}

func TestSetupValidation(t *testing.T) {
	cases := []struct {
		name   string
		mutate func(s *Setup)
		seat   Seat
		want   error
	}{
		{name: "valid", mutate: func(s *Setup) {}, seat: SeatOne},
		{name: "wrong seat rows", mutate: func(s *Setup) {}, seat: SeatTwo, want: ErrInvalidPayload},
		{name: "missing flag", mutate: func(s *Setup) { s.Flag = nil }, seat: SeatOne, want: ErrInvalidPayload},
		{name: "unknown role", mutate: func(s *Setup) { s.Assignments["6-4"] = "lizard" }, seat: SeatOne, want: ErrInvalidPayload},
		{name: "bad key", mutate: func(s *Setup) { delete(s.Assignments, "6-4"); s.Assignments["x"] = "scissors" }, seat: SeatOne, want: ErrInvalidPayload},
		{name: "twelve pieces", mutate: func(s *Setup) { delete(s.Assignments, "6-4") }, seat: SeatOne, want: ErrWrongRoleCounts},
		{name: "five rocks", mutate: func(s *Setup) { s.Assignments["6-4"] = "rock" }, seat: SeatOne, want: ErrWrongRoleCounts},
		{name: "two commands", mutate: func(s *Setup) { s.Assignments["6-4"] = "command"; s.Assignments["6-5"] = "scissors" }, seat: SeatOne, want: ErrWrongRoleCounts},
		{name: "flag on empty cell", mutate: func(s *Setup) { f := Square{Row: 6, Col: 7}; s.Flag = &f }, seat: SeatOne, want: ErrFlagInvalid},
		{name: "bad command role", mutate: func(s *Setup) { s.CommandRole = "spock" }, seat: SeatOne, want: ErrInvalidPayload},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			s := seatOneSetup()
			tc.mutate(&s)
			err := s.Validate(tc.seat)
			if tc.want == nil {
				require.NoError(t, err)
				return
			}
			require.ErrorIs(t, err, tc.want)
		})
	}
}

func TestSetupPayloadDecodesSquareForms(t *testing.T) {
	var s Setup
	raw := `{"flag":"7-0","assignments":{"7-0":"r"}}`
	if err := json.Unmarshal([]byte(raw), &s); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if s.Flag == nil || *s.Flag != (Square{Row: 7, Col: 0}) {
		t.Fatalf("flag decoded wrong: %+v", s.Flag)
	}
	var sq Square
	if err := json.Unmarshal([]byte(`[3,5]`), &sq); err != nil || sq != (Square{Row: 3, Col: 5}) {
		t.Fatalf("array form: %+v %v", sq, err)
	}
	if err := json.Unmarshal([]byte(`"9-1"`), &sq); !errors.Is(err, ErrInvalidPayload) {
		t.Fatalf("expected off-board error, got %v", err)
	}
}

func TestRandomSetupAlwaysValid(t *testing.T) {
	rng := rand.New(rand.NewSource(7))
	for i := 0; i < 200; i++ {
		for _, seat := range []Seat{SeatOne, SeatTwo} {
			s := RandomSetup(rng, seat)
			require.NoError(t, s.Validate(seat), "iteration %d seat %d", i, seat)
		}
	}
}

func deployed(t *testing.T) *State {
	t.Helper()
	st := NewState("p1", "p2")
	rng := rand.New(rand.NewSource(1))
	require.NoError(t, st.Submit("p1", SeatOne, seatOneSetup(), false))
	require.NoError(t, st.Submit("p2", SeatTwo, RandomSetup(rng, SeatTwo), true))
	require.True(t, st.AllReady())
	require.NoError(t, st.Deploy("p1", "p2", rng))
	return st
}

func TestDeployPlacesBothSides(t *testing.T) {
	st := deployed(t)
	require.Len(t, st.Pieces, 2*PiecesPerSide)
	require.Nil(t, st.Setups)
	for _, id := range []string{"p1", "p2"} {
		flags, commands := 0, 0
		for _, p := range st.Pieces {
			if p.Owner != id {
				continue
			}
			if p.HasFlag {
				flags++
			}
			if p.Kind == KindCommand {
				commands++
				require.NotEmpty(t, p.Role)
			}
		}
		require.Equal(t, 1, flags, id)
		require.Equal(t, 1, commands, id)
	}
	cmd := st.Pieces[st.PieceAt(Square{Row: 7, Col: 4})]
	require.Equal(t, KindCommand, cmd.Kind)
	require.Equal(t, Rock, cmd.Role)
	require.ErrorIs(t, st.Deploy("p1", "p2", nil), ErrAlreadyPlaced)
}

func board(pieces ...Piece) *State {
	st := NewState("p1", "p2")
	st.Pieces = pieces
	return st
}

func TestMovementRules(t *testing.T) {
	st := board(
		Piece{ID: "c1", Owner: "p1", Kind: KindCommand, Role: Rock, Row: 7, Col: 4},
		Piece{ID: "u1", Owner: "p1", Kind: KindUnit, Role: Paper, Row: 5, Col: 4},
		Piece{ID: "u2", Owner: "p2", Kind: KindUnit, Role: Paper, Row: 0, Col: 0},
	)
	require.NoError(t, st.Validate("p1", Square{7, 4}, Square{4, 1}))
	require.NoError(t, st.Validate("p1", Square{7, 4}, Square{7, 0}))
	require.ErrorIs(t, st.Validate("p1", Square{7, 4}, Square{3, 4}), ErrPathBlocked)
	require.ErrorIs(t, st.Validate("p1", Square{7, 4}, Square{5, 3}), ErrBadStep)
	require.NoError(t, st.Validate("p1", Square{5, 4}, Square{4, 5}))
	require.ErrorIs(t, st.Validate("p1", Square{5, 4}, Square{3, 4}), ErrBadStep)
	require.ErrorIs(t, st.Validate("p1", Square{0, 0}, Square{1, 0}), ErrNotOwner)
	require.ErrorIs(t, st.Validate("p1", Square{3, 3}, Square{2, 3}), ErrNoPiece)
	require.ErrorIs(t, st.Validate("p1", Square{5, 4}, Square{5, 4}), ErrSameSquare)
	require.ErrorIs(t, st.Validate("p1", Square{5, 4}, Square{5, 8}), ErrOffBoard)
	require.ErrorIs(t, st.Validate("p1", Square{7, 4}, Square{5, 4}), ErrOwnPiece)

	out, err := st.Apply("p1", Square{5, 4}, Square{4, 4})
	require.NoError(t, err)
	require.Nil(t, out.Combat)
	require.Equal(t, 4, st.Pieces[1].Row)
}

func TestCombatAttackerWinsTakesSquare(t *testing.T) {
	st := board(
		Piece{ID: "a", Owner: "p1", Kind: KindUnit, Role: Rock, Row: 4, Col: 4},
		Piece{ID: "d", Owner: "p2", Kind: KindUnit, Role: Scissors, Row: 3, Col: 4},
	)
	out, err := st.Apply("p1", Square{4, 4}, Square{3, 4})
	require.NoError(t, err)
	require.NotNil(t, out.Combat)
	require.Equal(t, AttackerWins, out.Combat.Result)
	require.Empty(t, out.WinnerID)
	require.True(t, st.Pieces[1].Dead)
	require.Equal(t, Square{3, 4}, st.Pieces[0].Square())
	require.True(t, st.Pieces[0].Revealed)
	require.True(t, st.Pieces[1].Revealed)
	require.Len(t, st.Log, 1)
}

func TestCombatDefenderWinsKeepsSquare(t *testing.T) {
	st := board(
		Piece{ID: "a", Owner: "p1", Kind: KindUnit, Role: Scissors, Row: 4, Col: 4},
		Piece{ID: "d", Owner: "p2", Kind: KindUnit, Role: Rock, Row: 3, Col: 4},
	)
	out, err := st.Apply("p1", Square{4, 4}, Square{3, 4})
	require.NoError(t, err)
	require.Equal(t, DefenderWins, out.Combat.Result)
	require.True(t, st.Pieces[0].Dead)
	require.Equal(t, Square{4, 4}, st.Pieces[0].Square())
	require.False(t, st.Pieces[1].Dead)
	require.Equal(t, 1, st.PieceAt(Square{3, 4}))
}

func TestCombatDrawKillsBoth(t *testing.T) {
	st := board(
		Piece{ID: "a", Owner: "p1", Kind: KindUnit, Role: Paper, Row: 4, Col: 4},
		Piece{ID: "d", Owner: "p2", Kind: KindUnit, Role: Paper, Row: 3, Col: 4},
	)
	out, err := st.Apply("p1", Square{4, 4}, Square{3, 4})
	require.NoError(t, err)
	require.Equal(t, Draw, out.Combat.Result)
	require.True(t, st.Pieces[0].Dead)
	require.True(t, st.Pieces[1].Dead)
	require.Equal(t, -1, st.PieceAt(Square{3, 4}))
	require.Equal(t, -1, st.PieceAt(Square{4, 4}))
}

func TestFlagCaptureDecidesWinner(t *testing.T) {
	st := board(
		Piece{ID: "a", Owner: "p1", Kind: KindUnit, Role: Rock, Row: 4, Col: 4},
		Piece{ID: "d", Owner: "p2", Kind: KindUnit, Role: Scissors, HasFlag: true, Row: 3, Col: 4},
	)
	out, err := st.Apply("p1", Square{4, 4}, Square{3, 4})
	require.NoError(t, err)
	require.Equal(t, "p1", out.WinnerID)
	require.True(t, st.Log[0].FlagCaptured)

	st = board(
		Piece{ID: "a", Owner: "p1", Kind: KindUnit, Role: Paper, HasFlag: true, Row: 4, Col: 4},
		Piece{ID: "d", Owner: "p2", Kind: KindUnit, Role: Scissors, Row: 3, Col: 4},
	)
	out, err = st.Apply("p1", Square{4, 4}, Square{3, 4})
	require.NoError(t, err)
	require.Equal(t, "p2", out.WinnerID)

	st = board(
		Piece{ID: "a", Owner: "p1", Kind: KindUnit, Role: Paper, HasFlag: true, Row: 4, Col: 4},
		Piece{ID: "d", Owner: "p2", Kind: KindUnit, Role: Paper, HasFlag: true, Row: 3, Col: 4},
	)
	out, err = st.Apply("p1", Square{4, 4}, Square{3, 4})
	require.NoError(t, err)
	require.Equal(t, "p1", out.WinnerID)
}

func TestViewHidesEnemySecrets(t *testing.T) {
	st := board(
		Piece{ID: "a", Owner: "p1", Kind: KindUnit, Role: Rock, HasFlag: true, Row: 4, Col: 4},
		Piece{ID: "d", Owner: "p2", Kind: KindUnit, Role: Paper, HasFlag: true, Row: 3, Col: 4},
		Piece{ID: "e", Owner: "p2", Kind: KindUnit, Role: Scissors, Revealed: true, Row: 2, Col: 4},
	)
	st.Setups = map[string]Setup{"p1": seatOneSetup(), "p2": {}}

	v := st.View("p1", false)
	require.Equal(t, Rock, v.Pieces[0].Role)
	require.True(t, v.Pieces[0].HasFlag)
	require.Empty(t, v.Pieces[1].Role)
	require.False(t, v.Pieces[1].HasFlag)
	require.Equal(t, Scissors, v.Pieces[2].Role)
	require.Contains(t, v.Setups, "p1")
	require.NotContains(t, v.Setups, "p2")
	require.Equal(t, Paper, st.Pieces[1].Role, "view must not mutate the source")

	full := st.View("", true)
	require.Equal(t, Paper, full.Pieces[1].Role)
}
