package freestyle

import "fmt"

// Outcome summarises what a committed move did to the match.
type Outcome struct {
	Combat   *Combat
	WinnerID string
}

// Validate checks that mover may move the piece on from to to.
func (st *State) Validate(mover string, from, to Square) error {
	if !st.Deployed() {
		return ErrNotDeployed
	}
	if !from.InBounds() || !to.InBounds() {
		return ErrOffBoard
	}
	if from == to {
		return ErrSameSquare
	}
	src := st.PieceAt(from)
	if src < 0 {
		return fmt.Errorf("%w: %s", ErrNoPiece, from)
	}
	piece := st.Pieces[src]
	if piece.Owner != mover {
		return ErrNotOwner
	}
	if dst := st.PieceAt(to); dst >= 0 && st.Pieces[dst].Owner == mover {
		return ErrOwnPiece
	}
	dr, dc := to.Row-from.Row, to.Col-from.Col
	if piece.Kind != KindCommand {
		if abs(dr) > 1 || abs(dc) > 1 {
			return fmt.Errorf("%w: units move one square", ErrBadStep)
		}
		return nil
	}
	if dr != 0 && dc != 0 && abs(dr) != abs(dc) {
		return fmt.Errorf("%w: command moves in straight or diagonal lines", ErrBadStep)
	}
	sr, sc := sign(dr), sign(dc)
	for r, c := from.Row+sr, from.Col+sc; r != to.Row || c != to.Col; r, c = r+sr, c+sc {
		if st.PieceAt(Square{Row: r, Col: c}) >= 0 {
			return fmt.Errorf("%w at %d-%d", ErrPathBlocked, r, c)
		}
	}
	return nil
}

// Apply validates and performs the move in place. Moving onto an enemy
// piece resolves combat: a defender that dies yields its square, an
// attacker that dies never takes it, a draw kills both. Losing a flag
// carrier ends the match.
func (st *State) Apply(mover string, from, to Square) (Outcome, error) {
	if err := st.Validate(mover, from, to); err != nil {
		return Outcome{}, err
	}
	ai := st.PieceAt(from)
	di := st.PieceAt(to)
	if di < 0 {
		st.Pieces[ai].Row, st.Pieces[ai].Col = to.Row, to.Col
		return Outcome{}, nil
	}

	att, def := &st.Pieces[ai], &st.Pieces[di]
	att.Revealed, def.Revealed = true, true
	c := Combat{
		Seq:          len(st.Log) + 1,
		AttackerID:   att.ID,
		DefenderID:   def.ID,
		AttackerRole: att.Role,
		DefenderRole: def.Role,
		From:         from,
		To:           to,
		Result:       Resolve(att.Role, def.Role),
	}
	var out Outcome
	switch c.Result {
	case AttackerWins:
		def.Dead = true
		att.Row, att.Col = to.Row, to.Col
		if def.HasFlag {
			out.WinnerID = att.Owner
		}
	case DefenderWins:
		att.Dead = true
		if att.HasFlag {
			out.WinnerID = def.Owner
		}
	case Draw:
		att.Dead, def.Dead = true, true
		switch {
		case def.HasFlag:
			out.WinnerID = att.Owner
		case att.HasFlag:
			out.WinnerID = def.Owner
		}
	}
	c.FlagCaptured = out.WinnerID != ""
	st.Log = append(st.Log, c)
	out.Combat = &c
	return out, nil
}

func abs(v int) int {
	if v < 0 {
		return -v
	}
	return v
}

func sign(v int) int {
	switch {
	case v > 0:
		return 1
	case v < 0:
		return -1
	}
	return 0
}
