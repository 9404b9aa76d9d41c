package rules

// TicTacToeState is a 3x3 board, cells 0-8 row-major. Player one is X.
type TicTacToeState struct {
	Cells [9]string `json:"cells"`
}

var lines = [8][3]int{
	{0, 1, 2}, {3, 4, 5}, {6, 7, 8},
	{0, 3, 6}, {1, 4, 7}, {2, 5, 8},
	{0, 4, 8}, {2, 4, 6},
}

type tictactoeEngine struct{}

func (tictactoeEngine) Type() GameType { return TicTacToe }

func (tictactoeEngine) NewState(Players) Document {
	return Document{Type: TicTacToe, TicTacToe: &TicTacToeState{}}
}

func (tictactoeEngine) Validate(doc Document, p Players, mover string, mv Move) error {
	if doc.TicTacToe == nil {
		return ErrStateMismatch
	}
	if !p.Has(mover) {
		return illegalf("%s is not seated", mover)
	}
	if mv.Cell == nil {
		return illegalf("cell is required")
	}
	c := *mv.Cell
	if c < 0 || c > 8 {
		return illegalf("cell %d out of range", c)
	}
	if doc.TicTacToe.Cells[c] != "" {
		return illegalf("cell %d is taken", c)
	}
	return nil
}

func (e tictactoeEngine) Apply(doc Document, p Players, mover string, mv Move) (Document, Effects, error) {
	if err := e.Validate(doc, p, mover, mv); err != nil {
		return Document{}, Effects{}, err
	}
	next := doc.Clone()
	mark := "X"
	if mover == p.Two {
		mark = "O"
	}
	board := next.TicTacToe
	board.Cells[*mv.Cell] = mark

	eff := Effects{Notation: mark}
	for _, l := range lines {
		if board.Cells[l[0]] == mark && board.Cells[l[1]] == mark && board.Cells[l[2]] == mark {
			eff.Finished, eff.WinnerID = true, mover
			return next, eff, nil
		}
	}
	for _, c := range board.Cells {
		if c == "" {
			return next, eff, nil
		}
	}
	eff.Finished, eff.Draw = true, true
	return next, eff, nil
}
