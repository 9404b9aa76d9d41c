package rules

import "github.com/park285/turnsync/internal/freestyle"

// Document is the per-session state blob. Exactly one variant is set and
// it matches Type.
type Document struct {
	Type      GameType         `json:"type"`
	Freestyle *freestyle.State `json:"freestyle,omitempty"`
	Chess     *ChessState      `json:"chess,omitempty"`
	TicTacToe *TicTacToeState  `json:"tictactoe,omitempty"`
	RPS       *RPSState        `json:"rps,omitempty"`
}

// Check verifies the tag and the populated variant agree.
func (d Document) Check() error {
	set := 0
	ok := false
	if d.Freestyle != nil {
		set++
		ok = d.Type == FreestyleChess
	}
	if d.Chess != nil {
		set++
		ok = d.Type == Chess
	}
	if d.TicTacToe != nil {
		set++
		ok = d.Type == TicTacToe
	}
	if d.RPS != nil {
		set++
		ok = d.Type == RPS
	}
	if set != 1 || !ok {
		return ErrStateMismatch
	}
	return nil
}

// Clone returns a deep copy.
func (d Document) Clone() Document {
	out := Document{Type: d.Type}
	if d.Freestyle != nil {
		out.Freestyle = d.Freestyle.Clone()
	}
	if d.Chess != nil {
		c := *d.Chess
		c.MovesUCI = append([]string{}, d.Chess.MovesUCI...)
		c.MovesSAN = append([]string{}, d.Chess.MovesSAN...)
		out.Chess = &c
	}
	if d.TicTacToe != nil {
		t := *d.TicTacToe
		out.TicTacToe = &t
	}
	if d.RPS != nil {
		out.RPS = d.RPS.clone()
	}
	return out
}

// View returns the document as viewerID may see it. Finished matches are
// shown in full.
func (d Document) View(viewerID string, finished bool) Document {
	out := d.Clone()
	if finished {
		return out
	}
	if out.Freestyle != nil {
		out.Freestyle = out.Freestyle.View(viewerID, false)
	}
	if out.RPS != nil {
		for id := range out.RPS.Throws {
			if id != viewerID {
				out.RPS.Throws[id] = hiddenThrow
			}
		}
	}
	return out
}
