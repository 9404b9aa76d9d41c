package freestyle

import (
	"fmt"
	"math/rand"
)

// Readiness is a player's setup status. Auto marks a setup synthesised
// after the setup deadline.
type Readiness struct {
	Ready bool `json:"ready"`
	Auto  bool `json:"auto,omitempty"`
}

// State is the full freestyle board document.
type State struct {
	Pieces []Piece              `json:"pieces"`
	Ready  map[string]Readiness `json:"setup"`
	Setups map[string]Setup     `json:"setups,omitempty"`
	Log    []Combat             `json:"log"`
}

// NewState returns an undeployed board with both players unready.
func NewState(p1, p2 string) *State {
	return &State{
		Pieces: []Piece{},
		Ready:  map[string]Readiness{p1: {}, p2: {}},
		Setups: map[string]Setup{},
		Log:    []Combat{},
	}
}

// Clone returns a deep copy.
func (st *State) Clone() *State {
	if st == nil {
		return nil
	}
	out := &State{
		Pieces: append([]Piece{}, st.Pieces...),
		Ready:  make(map[string]Readiness, len(st.Ready)),
		Log:    append([]Combat{}, st.Log...),
	}
	for k, v := range st.Ready {
		out.Ready[k] = v
	}
	if st.Setups != nil {
		out.Setups = make(map[string]Setup, len(st.Setups))
		for k, v := range st.Setups {
			out.Setups[k] = v
		}
	}
	return out
}

// AllReady reports whether every seated player has a setup.
func (st *State) AllReady() bool {
	if len(st.Ready) == 0 {
		return false
	}
	for _, r := range st.Ready {
		if !r.Ready {
			return false
		}
	}
	return true
}

// Submit records a validated setup for the player.
func (st *State) Submit(playerID string, seat Seat, s Setup, auto bool) error {
	if err := s.Validate(seat); err != nil {
		return err
	}
	if st.Setups == nil {
		st.Setups = map[string]Setup{}
	}
	if st.Ready == nil {
		st.Ready = map[string]Readiness{}
	}
	st.Setups[playerID] = s
	st.Ready[playerID] = Readiness{Ready: true, Auto: auto}
	return nil
}

// Deploy places both recorded setups on the board and drops the private
// payloads. A command piece without an explicit role draws one from rng.
func (st *State) Deploy(p1, p2 string, rng *rand.Rand) error {
	if len(st.Pieces) > 0 {
		return ErrAlreadyPlaced
	}
	pieces := make([]Piece, 0, 2*PiecesPerSide)
	for _, seat := range []struct {
		id   string
		seat Seat
	}{{p2, SeatTwo}, {p1, SeatOne}} {
		setup, ok := st.Setups[seat.id]
		if !ok {
			return fmt.Errorf("%w: no setup for %s", ErrNotDeployed, seat.id)
		}
		placed, err := setup.placements(seat.seat)
		if err != nil {
			return err
		}
		for _, p := range placed {
			piece := Piece{
				ID:      pieceID(seat.seat, p.sq),
				Owner:   seat.id,
				Kind:    KindUnit,
				Role:    p.role,
				HasFlag: p.sq == *setup.Flag,
				Row:     p.sq.Row,
				Col:     p.sq.Col,
			}
			if p.command {
				piece.Kind = KindCommand
				piece.Role = setup.CommandRole
				if piece.Role == "" {
					piece.Role = Roles[rng.Intn(len(Roles))]
				} else {
					piece.Role, _ = ParseRole(string(piece.Role))
				}
			}
			pieces = append(pieces, piece)
		}
	}
	st.Pieces = pieces
	st.Setups = nil
	return nil
}

// Deployed reports whether pieces are on the board.
func (st *State) Deployed() bool { return st != nil && len(st.Pieces) > 0 }

// PieceAt returns the index of the live piece on sq, or -1.
func (st *State) PieceAt(sq Square) int {
	for i := range st.Pieces {
		p := &st.Pieces[i]
		if !p.Dead && p.Row == sq.Row && p.Col == sq.Col {
			return i
		}
	}
	return -1
}

// LiveFlag returns the player's live flag carrier, if any.
func (st *State) LiveFlag(playerID string) (Piece, bool) {
	for _, p := range st.Pieces {
		if p.Owner == playerID && p.HasFlag && !p.Dead {
			return p, true
		}
	}
	return Piece{}, false
}

// View returns a copy safe to show to viewerID: enemy roles and flags stay
// hidden until revealed and other players' setups are removed. An empty
// viewer sees only public information. reveal disables redaction.
func (st *State) View(viewerID string, reveal bool) *State {
	out := st.Clone()
	if out == nil || reveal {
		return out
	}
	for i := range out.Pieces {
		p := &out.Pieces[i]
		if p.Owner == viewerID {
			continue
		}
		p.HasFlag = false
		if !p.Revealed {
			p.Role = ""
		}
	}
	for id := range out.Setups {
		if id != viewerID {
			delete(out.Setups, id)
		}
	}
	return out
}
