package rules

import "github.com/park285/turnsync/internal/freestyle"

const hiddenThrow = "hidden"

// RPSRound is one resolved pair of throws.
type RPSRound struct {
	Throws   map[string]freestyle.Role `json:"throws"`
	WinnerID string                    `json:"winnerId,omitempty"`
}

// RPSState holds the pending throws of the current round and the resolved
// history. Ties clear the pending throws.
type RPSState struct {
	Throws map[string]string `json:"throws"`
	Rounds []RPSRound        `json:"rounds"`
}

func (s *RPSState) clone() *RPSState {
	out := &RPSState{
		Throws: make(map[string]string, len(s.Throws)),
		Rounds: append([]RPSRound{}, s.Rounds...),
	}
	for k, v := range s.Throws {
		out.Throws[k] = v
	}
	return out
}

type rpsEngine struct{}

func (rpsEngine) Type() GameType { return RPS }

func (rpsEngine) NewState(Players) Document {
	return Document{Type: RPS, RPS: &RPSState{Throws: map[string]string{}, Rounds: []RPSRound{}}}
}

func (rpsEngine) Validate(doc Document, p Players, mover string, mv Move) error {
	if doc.RPS == nil {
		return ErrStateMismatch
	}
	if !p.Has(mover) {
		return illegalf("%s is not seated", mover)
	}
	if _, ok := doc.RPS.Throws[mover]; ok {
		return illegalf("%s already threw this round", mover)
	}
	if _, err := freestyle.ParseRole(mv.Throw); err != nil {
		return illegal(err)
	}
	return nil
}

func (e rpsEngine) Apply(doc Document, p Players, mover string, mv Move) (Document, Effects, error) {
	if err := e.Validate(doc, p, mover, mv); err != nil {
		return Document{}, Effects{}, err
	}
	next := doc.Clone()
	st := next.RPS
	throw, _ := freestyle.ParseRole(mv.Throw)
	st.Throws[mover] = string(throw)

	other := p.Other(mover)
	theirs, ok := st.Throws[other]
	if !ok {
		return next, Effects{}, nil
	}
	a, b := freestyle.Role(st.Throws[p.One]), freestyle.Role(st.Throws[p.Two])
	round := RPSRound{Throws: map[string]freestyle.Role{p.One: a, p.Two: b}}
	eff := Effects{Notation: string(throw) + " vs " + theirs}
	switch freestyle.Resolve(a, b) {
	case freestyle.AttackerWins:
		round.WinnerID = p.One
	case freestyle.DefenderWins:
		round.WinnerID = p.Two
	}
	st.Rounds = append(st.Rounds, round)
	st.Throws = map[string]string{}
	if round.WinnerID != "" {
		eff.Finished, eff.WinnerID = true, round.WinnerID
	}
	return next, eff, nil
}
