package rules

import "github.com/park285/turnsync/internal/freestyle"

type freestyleEngine struct{}

func (freestyleEngine) Type() GameType { return FreestyleChess }

func (freestyleEngine) NewState(p Players) Document {
	return Document{Type: FreestyleChess, Freestyle: freestyle.NewState(p.One, p.Two)}
}

func (freestyleEngine) Validate(doc Document, p Players, mover string, mv Move) error {
	if doc.Freestyle == nil {
		return ErrStateMismatch
	}
	if mv.From == nil || mv.To == nil {
		return illegalf("from and to are required")
	}
	if !p.Has(mover) {
		return illegalf("%s is not seated", mover)
	}
	if err := doc.Freestyle.Validate(mover, *mv.From, *mv.To); err != nil {
		return illegal(err)
	}
	return nil
}

func (e freestyleEngine) Apply(doc Document, p Players, mover string, mv Move) (Document, Effects, error) {
	if err := e.Validate(doc, p, mover, mv); err != nil {
		return Document{}, Effects{}, err
	}
	next := doc.Clone()
	out, err := next.Freestyle.Apply(mover, *mv.From, *mv.To)
	if err != nil {
		return Document{}, Effects{}, illegal(err)
	}
	return next, Effects{
		Combat:   out.Combat,
		Notation: mv.From.Key() + ">" + mv.To.Key(),
		WinnerID: out.WinnerID,
		Finished: out.WinnerID != "",
	}, nil
}
