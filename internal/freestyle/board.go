// Package freestyle implements the hidden-role board game played on an 8x8
// grid: each side deploys thirteen rock/paper/scissors pieces, one of which
// secretly carries the flag, and captures resolve by role combat.
package freestyle

import (
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
)

// BoardSize is the number of rows and columns on the board.
const BoardSize = 8

// PiecesPerSide is the number of pieces a side deploys.
const PiecesPerSide = 13

// Seat identifies which side a player occupies. Seat one owns rows 6-7 and
// seat two owns rows 0-1.
type Seat int

const (
	SeatOne Seat = 1
	SeatTwo Seat = 2
)

// HomeRows returns the rows a seat deploys into.
func (s Seat) HomeRows() [2]int {
	if s == SeatTwo {
		return [2]int{0, 1}
	}
	return [2]int{BoardSize - 2, BoardSize - 1}
}

// CommandSquare is the fixed square of a seat's command piece.
func (s Seat) CommandSquare() Square {
	if s == SeatTwo {
		return Square{Row: 0, Col: 4}
	}
	return Square{Row: BoardSize - 1, Col: 4}
}

func (s Seat) ownsRow(row int) bool {
	rows := s.HomeRows()
	return row == rows[0] || row == rows[1]
}

// Square is a board coordinate.
type Square struct {
	Row int `json:"row"`
	Col int `json:"col"`
}

func (s Square) InBounds() bool {
	return s.Row >= 0 && s.Row < BoardSize && s.Col >= 0 && s.Col < BoardSize
}

// Key renders the square as the "row-col" string used in setup payloads.
func (s Square) Key() string { return fmt.Sprintf("%d-%d", s.Row, s.Col) }

func (s Square) String() string { return s.Key() }

// ParseSquare accepts "r-c" and "r,c".
func ParseSquare(raw string) (Square, error) {
	raw = strings.TrimSpace(raw)
	sep := strings.IndexAny(raw, "-,")
	if sep <= 0 || sep == len(raw)-1 {
		return Square{}, fmt.Errorf("%w: bad square %q", ErrInvalidPayload, raw)
	}
	r, err := strconv.Atoi(strings.TrimSpace(raw[:sep]))
	if err != nil {
		return Square{}, fmt.Errorf("%w: bad square %q", ErrInvalidPayload, raw)
	}
	c, err := strconv.Atoi(strings.TrimSpace(raw[sep+1:]))
	if err != nil {
		return Square{}, fmt.Errorf("%w: bad square %q", ErrInvalidPayload, raw)
	}
	sq := Square{Row: r, Col: c}
	if !sq.InBounds() {
		return Square{}, fmt.Errorf("%w: square %q off board", ErrInvalidPayload, raw)
	}
	return sq, nil
}

// UnmarshalJSON accepts an object {row,col}, a two element array or a
// "r-c" string.
func (s *Square) UnmarshalJSON(b []byte) error {
	trimmed := strings.TrimSpace(string(b))
	switch {
	case strings.HasPrefix(trimmed, "["):
		var pair []int
		if err := json.Unmarshal(b, &pair); err != nil {
			return fmt.Errorf("%w: %v", ErrInvalidPayload, err)
		}
		if len(pair) != 2 {
			return fmt.Errorf("%w: square needs two coordinates", ErrInvalidPayload)
		}
		*s = Square{Row: pair[0], Col: pair[1]}
		return nil
	case strings.HasPrefix(trimmed, "\""):
		var raw string
		if err := json.Unmarshal(b, &raw); err != nil {
			return fmt.Errorf("%w: %v", ErrInvalidPayload, err)
		}
		sq, err := ParseSquare(raw)
		if err != nil {
			return err
		}
		*s = sq
		return nil
	}
	type plain Square
	var p plain
	if err := json.Unmarshal(b, &p); err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidPayload, err)
	}
	*s = Square(p)
	return nil
}

// Kind distinguishes the command piece from ordinary units.
type Kind string

const (
	KindCommand Kind = "command"
	KindUnit    Kind = "unit"
)

// Piece is one deployed piece. Role and HasFlag are private to the owner
// until the piece is revealed by combat.
type Piece struct {
	ID       string `json:"id"`
	Owner    string `json:"owner"`
	Kind     Kind   `json:"kind"`
	Role     Role   `json:"role,omitempty"`
	HasFlag  bool   `json:"hasFlag,omitempty"`
	Revealed bool   `json:"revealed"`
	Dead     bool   `json:"dead,omitempty"`
	Row      int    `json:"row"`
	Col      int    `json:"col"`
}

func (p Piece) Square() Square { return Square{Row: p.Row, Col: p.Col} }

func pieceID(seat Seat, sq Square) string {
	return fmt.Sprintf("p%d-%d-%d", int(seat), sq.Row, sq.Col)
}
