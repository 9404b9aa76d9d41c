package freestyle

import (
	"fmt"
	"math/rand"
	"sort"
	"strings"
)

// roleCommand is the assignment value marking the command cell.
const roleCommand = "command"

var requiredCounts = map[string]int{
	string(Rock):     4,
	string(Paper):    4,
	string(Scissors): 4,
	roleCommand:      1,
}

// Setup is a player's private deployment: which role sits on which home
// square, where the flag is and, optionally, the combat role of the
// command piece.
type Setup struct {
	Flag        *Square           `json:"flag"`
	Assignments map[string]string `json:"assignments"`
	CommandRole Role              `json:"commandRole,omitempty"`
}

type placement struct {
	sq      Square
	command bool
	role    Role
}

// Validate checks the payload against the seat's home rows and the fixed
// role multiset.
func (s *Setup) Validate(seat Seat) error {
	_, err := s.placements(seat)
	return err
}

func (s *Setup) placements(seat Seat) ([]placement, error) {
	if s == nil || s.Flag == nil || len(s.Assignments) == 0 {
		return nil, fmt.Errorf("%w: flag and assignments are required", ErrInvalidPayload)
	}
	if s.CommandRole != "" {
		if _, err := ParseRole(string(s.CommandRole)); err != nil {
			return nil, err
		}
	}
	seen := make(map[Square]bool, len(s.Assignments))
	counts := make(map[string]int, len(requiredCounts))
	out := make([]placement, 0, len(s.Assignments))
	for key, value := range s.Assignments {
		sq, err := ParseSquare(key)
		if err != nil {
			return nil, err
		}
		if !seat.ownsRow(sq.Row) {
			return nil, fmt.Errorf("%w: %s is outside your home rows", ErrInvalidPayload, sq)
		}
		if seen[sq] {
			return nil, fmt.Errorf("%w: %s assigned twice", ErrInvalidPayload, sq)
		}
		seen[sq] = true
		p := placement{sq: sq}
		if strings.EqualFold(strings.TrimSpace(value), roleCommand) {
			p.command = true
			counts[roleCommand]++
		} else {
			role, err := ParseRole(value)
			if err != nil {
				return nil, err
			}
			p.role = role
			counts[string(role)]++
		}
		out = append(out, p)
	}
	if len(out) != PiecesPerSide {
		return nil, fmt.Errorf("%w: got %d assignments", ErrWrongRoleCounts, len(out))
	}
	for name, want := range requiredCounts {
		if counts[name] != want {
			return nil, fmt.Errorf("%w: %s has %d, want %d", ErrWrongRoleCounts, name, counts[name], want)
		}
	}
	if !s.Flag.InBounds() || !seen[*s.Flag] {
		return nil, fmt.Errorf("%w: %s", ErrFlagInvalid, s.Flag)
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].sq.Row != out[j].sq.Row {
			return out[i].sq.Row < out[j].sq.Row
		}
		return out[i].sq.Col < out[j].sq.Col
	})
	return out, nil
}

// RandomSetup builds a valid setup for the seat. The command piece keeps
// its fixed square when possible.
func RandomSetup(rng *rand.Rand, seat Seat) Setup {
	rows := seat.HomeRows()
	cells := make([]Square, 0, 2*BoardSize)
	cmd := seat.CommandSquare()
	for _, r := range rows {
		for c := 0; c < BoardSize; c++ {
			sq := Square{Row: r, Col: c}
			if sq != cmd {
				cells = append(cells, sq)
			}
		}
	}
	rng.Shuffle(len(cells), func(i, j int) { cells[i], cells[j] = cells[j], cells[i] })
	cells = append([]Square{cmd}, cells[:PiecesPerSide-1]...)

	roles := make([]string, 0, PiecesPerSide-1)
	for _, r := range Roles {
		for i := 0; i < requiredCounts[string(r)]; i++ {
			roles = append(roles, string(r))
		}
	}
	rng.Shuffle(len(roles), func(i, j int) { roles[i], roles[j] = roles[j], roles[i] })

	assignments := make(map[string]string, PiecesPerSide)
	assignments[cmd.Key()] = roleCommand
	for i, sq := range cells[1:] {
		assignments[sq.Key()] = roles[i]
	}
	flag := cells[rng.Intn(len(cells))]
	return Setup{
		Flag:        &flag,
		Assignments: assignments,
		CommandRole: Roles[rng.Intn(len(Roles))],
	}
}
