package freestyle

import (
	"fmt"
	"strings"
)

// Role is the hidden combat role of a piece.
type Role string

const (
	Rock     Role = "rock"
	Paper    Role = "paper"
	Scissors Role = "scissors"
)

// Roles lists the combat roles in a stable order.
var Roles = []Role{Rock, Paper, Scissors}

// ParseRole normalises a role name. Single letter shorthands are accepted.
func ParseRole(raw string) (Role, error) {
	switch strings.ToLower(strings.TrimSpace(raw)) {
	case "rock", "r":
		return Rock, nil
	case "paper", "p":
		return Paper, nil
	case "scissors", "s":
		return Scissors, nil
	}
	return "", fmt.Errorf("%w: unknown role %q", ErrInvalidPayload, raw)
}

// Beats reports whether a defeats b.
func Beats(a, b Role) bool {
	return (a == Rock && b == Scissors) ||
		(a == Scissors && b == Paper) ||
		(a == Paper && b == Rock)
}

// Result is the outcome of a single combat from the attacker's side.
type Result string

const (
	AttackerWins Result = "attacker"
	DefenderWins Result = "defender"
	Draw         Result = "draw"
)

// Resolve decides combat between an attacking and a defending role.
func Resolve(attacker, defender Role) Result {
	switch {
	case attacker == defender:
		return Draw
	case Beats(attacker, defender):
		return AttackerWins
	default:
		return DefenderWins
	}
}

// Combat records one resolved capture attempt. Both roles are public once
// combat happens.
type Combat struct {
	Seq          int    `json:"seq"`
	AttackerID   string `json:"attackerId"`
	DefenderID   string `json:"defenderId"`
	AttackerRole Role   `json:"attackerRole"`
	DefenderRole Role   `json:"defenderRole"`
	From         Square `json:"from"`
	To           Square `json:"to"`
	Result       Result `json:"result"`
	FlagCaptured bool   `json:"flagCaptured,omitempty"`
}
