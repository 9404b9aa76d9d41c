package freestyle

import "errors"

var (
	ErrInvalidPayload  = errors.New("invalid setup payload")
	ErrFlagInvalid     = errors.New("flag must sit on one of the assigned squares")
	ErrWrongRoleCounts = errors.New("setup needs 13 pieces: 4 rock, 4 paper, 4 scissors and 1 command")

	ErrNoPiece       = errors.New("no piece on source square")
	ErrNotOwner      = errors.New("piece belongs to the opponent")
	ErrOffBoard      = errors.New("square is off the board")
	ErrSameSquare    = errors.New("source and destination are the same")
	ErrOwnPiece      = errors.New("destination holds your own piece")
	ErrBadStep       = errors.New("piece cannot move that way")
	ErrPathBlocked   = errors.New("path is blocked")
	ErrNotDeployed   = errors.New("board has not been deployed")
	ErrAlreadyPlaced = errors.New("board already deployed")
)
