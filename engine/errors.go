package engine

import "errors"

var (
	// ErrIllegalMove reports an occupied or out-of-bounds target cell.
	ErrIllegalMove = errors.New("illegal move")
	// ErrIllegalArgument reports invalid dimensions, win length, side, or a
	// last-played index on an empty cell.
	ErrIllegalArgument = errors.New("illegal argument")
)
