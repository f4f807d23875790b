package engine

import (
	"fmt"
	"strings"
)

// Cell values double as weights in the window sums, so they must stay 0/+1/-1.
type Cell int8

const (
	CellEmpty Cell = 0
	CellX     Cell = 1
	CellO     Cell = -1
)

// MaxBoardSide bounds both dimensions; 31x31 is the largest supported grid.
const MaxBoardSide = 31

type Board struct {
	rows      int
	cols      int
	winLength int
	starting  Cell
	marks     int
	cells     []Cell
}

// Shuffler is satisfied by *frand.RNG and *rand.Rand.
type Shuffler interface {
	Shuffle(n int, swap func(i, j int))
}

func NewBoard(rows, cols, winLength int, starting Cell) (Board, error) {
	if rows < 1 || cols < 1 || rows > MaxBoardSide || cols > MaxBoardSide {
		return Board{}, fmt.Errorf("%w: board %dx%d outside 1..%d", ErrIllegalArgument, rows, cols, MaxBoardSide)
	}
	if winLength < 1 || winLength > max(rows, cols) {
		return Board{}, fmt.Errorf("%w: win length %d for %dx%d board", ErrIllegalArgument, winLength, rows, cols)
	}
	if !starting.IsSide() {
		return Board{}, fmt.Errorf("%w: starting side %d", ErrIllegalArgument, starting)
	}
	return Board{
		rows:      rows,
		cols:      cols,
		winLength: winLength,
		starting:  starting,
		cells:     make([]Cell, rows*cols),
	}, nil
}

// BoardFromCells copies a literal grid. The X/O tally must be consistent with
// the starting side: X-O in {0,1} when X starts, {-1,0} when O starts.
func BoardFromCells(cells [][]Cell, winLength int, starting Cell) (Board, error) {
	if len(cells) == 0 || len(cells[0]) == 0 {
		return Board{}, fmt.Errorf("%w: empty grid", ErrIllegalArgument)
	}
	b, err := NewBoard(len(cells), len(cells[0]), winLength, starting)
	if err != nil {
		return Board{}, err
	}
	diff := 0
	for r, row := range cells {
		if len(row) != b.cols {
			return Board{}, fmt.Errorf("%w: row %d has %d cells, want %d", ErrIllegalArgument, r, len(row), b.cols)
		}
		for c, cell := range row {
			if cell != CellEmpty && !cell.IsSide() {
				return Board{}, fmt.Errorf("%w: cell (%d,%d) holds %d", ErrIllegalArgument, r, c, cell)
			}
			b.Set(r, c, cell)
			diff += int(cell)
		}
	}
	lo, hi := 0, 1
	if starting == CellO {
		lo, hi = -1, 0
	}
	if diff < lo || diff > hi {
		return Board{}, fmt.Errorf("%w: X-O difference %d impossible when %s starts", ErrIllegalArgument, diff, starting)
	}
	return b, nil
}

func (b Board) Rows() int      { return b.rows }
func (b Board) Cols() int      { return b.cols }
func (b Board) WinLength() int { return b.winLength }
func (b Board) Starting() Cell { return b.starting }
func (b Board) Marks() int     { return b.marks }

func (b Board) At(row, col int) Cell {
	return b.cells[b.index(row, col)]
}

// Set writes a cell without any legality check. It exists for setting up
// positions; play goes through Place.
func (b *Board) Set(row, col int, value Cell) {
	idx := b.index(row, col)
	prev := b.cells[idx]
	if prev == CellEmpty && value != CellEmpty {
		b.marks++
	} else if prev != CellEmpty && value == CellEmpty {
		b.marks--
	}
	b.cells[idx] = value
}

func (b *Board) Place(m Move, side Cell) error {
	if !side.IsSide() {
		return fmt.Errorf("%w: side %d", ErrIllegalArgument, side)
	}
	if !b.InBounds(m.Row, m.Col) {
		return fmt.Errorf("%w: %s out of bounds", ErrIllegalMove, m)
	}
	if b.At(m.Row, m.Col) != CellEmpty {
		return fmt.Errorf("%w: %s occupied", ErrIllegalMove, m)
	}
	b.Set(m.Row, m.Col, side)
	return nil
}

// Remove undoes a Place; the cell must hold side.
func (b *Board) Remove(m Move, side Cell) error {
	if !b.InBounds(m.Row, m.Col) {
		return fmt.Errorf("%w: %s out of bounds", ErrIllegalMove, m)
	}
	if got := b.At(m.Row, m.Col); got != side || side == CellEmpty {
		return fmt.Errorf("%w: %s holds %s, not %s", ErrIllegalMove, m, got, side)
	}
	b.Set(m.Row, m.Col, CellEmpty)
	return nil
}

// Turn derives the side to move from the starting side and the mark parity.
func (b Board) Turn() Cell {
	if b.marks%2 == 0 {
		return b.starting
	}
	return b.starting.Opponent()
}

func (b Board) InBounds(row, col int) bool {
	return row >= 0 && col >= 0 && row < b.rows && col < b.cols
}

func (b Board) IsEmpty(row, col int) bool {
	return b.InBounds(row, col) && b.At(row, col) == CellEmpty
}

func (b Board) IsFull() bool {
	return b.marks == len(b.cells)
}

func (b Board) CountEmpty() int {
	return len(b.cells) - b.marks
}

// EmptyCells lists the empty cells, shuffled when rng is non-nil and in
// row-major order otherwise.
func (b Board) EmptyCells(rng Shuffler) []Move {
	moves := make([]Move, 0, b.CountEmpty())
	for idx, cell := range b.cells {
		if cell == CellEmpty {
			moves = append(moves, Move{Row: idx / b.cols, Col: idx % b.cols})
		}
	}
	if rng != nil {
		rng.Shuffle(len(moves), func(i, j int) { moves[i], moves[j] = moves[j], moves[i] })
	}
	return moves
}

func (b Board) Clone() Board {
	clone := b
	clone.cells = make([]Cell, len(b.cells))
	copy(clone.cells, b.cells)
	return clone
}

func (b Board) Equal(other Board) bool {
	if b.rows != other.rows || b.cols != other.cols || b.winLength != other.winLength ||
		b.starting != other.starting || b.marks != other.marks {
		return false
	}
	for i := range b.cells {
		if b.cells[i] != other.cells[i] {
			return false
		}
	}
	return true
}

// Grid returns a row-major copy of the cells.
func (b Board) Grid() [][]Cell {
	grid := make([][]Cell, b.rows)
	for r := range grid {
		grid[r] = make([]Cell, b.cols)
		copy(grid[r], b.cells[r*b.cols:(r+1)*b.cols])
	}
	return grid
}

func (b Board) String() string {
	var sb strings.Builder
	for r := 0; r < b.rows; r++ {
		for c := 0; c < b.cols; c++ {
			switch b.At(r, c) {
			case CellX:
				sb.WriteByte('X')
			case CellO:
				sb.WriteByte('O')
			default:
				sb.WriteByte('.')
			}
		}
		if r < b.rows-1 {
			sb.WriteByte('\n')
		}
	}
	return sb.String()
}

func (b Board) index(row, col int) int {
	return row*b.cols + col
}

func (c Cell) IsSide() bool {
	return c == CellX || c == CellO
}

func (c Cell) Opponent() Cell {
	return -c
}

func (c Cell) String() string {
	switch c {
	case CellX:
		return "X"
	case CellO:
		return "O"
	default:
		return "Empty"
	}
}

// ParseSide accepts "X"/"O" (any case) or the numeric weights 1/-1.
func ParseSide(raw string) (Cell, error) {
	switch strings.ToUpper(strings.TrimSpace(raw)) {
	case "X", "1", "+1":
		return CellX, nil
	case "O", "-1":
		return CellO, nil
	default:
		return CellEmpty, fmt.Errorf("%w: side %q", ErrIllegalArgument, raw)
	}
}
