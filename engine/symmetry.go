package engine

// Symmetry is one rigid motion of the grid. The last four only map a board
// onto itself when rows == cols.
type Symmetry int

const (
	SymIdentity Symmetry = iota
	SymFlipHorizontal
	SymFlipVertical
	SymRotate180
	SymTranspose
	SymAntiTranspose
	SymRotate90
	SymRotate270
)

var allSymmetries = [...]Symmetry{
	SymIdentity, SymFlipHorizontal, SymFlipVertical, SymRotate180,
	SymTranspose, SymAntiTranspose, SymRotate90, SymRotate270,
}

func (s Symmetry) String() string {
	switch s {
	case SymIdentity:
		return "identity"
	case SymFlipHorizontal:
		return "flip-horizontal"
	case SymFlipVertical:
		return "flip-vertical"
	case SymRotate180:
		return "rotate-180"
	case SymTranspose:
		return "transpose"
	case SymAntiTranspose:
		return "anti-transpose"
	case SymRotate90:
		return "rotate-90"
	case SymRotate270:
		return "rotate-270"
	default:
		return "unknown"
	}
}

func (s Symmetry) needsSquare() bool {
	return s >= SymTranspose
}

// SymmetriesFor lists the motions valid for a rows x cols grid: four for
// rectangles, eight for squares.
func SymmetriesFor(rows, cols int) []Symmetry {
	out := make([]Symmetry, 0, len(allSymmetries))
	for _, s := range allSymmetries {
		if s.needsSquare() && rows != cols {
			continue
		}
		out = append(out, s)
	}
	return out
}

// mapCell returns where (r,c) lands. Rotations are clockwise.
func (s Symmetry) mapCell(r, c, rows, cols int) (int, int) {
	switch s {
	case SymFlipHorizontal:
		return r, cols - 1 - c
	case SymFlipVertical:
		return rows - 1 - r, c
	case SymRotate180:
		return rows - 1 - r, cols - 1 - c
	case SymTranspose:
		return c, r
	case SymAntiTranspose:
		return cols - 1 - c, rows - 1 - r
	case SymRotate90:
		return c, rows - 1 - r
	case SymRotate270:
		return cols - 1 - c, r
	default:
		return r, c
	}
}

// Apply returns the transformed board. ok is false when the motion does not
// fit the board's shape.
func (s Symmetry) Apply(b Board) (Board, bool) {
	if s.needsSquare() && b.rows != b.cols {
		return Board{}, false
	}
	out := b.Clone()
	for r := 0; r < b.rows; r++ {
		for c := 0; c < b.cols; c++ {
			nr, nc := s.mapCell(r, c, b.rows, b.cols)
			out.cells[nr*b.cols+nc] = b.cells[r*b.cols+c]
		}
	}
	return out, true
}

// symmetricFingerprints returns the distinct fingerprints of b's equivalence
// class. A fully symmetric board collapses to one entry.
func symmetricFingerprints(b Board) []Fingerprint {
	syms := SymmetriesFor(b.rows, b.cols)
	out := make([]Fingerprint, 0, len(syms))
	buf := make([]byte, len(b.cells))
	for _, s := range syms {
		for r := 0; r < b.rows; r++ {
			for c := 0; c < b.cols; c++ {
				nr, nc := s.mapCell(r, c, b.rows, b.cols)
				buf[nr*b.cols+nc] = cellByte(b.cells[r*b.cols+c])
			}
		}
		fp := Fingerprint{rows: b.rows, cols: b.cols, winLength: b.winLength, cells: string(buf)}
		dup := false
		for _, seen := range out {
			if seen == fp {
				dup = true
				break
			}
		}
		if !dup {
			out = append(out, fp)
		}
	}
	return out
}
