package engine

import "sync"

// Score constants, all from the maximizer's perspective. MaxWin exceeds
// (MaxBoardSide-1)^3 so no single window cube reaches a terminal score.
const (
	MaxWin           = 100000
	Draw             = 0
	MaxLoss          = -100000
	OneMoveFromWin   = 5000
	OneMoveFromLoss  = -5000
	TwoMovesFromLoss = -2000
	CutOff           = 1000
)

type windowShape struct {
	rows      int
	cols      int
	winLength int
}

type windowCache struct {
	mu      sync.Mutex
	windows map[windowShape][][]int
}

var cachedWindows = &windowCache{windows: make(map[windowShape][][]int)}

func getWindowsForShape(rows, cols, winLength int) [][]int {
	shape := windowShape{rows: rows, cols: cols, winLength: winLength}
	cachedWindows.mu.Lock()
	defer cachedWindows.mu.Unlock()
	if windows, ok := cachedWindows.windows[shape]; ok {
		return windows
	}
	windows := buildWindows(rows, cols, winLength)
	cachedWindows.windows[shape] = windows
	return windows
}

// buildWindows cuts every row, column and diagonal of length >= winLength
// into its length-winLength windows of flat cell indices.
func buildWindows(rows, cols, winLength int) [][]int {
	var lines [][]int
	// Rows.
	for r := 0; r < rows; r++ {
		lines = append(lines, collectLine(rows, cols, r, 0, 0, 1))
	}
	// Cols.
	for c := 0; c < cols; c++ {
		lines = append(lines, collectLine(rows, cols, 0, c, 1, 0))
	}
	// Diagonals (\)
	for c := 0; c < cols; c++ {
		lines = append(lines, collectLine(rows, cols, 0, c, 1, 1))
	}
	for r := 1; r < rows; r++ {
		lines = append(lines, collectLine(rows, cols, r, 0, 1, 1))
	}
	// Anti-diagonals (/)
	for c := 0; c < cols; c++ {
		lines = append(lines, collectLine(rows, cols, 0, c, 1, -1))
	}
	for r := 1; r < rows; r++ {
		lines = append(lines, collectLine(rows, cols, r, cols-1, 1, -1))
	}

	windows := [][]int{}
	for _, line := range lines {
		for start := 0; start+winLength <= len(line); start++ {
			windows = append(windows, line[start:start+winLength])
		}
	}
	return windows
}

func collectLine(rows, cols, startRow, startCol, dr, dc int) []int {
	line := []int{}
	r, c := startRow, startCol
	for r >= 0 && c >= 0 && r < rows && c < cols {
		line = append(line, r*cols+c)
		r += dr
		c += dc
	}
	return line
}

// Evaluate scores a non-terminal board for maximizer, pulled toward zero by
// the depth at which the leaf was reached.
func Evaluate(b Board, maximizer Cell, depth int) int {
	return applyDepthPenalty(evaluateBoard(b, maximizer), depth)
}

// evaluateBoard sums the signed cube of every pure window. A line one move
// from completion for the side to move settles the score outright.
func evaluateBoard(b Board, maximizer Cell) int {
	k := b.winLength
	myTurn := b.Turn() == maximizer
	sum := 0
	longestMine := 0
	twoFromLoss := false
	for _, window := range getWindowsForShape(b.rows, b.cols, k) {
		mine, theirs, empties := 0, 0, 0
		for _, idx := range window {
			switch b.cells[idx] {
			case CellEmpty:
				empties++
			case maximizer:
				mine++
			default:
				theirs++
			}
		}
		if mine > 0 && theirs > 0 {
			continue
		}
		if myTurn && mine > 0 && mine == k-1 && empties == 1 {
			return OneMoveFromWin
		}
		if !myTurn && theirs > 0 && theirs == k-1 && empties == 1 {
			return OneMoveFromLoss
		}
		if theirs > 0 && theirs == k-2 && empties == 2 {
			twoFromLoss = true
		}
		if mine > longestMine {
			longestMine = mine
		}
		s := mine - theirs
		sum += s * s * s
	}
	// The maximizer leads only with a pure window longer than the threat.
	if twoFromLoss && longestMine <= k-2 {
		sum += TwoMovesFromLoss
	}
	return capScore(sum)
}

func capScore(score int) int {
	if score > MaxWin-1 {
		return MaxWin - 1
	}
	if score < -(MaxWin - 1) {
		return -(MaxWin - 1)
	}
	return score
}

func applyDepthPenalty(score, depth int) int {
	switch {
	case score > 0:
		return max(score-depth, 0)
	case score < 0:
		return min(score+depth, 0)
	default:
		return score
	}
}
