package engine

import "fmt"

// searchDirections are the four independent axes; negative offsets along each
// axis cover the opposite directions.
var searchDirections = [4][2]int{{1, 0}, {0, 1}, {1, 1}, {1, -1}}

type WinResult struct {
	Win   bool   `json:"win"`
	Cells []Move `json:"cells,omitempty"`
}

type OutcomeKind int

const (
	OutcomeNone OutcomeKind = iota
	OutcomeWin
	OutcomeDraw
)

func (k OutcomeKind) String() string {
	switch k {
	case OutcomeWin:
		return "win"
	case OutcomeDraw:
		return "draw"
	default:
		return "none"
	}
}

func (k OutcomeKind) MarshalText() ([]byte, error) {
	return []byte(k.String()), nil
}

func (k *OutcomeKind) UnmarshalText(text []byte) error {
	switch string(text) {
	case "none":
		*k = OutcomeNone
	case "win":
		*k = OutcomeWin
	case "draw":
		*k = OutcomeDraw
	default:
		return fmt.Errorf("%w: outcome %q", ErrIllegalArgument, text)
	}
	return nil
}

type Outcome struct {
	Kind   OutcomeKind `json:"kind"`
	Winner Cell        `json:"winner,omitempty"`
	Cells  []Move      `json:"cells,omitempty"`
}

// DetectWin reports whether a k-in-a-row passes through last. With
// withLocation the cells of the first winning window are returned, ordered
// along the swept line; directions are tried in searchDirections order.
func DetectWin(b Board, last Move, withLocation bool) (WinResult, error) {
	if !b.InBounds(last.Row, last.Col) {
		return WinResult{}, fmt.Errorf("%w: last move %s out of bounds", ErrIllegalArgument, last)
	}
	if b.At(last.Row, last.Col) == CellEmpty {
		return WinResult{}, fmt.Errorf("%w: last move %s is empty", ErrIllegalArgument, last)
	}
	return detectWin(b, last, withLocation), nil
}

func detectWin(b Board, last Move, withLocation bool) WinResult {
	k := b.winLength
	var line [2*MaxBoardSide - 1]Move
	for _, d := range searchDirections {
		n := 0
		for i := -(k - 1); i <= k-1; i++ {
			r := last.Row + i*d[0]
			c := last.Col + i*d[1]
			if !b.InBounds(r, c) {
				continue
			}
			line[n] = Move{Row: r, Col: c}
			n++
		}
		if n < k {
			continue
		}
		sum := 0
		for i := 0; i < k; i++ {
			sum += int(b.At(line[i].Row, line[i].Col))
		}
		for start := 0; ; start++ {
			if sum == k || sum == -k {
				result := WinResult{Win: true}
				if withLocation {
					result.Cells = append([]Move(nil), line[start:start+k]...)
				}
				return result
			}
			if start+k >= n {
				break
			}
			in := line[start+k]
			out := line[start]
			sum += int(b.At(in.Row, in.Col)) - int(b.At(out.Row, out.Col))
		}
	}
	return WinResult{}
}

// HasAnyWin scans the whole board for a completed line.
func HasAnyWin(b Board) bool {
	for r := 0; r < b.rows; r++ {
		for c := 0; c < b.cols; c++ {
			if b.At(r, c) == CellEmpty {
				continue
			}
			if detectWin(b, Move{Row: r, Col: c}, false).Win {
				return true
			}
		}
	}
	return false
}

// TerminalCheck classifies the board after last was played.
func TerminalCheck(b Board, last Move) (Outcome, error) {
	result, err := DetectWin(b, last, true)
	if err != nil {
		return Outcome{}, err
	}
	if result.Win {
		return Outcome{Kind: OutcomeWin, Winner: b.At(last.Row, last.Col), Cells: result.Cells}, nil
	}
	if b.IsFull() {
		return Outcome{Kind: OutcomeDraw}, nil
	}
	return Outcome{Kind: OutcomeNone}, nil
}

// Play places the side to move on m.
func Play(b *Board, m Move) error {
	return b.Place(m, b.Turn())
}

// winningMoves lists the empty cells that would complete a line for side.
// The board is modified transiently and restored before returning.
func winningMoves(b *Board, side Cell, candidates []Move) []Move {
	var wins []Move
	for _, m := range candidates {
		if b.At(m.Row, m.Col) != CellEmpty {
			continue
		}
		b.Set(m.Row, m.Col, side)
		if detectWin(*b, m, false).Win {
			wins = append(wins, m)
		}
		b.Set(m.Row, m.Col, CellEmpty)
	}
	return wins
}
