package engine

import (
	"math"

	"github.com/hashicorp/golang-lru/v2/simplelru"
)

// Fingerprint is the row-major serialisation of a board, one byte per cell,
// tagged with the board shape. It is comparable and so usable as a map key.
type Fingerprint struct {
	rows      int
	cols      int
	winLength int
	cells     string
}

func cellByte(c Cell) byte {
	return byte(c + 1)
}

func FingerprintOf(b Board) Fingerprint {
	buf := make([]byte, len(b.cells))
	for i, c := range b.cells {
		buf[i] = cellByte(c)
	}
	return Fingerprint{rows: b.rows, cols: b.cols, winLength: b.winLength, cells: string(buf)}
}

type winKey struct {
	fp           Fingerprint
	withLocation bool
}

type evalKey struct {
	fp        Fingerprint
	maximizer Cell
	turn      Cell
}

// CacheStats are cumulative since the last reset.
type CacheStats struct {
	WinHits     uint64 `json:"win_hits"`
	WinMisses   uint64 `json:"win_misses"`
	WinEntries  int    `json:"win_entries"`
	EvalHits    uint64 `json:"eval_hits"`
	EvalMisses  uint64 `json:"eval_misses"`
	EvalEntries int    `json:"eval_entries"`
}

// memo holds the win-detector and evaluator caches. It is not safe for
// concurrent use; the Engine serialises access.
type memo struct {
	win         *simplelru.LRU[winKey, WinResult]
	eval        *simplelru.LRU[evalKey, int]
	winSize     int
	evalSize    int
	useSymmetry bool
	evalEnabled bool
	stats       CacheStats
}

func newMemo(cfg Config) *memo {
	m := &memo{
		winSize:     cfg.CacheMaxSizeWin,
		evalSize:    cfg.CacheMaxSizeEval,
		useSymmetry: cfg.UseSymmetry,
		evalEnabled: cfg.EnableEvalCache,
	}
	m.reset()
	return m
}

func lruCapacity(size int) int {
	if size <= 0 {
		return math.MaxInt
	}
	return size
}

func (m *memo) reset() {
	// NewLRU only fails for a non-positive size, which lruCapacity rules out.
	m.win, _ = simplelru.NewLRU[winKey, WinResult](lruCapacity(m.winSize), nil)
	m.eval, _ = simplelru.NewLRU[evalKey, int](lruCapacity(m.evalSize), nil)
	m.stats = CacheStats{}
}

func (m *memo) snapshot() CacheStats {
	s := m.stats
	s.WinEntries = m.win.Len()
	s.EvalEntries = m.eval.Len()
	return s
}

// detectWin is the memoised detector. The key ignores last, which is sound
// for boards whose only possible line runs through last.
func (m *memo) detectWin(b Board, last Move, withLocation bool) WinResult {
	key := winKey{fp: FingerprintOf(b), withLocation: withLocation}
	if result, ok := m.win.Get(key); ok {
		m.stats.WinHits++
		return result
	}
	m.stats.WinMisses++
	result := detectWin(b, last, withLocation)
	if withLocation || !m.useSymmetry {
		m.win.Add(key, result)
		return result
	}
	for _, fp := range symmetricFingerprints(b) {
		m.win.Add(winKey{fp: fp}, result)
	}
	return result
}

// evaluate returns the undiscounted evaluator score; callers apply the depth
// penalty themselves so one entry serves every depth.
func (m *memo) evaluate(b Board, maximizer Cell) int {
	if !m.evalEnabled {
		return evaluateBoard(b, maximizer)
	}
	key := evalKey{fp: FingerprintOf(b), maximizer: maximizer, turn: b.Turn()}
	if score, ok := m.eval.Get(key); ok {
		m.stats.EvalHits++
		return score
	}
	m.stats.EvalMisses++
	score := evaluateBoard(b, maximizer)
	m.eval.Add(key, score)
	return score
}
