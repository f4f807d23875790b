package engine

import (
	"time"

	"lukechampine.com/frand"
)

type SearchStats struct {
	Nodes           int64           `json:"nodes"`
	Evaluations     int64           `json:"evaluations"`
	TerminalWins    int64           `json:"terminal_wins"`
	Draws           int64           `json:"draws"`
	RootCandidates  int             `json:"root_candidates"`
	ForcedNodes     int64           `json:"forced_nodes"`
	WinCacheHits    uint64          `json:"win_cache_hits"`
	WinCacheMisses  uint64          `json:"win_cache_misses"`
	EvalCacheHits   uint64          `json:"eval_cache_hits"`
	EvalCacheMisses uint64          `json:"eval_cache_misses"`
	CompletedDepths int             `json:"completed_depths"`
	DepthDurations  []time.Duration `json:"depth_durations"`
	Elapsed         time.Duration   `json:"elapsed"`
}

// DepthReport describes one completed iterative-deepening pass.
type DepthReport struct {
	Depth   int           `json:"depth"`
	Move    Move          `json:"move"`
	Score   int           `json:"score"`
	Nodes   int64         `json:"nodes"`
	Elapsed time.Duration `json:"elapsed"`
}

type searchResult struct {
	move     Move
	score    int
	depth    int
	timedOut bool
}

// searchContext lives for one ChooseMove call. board is a private clone that
// the recursion mutates in place and restores on the way back up.
type searchContext struct {
	board     *Board
	maximizer Cell
	deadline  time.Time
	budget    int
	cfg       Config
	memo      *memo
	rng       *frand.RNG
	stats     *SearchStats

	// expired latches once the deadline is seen; the pass in flight is void.
	expired bool
	// hitHorizon records whether the pass scored any leaf with the evaluator.
	hitHorizon     bool
	ignoreDeadline bool
}

func (ctx *searchContext) timedOut() bool {
	if ctx.ignoreDeadline {
		return false
	}
	if !ctx.expired && !ctx.deadline.IsZero() && !time.Now().Before(ctx.deadline) {
		ctx.expired = true
	}
	return ctx.expired
}

// iterate runs passes with budgets 0..MaxSearchDepth. The first pass always
// completes; later ones are abandoned when the deadline passes.
func (ctx *searchContext) iterate(progress func(DepthReport)) searchResult {
	var result searchResult
	for budget := 0; budget <= ctx.cfg.MaxSearchDepth; budget++ {
		ctx.budget = budget
		ctx.hitHorizon = false
		ctx.ignoreDeadline = budget == 0
		passStart := time.Now()
		nodesBefore := ctx.stats.Nodes

		move, score, complete := ctx.searchRoot()
		if !complete {
			result.timedOut = true
			break
		}
		elapsed := time.Since(passStart)
		result = searchResult{move: move, score: score, depth: budget}
		ctx.stats.CompletedDepths++
		ctx.stats.DepthDurations = append(ctx.stats.DepthDurations, elapsed)
		if progress != nil {
			progress(DepthReport{Depth: budget, Move: move, Score: score, Nodes: ctx.stats.Nodes - nodesBefore, Elapsed: elapsed})
		}

		if score >= ctx.cfg.CutOffScore || !ctx.hitHorizon {
			break
		}
		ctx.ignoreDeadline = false
		if ctx.timedOut() {
			if budget < ctx.cfg.MaxSearchDepth {
				result.timedOut = true
			}
			break
		}
	}
	return result
}

// searchRoot expands every empty cell (up to the root cap) for the
// maximizer. complete is false when the deadline cut the pass short.
func (ctx *searchContext) searchRoot() (Move, int, bool) {
	candidates := ctx.board.EmptyCells(ctx.rng)
	if len(candidates) > ctx.cfg.BranchingCapAtRoot {
		candidates = candidates[:ctx.cfg.BranchingCapAtRoot]
	}
	ctx.stats.RootCandidates = len(candidates)
	ctx.stats.Nodes++

	var best Move
	bestScore := MaxLoss - 1
	for _, m := range candidates {
		if ctx.timedOut() {
			return Move{}, 0, false
		}
		ctx.board.Set(m.Row, m.Col, ctx.maximizer)
		score := ctx.minimax(1, m, ctx.maximizer)
		ctx.board.Set(m.Row, m.Col, CellEmpty)
		if ctx.expired {
			return Move{}, 0, false
		}
		if score > bestScore {
			bestScore = score
			best = m
		}
	}
	return best, bestScore, true
}

// minimax scores the board after mover played last, depth plies below the
// root. Scores are always from the maximizer's point of view.
func (ctx *searchContext) minimax(depth int, last Move, mover Cell) int {
	ctx.stats.Nodes++
	if ctx.timedOut() {
		return 0
	}
	if ctx.memo.detectWin(*ctx.board, last, false).Win {
		ctx.stats.TerminalWins++
		if mover == ctx.maximizer {
			return MaxWin - depth
		}
		return MaxLoss + depth
	}
	if ctx.board.IsFull() {
		ctx.stats.Draws++
		return Draw
	}
	if depth > ctx.budget {
		ctx.hitHorizon = true
		ctx.stats.Evaluations++
		return applyDepthPenalty(ctx.memo.evaluate(*ctx.board, ctx.maximizer), depth)
	}

	side := mover.Opponent()
	maximizing := side == ctx.maximizer
	best := MaxWin + 1
	if maximizing {
		best = MaxLoss - 1
	}
	for _, m := range ctx.candidates(last, side) {
		ctx.board.Set(m.Row, m.Col, side)
		score := ctx.minimax(depth+1, m, side)
		ctx.board.Set(m.Row, m.Col, CellEmpty)
		if ctx.expired {
			return 0
		}
		if (maximizing && score > best) || (!maximizing && score < best) {
			best = score
		}
	}
	return best
}

// candidates picks the moves side considers below the root: a winning cell
// if one exists, else every cell blocking an opponent win, else the
// shuffled neighbourhood of last, else any empty cell.
func (ctx *searchContext) candidates(last Move, side Cell) []Move {
	empties := ctx.board.EmptyCells(nil)
	if wins := winningMoves(ctx.board, side, empties); len(wins) > 0 {
		ctx.stats.ForcedNodes++
		return wins[:1]
	}
	if blocks := winningMoves(ctx.board, side.Opponent(), empties); len(blocks) > 0 {
		ctx.stats.ForcedNodes++
		return ctx.shuffleAndCap(blocks)
	}
	if near := ctx.neighborhood(last); len(near) > 0 {
		return ctx.shuffleAndCap(near)
	}
	return ctx.shuffleAndCap(empties)
}

func (ctx *searchContext) neighborhood(center Move) []Move {
	radius := ctx.cfg.NeighborhoodRadius
	moves := make([]Move, 0, (2*radius+1)*(2*radius+1)-1)
	for dr := -radius; dr <= radius; dr++ {
		for dc := -radius; dc <= radius; dc++ {
			r, c := center.Row+dr, center.Col+dc
			if ctx.board.IsEmpty(r, c) {
				moves = append(moves, Move{Row: r, Col: c})
			}
		}
	}
	return moves
}

func (ctx *searchContext) shuffleAndCap(moves []Move) []Move {
	ctx.rng.Shuffle(len(moves), func(i, j int) { moves[i], moves[j] = moves[j], moves[i] })
	if len(moves) > ctx.cfg.BranchingCapBelowRoot {
		moves = moves[:ctx.cfg.BranchingCapBelowRoot]
	}
	return moves
}
