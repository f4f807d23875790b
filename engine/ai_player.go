package engine

import (
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/rs/zerolog"
	"lukechampine.com/frand"
)

// Decision is the result of ChooseMove. HasMove is false only when the board
// had no empty cell.
type Decision struct {
	Move     Move        `json:"move"`
	HasMove  bool        `json:"has_move"`
	Score    int         `json:"score"`
	Depth    int         `json:"depth"`
	TimedOut bool        `json:"timed_out"`
	Stats    SearchStats `json:"stats"`
}

// Engine is the automated player. Its caches persist across calls until
// ResetCache; calls are serialised.
type Engine struct {
	mu       sync.Mutex
	cfg      Config
	memo     *memo
	rng      *frand.RNG
	log      zerolog.Logger
	progress func(DepthReport)
}

type Option func(*Engine)

func WithLogger(log zerolog.Logger) Option {
	return func(e *Engine) {
		e.log = log
	}
}

// WithProgress registers a callback invoked after every completed pass. It
// runs on the searching goroutine and must not call back into the Engine.
func WithProgress(fn func(DepthReport)) Option {
	return func(e *Engine) {
		e.progress = fn
	}
}

func New(cfg Config, opts ...Option) (*Engine, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	e := &Engine{
		cfg:  cfg,
		memo: newMemo(cfg),
		rng:  newRNG(cfg.Seed),
		log:  zerolog.Nop(),
	}
	for _, opt := range opts {
		opt(e)
	}
	return e, nil
}

func (e *Engine) Config() Config {
	return e.cfg
}

// ChooseMove searches for maximizer's best move on b. A zero deadline means
// now plus the configured per-move budget. b itself is never modified.
func (e *Engine) ChooseMove(b Board, maximizer Cell, deadline time.Time) (Decision, error) {
	if b.rows == 0 || b.cols == 0 {
		return Decision{}, fmt.Errorf("%w: uninitialised board", ErrIllegalArgument)
	}
	if !maximizer.IsSide() {
		return Decision{}, fmt.Errorf("%w: maximizer %d", ErrIllegalArgument, maximizer)
	}
	if b.IsFull() {
		return Decision{Score: Draw}, nil
	}
	if turn := b.Turn(); turn != maximizer {
		return Decision{}, fmt.Errorf("%w: %s to move, not %s", ErrIllegalArgument, turn, maximizer)
	}
	if HasAnyWin(b) {
		return Decision{}, fmt.Errorf("%w: game already decided", ErrIllegalArgument)
	}

	start := time.Now()
	if deadline.IsZero() {
		deadline = start.Add(e.cfg.SearchBudget())
	}

	e.mu.Lock()
	defer e.mu.Unlock()

	stats := SearchStats{}
	before := e.memo.stats
	board := b.Clone()
	ctx := &searchContext{
		board:     &board,
		maximizer: maximizer,
		deadline:  deadline,
		cfg:       e.cfg,
		memo:      e.memo,
		rng:       e.rng,
		stats:     &stats,
	}
	result := ctx.iterate(e.progress)

	after := e.memo.stats
	stats.WinCacheHits = after.WinHits - before.WinHits
	stats.WinCacheMisses = after.WinMisses - before.WinMisses
	stats.EvalCacheHits = after.EvalHits - before.EvalHits
	stats.EvalCacheMisses = after.EvalMisses - before.EvalMisses
	stats.Elapsed = time.Since(start)

	decision := Decision{
		Move:     result.move,
		HasMove:  true,
		Score:    result.score,
		Depth:    result.depth,
		TimedOut: result.timedOut,
		Stats:    stats,
	}
	e.logSearchStats(maximizer, decision)
	return decision, nil
}

// ChooseMoveWithin is ChooseMove with a relative budget; a non-positive
// budget falls back to the configured one.
func (e *Engine) ChooseMoveWithin(b Board, maximizer Cell, budget time.Duration) (Decision, error) {
	if budget <= 0 {
		budget = e.cfg.SearchBudget()
	}
	return e.ChooseMove(b, maximizer, time.Now().Add(budget))
}

func (e *Engine) ResetCache() {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.memo.reset()
}

func (e *Engine) CacheStats() CacheStats {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.memo.snapshot()
}

func (e *Engine) logSearchStats(maximizer Cell, d Decision) {
	if e.log.GetLevel() > zerolog.DebugLevel {
		return
	}
	stats := d.Stats
	nps := 0.0
	if stats.Elapsed > 0 {
		nps = float64(stats.Nodes) / stats.Elapsed.Seconds()
	}
	winHitRate := 0.0
	if probes := stats.WinCacheHits + stats.WinCacheMisses; probes > 0 {
		winHitRate = float64(stats.WinCacheHits) * 100.0 / float64(probes)
	}
	evalHitRate := 0.0
	if probes := stats.EvalCacheHits + stats.EvalCacheMisses; probes > 0 {
		evalHitRate = float64(stats.EvalCacheHits) * 100.0 / float64(probes)
	}
	parts := make([]string, 0, len(stats.DepthDurations))
	for _, dur := range stats.DepthDurations {
		parts = append(parts, fmt.Sprintf("%dms", dur.Milliseconds()))
	}
	e.log.Debug().
		Str("maximizer", maximizer.String()).
		Str("move", d.Move.String()).
		Int("score", d.Score).
		Int("depth", d.Depth).
		Bool("timed_out", d.TimedOut).
		Int64("nodes", stats.Nodes).
		Int64("evals", stats.Evaluations).
		Int("root_candidates", stats.RootCandidates).
		Float64("nps", nps).
		Float64("win_cache_hit_pct", winHitRate).
		Float64("eval_cache_hit_pct", evalHitRate).
		Str("depth_times", strings.Join(parts, ",")).
		Dur("elapsed", stats.Elapsed).
		Msg("search complete")
}
