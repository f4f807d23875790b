package httpapi

import (
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/TheKrainBow/mnk/engine"
)

var (
	ErrGameNotFound = errors.New("game not found")
	ErrGameOver     = errors.New("game is over")
	ErrStoreFull    = errors.New("too many games")
)

// Game is one session. All access goes through its mutex, so moves on the
// same game are applied one at a time.
type Game struct {
	mu        sync.Mutex
	id        string
	board     engine.Board
	history   MoveHistory
	outcome   engine.Outcome
	createdAt time.Time
	turnStart time.Time
}

type GameSnapshot struct {
	ID        string          `json:"id"`
	Rows      int             `json:"rows"`
	Cols      int             `json:"cols"`
	K         int             `json:"k"`
	Starting  engine.Cell     `json:"starting"`
	Board     [][]engine.Cell `json:"board"`
	ToMove    engine.Cell     `json:"to_move"`
	Outcome   engine.Outcome  `json:"outcome"`
	History   []HistoryEntry  `json:"history"`
	LastMove  *HistoryEntry   `json:"last_move,omitempty"`
	CreatedAt time.Time       `json:"created_at"`
}

func (g *Game) snapshotLocked() GameSnapshot {
	snap := GameSnapshot{
		ID:        g.id,
		Rows:      g.board.Rows(),
		Cols:      g.board.Cols(),
		K:         g.board.WinLength(),
		Starting:  g.board.Starting(),
		Board:     g.board.Grid(),
		Outcome:   g.outcome,
		History:   g.history.All(),
		CreatedAt: g.createdAt,
	}
	if g.outcome.Kind == engine.OutcomeNone {
		snap.ToMove = g.board.Turn()
	}
	if last, ok := g.history.Last(); ok {
		snap.LastMove = &last
	}
	return snap
}

func (g *Game) Snapshot() GameSnapshot {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.snapshotLocked()
}

// Play applies a human move for the side to move.
func (g *Game) Play(m engine.Move) (GameSnapshot, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	if err := g.applyLocked(m, HistoryEntry{}); err != nil {
		return GameSnapshot{}, err
	}
	return g.snapshotLocked(), nil
}

// PlayAI lets eng choose for the side to move and applies its choice.
func (g *Game) PlayAI(eng *engine.Engine, budget time.Duration) (GameSnapshot, engine.Decision, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	if g.outcome.Kind != engine.OutcomeNone {
		return GameSnapshot{}, engine.Decision{}, ErrGameOver
	}
	decision, err := eng.ChooseMoveWithin(g.board, g.board.Turn(), budget)
	if err != nil {
		return GameSnapshot{}, decision, err
	}
	if !decision.HasMove {
		return GameSnapshot{}, decision, ErrGameOver
	}
	entry := HistoryEntry{IsAI: true, Depth: decision.Depth, Score: decision.Score}
	if err := g.applyLocked(decision.Move, entry); err != nil {
		return GameSnapshot{}, decision, err
	}
	return g.snapshotLocked(), decision, nil
}

func (g *Game) applyLocked(m engine.Move, entry HistoryEntry) error {
	if g.outcome.Kind != engine.OutcomeNone {
		return ErrGameOver
	}
	side := g.board.Turn()
	if err := engine.Play(&g.board, m); err != nil {
		return err
	}
	outcome, err := engine.TerminalCheck(g.board, m)
	if err != nil {
		return fmt.Errorf("terminal check after %s: %w", m, err)
	}
	now := time.Now()
	entry.Move = m
	entry.Side = side
	entry.ElapsedMs = float64(now.Sub(g.turnStart).Microseconds()) / 1000.0
	g.history.Push(entry)
	g.outcome = outcome
	g.turnStart = now
	return nil
}

type GameStore struct {
	mu       sync.RWMutex
	games    map[string]*Game
	maxGames int
	onChange func(active int)
}

func NewGameStore(maxGames int, onChange func(active int)) *GameStore {
	return &GameStore{
		games:    make(map[string]*Game),
		maxGames: maxGames,
		onChange: onChange,
	}
}

func (s *GameStore) Create(rows, cols, k int, starting engine.Cell) (*Game, error) {
	board, err := engine.NewBoard(rows, cols, k, starting)
	if err != nil {
		return nil, err
	}
	now := time.Now()
	game := &Game{
		id:        uuid.NewString(),
		board:     board,
		outcome:   engine.Outcome{Kind: engine.OutcomeNone},
		createdAt: now,
		turnStart: now,
	}

	s.mu.Lock()
	if s.maxGames > 0 && len(s.games) >= s.maxGames {
		s.mu.Unlock()
		return nil, ErrStoreFull
	}
	s.games[game.id] = game
	active := len(s.games)
	s.mu.Unlock()

	s.notify(active)
	return game, nil
}

func (s *GameStore) Get(id string) (*Game, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	game, ok := s.games[id]
	if !ok {
		return nil, ErrGameNotFound
	}
	return game, nil
}

func (s *GameStore) Delete(id string) error {
	s.mu.Lock()
	if _, ok := s.games[id]; !ok {
		s.mu.Unlock()
		return ErrGameNotFound
	}
	delete(s.games, id)
	active := len(s.games)
	s.mu.Unlock()

	s.notify(active)
	return nil
}

func (s *GameStore) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.games)
}

func (s *GameStore) notify(active int) {
	if s.onChange != nil {
		s.onChange(active)
	}
}
