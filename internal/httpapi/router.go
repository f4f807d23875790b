package httpapi

import (
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-playground/validator/v10"
	"github.com/gorilla/websocket"
	"github.com/rs/zerolog"
	"golang.org/x/time/rate"

	"github.com/TheKrainBow/mnk/engine"
	"github.com/TheKrainBow/mnk/internal/metrics"
	"github.com/TheKrainBow/mnk/internal/settings"
)

var requestValidate = validator.New()

type Server struct {
	log           zerolog.Logger
	engines       *EngineStore
	games         *GameStore
	hub           *SearchHub
	upgrader      *websocket.Upgrader
	metrics       *metrics.Metrics
	limiter       *rate.Limiter
	defaultBudget time.Duration
}

func NewServer(cfg settings.File, log zerolog.Logger, m *metrics.Metrics) (*Server, error) {
	if m == nil {
		m = metrics.New()
	}
	s := &Server{
		log:           log,
		metrics:       m,
		limiter:       rate.NewLimiter(rate.Limit(cfg.Server.AIRatePerSecond), cfg.Server.AIBurst),
		defaultBudget: cfg.Server.DefaultBudget(),
		upgrader:      &websocket.Upgrader{CheckOrigin: originChecker(cfg.Server.AllowedOrigins)},
	}
	s.hub = NewSearchHub(func(n int) { m.WebsocketListeners.Set(float64(n)) })
	s.games = NewGameStore(cfg.Server.MaxGames, func(n int) { m.GamesActive.Set(float64(n)) })

	engines, err := NewEngineStore(cfg.Engine,
		engine.WithLogger(log.With().Str("component", "engine").Logger()),
		engine.WithProgress(s.hub.PublishDepth),
	)
	if err != nil {
		return nil, fmt.Errorf("build engine: %w", err)
	}
	s.engines = engines
	return s, nil
}

func (s *Server) Hub() *SearchHub {
	return s.hub
}

func (s *Server) Router() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(func(next http.Handler) http.Handler { return AccessLog(s.log, next) })
	r.Use(middleware.Recoverer)

	r.Get("/api/ping", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, map[string]bool{"ok": true})
	})

	r.Route("/api/games", func(r chi.Router) {
		r.Post("/", s.handleCreateGame)
		r.Get("/{id}", s.handleGetGame)
		r.Delete("/{id}", s.handleDeleteGame)
		r.Post("/{id}/moves", s.handlePlayMove)
		r.With(rateLimit(s.limiter, "ai", s.metrics)).Post("/{id}/ai", s.handleAIMove)
	})
	r.With(rateLimit(s.limiter, "choose", s.metrics)).Post("/api/choose", s.handleChoose)

	r.Get("/api/cache", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, s.engines.Get().CacheStats())
	})
	r.Delete("/api/cache", func(w http.ResponseWriter, r *http.Request) {
		s.engines.Get().ResetCache()
		writeJSON(w, http.StatusOK, s.engines.Get().CacheStats())
	})

	r.Get("/api/config", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, s.engines.Config())
	})
	r.Put("/api/config", s.handleUpdateConfig)

	r.Get("/ws/search", func(w http.ResponseWriter, r *http.Request) {
		serveSearchWS(s.hub, s.upgrader, w, r)
	})
	r.Handle("/metrics", s.metrics.Handler())
	return r
}

type createGameRequest struct {
	Rows     int    `json:"rows" validate:"gte=1,lte=31"`
	Cols     int    `json:"cols" validate:"gte=1,lte=31"`
	K        int    `json:"k" validate:"gte=1,lte=31"`
	Starting string `json:"starting"`
}

// Row and Col are pointers so a missing field fails validation.
type moveRequest struct {
	Row *int `json:"row" validate:"required"`
	Col *int `json:"col" validate:"required"`
}

type aiRequest struct {
	BudgetMs int `json:"budget_ms" validate:"gte=0,lte=3600000"`
}

type chooseRequest struct {
	Cells     [][]engine.Cell `json:"cells" validate:"required,min=1,max=31,dive,min=1,max=31,dive,oneof=-1 0 1"`
	K         int             `json:"k" validate:"gte=1,lte=31"`
	Starting  string          `json:"starting"`
	Maximizer string          `json:"maximizer"`
	BudgetMs  int             `json:"budget_ms" validate:"gte=0,lte=3600000"`
}

type aiMoveResponse struct {
	Game     GameSnapshot    `json:"game"`
	Decision engine.Decision `json:"decision"`
}

func decodeAndValidate(r *http.Request, dst any) error {
	if err := decodeJSON(r, dst); err != nil {
		return err
	}
	if err := requestValidate.Struct(dst); err != nil {
		return errors.Join(errBadRequest, err)
	}
	return nil
}

func parseSideOr(raw string, fallback engine.Cell) (engine.Cell, error) {
	if raw == "" {
		return fallback, nil
	}
	return engine.ParseSide(raw)
}

func (s *Server) budgetFor(ms int) time.Duration {
	if ms <= 0 {
		return s.defaultBudget
	}
	return time.Duration(ms) * time.Millisecond
}

func (s *Server) handleCreateGame(w http.ResponseWriter, r *http.Request) {
	var req createGameRequest
	if err := decodeAndValidate(r, &req); err != nil {
		writeError(w, err)
		return
	}
	starting, err := parseSideOr(req.Starting, engine.CellX)
	if err != nil {
		writeError(w, err)
		return
	}
	game, err := s.games.Create(req.Rows, req.Cols, req.K, starting)
	if err != nil {
		writeError(w, err)
		return
	}
	s.log.Info().Str("game", game.id).Int("rows", req.Rows).Int("cols", req.Cols).Int("k", req.K).Msg("game created")
	writeJSON(w, http.StatusCreated, game.Snapshot())
}

func (s *Server) handleGetGame(w http.ResponseWriter, r *http.Request) {
	game, err := s.games.Get(chi.URLParam(r, "id"))
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, game.Snapshot())
}

func (s *Server) handleDeleteGame(w http.ResponseWriter, r *http.Request) {
	if err := s.games.Delete(chi.URLParam(r, "id")); err != nil {
		writeError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handlePlayMove(w http.ResponseWriter, r *http.Request) {
	game, err := s.games.Get(chi.URLParam(r, "id"))
	if err != nil {
		writeError(w, err)
		return
	}
	var req moveRequest
	if err := decodeAndValidate(r, &req); err != nil {
		writeError(w, err)
		return
	}
	snap, err := game.Play(engine.NewMove(*req.Row, *req.Col))
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, snap)
}

func (s *Server) handleAIMove(w http.ResponseWriter, r *http.Request) {
	game, err := s.games.Get(chi.URLParam(r, "id"))
	if err != nil {
		writeError(w, err)
		return
	}
	var req aiRequest
	if err := decodeAndValidate(r, &req); err != nil {
		writeError(w, err)
		return
	}
	snap, decision, err := game.PlayAI(s.engines.Get(), s.budgetFor(req.BudgetMs))
	if err != nil {
		if !errors.Is(err, ErrGameOver) {
			s.metrics.ObserveSearchError()
		}
		writeError(w, err)
		return
	}
	s.metrics.ObserveDecision(decision)
	writeJSON(w, http.StatusOK, aiMoveResponse{Game: snap, Decision: decision})
}

func (s *Server) handleChoose(w http.ResponseWriter, r *http.Request) {
	var req chooseRequest
	if err := decodeAndValidate(r, &req); err != nil {
		writeError(w, err)
		return
	}
	starting, err := parseSideOr(req.Starting, engine.CellX)
	if err != nil {
		writeError(w, err)
		return
	}
	board, err := engine.BoardFromCells(req.Cells, req.K, starting)
	if err != nil {
		writeError(w, err)
		return
	}
	maximizer, err := parseSideOr(req.Maximizer, board.Turn())
	if err != nil {
		writeError(w, err)
		return
	}
	decision, err := s.engines.Get().ChooseMoveWithin(board, maximizer, s.budgetFor(req.BudgetMs))
	if err != nil {
		s.metrics.ObserveSearchError()
		writeError(w, err)
		return
	}
	s.metrics.ObserveDecision(decision)
	writeJSON(w, http.StatusOK, decision)
}

func (s *Server) handleUpdateConfig(w http.ResponseWriter, r *http.Request) {
	cfg := s.engines.Config()
	if err := decodeJSON(r, &cfg); err != nil {
		writeError(w, err)
		return
	}
	if err := s.engines.Update(cfg); err != nil {
		writeError(w, err)
		return
	}
	s.log.Info().Interface("config", cfg).Msg("engine config updated")
	writeJSON(w, http.StatusOK, s.engines.Config())
}
