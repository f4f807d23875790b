package httpapi

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/TheKrainBow/mnk/engine"
	"github.com/TheKrainBow/mnk/internal/metrics"
	"github.com/TheKrainBow/mnk/internal/settings"
)

type testServer struct {
	srv     *Server
	http    *httptest.Server
	metrics *metrics.Metrics
}

func newTestServer(t *testing.T, mutate func(*settings.File)) *testServer {
	t.Helper()
	cfg := settings.Default()
	cfg.Engine.MaxSearchDepth = 2
	cfg.Engine.Seed = 1
	cfg.Server.AIRatePerSecond = 1000
	cfg.Server.AIBurst = 1000
	cfg.Server.DefaultBudgetMs = 1000
	if mutate != nil {
		mutate(&cfg)
	}
	m := metrics.New()
	srv, err := NewServer(cfg, zerolog.Nop(), m)
	require.NoError(t, err)
	hs := httptest.NewServer(srv.Router())
	t.Cleanup(hs.Close)
	return &testServer{srv: srv, http: hs, metrics: m}
}

func (ts *testServer) do(t *testing.T, method, path string, body any) (int, []byte) {
	t.Helper()
	var reader io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		require.NoError(t, err)
		reader = bytes.NewReader(data)
	}
	req, err := http.NewRequest(method, ts.http.URL+path, reader)
	require.NoError(t, err)
	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()
	out, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	return resp.StatusCode, out
}

func (ts *testServer) createGame(t *testing.T, rows, cols, k int, starting string) GameSnapshot {
	t.Helper()
	status, body := ts.do(t, http.MethodPost, "/api/games", map[string]any{
		"rows": rows, "cols": cols, "k": k, "starting": starting,
	})
	require.Equal(t, http.StatusCreated, status, string(body))
	var snap GameSnapshot
	require.NoError(t, json.Unmarshal(body, &snap))
	return snap
}

func TestPing(t *testing.T) {
	ts := newTestServer(t, nil)
	status, body := ts.do(t, http.MethodGet, "/api/ping", nil)
	assert.Equal(t, http.StatusOK, status)
	assert.JSONEq(t, `{"ok":true}`, string(body))
}

func TestGameLifecycleToWin(t *testing.T) {
	ts := newTestServer(t, nil)
	game := ts.createGame(t, 3, 3, 3, "X")
	assert.Equal(t, engine.CellX, game.ToMove)
	assert.Equal(t, engine.OutcomeNone, game.Outcome.Kind)
	assert.Equal(t, 1.0, testutil.ToFloat64(ts.metrics.GamesActive))

	moves := []engine.Move{{Row: 0, Col: 0}, {Row: 1, Col: 0}, {Row: 0, Col: 1}, {Row: 1, Col: 1}, {Row: 0, Col: 2}}
	var snap GameSnapshot
	for _, m := range moves {
		status, body := ts.do(t, http.MethodPost, "/api/games/"+game.ID+"/moves", m)
		require.Equal(t, http.StatusOK, status, string(body))
		require.NoError(t, json.Unmarshal(body, &snap))
	}

	assert.Equal(t, engine.OutcomeWin, snap.Outcome.Kind)
	assert.Equal(t, engine.CellX, snap.Outcome.Winner)
	assert.Equal(t, []engine.Move{{Row: 0, Col: 0}, {Row: 0, Col: 1}, {Row: 0, Col: 2}}, snap.Outcome.Cells)
	assert.Equal(t, engine.CellEmpty, snap.ToMove)
	require.Len(t, snap.History, 5)
	assert.Equal(t, engine.CellO, snap.History[1].Side)
	assert.False(t, snap.History[4].IsAI)

	status, body := ts.do(t, http.MethodPost, "/api/games/"+game.ID+"/moves", engine.Move{Row: 2, Col: 2})
	assert.Equal(t, http.StatusConflict, status)
	assert.Contains(t, string(body), ErrGameOver.Error())

	status, body = ts.do(t, http.MethodGet, "/api/games/"+game.ID, nil)
	require.Equal(t, http.StatusOK, status)
	var fetched GameSnapshot
	require.NoError(t, json.Unmarshal(body, &fetched))
	assert.Equal(t, snap.Board, fetched.Board)
}

func TestGameDrawIsReported(t *testing.T) {
	ts := newTestServer(t, nil)
	game := ts.createGame(t, 1, 2, 2, "O")
	ts.do(t, http.MethodPost, "/api/games/"+game.ID+"/moves", engine.Move{Row: 0, Col: 0})
	status, body := ts.do(t, http.MethodPost, "/api/games/"+game.ID+"/moves", engine.Move{Row: 0, Col: 1})
	require.Equal(t, http.StatusOK, status, string(body))
	var snap GameSnapshot
	require.NoError(t, json.Unmarshal(body, &snap))
	assert.Equal(t, engine.OutcomeDraw, snap.Outcome.Kind)
	assert.Equal(t, [][]engine.Cell{{engine.CellO, engine.CellX}}, snap.Board)
}

func TestMoveErrorsMapToStatus(t *testing.T) {
	ts := newTestServer(t, nil)
	game := ts.createGame(t, 3, 3, 3, "")
	path := "/api/games/" + game.ID + "/moves"

	status, _ := ts.do(t, http.MethodPost, path, engine.Move{Row: 1, Col: 1})
	require.Equal(t, http.StatusOK, status)

	status, body := ts.do(t, http.MethodPost, path, engine.Move{Row: 1, Col: 1})
	assert.Equal(t, http.StatusConflict, status, "occupied cell")
	assert.Contains(t, string(body), "occupied")

	status, _ = ts.do(t, http.MethodPost, path, engine.Move{Row: 3, Col: 0})
	assert.Equal(t, http.StatusConflict, status, "out of bounds")

	req, err := http.NewRequest(http.MethodPost, ts.http.URL+path, strings.NewReader(`{"row":`))
	require.NoError(t, err)
	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode, "truncated json")

	status, _ = ts.do(t, http.MethodPost, path, map[string]any{"row": 0, "col": 0, "side": "X"})
	assert.Equal(t, http.StatusBadRequest, status, "unknown field")

	status, _ = ts.do(t, http.MethodPost, path, nil)
	assert.Equal(t, http.StatusBadRequest, status, "empty body")
	status, _ = ts.do(t, http.MethodPost, path, map[string]int{"row": 0})
	assert.Equal(t, http.StatusBadRequest, status, "missing col")
	status, body = ts.do(t, http.MethodGet, "/api/games/"+game.ID, nil)
	require.Equal(t, http.StatusOK, status)
	var snap GameSnapshot
	require.NoError(t, json.Unmarshal(body, &snap))
	assert.Len(t, snap.History, 1, "rejected requests must not play")

	status, _ = ts.do(t, http.MethodPost, "/api/games/nope/moves", engine.Move{})
	assert.Equal(t, http.StatusNotFound, status)
}

func TestCreateGameValidation(t *testing.T) {
	ts := newTestServer(t, nil)
	cases := map[string]map[string]any{
		"too wide":      {"rows": 3, "cols": 32, "k": 3},
		"k above sides": {"rows": 3, "cols": 3, "k": 4},
		"bad side":      {"rows": 3, "cols": 3, "k": 3, "starting": "Z"},
		"zero rows":     {"rows": 0, "cols": 3, "k": 3},
	}
	for name, body := range cases {
		t.Run(name, func(t *testing.T) {
			status, _ := ts.do(t, http.MethodPost, "/api/games", body)
			assert.Equal(t, http.StatusBadRequest, status)
		})
	}
}

func TestDeleteGame(t *testing.T) {
	ts := newTestServer(t, nil)
	game := ts.createGame(t, 3, 3, 3, "X")

	status, _ := ts.do(t, http.MethodDelete, "/api/games/"+game.ID, nil)
	assert.Equal(t, http.StatusNoContent, status)
	assert.Equal(t, 0.0, testutil.ToFloat64(ts.metrics.GamesActive))

	status, _ = ts.do(t, http.MethodDelete, "/api/games/"+game.ID, nil)
	assert.Equal(t, http.StatusNotFound, status)
	status, _ = ts.do(t, http.MethodGet, "/api/games/"+game.ID, nil)
	assert.Equal(t, http.StatusNotFound, status)
}

func TestStoreFull(t *testing.T) {
	ts := newTestServer(t, func(f *settings.File) { f.Server.MaxGames = 1 })
	ts.createGame(t, 3, 3, 3, "X")
	status, _ := ts.do(t, http.MethodPost, "/api/games", map[string]any{"rows": 3, "cols": 3, "k": 3})
	assert.Equal(t, http.StatusServiceUnavailable, status)
}

func TestAIMovePlaysForSideToMove(t *testing.T) {
	ts := newTestServer(t, nil)
	game := ts.createGame(t, 3, 3, 3, "X")
	path := "/api/games/" + game.ID
	for _, m := range []engine.Move{{Row: 0, Col: 0}, {Row: 1, Col: 0}, {Row: 0, Col: 1}} {
		status, _ := ts.do(t, http.MethodPost, path+"/moves", m)
		require.Equal(t, http.StatusOK, status)
	}

	// O to move and must block the top row.
	status, body := ts.do(t, http.MethodPost, path+"/ai", map[string]int{"budget_ms": 500})
	require.Equal(t, http.StatusOK, status, string(body))
	var resp aiMoveResponse
	require.NoError(t, json.Unmarshal(body, &resp))
	assert.True(t, resp.Decision.HasMove)
	assert.Equal(t, engine.Move{Row: 0, Col: 2}, resp.Decision.Move)
	require.Len(t, resp.Game.History, 4)
	last := resp.Game.History[3]
	assert.True(t, last.IsAI)
	assert.Equal(t, engine.CellO, last.Side)
	assert.Equal(t, engine.CellO, resp.Game.Board[0][2])
	assert.Equal(t, 1.0, testutil.ToFloat64(ts.metrics.SearchesTotal.WithLabelValues(metrics.ResultMove)))
}

func TestAIMoveOnFinishedGame(t *testing.T) {
	ts := newTestServer(t, nil)
	game := ts.createGame(t, 1, 1, 1, "X")
	status, _ := ts.do(t, http.MethodPost, "/api/games/"+game.ID+"/moves", engine.Move{})
	require.Equal(t, http.StatusOK, status)

	status, _ = ts.do(t, http.MethodPost, "/api/games/"+game.ID+"/ai", nil)
	assert.Equal(t, http.StatusConflict, status)
	assert.Equal(t, 0.0, testutil.ToFloat64(ts.metrics.SearchesTotal.WithLabelValues(metrics.ResultError)))
}

func chooseBody() map[string]any {
	// O to move: O wins at (1,2), X threatens (0,2).
	return map[string]any{
		"cells": [][]int{
			{1, 1, 0},
			{-1, -1, 0},
			{1, 0, 0},
		},
		"k":         3,
		"starting":  "X",
		"maximizer": "O",
		"budget_ms": 500,
	}
}

func TestChoosePrefersWinOverBlock(t *testing.T) {
	ts := newTestServer(t, nil)
	status, body := ts.do(t, http.MethodPost, "/api/choose", chooseBody())
	require.Equal(t, http.StatusOK, status, string(body))
	var d engine.Decision
	require.NoError(t, json.Unmarshal(body, &d))
	assert.True(t, d.HasMove)
	assert.Equal(t, engine.Move{Row: 1, Col: 2}, d.Move)
	assert.Greater(t, d.Score, engine.OneMoveFromWin)
}

func TestChooseDefaultsMaximizerToSideToMove(t *testing.T) {
	ts := newTestServer(t, nil)
	body := chooseBody()
	delete(body, "maximizer")
	status, out := ts.do(t, http.MethodPost, "/api/choose", body)
	require.Equal(t, http.StatusOK, status, string(out))
	var d engine.Decision
	require.NoError(t, json.Unmarshal(out, &d))
	assert.Equal(t, engine.Move{Row: 1, Col: 2}, d.Move)
}

func TestChooseRejectsBadInput(t *testing.T) {
	ts := newTestServer(t, nil)
	cases := map[string]func(map[string]any){
		"wrong maximizer": func(b map[string]any) { b["maximizer"] = "X" },
		"unknown side":    func(b map[string]any) { b["maximizer"] = "Z" },
		"bad parity":      func(b map[string]any) { b["starting"] = "O" },
		"cell value":      func(b map[string]any) { b["cells"] = [][]int{{2, 0, 0}} },
		"ragged rows":     func(b map[string]any) { b["cells"] = [][]int{{0, 0, 0}, {0, 0}} },
		"missing cells":   func(b map[string]any) { delete(b, "cells") },
		"negative budget": func(b map[string]any) { b["budget_ms"] = -5 },
		"already decided": func(b map[string]any) { b["cells"] = [][]int{{1, 1, 1}, {-1, -1, 0}, {0, 0, 0}} },
	}
	for name, mutate := range cases {
		t.Run(name, func(t *testing.T) {
			body := chooseBody()
			mutate(body)
			status, out := ts.do(t, http.MethodPost, "/api/choose", body)
			assert.Equal(t, http.StatusBadRequest, status, string(out))
		})
	}
}

func TestChooseFullBoardReturnsNoMove(t *testing.T) {
	ts := newTestServer(t, nil)
	status, body := ts.do(t, http.MethodPost, "/api/choose", map[string]any{
		"cells": [][]int{{1, -1, 1}, {1, -1, -1}, {-1, 1, 1}},
		"k":     3,
	})
	require.Equal(t, http.StatusOK, status, string(body))
	var d engine.Decision
	require.NoError(t, json.Unmarshal(body, &d))
	assert.False(t, d.HasMove)
	assert.Equal(t, engine.Draw, d.Score)
	assert.Equal(t, 1.0, testutil.ToFloat64(ts.metrics.SearchesTotal.WithLabelValues(metrics.ResultNoMove)))
}

func TestRateLimitRejectsBurst(t *testing.T) {
	ts := newTestServer(t, func(f *settings.File) {
		f.Server.AIRatePerSecond = 0.001
		f.Server.AIBurst = 1
	})
	status, _ := ts.do(t, http.MethodPost, "/api/choose", chooseBody())
	require.Equal(t, http.StatusOK, status)
	status, body := ts.do(t, http.MethodPost, "/api/choose", chooseBody())
	assert.Equal(t, http.StatusTooManyRequests, status)
	assert.Contains(t, string(body), errRateLimited.Error())
	assert.Equal(t, 1.0, testutil.ToFloat64(ts.metrics.RateLimitedTotal.WithLabelValues("choose")))

	// Human moves are never limited.
	game := ts.createGame(t, 3, 3, 3, "X")
	status, _ = ts.do(t, http.MethodPost, "/api/games/"+game.ID+"/moves", engine.Move{})
	assert.Equal(t, http.StatusOK, status)
}

func TestCacheStatsAndReset(t *testing.T) {
	ts := newTestServer(t, nil)
	status, _ := ts.do(t, http.MethodPost, "/api/choose", chooseBody())
	require.Equal(t, http.StatusOK, status)

	var stats engine.CacheStats
	status, body := ts.do(t, http.MethodGet, "/api/cache", nil)
	require.Equal(t, http.StatusOK, status)
	require.NoError(t, json.Unmarshal(body, &stats))
	assert.Positive(t, stats.WinEntries)

	status, body = ts.do(t, http.MethodDelete, "/api/cache", nil)
	require.Equal(t, http.StatusOK, status)
	require.NoError(t, json.Unmarshal(body, &stats))
	assert.Equal(t, engine.CacheStats{}, stats)
}

func TestConfigUpdate(t *testing.T) {
	ts := newTestServer(t, nil)
	var cfg engine.Config
	status, body := ts.do(t, http.MethodGet, "/api/config", nil)
	require.Equal(t, http.StatusOK, status)
	require.NoError(t, json.Unmarshal(body, &cfg))
	assert.Equal(t, 2, cfg.MaxSearchDepth)

	status, body = ts.do(t, http.MethodPut, "/api/config", map[string]any{"max_search_depth": 4, "use_symmetry": true})
	require.Equal(t, http.StatusOK, status, string(body))
	require.NoError(t, json.Unmarshal(body, &cfg))
	assert.Equal(t, 4, cfg.MaxSearchDepth)
	assert.True(t, cfg.UseSymmetry)
	assert.Equal(t, 8, cfg.BranchingCapBelowRoot, "fields left out keep their value")
	assert.True(t, ts.srv.engines.Get().Config().UseSymmetry)

	status, _ = ts.do(t, http.MethodPut, "/api/config", map[string]any{"max_search_depth": 99})
	assert.Equal(t, http.StatusBadRequest, status)
	assert.Equal(t, 4, ts.srv.engines.Config().MaxSearchDepth)
}

func TestSearchWebsocketStreamsDepthReports(t *testing.T) {
	ts := newTestServer(t, nil)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go func() { _ = ts.srv.Hub().Run(ctx) }()

	url := "ws" + strings.TrimPrefix(ts.http.URL, "http") + "/ws/search"
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	require.NoError(t, err)
	defer conn.Close()

	require.Eventually(t, ts.srv.Hub().HasClients, 2*time.Second, 10*time.Millisecond)
	assert.Equal(t, 1.0, testutil.ToFloat64(ts.metrics.WebsocketListeners))

	status, _ := ts.do(t, http.MethodPost, "/api/choose", chooseBody())
	require.Equal(t, http.StatusOK, status)

	require.NoError(t, conn.SetReadDeadline(time.Now().Add(2*time.Second)))
	var msg wsMessage
	require.NoError(t, conn.ReadJSON(&msg))
	assert.Equal(t, "depth", msg.Type)
	var payload depthPayload
	require.NoError(t, json.Unmarshal(msg.Payload, &payload))
	assert.Equal(t, 0, payload.Depth)
	assert.Equal(t, engine.Move{Row: 1, Col: 2}, payload.Move)
	assert.Positive(t, payload.Nodes)

	conn.Close()
	require.Eventually(t, func() bool { return !ts.srv.Hub().HasClients() }, 2*time.Second, 10*time.Millisecond)
	assert.Equal(t, 0.0, testutil.ToFloat64(ts.metrics.WebsocketListeners))
}

func TestMetricsEndpoint(t *testing.T) {
	ts := newTestServer(t, nil)
	ts.createGame(t, 3, 3, 3, "X")
	status, body := ts.do(t, http.MethodGet, "/metrics", nil)
	assert.Equal(t, http.StatusOK, status)
	assert.Contains(t, string(body), "mnk_games_active 1")
}

func TestSearchWebsocketOriginPolicy(t *testing.T) {
	dial := func(ts *testServer, origin string) (*http.Response, error) {
		url := "ws" + strings.TrimPrefix(ts.http.URL, "http") + "/ws/search"
		header := http.Header{}
		if origin != "" {
			header.Set("Origin", origin)
		}
		conn, resp, err := websocket.DefaultDialer.Dial(url, header)
		if err == nil {
			conn.Close()
		}
		return resp, err
	}

	sameOrigin := newTestServer(t, nil)
	resp, err := dial(sameOrigin, "http://evil.example")
	require.ErrorIs(t, err, websocket.ErrBadHandshake)
	assert.Equal(t, http.StatusForbidden, resp.StatusCode)
	_, err = dial(sameOrigin, sameOrigin.http.URL)
	assert.NoError(t, err)

	listed := newTestServer(t, func(f *settings.File) { f.Server.AllowedOrigins = []string{"http://app.example/"} })
	_, err = dial(listed, "http://APP.example")
	assert.NoError(t, err)
	_, err = dial(listed, "http://evil.example")
	assert.ErrorIs(t, err, websocket.ErrBadHandshake)
}

func TestOriginChecker(t *testing.T) {
	assert.Nil(t, originChecker(nil))

	req := httptest.NewRequest(http.MethodGet, "/ws/search", nil)
	req.Header.Set("Origin", "http://anything.example")
	assert.True(t, originChecker([]string{"*"})(req))
	assert.False(t, originChecker([]string{"http://app.example"})(req))

	req.Header.Del("Origin")
	assert.True(t, originChecker([]string{"http://app.example"})(req), "non-browser clients send no Origin")
}
