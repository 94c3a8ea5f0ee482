package http

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"

	"alias/internal/app"
	"alias/internal/catalog"
	"alias/internal/config"
	"alias/internal/domain"
	"alias/internal/storage"
)

type testEnv struct {
	server *httptest.Server
	engine *app.Engine
	store  *storage.MemoryStore
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))

	words := catalog.New()
	if err := words.Initialize(); err != nil {
		t.Fatalf("catalog Initialize() error = %v", err)
	}

	cfg := config.Default()
	cfg.Server.Env = "production"
	store := storage.NewMemoryStore()
	engine := app.NewEngine(words, logger)
	persister := app.NewPersister(store, cfg.Storage.SnapshotKey, logger)
	persister.Attach(engine)
	broadcaster := app.NewBroadcaster(engine, logger)

	s := NewServer(cfg, engine, words, persister, broadcaster, logger)
	ts := httptest.NewServer(s.Handler())
	t.Cleanup(func() {
		ts.Close()
		broadcaster.Close()
		persister.Detach()
	})

	return &testEnv{server: ts, engine: engine, store: store}
}

func (env *testEnv) do(t *testing.T, method, path string, body any) (*http.Response, Response) {
	t.Helper()

	var reader io.Reader
	if body != nil {
		var buf bytes.Buffer
		if s, ok := body.(string); ok {
			buf.WriteString(s)
		} else if err := json.NewEncoder(&buf).Encode(body); err != nil {
			t.Fatalf("encode body: %v", err)
		}
		reader = &buf
	}

	req, err := http.NewRequest(method, env.server.URL+path, reader)
	if err != nil {
		t.Fatalf("NewRequest() error = %v", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := env.server.Client().Do(req)
	if err != nil {
		t.Fatalf("%s %s: %v", method, path, err)
	}
	defer resp.Body.Close()

	var out Response
	if resp.StatusCode != http.StatusNoContent && resp.Header.Get("Content-Type") == "application/json" {
		if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
			t.Fatalf("decode %s %s response: %v", method, path, err)
		}
	}
	return resp, out
}

func decodeData[T any](t *testing.T, r Response) T {
	t.Helper()
	var v T
	raw, err := json.Marshal(r.Data)
	if err != nil {
		t.Fatalf("re-encode data: %v", err)
	}
	if err := json.Unmarshal(raw, &v); err != nil {
		t.Fatalf("decode data: %v", err)
	}
	return v
}

func (env *testEnv) createGame(t *testing.T, scoreLimit int) string {
	t.Helper()
	resp, body := env.do(t, http.MethodPost, "/api/games", CreateGameRequest{
		TeamNames:  []string{"A", "B"},
		RoundTime:  60,
		Difficulty: "easy",
		ScoreLimit: scoreLimit,
	})
	if resp.StatusCode != http.StatusCreated {
		t.Fatalf("create game status = %d, error = %+v", resp.StatusCode, body.Error)
	}
	return decodeData[CreateGameResponse](t, body).GameID
}

func TestHealthAndStats(t *testing.T) {
	env := newTestEnv(t)

	resp, body := env.do(t, http.MethodGet, "/api/health", nil)
	if resp.StatusCode != http.StatusOK || !body.Success {
		t.Fatalf("health = %d %+v", resp.StatusCode, body)
	}

	env.createGame(t, 5)
	_, body = env.do(t, http.MethodGet, "/api/stats", nil)
	stats := decodeData[StatsResponse](t, body)
	if stats.Games != 1 || stats.CurrentGameID == "" || stats.CatalogWords == 0 {
		t.Errorf("stats = %+v", stats)
	}
}

func TestCreateGameValidation(t *testing.T) {
	env := newTestEnv(t)

	tests := []struct {
		name string
		body any
		code string
	}{
		{"one team", CreateGameRequest{TeamNames: []string{"A"}, RoundTime: 60, ScoreLimit: 5}, ErrCodeValidation},
		{"bad difficulty", CreateGameRequest{TeamNames: []string{"A", "B"}, RoundTime: 60, ScoreLimit: 5, Difficulty: "insane"}, ErrCodeValidation},
		{"round time", CreateGameRequest{TeamNames: []string{"A", "B"}, RoundTime: 5, ScoreLimit: 5}, ErrCodeValidation},
		{"malformed json", `{"teamNames": [`, ErrCodeInvalidRequest},
		{"unknown field", `{"teams": ["A", "B"]}`, ErrCodeInvalidRequest},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			resp, body := env.do(t, http.MethodPost, "/api/games", tt.body)
			if resp.StatusCode != http.StatusBadRequest {
				t.Errorf("status = %d, want 400", resp.StatusCode)
			}
			if body.Success || body.Error == nil || body.Error.Code != tt.code {
				t.Errorf("body = %+v, want error code %s", body, tt.code)
			}
		})
	}

	if env.engine.GameCount() != 0 {
		t.Errorf("GameCount() = %d after rejected requests", env.engine.GameCount())
	}
}

func TestGameplayFlow(t *testing.T) {
	env := newTestEnv(t)
	id := env.createGame(t, 5)

	resp, body := env.do(t, http.MethodPost, "/api/current/rounds", nil)
	if resp.StatusCode != http.StatusCreated {
		t.Fatalf("start round status = %d, error = %+v", resp.StatusCode, body.Error)
	}
	round := decodeData[domain.Round](t, body)
	if round.TeamIndex != 0 || len(round.Words) != 10 {
		t.Fatalf("round = team %d with %d words", round.TeamIndex, len(round.Words))
	}

	for i := 0; i < 5; i++ {
		resp, body := env.do(t, http.MethodPost, fmt.Sprintf("/api/current/words/%d", i), WordStatusRequest{Status: "correct"})
		if resp.StatusCode != http.StatusOK {
			t.Fatalf("mark word %d status = %d, error = %+v", i, resp.StatusCode, body.Error)
		}
	}

	resp, body = env.do(t, http.MethodPost, "/api/current/words/0", WordStatusRequest{Status: "skipped"})
	if resp.StatusCode != http.StatusBadRequest {
		t.Errorf("re-marking a word status = %d, want 400", resp.StatusCode)
	}

	_, body = env.do(t, http.MethodPost, "/api/current/rounds/end", nil)
	ended := decodeData[EndRoundResponse](t, body)
	if ended.Outcome != domain.StatusRoundEnd || !ended.Game.ScoreLimitReached {
		t.Fatalf("end round = %+v", ended)
	}

	resp, body = env.do(t, http.MethodPut, "/api/current/rounds/0/words/4", WordStatusRequest{Status: "skipped"})
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("correction status = %d, error = %+v", resp.StatusCode, body.Error)
	}
	game := decodeData[domain.Game](t, body)
	if game.Teams[0].Score != 4 || game.ScoreLimitReached {
		t.Errorf("after correction score=%d reached=%v", game.Teams[0].Score, game.ScoreLimitReached)
	}

	env.do(t, http.MethodPut, "/api/current/rounds/0/words/4", WordStatusRequest{Status: "correct"})
	env.do(t, http.MethodPost, "/api/current/rounds", nil)
	_, body = env.do(t, http.MethodPost, "/api/current/rounds/end", nil)
	if got := decodeData[EndRoundResponse](t, body).Outcome; got != domain.StatusGameEnd {
		t.Fatalf("second end round outcome = %q, want gameEnd", got)
	}

	resp, body = env.do(t, http.MethodPost, "/api/current/rounds", nil)
	if resp.StatusCode != http.StatusConflict || body.Error.Code != ErrCodeInvalidState {
		t.Errorf("start after gameEnd = %d %+v", resp.StatusCode, body.Error)
	}

	_, body = env.do(t, http.MethodGet, "/api/games/"+id+"/summary", nil)
	summary := decodeData[GameSummaryResponse](t, body)
	if summary.Status != domain.StatusGameEnd || len(summary.Winners) != 1 || summary.Winners[0].Name != "A" {
		t.Errorf("summary = %+v", summary)
	}
	if summary.Stats[0].CorrectWords != 5 {
		t.Errorf("team A correct words = %d, want 5", summary.Stats[0].CorrectWords)
	}
}

func TestCurrentGameSelection(t *testing.T) {
	env := newTestEnv(t)

	_, body := env.do(t, http.MethodGet, "/api/current", nil)
	if !body.Success || body.Data != nil {
		t.Errorf("empty current = %+v", body)
	}

	resp, _ := env.do(t, http.MethodPost, "/api/current/rounds", nil)
	if resp.StatusCode != http.StatusNotFound {
		t.Errorf("start round without game status = %d, want 404", resp.StatusCode)
	}

	first := env.createGame(t, 5)
	env.createGame(t, 5)

	resp, body = env.do(t, http.MethodPut, "/api/current", SelectGameRequest{GameID: first})
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("select status = %d", resp.StatusCode)
	}
	if g := decodeData[domain.Game](t, body); g.ID != first {
		t.Errorf("current = %q, want %q", g.ID, first)
	}

	resp, _ = env.do(t, http.MethodPut, "/api/current", SelectGameRequest{GameID: "missing"})
	if resp.StatusCode != http.StatusNotFound {
		t.Errorf("select missing status = %d, want 404", resp.StatusCode)
	}
}

func TestGameHistory(t *testing.T) {
	env := newTestEnv(t)
	id := env.createGame(t, 5)
	env.createGame(t, 10)

	_, body := env.do(t, http.MethodGet, "/api/games", nil)
	if games := decodeData[[]domain.Game](t, body); len(games) != 2 || games[0].ID != id {
		t.Fatalf("games = %+v", games)
	}

	resp, _ := env.do(t, http.MethodGet, "/api/games/"+id, nil)
	if resp.StatusCode != http.StatusOK {
		t.Errorf("get game status = %d", resp.StatusCode)
	}

	resp, _ = env.do(t, http.MethodDelete, "/api/games/"+id, nil)
	if resp.StatusCode != http.StatusNoContent {
		t.Errorf("delete status = %d, want 204", resp.StatusCode)
	}

	resp, body = env.do(t, http.MethodGet, "/api/games/"+id, nil)
	if resp.StatusCode != http.StatusNotFound || body.Error.Code != ErrCodeNotFound {
		t.Errorf("get deleted game = %d %+v", resp.StatusCode, body.Error)
	}
}

func TestBadPathIndexes(t *testing.T) {
	env := newTestEnv(t)
	env.createGame(t, 5)
	env.do(t, http.MethodPost, "/api/current/rounds", nil)

	for _, path := range []string{"/api/current/words/abc", "/api/current/words/-1"} {
		resp, body := env.do(t, http.MethodPost, path, WordStatusRequest{Status: "correct"})
		if resp.StatusCode != http.StatusBadRequest || body.Error.Code != ErrCodeInvalidRequest {
			t.Errorf("%s = %d %+v", path, resp.StatusCode, body.Error)
		}
	}

	resp, _ := env.do(t, http.MethodPost, "/api/current/words/99", WordStatusRequest{Status: "correct"})
	if resp.StatusCode != http.StatusNotFound {
		t.Errorf("unknown word status = %d, want 404", resp.StatusCode)
	}

	resp, _ = env.do(t, http.MethodPut, "/api/current/rounds/7/words/0", WordStatusRequest{Status: "correct"})
	if resp.StatusCode != http.StatusNotFound {
		t.Errorf("unknown round status = %d, want 404", resp.StatusCode)
	}

	resp, _ = env.do(t, http.MethodPost, "/api/current/words/1", WordStatusRequest{Status: "maybe"})
	if resp.StatusCode != http.StatusBadRequest {
		t.Errorf("unknown status = %d, want 400", resp.StatusCode)
	}
}

func TestGameQR(t *testing.T) {
	env := newTestEnv(t)
	id := env.createGame(t, 5)

	resp, err := env.server.Client().Get(env.server.URL + "/api/games/" + id + "/qr")
	if err != nil {
		t.Fatalf("GET qr: %v", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK || resp.Header.Get("Content-Type") != "image/png" {
		t.Fatalf("qr = %d %s", resp.StatusCode, resp.Header.Get("Content-Type"))
	}
	png, _ := io.ReadAll(resp.Body)
	if !bytes.HasPrefix(png, []byte("\x89PNG")) {
		t.Error("qr body is not a PNG")
	}

	resp2, _ := env.do(t, http.MethodGet, "/api/games/missing/qr", nil)
	if resp2.StatusCode != http.StatusNotFound {
		t.Errorf("qr for missing game status = %d, want 404", resp2.StatusCode)
	}
}

func TestCatalogEndpoints(t *testing.T) {
	env := newTestEnv(t)

	_, body := env.do(t, http.MethodGet, "/api/catalog", nil)
	info := decodeData[CatalogResponse](t, body)
	if info.Words == 0 || len(info.Languages) == 0 || len(info.Categories) == 0 {
		t.Errorf("catalog = %+v", info)
	}

	_, body = env.do(t, http.MethodGet, "/api/catalog/sample?count=5&difficulty=hard&language=en", nil)
	words := decodeData[[]domain.Word](t, body)
	if len(words) != 5 {
		t.Fatalf("sample returned %d words, want 5", len(words))
	}
	for _, w := range words {
		if w.Difficulty != domain.DifficultyHard || w.Language != "en" {
			t.Errorf("word %+v does not match the filter", w)
		}
	}

	_, body = env.do(t, http.MethodGet, "/api/catalog/sample?category=no-such-category", nil)
	if words := decodeData[[]domain.Word](t, body); len(words) != 0 {
		t.Errorf("unknown category returned %d words", len(words))
	}

	for _, q := range []string{"count=0", "count=x", "difficulty=legendary"} {
		resp, _ := env.do(t, http.MethodGet, "/api/catalog/sample?"+q, nil)
		if resp.StatusCode != http.StatusBadRequest {
			t.Errorf("%s status = %d, want 400", q, resp.StatusCode)
		}
	}
}

func TestResetState(t *testing.T) {
	env := newTestEnv(t)
	env.createGame(t, 5)

	if _, err := env.store.Get(context.Background(), app.DefaultSnapshotKey); err != nil {
		t.Fatalf("snapshot missing before reset: %v", err)
	}

	resp, _ := env.do(t, http.MethodDelete, "/api/state", nil)
	if resp.StatusCode != http.StatusNoContent {
		t.Fatalf("reset status = %d, want 204", resp.StatusCode)
	}
	if env.engine.GameCount() != 0 {
		t.Errorf("GameCount() = %d after reset", env.engine.GameCount())
	}
	if _, err := env.store.Get(context.Background(), app.DefaultSnapshotKey); !errors.Is(err, storage.ErrNotFound) {
		t.Errorf("snapshot still present after reset: %v", err)
	}
}

func TestErrorStatus(t *testing.T) {
	tests := []struct {
		err    error
		status int
		code   string
	}{
		{&domain.ValidationError{Field: "x"}, http.StatusBadRequest, ErrCodeValidation},
		{&domain.NotFoundError{Kind: "game"}, http.StatusNotFound, ErrCodeNotFound},
		{&domain.PreconditionError{Op: "start a round"}, http.StatusConflict, ErrCodeInvalidState},
		{&domain.ResourceExhaustedError{Resource: "words"}, http.StatusUnprocessableEntity, ErrCodeResourceExhausted},
		{fmt.Errorf("sample words: %w", &domain.ResourceExhaustedError{}), http.StatusUnprocessableEntity, ErrCodeResourceExhausted},
		{errors.New("boom"), http.StatusInternalServerError, ErrCodeInternal},
	}

	for _, tt := range tests {
		status, code := ErrorStatus(tt.err)
		if status != tt.status || code != tt.code {
			t.Errorf("ErrorStatus(%v) = %d %s, want %d %s", tt.err, status, code, tt.status, tt.code)
		}
	}
}
