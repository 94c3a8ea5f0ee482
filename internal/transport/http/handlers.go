package http

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"strings"

	"github.com/julienschmidt/httprouter"
	"github.com/skip2/go-qrcode"

	"alias/internal/domain"
)

// Error codes sent in the response envelope
const (
	ErrCodeInvalidRequest    = "INVALID_REQUEST"
	ErrCodeValidation        = "VALIDATION_FAILED"
	ErrCodeNotFound          = "NOT_FOUND"
	ErrCodeInvalidState      = "INVALID_STATE"
	ErrCodeResourceExhausted = "RESOURCE_EXHAUSTED"
	ErrCodeInternal          = "INTERNAL_ERROR"
)

const (
	maxBodyBytes = 1 << 16
	qrSize       = 320
)

// Response is a standard API response
type Response struct {
	Success bool       `json:"success"`
	Data    any        `json:"data,omitempty"`
	Error   *ErrorInfo `json:"error,omitempty"`
}

// ErrorInfo contains error details
type ErrorInfo struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

// CreateGameRequest is the body of POST /api/games
type CreateGameRequest struct {
	TeamNames       []string `json:"teamNames"`
	RoundTime       int      `json:"roundTime"`
	Difficulty      string   `json:"difficulty"`
	ScoreLimit      int      `json:"scoreLimit"`
	LosePointOnSkip bool     `json:"losePointOnSkip"`
}

// CreateGameResponse is the response for game creation
type CreateGameResponse struct {
	GameID    string `json:"gameId"`
	ShareLink string `json:"shareLink"`
}

// SelectGameRequest is the body of PUT /api/current
type SelectGameRequest struct {
	GameID string `json:"gameId"`
}

// WordStatusRequest is the body of the word marking endpoints
type WordStatusRequest struct {
	Status string `json:"status"`
}

// EndRoundResponse is the response for ending a round
type EndRoundResponse struct {
	Outcome domain.GameStatus `json:"outcome"`
	Game    *domain.Game      `json:"game"`
}

// GameSummaryResponse is the end-of-game view
type GameSummaryResponse struct {
	GameID    string             `json:"gameId"`
	Status    domain.GameStatus  `json:"status"`
	Standings []domain.Standing  `json:"standings"`
	Winners   []domain.Standing  `json:"winners"`
	IsTie     bool               `json:"isTie"`
	Stats     []domain.TeamStats `json:"stats"`
}

// CatalogResponse describes the word catalog
type CatalogResponse struct {
	Words        int                 `json:"words"`
	Languages    []string            `json:"languages"`
	Difficulties []domain.Difficulty `json:"difficulties"`
	Categories   []string            `json:"categories"`
}

// HealthResponse is the response for health check
type HealthResponse struct {
	Status string `json:"status"`
}

// StatsResponse is the response for stats endpoint
type StatsResponse struct {
	Games         int    `json:"games"`
	CurrentGameID string `json:"currentGameId,omitempty"`
	Clients       int    `json:"clients"`
	CatalogWords  int    `json:"catalogWords"`
}

// handleHealth handles GET /api/health
func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request, _ httprouter.Params) {
	s.sendSuccess(w, &HealthResponse{
		Status: "ok",
	})
}

// handleStats handles GET /api/stats
func (s *Server) handleStats(w http.ResponseWriter, r *http.Request, _ httprouter.Params) {
	stats := &StatsResponse{
		Games:         s.engine.GameCount(),
		CurrentGameID: s.engine.CurrentGameID(),
		CatalogWords:  s.catalog.Len(),
	}
	if s.broadcaster != nil {
		stats.Clients = s.broadcaster.ClientCount()
	}
	s.sendSuccess(w, stats)
}

// handleListGames handles GET /api/games
func (s *Server) handleListGames(w http.ResponseWriter, r *http.Request, _ httprouter.Params) {
	s.sendSuccess(w, s.engine.Games())
}

// handleCreateGame handles POST /api/games
func (s *Server) handleCreateGame(w http.ResponseWriter, r *http.Request, _ httprouter.Params) {
	var req CreateGameRequest
	if !s.decode(w, r, &req) {
		return
	}

	difficulty, err := domain.ParseDifficulty(req.Difficulty)
	if err != nil {
		s.sendDomainError(w, err)
		return
	}

	id, err := s.engine.CreateGame(domain.GameOptions{
		TeamNames:       req.TeamNames,
		RoundTime:       req.RoundTime,
		Difficulty:      difficulty,
		ScoreLimit:      req.ScoreLimit,
		LosePointOnSkip: req.LosePointOnSkip,
	})
	if err != nil {
		s.sendDomainError(w, err)
		return
	}

	s.sendStatus(w, http.StatusCreated, &CreateGameResponse{
		GameID:    id,
		ShareLink: baseURL(r) + "/api/games/" + id,
	})
}

// handleGetGame handles GET /api/games/:id
func (s *Server) handleGetGame(w http.ResponseWriter, r *http.Request, ps httprouter.Params) {
	game, err := s.engine.Game(ps.ByName("id"))
	if err != nil {
		s.sendDomainError(w, err)
		return
	}
	s.sendSuccess(w, game)
}

// handleDeleteGame handles DELETE /api/games/:id
func (s *Server) handleDeleteGame(w http.ResponseWriter, r *http.Request, ps httprouter.Params) {
	if err := s.engine.DeleteGame(ps.ByName("id")); err != nil {
		s.sendDomainError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// handleGameSummary handles GET /api/games/:id/summary
func (s *Server) handleGameSummary(w http.ResponseWriter, r *http.Request, ps httprouter.Params) {
	game, err := s.engine.Game(ps.ByName("id"))
	if err != nil {
		s.sendDomainError(w, err)
		return
	}

	s.sendSuccess(w, &GameSummaryResponse{
		GameID:    game.ID,
		Status:    game.Status,
		Standings: game.Standings(),
		Winners:   game.Winners(),
		IsTie:     game.IsTie(),
		Stats:     game.TeamStats(),
	})
}

// handleGameQR handles GET /api/games/:id/qr with a PNG linking to the game
func (s *Server) handleGameQR(w http.ResponseWriter, r *http.Request, ps httprouter.Params) {
	id := ps.ByName("id")
	if _, err := s.engine.Game(id); err != nil {
		s.sendDomainError(w, err)
		return
	}

	png, err := qrcode.Encode(baseURL(r)+"/api/games/"+id, qrcode.Medium, qrSize)
	if err != nil {
		s.logger.Error("qr generation failed", "gameID", id, "error", err)
		s.sendError(w, http.StatusInternalServerError, ErrCodeInternal, "QR generation failed")
		return
	}

	w.Header().Set("Content-Type", "image/png")
	w.Header().Set("Cache-Control", "no-store")
	_, _ = w.Write(png)
}

// handleGetCurrent handles GET /api/current. Data is null when no game is selected.
func (s *Server) handleGetCurrent(w http.ResponseWriter, r *http.Request, _ httprouter.Params) {
	s.sendSuccess(w, s.engine.CurrentGame())
}

// handleSetCurrent handles PUT /api/current
func (s *Server) handleSetCurrent(w http.ResponseWriter, r *http.Request, _ httprouter.Params) {
	var req SelectGameRequest
	if !s.decode(w, r, &req) {
		return
	}
	if err := s.engine.SetCurrentGameID(req.GameID); err != nil {
		s.sendDomainError(w, err)
		return
	}
	s.sendSuccess(w, s.engine.CurrentGame())
}

// handleStartRound handles POST /api/current/rounds
func (s *Server) handleStartRound(w http.ResponseWriter, r *http.Request, _ httprouter.Params) {
	round, err := s.engine.StartRound()
	if err != nil {
		s.sendDomainError(w, err)
		return
	}
	s.sendStatus(w, http.StatusCreated, round)
}

// handleEndRound handles POST /api/current/rounds/end
func (s *Server) handleEndRound(w http.ResponseWriter, r *http.Request, _ httprouter.Params) {
	outcome, err := s.engine.EndRound()
	if err != nil {
		s.sendDomainError(w, err)
		return
	}
	s.sendSuccess(w, &EndRoundResponse{
		Outcome: outcome,
		Game:    s.engine.CurrentGame(),
	})
}

// handleMarkWord handles POST /api/current/words/:word
func (s *Server) handleMarkWord(w http.ResponseWriter, r *http.Request, ps httprouter.Params) {
	wordIndex, ok := s.index(w, ps, "word")
	if !ok {
		return
	}
	status, ok := s.wordStatus(w, r)
	if !ok {
		return
	}

	if err := s.engine.UpdateWordStatus(wordIndex, status); err != nil {
		s.sendDomainError(w, err)
		return
	}
	s.sendSuccess(w, s.engine.CurrentGame())
}

// handleCorrectWord handles PUT /api/current/rounds/:round/words/:word
func (s *Server) handleCorrectWord(w http.ResponseWriter, r *http.Request, ps httprouter.Params) {
	roundIndex, ok := s.index(w, ps, "round")
	if !ok {
		return
	}
	wordIndex, ok := s.index(w, ps, "word")
	if !ok {
		return
	}
	status, ok := s.wordStatus(w, r)
	if !ok {
		return
	}

	if err := s.engine.UpdateWordStatusInRound(roundIndex, wordIndex, status); err != nil {
		s.sendDomainError(w, err)
		return
	}
	s.sendSuccess(w, s.engine.CurrentGame())
}

// handleCatalog handles GET /api/catalog
func (s *Server) handleCatalog(w http.ResponseWriter, r *http.Request, _ httprouter.Params) {
	categories, err := s.catalog.Categories(domain.WordFilter{})
	if err != nil {
		s.sendDomainError(w, err)
		return
	}
	s.sendSuccess(w, &CatalogResponse{
		Words:        s.catalog.Len(),
		Languages:    s.catalog.Languages(),
		Difficulties: []domain.Difficulty{domain.DifficultyEasy, domain.DifficultyMedium, domain.DifficultyHard},
		Categories:   categories,
	})
}

// handleSampleWords handles GET /api/catalog/sample
func (s *Server) handleSampleWords(w http.ResponseWriter, r *http.Request, _ httprouter.Params) {
	q := r.URL.Query()

	count := 10
	if raw := q.Get("count"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil {
			s.sendError(w, http.StatusBadRequest, ErrCodeInvalidRequest, "count must be an integer")
			return
		}
		count = n
	}

	filter := domain.WordFilter{
		Category: q.Get("category"),
		Language: q.Get("language"),
	}
	if raw := q.Get("difficulty"); raw != "" {
		d, err := domain.ParseDifficulty(raw)
		if err != nil {
			s.sendDomainError(w, err)
			return
		}
		if d.IsTier() {
			filter.Difficulty = d
		}
	}

	words, err := s.catalog.SampleRandom(count, filter)
	if err != nil {
		s.sendDomainError(w, err)
		return
	}
	s.sendSuccess(w, words)
}

// handleResetState handles DELETE /api/state
func (s *Server) handleResetState(w http.ResponseWriter, r *http.Request, _ httprouter.Params) {
	s.engine.Reset()
	if s.persister != nil {
		if err := s.persister.Clear(r.Context()); err != nil {
			s.logger.Error("failed to clear persisted state", "error", err)
			s.sendError(w, http.StatusInternalServerError, ErrCodeInternal, "Failed to clear persisted state")
			return
		}
	}
	w.WriteHeader(http.StatusNoContent)
}

// decode reads a JSON body into v, answering 400 on failure
func (s *Server) decode(w http.ResponseWriter, r *http.Request, v any) bool {
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	dec.DisallowUnknownFields()
	if err := dec.Decode(v); err != nil {
		s.sendError(w, http.StatusBadRequest, ErrCodeInvalidRequest, "Invalid request body: "+err.Error())
		return false
	}
	return true
}

// index parses a non-negative integer path parameter
func (s *Server) index(w http.ResponseWriter, ps httprouter.Params, name string) (int, bool) {
	n, err := strconv.Atoi(ps.ByName(name))
	if err != nil || n < 0 {
		s.sendError(w, http.StatusBadRequest, ErrCodeInvalidRequest, name+" must be a non-negative integer")
		return 0, false
	}
	return n, true
}

func (s *Server) wordStatus(w http.ResponseWriter, r *http.Request) (domain.WordStatus, bool) {
	var req WordStatusRequest
	if !s.decode(w, r, &req) {
		return "", false
	}
	status, err := domain.ParseWordStatus(req.Status)
	if err != nil {
		s.sendDomainError(w, err)
		return "", false
	}
	return status, true
}

// sendSuccess sends a successful JSON response
func (s *Server) sendSuccess(w http.ResponseWriter, data any) {
	s.sendStatus(w, http.StatusOK, data)
}

// sendStatus sends a successful JSON response with the given status code
func (s *Server) sendStatus(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(&Response{
		Success: true,
		Data:    data,
	})
}

// sendError sends an error JSON response
func (s *Server) sendError(w http.ResponseWriter, status int, code, message string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(&Response{
		Success: false,
		Error: &ErrorInfo{
			Code:    code,
			Message: message,
		},
	})
}

// sendDomainError maps an engine error onto a status code and error code
func (s *Server) sendDomainError(w http.ResponseWriter, err error) {
	status, code := ErrorStatus(err)
	if status == http.StatusInternalServerError {
		s.logger.Error("request failed", "error", err)
		s.sendError(w, status, code, "Internal server error")
		return
	}
	s.sendError(w, status, code, err.Error())
}

// ErrorStatus returns the HTTP status and error code for err
func ErrorStatus(err error) (int, string) {
	switch {
	case errors.Is(err, domain.ErrValidation):
		return http.StatusBadRequest, ErrCodeValidation
	case errors.Is(err, domain.ErrNotFound):
		return http.StatusNotFound, ErrCodeNotFound
	case errors.Is(err, domain.ErrPrecondition):
		return http.StatusConflict, ErrCodeInvalidState
	case errors.Is(err, domain.ErrResourceExhausted):
		return http.StatusUnprocessableEntity, ErrCodeResourceExhausted
	default:
		return http.StatusInternalServerError, ErrCodeInternal
	}
}

// baseURL derives scheme and host, respecting X-Forwarded-Proto
func baseURL(r *http.Request) string {
	scheme := "http"
	if r.TLS != nil {
		scheme = "https"
	}
	if proto := r.Header.Get("X-Forwarded-Proto"); proto != "" {
		scheme = strings.ToLower(proto)
	}
	return scheme + "://" + r.Host
}
