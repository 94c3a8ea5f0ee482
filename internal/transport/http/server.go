package http

import (
	"bufio"
	"context"
	"log/slog"
	"net"
	"net/http"
	"strings"
	"time"

	"github.com/julienschmidt/httprouter"

	"alias/internal/app"
	"alias/internal/config"
	"alias/internal/domain"
	"alias/internal/transport/ws"
)

// WordCatalog is the read side of the word catalog exposed over the API
type WordCatalog interface {
	SampleRandom(count int, filter domain.WordFilter) ([]domain.Word, error)
	Len() int
	Languages() []string
	Categories(filter domain.WordFilter) ([]string, error)
}

// Server represents the HTTP server
type Server struct {
	server      *http.Server
	engine      *app.Engine
	catalog     WordCatalog
	persister   *app.Persister
	broadcaster *app.Broadcaster
	config      *config.Config
	logger      *slog.Logger
}

// NewServer creates a new HTTP server
func NewServer(cfg *config.Config, engine *app.Engine, catalog WordCatalog, persister *app.Persister, broadcaster *app.Broadcaster, logger *slog.Logger) *Server {
	s := &Server{
		engine:      engine,
		catalog:     catalog,
		persister:   persister,
		broadcaster: broadcaster,
		config:      cfg,
		logger:      logger,
	}

	s.server = &http.Server{
		Addr:         cfg.GetAddr(),
		Handler:      s.Handler(),
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	return s
}

// Handler returns the routed handler wrapped in middleware
func (s *Server) Handler() http.Handler {
	mux := httprouter.New()
	s.setupRoutes(mux)

	mux.PanicHandler = func(w http.ResponseWriter, r *http.Request, i any) {
		s.logger.Error("panic serving request", "path", r.URL.Path, "panic", i)
		s.sendError(w, http.StatusInternalServerError, ErrCodeInternal, "Internal server error")
	}

	return s.middleware(mux)
}

// setupRoutes configures all HTTP routes
func (s *Server) setupRoutes(mux *httprouter.Router) {
	mux.GET("/api/health", s.handleHealth)
	mux.GET("/api/stats", s.handleStats)

	// Game history
	mux.GET("/api/games", s.handleListGames)
	mux.POST("/api/games", s.handleCreateGame)
	mux.GET("/api/games/:id", s.handleGetGame)
	mux.DELETE("/api/games/:id", s.handleDeleteGame)
	mux.GET("/api/games/:id/summary", s.handleGameSummary)
	mux.GET("/api/games/:id/qr", s.handleGameQR)

	// Current game commands
	mux.GET("/api/current", s.handleGetCurrent)
	mux.PUT("/api/current", s.handleSetCurrent)
	mux.POST("/api/current/rounds", s.handleStartRound)
	mux.POST("/api/current/rounds/end", s.handleEndRound)
	mux.POST("/api/current/words/:word", s.handleMarkWord)
	mux.PUT("/api/current/rounds/:round/words/:word", s.handleCorrectWord)

	// Word catalog
	mux.GET("/api/catalog", s.handleCatalog)
	mux.GET("/api/catalog/sample", s.handleSampleWords)

	mux.DELETE("/api/state", s.handleResetState)

	// WebSocket
	if s.broadcaster != nil {
		mux.Handler(http.MethodGet, "/ws", ws.NewHandler(s.engine, s.broadcaster, s.logger))
	}
}

// middleware wraps the handler with logging and other middleware
func (s *Server) middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()

		// Add CORS headers
		w.Header().Set("Access-Control-Allow-Origin", "*")
		w.Header().Set("Access-Control-Allow-Methods", "GET, POST, PUT, DELETE, OPTIONS")
		w.Header().Set("Access-Control-Allow-Headers", "Content-Type")

		// Handle preflight
		if r.Method == http.MethodOptions {
			w.WriteHeader(http.StatusOK)
			return
		}

		// Wrap response writer to capture status code
		wrapped := &responseWriter{ResponseWriter: w, statusCode: http.StatusOK}

		next.ServeHTTP(wrapped, r)

		// Health probes only show up in development
		if s.config.IsDevelopment() || !isProbeRequest(r.URL.Path) {
			s.logger.Info("request",
				"method", r.Method,
				"path", r.URL.Path,
				"status", wrapped.statusCode,
				"duration", time.Since(start),
			)
		}
	})
}

// Start starts the HTTP server
func (s *Server) Start() error {
	s.logger.Info("server starting", "addr", s.server.Addr)
	return s.server.ListenAndServe()
}

// Shutdown gracefully shuts down the server
func (s *Server) Shutdown(ctx context.Context) error {
	s.logger.Info("server shutting down")
	return s.server.Shutdown(ctx)
}

// responseWriter wraps http.ResponseWriter to capture status code
type responseWriter struct {
	http.ResponseWriter
	statusCode int
}

func (rw *responseWriter) WriteHeader(code int) {
	rw.statusCode = code
	rw.ResponseWriter.WriteHeader(code)
}

// Hijack implements http.Hijacker for WebSocket support
func (rw *responseWriter) Hijack() (net.Conn, *bufio.ReadWriter, error) {
	if hijacker, ok := rw.ResponseWriter.(http.Hijacker); ok {
		return hijacker.Hijack()
	}
	return nil, nil, http.ErrNotSupported
}

// Flush implements http.Flusher
func (rw *responseWriter) Flush() {
	if flusher, ok := rw.ResponseWriter.(http.Flusher); ok {
		flusher.Flush()
	}
}

// isProbeRequest checks if the request is a health or stats probe
func isProbeRequest(path string) bool {
	return strings.HasPrefix(path, "/api/health") || strings.HasPrefix(path, "/api/stats")
}
