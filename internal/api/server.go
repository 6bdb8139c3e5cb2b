package api

import (
	"encoding/json"
	"net/http"

	"github.com/zpavlovic/kinoteka/internal/config"
	"github.com/zpavlovic/kinoteka/internal/db"
	"github.com/zpavlovic/kinoteka/internal/jobs"
	"github.com/zpavlovic/kinoteka/internal/repository"
	"github.com/zpavlovic/kinoteka/internal/scanner"
	"github.com/zpavlovic/kinoteka/internal/thumbnail"
)

type Server struct {
	config      *config.Config
	db          *db.DB
	movieRepo   *repository.MovieRepository
	scanner     *scanner.Scanner
	engine      *thumbnail.Engine
	coordinator *thumbnail.Coordinator
	jobQueue    *jobs.Queue
	wsHub       *WSHub
	router      *http.ServeMux
}

type Response struct {
	Success bool        `json:"success"`
	Data    interface{} `json:"data,omitempty"`
	Error   string      `json:"error,omitempty"`
}

func NewServer(cfg *config.Config, database *db.DB, jobQueue *jobs.Queue) *Server {
	movieRepo := repository.NewMovieRepository(database.DB)
	engine := thumbnail.NewEngine(cfg.FFmpegPath, cfg.FFprobePath, cfg.ThumbnailerPath, cfg.ThumbnailsDir)
	sc := scanner.NewScanner(cfg.MoviesDir, movieRepo, engine, cfg.AutoThumbnails)
	coordinator := thumbnail.NewCoordinator(movieRepo, engine, cfg.MoviesDir)

	s := &Server{
		config:      cfg,
		db:          database,
		movieRepo:   movieRepo,
		scanner:     sc,
		engine:      engine,
		coordinator: coordinator,
		jobQueue:    jobQueue,
		wsHub:       NewWSHub(),
		router:      http.NewServeMux(),
	}

	s.setupRoutes()
	return s
}

func (s *Server) WSHub() *WSHub {
	return s.wsHub
}

func (s *Server) Scanner() *scanner.Scanner {
	return s.scanner
}

func (s *Server) Engine() *thumbnail.Engine {
	return s.engine
}

func (s *Server) Coordinator() *thumbnail.Coordinator {
	return s.coordinator
}

func (s *Server) setupRoutes() {
	// Static files
	fs := http.FileServer(http.Dir("web"))
	s.router.Handle("/", fs)

	s.router.HandleFunc("GET /health", s.handleHealth)

	// Scanning
	s.router.HandleFunc("POST /api/v1/scan", s.handleScan)

	// Movies
	s.router.HandleFunc("GET /api/v1/movies", s.handleListMovies)
	s.router.HandleFunc("GET /api/v1/movies/search", s.handleSearchMovies)
	s.router.HandleFunc("GET /api/v1/movies/{id}", s.handleGetMovie)
	s.router.HandleFunc("GET /api/v1/movies/{id}/stream", s.handleStreamMovie)
	s.router.HandleFunc("GET /api/v1/movies/{id}/subtitle", s.handleMovieSubtitle)
	s.router.HandleFunc("GET /api/v1/movies/{id}/thumbnail", s.handleMovieThumbnail)
	s.router.HandleFunc("GET /api/v1/movies/{id}/video-info", s.handleMovieVideoInfo)
	s.router.HandleFunc("POST /api/v1/movies/{id}/capture-thumbnail", s.handleCaptureThumbnail)
	s.router.HandleFunc("POST /api/v1/movies/{id}/played", s.handleMoviePlayed)

	// Taxonomy
	s.router.HandleFunc("GET /api/v1/collections", s.handleListCollections)
	s.router.HandleFunc("GET /api/v1/collections/{collection}/subcategories", s.handleListSubcategories)
	s.router.HandleFunc("GET /api/v1/collections/{collection}/movies", s.handleCollectionMovies)

	// Thumbnails
	s.router.HandleFunc("GET /api/v1/thumbnails/stats", s.handleThumbnailStats)
	s.router.HandleFunc("GET /api/v1/thumbnails/missing", s.handleMissingThumbnails)
	s.router.HandleFunc("POST /api/v1/thumbnails/regenerate", s.handleRegenerateThumbnails)
	s.router.HandleFunc("POST /api/v1/thumbnails/{id}/regenerate", s.handleRegenerateOne)
	s.router.HandleFunc("DELETE /api/v1/thumbnails/{id}", s.handleDeleteThumbnail)

	// WebSocket
	s.router.HandleFunc("GET /api/v1/ws", s.handleWebSocket)
}

// ──────────────────── Helpers ────────────────────

func (s *Server) respondJSON(w http.ResponseWriter, statusCode int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	json.NewEncoder(w).Encode(data)
}

func (s *Server) respondError(w http.ResponseWriter, statusCode int, message string) {
	s.respondJSON(w, statusCode, Response{Success: false, Error: message})
}

// Handler returns the router wrapped with global middleware: security
// headers → CORS → handler.
func (s *Server) Handler() http.Handler {
	return s.securityHeadersMiddleware(s.corsMiddleware(s.router))
}

// securityHeadersMiddleware adds standard security headers to all responses.
func (s *Server) securityHeadersMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("X-Content-Type-Options", "nosniff")
		w.Header().Set("X-Frame-Options", "DENY")
		w.Header().Set("Referrer-Policy", "strict-origin-when-cross-origin")
		w.Header().Set("Permissions-Policy", "camera=(), microphone=(), geolocation=()")
		w.Header().Set("X-XSS-Protection", "0")
		next.ServeHTTP(w, r)
	})
}

// corsMiddleware handles CORS preflight and response headers globally.
func (s *Server) corsMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		origin := r.Header.Get("Origin")
		if origin != "" {
			w.Header().Set("Access-Control-Allow-Origin", origin)
			w.Header().Set("Access-Control-Allow-Credentials", "true")
			w.Header().Set("Access-Control-Allow-Headers", "Content-Type, X-Requested-With")
			w.Header().Set("Access-Control-Allow-Methods", "GET, POST, PUT, DELETE, PATCH, OPTIONS")
			w.Header().Set("Access-Control-Max-Age", "86400")
			w.Header().Set("Vary", "Origin")
		}

		// Handle preflight
		if r.Method == http.MethodOptions {
			w.WriteHeader(http.StatusNoContent)
			return
		}

		next.ServeHTTP(w, r)
	})
}
