package api

import (
	"encoding/json"
	"errors"
	"io"
	"log"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/hibiken/asynq"

	"github.com/zpavlovic/kinoteka/internal/jobs"
	"github.com/zpavlovic/kinoteka/internal/models"
	"github.com/zpavlovic/kinoteka/internal/scanner"
	"github.com/zpavlovic/kinoteka/internal/stream"
	"github.com/zpavlovic/kinoteka/internal/thumbnail"
	"github.com/zpavlovic/kinoteka/internal/version"
)

// movieView decorates a record with its display title. The raw title
// is kept as parsed; cleaning is applied at the presentation edge only.
type movieView struct {
	*models.Movie
	DisplayTitle string `json:"display_title"`
}

func newMovieView(m *models.Movie) movieView {
	return movieView{Movie: m, DisplayTitle: scanner.CleanTitle(m.Title)}
}

func newMovieViews(movies []*models.Movie) []movieView {
	views := make([]movieView, 0, len(movies))
	for _, m := range movies {
		views = append(views, newMovieView(m))
	}
	return views
}

// ──────────────────── Health ────────────────────

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	if err := s.db.Ping(); err != nil {
		s.respondError(w, http.StatusServiceUnavailable, "database unreachable")
		return
	}
	s.respondJSON(w, http.StatusOK, Response{Success: true, Data: map[string]interface{}{
		"status":  "ok",
		"version": version.Current(),
	}})
}

// ──────────────────── Scanning ────────────────────

func (s *Server) handleScan(w http.ResponseWriter, r *http.Request) {
	result, err := s.scanner.Scan()
	if err != nil {
		log.Printf("API: scan failed: %v", err)
		s.respondError(w, http.StatusInternalServerError, "scan failed: "+err.Error())
		return
	}
	s.respondJSON(w, http.StatusOK, Response{Success: true, Data: result})
}

// ──────────────────── Movies ────────────────────

func (s *Server) handleListMovies(w http.ResponseWriter, r *http.Request) {
	movies, err := s.movieRepo.All()
	if err != nil {
		s.respondError(w, http.StatusInternalServerError, "failed to list movies")
		return
	}
	s.respondJSON(w, http.StatusOK, Response{Success: true, Data: newMovieViews(movies)})
}

func (s *Server) handleSearchMovies(w http.ResponseWriter, r *http.Request) {
	term := strings.TrimSpace(r.URL.Query().Get("q"))
	if term == "" {
		s.respondError(w, http.StatusBadRequest, "missing search term")
		return
	}
	movies, err := s.movieRepo.Search(term)
	if err != nil {
		s.respondError(w, http.StatusInternalServerError, "search failed")
		return
	}
	s.respondJSON(w, http.StatusOK, Response{Success: true, Data: newMovieViews(movies)})
}

func (s *Server) movieFromPath(w http.ResponseWriter, r *http.Request) *models.Movie {
	id, err := uuid.Parse(r.PathValue("id"))
	if err != nil {
		s.respondError(w, http.StatusBadRequest, "invalid movie id")
		return nil
	}
	movie, err := s.movieRepo.GetByID(id)
	if err != nil {
		s.respondError(w, http.StatusInternalServerError, "failed to load movie")
		return nil
	}
	if movie == nil {
		s.respondError(w, http.StatusNotFound, "movie not found")
		return nil
	}
	return movie
}

func (s *Server) handleGetMovie(w http.ResponseWriter, r *http.Request) {
	movie := s.movieFromPath(w, r)
	if movie == nil {
		return
	}
	s.respondJSON(w, http.StatusOK, Response{Success: true, Data: newMovieView(movie)})
}

func (s *Server) moviesPath(rel string) string {
	return filepath.Join(s.config.MoviesDir, filepath.FromSlash(rel))
}

func (s *Server) handleStreamMovie(w http.ResponseWriter, r *http.Request) {
	movie := s.movieFromPath(w, r)
	if movie == nil {
		return
	}
	if err := stream.ServeDirectFile(w, r, s.moviesPath(movie.FilePath)); err != nil {
		log.Printf("API: stream error for %s: %v", movie.ID, err)
	}
}

func (s *Server) handleMovieSubtitle(w http.ResponseWriter, r *http.Request) {
	movie := s.movieFromPath(w, r)
	if movie == nil {
		return
	}
	if movie.SubtitlePath == nil {
		s.respondError(w, http.StatusNotFound, "no subtitle for this movie")
		return
	}

	data, err := os.ReadFile(s.moviesPath(*movie.SubtitlePath))
	if err != nil {
		s.respondError(w, http.StatusNotFound, "subtitle file missing")
		return
	}
	text, err := stream.DecodeSubtitle(data)
	if err != nil {
		s.respondError(w, http.StatusInternalServerError, "failed to decode subtitle")
		return
	}
	vtt, err := stream.ConvertToWebVTT(text)
	if err != nil {
		s.respondError(w, http.StatusInternalServerError, "failed to convert subtitle")
		return
	}

	w.Header().Set("Content-Type", "text/vtt; charset=utf-8")
	w.WriteHeader(http.StatusOK)
	io.WriteString(w, vtt)
}

func (s *Server) handleMovieThumbnail(w http.ResponseWriter, r *http.Request) {
	movie := s.movieFromPath(w, r)
	if movie == nil {
		return
	}
	if movie.ThumbnailPath == nil || *movie.ThumbnailPath == "" {
		s.respondError(w, http.StatusNotFound, "no thumbnail for this movie")
		return
	}

	// Generated artifacts live in their own directory; discovered
	// images live under the movies root.
	var path string
	if strings.HasPrefix(*movie.ThumbnailPath, models.GeneratedThumbPrefix) {
		path = s.engine.ArtifactFile(*movie.ThumbnailPath)
	} else {
		path = s.moviesPath(*movie.ThumbnailPath)
	}
	// Regeneration reuses the same filename, so browsers must revalidate.
	w.Header().Set("Cache-Control", "public, max-age=3600, must-revalidate")
	http.ServeFile(w, r, path)
}

func (s *Server) handleMovieVideoInfo(w http.ResponseWriter, r *http.Request) {
	movie := s.movieFromPath(w, r)
	if movie == nil {
		return
	}
	info, err := s.engine.ProbeVideoInfo(s.moviesPath(movie.FilePath))
	if err != nil {
		log.Printf("API: probe failed for %s: %v", movie.ID, err)
		s.respondError(w, http.StatusInternalServerError, "failed to probe video")
		return
	}
	s.respondJSON(w, http.StatusOK, Response{Success: true, Data: info})
}

func (s *Server) handleCaptureThumbnail(w http.ResponseWriter, r *http.Request) {
	movie := s.movieFromPath(w, r)
	if movie == nil {
		return
	}

	var req struct {
		Timestamp float64 `json:"timestamp"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.respondError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if req.Timestamp < 0 {
		s.respondError(w, http.StatusBadRequest, "timestamp must not be negative")
		return
	}

	// Manual captures are named from the record identity plus a
	// timestamp so they never collide with scan-generated artifacts.
	token := s.engine.IdentityToken(movie.ID.String() + "-" + movie.Title)
	filename := s.engine.DeriveFilename(token, true)

	path, err := s.engine.CaptureAtTimestamp(s.moviesPath(movie.FilePath), req.Timestamp, filename)
	if err != nil {
		switch {
		case errors.Is(err, thumbnail.ErrInvalidTimestamp):
			s.respondError(w, http.StatusBadRequest, err.Error())
		case errors.Is(err, thumbnail.ErrUnavailable):
			s.respondError(w, http.StatusServiceUnavailable, "ffmpeg is not available")
		case errors.Is(err, thumbnail.ErrNotFound):
			s.respondError(w, http.StatusNotFound, "video file missing")
		default:
			s.respondError(w, http.StatusInternalServerError, err.Error())
		}
		return
	}

	if err := s.movieRepo.UpdateThumbnailPath(movie.ID, path); err != nil {
		s.respondError(w, http.StatusInternalServerError, "failed to save thumbnail path")
		return
	}
	s.respondJSON(w, http.StatusOK, Response{Success: true, Data: map[string]string{"thumbnail_path": path}})
}

func (s *Server) handleMoviePlayed(w http.ResponseWriter, r *http.Request) {
	movie := s.movieFromPath(w, r)
	if movie == nil {
		return
	}
	if err := s.movieRepo.IncrementPlayCount(movie.ID); err != nil {
		s.respondError(w, http.StatusInternalServerError, "failed to record playback")
		return
	}
	s.respondJSON(w, http.StatusOK, Response{Success: true})
}

// ──────────────────── Taxonomy ────────────────────

func (s *Server) handleListCollections(w http.ResponseWriter, r *http.Request) {
	collections, err := s.movieRepo.Collections()
	if err != nil {
		s.respondError(w, http.StatusInternalServerError, "failed to list collections")
		return
	}
	s.respondJSON(w, http.StatusOK, Response{Success: true, Data: collections})
}

func (s *Server) handleListSubcategories(w http.ResponseWriter, r *http.Request) {
	collection := r.PathValue("collection")
	subcategories, err := s.movieRepo.Subcategories(collection)
	if err != nil {
		s.respondError(w, http.StatusInternalServerError, "failed to list subcategories")
		return
	}
	s.respondJSON(w, http.StatusOK, Response{Success: true, Data: subcategories})
}

func (s *Server) handleCollectionMovies(w http.ResponseWriter, r *http.Request) {
	collection := r.PathValue("collection")
	subcategory := r.URL.Query().Get("subcategory")

	var movies []*models.Movie
	var err error
	if subcategory != "" {
		movies, err = s.movieRepo.BySubcategory(collection, subcategory)
	} else {
		movies, err = s.movieRepo.ByCollection(collection)
	}
	if err != nil {
		s.respondError(w, http.StatusInternalServerError, "failed to list movies")
		return
	}
	s.respondJSON(w, http.StatusOK, Response{Success: true, Data: newMovieViews(movies)})
}

// ──────────────────── Thumbnails ────────────────────

func (s *Server) handleThumbnailStats(w http.ResponseWriter, r *http.Request) {
	stats, err := s.coordinator.Stats()
	if err != nil {
		s.respondError(w, http.StatusInternalServerError, "failed to compute stats")
		return
	}
	s.respondJSON(w, http.StatusOK, Response{Success: true, Data: stats})
}

func (s *Server) handleMissingThumbnails(w http.ResponseWriter, r *http.Request) {
	missing, err := s.coordinator.FindMissing()
	if err != nil {
		s.respondError(w, http.StatusInternalServerError, "failed to list missing thumbnails")
		return
	}
	s.respondJSON(w, http.StatusOK, Response{Success: true, Data: newMovieViews(missing)})
}

// handleRegenerateThumbnails enqueues the batch as a background job so
// the HTTP request returns immediately; progress arrives over the
// WebSocket.
func (s *Server) handleRegenerateThumbnails(w http.ResponseWriter, r *http.Request) {
	taskID, err := s.jobQueue.EnqueueUnique(
		jobs.TaskRegenerateThumbnails,
		jobs.RegenerateThumbnailsPayload{},
		"thumbnails:regenerate",
		asynq.Timeout(6*time.Hour), asynq.Retention(1*time.Hour),
	)
	if err != nil {
		log.Printf("API: failed to enqueue thumbnail regeneration: %v", err)
		s.respondError(w, http.StatusInternalServerError, "failed to start regeneration")
		return
	}
	s.respondJSON(w, http.StatusAccepted, Response{Success: true, Data: map[string]string{"task_id": taskID}})
}

func (s *Server) handleRegenerateOne(w http.ResponseWriter, r *http.Request) {
	id, err := uuid.Parse(r.PathValue("id"))
	if err != nil {
		s.respondError(w, http.StatusBadRequest, "invalid movie id")
		return
	}
	result, err := s.coordinator.RegenerateOne(id)
	if err != nil {
		s.respondError(w, http.StatusInternalServerError, "regeneration failed")
		return
	}
	s.respondJSON(w, http.StatusOK, Response{Success: true, Data: result})
}

func (s *Server) handleDeleteThumbnail(w http.ResponseWriter, r *http.Request) {
	id, err := uuid.Parse(r.PathValue("id"))
	if err != nil {
		s.respondError(w, http.StatusBadRequest, "invalid movie id")
		return
	}
	if err := s.coordinator.DeleteOne(id); err != nil {
		if errors.Is(err, thumbnail.ErrMovieNotFound) {
			s.respondError(w, http.StatusNotFound, "movie not found")
			return
		}
		s.respondError(w, http.StatusInternalServerError, "failed to delete thumbnail")
		return
	}
	s.respondJSON(w, http.StatusOK, Response{Success: true})
}
