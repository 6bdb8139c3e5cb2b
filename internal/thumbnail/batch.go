package thumbnail

import (
	"context"
	"errors"
	"fmt"
	"log"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/zpavlovic/kinoteka/internal/models"
)

// interItemPause bounds ffmpeg load during a large backfill. The batch
// is deliberately sequential; this is a throughput policy, not a
// runtime artifact.
const interItemPause = 500 * time.Millisecond

// ErrMovieNotFound reports that the targeted catalog record no longer
// exists.
var ErrMovieNotFound = errors.New("movie not found")

// Catalog is the store contract the coordinator needs.
type Catalog interface {
	GetByID(id uuid.UUID) (*models.Movie, error)
	FindMissingThumbnail() ([]*models.Movie, error)
	UpdateThumbnailPath(id uuid.UUID, path string) error
	ClearThumbnailPath(id uuid.UUID) error
	ThumbnailStats() (*models.ThumbnailStats, error)
}

// Generator is the engine contract the coordinator needs.
type Generator interface {
	DeriveFilename(token string, withTimestamp bool) string
	ExistingArtifact(filename string) (string, bool)
	GenerateRandom(videoPath, filename string) (*Outcome, error)
	RemoveArtifact(relPath string) error
}

// ProgressFunc is invoked once per record before it is processed.
// Purely observational.
type ProgressFunc func(p models.Progress)

// RegenerateStatus discriminates the result of a single-record
// regeneration so the HTTP layer can map it without a generic catch.
type RegenerateStatus string

const (
	StatusGenerated RegenerateStatus = "generated"
	StatusSkipped   RegenerateStatus = "skipped"
	StatusFailed    RegenerateStatus = "failed"
)

type RegenerateResult struct {
	Status  RegenerateStatus `json:"status"`
	Path    string           `json:"path,omitempty"`
	Message string           `json:"message,omitempty"`
}

// Coordinator backfills thumbnails for catalog entries lacking one,
// strictly sequentially with a fixed pause between items.
type Coordinator struct {
	catalog   Catalog
	engine    Generator
	moviesDir string
	pause     time.Duration
}

func NewCoordinator(catalog Catalog, engine Generator, moviesDir string) *Coordinator {
	return &Coordinator{
		catalog:   catalog,
		engine:    engine,
		moviesDir: moviesDir,
		pause:     interItemPause,
	}
}

// FindMissing returns the records the next RegenerateAll would target.
func (c *Coordinator) FindMissing() ([]*models.Movie, error) {
	return c.catalog.FindMissingThumbnail()
}

// RegenerateAll processes every record missing a thumbnail. Per-item
// failures never abort the pass; only a failed catalog read does. The
// context is consulted at item boundaries only — an in-flight
// extraction is never interrupted.
func (c *Coordinator) RegenerateAll(ctx context.Context, onProgress ProgressFunc) (*models.BatchStats, error) {
	missing, err := c.catalog.FindMissingThumbnail()
	if err != nil {
		return nil, fmt.Errorf("find missing thumbnails: %w", err)
	}

	stats := &models.BatchStats{Total: len(missing), Errors: []models.BatchError{}}
	log.Printf("Batch: regenerating thumbnails for %d movies", len(missing))

	for i, movie := range missing {
		if err := ctx.Err(); err != nil {
			return stats, err
		}
		if onProgress != nil {
			onProgress(models.Progress{
				Current:    i + 1,
				Total:      len(missing),
				Title:      movie.Title,
				Percentage: (i + 1) * 100 / len(missing),
			})
		}

		result := c.regenerate(movie)
		switch result.Status {
		case StatusGenerated:
			stats.Generated++
		case StatusSkipped:
			stats.Skipped++
		case StatusFailed:
			stats.Failed++
			stats.Errors = append(stats.Errors, models.BatchError{
				ID: movie.ID, Title: movie.Title, Error: result.Message,
			})
		}

		if i < len(missing)-1 {
			time.Sleep(c.pause)
		}
	}

	log.Printf("Batch: done — %d generated, %d skipped, %d failed of %d",
		stats.Generated, stats.Skipped, stats.Failed, stats.Total)
	return stats, nil
}

// RegenerateOne runs the per-record logic for a single target. A
// vanished record (e.g. cleared by a concurrent rescan) is a failure
// result, not an error.
func (c *Coordinator) RegenerateOne(id uuid.UUID) (*RegenerateResult, error) {
	movie, err := c.catalog.GetByID(id)
	if err != nil {
		return nil, fmt.Errorf("get movie: %w", err)
	}
	if movie == nil {
		return &RegenerateResult{Status: StatusFailed, Message: "movie not found"}, nil
	}
	result := c.regenerate(movie)
	return &result, nil
}

func (c *Coordinator) regenerate(movie *models.Movie) RegenerateResult {
	videoPath := filepath.Join(c.moviesDir, filepath.FromSlash(movie.FilePath))
	if _, err := os.Stat(videoPath); err != nil {
		log.Printf("Batch: video missing for %q, skipping", movie.Title)
		return RegenerateResult{Status: StatusSkipped, Message: "video file missing"}
	}

	// Filename comes from the persisted record id, not re-hashed from
	// the name, so a regeneration survives folder renames.
	filename := c.engine.DeriveFilename(movie.ID.String(), false)

	if existing, ok := c.engine.ExistingArtifact(filename); ok {
		if err := c.catalog.UpdateThumbnailPath(movie.ID, existing); err != nil {
			return RegenerateResult{Status: StatusFailed, Message: err.Error()}
		}
		return RegenerateResult{Status: StatusGenerated, Path: existing}
	}

	outcome, err := c.engine.GenerateRandom(videoPath, filename)
	if err != nil {
		log.Printf("Batch: generation failed for %q: %v", movie.Title, err)
		return RegenerateResult{Status: StatusFailed, Message: err.Error()}
	}
	if outcome.Skipped {
		return RegenerateResult{Status: StatusSkipped, Message: outcome.Reason}
	}

	if err := c.catalog.UpdateThumbnailPath(movie.ID, outcome.Path); err != nil {
		return RegenerateResult{Status: StatusFailed, Message: err.Error()}
	}
	return RegenerateResult{Status: StatusGenerated, Path: outcome.Path}
}

// DeleteOne removes a record's thumbnail. Only engine-produced files
// are deleted from disk; discovered images are left alone. The pointer
// is always cleared. Idempotent: an already-gone file still succeeds.
func (c *Coordinator) DeleteOne(id uuid.UUID) error {
	movie, err := c.catalog.GetByID(id)
	if err != nil {
		return fmt.Errorf("get movie: %w", err)
	}
	if movie == nil {
		return fmt.Errorf("%w: %s", ErrMovieNotFound, id)
	}

	if movie.ThumbnailPath != nil && strings.HasPrefix(*movie.ThumbnailPath, models.GeneratedThumbPrefix) {
		if err := c.engine.RemoveArtifact(*movie.ThumbnailPath); err != nil {
			log.Printf("Batch: failed to delete artifact %s: %v", *movie.ThumbnailPath, err)
		}
	}

	return c.catalog.ClearThumbnailPath(id)
}

// Stats returns the catalog-wide thumbnail coverage summary.
func (c *Coordinator) Stats() (*models.ThumbnailStats, error) {
	return c.catalog.ThumbnailStats()
}
