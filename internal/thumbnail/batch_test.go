package thumbnail

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/google/uuid"

	"github.com/zpavlovic/kinoteka/internal/models"
)

type stubCatalog struct {
	movies  map[uuid.UUID]*models.Movie
	missing []*models.Movie
	updated map[uuid.UUID]string
	cleared map[uuid.UUID]bool
}

func newStubCatalog(missing ...*models.Movie) *stubCatalog {
	c := &stubCatalog{
		movies:  map[uuid.UUID]*models.Movie{},
		missing: missing,
		updated: map[uuid.UUID]string{},
		cleared: map[uuid.UUID]bool{},
	}
	for _, m := range missing {
		c.movies[m.ID] = m
	}
	return c
}

func (c *stubCatalog) GetByID(id uuid.UUID) (*models.Movie, error) { return c.movies[id], nil }
func (c *stubCatalog) FindMissingThumbnail() ([]*models.Movie, error) {
	return c.missing, nil
}
func (c *stubCatalog) UpdateThumbnailPath(id uuid.UUID, path string) error {
	c.updated[id] = path
	return nil
}
func (c *stubCatalog) ClearThumbnailPath(id uuid.UUID) error {
	c.cleared[id] = true
	return nil
}
func (c *stubCatalog) ThumbnailStats() (*models.ThumbnailStats, error) {
	return &models.ThumbnailStats{}, nil
}

type stubGenerator struct {
	existing map[string]string
	failIDs  map[string]bool
	skipIDs  map[string]bool
	removed  []string
}

func (g *stubGenerator) DeriveFilename(token string, withTimestamp bool) string {
	return "movie-" + token
}
func (g *stubGenerator) ExistingArtifact(filename string) (string, bool) {
	path, ok := g.existing[filename]
	return path, ok
}
func (g *stubGenerator) GenerateRandom(videoPath, filename string) (*Outcome, error) {
	if g.failIDs[filename] {
		return nil, errors.New("unexpected extraction failure")
	}
	if g.skipIDs[filename] {
		return &Outcome{Skipped: true, Reason: "unsupported format"}, nil
	}
	return &Outcome{Path: models.GeneratedThumbPrefix + filename + ".jpg"}, nil
}
func (g *stubGenerator) RemoveArtifact(relPath string) error {
	g.removed = append(g.removed, relPath)
	return nil
}

func testMovie(t *testing.T, moviesDir, title string) *models.Movie {
	t.Helper()
	rel := title + ".mkv"
	if err := os.WriteFile(filepath.Join(moviesDir, rel), []byte("x"), 0644); err != nil {
		t.Fatal(err)
	}
	return &models.Movie{ID: uuid.New(), Title: title, FilePath: rel}
}

func TestRegenerateAllAggregatesOutcomes(t *testing.T) {
	moviesDir := t.TempDir()

	var movies []*models.Movie
	for _, title := range []string{"a", "b", "c", "d", "e"} {
		movies = append(movies, testMovie(t, moviesDir, title))
	}
	catalog := newStubCatalog(movies...)
	gen := &stubGenerator{
		failIDs: map[string]bool{"movie-" + movies[1].ID.String(): true},
		skipIDs: map[string]bool{"movie-" + movies[3].ID.String(): true},
	}

	c := NewCoordinator(catalog, gen, moviesDir)
	c.pause = 0

	var progress []models.Progress
	stats, err := c.RegenerateAll(context.Background(), func(p models.Progress) {
		progress = append(progress, p)
	})
	if err != nil {
		t.Fatalf("RegenerateAll: %v", err)
	}

	if stats.Total != 5 || stats.Generated != 3 || stats.Skipped != 1 || stats.Failed != 1 {
		t.Errorf("stats = %+v, want total 5 generated 3 skipped 1 failed 1", stats)
	}
	if len(stats.Errors) != 1 {
		t.Fatalf("errors = %d, want 1", len(stats.Errors))
	}
	if stats.Errors[0].ID != movies[1].ID || stats.Errors[0].Title != "b" {
		t.Errorf("error entry = %+v, want record b", stats.Errors[0])
	}

	if len(progress) != 5 {
		t.Fatalf("progress calls = %d, want 5", len(progress))
	}
	if progress[0].Current != 1 || progress[0].Total != 5 || progress[0].Percentage != 20 {
		t.Errorf("first progress = %+v", progress[0])
	}
	if progress[4].Percentage != 100 {
		t.Errorf("last percentage = %d, want 100", progress[4].Percentage)
	}

	// Successful records got their pointer persisted.
	if path := catalog.updated[movies[0].ID]; path == "" {
		t.Error("generated record did not persist a thumbnail path")
	}
	if _, ok := catalog.updated[movies[3].ID]; ok {
		t.Error("skipped record persisted a thumbnail path")
	}
}

func TestRegenerateAllSkipsMissingVideo(t *testing.T) {
	moviesDir := t.TempDir()
	gone := &models.Movie{ID: uuid.New(), Title: "gone", FilePath: "gone.mkv"}
	catalog := newStubCatalog(gone)
	gen := &stubGenerator{}

	c := NewCoordinator(catalog, gen, moviesDir)
	c.pause = 0

	stats, err := c.RegenerateAll(context.Background(), nil)
	if err != nil {
		t.Fatalf("RegenerateAll: %v", err)
	}
	if stats.Skipped != 1 || stats.Generated != 0 || stats.Failed != 0 {
		t.Errorf("stats = %+v, want one skip", stats)
	}
}

func TestRegenerateAllReusesExistingArtifact(t *testing.T) {
	moviesDir := t.TempDir()
	movie := testMovie(t, moviesDir, "reused")
	filename := "movie-" + movie.ID.String()
	existing := models.GeneratedThumbPrefix + filename + ".jpg"

	catalog := newStubCatalog(movie)
	gen := &stubGenerator{
		existing: map[string]string{filename: existing},
		// Generation would fail, proving reuse short-circuits it.
		failIDs: map[string]bool{filename: true},
	}

	c := NewCoordinator(catalog, gen, moviesDir)
	c.pause = 0

	stats, err := c.RegenerateAll(context.Background(), nil)
	if err != nil {
		t.Fatalf("RegenerateAll: %v", err)
	}
	if stats.Generated != 1 {
		t.Errorf("generated = %d, want 1 (reuse counts as generated)", stats.Generated)
	}
	if catalog.updated[movie.ID] != existing {
		t.Errorf("persisted = %q, want %q", catalog.updated[movie.ID], existing)
	}
}

func TestRegenerateOneVanishedRecord(t *testing.T) {
	catalog := newStubCatalog()
	c := NewCoordinator(catalog, &stubGenerator{}, t.TempDir())

	result, err := c.RegenerateOne(uuid.New())
	if err != nil {
		t.Fatalf("RegenerateOne: %v", err)
	}
	if result.Status != StatusFailed {
		t.Errorf("status = %q, want failed result for vanished record", result.Status)
	}
}

func TestDeleteOne(t *testing.T) {
	generated := models.GeneratedThumbPrefix + "movie-abc.jpg"
	discovered := "Drama/Movie (2020)/poster.jpg"

	withGenerated := &models.Movie{ID: uuid.New(), Title: "g", FilePath: "g.mkv", ThumbnailPath: &generated}
	withDiscovered := &models.Movie{ID: uuid.New(), Title: "d", FilePath: "d.mkv", ThumbnailPath: &discovered}
	withNone := &models.Movie{ID: uuid.New(), Title: "n", FilePath: "n.mkv"}

	catalog := newStubCatalog(withGenerated, withDiscovered, withNone)
	gen := &stubGenerator{}
	c := NewCoordinator(catalog, gen, t.TempDir())

	for _, m := range []*models.Movie{withGenerated, withDiscovered, withNone} {
		if err := c.DeleteOne(m.ID); err != nil {
			t.Fatalf("DeleteOne(%s): %v", m.Title, err)
		}
		if !catalog.cleared[m.ID] {
			t.Errorf("pointer not cleared for %s", m.Title)
		}
	}

	// Only the engine-produced artifact is deleted from disk.
	if len(gen.removed) != 1 || gen.removed[0] != generated {
		t.Errorf("removed = %v, want only %q", gen.removed, generated)
	}

	if err := c.DeleteOne(uuid.New()); !errors.Is(err, ErrMovieNotFound) {
		t.Errorf("err = %v, want ErrMovieNotFound", err)
	}
}
