package scanner

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/zpavlovic/kinoteka/internal/models"
	"github.com/zpavlovic/kinoteka/internal/thumbnail"
)

type fakeCatalog struct {
	existing []*models.Movie
	created  []*models.Movie
	cleared  bool
}

func (f *fakeCatalog) All() ([]*models.Movie, error) { return f.existing, nil }
func (f *fakeCatalog) Create(m *models.Movie) error {
	f.created = append(f.created, m)
	return nil
}
func (f *fakeCatalog) ClearAll() error {
	f.cleared = true
	return nil
}

type fakeThumbs struct {
	available bool
	existing  map[string]string
	generated []string
	skip      bool
}

func (f *fakeThumbs) Available() bool { return f.available }
func (f *fakeThumbs) IdentityToken(key string) string {
	return (&thumbnail.Engine{}).IdentityToken(key)
}
func (f *fakeThumbs) DeriveFilename(token string, withTimestamp bool) string {
	return "movie-" + token
}
func (f *fakeThumbs) ExistingArtifact(filename string) (string, bool) {
	path, ok := f.existing[filename]
	return path, ok
}
func (f *fakeThumbs) GenerateRandom(videoPath, filename string) (*thumbnail.Outcome, error) {
	f.generated = append(f.generated, filename)
	if f.skip {
		return &thumbnail.Outcome{Skipped: true, Reason: "codec not supported"}, nil
	}
	return &thumbnail.Outcome{Path: models.GeneratedThumbPrefix + filename + ".jpg"}, nil
}

func mkdirAll(t *testing.T, path string) {
	t.Helper()
	if err := os.MkdirAll(path, 0755); err != nil {
		t.Fatal(err)
	}
}

func touch(t *testing.T, path string) {
	t.Helper()
	mkdirAll(t, filepath.Dir(path))
	if err := os.WriteFile(path, []byte("x"), 0644); err != nil {
		t.Fatal(err)
	}
}

func TestScanNestedSubcategories(t *testing.T) {
	root := t.TempDir()
	touch(t, filepath.Join(root, "[Drama]", "[Classics]", "Movie One (1950)", "Movie One (1950).mkv"))
	touch(t, filepath.Join(root, "[Drama]", "[Noir]", "[Modern]", "Movie Two (1960)", "Movie Two (1960).mp4"))

	catalog := &fakeCatalog{}
	s := NewScanner(root, catalog, nil, false)
	result, err := s.Scan()
	if err != nil {
		t.Fatalf("Scan: %v", err)
	}
	if !catalog.cleared {
		t.Error("catalog was not cleared before rescan")
	}
	if result.Count != 2 {
		t.Fatalf("count = %d, want 2", result.Count)
	}

	byTitle := map[string]*models.Movie{}
	for _, m := range catalog.created {
		byTitle[m.Title] = m
	}

	one := byTitle["Movie One"]
	if one == nil {
		t.Fatal("Movie One not created")
	}
	if one.Collection != "Drama" {
		t.Errorf("collection = %q, want Drama", one.Collection)
	}
	if one.Subcategory == nil || *one.Subcategory != "Classics" {
		t.Errorf("subcategory = %v, want Classics", one.Subcategory)
	}

	// Only the innermost bracket level is persisted.
	two := byTitle["Movie Two"]
	if two == nil {
		t.Fatal("Movie Two not created")
	}
	if two.Subcategory == nil || *two.Subcategory != "Modern" {
		t.Errorf("subcategory = %v, want Modern", two.Subcategory)
	}
}

func TestScanMultiVideoFolder(t *testing.T) {
	root := t.TempDir()
	touch(t, filepath.Join(root, "Action", "Trilogy Box", "Part One (2001).mkv"))
	touch(t, filepath.Join(root, "Action", "Trilogy Box", "Part Two (2003).mkv"))
	touch(t, filepath.Join(root, "Action", "Solo (2010)", "Solo (2010).mkv"))

	catalog := &fakeCatalog{}
	s := NewScanner(root, catalog, nil, false)
	result, err := s.Scan()
	if err != nil {
		t.Fatalf("Scan: %v", err)
	}
	if result.Count != 3 {
		t.Fatalf("count = %d, want 3", result.Count)
	}

	for _, m := range catalog.created {
		switch m.Title {
		case "Part One", "Part Two":
			// Folders with several videos lend their name as a shared
			// subcategory.
			if m.Subcategory == nil || *m.Subcategory != "Trilogy Box" {
				t.Errorf("%s subcategory = %v, want Trilogy Box", m.Title, m.Subcategory)
			}
		case "Solo":
			if m.Subcategory != nil {
				t.Errorf("Solo subcategory = %q, want none", *m.Subcategory)
			}
		}
		if m.Collection != "Action" {
			t.Errorf("%s collection = %q, want Action", m.Title, m.Collection)
		}
	}
}

func TestScanImplicitCategoryAndTransparentDescent(t *testing.T) {
	root := t.TempDir()
	// "Decades" has two plain subdirectories and no videos, so it is an
	// implicit category. "Wrapper" holds exactly one subdirectory and is
	// traversed transparently.
	touch(t, filepath.Join(root, "Archive", "Decades", "80s", "Movie A (1985).mkv"))
	touch(t, filepath.Join(root, "Archive", "Decades", "90s", "Movie B (1995).mkv"))
	touch(t, filepath.Join(root, "Archive", "Wrapper", "Inner", "Movie C (2005).mkv"))

	catalog := &fakeCatalog{}
	s := NewScanner(root, catalog, nil, false)
	if _, err := s.Scan(); err != nil {
		t.Fatalf("Scan: %v", err)
	}

	subs := map[string]string{}
	for _, m := range catalog.created {
		if m.Subcategory != nil {
			subs[m.Title] = *m.Subcategory
		} else {
			subs[m.Title] = ""
		}
	}

	if subs["Movie A"] != "Decades" {
		t.Errorf("Movie A subcategory = %q, want Decades", subs["Movie A"])
	}
	if subs["Movie B"] != "Decades" {
		t.Errorf("Movie B subcategory = %q, want Decades", subs["Movie B"])
	}
	if subs["Movie C"] != "" {
		t.Errorf("Movie C subcategory = %q, want none", subs["Movie C"])
	}
}

func TestScanSubtitleAndThumbnailMatching(t *testing.T) {
	root := t.TempDir()
	dir := filepath.Join(root, "Drama", "Movie (2020)")
	touch(t, filepath.Join(dir, "Movie (2020).mkv"))
	touch(t, filepath.Join(dir, "Movie (2020).srt"))
	touch(t, filepath.Join(dir, "other.srt"))
	touch(t, filepath.Join(dir, "poster.jpg"))
	touch(t, filepath.Join(dir, "random.png"))

	catalog := &fakeCatalog{}
	s := NewScanner(root, catalog, nil, false)
	if _, err := s.Scan(); err != nil {
		t.Fatalf("Scan: %v", err)
	}
	if len(catalog.created) != 1 {
		t.Fatalf("created = %d, want 1", len(catalog.created))
	}
	m := catalog.created[0]
	if m.SubtitlePath == nil || *m.SubtitlePath != "Drama/Movie (2020)/Movie (2020).srt" {
		t.Errorf("subtitle = %v, want same-base match", m.SubtitlePath)
	}
	// No same-base image, so the conventional name wins over listing
	// order.
	if m.ThumbnailPath == nil || *m.ThumbnailPath != "Drama/Movie (2020)/poster.jpg" {
		t.Errorf("thumbnail = %v, want poster.jpg", m.ThumbnailPath)
	}
}

func TestScanAutoThumbnailReuseAndSkip(t *testing.T) {
	root := t.TempDir()
	touch(t, filepath.Join(root, "Drama", "Fresh (2020)", "Fresh (2020).mkv"))

	thumbs := &fakeThumbs{available: true, existing: map[string]string{}}
	catalog := &fakeCatalog{}
	s := NewScanner(root, catalog, thumbs, true)
	if _, err := s.Scan(); err != nil {
		t.Fatalf("Scan: %v", err)
	}
	if len(thumbs.generated) != 1 {
		t.Fatalf("generated = %d, want 1", len(thumbs.generated))
	}
	first := catalog.created[0]
	if first.ThumbnailPath == nil {
		t.Fatal("thumbnail path not set after generation")
	}

	// A second scan reuses the existing artifact instead of
	// regenerating, so the pointer is stable across rescans.
	thumbs2 := &fakeThumbs{available: true, existing: map[string]string{
		thumbs.generated[0]: *first.ThumbnailPath,
	}}
	catalog2 := &fakeCatalog{}
	s2 := NewScanner(root, catalog2, thumbs2, true)
	if _, err := s2.Scan(); err != nil {
		t.Fatalf("Scan: %v", err)
	}
	if len(thumbs2.generated) != 0 {
		t.Errorf("regenerated %d artifacts, want reuse", len(thumbs2.generated))
	}
	if got := catalog2.created[0].ThumbnailPath; got == nil || *got != *first.ThumbnailPath {
		t.Errorf("thumbnail path changed across rescans: %v", got)
	}

	// A skipped generation leaves the record without a thumbnail.
	thumbs3 := &fakeThumbs{available: true, existing: map[string]string{}, skip: true}
	catalog3 := &fakeCatalog{}
	s3 := NewScanner(root, catalog3, thumbs3, true)
	result, err := s3.Scan()
	if err != nil {
		t.Fatalf("Scan: %v", err)
	}
	if catalog3.created[0].ThumbnailPath != nil {
		t.Errorf("thumbnail path = %q, want none after skip", *catalog3.created[0].ThumbnailPath)
	}
	if len(result.Errors) != 0 {
		t.Errorf("skip recorded as error: %v", result.Errors)
	}
}

func TestScanPreservesGeneratedThumbnailsWhenDisabled(t *testing.T) {
	root := t.TempDir()
	touch(t, filepath.Join(root, "Drama", "Kept (2020)", "Kept (2020).mkv"))

	kept := models.GeneratedThumbPrefix + "movie-abc123.jpg"
	plain := "Drama/somewhere/cover.jpg"
	catalog := &fakeCatalog{existing: []*models.Movie{
		{FilePath: "Drama/Kept (2020)/Kept (2020).mkv", ThumbnailPath: &kept},
		{FilePath: "other.mkv", ThumbnailPath: &plain},
	}}

	s := NewScanner(root, catalog, nil, false)
	if _, err := s.Scan(); err != nil {
		t.Fatalf("Scan: %v", err)
	}
	m := catalog.created[0]
	if m.ThumbnailPath == nil || *m.ThumbnailPath != kept {
		t.Errorf("thumbnail = %v, want preserved %q", m.ThumbnailPath, kept)
	}
}

func TestCollectionName(t *testing.T) {
	tests := []struct {
		input string
		want  string
	}{
		{"[Drama]", "Drama"},
		{"Action", "Action"},
		{"[]", "uncategorized"},
		{"[ ]", "uncategorized"},
	}
	for _, tt := range tests {
		if got := collectionName(tt.input); got != tt.want {
			t.Errorf("collectionName(%q) = %q, want %q", tt.input, got, tt.want)
		}
	}
}
