package scanner

import (
	"fmt"
	"log"
	"os"
	"path/filepath"
	"strings"

	"github.com/zpavlovic/kinoteka/internal/models"
	"github.com/zpavlovic/kinoteka/internal/thumbnail"
)

var videoExtensions = map[string]bool{
	".mp4": true, ".mkv": true, ".avi": true, ".mov": true,
	".m4v": true, ".wmv": true, ".flv": true, ".webm": true,
	".ts": true, ".m2ts": true, ".mpg": true, ".mpeg": true,
}

var subtitleExtensions = map[string]bool{
	".srt": true, ".sub": true, ".vtt": true,
}

var imageExtensions = map[string]bool{
	".jpg": true, ".jpeg": true, ".png": true, ".gif": true, ".webp": true,
}

// conventionalThumbNames are checked in priority order when no image
// shares the video's base name.
var conventionalThumbNames = []string{"naslovna", "poster", "cover", "thumbnail", "thumb"}

// uncategorized is the collection sentinel for top-level folders with
// no usable name.
const uncategorized = "uncategorized"

// Catalog is the store contract the walker needs.
type Catalog interface {
	All() ([]*models.Movie, error)
	Create(m *models.Movie) error
	ClearAll() error
}

// ThumbGenerator is the engine contract for scan-time auto-generation.
type ThumbGenerator interface {
	Available() bool
	IdentityToken(key string) string
	DeriveFilename(token string, withTimestamp bool) string
	ExistingArtifact(filename string) (string, bool)
	GenerateRandom(videoPath, filename string) (*thumbnail.Outcome, error)
}

// Scanner walks the movies root, classifies the directory taxonomy and
// repopulates the catalog. A rescan is destructive: it clears all rows
// first, then inserts each record as it is produced.
type Scanner struct {
	root           string
	catalog        Catalog
	thumbs         ThumbGenerator
	autoThumbnails bool
}

func NewScanner(root string, catalog Catalog, thumbs ThumbGenerator, autoThumbnails bool) *Scanner {
	return &Scanner{
		root:           root,
		catalog:        catalog,
		thumbs:         thumbs,
		autoThumbnails: autoThumbnails,
	}
}

// Scan walks the root's immediate children as collections and
// repopulates the catalog. Per-item failures are accumulated; only
// structural failures (unreadable root, unreachable catalog) abort.
func (s *Scanner) Scan() (*models.ScanResult, error) {
	preserved := s.buildPreservationMap()

	if err := s.catalog.ClearAll(); err != nil {
		return nil, fmt.Errorf("clear catalog: %w", err)
	}

	entries, err := os.ReadDir(s.root)
	if err != nil {
		return nil, fmt.Errorf("read movies root: %w", err)
	}

	result := &models.ScanResult{}
	for _, entry := range entries {
		if !entry.IsDir() {
			continue
		}
		collection := collectionName(entry.Name())
		log.Printf("Scan: collection %q", collection)
		if err := s.walkDir(filepath.Join(s.root, entry.Name()), collection, nil, preserved, result); err != nil {
			return nil, err
		}
	}

	log.Printf("Scan: complete — %d movies, %d errors", result.Count, len(result.Errors))
	return result, nil
}

// buildPreservationMap records file path → thumbnail path for every
// record whose pointer lives in the generated area, before the
// destructive clear. This keeps thumbnails produced out-of-band (e.g.
// manual captures, whose filenames are not re-derivable from the
// deterministic hash) from being dropped by a rescan when generation
// is disabled or unavailable. Failure to read is non-fatal.
func (s *Scanner) buildPreservationMap() map[string]string {
	preserved := make(map[string]string)
	movies, err := s.catalog.All()
	if err != nil {
		log.Printf("Scan: could not read existing records for thumbnail preservation: %v", err)
		return preserved
	}
	for _, m := range movies {
		if m.ThumbnailPath != nil && strings.HasPrefix(*m.ThumbnailPath, models.GeneratedThumbPrefix) {
			preserved[m.FilePath] = *m.ThumbnailPath
		}
	}
	return preserved
}

// collectionName strips an optional [...] wrapper; unwrapped names are
// used verbatim.
func collectionName(name string) string {
	if inner, ok := stripBrackets(name); ok {
		name = inner
	}
	name = strings.TrimSpace(name)
	if name == "" {
		return uncategorized
	}
	return name
}

func stripBrackets(name string) (string, bool) {
	if len(name) >= 2 && strings.HasPrefix(name, "[") && strings.HasSuffix(name, "]") {
		return strings.TrimSpace(name[1 : len(name)-1]), true
	}
	return name, false
}

// walkDir classifies one directory. A directory with direct video
// files is a movie folder and is not descended further. Otherwise each
// child is entered with a subcategory path extended according to the
// taxonomy rules; the path slice is copied on append, never shared.
func (s *Scanner) walkDir(dirPath, collection string, subPath []string, preserved map[string]string, result *models.ScanResult) error {
	entries, err := os.ReadDir(dirPath)
	if err != nil {
		result.Errors = append(result.Errors, fmt.Sprintf("read %s: %v", dirPath, err))
		return nil
	}

	videos := filterFiles(entries, videoExtensions)
	if len(videos) > 0 {
		return s.emitMovieFolder(dirPath, collection, subPath, entries, videos, preserved, result)
	}

	for _, entry := range entries {
		if !entry.IsDir() {
			continue
		}
		childPath := filepath.Join(dirPath, entry.Name())
		childSub := subPath
		if inner, ok := stripBrackets(entry.Name()); ok {
			// Bracket-wrapped directories are explicit subcategory
			// boundaries.
			childSub = appendPath(subPath, inner)
		} else if s.isImplicitCategory(childPath) {
			childSub = appendPath(subPath, entry.Name())
		}
		if err := s.walkDir(childPath, collection, childSub, preserved, result); err != nil {
			return err
		}
	}
	return nil
}

// isImplicitCategory reports whether a directory holds multiple
// subdirectories with no direct video and no bracket-wrapped child —
// a plain grouping folder whose name becomes a taxonomy level.
// Directories with a single subdirectory are descended transparently.
func (s *Scanner) isImplicitCategory(dirPath string) bool {
	entries, err := os.ReadDir(dirPath)
	if err != nil {
		return false
	}
	subdirs := 0
	for _, entry := range entries {
		if entry.IsDir() {
			if _, wrapped := stripBrackets(entry.Name()); wrapped {
				return false
			}
			subdirs++
			continue
		}
		if videoExtensions[strings.ToLower(filepath.Ext(entry.Name()))] {
			return false
		}
	}
	return subdirs > 1
}

func (s *Scanner) emitMovieFolder(dirPath, collection string, subPath []string, entries []os.DirEntry, videos []string, preserved map[string]string, result *models.ScanResult) error {
	subtitles := filterFiles(entries, subtitleExtensions)
	images := filterFiles(entries, imageExtensions)

	// With several videos in one folder the folder name becomes their
	// shared subcategory; sibling single-video folders are unaffected.
	if len(videos) > 1 {
		subPath = appendPath(subPath, filepath.Base(dirPath))
	}
	var subcategory *string
	if len(subPath) > 0 {
		last := subPath[len(subPath)-1]
		subcategory = &last
	}

	for _, video := range videos {
		base := strings.TrimSuffix(video, filepath.Ext(video))
		parsed := ParseMovieName(base)

		videoAbs := filepath.Join(dirPath, video)
		relVideo, err := s.relPath(videoAbs)
		if err != nil {
			result.Errors = append(result.Errors, fmt.Sprintf("resolve %s: %v", videoAbs, err))
			continue
		}

		movie := &models.Movie{
			Title:       parsed.Title,
			Year:        parsed.Year,
			Quality:     parsed.Quality,
			Format:      parsed.Format,
			Source:      parsed.Source,
			Audio:       parsed.Audio,
			Collection:  collection,
			Subcategory: subcategory,
			FilePath:    relVideo,
		}

		if info, err := os.Stat(videoAbs); err == nil {
			movie.FileSize = info.Size()
		}

		if sub := matchSubtitle(base, subtitles); sub != "" {
			rel, err := s.relPath(filepath.Join(dirPath, sub))
			if err == nil {
				movie.SubtitlePath = &rel
			}
		}

		thumb := matchThumbnail(base, images)
		if thumb != "" {
			rel, err := s.relPath(filepath.Join(dirPath, thumb))
			if err == nil {
				movie.ThumbnailPath = &rel
			}
		} else if s.autoThumbnails && s.thumbs != nil && s.thumbs.Available() {
			if path := s.generateThumbnail(collection, base, videoAbs, result); path != "" {
				movie.ThumbnailPath = &path
			}
		} else if kept, ok := preserved[relVideo]; ok {
			movie.ThumbnailPath = &kept
		}

		if err := s.catalog.Create(movie); err != nil {
			return fmt.Errorf("insert movie %q: %w", movie.Title, err)
		}
		result.Count++
	}
	return nil
}

// generateThumbnail derives the deterministic artifact name for this
// video and either reuses an existing artifact or generates a new one.
// Returns empty when generation is skipped or fails; the record is
// still produced, just without a thumbnail.
func (s *Scanner) generateThumbnail(collection, base, videoAbs string, result *models.ScanResult) string {
	token := s.thumbs.IdentityToken(collection + "-" + base)
	filename := s.thumbs.DeriveFilename(token, false)

	if existing, ok := s.thumbs.ExistingArtifact(filename); ok {
		return existing
	}

	outcome, err := s.thumbs.GenerateRandom(videoAbs, filename)
	if err != nil {
		result.Errors = append(result.Errors, fmt.Sprintf("thumbnail for %s: %v", base, err))
		return ""
	}
	if outcome.Skipped {
		return ""
	}
	return outcome.Path
}

func (s *Scanner) relPath(abs string) (string, error) {
	rel, err := filepath.Rel(s.root, abs)
	if err != nil {
		return "", err
	}
	return filepath.ToSlash(rel), nil
}

// appendPath extends a subcategory path into a fresh slice so sibling
// recursive calls never observe each other's mutations.
func appendPath(path []string, name string) []string {
	next := make([]string, len(path), len(path)+1)
	copy(next, path)
	return append(next, name)
}

func filterFiles(entries []os.DirEntry, extensions map[string]bool) []string {
	var names []string
	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}
		if extensions[strings.ToLower(filepath.Ext(entry.Name()))] {
			names = append(names, entry.Name())
		}
	}
	return names
}

// matchSubtitle prefers a subtitle sharing the video's base name, then
// falls back to the first subtitle in directory-listing order.
func matchSubtitle(base string, subtitles []string) string {
	for _, sub := range subtitles {
		if strings.EqualFold(strings.TrimSuffix(sub, filepath.Ext(sub)), base) {
			return sub
		}
	}
	if len(subtitles) > 0 {
		return subtitles[0]
	}
	return ""
}

// matchThumbnail prefers an image sharing the video's base name, then
// the conventional names in priority order, then the first image
// present.
func matchThumbnail(base string, images []string) string {
	for _, img := range images {
		if strings.EqualFold(strings.TrimSuffix(img, filepath.Ext(img)), base) {
			return img
		}
	}
	for _, conventional := range conventionalThumbNames {
		for _, img := range images {
			if strings.EqualFold(strings.TrimSuffix(img, filepath.Ext(img)), conventional) {
				return img
			}
		}
	}
	if len(images) > 0 {
		return images[0]
	}
	return ""
}
