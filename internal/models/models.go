package models

import (
	"time"

	"github.com/google/uuid"
)

// GeneratedThumbPrefix marks thumbnail pointers produced by the
// thumbnail engine, as opposed to images discovered next to the video
// file. Downstream consumers rely on this literal prefix instead of a
// separate flag column.
const GeneratedThumbPrefix = "generated-thumbnails/"

// ──────────────────── Catalog ────────────────────

// Movie is one playable video file discovered under the movies root.
// Collection and subcategory are derived from the directory taxonomy,
// never free-typed.
type Movie struct {
	ID            uuid.UUID  `json:"id"`
	Title         string     `json:"title"`
	Year          *int       `json:"year,omitempty"`
	Quality       *string    `json:"quality,omitempty"`
	Format        *string    `json:"format,omitempty"`
	Codec         *string    `json:"codec,omitempty"`
	Audio         *string    `json:"audio,omitempty"`
	Source        *string    `json:"source,omitempty"`
	Collection    string     `json:"collection"`
	Subcategory   *string    `json:"subcategory,omitempty"`
	ThumbnailPath *string    `json:"thumbnail_path,omitempty"`
	FilePath      string     `json:"file_path"`
	SubtitlePath  *string    `json:"subtitle_path,omitempty"`
	FileSize      int64      `json:"file_size"`
	AddedAt       time.Time  `json:"added_at"`
	LastPlayedAt  *time.Time `json:"last_played_at,omitempty"`
	PlayCount     int        `json:"play_count"`
}

// ParsedName holds the tokens extracted from a raw folder or file name.
type ParsedName struct {
	Title   string  `json:"title"`
	Year    *int    `json:"year,omitempty"`
	Quality *string `json:"quality,omitempty"`
	Format  *string `json:"format,omitempty"`
	Source  *string `json:"source,omitempty"`
	Audio   *string `json:"audio,omitempty"`
}

// ScanResult summarizes one full rescan of the movies root.
type ScanResult struct {
	Count  int      `json:"count"`
	Errors []string `json:"errors,omitempty"`
}

// ──────────────────── Probing ────────────────────

// VideoInfo is a read-only projection of a media probe.
type VideoInfo struct {
	DurationSeconds int     `json:"duration_seconds"`
	Width           int     `json:"width"`
	Height          int     `json:"height"`
	Codec           string  `json:"codec"`
	FrameRate       float64 `json:"frame_rate"`
	Bitrate         int64   `json:"bitrate"`
	SizeBytes       int64   `json:"size_bytes"`
}

// ──────────────────── Thumbnails ────────────────────

// BatchError records one failed item during a batch regeneration pass.
type BatchError struct {
	ID    uuid.UUID `json:"id"`
	Title string    `json:"title"`
	Error string    `json:"error"`
}

// BatchStats is the aggregate tally of one regeneration pass.
type BatchStats struct {
	Total     int          `json:"total"`
	Generated int          `json:"generated"`
	Skipped   int          `json:"skipped"`
	Failed    int          `json:"failed"`
	Errors    []BatchError `json:"errors"`
}

// ThumbnailStats is the catalog-wide thumbnail coverage summary.
// ExistingThumbnails counts pointers that were discovered on disk
// rather than engine-produced.
type ThumbnailStats struct {
	TotalMovies         int `json:"total_movies"`
	WithThumbnail       int `json:"with_thumbnail"`
	WithoutThumbnail    int `json:"without_thumbnail"`
	GeneratedThumbnails int `json:"generated_thumbnails"`
	ExistingThumbnails  int `json:"existing_thumbnails"`
}

// Progress is delivered to batch progress callbacks before each item.
type Progress struct {
	Current    int    `json:"current"`
	Total      int    `json:"total"`
	Title      string `json:"title"`
	Percentage int    `json:"percentage"`
}
