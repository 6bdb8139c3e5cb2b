package repository

import (
	"database/sql"
	"fmt"
	"strings"

	"github.com/google/uuid"

	"github.com/zpavlovic/kinoteka/internal/models"
)

type MovieRepository struct {
	db *sql.DB
}

func NewMovieRepository(db *sql.DB) *MovieRepository {
	return &MovieRepository{db: db}
}

// movieColumns is the standard SELECT list for movies
const movieColumns = `id, title, year, quality, format, codec, audio, source,
	collection, subcategory, thumbnail_path, file_path, subtitle_path,
	file_size, added_at, last_played_at, play_count`

func scanMovie(row interface{ Scan(dest ...interface{}) error }) (*models.Movie, error) {
	m := &models.Movie{}
	err := row.Scan(
		&m.ID, &m.Title, &m.Year, &m.Quality, &m.Format, &m.Codec, &m.Audio,
		&m.Source, &m.Collection, &m.Subcategory, &m.ThumbnailPath, &m.FilePath,
		&m.SubtitlePath, &m.FileSize, &m.AddedAt, &m.LastPlayedAt, &m.PlayCount,
	)
	return m, err
}

func (r *MovieRepository) collectMovies(rows *sql.Rows) ([]*models.Movie, error) {
	defer rows.Close()
	var movies []*models.Movie
	for rows.Next() {
		m, err := scanMovie(rows)
		if err != nil {
			return nil, err
		}
		movies = append(movies, m)
	}
	return movies, rows.Err()
}

func (r *MovieRepository) Create(m *models.Movie) error {
	if m.ID == uuid.Nil {
		m.ID = uuid.New()
	}
	query := `
		INSERT INTO movies (
			id, title, year, quality, format, codec, audio, source,
			collection, subcategory, thumbnail_path, file_path, subtitle_path, file_size
		) VALUES (
			$1, $2, $3, $4, $5, $6, $7, $8,
			$9, $10, $11, $12, $13, $14
		)
		RETURNING added_at, play_count`

	return r.db.QueryRow(query,
		m.ID, m.Title, m.Year, m.Quality, m.Format, m.Codec, m.Audio, m.Source,
		m.Collection, m.Subcategory, m.ThumbnailPath, m.FilePath, m.SubtitlePath, m.FileSize,
	).Scan(&m.AddedAt, &m.PlayCount)
}

func (r *MovieRepository) All() ([]*models.Movie, error) {
	rows, err := r.db.Query(`SELECT ` + movieColumns + ` FROM movies ORDER BY title ASC`)
	if err != nil {
		return nil, fmt.Errorf("list movies: %w", err)
	}
	return r.collectMovies(rows)
}

func (r *MovieRepository) GetByID(id uuid.UUID) (*models.Movie, error) {
	m, err := scanMovie(r.db.QueryRow(`SELECT `+movieColumns+` FROM movies WHERE id = $1`, id))
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get movie: %w", err)
	}
	return m, nil
}

func (r *MovieRepository) Search(term string) ([]*models.Movie, error) {
	pattern := "%" + strings.ToLower(term) + "%"
	rows, err := r.db.Query(`
		SELECT `+movieColumns+` FROM movies
		WHERE LOWER(title) LIKE $1 OR LOWER(collection) LIKE $1 OR LOWER(COALESCE(subcategory, '')) LIKE $1
		ORDER BY title ASC`, pattern)
	if err != nil {
		return nil, fmt.Errorf("search movies: %w", err)
	}
	return r.collectMovies(rows)
}

func (r *MovieRepository) Collections() ([]string, error) {
	rows, err := r.db.Query(`SELECT DISTINCT collection FROM movies ORDER BY collection ASC`)
	if err != nil {
		return nil, fmt.Errorf("list collections: %w", err)
	}
	defer rows.Close()
	var names []string
	for rows.Next() {
		var name string
		if err := rows.Scan(&name); err != nil {
			return nil, err
		}
		names = append(names, name)
	}
	return names, rows.Err()
}

func (r *MovieRepository) Subcategories(collection string) ([]string, error) {
	rows, err := r.db.Query(`
		SELECT DISTINCT subcategory FROM movies
		WHERE collection = $1 AND subcategory IS NOT NULL
		ORDER BY subcategory ASC`, collection)
	if err != nil {
		return nil, fmt.Errorf("list subcategories: %w", err)
	}
	defer rows.Close()
	var names []string
	for rows.Next() {
		var name string
		if err := rows.Scan(&name); err != nil {
			return nil, err
		}
		names = append(names, name)
	}
	return names, rows.Err()
}

func (r *MovieRepository) ByCollection(collection string) ([]*models.Movie, error) {
	rows, err := r.db.Query(`
		SELECT `+movieColumns+` FROM movies
		WHERE collection = $1
		ORDER BY title ASC`, collection)
	if err != nil {
		return nil, fmt.Errorf("list by collection: %w", err)
	}
	return r.collectMovies(rows)
}

func (r *MovieRepository) BySubcategory(collection, subcategory string) ([]*models.Movie, error) {
	rows, err := r.db.Query(`
		SELECT `+movieColumns+` FROM movies
		WHERE collection = $1 AND subcategory = $2
		ORDER BY title ASC`, collection, subcategory)
	if err != nil {
		return nil, fmt.Errorf("list by subcategory: %w", err)
	}
	return r.collectMovies(rows)
}

// FindMissingThumbnail returns records with a null or empty thumbnail
// pointer, in the same stable title order as All.
func (r *MovieRepository) FindMissingThumbnail() ([]*models.Movie, error) {
	rows, err := r.db.Query(`
		SELECT `+movieColumns+` FROM movies
		WHERE thumbnail_path IS NULL OR thumbnail_path = ''
		ORDER BY title ASC`)
	if err != nil {
		return nil, fmt.Errorf("find missing thumbnails: %w", err)
	}
	return r.collectMovies(rows)
}

func (r *MovieRepository) UpdateThumbnailPath(id uuid.UUID, path string) error {
	_, err := r.db.Exec(`UPDATE movies SET thumbnail_path = $1 WHERE id = $2`, path, id)
	return err
}

func (r *MovieRepository) ClearThumbnailPath(id uuid.UUID) error {
	_, err := r.db.Exec(`UPDATE movies SET thumbnail_path = NULL WHERE id = $1`, id)
	return err
}

func (r *MovieRepository) IncrementPlayCount(id uuid.UUID) error {
	_, err := r.db.Exec(`
		UPDATE movies SET play_count = play_count + 1, last_played_at = NOW()
		WHERE id = $1`, id)
	return err
}

func (r *MovieRepository) ClearAll() error {
	_, err := r.db.Exec(`DELETE FROM movies`)
	return err
}

func (r *MovieRepository) ThumbnailStats() (*models.ThumbnailStats, error) {
	stats := &models.ThumbnailStats{}
	err := r.db.QueryRow(`
		SELECT
			COUNT(*),
			COUNT(*) FILTER (WHERE thumbnail_path IS NOT NULL AND thumbnail_path <> ''),
			COUNT(*) FILTER (WHERE thumbnail_path IS NULL OR thumbnail_path = ''),
			COUNT(*) FILTER (WHERE thumbnail_path LIKE $1)
		FROM movies`, models.GeneratedThumbPrefix+"%").
		Scan(&stats.TotalMovies, &stats.WithThumbnail, &stats.WithoutThumbnail, &stats.GeneratedThumbnails)
	if err != nil {
		return nil, fmt.Errorf("thumbnail stats: %w", err)
	}
	stats.ExistingThumbnails = stats.WithThumbnail - stats.GeneratedThumbnails
	return stats, nil
}
