package db

import (
	"database/sql"
	"fmt"

	_ "github.com/lib/pq"
)

type DB struct {
	*sql.DB
}

func Connect(databaseURL string) (*DB, error) {
	db, err := sql.Open("postgres", databaseURL)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	if err := db.Ping(); err != nil {
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}
	db.SetMaxOpenConns(25)
	db.SetMaxIdleConns(5)
	return &DB{db}, nil
}

const schema = `
CREATE TABLE IF NOT EXISTS movies (
	id UUID PRIMARY KEY,
	title TEXT NOT NULL,
	year INTEGER,
	quality TEXT,
	format TEXT,
	codec TEXT,
	audio TEXT,
	source TEXT,
	collection TEXT NOT NULL,
	subcategory TEXT,
	thumbnail_path TEXT,
	file_path TEXT NOT NULL,
	subtitle_path TEXT,
	file_size BIGINT NOT NULL DEFAULT 0,
	added_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
	last_played_at TIMESTAMPTZ,
	play_count INTEGER NOT NULL DEFAULT 0
);

CREATE INDEX IF NOT EXISTS idx_movies_title ON movies (title);
CREATE INDEX IF NOT EXISTS idx_movies_collection ON movies (collection);
CREATE INDEX IF NOT EXISTS idx_movies_year ON movies (year);
`

// InitSchema creates the movies table and its indexes if missing.
func InitSchema(db *DB) error {
	if _, err := db.Exec(schema); err != nil {
		return fmt.Errorf("init schema: %w", err)
	}
	return nil
}
