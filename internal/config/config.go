package config

import (
	"os"
	"strconv"
)

type Config struct {
	Port             int
	DatabaseURL      string
	RedisAddr        string
	MoviesDir        string
	ThumbnailsDir    string
	FFmpegPath       string
	FFprobePath      string
	ThumbnailerPath  string
	AutoThumbnails   bool
	ScanOnStart      bool
	WatchMoviesDir   bool
	ThumbnailTTLDays int
}

func Load() *Config {
	return &Config{
		Port:             envInt("PORT", 8080),
		DatabaseURL:      env("DATABASE_URL", "postgres://kinoteka:kinoteka@db:5432/kinoteka?sslmode=disable"),
		RedisAddr:        env("REDIS_ADDR", "localhost:6379"),
		MoviesDir:        env("MOVIES_DIR", "/movies"),
		ThumbnailsDir:    env("THUMBNAILS_DIR", "generated-thumbnails"),
		FFmpegPath:       env("FFMPEG_PATH", "ffmpeg"),
		FFprobePath:      env("FFPROBE_PATH", "ffprobe"),
		ThumbnailerPath:  env("THUMBNAILER_PATH", "ffmpegthumbnailer"),
		AutoThumbnails:   envBool("AUTO_GENERATE_THUMBNAILS", true),
		ScanOnStart:      envBool("SCAN_ON_START", false),
		WatchMoviesDir:   envBool("WATCH_MOVIES_DIR", true),
		ThumbnailTTLDays: envInt("THUMBNAIL_TTL_DAYS", 0),
	}
}

func env(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func envInt(key string, fallback int) int {
	if v := os.Getenv(key); v != "" {
		if i, err := strconv.Atoi(v); err == nil {
			return i
		}
	}
	return fallback
}

func envBool(key string, fallback bool) bool {
	if v := os.Getenv(key); v != "" {
		if b, err := strconv.ParseBool(v); err == nil {
			return b
		}
	}
	return fallback
}
