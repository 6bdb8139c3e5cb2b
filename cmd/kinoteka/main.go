package main

import (
	"context"
	"log"
	"net/http"
	"os"
	"os/signal"
	"strconv"
	"syscall"
	"time"

	"github.com/zpavlovic/kinoteka/internal/api"
	"github.com/zpavlovic/kinoteka/internal/config"
	"github.com/zpavlovic/kinoteka/internal/db"
	"github.com/zpavlovic/kinoteka/internal/jobs"
	"github.com/zpavlovic/kinoteka/internal/media"
	"github.com/zpavlovic/kinoteka/internal/scheduler"
	"github.com/zpavlovic/kinoteka/internal/version"
)

func main() {
	ver := version.Load()
	log.Printf("Kinoteka %s starting...", ver.Version)

	cfg := config.Load()

	database, err := db.Connect(cfg.DatabaseURL)
	if err != nil {
		log.Fatalf("database connection failed: %v", err)
	}
	defer database.Close()

	if err := db.InitSchema(database); err != nil {
		log.Fatalf("schema init failed: %v", err)
	}

	jobQueue := jobs.NewQueue(cfg.RedisAddr)
	defer jobQueue.Stop()

	srv := api.NewServer(cfg, database, jobQueue)

	jobs.RegisterHandlers(jobQueue, srv.Scanner(), srv.Coordinator(), srv.WSHub())
	if err := jobQueue.Start(context.Background()); err != nil {
		log.Fatalf("job queue failed to start: %v", err)
	}

	if cfg.WatchMoviesDir {
		watcher, err := media.NewWatcher(cfg.MoviesDir, func(path string) {
			log.Printf("change detected at %s, scheduling rescan", path)
			if _, err := jobQueue.EnqueueUnique(jobs.TaskScanMovies,
				jobs.ScanPayload{Trigger: "watcher"}, "scan:movies"); err != nil {
				log.Printf("failed to enqueue rescan: %v", err)
			}
		})
		if err != nil {
			log.Printf("watcher disabled: %v", err)
		} else {
			watcher.Start()
			defer watcher.Stop()
		}
	}

	sched := scheduler.New(srv.Engine(), cfg.ThumbnailTTLDays)
	sched.Start()
	defer sched.Stop()

	if cfg.ScanOnStart {
		if _, err := jobQueue.EnqueueUnique(jobs.TaskScanMovies,
			jobs.ScanPayload{Trigger: "startup"}, "scan:movies"); err != nil {
			log.Printf("failed to enqueue startup scan: %v", err)
		}
	}

	httpServer := &http.Server{
		Addr:         ":" + strconv.Itoa(cfg.Port),
		Handler:      srv.Handler(),
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 0,
		IdleTimeout:  60 * time.Second,
	}

	go func() {
		log.Printf("listening on :%d", cfg.Port)
		if err := httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("server error: %v", err)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Println("shutting down...")
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	httpServer.Shutdown(ctx)
}
