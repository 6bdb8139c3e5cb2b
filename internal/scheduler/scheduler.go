package scheduler

import (
	"log"

	"github.com/robfig/cron/v3"
)

// ArtifactCleaner removes generated artifacts older than the given
// number of days and reports how many were deleted.
type ArtifactCleaner interface {
	CleanupOlderThan(days int) int
}

// Scheduler runs the daily thumbnail retention sweep. With a TTL of
// zero the sweep is disabled and no cron entry is registered.
type Scheduler struct {
	cron    *cron.Cron
	cleaner ArtifactCleaner
	ttlDays int
}

func New(cleaner ArtifactCleaner, ttlDays int) *Scheduler {
	return &Scheduler{
		cron:    cron.New(),
		cleaner: cleaner,
		ttlDays: ttlDays,
	}
}

// Start registers the retention sweep and starts the cron loop.
func (s *Scheduler) Start() {
	if s.ttlDays <= 0 {
		log.Println("[scheduler] thumbnail retention disabled")
		return
	}
	_, err := s.cron.AddFunc("@daily", func() {
		deleted := s.cleaner.CleanupOlderThan(s.ttlDays)
		log.Printf("[scheduler] retention sweep removed %d thumbnails older than %d days", deleted, s.ttlDays)
	})
	if err != nil {
		log.Printf("[scheduler] failed to register retention sweep: %v", err)
		return
	}
	s.cron.Start()
	log.Printf("[scheduler] daily thumbnail retention sweep started (ttl %d days)", s.ttlDays)
}

// Stop stops the cron loop, waiting for a running sweep to finish.
func (s *Scheduler) Stop() {
	ctx := s.cron.Stop()
	<-ctx.Done()
	log.Println("[scheduler] scheduler stopped")
}
