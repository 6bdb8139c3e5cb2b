package jobs

import (
	"github.com/zpavlovic/kinoteka/internal/scanner"
	"github.com/zpavlovic/kinoteka/internal/thumbnail"
)

// ──────── Payloads ────────

// ScanPayload carries the trigger origin so broadcasts can say whether
// a scan was manual, scheduled or watcher-driven.
type ScanPayload struct {
	Trigger string `json:"trigger,omitempty"`
}

type RegenerateThumbnailsPayload struct{}

type EventNotifier interface {
	Broadcast(event string, data interface{})
}

// ──────── Register all handlers ────────

func RegisterHandlers(q *Queue, sc *scanner.Scanner, coordinator *thumbnail.Coordinator, notifier EventNotifier) {
	q.RegisterHandler(TaskScanMovies, NewScanHandler(sc, notifier))
	q.RegisterHandler(TaskRegenerateThumbnails, NewRegenerateHandler(coordinator, notifier))
}
