package jobs

import (
	"context"
	"fmt"
	"log"
	"time"

	"github.com/hibiken/asynq"

	"github.com/zpavlovic/kinoteka/internal/models"
	"github.com/zpavlovic/kinoteka/internal/thumbnail"
)

type RegenerateHandler struct {
	coordinator *thumbnail.Coordinator
	notifier    EventNotifier
}

func NewRegenerateHandler(coordinator *thumbnail.Coordinator, notifier EventNotifier) *RegenerateHandler {
	return &RegenerateHandler{coordinator: coordinator, notifier: notifier}
}

func (h *RegenerateHandler) ProcessTask(ctx context.Context, t *asynq.Task) error {
	taskID := "thumbnails:regenerate"
	taskDesc := "Regenerating thumbnails"

	log.Println("Job: regenerating missing thumbnails")
	if h.notifier != nil {
		h.notifier.Broadcast("task:update", map[string]interface{}{
			"task_id": taskID, "task_type": TaskRegenerateThumbnails,
			"status": "running", "progress": 0, "description": taskDesc,
		})
	}

	// Throttle: broadcast at most every 500ms, plus always on last item
	var onProgress thumbnail.ProgressFunc
	if h.notifier != nil {
		var lastBroadcast time.Time
		onProgress = func(p models.Progress) {
			now := time.Now()
			if now.Sub(lastBroadcast) >= 500*time.Millisecond || p.Current == p.Total {
				lastBroadcast = now
				desc := fmt.Sprintf("Regenerating thumbnails · %s (%d/%d)", p.Title, p.Current, p.Total)
				h.notifier.Broadcast("task:update", map[string]interface{}{
					"task_id": taskID, "task_type": TaskRegenerateThumbnails,
					"status": "running", "progress": p.Percentage, "description": desc,
				})
			}
		}
	}

	stats, err := h.coordinator.RegenerateAll(ctx, onProgress)
	if err != nil {
		if h.notifier != nil {
			h.notifier.Broadcast("task:update", map[string]interface{}{
				"task_id": taskID, "task_type": TaskRegenerateThumbnails,
				"status": "failed", "progress": 0, "description": taskDesc,
			})
		}
		return fmt.Errorf("regenerate thumbnails: %w", err)
	}

	log.Printf("Job: thumbnail regeneration complete - %d generated, %d skipped, %d failed",
		stats.Generated, stats.Skipped, stats.Failed)
	if h.notifier != nil {
		h.notifier.Broadcast("thumbnails:complete", map[string]interface{}{
			"total":     stats.Total,
			"generated": stats.Generated,
			"skipped":   stats.Skipped,
			"failed":    stats.Failed,
		})
		h.notifier.Broadcast("task:update", map[string]interface{}{
			"task_id": taskID, "task_type": TaskRegenerateThumbnails,
			"status": "complete", "progress": 100, "description": taskDesc,
		})
	}
	return nil
}
