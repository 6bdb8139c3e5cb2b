package jobs

import (
	"context"
	"encoding/json"
	"fmt"
	"log"

	"github.com/hibiken/asynq"

	"github.com/zpavlovic/kinoteka/internal/scanner"
)

type ScanHandler struct {
	scanner  *scanner.Scanner
	notifier EventNotifier
}

func NewScanHandler(sc *scanner.Scanner, notifier EventNotifier) *ScanHandler {
	return &ScanHandler{scanner: sc, notifier: notifier}
}

func (h *ScanHandler) ProcessTask(ctx context.Context, t *asynq.Task) error {
	var p ScanPayload
	if err := json.Unmarshal(t.Payload(), &p); err != nil {
		return fmt.Errorf("unmarshal: %w", err)
	}

	taskID := "scan:movies"
	taskDesc := "Scanning movie library"

	log.Printf("Job: scanning movie library (trigger: %s)", p.Trigger)
	if h.notifier != nil {
		h.notifier.Broadcast("scan:start", map[string]string{"trigger": p.Trigger})
		h.notifier.Broadcast("task:update", map[string]interface{}{
			"task_id": taskID, "task_type": TaskScanMovies,
			"status": "running", "progress": 0, "description": taskDesc,
		})
	}

	result, err := h.scanner.Scan()
	if err != nil {
		if h.notifier != nil {
			h.notifier.Broadcast("task:update", map[string]interface{}{
				"task_id": taskID, "task_type": TaskScanMovies,
				"status": "failed", "progress": 0, "description": taskDesc,
			})
		}
		return fmt.Errorf("scan: %w", err)
	}

	log.Printf("Job: scan complete - %d movies, %d errors", result.Count, len(result.Errors))
	if h.notifier != nil {
		h.notifier.Broadcast("scan:complete", map[string]interface{}{
			"count":  result.Count,
			"errors": result.Errors,
		})
		h.notifier.Broadcast("task:update", map[string]interface{}{
			"task_id": taskID, "task_type": TaskScanMovies,
			"status": "complete", "progress": 100, "description": taskDesc,
		})
	}
	return nil
}
