package jobs

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"time"

	"github.com/google/uuid"
	"github.com/hibiken/asynq"

	"github.com/imHansiy/mediadex/internal/catalog"
	"github.com/imHansiy/mediadex/internal/config"
	"github.com/imHansiy/mediadex/internal/models"
	"github.com/imHansiy/mediadex/internal/repository"
	"github.com/imHansiy/mediadex/internal/scanner"
)

type ScanHandler struct {
	scanner      *scanner.Scanner
	catalogRepo  *repository.CatalogRepository
	runRepo      *repository.ScanRunRepository
	settingsRepo *repository.SettingsRepository
	queue        *Queue
	notifier     EventNotifier
	cfg          *config.Config
}

func NewScanHandler(sc *scanner.Scanner, catalogRepo *repository.CatalogRepository, runRepo *repository.ScanRunRepository, settingsRepo *repository.SettingsRepository, queue *Queue, notifier EventNotifier, cfg *config.Config) *ScanHandler {
	return &ScanHandler{scanner: sc, catalogRepo: catalogRepo, runRepo: runRepo, settingsRepo: settingsRepo, queue: queue, notifier: notifier, cfg: cfg}
}

func (h *ScanHandler) ProcessTask(ctx context.Context, t *asynq.Task) error {
	var p ScanPayload
	if err := json.Unmarshal(t.Payload(), &p); err != nil {
		return fmt.Errorf("unmarshal: %w", err)
	}

	preset := p.Preset
	if preset == "" {
		preset = h.cfg.ScanPreset
	}
	roots := p.Roots
	if len(roots) == 0 {
		roots = h.cfg.ScanRoots
	}
	if len(roots) == 0 {
		log.Printf("Job: no scan roots configured, skipping")
		return nil
	}

	run := &models.ScanRun{Status: models.ScanRunning, Preset: preset, Roots: roots}
	if err := h.runRepo.Create(run); err != nil {
		log.Printf("Job: failed to record scan run: %v", err)
	}
	runID := run.ID.String()

	taskID := TaskScanCatalog
	taskDesc := "Scanning media roots"

	log.Printf("Job: scanning %d root(s) with preset %q", len(roots), preset)
	if h.notifier != nil {
		h.notifier.Broadcast("scan:start", map[string]interface{}{
			"run_id": runID, "preset": preset, "roots": roots,
		})
		h.notifier.Broadcast("task:update", map[string]interface{}{
			"task_id": taskID, "task_type": TaskScanCatalog,
			"status": "running", "progress": 0, "description": taskDesc,
		})
	}

	// Build a throttled progress callback to broadcast scan progress via WebSocket
	var progressFn scanner.ProgressFunc
	if h.notifier != nil {
		var lastBroadcast time.Time
		progressFn = func(stage string, done, total int, detail string) {
			now := time.Now()
			// Throttle: broadcast at most every 500ms, plus always on stage boundaries
			if now.Sub(lastBroadcast) < 500*time.Millisecond && done != total {
				return
			}
			lastBroadcast = now
			h.notifier.Broadcast("scan:progress", map[string]interface{}{
				"run_id":  runID,
				"stage":   stage,
				"current": done,
				"total":   total,
				"detail":  detail,
			})
			// Build descriptive status: "Scan enrich · Breaking Bad (5/120)"
			desc := fmt.Sprintf("Scan %s (%d/%d)", stage, done, total)
			if detail != "" {
				desc = fmt.Sprintf("Scan %s · %s (%d/%d)", stage, detail, done, total)
			}
			h.notifier.Broadcast("task:update", map[string]interface{}{
				"task_id": taskID, "task_type": TaskScanCatalog,
				"status": "running", "progress": stagePercent(stage, done, total), "description": desc,
			})
		}
	}
	sc := h.scanner
	if progressFn != nil {
		sc = sc.WithProgress(progressFn)
	}

	result, err := sc.Run(ctx, roots, preset)
	if err != nil {
		h.failRun(run, result, err)
		if h.notifier != nil {
			h.notifier.Broadcast("scan:failed", map[string]interface{}{
				"run_id": runID, "error": err.Error(),
			})
			h.notifier.Broadcast("task:update", map[string]interface{}{
				"task_id": taskID, "task_type": TaskScanCatalog,
				"status": "failed", "progress": 0, "description": taskDesc,
			})
		}
		return fmt.Errorf("scan: %w", err)
	}

	if err := h.catalogRepo.ReplaceAll(catalog.BuildDocument(result.Groups)); err != nil {
		h.failRun(run, result, err)
		if h.notifier != nil {
			h.notifier.Broadcast("scan:failed", map[string]interface{}{
				"run_id": runID, "error": err.Error(),
			})
			h.notifier.Broadcast("task:update", map[string]interface{}{
				"task_id": taskID, "task_type": TaskScanCatalog,
				"status": "failed", "progress": 0, "description": taskDesc,
			})
		}
		return fmt.Errorf("store catalog: %w", err)
	}

	applyResult(run, result)
	run.Status = models.ScanComplete
	if run.ID != uuid.Nil {
		if err := h.runRepo.Finish(run); err != nil {
			log.Printf("Job: failed to record scan run: %v", err)
		}
	}

	log.Printf("Job: scan complete - %d entries (%d movies, %d tv, %d placeholders)",
		len(result.Groups), result.MoviesTotal, result.TVTotal, result.Placeholders)
	if h.notifier != nil {
		h.notifier.Broadcast("scan:complete", map[string]interface{}{
			"run_id":       runID,
			"movies_total": result.MoviesTotal,
			"tv_total":     result.TVTotal,
			"placeholders": result.Placeholders,
			"dirs_visited": result.DirsVisited,
		})
		h.notifier.Broadcast("task:update", map[string]interface{}{
			"task_id": taskID, "task_type": TaskScanCatalog,
			"status": "complete", "progress": 100, "description": taskDesc,
		})
	}

	// Write the JSON artifact as a follow-up background job (deduplicated by task ID)
	// Only enqueue if the catalog export setting is enabled (default: on)
	if h.queue != nil {
		exportEnabled := true
		if h.settingsRepo != nil {
			if val, err := h.settingsRepo.Get("catalog_export_enabled"); err == nil && val == "false" {
				exportEnabled = false
			}
		}
		if exportEnabled {
			uniqueID := "export:catalog"
			if _, err := h.queue.EnqueueUnique(TaskExportCatalog, ExportPayload{RunID: runID}, uniqueID,
				asynq.Timeout(10*time.Minute), asynq.Retention(1*time.Hour)); err != nil {
				log.Printf("Job: failed to enqueue catalog export: %v", err)
			} else {
				log.Printf("Job: enqueued catalog export")
			}
		} else {
			log.Printf("Job: skipping catalog export (disabled in settings)")
		}
	}

	return nil
}

// failRun records a failed run with whatever partial counters the scan
// produced before stopping.
func (h *ScanHandler) failRun(run *models.ScanRun, result *scanner.Result, cause error) {
	if run.ID == uuid.Nil {
		return
	}
	applyResult(run, result)
	run.Status = models.ScanFailed
	msg := cause.Error()
	run.Error = &msg
	if err := h.runRepo.Finish(run); err != nil {
		log.Printf("Job: failed to record scan failure: %v", err)
	}
}

func applyResult(run *models.ScanRun, result *scanner.Result) {
	if result == nil {
		return
	}
	run.Verdicts = result.Verdicts()
	run.DirsVisited = result.DirsVisited
	run.MoviesTotal = result.MoviesTotal
	run.TVTotal = result.TVTotal
	run.Placeholders = result.Placeholders
	for _, a := range result.Analyses {
		run.CandidatesFound += len(a.Candidates)
	}
}

// stagePercent maps per-stage progress onto one 0-100 task bar: the walk
// covers the first fifth, enrichment the bulk, the final merge the rest.
func stagePercent(stage string, done, total int) int {
	frac := 0.0
	if total > 0 {
		frac = float64(done) / float64(total)
	}
	switch stage {
	case "walk":
		return int(frac * 20)
	case "enrich":
		return 20 + int(frac*75)
	default:
		return 95 + int(frac*5)
	}
}
