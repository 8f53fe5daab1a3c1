package api

import (
	"log"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/hibiken/asynq"

	"github.com/imHansiy/mediadex/internal/catalog"
	"github.com/imHansiy/mediadex/internal/httputil"
	"github.com/imHansiy/mediadex/internal/jobs"
	"github.com/imHansiy/mediadex/internal/models"
	"github.com/imHansiy/mediadex/internal/scanner"
)

type scanRequest struct {
	Preset string   `json:"preset"`
	Roots  []string `json:"roots"`
}

func (s *Server) handleTriggerScan(w http.ResponseWriter, r *http.Request) {
	var req scanRequest
	if r.ContentLength > 0 {
		if err := httputil.ReadJSON(w, r, &req); err != nil {
			httputil.WriteError(w, http.StatusBadRequest, "INVALID_JSON", "invalid request body")
			return
		}
	}

	// If the job queue is available, enqueue an async scan (deduplicated
	// by task ID so only one catalog scan runs at a time)
	if s.queue != nil {
		jobID, err := s.queue.EnqueueUnique(jobs.TaskScanCatalog, jobs.ScanPayload{
			Preset: req.Preset,
			Roots:  req.Roots,
		}, "scan:catalog", asynq.Timeout(6*time.Hour), asynq.Retention(1*time.Hour))
		if err != nil {
			// Fallback to synchronous scan
			log.Printf("Failed to enqueue scan job, falling back to sync: %v", err)
		} else {
			log.Printf("Scan job enqueued: %s", jobID)
			httputil.WriteJSON(w, http.StatusAccepted, map[string]string{
				"job_id":  jobID,
				"message": "scan job enqueued",
			})
			return
		}
	}

	// Synchronous fallback
	preset := req.Preset
	if preset == "" {
		preset = s.config.ScanPreset
	}
	roots := req.Roots
	if len(roots) == 0 {
		roots = s.config.ScanRoots
	}
	if len(roots) == 0 {
		httputil.WriteError(w, http.StatusBadRequest, "NO_ROOTS", "no scan roots configured")
		return
	}

	log.Printf("Starting sync scan (preset %q, %d roots)", preset, len(roots))

	run := &models.ScanRun{Status: models.ScanRunning, Preset: preset, Roots: roots}
	if err := s.runRepo.Create(run); err != nil {
		log.Printf("API: failed to record scan run: %v", err)
	}

	result, err := s.scanner.Run(r.Context(), roots, preset)
	if err != nil {
		s.finishScanRun(run, result, err)
		s.events.Broadcast("scan:failed", map[string]interface{}{
			"run_id": run.ID.String(), "error": err.Error(),
		})
		httputil.WriteError(w, http.StatusInternalServerError, "SCAN_FAILED", "scan failed: "+err.Error())
		return
	}

	doc := catalog.BuildDocument(result.Groups)
	if err := s.catalogRepo.ReplaceAll(doc); err != nil {
		s.finishScanRun(run, result, err)
		s.events.Broadcast("scan:failed", map[string]interface{}{
			"run_id": run.ID.String(), "error": err.Error(),
		})
		httputil.WriteError(w, http.StatusInternalServerError, "INTERNAL", "failed to store catalog")
		return
	}
	if err := s.store.Write(doc); err != nil {
		log.Printf("API: failed to export catalog file: %v", err)
	}

	s.finishScanRun(run, result, nil)
	log.Printf("Scan complete: %d entries (%d movies, %d tv, %d placeholders)",
		doc.Total, result.MoviesTotal, result.TVTotal, result.Placeholders)
	s.events.Broadcast("scan:complete", map[string]interface{}{
		"run_id":       run.ID.String(),
		"movies_total": result.MoviesTotal,
		"tv_total":     result.TVTotal,
		"placeholders": result.Placeholders,
		"dirs_visited": result.DirsVisited,
	})

	httputil.WriteJSON(w, http.StatusOK, map[string]interface{}{
		"run_id":       run.ID,
		"entries":      doc.Total,
		"movies":       result.MoviesTotal,
		"tv":           result.TVTotal,
		"placeholders": result.Placeholders,
		"dirs_visited": result.DirsVisited,
	})
}

// finishScanRun closes out a run row for the synchronous path. The async
// path in internal/jobs keeps its own copy of this bookkeeping.
func (s *Server) finishScanRun(run *models.ScanRun, result *scanner.Result, cause error) {
	if run.ID == uuid.Nil {
		return
	}
	if result != nil {
		run.Verdicts = result.Verdicts()
		run.DirsVisited = result.DirsVisited
		run.MoviesTotal = result.MoviesTotal
		run.TVTotal = result.TVTotal
		run.Placeholders = result.Placeholders
		for _, a := range result.Analyses {
			run.CandidatesFound += len(a.Candidates)
		}
	}
	run.Status = models.ScanComplete
	if cause != nil {
		run.Status = models.ScanFailed
		msg := cause.Error()
		run.Error = &msg
	}
	if err := s.runRepo.Finish(run); err != nil {
		log.Printf("API: failed to finish scan run: %v", err)
	}
}

func (s *Server) handleListScanRuns(w http.ResponseWriter, r *http.Request) {
	runs, err := s.runRepo.ListRecent(queryInt(r, "limit", 20))
	if err != nil {
		log.Printf("API: scan run list failed: %v", err)
		httputil.WriteError(w, http.StatusInternalServerError, "INTERNAL", "failed to list scan runs")
		return
	}
	if runs == nil {
		runs = []*models.ScanRun{}
	}
	httputil.WriteJSON(w, http.StatusOK, map[string]interface{}{
		"runs":  runs,
		"count": len(runs),
	})
}

func (s *Server) handleGetScanRun(w http.ResponseWriter, r *http.Request) {
	id, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		httputil.WriteError(w, http.StatusBadRequest, "INVALID_PARAMS", "invalid run id")
		return
	}
	run, err := s.runRepo.GetByID(id)
	if err != nil {
		httputil.WriteError(w, http.StatusNotFound, "NOT_FOUND", "scan run not found")
		return
	}
	httputil.WriteJSON(w, http.StatusOK, run)
}

func queryInt(r *http.Request, key string, fallback int) int {
	v := r.URL.Query().Get(key)
	if v == "" {
		return fallback
	}
	n, err := strconv.Atoi(v)
	if err != nil || n < 0 {
		return fallback
	}
	return n
}
