package api

import (
	"log"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/hibiken/asynq"

	"github.com/imHansiy/mediadex/internal/catalog"
	"github.com/imHansiy/mediadex/internal/httputil"
	"github.com/imHansiy/mediadex/internal/jobs"
)

func (s *Server) handleListCatalog(w http.ResponseWriter, r *http.Request) {
	query := r.URL.Query()

	mediaType := query.Get("media_type")
	switch mediaType {
	case "", "movie", "tv":
	default:
		httputil.WriteError(w, http.StatusBadRequest, "INVALID_PARAMS", "media_type must be movie or tv")
		return
	}

	limit := queryInt(r, "limit", 100)
	offset := queryInt(r, "offset", 0)

	var (
		entries []catalog.Entry
		err     error
	)
	if q := query.Get("q"); q != "" {
		entries, err = s.catalogRepo.Search(q, limit)
	} else {
		entries, err = s.catalogRepo.List(mediaType, limit, offset)
	}
	if err != nil {
		log.Printf("API: catalog list failed: %v", err)
		httputil.WriteError(w, http.StatusInternalServerError, "INTERNAL", "failed to list catalog")
		return
	}
	if entries == nil {
		entries = []catalog.Entry{}
	}

	httputil.WriteJSON(w, http.StatusOK, map[string]interface{}{
		"entries": entries,
		"count":   len(entries),
	})
}

func (s *Server) handleGetCatalogEntry(w http.ResponseWriter, r *http.Request) {
	entry, err := s.catalogRepo.GetByID(chi.URLParam(r, "id"))
	if err != nil {
		httputil.WriteError(w, http.StatusNotFound, "NOT_FOUND", "catalog entry not found")
		return
	}
	httputil.WriteJSON(w, http.StatusOK, entry)
}

// handleRefreshEntry re-runs the metadata lookup for one entry in the
// background. There is no synchronous path here: a refresh is never
// urgent enough to hold a request open for scraper round trips.
func (s *Server) handleRefreshEntry(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	if _, err := s.catalogRepo.GetByID(id); err != nil {
		httputil.WriteError(w, http.StatusNotFound, "NOT_FOUND", "catalog entry not found")
		return
	}

	if s.queue == nil {
		httputil.WriteError(w, http.StatusServiceUnavailable, "QUEUE_DISABLED", "background jobs require Redis")
		return
	}

	jobID, err := s.queue.EnqueueUnique(jobs.TaskRefreshEntry, jobs.RefreshPayload{
		EntryID: id,
	}, "refresh:"+id, asynq.Timeout(5*time.Minute), asynq.Retention(1*time.Hour))
	if err != nil {
		httputil.WriteError(w, http.StatusInternalServerError, "ENQUEUE_FAILED", err.Error())
		return
	}

	log.Printf("Refresh job enqueued for entry %s: %s", id, jobID)
	httputil.WriteJSON(w, http.StatusAccepted, map[string]string{
		"job_id":  jobID,
		"message": "refresh job enqueued",
	})
}
