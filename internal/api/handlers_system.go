package api

import (
	"log"
	"net/http"

	"github.com/imHansiy/mediadex/internal/httputil"
	"github.com/imHansiy/mediadex/internal/models"
)

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	httputil.WriteJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// handleStatus reports what this instance is running with. Counts come
// from Postgres and degrade to zero when the query fails, so the endpoint
// stays useful for probes even with a struggling database.
func (s *Server) handleStatus(w http.ResponseWriter, r *http.Request) {
	movies, tv, err := s.catalogRepo.Counts()
	if err != nil {
		log.Printf("API: catalog counts unavailable: %v", err)
	}

	var lastScan *models.ScanRun
	if runs, err := s.runRepo.ListRecent(1); err == nil && len(runs) > 0 {
		lastScan = runs[0]
	}

	httputil.WriteJSON(w, http.StatusOK, map[string]interface{}{
		"version":       s.ver.Version,
		"commit":        s.ver.Commit,
		"movies":        movies,
		"tv":            tv,
		"ws_clients":    s.wsHub.ClientCount(),
		"queue_enabled": s.queue != nil,
		"alist_enabled": s.config.AListEnabled(),
		"scrapers":      s.scraperNames(),
		"catalog_path":  s.config.CatalogPath,
		"last_scan":     lastScan,
	})
}

func (s *Server) handleGetSettings(w http.ResponseWriter, r *http.Request) {
	settings, err := s.settingsRepo.GetAll()
	if err != nil {
		log.Printf("API: settings load failed: %v", err)
		httputil.WriteError(w, http.StatusInternalServerError, "INTERNAL", "failed to load settings")
		return
	}
	httputil.WriteJSON(w, http.StatusOK, map[string]interface{}{"settings": settings})
}

// handleUpdateSettings stores key/value overrides. Values take effect
// where they are read: job gates check the table on every run, while
// roots and preset overrides apply on the next restart or an explicit
// scan request body.
func (s *Server) handleUpdateSettings(w http.ResponseWriter, r *http.Request) {
	var values map[string]string
	if err := httputil.ReadJSON(w, r, &values); err != nil {
		httputil.WriteError(w, http.StatusBadRequest, "INVALID_JSON", "invalid request body")
		return
	}
	if len(values) == 0 {
		httputil.WriteError(w, http.StatusBadRequest, "INVALID_PARAMS", "no settings provided")
		return
	}

	if err := s.settingsRepo.SetMany(values); err != nil {
		log.Printf("API: settings save failed: %v", err)
		httputil.WriteError(w, http.StatusInternalServerError, "INTERNAL", "failed to save settings")
		return
	}

	httputil.WriteJSON(w, http.StatusOK, map[string]interface{}{"updated": len(values)})
}

func (s *Server) scraperNames() []string {
	if s.enricher == nil {
		return []string{}
	}
	return s.enricher.Sources()
}
