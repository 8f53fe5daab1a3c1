package jobs

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"time"

	"github.com/hibiken/asynq"

	"github.com/imHansiy/mediadex/internal/catalog"
	"github.com/imHansiy/mediadex/internal/metadata"
	"github.com/imHansiy/mediadex/internal/models"
	"github.com/imHansiy/mediadex/internal/repository"
)

// RefreshHandler re-runs the metadata lookup for a single catalog entry,
// bypassing the cache so provider-side edits come through.
type RefreshHandler struct {
	catalogRepo *repository.CatalogRepository
	enricher    *metadata.Enricher
	queue       *Queue
	notifier    EventNotifier
}

func NewRefreshHandler(catalogRepo *repository.CatalogRepository, enricher *metadata.Enricher, queue *Queue, notifier EventNotifier) *RefreshHandler {
	return &RefreshHandler{catalogRepo: catalogRepo, enricher: enricher, queue: queue, notifier: notifier}
}

func (h *RefreshHandler) ProcessTask(ctx context.Context, t *asynq.Task) error {
	var p RefreshPayload
	if err := json.Unmarshal(t.Payload(), &p); err != nil {
		return fmt.Errorf("unmarshal: %w", err)
	}

	entry, err := h.catalogRepo.GetByID(p.EntryID)
	if err != nil {
		return fmt.Errorf("get catalog entry: %w", err)
	}
	if h.enricher == nil {
		log.Printf("Job: no metadata scrapers configured, skipping refresh for %q", entry.EntryTitle())
		return nil
	}

	title := entry.EntryTitle()
	hint := entry.EntryType()

	log.Printf("Job: refreshing metadata for %q", title)
	h.enricher.Invalidate(ctx, hint, title)
	match, err := h.enricher.Lookup(ctx, title, "", hint)
	if err != nil {
		return fmt.Errorf("lookup: %w", err)
	}
	if match == nil {
		log.Printf("Job: no metadata match for %q, entry left unchanged", title)
		return nil
	}

	// Search rows from some sources are thin (OMDb returns title, year,
	// poster only); a details fetch fills plot, genres, and rating.
	if match.ExternalID != "" {
		if full, err := h.enricher.Details(ctx, match.Source, match.ExternalID, match.MediaType); err == nil && full != nil {
			match = full
		}
	}

	applyMatch(entry, match)
	if err := h.catalogRepo.Upsert(entry); err != nil {
		return fmt.Errorf("store entry: %w", err)
	}

	log.Printf("Job: refreshed %q from %s", match.Title, match.Source)
	if h.notifier != nil {
		h.notifier.Broadcast("entry:refreshed", map[string]interface{}{
			"entry_id": p.EntryID,
			"title":    match.Title,
			"source":   match.Source,
		})
	}

	// Re-export so the JSON artifact picks up the refreshed fields
	if h.queue != nil {
		if _, err := h.queue.EnqueueUnique(TaskExportCatalog, ExportPayload{}, "export:catalog",
			asynq.Timeout(10*time.Minute), asynq.Retention(1*time.Hour)); err != nil {
			log.Printf("Job: failed to enqueue catalog export: %v", err)
		}
	}
	return nil
}

// applyMatch overwrites an entry's enrichment fields in place. The stored
// id stays stable so existing references keep resolving; a full rescan is
// what re-keys a placeholder that gains a real match.
func applyMatch(entry catalog.Entry, match *models.MetadataMatch) {
	switch e := entry.(type) {
	case *catalog.MovieEntry:
		e.Title = match.Title
		e.Year = match.Year
		e.Overview = match.Description
		e.PosterURL = match.PosterURL
		e.Rating = match.Rating
		e.Genres = match.Genres
		e.Placeholder = false
	case *catalog.TVEntry:
		e.Title = match.Title
		e.Year = match.Year
		e.Overview = match.Description
		e.PosterURL = match.PosterURL
		e.Rating = match.Rating
		e.Genres = match.Genres
		e.Placeholder = false
	}
}
