package jobs

import (
	"context"
	"encoding/json"
	"fmt"
	"log"

	"github.com/hibiken/asynq"

	"github.com/imHansiy/mediadex/internal/catalog"
	"github.com/imHansiy/mediadex/internal/repository"
)

// ExportHandler serializes the stored catalog into the JSON artifact on
// disk. Exports run as follow-up jobs after scans and refreshes so API
// writes and the file never race each other.
type ExportHandler struct {
	catalogRepo *repository.CatalogRepository
	store       *catalog.Store
	notifier    EventNotifier
}

func NewExportHandler(catalogRepo *repository.CatalogRepository, store *catalog.Store, notifier EventNotifier) *ExportHandler {
	return &ExportHandler{catalogRepo: catalogRepo, store: store, notifier: notifier}
}

func (h *ExportHandler) ProcessTask(ctx context.Context, t *asynq.Task) error {
	var p ExportPayload
	if err := json.Unmarshal(t.Payload(), &p); err != nil {
		return fmt.Errorf("unmarshal: %w", err)
	}

	entries, err := h.catalogRepo.List("", 0, 0)
	if err != nil {
		return fmt.Errorf("list catalog: %w", err)
	}

	doc := catalog.NewDocument(entries)
	if err := h.store.Write(doc); err != nil {
		return fmt.Errorf("write catalog: %w", err)
	}

	log.Printf("Job: exported %d catalog entries", doc.Total)
	if h.notifier != nil {
		h.notifier.Broadcast("catalog:exported", map[string]interface{}{
			"total":        doc.Total,
			"generated_at": doc.GeneratedAt,
			"run_id":       p.RunID,
		})
	}
	return nil
}
