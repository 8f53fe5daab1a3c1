package jobs

import (
	"github.com/imHansiy/mediadex/internal/catalog"
	"github.com/imHansiy/mediadex/internal/config"
	"github.com/imHansiy/mediadex/internal/metadata"
	"github.com/imHansiy/mediadex/internal/repository"
	"github.com/imHansiy/mediadex/internal/scanner"
)

// ──────── Payloads ────────

// ScanPayload overrides the configured roots and preset for one run.
// Empty fields fall back to the server configuration.
type ScanPayload struct {
	Preset string   `json:"preset,omitempty"`
	Roots  []string `json:"roots,omitempty"`
}

type ExportPayload struct {
	RunID string `json:"run_id,omitempty"`
}

type RefreshPayload struct {
	EntryID string `json:"entry_id"`
}

type EventNotifier interface {
	Broadcast(event string, data interface{})
}

// ──────── Register all handlers ────────

func RegisterHandlers(q *Queue, sc *scanner.Scanner, catalogRepo *repository.CatalogRepository,
	runRepo *repository.ScanRunRepository, settingsRepo *repository.SettingsRepository,
	store *catalog.Store, enricher *metadata.Enricher, notifier EventNotifier, cfg *config.Config) {

	q.RegisterHandler(TaskScanCatalog, NewScanHandler(sc, catalogRepo, runRepo, settingsRepo, q, notifier, cfg))
	q.RegisterHandler(TaskExportCatalog, NewExportHandler(catalogRepo, store, notifier))
	q.RegisterHandler(TaskRefreshEntry, NewRefreshHandler(catalogRepo, enricher, q, notifier))
}
