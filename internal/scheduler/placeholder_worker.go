package scheduler

import (
	"log"
	"time"

	"github.com/hibiken/asynq"

	"github.com/imHansiy/mediadex/internal/jobs"
	"github.com/imHansiy/mediadex/internal/repository"
)

// PlaceholderWorker periodically re-enqueues metadata refreshes for
// catalog entries that never got a match. cmd starts it only when both
// the queue and at least one scraper are configured.
type PlaceholderWorker struct {
	catalogRepo  *repository.CatalogRepository
	settingsRepo *repository.SettingsRepository
	queue        *jobs.Queue
	interval     time.Duration
	batchSize    int
	stop         chan struct{}
}

func NewPlaceholderWorker(catalogRepo *repository.CatalogRepository, settingsRepo *repository.SettingsRepository, queue *jobs.Queue) *PlaceholderWorker {
	return &PlaceholderWorker{
		catalogRepo:  catalogRepo,
		settingsRepo: settingsRepo,
		queue:        queue,
		interval:     1 * time.Hour,
		batchSize:    25,
		stop:         make(chan struct{}),
	}
}

func (w *PlaceholderWorker) Start() {
	go w.run()
	log.Printf("[placeholder-worker] started (interval=%s, batch=%d)", w.interval, w.batchSize)
}

func (w *PlaceholderWorker) Stop() {
	close(w.stop)
}

func (w *PlaceholderWorker) run() {
	time.Sleep(30 * time.Second)
	w.check()

	ticker := time.NewTicker(w.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			w.check()
		case <-w.stop:
			log.Println("[placeholder-worker] stopped")
			return
		}
	}
}

func (w *PlaceholderWorker) check() {
	retryEnabled, _ := w.settingsRepo.Get("placeholder_retry_enabled")
	if retryEnabled == "false" {
		return
	}

	entries, err := w.catalogRepo.ListPlaceholders(w.batchSize)
	if err != nil {
		log.Printf("[placeholder-worker] query error: %v", err)
		return
	}
	if len(entries) == 0 {
		return
	}

	log.Printf("[placeholder-worker] retrying %d placeholder entries", len(entries))
	enqueued := 0

	for _, entry := range entries {
		id := entry.EntryID()
		_, err := w.queue.EnqueueUnique(jobs.TaskRefreshEntry, jobs.RefreshPayload{
			EntryID: id,
		}, "refresh:"+id, asynq.Timeout(5*time.Minute), asynq.Retention(1*time.Hour))
		if err != nil {
			log.Printf("[placeholder-worker] enqueue failed for %s: %v", id, err)
			continue
		}
		enqueued++
	}

	if enqueued > 0 {
		log.Printf("[placeholder-worker] enqueued %d/%d refresh jobs", enqueued, len(entries))
	}
}
