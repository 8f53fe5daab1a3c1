package main

import (
	"context"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"strconv"
	"syscall"
	"time"

	"github.com/hibiken/asynq"
	"github.com/spf13/cobra"

	"github.com/imHansiy/mediadex/internal/alist"
	"github.com/imHansiy/mediadex/internal/api"
	"github.com/imHansiy/mediadex/internal/cache"
	"github.com/imHansiy/mediadex/internal/catalog"
	"github.com/imHansiy/mediadex/internal/config"
	"github.com/imHansiy/mediadex/internal/db"
	"github.com/imHansiy/mediadex/internal/jobs"
	"github.com/imHansiy/mediadex/internal/metadata"
	"github.com/imHansiy/mediadex/internal/scanner"
	"github.com/imHansiy/mediadex/internal/scheduler"
	"github.com/imHansiy/mediadex/internal/version"
	"github.com/imHansiy/mediadex/internal/watcher"
)

var rootCmd = &cobra.Command{
	Use:   "mediadex",
	Short: "Classify media trees and publish a movie/TV catalog",
	Long: "mediadex walks media directory trees (local or AList), classifies them\n" +
		"into movies and TV series, enriches titles against metadata scrapers,\n" +
		"and publishes the result as a JSON catalog plus a query API.",
}

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the API server and background workers",
	RunE:  runServe,
}

var scanCmd = &cobra.Command{
	Use:   "scan [roots...]",
	Short: "Run a one-shot scan and write the catalog JSON",
	Long: "Walks the given roots (or SCAN_ROOTS) once and writes the catalog\n" +
		"artifact. Needs no Postgres or Redis, so it works as a cron job or a\n" +
		"quick dry run of preset changes.",
	RunE: runScan,
}

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print version information",
	Run: func(cmd *cobra.Command, args []string) {
		ver := version.Load()
		fmt.Printf("mediadex %s (%s)\n", ver.Version, ver.Commit)
	},
}

var (
	scanPreset string
	scanOut    string
)

func init() {
	scanCmd.Flags().StringVar(&scanPreset, "preset", "", "pattern preset (default from SCAN_PRESET)")
	scanCmd.Flags().StringVar(&scanOut, "out", "", "catalog output path (default from CATALOG_PATH)")
	rootCmd.AddCommand(serveCmd, scanCmd, versionCmd)
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func runServe(cmd *cobra.Command, args []string) error {
	ver := version.Load()
	log.Printf("mediadex %s starting...", ver.Version)

	cfg := config.Load()

	database, err := db.Connect(cfg.DatabaseURL)
	if err != nil {
		return fmt.Errorf("database connection failed: %w", err)
	}
	defer database.Close()

	if err := db.Migrate(database); err != nil {
		return fmt.Errorf("migration failed: %w", err)
	}

	cfg.MergeFromDB(database.DB)
	log.Printf("redis=%v alist=%v tmdb=%v tvdb=%v omdb=%v douban=%v",
		cfg.RedisEnabled(), cfg.AListEnabled(), cfg.TMDBEnabled(), cfg.TVDBEnabled(), cfg.OMDBEnabled(), cfg.DoubanEnabled)

	var queue *jobs.Queue
	if cfg.RedisEnabled() {
		queue = jobs.NewQueue(cfg.RedisAddr, cfg.RedisPassword, cfg.WorkerConcurrency)
	}

	srv := api.NewServer(cfg, database, queue, ver)

	enqueueScan := func(source string) {
		jobID, err := queue.EnqueueUnique(jobs.TaskScanCatalog, jobs.ScanPayload{}, "scan:catalog",
			asynq.Timeout(6*time.Hour), asynq.Retention(1*time.Hour))
		if err != nil {
			log.Printf("%s: scan enqueue failed: %v", source, err)
			return
		}
		log.Printf("%s: scan job enqueued: %s", source, jobID)
	}

	if queue != nil {
		jobs.RegisterHandlers(queue, srv.Scanner(), srv.CatalogRepo(), srv.RunRepo(),
			srv.SettingsRepo(), srv.Store(), srv.Enricher(), srv.Events(), cfg)
		if err := queue.Start(cmd.Context()); err != nil {
			return fmt.Errorf("job queue failed: %w", err)
		}
		defer queue.Stop()

		if cfg.ScanCron != "" {
			sched := scheduler.New(cfg.ScanCron, func() { enqueueScan("scheduler") })
			if err := sched.Start(); err != nil {
				return err
			}
			defer sched.Stop()
		}

		if srv.Enricher() != nil {
			worker := scheduler.NewPlaceholderWorker(srv.CatalogRepo(), srv.SettingsRepo(), queue)
			worker.Start()
			defer worker.Stop()
		}

		// Remote roots cannot be watched; local ones can.
		var watchRoots []string
		if !cfg.AListEnabled() {
			watchRoots = cfg.ScanRoots
		}
		if cfg.PresetsFile != "" || len(watchRoots) > 0 {
			w, err := watcher.New(srv.Registry(), cfg.ScanPreset, cfg.PresetsFile, watchRoots,
				func(string) { enqueueScan("watcher") })
			if err != nil {
				log.Printf("filesystem watcher unavailable: %v", err)
			} else {
				w.Start()
				defer w.Stop()
			}
		}
	}

	httpServer := &http.Server{
		Addr:         ":" + strconv.Itoa(cfg.Port),
		Handler:      srv,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 0,
		IdleTimeout:  60 * time.Second,
	}

	go func() {
		log.Printf("listening on :%d", cfg.Port)
		if err := httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("server error: %v", err)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Println("shutting down...")
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	httpServer.Shutdown(ctx)
	return nil
}

func runScan(cmd *cobra.Command, args []string) error {
	ver := version.Load()
	cfg := config.Load()

	preset := scanPreset
	if preset == "" {
		preset = cfg.ScanPreset
	}
	roots := args
	if len(roots) == 0 {
		roots = cfg.ScanRoots
	}
	if len(roots) == 0 {
		return fmt.Errorf("no roots: pass paths as arguments or set SCAN_ROOTS")
	}
	out := scanOut
	if out == "" {
		out = cfg.CatalogPath
	}

	var lister scanner.Lister
	if cfg.AListEnabled() {
		lister = alist.New(cfg, ver.UserAgent())
	} else {
		lister = scanner.LocalLister{}
	}

	registry := scanner.NewRegistry()
	if cfg.PresetsFile != "" {
		if err := registry.LoadFile(cfg.PresetsFile); err != nil {
			log.Printf("presets file not loaded: %v", err)
		}
	}

	// One-shot runs have no Redis; an in-process cache still spares the
	// scrapers repeated lookups within the run.
	enricher := metadata.FromConfig(cfg, cache.NewMemory(cfg.CacheTTL), ver.UserAgent())
	var enr scanner.Enricher
	if enricher != nil {
		enr = enricher
	}

	sc := scanner.New(lister, enr, registry, scanner.Options{MaxDepth: cfg.ScanMaxDepth})

	ctx, cancel := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	result, err := sc.Run(ctx, roots, preset)
	if err != nil {
		return fmt.Errorf("scan: %w", err)
	}

	doc := catalog.BuildDocument(result.Groups)
	if err := catalog.NewStore(out).Write(doc); err != nil {
		return fmt.Errorf("write catalog: %w", err)
	}

	fmt.Printf("wrote %d entries to %s (%d movies, %d tv, %d placeholders)\n",
		doc.Total, out, result.MoviesTotal, result.TVTotal, result.Placeholders)
	return nil
}
