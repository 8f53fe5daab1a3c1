package api

import (
	"log"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/imHansiy/mediadex/internal/alist"
	"github.com/imHansiy/mediadex/internal/auth"
	"github.com/imHansiy/mediadex/internal/cache"
	"github.com/imHansiy/mediadex/internal/catalog"
	"github.com/imHansiy/mediadex/internal/config"
	"github.com/imHansiy/mediadex/internal/db"
	"github.com/imHansiy/mediadex/internal/jobs"
	"github.com/imHansiy/mediadex/internal/metadata"
	"github.com/imHansiy/mediadex/internal/notifications"
	"github.com/imHansiy/mediadex/internal/repository"
	"github.com/imHansiy/mediadex/internal/scanner"
	"github.com/imHansiy/mediadex/internal/version"
)

// Server wires the HTTP surface: catalog reads, scan triggers, settings,
// auth, and the progress WebSocket. queue is nil when Redis is not
// configured; scan triggers then run synchronously in the request and
// refresh answers 503.
type Server struct {
	config       *config.Config
	db           *db.DB
	queue        *jobs.Queue
	store        *catalog.Store
	registry     *scanner.Registry
	scanner      *scanner.Scanner
	enricher     *metadata.Enricher
	catalogRepo  *repository.CatalogRepository
	runRepo      *repository.ScanRunRepository
	settingsRepo *repository.SettingsRepository
	userRepo     *repository.UserRepository
	wsHub        *WSHub
	events       *notifications.Fanout
	authmw       *auth.Middleware
	secret       []byte
	ver          version.Info
	router       chi.Router
}

// NewServer assembles the scan stack (lister, cache, scrapers, pattern
// registry) alongside the HTTP routes so cmd and the job workers share
// one scanner instance.
func NewServer(cfg *config.Config, database *db.DB, queue *jobs.Queue, ver version.Info) *Server {
	cacheStore := cache.New(cfg)

	var lister scanner.Lister
	if cfg.AListEnabled() {
		lister = alist.New(cfg, ver.UserAgent())
	} else {
		lister = scanner.LocalLister{}
	}

	registry := scanner.NewRegistry()
	if cfg.PresetsFile != "" {
		if err := registry.LoadFile(cfg.PresetsFile); err != nil {
			log.Printf("API: presets file %s not loaded: %v", cfg.PresetsFile, err)
		}
	}

	enricher := metadata.FromConfig(cfg, cacheStore, ver.UserAgent())
	// A nil *Enricher must not end up inside the interface, or the
	// scanner's nil check stops working.
	var enr scanner.Enricher
	if enricher != nil {
		enr = enricher
	}

	sc := scanner.New(lister, enr, registry, scanner.Options{MaxDepth: cfg.ScanMaxDepth})

	s := &Server{
		config:       cfg,
		db:           database,
		queue:        queue,
		store:        catalog.NewStore(cfg.CatalogPath),
		registry:     registry,
		scanner:      sc,
		enricher:     enricher,
		catalogRepo:  repository.NewCatalogRepository(database.DB),
		runRepo:      repository.NewScanRunRepository(database.DB),
		settingsRepo: repository.NewSettingsRepository(database.DB),
		userRepo:     repository.NewUserRepository(database.DB),
		wsHub:        NewWSHub(),
		authmw:       auth.NewMiddleware(database.DB, cfg.JWTSecret),
		secret:       []byte(cfg.JWTSecret),
		ver:          ver,
		router:       chi.NewRouter(),
	}
	s.events = notifications.NewFanout(s.wsHub, notifications.NewWebhookSender(), s.settingsRepo)
	s.setupRoutes()
	return s
}

func (s *Server) WSHub() *WSHub {
	return s.wsHub
}

// Events is the broadcast sink for job handlers: WebSocket fanout plus the
// optional scan webhook.
func (s *Server) Events() *notifications.Fanout {
	return s.events
}

func (s *Server) Scanner() *scanner.Scanner {
	return s.scanner
}

func (s *Server) Registry() *scanner.Registry {
	return s.registry
}

func (s *Server) Store() *catalog.Store {
	return s.store
}

func (s *Server) Enricher() *metadata.Enricher {
	return s.enricher
}

func (s *Server) CatalogRepo() *repository.CatalogRepository {
	return s.catalogRepo
}

func (s *Server) RunRepo() *repository.ScanRunRepository {
	return s.runRepo
}

func (s *Server) SettingsRepo() *repository.SettingsRepository {
	return s.settingsRepo
}

func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.router.ServeHTTP(w, r)
}

func (s *Server) setupRoutes() {
	r := s.router
	r.Use(securityHeadersMiddleware)
	r.Use(corsMiddleware)

	r.Get("/health", s.handleHealth)

	r.Route("/api/v1", func(r chi.Router) {
		r.Get("/status", s.handleStatus)
		r.Mount("/auth", auth.NewHandler(s.db.DB, s.config.JWTSecret).Router())
		r.Get("/ws", s.handleWebSocket)

		// Authenticated reads
		r.Group(func(r chi.Router) {
			r.Use(s.authmw.RequireAuth)
			r.Get("/catalog", s.handleListCatalog)
			r.Get("/catalog/{id}", s.handleGetCatalogEntry)
			r.Get("/presets", s.handleListPresets)
			r.Get("/scan/runs", s.handleListScanRuns)
			r.Get("/scan/runs/{id}", s.handleGetScanRun)
		})

		// Admin triggers and settings
		r.Group(func(r chi.Router) {
			r.Use(s.authmw.RequireAuth, s.authmw.RequireAdmin)
			r.Post("/scan", s.handleTriggerScan)
			r.Post("/catalog/{id}/refresh", s.handleRefreshEntry)
			r.Get("/settings", s.handleGetSettings)
			r.Put("/settings", s.handleUpdateSettings)
		})
	})
}

// securityHeadersMiddleware adds standard security headers to all responses.
func securityHeadersMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("X-Content-Type-Options", "nosniff")
		w.Header().Set("X-Frame-Options", "DENY")
		w.Header().Set("Referrer-Policy", "strict-origin-when-cross-origin")
		next.ServeHTTP(w, r)
	})
}

// corsMiddleware handles CORS preflight and response headers globally.
func corsMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		origin := r.Header.Get("Origin")
		if origin != "" {
			w.Header().Set("Access-Control-Allow-Origin", origin)
			w.Header().Set("Access-Control-Allow-Credentials", "true")
			w.Header().Set("Access-Control-Allow-Headers", "Content-Type, Authorization")
			w.Header().Set("Access-Control-Allow-Methods", "GET, POST, PUT, DELETE, OPTIONS")
			w.Header().Set("Access-Control-Max-Age", "86400")
			w.Header().Set("Vary", "Origin")
		}

		// Handle preflight
		if r.Method == http.MethodOptions {
			w.WriteHeader(http.StatusNoContent)
			return
		}

		next.ServeHTTP(w, r)
	})
}
