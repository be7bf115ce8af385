package api

import (
	"encoding/json"
	"net/http"
	"runtime"
	"sync/atomic"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"go.uber.org/zap"

	"github.com/tenetdb/tenet/internal/agents"
	"github.com/tenetdb/tenet/internal/api/handlers"
	mw "github.com/tenetdb/tenet/internal/api/middleware"
	"github.com/tenetdb/tenet/internal/config"
	"github.com/tenetdb/tenet/internal/domain"
	"github.com/tenetdb/tenet/internal/embedding"
	"github.com/tenetdb/tenet/internal/ingest"
	"github.com/tenetdb/tenet/internal/rules"
	"github.com/tenetdb/tenet/internal/service"
	"github.com/tenetdb/tenet/internal/store"
	tickrt "github.com/tenetdb/tenet/internal/runtime"
)

// App holds the router and the background scheduler for lifecycle management.
type App struct {
	Router    *chi.Mux
	Scheduler *tickrt.Scheduler

	startTime    time.Time
	requestCount atomic.Int64
	errorCount   atomic.Int64
}

func NewApp(backend *store.Backend, logger *zap.Logger) *App {
	stores := backend.Stores
	cfg := config.Rules()

	// External embedding client; the "none" provider disables dedup.
	embeddingProvider := config.EmbeddingProvider()
	embedder, err := embedding.NewClient(embeddingProvider, config.OpenAIAPIKey())
	if err != nil {
		logger.Warn("embedding client initialization failed",
			zap.String("provider", embeddingProvider), zap.Error(err))
	} else if embedder != nil {
		logger.Info("embedding client initialized", zap.String("provider", embeddingProvider))
	}

	// Services
	beliefSvc := service.NewBeliefService(stores.Beliefs, stores.Edges, stores.Audit, stores.Signals, cfg, logger)
	noteSvc := service.NewNoteService(stores.Notes, stores.Audit, stores.Signals, logger)
	edgeSvc := service.NewEdgeService(stores.Edges, logger)
	signalSvc := service.NewSignalService(stores.Signals, logger)
	auditSvc := service.NewAuditService(stores.Audit)
	feedbackSvc := service.NewFeedbackService(stores.Beliefs, stores.Notes, stores.Edges, stores.Audit, cfg, logger)
	ingestor := ingest.New(noteSvc, signalSvc, logger)

	// Agents
	synthesis := agents.NewSynthesis(stores.Notes, stores.Edges, beliefSvc, cfg, logger)
	challenger := agents.NewChallenger(stores.Beliefs, stores.Notes, stores.Edges, beliefSvc, rules.DetectorConfig{}, cfg, logger)
	curator := agents.NewCurator(stores.Beliefs, stores.Notes, stores.Edges, stores.Signals, beliefSvc, embedder, cfg, logger)
	notifier := agents.NewNotifier(logger)

	// Signal routing. Registration order is execution order within a type;
	// synthesis sees a new note before the challenger cross-checks it.
	dispatcher := tickrt.NewDispatcher(stores.Signals, cfg, logger)
	dispatcher.Register(domain.SignalNewNote, synthesis.HandleNewNote)
	dispatcher.Register(domain.SignalNewNote, challenger.HandleNewNote)
	dispatcher.Register(domain.SignalBeliefProposed, challenger.HandleBeliefProposed)
	dispatcher.Register(domain.SignalBeliefConfirmed, feedbackSvc.HandleConfirmed)
	dispatcher.Register(domain.SignalBeliefRefuted, feedbackSvc.HandleRefuted)
	dispatcher.Register(domain.SignalSourceTrustUpdated, feedbackSvc.HandleTrustUpdated)
	dispatcher.Register(domain.SignalBeliefChallenged, notifier.HandleReport)
	dispatcher.Register(domain.SignalNoteDistilled, notifier.HandleReport)

	lifecycle := tickrt.NewLifecycle(stores.Beliefs, beliefSvc, cfg, logger)
	scheduler := tickrt.NewScheduler(curator, lifecycle, dispatcher, logger)
	scheduler.SetInterval(config.TickInterval())
	scheduler.SetAgentCounters(&synthesis.Proposed, &challenger.Challenged)

	// Handlers
	noteHandler := handlers.NewNoteHandler(ingestor, noteSvc)
	beliefHandler := handlers.NewBeliefHandler(beliefSvc, signalSvc)
	edgeHandler := handlers.NewEdgeHandler(edgeSvc)
	signalHandler := handlers.NewSignalHandler(signalSvc)
	sourceHandler := handlers.NewSourceHandler(noteSvc)
	auditHandler := handlers.NewAuditHandler(auditSvc)
	tickHandler := handlers.NewTickHandler(scheduler)
	statsHandler := handlers.NewStatsHandler(stores.Notes, stores.Beliefs)

	r := chi.NewRouter()

	app := &App{
		Router:    r,
		Scheduler: scheduler,
		startTime: time.Now(),
	}

	// Global middleware (order matters)
	r.Use(mw.RequestID)
	r.Use(middleware.RealIP)
	r.Use(mw.Metrics(&app.requestCount, &app.errorCount))
	r.Use(mw.Logging(logger))
	r.Use(middleware.Recoverer)
	r.Use(mw.RateLimit(config.RateLimitRPS(), config.RateLimitBurst()))

	r.Get("/health", healthHandler(backend))
	r.Get("/metrics", app.metricsHandler())

	r.Route("/v1", func(r chi.Router) {
		r.Route("/notes", func(r chi.Router) {
			r.Post("/", noteHandler.Create)
			r.Get("/", noteHandler.List)
			r.Get("/{id}", noteHandler.GetByID)
		})

		r.Route("/beliefs", func(r chi.Router) {
			r.Post("/", beliefHandler.Propose)
			r.Get("/", beliefHandler.List)
			r.Route("/{id}", func(r chi.Router) {
				r.Get("/", beliefHandler.GetByID)
				r.Post("/confirm", beliefHandler.Confirm)
				r.Post("/refute", beliefHandler.Refute)
				r.Post("/transition", beliefHandler.Transition)
			})
		})

		r.Route("/edges", func(r chi.Router) {
			r.Post("/", edgeHandler.Create)
			r.Get("/{type}/{id}", edgeHandler.ListByEntity)
			r.Delete("/{id}", edgeHandler.Delete)
		})

		r.Route("/sources", func(r chi.Router) {
			r.Post("/", sourceHandler.Create)
			r.Get("/{id}", sourceHandler.GetByID)
			r.Put("/{id}/trust", sourceHandler.UpdateTrust)
		})

		r.Route("/signals", func(r chi.Router) {
			r.Post("/", signalHandler.Emit)
			r.Get("/pending", signalHandler.Pending)
			r.Get("/dead", signalHandler.DeadLettered)
		})

		r.Get("/audit/{id}", auditHandler.ListByEntity)
		r.Post("/tick", tickHandler.Run)
		r.Get("/stats", statsHandler.Get)
	})

	return app
}

func healthHandler(backend *store.Backend) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if err := backend.Ping(r.Context()); err != nil {
			w.Header().Set("Content-Type", "application/json")
			w.WriteHeader(http.StatusServiceUnavailable)
			_ = json.NewEncoder(w).Encode(map[string]string{"status": "error", "error": err.Error()})
			return
		}

		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusOK)
		_ = json.NewEncoder(w).Encode(map[string]string{"status": "ok"})
	}
}

func (app *App) metricsHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var memStats runtime.MemStats
		runtime.ReadMemStats(&memStats)

		uptime := time.Since(app.startTime)

		response := map[string]any{
			"uptime_seconds": uptime.Seconds(),
			"uptime_human":   uptime.Round(time.Second).String(),
			"request_count":  app.requestCount.Load(),
			"error_count":    app.errorCount.Load(),
			"goroutines":     runtime.NumGoroutine(),
			"memory": map[string]any{
				"alloc_mb":       float64(memStats.Alloc) / 1024 / 1024,
				"total_alloc_mb": float64(memStats.TotalAlloc) / 1024 / 1024,
				"sys_mb":         float64(memStats.Sys) / 1024 / 1024,
				"num_gc":         memStats.NumGC,
			},
			"go_version": runtime.Version(),
		}

		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusOK)
		_ = json.NewEncoder(w).Encode(response)
	}
}

// Ensure clients satisfy interfaces at compile time.
var (
	_ domain.EmbeddingClient = (*embedding.OpenAIClient)(nil)
	_ domain.EmbeddingClient = (*embedding.LocalClient)(nil)
	_ domain.EmbeddingClient = (*embedding.MockClient)(nil)
)
