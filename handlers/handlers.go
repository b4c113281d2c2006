// Package handlers is the thin HTTP/WS adapter layer over the job
// repository, artifact store, and worker pool: REST endpoints for
// upload/list/retry/delete/download/config and a WebSocket that relays
// every event-bus message to connected clients.
package handlers

import (
	"log/slog"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/websocket/v2"

	"gifcompress/artifacts"
	"gifcompress/config"
	"gifcompress/eventbus"
	"gifcompress/executor"
	"gifcompress/monitoring"
	"gifcompress/store"
	"gifcompress/workerpool"
)

// Handlers bundles every collaborator the REST/WS surface calls into.
type Handlers struct {
	store     *store.Store
	artifacts *artifacts.Store
	pool      *workerpool.Pool
	bus       *eventbus.Bus
	tool      executor.Tool
	config    *config.Config
	metrics   *monitoring.MetricsCollector
	health    *monitoring.HealthChecker
	validate  *validator.Validate
	log       *slog.Logger
	startTime time.Time
}

// Deps groups the Handlers' collaborators.
type Deps struct {
	Store     *store.Store
	Artifacts *artifacts.Store
	Pool      *workerpool.Pool
	Bus       *eventbus.Bus
	Tool      executor.Tool
	Config    *config.Config
	Metrics   *monitoring.MetricsCollector
	Health    *monitoring.HealthChecker
	Logger    *slog.Logger
}

// New builds the Handlers bundle.
func New(deps Deps) *Handlers {
	logger := deps.Logger
	if logger == nil {
		logger = slog.Default()
	}
	return &Handlers{
		store:     deps.Store,
		artifacts: deps.Artifacts,
		pool:      deps.Pool,
		bus:       deps.Bus,
		tool:      deps.Tool,
		config:    deps.Config,
		metrics:   deps.Metrics,
		health:    deps.Health,
		validate:  validator.New(),
		log:       logger,
		startTime: time.Now(),
	}
}

// Register wires every route onto app, grouped the way the reference
// backend groups its API surface: every REST endpoint under `/api`, per
// the wire contract's "REST (JSON over HTTP, base `/api`)," with the
// WebSocket entry left at the top level as its own surface.
func (h *Handlers) Register(app *fiber.App) {
	api := app.Group("/api")

	api.Get("/health", h.HealthCheck)
	api.Get("/ready", h.Ready)

	jobs := api.Group("/jobs")
	jobs.Get("/", h.ListJobs)
	jobs.Get("/counts", h.JobCounts)
	jobs.Get("/session/:sessionId", h.ListSessionJobs)
	jobs.Get("/session/:sessionId/non-terminal", h.ListNonTerminalSessionJobs)
	jobs.Get("/:id", h.GetJob)
	jobs.Delete("/:id", h.DeleteJob)
	jobs.Post("/:id/retry", h.RetryJob)

	api.Post("/upload", h.Upload)

	download := api.Group("/download")
	download.Get("/zip/archive", h.DownloadZipArchive)
	download.Get("/:id/original", h.DownloadOriginal)
	download.Get("/:id", h.DownloadCompressed)

	queue := api.Group("/queue")
	queue.Get("/config", h.GetQueueConfig)
	queue.Put("/config", h.SetQueueConfig)

	app.Use("/ws", WSUpgrade)
	app.Get("/ws", websocket.New(h.WSHandler()))
}
