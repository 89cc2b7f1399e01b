package http

import (
	"log/slog"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/render"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"datapulse/internal/config"
	"datapulse/internal/middleware"
	"datapulse/internal/websocket"
)

// RouterDeps carries everything the router wires together.
type RouterDeps struct {
	Config        *config.Config
	Logger        *slog.Logger
	Uploader      Uploader
	Records       RecordReader
	Queue         Enqueuer
	Hub           *websocket.Hub
	HealthService HealthChecker
}

// NewRouter assembles the middleware chain and all routes
func NewRouter(deps RouterDeps) chi.Router {
	logger := deps.Logger
	if logger == nil {
		logger = slog.Default()
	}

	fileHandler := NewFileHandler(deps.Uploader, deps.Records, deps.Queue,
		deps.Config.Storage.AllowedExtensions, deps.Config.Storage.MaxFileSize, logger)
	wsHandler := NewWSHandler(deps.Hub, deps.Records, deps.Config.WebSocket, logger)
	healthHandler := NewHealthHandler(deps.HealthService, logger)

	r := chi.NewRouter()

	// Order matters: request ids first so everything downstream logs
	// with a trace_id
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.StructuredLogger(logger))
	r.Use(middleware.Recoverer(logger))
	r.Use(middleware.SecurityHeaders)
	r.Use(middleware.CORS(middleware.CORSConfig{
		ExposedHeaders: []string{"X-Request-ID"},
		Logger:         logger,
	}))
	r.Use(middleware.StripSlashes)

	if deps.Config.Server.RateLimitRPS > 0 {
		limiter := middleware.NewRateLimiter(
			deps.Config.Server.RateLimitRPS,
			deps.Config.Server.RateLimitBurst,
			logger)
		r.Use(limiter.Handler)
	}

	r.Route("/api/v1", func(r chi.Router) {
		r.Group(func(r chi.Router) {
			r.Use(render.SetContentType(render.ContentTypeJSON))
			if deps.Config.Server.WriteTimeout > 0 {
				r.Use(middleware.Timeout(deps.Config.Server.WriteTimeout, logger))
			}
			r.Post("/upload", fileHandler.Upload)
			r.Post("/process", fileHandler.Process)
			r.Get("/insights", fileHandler.Insights)
			r.Get("/status", fileHandler.Status)
		})
		// The websocket upgrade hijacks the connection and outlives any
		// request deadline, so it stays outside the timeout group
		r.Get("/ws/{file_id}", wsHandler.Serve)
	})

	r.Get("/health", healthHandler.Health)
	r.Method("GET", "/metrics", promhttp.Handler())

	return r
}
