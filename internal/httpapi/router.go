// Package httpapi exposes the delivery pipeline over HTTP.
package httpapi

import (
	"context"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/rs/cors"

	"github.com/samvad-hq/samvad-kindle-courier/internal/domain"
	"github.com/samvad-hq/samvad-kindle-courier/internal/logger"
	"github.com/samvad-hq/samvad-kindle-courier/internal/pipeline"
	"github.com/samvad-hq/samvad-kindle-courier/internal/storage"
)

const (
	defaultDeliveriesLimit = 20
	maxDeliveriesLimit     = 100
	maxRequestBodyBytes    = 1 << 20
)

// Runner executes one delivery request end to end.
type Runner interface {
	Run(ctx context.Context, req domain.DeliveryRequest) (pipeline.Result, error)
}

// DeliveryLister returns recent delivery records, newest first.
type DeliveryLister interface {
	Recent(limit int) ([]storage.Record, error)
}

// Options configures the router.
type Options struct {
	StaticDir          string
	RateLimitPerMinute int
	CORSAllowedOrigins []string
	// Development adds error chains to 5xx responses.
	Development bool
	Log         logger.Logger
}

type handler struct {
	runner      Runner
	deliveries  DeliveryLister
	staticDir   string
	development bool
	log         logger.Logger
}

// NewRouter builds the HTTP handler tree.
func NewRouter(runner Runner, deliveries DeliveryLister, opts Options) http.Handler {
	h := &handler{
		runner:      runner,
		deliveries:  deliveries,
		staticDir:   opts.StaticDir,
		development: opts.Development,
		log:         logger.Ensure(opts.Log),
	}

	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(requestLogger(h.log))
	r.Use(middleware.Recoverer)
	r.Use(corsHandler(opts.CORSAllowedOrigins))

	r.NotFound(h.notFound)
	r.MethodNotAllowed(h.notFound)

	r.Get("/healthz", h.healthz)
	r.Get("/deliveries", h.listDeliveries)

	r.Group(func(r chi.Router) {
		if opts.RateLimitPerMinute > 0 {
			r.Use(newIPRateLimiter(opts.RateLimitPerMinute, time.Minute).middleware)
		}
		r.Post("/send-article", h.sendArticle)
	})

	r.Get("/*", h.static)
	return r
}

func corsHandler(origins []string) func(http.Handler) http.Handler {
	if len(origins) == 0 {
		origins = []string{"*"}
	}
	c := cors.New(cors.Options{
		AllowedOrigins: origins,
		AllowedMethods: []string{http.MethodGet, http.MethodPost, http.MethodOptions},
		AllowedHeaders: []string{"Accept", "Content-Type", "X-Request-Id"},
		MaxAge:         300,
	})
	return c.Handler
}
