package router

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/go-chi/httprate"
	"github.com/savak1990/my-dogs/internal/api"
	"github.com/savak1990/my-dogs/internal/handler"
	"github.com/savak1990/my-dogs/internal/metrics"
)

// Server holds the HTTP router and the handler it dispatches to.
type Server struct {
	Handler *handler.Handler
	Metrics *metrics.Metrics
	Router  chi.Router
}

// New creates a new Server with a fully configured chi router. The
// /uploads/* target is mounted only when h.Uploads is set.
func New(h *handler.Handler, m *metrics.Metrics) *Server {
	s := &Server{Handler: h, Metrics: m}

	r := chi.NewRouter()

	// CORS must come first to answer preflight OPTIONS.
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   []string{"*"},
		AllowedMethods:   []string{"GET", "POST", "PUT", "OPTIONS"},
		AllowedHeaders:   []string{"*"},
		ExposedHeaders:   []string{"Content-Length", "Content-Type"},
		AllowCredentials: false,
		MaxAge:           300,
	}))

	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(api.RequestLogger(h.Logger))
	r.Use(middleware.Recoverer)
	r.Use(m.Middleware)

	r.Get("/health", h.Health)
	r.Method(http.MethodGet, "/metrics", m.Handler())

	r.Route("/users/{owner_id}/dogs", func(r chi.Router) {
		if limit := h.Config.RateLimitPerMinute; limit > 0 {
			r.Use(httprate.Limit(
				limit,
				time.Minute,
				httprate.WithKeyFuncs(httprate.KeyByIP, httprate.KeyByEndpoint),
			))
		}
		r.Use(api.OwnerIDMiddleware)

		r.Get("/", h.ListDogs)
		r.Post("/", h.CreateDog)
		r.Get("/{dog_id}", h.GetDog)
		r.Post("/{dog_id}/images", h.CreateImage)
	})

	r.Post("/events/storage", h.StorageEvents)

	if h.Uploads != nil {
		r.Put("/uploads/*", h.Upload)
	}

	s.Router = r
	return s
}
