package httpserver

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"go.uber.org/zap"

	"interview-analyzer/internal/handlers"
	"interview-analyzer/internal/metrics"
	"interview-analyzer/internal/middleware"
)

const (
	prefsBodyLimit = 1 << 20
	prefsTimeout   = 15 * time.Second
)

type Options struct {
	CORSOrigins    []string
	RequestTimeout time.Duration
	MaxUploadBytes int64
}

func SetupRouter(r *chi.Mux, baseLogger *zap.Logger, opts Options, analyze *handlers.AnalyzeHandler, prefsH *handlers.PrefsHandler) {

	r.Use(metrics.Middleware)

	// base middleware
	r.Use(chimw.RequestID)
	r.Use(chimw.RealIP)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   opts.CORSOrigins,
		AllowedMethods:   []string{"GET", "POST", "PUT", "OPTIONS"},
		AllowedHeaders:   []string{"*"},
		ExposedHeaders:   []string{chimw.RequestIDHeader},
		AllowCredentials: true,
		MaxAge:           300,
	}))

	r.Use(middleware.LoggingContext(baseLogger))
	r.Use(middleware.Recoverer())

	r.Route("/api", func(r chi.Router) {
		r.Get("/health", handlers.Health)

		r.Group(func(r chi.Router) {
			r.Use(middleware.Timeout(prefsTimeout))
			r.Use(middleware.MaxBodySize(prefsBodyLimit))

			r.Get("/prompt", prefsH.GetPrompt)
			r.Put("/prompt", prefsH.PutPrompt)
			r.Get("/models", prefsH.GetModels)
			r.Put("/models", prefsH.PutModels)
		})

		// uploads get their own, much larger, limits
		r.Group(func(r chi.Router) {
			r.Use(middleware.Timeout(opts.RequestTimeout))
			r.Use(middleware.MaxBodySize(opts.MaxUploadBytes))

			r.Post("/analyze", analyze.Analyze)
		})
	})

	r.Get("/healthz", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	})

	r.Handle("/metrics", metrics.Handler())
}
