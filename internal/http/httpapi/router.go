package httpapi

import (
	"net/http"
	"strings"
	"time"

	sentryhttp "github.com/getsentry/sentry-go/http"
	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"

	"mediagen/internal/http/handlers"
	"mediagen/internal/middleware"
)

const defaultLocale = "en"

// NewRouter mounts the API. lookup may be nil when no GeoIP database is
// configured.
func NewRouter(app *handlers.App, lookup middleware.CountryLookup) http.Handler {
	cfg := app.Config
	r := chi.NewRouter()

	r.Use(
		middleware.RequestID,
		chimw.RealIP,
		chimw.Recoverer,
		middleware.Logger(app.Logger),
	)
	if strings.TrimSpace(cfg.SentryDSN) != "" {
		r.Use(sentryhttp.New(sentryhttp.Options{Repanic: true}).Handle)
	}
	r.Use(
		middleware.CORS(cfg.CORSOrigins),
		middleware.I18N(defaultLocale, lookup),
	)

	r.Get("/v1/healthz", app.Health)
	r.Get("/v1/openapi.json", app.OpenAPIJSON)
	r.Get("/v1/docs", app.OpenAPIDocs)
	r.Get("/v1/providers", app.ListProviders)
	r.Get("/v1/metrics/summary", app.MetricsSummary)

	r.Group(func(r chi.Router) {
		r.Use(middleware.AuthJWT(cfg.JWTSecret))
		r.With(middleware.RateLimit(cfg.RateLimitPerMin, time.Minute)).Post("/v1/generate", app.Generate)
		r.Get("/v1/generations", app.ListGenerations)
		r.Get("/v1/generations/archive", app.ArchiveGenerations)
		r.Get("/v1/generations/{id}", app.GetGeneration)
	})

	if dir := strings.TrimSpace(cfg.StoragePath); dir != "" {
		r.Handle("/static/*", http.StripPrefix("/static/", http.FileServer(http.Dir(dir))))
	}

	return r
}
