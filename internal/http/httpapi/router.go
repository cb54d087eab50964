package httpapi

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/hlog"

	"dreamstream/internal/http/handlers"
	"dreamstream/internal/metrics"
	"dreamstream/internal/middleware"
)

// Options wires the router. Metrics, Limiter and CountryLookup are optional.
type Options struct {
	Logger         zerolog.Logger
	Metrics        *metrics.Collector
	Limiter        *middleware.RateLimiter
	AllowedOrigins []string
	DefaultLocale  string
	CountryLookup  middleware.CountryLookup
}

func NewRouter(app *handlers.App, opts Options) http.Handler {
	r := chi.NewRouter()

	var observer middleware.HTTPObserver
	if opts.Metrics != nil {
		observer = opts.Metrics
	}

	r.Use(
		chimw.RealIP,
		chimw.Recoverer,
		hlog.NewHandler(opts.Logger),
		middleware.RequestID,
		middleware.Logger(opts.Logger, observer),
		middleware.CORS(opts.AllowedOrigins),
		middleware.I18N(opts.DefaultLocale, opts.CountryLookup),
	)

	if opts.Metrics != nil {
		r.Method(http.MethodGet, "/metrics", opts.Metrics.Handler())
	}

	r.Route("/v1", func(r chi.Router) {
		r.Get("/healthz", app.Health)
		r.Get("/openapi.json", app.OpenAPIJSON)
		r.Get("/docs", app.OpenAPIDocs)
		r.Get("/studio", app.StudioState)
		r.Get("/media/{id}", app.MediaStream)
		r.Get("/history/archive", app.HistoryArchive)

		r.Group(func(r chi.Router) {
			if opts.Limiter != nil {
				r.Use(opts.Limiter.Middleware)
			}
			r.Post("/generations", app.GenerationsCreate)
			r.Delete("/generations/current", app.GenerationsCancel)
			r.Post("/history/{id}/select", app.HistorySelect)
			r.Post("/credential/select", app.CredentialSelect)
			r.Post("/error/dismiss", app.ErrorDismiss)
		})
	})

	return r
}
