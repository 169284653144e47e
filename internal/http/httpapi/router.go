package httpapi

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"

	"genstudio/internal/generation"
	"genstudio/internal/http/handlers"
	"genstudio/internal/infra"
	"genstudio/internal/middleware"
)

func NewRouter(app *handlers.App, cfg *infra.Config) http.Handler {
	logger := infra.OrDiscard(app.Logger)
	r := chi.NewRouter()

	r.Use(
		chimw.RealIP,
		middleware.RequestID(*logger),
		middleware.Logger(*logger),
		chimw.Recoverer,
		middleware.CORS(cfg.CORSAllowedOrigins),
		middleware.I18N(cfg.DefaultLocale, generation.SupportedLocales),
	)

	r.Get("/v1/healthz", app.Health)
	r.Get("/v1/openapi.json", app.APIDocument)
	r.Get("/v1/docs", app.APIReference)
	r.Get("/v1/models", app.Models)

	r.Route("/v1/credentials", func(r chi.Router) {
		r.Get("/", app.GetCredentials)
		r.Put("/", app.UpdateCredentials)
	})

	// provider-bound routes share one budget per client
	r.Group(func(r chi.Router) {
		r.Use(middleware.RateLimit(cfg.RateLimitPerMin, time.Minute))
		r.Post("/v1/generations", app.Generate)
		r.Post("/v1/lyrics", app.Lyrics)
		r.Post("/v1/assets/{id}/regenerate", app.Regenerate)
		r.Post("/v1/assets/{id}/remix", app.Remix)
	})

	r.Route("/v1/assets", func(r chi.Router) {
		r.Get("/", app.ListAssets)
		r.Get("/export", app.ExportAssets)
		r.Get("/events", app.AssetEvents)
		r.Get("/{id}", app.GetAsset)
		r.Delete("/{id}", app.DeleteAsset)
	})

	if cfg.MediaDir != "" {
		fs := http.StripPrefix("/media/", http.FileServer(http.Dir(cfg.MediaDir)))
		r.Get("/media/*", fs.ServeHTTP)
	}

	return r
}
