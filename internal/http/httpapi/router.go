package httpapi

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/rs/zerolog"

	"imagebatch/internal/http/handlers"
	"imagebatch/internal/middleware"
)

// Options tunes the cross-cutting middleware.
type Options struct {
	Logger          zerolog.Logger
	RateLimitPerMin int
	CORSOrigins     []string
}

func NewRouter(app *handlers.App, opts Options) http.Handler {
	r := chi.NewRouter()

	r.Use(
		middleware.RequestID,
		chimw.RealIP,
		chimw.Recoverer,
		middleware.Logger(opts.Logger),
		middleware.CORS(opts.CORSOrigins),
	)

	// provider-backed operations are rate limited per user
	limited := middleware.RateLimit(opts.RateLimitPerMin, time.Minute)

	r.Get("/v1/healthz", app.Health)
	r.Get("/v1/modes", app.Modes)

	r.Route("/v1/batches", func(r chi.Router) {
		r.With(limited).Post("/", app.CreateBatch)
		r.Route("/{id}", func(r chi.Router) {
			r.Get("/", app.GetBatch)
			r.With(limited).Post("/run", app.RunBatch)
			r.Get("/events", app.Events)
			r.Get("/gallery", app.Gallery)
			r.Get("/archive", app.Archive)
			r.Get("/items/{index}", app.Item)
			r.With(limited).Post("/items/{index}/upscale", app.Upscale)
		})
	})

	r.Get("/v1/users/{userID}/batches", app.UserBatches)
	r.Post("/v1/admin/cleanup", app.Cleanup)

	return r
}
