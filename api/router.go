package api

import (
	"io"
	"net/http"
	"tablature/api/router/handlers"
	"tablature/logger"

	"github.com/andybalholm/brotli"
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// NewRouter wires the API under /api, the table pages, static files and /metrics.
func NewRouter(d *handlers.Deps, staticDir string) http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(accessLog)
	r.Use(middleware.Recoverer)
	r.Use(newCompressor().Handler)

	r.Route("/api", func(api chi.Router) {
		handlers.RegisterHealthRoutes(api)
		handlers.RegisterVersionRoutes(api)
		handlers.RegisterTableRoutes(api, d)
		handlers.RegisterSettingsRoutes(api)

		api.NotFound(func(w http.ResponseWriter, r *http.Request) {
			logger.Error("API catch-all: Unhandled route %s %s", r.Method, r.URL.Path)
			http.NotFound(w, r)
		})
	})

	handlers.RegisterTablePageRoutes(r, d)
	r.Handle("/metrics", promhttp.Handler())

	if staticDir != "" {
		fileServer := http.FileServer(http.Dir(staticDir))
		r.Handle("/static/*", http.StripPrefix("/static/", fileServer))
	}
	return r
}

// newCompressor negotiates br ahead of gzip/deflate for text responses.
func newCompressor() *middleware.Compressor {
	c := middleware.NewCompressor(5, "text/html", "application/json", "application/javascript", "text/css")
	c.SetEncoder("br", func(w io.Writer, level int) io.Writer {
		return brotli.NewWriterLevel(w, level)
	})
	return c
}
