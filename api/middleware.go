package api

import (
	"net/http"
	"tablature/logger"
	"time"

	"github.com/go-chi/chi/v5/middleware"
)

// accessLog writes one line per request to the access log.
func accessLog(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		start := time.Now()
		defer func() {
			logger.AccessInfo("%s %s %s %d %dB %s req=%s",
				r.RemoteAddr, r.Method, r.URL.RequestURI(), ww.Status(), ww.BytesWritten(),
				time.Since(start).Round(time.Microsecond), middleware.GetReqID(r.Context()))
		}()
		next.ServeHTTP(ww, r)
	})
}
