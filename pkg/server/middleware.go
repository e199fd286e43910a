package server

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-go-golems/coder/pkg/events"
	"github.com/rs/zerolog/log"
)

// accessLog logs one line per request and carries the request id into the
// context as the event correlation id.
func accessLog(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)

		ctx := r.Context()
		reqID := middleware.GetReqID(ctx)
		if reqID != "" {
			ctx = events.ContextWithCorrelationID(ctx, reqID)
		}

		defer func() {
			status := ww.Status()
			if status == 0 {
				status = http.StatusOK
			}
			e := log.Info()
			if status >= 500 {
				e = log.Warn()
			}
			e.Str("request_id", reqID).
				Str("method", r.Method).
				Str("path", r.URL.Path).
				Int("status", status).
				Int("bytes", ww.BytesWritten()).
				Dur("duration", time.Since(start)).
				Msg("http request")
		}()

		next.ServeHTTP(ww, r.WithContext(ctx))
	})
}
