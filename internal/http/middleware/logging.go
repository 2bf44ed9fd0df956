package middleware

import (
	"net/http"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/hlog"
)

const RequestIDHeader = "X-Request-Id"

// RequestLogging attaches logger to each request context, tags the request
// with an ID (echoed in X-Request-Id) and writes one access line per request.
func RequestLogging(logger zerolog.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		h := hlog.AccessHandler(func(r *http.Request, status, size int, dur time.Duration) {
			hlog.FromRequest(r).Info().
				Str("method", r.Method).
				Str("path", r.URL.Path).
				Int("status", status).
				Int("size", size).
				Dur("duration", dur).
				Msg("request")
		})(next)
		h = hlog.RemoteAddrHandler("remote")(h)
		h = hlog.RequestIDHandler("req_id", RequestIDHeader)(h)
		return hlog.NewHandler(logger)(h)
	}
}
