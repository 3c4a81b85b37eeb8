package middlewares

import (
	"net/http"
	"regexp"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/httprate"

	"github.com/kentoooo/mellowq/httpx"
	"github.com/kentoooo/mellowq/log"
	"github.com/kentoooo/mellowq/metrics"
)

// SecurityHeaders sets the hardening headers on every response.
func SecurityHeaders(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		h := w.Header()
		h.Set("X-Content-Type-Options", "nosniff")
		h.Set("X-Frame-Options", "DENY")
		h.Set("Referrer-Policy", "strict-origin-when-cross-origin")
		h.Set("Permissions-Policy", "camera=(), microphone=(), geolocation=()")
		next.ServeHTTP(w, r)
	})
}

var reCapability = regexp.MustCompile(`(/(?:admin|followup|manage)/)[^/]+`)

// RedactPath hides the capability token of admin and follow-up URLs.
func RedactPath(path string) string {
	return reCapability.ReplaceAllString(path, "${1}[redacted]")
}

type logFormatter struct{}

type logEntry struct {
	fields log.Fields
}

func (logFormatter) NewLogEntry(r *http.Request) middleware.LogEntry {
	return &logEntry{log.Fields{
		"request_id": middleware.GetReqID(r.Context()),
		"method":     r.Method,
		"path":       RedactPath(r.URL.Path),
		"remote":     r.RemoteAddr,
	}}
}

func (e *logEntry) Write(status, bytes int, header http.Header, elapsed time.Duration, extra interface{}) {
	entry := log.WithFields(e.fields).WithFields(log.Fields{
		"status":  status,
		"bytes":   bytes,
		"elapsed": elapsed.Round(time.Microsecond).String(),
	})
	if status >= 500 {
		entry.Warn("request")
		return
	}
	entry.Info("request")
}

func (e *logEntry) Panic(v interface{}, stack []byte) {
	log.WithFields(e.fields).WithField("stack", string(stack)).Errorf("panic: %v", v)
}

// RequestLogger logs one line per request through logrus, with tokens redacted.
func RequestLogger() func(http.Handler) http.Handler {
	return middleware.RequestLogger(logFormatter{})
}

// Metrics records request counts and durations by route pattern, so that
// tokens in paths never become label values.
func Metrics(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		next.ServeHTTP(ww, r)

		route := "unmatched"
		if rctx := chi.RouteContext(r.Context()); rctx != nil && rctx.RoutePattern() != "" {
			route = rctx.RoutePattern()
		}
		status := ww.Status()
		if status == 0 {
			status = http.StatusOK
		}
		metrics.HTTPRequests.WithLabelValues(r.Method, route, strconv.Itoa(status)).Inc()
		metrics.HTTPDuration.WithLabelValues(r.Method, route).Observe(time.Since(start).Seconds())
	})
}

// GlobalRateLimit caps the requests per minute of one client across the whole API.
func GlobalRateLimit(requests int, keyFunc httprate.KeyFunc) func(http.Handler) http.Handler {
	return httprate.Limit(requests, time.Minute,
		httprate.WithKeyFuncs(keyFunc),
		httprate.WithLimitHandler(func(w http.ResponseWriter, r *http.Request) {
			metrics.RateLimited.WithLabelValues("global").Inc()
			httpx.Error(w, r, http.StatusTooManyRequests, "RATE_LIMIT", "too many requests, please try again later")
		}),
	)
}
