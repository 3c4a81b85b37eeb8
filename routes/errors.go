package routes

import (
	"errors"
	"net/http"

	"github.com/go-chi/httprate"
	"github.com/go-chi/render"

	"github.com/kentoooo/mellowq/app"
	"github.com/kentoooo/mellowq/httpx"
	"github.com/kentoooo/mellowq/log"
	"github.com/kentoooo/mellowq/service"
)

var statusByCode = map[service.Code]int{
	service.ValidationError: http.StatusBadRequest,
	service.InvalidID:       http.StatusBadRequest,
	service.InvalidInput:    http.StatusBadRequest,
	service.AlreadyAnswered: http.StatusBadRequest,
	service.Unauthorized:    http.StatusUnauthorized,
	service.Forbidden:       http.StatusForbidden,
	service.NotFound:        http.StatusNotFound,
	service.Conflict:        http.StatusConflict,
	service.RateLimit:       http.StatusTooManyRequests,
	service.DeliveryFailed:  http.StatusInternalServerError,
	service.ConfigError:     http.StatusInternalServerError,
	service.ServerError:     http.StatusInternalServerError,
}

// serviceError answers with the status matching the code of err.
// Unexpected failures are logged with their cause and answered generically.
func serviceError(w http.ResponseWriter, r *http.Request, code string, err error) {
	serviceErrorAs(w, r, code, err, nil)
}

// serviceErrorAs is serviceError with per-endpoint statuses taking precedence
// over statusByCode. The code in the body is unchanged.
func serviceErrorAs(w http.ResponseWriter, r *http.Request, code string, err error, statuses map[service.Code]int) {
	var e *service.Error
	if !errors.As(err, &e) || e.Code == service.ServerError {
		httpx.LogInternalError(w, r, code, err)
		return
	}

	status, ok := statuses[e.Code]
	if !ok {
		status, ok = statusByCode[e.Code]
	}
	if !ok {
		status = http.StatusInternalServerError
	}
	level := log.DebugLevel
	if status >= 500 {
		level = log.WarnLevel
	}
	log.Logf(level, "%s: %s", code, e)
	httpx.Error(w, r, status, string(e.Code), e.Message, e.Details...)
}

// decodeBody reads the JSON body into v, answering 400 with errCode when it cannot.
func decodeBody(w http.ResponseWriter, r *http.Request, v any, errCode service.Code) bool {
	if err := render.DecodeJSON(r.Body, v); err != nil {
		httpx.LogStatusMsg(w, r, http.StatusBadRequest, log.DebugLevel, "request.parse_body", string(errCode), "invalid JSON body")
		return false
	}
	return true
}

// clientKey identifies the caller for rate limiting.
func clientKey(app app.App) httprate.KeyFunc {
	if app.TrustProxy {
		return httprate.KeyByRealIP
	}
	return httprate.KeyByIP
}

func source(app app.App, r *http.Request) string {
	key, err := clientKey(app)(r)
	if err != nil {
		return r.RemoteAddr
	}
	return key
}
