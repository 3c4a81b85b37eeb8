package httpx

import (
	"fmt"
	"net/http"

	"github.com/go-chi/render"

	"github.com/kentoooo/mellowq/log"
)

type ErrorBody struct {
	Code    string   `json:"code"`
	Message string   `json:"message"`
	Details []string `json:"details,omitempty"`
}

type errorEnvelope struct {
	Error ErrorBody `json:"error"`
}

// JSON sends v with the given status.
func JSON(w http.ResponseWriter, r *http.Request, status int, v any) {
	render.Status(r, status)
	render.JSON(w, r, v)
}

// Error sends the error envelope {"error": {code, message, details}}.
func Error(w http.ResponseWriter, r *http.Request, status int, code, message string, details ...string) {
	JSON(w, r, status, errorEnvelope{ErrorBody{Code: code, Message: message, Details: details}})
}

// Will log an error, and send an HTTP response with status 500 and a generic message
func LogInternalError(w http.ResponseWriter, r *http.Request, code string, err error) {
	log.Errorf("%s: %s", code, err)
	Error(w, r, http.StatusInternalServerError, "SERVER_ERROR", "internal server error")
}

// Will log an error code and message at the given level,
// and send an HTTP response with the given status and formatted message
func LogStatusMsg(w http.ResponseWriter, r *http.Request, status int, level log.Level, code string, errCode string, msg string, args ...any) {
	errMsg := fmt.Sprintf(msg, args...)
	log.Log(level, code+": ", errMsg)
	Error(w, r, status, errCode, errMsg)
}
