package web

// errors.go turns handler errors into responses.
//
// The technical error is logged with the request id; the client gets the
// message from core.MapError, rendered as an HTMX fragment, JSON, or a full
// page depending on the request. Server errors are also sent to Sentry
// when it is configured.

import (
	"encoding/json"
	"errors"
	"net/http"
	"strings"

	"github.com/JonMunkholm/claimdesk/internal/auth"
	"github.com/JonMunkholm/claimdesk/internal/core"
	"github.com/JonMunkholm/claimdesk/internal/logging"
	"github.com/JonMunkholm/claimdesk/internal/telemetry"
	"github.com/JonMunkholm/claimdesk/internal/web/templates"
)

var (
	errPageNotFound = errors.New("page not found")
	errInvalidID    = errors.New("invalid integer id")
	errNoFile       = errors.New("no file provided")
	errFileTooLarge = errors.New("file too large")
)

// ErrorResponse is the JSON body of an API error.
type ErrorResponse struct {
	Error   string `json:"error"`
	Message string `json:"message"`
	Action  string `json:"action,omitempty"`
	Code    string `json:"code"`
}

// statusFor picks the HTTP status for err.
func statusFor(err error) int {
	var (
		fe *core.FormatError
		ve core.ValidationError
		mb *http.MaxBytesError
	)
	switch {
	case errors.Is(err, errPageNotFound), core.IsNotFound(err):
		return http.StatusNotFound
	case errors.Is(err, core.ErrImportBusy):
		return http.StatusTooManyRequests
	case errors.Is(err, auth.ErrInvalidCredentials):
		return http.StatusUnauthorized
	case errors.Is(err, core.ErrUsernameTaken):
		return http.StatusConflict
	case errors.As(err, &mb), errors.Is(err, errFileTooLarge):
		return http.StatusRequestEntityTooLarge
	case errors.As(err, &fe), errors.As(err, &ve),
		errors.Is(err, auth.ErrInvalidRegistration),
		errors.Is(err, errInvalidID), errors.Is(err, errNoFile):
		return http.StatusBadRequest
	}
	return http.StatusInternalServerError
}

// fail responds with the status statusFor picks.
func (s *Server) fail(w http.ResponseWriter, r *http.Request, err error) {
	s.respondError(w, r, err, statusFor(err))
}

// respondError logs err and writes the user-facing message in the format
// the client expects.
func (s *Server) respondError(w http.ResponseWriter, r *http.Request, err error, statusCode int) {
	userMsg := core.MapError(err)
	if errors.Is(err, errPageNotFound) {
		userMsg = core.UserMessage{Message: "Page not found", Code: "WEB404"}
	}

	log := logging.FromContext(r.Context())
	attrs := []any{
		"path", r.URL.Path,
		"method", r.Method,
		"status", statusCode,
		"error", err.Error(),
		"code", userMsg.Code,
	}
	if statusCode >= http.StatusInternalServerError {
		log.Error("request error", attrs...)
		telemetry.CaptureError(r.Context(), err, "web")
	} else {
		log.Warn("request error", attrs...)
	}

	switch {
	case isHTMX(r):
		s.render(w, r, statusCode, templates.ErrorAlert(userMsg.Message, userMsg.Action, userMsg.Code))
	case wantsJSON(r):
		writeJSON(w, r, statusCode, ErrorResponse{
			Error:   userMsg.Message,
			Message: userMsg.Message,
			Action:  userMsg.Action,
			Code:    userMsg.Code,
		})
	default:
		s.render(w, r, statusCode, templates.ErrorPage(http.StatusText(statusCode), userMsg.Message, userMsg.Action, userMsg.Code))
	}
}

// writeJSON encodes v with the given status. Encoding errors are only
// logged since the header is already sent.
func writeJSON(w http.ResponseWriter, r *http.Request, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		logging.FromContext(r.Context()).Error("json encode failed", "error", err)
	}
}

func isHTMX(r *http.Request) bool {
	return r.Header.Get("HX-Request") == "true"
}

// wantsJSON reports whether the client prefers JSON. API routes always do.
func wantsJSON(r *http.Request) bool {
	if strings.HasPrefix(r.URL.Path, "/api/") {
		return true
	}
	return strings.Contains(r.Header.Get("Accept"), "application/json") ||
		strings.Contains(r.Header.Get("Content-Type"), "application/json")
}
