package httputil

import (
	"encoding/json"
	"log"
	"net/http"

	"github.com/redmonkez12/cicero/internal/apperr"
	"github.com/redmonkez12/cicero/internal/logging"
)

// ErrorResponse is the uniform apology body returned for every failure.
type ErrorResponse struct {
	Error  string `json:"error"`
	Code   string `json:"code,omitempty"`
	Status int    `json:"status,omitempty"`
}

// RespondJSON sends a JSON response with the given status code.
// Logs encoding errors to avoid silent failures.
func RespondJSON(w http.ResponseWriter, data any, statusCode int) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	if err := json.NewEncoder(w).Encode(data); err != nil {
		log.Printf("ERROR: failed to encode JSON response: %v", err)
	}
}

// RespondErrorWithCode sends a JSON error response with a machine-readable error code.
func RespondErrorWithCode(w http.ResponseWriter, message string, code string, statusCode int) {
	RespondJSON(w, ErrorResponse{Error: message, Code: code, Status: statusCode}, statusCode)
}

// Apology builds the response body for err.
func Apology(err error) ErrorResponse {
	e := apperr.From(err)
	status := e.HTTPStatus()
	msg := e.Message
	if e.Kind == apperr.KindInternal {
		msg = http.StatusText(status)
	}
	return ErrorResponse{Error: msg, Code: string(e.Kind), Status: status}
}

// RespondApology renders err as the uniform apology. Internal causes are
// logged with the request logger and never sent to the caller.
func RespondApology(w http.ResponseWriter, r *http.Request, err error) {
	body := Apology(err)

	logger := logging.GetLoggerFromContext(r.Context())
	if body.Status >= http.StatusInternalServerError {
		logger.Error("request failed", "code", body.Code, "error", err.Error())
	} else {
		logger.Warn("request rejected", "code", body.Code, "error", err.Error())
	}

	RespondJSON(w, body, body.Status)
}
