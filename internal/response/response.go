package response

import (
	"net/http"

	"github.com/goccy/go-json"
	"github.com/rs/zerolog/log"

	"github.com/otcheredev/clinic-gate/internal/apperror"
)

const contentTypeJSON = "application/json"

// Envelope is the body of every API response
type Envelope struct {
	Success bool        `json:"success"`
	Message string      `json:"message,omitempty"`
	Code    string      `json:"code,omitempty"`
	Data    interface{} `json:"data,omitempty"`
}

// Success writes a success envelope
func Success(w http.ResponseWriter, status int, message string, data interface{}) {
	write(w, status, Envelope{Success: true, Message: message, Data: data})
}

// Error writes the error envelope for err. Untyped errors are logged and
// answered with 500 INTERNAL_ERROR without leaking their text.
func Error(w http.ResponseWriter, r *http.Request, err error) {
	appErr, ok := apperror.As(err)
	if !ok {
		log.Error().
			Err(err).
			Str("method", r.Method).
			Str("path", r.URL.Path).
			Msg("Unhandled error")
		write(w, http.StatusInternalServerError, Envelope{
			Message: "internal server error",
			Code:    apperror.CodeInternal,
		})
		return
	}

	status := appErr.Status()
	if status >= http.StatusInternalServerError {
		log.Error().
			Err(err).
			Str("code", appErr.Code).
			Str("path", r.URL.Path).
			Msg("Request failed")
	}
	write(w, status, Envelope{Message: appErr.Message, Code: appErr.Code})
}

func write(w http.ResponseWriter, status int, body Envelope) {
	w.Header().Set("Content-Type", contentTypeJSON)
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(body); err != nil {
		log.Error().Err(err).Msg("Failed to encode response")
	}
}
