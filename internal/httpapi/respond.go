package httpapi

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"

	"credvault.org/internal/apperr"
)

// envelope is the uniform response shape. Every error response carries the
// flag, the numeric status and one human-readable message; success responses
// add the payload under data.
type envelope struct {
	IsError bool   `json:"is_error"`
	Status  int    `json:"status"`
	Message string `json:"message"`
	Data    any    `json:"data,omitempty"`
}

func writeJSON(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(v)
}

func respond(w http.ResponseWriter, code int, message string, data any) {
	writeJSON(w, code, envelope{IsError: false, Status: code, Message: message, Data: data})
}

func respondError(w http.ResponseWriter, code int, message string) {
	writeJSON(w, code, envelope{IsError: true, Status: code, Message: message})
}

// respondAppError maps a service error onto the envelope. Messages come from
// the taxonomy; internal causes never leak.
func respondAppError(w http.ResponseWriter, err error) {
	respondError(w, apperr.StatusOf(err), apperr.MessageOf(err))
}

func decodeJSON(r *http.Request, dst any) error {
	dec := json.NewDecoder(r.Body)
	dec.DisallowUnknownFields()
	if err := dec.Decode(dst); err != nil {
		if errors.Is(err, io.EOF) {
			return apperr.Validation("body", "request body is required")
		}
		return apperr.Validation("body", "malformed request body")
	}
	return nil
}
