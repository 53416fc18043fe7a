package api

import (
	"encoding/json"
	"net/http"

	"github.com/nerrad567/gray-logic-wiz/internal/bridges/wiz"
)

// Codes for failures the API raises before any verb runs. They travel in
// the envelope's "code" field next to success and message.
const (
	ErrCodeBadRequest     = "bad_request"
	ErrCodeNotFound       = "not_found"
	ErrCodeInternal       = "internal_error"
	ErrCodeMethodNotAllow = "method_not_allowed"
)

// writeJSON writes a JSON response with the given status code and payload.
func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if v != nil {
		//nolint:errcheck // Best-effort write to response; connection may be closed
		json.NewEncoder(w).Encode(v)
	}
}

// writeError writes a failure envelope, {"success": false, "message": ...},
// tagged with code.
func writeError(w http.ResponseWriter, status int, code, message string) {
	writeJSON(w, status, wiz.Envelope{
		"success": false,
		"message": message,
		"code":    code,
	})
}

func writeBadRequest(w http.ResponseWriter, message string) {
	writeError(w, http.StatusBadRequest, ErrCodeBadRequest, message)
}

func writeNotFound(w http.ResponseWriter, message string) {
	writeError(w, http.StatusNotFound, ErrCodeNotFound, message)
}

func writeInternalError(w http.ResponseWriter, message string) {
	writeError(w, http.StatusInternalServerError, ErrCodeInternal, message)
}
