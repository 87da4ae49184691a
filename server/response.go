package server

import (
	"encoding/json"
	"net/http"

	"kwadrop/apperr"
	"kwadrop/logger"
)

// StatusDisambiguation is returned when add_song got a search phrase and
// answers with a candidate list, asking the client to retry with a concrete
// link.
const StatusDisambiguation = 449

// errorBody is the structured error payload.
type errorBody struct {
	StatusCode int    `json:"status_code"`
	Detail     string `json:"detail"`
}

// writeJSON writes v as a JSON response.
func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if v != nil {
		if err := json.NewEncoder(w).Encode(v); err != nil {
			logger.Error("failed to encode response", logger.ErrorField(err))
		}
	}
}

// writeError maps an application error to its HTTP status.
func writeError(w http.ResponseWriter, err error) {
	status := http.StatusInternalServerError
	switch apperr.KindOf(err) {
	case apperr.KindNotFound:
		status = http.StatusNotFound
	case apperr.KindForbidden:
		status = http.StatusForbidden
	case apperr.KindConflict:
		status = http.StatusConflict
	case apperr.KindBadRequest:
		status = http.StatusBadRequest
	}
	if status == http.StatusInternalServerError {
		logger.Error("internal error", logger.ErrorField(err))
	}
	writeJSON(w, status, errorBody{StatusCode: status, Detail: apperr.DetailOf(err)})
}
