package api

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/mcdev12/tablematch/go/internal/table"
	"github.com/rs/zerolog/log"
)

type errorResponse struct {
	Error string `json:"error"`
}

// statusFor maps a rejection class to an HTTP status.
func statusFor(err error) int {
	switch {
	case errors.Is(err, table.ErrValidation):
		return http.StatusBadRequest
	case errors.Is(err, table.ErrTeamNotFound):
		return http.StatusNotFound
	case errors.Is(err, table.ErrWrongPassword):
		return http.StatusUnauthorized
	case errors.Is(err, table.ErrIllegalTransition),
		errors.Is(err, table.ErrNotInGame),
		errors.Is(err, table.ErrScoreMismatch):
		return http.StatusConflict
	default:
		return http.StatusInternalServerError
	}
}

func writeError(w http.ResponseWriter, err error) {
	status := statusFor(err)
	if status == http.StatusInternalServerError {
		log.Error().Err(err).Msg("request failed")
		writeMessage(w, status, "Something went wrong, please try again")
		return
	}
	writeMessage(w, status, table.RejectionMessage(err))
}

func writeMessage(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, errorResponse{Error: msg})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		log.Error().Err(err).Msg("failed to encode response")
	}
}
