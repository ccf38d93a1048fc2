package server

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/charmbracelet/log"

	"github.com/calliope-fm/calliope/internal/shared"
)

// errorBody is the JSON shape of every non-2xx response.
type errorBody struct {
	Error string `json:"error"`
}

// statusFor translates domain error kinds into HTTP status codes. Unknown
// errors are internal.
func statusFor(err error) int {
	switch {
	case errors.Is(err, shared.ErrUserNotFound),
		errors.Is(err, shared.ErrAlbumNotFound),
		errors.Is(err, shared.ErrTrackNotFound),
		errors.Is(err, shared.ErrGenreNotFound),
		errors.Is(err, shared.ErrPlaylistNotFound),
		errors.Is(err, shared.ErrPlaylistTrackNotFound),
		errors.Is(err, shared.ErrSubscriptionNotFound),
		errors.Is(err, shared.ErrMusicFileNotFound),
		errors.Is(err, shared.ErrImageFileNotFound),
		errors.Is(err, shared.ErrQueueNotFound),
		errors.Is(err, shared.ErrActivityNotFound),
		errors.Is(err, shared.ErrEventNotFound):
		return http.StatusNotFound
	case errors.Is(err, shared.ErrUserAlreadyExists),
		errors.Is(err, shared.ErrGenreNameAlreadyExists),
		errors.Is(err, shared.ErrSubscriptionAlreadyExists),
		errors.Is(err, shared.ErrPlaylistTrackAlreadyExists),
		errors.Is(err, shared.ErrInvalidInput):
		return http.StatusBadRequest
	case errors.Is(err, shared.ErrUnauthorized):
		return http.StatusUnauthorized
	case errors.Is(err, shared.ErrForbidden):
		return http.StatusForbidden
	case errors.Is(err, shared.ErrInvalidStart):
		return http.StatusRequestedRangeNotSatisfiable
	}
	return http.StatusInternalServerError
}

func respondJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if body != nil {
		json.NewEncoder(w).Encode(body)
	}
}

// respondError writes the translated status. Internal errors are logged and
// masked; domain errors carry their message through.
func respondError(w http.ResponseWriter, logger *log.Logger, err error) {
	status := statusFor(err)
	msg := err.Error()
	if status == http.StatusInternalServerError {
		logger.Error("internal error", "error", err)
		msg = "internal server error"
	}
	respondJSON(w, status, errorBody{Error: msg})
}

// unprocessable reports a missing required field.
func unprocessable(w http.ResponseWriter, msg string) {
	respondJSON(w, http.StatusUnprocessableEntity, errorBody{Error: msg})
}

// badRequest reports malformed input the decoder caught before any DTO existed.
func badRequest(w http.ResponseWriter, msg string) {
	respondJSON(w, http.StatusBadRequest, errorBody{Error: msg})
}

// decodeJSON parses a request body into dst, rejecting unknown shapes softly.
func decodeJSON(r *http.Request, dst any) error {
	return json.NewDecoder(r.Body).Decode(dst)
}
