package handler

// RESPONSE HELPERS:
// Every handler answers through writeJSON and writeError so the API has one
// shape for success and one for failure:
//
//	writeJSON(w, http.StatusOK, post)
//	writeError(w, h.logger, err)
//
// ERROR FORMAT:
//
//	{"error": "not_found", "message": "post not found with id abc123"}
//	{"error": "validation_error", "message": "content is required", "field": "content"}
//
// The service layer returns apperror values; this file is the only place
// they are turned into HTTP status codes.

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/keepup/keepup-api/internal/apperror"
	"github.com/keepup/keepup-api/internal/auth"
	"github.com/keepup/keepup-api/internal/repository"
)

// ErrorResponse is the body of every non-2xx response.
type ErrorResponse struct {
	Error   string `json:"error"`           // Machine-readable error type (e.g., "not_found")
	Message string `json:"message"`         // Human-readable description
	Field   string `json:"field,omitempty"` // Offending input field, for validation and conflicts
}

// MessageResponse is returned by endpoints with nothing else to say.
type MessageResponse struct {
	Message string `json:"message"`
}

// writeJSON sends a JSON response with the given status code.
//
// Headers and status must be written before the body; once Encode writes,
// later header changes are silently dropped.
func writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if data != nil {
		if err := json.NewEncoder(w).Encode(data); err != nil {
			// Headers are already sent, all we can do is log.
			slog.Error("failed to encode JSON response", slog.String("error", err.Error()))
		}
	}
}

// writeError maps a domain error to its HTTP status and sends it.
//
// errors.As finds the *AppError anywhere in the chain, so a service error
// wrapped as fmt.Errorf("service/post: %w", apperror.NotFound(...)) still
// maps to 404. Anything that is not an AppError is a 500: the cause is
// logged and the client gets a generic message, never SQL or driver text.
func writeError(w http.ResponseWriter, logger *slog.Logger, err error) {
	var appErr *apperror.AppError
	if errors.As(err, &appErr) {
		status, code := statusFor(err)
		writeJSON(w, status, ErrorResponse{
			Error:   code,
			Message: appErr.Message,
			Field:   appErr.Field,
		})
		return
	}

	logger.Error("internal error", slog.String("error", err.Error()))
	writeJSON(w, http.StatusInternalServerError, ErrorResponse{
		Error:   "internal_error",
		Message: "An internal error occurred",
	})
}

func statusFor(err error) (int, string) {
	switch {
	case errors.Is(err, apperror.ErrValidation):
		return http.StatusBadRequest, "validation_error"
	case errors.Is(err, apperror.ErrUnauthorized):
		return http.StatusUnauthorized, "unauthorized"
	case errors.Is(err, apperror.ErrForbidden):
		return http.StatusForbidden, "forbidden"
	case errors.Is(err, apperror.ErrNotFound):
		return http.StatusNotFound, "not_found"
	case errors.Is(err, apperror.ErrConflict):
		return http.StatusConflict, "conflict"
	default:
		return http.StatusInternalServerError, "internal_error"
	}
}

// viewerID returns the authenticated caller, or "" on routes behind
// OptionalAuth when no token was sent.
func viewerID(r *http.Request) string {
	id, _ := auth.UserIDFromContext(r.Context())
	return id
}

// checkActor enforces the acting-user rule: a body that names a user
// (userId, authorId) must name the caller.
func checkActor(actorID, claimed string) error {
	if claimed != "" && claimed != actorID {
		return apperror.Forbidden("you can only act as yourself")
	}
	return nil
}

// listOptions reads ?limit and ?offset. Missing values fall back to the
// repository defaults; non-numbers are a 400.
func listOptions(r *http.Request) (repository.ListOptions, error) {
	var opts repository.ListOptions
	q := r.URL.Query()
	if v := q.Get("limit"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil {
			return opts, apperror.ValidationFailed("limit", "limit must be a number")
		}
		opts.Limit = n
	}
	if v := q.Get("offset"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil {
			return opts, apperror.ValidationFailed("offset", "offset must be a number")
		}
		opts.Offset = n
	}
	return opts, nil
}
