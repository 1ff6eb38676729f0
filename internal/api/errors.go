package api

import (
	"encoding/json"
	"errors"
	"net/http"

	"aida/internal/domain"
)

// ErrorBody is the JSON shape of every error response.
type ErrorBody struct {
	Code    int                 `json:"code"`
	Kind    string              `json:"kind"`
	Message string              `json:"message"`
	Errors  []domain.FieldError `json:"errors,omitempty"`
}

// httpStatusFromKind maps a domain error kind to an HTTP status code.
func httpStatusFromKind(kind string) int {
	switch kind {
	case domain.KindValidationFailed:
		return http.StatusBadRequest
	case domain.KindUnauthenticated:
		return http.StatusUnauthorized
	case domain.KindForbidden:
		return http.StatusForbidden
	case domain.KindNotFound:
		return http.StatusNotFound
	case domain.KindConflict:
		return http.StatusConflict
	case domain.KindPayloadTooLarge:
		return http.StatusRequestEntityTooLarge
	default:
		return http.StatusInternalServerError
	}
}

// errorBody builds the response for err. Server-side faults get a fixed
// message; the cause is only logged.
func errorBody(err error) ErrorBody {
	var mbe *http.MaxBytesError
	if errors.As(err, &mbe) && domain.KindOf(err) != domain.KindPayloadTooLarge {
		err = &domain.PayloadTooLargeError{Limit: mbe.Limit}
	}

	kind := domain.KindOf(err)
	body := ErrorBody{Code: httpStatusFromKind(kind), Kind: kind, Message: err.Error()}
	var ve *domain.ValidationError
	if errors.As(err, &ve) {
		body.Errors = ve.Fields
	}
	// malformed content keeps the parser's message and line
	switch kind {
	case domain.KindIOFailure:
		body.Message = "Failed to read or store the uploaded file"
	case domain.KindPersistenceFailure:
		body.Message = "Failed to save data"
	case domain.KindInternal:
		body.Message = "Internal server error"
	}
	return body
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func (h *Handler) writeError(w http.ResponseWriter, r *http.Request, err error) {
	body := errorBody(err)
	if body.Code >= http.StatusInternalServerError {
		h.logger.ErrorContext(r.Context(), "request failed",
			"method", r.Method, "path", r.URL.Path, "kind", body.Kind,
			"request_id", domain.RequestIDFromContext(r.Context()), "error", err)
	}
	writeJSON(w, body.Code, body)
}
