package handlers

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	"github.com/tutorvox/tutorvox/pkg/core"
	"github.com/tutorvox/tutorvox/pkg/gateway/mw"
	"github.com/tutorvox/tutorvox/pkg/store"
)

type errorEnvelope struct {
	Error *core.Error `json:"error"`
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

// writeError renders any error as the JSON error envelope. Store sentinels
// and typed errors map to their natural status codes; everything else is a
// 500 with a generic message so internals never leak to clients.
func writeError(w http.ResponseWriter, r *http.Request, logger *slog.Logger, err error) {
	reqID, _ := mw.RequestIDFrom(r.Context())

	var coreErr *core.Error
	switch {
	case errors.As(err, &coreErr):
		// keep it
	case errors.Is(err, store.ErrNotFound):
		coreErr = core.NewNotFoundError("resource not found")
	case errors.Is(err, store.ErrEmailTaken):
		coreErr = core.NewInvalidRequestErrorWithParam("email already registered", "email")
	default:
		if logger != nil {
			logger.Error("internal error", "request_id", reqID, "error", err)
		}
		coreErr = core.NewAPIError("internal error")
	}
	if coreErr.RequestID == "" {
		coreErr.RequestID = reqID
	}

	writeJSON(w, statusFor(coreErr.Type), errorEnvelope{Error: coreErr})
}

func statusFor(t core.ErrorType) int {
	switch t {
	case core.ErrInvalidRequest:
		return http.StatusBadRequest
	case core.ErrAuthentication:
		return http.StatusUnauthorized
	case core.ErrPermission:
		return http.StatusForbidden
	case core.ErrNotFound:
		return http.StatusNotFound
	default:
		return http.StatusInternalServerError
	}
}

// decodeJSON reads a request body into dst, enforcing the body size cap and
// rejecting unknown fields.
func decodeJSON(w http.ResponseWriter, r *http.Request, maxBytes int64, dst any) error {
	r.Body = http.MaxBytesReader(w, r.Body, maxBytes)
	dec := json.NewDecoder(r.Body)
	dec.DisallowUnknownFields()
	if err := dec.Decode(dst); err != nil {
		return core.NewInvalidRequestError("invalid request body")
	}
	return nil
}
