package api

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/akhil-rao/ap2-aani-demo/internal/audit"
	"github.com/akhil-rao/ap2-aani-demo/internal/gateway"
	"github.com/akhil-rao/ap2-aani-demo/internal/mandate"
	"github.com/akhil-rao/ap2-aani-demo/internal/session"
)

// writeJSON encodes v as JSON and writes it with the given status code.
func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

// writeDownload writes an already-encoded JSON document as an attachment.
func writeDownload(w http.ResponseWriter, filename string, body []byte) {
	w.Header().Set("Content-Type", "application/json")
	w.Header().Set("Content-Disposition", `attachment; filename="`+filename+`"`)
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(body)
}

// errorResponse is the standard error envelope.
type errorResponse struct {
	Error string `json:"error"`
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, errorResponse{Error: msg})
}

// requestError is a malformed request detected by the HTTP layer itself.
type requestError struct {
	msg string
}

func (e *requestError) Error() string { return e.msg }

func badRequest(msg string) error { return &requestError{msg: msg} }

// statusFor maps an operation error to its HTTP status.
func statusFor(err error) int {
	var (
		reqErr   *requestError
		valErr   *mandate.ValidationError
		railErr  *gateway.UnknownRailError
		notFound *mandate.NotFoundError
		stateErr *mandate.InvalidStateError
	)
	switch {
	case errors.As(err, &reqErr), errors.As(err, &valErr), errors.As(err, &railErr):
		return http.StatusBadRequest
	case errors.As(err, &notFound), errors.Is(err, session.ErrSessionNotFound):
		return http.StatusNotFound
	case errors.As(err, &stateErr):
		return http.StatusConflict
	case errors.Is(err, audit.ErrLogFull):
		return http.StatusInsufficientStorage
	case errors.Is(err, session.ErrTooManySessions):
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}

func writeFailure(w http.ResponseWriter, err error) {
	writeError(w, statusFor(err), err.Error())
}
