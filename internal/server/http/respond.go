package httpserver

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/and161185/hogar/internal/errs"
	"go.uber.org/zap"
)

// unauthorizedMsg is the only text ever returned with a 401.
const unauthorizedMsg = "invalid or expired credentials"

// ErrorResponse is the body of every failed request.
type ErrorResponse struct {
	Error string `json:"error"`
	Code  string `json:"code,omitempty"`
}

var classes = []struct {
	class  error
	status int
	code   string
}{
	{errs.ErrUnauthorized, http.StatusUnauthorized, "unauthorized"},
	{errs.ErrForbidden, http.StatusForbidden, "forbidden"},
	{errs.ErrNotFound, http.StatusNotFound, "not_found"},
	{errs.ErrConflict, http.StatusConflict, "conflict"},
	{errs.ErrBadRequest, http.StatusBadRequest, "bad_request"},
	{errs.ErrRateLimited, http.StatusTooManyRequests, "rate_limited"},
}

func respondJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if data == nil {
		return
	}
	_ = json.NewEncoder(w).Encode(data)
}

func respondNoContent(w http.ResponseWriter) {
	w.WriteHeader(http.StatusNoContent)
}

// respondError maps an error class to its status. Unclassified errors are
// logged and answered with a generic 500.
func respondError(w http.ResponseWriter, log *zap.Logger, err error) {
	for _, c := range classes {
		if !errors.Is(err, c.class) {
			continue
		}
		msg := c.class.Error()
		var e *errs.Error
		if errors.As(err, &e) {
			msg = e.Msg
		}
		if c.status == http.StatusUnauthorized {
			msg = unauthorizedMsg
		}
		respondJSON(w, c.status, ErrorResponse{Error: msg, Code: c.code})
		return
	}
	log.Error("request failed", zap.Error(err))
	respondJSON(w, http.StatusInternalServerError, ErrorResponse{Error: "internal", Code: "internal"})
}
