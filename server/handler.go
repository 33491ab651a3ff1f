package server

import (
	"encoding/json"
	"net/http"

	"github.com/go-chi/chi/v5/middleware"

	"github.com/YuminosukeSato/qsarkit/pkg/log"
)

// appError carries the client-facing message and status next to the
// underlying error, which is only logged.
type appError struct {
	Err     error
	Message string
	Code    int
}

type appHandler func(http.ResponseWriter, *http.Request) *appError

type loggedHandler struct {
	fn     appHandler
	logger log.Logger
}

func (fn appHandler) with(l log.Logger) http.Handler {
	return loggedHandler{fn: fn, logger: l}
}

func (h loggedHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	e := h.fn(w, r)
	if e == nil {
		return
	}
	fields := []any{"status", e.Code, "path", r.URL.Path, "request_id", middleware.GetReqID(r.Context()), "error", e.Err}
	if e.Code >= http.StatusInternalServerError {
		h.logger.Error(e.Message, fields...)
	} else {
		h.logger.Warn(e.Message, fields...)
	}
	writeJSON(w, e.Code, errorBody{Error: e.Message})
}

type errorBody struct {
	Error string `json:"error"`
}

func writeJSON(w http.ResponseWriter, code int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(v)
}
