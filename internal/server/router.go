package server

import (
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
)

// handlerFunc is an HTTP handler that reports failures instead of writing them.
type handlerFunc func(w http.ResponseWriter, r *http.Request) error

// requestError is a client error carrying its HTTP status.
type requestError struct {
	status  int
	message string
}

func (e *requestError) Error() string { return e.message }

func badRequest(format string, args ...any) error {
	return &requestError{status: http.StatusBadRequest, message: fmt.Sprintf(format, args...)}
}

// router dispatches on exact method and path. Anything unmatched is a 404,
// including known paths with the wrong method.
type router struct {
	routes map[string]handlerFunc
	log    *slog.Logger
}

func newRouter(log *slog.Logger) *router {
	return &router{routes: make(map[string]handlerFunc), log: log}
}

func (rt *router) handle(method, path string, h handlerFunc) {
	rt.routes[method+" "+path] = h
}

func (rt *router) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	setCORSHeaders(w.Header())

	defer func() {
		if rec := recover(); rec != nil {
			if rec == http.ErrAbortHandler {
				panic(rec)
			}
			rt.log.ErrorContext(r.Context(), "Handler panicked", "method", r.Method, "path", r.URL.Path, "panic", rec)
			writeJSONError(w, http.StatusInternalServerError, fmt.Sprint(rec))
		}
	}()

	if r.Method == http.MethodOptions {
		w.WriteHeader(http.StatusNoContent)
		return
	}

	h, ok := rt.routes[r.Method+" "+r.URL.Path]
	if !ok {
		w.Header().Set("Content-Type", "text/plain; charset=utf-8")
		w.WriteHeader(http.StatusNotFound)
		_, _ = w.Write([]byte("Not Found"))
		return
	}

	if err := h(w, r); err != nil {
		var reqErr *requestError
		if errors.As(err, &reqErr) {
			writeJSONError(w, reqErr.status, reqErr.message)
			return
		}
		rt.log.ErrorContext(r.Context(), "Request failed", "method", r.Method, "path", r.URL.Path, "error", err)
		writeJSONError(w, http.StatusInternalServerError, err.Error())
	}
}

func setCORSHeaders(h http.Header) {
	h.Set("Access-Control-Allow-Origin", "*")
	h.Set("Access-Control-Allow-Methods", "GET, POST, OPTIONS")
	h.Set("Access-Control-Allow-Headers", "Content-Type")
}

// writeJSON writes a JSON response.
func writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(data)
}

func writeJSONError(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, map[string]string{"error": message})
}
