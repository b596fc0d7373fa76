// Package httpapi serves the city page and its JSON API.
package httpapi

import (
	"encoding/json"
	"net/http"

	"go.uber.org/zap"

	"github.com/poku-e/invisible-city/internal/notify"
	"github.com/poku-e/invisible-city/internal/store"
)

// max accepted create body
const maxBodyBytes = 64 << 10

type Server struct {
	store   store.Store
	events  notify.Publisher
	logger  *zap.Logger
	mux     *http.ServeMux
	handler http.Handler
}

// New wires the routes. events may be nil.
func New(st store.Store, events notify.Publisher, logger *zap.Logger) *Server {
	if events == nil {
		events = notify.Nop{}
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	s := &Server{
		store:  st,
		events: events,
		logger: logger,
		mux:    http.NewServeMux(),
	}
	s.routes()
	s.handler = withRequestLog(logger, withCommonHeaders(s.mux))
	return s
}

func (s *Server) routes() {
	// City UI
	s.mux.HandleFunc("GET /{$}", s.handleIndex)

	// Buildings API
	s.mux.HandleFunc("POST /add", s.handleAdd)
	s.mux.HandleFunc("GET /api/buildings", s.handleList)
	s.mux.HandleFunc("GET /api/building/{id}", s.handleGet)
	s.mux.HandleFunc("GET /api/catalog", s.handleCatalog)

	s.mux.HandleFunc("GET /export.xlsx", s.handleExport)
	s.mux.HandleFunc("GET /healthz", s.handleHealth)
}

// ServeHTTP runs the mux behind the access log and CORS layers.
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.handler.ServeHTTP(w, r)
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}
