package httpapi

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"time"

	"go.uber.org/zap"

	"github.com/poku-e/invisible-city/internal/city"
	"github.com/poku-e/invisible-city/internal/export"
	"github.com/poku-e/invisible-city/internal/store"
)

// createReq uses pointers so a missing field can be told apart from a
// zero value.
type createReq struct {
	Type        *string `json:"type"`
	Description *string `json:"description"`
	X           *int    `json:"x_position"`
	Y           *int    `json:"y_position"`
}

func (req createReq) validate() (city.NewBuilding, error) {
	switch {
	case req.Type == nil:
		return city.NewBuilding{}, errors.New("missing field: type")
	case req.X == nil:
		return city.NewBuilding{}, errors.New("missing field: x_position")
	case req.Y == nil:
		return city.NewBuilding{}, errors.New("missing field: y_position")
	}
	// stored exactly as submitted, whitespace and empty strings included
	nb := city.NewBuilding{
		Type: *req.Type,
		X:    *req.X,
		Y:    *req.Y,
	}
	if req.Description != nil {
		nb.Description = *req.Description
	}
	return nb, nil
}

func (s *Server) handleAdd(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, maxBodyBytes)

	var req createReq
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid json")
		return
	}
	nb, err := req.validate()
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	b, err := s.store.Insert(r.Context(), nb)
	if err != nil {
		s.logger.Error("insert building failed", zap.Error(err), zap.String("type", nb.Type))
		writeError(w, http.StatusInternalServerError, "could not save building")
		return
	}
	s.logger.Info("building added",
		zap.Int64("id", b.ID),
		zap.String("type", b.Type),
		zap.Int("x", b.X),
		zap.Int("y", b.Y),
	)

	// best-effort; the building is already stored
	if err := s.events.BuildingAdded(r.Context(), b); err != nil {
		s.logger.Warn("publish building event failed", zap.Error(err), zap.Int64("id", b.ID))
	}

	writeJSON(w, http.StatusOK, b.Record())
}

func (s *Server) handleList(w http.ResponseWriter, r *http.Request) {
	bs, err := s.store.ListAll(r.Context())
	if err != nil {
		s.logger.Error("list buildings failed", zap.Error(err))
		writeError(w, http.StatusInternalServerError, "could not load buildings")
		return
	}
	out := make([]city.Record, 0, len(bs))
	for _, b := range bs {
		out = append(out, b.Record())
	}
	writeJSON(w, http.StatusOK, out)
}

func (s *Server) handleGet(w http.ResponseWriter, r *http.Request) {
	id, err := strconv.ParseInt(r.PathValue("id"), 10, 64)
	if err != nil {
		writeError(w, http.StatusNotFound, store.ErrNotFound.Error())
		return
	}

	b, err := s.store.GetByID(r.Context(), id)
	if errors.Is(err, store.ErrNotFound) {
		writeError(w, http.StatusNotFound, store.ErrNotFound.Error())
		return
	}
	if err != nil {
		s.logger.Error("get building failed", zap.Error(err), zap.Int64("id", id))
		writeError(w, http.StatusInternalServerError, "could not load building")
		return
	}
	writeJSON(w, http.StatusOK, b.Record())
}

func (s *Server) handleCatalog(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, city.Entries())
}

func (s *Server) handleExport(w http.ResponseWriter, r *http.Request) {
	bs, err := s.store.ListAll(r.Context())
	if err != nil {
		s.logger.Error("list buildings failed", zap.Error(err))
		writeError(w, http.StatusInternalServerError, "could not load buildings")
		return
	}

	var buf bytes.Buffer
	if err := export.WriteXLSX(&buf, bs); err != nil {
		s.logger.Error("export failed", zap.Error(err))
		writeError(w, http.StatusInternalServerError, "export failed")
		return
	}
	w.Header().Set("Content-Type", "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet")
	w.Header().Set("Content-Disposition", `attachment; filename="invisible-city.xlsx"`)
	if _, err := w.Write(buf.Bytes()); err != nil {
		s.logger.Warn("error writing response", zap.Error(err))
	}
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
	defer cancel()
	if err := s.store.Ping(ctx); err != nil {
		s.logger.Warn("store ping failed", zap.Error(err))
		writeJSON(w, http.StatusServiceUnavailable, map[string]string{"status": "unavailable"})
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}
