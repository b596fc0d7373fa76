package httpapi

import (
	"bytes"
	"io"
	"net/http"

	"go.uber.org/zap"

	"github.com/poku-e/invisible-city/internal/city"
)

// NoBuildingsYet is shown as the last addition on an empty city.
const NoBuildingsYet = "--:--:--"

// ---------- Page model ----------

type pageBuilding struct {
	ID    int64
	Type  string
	Label string
	Icon  string
	X     int
	Y     int
}

type pageData struct {
	Buildings []pageBuilding
	Catalog   []city.Entry
	Total     int
	LastAdded string
}

func newPageData(bs []city.Building) pageData {
	pd := pageData{
		Buildings: make([]pageBuilding, 0, len(bs)),
		Catalog:   city.Entries(),
		Total:     len(bs),
		LastAdded: NoBuildingsYet,
	}
	for _, b := range bs {
		pd.Buildings = append(pd.Buildings, pageBuilding{
			ID:    b.ID,
			Type:  b.Type,
			Label: city.Label(b.Type),
			Icon:  city.IconFor(b.Type),
			X:     b.X,
			Y:     b.Y,
		})
	}
	if last, ok := city.LastAddition(bs); ok {
		pd.LastAdded = last.UTC().Format(city.ClockLayout)
	}
	return pd
}

// RenderPage writes the full city document for bs.
func RenderPage(w io.Writer, bs []city.Building) error {
	return indexTmpl.Execute(w, newPageData(bs))
}

func (s *Server) handleIndex(w http.ResponseWriter, r *http.Request) {
	bs, err := s.store.ListAll(r.Context())
	if err != nil {
		s.logger.Error("list buildings failed", zap.Error(err))
		http.Error(w, "could not load city", http.StatusInternalServerError)
		return
	}

	var buf bytes.Buffer
	if err := RenderPage(&buf, bs); err != nil {
		s.logger.Error("template error", zap.Error(err))
		http.Error(w, "template error", http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	if _, err := w.Write(buf.Bytes()); err != nil {
		s.logger.Warn("error writing response", zap.Error(err))
	}
}
