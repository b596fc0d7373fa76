// Package city holds the building record and the static icon catalog
// shared by the store, the HTTP layer and the snapshot tool.
package city

import (
	"fmt"
	"time"
)

// TimeLayout is the wire format for building timestamps.
const TimeLayout = "2006-01-02 15:04:05"

// ClockLayout is what the page shows for the last addition.
const ClockLayout = "15:04:05"

// ---------- Data model ----------

// Building is one placed city element. Records are append-only: the
// store assigns ID and CreatedAt and nothing changes them afterwards.
type Building struct {
	ID          int64
	Type        string
	Description string
	CreatedAt   time.Time
	X           int
	Y           int
}

// NewBuilding is what a visitor submits.
type NewBuilding struct {
	Type        string
	Description string
	X           int
	Y           int
}

// Record is the JSON shape served by the API.
type Record struct {
	ID          int64  `json:"id"`
	Type        string `json:"type"`
	Description string `json:"description"`
	Timestamp   string `json:"timestamp"`
	X           int    `json:"x_position"`
	Y           int    `json:"y_position"`
	Icon        string `json:"icon,omitempty"`
}

func (b Building) Record() Record {
	return Record{
		ID:          b.ID,
		Type:        b.Type,
		Description: b.Description,
		Timestamp:   b.CreatedAt.UTC().Format(TimeLayout),
		X:           b.X,
		Y:           b.Y,
		Icon:        IconFor(b.Type),
	}
}

// Building converts a decoded record back. An empty timestamp leaves
// CreatedAt zero.
func (r Record) Building() (Building, error) {
	b := Building{
		ID:          r.ID,
		Type:        r.Type,
		Description: r.Description,
		X:           r.X,
		Y:           r.Y,
	}
	if r.Timestamp != "" {
		ts, err := time.ParseInLocation(TimeLayout, r.Timestamp, time.UTC)
		if err != nil {
			return Building{}, fmt.Errorf("building %d: bad timestamp %q: %w", r.ID, r.Timestamp, err)
		}
		b.CreatedAt = ts
	}
	return b, nil
}

// LastAddition returns the newest CreatedAt among bs. ok is false when
// bs is empty.
func LastAddition(bs []Building) (last time.Time, ok bool) {
	for _, b := range bs {
		if !ok || b.CreatedAt.After(last) {
			last = b.CreatedAt
			ok = true
		}
	}
	return last, ok
}
