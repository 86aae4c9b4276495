package model

import (
	"time"
)

// Source identifies which campus log an event came from.
type Source string

const (
	SourceNote    Source = "note"
	SourceDevice  Source = "device"
	SourceBooking Source = "booking"
	SourceFrame   Source = "frame"
	SourceCard    Source = "card"
	SourceLibrary Source = "library"
)

// EntityKeyed reports whether events from this source already carry the
// canonical entity id as their identifier.
func (s Source) EntityKeyed() bool {
	switch s {
	case SourceBooking, SourceLibrary, SourceNote:
		return true
	default:
		return false
	}
}

// Event is a single observation read from a source file, before identity
// resolution. TempID is whatever identifier the source uses (badge, device
// hash, face id, or entity id).
type Event struct {
	TempID     string    `json:"temp_id"`
	Timestamp  time.Time `json:"timestamp"`
	LocationID string    `json:"location_id"`
	Source     Source    `json:"source"`
}

// ResolvedEvent is an Event mapped to its canonical entity.
type ResolvedEvent struct {
	Event
	EntityID string `json:"entity_id"`
}

// Profile maps one canonical entity id to its auxiliary identifiers.
type Profile struct {
	EntityID   string            `json:"entity_id"`
	CardID     string            `json:"card_id,omitempty"`
	DeviceHash string            `json:"device_hash,omitempty"`
	FaceID     string            `json:"face_id,omitempty"`
	Name       string            `json:"name,omitempty"`
	Extra      map[string]string `json:"extra,omitempty"`
}

// AggregatedRecord is the dominant location of one entity in one time window.
type AggregatedRecord struct {
	EntityID   string    `json:"entity_id"`
	TimeWindow time.Time `json:"time_window"`
	LocationID string    `json:"location_id"`
	Sources    []Source  `json:"sources"`
	EventCount int       `json:"event_count"`
}

// SourcesString joins the contributing source tags with commas.
func (r AggregatedRecord) SourcesString() string {
	var out []byte
	for i, s := range r.Sources {
		if i > 0 {
			out = append(out, ',')
		}
		out = append(out, s...)
	}
	return string(out)
}
