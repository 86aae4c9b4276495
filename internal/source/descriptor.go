// Package source loads campus event logs and the entity profile table from a
// data directory into uniform in-memory shapes.
package source

import (
	"github.com/sells-group/campus-locator/internal/model"
)

// Uniform column names every source is normalized to before extraction.
const (
	ColTimestamp = "timestamp"
	ColLocation  = "location_id"
	ColEntity    = "entity_id"
)

// Descriptor tells the reader how to turn one source file into events.
type Descriptor struct {
	Source model.Source
	// FileNames are tried in order; the first present file is used.
	FileNames []string
	// Renames are applied to the header before any column is read.
	Renames []Rename
	// IDColumn holds the source-specific identifier that becomes TempID.
	IDColumn string
	// SynthLocation, when set, replaces the location column with a constant.
	SynthLocation string
}

// Rename maps a source-specific column to its uniform name.
type Rename struct {
	From string
	To   string
}

// RequiredColumns lists the columns a file must carry after renames.
func (d Descriptor) RequiredColumns() []string {
	cols := []string{d.IDColumn, ColTimestamp}
	if d.SynthLocation == "" {
		cols = append(cols, ColLocation)
	}
	return cols
}

// DefaultDescriptors is the fixed source table, in load order.
func DefaultDescriptors() []Descriptor {
	return []Descriptor{
		{
			Source:        model.SourceNote,
			FileNames:     []string{"free_text_notes (helpdesk or RSVPs).csv", "notes.csv"},
			IDColumn:      ColEntity,
			SynthLocation: "note_location",
		},
		{
			Source:    model.SourceDevice,
			FileNames: []string{"wifi_associations_logs.csv", "devices.csv", "device_logs.csv"},
			Renames:   []Rename{{From: "ap_id", To: ColLocation}},
			IDColumn:  "device_hash",
		},
		{
			Source:    model.SourceBooking,
			FileNames: []string{"lab_bookings.csv", "bookings.csv"},
			Renames: []Rename{
				{From: "room_id", To: ColLocation},
				{From: "start_time", To: ColTimestamp},
			},
			IDColumn: ColEntity,
		},
		{
			Source:    model.SourceFrame,
			FileNames: []string{"cctv_frames.csv", "frames.csv"},
			IDColumn:  "face_id",
		},
		{
			Source:    model.SourceCard,
			FileNames: []string{"campus card_swipes.csv", "cards.csv", "card_swipes.csv"},
			IDColumn:  "card_id",
		},
		{
			Source:        model.SourceLibrary,
			FileNames:     []string{"library_checkouts.csv", "library_checkout.csv", "checkout.csv"},
			IDColumn:      ColEntity,
			SynthLocation: "library",
		},
	}
}

// ProfileFileNames are the profile table names, in preference order.
var ProfileFileNames = []string{"student or staff profiles.csv", "profiles.csv"}
