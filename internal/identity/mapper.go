// Package identity resolves source-specific identifiers to canonical entity
// ids using exact matches against the profile table.
package identity

import (
	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/sells-group/campus-locator/internal/model"
)

// ErrNoEntitiesResolved means no event could be linked to any entity, which
// points at broken profile/source linkage rather than sparse data.
var ErrNoEntitiesResolved = eris.New("identity: zero events resolved to an entity")

// Stats reports how many events were resolved.
type Stats struct {
	Total    int `json:"total"`
	Resolved int `json:"resolved"`
}

// Ratio returns Resolved/Total, or 0 when there were no events.
func (s Stats) Ratio() float64 {
	if s.Total == 0 {
		return 0
	}
	return float64(s.Resolved) / float64(s.Total)
}

// Mapper holds the identifier lookup maps built from a profile table.
type Mapper struct {
	entities map[string]string
	byCard   map[string]string
	byDevice map[string]string
	byFace   map[string]string
	// withProfiles is false when no profile table was available; only
	// entity-keyed sources resolve in that mode.
	withProfiles bool
}

// NewMapper builds lookup maps from profiles. A nil slice yields a mapper
// that passes entity-keyed sources through and drops everything else.
func NewMapper(profiles []model.Profile) *Mapper {
	m := &Mapper{
		entities:     make(map[string]string, len(profiles)),
		byCard:       make(map[string]string),
		byDevice:     make(map[string]string),
		byFace:       make(map[string]string),
		withProfiles: profiles != nil,
	}
	for _, p := range profiles {
		if p.EntityID == "" {
			continue
		}
		m.entities[p.EntityID] = p.EntityID
		// Later rows overwrite earlier ones for a repeated auxiliary id.
		if p.CardID != "" {
			m.byCard[p.CardID] = p.EntityID
		}
		if p.DeviceHash != "" {
			m.byDevice[p.DeviceHash] = p.EntityID
		}
		if p.FaceID != "" {
			m.byFace[p.FaceID] = p.EntityID
		}
	}
	return m
}

// Lookup resolves a single identifier seen in the given source.
func (m *Mapper) Lookup(tempID string, src model.Source) (string, bool) {
	if tempID == "" {
		return "", false
	}
	if !m.withProfiles {
		if src.EntityKeyed() {
			return tempID, true
		}
		return "", false
	}

	if id, ok := m.entities[tempID]; ok {
		return id, true
	}

	var aux map[string]string
	switch src {
	case model.SourceCard:
		aux = m.byCard
	case model.SourceDevice:
		aux = m.byDevice
	case model.SourceFrame:
		aux = m.byFace
	case model.SourceBooking, model.SourceLibrary, model.SourceNote:
		return tempID, true
	default:
		return "", false
	}
	id, ok := aux[tempID]
	return id, ok
}

// Resolve maps every event to its entity and drops the unresolvable ones.
// It fails only when nothing resolves.
func (m *Mapper) Resolve(events []model.Event) ([]model.ResolvedEvent, Stats, error) {
	st := Stats{Total: len(events)}
	out := make([]model.ResolvedEvent, 0, len(events))
	for _, ev := range events {
		if ev.Timestamp.IsZero() {
			continue
		}
		id, ok := m.Lookup(ev.TempID, ev.Source)
		if !ok {
			continue
		}
		out = append(out, model.ResolvedEvent{Event: ev, EntityID: id})
	}
	st.Resolved = len(out)

	if !m.withProfiles {
		zap.L().Warn("identity: no profile table, only entity-keyed sources resolve")
	}
	zap.L().Info("identity: resolved events",
		zap.Int("resolved", st.Resolved),
		zap.Int("total", st.Total),
		zap.Float64("ratio", st.Ratio()),
	)

	if st.Resolved == 0 {
		return nil, st, eris.Wrapf(ErrNoEntitiesResolved, "identity: 0/%d events", st.Total)
	}
	return out, st, nil
}
