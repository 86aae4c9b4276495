package model

import "time"

// TrainStatus is the lifecycle state of a training run.
type TrainStatus string

const (
	TrainStatusRunning  TrainStatus = "running"
	TrainStatusComplete TrainStatus = "complete"
	TrainStatusFailed   TrainStatus = "failed"
)

// TrainParams captures the knobs a training run was invoked with.
type TrainParams struct {
	DataDir            string  `json:"data_dir"`
	WindowHours        int     `json:"window_hours"`
	Clusters           int     `json:"clusters"`
	DecayHalfLifeHours float64 `json:"decay_half_life_hours"`
	NearbyWindowRadius int     `json:"nearby_window_radius"`
	Seed               uint64  `json:"seed"`
}

// TrainStats summarizes what a training run consumed and produced.
type TrainStats struct {
	EventsRead       int           `json:"events_read"`
	EventsResolved   int           `json:"events_resolved"`
	Entities         int           `json:"entities"`
	Windows          int           `json:"windows"`
	Records          int           `json:"records"`
	Clusters         int           `json:"clusters"`
	Locations        int           `json:"locations"`
	ClusterWindowKey int           `json:"cluster_window_keys"`
	Inertia          float64       `json:"inertia"`
	Duration         time.Duration `json:"duration"`
}

// ResolvedRatio is the fraction of read events mapped to an entity.
func (s TrainStats) ResolvedRatio() float64 {
	if s.EventsRead == 0 {
		return 0
	}
	return float64(s.EventsResolved) / float64(s.EventsRead)
}

// TrainRun is one recorded invocation of training.
type TrainRun struct {
	ID        string      `json:"id"`
	Status    TrainStatus `json:"status"`
	Params    TrainParams `json:"params"`
	Stats     *TrainStats `json:"stats,omitempty"`
	Error     string      `json:"error,omitempty"`
	CreatedAt time.Time   `json:"created_at"`
	UpdatedAt time.Time   `json:"updated_at"`
}
