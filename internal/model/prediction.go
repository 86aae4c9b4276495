package model

import "time"

// Method names the tier of the fallback chain that produced a prediction.
type Method string

const (
	MethodActualData     Method = "actual_data"
	MethodProbabilistic  Method = "probabilistic_generalization"
	MethodClusterPrior   Method = "cluster_prior"
	MethodGlobalPrior    Method = "global_prior"
	MethodEntityNotFound Method = "entity_not_found"
	MethodNoData         Method = "no_data"
)

// UnknownCluster is reported for entities without a cluster assignment.
const UnknownCluster = -1

// Prediction is the result of a single location query.
type Prediction struct {
	EntityID          string         `json:"entity_id"`
	Timestamp         time.Time      `json:"timestamp"`
	TimeWindow        time.Time      `json:"time_window"`
	PredictedLocation *string        `json:"predicted_location"`
	Confidence        float64        `json:"confidence"`
	Cluster           int            `json:"cluster"`
	Method            Method         `json:"method"`
	Details           map[string]any `json:"details,omitempty"`
}

// Location returns the predicted location, or "" when there is none.
func (p Prediction) Location() string {
	if p.PredictedLocation == nil {
		return ""
	}
	return *p.PredictedLocation
}
