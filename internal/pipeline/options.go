// Package pipeline trains the location model from a data directory and owns
// the current model for concurrent prediction.
package pipeline

import (
	"github.com/rotisserie/eris"

	"github.com/sells-group/campus-locator/internal/aggregate"
	"github.com/sells-group/campus-locator/internal/cluster"
	"github.com/sells-group/campus-locator/internal/model"
	"github.com/sells-group/campus-locator/internal/predict"
)

// Sentinel errors.
var (
	ErrNotTrained     = eris.New("pipeline: model not trained")
	ErrInvalidOptions = eris.New("pipeline: invalid training options")
)

// TrainOptions configures one training pass. Clusters == 0 selects k from the
// entity count.
type TrainOptions struct {
	DataDir            string  `json:"data_dir"`
	WindowHours        int     `json:"window_hours"`
	Clusters           int     `json:"clusters"`
	DecayHalfLifeHours float64 `json:"decay_half_life_hours"`
	NearbyWindowRadius int     `json:"nearby_window_radius"`
	Seed               uint64  `json:"seed"`
	Restarts           int     `json:"kmeans_restarts,omitempty"`
	MaxIter            int     `json:"kmeans_max_iter,omitempty"`
}

// DefaultTrainOptions returns the stock knobs for dataDir.
func DefaultTrainOptions(dataDir string) TrainOptions {
	return TrainOptions{
		DataDir:            dataDir,
		WindowHours:        aggregate.DefaultWindowHours,
		DecayHalfLifeHours: predict.DefaultDecayHalfLifeHours,
		NearbyWindowRadius: predict.DefaultNearbyWindowRadius,
		Seed:               cluster.DefaultSeed,
		Restarts:           cluster.DefaultRestarts,
		MaxIter:            cluster.DefaultMaxIter,
	}
}

// Validate rejects options no training run could honor.
func (o TrainOptions) Validate() error {
	switch {
	case o.DataDir == "":
		return eris.Wrap(ErrInvalidOptions, "data_dir is required")
	case o.WindowHours < 1:
		return eris.Wrapf(ErrInvalidOptions, "window_hours must be >= 1, got %d", o.WindowHours)
	case o.NearbyWindowRadius < 0:
		return eris.Wrapf(ErrInvalidOptions, "nearby_window_radius must be >= 0, got %d", o.NearbyWindowRadius)
	case o.Clusters < 0:
		return eris.Wrapf(ErrInvalidOptions, "clusters must be >= 0, got %d", o.Clusters)
	case o.Restarts < 0 || o.MaxIter < 0:
		return eris.Wrap(ErrInvalidOptions, "kmeans restarts and max_iter must be >= 0")
	}
	return nil
}

// Params is the run-history view of the options.
func (o TrainOptions) Params() model.TrainParams {
	return model.TrainParams{
		DataDir:            o.DataDir,
		WindowHours:        o.WindowHours,
		Clusters:           o.Clusters,
		DecayHalfLifeHours: o.DecayHalfLifeHours,
		NearbyWindowRadius: o.NearbyWindowRadius,
		Seed:               o.Seed,
	}
}

func (o TrainOptions) predictParams() predict.Params {
	return predict.Params{
		WindowHours:        o.WindowHours,
		DecayHalfLifeHours: o.DecayHalfLifeHours,
		NearbyWindowRadius: o.NearbyWindowRadius,
	}
}
