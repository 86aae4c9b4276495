package cluster

import (
	"github.com/rotisserie/eris"
	"go.uber.org/zap"
)

// Defaults for the k heuristic and the k-means run.
const (
	DefaultSeed          = 42
	DefaultRestarts      = 10
	DefaultMaxIter       = 300
	entitiesPerCluster   = 12
	minHeuristicClusters = 3
	maxHeuristicClusters = 20
)

// Options configures Assign. K == 0 uses the entity-count heuristic; zero
// Restarts or MaxIter select the defaults. Seed is used as given.
type Options struct {
	K        int
	Seed     uint64
	Restarts int
	MaxIter  int
}

// Result is the outcome of clustering one matrix.
type Result struct {
	// Assignments maps every matrix entity to its cluster id.
	Assignments map[string]int
	K           int
	Inertia     float64
	Iterations  int
	Sizes       map[int]int
}

// DefaultK suggests roughly one cluster per twelve entities, kept within [3, 20].
func DefaultK(entities int) int {
	k := entities / entitiesPerCluster
	if k < minHeuristicClusters {
		k = minHeuristicClusters
	}
	if k > maxHeuristicClusters {
		k = maxHeuristicClusters
	}
	return k
}

// Assign clusters the rows of m.
func Assign(m *Matrix, opts Options) (*Result, error) {
	if m == nil || len(m.Entities) == 0 {
		return nil, eris.New("cluster: empty feature matrix")
	}
	if opts.K < 0 {
		return nil, eris.Errorf("cluster: invalid cluster count %d", opts.K)
	}

	k := opts.K
	if k == 0 {
		k = DefaultK(len(m.Entities))
	}
	if k > len(m.Entities) {
		zap.L().Warn("cluster: more clusters than entities, clamping",
			zap.Int("requested", k),
			zap.Int("entities", len(m.Entities)),
		)
		k = len(m.Entities)
	}

	km := KMeans{K: k, Seed: opts.Seed, Restarts: opts.Restarts, MaxIter: opts.MaxIter}
	if km.Restarts == 0 {
		km.Restarts = DefaultRestarts
	}
	if km.MaxIter == 0 {
		km.MaxIter = DefaultMaxIter
	}
	labels, inertia, iters := km.Fit(m.Rows)

	res := &Result{
		Assignments: make(map[string]int, len(labels)),
		K:           k,
		Inertia:     inertia,
		Iterations:  iters,
		Sizes:       make(map[int]int),
	}
	for i, e := range m.Entities {
		res.Assignments[e] = labels[i]
		res.Sizes[labels[i]]++
	}

	zap.L().Info("cluster: assigned entities",
		zap.Int("entities", len(m.Entities)),
		zap.Int("windows", len(m.Windows)),
		zap.Int("k", k),
		zap.Int("populated", len(res.Sizes)),
		zap.Float64("inertia", inertia),
		zap.Int("iterations", iters),
	)
	return res, nil
}
