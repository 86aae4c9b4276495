package main

import (
	"github.com/spf13/cobra"

	"github.com/sells-group/campus-locator/internal/pipeline"
	"github.com/sells-group/campus-locator/internal/store"
)

// addModelFlags registers the training knobs shared by train, predict and
// summary. Unset flags fall back to config.
func addModelFlags(cmd *cobra.Command) {
	f := cmd.Flags()
	f.String("data-dir", "", "directory holding the source files (default from config)")
	f.Int("window-hours", 0, "time window width in hours (default from config)")
	f.Int("clusters", 0, "number of clusters, 0 picks automatically (default from config)")
	f.Float64("half-life", 0, "temporal decay half-life in hours (default from config)")
	f.Int("radius", 0, "neighbouring windows considered on each side (default from config)")
	f.Uint64("seed", 0, "k-means seed (default from config)")
}

// trainOptions starts from config and applies any flag the user set.
func trainOptions(cmd *cobra.Command) pipeline.TrainOptions {
	opts := cfg.TrainOptions()
	f := cmd.Flags()

	if f.Changed("data-dir") {
		opts.DataDir, _ = f.GetString("data-dir")
	}
	if f.Changed("window-hours") {
		opts.WindowHours, _ = f.GetInt("window-hours")
	}
	if f.Changed("clusters") {
		opts.Clusters, _ = f.GetInt("clusters")
	}
	if f.Changed("half-life") {
		opts.DecayHalfLifeHours, _ = f.GetFloat64("half-life")
	}
	if f.Changed("radius") {
		opts.NearbyWindowRadius, _ = f.GetInt("radius")
	}
	if f.Changed("seed") {
		opts.Seed, _ = f.GetUint64("seed")
	}
	return opts
}

// newService builds a Service from config, recording runs in st when it
// is non-nil.
func newService(st store.Store) *pipeline.Service {
	opts := []pipeline.Option{
		pipeline.WithCacheTTL(cfg.Cache.TTL()),
		pipeline.WithConcurrency(cfg.Bulk.Concurrency),
	}
	if st != nil {
		opts = append(opts, pipeline.WithStore(st))
	}
	return pipeline.New(opts...)
}
