package main

import (
	"fmt"
	"io"
	"os"
	"strings"
	"text/tabwriter"
	"time"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/sells-group/campus-locator/internal/export"
	"github.com/sells-group/campus-locator/internal/model"
	"github.com/sells-group/campus-locator/internal/pipeline"
	"github.com/sells-group/campus-locator/internal/predict"
	"github.com/sells-group/campus-locator/internal/store"
)

var trainCmd = &cobra.Command{
	Use:   "train",
	Short: "Train the model and export its artifacts",
	Long:  "Reads every source file, trains the cluster model, prints a summary and writes the intermediate tables as CSV (and optionally XLSX).",
	RunE: func(cmd *cobra.Command, _ []string) error {
		ctx := cmd.Context()

		if err := cfg.Validate("train"); err != nil {
			return err
		}

		persist, _ := cmd.Flags().GetBool("persist")
		withPreds, _ := cmd.Flags().GetBool("predictions")
		xlsx, _ := cmd.Flags().GetBool("xlsx")
		out, _ := cmd.Flags().GetString("out")
		if out == "" {
			out = cfg.Export.Dir
		}

		var st store.Store
		if persist {
			var err error
			st, err = openStore(ctx)
			if err != nil {
				return err
			}
			defer st.Close() //nolint:errcheck
		}

		svc := newService(st)
		res, err := svc.Train(ctx, trainOptions(cmd))
		if err != nil {
			return eris.Wrap(err, "train")
		}

		var preds []model.Prediction
		if withPreds {
			preds, err = svc.PredictAll(ctx, nil)
			if err != nil {
				return eris.Wrap(err, "train: predict all")
			}
		}

		snap, err := svc.Snapshot()
		if err != nil {
			return err
		}
		paths, err := export.Write(out, export.Sheets(snap, preds), export.Options{XLSX: xlsx || cfg.Export.XLSX})
		if err != nil {
			return eris.Wrap(err, "train: export")
		}

		if persist {
			if err := svc.SaveArtifacts(ctx, res.RunID, preds); err != nil {
				return err
			}
			zap.L().Info("train: run persisted", zap.String("run_id", res.RunID))
		}

		summary, err := svc.Summarize(3)
		if err != nil {
			return err
		}
		formatTrainResult(os.Stdout, res)
		fmt.Fprintln(os.Stdout)
		formatSummary(os.Stdout, summary)
		fmt.Fprintf(os.Stdout, "\nWrote %d files to %s\n", len(paths), out)
		return nil
	},
}

func init() {
	addModelFlags(trainCmd)
	trainCmd.Flags().String("out", "", "artifact output directory (default from config)")
	trainCmd.Flags().Bool("xlsx", false, "also write a single XLSX workbook")
	trainCmd.Flags().Bool("predictions", false, "fill every unobserved entity window and export the predictions")
	trainCmd.Flags().Bool("persist", false, "record the run and its artifacts in the store")
	rootCmd.AddCommand(trainCmd)
}

// formatTrainResult writes run statistics and per-source read counts to w.
func formatTrainResult(out io.Writer, res *pipeline.TrainResult) {
	w := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
	if res.RunID != "" {
		_, _ = fmt.Fprintf(w, "Run:\t%s\n", res.RunID)
	}
	s := res.Stats
	_, _ = fmt.Fprintf(w, "Events read:\t%d\n", s.EventsRead)
	_, _ = fmt.Fprintf(w, "Events resolved:\t%d (%.1f%%)\n", s.EventsResolved, 100*s.ResolvedRatio())
	_, _ = fmt.Fprintf(w, "Entities:\t%d\n", s.Entities)
	_, _ = fmt.Fprintf(w, "Windows:\t%d\n", s.Windows)
	_, _ = fmt.Fprintf(w, "Records:\t%d\n", s.Records)
	_, _ = fmt.Fprintf(w, "Clusters:\t%d\n", s.Clusters)
	_, _ = fmt.Fprintf(w, "Locations:\t%d\n", s.Locations)
	_, _ = fmt.Fprintf(w, "Duration:\t%s\n", s.Duration.Round(time.Millisecond))
	_ = w.Flush()

	if len(res.Sources) == 0 {
		return
	}
	_, _ = fmt.Fprintln(out)
	w = tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
	_, _ = fmt.Fprintln(w, "SOURCE\tFILE\tROWS\tKEPT\tNOTE")
	for _, src := range res.Sources {
		_, _ = fmt.Fprintf(w, "%s\t%s\t%d\t%d\t%s\n", src.Source, src.File, src.Rows, src.Kept, src.Skipped)
	}
	_ = w.Flush()
}

// formatSummary writes one line per cluster to w.
func formatSummary(out io.Writer, clusters []predict.ClusterSummary) {
	w := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
	_, _ = fmt.Fprintln(w, "CLUSTER\tMEMBERS\tEVENTS\tTOP LOCATIONS")
	_, _ = fmt.Fprintln(w, "-------\t-------\t------\t-------------")

	for _, c := range clusters {
		top := make([]string, 0, len(c.TopLocations))
		for _, l := range c.TopLocations {
			top = append(top, fmt.Sprintf("%s (%d)", l.LocationID, l.Count))
		}
		_, _ = fmt.Fprintf(w, "%d\t%d\t%d\t%s\n", c.Cluster, c.Members, c.Events, strings.Join(top, ", "))
	}
	_ = w.Flush()
}
