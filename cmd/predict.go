package main

import (
	"os"

	json "github.com/goccy/go-json"
	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"

	"github.com/sells-group/campus-locator/internal/source"
)

var predictCmd = &cobra.Command{
	Use:   "predict",
	Short: "Train, then predict one entity's location at a time",
	RunE: func(cmd *cobra.Command, _ []string) error {
		if err := cfg.Validate("train"); err != nil {
			return err
		}

		entity, _ := cmd.Flags().GetString("entity")
		rawAt, _ := cmd.Flags().GetString("at")

		ts, ok := source.ParseTimestamp(rawAt)
		if !ok {
			return eris.Errorf("predict: cannot parse --at %q", rawAt)
		}

		svc := newService(nil)
		if _, err := svc.Train(cmd.Context(), trainOptions(cmd)); err != nil {
			return eris.Wrap(err, "predict: train")
		}

		p, err := svc.Predict(entity, ts)
		if err != nil {
			return eris.Wrap(err, "predict")
		}

		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		return enc.Encode(p)
	},
}

func init() {
	addModelFlags(predictCmd)
	predictCmd.Flags().String("entity", "", "entity id to locate")
	predictCmd.Flags().String("at", "", "query time, e.g. 2025-01-07 10:30:00")
	_ = predictCmd.MarkFlagRequired("entity")
	_ = predictCmd.MarkFlagRequired("at")
	rootCmd.AddCommand(predictCmd)
}
