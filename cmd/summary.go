package main

import (
	"os"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
)

var summaryCmd = &cobra.Command{
	Use:   "summary",
	Short: "Train, then print each cluster's top locations",
	RunE: func(cmd *cobra.Command, _ []string) error {
		if err := cfg.Validate("train"); err != nil {
			return err
		}

		top, _ := cmd.Flags().GetInt("top")
		if top < 1 {
			return eris.New("summary: --top must be >= 1")
		}

		svc := newService(nil)
		if _, err := svc.Train(cmd.Context(), trainOptions(cmd)); err != nil {
			return eris.Wrap(err, "summary: train")
		}

		clusters, err := svc.Summarize(top)
		if err != nil {
			return err
		}
		formatSummary(os.Stdout, clusters)
		return nil
	},
}

func init() {
	addModelFlags(summaryCmd)
	summaryCmd.Flags().Int("top", 5, "locations listed per cluster")
	rootCmd.AddCommand(summaryCmd)
}
