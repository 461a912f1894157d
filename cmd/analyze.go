package main

import (
	"fmt"
	"os"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"

	"github.com/atlas-diligence/riskscan/internal/analyzer"
	"github.com/atlas-diligence/riskscan/pkg/anthropic"
)

var analyzeCmd = &cobra.Command{
	Use:   "analyze",
	Short: "Analyze a folder of documents for risks",
	Long:  "Loads every .txt and .md file in the folder, extracts risks on the given topic, and writes a markdown report.",
	RunE: func(cmd *cobra.Command, _ []string) error {
		ctx := cmd.Context()

		folder, _ := cmd.Flags().GetString("folder")
		topic, _ := cmd.Flags().GetString("topic")
		if folder == "" || topic == "" {
			return eris.New("both --folder and --topic are required")
		}
		if cfg.Anthropic.Key == "" {
			return eris.New("anthropic API key not configured (RISKSCAN_ANTHROPIC_KEY)")
		}

		st, err := initStore(ctx)
		if err != nil {
			return err
		}
		defer st.Close() //nolint:errcheck

		client := anthropic.NewClient(cfg.Anthropic.Key)
		a, err := analyzer.New(cfg, st, client)
		if err != nil {
			return err
		}

		run, err := a.Run(ctx, topic, folder)
		if err != nil {
			return eris.Wrap(err, "analyze")
		}

		fmt.Fprintf(os.Stdout, "Run %s complete: %d risks from %d documents (%d failed items)\n",
			run.ID, run.Result.RisksAfterDedup, run.Result.DocumentCount, run.Result.FailedItems)
		if run.Result.ReportPath != "" {
			fmt.Fprintf(os.Stdout, "Report: %s\n", run.Result.ReportPath)
		}
		return nil
	},
}

func init() {
	analyzeCmd.Flags().String("folder", "", "folder containing documents to analyze")
	analyzeCmd.Flags().String("topic", "", "analysis topic the risks are assessed against")

	rootCmd.AddCommand(analyzeCmd)
}
