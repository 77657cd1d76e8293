package main

import (
	"encoding/json"
	"os"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

var (
	reportProject   string
	reportInterview string
	reportLang      string
	reportOut       string
)

var reportCmd = &cobra.Command{
	Use:   "report",
	Short: "Compute (or fetch cached) aggregate report for an interview",
	RunE: func(cmd *cobra.Command, _ []string) error {
		ctx := cmd.Context()

		e, err := initEnv(ctx, "cli")
		if err != nil {
			return err
		}
		defer e.Close()

		rep, err := e.Svc.Report(ctx, reportProject, reportInterview, reportLang)
		if err != nil {
			return err
		}

		out := os.Stdout
		if reportOut != "" {
			f, err := os.Create(reportOut)
			if err != nil {
				return eris.Wrapf(err, "create %s", reportOut)
			}
			defer f.Close()
			out = f
		}

		enc := json.NewEncoder(out)
		enc.SetIndent("", "  ")
		if err := enc.Encode(rep); err != nil {
			return eris.Wrap(err, "encode report")
		}

		zap.L().Info("report ready",
			zap.String("project", reportProject),
			zap.String("interview", reportInterview),
			zap.Int("responses", rep.TotalResponses),
		)
		return nil
	},
}

func init() {
	reportCmd.Flags().StringVar(&reportProject, "project", "", "project ID (required)")
	reportCmd.Flags().StringVar(&reportInterview, "interview", "", "interview ID (required)")
	reportCmd.Flags().StringVar(&reportLang, "lang", "", "requested language (default: interview primary)")
	reportCmd.Flags().StringVar(&reportOut, "out", "", "write report JSON to file instead of stdout")
	_ = reportCmd.MarkFlagRequired("project")
	_ = reportCmd.MarkFlagRequired("interview")
	rootCmd.AddCommand(reportCmd)
}
