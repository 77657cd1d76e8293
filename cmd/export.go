package main

import (
	"os"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/sells-group/survey-cli/internal/service"
)

var (
	exportProject    string
	exportInterviews []string
	exportExclude    []string
	exportLang       string
	exportType       string
	exportFilename   string
	exportOut        string
	exportBy         string
	exportNoCache    bool
)

var exportCmd = &cobra.Command{
	Use:   "export",
	Short: "Generate a CSV or Excel export for one or more interviews",
	RunE: func(cmd *cobra.Command, _ []string) error {
		ctx := cmd.Context()

		e, err := initEnv(ctx, "cli")
		if err != nil {
			return err
		}
		defer e.Close()

		req := service.ExportRequest{
			ProjectID:    exportProject,
			InterviewIDs: exportInterviews,
			Exclude:      exportExclude,
			Language:     exportLang,
			FileType:     exportType,
			Filename:     exportFilename,
			RequestedBy:  exportBy,
		}

		if exportNoCache || exportOut != "" {
			data, filename, err := e.Svc.GenerateExport(ctx, req)
			if err != nil {
				return err
			}
			out := exportOut
			if out == "" {
				out = filename
			}
			if err := os.WriteFile(out, data, 0o644); err != nil {
				return eris.Wrapf(err, "write %s", out)
			}
			zap.L().Info("export written",
				zap.String("file", out),
				zap.Int("bytes", len(data)),
			)
			return nil
		}

		ref, err := e.Svc.Export(ctx, req)
		if err != nil {
			return err
		}
		zap.L().Info("export cached",
			zap.String("path", ref.Path),
			zap.String("url", ref.URL),
		)
		cmd.Println(ref.URL)
		return nil
	},
}

func init() {
	exportCmd.Flags().StringVar(&exportProject, "project", "", "project ID (required)")
	exportCmd.Flags().StringSliceVar(&exportInterviews, "interview", nil, "interview ID, repeatable (required)")
	exportCmd.Flags().StringSliceVar(&exportExclude, "exclude", nil, "column name or flag suffix to strip, repeatable")
	exportCmd.Flags().StringVar(&exportLang, "lang", "", "requested language")
	exportCmd.Flags().StringVar(&exportType, "type", "csv", "export format: csv or xlsx")
	exportCmd.Flags().StringVar(&exportFilename, "filename", "", "download filename (default export.<type>)")
	exportCmd.Flags().StringVar(&exportOut, "out", "", "write export to a local file, bypassing the cache")
	exportCmd.Flags().StringVar(&exportBy, "requested-by", "", "name recorded as workbook creator")
	exportCmd.Flags().BoolVar(&exportNoCache, "no-cache", false, "always regenerate, do not consult the cache")
	_ = exportCmd.MarkFlagRequired("project")
	_ = exportCmd.MarkFlagRequired("interview")
	rootCmd.AddCommand(exportCmd)
}
