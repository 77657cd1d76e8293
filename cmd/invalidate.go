package main

import (
	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

var (
	invalidateProject   string
	invalidateInterview string
)

var invalidateCmd = &cobra.Command{
	Use:   "invalidate",
	Short: "Drop cached reports and exports for an interview",
	RunE: func(cmd *cobra.Command, _ []string) error {
		ctx := cmd.Context()

		e, err := initEnv(ctx, "cli")
		if err != nil {
			return err
		}
		defer e.Close()

		if err := e.Svc.Invalidate(ctx, invalidateProject, invalidateInterview); err != nil {
			return err
		}
		zap.L().Info("cache invalidated",
			zap.String("project", invalidateProject),
			zap.String("interview", invalidateInterview),
		)
		return nil
	},
}

func init() {
	invalidateCmd.Flags().StringVar(&invalidateProject, "project", "", "project ID (required)")
	invalidateCmd.Flags().StringVar(&invalidateInterview, "interview", "", "interview ID (required)")
	_ = invalidateCmd.MarkFlagRequired("project")
	_ = invalidateCmd.MarkFlagRequired("interview")
	rootCmd.AddCommand(invalidateCmd)
}
