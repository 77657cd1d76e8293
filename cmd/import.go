package main

import (
	"encoding/json"
	"os"

	"github.com/google/uuid"
	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/sells-group/survey-cli/internal/model"
)

var importPath string

// importFile is the JSON shape the import command ingests: a project, one
// interview with its question catalog, and any number of responses.
type importFile struct {
	Project   model.Project    `json:"project"`
	Interview model.Interview  `json:"interview"`
	Questions []model.Question `json:"questions"`
	Responses []model.Response `json:"responses"`
}

var importCmd = &cobra.Command{
	Use:   "import",
	Short: "Import a project, interview, questions and responses from JSON",
	RunE: func(cmd *cobra.Command, _ []string) error {
		ctx := cmd.Context()

		e, err := initEnv(ctx, "cli")
		if err != nil {
			return err
		}
		defer e.Close()

		raw, err := os.ReadFile(importPath)
		if err != nil {
			return eris.Wrapf(err, "read %s", importPath)
		}
		var in importFile
		if err := json.Unmarshal(raw, &in); err != nil {
			return eris.Wrapf(err, "decode %s", importPath)
		}
		if in.Project.ID == "" || in.Interview.ID == "" {
			return eris.New("import file needs project.id and interview.id")
		}
		in.Interview.ProjectID = in.Project.ID

		if err := e.Data.SaveProject(ctx, in.Project); err != nil {
			return err
		}
		if err := e.Data.SaveInterview(ctx, in.Interview); err != nil {
			return err
		}
		if len(in.Questions) > 0 {
			if err := e.Data.SaveQuestions(ctx, in.Project.ID, in.Interview.ID, in.Questions); err != nil {
				return err
			}
		}
		for _, r := range in.Responses {
			if r.ID == "" {
				r.ID = uuid.NewString()
			}
			if err := e.Data.SaveResponse(ctx, in.Project.ID, in.Interview.ID, r); err != nil {
				return err
			}
		}

		// New answers make any cached report or export stale.
		if err := e.Svc.Invalidate(ctx, in.Project.ID, in.Interview.ID); err != nil {
			return err
		}

		zap.L().Info("import complete",
			zap.String("project", in.Project.ID),
			zap.String("interview", in.Interview.ID),
			zap.Int("questions", len(in.Questions)),
			zap.Int("responses", len(in.Responses)),
		)
		return nil
	},
}

func init() {
	importCmd.Flags().StringVar(&importPath, "file", "", "path to JSON import file (required)")
	_ = importCmd.MarkFlagRequired("file")
	rootCmd.AddCommand(importCmd)
}
