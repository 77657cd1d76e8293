// Package store persists projects, interviews, question catalogs and
// responses, behind a driver-neutral interface so the aggregation core
// stays network-free in tests.
package store

import (
	"context"
	"time"

	"github.com/rotisserie/eris"

	"github.com/sells-group/survey-cli/internal/model"
)

// ErrNotFound is returned for lookups that match nothing.
var ErrNotFound = eris.New("store: not found")

// DataStore is the persistence contract consumed by the report/export
// services. GetQuestions returns non-archived questions in catalog order;
// GetResponses returns responses ordered by creation time ascending.
type DataStore interface {
	GetProject(ctx context.Context, projectID string) (*model.Project, error)
	SaveProject(ctx context.Context, p model.Project) error

	GetInterview(ctx context.Context, projectID, interviewID string) (*model.Interview, error)
	SaveInterview(ctx context.Context, iv model.Interview) error

	GetQuestions(ctx context.Context, projectID, interviewID string) ([]model.Question, error)
	SaveQuestions(ctx context.Context, projectID, interviewID string, questions []model.Question) error

	GetResponses(ctx context.Context, projectID, interviewID string) ([]model.Response, error)
	SaveResponse(ctx context.Context, projectID, interviewID string, resp model.Response) error

	// MarkProofed records manual review of one answer. The caller is
	// responsible for invalidating the cached report afterwards.
	MarkProofed(ctx context.Context, projectID, interviewID, responseID, questionID, proofedBy string, at time.Time) error

	Migrate(ctx context.Context) error
	Close() error
}

// markAnswerProofed applies the proofing mutation to a response value,
// shared by both drivers. It returns a copy; the input is not modified.
func markAnswerProofed(resp model.Response, questionID, proofedBy string, at time.Time) (model.Response, error) {
	a, ok := resp.Answers[questionID]
	if !ok {
		return resp, eris.Wrapf(ErrNotFound, "answer %s", questionID)
	}
	a.IsProofed = true
	a.ProofedBy = proofedBy
	a.ProofedAt = model.At(at)

	answers := make(map[string]model.Answer, len(resp.Answers))
	for k, v := range resp.Answers {
		answers[k] = v
	}
	answers[questionID] = a
	resp.Answers = answers
	return resp, nil
}
