package service

import (
	"bytes"
	"context"
	"encoding/json"
	"strings"
	"testing"
	"time"

	"github.com/rotisserie/eris"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/sells-group/survey-cli/internal/model"
	"github.com/sells-group/survey-cli/internal/store"
)

func init() {
	zap.ReplaceGlobals(zap.NewNop())
}

// fakeData is an in-memory DataStore.
type fakeData struct {
	projects   map[string]model.Project
	interviews map[string]model.Interview
	questions  map[string][]model.Question
	responses  map[string][]model.Response
	proofed    []string
}

func newFakeData() *fakeData {
	return &fakeData{
		projects:   map[string]model.Project{},
		interviews: map[string]model.Interview{},
		questions:  map[string][]model.Question{},
		responses:  map[string][]model.Response{},
	}
}

func (f *fakeData) GetProject(ctx context.Context, id string) (*model.Project, error) {
	p, ok := f.projects[id]
	if !ok {
		return nil, store.ErrNotFound
	}
	return &p, nil
}
func (f *fakeData) SaveProject(ctx context.Context, p model.Project) error {
	f.projects[p.ID] = p
	return nil
}
func (f *fakeData) GetInterview(ctx context.Context, projectID, interviewID string) (*model.Interview, error) {
	iv, ok := f.interviews[interviewID]
	if !ok || iv.ProjectID != projectID {
		return nil, store.ErrNotFound
	}
	return &iv, nil
}
func (f *fakeData) SaveInterview(ctx context.Context, iv model.Interview) error {
	f.interviews[iv.ID] = iv
	return nil
}
func (f *fakeData) GetQuestions(ctx context.Context, projectID, interviewID string) ([]model.Question, error) {
	return f.questions[interviewID], nil
}
func (f *fakeData) SaveQuestions(ctx context.Context, projectID, interviewID string, qs []model.Question) error {
	f.questions[interviewID] = qs
	return nil
}
func (f *fakeData) GetResponses(ctx context.Context, projectID, interviewID string) ([]model.Response, error) {
	return f.responses[interviewID], nil
}
func (f *fakeData) SaveResponse(ctx context.Context, projectID, interviewID string, r model.Response) error {
	f.responses[interviewID] = append(f.responses[interviewID], r)
	return nil
}
func (f *fakeData) MarkProofed(ctx context.Context, projectID, interviewID, responseID, questionID, proofedBy string, at time.Time) error {
	f.proofed = append(f.proofed, responseID+"/"+questionID)
	return nil
}
func (f *fakeData) Migrate(ctx context.Context) error { return nil }
func (f *fakeData) Close() error                      { return nil }

// fakeBlobs is an in-memory blob store with failure injection.
type fakeBlobs struct {
	blobs    map[string][]byte
	failSave bool
	saves    int
}

func newFakeBlobs() *fakeBlobs {
	return &fakeBlobs{blobs: map[string][]byte{}}
}

func (f *fakeBlobs) Exists(ctx context.Context, path string) (bool, error) {
	_, ok := f.blobs[path]
	return ok, nil
}
func (f *fakeBlobs) Save(ctx context.Context, path string, data []byte) error {
	if f.failSave {
		return eris.New("disk full")
	}
	f.saves++
	f.blobs[path] = append([]byte(nil), data...)
	return nil
}
func (f *fakeBlobs) Open(ctx context.Context, path string) ([]byte, error) {
	data, ok := f.blobs[path]
	if !ok {
		return nil, eris.Errorf("no blob %s", path)
	}
	return data, nil
}
func (f *fakeBlobs) Delete(ctx context.Context, path string) error {
	delete(f.blobs, path)
	return nil
}
func (f *fakeBlobs) List(ctx context.Context, prefix string) ([]string, error) {
	var out []string
	for k := range f.blobs {
		if strings.HasPrefix(k, prefix) {
			out = append(out, k)
		}
	}
	return out, nil
}
func (f *fakeBlobs) SignedURL(ctx context.Context, path string, ttl time.Duration) (string, error) {
	if _, ok := f.blobs[path]; !ok {
		return "", eris.Errorf("no blob %s", path)
	}
	return "https://files.test/" + path + "?sig=ok", nil
}

func seed(t *testing.T) *fakeData {
	t.Helper()
	data := newFakeData()
	ctx := context.Background()
	require.NoError(t, data.SaveProject(ctx, model.Project{ID: "p1", Name: "Hearth Survey"}))
	require.NoError(t, data.SaveInterview(ctx, model.Interview{ID: "i1", ProjectID: "p1", Title: "Round 1", PrimaryLanguage: "en"}))
	require.NoError(t, data.SaveQuestions(ctx, "p1", "i1", []model.Question{
		{ID: "q1", Order: 100, Type: model.QuestionCodedSingle, Title: "Feel safe?", Options: []string{"Yes", "No"}},
	}))
	require.NoError(t, data.SaveResponse(ctx, "p1", "i1", model.Response{
		ID: "r1", Gender: "female",
		Answers: map[string]model.Answer{
			"q1": {
				Question: model.QuestionSnapshot{ID: "q1", Title: model.TitleMap{"en": "Feel safe?"}, Type: model.QuestionCodedSingle, Options: []string{"Yes", "No"}},
				Answers:  []string{"Yes"},
			},
		},
	}))
	return data
}

func TestReport_ComputesAndCaches(t *testing.T) {
	data := seed(t)
	blobs := newFakeBlobs()
	svc := New(data, blobs, Config{})
	ctx := context.Background()

	rep, err := svc.Report(ctx, "p1", "i1", "")
	require.NoError(t, err)
	assert.Equal(t, 1, rep.TotalResponses)

	cached, ok := blobs.blobs["reports/p1/i1/data.json"]
	require.True(t, ok, "report persisted under its cache key")
	var fromCache model.Report
	require.NoError(t, json.Unmarshal(cached, &fromCache))
	assert.Equal(t, rep.TotalResponses, fromCache.TotalResponses)
}

func TestReport_CacheHitSkipsAggregation(t *testing.T) {
	data := seed(t)
	blobs := newFakeBlobs()
	svc := New(data, blobs, Config{})
	ctx := context.Background()

	canned := model.Report{TotalResponses: 99}
	payload, _ := json.Marshal(canned)
	blobs.blobs["reports/p1/i1/data.json"] = payload

	rep, err := svc.Report(ctx, "p1", "i1", "")
	require.NoError(t, err)
	assert.Equal(t, 99, rep.TotalResponses, "served from cache, not recomputed")
}

func TestReport_NoResponsesMapsToNoReportData(t *testing.T) {
	data := seed(t)
	data.responses["i1"] = nil
	svc := New(data, newFakeBlobs(), Config{})

	_, err := svc.Report(context.Background(), "p1", "i1", "")
	assert.ErrorIs(t, err, ErrNoReportData)
}

func TestReport_MissingInterview(t *testing.T) {
	svc := New(newFakeData(), newFakeBlobs(), Config{})
	_, err := svc.Report(context.Background(), "p1", "nope", "")
	assert.ErrorIs(t, err, ErrNoReportData)
}

func TestReport_CacheWriteFailureStillReturnsReport(t *testing.T) {
	data := seed(t)
	blobs := newFakeBlobs()
	blobs.failSave = true
	svc := New(data, blobs, Config{})

	rep, err := svc.Report(context.Background(), "p1", "i1", "")
	require.NoError(t, err, "correctness before cache durability")
	assert.Equal(t, 1, rep.TotalResponses)
}

func TestExport_GenerateAndSign(t *testing.T) {
	data := seed(t)
	blobs := newFakeBlobs()
	svc := New(data, blobs, Config{})

	ref, err := svc.Export(context.Background(), ExportRequest{
		ProjectID:    "p1",
		InterviewIDs: []string{"i1"},
		FileType:     "csv",
		RequestedBy:  "Ada",
	})
	require.NoError(t, err)
	assert.Contains(t, ref.URL, "exports/p1/i1/")
	assert.Equal(t, "export.csv", ref.Filename)

	stored := blobs.blobs[ref.Path]
	require.NotEmpty(t, stored)
	assert.True(t, bytes.HasPrefix(stored, []byte{0xEF, 0xBB, 0xBF}), "CSV blob carries the BOM")
}

func TestExport_CacheHitShortCircuits(t *testing.T) {
	data := seed(t)
	blobs := newFakeBlobs()
	svc := New(data, blobs, Config{})
	ctx := context.Background()

	first, err := svc.Export(ctx, ExportRequest{ProjectID: "p1", InterviewIDs: []string{"i1"}, FileType: "csv"})
	require.NoError(t, err)
	savesAfterFirst := blobs.saves

	second, err := svc.Export(ctx, ExportRequest{ProjectID: "p1", InterviewIDs: []string{"i1"}, FileType: "csv"})
	require.NoError(t, err)
	assert.Equal(t, first.URL, second.URL)
	assert.Equal(t, savesAfterFirst, blobs.saves, "second request served from cache")
}

func TestExport_KeyInsensitiveToExcludeOrder(t *testing.T) {
	data := seed(t)
	blobs := newFakeBlobs()
	svc := New(data, blobs, Config{})
	ctx := context.Background()

	a, err := svc.Export(ctx, ExportRequest{ProjectID: "p1", InterviewIDs: []string{"i1"}, FileType: "csv", Exclude: []string{"skipped", "starred"}})
	require.NoError(t, err)
	b, err := svc.Export(ctx, ExportRequest{ProjectID: "p1", InterviewIDs: []string{"i1"}, FileType: "csv", Exclude: []string{"starred", "skipped"}})
	require.NoError(t, err)
	assert.Equal(t, a.Path, b.Path)
}

func TestExport_NoDataCategorized(t *testing.T) {
	data := seed(t)
	data.responses["i1"] = nil
	svc := New(data, newFakeBlobs(), Config{})

	_, err := svc.Export(context.Background(), ExportRequest{ProjectID: "p1", InterviewIDs: []string{"i1"}, FileType: "csv"})
	assert.ErrorIs(t, err, ErrNoReportData)
}

func TestExport_SaveFailureReturnsUncachedBytes(t *testing.T) {
	data := seed(t)
	blobs := newFakeBlobs()
	blobs.failSave = true
	svc := New(data, blobs, Config{})

	ref, err := svc.Export(context.Background(), ExportRequest{ProjectID: "p1", InterviewIDs: []string{"i1"}, FileType: "csv"})
	require.NoError(t, err)
	assert.Empty(t, ref.URL)
	assert.NotEmpty(t, ref.Data, "uncached bytes still delivered")
}

func TestExport_XLSX(t *testing.T) {
	data := seed(t)
	blobs := newFakeBlobs()
	svc := New(data, blobs, Config{})

	ref, err := svc.Export(context.Background(), ExportRequest{
		ProjectID: "p1", InterviewIDs: []string{"i1"}, FileType: "xlsx", Filename: "round1.xlsx", RequestedBy: "Ada",
	})
	require.NoError(t, err)
	assert.Equal(t, "round1.xlsx", ref.Filename)
	assert.NotEmpty(t, blobs.blobs[ref.Path])
}

func TestExport_UnsupportedFileType(t *testing.T) {
	data := seed(t)
	svc := New(data, newFakeBlobs(), Config{})
	_, err := svc.Export(context.Background(), ExportRequest{ProjectID: "p1", InterviewIDs: []string{"i1"}, FileType: "pdf"})
	assert.Error(t, err)
}

func TestInvalidate_RemovesReportsAndDerivedExports(t *testing.T) {
	data := seed(t)
	blobs := newFakeBlobs()
	svc := New(data, blobs, Config{})
	ctx := context.Background()

	_, err := svc.Report(ctx, "p1", "i1", "")
	require.NoError(t, err)
	_, err = svc.Report(ctx, "p1", "i1", "fr")
	require.NoError(t, err)
	ref, err := svc.Export(ctx, ExportRequest{ProjectID: "p1", InterviewIDs: []string{"i1"}, FileType: "csv"})
	require.NoError(t, err)

	// An export for a different interview survives.
	blobs.blobs["exports/p1/other/key.csv"] = []byte("x")

	require.NoError(t, svc.Invalidate(ctx, "p1", "i1"))
	assert.NotContains(t, blobs.blobs, "reports/p1/i1/data.json")
	assert.NotContains(t, blobs.blobs, "reports/p1/i1/fr.json")
	assert.NotContains(t, blobs.blobs, ref.Path)
	assert.Contains(t, blobs.blobs, "exports/p1/other/key.csv")
}

func TestInvalidate_MatchesInterviewIDExactly(t *testing.T) {
	data := seed(t)
	blobs := newFakeBlobs()
	svc := New(data, blobs, Config{})
	ctx := context.Background()

	// "i1" is a prefix of "i10" but names a different interview.
	blobs.blobs["exports/p1/i10-i2/key.csv"] = []byte("x")
	blobs.blobs["exports/p1/i10/key.csv"] = []byte("x")
	blobs.blobs["exports/p1/i1-i2/key.csv"] = []byte("x")
	blobs.blobs["exports/p1/i2-i1/key.csv"] = []byte("x")
	blobs.blobs["exports/p1/i2-i1-i3/key.csv"] = []byte("x")

	require.NoError(t, svc.Invalidate(ctx, "p1", "i1"))
	assert.Contains(t, blobs.blobs, "exports/p1/i10-i2/key.csv")
	assert.Contains(t, blobs.blobs, "exports/p1/i10/key.csv")
	assert.NotContains(t, blobs.blobs, "exports/p1/i1-i2/key.csv")
	assert.NotContains(t, blobs.blobs, "exports/p1/i2-i1/key.csv")
	assert.NotContains(t, blobs.blobs, "exports/p1/i2-i1-i3/key.csv")
}

func TestProof_MarksAndInvalidates(t *testing.T) {
	data := seed(t)
	blobs := newFakeBlobs()
	svc := New(data, blobs, Config{})
	ctx := context.Background()

	_, err := svc.Report(ctx, "p1", "i1", "")
	require.NoError(t, err)
	require.Contains(t, blobs.blobs, "reports/p1/i1/data.json")

	require.NoError(t, svc.Proof(ctx, "p1", "i1", "r1", "q1", "reviewer-7"))
	assert.Equal(t, []string{"r1/q1"}, data.proofed)
	assert.NotContains(t, blobs.blobs, "reports/p1/i1/data.json", "proofing invalidates the cached report")
}
