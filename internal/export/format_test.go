package export

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sells-group/survey-cli/internal/model"
)

func exportBatch(responses ...model.Response) Batch {
	return Batch{
		Project:   model.Project{ID: "p1", Name: "Hearth Survey"},
		Interview: model.Interview{ID: "i1", ProjectID: "p1", Title: "Round 1", PrimaryLanguage: "en"},
		Questions: []model.Question{
			{ID: "q1", Order: 100, Type: model.QuestionCodedSingle, Title: "Feel safe?", Options: []string{"Yes", "No"}},
			{ID: "q2", Order: 200, Type: model.QuestionFreeText, Title: "Tell us more"},
		},
		Responses: responses,
	}
}

func respWithAnswers(id string, answers map[string]model.Answer) model.Response {
	return model.Response{
		ID:        id,
		Age:       34,
		Gender:    "female",
		StartTime: model.At(time.Date(2024, 5, 3, 14, 5, 0, 0, time.UTC)),
		EndTime:   model.At(time.Date(2024, 5, 3, 14, 35, 0, 0, time.UTC)),
		CreatedBy: &model.Enumerator{ID: "e1", Name: "Ada"},
		Answers:   answers,
	}
}

func codedAns(qid string, order float64, selected ...string) model.Answer {
	return model.Answer{
		Question: model.QuestionSnapshot{
			ID: qid, Title: model.TitleMap{"": "Feel safe?"}, Order: &order,
			Type: model.QuestionCodedSingle, Options: []string{"Yes", "No"},
		},
		Answers: selected,
	}
}

func textAns(qid string, order float64, body string) model.Answer {
	return model.Answer{
		Question: model.QuestionSnapshot{
			ID: qid, Title: model.TitleMap{"": "Tell us more"}, Order: &order,
			Type: model.QuestionFreeText,
		},
		Answers: []string{body},
	}
}

func TestFormat_FixedColumns(t *testing.T) {
	b := exportBatch(respWithAnswers("r1", map[string]model.Answer{}))
	tables := Formatter{PrimaryLanguage: "en"}.Format([]Batch{b})
	require.Len(t, tables, 1)
	require.Len(t, tables[0].Rows, 1)
	row := tables[0].Rows[0]

	assert.Equal(t, "Hearth Survey", row.Get("Project"))
	assert.Equal(t, "Round 1", row.Get("Interview"))
	assert.Equal(t, "en", row.Get("Interview language"))
	assert.Equal(t, "34", row.Get("Age"))
	assert.Equal(t, "female", row.Get("Gender"))
	assert.Equal(t, "0", row.Get("Beneficiary"))
	assert.Equal(t, "May 3 2024, 14:05pm", row.Get("Started"))
	assert.Equal(t, "May 3 2024, 14:35pm", row.Get("Ended"))
	assert.Equal(t, "e1", row.Get("Enumerator ID"))
	assert.Equal(t, "Ada", row.Get("Enumerator Name"))
}

func TestFormat_AnonymousEnumerator(t *testing.T) {
	r := respWithAnswers("r1", map[string]model.Answer{})
	r.CreatedBy = nil
	tables := Formatter{PrimaryLanguage: "en"}.Format([]Batch{exportBatch(r)})
	row := tables[0].Rows[0]
	assert.Equal(t, "-", row.Get("Enumerator ID"))
	assert.Equal(t, "-", row.Get("Enumerator Name"))
}

func TestFormat_CodedColumns(t *testing.T) {
	r := respWithAnswers("r1", map[string]model.Answer{"q1": codedAns("q1", 100, "No")})
	tables := Formatter{PrimaryLanguage: "en"}.Format([]Batch{exportBatch(r)})
	row := tables[0].Rows[0]

	assert.Equal(t, "1. Yes|2. No", row.Get("Feel safe? / All options"))
	assert.Equal(t, "2. No", row.Get("Feel safe? / Answer"))
	assert.Equal(t, "0", row.Get("Feel safe? / 1. Yes"))
	assert.Equal(t, "1", row.Get("Feel safe? / 2. No"))
	// Coded questions get no proofing columns.
	assert.False(t, row.Has("Feel safe? / Proofed"))
}

func TestFormat_FreeTextColumns(t *testing.T) {
	a := textAns("q2", 200, "c'est bon")
	a.OriginalAnswers = []string{"it is good"}
	a.IsTranslated = true
	a.IsProofed = true
	a.UsedTranscription = true
	r := respWithAnswers("r1", map[string]model.Answer{"q2": a})

	tables := Formatter{PrimaryLanguage: "en"}.Format([]Batch{exportBatch(r)})
	row := tables[0].Rows[0]

	assert.Equal(t, "c'est bon", row.Get("Tell us more / Answer"))
	assert.Equal(t, "it is good", row.Get("Tell us more / Original answer"))
	assert.Equal(t, "1", row.Get("Tell us more / Proofed"))
	assert.Equal(t, "0", row.Get("Tell us more / Flagged"))
	assert.Equal(t, "0", row.Get("Tell us more / Starred"))
	assert.Equal(t, "1", row.Get("Tell us more / Translated"))
	assert.Equal(t, "1", row.Get("Tell us more / Used transcription"))
}

// The Skipped/Ignored headers are intentionally inverted versus the report
// bucket names: "Skipped" records the skip-logic bypass.
func TestFormat_SkippedIgnoredHeaderInversion(t *testing.T) {
	bySkipLogic := codedAns("q1", 100)
	bySkipLogic.IsSkipped = true
	bySkipLogic.IsSkippedBySkipLogic = true
	r := respWithAnswers("r1", map[string]model.Answer{"q1": bySkipLogic})

	tables := Formatter{PrimaryLanguage: "en"}.Format([]Batch{exportBatch(r)})
	row := tables[0].Rows[0]
	assert.Equal(t, "1", row.Get("Feel safe? / Skipped"))
	assert.Equal(t, "0", row.Get("Feel safe? / Ignored"))

	declined := codedAns("q1", 100)
	declined.IsSkipped = true
	r2 := respWithAnswers("r2", map[string]model.Answer{"q1": declined})
	tables = Formatter{PrimaryLanguage: "en"}.Format([]Batch{exportBatch(r2)})
	row = tables[0].Rows[0]
	assert.Equal(t, "0", row.Get("Feel safe? / Skipped"))
	assert.Equal(t, "1", row.Get("Feel safe? / Ignored"))
}

func TestFormat_ColumnUnionAcrossProbingQuestions(t *testing.T) {
	probe := model.Answer{
		Question: model.QuestionSnapshot{
			ID: "probe-1", Title: model.TitleMap{"": "Why though?"},
			Order: float64Ptr(150), Type: model.QuestionFreeText,
		},
		Answers: []string{"because"},
	}
	r1 := respWithAnswers("r1", map[string]model.Answer{"q1": codedAns("q1", 100, "Yes")})
	r2 := respWithAnswers("r2", map[string]model.Answer{
		"q1":      codedAns("q1", 100, "No"),
		"probe-1": probe,
	})

	tables := Formatter{PrimaryLanguage: "en"}.Format([]Batch{exportBatch(r1, r2)})
	require.Len(t, tables[0].Rows, 2)

	assert.Contains(t, tables[0].Columns, "Why though? / Answer")
	// Backfill: the row that never saw the probing question reads empty.
	assert.Equal(t, "", tables[0].Rows[0].Get("Why though? / Answer"))
	assert.Equal(t, "because", tables[0].Rows[1].Get("Why though? / Answer"))
}

// Scenario C: one exclusion token strips the field from every question and
// probing question, leaving the Ignored columns untouched.
func TestFormat_ExcludeSuffixMatch(t *testing.T) {
	probe := model.Answer{
		Question: model.QuestionSnapshot{
			ID: "probe-1", Title: model.TitleMap{"": "Why though?"},
			Order: float64Ptr(150), Type: model.QuestionFreeText,
		},
		Answers: []string{"because"},
	}
	r := respWithAnswers("r1", map[string]model.Answer{
		"q1":      codedAns("q1", 100, "Yes"),
		"q2":      textAns("q2", 200, "more"),
		"probe-1": probe,
	})

	f := Formatter{PrimaryLanguage: "en", Exclude: []string{"skipped"}}
	tables := f.Format([]Batch{exportBatch(r)})

	for _, col := range tables[0].Columns {
		assert.NotRegexp(t, ` / Skipped$`, col)
	}
	assert.Contains(t, tables[0].Columns, "Feel safe? / Ignored")
	assert.Contains(t, tables[0].Columns, "Why though? / Ignored")
}

func TestFormat_ExcludeFixedFieldExactMatch(t *testing.T) {
	r := respWithAnswers("r1", map[string]model.Answer{})
	f := Formatter{PrimaryLanguage: "en", Exclude: []string{"Enumerator ID"}}
	tables := f.Format([]Batch{exportBatch(r)})

	assert.NotContains(t, tables[0].Columns, "Enumerator ID")
	assert.Contains(t, tables[0].Columns, "Enumerator Name")
}

func TestFormat_AnswerOrderFollowsQuestionOrder(t *testing.T) {
	r := respWithAnswers("r1", map[string]model.Answer{
		"q2": textAns("q2", 200, "later"),
		"q1": codedAns("q1", 100, "Yes"),
	})
	tables := Formatter{PrimaryLanguage: "en"}.Format([]Batch{exportBatch(r)})

	cols := tables[0].Columns
	safeIdx, moreIdx := -1, -1
	for i, c := range cols {
		if c == "Feel safe? / Answer" {
			safeIdx = i
		}
		if c == "Tell us more / Answer" {
			moreIdx = i
		}
	}
	require.NotEqual(t, -1, safeIdx)
	require.NotEqual(t, -1, moreIdx)
	assert.Less(t, safeIdx, moreIdx)
}

func TestFormat_Deterministic(t *testing.T) {
	r := respWithAnswers("r1", map[string]model.Answer{
		"q1": codedAns("q1", 100, "Yes"),
		"q2": textAns("q2", 200, "body"),
	})
	f := Formatter{PrimaryLanguage: "en"}
	first := f.Format([]Batch{exportBatch(r)})
	second := f.Format([]Batch{exportBatch(r)})
	assert.Equal(t, first[0].Columns, second[0].Columns)
	assert.Equal(t, first[0].Rows[0].Keys(), second[0].Rows[0].Keys())
}

func float64Ptr(v float64) *float64 { return &v }
