// Package export flattens responses into rectangular tabular rows with a
// stable column ordering and a field-exclusion filter.
package export

import (
	"fmt"
	"sort"
	"strconv"
	"strings"

	"github.com/sells-group/survey-cli/internal/aggregate"
	"github.com/sells-group/survey-cli/internal/model"
	"github.com/sells-group/survey-cli/internal/translate"
)

// Batch is one interview's worth of export input.
type Batch struct {
	Project   model.Project
	Interview model.Interview
	Questions []model.Question
	Responses []model.Response
}

// Table is one interview's reconciled output: every row answers to the
// same column set.
type Table struct {
	Title   string
	Columns []string
	Rows    []*Row
}

// Formatter flattens batches into tables. Exclude drops columns: exact
// match for fixed fields ("Enumerator ID"), suffix match for per-question
// fields ("skipped" strips every "... / Skipped" column, probing questions
// included).
type Formatter struct {
	RequestedLanguage string
	PrimaryLanguage   string
	Exclude           []string
}

// Format builds one table per interview. Tables with zero responses are
// returned with headers only.
func (f Formatter) Format(batches []Batch) []Table {
	tables := make([]Table, 0, len(batches))
	for _, b := range batches {
		tables = append(tables, f.formatBatch(b))
	}
	return tables
}

func (f Formatter) formatBatch(b Batch) Table {
	catalog := make(map[string]model.Question, len(b.Questions))
	for _, q := range b.Questions {
		catalog[q.ID] = q
	}
	primary := f.PrimaryLanguage
	if primary == "" {
		primary = b.Interview.PrimaryLanguage
	}

	rows := make([]*Row, 0, len(b.Responses))
	for _, resp := range b.Responses {
		rows = append(rows, f.formatResponse(b, resp, catalog, primary))
	}

	columns := UnionColumns(rows)
	if len(f.Exclude) > 0 {
		kept := columns[:0]
		for _, col := range columns {
			if !f.excludedColumn(col) {
				kept = append(kept, col)
			}
		}
		columns = kept
	}
	return Table{Title: b.Interview.Title, Columns: columns, Rows: rows}
}

func (f Formatter) formatResponse(b Batch, resp model.Response, catalog map[string]model.Question, primary string) *Row {
	row := NewRow()

	row.Set("Project", b.Project.Name)
	row.Set("Interview", b.Interview.Title)
	lang := resp.Language
	if lang == "" {
		lang = primary
	}
	row.Set("Interview language", lang)
	age := ""
	if resp.Age > 0 {
		age = strconv.Itoa(resp.Age)
	}
	row.Set("Age", age)
	row.Set("Gender", resp.Gender)
	row.Set("Beneficiary", boolCell(resp.IsBeneficiary))
	row.Set("Consent Relationship", resp.ConsentRelationship)
	row.Set("Started", formatTimestamp(resp.StartTime))
	row.Set("Ended", formatTimestamp(resp.EndTime))
	row.Set("Enumerator Notes", resp.EnumeratorNotes)
	if resp.CreatedBy != nil {
		row.Set("Enumerator ID", resp.CreatedBy.ID)
		row.Set("Enumerator Name", resp.CreatedBy.Name)
	} else {
		row.Set("Enumerator ID", "-")
		row.Set("Enumerator Name", "-")
	}

	for _, qid := range orderedAnswerIDs(resp, catalog) {
		f.formatAnswer(row, resp.Answers[qid], catalog, primary)
	}
	return row
}

func (f Formatter) formatAnswer(row *Row, a model.Answer, catalog map[string]model.Question, primary string) {
	title := f.answerTitle(a, catalog, primary)

	if a.Question.Type.Coded() {
		options := a.Question.Options
		if len(options) == 0 {
			if q, ok := catalog[a.Question.ID]; ok {
				options = q.Options
			}
		}
		row.Set(title+" / All options", joinAllOptions(options))
		row.Set(title+" / Answer", joinSelected(a.Answers, options))
		selected := selectionSet(a)
		for i, opt := range options {
			row.Set(fmt.Sprintf("%s / %d. %s", title, i+1, opt), boolCell(selected[opt]))
		}
	} else {
		row.Set(title+" / Answer", aggregate.FreeText(a))
		row.Set(title+" / Original answer", aggregate.OriginalFreeText(a))
	}

	// Header naming here is inverted versus the report buckets: the
	// "Skipped" column records skip-logic skips and "Ignored" records the
	// respondent declining. Downstream tooling matches on these exact
	// strings, so the asymmetry stays.
	row.Set(title+" / Skipped", boolCell(a.IsSkippedBySkipLogic))
	row.Set(title+" / Ignored", boolCell(a.IsSkipped && !a.IsSkippedBySkipLogic))

	if !a.Question.Type.Coded() {
		row.Set(title+" / Proofed", boolCell(a.IsProofed))
		row.Set(title+" / Flagged", boolCell(a.IsFlagged))
		row.Set(title+" / Starred", boolCell(a.IsStarred))
		row.Set(title+" / Translated", boolCell(a.IsTranslated))
		row.Set(title+" / Used transcription", boolCell(a.UsedTranscription))
	}
}

// answerTitle resolves the question title for the requested language,
// reusing the report-side resolver so exports and reports agree.
func (f Formatter) answerTitle(a model.Answer, catalog map[string]model.Question, primary string) string {
	stats := model.QuestionStats{ID: a.Question.ID, Title: a.Question.Title}
	resolved := translate.Resolve(stats, catalog, primary, f.RequestedLanguage)
	return resolved.Title.Get(f.RequestedLanguage, primary)
}

func (f Formatter) excludedColumn(col string) bool {
	lc := strings.ToLower(col)
	for _, tok := range f.Exclude {
		lt := strings.ToLower(strings.TrimSpace(tok))
		if lt == "" {
			continue
		}
		if lc == lt || strings.HasSuffix(lc, " / "+lt) {
			return true
		}
	}
	return false
}

// orderedAnswerIDs sorts a response's answers by the answer's own order,
// falling back to the catalog question's order, with the id as tiebreak.
func orderedAnswerIDs(resp model.Response, catalog map[string]model.Question) []string {
	ids := make([]string, 0, len(resp.Answers))
	for qid := range resp.Answers {
		ids = append(ids, qid)
	}
	sort.Slice(ids, func(i, j int) bool {
		oi := resp.Answers[ids[i]].EffectiveOrder(catalog)
		oj := resp.Answers[ids[j]].EffectiveOrder(catalog)
		if oi != oj {
			return oi < oj
		}
		return ids[i] < ids[j]
	})
	return ids
}

// joinAllOptions renders the catalog option list as "1. optA|2. optB".
func joinAllOptions(options []string) string {
	parts := make([]string, len(options))
	for i, opt := range options {
		parts[i] = fmt.Sprintf("%d. %s", i+1, opt)
	}
	return strings.Join(parts, "|")
}

// joinSelected renders selected options as "<index>. <value>" joined with
// " / ", indexing against the option list; values off the list render bare.
func joinSelected(selected, options []string) string {
	index := make(map[string]int, len(options))
	for i, opt := range options {
		index[opt] = i + 1
	}
	parts := make([]string, 0, len(selected))
	for _, v := range selected {
		if v == "" {
			continue
		}
		if n, ok := index[v]; ok {
			parts = append(parts, fmt.Sprintf("%d. %s", n, v))
		} else {
			parts = append(parts, v)
		}
	}
	return strings.Join(parts, " / ")
}

// selectionSet marks which options were chosen, in either the display or
// the original language.
func selectionSet(a model.Answer) map[string]bool {
	set := make(map[string]bool, len(a.Answers)+len(a.OriginalAnswers))
	for _, v := range a.Answers {
		set[v] = true
	}
	for _, v := range a.OriginalAnswers {
		set[v] = true
	}
	return set
}

func boolCell(b bool) string {
	if b {
		return "1"
	}
	return "0"
}

// formatTimestamp renders "May 3 2024, 14:05pm": month name, unpadded day,
// year, unpadded 24-hour clock with an am/pm tail. The shape is odd but it
// is the existing export contract.
func formatTimestamp(t model.FlexTime) string {
	if t.IsZero() {
		return ""
	}
	ampm := "am"
	if t.Hour() >= 12 {
		ampm = "pm"
	}
	return fmt.Sprintf("%s %d %d, %d:%02d%s",
		t.Month().String(), t.Day(), t.Year(), t.Hour(), t.Minute(), ampm)
}
