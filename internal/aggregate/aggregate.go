// Package aggregate turns a question catalog and a set of per-respondent
// answer records into a statistical report.
package aggregate

import (
	"math"
	"sort"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/sells-group/survey-cli/internal/model"
	"github.com/sells-group/survey-cli/internal/translate"
)

// ErrNoResponses is the empty sentinel: an interview with zero responses
// has no report, which the presentation layer maps to an empty state.
var ErrNoResponses = eris.New("aggregate: no responses")

// DefaultOpenResponseCap bounds how many distinct open-response questions a
// report may carry verbatim bodies for. Beyond it, counts survive but the
// open-response collections are omitted and the UI degrades.
const DefaultOpenResponseCap = 20

// Aggregator computes reports. The zero value uses DefaultOpenResponseCap.
type Aggregator struct {
	OpenResponseCap int
}

// tally accumulates one question's statistics during the walk.
type tally struct {
	stats   model.QuestionStats
	counts  map[string]int
	options []string
}

func newTally(stats model.QuestionStats, options []string) *tally {
	t := &tally{stats: stats, counts: make(map[string]int, len(options)), options: options}
	for _, opt := range options {
		t.counts[opt] = 0
	}
	return t
}

// finish converts the option-count map into an ordered list following the
// option order the tally was created with, never first-seen order.
func (t *tally) finish() model.QuestionStats {
	s := t.stats
	if s.Type.Coded() {
		s.OptionsSelected = make([]model.OptionCount, 0, len(t.options))
		for _, opt := range t.options {
			s.OptionsSelected = append(s.OptionsSelected, model.OptionCount{Title: opt, Count: t.counts[opt]})
		}
	}
	return s
}

// Aggregate walks every answer of every response against the catalog and
// returns the report for the requested language. It returns ErrNoResponses
// for an empty response set and otherwise never fails on malformed data:
// bad timestamps and missing translations fall back silently.
func (g Aggregator) Aggregate(questions []model.Question, responses []model.Response, primary, requested string) (*model.Report, error) {
	if len(responses) == 0 {
		return nil, ErrNoResponses
	}
	openCap := g.OpenResponseCap
	if openCap <= 0 {
		openCap = DefaultOpenResponseCap
	}

	catalog := make(map[string]model.Question, len(questions))
	byNumber := make(map[float64]string, len(questions))
	templates := make(map[string]*tally, len(questions))
	for _, q := range questions {
		catalog[q.ID] = q
		byNumber[q.Number()] = q.ID
		templates[q.ID] = newTally(model.QuestionStats{
			ID:     q.ID,
			Title:  model.TitleMap{primary: q.Title},
			Number: q.Number(),
			Type:   q.Type,
		}, q.Options)
	}

	probing := make(map[string]map[string]*tally)
	rep := &model.Report{
		OpenResponses:        map[string]map[string]model.OpenResponse{},
		OpenResponsesOrdered: map[string][]string{},
		FlaggedQuestions:     map[string][]model.AnswerRef{},
		StarredQuestions:     map[string][]model.AnswerRef{},
		SkippedQuestions:     map[string][]model.AnswerRef{},
		IgnoredQuestions:     map[string][]model.AnswerRef{},
		TotalResponses:       len(responses),
	}

	for _, resp := range responses {
		for _, qid := range sortedAnswerIDs(resp) {
			a := resp.Answers[qid]
			t := templates[qid]
			if t == nil {
				t = g.probingTally(probing, byNumber, qid, a)
				if t == nil {
					// Parent unresolvable: the probing question and its
					// stats are dropped. Logged as a data-quality signal.
					continue
				}
			}
			g.walkAnswer(rep, t, resp, qid, a)
		}
	}

	// Regular questions, ordered by catalog position.
	rep.Questions = make([]model.QuestionStats, 0, len(templates))
	for _, t := range templates {
		rep.Questions = append(rep.Questions, t.finish())
	}
	sort.Slice(rep.Questions, func(i, j int) bool {
		return rep.Questions[i].Number < rep.Questions[j].Number
	})
	for i, qs := range rep.Questions {
		rep.Questions[i] = translate.Resolve(qs, catalog, primary, requested)
	}

	if len(probing) > 0 {
		rep.ProbingQuestions = make(map[string]map[string]model.QuestionStats, len(probing))
		for parentID, kids := range probing {
			rep.ProbingQuestions[parentID] = make(map[string]model.QuestionStats, len(kids))
			for qid, t := range kids {
				rep.ProbingQuestions[parentID][qid] = translate.Resolve(t.finish(), catalog, primary, requested)
			}
		}
	}

	rep.Languages = translate.Languages(rep.Questions, primary)
	g.topLevelStats(rep, responses)

	if len(rep.OpenResponses) > openCap {
		zap.L().Info("open response cap exceeded, omitting bodies",
			zap.Int("questions", len(rep.OpenResponses)),
			zap.Int("cap", openCap))
		rep.OpenResponses = nil
		rep.OpenResponsesOrdered = nil
	}
	return rep, nil
}

// probingTally locates or synthesizes the tally for a probing question,
// attributing it to a parent by positional inference. Returns nil when no
// parent resolves.
func (g Aggregator) probingTally(probing map[string]map[string]*tally, byNumber map[float64]string, qid string, a model.Answer) *tally {
	var order float64
	if a.Question.Order != nil {
		order = *a.Question.Order
	}
	parentID, ok := byNumber[math.Floor(order/100)+1]
	if !ok {
		zap.L().Warn("orphaned probing question dropped",
			zap.String("question_id", qid),
			zap.Float64("order", order),
			zap.Float64("inferred_parent_number", math.Floor(order/100)+1))
		return nil
	}
	kids := probing[parentID]
	if kids == nil {
		kids = make(map[string]*tally)
		probing[parentID] = kids
	}
	if t, ok := kids[qid]; ok {
		return t
	}
	t := newTally(model.QuestionStats{
		ID:                qid,
		Title:             a.Question.Title,
		Number:            order / 100,
		Type:              a.Question.Type,
		IsProbingQuestion: true,
	}, a.Question.Options)
	kids[qid] = t
	return t
}

// walkAnswer merges one answer into its question's tally and the report's
// buckets.
func (g Aggregator) walkAnswer(rep *model.Report, t *tally, resp model.Response, qid string, a model.Answer) {
	if a.IsFlagged {
		rep.FlaggedQuestions[qid] = append(rep.FlaggedQuestions[qid], model.AnswerRef{ResponseID: resp.ID, Text: AnswerText(a)})
		t.stats.TotalFlags++
	}
	if a.IsStarred {
		rep.StarredQuestions[qid] = append(rep.StarredQuestions[qid], model.AnswerRef{ResponseID: resp.ID, Text: AnswerText(a)})
		t.stats.TotalStars++
	}

	if !Answered(a) {
		ref := model.AnswerRef{ResponseID: resp.ID, Text: AnswerText(a)}
		if a.IsSkipped && a.IsSkippedBySkipLogic {
			rep.IgnoredQuestions[qid] = append(rep.IgnoredQuestions[qid], ref)
			t.stats.TotalIgnores++
		} else {
			rep.SkippedQuestions[qid] = append(rep.SkippedQuestions[qid], ref)
			t.stats.TotalSkips++
		}
		return
	}

	if a.Question.Type.Coded() {
		for _, v := range SelectedValues(a) {
			if _, ok := t.counts[v]; ok {
				t.counts[v]++
			}
		}
		t.stats.TotalAnswers++
		return
	}

	if rep.OpenResponses != nil {
		byResp := rep.OpenResponses[qid]
		if byResp == nil {
			byResp = make(map[string]model.OpenResponse)
			rep.OpenResponses[qid] = byResp
		}
		if _, seen := byResp[resp.ID]; !seen {
			rep.OpenResponsesOrdered[qid] = append(rep.OpenResponsesOrdered[qid], resp.ID)
		}
		byResp[resp.ID] = model.OpenResponse{
			Text:              FreeText(a),
			OriginalText:      OriginalFreeText(a),
			IsFlagged:         a.IsFlagged,
			IsStarred:         a.IsStarred,
			IsTranslated:      a.IsTranslated,
			UsedTranscription: a.UsedTranscription,
			IsProofed:         a.IsProofed,
			ProofedBy:         a.ProofedBy,
		}
	}
	t.stats.TotalAnswers++
}

// topLevelStats fills the respondent-level aggregates.
func (g Aggregator) topLevelStats(rep *model.Report, responses []model.Response) {
	genderCounts := map[string]int{}
	var beneficiaries, consents int
	var durations []float64
	for _, resp := range responses {
		genderCounts[MatchGender(resp.Gender)]++
		if resp.IsBeneficiary {
			beneficiaries++
		}
		if resp.ConsentRelationship != "" {
			consents++
		}
		if d := resp.DurationSeconds(); d > 0 {
			durations = append(durations, d)
		}
		if resp.EnumeratorNotes != "" {
			rep.EnumeratorNotes = append(rep.EnumeratorNotes, model.AnswerRef{ResponseID: resp.ID, Text: resp.EnumeratorNotes})
		}
	}

	rep.GenderPercentages = make(map[string]string, len(genderCounts))
	for bucket, n := range genderCounts {
		rep.GenderPercentages[bucket] = Ratio(n, len(responses))
	}
	rep.BeneficiaryPercent = Ratio(beneficiaries, len(responses))
	rep.ConsentPercent = Ratio(consents, len(responses))
	rep.DurationAverage = Average(durations)
	rep.DurationMedian = Median(durations)
}

// sortedAnswerIDs fixes the walk order within one response so aggregation
// is deterministic.
func sortedAnswerIDs(resp model.Response) []string {
	ids := make([]string, 0, len(resp.Answers))
	for qid := range resp.Answers {
		ids = append(ids, qid)
	}
	sort.Strings(ids)
	return ids
}
