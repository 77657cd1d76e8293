package aggregate

import (
	"strings"

	"github.com/sells-group/survey-cli/internal/model"
)

// SkipState classifies how a question came to be unanswered.
type SkipState int

const (
	SkipNone  SkipState = iota // answered, or at least not marked skipped
	SkipUser                   // respondent declined ("Skipped" in the UI)
	SkipLogic                  // bypassed by skip logic ("Ignored" in the UI)
)

// Skip resolves the two skip bits into a single state. The buckets are
// mutually exclusive even though both stem from is_skipped.
func Skip(a model.Answer) SkipState {
	if !a.IsSkipped {
		return SkipNone
	}
	if a.IsSkippedBySkipLogic {
		return SkipLogic
	}
	return SkipUser
}

// Answered reports whether the answer carries a usable value: not skipped
// and at least one non-blank entry.
func Answered(a model.Answer) bool {
	if a.IsSkipped {
		return false
	}
	for _, v := range a.Answers {
		if strings.TrimSpace(v) != "" {
			return true
		}
	}
	return false
}

// SelectedValues returns the option values to count for a coded answer.
// Translated submissions carry the source-language selection in
// original_answers; counting prefers that so tallies line up with the
// catalog's primary-language options.
func SelectedValues(a model.Answer) []string {
	if len(a.OriginalAnswers) > 0 {
		return a.OriginalAnswers
	}
	return a.Answers
}

// FreeText returns the free-text body of an answer, which travels as a
// one-element list.
func FreeText(a model.Answer) string {
	if len(a.Answers) == 0 {
		return ""
	}
	return a.Answers[0]
}

// OriginalFreeText returns the pre-translation body, empty when the answer
// was never translated.
func OriginalFreeText(a model.Answer) string {
	if len(a.OriginalAnswers) == 0 {
		return ""
	}
	return a.OriginalAnswers[0]
}

// AnswerText renders an answer for the flagged/starred/skipped buckets:
// the free-text body, or the selected options joined with ", ".
func AnswerText(a model.Answer) string {
	if a.Question.Type.Coded() {
		return strings.Join(SelectedValues(a), ", ")
	}
	return FreeText(a)
}
