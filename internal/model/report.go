package model

// OptionCount is one catalog option with its selection tally. Order within
// OptionsSelected always follows the catalog option order, never the order
// options were first seen in responses.
type OptionCount struct {
	Title string `json:"title"`
	Count int    `json:"count"`
}

// QuestionStats is the aggregated view of one question.
type QuestionStats struct {
	ID                string        `json:"id"`
	Title             TitleMap      `json:"title"`
	Number            float64       `json:"number"`
	Type              QuestionType  `json:"type"`
	OptionsSelected   []OptionCount `json:"options_selected,omitempty"`
	TotalAnswers      int           `json:"total_answers"`
	TotalFlags        int           `json:"total_flags"`
	TotalStars        int           `json:"total_stars"`
	TotalSkips        int           `json:"total_skips"`
	TotalIgnores      int           `json:"total_ignores"`
	IsProbingQuestion bool          `json:"is_probing_question,omitempty"`
}

// AnswerRef points a bucket entry back at its response.
type AnswerRef struct {
	ResponseID string `json:"response_id"`
	Text       string `json:"text"`
}

// OpenResponse is one free-text answer body with its review state.
type OpenResponse struct {
	Text              string `json:"text"`
	OriginalText      string `json:"original_text,omitempty"`
	IsFlagged         bool   `json:"is_flagged"`
	IsStarred         bool   `json:"is_starred"`
	IsTranslated      bool   `json:"is_translated"`
	UsedTranscription bool   `json:"used_transcription"`
	IsProofed         bool   `json:"is_proofed"`
	ProofedBy         string `json:"proofed_by,omitempty"`
}

// Report is the aggregated statistics for one interview in one language.
// It is a derived, disposable cache entry: recomputed from current data
// whenever absent.
//
// OpenResponses and OpenResponsesOrdered are nil when the interview carries
// more open-response questions than the configured cap; counts are always
// present. Callers must treat the absence as a degrade signal, not an error.
type Report struct {
	Questions            []QuestionStats                     `json:"questions"`
	ProbingQuestions     map[string]map[string]QuestionStats `json:"probing_questions,omitempty"`
	OpenResponses        map[string]map[string]OpenResponse  `json:"open_responses,omitempty"`
	OpenResponsesOrdered map[string][]string                 `json:"open_responses_ordered,omitempty"`
	FlaggedQuestions     map[string][]AnswerRef              `json:"flagged_questions,omitempty"`
	StarredQuestions     map[string][]AnswerRef              `json:"starred_questions,omitempty"`
	SkippedQuestions     map[string][]AnswerRef              `json:"skipped_questions,omitempty"`
	IgnoredQuestions     map[string][]AnswerRef              `json:"ignored_questions,omitempty"`
	Languages            []string                            `json:"languages"`
	GenderPercentages    map[string]string                   `json:"gender_percentages"`
	BeneficiaryPercent   string                              `json:"beneficiary_percent"`
	ConsentPercent       string                              `json:"consent_percent"`
	DurationAverage      float64                             `json:"duration_average"`
	DurationMedian       float64                             `json:"duration_median"`
	EnumeratorNotes      []AnswerRef                         `json:"enumerator_notes,omitempty"`
	TotalResponses       int                                 `json:"total_responses"`
}
