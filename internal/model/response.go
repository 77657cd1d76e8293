package model

// QuestionSnapshot is the question as it appeared when the answer was
// recorded. Probing questions exist only here, never in the catalog.
type QuestionSnapshot struct {
	ID      string       `json:"id"`
	Title   TitleMap     `json:"title"`
	Order   *float64     `json:"order,omitempty"`
	Type    QuestionType `json:"type"`
	Options []string     `json:"options,omitempty"`
}

// AnswerFlags carry the per-answer state bits. is_skipped pairs with
// is_skipped_by_skip_logic to distinguish a respondent declining (skipped)
// from a skip-logic bypass (ignored).
type AnswerFlags struct {
	IsFlagged            bool `json:"is_flagged"`
	IsSkipped            bool `json:"is_skipped"`
	IsSkippedBySkipLogic bool `json:"is_skipped_by_skip_logic"`
	IsStarred            bool `json:"is_starred"`
	IsTranslated         bool `json:"is_translated"`
	IsProbingQuestion    bool `json:"is_probing_question"`
}

// Proofing records manual review of a free-text answer.
type Proofing struct {
	IsProofed bool     `json:"is_proofed"`
	ProofedBy string   `json:"proofed_by,omitempty"`
	ProofedAt FlexTime `json:"proofed_at,omitempty"`
}

// Answer is one respondent's answer to one question. Selected options and
// free text both travel in Answers; free text is a one-element list.
// OriginalAnswers holds pre-translation values for translated submissions.
type Answer struct {
	Question          QuestionSnapshot `json:"question"`
	Answers           []string         `json:"answers"`
	OriginalAnswers   []string         `json:"original_answers,omitempty"`
	AnswerFlags
	Proofing
	UsedTranscription bool `json:"used_transcription"`
}

// EffectiveOrder is the answer's sort position: the snapshot order when
// present, else the catalog question's order.
func (a Answer) EffectiveOrder(catalog map[string]Question) float64 {
	if a.Question.Order != nil {
		return *a.Question.Order
	}
	if q, ok := catalog[a.Question.ID]; ok {
		return q.Order
	}
	return 0
}

// Enumerator identifies the field worker who recorded a response. A nil
// Enumerator on a Response means the submitter is anonymous.
type Enumerator struct {
	ID   string `json:"id"`
	Name string `json:"name"`
}

// Response is one respondent's full interview record.
type Response struct {
	ID                  string            `json:"id"`
	StartTime           FlexTime          `json:"start_time"`
	EndTime             FlexTime          `json:"end_time"`
	Age                 int               `json:"age"`
	Gender              string            `json:"gender"`
	IsBeneficiary       bool              `json:"is_beneficiary"`
	ConsentRelationship string            `json:"consent_relationship,omitempty"`
	EnumeratorNotes     string            `json:"enumerator_notes,omitempty"`
	Language            string            `json:"language,omitempty"`
	CreatedBy           *Enumerator       `json:"created_by,omitempty"`
	CreatedAt           FlexTime          `json:"created_at"`
	Answers             map[string]Answer `json:"answers"`
}

// DurationSeconds is the interview length, or 0 when either bound is
// missing or the clock ran backwards.
func (r Response) DurationSeconds() float64 {
	if r.StartTime.IsZero() || r.EndTime.IsZero() {
		return 0
	}
	d := r.EndTime.Sub(r.StartTime.Time).Seconds()
	if d < 0 {
		return 0
	}
	return d
}
