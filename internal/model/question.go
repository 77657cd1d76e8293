package model

import "encoding/json"

// QuestionType enumerates the supported question kinds.
type QuestionType string

const (
	QuestionCodedSingle QuestionType = "coded_single"
	QuestionCodedMulti  QuestionType = "coded_multi"
	QuestionFreeText    QuestionType = "free_text"
)

// Coded reports whether the question carries an enumerated option list.
func (t QuestionType) Coded() bool {
	return t == QuestionCodedSingle || t == QuestionCodedMulti
}

// Translation is one language's rendering of a question.
type Translation struct {
	Title   string   `json:"title"`
	Options []string `json:"options,omitempty"`
}

// Question is one entry in the interview's question catalog. Order is
// typically a multiple of 100; probing questions sit off-grid between
// catalog slots.
type Question struct {
	ID           string                 `json:"id"`
	Order        float64                `json:"order"`
	Type         QuestionType           `json:"type"`
	Title        string                 `json:"title"`
	Options      []string               `json:"options,omitempty"`
	Translations map[string]Translation `json:"translations,omitempty"`
	Archived     bool                   `json:"archived"`
}

// Number is the question's catalog position (order / 100).
func (q Question) Number() float64 {
	return q.Order / 100
}

// TitleMap maps a language code to a title string. Source data carries
// titles either as a bare string (primary language only) or as a language
// map; both decode into a map. Bare strings land under the empty key until
// Normalized rehomes them.
type TitleMap map[string]string

// UnmarshalJSON accepts both representations.
func (t *TitleMap) UnmarshalJSON(b []byte) error {
	if len(b) > 0 && b[0] == '"' {
		var s string
		if err := json.Unmarshal(b, &s); err != nil {
			return err
		}
		*t = TitleMap{"": s}
		return nil
	}
	var m map[string]string
	if err := json.Unmarshal(b, &m); err != nil {
		return err
	}
	*t = TitleMap(m)
	return nil
}

// Normalized returns a copy with any bare-string entry keyed by the primary
// language. The receiver is never mutated.
func (t TitleMap) Normalized(primary string) TitleMap {
	out := make(TitleMap, len(t))
	for lang, title := range t {
		if lang == "" {
			lang = primary
		}
		out[lang] = title
	}
	return out
}

// Get returns the title for lang, falling back to primary, then to any
// entry at all. Fallback is silent: a missing translation is never an error.
func (t TitleMap) Get(lang, primary string) string {
	if v, ok := t[lang]; ok {
		return v
	}
	if v, ok := t[primary]; ok {
		return v
	}
	if v, ok := t[""]; ok {
		return v
	}
	for _, v := range t {
		return v
	}
	return ""
}
