// Package translate overlays a requested language onto question titles and
// options, falling back silently to the primary language.
package translate

import (
	"sort"

	"golang.org/x/text/language"

	"github.com/sells-group/survey-cli/internal/model"
)

// Resolve returns stats with its title normalized to a language map and,
// when the catalog question carries a translation for the requested
// language, that language's title (and options, for coded questions)
// copied in. The primary-language entry is never touched, the input is
// never mutated, and a missing translation is never an error: the result
// then carries only what the input already had.
func Resolve(stats model.QuestionStats, catalog map[string]model.Question, primary, requested string) model.QuestionStats {
	out := stats
	out.Title = stats.Title.Normalized(primary)

	if requested == "" || requested == primary {
		return out
	}

	q, ok := catalog[stats.ID]
	if !ok {
		// Probing questions have no catalog entry and so no translations.
		return out
	}
	tr, ok := lookup(q, requested)
	if !ok {
		return out
	}

	if tr.Title != "" {
		out.Title[requested] = tr.Title
	}
	if q.Type.Coded() && len(tr.Options) == len(q.Options) {
		out.OptionsSelected = translateOptions(stats.OptionsSelected, q.Options, tr.Options)
	}
	return out
}

// lookup finds a translation for the requested language: exact key first,
// then a base-language match (e.g. "fr" serving "fr-CA").
func lookup(q model.Question, requested string) (model.Translation, bool) {
	if tr, ok := q.Translations[requested]; ok {
		return tr, true
	}
	if len(q.Translations) == 0 {
		return model.Translation{}, false
	}
	want, err := language.Parse(requested)
	if err != nil {
		return model.Translation{}, false
	}

	keys := make([]string, 0, len(q.Translations))
	for k := range q.Translations {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	tags := make([]language.Tag, 0, len(keys))
	for _, k := range keys {
		tag, err := language.Parse(k)
		if err != nil {
			tag = language.Und
		}
		tags = append(tags, tag)
	}

	matcher := language.NewMatcher(tags)
	_, idx, conf := matcher.Match(want)
	if conf < language.High {
		return model.Translation{}, false
	}
	return q.Translations[keys[idx]], true
}

// translateOptions rewrites option titles while preserving counts and
// catalog order. Options that cannot be mapped keep their primary title.
func translateOptions(selected []model.OptionCount, primary, translated []string) []model.OptionCount {
	index := make(map[string]string, len(primary))
	for i, opt := range primary {
		index[opt] = translated[i]
	}
	out := make([]model.OptionCount, len(selected))
	for i, oc := range selected {
		out[i] = oc
		if tr, ok := index[oc.Title]; ok && tr != "" {
			out[i].Title = tr
		}
	}
	return out
}

// Languages derives the language set of a report from the first question's
// title map, sorted for stable output. Empty input yields the primary
// language alone.
func Languages(questions []model.QuestionStats, primary string) []string {
	if len(questions) == 0 || len(questions[0].Title) == 0 {
		return []string{primary}
	}
	langs := make([]string, 0, len(questions[0].Title))
	for lang := range questions[0].Title {
		langs = append(langs, lang)
	}
	sort.Strings(langs)
	return langs
}
