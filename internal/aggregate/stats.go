package aggregate

import (
	"math"
	"sort"
	"strconv"
	"strings"
)

// FormatPercent renders a percentage with one decimal place, trimming a
// trailing ".0" (50.0 -> "50", 33.333 -> "33.3").
func FormatPercent(v float64) string {
	rounded := math.Round(v*10) / 10
	s := strconv.FormatFloat(rounded, 'f', 1, 64)
	return strings.TrimSuffix(s, ".0")
}

// Ratio formats part/total as a percentage, "0" when total is zero.
func Ratio(part, total int) string {
	if total == 0 {
		return "0"
	}
	return FormatPercent(float64(part) / float64(total) * 100)
}

// Average returns the arithmetic mean, 0 for empty input.
func Average(vals []float64) float64 {
	if len(vals) == 0 {
		return 0
	}
	var sum float64
	for _, v := range vals {
		sum += v
	}
	return sum / float64(len(vals))
}

// Median returns the middle value, averaging the two central values for
// even-length input. 0 for empty input.
func Median(vals []float64) float64 {
	if len(vals) == 0 {
		return 0
	}
	sorted := append([]float64(nil), vals...)
	sort.Float64s(sorted)
	mid := len(sorted) / 2
	if len(sorted)%2 == 0 {
		return (sorted[mid-1] + sorted[mid]) / 2
	}
	return sorted[mid]
}

// genderVariants maps known free-string gender values, across the survey
// languages in the field, onto stable buckets. Matching is case-insensitive.
var genderVariants = map[string][]string{
	"male": {
		"male", "m", "man", "boy",
		"hombre", "masculino", // es
		"homme", "masculin", // fr
		"mwanaume", "kiume", // sw
		"ذكر", "رجل", // ar
	},
	"female": {
		"female", "f", "woman", "girl",
		"mujer", "femenino", // es
		"femme", "féminin", // fr
		"mwanamke", "kike", // sw
		"أنثى", "امرأة", // ar
	},
}

// MatchGender buckets a free-string gender value as "male", "female" or
// "other". The value is language-dependent and enumerator-typed, so the
// match is a fuzzy set-membership test, not an enum parse.
func MatchGender(raw string) string {
	needle := strings.ToLower(strings.TrimSpace(raw))
	if needle == "" {
		return "other"
	}
	for bucket, variants := range genderVariants {
		for _, v := range variants {
			if needle == v {
				return bucket
			}
		}
	}
	return "other"
}
