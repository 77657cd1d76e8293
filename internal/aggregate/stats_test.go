package aggregate

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestFormatPercent(t *testing.T) {
	tests := []struct {
		in   float64
		want string
	}{
		{33.333, "33.3"},
		{50.0, "50"},
		{0, "0"},
		{100, "100"},
		{66.666, "66.7"},
		{0.04, "0"},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, FormatPercent(tt.in), "FormatPercent(%v)", tt.in)
	}
}

func TestRatio(t *testing.T) {
	assert.Equal(t, "50", Ratio(1, 2))
	assert.Equal(t, "33.3", Ratio(1, 3))
	assert.Equal(t, "0", Ratio(3, 0), "zero total never divides")
}

func TestMedian(t *testing.T) {
	assert.Equal(t, 25.0, Median([]float64{10, 20, 30, 40}))
	assert.Equal(t, 20.0, Median([]float64{10, 20, 30}))
	assert.Equal(t, 0.0, Median(nil))
	// Input order must not matter.
	assert.Equal(t, 25.0, Median([]float64{40, 10, 30, 20}))
}

func TestAverage(t *testing.T) {
	assert.Equal(t, 25.0, Average([]float64{10, 20, 30, 40}))
	assert.Equal(t, 0.0, Average(nil))
}

func TestMatchGender(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{"Male", "male"},
		{"FEMALE", "female"},
		{"  homme ", "male"},
		{"Mujer", "female"},
		{"mwanamke", "female"},
		{"ذكر", "male"},
		{"prefer not to say", "other"},
		{"", "other"},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, MatchGender(tt.in), "MatchGender(%q)", tt.in)
	}
}
