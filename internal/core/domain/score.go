package domain

import (
	"encoding/json"
	"math"
)

// Score is a numeric value that is either present or absent.
// The zero value is absent, so an unset field never reads as 0.
type Score struct {
	value float64
	valid bool
}

// Present wraps v as a present score. NaN and infinities are reported as absent.
func Present(v float64) Score {
	if math.IsNaN(v) || math.IsInf(v, 0) {
		return Score{}
	}

	return Score{value: v, valid: true}
}

// Absent returns a score with no value.
func Absent() Score {
	return Score{}
}

// ScoreFromPtr converts an optional float into a Score.
func ScoreFromPtr(v *float64) Score {
	if v == nil {
		return Score{}
	}

	return Present(*v)
}

// IsPresent reports whether the score carries a value.
func (s Score) IsPresent() bool {
	return s.valid
}

// Value returns the value and whether it is present.
func (s Score) Value() (float64, bool) {
	return s.value, s.valid
}

// Float64 returns the value, or fallback when the score is absent.
// Only presentation code should need a fallback.
func (s Score) Float64(fallback float64) float64 {
	if !s.valid {
		return fallback
	}

	return s.value
}

// MarshalJSON renders an absent score as null.
func (s Score) MarshalJSON() ([]byte, error) {
	if !s.valid {
		return []byte("null"), nil
	}

	return json.Marshal(s.value)
}

// UnmarshalJSON accepts a number or null. Any other JSON value decodes as absent.
func (s *Score) UnmarshalJSON(data []byte) error {
	var v *float64
	if err := json.Unmarshal(data, &v); err != nil {
		*s = Score{}

		return nil //nolint:nilerr // malformed values are absent, not errors
	}

	*s = ScoreFromPtr(v)

	return nil
}
