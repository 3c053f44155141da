package podcast

import (
	"math"

	"github.com/loqalabs/loqa-podcast/internal/protocol"
)

const (
	// WordsPerMinute is the fixed speaking rate used to size scripts.
	WordsPerMinute = 150
	DefaultMinutes = 5
	MinMinutes     = 1
	MaxMinutes     = 60
)

// ResolveMinutes falls back to DefaultMinutes for missing or non-numeric
// input and clamps the result to [MinMinutes, MaxMinutes].
func ResolveMinutes(m protocol.Minutes) float64 {
	if !m.Set {
		return DefaultMinutes
	}
	return ClampMinutes(m.Value)
}

// ClampMinutes maps NaN to DefaultMinutes. Infinities clamp to the bounds.
func ClampMinutes(v float64) float64 {
	if math.IsNaN(v) {
		return DefaultMinutes
	}
	return math.Max(MinMinutes, math.Min(MaxMinutes, v))
}

// TargetWords is round(clamp(minutes) * WordsPerMinute).
func TargetWords(minutes float64) int {
	return int(math.Round(ClampMinutes(minutes) * WordsPerMinute))
}
