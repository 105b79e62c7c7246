package negation

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func set(terms ...string) map[string]struct{} {
	m := make(map[string]struct{}, len(terms))
	for _, t := range terms {
		m[t] = struct{}{}
	}
	return m
}

func TestCheck(t *testing.T) {
	negative := set("not", "no", "never")

	tests := []struct {
		name       string
		tokens     []string
		matchIndex int
		window     int
		expected   float64
	}{
		{
			name:       "adjacent negation fully suppresses",
			tokens:     []string{"i", "am", "not", "unhappy"},
			matchIndex: 3,
			window:     3,
			expected:   0,
		},
		{
			name:       "negation two tokens away decays linearly",
			tokens:     []string{"not", "really", "unhappy"},
			matchIndex: 2,
			window:     3,
			expected:   1.0 / 3.0,
		},
		{
			name:       "negation at window edge",
			tokens:     []string{"never", "a", "b", "unhappy"},
			matchIndex: 3,
			window:     3,
			expected:   2.0 / 3.0,
		},
		{
			name:       "negation outside window has no effect",
			tokens:     []string{"not", "a", "b", "c", "unhappy"},
			matchIndex: 4,
			window:     3,
			expected:   1,
		},
		{
			name:       "negation after the match also counts",
			tokens:     []string{"unhappy", "not", "at", "all"},
			matchIndex: 0,
			window:     3,
			expected:   0,
		},
		{
			name:       "closest of several negations wins",
			tokens:     []string{"never", "ever", "not", "unhappy"},
			matchIndex: 3,
			window:     3,
			expected:   0,
		},
		{
			name:       "no negations nearby",
			tokens:     []string{"the", "service", "is", "unhappy"},
			matchIndex: 3,
			window:     3,
			expected:   1,
		},
		{
			name:       "zero window disables the check",
			tokens:     []string{"not", "unhappy"},
			matchIndex: 1,
			window:     0,
			expected:   1,
		},
		{
			name:       "match index out of range",
			tokens:     []string{"not", "unhappy"},
			matchIndex: 5,
			window:     3,
			expected:   1,
		},
		{
			name:       "window clipped at slice start",
			tokens:     []string{"unhappy"},
			matchIndex: 0,
			window:     3,
			expected:   1,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := Check(tt.tokens, tt.matchIndex, tt.window, negative)
			assert.InDelta(t, tt.expected, got, 1e-9)
		})
	}
}

func TestCheckEmptyNegationSet(t *testing.T) {
	got := Check([]string{"not", "unhappy"}, 1, 3, nil)
	assert.Equal(t, 1.0, got)
}
