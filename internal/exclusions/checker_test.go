package exclusions

import (
	"errors"
	"testing"

	"github.com/mikey/complaint-router/internal/core"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func TestCheckerMatch(t *testing.T) {
	checker, err := NewChecker(
		[]string{`noreply@`, `@newsletter\.example\.com$`},
		[]string{`(?i)out of office`, `unsubscribe`},
		zap.NewNop(),
	)
	require.NoError(t, err)

	tests := []struct {
		name        string
		from        string
		subject     string
		wantPattern string
		wantMatch   bool
	}{
		{
			name:        "noreply sender excluded",
			from:        "noreply@example.com",
			subject:     "your invoice is overdue",
			wantPattern: "from:noreply@",
			wantMatch:   true,
		},
		{
			name:        "newsletter domain excluded",
			from:        "deals@newsletter.example.com",
			subject:     "big savings",
			wantPattern: `from:@newsletter\.example\.com$`,
			wantMatch:   true,
		},
		{
			name:        "out of office subject excluded case insensitively",
			from:        "customer@example.com",
			subject:     "Out Of Office: back Monday",
			wantPattern: "subject:(?i)out of office",
			wantMatch:   true,
		},
		{
			name:      "ordinary complaint passes",
			from:      "customer@example.com",
			subject:   "service outage again",
			wantMatch: false,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			pattern, matched := checker.Match(tt.from, tt.subject)
			assert.Equal(t, tt.wantMatch, matched)
			assert.Equal(t, tt.wantPattern, pattern)
		})
	}
}

func TestCheckerFromTakesPrecedence(t *testing.T) {
	checker, err := NewChecker([]string{"noreply@"}, []string{"outage"}, zap.NewNop())
	require.NoError(t, err)

	pattern, matched := checker.Match("noreply@example.com", "outage report")
	assert.True(t, matched)
	assert.Equal(t, "from:noreply@", pattern)
}

func TestNewCheckerBadPattern(t *testing.T) {
	_, err := NewChecker([]string{"("}, nil, zap.NewNop())
	require.Error(t, err)

	var cfgErr *core.ConfigError
	require.True(t, errors.As(err, &cfgErr))
	assert.Equal(t, "exclusions.from", cfgErr.Field)
}

func TestCheckerNoPatterns(t *testing.T) {
	checker, err := NewChecker(nil, nil, zap.NewNop())
	require.NoError(t, err)

	_, matched := checker.Match("anyone@example.com", "anything")
	assert.False(t, matched)
}
