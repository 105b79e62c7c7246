package exclusions

import (
	"fmt"
	"regexp"

	"github.com/mikey/complaint-router/internal/core"
	"go.uber.org/zap"
)

// Checker disqualifies messages whose sender or subject matches a configured
// pattern. Exclusions are evaluated before scoring and are authoritative: an
// excluded message is never a complaint regardless of its content.
type Checker struct {
	from    []*regexp.Regexp
	subject []*regexp.Regexp
	logger  *zap.Logger
}

// NewChecker compiles the sender and subject exclusion patterns
func NewChecker(fromPatterns, subjectPatterns []string, logger *zap.Logger) (*Checker, error) {
	from, err := compile("exclusions.from", fromPatterns)
	if err != nil {
		return nil, err
	}
	subject, err := compile("exclusions.subject", subjectPatterns)
	if err != nil {
		return nil, err
	}

	if len(from)+len(subject) > 0 && logger != nil {
		logger.Info("Initialized exclusion checker",
			zap.Int("from_patterns", len(from)),
			zap.Int("subject_patterns", len(subject)))
	}

	return &Checker{from: from, subject: subject, logger: logger}, nil
}

func compile(field string, patterns []string) ([]*regexp.Regexp, error) {
	compiled := make([]*regexp.Regexp, 0, len(patterns))
	for _, p := range patterns {
		re, err := regexp.Compile(p)
		if err != nil {
			return nil, &core.ConfigError{Field: field, Err: fmt.Errorf("bad pattern %q: %w", p, err)}
		}
		compiled = append(compiled, re)
	}
	return compiled, nil
}

// Match returns the pattern that excludes the message, if any
func (c *Checker) Match(from, subject string) (string, bool) {
	for _, re := range c.from {
		if re.MatchString(from) {
			if c.logger != nil {
				c.logger.Debug("Sender excluded",
					zap.String("sender", from),
					zap.String("pattern", re.String()))
			}
			return "from:" + re.String(), true
		}
	}
	for _, re := range c.subject {
		if re.MatchString(subject) {
			if c.logger != nil {
				c.logger.Debug("Subject excluded",
					zap.String("subject", subject),
					zap.String("pattern", re.String()))
			}
			return "subject:" + re.String(), true
		}
	}
	return "", false
}
