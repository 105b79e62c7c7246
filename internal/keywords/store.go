package keywords

import (
	"bufio"
	"fmt"
	"os"
	"strings"
	"sync/atomic"

	"github.com/mikey/complaint-router/internal/core"
	"github.com/mikey/complaint-router/internal/utils"
	"go.uber.org/zap"
)

// Sources names the four newline-delimited term list files
type Sources struct {
	Complaint string
	Subject   string
	Urgency   string
	Negation  string
}

// LoadSet reads all four category files. Terms are case-folded and trimmed;
// empty lines, comment lines and duplicates are dropped. A missing file or an
// empty complaint category is a ConfigError.
func LoadSet(sources Sources) (*core.KeywordSet, error) {
	complaint, err := loadTerms("keywords.complaint_file", sources.Complaint)
	if err != nil {
		return nil, err
	}
	if len(complaint) == 0 {
		return nil, core.NewConfigError("keywords.complaint_file", "no complaint keywords in %s", sources.Complaint)
	}

	subject, err := loadTerms("keywords.subject_file", sources.Subject)
	if err != nil {
		return nil, err
	}
	urgency, err := loadTerms("keywords.urgency_file", sources.Urgency)
	if err != nil {
		return nil, err
	}
	negation, err := loadTerms("keywords.negation_file", sources.Negation)
	if err != nil {
		return nil, err
	}

	return &core.KeywordSet{
		Complaint: complaint,
		Subject:   subject,
		Urgency:   urgency,
		Negation:  negation,
	}, nil
}

func loadTerms(field, path string) (map[string]struct{}, error) {
	if path == "" {
		return nil, core.NewConfigError(field, "keyword file not configured")
	}

	f, err := os.Open(path)
	if err != nil {
		return nil, &core.ConfigError{Field: field, Err: fmt.Errorf("open keyword file: %w", err)}
	}
	defer f.Close()

	terms := make(map[string]struct{})
	scanner := bufio.NewScanner(f)
	for scanner.Scan() {
		term := strings.TrimSpace(scanner.Text())
		if term == "" || strings.HasPrefix(term, "#") {
			continue
		}
		terms[utils.Fold(term)] = struct{}{}
	}
	if err := scanner.Err(); err != nil {
		return nil, &core.ConfigError{Field: field, Err: fmt.Errorf("read keyword file: %w", err)}
	}

	return terms, nil
}

// Store holds the current keyword snapshot and swaps in a replacement
// atomically on reload so concurrent readers never see a half-loaded set
type Store struct {
	current atomic.Pointer[core.KeywordSet]
	sources Sources
	logger  *zap.Logger
}

// NewStore loads the initial keyword set from the given sources
func NewStore(sources Sources, logger *zap.Logger) (*Store, error) {
	set, err := LoadSet(sources)
	if err != nil {
		return nil, err
	}

	s := &Store{sources: sources, logger: logger}
	s.current.Store(set)

	logger.Info("Loaded keyword sets",
		zap.Int("complaint", len(set.Complaint)),
		zap.Int("subject", len(set.Subject)),
		zap.Int("urgency", len(set.Urgency)),
		zap.Int("negation", len(set.Negation)))

	return s, nil
}

// Snapshot returns the current immutable keyword set
func (s *Store) Snapshot() *core.KeywordSet {
	return s.current.Load()
}

// Reload re-reads the source files and swaps the whole set in one step.
// On failure the previous snapshot stays in place.
func (s *Store) Reload() error {
	set, err := LoadSet(s.sources)
	if err != nil {
		return fmt.Errorf("reload keywords: %w", err)
	}
	s.current.Store(set)
	s.logger.Info("Reloaded keyword sets", zap.Int("complaint", len(set.Complaint)))
	return nil
}
