package feedback

import (
	"context"
	"sort"
	"sync"

	"github.com/mikey/complaint-router/internal/core"
)

// MemoryStore keeps keyword adjustments in memory. Learned state is lost on
// restart; intended for tests and runs without durable feedback.
type MemoryStore struct {
	mu          sync.Mutex
	adjustments map[string]float64
	candidates  map[string]int
	min, max    float64
}

// NewMemoryStore creates an in-memory feedback store with the given
// adjustment bounds
func NewMemoryStore(min, max float64) *MemoryStore {
	return &MemoryStore{
		adjustments: make(map[string]float64),
		candidates:  make(map[string]int),
		min:         min,
		max:         max,
	}
}

// Adjustments returns a snapshot of all keyword adjustments
func (s *MemoryStore) Adjustments(ctx context.Context) (map[string]float64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	snapshot := make(map[string]float64, len(s.adjustments))
	for term, adj := range s.adjustments {
		snapshot[term] = adj
	}
	return snapshot, nil
}

// Apply adds delta to a keyword's adjustment and returns the clamped value
func (s *MemoryStore) Apply(ctx context.Context, term string, delta float64) (float64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	adj := clamp(s.adjustments[term]+delta, s.min, s.max)
	s.adjustments[term] = adj
	return adj, nil
}

// AddCandidate records a proposed new keyword for operator review
func (s *MemoryStore) AddCandidate(ctx context.Context, term string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.candidates[term]++
	return nil
}

// Candidates returns the recorded keyword proposals
func (s *MemoryStore) Candidates(ctx context.Context) ([]string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	terms := make([]string, 0, len(s.candidates))
	for term := range s.candidates {
		terms = append(terms, term)
	}
	sort.Strings(terms)
	return terms, nil
}

func clamp(v, min, max float64) float64 {
	if v < min {
		return min
	}
	if v > max {
		return max
	}
	return v
}

var _ core.FeedbackStore = (*MemoryStore)(nil)
