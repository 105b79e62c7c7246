// Package feedback closes the loop between routing decisions and the keyword
// weights: false positives demote the terms that fired, false negatives
// promote the ones that should have.
package feedback

import (
	"context"

	"github.com/mikey/complaint-router/internal/core"
	"go.uber.org/zap"
)

// Adjuster applies per-keyword multiplier deltas through the feedback store.
// Clamping to the configured bounds happens inside the store.
type Adjuster struct {
	store  core.FeedbackStore
	step   float64
	logger *zap.Logger
}

// NewAdjuster creates a new adjuster
func NewAdjuster(store core.FeedbackStore, step float64, logger *zap.Logger) *Adjuster {
	return &Adjuster{
		store:  store,
		step:   step,
		logger: logger,
	}
}

// Demote lowers the multiplier of each term that fired on a false positive
func (a *Adjuster) Demote(ctx context.Context, terms []string) error {
	for _, term := range terms {
		adjusted, err := a.store.Apply(ctx, term, -a.step)
		if err != nil {
			return err
		}
		a.logger.Info("Demoted keyword",
			zap.String("term", term),
			zap.Float64("adjustment", adjusted))
	}
	return nil
}

// Promote raises the multiplier of each term a missed complaint contained
func (a *Adjuster) Promote(ctx context.Context, terms []string) error {
	for _, term := range terms {
		adjusted, err := a.store.Apply(ctx, term, a.step)
		if err != nil {
			return err
		}
		a.logger.Info("Promoted keyword",
			zap.String("term", term),
			zap.Float64("adjustment", adjusted))
	}
	return nil
}
