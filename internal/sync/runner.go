// Package sync drives the incremental mailbox polling loops: load the
// persisted cursor, fetch only messages arrived since it, classify and
// forward them, then advance the cursor. Processing is sequential within a
// mailbox and independent across mailboxes.
package sync

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/mikey/complaint-router/internal/core"
	"github.com/mikey/complaint-router/internal/ports"
	"github.com/mikey/complaint-router/internal/retry"
	"go.uber.org/zap"
)

// Classifier scores a single message
type Classifier interface {
	Classify(ctx context.Context, msg *core.Message) (*core.ClassificationResult, error)
}

// Options configures the runner
type Options struct {
	Mailboxes      []string
	Distribution   string
	DeleteOriginal bool
	Interval       time.Duration
	BatchTimeout   time.Duration
	Filter         ports.ListFilter
	Retry          retry.Policy
}

// Runner polls each monitored mailbox on its own schedule
type Runner struct {
	provider ports.MailProvider
	engine   Classifier
	cursors  core.CursorStore
	registry core.ForwardRegistry
	opts     Options
	logger   *zap.Logger
	stopCh   chan struct{}
	wg       sync.WaitGroup
}

// NewRunner creates a new sync runner
func NewRunner(
	provider ports.MailProvider,
	engine Classifier,
	cursors core.CursorStore,
	registry core.ForwardRegistry,
	opts Options,
	logger *zap.Logger,
) *Runner {
	return &Runner{
		provider: provider,
		engine:   engine,
		cursors:  cursors,
		registry: registry,
		opts:     opts,
		logger:   logger,
		stopCh:   make(chan struct{}),
	}
}

// Start launches one polling goroutine per monitored mailbox
func (r *Runner) Start() {
	for _, mailbox := range r.opts.Mailboxes {
		r.wg.Add(1)
		go r.loop(mailbox)
	}
	r.logger.Info("Sync runner started",
		zap.Strings("mailboxes", r.opts.Mailboxes),
		zap.Duration("interval", r.opts.Interval))
}

// Stop signals all loops to finish and waits for them
func (r *Runner) Stop() {
	close(r.stopCh)
	r.wg.Wait()
	r.logger.Info("Sync runner stopped")
}

func (r *Runner) loop(mailbox string) {
	defer r.wg.Done()

	ticker := time.NewTicker(r.opts.Interval)
	defer ticker.Stop()

	for {
		if err := r.RunOnce(context.Background(), mailbox); err != nil {
			// Batch failures defer to the next scheduled run
			r.logger.Error("Sync pass failed",
				zap.String("mailbox", mailbox),
				zap.Error(err))
		}

		select {
		case <-ticker.C:
		case <-r.stopCh:
			return
		}
	}
}

// RunOnce performs a single fetch-classify-forward-advance pass for one
// mailbox. The cursor is advanced only after the whole batch has been
// processed, so a crash or failure mid-batch reprocesses the same batch on
// the next run (at-least-once; the forward registry keeps that idempotent).
func (r *Runner) RunOnce(ctx context.Context, mailbox string) error {
	if r.opts.BatchTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, r.opts.BatchTimeout)
		defer cancel()
	}

	cur, err := r.cursors.Load(ctx, mailbox)
	if err != nil {
		return fmt.Errorf("load cursor for %s: %w", mailbox, err)
	}

	list, err := r.list(ctx, mailbox, cur)
	if errors.Is(err, core.ErrCursorExpired) {
		r.logger.Warn("Provider rejected sync cursor, falling back to full resync",
			zap.String("mailbox", mailbox))
		list, err = r.list(ctx, mailbox, nil)
	}
	if err != nil {
		return fmt.Errorf("list messages for %s: %w", mailbox, err)
	}

	r.logger.Debug("Fetched batch",
		zap.String("mailbox", mailbox),
		zap.Int("messages", len(list.Messages)))

	for _, msg := range list.Messages {
		if err := r.process(ctx, msg); err != nil {
			// Contiguous ordering: defer the rest of the batch and leave
			// the cursor where it was
			return fmt.Errorf("process message %s: %w", msg.ID, err)
		}
	}

	if list.Cursor != nil {
		if err := r.cursors.Save(ctx, list.Cursor); err != nil {
			return fmt.Errorf("save cursor for %s: %w", mailbox, err)
		}
	}

	return nil
}

func (r *Runner) list(ctx context.Context, mailbox string, cur *core.SyncCursor) (*ports.ListResult, error) {
	var out *ports.ListResult
	err := r.opts.Retry.Do(ctx, func(ctx context.Context) error {
		res, err := r.provider.ListMessages(ctx, mailbox, cur, r.opts.Filter)
		if err != nil {
			if errors.Is(err, core.ErrCursorExpired) || !core.IsTransient(err) {
				return retry.Permanent(err)
			}
			return err
		}
		out = res
		return nil
	})
	return out, err
}

func (r *Runner) process(ctx context.Context, msg *core.Message) error {
	if entry, ok, err := r.registry.Lookup(ctx, msg.ID); err != nil {
		r.logger.Warn("Registry lookup failed", zap.String("message_id", msg.ID), zap.Error(err))
	} else if ok {
		r.logger.Debug("Message already processed, skipping",
			zap.String("message_id", msg.ID),
			zap.Bool("was_complaint", entry.IsComplaint))
		return nil
	}

	result, err := r.engine.Classify(ctx, msg)
	if err != nil {
		return err
	}

	if result.IsComplaint {
		if err := r.forward(ctx, msg); err != nil {
			return err
		}
		if r.opts.DeleteOriginal {
			if err := r.provider.Delete(ctx, msg.Mailbox, msg.ID); err != nil {
				// Forwarding already succeeded; a stale original is not
				// worth failing the batch over
				r.logger.Warn("Failed to delete original message",
					zap.String("message_id", msg.ID),
					zap.Error(err))
			}
		}
	}

	if err := r.registry.Record(ctx, result); err != nil {
		r.logger.Warn("Failed to record registry entry",
			zap.String("message_id", msg.ID),
			zap.Error(err))
	}

	return nil
}

func (r *Runner) forward(ctx context.Context, msg *core.Message) error {
	return r.opts.Retry.Do(ctx, func(ctx context.Context) error {
		err := r.provider.Forward(ctx, msg.Mailbox, msg.ID, r.opts.Distribution)
		if err != nil && !core.IsTransient(err) {
			return retry.Permanent(err)
		}
		return err
	})
}
