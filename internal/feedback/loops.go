package feedback

import (
	"context"
	"regexp"
	"sync"
	"time"

	"github.com/mikey/complaint-router/internal/core"
	"github.com/mikey/complaint-router/internal/ports"
	"github.com/mikey/complaint-router/internal/utils"
	"go.uber.org/zap"
)

// candidateMinLen filters trivially short subject tokens out of the
// candidate keyword list
const candidateMinLen = 4

// Options configures the feedback loops
type Options struct {
	Mailboxes    []string
	Distribution string
	FPInterval   time.Duration
	FNInterval   time.Duration
	Lookback     time.Duration
	ScanTimeout  time.Duration
	Top          int

	// MarkerRe extracts the original message ID from a forwarded body.
	// Group 1 must capture the ID.
	MarkerRe *regexp.Regexp
}

// Loops runs the false positive and false negative scans on their own
// schedules. A false positive is a forwarded message bounced back to a
// monitored mailbox, recognized by the marker the forwarder stamps. A false
// negative is a message someone forwarded to the distribution list by hand,
// which the registry therefore never recorded.
type Loops struct {
	source   ports.FeedbackSource
	registry core.ForwardRegistry
	keywords core.KeywordSource
	adjuster *Adjuster
	store    core.FeedbackStore
	text     *utils.TextProcessor
	opts     Options
	logger   *zap.Logger
	stopCh   chan struct{}
	wg       sync.WaitGroup
}

// NewLoops creates the feedback loop scheduler
func NewLoops(
	source ports.FeedbackSource,
	registry core.ForwardRegistry,
	keywords core.KeywordSource,
	adjuster *Adjuster,
	store core.FeedbackStore,
	text *utils.TextProcessor,
	opts Options,
	logger *zap.Logger,
) *Loops {
	return &Loops{
		source:   source,
		registry: registry,
		keywords: keywords,
		adjuster: adjuster,
		store:    store,
		text:     text,
		opts:     opts,
		logger:   logger,
		stopCh:   make(chan struct{}),
	}
}

// Start launches both loops
func (l *Loops) Start() {
	l.wg.Add(2)
	go l.run(l.opts.FPInterval, l.ScanFalsePositives)
	go l.run(l.opts.FNInterval, l.ScanFalseNegatives)
	l.logger.Info("Feedback loops started",
		zap.Duration("fp_interval", l.opts.FPInterval),
		zap.Duration("fn_interval", l.opts.FNInterval))
}

// Stop signals both loops to finish and waits for them
func (l *Loops) Stop() {
	close(l.stopCh)
	l.wg.Wait()
	l.logger.Info("Feedback loops stopped")
}

func (l *Loops) run(interval time.Duration, scan func(context.Context) error) {
	defer l.wg.Done()

	// The parent context dies with stopCh so Stop interrupts a scan that is
	// stuck inside a provider call.
	parent, cancel := context.WithCancel(context.Background())
	defer cancel()
	go func() {
		<-l.stopCh
		cancel()
	}()

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			l.scanOnce(parent, scan)
		case <-l.stopCh:
			return
		}
	}
}

// scanOnce runs a single scan under its own deadline so one hung call never
// stalls the schedule.
func (l *Loops) scanOnce(parent context.Context, scan func(context.Context) error) {
	ctx := parent
	if l.opts.ScanTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(parent, l.opts.ScanTimeout)
		defer cancel()
	}
	if err := scan(ctx); err != nil {
		l.logger.Error("Feedback scan failed", zap.Error(err))
	}
}

// ScanFalsePositives looks through the monitored mailboxes for forwarded
// messages that were bounced back, and demotes every keyword that fired on
// the original decision.
func (l *Loops) ScanFalsePositives(ctx context.Context) error {
	since := time.Now().Add(-l.opts.Lookback)

	for _, mailbox := range l.opts.Mailboxes {
		messages, err := l.source.RecentMessages(ctx, mailbox, since, l.opts.Top)
		if err != nil {
			return err
		}

		for _, msg := range messages {
			id, ok := l.extractMarker(msg.Body)
			if !ok {
				continue
			}

			entry, found, err := l.registry.Lookup(ctx, id)
			if err != nil {
				return err
			}
			if !found || !entry.IsComplaint {
				continue
			}

			l.logger.Info("False positive reported",
				zap.String("message_id", id),
				zap.Strings("terms", entry.Terms))
			if err := l.adjuster.Demote(ctx, entry.Terms); err != nil {
				return err
			}
		}
	}
	return nil
}

// ScanFalseNegatives looks through the distribution list mailbox for
// complaints that were forwarded by hand rather than by the router. Keywords
// the message did contain get promoted; subject tokens outside the keyword
// set are recorded as candidates for review.
func (l *Loops) ScanFalseNegatives(ctx context.Context) error {
	since := time.Now().Add(-l.opts.Lookback)

	messages, err := l.source.RecentMessages(ctx, l.opts.Distribution, since, l.opts.Top)
	if err != nil {
		return err
	}

	set := l.keywords.Snapshot()

	for _, msg := range messages {
		if _, ok := l.extractMarker(msg.Body); ok {
			// Our own forward, not a human escalation
			continue
		}
		if _, found, err := l.registry.Lookup(ctx, msg.ID); err != nil {
			return err
		} else if found {
			continue
		}

		matched, candidates := l.splitTokens(msg, set)

		l.logger.Info("False negative reported",
			zap.String("message_id", msg.ID),
			zap.Strings("matched", matched),
			zap.Strings("candidates", candidates))

		if err := l.adjuster.Promote(ctx, matched); err != nil {
			return err
		}
		for _, term := range candidates {
			if err := l.store.AddCandidate(ctx, term); err != nil {
				return err
			}
		}
	}

	pending, err := l.store.Candidates(ctx)
	if err != nil {
		return err
	}
	if len(pending) > 0 {
		l.logger.Info("Keyword candidates awaiting review", zap.Strings("candidates", pending))
	}
	return nil
}

func (l *Loops) extractMarker(body string) (string, bool) {
	if l.opts.MarkerRe == nil {
		return "", false
	}
	m := l.opts.MarkerRe.FindStringSubmatch(body)
	if len(m) < 2 {
		return "", false
	}
	return m[1], true
}

// splitTokens partitions a missed complaint into keywords that already exist
// and fresh subject terms worth considering as keywords.
func (l *Loops) splitTokens(msg *core.Message, set *core.KeywordSet) (matched, candidates []string) {
	seen := make(map[string]struct{})

	for _, tok := range l.text.Tokenize(l.text.Clean(msg.Subject + " " + msg.Body)) {
		if _, dup := seen[tok]; dup {
			continue
		}
		seen[tok] = struct{}{}
		if _, ok := set.Complaint[tok]; ok {
			matched = append(matched, tok)
		}
	}

	kept := make(map[string]struct{})
	for _, tok := range l.text.Tokenize(l.text.Clean(msg.Subject)) {
		if len(tok) < candidateMinLen {
			continue
		}
		if _, ok := set.Complaint[tok]; ok {
			continue
		}
		if _, dup := kept[tok]; dup {
			continue
		}
		kept[tok] = struct{}{}
		candidates = append(candidates, tok)
	}
	return matched, candidates
}
