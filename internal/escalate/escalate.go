// Package escalate decides when the rule-based outline is too thin to
// trust, consults the auxiliary classifier within the remaining latency
// budget, and reconciles its answer with the rule result.
package escalate

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/dgallion1/docoutline/internal/classifier"
	"github.com/dgallion1/docoutline/internal/doctree"
)

// ErrBudgetExhausted means too little of the document budget was left to
// make a classifier call.
var ErrBudgetExhausted = errors.New("latency budget exhausted")

const (
	DefaultTimeout   = 8 * time.Second
	DefaultMinBudget = time.Second
	minHeadings      = 3
)

// Outcome records what the controller did for one document.
type Outcome string

const (
	OutcomeNotNeeded     Outcome = "not_needed"
	OutcomeNoClassifier  Outcome = "no_classifier"
	OutcomeSkippedBudget Outcome = "skipped_budget"
	OutcomeFailed        Outcome = "failed"
	OutcomeKeptRules     Outcome = "kept_rules"
	OutcomeReplaced      Outcome = "replaced"
)

// Report describes one escalation decision.
type Report struct {
	Outcome       Outcome `json:"outcome"`
	Classifier    string  `json:"classifier,omitempty"`
	RuleCount     int     `json:"rule_headings"`
	ExternalCount int     `json:"external_headings,omitempty"`
	ElapsedMs     int64   `json:"elapsed_ms,omitempty"`
	Error         string  `json:"error,omitempty"`
}

// Input is the per-document state handed to the controller. Lines and
// Features are parallel and in reading order.
type Input struct {
	Name      string
	Lines     []doctree.TextLine
	Features  []doctree.FeatureVector
	Rules     []doctree.HeadingCandidate
	PageCount int
}

// Controller owns the escalation policy. A nil Classifier disables
// escalation entirely.
type Controller struct {
	Classifier classifier.Classifier
	Timeout    time.Duration
	MinBudget  time.Duration
	Stats      *classifier.Stats
	Log        *slog.Logger
}

// Needed reports whether the rule result is too sparse: fewer non-body
// candidates than max(3, pageCount).
func Needed(rules []doctree.HeadingCandidate, pageCount int) bool {
	return countHeadings(rules) < max(minHeadings, pageCount)
}

// Run returns the candidates to build the outline from. Any classifier
// failure falls back to the rule candidates; Run never returns an error.
func (c *Controller) Run(ctx context.Context, deadline time.Time, in Input) ([]doctree.HeadingCandidate, Report) {
	rep := Report{Outcome: OutcomeNotNeeded, RuleCount: countHeadings(in.Rules)}
	if !Needed(in.Rules, in.PageCount) {
		return in.Rules, rep
	}
	if c == nil || c.Classifier == nil {
		rep.Outcome = OutcomeNoClassifier
		return in.Rules, rep
	}
	rep.Classifier = c.Classifier.Name()
	log := c.logger()

	remaining := time.Until(deadline)
	if remaining < c.minBudget() {
		err := fmt.Errorf("%w: %s left", ErrBudgetExhausted, remaining.Round(time.Millisecond))
		rep.Outcome = OutcomeSkippedBudget
		rep.Error = err.Error()
		log.Info("escalation skipped", "document", in.Name, "error", err)
		return in.Rules, rep
	}

	timeout := remaining
	if c.Timeout > 0 && c.Timeout < timeout {
		timeout = c.Timeout
	}
	start := time.Now()
	pred, err := c.call(ctx, timeout, classifier.NewRequest(in.Name, in.Lines, in.Features))
	elapsed := time.Since(start)
	rep.ElapsedMs = elapsed.Milliseconds()
	c.record(elapsed, err)

	if err == nil {
		err = pred.Validate(len(in.Lines))
	}
	if err != nil {
		rep.Outcome = OutcomeFailed
		rep.Error = err.Error()
		log.Warn("escalation failed, using rule outline",
			"document", in.Name,
			"classifier", rep.Classifier,
			"elapsed_ms", rep.ElapsedMs,
			"error", err,
		)
		return in.Rules, rep
	}

	external := Reconcile(in.Lines, pred)
	rep.ExternalCount = len(external)
	if len(external) <= rep.RuleCount {
		rep.Outcome = OutcomeKeptRules
		log.Debug("escalation kept rule outline", "document", in.Name,
			"rule_headings", rep.RuleCount, "external_headings", rep.ExternalCount)
		return in.Rules, rep
	}
	rep.Outcome = OutcomeReplaced
	log.Info("escalation replaced rule outline", "document", in.Name,
		"rule_headings", rep.RuleCount, "external_headings", rep.ExternalCount,
		"elapsed_ms", rep.ElapsedMs)
	return external, rep
}

// Identity names the classifier whose output Run may adopt: "none" without
// one, otherwise its name followed by its model when it reports one.
func (c *Controller) Identity() string {
	if c == nil || c.Classifier == nil {
		return "none"
	}
	id := c.Classifier.Name()
	if m, ok := c.Classifier.(interface{ Model() string }); ok {
		id += ":" + m.Model()
	}
	return id
}

type callResult struct {
	pred *classifier.Prediction
	err  error
}

// call bounds the classifier by timeout even if it ignores its context.
func (c *Controller) call(ctx context.Context, timeout time.Duration, req classifier.Request) (*classifier.Prediction, error) {
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	done := make(chan callResult, 1)
	go func() {
		pred, err := c.Classifier.ClassifyAndLink(ctx, req)
		done <- callResult{pred, err}
	}()

	select {
	case r := <-done:
		if r.err != nil {
			return nil, fmt.Errorf("%s classifier: %w", c.Classifier.Name(), r.err)
		}
		return r.pred, nil
	case <-ctx.Done():
		return nil, fmt.Errorf("%s classifier: %w", c.Classifier.Name(), ctx.Err())
	}
}

func (c *Controller) record(d time.Duration, err error) {
	if c.Stats == nil {
		return
	}
	switch {
	case err == nil:
		c.Stats.Record(d, classifier.OutcomeOK)
	case errors.Is(err, context.DeadlineExceeded):
		c.Stats.Record(d, classifier.OutcomeTimeout)
	default:
		c.Stats.Record(d, classifier.OutcomeError)
	}
}

func (c *Controller) minBudget() time.Duration {
	if c.MinBudget > 0 {
		return c.MinBudget
	}
	return DefaultMinBudget
}

func (c *Controller) logger() *slog.Logger {
	if c.Log != nil {
		return c.Log
	}
	return slog.Default()
}

func countHeadings(cands []doctree.HeadingCandidate) int {
	n := 0
	for _, c := range cands {
		if c.Level.IsHeading() {
			n++
		}
	}
	return n
}
