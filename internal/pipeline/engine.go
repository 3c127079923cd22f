package pipeline

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"io"
	"log/slog"
	"time"

	"github.com/dgallion1/docoutline/internal/doctree"
	"github.com/dgallion1/docoutline/internal/escalate"
	"github.com/dgallion1/docoutline/internal/extract"
	"github.com/dgallion1/docoutline/internal/hierarchy"
	"github.com/dgallion1/docoutline/internal/layout"
)

// DefaultBudget is the per-document latency budget.
const DefaultBudget = 10 * time.Second

// Result is everything the engine learned about one document.
type Result struct {
	Export     doctree.Export             `json:"export"`
	Tree       *doctree.OutlineTree       `json:"-"`
	Stats      doctree.DocumentStatistics `json:"stats"`
	Escalation escalate.Report            `json:"escalation"`
	Candidates []doctree.HeadingCandidate `json:"-"`
	Lines      int                        `json:"lines"`
	Fallback   bool                       `json:"fallback,omitempty"`
	ExtractErr string                     `json:"extract_error,omitempty"`
	Elapsed    time.Duration              `json:"elapsed"`
}

// Engine turns extracted lines into an outline. It is safe for concurrent
// use; every Run works on its own document.
type Engine struct {
	cfg         layout.Config
	rules       *layout.Classifier
	escalation  *escalate.Controller
	pageWorkers int
	budget      time.Duration
	fingerprint string
	log         *slog.Logger
}

// NewEngine creates an engine. A nil controller means rule-only outlines.
func NewEngine(cfg layout.Config, esc *escalate.Controller, pageWorkers int, budget time.Duration, log *slog.Logger) *Engine {
	if pageWorkers <= 0 {
		pageWorkers = 1
	}
	if budget <= 0 {
		budget = DefaultBudget
	}
	if log == nil {
		log = slog.Default()
	}
	return &Engine{
		cfg:         cfg,
		rules:       layout.NewClassifier(cfg.Rules),
		escalation:  esc,
		pageWorkers: pageWorkers,
		budget:      budget,
		fingerprint: fingerprint(cfg, esc),
		log:         log,
	}
}

// fingerprint hashes everything that shapes an outline besides the input
// bytes: the layout configuration and the escalation classifier.
func fingerprint(cfg layout.Config, esc *escalate.Controller) string {
	h := sha256.New()
	fmt.Fprintf(h, "%+v|%s", cfg, esc.Identity())
	return hex.EncodeToString(h.Sum(nil))[:16]
}

// Fingerprint identifies the engine's settings. Cached outlines are only
// reused under the fingerprint that produced them.
func (e *Engine) Fingerprint() string {
	return e.fingerprint
}

// Cacheable reports whether the result may be reused for the same bytes.
// Fallback outlines are titled from the filename, and outlines built after
// a failed or skipped escalation deserve another attempt.
func (r *Result) Cacheable() bool {
	if r.Fallback || r.ExtractErr != "" {
		return false
	}
	switch r.Escalation.Outcome {
	case escalate.OutcomeFailed, escalate.OutcomeSkippedBudget:
		return false
	}
	return true
}

// Run outlines one document with the whole latency budget ahead of it.
func (e *Engine) Run(ctx context.Context, doc *extract.Document) (*Result, error) {
	return e.RunSince(ctx, doc, time.Now())
}

// RunSince outlines a document whose processing began at start, usually
// before extraction, so the latency budget covers both phases. A document
// without usable lines yields an empty outline titled from its metadata or
// filename. The only error is a contract violation in strict mode, or a
// cancelled context.
func (e *Engine) RunSince(ctx context.Context, doc *extract.Document, start time.Time) (*Result, error) {
	deadline := start.Add(e.budget)
	log := e.log.With("document", doc.Name)

	lines, err := layout.Normalize(doc.Lines, doc.PageCount, e.cfg.Normalize)
	if err != nil {
		return nil, fmt.Errorf("normalize %s: %w", doc.Name, err)
	}
	if len(lines) == 0 {
		log.Warn("no usable lines, emitting empty outline", "error", doctree.ErrNoLines)
		return &Result{
			Export:     doctree.EmptyExport(doc.FallbackTitle()),
			Tree:       &doctree.OutlineTree{},
			Escalation: escalate.Report{Outcome: escalate.OutcomeNotNeeded},
			Fallback:   true,
			Elapsed:    time.Since(start),
		}, nil
	}

	stats := layout.EstimateBaseline(lines, doc.PageCount, e.cfg.Baseline)
	fvs, err := e.scorePages(ctx, lines, stats)
	if err != nil {
		return nil, err
	}

	decisions := make([]layout.Decision, len(fvs))
	for i, fv := range fvs {
		decisions[i] = e.rules.Classify(fv)
	}
	e.rules.ResolveTitle(lines, fvs, decisions)
	cands := layout.Candidates(lines, decisions)

	cands, report := e.escalation.Run(ctx, deadline, escalate.Input{
		Name:      doc.Name,
		Lines:     lines,
		Features:  fvs,
		Rules:     cands,
		PageCount: stats.PageCount,
	})

	tree := hierarchy.Build(cands)
	res := &Result{
		Export:     hierarchy.Assemble(tree),
		Tree:       tree,
		Stats:      stats,
		Escalation: report,
		Candidates: cands,
		Lines:      len(lines),
		Elapsed:    time.Since(start),
	}
	log.Debug("outline built",
		"lines", len(lines),
		"pages", stats.PageCount,
		"body_pt", stats.BodyFontSize,
		"headings", len(res.Export.Outline),
		"escalation", report.Outcome,
		"elapsed_ms", res.Elapsed.Milliseconds(),
	)
	if res.Elapsed > e.budget {
		log.Warn("latency budget exceeded", "elapsed_ms", res.Elapsed.Milliseconds(), "budget_ms", e.budget.Milliseconds())
	}
	return res, nil
}

// OutlineReader extracts and outlines one file. An extractor failure is
// logged and turned into the empty fallback outline; the error is non-nil
// only for an unsupported format, a strict-mode contract violation or a
// cancelled context.
func (e *Engine) OutlineReader(ctx context.Context, r io.Reader, filename string) (*Result, error) {
	start := time.Now()
	doc, extractErr, err := e.extract(ctx, r, filename)
	if err != nil {
		return nil, err
	}
	res, err := e.RunSince(ctx, doc, start)
	if err != nil {
		return nil, err
	}
	res.ExtractErr = extractErr
	return res, nil
}

// extract runs the extractor registered for filename. When the extractor
// itself fails the document is replaced by an empty one and the failure is
// returned as text for the result.
func (e *Engine) extract(ctx context.Context, r io.Reader, filename string) (*extract.Document, string, error) {
	ex, err := extract.ForFile(filename)
	if err != nil {
		return nil, "", err
	}
	doc, err := ex.Extract(ctx, r, filename)
	if err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return nil, "", ctxErr
		}
		e.log.Warn("extraction failed", "document", filename, "error", err)
		return &extract.Document{Name: filename}, err.Error(), nil
	}
	return doc, "", nil
}

// scorePages computes feature vectors page by page on a bounded pool. Each
// page writes into its own slot, and the slots are joined in page order, so
// the result is parallel to lines.
func (e *Engine) scorePages(ctx context.Context, lines []doctree.TextLine, stats doctree.DocumentStatistics) ([]doctree.FeatureVector, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	var pages [][]doctree.TextLine
	for i := 0; i < len(lines); {
		j := i + 1
		for j < len(lines) && lines[j].Page == lines[i].Page {
			j++
		}
		pages = append(pages, lines[i:j])
		i = j
	}

	slots := make([][]doctree.FeatureVector, len(pages))
	sem := make(chan struct{}, e.pageWorkers)
	done := make(chan struct{}, len(pages))
	for i, page := range pages {
		select {
		case sem <- struct{}{}:
		case <-ctx.Done():
			// drain what was started before giving up
			for range i {
				<-done
			}
			return nil, ctx.Err()
		}
		go func(i int, page []doctree.TextLine) {
			defer func() { <-sem; done <- struct{}{} }()
			slots[i] = layout.ScorePage(page, stats)
		}(i, page)
	}
	for range pages {
		<-done
	}

	fvs := make([]doctree.FeatureVector, 0, len(lines))
	for _, s := range slots {
		fvs = append(fvs, s...)
	}
	return fvs, nil
}
