package pipeline

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/dgallion1/docoutline/internal/store"
)

// Worker processes a single document job.
type Worker struct {
	engine *Engine
	cache  Cache
	log    *slog.Logger
}

func NewWorker(engine *Engine, cache Cache, log *slog.Logger) *Worker {
	return &Worker{engine: engine, cache: cache, log: log}
}

// Process runs cache lookup, extraction and outlining for a job.
func (w *Worker) Process(ctx context.Context, job *Job) {
	start := time.Now()
	log := w.log.With("job_id", job.ID, "filename", job.Filename)
	fp := w.engine.Fingerprint()

	// Phase 0: Cache lookup by content hash.
	if w.cache != nil {
		rec, err := w.cache.Get(ctx, job.ContentHash, fp)
		switch {
		case err == nil:
			log.Info("outline served from cache", "hash", job.ContentHash)
			job.SetCached(rec.Export)
			job.SetStatus(StatusCached, "done")
			return
		case !errors.Is(err, store.ErrNotFound):
			log.Warn("cache lookup failed, proceeding", "error", err)
		}
	}

	// Phase 1: Extract
	job.SetStatus(StatusExtracting, "extracting")
	doc, extractErr, err := w.engine.extract(ctx, bytes.NewReader(job.FileData()), job.Filename)
	if err != nil {
		log.Error("extraction failed", "error", err)
		job.AddError(fmt.Sprintf("extract: %s", err))
		job.SetStatus(StatusFailed, "extracting")
		return
	}
	if extractErr != "" {
		job.AddError(fmt.Sprintf("extract: %s", extractErr))
	}

	// Phase 2: Outline
	job.SetStatus(StatusOutlining, "outlining")
	res, err := w.engine.RunSince(ctx, doc, start)
	if err != nil {
		log.Error("outline failed", "error", err)
		job.AddError(fmt.Sprintf("outline: %s", err))
		job.SetStatus(StatusFailed, "outlining")
		return
	}
	res.ExtractErr = extractErr
	job.SetResult(res)
	log.Info("outline complete",
		"headings", len(res.Export.Outline),
		"escalation", res.Escalation.Outcome,
		"elapsed_ms", res.Elapsed.Milliseconds(),
	)

	// Phase 3: Store
	if w.cache != nil && res.Cacheable() {
		err := w.cache.Put(ctx, store.Record{
			Hash:        job.ContentHash,
			Fingerprint: fp,
			Filename:    job.Filename,
			Export:      res.Export,
			Escalation:  string(res.Escalation.Outcome),
			CreatedAt:   time.Now(),
		})
		if err != nil {
			log.Warn("cache write failed", "error", err)
			job.AddError(fmt.Sprintf("cache: %s", err))
		}
	}

	job.SetStatus(StatusCompleted, "done")
}
