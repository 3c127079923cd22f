package pipeline

import (
	"context"
	"errors"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/dgallion1/docoutline/internal/classifier"
	"github.com/dgallion1/docoutline/internal/doctree"
	"github.com/dgallion1/docoutline/internal/escalate"
	"github.com/dgallion1/docoutline/internal/layout"
	"github.com/dgallion1/docoutline/internal/store"
)

const guideMD = `# Field Guide

An opening paragraph that is long enough to count as ordinary body text.

## Getting Started

Install the tool and run it against a folder of documents to begin.
`

// memCache is an in-memory Cache.
type memCache struct {
	mu   sync.Mutex
	recs map[string]store.Record
	puts int
}

func newMemCache() *memCache { return &memCache{recs: map[string]store.Record{}} }

func (c *memCache) Get(ctx context.Context, hash, fingerprint string) (*store.Record, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	rec, ok := c.recs[hash+"/"+fingerprint]
	if !ok {
		return nil, store.ErrNotFound
	}
	return &rec, nil
}

func (c *memCache) Put(ctx context.Context, rec store.Record) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.recs[rec.Hash+"/"+rec.Fingerprint] = rec
	c.puts++
	return nil
}

func waitDone(t *testing.T, job *Job) JobSnapshot {
	t.Helper()
	deadline := time.Now().Add(5 * time.Second)
	for time.Now().Before(deadline) {
		snap := job.Snapshot()
		if snap.Status.Done() {
			return snap
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatalf("job %s did not finish, status %s", job.ID, job.Snapshot().Status)
	return JobSnapshot{}
}

func newTestOrchestrator(cache Cache, workers, queue int) *Orchestrator {
	e := NewEngine(layout.DefaultConfig(), nil, 1, 0, quietLog())
	return NewOrchestrator(Options{WorkerCount: workers, MaxQueueSize: queue, JobTTL: time.Hour}, e, cache, quietLog())
}

func TestOrchestratorCompletesJob(t *testing.T) {
	cache := newMemCache()
	o := newTestOrchestrator(cache, 2, 10)
	o.Start(context.Background())
	defer o.Stop()

	job := NewJob("job-1", "guide.md", []byte(guideMD))
	if err := o.Submit(job); err != nil {
		t.Fatalf("Submit: %v", err)
	}
	snap := waitDone(t, job)
	if snap.Status != StatusCompleted {
		t.Fatalf("status = %s, errors %v", snap.Status, snap.Progress.Errors)
	}
	if snap.Progress.Headings != 1 || snap.Progress.Pages != 1 {
		t.Errorf("progress = %+v", snap.Progress)
	}
	export := job.Export()
	if export == nil || export.Title != "Field Guide" {
		t.Fatalf("export = %+v", export)
	}
	if cache.puts != 1 {
		t.Errorf("cache puts = %d, want 1", cache.puts)
	}
	if o.GetJob("job-1") != job {
		t.Error("GetJob did not return the submitted job")
	}
}

func TestOrchestratorServesCache(t *testing.T) {
	cache := newMemCache()
	data := []byte(guideMD)
	o := newTestOrchestrator(cache, 1, 10)
	cache.Put(context.Background(), store.Record{
		Hash:        ContentHashHex(data),
		Fingerprint: o.Engine().Fingerprint(),
		Filename:    "earlier.md",
		Export:      doctree.Export{Title: "Cached", Outline: []doctree.ExportEntry{{Level: "H1", Text: "A", Page: 1}}},
	})
	o.Start(context.Background())
	defer o.Stop()

	job := NewJob("job-c", "guide.md", data)
	o.Submit(job)
	snap := waitDone(t, job)
	if snap.Status != StatusCached {
		t.Fatalf("status = %s, want cached", snap.Status)
	}
	if job.Export().Title != "Cached" {
		t.Errorf("title = %q", job.Export().Title)
	}
	if cache.puts != 1 {
		t.Errorf("cache written again: puts = %d", cache.puts)
	}
}

func TestOrchestratorWithSQLiteStore(t *testing.T) {
	db, err := store.Open(filepath.Join(t.TempDir(), "cache.db"))
	if err != nil {
		t.Fatalf("store.Open: %v", err)
	}
	defer db.Close()

	o := newTestOrchestrator(db, 1, 10)
	o.Start(context.Background())
	defer o.Stop()

	first := NewJob("a", "guide.md", []byte(guideMD))
	o.Submit(first)
	if snap := waitDone(t, first); snap.Status != StatusCompleted {
		t.Fatalf("first status = %s", snap.Status)
	}
	second := NewJob("b", "copy.md", []byte(guideMD))
	o.Submit(second)
	if snap := waitDone(t, second); snap.Status != StatusCached {
		t.Fatalf("second status = %s, want cached", snap.Status)
	}
	if second.Export().Title != "Field Guide" {
		t.Errorf("cached title = %q", second.Export().Title)
	}
}

func TestOrchestratorUnsupportedFails(t *testing.T) {
	o := newTestOrchestrator(nil, 1, 10)
	o.Start(context.Background())
	defer o.Stop()

	job := NewJob("bad", "archive.zip", []byte("PK"))
	o.Submit(job)
	snap := waitDone(t, job)
	if snap.Status != StatusFailed || snap.Phase != "extracting" {
		t.Errorf("status = %s phase = %s", snap.Status, snap.Phase)
	}
	if len(snap.Progress.Errors) != 1 {
		t.Errorf("errors = %v", snap.Progress.Errors)
	}
}

func TestOrchestratorExtractFailureNotCached(t *testing.T) {
	cache := newMemCache()
	o := newTestOrchestrator(cache, 1, 10)
	o.Start(context.Background())
	defer o.Stop()

	job := NewJob("broken", "lines.json", []byte("{oops"))
	o.Submit(job)
	snap := waitDone(t, job)
	if snap.Status != StatusCompleted {
		t.Fatalf("status = %s", snap.Status)
	}
	if job.Export().Title != "lines" {
		t.Errorf("title = %q, want lines", job.Export().Title)
	}
	if len(snap.Progress.Errors) == 0 {
		t.Error("expected the extraction error to be recorded")
	}
	if cache.puts != 0 {
		t.Errorf("fallback outline was cached")
	}
}

type downClassifier struct{}

func (downClassifier) Name() string { return "down" }

func (downClassifier) ClassifyAndLink(ctx context.Context, req classifier.Request) (*classifier.Prediction, error) {
	return nil, errors.New("connection refused")
}

func TestWorkerSkipsCacheAfterFailedEscalation(t *testing.T) {
	cache := newMemCache()
	ctrl := &escalate.Controller{Classifier: downClassifier{}, Timeout: time.Second, MinBudget: time.Millisecond, Log: quietLog()}
	w := NewWorker(NewEngine(layout.DefaultConfig(), ctrl, 1, 5*time.Second, quietLog()), cache, quietLog())

	job := NewJob("esc", "guide.md", []byte(guideMD))
	w.Process(context.Background(), job)
	snap := job.Snapshot()
	if snap.Status != StatusCompleted || snap.Progress.Escalation != string(escalate.OutcomeFailed) {
		t.Fatalf("status = %s escalation = %s", snap.Status, snap.Progress.Escalation)
	}
	if cache.puts != 0 {
		t.Errorf("outline after failed escalation was cached")
	}
}

func TestWorkerSkipsCacheForEmptyFallback(t *testing.T) {
	cache := newMemCache()
	w := NewWorker(NewEngine(layout.DefaultConfig(), nil, 1, 0, quietLog()), cache, quietLog())

	job := NewJob("empty", "notes.txt", nil)
	w.Process(context.Background(), job)
	if job.Export() == nil || job.Export().Title != "notes" {
		t.Fatalf("export = %+v", job.Export())
	}
	if cache.puts != 0 {
		t.Errorf("filename-titled fallback was cached")
	}
}

func TestWorkerCacheKeyedByFingerprint(t *testing.T) {
	cache := newMemCache()
	data := []byte(guideMD)

	first := NewWorker(NewEngine(layout.DefaultConfig(), nil, 1, 0, quietLog()), cache, quietLog())
	job := NewJob("a", "guide.md", data)
	first.Process(context.Background(), job)
	if cache.puts != 1 {
		t.Fatalf("puts = %d, want 1", cache.puts)
	}

	again := NewJob("b", "guide.md", data)
	first.Process(context.Background(), again)
	if s := again.Snapshot().Status; s != StatusCached {
		t.Errorf("same settings: status = %s, want cached", s)
	}

	cfg := layout.DefaultConfig()
	cfg.Rules.HeadingThreshold++
	tuned := NewWorker(NewEngine(cfg, nil, 1, 0, quietLog()), cache, quietLog())
	third := NewJob("c", "guide.md", data)
	tuned.Process(context.Background(), third)
	if s := third.Snapshot().Status; s != StatusCompleted {
		t.Errorf("changed rules: status = %s, want completed", s)
	}

	ctrl := &escalate.Controller{Classifier: labelClassifier{}, Log: quietLog()}
	withClassifier := NewEngine(layout.DefaultConfig(), ctrl, 1, 0, quietLog())
	if withClassifier.Fingerprint() == first.engine.Fingerprint() {
		t.Error("classifier does not change the fingerprint")
	}
}

func TestOrchestratorQueueFull(t *testing.T) {
	// not started, so nothing drains the queue
	o := newTestOrchestrator(nil, 1, 1)
	if err := o.Submit(NewJob("1", "a.md", []byte("a"))); err != nil {
		t.Fatalf("first Submit: %v", err)
	}
	job := NewJob("2", "b.md", []byte("b"))
	err := o.Submit(job)
	if !errors.Is(err, ErrQueueFull) {
		t.Fatalf("err = %v, want ErrQueueFull", err)
	}
	if job.Snapshot().Status != StatusFailed {
		t.Errorf("status = %s", job.Snapshot().Status)
	}
	if o.QueueDepth() != 1 {
		t.Errorf("queue depth = %d", o.QueueDepth())
	}
}

func TestOrchestratorStopFailsQueued(t *testing.T) {
	o := newTestOrchestrator(nil, 1, 5)
	job := NewJob("q", "a.md", []byte("a"))
	o.Submit(job)
	o.Stop()

	if s := job.Snapshot().Status; s != StatusFailed {
		t.Errorf("status = %s, want failed", s)
	}
	if err := o.Submit(NewJob("late", "b.md", []byte("b"))); err == nil {
		t.Error("expected Submit after Stop to fail")
	}
	o.Stop()
}
