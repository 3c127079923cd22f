package api

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/dgallion1/docoutline/internal/classifier"
	"github.com/dgallion1/docoutline/internal/config"
	"github.com/dgallion1/docoutline/internal/doctree"
	"github.com/dgallion1/docoutline/internal/layout"
	"github.com/dgallion1/docoutline/internal/pipeline"
	"github.com/dgallion1/docoutline/internal/store"
)

const guideMD = `# Field Guide

An opening paragraph that is long enough to count as ordinary body text.

## Getting Started

Install the tool and run it against a folder of documents to begin.
`

type testEnv struct {
	srv   *Server
	orch  *pipeline.Orchestrator
	store *store.Store
}

func newTestEnv(t *testing.T, apiKey string) *testEnv {
	t.Helper()
	log := slog.New(slog.NewTextHandler(io.Discard, nil))
	db, err := store.Open(filepath.Join(t.TempDir(), "cache.db"))
	if err != nil {
		t.Fatalf("store.Open: %v", err)
	}
	t.Cleanup(func() { db.Close() })

	cfg := config.Config{APIKey: apiKey, MaxUploadBytes: 1 << 20, Classifier: config.ClassifierNone}
	engine := pipeline.NewEngine(layout.DefaultConfig(), nil, 1, 0, log)
	orch := pipeline.NewOrchestrator(pipeline.Options{WorkerCount: 1, MaxQueueSize: 10}, engine, db, log)
	orch.Start(context.Background())
	t.Cleanup(orch.Stop)

	return &testEnv{
		srv:   NewServer(orch, db, classifier.NewStats(time.Hour), log, cfg),
		orch:  orch,
		store: db,
	}
}

func multipartBody(t *testing.T, field string, files map[string]string) (*bytes.Buffer, string) {
	t.Helper()
	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	for name, content := range files {
		fw, err := mw.CreateFormFile(field, name)
		if err != nil {
			t.Fatalf("CreateFormFile: %v", err)
		}
		fw.Write([]byte(content))
	}
	mw.Close()
	return &buf, mw.FormDataContentType()
}

func (e *testEnv) do(req *http.Request) *httptest.ResponseRecorder {
	rec := httptest.NewRecorder()
	e.srv.ServeHTTP(rec, req)
	return rec
}

func TestHealth(t *testing.T) {
	env := newTestEnv(t, "secret")
	rec := env.do(httptest.NewRequest(http.MethodGet, "/health", nil))
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d", rec.Code)
	}
	if !strings.Contains(rec.Body.String(), `"ok"`) {
		t.Errorf("body = %s", rec.Body.String())
	}
}

func TestAuth(t *testing.T) {
	env := newTestEnv(t, "secret")
	tests := []struct {
		name   string
		header string
		want   int
	}{
		{"missing", "", http.StatusUnauthorized},
		{"wrong", "Bearer nope", http.StatusUnauthorized},
		{"basic scheme", "Basic secret", http.StatusUnauthorized},
		{"ok", "Bearer secret", http.StatusOK},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, "/api/outlines", nil)
			if tt.header != "" {
				req.Header.Set("Authorization", tt.header)
			}
			if rec := env.do(req); rec.Code != tt.want {
				t.Errorf("status = %d, want %d", rec.Code, tt.want)
			}
		})
	}
}

func TestNoAuthWhenKeyUnset(t *testing.T) {
	env := newTestEnv(t, "")
	rec := env.do(httptest.NewRequest(http.MethodGet, "/api/outlines", nil))
	if rec.Code != http.StatusOK {
		t.Errorf("status = %d, want 200", rec.Code)
	}
}

func TestOutlineSync(t *testing.T) {
	env := newTestEnv(t, "")
	body, ct := multipartBody(t, "file", map[string]string{"guide.md": guideMD})
	req := httptest.NewRequest(http.MethodPost, "/api/outline", body)
	req.Header.Set("Content-Type", ct)

	rec := env.do(req)
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d body = %s", rec.Code, rec.Body.String())
	}
	if got := rec.Header().Get("X-Escalation"); got != "no_classifier" {
		t.Errorf("X-Escalation = %q", got)
	}
	var export doctree.Export
	if err := json.Unmarshal(rec.Body.Bytes(), &export); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if export.Title != "Field Guide" || len(export.Outline) != 1 || export.Outline[0].Text != "Getting Started" {
		t.Errorf("export = %+v", export)
	}
	if !strings.HasPrefix(rec.Body.String(), "{\n    \"title\"") {
		t.Errorf("expected 4-space indented output, got %q", rec.Body.String())
	}
}

func TestOutlineRejectsUnsupported(t *testing.T) {
	env := newTestEnv(t, "")
	body, ct := multipartBody(t, "file", map[string]string{"archive.zip": "PK"})
	req := httptest.NewRequest(http.MethodPost, "/api/outline", body)
	req.Header.Set("Content-Type", ct)

	if rec := env.do(req); rec.Code != http.StatusBadRequest {
		t.Errorf("status = %d, want 400", rec.Code)
	}
}

func TestOutlineMissingFile(t *testing.T) {
	env := newTestEnv(t, "")
	body, ct := multipartBody(t, "other", map[string]string{"guide.md": guideMD})
	req := httptest.NewRequest(http.MethodPost, "/api/outline", body)
	req.Header.Set("Content-Type", ct)

	if rec := env.do(req); rec.Code != http.StatusBadRequest {
		t.Errorf("status = %d, want 400", rec.Code)
	}
}

func TestOutlineLines(t *testing.T) {
	env := newTestEnv(t, "")
	doc := map[string]any{
		"name": "study.pdf",
		"lines": []map[string]any{
			{"text": "1. Introduction", "page_index": 0, "font_size": 18, "bold": true, "bbox": map[string]float64{"x0": 72, "y0": 100, "x1": 400, "y1": 118}},
			{"text": "1.1 Background", "page_index": 0, "font_size": 14, "bold": true, "bbox": map[string]float64{"x0": 72, "y0": 130, "x1": 400, "y1": 144}},
			{"text": "This paragraph explains the background of the study in some detail.", "page_index": 0, "font_size": 11, "bbox": map[string]float64{"x0": 72, "y0": 150, "x1": 500, "y1": 161}},
			{"text": "The second paragraph continues with the motivation behind the work.", "page_index": 0, "font_size": 11, "bbox": map[string]float64{"x0": 72, "y0": 165, "x1": 500, "y1": 176}},
		},
	}
	raw, _ := json.Marshal(doc)
	rec := env.do(httptest.NewRequest(http.MethodPost, "/api/outline/lines", bytes.NewReader(raw)))
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d body = %s", rec.Code, rec.Body.String())
	}
	var export doctree.Export
	if err := json.Unmarshal(rec.Body.Bytes(), &export); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if len(export.Outline) != 2 || export.Outline[0].Level != "H1" || export.Outline[1].Level != "H2" {
		t.Errorf("outline = %+v", export.Outline)
	}
}

func TestOutlineLinesBadJSON(t *testing.T) {
	env := newTestEnv(t, "")
	rec := env.do(httptest.NewRequest(http.MethodPost, "/api/outline/lines", strings.NewReader("{")))
	if rec.Code != http.StatusBadRequest {
		t.Errorf("status = %d, want 400", rec.Code)
	}
}

func waitJob(t *testing.T, env *testEnv, id string) pipeline.JobSnapshot {
	t.Helper()
	deadline := time.Now().Add(5 * time.Second)
	for time.Now().Before(deadline) {
		rec := env.do(httptest.NewRequest(http.MethodGet, "/api/jobs/"+id, nil))
		if rec.Code != http.StatusOK {
			t.Fatalf("status poll = %d", rec.Code)
		}
		var snap pipeline.JobSnapshot
		if err := json.Unmarshal(rec.Body.Bytes(), &snap); err != nil {
			t.Fatalf("decode snapshot: %v", err)
		}
		if snap.Status.Done() {
			return snap
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatalf("job %s did not finish", id)
	return pipeline.JobSnapshot{}
}

func TestJobLifecycle(t *testing.T) {
	env := newTestEnv(t, "")
	body, ct := multipartBody(t, "file", map[string]string{"guide.md": guideMD})
	req := httptest.NewRequest(http.MethodPost, "/api/jobs", body)
	req.Header.Set("Content-Type", ct)

	rec := env.do(req)
	if rec.Code != http.StatusAccepted {
		t.Fatalf("submit status = %d body = %s", rec.Code, rec.Body.String())
	}
	var accepted map[string]any
	json.Unmarshal(rec.Body.Bytes(), &accepted)
	id, _ := accepted["job_id"].(string)
	if id == "" {
		t.Fatalf("no job_id in %s", rec.Body.String())
	}

	snap := waitJob(t, env, id)
	if snap.Status != pipeline.StatusCompleted {
		t.Fatalf("status = %s errors = %v", snap.Status, snap.Progress.Errors)
	}

	rec = env.do(httptest.NewRequest(http.MethodGet, "/api/jobs/"+id+"/outline", nil))
	if rec.Code != http.StatusOK {
		t.Fatalf("outline status = %d", rec.Code)
	}
	var export doctree.Export
	json.Unmarshal(rec.Body.Bytes(), &export)
	if export.Title != "Field Guide" {
		t.Errorf("title = %q", export.Title)
	}

	// the finished outline is now listed in the cache
	rec = env.do(httptest.NewRequest(http.MethodGet, "/api/outlines", nil))
	var list struct {
		Outlines []store.Record `json:"outlines"`
	}
	json.Unmarshal(rec.Body.Bytes(), &list)
	if len(list.Outlines) != 1 || list.Outlines[0].Hash != snap.ContentHash {
		t.Fatalf("outlines = %+v", list.Outlines)
	}

	rec = env.do(httptest.NewRequest(http.MethodDelete, "/api/outlines/"+snap.ContentHash, nil))
	if rec.Code != http.StatusOK {
		t.Errorf("delete status = %d", rec.Code)
	}
	rec = env.do(httptest.NewRequest(http.MethodDelete, "/api/outlines/"+snap.ContentHash, nil))
	if rec.Code != http.StatusNotFound {
		t.Errorf("second delete status = %d, want 404", rec.Code)
	}
}

func TestJobNotFound(t *testing.T) {
	env := newTestEnv(t, "")
	for _, path := range []string{"/api/jobs/missing", "/api/jobs/missing/outline"} {
		if rec := env.do(httptest.NewRequest(http.MethodGet, path, nil)); rec.Code != http.StatusNotFound {
			t.Errorf("%s status = %d, want 404", path, rec.Code)
		}
	}
}

func TestBatchJobs(t *testing.T) {
	env := newTestEnv(t, "")
	body, ct := multipartBody(t, "files", map[string]string{
		"guide.md":    guideMD,
		"archive.zip": "PK",
	})
	req := httptest.NewRequest(http.MethodPost, "/api/jobs/batch", body)
	req.Header.Set("Content-Type", ct)

	rec := env.do(req)
	if rec.Code != http.StatusAccepted {
		t.Fatalf("status = %d body = %s", rec.Code, rec.Body.String())
	}
	var out struct {
		Jobs []map[string]any `json:"jobs"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &out); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if len(out.Jobs) != 2 {
		t.Fatalf("jobs = %+v", out.Jobs)
	}
	var accepted, rejected int
	for _, j := range out.Jobs {
		if _, ok := j["error"]; ok {
			rejected++
		} else {
			accepted++
		}
	}
	if accepted != 1 || rejected != 1 {
		t.Errorf("accepted = %d rejected = %d", accepted, rejected)
	}
}

func TestClassifierStats(t *testing.T) {
	env := newTestEnv(t, "")
	rec := env.do(httptest.NewRequest(http.MethodGet, "/api/stats/classifier", nil))
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d", rec.Code)
	}
	var out map[string]any
	json.Unmarshal(rec.Body.Bytes(), &out)
	if out["classifier"] != "none" {
		t.Errorf("classifier = %v", out["classifier"])
	}
	if _, ok := out["stats"]; !ok {
		t.Errorf("missing stats in %s", rec.Body.String())
	}
}

func TestCatalogDisabled(t *testing.T) {
	log := slog.New(slog.NewTextHandler(io.Discard, nil))
	engine := pipeline.NewEngine(layout.DefaultConfig(), nil, 1, 0, log)
	orch := pipeline.NewOrchestrator(pipeline.Options{}, engine, nil, log)
	srv := NewServer(orch, nil, nil, log, config.Config{MaxUploadBytes: 1 << 20})

	for _, tt := range []struct{ method, path string }{
		{http.MethodGet, "/api/outlines"},
		{http.MethodDelete, "/api/outlines/abc"},
		{http.MethodGet, "/api/stats/classifier"},
	} {
		rec := httptest.NewRecorder()
		srv.ServeHTTP(rec, httptest.NewRequest(tt.method, tt.path, nil))
		if rec.Code != http.StatusServiceUnavailable {
			t.Errorf("%s %s = %d, want 503", tt.method, tt.path, rec.Code)
		}
	}
}

func TestSanitizeFilename(t *testing.T) {
	tests := []struct{ in, want string }{
		{"report.pdf", "report.pdf"},
		{"../../etc/passwd", "passwd"},
		{"dir/sub/file.md", "file.md"},
		{"", "unnamed"},
		{"a..b.txt", "a_b.txt"},
	}
	for _, tt := range tests {
		if got := sanitizeFilename(tt.in); got != tt.want {
			t.Errorf("sanitizeFilename(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
}
