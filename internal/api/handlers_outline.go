package api

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"path/filepath"
	"strings"
	"time"

	"github.com/dgallion1/docoutline/internal/doctree"
	"github.com/dgallion1/docoutline/internal/extract"
	"github.com/dgallion1/docoutline/internal/pipeline"
)

// handleOutline outlines one uploaded file synchronously.
func (s *Server) handleOutline(w http.ResponseWriter, r *http.Request) {
	// Limit total request size.
	r.Body = http.MaxBytesReader(w, r.Body, s.cfg.MaxUploadBytes+1024*1024) // extra 1MB for form overhead

	if err := r.ParseMultipartForm(32 << 20); err != nil {
		jsonError(w, "invalid multipart form: "+err.Error(), http.StatusBadRequest)
		return
	}
	defer r.MultipartForm.RemoveAll()

	file, header, err := r.FormFile("file")
	if err != nil {
		jsonError(w, "file is required: "+err.Error(), http.StatusBadRequest)
		return
	}
	defer file.Close()

	filename, data, status, err := s.readUpload(file, header)
	if err != nil {
		jsonError(w, err.Error(), status)
		return
	}

	res, err := s.orchestrator.Engine().OutlineReader(r.Context(), bytes.NewReader(data), filename)
	if err != nil {
		s.outlineError(w, filename, err)
		return
	}
	writeResult(w, res)
}

// handleOutlineLines outlines a JSON document of pre-extracted lines.
func (s *Server) handleOutlineLines(w http.ResponseWriter, r *http.Request) {
	start := time.Now()
	r.Body = http.MaxBytesReader(w, r.Body, s.cfg.MaxUploadBytes)

	var doc extract.Document
	if err := json.NewDecoder(r.Body).Decode(&doc); err != nil {
		jsonError(w, "invalid document: "+err.Error(), http.StatusBadRequest)
		return
	}
	if doc.Name == "" {
		doc.Name = "lines"
	}
	for i := range doc.Lines {
		doc.Lines[i].ID = i
		if doc.Lines[i].Page+1 > doc.PageCount {
			doc.PageCount = doc.Lines[i].Page + 1
		}
	}

	res, err := s.orchestrator.Engine().RunSince(r.Context(), &doc, start)
	if err != nil {
		s.outlineError(w, doc.Name, err)
		return
	}
	writeResult(w, res)
}

// readUpload validates the name and size of one uploaded file. The status
// is meaningful only when err is non-nil.
func (s *Server) readUpload(file multipart.File, header *multipart.FileHeader) (string, []byte, int, error) {
	filename := sanitizeFilename(header.Filename)
	if !extract.IsSupportedExtension(filename) {
		return filename, nil, http.StatusBadRequest, fmt.Errorf("unsupported file type: %s", filepath.Ext(filename))
	}

	data, err := io.ReadAll(io.LimitReader(file, s.cfg.MaxUploadBytes+1))
	if err != nil {
		return filename, nil, http.StatusInternalServerError, errors.New("failed to read file")
	}
	if int64(len(data)) > s.cfg.MaxUploadBytes {
		return filename, nil, http.StatusRequestEntityTooLarge, fmt.Errorf("file exceeds max size (%d bytes)", s.cfg.MaxUploadBytes)
	}
	return filename, data, 0, nil
}

func (s *Server) outlineError(w http.ResponseWriter, name string, err error) {
	var ce *doctree.ContractError
	switch {
	case errors.As(err, &ce):
		jsonError(w, err.Error(), http.StatusUnprocessableEntity)
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		jsonError(w, "request cancelled", http.StatusServiceUnavailable)
	default:
		s.log.Error("outline failed", "document", name, "error", err)
		jsonError(w, "outline failed: "+err.Error(), http.StatusInternalServerError)
	}
}

// writeResult writes the export with the escalation outcome in a header.
func writeResult(w http.ResponseWriter, res *pipeline.Result) {
	w.Header().Set("Content-Type", "application/json")
	w.Header().Set("X-Escalation", string(res.Escalation.Outcome))
	if res.ExtractErr != "" {
		w.Header().Set("X-Extract-Error", headerSafe(res.ExtractErr))
	}
	w.WriteHeader(http.StatusOK)
	res.Export.Encode(w)
}

func writeExport(w http.ResponseWriter, export doctree.Export) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	export.Encode(w)
}

func headerSafe(s string) string {
	s = strings.Map(func(r rune) rune {
		if r < 0x20 || r == 0x7f {
			return ' '
		}
		return r
	}, s)
	if len(s) > 200 {
		s = s[:200]
	}
	return s
}

func jsonError(w http.ResponseWriter, msg string, code int) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	json.NewEncoder(w).Encode(map[string]string{"error": msg})
}

func sanitizeFilename(name string) string {
	// Strip path components, keep only the base name.
	name = filepath.Base(name)
	// Remove any path separators that might have survived.
	name = strings.ReplaceAll(name, "/", "_")
	name = strings.ReplaceAll(name, "\\", "_")
	name = strings.ReplaceAll(name, "..", "_")
	if name == "" || name == "." {
		name = "unnamed"
	}
	return name
}
