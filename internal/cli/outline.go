package cli

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"time"

	"github.com/spf13/cobra"

	"github.com/dgallion1/docoutline/internal/doctree"
	"github.com/dgallion1/docoutline/internal/extract"
	"github.com/dgallion1/docoutline/internal/pipeline"
	"github.com/dgallion1/docoutline/internal/store"
)

var outDir string
var showTree bool
var concurrency int

var outlineCmd = &cobra.Command{
	Use:   "outline [files or directories...]",
	Short: "Outline documents and write one JSON file per input",
	Long: `Outline every supported file named on the command line; directories are
walked recursively. With -o each outline is written to DIR/<name>.json
(inputs sharing a name keep their extension and, if still taken, get a
numeric suffix); otherwise the JSON goes to stdout. A document that fails is reported and
skipped; the exit status is non-zero if any did.`,
	Args: cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := loadApp()
		if err != nil {
			return err
		}
		defer a.Close()

		if concurrency <= 0 {
			concurrency = a.cfg.BatchConcurrency
		}
		b := &batch{
			engine:      a.engine,
			cache:       a.pipelineCache(),
			log:         a.log,
			outDir:      outDir,
			tree:        showTree,
			concurrency: concurrency,
			out:         cmd.OutOrStdout(),
		}
		return b.run(cmd.Context(), args)
	},
}

func init() {
	outlineCmd.Flags().StringVarP(&outDir, "out", "o", "", "Directory for <name>.json outputs (default: stdout)")
	outlineCmd.Flags().BoolVar(&showTree, "tree", false, "Render each outline as a tree on stdout")
	outlineCmd.Flags().IntVarP(&concurrency, "concurrency", "c", 0, "Documents outlined in parallel (default: BATCH_CONCURRENCY)")

	rootCmd.AddCommand(outlineCmd)
}

// batch outlines many files with bounded concurrency and writes the
// results in input order.
type batch struct {
	engine      *pipeline.Engine
	cache       pipeline.Cache
	log         *slog.Logger
	outDir      string
	tree        bool
	concurrency int
	out         io.Writer
}

type batchResult struct {
	path   string
	name   string // output file name under outDir
	export doctree.Export
	cached bool
	err    error
}

func (b *batch) run(ctx context.Context, args []string) error {
	if ctx == nil {
		ctx = context.Background()
	}
	paths, err := collectInputs(args)
	if err != nil {
		return err
	}
	if len(paths) == 0 {
		return errors.New("no supported documents found")
	}
	if b.outDir != "" {
		if err := os.MkdirAll(b.outDir, 0o755); err != nil {
			return fmt.Errorf("create output directory: %w", err)
		}
	}

	start := time.Now()
	results := make([]batchResult, len(paths))
	sem := make(chan struct{}, max(b.concurrency, 1))
	done := make(chan struct{}, len(paths))
	for i, p := range paths {
		sem <- struct{}{}
		go func(i int, p string) {
			defer func() { <-sem; done <- struct{}{} }()
			results[i] = b.one(ctx, p)
		}(i, p)
	}
	for range paths {
		<-done
	}
	for i, name := range outputNames(paths) {
		results[i].name = name
	}

	failed := 0
	for _, r := range results {
		if r.err != nil {
			failed++
			b.log.Error("document failed", "path", r.path, "error", r.err)
			continue
		}
		if err := b.write(r); err != nil {
			failed++
			b.log.Error("write failed", "path", r.path, "error", err)
		}
	}
	b.log.Info("batch complete",
		"documents", len(paths),
		"failed", failed,
		"elapsed_ms", time.Since(start).Milliseconds(),
	)
	if failed > 0 {
		return fmt.Errorf("%d of %d documents failed", failed, len(paths))
	}
	return nil
}

func (b *batch) one(ctx context.Context, path string) batchResult {
	r := batchResult{path: path}
	data, err := os.ReadFile(path)
	if err != nil {
		r.err = err
		return r
	}

	hash := pipeline.ContentHashHex(data)
	if b.cache != nil {
		rec, err := b.cache.Get(ctx, hash, b.engine.Fingerprint())
		if err == nil {
			r.export, r.cached = rec.Export, true
			return r
		}
		if !errors.Is(err, store.ErrNotFound) {
			b.log.Warn("cache lookup failed", "path", path, "error", err)
		}
	}

	res, err := b.engine.OutlineReader(ctx, bytes.NewReader(data), path)
	if err != nil {
		r.err = err
		return r
	}
	r.export = res.Export
	if b.cache != nil && res.Cacheable() {
		err := b.cache.Put(ctx, store.Record{
			Hash:        hash,
			Fingerprint: b.engine.Fingerprint(),
			Filename:    filepath.Base(path),
			Export:      res.Export,
			Escalation:  string(res.Escalation.Outcome),
		})
		if err != nil {
			b.log.Warn("cache write failed", "path", path, "error", err)
		}
	}
	return r
}

func (b *batch) write(r batchResult) error {
	if b.tree {
		RenderTree(b.out, r.path, r.export, r.cached)
	}
	if b.outDir != "" {
		dst := filepath.Join(b.outDir, r.name)
		f, err := os.Create(dst)
		if err != nil {
			return err
		}
		if err := r.export.Encode(f); err != nil {
			f.Close()
			return err
		}
		return f.Close()
	}
	if b.tree {
		return nil
	}
	return r.export.Encode(b.out)
}

// outputNames picks one output file name per input. Inputs sharing a stem
// keep their extension, and a name that is still taken gets a numeric
// suffix, so no two inputs write the same file.
func outputNames(paths []string) []string {
	stems := map[string]int{}
	for _, p := range paths {
		stems[extract.Stem(p)]++
	}
	used := map[string]bool{}
	names := make([]string, len(paths))
	for i, p := range paths {
		name := extract.Stem(p)
		if stems[name] > 1 {
			name = filepath.Base(p)
		}
		candidate := name
		for n := 2; used[candidate]; n++ {
			candidate = fmt.Sprintf("%s-%d", name, n)
		}
		used[candidate] = true
		names[i] = candidate + ".json"
	}
	return names
}

// collectInputs expands directories into the supported files they contain.
// Files named explicitly are kept even if their extension is unknown, so
// the failure is reported rather than silently skipped.
func collectInputs(args []string) ([]string, error) {
	var out []string
	seen := map[string]bool{}
	add := func(p string) {
		if !seen[p] {
			seen[p] = true
			out = append(out, p)
		}
	}
	for _, arg := range args {
		info, err := os.Stat(arg)
		if err != nil {
			return nil, err
		}
		if !info.IsDir() {
			add(arg)
			continue
		}
		var found []string
		err = filepath.WalkDir(arg, func(p string, d fs.DirEntry, err error) error {
			if err != nil {
				return err
			}
			if !d.IsDir() && extract.IsSupportedExtension(p) {
				found = append(found, p)
			}
			return nil
		})
		if err != nil {
			return nil, err
		}
		sort.Strings(found)
		for _, p := range found {
			add(p)
		}
	}
	return out, nil
}
