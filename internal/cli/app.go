package cli

import (
	"fmt"
	"log/slog"
	"time"

	"github.com/dgallion1/docoutline/internal/classifier"
	"github.com/dgallion1/docoutline/internal/config"
	"github.com/dgallion1/docoutline/internal/escalate"
	"github.com/dgallion1/docoutline/internal/layout"
	"github.com/dgallion1/docoutline/internal/pipeline"
	"github.com/dgallion1/docoutline/internal/store"
)

// app is everything a command needs, built once from the configuration.
type app struct {
	cfg    config.Config
	log    *slog.Logger
	engine *pipeline.Engine
	stats  *classifier.Stats
	cache  *store.Store // nil when CACHE_DB is unset

	closers []func()
}

func loadApp() (*app, error) {
	cfg := config.Load()
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	return newApp(cfg, cfg.Logger())
}

func newApp(cfg config.Config, log *slog.Logger) (*app, error) {
	if ocrRegister != nil {
		ocrRegister(cfg.OCRLanguages)
	}

	rules, err := layout.LoadConfig(cfg.RulesFile)
	if err != nil {
		return nil, err
	}
	rules.Normalize.Strict = cfg.StrictContract

	a := &app{cfg: cfg, log: log}

	var ctrl *escalate.Controller
	if c := a.newClassifier(); c != nil {
		a.stats = classifier.NewStats(15 * time.Minute)
		ctrl = &escalate.Controller{
			Classifier: c,
			Timeout:    cfg.ClassifierTimeout,
			MinBudget:  cfg.MinEscalationBudget,
			Stats:      a.stats,
			Log:        log,
		}
	}
	a.engine = pipeline.NewEngine(rules, ctrl, cfg.PageWorkers, cfg.LatencyBudget, log)

	if cfg.CacheDB != "" {
		db, err := store.Open(cfg.CacheDB)
		if err != nil {
			a.Close()
			return nil, fmt.Errorf("open outline cache: %w", err)
		}
		a.cache = db
		a.closers = append(a.closers, func() { db.Close() })
	}

	log.Debug("engine ready",
		"classifier", cfg.Classifier,
		"rules_file", cfg.RulesFile,
		"strict", cfg.StrictContract,
		"cache", cfg.CacheDB,
	)
	return a, nil
}

func (a *app) newClassifier() classifier.Classifier {
	switch a.cfg.Classifier {
	case config.ClassifierHTTP:
		c := classifier.NewHTTPClassifier(a.cfg.ClassifierURL, a.cfg.ClassifierTimeout)
		a.closers = append(a.closers, c.Close)
		return c
	case config.ClassifierClaude:
		c := classifier.NewClaudeClassifier(a.cfg.AnthropicAPIKey, a.cfg.AnthropicModel, "")
		a.closers = append(a.closers, c.Close)
		return c
	}
	return nil
}

// pipelineCache returns the cache as a pipeline.Cache, keeping a missing
// store an untyped nil.
func (a *app) pipelineCache() pipeline.Cache {
	if a.cache == nil {
		return nil
	}
	return a.cache
}

func (a *app) Close() {
	for i := len(a.closers) - 1; i >= 0; i-- {
		a.closers[i]()
	}
	a.closers = nil
}
