package main

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/pickpal/pickpal/internal/aspect"
	"github.com/pickpal/pickpal/internal/clarify"
	"github.com/pickpal/pickpal/internal/config"
	"github.com/pickpal/pickpal/internal/discovery"
	"github.com/pickpal/pickpal/internal/normalize"
	"github.com/pickpal/pickpal/internal/planner"
	"github.com/pickpal/pickpal/internal/rank"
	"github.com/pickpal/pickpal/internal/sentiment"
	"github.com/pickpal/pickpal/internal/source"
	"github.com/pickpal/pickpal/internal/store"
	"github.com/pickpal/pickpal/internal/verify"
	"github.com/pickpal/pickpal/pkg/anthropic"
	"github.com/pickpal/pickpal/pkg/gemini"
)

// app bundles the wired pipeline for one process.
type app struct {
	Planner *planner.Planner
	Store   store.Store
}

func (a *app) Close() {
	if err := a.Store.Close(); err != nil {
		zap.L().Warn("store close failed", zap.Error(err))
	}
}

// initApp builds every pipeline component from config. channel may be nil
// to disable interactive clarification (the serve command does this).
func initApp(ctx context.Context, channel clarify.Channel) (*app, error) {
	st, err := openStore(ctx, cfg.Store)
	if err != nil {
		return nil, err
	}

	registry, err := buildSources(ctx)
	if err != nil {
		st.Close()
		return nil, err
	}

	vocab := aspect.Default()
	if path := cfg.Normalize.AspectVocabPath; path != "" {
		if err := vocab.LoadFile(path); err != nil {
			st.Close()
			return nil, err
		}
	}

	p := planner.New(
		clarify.New(registry, cfg.Clarify),
		channel,
		discovery.New(registry, cfg.Discovery, cfg.Pipeline.MinCandidates, cfg.Normalize.DedupeThreshold),
		normalize.New(vocab, cfg.Normalize),
		rank.New(buildScorer(), vocab, cfg.Rank),
		verify.New(),
		st,
		cfg.Pipeline,
		cfg.Clarify,
	)

	return &app{Planner: p, Store: st}, nil
}

func openStore(ctx context.Context, sc config.StoreConfig) (store.Store, error) {
	var (
		st  store.Store
		err error
	)
	switch sc.Driver {
	case "memory", "":
		st = store.NewMemory()
	case "sqlite":
		st, err = store.NewSQLite(sc.DatabaseURL)
	case "postgres":
		st, err = store.NewPostgres(ctx, sc.DatabaseURL)
	default:
		return nil, eris.Errorf("unknown store driver %q", sc.Driver)
	}
	if err != nil {
		return nil, err
	}
	if err := st.Migrate(ctx); err != nil {
		st.Close()
		return nil, err
	}
	return st, nil
}

func buildSources(ctx context.Context) (*source.Registry, error) {
	registry := source.NewRegistry()

	if cfg.Sources.Fixture.Enabled && len(cfg.Sources.Fixture.Paths) > 0 {
		fixture, err := source.NewFixture(cfg.Sources.Fixture.Paths...)
		if err != nil {
			return nil, err
		}
		registry.Register(fixture)
	}
	if cfg.Sources.Catalog.Enabled {
		catalog, err := source.NewCatalog(cfg.Sources.Catalog.Path)
		if err != nil {
			return nil, err
		}
		registry.Register(catalog)
	}
	if cfg.Sources.Gemini.Enabled {
		if cfg.Gemini.Key == "" {
			return nil, eris.New("gemini source enabled but gemini.key is unset")
		}
		client, err := gemini.NewClient(ctx, cfg.Gemini.Key, cfg.Gemini.Model)
		if err != nil {
			return nil, err
		}
		registry.Register(source.NewRateLimited(
			source.NewGemini(client),
			cfg.Sources.Gemini.RPS,
			cfg.Sources.Gemini.Burst,
		))
	}

	if registry.Len() == 0 {
		return nil, eris.New("no candidate sources enabled; set sources.fixture.paths or enable another source")
	}
	return registry, nil
}

// buildScorer prefers Claude-backed sentiment when a key is configured and
// falls back to the deterministic lexicon scorer otherwise.
func buildScorer() sentiment.Scorer {
	if cfg.Anthropic.Key != "" {
		return sentiment.NewClaude(anthropic.NewClient(cfg.Anthropic.Key), cfg.Anthropic.Model)
	}
	zap.L().Info("anthropic.key unset, using lexicon sentiment scorer")
	return sentiment.NewLexicon()
}

func printJSON(v any) {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		fmt.Printf("marshal output: %v\n", err)
		return
	}
	fmt.Println(string(data))
}
