package main

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"github.com/amanzav/geese/internal/config"
	"github.com/amanzav/geese/internal/embedding"
	"github.com/amanzav/geese/internal/filter"
	"github.com/amanzav/geese/internal/lexicon"
	"github.com/amanzav/geese/internal/llm"
	"github.com/amanzav/geese/internal/matcher"
	"github.com/amanzav/geese/internal/pipeline"
	"github.com/amanzav/geese/internal/portal"
	"github.com/amanzav/geese/internal/render"
	"github.com/amanzav/geese/internal/resume"
	"github.com/amanzav/geese/internal/store"
)

// app holds one command invocation's wired components. Built top-down from
// the config so every constructor failure surfaces before side effects.
type app struct {
	cfg      *config.Config
	store    *store.Store
	index    *resume.Index
	cache    *matcher.Cache
	filter   *filter.Filter
	pipeline *pipeline.Pipeline
}

type appOptions struct {
	withPortal  bool
	withLetters bool
}

// buildApp wires the store, matcher stack and pipeline. The portal session
// and letter stack are attached only for commands that need them.
func buildApp(ctx context.Context, opts appOptions) (*app, error) {
	cfg, err := config.Load(cfgPath)
	if err != nil {
		return nil, err
	}
	if flagMinScore >= 0 {
		cfg.Matcher.MinMatchScore = flagMinScore
	}
	if flagFolder != "" {
		cfg.Portal.Folder = flagFolder
	}
	if flagMaxItems > 0 {
		cfg.MaxItems = flagMaxItems
	}

	st, err := store.Open(cfg.Paths.DatabasePath, logger)
	if err != nil {
		return nil, err
	}

	engine, err := embedding.NewEngine(embedding.Config{
		Provider:       cfg.Embedding.Provider,
		OllamaEndpoint: cfg.Embedding.OllamaEndpoint,
		OllamaModel:    cfg.Embedding.OllamaModel,
		GenAIAPIKey:    config.GenAIAPIKey(),
		GenAIModel:     cfg.Embedding.GenAIModel,
	}, logger)
	if err != nil {
		st.Close()
		return nil, err
	}

	provider, err := embedding.NewProvider(engine, cfg.Embedding.ModelID)
	if err != nil {
		st.Close()
		return nil, err
	}

	lex, err := lexicon.Load(cfg.Paths.TechLexiconPath)
	if err != nil {
		st.Close()
		return nil, err
	}

	skip, err := matcher.LoadSkipList(cfg.Paths.NoiseSkipPhrasesPath)
	if err != nil {
		st.Close()
		return nil, err
	}

	index, err := resume.LoadOrBuild(ctx, cfg.Paths.ResumePath, cfg.Paths.ResumeIndexDir, provider, logger)
	if err != nil {
		st.Close()
		return nil, fmt.Errorf("resume index: %w", err)
	}

	m := matcher.New(provider, index, lex, skip, cfg.Matcher, logger)
	cache := matcher.NewCache(st, m)
	f := filter.New(cfg.Matcher, cfg.Filters)

	var session portal.Session
	if opts.withPortal {
		username, password, err := config.PortalCredentials()
		if err != nil {
			st.Close()
			return nil, fmt.Errorf("%w: %v", portal.ErrAuth, err)
		}
		session, err = portal.NewRodSession(cfg.Portal, username, password, logger)
		if err != nil {
			st.Close()
			return nil, err
		}
	}

	// The assistant rides along whenever a key is configured: scrape paths
	// use it to normalize compensation. Letters additionally require it.
	var assist llm.Assistant
	var renderer render.Renderer
	apiKey := config.GenAIAPIKey()
	if opts.withLetters && apiKey == "" {
		st.Close()
		return nil, fmt.Errorf("letter generation needs GEMINI_API_KEY or GOOGLE_API_KEY")
	}
	if apiKey != "" {
		assist, err = llm.NewGenAIAssistant(apiKey, cfg.LLM.Model, cfg.LLM.MaxTokens, logger)
		if err != nil {
			st.Close()
			return nil, err
		}
	}
	if opts.withLetters {
		renderer, err = render.NewPDFRenderer(cfg.Paths.CoverLetterDir, logger)
		if err != nil {
			st.Close()
			return nil, err
		}
	}

	return &app{
		cfg:      cfg,
		store:    st,
		index:    index,
		cache:    cache,
		filter:   f,
		pipeline: pipeline.New(cfg, st, cache, f, session, assist, renderer, logger),
	}, nil
}

// close releases everything the app holds. The portal session, when present,
// is closed by the pipeline.
func (a *app) close() {
	a.pipeline.ClosePortal()
	if err := a.store.Close(); err != nil {
		logger.Warn("store close failed", zap.Error(err))
	}
}
