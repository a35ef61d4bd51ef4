package main

import (
	"context"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/edustack/doubtsolver/internal/answer"
	"github.com/edustack/doubtsolver/internal/concepts"
	"github.com/edustack/doubtsolver/internal/embed"
	"github.com/edustack/doubtsolver/internal/gamify"
	"github.com/edustack/doubtsolver/internal/genai"
	"github.com/edustack/doubtsolver/internal/ingest"
	"github.com/edustack/doubtsolver/internal/ocr"
	"github.com/edustack/doubtsolver/internal/raster"
	"github.com/edustack/doubtsolver/internal/retriever"
	"github.com/edustack/doubtsolver/internal/storage"
	"github.com/edustack/doubtsolver/internal/store"
	"github.com/edustack/doubtsolver/internal/vector"
	"github.com/edustack/doubtsolver/pkg/anthropic"
)

// pipelineEnv holds the wired pipeline components shared by commands.
type pipelineEnv struct {
	Store    store.Store
	Embedder embed.Provider
	Index    vector.Index
	Ingester *ingest.Orchestrator
	Answerer *answer.Orchestrator
}

// initEnv constructs every pipeline component from config.
func initEnv(ctx context.Context) (*pipelineEnv, error) {
	st, err := store.New(ctx, cfg.Store)
	if err != nil {
		return nil, eris.Wrap(err, "init store")
	}

	uploader, err := storage.NewClient(cfg.Storage)
	if err != nil {
		st.Close()
		return nil, eris.Wrap(err, "init storage")
	}

	extractor, err := ocr.NewExtractor(cfg.OCR)
	if err != nil {
		st.Close()
		return nil, eris.Wrap(err, "init ocr")
	}

	tagger, err := concepts.New(cfg.Concepts)
	if err != nil {
		st.Close()
		return nil, eris.Wrap(err, "init concepts")
	}

	embedder, err := embed.NewProvider(cfg.Embedding)
	if err != nil {
		st.Close()
		return nil, eris.Wrap(err, "init embedding")
	}

	index, err := vector.NewIndex(cfg.Vector, embedder.Dimension())
	if err != nil {
		st.Close()
		return nil, eris.Wrap(err, "init vector index")
	}
	if initer, ok := index.(vector.Initializer); ok {
		if err := initer.Init(ctx, embedder.Dimension()); err != nil {
			st.Close()
			return nil, eris.Wrap(err, "init vector collection")
		}
	}

	rasterizer := raster.NewPoppler(cfg.Raster)
	ingester := ingest.New(st, uploader, extractor, rasterizer, tagger, index, cfg.Raster.DPI)

	backend := genai.NewChain(anthropic.NewClient(cfg.Anthropic.Key), cfg.Anthropic)
	retr := retriever.New(embedder, index, cfg.Retriever.TopK, cfg.Retriever.ScoreFloor)
	tracker := gamify.NewTracker(cfg.Gamify)
	answerer := answer.New(retr, backend, st, tracker)

	return &pipelineEnv{
		Store:    st,
		Embedder: embedder,
		Index:    index,
		Ingester: ingester,
		Answerer: answerer,
	}, nil
}

// Close releases held resources.
func (e *pipelineEnv) Close() {
	if err := e.Store.Close(); err != nil {
		zap.L().Warn("store close", zap.Error(err))
	}
}
