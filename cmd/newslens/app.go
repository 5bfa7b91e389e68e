package main

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"

	"newslens/internal/chunker"
	"newslens/internal/config"
	"newslens/internal/domain"
	"newslens/internal/embedding/hashing"
	embopenai "newslens/internal/embedding/openai"
	llmopenai "newslens/internal/llm/openai"
	"newslens/internal/loader"
	"newslens/internal/service"
	"newslens/internal/synth"
	"newslens/internal/vectorstore"
	"newslens/internal/vectorstore/memory"
	"newslens/internal/vectorstore/qdrant"
)

// app is the assembled pipeline plus whatever must be closed on exit.
type app struct {
	ctrl    *service.Controller
	closers []func()
}

func (a *app) Close() {
	for i := len(a.closers) - 1; i >= 0; i-- {
		a.closers[i]()
	}
}

func buildApp(ctx context.Context, cfg *config.AppConfig, secrets config.Secrets, logger *zap.Logger) (*app, error) {
	a := &app{}

	var emb domain.Embedder
	switch cfg.Embedder.Type {
	case "hashing":
		emb = hashing.NewEmbedder(cfg.Embedder.Hashing.Dimension)
	case "openai":
		client, err := embopenai.NewClient(embopenai.Config{
			APIKey:    secrets.OpenAIAPIKey,
			BaseURL:   cfg.Embedder.OpenAI.BaseURL,
			Model:     cfg.Embedder.OpenAI.Model,
			Dimension: cfg.Index.Dimension,
			Timeout:   time.Duration(cfg.Embedder.OpenAI.TimeoutSecs) * time.Second,
			BatchSize: cfg.Embedder.OpenAI.BatchSize,
		}, logger)
		if err != nil {
			return nil, fmt.Errorf("openai embedder init failed: %w", err)
		}
		emb = client
	default:
		return nil, fmt.Errorf("%w: unknown embedder: %s", domain.ErrConfig, cfg.Embedder.Type)
	}

	ch := chunker.NewRecursive(
		chunker.WithMaxChars(cfg.Chunker.MaxChars),
		chunker.WithSeparators(cfg.Chunker.Separators),
	)

	ld := loader.NewWeb(loader.Config{
		Timeout:   time.Duration(cfg.Loader.TimeoutSecs) * time.Second,
		MaxBytes:  cfg.Loader.MaxBytes,
		UserAgent: cfg.Loader.UserAgent,
	}, logger)

	var provider vectorstore.Provider
	switch cfg.Index.Type {
	case "memory":
		provider = memory.NewProvider(
			memory.WithProvisionDelay(time.Duration(cfg.Index.Memory.ProvisionDelayMs) * time.Millisecond),
		)
	case "qdrant":
		q := cfg.Index.Qdrant
		p, err := qdrant.NewProvider(ctx, qdrant.Config{
			Host:    q.Host,
			Port:    q.Port,
			APIKey:  secrets.IndexAPIKey,
			UseTLS:  q.UseTLS,
			Cloud:   q.Cloud,
			Region:  q.Region,
			Timeout: time.Duration(q.TimeoutSecs) * time.Second,
		}, logger)
		if err != nil {
			return nil, fmt.Errorf("qdrant init failed: %w", err)
		}
		a.closers = append(a.closers, func() { _ = p.Close() })
		provider = p
	default:
		return nil, fmt.Errorf("%w: unknown index: %s", domain.ErrConfig, cfg.Index.Type)
	}
	manager := vectorstore.NewManager(provider, vectorstore.Options{
		ReadyTimeout:    cfg.ReadyTimeout(),
		PollInterval:    cfg.PollInterval(),
		UpsertBatchSize: cfg.Index.UpsertBatchSize,
	}, logger)

	var syn domain.Synthesizer
	switch cfg.Synthesizer.Type {
	case "extractive":
		syn = synth.NewExtractive(cfg.Synthesizer.MaxSentences)
	case "openai":
		completer, err := llmopenai.NewCompleter(llmopenai.Config{
			APIKey:  secrets.OpenAIAPIKey,
			BaseURL: cfg.Synthesizer.BaseURL,
			Model:   cfg.Synthesizer.Model,
			Timeout: time.Duration(cfg.Synthesizer.TimeoutSecs) * time.Second,
		}, logger)
		if err != nil {
			a.Close()
			return nil, fmt.Errorf("openai synthesizer init failed: %w", err)
		}
		syn = synth.NewLLM(completer,
			synth.WithMaxTokens(cfg.Synthesizer.MaxTokens),
			synth.WithTemperature(*cfg.Synthesizer.Temperature),
			synth.WithLogger(logger),
		)
	default:
		a.Close()
		return nil, fmt.Errorf("%w: unknown synthesizer: %s", domain.ErrConfig, cfg.Synthesizer.Type)
	}

	a.ctrl = service.NewController(ld, ch, emb, manager, syn, service.Options{
		Index: cfg.IndexSpec(),
		TopK:  cfg.Retrieval.TopK,
	}, logger)
	return a, nil
}
