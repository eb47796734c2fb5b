package main

import (
	"context"
	"errors"
	"fmt"
	"io"

	"github.com/tsawler/intelliparse"
	"github.com/tsawler/intelliparse/cache"
	"github.com/tsawler/intelliparse/config"
	"github.com/tsawler/intelliparse/ocr"
	"github.com/tsawler/intelliparse/source"
	"github.com/tsawler/intelliparse/understand"
	"github.com/tsawler/intelliparse/understand/gemini"
	"github.com/tsawler/intelliparse/understand/langchain"
)

// components are the long-lived pieces built from the configuration.
// close releases whatever needs releasing.
type components struct {
	resolver *source.Resolver
	ai       *understand.Adapter
	ocr      ocr.Recognizer
	cache    *cache.Cache[*intelliparse.ExtractionResult]
	closers  []io.Closer
}

func (c *components) close() {
	for _, cl := range c.closers {
		_ = cl.Close()
	}
}

// build wires the resolver, the AI adapter, the OCR engine and the result
// cache. Optional parts that cannot start are logged and left out.
func (a *app) build(ctx context.Context) (*components, error) {
	c := &components{}

	resolver, err := a.resolver()
	if err != nil {
		return nil, err
	}
	c.resolver = resolver

	m, err := a.model(ctx)
	if err != nil {
		return nil, err
	}
	if m != nil {
		if cl, ok := m.(io.Closer); ok {
			c.closers = append(c.closers, cl)
		}
		c.ai = understand.NewAdapter(m,
			understand.WithRateLimit(a.cfg.AI.RateLimit, a.cfg.AI.Burst),
			understand.WithTimeout(a.cfg.AI.Timeout),
			understand.WithMaxAttempts(a.cfg.AI.MaxAttempts),
			understand.WithLogger(a.log),
		)
		a.log.Debug("ai model ready", "model", m.Name())
	}

	if a.cfg.OCR.Enabled {
		client, err := ocr.New()
		switch {
		case errors.Is(err, ocr.ErrOCRNotEnabled):
			a.log.Warn("ocr requested but not compiled in", "error", err)
		case err != nil:
			return nil, fmt.Errorf("start ocr: %w", err)
		default:
			if err := client.SetLanguage(a.cfg.OCR.Languages); err != nil {
				client.Close()
				return nil, fmt.Errorf("ocr languages %q: %w", a.cfg.OCR.Languages, err)
			}
			c.ocr = client
			c.closers = append(c.closers, client)
		}
	}

	if a.cfg.Cache.Size > 0 {
		rc, err := cache.New[*intelliparse.ExtractionResult](a.cfg.Cache.Size)
		if err != nil {
			return nil, err
		}
		c.cache = rc
	}
	return c, nil
}

// resolver enables s3:// inputs when a MinIO endpoint is configured.
func (a *app) resolver() (*source.Resolver, error) {
	if a.cfg.MinIO.Endpoint == "" {
		return source.NewResolver(), nil
	}
	store, err := source.NewS3(source.S3Config{
		Endpoint:  a.cfg.MinIO.Endpoint,
		AccessKey: a.cfg.MinIO.AccessKey,
		SecretKey: a.cfg.MinIO.SecretKey,
		Region:    a.cfg.MinIO.Region,
		UseSSL:    a.cfg.MinIO.UseSSL,
	})
	if err != nil {
		return nil, err
	}
	return source.NewResolver(source.WithObjectStore(store)), nil
}

// model returns the configured AI backend, or nil for provider "none".
func (a *app) model(ctx context.Context) (understand.Model, error) {
	ai := a.cfg.AI
	lc := langchain.Config{
		Model:       ai.Model,
		BaseURL:     ai.BaseURL,
		APIKey:      ai.APIKey,
		Temperature: ai.Temperature,
	}

	var (
		m   understand.Model
		err error
	)
	switch ai.Provider {
	case config.ProviderGemini:
		var client *gemini.Client
		client, err = gemini.New(ctx, ai.APIKey, gemini.WithModel(ai.Model), gemini.WithTemperature(float32(ai.Temperature)))
		if err == nil {
			m = client
		}
	case config.ProviderOllama, config.ProviderOpenAI:
		var client *langchain.Client
		if ai.Provider == config.ProviderOllama {
			client, err = langchain.NewOllama(lc)
		} else {
			client, err = langchain.NewOpenAI(lc)
		}
		if err == nil {
			m = client
		}
	case config.ProviderNone, "":
		return nil, nil
	default:
		return nil, fmt.Errorf("unknown ai provider %q", ai.Provider)
	}
	if err != nil {
		return nil, fmt.Errorf("%s: %w", ai.Provider, err)
	}
	return m, nil
}

// pipelineConfig maps the configuration onto a pipeline. assist turns on
// the AI enrichment stage when a model is available.
func (a *app) pipelineConfig(c *components, assist bool) intelliparse.Config {
	cfg := intelliparse.DefaultConfig()
	cfg.Logger = a.log
	cfg.Concurrency = a.cfg.Extract.Concurrency
	cfg.FileTimeout = a.cfg.Extract.FileTimeout
	cfg.AITimeout = a.cfg.AI.Timeout
	cfg.MaxArchiveDepth = a.cfg.Extract.MaxArchiveDepth
	cfg.Archive = a.cfg.Archive
	cfg.MaxSectionChars = a.cfg.Extract.MaxSectionChars
	cfg.IncludeImageData = a.cfg.Extract.IncludeImageData
	cfg.IncludeNotes = a.cfg.Extract.IncludeNotes
	cfg.OCRMinSide = a.cfg.OCR.MinSide
	cfg.OCR = c.ocr
	cfg.AI = c.ai
	cfg.AIAssist = assist && c.ai != nil
	cfg.Cache = c.cache
	return cfg
}

// inputs converts resolved items into pipeline inputs that load lazily.
func inputs(items []source.Item) []intelliparse.Input {
	out := make([]intelliparse.Input, len(items))
	for i, it := range items {
		out[i] = intelliparse.Input{Name: it.Name, Load: it.Load}
	}
	return out
}
