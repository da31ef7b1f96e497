package commands

import (
	"context"
	"errors"
	"fmt"

	"github.com/jmylchreest/cvparse/internal/config"
	"github.com/jmylchreest/cvparse/internal/dedup"
	"github.com/jmylchreest/cvparse/internal/logger"
	"github.com/jmylchreest/cvparse/internal/storage"
	"github.com/jmylchreest/cvparse/pkg/cleaner"
	"github.com/jmylchreest/cvparse/pkg/document"
	"github.com/jmylchreest/cvparse/pkg/extractor"
	"github.com/jmylchreest/cvparse/pkg/llm"
	"github.com/jmylchreest/cvparse/pkg/parser"
	"github.com/jmylchreest/cvparse/pkg/pipeline"
	"github.com/jmylchreest/cvparse/pkg/schema"
	"github.com/jmylchreest/cvparse/pkg/scoring"
)

// buildExtractorChain creates the provider fallback chain. The preferred
// provider is --provider, or the first one with credentials. --model, --api-key
// and --base-url apply to the preferred provider only.
func buildExtractorChain(cfg *config.Config) (*extractor.FallbackExtractor, error) {
	maxContent, err := cfg.MaxContentBytes()
	if err != nil {
		return nil, err
	}
	preferred := cfg.Provider
	if preferred == "" {
		preferred = llm.DetectProvider()
		logger.Debug("auto-detected provider", "provider", preferred)
	}
	observer := llm.NewLogObserver()

	ext, err := extractor.BuildChain(extractor.ChainOptions{
		Preferred: preferred,
		Order:     cfg.FallbackOrder,
		Settings: func(name string) extractor.LLMConfig {
			pc := cfg.ProviderSettings(name)
			lc := extractor.LLMConfig{
				Model:          pc.Model,
				BaseURL:        pc.BaseURL,
				Temperature:    pc.Temperature,
				MaxTokens:      pc.MaxTokens,
				MaxRetries:     cfg.Extraction.MaxRetries,
				MaxContentSize: maxContent,
				Timeout:        cfg.Extraction.Timeout,
				Observer:       observer,
			}
			if name == "vertex" {
				lc.Project = cfg.Vertex.Project
				lc.Location = cfg.Vertex.Location
			}
			if name == preferred {
				if cfg.Model != "" {
					lc.Model = cfg.Model
				}
				if cfg.APIKey != "" {
					lc.APIKey = cfg.APIKey
				}
				if cfg.BaseURL != "" {
					lc.BaseURL = cfg.BaseURL
				}
			}
			return lc
		},
	})
	if err != nil {
		return nil, err
	}
	logger.Debug("extractor chain built", "chain", ext.Name())
	return ext, nil
}

// buildParser wraps the extractor chain with the CV schema, or the schema file
// from extraction.schema_file.
func buildParser(cfg *config.Config) (*parser.Parser, *extractor.FallbackExtractor, error) {
	ext, err := buildExtractorChain(cfg)
	if err != nil {
		return nil, nil, err
	}
	var opts []parser.Option
	if path := cfg.Extraction.SchemaFile; path != "" {
		s, err := schema.FromFile(path)
		if err != nil {
			_ = ext.Close()
			return nil, nil, fmt.Errorf("load schema: %w", err)
		}
		opts = append(opts, parser.WithSchema(s))
	}
	return parser.New(ext, opts...), ext, nil
}

func buildLoader(cfg *config.Config) *document.Loader {
	var opts []document.LoaderOption
	if cfg.OCR.TikaURL != "" {
		opts = append(opts, document.WithOCR(document.NewTikaOCR(cfg.OCR.TikaURL, cfg.OCR.Timeout)))
	}
	return document.NewLoader(opts...)
}

func buildRegistry(ctx context.Context, cfg *config.Config) (dedup.Registry, error) {
	switch cfg.Dedup.Backend {
	case "redis":
		return dedup.NewRedis(ctx, dedup.RedisOptions{
			Addr:      cfg.Dedup.RedisAddr,
			Password:  cfg.Dedup.Password,
			DB:        cfg.Dedup.DB,
			KeyPrefix: cfg.Dedup.KeyPrefix,
			TTL:       cfg.Dedup.TTL,
		})
	default:
		return dedup.NewMemory(), nil
	}
}

// buildStore writes locally and, when enabled, mirrors to MinIO.
func buildStore(ctx context.Context, cfg *config.Config) (storage.Store, error) {
	local := storage.NewLocal(cfg.DataDir)
	mc := cfg.Storage.MinIO
	if !mc.Enabled {
		return local, nil
	}
	mirror, err := storage.NewMinIO(ctx, storage.MinIOOptions{
		Endpoint:  mc.Endpoint,
		AccessKey: mc.AccessKey,
		SecretKey: mc.SecretKey,
		Bucket:    mc.Bucket,
		Prefix:    mc.Prefix,
		UseSSL:    mc.UseSSL,
	})
	if err != nil {
		return nil, err
	}
	logger.Info("mirroring artifacts", "store", mirror.Name())
	return storage.NewMulti(local, mirror), nil
}

// resources collects what a command must release on exit.
type resources struct {
	closers []func() error
}

func (r *resources) add(fn func() error) {
	r.closers = append(r.closers, fn)
}

func (r *resources) Close() {
	var errs []error
	for i := len(r.closers) - 1; i >= 0; i-- {
		errs = append(errs, r.closers[i]())
	}
	if err := errors.Join(errs...); err != nil {
		logger.Warn("releasing resources", "error", err)
	}
}

// buildPipeline wires the pipeline for cfg. A nil parser stops documents after
// the handling stage.
func buildPipeline(ctx context.Context, cfg *config.Config, p *parser.Parser, res *resources) (*pipeline.Pipeline, error) {
	registry, err := buildRegistry(ctx, cfg)
	if err != nil {
		return nil, err
	}
	res.add(registry.Close)

	store, err := buildStore(ctx, cfg)
	if err != nil {
		return nil, err
	}

	var handler cleaner.Cleaner
	if cfg.Pipeline.SkipHandling {
		handler = cleaner.NewNoop()
	}

	return pipeline.New(pipeline.Options{
		Layout:      pipeline.NewLayout(cfg.DataDir),
		Handler:     handler,
		Loader:      buildLoader(cfg),
		Registry:    registry,
		Store:       store,
		Parser:      p,
		Concurrency: cfg.Pipeline.Concurrency,
		Resume:      cfg.Pipeline.Resume,
	})
}

// buildAggregator loads the rubric and mappings, applying --target-domain.
func buildAggregator(cfg *config.Config) (*scoring.Aggregator, error) {
	rubric, err := scoring.LoadConfig(cfg.Scoring.ConfigFile)
	if err != nil {
		return nil, err
	}
	if cfg.Scoring.TargetDomain != "" {
		rubric = rubric.WithTargetDomain(cfg.Scoring.TargetDomain)
	}
	mappings, err := scoring.LoadMappings(cfg.Scoring.MappingsDir)
	if err != nil {
		return nil, err
	}
	return scoring.NewAggregator(rubric, mappings), nil
}
