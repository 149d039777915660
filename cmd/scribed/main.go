// Command scribed runs the media transcription orchestration service.
package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/skillsenselab/scribe/internal/api"
	"github.com/skillsenselab/scribe/internal/chunk"
	"github.com/skillsenselab/scribe/internal/config"
	"github.com/skillsenselab/scribe/internal/correct"
	"github.com/skillsenselab/scribe/internal/correlate"
	"github.com/skillsenselab/scribe/internal/keyterms"
	"github.com/skillsenselab/scribe/internal/llm"
	llmgemini "github.com/skillsenselab/scribe/internal/llm/gemini"
	"github.com/skillsenselab/scribe/internal/logger"
	"github.com/skillsenselab/scribe/internal/media"
	"github.com/skillsenselab/scribe/internal/observability"
	"github.com/skillsenselab/scribe/internal/orchestrate"
	"github.com/skillsenselab/scribe/internal/resilience"
	"github.com/skillsenselab/scribe/internal/server"
	"github.com/skillsenselab/scribe/internal/server/middleware"
	"github.com/skillsenselab/scribe/internal/transcription"
	"github.com/skillsenselab/scribe/internal/transcription/clova"
	"github.com/skillsenselab/scribe/internal/transcription/gemini"
	"github.com/skillsenselab/scribe/internal/transcription/whisper"
)

func main() {
	configFile := flag.String("config", "", "path to config file")
	flag.Parse()

	if err := run(*configFile); err != nil {
		fmt.Fprintf(os.Stderr, "scribed: %v\n", err)
		os.Exit(1)
	}
}

func run(configFile string) error {
	cfg, err := config.Load(configFile)
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}

	logger.Init(cfg.Logging)
	log := logger.New(&cfg.Logging, cfg.Base.Name)
	log.Info("starting", logger.Fields(
		"environment", cfg.Base.Environment,
		"version", cfg.Base.Version,
		"engines", cfg.Engines.Enabled,
	))

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	tracerProvider, err := observability.InitTracer(ctx, cfg.Tracing)
	if err != nil {
		return fmt.Errorf("init tracer: %w", err)
	}
	if tracerProvider != nil {
		defer func() {
			shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			if err := tracerProvider.Shutdown(shutdownCtx); err != nil {
				log.Warn("tracer shutdown failed", logger.ErrorFields("shutdown tracer", err))
			}
		}()
	}

	llmClient := llmgemini.NewClient(llmgemini.Config{
		BaseURL:     cfg.LLM.BaseURL,
		APIKey:      cfg.LLM.APIKey,
		Model:       cfg.LLM.Model,
		Temperature: cfg.LLM.Temperature,
	})

	correlator := correlate.NewRegistry(cfg.Callback.Window(), log)
	correlator.StartReaper(ctx, cfg.Callback.ReaperInterval())

	registry := transcription.NewRegistry()
	registerEngineFactories(registry, cfg, llmClient, correlator, log)

	pipelines, err := buildPipelines(registry, cfg, llmClient, log)
	if err != nil {
		return err
	}
	orchestrator := orchestrate.NewOrchestrator(pipelines, log)

	var normalizer media.Normalizer = media.NopNormalizer{}
	if cfg.Media.NormalizerURL != "" {
		normalizer = media.NewSidecarNormalizer(media.SidecarNormalizerConfig{
			BaseURL: cfg.Media.NormalizerURL,
		})
	}
	fetcher := media.NewFetcher(cfg.Media.MaxUploadBytes)

	srv := server.New(cfg.Server, log)
	engine := srv.GinEngine()
	engine.Use(middleware.RequestID())
	engine.Use(middleware.Recovery(log))
	engine.Use(middleware.RequestLogger(log))

	handler := api.NewHandler(orchestrator, fetcher, normalizer, correlator, cfg, log)
	handler.RegisterRoutes(engine)

	if err := srv.Start(ctx); err != nil {
		return fmt.Errorf("start server: %w", err)
	}
	log.Info("ready", logger.Fields("host", cfg.Server.Host, "port", cfg.Server.Port))

	<-ctx.Done()
	log.Info("shutting down")

	stopCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()
	if err := srv.Stop(stopCtx); err != nil {
		return fmt.Errorf("stop server: %w", err)
	}
	return nil
}

// registerEngineFactories wires the engine adapters into the provider
// registry. Factories defer construction until an engine is enabled.
func registerEngineFactories(registry *transcription.Registry, cfg *config.Config,
	llmClient llm.Client, correlator *correlate.Registry, log *logger.Logger) {

	registry.RegisterFactory(clova.ProviderName, func(map[string]any) (transcription.Provider, error) {
		return clova.NewProvider(clova.Config{
			InvokeURL:   cfg.Engines.Clova.InvokeURL,
			SecretKey:   cfg.Engines.Clova.SecretKey,
			CallbackURL: cfg.Engines.Clova.CallbackURL,
			Timeout:     cfg.Callback.Window(),
		}, correlator), nil
	})
	registry.RegisterFactory(gemini.ProviderName, func(map[string]any) (transcription.Provider, error) {
		return gemini.NewProvider(llmClient), nil
	})
	registry.RegisterFactory(whisper.ProviderName, func(map[string]any) (transcription.Provider, error) {
		var refiner llm.Client
		if cfg.Engines.Whisper.Refine {
			refiner = llmClient
		}
		return whisper.NewProvider(whisper.Config{
			URL:    cfg.Engines.Whisper.URL,
			Model:  cfg.Engines.Whisper.Model,
			Refine: cfg.Engines.Whisper.Refine,
		}, refiner, log), nil
	})
}

// buildPipelines assembles one pipeline per enabled engine, in the
// configured order.
func buildPipelines(registry *transcription.Registry, cfg *config.Config,
	llmClient llm.Client, log *logger.Logger) ([]*orchestrate.Pipeline, error) {

	ffmpeg := media.NewFFmpeg(cfg.Media.TmpDir)
	extractor := keyterms.NewExtractor(llmClient)
	corrector := correct.NewCorrector(llmClient)

	retry := resilience.DefaultRetryConfig()
	retry.MaxAttempts = cfg.Pipeline.RetryAttempts

	pipelineCfg := orchestrate.PipelineConfig{
		Chunking: cfg.Pipeline.Chunking,
		Dispatch: chunk.DispatcherConfig{
			MaxConcurrent: cfg.Pipeline.MaxConcurrentChunks,
			Retry:         retry,
		},
		FlatTrimRunes: cfg.Pipeline.FlatTrimRunes,
	}

	pipelines := make([]*orchestrate.Pipeline, 0, len(cfg.Engines.Enabled))
	for _, name := range cfg.Engines.Enabled {
		provider, err := registry.Create(name, nil)
		if err != nil {
			return nil, fmt.Errorf("create engine %s: %w", name, err)
		}
		pipelines = append(pipelines,
			orchestrate.NewPipeline(provider, ffmpeg, ffmpeg, extractor, corrector, pipelineCfg, log))
	}
	return pipelines, nil
}
