package main

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/gin-contrib/gzip"
	"github.com/gin-gonic/gin"
	"github.com/schollz/progressbar/v3"
	"github.com/xxxsen/common/logutil"
	"github.com/xxxsen/common/webapi"
	"go.uber.org/zap"

	"github.com/xxxsen/docqa/internal/ai"
	"github.com/xxxsen/docqa/internal/answer"
	"github.com/xxxsen/docqa/internal/chunker"
	"github.com/xxxsen/docqa/internal/config"
	"github.com/xxxsen/docqa/internal/handler"
	"github.com/xxxsen/docqa/internal/ingest"
	"github.com/xxxsen/docqa/internal/job"
	"github.com/xxxsen/docqa/internal/middleware"
	"github.com/xxxsen/docqa/internal/schedule"
	"github.com/xxxsen/docqa/internal/service"
	"github.com/xxxsen/docqa/internal/watch"
)

type app struct {
	cfg *config.Config
	svc *service.RetrievalService
}

func newApp(cfg *config.Config) (*app, error) {
	source, err := ingest.New(cfg.Source)
	if err != nil {
		return nil, fmt.Errorf("init source: %w", err)
	}
	apiKey := cfg.LLM.ResolvedAPIKey()
	var provider ai.IProvider
	if cfg.LLM.Enabled && apiKey != "" {
		provider, err = ai.NewProvider(cfg.LLM.Provider, &ai.ProviderConfig{APIKey: apiKey, APIURL: cfg.LLM.APIURL})
		if err != nil {
			return nil, fmt.Errorf("init llm provider: %w", err)
		}
	} else if cfg.LLM.Enabled {
		logutil.GetLogger(context.Background()).Warn("llm enabled without api key, answers use local extraction",
			zap.String("api_key_env", cfg.LLM.APIKeyEnv))
	}
	synth := answer.New(answer.Config{
		Enabled:            cfg.LLM.Enabled,
		APIKey:             apiKey,
		Model:              cfg.LLM.Model,
		Temperature:        *cfg.LLM.Temperature,
		MaxTokens:          cfg.LLM.MaxTokens,
		MaxContextSegments: cfg.LLM.MaxContextSegments,
		Timeout:            time.Duration(cfg.LLM.Timeout) * time.Second,
	}, provider)
	svc := service.NewRetrievalService(
		source,
		chunker.NewSentenceChunker(cfg.Chunker.SentencesPerChunk, *cfg.Chunker.OverlapSentences),
		synth,
		service.CacheOptions{Size: cfg.Cache.Size, TTL: time.Duration(cfg.Cache.TTLSeconds) * time.Second},
	)
	return &app{cfg: cfg, svc: svc}, nil
}

func reloadWithBar(ctx context.Context, svc *service.RetrievalService) (*service.ReloadResult, error) {
	var bar *progressbar.ProgressBar
	res, err := svc.ReloadWithProgress(ctx, func(done, total int) {
		if bar == nil {
			bar = progressbar.NewOptions(total,
				progressbar.OptionEnableColorCodes(true),
				progressbar.OptionShowBytes(false),
				progressbar.OptionSetWidth(40),
				progressbar.OptionShowCount(),
				progressbar.OptionSetDescription("[cyan]Loading documents[reset]"),
				progressbar.OptionSetTheme(progressbar.Theme{
					Saucer:        "[green]=[reset]",
					SaucerHead:    "[green]>[reset]",
					SaucerPadding: " ",
					BarStart:      "[",
					BarEnd:        "]",
				}),
			)
		}
		_ = bar.Set(done)
	})
	if bar != nil {
		_ = bar.Finish()
		fmt.Println()
	}
	return res, err
}

func runServer(runCtx context.Context, cfg *config.Config) error {
	ctx := context.Background()
	logger := logutil.GetLogger(ctx)
	logger.Info("starting server",
		zap.Int("port", cfg.Port),
		zap.String("source", cfg.Source.Type),
		zap.Bool("llm_enabled", cfg.LLM.Enabled),
	)
	a, err := newApp(cfg)
	if err != nil {
		return err
	}
	if *cfg.Reload.OnStart {
		if _, err := a.svc.Reload(ctx); err != nil {
			logger.Error("initial reload failed, serving empty store", zap.Error(err))
		}
	}

	if cfg.Reload.Cron != "" {
		scheduler := schedule.NewCronScheduler()
		reloadJob := job.NewReloadJob("document_reload", job.ReloadFunc(func(ctx context.Context) (job.ReloadSummary, error) {
			res, err := a.svc.Reload(ctx)
			if err != nil {
				return job.ReloadSummary{}, err
			}
			return job.ReloadSummary{Generation: res.Generation, Chunks: res.ChunkCount}, nil
		}))
		if err := scheduler.AddJob(reloadJob, cfg.Reload.Cron); err != nil {
			return fmt.Errorf("schedule reload: %w", err)
		}
		scheduler.Start(runCtx)
		defer scheduler.Stop()
	}
	if cfg.Reload.Watch {
		if local, ok := a.svc.Source().(*ingest.LocalSource); ok {
			w := watch.New(local.Dir(), time.Duration(cfg.Reload.DebounceMS)*time.Millisecond, func(ctx context.Context) {
				if _, err := a.svc.Reload(ctx); err != nil {
					logutil.GetLogger(ctx).Error("watch reload failed", zap.Error(err))
				}
			})
			go func() {
				if err := w.Run(runCtx); err != nil {
					logutil.GetLogger(runCtx).Error("watcher stopped", zap.Error(err))
				}
			}()
		}
	}

	deps := handler.RouterDeps{
		QA:            handler.NewQAHandler(a.svc),
		ChatRateLimit: time.Duration(cfg.RateLimit.ChatIntervalMS) * time.Millisecond,
	}
	addr := fmt.Sprintf("0.0.0.0:%d", cfg.Port)
	engine, err := webapi.NewEngine(
		"/api/v1",
		addr,
		webapi.WithRegister(func(group *gin.RouterGroup) {
			handler.RegisterRoutes(group, deps)
		}),
		webapi.WithExtraMiddlewares(
			middleware.RequestID(),
			middleware.CORS(cfg.CORS.AllowOrigins),
			gzip.Gzip(gzip.DefaultCompression),
		),
	)
	if err != nil {
		return fmt.Errorf("init web engine: %w", err)
	}
	logger.Info("http server listening", zap.String("addr", addr))

	go func() {
		if err := engine.Run(); err != nil && err != http.ErrServerClosed {
			logger.Error("server error", zap.Error(err))
		}
	}()

	<-runCtx.Done()
	logger.Info("server stopping...")
	return nil
}
