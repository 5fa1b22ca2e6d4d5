package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"time"

	"github.com/robfig/cron/v3"
	"go.uber.org/fx"
	"go.uber.org/fx/fxevent"

	"github.com/glowagent/omnigate/internal/agentrouter"
	"github.com/glowagent/omnigate/internal/chat"
	"github.com/glowagent/omnigate/internal/config"
	"github.com/glowagent/omnigate/internal/dispatch"
	"github.com/glowagent/omnigate/internal/feed"
	"github.com/glowagent/omnigate/internal/handlers"
	"github.com/glowagent/omnigate/internal/history"
	"github.com/glowagent/omnigate/internal/logger"
	"github.com/glowagent/omnigate/internal/meta"
	"github.com/glowagent/omnigate/internal/orchestrator"
	"github.com/glowagent/omnigate/internal/server"
	"github.com/glowagent/omnigate/internal/ttlcache"
)

// Two independent TTL caches with identical TTLs and no shared namespace:
// one suppresses duplicate webhook deliveries before the queue, the other
// enforces at-most-one-reply inside the serialized worker.
type dedupeCache struct{ *ttlcache.Cache }
type repliedCache struct{ *ttlcache.Cache }

func runServe() {
	fx.New(
		fx.Provide(
			provideConfig,
			provideLogger,
			provideDedupeCache,
			provideRepliedCache,
			provideHistory,
			provideRouter,
			provideFeed,
			provideProvider,
			provideSender,
			provideOrchestrator,
			provideQueue,
			provideServerHandler(provideHealthHandler),
			provideServerHandler(provideFeedHandler),
			provideServerHandler(provideWebhookHandler),
			provideServer,
		),
		fx.Invoke(
			logConfigWarnings,
			startSweep,
			startServer,
		),
		fx.WithLogger(func(log *slog.Logger) fxevent.Logger {
			return &fxevent.SlogLogger{Logger: log.With(slog.String("component", "fx"))}
		}),
	).Run()
}

func provideServerHandler(fn any) any {
	return fx.Annotate(
		fn,
		fx.As(new(server.Handler)),
		fx.ResultTags(`group:"server_handlers"`),
	)
}

func provideConfig() (config.Config, error) {
	cfgPath := os.Getenv("CONFIG_PATH")
	cfg, err := config.Load(cfgPath)
	if err != nil {
		return config.Config{}, fmt.Errorf("load config: %w", err)
	}
	return cfg, nil
}

func provideLogger(cfg config.Config) *slog.Logger {
	logger.Init(cfg.Log.Level, cfg.Log.Format)
	return logger.L
}

func provideDedupeCache(cfg config.Config) dedupeCache {
	return dedupeCache{ttlcache.New(cfg.Pipeline.DedupeTTL())}
}

func provideRepliedCache(cfg config.Config) repliedCache {
	return repliedCache{ttlcache.New(cfg.Pipeline.DedupeTTL())}
}

func provideHistory(cfg config.Config) *history.Store {
	return history.NewStore(cfg.Pipeline.MaxHistoryMessages)
}

func provideRouter() *agentrouter.Router {
	return agentrouter.New(nil)
}

func provideFeed(log *slog.Logger) *feed.Feed {
	return feed.New(log)
}

// provideProvider returns nil when no Gemini key is configured; the
// orchestrator then degrades to canned acknowledgments.
func provideProvider(cfg config.Config) (chat.Provider, error) {
	if cfg.Gemini.APIKey == "" {
		return nil, nil
	}
	provider, err := chat.NewGeminiProvider(cfg.Gemini.APIKey, cfg.Gemini.BaseURL, cfg.Gemini.Model, cfg.Gemini.Timeout())
	if err != nil {
		return nil, fmt.Errorf("gemini provider: %w", err)
	}
	return provider, nil
}

func provideSender(log *slog.Logger, cfg config.Config) *meta.Sender {
	return meta.NewSender(log, cfg.Meta.GraphBaseURL, cfg.Meta.AccessToken, cfg.Meta.PhoneNumberID)
}

func provideOrchestrator(log *slog.Logger, router *agentrouter.Router, hist *history.Store, provider chat.Provider, sender *meta.Sender, f *feed.Feed) *orchestrator.Orchestrator {
	orch := orchestrator.New(log, router, hist, provider, sender)
	orch.SetPublisher(f)
	return orch
}

func provideQueue(log *slog.Logger, cfg config.Config, replied repliedCache, orch *orchestrator.Orchestrator) *dispatch.Queue {
	return dispatch.New(log, replied.Cache, func(ctx context.Context, job dispatch.Job) error {
		_, err := orch.Respond(ctx, job.Event, job.CorrelationID)
		return err
	}, cfg.Pipeline.JobTimeout())
}

func provideHealthHandler() *handlers.HealthHandler {
	return handlers.NewHealthHandler()
}

func provideFeedHandler(log *slog.Logger, f *feed.Feed) *handlers.FeedHandler {
	return handlers.NewFeedHandler(log, f)
}

func provideWebhookHandler(log *slog.Logger, cfg config.Config, dedupe dedupeCache, queue *dispatch.Queue, f *feed.Feed) *handlers.WebhookHandler {
	return handlers.NewWebhookHandler(log, handlers.WebhookConfig{
		VerifyToken:  cfg.Meta.VerifyToken,
		AppSecret:    cfg.Meta.AppSecret,
		ReplayWindow: cfg.Pipeline.ReplayWindow(),
	}, dedupe.Cache, queue, f)
}

type serverParams struct {
	fx.In
	Logger   *slog.Logger
	Config   config.Config
	Handlers []server.Handler `group:"server_handlers"`
}

func provideServer(p serverParams) *server.Server {
	return server.NewServer(p.Logger, p.Config.Server.Addr, p.Handlers)
}

func logConfigWarnings(log *slog.Logger, cfg config.Config) {
	for _, warning := range cfg.Warnings() {
		log.Warn("config_warning", slog.String("warning", warning))
	}
}

// startSweep schedules the optional periodic TTL-cache sweep. Disabled by
// default; lazy expiry alone satisfies the memory contract for normal
// webhook churn.
func startSweep(lc fx.Lifecycle, log *slog.Logger, cfg config.Config, dedupe dedupeCache, replied repliedCache) error {
	spec := cfg.Pipeline.SweepCron
	if spec == "" {
		return nil
	}

	c := cron.New()
	_, err := c.AddFunc(spec, func() {
		removed := dedupe.Sweep() + replied.Sweep()
		log.Debug("ttl_sweep", slog.Int("removed", removed))
	})
	if err != nil {
		return fmt.Errorf("sweep schedule %q: %w", spec, err)
	}

	lc.Append(fx.Hook{
		OnStart: func(ctx context.Context) error {
			c.Start()
			return nil
		},
		OnStop: func(ctx context.Context) error {
			c.Stop()
			return nil
		},
	})
	return nil
}

func startServer(lc fx.Lifecycle, log *slog.Logger, srv *server.Server, queue *dispatch.Queue, cfg config.Config, shutdowner fx.Shutdowner) {
	lc.Append(fx.Hook{
		OnStart: func(ctx context.Context) error {
			log.Info("gateway_started",
				slog.String("addr", cfg.Server.Addr),
				slog.String("webhook", "/api/webhook"),
				slog.String("healthz", "/healthz"))
			go func() {
				if err := srv.Start(); err != nil && !errors.Is(err, http.ErrServerClosed) {
					log.Error("server failed", slog.Any("error", err))
					_ = shutdowner.Shutdown()
				}
			}()
			return nil
		},
		OnStop: func(ctx context.Context) error {
			// Let the in-flight job and queued work finish before closing;
			// the per-job timeout bounds how long this can take.
			done := make(chan struct{})
			go func() {
				queue.Wait()
				close(done)
			}()
			select {
			case <-done:
			case <-time.After(30 * time.Second):
				log.Warn("queue drain timed out; dropping remaining jobs")
			}
			return srv.Shutdown(ctx)
		},
	})
}
