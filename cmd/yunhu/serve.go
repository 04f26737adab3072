package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"go.uber.org/fx"
	"go.uber.org/fx/fxevent"

	"github.com/molanp/yunhu-adapter/internal/channel"
	"github.com/molanp/yunhu-adapter/internal/channel/adapters/yunhu"
	"github.com/molanp/yunhu-adapter/internal/config"
	"github.com/molanp/yunhu-adapter/internal/handlers"
	"github.com/molanp/yunhu-adapter/internal/logger"
	"github.com/molanp/yunhu-adapter/internal/metrics"
	"github.com/molanp/yunhu-adapter/internal/server"
	"github.com/molanp/yunhu-adapter/internal/version"
)

const startTimeout = time.Minute

type configPath string

func runServe(path configPath) {
	fx.New(
		fx.Supply(path),
		fx.Provide(
			provideConfig,
			provideLogger,
			provideInboundHandler,
			provideYunhuAdapter,
			provideChannelRegistry,
			provideDispatcher,
			provideInFlightCounter,
			provideConfigLookup,
			provideAuthConfig,
			provideMetrics,
			provideServerHandler(handlers.NewPingHandler),
			provideServerHandler(handlers.NewChannelHandler),
			provideServerHandler(yunhu.NewWebhookHandler),
			provideServerHandler(metricsHandler),
			provideServer,
		),
		fx.Invoke(
			observeDispatcher,
			startYunhuAdapter,
			startServer,
		),
		fx.StartTimeout(startTimeout),
		fx.WithLogger(func(logger *slog.Logger) fxevent.Logger {
			return &fxevent.SlogLogger{Logger: logger.With(slog.String("component", "fx"))}
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

func provideConfig(path configPath) (config.Config, error) {
	cfg, err := config.Load(string(path))
	if err != nil {
		return config.Config{}, fmt.Errorf("load config: %w", err)
	}
	return cfg, nil
}

func provideLogger(cfg config.Config) *slog.Logger {
	logger.Init(cfg.Log.Level, cfg.Log.Format)
	return logger.L
}

// provideInboundHandler is the hand-off point to whatever consumes generic
// inbound messages. The standalone binary only records them.
func provideInboundHandler(log *slog.Logger) channel.InboundHandler {
	log = log.With(slog.String("component", "inbound"))
	return func(_ context.Context, cfg channel.ChannelConfig, msg channel.InboundMessage) error {
		log.Info("inbound message",
			slog.String("bot_id", cfg.BotID),
			slog.String("route", msg.RoutingKey()),
			slog.String("reply_target", msg.ReplyTarget),
			slog.String("sender", msg.Sender.DisplayName),
			slog.Any("mentioned", msg.Metadata["is_mentioned"]),
			slog.String("text", msg.Message.PlainText()),
		)
		return nil
	}
}

func provideYunhuAdapter(log *slog.Logger, cfg config.Config, inbound channel.InboundHandler) (*yunhu.YunhuAdapter, error) {
	timeout, err := cfg.Yunhu.Timeout()
	if err != nil {
		return nil, err
	}
	return yunhu.NewYunhuAdapter(log, yunhu.AdapterOptions{
		Client: yunhu.ClientOptions{
			APIBaseURL:  cfg.Yunhu.APIBaseURL,
			BotInfoURL:  cfg.Yunhu.BotInfoURL,
			FileBaseURL: cfg.Yunhu.FileBaseURL,
			Timeout:     timeout,
			RateLimit:   cfg.Yunhu.APIRateLimit,
			RateBurst:   cfg.Yunhu.APIRateBurst,
		},
		Nicknames:      cfg.Yunhu.Nicknames,
		Handler:        yunhu.NewInboundBridge(log, inbound),
		TextChunkLimit: cfg.Yunhu.TextChunkLimit,
	}), nil
}

func provideChannelRegistry(adapter *yunhu.YunhuAdapter) (*channel.Registry, error) {
	registry := channel.NewRegistry()
	if err := registry.Register(adapter); err != nil {
		return nil, fmt.Errorf("register yunhu adapter: %w", err)
	}
	return registry, nil
}

func provideDispatcher(adapter *yunhu.YunhuAdapter) *yunhu.Dispatcher {
	return adapter.Dispatcher()
}

func provideInFlightCounter(dispatcher *yunhu.Dispatcher) handlers.InFlightCounter {
	return dispatcher
}

func provideConfigLookup(adapter *yunhu.YunhuAdapter) handlers.ConfigLookup {
	return func(channelType channel.ChannelType, botID string) (channel.ChannelConfig, bool) {
		if channelType != yunhu.Type {
			return channel.ChannelConfig{}, false
		}
		return adapter.LookupConfig(botID)
	}
}

func provideAuthConfig(cfg config.Config) config.AuthConfig {
	return cfg.Auth
}

func provideMetrics(log *slog.Logger, dispatcher *yunhu.Dispatcher) *metrics.Metrics {
	return metrics.New(log, dispatcher)
}

func metricsHandler(m *metrics.Metrics) *metrics.Metrics {
	return m
}

// observeDispatcher reports dispatch outcomes to the metrics registry. The
// metrics read the dispatcher's in-flight count, so the observer is attached
// after both exist rather than through the adapter options.
func observeDispatcher(dispatcher *yunhu.Dispatcher, m *metrics.Metrics) {
	dispatcher.SetObserver(m)
}

type serverParams struct {
	fx.In

	Logger         *slog.Logger
	Config         config.Config
	ServerHandlers []server.Handler `group:"server_handlers"`
}

func provideServer(params serverParams) *server.Server {
	return server.NewServer(params.Logger, params.Config.Server.Addr, params.Config.Auth.JWTSecret, params.ServerHandlers...)
}

// startYunhuAdapter connects the configured bots before the server accepts
// webhooks and drains in-flight deliveries after it stops.
func startYunhuAdapter(lc fx.Lifecycle, logger *slog.Logger, cfg config.Config, registry *channel.Registry, adapter *yunhu.YunhuAdapter) {
	lc.Append(fx.Hook{
		OnStart: func(ctx context.Context) error {
			configs := normalizeChannelConfigs(logger, registry, cfg.Yunhu.ChannelConfigs())
			connected := adapter.Start(ctx, configs)
			if connected == 0 && len(configs) > 0 {
				logger.Warn("no yunhu bot connected", slog.Int("configured", len(configs)))
			}
			return nil
		},
		OnStop: func(ctx context.Context) error {
			if err := adapter.Dispatcher().Drain(ctx); err != nil {
				return fmt.Errorf("drain deliveries: %w", err)
			}
			return nil
		},
	})
}

// normalizeChannelConfigs runs credentials through the adapter's normalizer.
// Configs that fail keep their raw credentials so the adapter reports them.
func normalizeChannelConfigs(logger *slog.Logger, registry *channel.Registry, configs []channel.ChannelConfig) []channel.ChannelConfig {
	out := make([]channel.ChannelConfig, 0, len(configs))
	for _, cfg := range configs {
		normalized, err := registry.NormalizeConfig(cfg.ChannelType, cfg.Credentials)
		if err != nil {
			logger.Debug("config not normalized", slog.String("config_id", cfg.ID), slog.Any("error", err))
		} else {
			cfg.Credentials = normalized
		}
		out = append(out, cfg)
	}
	return out
}

func startServer(lc fx.Lifecycle, logger *slog.Logger, srv *server.Server, shutdowner fx.Shutdowner) {
	fmt.Printf("Starting Yunhu adapter %s\n", version.GetInfo())
	lc.Append(fx.Hook{
		OnStart: func(ctx context.Context) error {
			go func() {
				if err := srv.Start(); err != nil && !errors.Is(err, http.ErrServerClosed) {
					logger.Error("server failed", slog.Any("error", err))
					_ = shutdowner.Shutdown()
				}
			}()
			logger.Info("server listening", slog.String("addr", srv.Addr()))
			return nil
		},
		OnStop: func(ctx context.Context) error {
			if err := srv.Stop(ctx); err != nil && !errors.Is(err, http.ErrServerClosed) {
				return fmt.Errorf("server stop: %w", err)
			}
			return nil
		},
	})
}
