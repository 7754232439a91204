package daemon

import (
	"context"
	"net/http"

	"github.com/matheus3301/wppdesk/internal/api"
	"github.com/matheus3301/wppdesk/internal/bus"
	"github.com/matheus3301/wppdesk/internal/chats"
	"github.com/matheus3301/wppdesk/internal/config"
	"github.com/matheus3301/wppdesk/internal/gateway"
	"github.com/matheus3301/wppdesk/internal/lock"
	"github.com/matheus3301/wppdesk/internal/logging"
	"github.com/matheus3301/wppdesk/internal/messages"
	"github.com/matheus3301/wppdesk/internal/outbox"
	"github.com/matheus3301/wppdesk/internal/profile"
	"go.uber.org/fx"
	"go.uber.org/zap"
)

// ProxyPrefix is where the daemon mounts the gateway proxy.
const ProxyPrefix = "/gateway"

// Params holds the resolved profile configuration passed to the fx module.
type Params struct {
	Profile string
	Listen  string // optional override; empty = config daemon.listen
	Debug   bool
}

// Module returns the fx module for the daemon, composing all providers and lifecycle hooks.
func Module(p Params) fx.Option {
	return fx.Module("daemon",
		fx.Supply(p),
		fx.Provide(
			provideConfig,
			provideLogger,
			provideBus,
			provideGateway,
			provideChatList,
			provideThread,
			provideSender,
			provideRouter,
			NewServer,
			provideLock,
		),
		fx.Invoke(registerLifecycle),
	)
}

func provideConfig(p Params) (*config.Config, error) {
	if err := profile.EnsureDir(p.Profile); err != nil {
		return nil, err
	}
	if err := config.LoadEnvFiles(".env", profile.EnvPath(p.Profile)); err != nil {
		return nil, err
	}
	cfg, err := config.LoadOrDefault(profile.ConfigPath(p.Profile))
	if err != nil {
		return nil, err
	}
	if err := cfg.ApplyEnv(); err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func provideLogger(p Params) (*zap.Logger, error) {
	return logging.New(profile.LogPath(p.Profile), p.Profile, p.Debug)
}

func provideBus() *bus.Bus {
	return bus.New()
}

// provideGateway picks the endpoint strategy from config: a same-origin
// proxy when proxy_origin is set, the gateway URL otherwise.
func provideGateway(cfg *config.Config, logger *zap.Logger) *gateway.Client {
	var endpoint gateway.Endpoint = gateway.DirectEndpoint{BaseURL: cfg.Gateway.URL}
	if cfg.Gateway.ProxyOrigin != "" {
		endpoint = gateway.ProxyEndpoint{
			Origin:   cfg.Gateway.ProxyOrigin,
			Prefix:   cfg.Gateway.ProxyPrefix,
			Upstream: cfg.Gateway.URL,
		}
	}
	logger.Info("gateway configured", zap.String("url", endpoint.URL("/", nil)))
	return gateway.New(gateway.Options{
		Endpoint: endpoint,
		APIKey:   cfg.Gateway.APIKey,
		Rate:     cfg.Gateway.Rate,
		Burst:    cfg.Gateway.Burst,
		Timeout:  cfg.Gateway.Timeout.Duration,
		Logger:   logger,
	})
}

func provideChatList(gw *gateway.Client, b *bus.Bus, cfg *config.Config, logger *zap.Logger) *chats.List {
	return chats.NewList(gw, b, logger, chats.Options{
		PageSize:    cfg.Chats.PageSize,
		Parallel:    cfg.Chats.Parallel,
		SessionTTL:  cfg.Chats.SessionTTL.Duration,
		SettleDelay: cfg.Chats.SettleDelay.Duration,
	})
}

// provideThread serves media through the daemon's own proxy when it runs
// one, so the dashboard stays same-origin.
func provideThread(gw *gateway.Client, b *bus.Bus, cfg *config.Config, logger *zap.Logger) *messages.Thread {
	rewrite := gw.RewriteMedia
	if cfg.Daemon.ServeProxy {
		rewrite = gateway.ProxyEndpoint{Prefix: ProxyPrefix, Upstream: cfg.Gateway.URL}.RewriteMedia
	}
	return messages.NewThread(gw, b, logger, messages.Options{
		FirstPage:    cfg.Messages.FirstPage,
		NextPage:     cfg.Messages.NextPage,
		PollInterval: cfg.Messages.PollInterval.Duration,
		Rewrite:      rewrite,
	})
}

func provideSender(gw *gateway.Client, b *bus.Bus, cfg *config.Config, logger *zap.Logger) *outbox.Sender {
	return outbox.NewSender(gw, b, logger, cfg.Outbox.Tick.Duration)
}

func provideRouter(p Params, cfg *config.Config, list *chats.List, thread *messages.Thread, sender *outbox.Sender, b *bus.Bus, logger *zap.Logger) (http.Handler, error) {
	deps := api.Deps{
		Profile: p.Profile,
		Chats:   list,
		Thread:  thread,
		Replies: sender,
		Bus:     b,
		Logger:  logger,
	}
	if cfg.Daemon.ServeProxy {
		proxy, err := api.NewGatewayProxy(cfg.Gateway.URL, ProxyPrefix, cfg.Gateway.APIKey, logger)
		if err != nil {
			return nil, err
		}
		deps.Proxy, deps.ProxyPrefix = proxy, ProxyPrefix
	}
	return api.NewRouter(deps), nil
}

// provideLock runs after the server binds so the lock records the real
// address for wppdeskctl.
func provideLock(p Params, srv *Server, logger *zap.Logger) (*lock.Lock, error) {
	logger.Info("acquiring profile lock", zap.String("profile", p.Profile))
	l, err := lock.Acquire(profile.Dir(p.Profile), srv.Addr())
	if err != nil {
		_ = srv.Close()
		return nil, err
	}
	logger.Info("profile lock acquired")
	return l, nil
}

func registerLifecycle(lc fx.Lifecycle, srv *Server, lk *lock.Lock, list *chats.List, thread *messages.Thread, sender *outbox.Sender, logger *zap.Logger) {
	lc.Append(fx.Hook{
		OnStart: func(_ context.Context) error {
			go func() {
				if err := srv.Start(); err != nil {
					logger.Error("HTTP server error", zap.Error(err))
				}
			}()

			sender.Start(context.Background())

			// First page of chats; failures land in the list state.
			go func() {
				if err := list.Refresh(context.Background()); err != nil {
					logger.Warn("initial chat fetch failed", zap.Error(err))
				}
			}()
			return nil
		},
		OnStop: func(ctx context.Context) error {
			thread.Close()
			list.Close()
			sender.Stop()
			if err := srv.Stop(ctx); err != nil {
				logger.Warn("error stopping server", zap.Error(err))
			}
			if err := lk.Release(); err != nil {
				logger.Warn("error releasing lock", zap.Error(err))
			}
			logger.Info("daemon stopped")
			return nil
		},
	})
}
