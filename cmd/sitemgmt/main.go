package main

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/gorilla/mux"
	"github.com/prometheus/client_golang/prometheus"
	"golang.org/x/sync/errgroup"

	"github.com/platinummonkey/sitemgmt/pkg/api"
	"github.com/platinummonkey/sitemgmt/pkg/config"
	"github.com/platinummonkey/sitemgmt/pkg/directory"
	"github.com/platinummonkey/sitemgmt/pkg/middleware"
	"github.com/platinummonkey/sitemgmt/pkg/notify"
	"github.com/platinummonkey/sitemgmt/pkg/observability"
	"github.com/platinummonkey/sitemgmt/pkg/session"
	"github.com/platinummonkey/sitemgmt/pkg/sso"
)

// version is set at build time
var version = "dev"

func main() {
	cfg, err := config.LoadConfig()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to load configuration: %v\n", err)
		os.Exit(1)
	}

	logger := observability.NewLogger(cfg.Observability.Level(), os.Stdout)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, cfg, logger); err != nil {
		logger.WithError(err).Error("Site management server exited with error")
		os.Exit(1)
	}
	logger.Info("Site management server stopped")
}

func run(ctx context.Context, cfg *config.Config, logger *observability.Logger) error {
	logger.WithField("version", version).Info("Starting site management server")

	otelProviders, err := observability.InitOTel(ctx, observability.OTelConfig{
		Enabled:        cfg.Observability.OTelEnabled,
		Endpoint:       cfg.Observability.OTelEndpoint,
		ServiceName:    cfg.Observability.OTelServiceName,
		ServiceVersion: cfg.Observability.OTelServiceVersion,
		Insecure:       cfg.Observability.OTelInsecure,
	}, logger)
	if err != nil {
		return fmt.Errorf("failed to initialize OpenTelemetry: %w", err)
	}

	registry := prometheus.NewRegistry()
	metrics := observability.NewMetrics(registry)

	deps, err := openDependencies(ctx, cfg, logger)
	if err != nil {
		return err
	}
	defer deps.Close()

	if otelProviders != nil {
		meter := otelProviders.MeterProvider.Meter("github.com/platinummonkey/sitemgmt")
		otelMetrics, err := observability.NewOTelMetrics(meter)
		if err != nil {
			return err
		}
		metrics.WithOTel(otelMetrics)
		if deps.db != nil {
			if err := observability.RegisterDBPoolMetrics(meter, deps.db); err != nil {
				return err
			}
		}
	}

	publisher, err := newPublisher(ctx, cfg, deps.redis, logger)
	if err != nil {
		return err
	}
	dispatcher := notify.NewDispatcher(publisher,
		notify.WithTimeout(cfg.Notify.Timeout),
		notify.WithMetrics(metrics),
	)

	dir := directory.New(deps.store,
		directory.WithNotifier(dispatcher),
		directory.WithMetrics(metrics),
	)

	tokens, err := session.NewService([]byte(cfg.Auth.SessionSecret),
		session.WithTTL(cfg.Auth.SessionTTL),
		session.WithIssuer(cfg.Auth.SessionIssuer),
	)
	if err != nil {
		return fmt.Errorf("failed to create session service: %w", err)
	}

	provider, err := newIdentityProvider(ctx, cfg)
	if err != nil {
		return err
	}

	scheduler, err := newScheduler(cfg.Observability.RosterGaugeSchedule, dir, metrics, logger)
	if err != nil {
		return err
	}
	if scheduler != nil {
		if err := refreshRoster(ctx, dir, metrics); err != nil {
			logger.WithError(err).Warn("Initial roster gauge refresh failed")
		}
		scheduler.Start()
	}

	opts := []api.Option{
		api.WithLogger(logger),
		api.WithMetrics(metrics),
		api.WithProviderTimeout(cfg.Auth.ProviderTimeout),
		api.WithSecureCookies(cfg.Server.SecureCookies),
	}
	if limiter := newLoginLimiter(ctx, cfg, deps.redis); limiter != nil {
		proxies, err := middleware.ParseTrustedProxies(cfg.RateLimit.TrustedProxies)
		if err != nil {
			return err
		}
		opts = append(opts, api.WithLoginLimiter(middleware.RateLimit(limiter, limiterWindow, metrics,
			middleware.WithTrustedProxies(proxies...))))
		logger.WithField("backend", limiter.Name()).Info("Login rate limiting enabled")
	}
	server := api.NewServer(dir, provider, tokens, opts...)

	appServer := &http.Server{
		Addr:         net.JoinHostPort(cfg.Server.Host, cfg.Server.Port),
		Handler:      server.Handler(),
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
		IdleTimeout:  cfg.Server.IdleTimeout,
	}
	opsServer := &http.Server{
		Addr:    net.JoinHostPort(cfg.Server.Host, cfg.Server.HealthPort),
		Handler: opsRouter(cfg, deps, registry),
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		logger.WithField("addr", appServer.Addr).Info("Serving admin site")
		return listen(appServer)
	})
	g.Go(func() error {
		logger.WithField("addr", opsServer.Addr).Info("Serving health and metrics")
		return listen(opsServer)
	})
	g.Go(func() error {
		<-gctx.Done()
		logger.Info("Shutting down servers")

		shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
		defer cancel()

		err := errors.Join(appServer.Shutdown(shutdownCtx), opsServer.Shutdown(shutdownCtx))
		if scheduler != nil {
			<-scheduler.Stop().Done()
		}
		if waitErr := dispatcher.Wait(shutdownCtx); waitErr != nil {
			logger.WithError(waitErr).Warn("Pending notifications were not delivered before shutdown")
		}
		if otelErr := observability.ShutdownOTel(shutdownCtx, otelProviders, logger); otelErr != nil {
			logger.WithError(otelErr).Warn("OpenTelemetry shutdown failed")
		}
		return err
	})

	return g.Wait()
}

// listen runs srv until it is shut down
func listen(srv *http.Server) error {
	if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return fmt.Errorf("server %s: %w", srv.Addr, err)
	}
	return nil
}

func opsRouter(cfg *config.Config, deps *dependencies, registry *prometheus.Registry) http.Handler {
	router := mux.NewRouter()
	observability.RegisterHealthRoutes(router, observability.NewHealthChecker(deps.db, deps.redis, version))
	if cfg.Observability.MetricsEnabled {
		observability.RegisterMetricsEndpoint(router, registry)
	}
	return router
}

func newIdentityProvider(ctx context.Context, cfg *config.Config) (sso.IdentityProvider, error) {
	oidcCfg := sso.GooglePreset(cfg.Auth.ClientID, cfg.Auth.ClientSecret, config.RedirectURL(cfg.Server.BaseURL))
	oidcCfg.IssuerURL = cfg.Auth.IssuerURL
	oidcCfg.HTTPTimeout = cfg.Auth.ProviderTimeout

	discoveryCtx, cancel := context.WithTimeout(ctx, cfg.Auth.ProviderTimeout)
	defer cancel()

	provider, err := sso.NewOIDCProvider(discoveryCtx, oidcCfg)
	if err != nil {
		return nil, fmt.Errorf("failed to set up identity provider: %w", err)
	}
	return provider, nil
}
