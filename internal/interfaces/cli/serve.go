package cli

import (
	"context"
	"os/signal"
	"strings"
	"syscall"

	"github.com/gin-gonic/gin"
	"github.com/spf13/cobra"

	"github.com/turtacn/pkasolver/internal/application/scoring"
	"github.com/turtacn/pkasolver/internal/config"
	"github.com/turtacn/pkasolver/internal/infrastructure/monitoring/logging"
	httpapi "github.com/turtacn/pkasolver/internal/interfaces/http"
	"github.com/turtacn/pkasolver/internal/interfaces/http/handlers"
	"github.com/turtacn/pkasolver/internal/interfaces/http/middleware"
)

type serveOptions struct {
	addr  string
	watch bool
}

func newServeCmd() *cobra.Command {
	opts := &serveOptions{}

	cmd := &cobra.Command{
		Use:         "serve",
		Short:       "Serve the pKa REST API",
		Long:        "Loads the configured model and serves profile and pair predictions over HTTP until interrupted.",
		Annotations: map[string]string{annotationLogStdout: "true"},
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runServe(cmd, opts)
		},
	}
	cmd.Flags().StringVar(&opts.addr, "addr", "", "listen address (default server.host:server.port)")
	cmd.Flags().BoolVar(&opts.watch, "watch", false, "log config file changes that need a restart")
	return cmd
}

func runServe(cmd *cobra.Command, opts *serveOptions) error {
	cliCtx, err := GetCLIContext(cmd)
	if err != nil {
		return err
	}
	cfg := cliCtx.Config
	log := cliCtx.Logger

	ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	comps, err := buildComponents(ctx, cfg, log, withBackends())
	if err != nil {
		return err
	}
	defer comps.Close()

	svc, err := comps.scoringService(ctx)
	if err != nil {
		return err
	}

	router, limiter := newRouter(comps, svc)
	if limiter != nil {
		defer limiter.Stop()
	}

	addr := opts.addr
	if addr == "" {
		addr = cfg.Server.Addr()
	}
	srv := httpapi.NewServer(httpapi.ServerConfig{
		Addr:            addr,
		ReadTimeout:     cfg.Server.ReadTimeout,
		WriteTimeout:    cfg.Server.WriteTimeout,
		ShutdownTimeout: cfg.Server.ShutdownTimeout,
	}, router, log)

	if opts.watch {
		if path := configPathFlag(cmd); path != "" {
			watchConfig(path, cfg, log)
		} else {
			log.Warn("--watch needs --config; ignoring")
		}
	}

	errCh := make(chan error, 1)
	go func() { errCh <- srv.Start() }()
	log.Info("pkasolver API started",
		logging.String("addr", addr),
		logging.String("version", Version),
		logging.String("model_version", svc.ModelInfo().Version))

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}
	log.Info("shutdown signal received")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
	defer cancel()
	return srv.Stop(shutdownCtx)
}

// newRouter assembles the gin engine over svc. The returned limiter, when
// not nil, must be stopped by the caller.
func newRouter(comps *components, svc scoring.Service) (*gin.Engine, *middleware.KeyedLimiter) {
	cfg := comps.cfg
	gin.SetMode(ginMode(cfg.Server.Mode))

	rc := httpapi.RouterConfig{
		PKaHandler:    handlers.NewPKaHandler(svc, comps.logger),
		HealthHandler: handlers.NewHealthHandler(Version, comps.checks...),
		Logging:       middleware.DefaultLoggingConfig(),
		MaxBodySize:   cfg.Server.MaxBodySize,
		Logger:        comps.logger,
	}
	if comps.collector != nil {
		rc.MetricsHandler = comps.collector.Handler()
		rc.MetricsPath = cfg.Metrics.Path
		rc.HTTPMetrics = comps.metrics
	}
	if len(cfg.Server.CORSOrigins) > 0 {
		cors := middleware.DefaultCORSConfig()
		cors.AllowedOrigins = cfg.Server.CORSOrigins
		for _, o := range cors.AllowedOrigins {
			if strings.HasPrefix(o, "*.") {
				cors.AllowWildcard = true
			}
		}
		rc.CORS = &cors
	}

	var limiter *middleware.KeyedLimiter
	if cfg.Server.RateLimitRPS > 0 {
		rl := middleware.DefaultRateLimitConfig()
		rl.RequestsPerSecond = cfg.Server.RateLimitRPS
		rl.BurstSize = cfg.Server.RateLimitBurst
		if cfg.Metrics.Path != "" {
			rl.SkipPaths = []string{"/healthz", "/readyz", cfg.Metrics.Path}
		}
		limiter = middleware.NewKeyedLimiter(rl.RequestsPerSecond, rl.BurstSize, rl.IdleTTL)
		rc.RateLimiter = limiter
		rc.RateLimit = rl
	}
	return httpapi.NewRouter(rc), limiter
}

func ginMode(mode string) string {
	switch mode {
	case gin.DebugMode, gin.TestMode:
		return mode
	default:
		return gin.ReleaseMode
	}
}

func configPathFlag(cmd *cobra.Command) string {
	f := cmd.Flag("config")
	if f == nil {
		return ""
	}
	return f.Value.String()
}

// watchConfig reports edits to sections that only take effect on restart.
func watchConfig(path string, current *config.Config, log logging.Logger) {
	log = log.Named("config")
	err := config.Watch(path, func(next *config.Config) {
		if next.Model != current.Model {
			log.Warn("model section changed; restart to load the new artifact",
				logging.String("artifact_key", next.Model.ArtifactKey),
				logging.String("version", next.Model.Version))
		}
		if next.Server.Port != current.Server.Port || next.Server.Host != current.Server.Host {
			log.Warn("listen address changed; restart to apply", logging.String("addr", next.Server.Addr()))
		}
		log.Info("config file reloaded", logging.String("path", path))
	}, func(err error) {
		log.Error("config reload rejected", logging.Err(err))
	})
	if err != nil {
		log.Warn("config watch disabled", logging.Err(err))
	}
}

//Personal.AI order the ending
