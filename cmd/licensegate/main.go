package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/aws/aws-sdk-go-v2/service/secretsmanager"
	"github.com/prometheus/client_golang/prometheus"

	"github.com/edvin/licensegate/internal/api"
	mw "github.com/edvin/licensegate/internal/api/middleware"
	"github.com/edvin/licensegate/internal/config"
	"github.com/edvin/licensegate/internal/cryptlex"
	"github.com/edvin/licensegate/internal/keystore"
	"github.com/edvin/licensegate/internal/license"
	"github.com/edvin/licensegate/internal/logging"
	"github.com/edvin/licensegate/internal/metrics"
	"github.com/edvin/licensegate/internal/secrets"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to load config: %v\n", err)
		os.Exit(1)
	}

	if err := cfg.Validate(); err != nil {
		fmt.Fprintf(os.Stderr, "invalid config: %v\n", err)
		os.Exit(1)
	}

	logger := logging.NewLogger(cfg)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	awsCfg, err := cfg.AWS(ctx)
	if err != nil {
		logger.Fatal().Err(err).Msg("failed to configure aws")
	}

	resolver := secrets.NewResolver(secretsmanager.NewFromConfig(awsCfg), cfg.CryptlexSecretName)
	client := cryptlex.NewClient(cfg.CryptlexBaseURL, cfg.UpstreamTimeout)

	var (
		auth license.Authorizer
		keys mw.KeyLookup
	)
	switch cfg.AuthMode {
	case config.AuthModeSelfService:
		auth = license.NewSelfService(client)
	default:
		auth = license.NewServiceAccount(resolver)
		keys = keystore.New(awsCfg, cfg.APIKeysTable)
	}

	svc := license.NewService(client, resolver, auth)
	metrics.RegisterCredentialCache(prometheus.DefaultRegisterer, resolver.Loaded)

	checks := map[string]api.ReadyCheck{
		"credentials_secret": func(ctx context.Context) error {
			_, err := resolver.Credentials(ctx)
			return err
		},
	}

	srv := api.NewServer(logger, cfg, svc, keys, checks)

	httpServer := &http.Server{
		Addr:              cfg.HTTPListenAddr,
		Handler:           srv,
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       15 * time.Second,
		WriteTimeout:      cfg.UpstreamTimeout + 15*time.Second,
		IdleTimeout:       60 * time.Second,
	}

	go func() {
		logger.Info().Str("addr", cfg.HTTPListenAddr).Str("upstream", cfg.CryptlexBaseURL).Msg("starting license gateway")
		if err := httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Fatal().Err(err).Msg("server failed")
		}
	}()

	var metricsServer *http.Server
	if cfg.MetricsListenAddr != "" {
		metricsServer = metrics.NewServer(cfg.MetricsListenAddr)
		go func() {
			logger.Info().Str("addr", cfg.MetricsListenAddr).Msg("starting metrics server")
			if err := metricsServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
				logger.Fatal().Err(err).Msg("metrics server failed")
			}
		}()
	}

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logger.Info().Msg("shutting down server")
	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()
	httpServer.Shutdown(shutdownCtx)
	if metricsServer != nil {
		metricsServer.Shutdown(shutdownCtx)
	}
}
