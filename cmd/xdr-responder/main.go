package main

import (
	"context"
	"io"
	"net/http"
	"os/signal"
	"syscall"

	"github.com/joho/godotenv"
	"github.com/sirupsen/logrus"

	"github.com/invisible-tech/xdr-responder/internal/config"
	"github.com/invisible-tech/xdr-responder/internal/poller"
	"github.com/invisible-tech/xdr-responder/internal/server"
	"github.com/invisible-tech/xdr-responder/internal/state"
	"github.com/invisible-tech/xdr-responder/internal/version"
	"github.com/invisible-tech/xdr-responder/pkg/xdr"
)

func main() {
	log := logrus.New()
	log.SetFormatter(&logrus.JSONFormatter{})
	log.SetLevel(logrus.InfoLevel)

	// A missing .env file is fine; the environment may already be set.
	_ = godotenv.Load()

	loader := config.NewLoader(config.GetEnv("XDR_CONFIG", ""), log)
	cfg, err := loader.Load()
	if err != nil {
		log.WithError(err).Fatal("Failed to load config")
	}
	log.SetLevel(config.ParseLogLevel(cfg.LogLevel))

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := config.ResolveCredentials(ctx, cfg); err != nil {
		log.WithError(err).Fatal("Failed to read credentials from Vault")
	}
	if err := cfg.Validate(); err != nil {
		log.WithError(err).Fatal("Invalid config")
	}

	client := xdr.NewClient(xdr.Config{
		ServerURL:         cfg.API.ServerURL,
		APIKey:            cfg.API.Key,
		APIKeyID:          cfg.API.KeyID,
		Advanced:          cfg.API.Advanced,
		Timeout:           cfg.API.Timeout,
		RequestsPerSecond: cfg.API.RequestsPerSecond,
	}, log)

	store, err := state.New(state.Config{
		Backend:  cfg.State.Backend,
		Path:     cfg.State.Path,
		RedisURL: cfg.State.RedisURL,
		RedisKey: cfg.State.RedisKey,
	})
	if err != nil {
		log.WithError(err).Fatal("Failed to open state store")
	}
	if c, ok := store.(io.Closer); ok {
		defer c.Close()
	}

	var p *poller.Poller
	if cfg.Poller.Enabled {
		p = poller.New(cfg.Poller, client, store, log)
		go p.Start(ctx)
		loader.Watch(func(next *config.Config) {
			p.UpdateSettings(next.Poller)
			log.SetLevel(config.ParseLogLevel(next.LogLevel))
		})
	}

	srv := server.New(cfg.Server, client, p, log)
	go func() {
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.WithError(err).Fatal("Responder server failed")
		}
	}()
	log.WithFields(logrus.Fields{
		"version": version.Version,
		"tenant":  client.BaseURL(),
		"poller":  cfg.Poller.Enabled,
		"state":   cfg.State.Backend,
	}).Info("Responder started")

	<-ctx.Done()

	log.Info("Shutting down responder")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
	defer cancel()
	_ = srv.Shutdown(shutdownCtx)
}
