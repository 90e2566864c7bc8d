// querydeck serves an HTTP API for registering database connections,
// browsing their schemas, running read-only SQL and exporting results.
package main

import (
	"context"
	"errors"
	"flag"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/querydeck/querydeck/internal/api"
	"github.com/querydeck/querydeck/internal/assist"
	"github.com/querydeck/querydeck/internal/config"
	"github.com/querydeck/querydeck/internal/query"
	"github.com/querydeck/querydeck/internal/schema"
	"github.com/querydeck/querydeck/internal/store"
	"github.com/querydeck/querydeck/internal/validate"
)

func main() {
	configPath := flag.String("config", "", "path to config file (optional)")
	flag.Parse()

	log := logrus.New()
	log.SetFormatter(&logrus.TextFormatter{FullTimestamp: true})

	cfg, err := config.Load(*configPath)
	if err != nil {
		log.WithError(err).Fatal("load configuration")
	}

	level, err := logrus.ParseLevel(cfg.LogLevel)
	if err != nil {
		log.WithError(err).Fatal("parse log level")
	}
	log.SetLevel(level)

	st, err := store.Open(cfg.StorePath)
	if err != nil {
		log.WithError(err).Fatal("open connection store")
	}
	defer st.Close()

	validator := validate.New(cfg.Query.MaxRows)
	executor := query.NewExecutor(validator, log)
	extractor := schema.NewExtractor(log)

	var assistClient *assist.Client
	if key := cfg.Assist.APIKey(); key != "" {
		assistClient = assist.NewClient(cfg.Assist.BaseURL, key, cfg.Assist.Model, validator, log)
		log.WithField("model", cfg.Assist.Model).Info("natural language assist enabled")
	} else {
		log.WithField("env", cfg.Assist.APIKeyEnv).Info("natural language assist disabled, API key not set")
	}

	server := api.NewServer(st, executor, extractor, assistClient, log)
	httpServer := &http.Server{
		Addr:    cfg.Listen,
		Handler: server.Routes(),
	}

	errCh := make(chan error, 1)
	go func() {
		log.WithField("addr", cfg.Listen).Info("server listening")
		errCh <- httpServer.ListenAndServe()
	}()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	select {
	case sig := <-sigCh:
		log.WithField("signal", sig.String()).Info("shutting down")
		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := httpServer.Shutdown(ctx); err != nil {
			log.WithError(err).Error("shutdown")
		}
	case err := <-errCh:
		if !errors.Is(err, http.ErrServerClosed) {
			log.WithError(err).Fatal("server error")
		}
	}
}
