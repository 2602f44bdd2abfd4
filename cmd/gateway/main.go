// Package main is the entry point for the CSV gateway.
package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/rs/zerolog/log"

	"github.com/tabwise/csv-gateway/internal/backends"
	"github.com/tabwise/csv-gateway/internal/budget"
	"github.com/tabwise/csv-gateway/internal/config"
	"github.com/tabwise/csv-gateway/internal/gateway"
	"github.com/tabwise/csv-gateway/internal/monitoring"
	"github.com/tabwise/csv-gateway/internal/provider"
)

const shutdownGrace = 10 * time.Second

func main() {
	// .env is optional; real deployments set the environment directly.
	_ = godotenv.Load()

	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "configuration error: %v\n", err)
		os.Exit(1)
	}

	monitoring.Global(monitoring.LoggerConfig{Level: cfg.LogLevel, Format: cfg.LogFormat})

	// No provider configured is terminal: refuse to start.
	active, err := provider.Select(cfg)
	if err != nil {
		fmt.Fprintln(os.Stderr, "Error: no LLM provider configured!")
		fmt.Fprintln(os.Stderr, "Please set one of the following:")
		fmt.Fprintln(os.Stderr, "- AZURE_OPENAI_API_KEY and AZURE_OPENAI_ENDPOINT for an enterprise gateway deployment (with content extraction)")
		fmt.Fprintln(os.Stderr, "- ANTHROPIC_API_KEY for Claude (with direct file upload)")
		fmt.Fprintln(os.Stderr, "- OPENAI_API_KEY for GPT")
		fmt.Fprintln(os.Stderr, "- GOOGLE_API_KEY for Gemini")
		os.Exit(1)
	}

	registry := backends.NewRegistry(cfg)
	validator := budget.NewValidator(cfg.ModelLimits)
	svc := gateway.NewService(cfg, registry, validator, gateway.NewDispatcher())
	server := gateway.NewServer(cfg, svc)

	httpServer := &http.Server{
		Addr:         fmt.Sprintf(":%d", cfg.Port),
		Handler:      server.Router(),
		ReadTimeout:  30 * time.Second,
		WriteTimeout: 180 * time.Second, // must outlast the slowest backend timeout
	}

	go func() {
		log.Info().
			Int("port", cfg.Port).
			Str("provider", string(active)).
			Bool("token_estimation", validator.Available()).
			Msg("csv gateway listening")
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Error().Err(err).Msg("server failed")
			os.Exit(1)
		}
	}()

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, os.Interrupt, syscall.SIGTERM)
	<-stop

	log.Info().Msg("shutting down")
	ctx, cancel := context.WithTimeout(context.Background(), shutdownGrace)
	defer cancel()
	if err := httpServer.Shutdown(ctx); err != nil {
		log.Error().Err(err).Msg("shutdown failed")
	}
}
