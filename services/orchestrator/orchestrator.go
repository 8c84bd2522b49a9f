// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package orchestrator assembles the agent API service: HTTP routing,
// the model client, the market aggregator, the paper-trading engine,
// session management, and observability. Construct with New, then Run.
package orchestrator

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"time"

	"github.com/gin-gonic/gin"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/exporters/stdout/stdouttrace"
	"go.opentelemetry.io/otel/propagation"
	"go.opentelemetry.io/otel/sdk/resource"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	semconv "go.opentelemetry.io/otel/semconv/v1.26.0"

	"github.com/AleutianAI/AleutianOracle/services/agent"
	"github.com/AleutianAI/AleutianOracle/services/llm"
	"github.com/AleutianAI/AleutianOracle/services/markets"
	"github.com/AleutianAI/AleutianOracle/services/orchestrator/observability"
	"github.com/AleutianAI/AleutianOracle/services/orchestrator/routes"
	"github.com/AleutianAI/AleutianOracle/services/orchestrator/sessions"
	"github.com/AleutianAI/AleutianOracle/services/social"
	"github.com/AleutianAI/AleutianOracle/services/trading"
)

// Service is the orchestrator lifecycle. Run blocks until the server
// stops; Router exposes the gin engine for integration tests.
type Service interface {
	Run() error
	Router() *gin.Engine
}

// Config holds orchestrator configuration. Zero values take defaults.
type Config struct {
	// Port is the HTTP listen port. Default 12310.
	Port int

	// LLMProvider picks the model backend ("anthropic", "openai").
	// Empty defers to LLM_PROVIDER and key detection.
	LLMProvider string

	// GinMode sets the gin framework mode ("debug", "release", "test").
	GinMode string

	// AuthToken, when set, is required as a bearer token on /v1 routes.
	// Empty disables auth. Defaults to ORACLE_API_TOKEN.
	AuthToken string

	// LedgerPath is the badger directory for the trading ledger.
	// Empty keeps the ledger in memory only.
	LedgerPath string

	// SystemPrompt overrides the agent's default persona.
	SystemPrompt string

	// ToolBudget caps tool calls per conversation turn.
	ToolBudget int

	// SessionIdleTTL reclaims sessions idle longer than this.
	SessionIdleTTL time.Duration

	// TraceToStdout enables the stdout span exporter. Off by default;
	// spans are recorded but unexported when no provider is set.
	TraceToStdout bool
}

type service struct {
	config        Config
	router        *gin.Engine
	client        llm.Client
	aggregator    *markets.Aggregator
	matcher       *markets.Matcher
	engine        *trading.Engine
	store         *trading.Store
	xClient       *social.XClient
	recorder      *markets.Recorder
	sessionMgr    *sessions.Manager
	tracerCleanup func(context.Context)
	cancelSweeper context.CancelFunc
}

// New wires the full service: tracing, metrics, market clients, the
// trading engine (with its ledger restored when LedgerPath is set),
// the X client, the model client, sessions, and the HTTP router.
func New(cfg Config) (Service, error) {
	s := &service{config: applyConfigDefaults(cfg)}

	cleanup, err := s.initTracer()
	if err != nil {
		return nil, fmt.Errorf("initializing tracer: %w", err)
	}
	s.tracerCleanup = cleanup

	observability.InitMetrics()

	s.aggregator = markets.DefaultAggregator(nil)
	s.matcher = markets.NewMatcher(0, 0)

	s.recorder, err = markets.NewRecorderFromEnv()
	if err != nil {
		slog.Warn("Market recorder unavailable, snapshots will not be persisted", "error", err)
	}

	if err := s.initTrading(); err != nil {
		s.cleanup()
		return nil, fmt.Errorf("initializing trading engine: %w", err)
	}

	s.xClient = social.NewXClientFromEnv(nil)

	s.client, err = s.initLLMClient()
	if err != nil {
		s.cleanup()
		return nil, fmt.Errorf("initializing model client: %w", err)
	}

	s.sessionMgr = sessions.NewManager(sessions.Deps{
		Client:     s.client,
		Aggregator: s.aggregator,
		Matcher:    s.matcher,
		Engine:     s.engine,
		XClient:    s.xClient,
		AgentCfg: agent.Config{
			SystemPrompt: s.config.SystemPrompt,
			ToolBudget:   s.config.ToolBudget,
		},
	}, s.config.SessionIdleTTL, 0)

	sweepCtx, cancel := context.WithCancel(context.Background())
	s.cancelSweeper = cancel
	s.sessionMgr.StartSweeper(sweepCtx)

	s.initRouter()
	return s, nil
}

func (s *service) Run() error {
	defer s.cleanup()

	addr := fmt.Sprintf(":%d", s.config.Port)
	slog.Info("Starting oracle orchestrator",
		"port", s.config.Port,
		"model", s.client.Model(),
		"platforms", len(s.aggregator.Platforms()))
	return s.router.Run(addr)
}

func (s *service) Router() *gin.Engine { return s.router }

func applyConfigDefaults(cfg Config) Config {
	if cfg.Port == 0 {
		cfg.Port = 12310
	}
	if cfg.AuthToken == "" {
		cfg.AuthToken = os.Getenv("ORACLE_API_TOKEN")
	}
	if cfg.SessionIdleTTL == 0 {
		cfg.SessionIdleTTL = sessions.DefaultIdleTTL
	}
	return cfg
}

// initTracer installs the global tracer provider. The stdout exporter
// is opt-in; without it spans stay process-local.
func (s *service) initTracer() (func(context.Context), error) {
	res, err := resource.New(context.Background(),
		resource.WithAttributes(semconv.ServiceNameKey.String("oracle-orchestrator")))
	if err != nil {
		return nil, fmt.Errorf("building trace resource: %w", err)
	}

	opts := []sdktrace.TracerProviderOption{
		sdktrace.WithSampler(sdktrace.AlwaysSample()),
		sdktrace.WithResource(res),
	}
	if s.config.TraceToStdout {
		exporter, err := stdouttrace.New(stdouttrace.WithPrettyPrint())
		if err != nil {
			return nil, fmt.Errorf("building stdout exporter: %w", err)
		}
		opts = append(opts, sdktrace.WithBatcher(exporter))
	}

	provider := sdktrace.NewTracerProvider(opts...)
	otel.SetTracerProvider(provider)
	otel.SetTextMapPropagator(propagation.NewCompositeTextMapPropagator(
		propagation.TraceContext{}, propagation.Baggage{}))

	return func(ctx context.Context) {
		if err := provider.Shutdown(ctx); err != nil {
			slog.Warn("Tracer shutdown failed", "error", err)
		}
	}, nil
}

func (s *service) initTrading() error {
	limits := trading.RiskLimitsFromEnv()

	var store *trading.Store
	var err error
	if s.config.LedgerPath != "" {
		store, err = trading.OpenStore(s.config.LedgerPath)
	} else {
		store, err = trading.OpenInMemoryStore()
	}
	if err != nil {
		return err
	}
	s.store = store

	s.engine, err = trading.NewEngine(s.aggregator, limits, store)
	if err != nil {
		return err
	}
	return nil
}

func (s *service) initLLMClient() (llm.Client, error) {
	if s.config.LLMProvider != "" {
		return llm.NewClient(s.config.LLMProvider)
	}
	return llm.NewClientFromEnv()
}

func (s *service) initRouter() {
	if s.config.GinMode != "" {
		gin.SetMode(s.config.GinMode)
	}
	router := gin.New()
	router.Use(gin.Recovery())
	router.Use(requestLogger())

	routes.SetupRoutes(router, routes.Deps{
		Sessions:   s.sessionMgr,
		Aggregator: s.aggregator,
		Matcher:    s.matcher,
		Engine:     s.engine,
		Client:     s.client,
		Recorder:   s.recorder,
		AuthToken:  s.config.AuthToken,
	})
	s.router = router
}

// requestLogger is a slog-backed replacement for gin.Logger, keeping
// all service output on one structured stream.
func requestLogger() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()
		slog.Info("HTTP request",
			"method", c.Request.Method,
			"path", c.Request.URL.Path,
			"status", c.Writer.Status(),
			"elapsed", time.Since(start),
			"client", c.ClientIP())
	}
}

func (s *service) cleanup() {
	if s.cancelSweeper != nil {
		s.cancelSweeper()
	}
	if s.sessionMgr != nil {
		s.sessionMgr.Close()
	}
	if s.recorder != nil {
		s.recorder.Close()
	}
	if s.store != nil {
		if err := s.store.Close(); err != nil {
			slog.Warn("Closing trading ledger failed", "error", err)
		}
	}
	if s.tracerCleanup != nil {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		s.tracerCleanup(ctx)
	}
}
