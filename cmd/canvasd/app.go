package main

import (
	"context"
	"fmt"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"

	"promptcanvas/internal/config"
	"promptcanvas/internal/dispatch"
	"promptcanvas/internal/imagery"
	"promptcanvas/internal/logging"
	"promptcanvas/internal/perception"
	"promptcanvas/internal/telemetry"
	"promptcanvas/internal/tools"
)

// app wires the components of one canvasd process.
type app struct {
	cfg *config.Config

	promRegistry *prometheus.Registry
	metrics      *telemetry.Metrics

	registry   *tools.Registry
	dispatcher *dispatch.Dispatcher

	// Set by connectModel.
	prompts  *perception.PromptSource
	sessions *perception.SessionManager
	service  *dispatch.Service

	closers []func()
}

// newApp builds everything that works without a model: metrics, image
// lookup, the tool registry and the dispatcher.
func newApp(cfg *config.Config) (*app, error) {
	a := &app{cfg: cfg}

	if cfg.Metrics.Enabled {
		a.promRegistry = prometheus.NewRegistry()
		a.promRegistry.MustRegister(
			collectors.NewGoCollector(),
			collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
		)
		a.metrics = telemetry.New(a.promRegistry)
	}

	var resolver imagery.Resolver = imagery.Disabled
	if cfg.Images.Unsplash.AccessKey != "" {
		unsplash, err := imagery.NewUnsplashResolver(imagery.UnsplashConfig{
			BaseURL:   cfg.Images.Unsplash.BaseURL,
			AccessKey: cfg.Images.Unsplash.AccessKey,
			Timeout:   cfg.GetSearchTimeout(),
			CacheTTL:  cfg.GetImageCacheTTL(),
			CacheSize: cfg.Images.CacheSize,
			Metrics:   a.metrics,
		})
		if err != nil {
			return nil, err
		}
		a.closers = append(a.closers, unsplash.Close)
		resolver = unsplash
	} else {
		logging.ImageryWarn("No Unsplash access key configured, image queries will not resolve")
	}
	checker := imagery.NewHeadValidator(nil, cfg.GetValidateTimeout(), a.metrics)

	a.registry = tools.NewCanvasRegistry(tools.NewValidator(resolver, checker))
	a.dispatcher = dispatch.New(a.registry, dispatch.Config{
		MaxCallsPerTurn:    cfg.Dispatch.MaxCallsPerTurn,
		StrictUnknownTools: cfg.Dispatch.StrictUnknownTools,
	}, dispatch.WithMetrics(a.metrics))

	logging.Boot("Registered %d tools (max %d calls per turn, strict=%v)",
		a.registry.Count(), a.dispatcher.Config().MaxCallsPerTurn, cfg.Dispatch.StrictUnknownTools)
	return a, nil
}

// connectModel creates the Gemini client, the prompt source and the session
// manager, and the turn service on top of them.
func (a *app) connectModel(ctx context.Context) error {
	if err := a.cfg.ValidateForModel(); err != nil {
		return err
	}

	prompts, err := perception.NewPromptSource(a.cfg.LLM.SystemPromptPath, nil)
	if err != nil {
		return err
	}
	if err := prompts.Watch(ctx); err != nil {
		logging.PerceptionWarn("System prompt will not hot-reload: %v", err)
	} else {
		a.closers = append(a.closers, prompts.Stop)
	}
	a.prompts = prompts

	client, err := perception.NewGeminiClient(ctx, perception.ClientOptions{APIKey: a.cfg.LLM.APIKey})
	if err != nil {
		return err
	}

	factory := perception.GeminiFactory(client, perception.GeminiConfig{
		Model:        a.cfg.LLM.Model,
		Declarations: a.registry.Declarations(),
		Temperature:  a.cfg.LLM.Temperature,
		Timeout:      a.cfg.GetLLMTimeout(),
	}, prompts)

	sessions, err := perception.NewSessionManager(factory, perception.ManagerConfig{
		TTL:         a.cfg.GetSessionTTL(),
		MaxSessions: a.cfg.Sessions.MaxSessions,
	})
	if err != nil {
		return fmt.Errorf("failed to create session manager: %w", err)
	}
	a.closers = append(a.closers, sessions.Close)
	a.sessions = sessions

	a.service = dispatch.NewService(sessions, a.dispatcher, dispatch.WithServiceMetrics(a.metrics))
	logging.Perception("Model %s ready", a.cfg.LLM.Model)
	return nil
}

// Close releases everything in reverse order of creation.
func (a *app) Close() {
	for i := len(a.closers) - 1; i >= 0; i-- {
		a.closers[i]()
	}
	a.closers = nil
}
