// Package cli assembles a full orchestrator from the config file for
// the parley binary. Library consumers wire parley.New themselves;
// this package exists so every subcommand builds the same stack.
package cli

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	backend "github.com/redis/go-redis/v9"

	"github.com/aretw0/parley"
	"github.com/aretw0/parley/internal/compiler"
	"github.com/aretw0/parley/internal/config"
	"github.com/aretw0/parley/internal/logging"
	"github.com/aretw0/parley/internal/runtime"
	"github.com/aretw0/parley/pkg/adapters/file"
	"github.com/aretw0/parley/pkg/adapters/memory"
	redisAdapter "github.com/aretw0/parley/pkg/adapters/redis"
	"github.com/aretw0/parley/pkg/classify"
	"github.com/aretw0/parley/pkg/domain"
	"github.com/aretw0/parley/pkg/patterns"
	"github.com/aretw0/parley/pkg/persistence/middleware"
	"github.com/aretw0/parley/pkg/ports"
	"github.com/aretw0/parley/pkg/registry"
	"github.com/aretw0/parley/pkg/supervise"
)

// App bundles the assembled orchestrator with its supporting pieces.
type App struct {
	Orchestrator *parley.Orchestrator
	Workflows    []*domain.Workflow
	Logger       *slog.Logger

	redisClient *backend.Client
}

// Close releases backend connections.
func (a *App) Close() error {
	if a.redisClient != nil {
		return a.redisClient.Close()
	}
	return nil
}

// Build assembles the orchestrator: patterns, workflows, responders,
// and the storage backend selected by the config.
func Build(cfg config.Config) (*App, error) {
	logger := logging.New(logging.ParseLevel(cfg.Logging.Level))

	repo, err := patterns.LoadFile(cfg.Paths.Patterns)
	if err != nil {
		return nil, err
	}

	workflows, err := compiler.CompileDir(cfg.Paths.Workflows)
	if err != nil {
		return nil, err
	}

	reg := registry.New()
	registerStaticResponders(reg, workflows)

	opts := []parley.Option{
		parley.WithLogger(logger),
		parley.WithBotID(cfg.BotID),
		parley.WithTurnTimeout(cfg.Engine.TurnTimeout),
		parley.WithEngineOptions(
			runtime.WithStepBudget(cfg.Engine.StepBudget),
			runtime.WithMaxDepth(cfg.Engine.MaxDepth),
		),
	}

	classifierCfg := classify.DefaultConfig()
	classifierCfg.HighConfidence = cfg.Classifier.HighConfidence
	classifierCfg.Floor = cfg.Classifier.Floor
	classifierCfg.BlendWeight = cfg.Classifier.BlendWeight
	opts = append(opts, parley.WithClassifierConfig(classifierCfg))

	supervisorCfg := supervise.DefaultConfig()
	supervisorCfg.Threshold = cfg.Supervisor.Threshold
	supervisorCfg.MaxRetries = cfg.Supervisor.MaxRetries
	opts = append(opts, parley.WithSupervisorConfig(supervisorCfg))

	app := &App{Logger: logger, Workflows: workflows}

	var store ports.StateStore
	if cfg.Redis.Addr != "" {
		client := backend.NewClient(&backend.Options{
			Addr:     cfg.Redis.Addr,
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
		})
		if err := client.Ping(context.Background()).Err(); err != nil {
			_ = client.Close()
			return nil, fmt.Errorf("redis unreachable at %s: %w", cfg.Redis.Addr, err)
		}
		app.redisClient = client
		store = redisAdapter.NewStoreFromClient(client, redisAdapter.WithTTL(cfg.Redis.StateTTL))
		opts = append(opts,
			parley.WithKV(redisAdapter.NewKVFromClient(client)),
			parley.WithLocker(redisAdapter.NewLocker(client, "parley:lock:")),
		)
		logger.Info("using redis backend", "addr", cfg.Redis.Addr)
	} else if cfg.File.Dir != "" {
		store = file.New(cfg.File.Dir)
		logger.Info("using file backend", "dir", cfg.File.Dir)
	} else {
		store = memory.NewStore()
		logger.Info("using in-memory backend, state will not survive a restart")
	}

	// Privacy middleware sits between the engine and the backend, so
	// the masked or encrypted form is all the backend ever sees.
	if len(cfg.StateKey) > 0 {
		store = middleware.NewEncryptionMiddleware(middleware.EncryptionConfig{ActiveKey: cfg.StateKey})(store)
		logger.Info("state encryption at rest enabled")
	}
	if len(cfg.Privacy.PIIKeyPatterns) > 0 || len(cfg.Privacy.PIIValuePatterns) > 0 {
		store = middleware.NewPIIMiddleware(middleware.PIIConfig{
			KeyPatterns:   cfg.Privacy.PIIKeyPatterns,
			ValuePatterns: cfg.Privacy.PIIValuePatterns,
		})(store)
	}
	opts = append(opts, parley.WithStateStore(store))

	o, err := parley.New(reg, repo, opts...)
	if err != nil {
		_ = app.Close()
		return nil, err
	}
	if err := o.AddWorkflows(workflows...); err != nil {
		_ = app.Close()
		return nil, err
	}
	if err := o.Validate(); err != nil {
		_ = app.Close()
		return nil, err
	}

	app.Orchestrator = o
	return app, nil
}

// staticParams configures the built-in reply responder.
type staticParams struct {
	Reply string `yaml:"reply"`
}

// registerStaticResponders backs every node that carries a "reply"
// param with a canned-text responder, so workflow files are runnable
// without writing any Go. Placeholders of the form ${key} are filled
// from the flat variable namespace.
func registerStaticResponders(reg *registry.Registry, workflows []*domain.Workflow) {
	for _, w := range workflows {
		for _, node := range w.Nodes {
			if node.Responder == "" || len(node.Params) == 0 || reg.Has(node.Responder) {
				continue
			}
			var p staticParams
			if err := compiler.DecodeParams(node.Params, &p); err != nil || p.Reply == "" {
				continue
			}
			reply := p.Reply
			reg.RegisterFunc(node.Responder, func(ctx context.Context, state *domain.ConversationState, flat map[string]any) (*domain.PartialUpdate, error) {
				return &domain.PartialUpdate{
					Messages: []domain.Message{{
						Role:    domain.RoleAssistant,
						Content: interpolate(reply, flat),
					}},
				}, nil
			})
		}
	}
}

func interpolate(template string, flat map[string]any) string {
	out := template
	for key, value := range flat {
		placeholder := "${" + key + "}"
		if strings.Contains(out, placeholder) {
			out = strings.ReplaceAll(out, placeholder, fmt.Sprintf("%v", value))
		}
	}
	return out
}
