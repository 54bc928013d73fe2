// Package app wires the QuestWeaver subsystems into a running server.
//
// New builds everything from config and providers: store, content library,
// agents, tool registry, planner, orchestrator, transport. Run serves HTTP
// until the context ends; Shutdown tears the subsystems down in order.
//
// For testing, inject doubles via functional options (WithStore,
// WithLogger). When an option is not provided, New creates the real
// implementation from the config.
package app

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/questweaver/questweaver/internal/agent"
	"github.com/questweaver/questweaver/internal/config"
	"github.com/questweaver/questweaver/internal/content"
	"github.com/questweaver/questweaver/internal/orchestrator"
	"github.com/questweaver/questweaver/internal/planner"
	"github.com/questweaver/questweaver/internal/plot"
	"github.com/questweaver/questweaver/internal/resilience"
	"github.com/questweaver/questweaver/internal/store"
	"github.com/questweaver/questweaver/internal/store/memory"
	"github.com/questweaver/questweaver/internal/store/postgres"
	"github.com/questweaver/questweaver/internal/tools"
	"github.com/questweaver/questweaver/internal/ui"
	"github.com/questweaver/questweaver/pkg/provider/embeddings"
	"github.com/questweaver/questweaver/pkg/provider/llm"
)

// Providers holds one interface value per provider slot. Nil Embeddings
// disables semantic event indexing. AgentLLMs maps an agent role (see
// [config.AgentNames]) to a dedicated provider built from its model
// override; roles without an entry share LLM.
type Providers struct {
	LLM        llm.Provider
	Embeddings embeddings.Provider
	AgentLLMs  map[string]llm.Provider
}

// App owns all subsystem lifetimes.
type App struct {
	cfg       *config.Config
	providers *Providers
	log       *slog.Logger

	store   store.Store
	library *content.Library
	orch    *orchestrator.Orchestrator
	server  *ui.Server
	indexer *eventIndexer

	// closers run in order during Shutdown.
	closers  []func() error
	stopOnce sync.Once
}

// Option is a functional option for New. Use these to inject test doubles.
type Option func(*App)

// WithStore injects a store instead of creating one from config.
func WithStore(s store.Store) Option {
	return func(a *App) { a.store = s }
}

// WithLogger replaces the default logger.
func WithLogger(log *slog.Logger) Option {
	return func(a *App) { a.log = log }
}

// New wires the full engine. The providers struct comes from main
// (populated via the config registry).
func New(ctx context.Context, cfg *config.Config, providers *Providers, opts ...Option) (*App, error) {
	a := &App{
		cfg:       cfg,
		providers: providers,
		log:       slog.Default(),
	}
	for _, o := range opts {
		o(a)
	}
	if providers == nil || providers.LLM == nil {
		return nil, errors.New("app: an LLM provider is required")
	}

	if err := a.initStore(ctx); err != nil {
		return nil, fmt.Errorf("app: init store: %w", err)
	}

	lib, err := content.Load()
	if err != nil {
		return nil, fmt.Errorf("app: load content: %w", err)
	}
	a.library = lib

	a.initIndexer()
	a.initEngine()

	a.server = ui.NewServer(a.orch, a.log)
	return a, nil
}

// initStore opens the configured Postgres store, or falls back to the
// in-memory one when no DSN is set.
func (a *App) initStore(ctx context.Context) error {
	if a.store != nil {
		return nil
	}

	dsn := a.cfg.Storage.PostgresDSN
	if dsn == "" {
		a.log.Warn("no postgres_dsn configured; using the in-memory store, saves will not survive a restart")
		a.store = memory.NewStore()
		return nil
	}

	dims := a.cfg.Storage.EmbeddingDimensions
	if dims == 0 {
		dims = 1536
	}
	if a.providers.Embeddings != nil && a.providers.Embeddings.Dimensions() != dims {
		return fmt.Errorf("embedding_dimensions %d does not match provider %s (%d)",
			dims, a.providers.Embeddings.ModelID(), a.providers.Embeddings.Dimensions())
	}

	pg, err := postgres.NewStore(ctx, dsn, dims)
	if err != nil {
		return err
	}
	a.store = pg
	a.closers = append(a.closers, func() error {
		pg.Close()
		return nil
	})
	return nil
}

// initEngine builds the agent ensemble, tool registry, planner, and
// orchestrator. Every model call goes through a circuit-breaking failover
// wrapper so one flaky backend degrades agents instead of sinking turns.
func (a *App) initEngine() {
	guard := func(role string) llm.Provider {
		p := a.providers.LLM
		name := a.cfg.Providers.LLM.Name
		if override, ok := a.providers.AgentLLMs[role]; ok && override != nil {
			p = override
			name = name + "/" + role
		}
		return resilience.NewLLMFallback(p, name, resilience.FallbackConfig{})
	}

	registry := tools.NewRegistry(tools.Deps{
		Store:     a.store,
		Intent:    agent.NewIntentAnalyzer(guard("intent")),
		NPCs:      agent.NewNPCGenerator(guard("generator")),
		Locations: agent.NewLocationGenerator(guard("generator")),
		Quests:    agent.NewQuestGenerator(guard("generator")),
		Library:   a.library,
		Log:       a.log,
	})

	perspectives := map[plot.AgentType]planner.Proposer{
		plot.AgentCharacter: agent.NewPerspectiveAgent(plot.AgentCharacter, guard("character")),
		plot.AgentWorld:     agent.NewPerspectiveAgent(plot.AgentWorld, guard("world")),
		plot.AgentConflict:  agent.NewPerspectiveAgent(plot.AgentConflict, guard("conflict")),
		plot.AgentMystery:   agent.NewPerspectiveAgent(plot.AgentMystery, guard("mystery")),
	}
	plannerOpts := []planner.Option{
		planner.WithDefiner(agent.NewSystemDefiner(guard("definer"))),
		planner.WithLogger(a.log),
	}
	if a.cfg.Planner.AgentTimeout > 0 {
		plannerOpts = append(plannerOpts, planner.WithAgentTimeout(a.cfg.Planner.AgentTimeout))
	}
	pl := planner.New(a.store, perspectives, plannerOpts...)

	var orchOpts []orchestrator.Option
	if a.indexer != nil {
		orchOpts = append(orchOpts, orchestrator.WithRecaller(a.indexer))
	}
	a.orch = orchestrator.New(a.store, registry, a.library, pl, guard("narrator"), a.log, orchOpts...)
}

// initIndexer starts semantic event indexing when an embeddings provider is
// configured.
func (a *App) initIndexer() {
	if a.providers.Embeddings == nil {
		a.log.Info("no embeddings provider configured; semantic event recall disabled")
		return
	}
	a.indexer = newEventIndexer(a.store, a.providers.Embeddings, a.log)
}

// Handler returns the HTTP surface, for serving or for tests.
func (a *App) Handler() http.Handler {
	return a.server.Handler()
}

// Run serves HTTP until ctx is cancelled, then drains the server.
func (a *App) Run(ctx context.Context) error {
	srv := &http.Server{
		Addr:              a.cfg.Server.ListenAddr,
		Handler:           a.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	if a.indexer != nil {
		go a.indexer.run(ctx)
	}

	errCh := make(chan error, 1)
	go func() {
		var err error
		if tls := a.cfg.Server.TLS; tls != nil {
			err = srv.ListenAndServeTLS(tls.CertFile, tls.KeyFile)
		} else {
			err = srv.ListenAndServe()
		}
		if !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()

	a.log.Info("server listening", "addr", a.cfg.Server.ListenAddr, "tls", a.cfg.Server.TLS != nil)

	select {
	case err := <-errCh:
		return fmt.Errorf("app: serve: %w", err)
	case <-ctx.Done():
	}

	drainCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(drainCtx); err != nil {
		a.log.Warn("http drain incomplete", "error", err)
	}
	return ctx.Err()
}

// Shutdown tears down the subsystems in order, respecting the context
// deadline.
func (a *App) Shutdown(ctx context.Context) error {
	var shutdownErr error
	a.stopOnce.Do(func() {
		a.log.Info("shutting down", "closers", len(a.closers))
		for i, closer := range a.closers {
			select {
			case <-ctx.Done():
				a.log.Warn("shutdown deadline exceeded", "remaining", len(a.closers)-i)
				shutdownErr = ctx.Err()
				return
			default:
			}
			if err := closer(); err != nil {
				a.log.Warn("closer failed", "index", i, "error", err)
			}
		}
	})
	return shutdownErr
}
