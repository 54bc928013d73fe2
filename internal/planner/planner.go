// Package planner runs the multi-agent story planning pipeline: it fans
// four perspective agents out over the current game state, merges their
// proposals through the consensus engine, and swaps the accepted beats in
// as a new plot graph version.
package planner

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"github.com/questweaver/questweaver/internal/agent"
	"github.com/questweaver/questweaver/internal/game"
	"github.com/questweaver/questweaver/internal/observe"
	"github.com/questweaver/questweaver/internal/plot"
	"github.com/questweaver/questweaver/internal/store"
)

// Mode distinguishes the synchronous game-creation run from the
// level-triggered background runs.
type Mode string

const (
	ModeInitial  Mode = "initial"
	ModePeriodic Mode = "periodic"
)

// ErrSuperseded is returned by a run that lost to a newer invocation for
// the same game. A superseded run persists nothing.
var ErrSuperseded = errors.New("planner: run superseded by a newer invocation")

// Proposer is the planning surface of a perspective agent.
// *agent.PerspectiveAgent satisfies it; tests substitute stubs.
type Proposer interface {
	Propose(ctx context.Context, pc agent.PlannerContext) (plot.Proposal, error)
}

// Definer refreshes the game's system identity. *agent.SystemDefiner
// satisfies it.
type Definer interface {
	Define(ctx context.Context, st game.SystemType, ws game.WorldSettings) (game.SystemDefinition, error)
}

// Outcome is the product of one completed planner run.
type Outcome struct {
	Graph  plot.Graph
	Result plot.Result

	// System is the (possibly refreshed) system definition.
	System game.SystemDefinition

	// NextReplanLevel is the player level at which the next periodic run
	// should fire.
	NextReplanLevel int

	Session store.PlanningSession
}

// defaultAgentTimeout bounds each perspective agent's proposal call when
// the planner is constructed without an explicit timeout.
const defaultAgentTimeout = 45 * time.Second

// recentEventsForPlanning caps the event-log excerpt agents receive.
const recentEventsForPlanning = 15

// Planner coordinates planning runs. One run per game is live at a time:
// starting a new run cancels the previous one for the same game, and the
// cancelled run persists nothing.
type Planner struct {
	store   store.Store
	agents  map[plot.AgentType]Proposer
	definer Definer
	timeout time.Duration
	log     *slog.Logger
	metrics *observe.Metrics

	mu       sync.Mutex
	counters map[string]int                // gameID -> latest issued invocation counter
	cancels  map[string]context.CancelFunc // gameID -> cancel of the live run
}

// Option customises a Planner.
type Option func(*Planner)

// WithAgentTimeout bounds each perspective agent's call.
func WithAgentTimeout(d time.Duration) Option {
	return func(p *Planner) {
		if d > 0 {
			p.timeout = d
		}
	}
}

// WithDefiner enables system-definition refresh on initial runs.
func WithDefiner(d Definer) Option {
	return func(p *Planner) { p.definer = d }
}

// WithLogger overrides the default logger.
func WithLogger(l *slog.Logger) Option {
	return func(p *Planner) { p.log = l }
}

// WithMetrics overrides the default metrics instance.
func WithMetrics(m *observe.Metrics) Option {
	return func(p *Planner) { p.metrics = m }
}

// New builds a planner over the store and perspective agents. Missing
// agents are tolerated: an absent perspective contributes an empty
// proposal to every run.
func New(st store.Store, agents map[plot.AgentType]Proposer, opts ...Option) *Planner {
	p := &Planner{
		store:    st,
		agents:   agents,
		timeout:  defaultAgentTimeout,
		log:      slog.Default(),
		metrics:  observe.DefaultMetrics(),
		counters: map[string]int{},
		cancels:  map[string]context.CancelFunc{},
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// perspectives is the fixed fan-out order.
var perspectives = []plot.AgentType{
	plot.AgentCharacter, plot.AgentWorld, plot.AgentConflict, plot.AgentMystery,
}

// Plan runs one planning round for the game synchronously. A concurrent
// newer Plan call for the same game cancels this one, which then returns
// ErrSuperseded without persisting anything.
func (p *Planner) Plan(ctx context.Context, gs game.GameState, mode Mode) (Outcome, error) {
	runCtx, counter := p.begin(ctx, gs.GameID)
	defer p.end(gs.GameID, counter)

	out, err := p.run(runCtx, gs, mode, counter)
	status := "completed"
	switch {
	case errors.Is(err, ErrSuperseded):
		status = "superseded"
	case err != nil:
		status = "failed"
	}
	p.metrics.RecordPlannerRun(ctx, string(mode), status)
	return out, err
}

// PlanAsync starts a periodic run in the background, detached from the
// caller's context so a finishing turn does not cancel it. Failures are
// logged, not returned.
func (p *Planner) PlanAsync(gs game.GameState) {
	go func() {
		out, err := p.Plan(context.Background(), gs, ModePeriodic)
		switch {
		case errors.Is(err, ErrSuperseded):
			p.log.Info("planner run superseded", "gameId", gs.GameID)
		case err != nil:
			p.log.Error("planner run failed", "gameId", gs.GameID, "error", err)
		default:
			p.log.Info("planner run completed",
				"gameId", gs.GameID,
				"graphVersion", out.Graph.Version,
				"accepted", len(out.Result.Nodes),
				"consensus", out.Result.Type,
			)
		}
	}()
}

// begin issues the next invocation counter for the game and cancels any
// run still live under an older counter.
func (p *Planner) begin(ctx context.Context, gameID string) (context.Context, int) {
	p.mu.Lock()
	defer p.mu.Unlock()

	p.counters[gameID]++
	counter := p.counters[gameID]
	if cancel, ok := p.cancels[gameID]; ok {
		cancel()
	}
	runCtx, cancel := context.WithCancel(ctx)
	p.cancels[gameID] = cancel
	return runCtx, counter
}

// end releases the run's cancel slot if it still owns it.
func (p *Planner) end(gameID string, counter int) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.counters[gameID] == counter {
		if cancel, ok := p.cancels[gameID]; ok {
			cancel()
			delete(p.cancels, gameID)
		}
	}
}

// superseded reports whether a newer invocation has been issued since
// counter, or the run context was cancelled.
func (p *Planner) superseded(ctx context.Context, gameID string, counter int) bool {
	if ctx.Err() != nil {
		return true
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.counters[gameID] != counter
}

func (p *Planner) run(ctx context.Context, gs game.GameState, mode Mode, counter int) (Outcome, error) {
	system := gs.System
	if mode == ModeInitial && p.definer != nil {
		def, err := p.definer.Define(ctx, gs.SystemType, gs.WorldSettings)
		if err != nil {
			p.log.Warn("system definition degraded to default",
				"gameId", gs.GameID, "error", err)
		}
		if def.Name != "" {
			system = def
		}
	}

	prev, err := p.store.LoadPlotGraph(ctx, gs.GameID)
	if err != nil {
		if !errors.Is(err, store.ErrNotFound) {
			return Outcome{}, fmt.Errorf("planner: load graph: %w", err)
		}
		prev = plot.NewGraph(gs.GameID)
	}

	pc := p.plannerContext(ctx, gs, system, prev)
	proposals := p.gather(ctx, pc)
	if p.superseded(ctx, gs.GameID, counter) {
		return Outcome{}, ErrSuperseded
	}

	result := plot.Merge(proposals)
	p.metrics.RecordConsensus(ctx, string(result.Type))
	for _, c := range result.Conflicts {
		p.log.Info("consensus conflict resolved",
			"gameId", gs.GameID, "kind", c.Kind, "description", c.Description)
	}

	next := compose(prev, result)
	if p.superseded(ctx, gs.GameID, counter) {
		return Outcome{}, ErrSuperseded
	}

	if err := p.store.SavePlotGraph(ctx, next); err != nil {
		if errors.Is(err, store.ErrVersionConflict) {
			// A concurrent run won the version race; treat it as ours losing.
			return Outcome{}, ErrSuperseded
		}
		return Outcome{}, fmt.Errorf("planner: save graph: %w", err)
	}

	session := store.PlanningSession{
		ID:                uuid.NewString(),
		GameID:            gs.GameID,
		InvocationCounter: counter,
		Mode:              string(mode),
		PlayerLevel:       gs.Sheet.Level,
		Proposals:         proposals,
		Result:            result,
		GraphVersion:      next.Version,
		CreatedAt:         time.Now().UTC(),
	}
	if err := p.store.SavePlanningSession(ctx, session); err != nil {
		return Outcome{}, fmt.Errorf("planner: save session: %w", err)
	}

	return Outcome{
		Graph:           next,
		Result:          result,
		System:          system,
		NextReplanLevel: NextReplanLevel(gs.Sheet.Level),
		Session:         session,
	}, nil
}

// gather fans the perspective agents out in parallel, each under its own
// timeout. A failed or absent agent contributes an empty proposal; a
// single bad agent never sinks the round.
func (p *Planner) gather(ctx context.Context, pc agent.PlannerContext) []plot.Proposal {
	proposals := make([]plot.Proposal, len(perspectives))

	g, gctx := errgroup.WithContext(ctx)
	for i, typ := range perspectives {
		i, typ := i, typ
		proposals[i] = plot.Proposal{Agent: typ}
		prop, ok := p.agents[typ]
		if !ok {
			continue
		}
		g.Go(func() error {
			agentCtx, cancel := context.WithTimeout(gctx, p.timeout)
			defer cancel()

			proposal, err := prop.Propose(agentCtx, pc)
			if err != nil {
				p.log.Warn("perspective agent degraded to empty proposal",
					"agent", typ, "error", err)
				return nil
			}
			proposal.Agent = typ
			proposals[i] = proposal
			return nil
		})
	}
	_ = g.Wait()
	return proposals
}

// plannerContext assembles the shared snapshot every agent receives.
func (p *Planner) plannerContext(ctx context.Context, gs game.GameState, system game.SystemDefinition, prev plot.Graph) agent.PlannerContext {
	pc := agent.PlannerContext{
		SystemSummary: renderSystem(system),
		StateSummary:  renderState(gs),
		PlayerLevel:   gs.Sheet.Level,
	}
	for _, t := range prev.Threads() {
		line := fmt.Sprintf("%s: %d of %d beats completed, %s", t.ID, t.Completed, len(t.Nodes), t.Status)
		if t.Category != "" {
			line = fmt.Sprintf("%s (%s): %d of %d beats completed, %s",
				t.ID, t.Category, t.Completed, len(t.Nodes), t.Status)
		}
		pc.ActiveThreads = append(pc.ActiveThreads, line)
	}
	events, err := p.store.RecentEvents(ctx, gs.GameID, recentEventsForPlanning)
	if err != nil {
		p.log.Warn("recent events unavailable for planning",
			"gameId", gs.GameID, "error", err)
	}
	for _, e := range events {
		pc.RecentEvents = append(pc.RecentEvents, e.Text)
	}
	return pc
}

// compose builds the next graph version: the previous graph's non-terminal
// portion plus the accepted beats and edges, repaired of dangling edges.
func compose(prev plot.Graph, result plot.Result) plot.Graph {
	next := prev.NonTerminal()
	for _, n := range result.Nodes {
		next.Nodes[n.ID] = n
	}
	for _, e := range result.Edges {
		next.Edges[e.ID] = e
	}
	next, dropped := next.Repair()
	if len(dropped) > 0 {
		slog.Warn("dropped dangling edges while composing graph",
			"gameId", prev.GameID, "edges", dropped)
	}
	next.Version = prev.Version + 1
	return next
}

// NextReplanLevel returns the player level at which the next periodic
// planning run should fire for a character currently at level.
func NextReplanLevel(level int) int {
	return level + game.GradeFromLevel(level).ReplanStride()
}

func renderSystem(s game.SystemDefinition) string {
	out := fmt.Sprintf("%s — %s.\nCentral mystery: %s\nThreat: %s\nTheme: %s",
		s.Name, s.Personality, s.CentralMystery, s.Threat, s.Theme)
	for _, h := range s.Hooks {
		out += "\nHook: " + h
	}
	return out
}

func renderState(gs game.GameState) string {
	quests := make([]string, 0, len(gs.ActiveQuests))
	for id := range gs.ActiveQuests {
		quests = append(quests, id)
	}
	return fmt.Sprintf("level %d (%s), at %s, %d active quests %v, %d deaths",
		gs.Sheet.Level, game.GradeFromLevel(gs.Sheet.Level),
		gs.CurrentLocation.Name, len(quests), quests, gs.DeathCount)
}
