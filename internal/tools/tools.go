// Package tools is the closed registry of typed operations the
// orchestrator dispatches player intents to. Every tool declares its
// side-effect class; state-write tools never mutate the snapshot they are
// given and instead return MutationProposals the orchestrator applies
// atomically at commit time.
package tools

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sort"

	"github.com/questweaver/questweaver/internal/agent"
	"github.com/questweaver/questweaver/internal/content"
	"github.com/questweaver/questweaver/internal/game"
	"github.com/questweaver/questweaver/internal/store"
)

// Effect classifies what a tool touches. The orchestrator uses the class
// to decide what a tool may be handed and whether its result carries
// mutations.
type Effect string

const (
	// EffectPure tools compute over their arguments only.
	EffectPure Effect = "pure"

	// EffectStateRead tools read the game snapshot or the event log.
	EffectStateRead Effect = "state-read"

	// EffectStateWrite tools return mutation proposals.
	EffectStateWrite Effect = "state-write"

	// EffectLLM tools call a model and may also return mutations.
	EffectLLM Effect = "llm-invoking"
)

// ErrUnknownTool marks dispatch to a name outside the registry.
var ErrUnknownTool = errors.New("tools: unknown tool")

// MutationProposal is one deferred state change. Apply must be pure: it
// takes the then-current state and returns the changed copy, so proposals
// from several tools compose in order.
type MutationProposal struct {
	Description string
	Apply       func(game.GameState) (game.GameState, error)
}

// Result is a tool's complete answer. Text feeds the narrator context;
// Data carries the typed payload for callers that want structure.
type Result struct {
	Text      string
	Data      any
	Mutations []MutationProposal

	// Events are unsaved log entries describing what the tool did. The
	// orchestrator assigns ids when it commits the turn.
	Events []game.GameEvent
}

// Args are the common typed arguments tools draw from. Tools ignore fields
// they do not use.
type Args struct {
	Target   string
	NPCID    string
	ItemID   string
	Query    string
	Hint     string
	Quantity int
	Limit    int

	// Intent is set by the orchestrator for validation tools.
	Intent agent.Intent

	// Seed drives tool-local randomness (combat), derived from the event
	// log position so replays are deterministic.
	Seed int64

	// Target override for combat; nil improvises one from the location.
	CombatTarget *game.CombatTarget
}

// Request bundles the immutable state snapshot with the arguments.
type Request struct {
	State game.GameState
	Args  Args
}

// Tool is one registry entry.
type Tool struct {
	Name        string
	Description string
	Effect      Effect
	Run         func(ctx context.Context, req Request) (Result, error)
}

// Deps are the collaborators the builtin tools close over.
type Deps struct {
	Store     store.Store
	Intent    *agent.IntentAnalyzer
	NPCs      *agent.NPCGenerator
	Locations *agent.LocationGenerator
	Quests    *agent.QuestGenerator
	Library   *content.Library
	Log       *slog.Logger
}

// Registry is the closed tool set. It is populated once at construction
// and read-only afterwards, so lookups need no locking.
type Registry struct {
	deps  Deps
	tools map[string]Tool
}

// NewRegistry builds the registry with every builtin tool installed.
func NewRegistry(deps Deps) *Registry {
	if deps.Log == nil {
		deps.Log = slog.Default()
	}
	r := &Registry{deps: deps, tools: make(map[string]Tool)}
	for _, t := range r.builtins() {
		r.tools[t.Name] = t
	}
	return r
}

func (r *Registry) builtins() []Tool {
	return []Tool{
		r.getPlayerTool(),
		r.getLocationTool(),
		r.inspectInventoryTool(),
		r.searchEventsTool(),
		r.recentEventsTool(),
		r.analyzeIntentTool(),
		r.validateActionTool(),
		r.resolveCombatTool(),
		r.equipItemTool(),
		r.useItemTool(),
		r.shopBuyTool(),
		r.shopSellTool(),
		r.generateNPCTool(),
		r.generateLocationTool(),
		r.generateQuestTool(),
	}
}

// Get returns a tool by name.
func (r *Registry) Get(name string) (Tool, bool) {
	t, ok := r.tools[name]
	return t, ok
}

// Names lists registered tools in sorted order.
func (r *Registry) Names() []string {
	names := make([]string, 0, len(r.tools))
	for n := range r.tools {
		names = append(names, n)
	}
	sort.Strings(names)
	return names
}

// Invoke dispatches by name. Results are returned as-is; mutations are the
// caller's to apply.
func (r *Registry) Invoke(ctx context.Context, name string, req Request) (Result, error) {
	t, ok := r.tools[name]
	if !ok {
		return Result{}, fmt.Errorf("tools: %q: %w", name, ErrUnknownTool)
	}
	res, err := t.Run(ctx, req)
	if err != nil {
		r.deps.Log.Warn("tool failed", "tool", name, "game_id", req.State.GameID, "err", err)
		return res, err
	}
	r.deps.Log.Debug("tool ran", "tool", name, "game_id", req.State.GameID,
		"effect", t.Effect, "mutations", len(res.Mutations))
	return res, nil
}
