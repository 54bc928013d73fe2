// Package orchestrator runs the per-turn pipeline: snapshot, intent
// classification, validation, tool dispatch, insight tracking, plot
// trigger evaluation, streamed narration, and the transactional commit of
// events and state. Turns are serialised per game; a second turn arriving
// while one runs is rejected with ErrBusy rather than queued.
package orchestrator

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/questweaver/questweaver/internal/agent"
	"github.com/questweaver/questweaver/internal/content"
	"github.com/questweaver/questweaver/internal/game"
	"github.com/questweaver/questweaver/internal/observe"
	"github.com/questweaver/questweaver/internal/planner"
	"github.com/questweaver/questweaver/internal/plot"
	"github.com/questweaver/questweaver/internal/skill"
	"github.com/questweaver/questweaver/internal/store"
	"github.com/questweaver/questweaver/internal/tools"
	"github.com/questweaver/questweaver/pkg/provider/llm"
)

// ErrBusy is returned when a turn is already in flight for the game. The
// caller should tell the player to wait, not queue the input.
var ErrBusy = errors.New("orchestrator: a turn is already running for this game")

// recentEventsForNarration caps the event excerpt in the narrator prompt.
const recentEventsForNarration = 8

// recalledMemories caps the semantically recalled events per turn.
const recalledMemories = 3

// Recaller surfaces past events semantically similar to the player's input,
// beyond the recent-events window.
type Recaller interface {
	Recall(ctx context.Context, gameID, query string, topK int) ([]store.SimilarEvent, error)
}

// Orchestrator owns the turn pipeline and the in-memory state cell of
// every loaded game.
type Orchestrator struct {
	store   store.Store
	tools   *tools.Registry
	library *content.Library
	planner *planner.Planner
	llm     llm.Provider
	log     *slog.Logger
	metrics *observe.Metrics
	recall  Recaller // nil disables semantic memory

	mu    sync.Mutex
	slots map[string]*gameSlot
}

// gameSlot is the per-game serialisation point and state cell. All fields
// besides busy are owned by the goroutine currently holding the slot.
type gameSlot struct {
	busy bool

	state       game.GameState
	narrator    *agent.Narrator
	foreshadow  plot.ForeshadowQueue
	playtime    time.Duration
	turn        int
	lastEventID int64
	nextReplan  int
}

// Option tweaks an orchestrator at construction.
type Option func(*Orchestrator)

// WithRecaller enables semantic memory in the narrator context.
func WithRecaller(r Recaller) Option {
	return func(o *Orchestrator) { o.recall = r }
}

// New builds an orchestrator. The llm provider feeds each game's narrator
// session; everything else is shared.
func New(st store.Store, reg *tools.Registry, lib *content.Library, pl *planner.Planner, provider llm.Provider, log *slog.Logger, opts ...Option) *Orchestrator {
	if log == nil {
		log = slog.Default()
	}
	o := &Orchestrator{
		store:   st,
		tools:   reg,
		library: lib,
		planner: pl,
		llm:     provider,
		log:     log,
		metrics: observe.DefaultMetrics(),
		slots:   map[string]*gameSlot{},
	}
	for _, opt := range opts {
		opt(o)
	}
	return o
}

// NewGameRequest carries everything needed to start a game.
type NewGameRequest struct {
	PlayerName    string
	SystemType    game.SystemType
	Difficulty    game.Difficulty
	ClassID       string // empty starts classless; CLASS_SELECTION applies one later
	Backstory     string
	WorldSettings game.WorldSettings
}

// NewGame creates a game: a fresh character, the system type's starting
// location set, the persisted records, and a synchronous initial planning
// run that gives the campaign its system definition and first plot graph.
func (o *Orchestrator) NewGame(ctx context.Context, req NewGameRequest) (game.GameState, error) {
	if req.PlayerName == "" {
		return game.GameState{}, errors.New("orchestrator: player name is required")
	}
	if !req.SystemType.IsValid() {
		req.SystemType = game.SystemIntegration
	}
	if !req.Difficulty.IsValid() {
		req.Difficulty = game.DifficultyNormal
	}

	sheet, err := o.newSheet(req.ClassID)
	if err != nil {
		return game.GameState{}, err
	}

	locs := o.library.StartingLocations(req.SystemType)
	if len(locs) == 0 {
		return game.GameState{}, fmt.Errorf("orchestrator: no starting locations for %s", req.SystemType)
	}
	start := locs[0]

	gs := game.GameState{
		GameID:              uuid.NewString(),
		SystemType:          req.SystemType,
		WorldSettings:       req.WorldSettings,
		Sheet:               sheet,
		CurrentLocation:     start,
		PlayerName:          req.PlayerName,
		Backstory:           req.Backstory,
		DiscoveredLocations: map[string]bool{start.ID: true},
	}
	g := game.Game{
		ID:         gs.GameID,
		PlayerName: req.PlayerName,
		SystemType: req.SystemType,
		Difficulty: req.Difficulty,
		Level:      sheet.Level,
	}
	if err := o.store.CreateGame(ctx, g, gs); err != nil {
		return game.GameState{}, fmt.Errorf("orchestrator: create game: %w", err)
	}

	out, err := o.planner.Plan(ctx, gs, planner.ModeInitial)
	if err != nil {
		// The game exists; a failed first plan is recoverable on the next
		// periodic run.
		o.log.Warn("initial planning failed", "gameId", gs.GameID, "error", err)
	} else {
		gs.System = out.System
	}
	if err := o.store.SaveGame(ctx, gs, 0); err != nil {
		return game.GameState{}, fmt.Errorf("orchestrator: save initial state: %w", err)
	}

	setup := game.NewEvent(gs.GameID, game.EventSystemNotification, game.CategorySetup,
		fmt.Sprintf("%s awakens under %s at %s.", req.PlayerName, gs.System.Name, start.Name))
	logged, err := o.store.LogEvent(ctx, setup.WithImportance(game.ImportanceHigh))
	if err != nil {
		return game.GameState{}, fmt.Errorf("orchestrator: log setup event: %w", err)
	}

	slot := &gameSlot{
		state:       gs,
		narrator:    agent.NewNarrator(o.llm),
		lastEventID: logged.ID,
		nextReplan:  planner.NextReplanLevel(sheet.Level),
	}
	if err == nil && out.NextReplanLevel > 0 {
		slot.nextReplan = out.NextReplanLevel
	}
	o.mu.Lock()
	o.slots[gs.GameID] = slot
	o.mu.Unlock()

	o.metrics.ActiveGames.Add(ctx, 1)
	return gs, nil
}

func (o *Orchestrator) newSheet(classID string) (game.CharacterSheet, error) {
	if classID == "" {
		base := game.Stats{Strength: 10, Dexterity: 10, Constitution: 10,
			Intelligence: 10, Wisdom: 10, Charisma: 10, Defense: 10}
		return game.NewCharacterSheet(base, 100, 50, 100), nil
	}
	cs, err := o.library.NewCharacter(classID)
	if err != nil {
		return game.CharacterSheet{}, fmt.Errorf("orchestrator: %w", err)
	}
	return cs, nil
}

// TurnResult is what one committed turn produced.
type TurnResult struct {
	Intent agent.IntentResult

	// Events are the committed log entries, ids assigned, in commit order.
	Events []game.GameEvent

	// Narration is the full narrator text, empty when the stream was
	// cancelled before finishing.
	Narration          string
	NarrationCancelled bool

	State game.GameState
}

// PlayTurn runs the full pipeline for one player input. emit receives each
// narration chunk in order; an emit error or a cancelled context stops the
// stream at the next chunk boundary, discarding the uncommitted narration
// while keeping the turn's state mutations.
func (o *Orchestrator) PlayTurn(ctx context.Context, gameID, input string, emit func(string) error) (TurnResult, error) {
	start := time.Now()
	slot, err := o.acquire(ctx, gameID)
	if err != nil {
		return TurnResult{}, err
	}
	defer o.release(gameID)
	defer func() {
		o.metrics.TurnDuration.Record(ctx, time.Since(start).Seconds())
	}()

	input = strings.TrimSpace(input)
	snapshot := slot.state
	slot.turn++

	ir := o.classify(ctx, snapshot, input)

	if verr := tools.ValidateAction(snapshot, ir.Intent, ir.Target); verr != nil {
		return o.rejectTurn(ctx, slot, ir, verr, emit, start)
	}

	results, derr := o.dispatch(ctx, slot, snapshot, input, ir)
	if derr != nil {
		return o.rejectTurn(ctx, slot, ir, derr, emit, start)
	}

	state := snapshot
	var events []game.GameEvent
	var toolTexts []string
	for _, res := range results {
		for _, m := range res.Mutations {
			next, merr := m.Apply(state)
			if merr != nil {
				o.log.Warn("mutation skipped", "gameId", gameID,
					"mutation", m.Description, "error", merr)
				continue
			}
			state = next
		}
		events = append(events, res.Events...)
		if res.Text != "" {
			toolTexts = append(toolTexts, res.Text)
		}
	}

	state, insightEvents := o.trackInsight(state, input, ir.Intent)
	events = append(events, insightEvents...)

	triggered, plotEvents := o.firePlotTriggers(ctx, slot, state)
	events = append(events, plotEvents...)

	narration, cancelled := o.narrate(ctx, slot, state, input, ir, toolTexts, triggered, emit)
	if narration != "" && !cancelled {
		events = append(events, game.NewEvent(gameID, game.EventNarratorText,
			game.CategoryNarrative, narration))
		// The first committed narration is the opening scene.
		state.OpeningNarrationPlayed = true
	}

	slot.playtime += time.Since(start)
	committed, err := o.commit(ctx, slot, state, events)
	if err != nil {
		return TurnResult{}, err
	}
	slot.state = state

	o.scheduleReplan(slot, state)

	return TurnResult{
		Intent:             ir,
		Events:             committed,
		Narration:          narration,
		NarrationCancelled: cancelled,
		State:              state,
	}, nil
}

// rejectTurn handles an invalid or failed action: the reason goes to the
// player and the log as a SYSTEM_NOTIFICATION, state stays untouched.
func (o *Orchestrator) rejectTurn(ctx context.Context, slot *gameSlot, ir agent.IntentResult, cause error, emit func(string) error, start time.Time) (TurnResult, error) {
	notice := game.NewEvent(slot.state.GameID, game.EventSystemNotification,
		game.CategorySystem, cause.Error())
	slot.playtime += time.Since(start)
	committed, err := o.commit(ctx, slot, slot.state, []game.GameEvent{notice})
	if err != nil {
		return TurnResult{}, err
	}
	if emit != nil {
		if eerr := emit(cause.Error()); eerr != nil {
			o.log.Debug("notice emit failed", "gameId", slot.state.GameID, "error", eerr)
		}
	}
	return TurnResult{Intent: ir, Events: committed, State: slot.state}, nil
}

// classify runs the intent tool, falling back to keyword heuristics when
// the model path fails entirely.
func (o *Orchestrator) classify(ctx context.Context, gs game.GameState, input string) agent.IntentResult {
	res, err := o.tools.Invoke(ctx, "analyze_intent", tools.Request{
		State: gs,
		Args:  tools.Args{Query: input},
	})
	if err == nil {
		if ir, ok := res.Data.(agent.IntentResult); ok && ir.Intent.IsValid() {
			return ir
		}
	}
	return agent.FallbackIntent(input)
}

// trackInsight classifies the input into action tokens and advances the
// insight tracker, regardless of intent.
func (o *Orchestrator) trackInsight(gs game.GameState, input string, intent agent.Intent) (game.GameState, []game.GameEvent) {
	actx := skill.ActionContext{
		LocationTags: gs.CurrentLocation.Tags,
		InCombat:     intent == agent.IntentCombat,
	}
	if w := gs.Sheet.Equipment.Weapon; w != nil {
		actx.WeaponType = w.WeaponType
	}
	tokens := skill.Classify(input, actx)
	if len(tokens) == 0 {
		return gs, nil
	}

	sheet, updates, err := skill.TrackActions(gs.Sheet, tokens, o.library.Thresholds(), o.library)
	if err != nil {
		o.log.Warn("insight tracking failed", "gameId", gs.GameID, "error", err)
		return gs, nil
	}
	gs.Sheet = sheet

	var events []game.GameEvent
	for _, u := range updates {
		e := game.NewEvent(gs.GameID, game.EventInsightProgress, game.CategorySystem, u.Message)
		if u.Kind == skill.UpdateGranted {
			e = game.NewEvent(gs.GameID, game.EventLearnedFromInsight, game.CategorySystem, u.Message).
				WithImportance(game.ImportanceHigh)
		}
		events = append(events, e)
	}
	return gs, events
}

// firePlotTriggers transitions every eligible PENDING node to TRIGGERED on
// the current graph version and returns the triggered beats for the
// narrator. A missing graph (never planned) is not an error.
func (o *Orchestrator) firePlotTriggers(ctx context.Context, slot *gameSlot, gs game.GameState) ([]plot.Node, []game.GameEvent) {
	g, err := o.store.LoadPlotGraph(ctx, gs.GameID)
	if err != nil {
		if !errors.Is(err, store.ErrNotFound) {
			o.log.Warn("plot graph unavailable", "gameId", gs.GameID, "error", err)
		}
		return nil, nil
	}

	repaired, dropped := g.Repair()
	var events []game.GameEvent
	if len(dropped) > 0 {
		events = append(events, game.NewEvent(gs.GameID, game.EventSystemNotification,
			game.CategorySystem,
			fmt.Sprintf("story graph repaired: %d dangling edges dropped", len(dropped))).
			WithImportance(game.ImportanceHigh))
	}

	// Hints for still-pending beats go into the foreshadow queue; Push
	// dedupes, so re-queueing each turn is harmless.
	for _, n := range repaired.Nodes {
		if n.Status == plot.StatusPending && n.Beat.Foreshadowing != "" {
			slot.foreshadow = slot.foreshadow.Push(plot.Foreshadow{
				NodeID:       n.ID,
				ThreadID:     n.ThreadID,
				Hint:         n.Beat.Foreshadowing,
				MustAppearBy: n.Beat.TriggerLevel,
				QueuedAtTurn: slot.turn,
			})
		}
	}

	var triggered []plot.Node
	for _, id := range repaired.EligibleNodes(gs.Sheet.Level) {
		if err := o.store.UpdateNodeStatus(ctx, gs.GameID, id, plot.StatusTriggered); err != nil {
			o.log.Warn("plot trigger not persisted", "gameId", gs.GameID,
				"node", id, "error", err)
			continue
		}
		n := repaired.Nodes[id]
		triggered = append(triggered, n)
		slot.foreshadow = slot.foreshadow.DropNode(id)
		events = append(events, game.GameEvent{
			GameID:     gs.GameID,
			Type:       game.EventPlotTriggered,
			Category:   game.CategoryNarrative,
			Importance: game.ImportanceHigh,
			Text:       fmt.Sprintf("Story beat begins: %s — %s", n.Beat.Title, n.Beat.Description),
		})
	}
	return triggered, events
}

// narrate streams the narrator's prose through emit, returning the full
// text and whether the stream was cut off before finishing.
func (o *Orchestrator) narrate(ctx context.Context, slot *gameSlot, gs game.GameState, input string, ir agent.IntentResult, toolTexts []string, triggered []plot.Node, emit func(string) error) (string, bool) {
	nc := agent.NarrationContext{
		StateSummary: fmt.Sprintf("%s, level %d (%s), at %s",
			gs.PlayerName, gs.Sheet.Level, gs.Sheet.Grade, gs.CurrentLocation.Name),
		PlayerInput: input,
		Intent:      ir.Intent,
		ToolResults: toolTexts,
	}
	for _, n := range triggered {
		nc.UpcomingBeats = append(nc.UpcomingBeats, n.Beat.Title+": "+n.Beat.Description)
	}

	var picked *plot.Foreshadow
	var expired []plot.Foreshadow
	slot.foreshadow, picked, expired = slot.foreshadow.Next(gs.Sheet.Level)
	for _, f := range expired {
		o.log.Info("foreshadow hint expired undelivered",
			"gameId", gs.GameID, "node", f.NodeID, "deadline", f.MustAppearBy)
	}
	if picked != nil {
		nc.Foreshadowing = append(nc.Foreshadowing, picked.Hint)
	}

	seen := map[int64]bool{}
	if recent, err := o.store.RecentEvents(ctx, gs.GameID, recentEventsForNarration); err == nil {
		for _, e := range recent {
			nc.RecentEvents = append(nc.RecentEvents, e.Text)
			seen[e.ID] = true
		}
	}
	if o.recall != nil {
		similar, err := o.recall.Recall(ctx, gs.GameID, input, recalledMemories)
		if err != nil {
			o.log.Debug("memory recall unavailable", "gameId", gs.GameID, "error", err)
		}
		for _, s := range similar {
			if !seen[s.Event.ID] {
				nc.Memories = append(nc.Memories, s.Event.Text)
			}
		}
	}

	stream, err := slot.narrator.Narrate(ctx, nc)
	if err != nil {
		o.log.Warn("narration unavailable", "gameId", gs.GameID, "error", err)
		return "", false
	}

	var b strings.Builder
	for chunk := range stream {
		if chunk.FinishReason == "error" {
			o.log.Warn("narration stream failed mid-turn", "gameId", gs.GameID)
			return "", true
		}
		if chunk.Text == "" {
			continue
		}
		b.WriteString(chunk.Text)
		if ctx.Err() != nil {
			return "", true
		}
		if emit != nil {
			if err := emit(chunk.Text); err != nil {
				o.log.Debug("narration consumer gone", "gameId", gs.GameID, "error", err)
				return "", true
			}
		}
	}
	if ctx.Err() != nil {
		return "", true
	}
	return b.String(), false
}

// commit persists the turn: events first, in order, then the state
// snapshot with the accumulated playtime. Event ids record commit order.
func (o *Orchestrator) commit(ctx context.Context, slot *gameSlot, gs game.GameState, events []game.GameEvent) ([]game.GameEvent, error) {
	committed := make([]game.GameEvent, 0, len(events))
	for _, e := range events {
		logged, err := o.store.LogEvent(ctx, e)
		if err != nil {
			return committed, fmt.Errorf("orchestrator: log event: %w", err)
		}
		committed = append(committed, logged)
		slot.lastEventID = logged.ID
	}
	if err := o.store.SaveGame(ctx, gs, slot.playtime); err != nil {
		return committed, fmt.Errorf("orchestrator: save state: %w", err)
	}
	return committed, nil
}

// scheduleReplan fires a background planning run when the player has
// reached the level the last run scheduled.
func (o *Orchestrator) scheduleReplan(slot *gameSlot, gs game.GameState) {
	if gs.Sheet.Level < slot.nextReplan {
		return
	}
	o.planner.PlanAsync(gs)
	slot.nextReplan = planner.NextReplanLevel(gs.Sheet.Level)
	o.log.Info("background replanning scheduled",
		"gameId", gs.GameID, "level", gs.Sheet.Level, "nextReplanLevel", slot.nextReplan)
}

// acquire takes the game's slot, loading its state on first touch. A busy
// slot rejects immediately.
func (o *Orchestrator) acquire(ctx context.Context, gameID string) (*gameSlot, error) {
	o.mu.Lock()
	slot, ok := o.slots[gameID]
	if ok && slot.busy {
		o.mu.Unlock()
		o.metrics.TurnsRejectedBusy.Add(ctx, 1)
		return nil, ErrBusy
	}
	if !ok {
		slot = &gameSlot{}
		o.slots[gameID] = slot
	}
	slot.busy = true
	loaded := slot.narrator != nil
	o.mu.Unlock()

	if loaded {
		return slot, nil
	}
	if err := o.loadSlot(ctx, gameID, slot); err != nil {
		o.release(gameID)
		return nil, err
	}
	return slot, nil
}

func (o *Orchestrator) loadSlot(ctx context.Context, gameID string, slot *gameSlot) error {
	gs, err := o.store.LoadState(ctx, gameID)
	if err != nil {
		return fmt.Errorf("orchestrator: load state: %w", err)
	}
	g, err := o.store.GetGame(ctx, gameID)
	if err != nil {
		return fmt.Errorf("orchestrator: load game: %w", err)
	}
	if recent, err := o.store.RecentEvents(ctx, gameID, 1); err == nil && len(recent) > 0 {
		slot.lastEventID = recent[len(recent)-1].ID
	}

	slot.state = gs
	slot.narrator = agent.NewNarrator(o.llm)
	slot.playtime = time.Duration(g.PlaytimeSeconds) * time.Second
	slot.nextReplan = planner.NextReplanLevel(gs.Sheet.Level)
	o.metrics.ActiveGames.Add(ctx, 1)
	return nil
}

func (o *Orchestrator) release(gameID string) {
	o.mu.Lock()
	if slot, ok := o.slots[gameID]; ok {
		slot.busy = false
	}
	o.mu.Unlock()
}

// State returns the current in-memory snapshot for the game, loading it if
// needed. Used by the UI for status views outside a turn.
func (o *Orchestrator) State(ctx context.Context, gameID string) (game.GameState, error) {
	slot, err := o.acquire(ctx, gameID)
	if err != nil {
		return game.GameState{}, err
	}
	defer o.release(gameID)
	return slot.state, nil
}
