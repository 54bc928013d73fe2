package orchestrator

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"strings"
	"testing"
	"time"

	"github.com/questweaver/questweaver/internal/agent"
	"github.com/questweaver/questweaver/internal/content"
	"github.com/questweaver/questweaver/internal/game"
	"github.com/questweaver/questweaver/internal/planner"
	"github.com/questweaver/questweaver/internal/plot"
	"github.com/questweaver/questweaver/internal/store"
	"github.com/questweaver/questweaver/internal/store/memory"
	"github.com/questweaver/questweaver/internal/tools"
	"github.com/questweaver/questweaver/pkg/provider/llm/mock"
)

// testRig wires an orchestrator over the in-memory store with a dead
// intent provider, so classification always takes the deterministic
// keyword path.
type testRig struct {
	st       *memory.Store
	lib      *content.Library
	orch     *Orchestrator
	narrator *mock.Provider
}

func newTestRig(t *testing.T, narratorReplies ...string) *testRig {
	return newTestRigOpts(t, nil, narratorReplies...)
}

func newTestRigOpts(t *testing.T, opts []Option, narratorReplies ...string) *testRig {
	t.Helper()

	lib, err := content.Load()
	if err != nil {
		t.Fatalf("content.Load: %v", err)
	}
	st := memory.NewStore()
	log := slog.New(slog.NewTextHandler(io.Discard, nil))

	intentLLM := &mock.Provider{CompleteErr: errors.New("provider offline")}
	genLLM := &mock.Provider{}
	reg := tools.NewRegistry(tools.Deps{
		Store:     st,
		Intent:    agent.NewIntentAnalyzer(intentLLM),
		NPCs:      agent.NewNPCGenerator(genLLM),
		Locations: agent.NewLocationGenerator(genLLM),
		Quests:    agent.NewQuestGenerator(genLLM),
		Library:   lib,
		Log:       log,
	})
	pl := planner.New(st, map[plot.AgentType]planner.Proposer{}, planner.WithLogger(log))

	narrator := &mock.Provider{Replies: narratorReplies}
	return &testRig{
		st:       st,
		lib:      lib,
		orch:     New(st, reg, lib, pl, narrator, log, opts...),
		narrator: narrator,
	}
}

func (r *testRig) newGame(t *testing.T, classID string) game.GameState {
	t.Helper()
	gs, err := r.orch.NewGame(context.Background(), NewGameRequest{
		PlayerName: "Rin",
		SystemType: game.SystemIntegration,
		ClassID:    classID,
	})
	if err != nil {
		t.Fatalf("NewGame: %v", err)
	}
	return gs
}

func hasEvent(events []game.GameEvent, typ game.EventType) bool {
	for _, e := range events {
		if e.Type == typ {
			return true
		}
	}
	return false
}

func TestNewGame_Bootstrap(t *testing.T) {
	t.Parallel()
	r := newTestRig(t)

	gs := r.newGame(t, "warrior")

	if gs.CurrentLocation.ID != "tutorial-grove" {
		t.Errorf("start location = %q, want tutorial-grove", gs.CurrentLocation.ID)
	}
	if gs.Sheet.Class != "warrior" || gs.Sheet.Level != 1 {
		t.Errorf("sheet = class %q level %d", gs.Sheet.Class, gs.Sheet.Level)
	}
	if !gs.DiscoveredLocations[gs.CurrentLocation.ID] {
		t.Error("starting location not marked discovered")
	}
	if gs.OpeningNarrationPlayed {
		t.Error("opening narration marked played before any turn")
	}

	events, err := r.st.RecentEvents(context.Background(), gs.GameID, 10)
	if err != nil {
		t.Fatalf("RecentEvents: %v", err)
	}
	found := false
	for _, e := range events {
		if e.Type == game.EventSystemNotification && e.Category == game.CategorySetup {
			if e.Importance != game.ImportanceHigh {
				t.Errorf("setup event importance = %q", e.Importance)
			}
			found = true
		}
	}
	if !found {
		t.Error("no setup notification in the event log")
	}

	sessions, err := r.st.LoadPlanningSessions(context.Background(), gs.GameID)
	if err != nil {
		t.Fatalf("LoadPlanningSessions: %v", err)
	}
	if len(sessions) != 1 {
		t.Errorf("planning sessions = %d, want the initial run", len(sessions))
	}
}

func TestPlayTurn_StatusNarratesAndCommits(t *testing.T) {
	t.Parallel()
	reply := "The System hums softly around you."
	r := newTestRig(t, reply)
	gs := r.newGame(t, "")

	var chunks []string
	res, err := r.orch.PlayTurn(context.Background(), gs.GameID, "status", func(s string) error {
		chunks = append(chunks, s)
		return nil
	})
	if err != nil {
		t.Fatalf("PlayTurn: %v", err)
	}

	if res.Intent.Intent != agent.IntentStatusMenu {
		t.Errorf("intent = %s, want STATUS_MENU", res.Intent.Intent)
	}
	if res.NarrationCancelled {
		t.Error("narration reported cancelled")
	}
	if res.Narration != reply {
		t.Errorf("narration = %q, want %q", res.Narration, reply)
	}
	if got := strings.Join(chunks, ""); got != reply {
		t.Errorf("streamed chunks join to %q, want %q", got, reply)
	}
	if !hasEvent(res.Events, game.EventNarratorText) {
		t.Error("no narrator text event committed")
	}
	if !res.State.OpeningNarrationPlayed {
		t.Error("opening narration not marked played after the first narrated turn")
	}
	for _, e := range res.Events {
		if e.ID == 0 {
			t.Errorf("committed event %s has no id", e.Type)
		}
	}
}

func TestPlayTurn_InvalidActionRejected(t *testing.T) {
	t.Parallel()
	r := newTestRig(t, "unused")
	gs := r.newGame(t, "")

	var notices []string
	res, err := r.orch.PlayTurn(context.Background(), gs.GameID, "talk to the mayor", func(s string) error {
		notices = append(notices, s)
		return nil
	})
	if err != nil {
		t.Fatalf("PlayTurn: %v", err)
	}

	if len(res.Events) != 1 || res.Events[0].Type != game.EventSystemNotification {
		t.Fatalf("events = %+v, want a single system notification", res.Events)
	}
	if len(notices) != 1 || !strings.Contains(notices[0], "the mayor") {
		t.Errorf("player notice = %v", notices)
	}
	if res.Narration != "" {
		t.Errorf("narration = %q on a rejected turn", res.Narration)
	}

	after, err := r.orch.State(context.Background(), gs.GameID)
	if err != nil {
		t.Fatalf("State: %v", err)
	}
	if after.Sheet.XP != gs.Sheet.XP || len(after.Sheet.Inventory) != len(gs.Sheet.Inventory) {
		t.Error("state changed on a rejected turn")
	}
}

func TestPlayTurn_BusyRejectsSecondTurn(t *testing.T) {
	t.Parallel()
	r := newTestRig(t)
	gs := r.newGame(t, "")

	r.orch.slots[gs.GameID].busy = true
	if _, err := r.orch.PlayTurn(context.Background(), gs.GameID, "status", nil); !errors.Is(err, ErrBusy) {
		t.Fatalf("err = %v, want ErrBusy", err)
	}

	r.orch.slots[gs.GameID].busy = false
	if _, err := r.orch.PlayTurn(context.Background(), gs.GameID, "status", nil); err != nil {
		t.Fatalf("turn after release: %v", err)
	}
}

func TestPlayTurn_CombatIsDeterministicAndAwardsXP(t *testing.T) {
	t.Parallel()
	r := newTestRig(t)
	gs := r.newGame(t, "")

	res, err := r.orch.PlayTurn(context.Background(), gs.GameID, "attack the shadow wolf", nil)
	if err != nil {
		t.Fatalf("PlayTurn: %v", err)
	}

	if res.Intent.Intent != agent.IntentCombat {
		t.Fatalf("intent = %s, want COMBAT", res.Intent.Intent)
	}
	if !hasEvent(res.Events, game.EventCombatLog) {
		t.Error("no combat log event committed")
	}
	// Tutorial Grove improvises a level-1 enemy worth exactly 50 XP; a
	// fresh sheet always beats it.
	if res.State.Sheet.XP != 50 {
		t.Errorf("xp = %d, want 50", res.State.Sheet.XP)
	}
	if res.State.Sheet.Level != 1 {
		t.Errorf("level = %d, want 1 (50 XP is below the level-2 bar)", res.State.Sheet.Level)
	}
	if g := res.State.Sheet.Gold; g < 2 || g > 6 {
		t.Errorf("gold looted = %d, want within the level-1 band", g)
	}
}

func TestPlayTurn_InsightAccumulatesAcrossTurns(t *testing.T) {
	t.Parallel()
	r := newTestRig(t)
	gs := r.newGame(t, "")

	for i := 0; i < 3; i++ {
		if _, err := r.orch.PlayTurn(context.Background(), gs.GameID, "meditate quietly", nil); err != nil {
			t.Fatalf("turn %d: %v", i+1, err)
		}
	}

	after, err := r.orch.State(context.Background(), gs.GameID)
	if err != nil {
		t.Fatalf("State: %v", err)
	}
	if got := after.Sheet.Insight.Counts["meditate"]; got != 3 {
		t.Errorf("meditate count = %d, want 3", got)
	}
}

func TestPlayTurn_EquippedWeaponShapesInsight(t *testing.T) {
	t.Parallel()
	r := newTestRig(t)
	gs := r.newGame(t, "warrior")

	res, err := r.orch.PlayTurn(context.Background(), gs.GameID, "equip iron sword", nil)
	if err != nil {
		t.Fatalf("equip turn: %v", err)
	}
	if res.Intent.Intent != agent.IntentInventoryMenu {
		t.Fatalf("intent = %s, want INVENTORY_MENU", res.Intent.Intent)
	}
	if res.State.Sheet.Equipment.Weapon == nil {
		t.Fatal("weapon not equipped")
	}

	res, err = r.orch.PlayTurn(context.Background(), gs.GameID, "slash the training dummy", nil)
	if err != nil {
		t.Fatalf("slash turn: %v", err)
	}
	if got := res.State.Sheet.Insight.Counts["sword_slash"]; got != 1 {
		t.Errorf("sword_slash count = %d, want 1", got)
	}
}

func TestPlayTurn_ShopPurchase(t *testing.T) {
	t.Parallel()
	r := newTestRig(t)
	gs := r.newGame(t, "")

	potion, ok := r.lib.Item("health_potion")
	if !ok {
		t.Fatal("health_potion missing from content")
	}
	keeper := game.NPC{
		ID: "npc-marla", Name: "Marla", Archetype: "merchant",
		LocationID: gs.CurrentLocation.ID,
		Shop: &game.Shop{
			Name:  "Marla's Sundries",
			Stock: []game.ShopItem{{Item: potion, Stock: 3, Price: 10}},
		},
	}

	slot := r.orch.slots[gs.GameID]
	slot.state.NPCsByLocation = map[string][]game.NPC{gs.CurrentLocation.ID: {keeper}}
	slot.state.Sheet.Gold = 50

	res, err := r.orch.PlayTurn(context.Background(), gs.GameID,
		"buy the "+strings.ToLower(potion.Name), nil)
	if err != nil {
		t.Fatalf("PlayTurn: %v", err)
	}

	if res.Intent.Intent != agent.IntentNPCDialogue {
		t.Fatalf("intent = %s, want NPC_DIALOGUE", res.Intent.Intent)
	}
	if res.State.Sheet.Gold != 40 {
		t.Errorf("gold = %d, want 40 after a 10 gold purchase", res.State.Sheet.Gold)
	}
	if _, ok := res.State.Sheet.Inventory[potion.ID]; !ok {
		t.Error("bought item not in inventory")
	}
	npc, ok := res.State.FindNPC("npc-marla")
	if !ok {
		t.Fatal("shopkeeper vanished")
	}
	if npc.Shop.Stock[0].Stock != 2 {
		t.Errorf("stock = %d, want 2", npc.Shop.Stock[0].Stock)
	}
	if !hasEvent(res.Events, game.EventItemGained) {
		t.Error("no item gained event committed")
	}
}

func TestPlayTurn_PlotTriggerFires(t *testing.T) {
	t.Parallel()
	r := newTestRig(t)
	gs := r.newGame(t, "")

	g := plot.NewGraph(gs.GameID)
	g.Version = 2
	g.Nodes["beat-1"] = plot.Node{
		ID: "beat-1", ThreadID: "thread-awakening", Status: plot.StatusPending,
		Beat: plot.Beat{
			ID: "b1", Title: "The First Summons", Type: plot.BeatSetup,
			Description:  "A voice calls from beneath the grove.",
			TriggerLevel: 1,
		},
	}
	if err := r.st.SavePlotGraph(context.Background(), g); err != nil {
		t.Fatalf("seed graph: %v", err)
	}

	res, err := r.orch.PlayTurn(context.Background(), gs.GameID, "status", nil)
	if err != nil {
		t.Fatalf("PlayTurn: %v", err)
	}
	if !hasEvent(res.Events, game.EventPlotTriggered) {
		t.Fatal("no plot triggered event committed")
	}

	saved, err := r.st.LoadPlotGraph(context.Background(), gs.GameID)
	if err != nil {
		t.Fatalf("LoadPlotGraph: %v", err)
	}
	if saved.Nodes["beat-1"].Status != plot.StatusTriggered {
		t.Errorf("node status = %s, want TRIGGERED", saved.Nodes["beat-1"].Status)
	}

	// The beat is already triggered; the next turn must not fire it again.
	res, err = r.orch.PlayTurn(context.Background(), gs.GameID, "status", nil)
	if err != nil {
		t.Fatalf("second PlayTurn: %v", err)
	}
	if hasEvent(res.Events, game.EventPlotTriggered) {
		t.Error("triggered beat fired twice")
	}
}

func TestPlayTurn_CancelledNarrationKeepsMutations(t *testing.T) {
	t.Parallel()
	r := newTestRig(t, "A long narration that will never reach the player in full.")
	gs := r.newGame(t, "")

	res, err := r.orch.PlayTurn(context.Background(), gs.GameID, "meditate quietly", func(string) error {
		return errors.New("consumer gone")
	})
	if err != nil {
		t.Fatalf("PlayTurn: %v", err)
	}

	if !res.NarrationCancelled {
		t.Error("narration not reported cancelled")
	}
	if res.Narration != "" {
		t.Errorf("narration = %q, want empty on cancellation", res.Narration)
	}
	if hasEvent(res.Events, game.EventNarratorText) {
		t.Error("narrator text committed despite cancellation")
	}
	if res.State.OpeningNarrationPlayed {
		t.Error("opening narration marked played on a cancelled turn")
	}
	if got := res.State.Sheet.Insight.Counts["meditate"]; got != 1 {
		t.Errorf("meditate count = %d, want the turn's mutations kept", got)
	}

	after, err := r.orch.State(context.Background(), gs.GameID)
	if err != nil {
		t.Fatalf("State: %v", err)
	}
	if got := after.Sheet.Insight.Counts["meditate"]; got != 1 {
		t.Errorf("persisted meditate count = %d, want 1", got)
	}
}

func TestPlayTurn_SchedulesBackgroundReplan(t *testing.T) {
	t.Parallel()
	r := newTestRig(t)
	gs := r.newGame(t, "")

	r.orch.slots[gs.GameID].nextReplan = 1
	if _, err := r.orch.PlayTurn(context.Background(), gs.GameID, "status", nil); err != nil {
		t.Fatalf("PlayTurn: %v", err)
	}
	if got := r.orch.slots[gs.GameID].nextReplan; got != 6 {
		t.Errorf("next replan level = %d, want 6 for a level-1 player", got)
	}

	deadline := time.After(2 * time.Second)
	for {
		sessions, err := r.st.LoadPlanningSessions(context.Background(), gs.GameID)
		if err != nil {
			t.Fatalf("LoadPlanningSessions: %v", err)
		}
		if len(sessions) >= 2 {
			return
		}
		select {
		case <-deadline:
			t.Fatalf("background replan never recorded a session (have %d)", len(sessions))
		default:
			time.Sleep(5 * time.Millisecond)
		}
	}
}

// fakeRecaller returns canned similar events and records queries.
type fakeRecaller struct {
	events  []store.SimilarEvent
	queries []string
}

func (f *fakeRecaller) Recall(_ context.Context, _ string, query string, _ int) ([]store.SimilarEvent, error) {
	f.queries = append(f.queries, query)
	return f.events, nil
}

func TestPlayTurn_RecalledMemoriesReachNarrator(t *testing.T) {
	t.Parallel()
	rec := &fakeRecaller{events: []store.SimilarEvent{
		{Event: game.GameEvent{ID: 9999, Text: "Long ago a warden named the traitor."}, Distance: 0.1},
	}}
	r := newTestRigOpts(t, []Option{WithRecaller(rec)}, "The past stirs.")
	gs := r.newGame(t, "")

	if _, err := r.orch.PlayTurn(context.Background(), gs.GameID, "status", nil); err != nil {
		t.Fatalf("PlayTurn: %v", err)
	}

	if len(rec.queries) != 1 || rec.queries[0] != "status" {
		t.Errorf("recall queries = %v, want the player input", rec.queries)
	}

	calls := r.narrator.StreamCalls
	if len(calls) == 0 {
		t.Fatal("narrator never invoked")
	}
	req := calls[len(calls)-1].Req
	prompt := req.Messages[len(req.Messages)-1].Content
	if !strings.Contains(prompt, "Long ago a warden named the traitor.") {
		t.Errorf("narrator prompt missing recalled memory:\n%s", prompt)
	}
}
