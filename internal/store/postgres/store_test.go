package postgres_test

import (
	"context"
	"errors"
	"os"
	"testing"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/questweaver/questweaver/internal/game"
	"github.com/questweaver/questweaver/internal/plot"
	"github.com/questweaver/questweaver/internal/store"
	"github.com/questweaver/questweaver/internal/store/postgres"
)

const testEmbeddingDim = 4

// testDSN returns the test database DSN from the environment, or skips the
// test if QUESTWEAVER_TEST_POSTGRES_DSN is not set.
func testDSN(t *testing.T) string {
	t.Helper()
	dsn := os.Getenv("QUESTWEAVER_TEST_POSTGRES_DSN")
	if dsn == "" {
		t.Skip("QUESTWEAVER_TEST_POSTGRES_DSN not set — skipping PostgreSQL integration tests")
	}
	return dsn
}

// newTestStore creates a fresh [postgres.Store] with a clean schema.
// It calls t.Cleanup to close the store when the test finishes.
func newTestStore(t *testing.T) *postgres.Store {
	t.Helper()
	dsn := testDSN(t)
	ctx := context.Background()

	cleanPool, err := pgxpool.New(ctx, dsn)
	if err != nil {
		t.Fatalf("pool: %v", err)
	}
	t.Cleanup(cleanPool.Close)
	dropSchema(t, ctx, cleanPool)

	st, err := postgres.NewStore(ctx, dsn, testEmbeddingDim)
	if err != nil {
		t.Fatalf("NewStore: %v", err)
	}
	t.Cleanup(st.Close)
	return st
}

// dropSchema removes all tables created by Migrate in reverse dependency order.
func dropSchema(t *testing.T, ctx context.Context, pool *pgxpool.Pool) {
	t.Helper()
	for _, stmt := range []string{
		"DROP TABLE IF EXISTS event_embeddings CASCADE",
		"DROP TABLE IF EXISTS planning_sessions CASCADE",
		"DROP TABLE IF EXISTS plot_edges CASCADE",
		"DROP TABLE IF EXISTS plot_nodes CASCADE",
		"DROP TABLE IF EXISTS plot_graphs CASCADE",
		"DROP TABLE IF EXISTS custom_locations CASCADE",
		"DROP TABLE IF EXISTS quests CASCADE",
		"DROP TABLE IF EXISTS npcs CASCADE",
		"DROP TABLE IF EXISTS game_events CASCADE",
		"DROP TABLE IF EXISTS game_states CASCADE",
		"DROP TABLE IF EXISTS games CASCADE",
	} {
		if _, err := pool.Exec(ctx, stmt); err != nil {
			t.Fatalf("dropSchema %q: %v", stmt, err)
		}
	}
}

func testState(gameID string) game.GameState {
	return game.GameState{
		GameID:     gameID,
		PlayerName: "Rin",
		SystemType: game.SystemIntegration,
		Sheet: game.CharacterSheet{
			Level: 3, XP: 250, Gold: 40, Grade: game.GradeE,
			Stats: game.Stats{Strength: 12, Dexterity: 10, Constitution: 11,
				Intelligence: 10, Wisdom: 10, Charisma: 10, Defense: 10},
			HP:   game.Resource{Current: 80, Max: 100},
			Mana: game.Resource{Current: 30, Max: 30},
		},
		CurrentLocation:     game.Location{ID: "tutorial-grove", Name: "Tutorial Grove"},
		DiscoveredLocations: map[string]bool{"tutorial-grove": true},
	}
}

func mustCreateGame(t *testing.T, ctx context.Context, st *postgres.Store, gameID string) game.GameState {
	t.Helper()
	gs := testState(gameID)
	g := game.Game{
		ID:         gameID,
		PlayerName: gs.PlayerName,
		SystemType: gs.SystemType,
		Difficulty: game.DifficultyNormal,
		Level:      gs.Sheet.Level,
	}
	if err := st.CreateGame(ctx, g, gs); err != nil {
		t.Fatalf("CreateGame: %v", err)
	}
	return gs
}

func TestSaveLoadRoundTrip(t *testing.T) {
	st := newTestStore(t)
	ctx := context.Background()
	gs := mustCreateGame(t, ctx, st, "game-rt")

	gs.Sheet.XP = 300
	gs.Sheet.Gold = 55
	gs.NPCsByLocation = map[string][]game.NPC{
		"tutorial-grove": {{ID: "npc-1", Name: "Marla", LocationID: "tutorial-grove"}},
	}
	gs.ActiveQuests = map[string]game.Quest{
		"q-1": {ID: "q-1", Name: "First Steps", Type: game.QuestMain, Status: game.QuestInProgress},
	}
	if err := st.SaveGame(ctx, gs, 90*time.Second); err != nil {
		t.Fatalf("SaveGame: %v", err)
	}

	loaded, err := st.LoadState(ctx, "game-rt")
	if err != nil {
		t.Fatalf("LoadState: %v", err)
	}
	if loaded.Sheet.XP != 300 || loaded.Sheet.Gold != 55 {
		t.Errorf("sheet = XP %d Gold %d, want 300/55", loaded.Sheet.XP, loaded.Sheet.Gold)
	}
	if npcs := loaded.NPCsByLocation["tutorial-grove"]; len(npcs) != 1 || npcs[0].Name != "Marla" {
		t.Errorf("npcs = %+v", loaded.NPCsByLocation)
	}
	if q, ok := loaded.ActiveQuests["q-1"]; !ok || q.Name != "First Steps" {
		t.Errorf("quests = %+v", loaded.ActiveQuests)
	}

	g, err := st.GetGame(ctx, "game-rt")
	if err != nil {
		t.Fatalf("GetGame: %v", err)
	}
	if g.PlaytimeSeconds != 90 || g.Level != 3 {
		t.Errorf("game record = playtime %d level %d", g.PlaytimeSeconds, g.Level)
	}
}

func TestLoadState_NotFound(t *testing.T) {
	st := newTestStore(t)
	if _, err := st.LoadState(context.Background(), "nope"); !errors.Is(err, store.ErrNotFound) {
		t.Errorf("err = %v, want ErrNotFound", err)
	}
}

func TestEventLog_OrderAndSearch(t *testing.T) {
	st := newTestStore(t)
	ctx := context.Background()
	mustCreateGame(t, ctx, st, "game-ev")

	texts := []string{
		"You strike the shadow wolf.",
		"Marla greets you warmly at the stall.",
		"A seal breaks beneath the grove.",
	}
	categories := []game.EventCategory{game.CategoryCombat, game.CategoryDialogue, game.CategoryNarrative}
	var ids []int64
	for i, text := range texts {
		e := game.NewEvent("game-ev", game.EventNarratorText, categories[i], text)
		if i == 1 {
			e.NPCID = "npc-1"
		}
		logged, err := st.LogEvent(ctx, e)
		if err != nil {
			t.Fatalf("LogEvent: %v", err)
		}
		ids = append(ids, logged.ID)
	}
	for i := 1; i < len(ids); i++ {
		if ids[i] <= ids[i-1] {
			t.Errorf("event ids not monotone: %v", ids)
		}
	}

	recent, err := st.RecentEvents(ctx, "game-ev", 2)
	if err != nil {
		t.Fatalf("RecentEvents: %v", err)
	}
	if len(recent) != 2 || recent[0].Text != texts[1] || recent[1].Text != texts[2] {
		t.Errorf("recent = %+v, want the last two in ascending order", recent)
	}

	found, err := st.SearchEvents(ctx, "game-ev", "shadow wolf", store.SearchOpts{})
	if err != nil {
		t.Fatalf("SearchEvents: %v", err)
	}
	if len(found) != 1 || found[0].Text != texts[0] {
		t.Errorf("search = %+v", found)
	}

	byNPC, err := st.SearchEvents(ctx, "game-ev", "", store.SearchOpts{NPCID: "npc-1"})
	if err != nil {
		t.Fatalf("SearchEvents npc: %v", err)
	}
	if len(byNPC) != 1 || byNPC[0].Text != texts[1] {
		t.Errorf("npc filter = %+v", byNPC)
	}
}

func TestPlotGraph_VersionGuard(t *testing.T) {
	st := newTestStore(t)
	ctx := context.Background()
	mustCreateGame(t, ctx, st, "game-pg")

	g := plot.Graph{
		GameID:  "game-pg",
		Version: 1,
		Nodes: map[string]plot.Node{
			"beat-1": {ID: "beat-1", ThreadID: "thread-1", Status: plot.StatusPending,
				Beat: plot.Beat{ID: "b-1", Title: "The Seal", Type: plot.BeatSetup, TriggerLevel: 2}},
		},
		Edges: map[string]plot.Edge{},
	}
	if err := st.SavePlotGraph(ctx, g); err != nil {
		t.Fatalf("SavePlotGraph v1: %v", err)
	}

	// Same version again must conflict.
	if err := st.SavePlotGraph(ctx, g); !errors.Is(err, store.ErrVersionConflict) {
		t.Errorf("re-save v1 err = %v, want ErrVersionConflict", err)
	}

	g.Version = 2
	if err := st.SavePlotGraph(ctx, g); err != nil {
		t.Fatalf("SavePlotGraph v2: %v", err)
	}

	if err := st.UpdateNodeStatus(ctx, "game-pg", "beat-1", plot.StatusTriggered); err != nil {
		t.Fatalf("UpdateNodeStatus: %v", err)
	}
	loaded, err := st.LoadPlotGraph(ctx, "game-pg")
	if err != nil {
		t.Fatalf("LoadPlotGraph: %v", err)
	}
	if loaded.Version != 2 {
		t.Errorf("version = %d, want 2", loaded.Version)
	}
	if got := loaded.Nodes["beat-1"].Status; got != plot.StatusTriggered {
		t.Errorf("node status = %s, want TRIGGERED", got)
	}
}

func TestEventEmbeddings_SimilarEvents(t *testing.T) {
	st := newTestStore(t)
	ctx := context.Background()
	mustCreateGame(t, ctx, st, "game-vec")

	vectors := [][]float32{
		{1, 0, 0, 0},
		{0, 1, 0, 0},
		{0, 0, 1, 0},
	}
	var ids []int64
	for i, v := range vectors {
		e := game.NewEvent("game-vec", game.EventPlotTriggered, game.CategoryNarrative,
			"memory "+string(rune('a'+i)))
		logged, err := st.LogEvent(ctx, e)
		if err != nil {
			t.Fatalf("LogEvent: %v", err)
		}
		if err := st.IndexEventEmbedding(ctx, "game-vec", logged.ID, v); err != nil {
			t.Fatalf("IndexEventEmbedding: %v", err)
		}
		ids = append(ids, logged.ID)
	}

	similar, err := st.SimilarEvents(ctx, "game-vec", []float32{0, 1, 0, 0}, 2)
	if err != nil {
		t.Fatalf("SimilarEvents: %v", err)
	}
	if len(similar) != 2 {
		t.Fatalf("got %d results, want 2", len(similar))
	}
	if similar[0].Event.ID != ids[1] {
		t.Errorf("closest = event %d, want %d", similar[0].Event.ID, ids[1])
	}
	if similar[0].Distance >= similar[1].Distance {
		t.Errorf("distances not ascending: %v then %v", similar[0].Distance, similar[1].Distance)
	}
}

func TestDeleteGame_Cascades(t *testing.T) {
	st := newTestStore(t)
	ctx := context.Background()
	mustCreateGame(t, ctx, st, "game-del")

	if _, err := st.LogEvent(ctx, game.NewEvent("game-del", game.EventNarratorText,
		game.CategoryNarrative, "soon gone")); err != nil {
		t.Fatalf("LogEvent: %v", err)
	}
	if err := st.DeleteGame(ctx, "game-del"); err != nil {
		t.Fatalf("DeleteGame: %v", err)
	}

	if _, err := st.GetGame(ctx, "game-del"); !errors.Is(err, store.ErrNotFound) {
		t.Errorf("GetGame after delete err = %v, want ErrNotFound", err)
	}
	events, err := st.RecentEvents(ctx, "game-del", 10)
	if err != nil {
		t.Fatalf("RecentEvents after delete: %v", err)
	}
	if len(events) != 0 {
		t.Errorf("events survived the cascade: %+v", events)
	}
}
