// Package memory provides an in-memory store.Store for tests and local
// development. It mirrors the Postgres backend's observable semantics:
// per-game monotone event ids, strict plot-graph version monotonicity,
// and cascade deletion.
package memory

import (
	"context"
	"encoding/json"
	"fmt"
	"math"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/questweaver/questweaver/internal/game"
	"github.com/questweaver/questweaver/internal/plot"
	"github.com/questweaver/questweaver/internal/store"
)

// Store keeps everything behind one mutex. Values are deep-copied on the
// way in and out so callers cannot alias internal state.
type Store struct {
	mu sync.Mutex

	games     map[string]game.Game
	states    map[string]game.GameState
	events    map[string][]game.GameEvent
	nextEvent map[string]int64

	npcs      map[string]map[string]game.NPC
	quests    map[string]map[string]game.Quest
	locations map[string]map[string]game.Location

	graphs     map[string]plot.Graph
	sessions   map[string][]store.PlanningSession
	embeddings map[string]map[int64][]float32
}

var _ store.Store = (*Store)(nil)

// NewStore returns an empty in-memory store.
func NewStore() *Store {
	return &Store{
		games:      make(map[string]game.Game),
		states:     make(map[string]game.GameState),
		events:     make(map[string][]game.GameEvent),
		nextEvent:  make(map[string]int64),
		npcs:       make(map[string]map[string]game.NPC),
		quests:     make(map[string]map[string]game.Quest),
		locations:  make(map[string]map[string]game.Location),
		graphs:     make(map[string]plot.Graph),
		sessions:   make(map[string][]store.PlanningSession),
		embeddings: make(map[string]map[int64][]float32),
	}
}

// Close is a no-op.
func (s *Store) Close() {}

// deepCopy round-trips v through JSON into out, isolating stored values
// from caller mutation. All stored types are JSON-clean.
func deepCopy(v, out any) {
	blob, err := json.Marshal(v)
	if err != nil {
		panic(fmt.Sprintf("memory store: marshal: %v", err))
	}
	if err := json.Unmarshal(blob, out); err != nil {
		panic(fmt.Sprintf("memory store: unmarshal: %v", err))
	}
}

func (s *Store) CreateGame(_ context.Context, g game.Game, initial game.GameState) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.games[g.ID]; ok {
		return &store.Error{Op: "create game", GameID: g.ID, Err: fmt.Errorf("already exists")}
	}
	now := time.Now()
	if g.CreatedAt.IsZero() {
		g.CreatedAt = now
	}
	g.UpdatedAt = now
	s.games[g.ID] = g

	var state game.GameState
	deepCopy(initial, &state)
	s.states[g.ID] = state
	return nil
}

func (s *Store) GetGame(_ context.Context, gameID string) (game.Game, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	g, ok := s.games[gameID]
	if !ok {
		return game.Game{}, &store.Error{Op: "get game", GameID: gameID, Err: store.ErrNotFound}
	}
	return g, nil
}

func (s *Store) ListGames(_ context.Context) ([]game.Game, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]game.Game, 0, len(s.games))
	for _, g := range s.games {
		out = append(out, g)
	}
	sort.Slice(out, func(i, j int) bool {
		if !out[i].UpdatedAt.Equal(out[j].UpdatedAt) {
			return out[i].UpdatedAt.After(out[j].UpdatedAt)
		}
		return out[i].ID < out[j].ID
	})
	return out, nil
}

func (s *Store) SaveGame(_ context.Context, state game.GameState, playtime time.Duration) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	g, ok := s.games[state.GameID]
	if !ok {
		return &store.Error{Op: "save game", GameID: state.GameID, Err: store.ErrNotFound}
	}
	g.Level = state.Sheet.Level
	g.PlaytimeSeconds = int64(playtime.Seconds())
	g.UpdatedAt = time.Now()
	s.games[state.GameID] = g

	var snapshot game.GameState
	deepCopy(state, &snapshot)
	s.states[state.GameID] = snapshot

	for _, npcs := range state.NPCsByLocation {
		for _, n := range npcs {
			s.putNPC(state.GameID, n)
		}
	}
	for _, q := range state.ActiveQuests {
		s.putQuest(state.GameID, q)
	}
	for _, l := range state.CustomLocations {
		s.putLocation(state.GameID, l)
	}
	return nil
}

func (s *Store) LoadState(_ context.Context, gameID string) (game.GameState, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	stored, ok := s.states[gameID]
	if !ok {
		return game.GameState{}, &store.Error{Op: "load state", GameID: gameID, Err: store.ErrNotFound}
	}
	var state game.GameState
	deepCopy(stored, &state)

	if npcs := s.npcs[gameID]; len(npcs) > 0 {
		byLoc := make(map[string][]game.NPC)
		ids := sortedKeys(npcs)
		for _, id := range ids {
			n := npcs[id]
			byLoc[n.LocationID] = append(byLoc[n.LocationID], n)
		}
		state.NPCsByLocation = byLoc
	}
	if quests := s.quests[gameID]; len(quests) > 0 {
		active := make(map[string]game.Quest)
		for id, q := range quests {
			if state.CompletedQuests[id] {
				continue
			}
			active[id] = q
		}
		state.ActiveQuests = active
	}
	if locs := s.locations[gameID]; len(locs) > 0 {
		custom := make(map[string]game.Location)
		for id, l := range locs {
			custom[id] = l
		}
		state.CustomLocations = custom
	}
	return state, nil
}

func (s *Store) DeleteGame(_ context.Context, gameID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.games[gameID]; !ok {
		return &store.Error{Op: "delete game", GameID: gameID, Err: store.ErrNotFound}
	}
	delete(s.games, gameID)
	delete(s.states, gameID)
	delete(s.events, gameID)
	delete(s.nextEvent, gameID)
	delete(s.npcs, gameID)
	delete(s.quests, gameID)
	delete(s.locations, gameID)
	delete(s.graphs, gameID)
	delete(s.sessions, gameID)
	delete(s.embeddings, gameID)
	return nil
}

func (s *Store) LogEvent(_ context.Context, e game.GameEvent) (game.GameEvent, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.games[e.GameID]; !ok {
		return game.GameEvent{}, &store.Error{Op: "log event", GameID: e.GameID, Err: store.ErrNotFound}
	}
	s.nextEvent[e.GameID]++
	e.ID = s.nextEvent[e.GameID]
	if e.Timestamp.IsZero() {
		e.Timestamp = time.Now()
	}
	s.events[e.GameID] = append(s.events[e.GameID], e)
	return e, nil
}

func (s *Store) RecentEvents(_ context.Context, gameID string, limit int) ([]game.GameEvent, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	log := s.events[gameID]
	if limit <= 0 {
		limit = 20
	}
	if len(log) > limit {
		log = log[len(log)-limit:]
	}
	out := make([]game.GameEvent, len(log))
	copy(out, log)
	return out, nil
}

func (s *Store) SearchEvents(_ context.Context, gameID, query string, opts store.SearchOpts) ([]game.GameEvent, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	limit := opts.Limit
	if limit <= 0 {
		limit = 20
	}
	terms := strings.Fields(strings.ToLower(query))

	var out []game.GameEvent
	for _, e := range s.events[gameID] {
		if e.ID <= opts.After {
			continue
		}
		if opts.Category != "" && e.Category != opts.Category {
			continue
		}
		if opts.NPCID != "" && e.NPCID != opts.NPCID {
			continue
		}
		if opts.LocationID != "" && e.LocationID != opts.LocationID {
			continue
		}
		if opts.QuestID != "" && e.QuestID != opts.QuestID {
			continue
		}
		if opts.ItemID != "" && e.ItemID != opts.ItemID {
			continue
		}
		if !matchesTerms(e.Text, terms) {
			continue
		}
		out = append(out, e)
		if len(out) == limit {
			break
		}
	}
	return out, nil
}

// matchesTerms approximates Postgres plainto_tsquery: every term must
// appear, case-insensitively.
func matchesTerms(text string, terms []string) bool {
	lower := strings.ToLower(text)
	for _, t := range terms {
		if !strings.Contains(lower, t) {
			return false
		}
	}
	return true
}

func (s *Store) putNPC(gameID string, n game.NPC) {
	if s.npcs[gameID] == nil {
		s.npcs[gameID] = make(map[string]game.NPC)
	}
	var stored game.NPC
	deepCopy(n, &stored)
	s.npcs[gameID][n.ID] = stored
}

func (s *Store) SaveNPC(_ context.Context, gameID string, n game.NPC) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.games[gameID]; !ok {
		return &store.Error{Op: "save npc", GameID: gameID, Err: store.ErrNotFound}
	}
	s.putNPC(gameID, n)
	return nil
}

func (s *Store) LoadNPCs(_ context.Context, gameID string) ([]game.NPC, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return collect(s.npcs[gameID]), nil
}

func (s *Store) putQuest(gameID string, q game.Quest) {
	if s.quests[gameID] == nil {
		s.quests[gameID] = make(map[string]game.Quest)
	}
	var stored game.Quest
	deepCopy(q, &stored)
	s.quests[gameID][q.ID] = stored
}

func (s *Store) SaveQuest(_ context.Context, gameID string, q game.Quest) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.games[gameID]; !ok {
		return &store.Error{Op: "save quest", GameID: gameID, Err: store.ErrNotFound}
	}
	s.putQuest(gameID, q)
	return nil
}

func (s *Store) LoadQuests(_ context.Context, gameID string) ([]game.Quest, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return collect(s.quests[gameID]), nil
}

func (s *Store) putLocation(gameID string, l game.Location) {
	if s.locations[gameID] == nil {
		s.locations[gameID] = make(map[string]game.Location)
	}
	var stored game.Location
	deepCopy(l, &stored)
	s.locations[gameID][l.ID] = stored
}

func (s *Store) SaveLocation(_ context.Context, gameID string, l game.Location) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.games[gameID]; !ok {
		return &store.Error{Op: "save location", GameID: gameID, Err: store.ErrNotFound}
	}
	s.putLocation(gameID, l)
	return nil
}

func (s *Store) LoadLocations(_ context.Context, gameID string) ([]game.Location, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return collect(s.locations[gameID]), nil
}

func sortedKeys[V any](m map[string]V) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// collect returns map values in key order.
func collect[V any](m map[string]V) []V {
	out := make([]V, 0, len(m))
	for _, k := range sortedKeys(m) {
		out = append(out, m[k])
	}
	return out
}

func (s *Store) SavePlotGraph(_ context.Context, g plot.Graph) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.games[g.GameID]; !ok {
		return &store.Error{Op: "save plot graph", GameID: g.GameID, Err: store.ErrNotFound}
	}
	if stored, ok := s.graphs[g.GameID]; ok && g.Version <= stored.Version {
		return &store.Error{Op: "save plot graph", GameID: g.GameID,
			Err: fmt.Errorf("version %d: %w", g.Version, store.ErrVersionConflict)}
	}
	var snapshot plot.Graph
	deepCopy(g, &snapshot)
	s.graphs[g.GameID] = snapshot
	return nil
}

func (s *Store) LoadPlotGraph(_ context.Context, gameID string) (plot.Graph, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	stored, ok := s.graphs[gameID]
	if !ok {
		return plot.Graph{}, &store.Error{Op: "load plot graph", GameID: gameID, Err: store.ErrNotFound}
	}
	var g plot.Graph
	deepCopy(stored, &g)
	return g, nil
}

func (s *Store) UpdateNodeStatus(_ context.Context, gameID, nodeID string, status plot.NodeStatus) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	stored, ok := s.graphs[gameID]
	if !ok {
		return &store.Error{Op: "update node status", GameID: gameID, Err: store.ErrNotFound}
	}
	updated, err := stored.SetStatus(nodeID, status)
	if err != nil {
		return &store.Error{Op: "update node status", GameID: gameID, Err: err}
	}
	s.graphs[gameID] = updated
	return nil
}

func (s *Store) SavePlanningSession(_ context.Context, ps store.PlanningSession) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.games[ps.GameID]; !ok {
		return &store.Error{Op: "save planning session", GameID: ps.GameID, Err: store.ErrNotFound}
	}
	var stored store.PlanningSession
	deepCopy(ps, &stored)
	s.sessions[ps.GameID] = append(s.sessions[ps.GameID], stored)
	return nil
}

func (s *Store) LoadPlanningSessions(_ context.Context, gameID string) ([]store.PlanningSession, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]store.PlanningSession, len(s.sessions[gameID]))
	copy(out, s.sessions[gameID])
	return out, nil
}

func (s *Store) IndexEventEmbedding(_ context.Context, gameID string, eventID int64, embedding []float32) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.games[gameID]; !ok {
		return &store.Error{Op: "index embedding", GameID: gameID, Err: store.ErrNotFound}
	}
	if s.embeddings[gameID] == nil {
		s.embeddings[gameID] = make(map[int64][]float32)
	}
	stored := make([]float32, len(embedding))
	copy(stored, embedding)
	s.embeddings[gameID][eventID] = stored
	return nil
}

func (s *Store) SimilarEvents(_ context.Context, gameID string, embedding []float32, topK int) ([]store.SimilarEvent, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if topK <= 0 {
		topK = 5
	}

	byID := make(map[int64]game.GameEvent, len(s.events[gameID]))
	for _, e := range s.events[gameID] {
		byID[e.ID] = e
	}

	var out []store.SimilarEvent
	for eventID, stored := range s.embeddings[gameID] {
		e, ok := byID[eventID]
		if !ok {
			continue
		}
		out = append(out, store.SimilarEvent{Event: e, Distance: cosineDistance(embedding, stored)})
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Distance != out[j].Distance {
			return out[i].Distance < out[j].Distance
		}
		return out[i].Event.ID < out[j].Event.ID
	})
	if len(out) > topK {
		out = out[:topK]
	}
	return out, nil
}

// cosineDistance matches pgvector's <=> operator: 1 - cosine similarity.
func cosineDistance(a, b []float32) float64 {
	if len(a) != len(b) {
		return 1
	}
	var dot, normA, normB float64
	for i := range a {
		dot += float64(a[i]) * float64(b[i])
		normA += float64(a[i]) * float64(a[i])
		normB += float64(b[i]) * float64(b[i])
	}
	if normA == 0 || normB == 0 {
		return 1
	}
	return 1 - dot/(math.Sqrt(normA)*math.Sqrt(normB))
}
