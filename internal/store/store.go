// Package store defines the persistence contract for QuestWeaver games:
// game metadata, state snapshots, the append-only event log, plot graph
// versions, planning sessions, and the semantic event index.
//
// The interface is public within the module so alternative backends
// (Postgres/pgvector, in-memory) can be swapped without touching the
// orchestrator. Every implementation must be safe for concurrent use.
package store

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/questweaver/questweaver/internal/game"
	"github.com/questweaver/questweaver/internal/plot"
)

// Sentinel errors. Implementations wrap these in *Error so callers can use
// errors.Is while still reading the operation and game id off the error.
var (
	// ErrNotFound marks a lookup for a game, state, or graph that does not
	// exist.
	ErrNotFound = errors.New("store: not found")

	// ErrVersionConflict marks a plot-graph write whose version does not
	// strictly exceed the stored one.
	ErrVersionConflict = errors.New("store: plot graph version conflict")
)

// Error carries the failed operation and scope alongside the cause.
type Error struct {
	Op     string
	GameID string
	Err    error
}

func (e *Error) Error() string {
	if e.GameID == "" {
		return fmt.Sprintf("store: %s: %v", e.Op, e.Err)
	}
	return fmt.Sprintf("store: %s (game %s): %v", e.Op, e.GameID, e.Err)
}

func (e *Error) Unwrap() error { return e.Err }

// SearchOpts configures an event-log search. All non-zero fields are AND
// conditions on top of the free-text query.
type SearchOpts struct {
	// Category restricts results to one event category.
	Category game.EventCategory

	// NPCID, LocationID, QuestID and ItemID filter on the denormalised
	// reference columns.
	NPCID      string
	LocationID string
	QuestID    string
	ItemID     string

	// After filters events with a strictly greater id, for pagination.
	After int64

	// Limit caps the number of results. 0 lets the backend pick a default.
	Limit int
}

// SimilarEvent pairs an event with its vector-space distance from a query
// embedding. Lower distance means more similar.
type SimilarEvent struct {
	Event    game.GameEvent
	Distance float64
}

// PlanningSession is the audit record of one planner run: what the
// perspective agents proposed and what consensus accepted. Superseded runs
// never produce one.
type PlanningSession struct {
	ID                string          `json:"id"`
	GameID            string          `json:"game_id"`
	InvocationCounter int             `json:"invocation_counter"`
	Mode              string          `json:"mode"` // "initial" or "periodic"
	PlayerLevel       int             `json:"player_level"`
	Proposals         []plot.Proposal `json:"proposals"`
	Result            plot.Result     `json:"result"`
	GraphVersion      int             `json:"graph_version"`
	CreatedAt         time.Time       `json:"created_at"`
}

// Store is the full persistence surface.
//
// Ordering guarantees: LogEvent assigns per-game monotonically increasing
// ids equal to commit order; SavePlotGraph performs an atomic swap and
// rejects non-monotone versions with ErrVersionConflict.
type Store interface {
	// CreateGame persists the metadata record and the initial state in one
	// transaction.
	CreateGame(ctx context.Context, g game.Game, initial game.GameState) error

	// GetGame returns the metadata record, or ErrNotFound.
	GetGame(ctx context.Context, gameID string) (game.Game, error)

	// ListGames returns all games, most recently updated first.
	ListGames(ctx context.Context) ([]game.Game, error)

	// SaveGame persists the state snapshot, refreshes the metadata record
	// (level, playtime, updated-at) and upserts the child entities (NPCs,
	// quests, custom locations) in a single transaction.
	SaveGame(ctx context.Context, state game.GameState, playtime time.Duration) error

	// LoadState returns the latest state snapshot with freshly read child
	// entities overlaid. A corrupt child blob is skipped, not fatal.
	LoadState(ctx context.Context, gameID string) (game.GameState, error)

	// DeleteGame removes the game and everything hanging off it.
	DeleteGame(ctx context.Context, gameID string) error

	// LogEvent appends to the game's event log and returns the stored event
	// with its assigned id and timestamp.
	LogEvent(ctx context.Context, e game.GameEvent) (game.GameEvent, error)

	// RecentEvents returns the latest events in ascending id order.
	RecentEvents(ctx context.Context, gameID string, limit int) ([]game.GameEvent, error)

	// SearchEvents runs a free-text query over the log with optional
	// filters. Results come back in ascending id order.
	SearchEvents(ctx context.Context, gameID, query string, opts SearchOpts) ([]game.GameEvent, error)

	// SaveNPC, SaveQuest and SaveLocation upsert a single child entity
	// outside a full SaveGame.
	SaveNPC(ctx context.Context, gameID string, n game.NPC) error
	LoadNPCs(ctx context.Context, gameID string) ([]game.NPC, error)
	SaveQuest(ctx context.Context, gameID string, q game.Quest) error
	LoadQuests(ctx context.Context, gameID string) ([]game.Quest, error)
	SaveLocation(ctx context.Context, gameID string, l game.Location) error
	LoadLocations(ctx context.Context, gameID string) ([]game.Location, error)

	// SavePlotGraph atomically replaces the game's graph with the given
	// version. The version must strictly exceed the stored one.
	SavePlotGraph(ctx context.Context, g plot.Graph) error

	// LoadPlotGraph returns the current graph version, or ErrNotFound when
	// the game has never been planned.
	LoadPlotGraph(ctx context.Context, gameID string) (plot.Graph, error)

	// UpdateNodeStatus persists a single node transition on the current
	// graph version without bumping it.
	UpdateNodeStatus(ctx context.Context, gameID, nodeID string, status plot.NodeStatus) error

	// SavePlanningSession records a completed planner run.
	SavePlanningSession(ctx context.Context, ps PlanningSession) error

	// LoadPlanningSessions returns a game's planner history, oldest first.
	LoadPlanningSessions(ctx context.Context, gameID string) ([]PlanningSession, error)

	// IndexEventEmbedding stores the embedding of an event's text for
	// semantic recall.
	IndexEventEmbedding(ctx context.Context, gameID string, eventID int64, embedding []float32) error

	// SimilarEvents returns the topK logged events closest to the query
	// embedding, most similar first.
	SimilarEvents(ctx context.Context, gameID string, embedding []float32, topK int) ([]SimilarEvent, error)

	// Close releases backend resources.
	Close()
}
