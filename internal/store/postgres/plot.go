package postgres

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/jackc/pgx/v5"

	"github.com/questweaver/questweaver/internal/plot"
	"github.com/questweaver/questweaver/internal/store"
)

// SavePlotGraph atomically replaces the stored graph. The incoming version
// must strictly exceed the stored one; a stale write gets
// store.ErrVersionConflict. Denormalised node and edge rows are rebuilt in
// the same transaction.
func (s *Store) SavePlotGraph(ctx context.Context, g plot.Graph) error {
	blob, err := json.Marshal(g)
	if err != nil {
		return wrap("save plot graph", g.GameID, err)
	}

	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return wrap("save plot graph", g.GameID, err)
	}
	defer tx.Rollback(ctx)

	tag, err := tx.Exec(ctx, `
		INSERT INTO plot_graphs (game_id, version, graph)
		VALUES ($1, $2, $3)
		ON CONFLICT (game_id) DO UPDATE
		SET version = EXCLUDED.version, graph = EXCLUDED.graph, updated_at = now()
		WHERE plot_graphs.version < EXCLUDED.version`,
		g.GameID, g.Version, blob)
	if err != nil {
		return wrap("save plot graph", g.GameID, err)
	}
	if tag.RowsAffected() == 0 {
		return wrap("save plot graph", g.GameID,
			fmt.Errorf("version %d: %w", g.Version, store.ErrVersionConflict))
	}

	if _, err := tx.Exec(ctx, `DELETE FROM plot_nodes WHERE game_id = $1`, g.GameID); err != nil {
		return wrap("save plot graph", g.GameID, err)
	}
	if _, err := tx.Exec(ctx, `DELETE FROM plot_edges WHERE game_id = $1`, g.GameID); err != nil {
		return wrap("save plot graph", g.GameID, err)
	}

	for _, n := range g.Nodes {
		data, err := json.Marshal(n)
		if err != nil {
			return wrap("save plot graph", g.GameID, err)
		}
		_, err = tx.Exec(ctx, `
			INSERT INTO plot_nodes (game_id, node_id, thread_id, tier, sequence,
				trigger_level, status, data)
			VALUES ($1, $2, $3, $4, $5, $6, $7, $8)`,
			g.GameID, n.ID, n.ThreadID, n.Position.Tier, n.Position.Sequence,
			n.Beat.TriggerLevel, n.Status, data)
		if err != nil {
			return wrap("save plot graph", g.GameID, err)
		}
	}
	for _, e := range g.Edges {
		data, err := json.Marshal(e)
		if err != nil {
			return wrap("save plot graph", g.GameID, err)
		}
		_, err = tx.Exec(ctx, `
			INSERT INTO plot_edges (game_id, edge_id, from_node, to_node, edge_type, weight, data)
			VALUES ($1, $2, $3, $4, $5, $6, $7)`,
			g.GameID, e.ID, e.FromNodeID, e.ToNodeID, e.Type, e.Weight, data)
		if err != nil {
			return wrap("save plot graph", g.GameID, err)
		}
	}

	if err := tx.Commit(ctx); err != nil {
		return wrap("save plot graph", g.GameID, err)
	}
	return nil
}

// LoadPlotGraph returns the current graph, or store.ErrNotFound for a game
// that has never been planned.
func (s *Store) LoadPlotGraph(ctx context.Context, gameID string) (plot.Graph, error) {
	var blob []byte
	err := s.pool.QueryRow(ctx,
		`SELECT graph FROM plot_graphs WHERE game_id = $1`, gameID).Scan(&blob)
	if err != nil {
		return plot.Graph{}, wrap("load plot graph", gameID, err)
	}
	var g plot.Graph
	if err := json.Unmarshal(blob, &g); err != nil {
		return plot.Graph{}, wrap("load plot graph", gameID, err)
	}
	return g, nil
}

// UpdateNodeStatus transitions one node on the current graph version. The
// graph blob is rewritten under a row lock so concurrent transitions do not
// lose each other; the version is not bumped.
func (s *Store) UpdateNodeStatus(ctx context.Context, gameID, nodeID string, status plot.NodeStatus) error {
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return wrap("update node status", gameID, err)
	}
	defer tx.Rollback(ctx)

	var blob []byte
	err = tx.QueryRow(ctx,
		`SELECT graph FROM plot_graphs WHERE game_id = $1 FOR UPDATE`, gameID).Scan(&blob)
	if err != nil {
		return wrap("update node status", gameID, err)
	}
	var g plot.Graph
	if err := json.Unmarshal(blob, &g); err != nil {
		return wrap("update node status", gameID, err)
	}
	g, err = g.SetStatus(nodeID, status)
	if err != nil {
		return wrap("update node status", gameID, err)
	}
	blob, err = json.Marshal(g)
	if err != nil {
		return wrap("update node status", gameID, err)
	}

	_, err = tx.Exec(ctx,
		`UPDATE plot_graphs SET graph = $2, updated_at = now() WHERE game_id = $1`,
		gameID, blob)
	if err != nil {
		return wrap("update node status", gameID, err)
	}
	_, err = tx.Exec(ctx,
		`UPDATE plot_nodes SET status = $3 WHERE game_id = $1 AND node_id = $2`,
		gameID, nodeID, status)
	if err != nil {
		return wrap("update node status", gameID, err)
	}

	if err := tx.Commit(ctx); err != nil {
		return wrap("update node status", gameID, err)
	}
	return nil
}

// SavePlanningSession records one completed planner run.
func (s *Store) SavePlanningSession(ctx context.Context, ps store.PlanningSession) error {
	blob, err := json.Marshal(ps)
	if err != nil {
		return wrap("save planning session", ps.GameID, err)
	}
	_, err = s.pool.Exec(ctx, `
		INSERT INTO planning_sessions (id, game_id, invocation_counter, mode, player_level, data, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7)`,
		ps.ID, ps.GameID, ps.InvocationCounter, ps.Mode, ps.PlayerLevel, blob, ps.CreatedAt)
	if err != nil {
		return wrap("save planning session", ps.GameID, err)
	}
	return nil
}

// LoadPlanningSessions returns a game's planner history, oldest first.
func (s *Store) LoadPlanningSessions(ctx context.Context, gameID string) ([]store.PlanningSession, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT data FROM planning_sessions
		WHERE game_id = $1 ORDER BY created_at ASC, invocation_counter ASC`,
		gameID)
	if err != nil {
		return nil, wrap("load planning sessions", gameID, err)
	}
	sessions, err := pgx.CollectRows(rows, func(row pgx.CollectableRow) (store.PlanningSession, error) {
		var blob []byte
		if err := row.Scan(&blob); err != nil {
			return store.PlanningSession{}, err
		}
		var ps store.PlanningSession
		err := json.Unmarshal(blob, &ps)
		return ps, err
	})
	if err != nil {
		return nil, wrap("load planning sessions", gameID, err)
	}
	return sessions, nil
}
