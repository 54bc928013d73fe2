package postgres

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	pgxvec "github.com/pgvector/pgvector-go/pgx"

	"github.com/questweaver/questweaver/internal/game"
	"github.com/questweaver/questweaver/internal/store"
)

// Store implements store.Store on a pgx connection pool.
type Store struct {
	pool *pgxpool.Pool
}

var _ store.Store = (*Store)(nil)

// NewStore connects to the database, registers pgvector types on every
// connection, and runs migrations. embeddingDimensions fixes the width of
// the event_embeddings column and must match the embedding provider.
func NewStore(ctx context.Context, dsn string, embeddingDimensions int) (*Store, error) {
	cfg, err := pgxpool.ParseConfig(dsn)
	if err != nil {
		return nil, fmt.Errorf("postgres: parse dsn: %w", err)
	}
	cfg.AfterConnect = func(ctx context.Context, conn *pgx.Conn) error {
		return pgxvec.RegisterTypes(ctx, conn)
	}

	pool, err := pgxpool.NewWithConfig(ctx, cfg)
	if err != nil {
		return nil, fmt.Errorf("postgres: connect: %w", err)
	}
	if err := Migrate(ctx, pool, embeddingDimensions); err != nil {
		pool.Close()
		return nil, err
	}
	return &Store{pool: pool}, nil
}

// Close releases the connection pool.
func (s *Store) Close() {
	s.pool.Close()
}

func wrap(op, gameID string, err error) error {
	if errors.Is(err, pgx.ErrNoRows) {
		err = store.ErrNotFound
	}
	return &store.Error{Op: op, GameID: gameID, Err: err}
}

// CreateGame inserts the metadata record and initial state snapshot in one
// transaction.
func (s *Store) CreateGame(ctx context.Context, g game.Game, initial game.GameState) error {
	blob, err := json.Marshal(initial)
	if err != nil {
		return wrap("create game", g.ID, err)
	}

	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return wrap("create game", g.ID, err)
	}
	defer tx.Rollback(ctx)

	_, err = tx.Exec(ctx, `
		INSERT INTO games (id, player_name, system_type, difficulty, level, playtime_seconds)
		VALUES ($1, $2, $3, $4, $5, $6)`,
		g.ID, g.PlayerName, g.SystemType, g.Difficulty, g.Level, g.PlaytimeSeconds)
	if err != nil {
		return wrap("create game", g.ID, err)
	}
	_, err = tx.Exec(ctx, `INSERT INTO game_states (game_id, state) VALUES ($1, $2)`,
		g.ID, blob)
	if err != nil {
		return wrap("create game", g.ID, err)
	}
	if err := tx.Commit(ctx); err != nil {
		return wrap("create game", g.ID, err)
	}
	return nil
}

func scanGame(row pgx.CollectableRow) (game.Game, error) {
	var g game.Game
	err := row.Scan(&g.ID, &g.PlayerName, &g.SystemType, &g.Difficulty,
		&g.Level, &g.PlaytimeSeconds, &g.CreatedAt, &g.UpdatedAt)
	return g, err
}

const gameColumns = `id, player_name, system_type, difficulty, level, playtime_seconds, created_at, updated_at`

// GetGame returns the metadata record for one game.
func (s *Store) GetGame(ctx context.Context, gameID string) (game.Game, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT `+gameColumns+` FROM games WHERE id = $1`, gameID)
	if err != nil {
		return game.Game{}, wrap("get game", gameID, err)
	}
	g, err := pgx.CollectExactlyOneRow(rows, scanGame)
	if err != nil {
		return game.Game{}, wrap("get game", gameID, err)
	}
	return g, nil
}

// ListGames returns every game, most recently updated first.
func (s *Store) ListGames(ctx context.Context) ([]game.Game, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT `+gameColumns+` FROM games ORDER BY updated_at DESC`)
	if err != nil {
		return nil, wrap("list games", "", err)
	}
	games, err := pgx.CollectRows(rows, scanGame)
	if err != nil {
		return nil, wrap("list games", "", err)
	}
	return games, nil
}

// SaveGame writes the state snapshot, refreshes the metadata row, and
// upserts the child entities in a single transaction.
func (s *Store) SaveGame(ctx context.Context, state game.GameState, playtime time.Duration) error {
	blob, err := json.Marshal(state)
	if err != nil {
		return wrap("save game", state.GameID, err)
	}

	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return wrap("save game", state.GameID, err)
	}
	defer tx.Rollback(ctx)

	tag, err := tx.Exec(ctx, `
		UPDATE games SET level = $2, playtime_seconds = $3, updated_at = now()
		WHERE id = $1`,
		state.GameID, state.Sheet.Level, int64(playtime.Seconds()))
	if err != nil {
		return wrap("save game", state.GameID, err)
	}
	if tag.RowsAffected() == 0 {
		return wrap("save game", state.GameID, store.ErrNotFound)
	}

	_, err = tx.Exec(ctx, `
		INSERT INTO game_states (game_id, state) VALUES ($1, $2)
		ON CONFLICT (game_id) DO UPDATE SET state = EXCLUDED.state, updated_at = now()`,
		state.GameID, blob)
	if err != nil {
		return wrap("save game", state.GameID, err)
	}

	for _, npcs := range state.NPCsByLocation {
		for _, n := range npcs {
			if err := upsertNPC(ctx, tx, state.GameID, n); err != nil {
				return wrap("save game", state.GameID, err)
			}
		}
	}
	for _, q := range state.ActiveQuests {
		if err := upsertQuest(ctx, tx, state.GameID, q); err != nil {
			return wrap("save game", state.GameID, err)
		}
	}
	for _, l := range state.CustomLocations {
		if err := upsertLocation(ctx, tx, state.GameID, l); err != nil {
			return wrap("save game", state.GameID, err)
		}
	}

	if err := tx.Commit(ctx); err != nil {
		return wrap("save game", state.GameID, err)
	}
	return nil
}

// LoadState reads the snapshot and overlays the freshly read child rows.
// A child row that fails to unmarshal is skipped; the blob stays canonical.
func (s *Store) LoadState(ctx context.Context, gameID string) (game.GameState, error) {
	var blob []byte
	err := s.pool.QueryRow(ctx,
		`SELECT state FROM game_states WHERE game_id = $1`, gameID).Scan(&blob)
	if err != nil {
		return game.GameState{}, wrap("load state", gameID, err)
	}
	var state game.GameState
	if err := json.Unmarshal(blob, &state); err != nil {
		return game.GameState{}, wrap("load state", gameID, err)
	}

	if npcs, err := s.LoadNPCs(ctx, gameID); err == nil && len(npcs) > 0 {
		byLoc := make(map[string][]game.NPC)
		for _, n := range npcs {
			byLoc[n.LocationID] = append(byLoc[n.LocationID], n)
		}
		state.NPCsByLocation = byLoc
	}
	if quests, err := s.LoadQuests(ctx, gameID); err == nil && len(quests) > 0 {
		active := make(map[string]game.Quest)
		for _, q := range quests {
			if state.CompletedQuests[q.ID] {
				continue
			}
			active[q.ID] = q
		}
		state.ActiveQuests = active
	}
	if locs, err := s.LoadLocations(ctx, gameID); err == nil && len(locs) > 0 {
		custom := make(map[string]game.Location)
		for _, l := range locs {
			custom[l.ID] = l
		}
		state.CustomLocations = custom
	}
	return state, nil
}

// DeleteGame removes the game; child rows go with it via ON DELETE CASCADE.
func (s *Store) DeleteGame(ctx context.Context, gameID string) error {
	tag, err := s.pool.Exec(ctx, `DELETE FROM games WHERE id = $1`, gameID)
	if err != nil {
		return wrap("delete game", gameID, err)
	}
	if tag.RowsAffected() == 0 {
		return wrap("delete game", gameID, store.ErrNotFound)
	}
	return nil
}

func upsertNPC(ctx context.Context, tx pgx.Tx, gameID string, n game.NPC) error {
	blob, err := json.Marshal(n)
	if err != nil {
		return err
	}
	_, err = tx.Exec(ctx, `
		INSERT INTO npcs (game_id, id, location_id, data)
		VALUES ($1, $2, $3, $4)
		ON CONFLICT (game_id, id) DO UPDATE
		SET location_id = EXCLUDED.location_id, data = EXCLUDED.data, updated_at = now()`,
		gameID, n.ID, n.LocationID, blob)
	return err
}

func upsertQuest(ctx context.Context, tx pgx.Tx, gameID string, q game.Quest) error {
	blob, err := json.Marshal(q)
	if err != nil {
		return err
	}
	_, err = tx.Exec(ctx, `
		INSERT INTO quests (game_id, id, status, data)
		VALUES ($1, $2, $3, $4)
		ON CONFLICT (game_id, id) DO UPDATE
		SET status = EXCLUDED.status, data = EXCLUDED.data, updated_at = now()`,
		gameID, q.ID, q.Status, blob)
	return err
}

func upsertLocation(ctx context.Context, tx pgx.Tx, gameID string, l game.Location) error {
	blob, err := json.Marshal(l)
	if err != nil {
		return err
	}
	_, err = tx.Exec(ctx, `
		INSERT INTO custom_locations (game_id, id, data)
		VALUES ($1, $2, $3)
		ON CONFLICT (game_id, id) DO UPDATE
		SET data = EXCLUDED.data, updated_at = now()`,
		gameID, l.ID, blob)
	return err
}

// SaveNPC upserts one NPC outside a full SaveGame.
func (s *Store) SaveNPC(ctx context.Context, gameID string, n game.NPC) error {
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return wrap("save npc", gameID, err)
	}
	defer tx.Rollback(ctx)
	if err := upsertNPC(ctx, tx, gameID, n); err != nil {
		return wrap("save npc", gameID, err)
	}
	if err := tx.Commit(ctx); err != nil {
		return wrap("save npc", gameID, err)
	}
	return nil
}

// LoadNPCs returns every NPC of a game in id order.
func (s *Store) LoadNPCs(ctx context.Context, gameID string) ([]game.NPC, error) {
	return loadChildren[game.NPC](ctx, s, "load npcs", gameID,
		`SELECT data FROM npcs WHERE game_id = $1 ORDER BY id`)
}

// SaveQuest upserts one quest outside a full SaveGame.
func (s *Store) SaveQuest(ctx context.Context, gameID string, q game.Quest) error {
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return wrap("save quest", gameID, err)
	}
	defer tx.Rollback(ctx)
	if err := upsertQuest(ctx, tx, gameID, q); err != nil {
		return wrap("save quest", gameID, err)
	}
	if err := tx.Commit(ctx); err != nil {
		return wrap("save quest", gameID, err)
	}
	return nil
}

// LoadQuests returns every quest of a game in id order.
func (s *Store) LoadQuests(ctx context.Context, gameID string) ([]game.Quest, error) {
	return loadChildren[game.Quest](ctx, s, "load quests", gameID,
		`SELECT data FROM quests WHERE game_id = $1 ORDER BY id`)
}

// SaveLocation upserts one custom location outside a full SaveGame.
func (s *Store) SaveLocation(ctx context.Context, gameID string, l game.Location) error {
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return wrap("save location", gameID, err)
	}
	defer tx.Rollback(ctx)
	if err := upsertLocation(ctx, tx, gameID, l); err != nil {
		return wrap("save location", gameID, err)
	}
	if err := tx.Commit(ctx); err != nil {
		return wrap("save location", gameID, err)
	}
	return nil
}

// LoadLocations returns every custom location of a game in id order.
func (s *Store) LoadLocations(ctx context.Context, gameID string) ([]game.Location, error) {
	return loadChildren[game.Location](ctx, s, "load locations", gameID,
		`SELECT data FROM custom_locations WHERE game_id = $1 ORDER BY id`)
}

// loadChildren reads JSONB blob rows into entities, skipping corrupt blobs.
func loadChildren[T any](ctx context.Context, s *Store, op, gameID, query string) ([]T, error) {
	rows, err := s.pool.Query(ctx, query, gameID)
	if err != nil {
		return nil, wrap(op, gameID, err)
	}
	defer rows.Close()

	var out []T
	for rows.Next() {
		var blob []byte
		if err := rows.Scan(&blob); err != nil {
			return nil, wrap(op, gameID, err)
		}
		var v T
		if err := json.Unmarshal(blob, &v); err != nil {
			continue
		}
		out = append(out, v)
	}
	if err := rows.Err(); err != nil {
		return nil, wrap(op, gameID, err)
	}
	return out, nil
}
