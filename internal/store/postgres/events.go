package postgres

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/pgvector/pgvector-go"

	"github.com/questweaver/questweaver/internal/game"
	"github.com/questweaver/questweaver/internal/store"
)

const eventColumns = `id, game_id, type, category, importance, text,
	npc_id, location_id, quest_id, item_id, timestamp`

const defaultSearchLimit = 20

func scanEvent(row pgx.CollectableRow) (game.GameEvent, error) {
	var e game.GameEvent
	err := row.Scan(&e.ID, &e.GameID, &e.Type, &e.Category, &e.Importance,
		&e.Text, &e.NPCID, &e.LocationID, &e.QuestID, &e.ItemID, &e.Timestamp)
	return e, err
}

// LogEvent appends to the event log. The BIGSERIAL id is globally monotone
// with commit order, so per-game ids are monotone as well.
func (s *Store) LogEvent(ctx context.Context, e game.GameEvent) (game.GameEvent, error) {
	err := s.pool.QueryRow(ctx, `
		INSERT INTO game_events (game_id, type, category, importance, text,
			npc_id, location_id, quest_id, item_id)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
		RETURNING id, timestamp`,
		e.GameID, e.Type, e.Category, e.Importance, e.Text,
		e.NPCID, e.LocationID, e.QuestID, e.ItemID).
		Scan(&e.ID, &e.Timestamp)
	if err != nil {
		return game.GameEvent{}, wrap("log event", e.GameID, err)
	}
	return e, nil
}

// RecentEvents returns the latest limit events in ascending id order.
func (s *Store) RecentEvents(ctx context.Context, gameID string, limit int) ([]game.GameEvent, error) {
	if limit <= 0 {
		limit = defaultSearchLimit
	}
	rows, err := s.pool.Query(ctx, `
		SELECT * FROM (
			SELECT `+eventColumns+` FROM game_events
			WHERE game_id = $1 ORDER BY id DESC LIMIT $2
		) latest ORDER BY id ASC`,
		gameID, limit)
	if err != nil {
		return nil, wrap("recent events", gameID, err)
	}
	events, err := pgx.CollectRows(rows, scanEvent)
	if err != nil {
		return nil, wrap("recent events", gameID, err)
	}
	return events, nil
}

// SearchEvents runs a full-text query over the log with the optional
// filters ANDed in. The WHERE clause is assembled dynamically so only the
// set filters cost anything.
func (s *Store) SearchEvents(ctx context.Context, gameID, query string, opts store.SearchOpts) ([]game.GameEvent, error) {
	args := []any{gameID}
	next := func(v any) string {
		args = append(args, v)
		return fmt.Sprintf("$%d", len(args))
	}

	sql := `SELECT ` + eventColumns + ` FROM game_events WHERE game_id = $1`
	if query != "" {
		sql += ` AND to_tsvector('english', text) @@ plainto_tsquery('english', ` + next(query) + `)`
	}
	if opts.Category != "" {
		sql += ` AND category = ` + next(opts.Category)
	}
	if opts.NPCID != "" {
		sql += ` AND npc_id = ` + next(opts.NPCID)
	}
	if opts.LocationID != "" {
		sql += ` AND location_id = ` + next(opts.LocationID)
	}
	if opts.QuestID != "" {
		sql += ` AND quest_id = ` + next(opts.QuestID)
	}
	if opts.ItemID != "" {
		sql += ` AND item_id = ` + next(opts.ItemID)
	}
	if opts.After > 0 {
		sql += ` AND id > ` + next(opts.After)
	}

	limit := opts.Limit
	if limit <= 0 {
		limit = defaultSearchLimit
	}
	sql += ` ORDER BY id ASC LIMIT ` + next(limit)

	rows, err := s.pool.Query(ctx, sql, args...)
	if err != nil {
		return nil, wrap("search events", gameID, err)
	}
	events, err := pgx.CollectRows(rows, scanEvent)
	if err != nil {
		return nil, wrap("search events", gameID, err)
	}
	return events, nil
}

// IndexEventEmbedding stores or replaces the embedding for one event.
func (s *Store) IndexEventEmbedding(ctx context.Context, gameID string, eventID int64, embedding []float32) error {
	_, err := s.pool.Exec(ctx, `
		INSERT INTO event_embeddings (game_id, event_id, embedding)
		VALUES ($1, $2, $3)
		ON CONFLICT (game_id, event_id) DO UPDATE SET embedding = EXCLUDED.embedding`,
		gameID, eventID, pgvector.NewVector(embedding))
	if err != nil {
		return wrap("index embedding", gameID, err)
	}
	return nil
}

// SimilarEvents returns the topK indexed events closest to the query
// embedding by cosine distance, most similar first.
func (s *Store) SimilarEvents(ctx context.Context, gameID string, embedding []float32, topK int) ([]store.SimilarEvent, error) {
	if topK <= 0 {
		topK = 5
	}
	rows, err := s.pool.Query(ctx, `
		SELECT e.id, e.game_id, e.type, e.category, e.importance, e.text,
			e.npc_id, e.location_id, e.quest_id, e.item_id, e.timestamp,
			emb.embedding <=> $2 AS distance
		FROM event_embeddings emb
		JOIN game_events e ON e.game_id = emb.game_id AND e.id = emb.event_id
		WHERE emb.game_id = $1
		ORDER BY distance ASC
		LIMIT $3`,
		gameID, pgvector.NewVector(embedding), topK)
	if err != nil {
		return nil, wrap("similar events", gameID, err)
	}
	similar, err := pgx.CollectRows(rows, func(row pgx.CollectableRow) (store.SimilarEvent, error) {
		var se store.SimilarEvent
		e := &se.Event
		err := row.Scan(&e.ID, &e.GameID, &e.Type, &e.Category, &e.Importance,
			&e.Text, &e.NPCID, &e.LocationID, &e.QuestID, &e.ItemID, &e.Timestamp,
			&se.Distance)
		return se, err
	})
	if err != nil {
		return nil, wrap("similar events", gameID, err)
	}
	return similar, nil
}
