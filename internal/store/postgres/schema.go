// Package postgres provides the PostgreSQL-backed store.Store
// implementation. Canonical entity forms are JSONB blobs; denormalised
// columns exist only for indexed lookup and are rewritten on every save.
//
// The pgvector extension must be available in the target database; Migrate
// installs it via CREATE EXTENSION IF NOT EXISTS.
package postgres

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5/pgxpool"
)

const ddlGames = `
CREATE TABLE IF NOT EXISTS games (
    id                TEXT         PRIMARY KEY,
    player_name       TEXT         NOT NULL,
    system_type       TEXT         NOT NULL,
    difficulty        TEXT         NOT NULL,
    level             INT          NOT NULL DEFAULT 1,
    playtime_seconds  BIGINT       NOT NULL DEFAULT 0,
    created_at        TIMESTAMPTZ  NOT NULL DEFAULT now(),
    updated_at        TIMESTAMPTZ  NOT NULL DEFAULT now()
);

CREATE TABLE IF NOT EXISTS game_states (
    game_id     TEXT         PRIMARY KEY REFERENCES games (id) ON DELETE CASCADE,
    state       JSONB        NOT NULL,
    updated_at  TIMESTAMPTZ  NOT NULL DEFAULT now()
);
`

const ddlEvents = `
CREATE TABLE IF NOT EXISTS game_events (
    id           BIGSERIAL    PRIMARY KEY,
    game_id      TEXT         NOT NULL REFERENCES games (id) ON DELETE CASCADE,
    type         TEXT         NOT NULL,
    category     TEXT         NOT NULL,
    importance   TEXT         NOT NULL,
    text         TEXT         NOT NULL,
    npc_id       TEXT         NOT NULL DEFAULT '',
    location_id  TEXT         NOT NULL DEFAULT '',
    quest_id     TEXT         NOT NULL DEFAULT '',
    item_id      TEXT         NOT NULL DEFAULT '',
    timestamp    TIMESTAMPTZ  NOT NULL DEFAULT now()
);

CREATE INDEX IF NOT EXISTS idx_game_events_game_id
    ON game_events (game_id, id);

CREATE INDEX IF NOT EXISTS idx_game_events_category
    ON game_events (game_id, category);

CREATE INDEX IF NOT EXISTS idx_game_events_npc
    ON game_events (game_id, npc_id) WHERE npc_id <> '';

CREATE INDEX IF NOT EXISTS idx_game_events_quest
    ON game_events (game_id, quest_id) WHERE quest_id <> '';

CREATE INDEX IF NOT EXISTS idx_game_events_fts
    ON game_events USING GIN (to_tsvector('english', text));
`

const ddlChildren = `
CREATE TABLE IF NOT EXISTS npcs (
    game_id     TEXT         NOT NULL REFERENCES games (id) ON DELETE CASCADE,
    id          TEXT         NOT NULL,
    location_id TEXT         NOT NULL DEFAULT '',
    data        JSONB        NOT NULL,
    updated_at  TIMESTAMPTZ  NOT NULL DEFAULT now(),
    PRIMARY KEY (game_id, id)
);

CREATE INDEX IF NOT EXISTS idx_npcs_location
    ON npcs (game_id, location_id);

CREATE TABLE IF NOT EXISTS quests (
    game_id     TEXT         NOT NULL REFERENCES games (id) ON DELETE CASCADE,
    id          TEXT         NOT NULL,
    status      TEXT         NOT NULL DEFAULT 'NOT_STARTED',
    data        JSONB        NOT NULL,
    updated_at  TIMESTAMPTZ  NOT NULL DEFAULT now(),
    PRIMARY KEY (game_id, id)
);

CREATE TABLE IF NOT EXISTS custom_locations (
    game_id     TEXT         NOT NULL REFERENCES games (id) ON DELETE CASCADE,
    id          TEXT         NOT NULL,
    data        JSONB        NOT NULL,
    updated_at  TIMESTAMPTZ  NOT NULL DEFAULT now(),
    PRIMARY KEY (game_id, id)
);
`

const ddlPlot = `
CREATE TABLE IF NOT EXISTS plot_graphs (
    game_id     TEXT         PRIMARY KEY REFERENCES games (id) ON DELETE CASCADE,
    version     INT          NOT NULL,
    graph       JSONB        NOT NULL,
    updated_at  TIMESTAMPTZ  NOT NULL DEFAULT now()
);

CREATE TABLE IF NOT EXISTS plot_nodes (
    game_id        TEXT   NOT NULL REFERENCES games (id) ON DELETE CASCADE,
    node_id        TEXT   NOT NULL,
    thread_id      TEXT   NOT NULL,
    tier           INT    NOT NULL DEFAULT 0,
    sequence       INT    NOT NULL DEFAULT 0,
    trigger_level  INT    NOT NULL DEFAULT 0,
    status         TEXT   NOT NULL,
    data           JSONB  NOT NULL,
    PRIMARY KEY (game_id, node_id)
);

CREATE INDEX IF NOT EXISTS idx_plot_nodes_trigger
    ON plot_nodes (game_id, status, trigger_level);

CREATE INDEX IF NOT EXISTS idx_plot_nodes_thread
    ON plot_nodes (game_id, thread_id, sequence);

CREATE TABLE IF NOT EXISTS plot_edges (
    game_id    TEXT             NOT NULL REFERENCES games (id) ON DELETE CASCADE,
    edge_id    TEXT             NOT NULL,
    from_node  TEXT             NOT NULL,
    to_node    TEXT             NOT NULL,
    edge_type  TEXT             NOT NULL,
    weight     DOUBLE PRECISION NOT NULL DEFAULT 0,
    data       JSONB            NOT NULL,
    PRIMARY KEY (game_id, edge_id)
);

CREATE TABLE IF NOT EXISTS planning_sessions (
    id                  TEXT         PRIMARY KEY,
    game_id             TEXT         NOT NULL REFERENCES games (id) ON DELETE CASCADE,
    invocation_counter  INT          NOT NULL,
    mode                TEXT         NOT NULL,
    player_level        INT          NOT NULL,
    data                JSONB        NOT NULL,
    created_at          TIMESTAMPTZ  NOT NULL DEFAULT now()
);

CREATE INDEX IF NOT EXISTS idx_planning_sessions_game
    ON planning_sessions (game_id, created_at);
`

// ddlEmbeddings returns the semantic-index DDL with the embedding dimension
// substituted. The dimension is baked into the column type at creation;
// changing it later requires a manual schema change.
func ddlEmbeddings(dimensions int) string {
	return fmt.Sprintf(`
CREATE EXTENSION IF NOT EXISTS vector;

CREATE TABLE IF NOT EXISTS event_embeddings (
    game_id    TEXT        NOT NULL REFERENCES games (id) ON DELETE CASCADE,
    event_id   BIGINT      NOT NULL REFERENCES game_events (id) ON DELETE CASCADE,
    embedding  vector(%d),
    PRIMARY KEY (game_id, event_id)
);

CREATE INDEX IF NOT EXISTS idx_event_embeddings_hnsw
    ON event_embeddings USING hnsw (embedding vector_cosine_ops);
`, dimensions)
}

// Migrate creates or ensures all required tables, indexes and extensions.
// It is idempotent and safe to run on every application start.
func Migrate(ctx context.Context, pool *pgxpool.Pool, embeddingDimensions int) error {
	statements := []string{
		ddlGames,
		ddlEvents,
		ddlChildren,
		ddlPlot,
		ddlEmbeddings(embeddingDimensions),
	}
	for _, stmt := range statements {
		if _, err := pool.Exec(ctx, stmt); err != nil {
			return fmt.Errorf("postgres migrate: %w", err)
		}
	}
	return nil
}
