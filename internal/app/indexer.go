package app

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/questweaver/questweaver/internal/game"
	"github.com/questweaver/questweaver/internal/store"
	"github.com/questweaver/questweaver/pkg/provider/embeddings"
)

const (
	// indexInterval is the pause between indexing sweeps.
	indexInterval = 30 * time.Second

	// indexWindow bounds how far back one sweep looks into a game's log.
	indexWindow = 100
)

// eventIndexer maintains the semantic event index in the background. Each
// sweep embeds the HIGH-importance events logged since the previous sweep
// and writes them to the store's vector index. Recall runs a similarity
// query over that index.
type eventIndexer struct {
	store    store.Store
	embedder embeddings.Provider
	log      *slog.Logger

	mu      sync.Mutex
	cursors map[string]int64 // per game, highest indexed event id
}

func newEventIndexer(st store.Store, embedder embeddings.Provider, log *slog.Logger) *eventIndexer {
	return &eventIndexer{
		store:    st,
		embedder: embedder,
		log:      log,
		cursors:  map[string]int64{},
	}
}

// run sweeps all games on a fixed interval until ctx ends.
func (ix *eventIndexer) run(ctx context.Context) {
	ticker := time.NewTicker(indexInterval)
	defer ticker.Stop()

	ix.log.Info("event indexer running", "model", ix.embedder.ModelID(), "interval", indexInterval)
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			ix.sweep(ctx)
		}
	}
}

// sweep indexes every game's new HIGH-importance events. Per-game failures
// are logged and skipped so one broken game does not starve the rest.
func (ix *eventIndexer) sweep(ctx context.Context) {
	games, err := ix.store.ListGames(ctx)
	if err != nil {
		ix.log.Warn("indexer: list games failed", "error", err)
		return
	}
	for _, g := range games {
		if err := ix.indexGame(ctx, g.ID); err != nil {
			ix.log.Warn("indexer: game sweep failed", "gameId", g.ID, "error", err)
		}
		if ctx.Err() != nil {
			return
		}
	}
}

// indexGame embeds and indexes the game's unseen HIGH-importance events.
func (ix *eventIndexer) indexGame(ctx context.Context, gameID string) error {
	events, err := ix.store.RecentEvents(ctx, gameID, indexWindow)
	if err != nil {
		return err
	}

	cursor := ix.cursor(gameID)
	var fresh []game.GameEvent
	for _, e := range events {
		if e.ID > cursor && e.Importance == game.ImportanceHigh && e.Text != "" {
			fresh = append(fresh, e)
		}
	}
	if len(fresh) == 0 {
		return nil
	}

	texts := make([]string, len(fresh))
	for i, e := range fresh {
		texts[i] = e.Text
	}
	vectors, err := ix.embedder.EmbedBatch(ctx, texts)
	if err != nil {
		return err
	}

	for i, e := range fresh {
		if err := ix.store.IndexEventEmbedding(ctx, gameID, e.ID, vectors[i]); err != nil {
			return err
		}
		ix.advance(gameID, e.ID)
	}
	ix.log.Debug("indexed events", "gameId", gameID, "count", len(fresh))
	return nil
}

// Recall returns the logged events semantically closest to the query,
// most similar first.
func (ix *eventIndexer) Recall(ctx context.Context, gameID, query string, topK int) ([]store.SimilarEvent, error) {
	vec, err := ix.embedder.Embed(ctx, query)
	if err != nil {
		return nil, err
	}
	return ix.store.SimilarEvents(ctx, gameID, vec, topK)
}

func (ix *eventIndexer) cursor(gameID string) int64 {
	ix.mu.Lock()
	defer ix.mu.Unlock()
	return ix.cursors[gameID]
}

func (ix *eventIndexer) advance(gameID string, id int64) {
	ix.mu.Lock()
	defer ix.mu.Unlock()
	if id > ix.cursors[gameID] {
		ix.cursors[gameID] = id
	}
}
