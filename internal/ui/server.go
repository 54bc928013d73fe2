// Package ui is the HTTP/WebSocket face of the engine. Each game has one
// websocket at /ws/{gameID} carrying player input downstream and narration
// chunks upstream. Output goes through a bounded per-game queue: the
// orchestrator blocks on a full queue, a drainer task polls it onto the
// live connection, and a disconnect leaves buffered chunks in place so a
// reconnect replays them in order.
package ui

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/coder/websocket"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/questweaver/questweaver/internal/game"
	"github.com/questweaver/questweaver/internal/observe"
	"github.com/questweaver/questweaver/internal/orchestrator"
)

const (
	// outboxCapacity bounds the narration queue per game. The orchestrator
	// blocks on emit when the queue is full.
	outboxCapacity = 256

	// drainInterval is the drainer's poll delay on an empty queue.
	drainInterval = 10 * time.Millisecond
)

// Engine is the slice of the orchestrator the transport needs.
type Engine interface {
	NewGame(ctx context.Context, req orchestrator.NewGameRequest) (game.GameState, error)
	PlayTurn(ctx context.Context, gameID, input string, emit func(string) error) (orchestrator.TurnResult, error)
	State(ctx context.Context, gameID string) (game.GameState, error)
}

// Server serves the game API and the per-game websockets.
type Server struct {
	engine  Engine
	log     *slog.Logger
	metrics *observe.Metrics

	mu       sync.Mutex
	sessions map[string]*wsSession
}

// wsSession is the per-game output queue and consumer slot. The queue
// outlives individual connections.
type wsSession struct {
	outbox chan string

	mu     sync.Mutex
	active bool

	// pending holds a chunk pulled from the queue whose write failed, so
	// the next drainer delivers it before anything newer.
	pending *string
}

// NewServer builds the transport over the engine.
func NewServer(engine Engine, log *slog.Logger) *Server {
	if log == nil {
		log = slog.Default()
	}
	return &Server{
		engine:   engine,
		log:      log,
		metrics:  observe.DefaultMetrics(),
		sessions: map[string]*wsSession{},
	}
}

// Handler returns the full route set: game API, websocket, health and
// metrics.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("POST /games", s.handleCreateGame)
	mux.HandleFunc("GET /games/{gameID}", s.handleGameState)
	mux.HandleFunc("GET /ws/{gameID}", s.handleSocket)
	mux.HandleFunc("GET /healthz", func(w http.ResponseWriter, _ *http.Request) {
		writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	})
	mux.Handle("GET /metrics", promhttp.Handler())
	return observe.Middleware(s.metrics)(mux)
}

// createGameRequest is the JSON body for POST /games.
type createGameRequest struct {
	PlayerName    string             `json:"player_name"`
	SystemType    string             `json:"system_type,omitempty"`
	Difficulty    string             `json:"difficulty,omitempty"`
	ClassID       string             `json:"class_id,omitempty"`
	Backstory     string             `json:"backstory,omitempty"`
	WorldSettings game.WorldSettings `json:"world_settings,omitempty"`
}

type createGameResponse struct {
	GameID     string `json:"game_id"`
	PlayerName string `json:"player_name"`
	SystemType string `json:"system_type"`
	Location   string `json:"location"`
	Level      int    `json:"level"`
}

func (s *Server) handleCreateGame(w http.ResponseWriter, r *http.Request) {
	var req createGameRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "invalid request body", http.StatusBadRequest)
		return
	}

	gs, err := s.engine.NewGame(r.Context(), orchestrator.NewGameRequest{
		PlayerName:    req.PlayerName,
		SystemType:    game.SystemType(req.SystemType),
		Difficulty:    game.Difficulty(req.Difficulty),
		ClassID:       req.ClassID,
		Backstory:     req.Backstory,
		WorldSettings: req.WorldSettings,
	})
	if err != nil {
		s.log.Warn("game creation failed", "error", err)
		http.Error(w, err.Error(), http.StatusUnprocessableEntity)
		return
	}

	writeJSON(w, http.StatusCreated, createGameResponse{
		GameID:     gs.GameID,
		PlayerName: gs.PlayerName,
		SystemType: string(gs.SystemType),
		Location:   gs.CurrentLocation.Name,
		Level:      gs.Sheet.Level,
	})
}

type gameStateResponse struct {
	GameID   string `json:"game_id"`
	Player   string `json:"player"`
	Level    int    `json:"level"`
	Grade    string `json:"grade"`
	XP       int    `json:"xp"`
	Gold     int    `json:"gold"`
	Location string `json:"location"`
	System   string `json:"system,omitempty"`
}

func (s *Server) handleGameState(w http.ResponseWriter, r *http.Request) {
	gameID := r.PathValue("gameID")
	gs, err := s.engine.State(r.Context(), gameID)
	if err != nil {
		if errors.Is(err, orchestrator.ErrBusy) {
			http.Error(w, "a turn is in progress", http.StatusConflict)
			return
		}
		http.Error(w, "game not found", http.StatusNotFound)
		return
	}
	writeJSON(w, http.StatusOK, gameStateResponse{
		GameID:   gs.GameID,
		Player:   gs.PlayerName,
		Level:    gs.Sheet.Level,
		Grade:    string(gs.Sheet.Grade),
		XP:       gs.Sheet.XP,
		Gold:     gs.Sheet.Gold,
		Location: gs.CurrentLocation.Name,
		System:   gs.System.Name,
	})
}

// handleSocket upgrades the connection and runs the read loop. One active
// consumer per game; a second connect is rejected before the upgrade.
func (s *Server) handleSocket(w http.ResponseWriter, r *http.Request) {
	gameID := r.PathValue("gameID")
	if _, err := s.engine.State(r.Context(), gameID); err != nil {
		http.Error(w, "game not found", http.StatusNotFound)
		return
	}

	sess := s.session(gameID)
	if !sess.claim() {
		http.Error(w, "game already has an active consumer", http.StatusConflict)
		return
	}
	defer sess.release()

	conn, err := websocket.Accept(w, r, nil)
	if err != nil {
		s.log.Warn("websocket accept failed", "gameId", gameID, "error", err)
		return
	}
	defer conn.Close(websocket.StatusNormalClosure, "session over")

	ctx, cancel := context.WithCancel(r.Context())
	defer cancel()
	go s.drain(ctx, cancel, sess, conn)

	s.log.Info("consumer connected", "gameId", gameID)
	s.readLoop(ctx, gameID, sess, conn)
	s.log.Info("consumer disconnected", "gameId", gameID)
}

// readLoop turns each inbound frame into one orchestrated turn. Turns run
// serially; narration flows through the session outbox.
func (s *Server) readLoop(ctx context.Context, gameID string, sess *wsSession, conn *websocket.Conn) {
	for {
		_, data, err := conn.Read(ctx)
		if err != nil {
			return
		}
		input := strings.TrimRight(string(data), "\r\n")
		if input == "" {
			continue
		}

		_, err = s.engine.PlayTurn(ctx, gameID, input, func(chunk string) error {
			return sess.push(ctx, chunk)
		})
		switch {
		case err == nil:
		case errors.Is(err, orchestrator.ErrBusy):
			_ = sess.push(ctx, "The System is still weighing your last action.\n")
		case errors.Is(err, context.Canceled):
			return
		default:
			s.log.Error("turn failed", "gameId", gameID, "error", err)
			_ = sess.push(ctx, "Something went wrong; your action was not recorded.\n")
		}
	}
}

// drain polls the session queue onto the connection until the context ends.
// A failed write keeps the chunk for the next consumer.
func (s *Server) drain(ctx context.Context, cancel context.CancelFunc, sess *wsSession, conn *websocket.Conn) {
	for {
		if ctx.Err() != nil {
			return
		}
		chunk, ok := sess.next()
		if !ok {
			select {
			case <-ctx.Done():
				return
			case <-time.After(drainInterval):
			}
			continue
		}
		if err := conn.Write(ctx, websocket.MessageText, []byte(chunk)); err != nil {
			sess.retain(chunk)
			cancel()
			return
		}
	}
}

func (s *Server) session(gameID string) *wsSession {
	s.mu.Lock()
	defer s.mu.Unlock()
	sess, ok := s.sessions[gameID]
	if !ok {
		sess = &wsSession{outbox: make(chan string, outboxCapacity)}
		s.sessions[gameID] = sess
	}
	return sess
}

// claim takes the single consumer slot, reporting false when taken.
func (w *wsSession) claim() bool {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.active {
		return false
	}
	w.active = true
	return true
}

func (w *wsSession) release() {
	w.mu.Lock()
	w.active = false
	w.mu.Unlock()
}

// push enqueues one chunk, blocking while the queue is full.
func (w *wsSession) push(ctx context.Context, chunk string) error {
	select {
	case w.outbox <- chunk:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// next pops the oldest undelivered chunk without blocking.
func (w *wsSession) next() (string, bool) {
	w.mu.Lock()
	if w.pending != nil {
		chunk := *w.pending
		w.pending = nil
		w.mu.Unlock()
		return chunk, true
	}
	w.mu.Unlock()

	select {
	case chunk := <-w.outbox:
		return chunk, true
	default:
		return "", false
	}
}

// retain puts a chunk back at the head of the queue after a failed write.
func (w *wsSession) retain(chunk string) {
	w.mu.Lock()
	w.pending = &chunk
	w.mu.Unlock()
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		fmt.Fprint(w, `{"status":"error"}`)
	}
}
