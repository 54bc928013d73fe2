// Package plot holds the directed plot graph, the consensus engine that
// merges perspective-agent proposals into it, and the foreshadowing queue.
package plot

import (
	"fmt"
	"sort"
)

// NodeStatus is the beat lifecycle. Transitions are monotone:
// PENDING -> TRIGGERED -> COMPLETED | ABANDONED, and the last two are
// terminal.
type NodeStatus string

const (
	StatusPending   NodeStatus = "PENDING"
	StatusTriggered NodeStatus = "TRIGGERED"
	StatusCompleted NodeStatus = "COMPLETED"
	StatusAbandoned NodeStatus = "ABANDONED"
)

// Terminal reports whether the status admits no further transitions.
func (s NodeStatus) Terminal() bool {
	return s == StatusCompleted || s == StatusAbandoned
}

// EdgeType classifies the relation between two beats.
type EdgeType string

const (
	EdgeDependency  EdgeType = "DEPENDENCY"
	EdgeForeshadows EdgeType = "FORESHADOWS"
	EdgeAlternative EdgeType = "ALTERNATIVE"
	EdgeContinues   EdgeType = "CONTINUES"
)

// BeatType coarsely classifies what a beat does to the story.
type BeatType string

const (
	BeatSetup         BeatType = "SETUP"
	BeatDiscovery     BeatType = "DISCOVERY"
	BeatConfrontation BeatType = "CONFRONTATION"
	BeatRevelation    BeatType = "REVELATION"
	BeatTwist         BeatType = "TWIST"
	BeatClimax        BeatType = "CLIMAX"
)

// Beat is the narrative payload of a node, scheduled against a player level.
type Beat struct {
	ID            string   `json:"id"`
	Title         string   `json:"title"`
	Description   string   `json:"description"`
	Type          BeatType `json:"type"`
	TriggerLevel  int      `json:"trigger_level"`
	Foreshadowing string   `json:"foreshadowing,omitempty"`
	Consequences  []string `json:"consequences,omitempty"`
}

// Position places a node within its thread's layout.
type Position struct {
	Tier     int `json:"tier"`
	Sequence int `json:"sequence"`
	Branch   int `json:"branch"`
}

// Node is one planned beat in the graph.
type Node struct {
	ID       string     `json:"id"`
	Beat     Beat       `json:"beat"`
	ThreadID string     `json:"thread_id"`
	Position Position   `json:"position"`
	Status   NodeStatus `json:"status"`

	// ThreadPriority and ThreadCategory describe the storyline the node
	// belongs to, set on the proposal path. The thread projection surfaces
	// the strongest values across a thread's nodes.
	ThreadPriority float64 `json:"thread_priority,omitempty"`
	ThreadCategory string  `json:"thread_category,omitempty"`
}

// Edge is an id-to-id relation between nodes.
type Edge struct {
	ID         string   `json:"id"`
	FromNodeID string   `json:"from_node_id"`
	ToNodeID   string   `json:"to_node_id"`
	Type       EdgeType `json:"type"`
	Weight     float64  `json:"weight"`
	Disabled   bool     `json:"disabled,omitempty"`
}

// Graph is one versioned plot graph for a game. Graphs are treated as
// immutable snapshots: mutating operations return a copy and the planner
// swaps whole versions atomically.
type Graph struct {
	GameID  string          `json:"game_id"`
	Version int             `json:"version"`
	Nodes   map[string]Node `json:"nodes"`
	Edges   map[string]Edge `json:"edges"`
}

// NewGraph returns an empty version-0 graph for the game.
func NewGraph(gameID string) Graph {
	return Graph{
		GameID: gameID,
		Nodes:  map[string]Node{},
		Edges:  map[string]Edge{},
	}
}

// Clone deep-copies the graph.
func (g Graph) Clone() Graph {
	out := Graph{GameID: g.GameID, Version: g.Version,
		Nodes: make(map[string]Node, len(g.Nodes)),
		Edges: make(map[string]Edge, len(g.Edges)),
	}
	for k, v := range g.Nodes {
		out.Nodes[k] = v
	}
	for k, v := range g.Edges {
		out.Edges[k] = v
	}
	return out
}

// Repair drops edges whose endpoints are missing and returns their ids.
// Used after load: a dangling edge is an invariant breach that must not
// crash the turn pipeline.
func (g Graph) Repair() (Graph, []string) {
	out := g.Clone()
	var dropped []string
	for id, e := range out.Edges {
		if _, ok := out.Nodes[e.FromNodeID]; !ok {
			dropped = append(dropped, id)
			delete(out.Edges, id)
			continue
		}
		if _, ok := out.Nodes[e.ToNodeID]; !ok {
			dropped = append(dropped, id)
			delete(out.Edges, id)
		}
	}
	sort.Strings(dropped)
	return out, dropped
}

// dependencyPredecessors returns the ids of nodes that must complete before
// the given node may trigger.
func (g Graph) dependencyPredecessors(nodeID string) []string {
	var preds []string
	for _, e := range g.Edges {
		if e.Disabled || e.Type != EdgeDependency || e.ToNodeID != nodeID {
			continue
		}
		preds = append(preds, e.FromNodeID)
	}
	return preds
}

// Eligible reports whether the node may transition PENDING -> TRIGGERED at
// the given player level: it is PENDING, its trigger level has been
// reached, and every DEPENDENCY predecessor is COMPLETED.
func (g Graph) Eligible(nodeID string, playerLevel int) bool {
	n, ok := g.Nodes[nodeID]
	if !ok || n.Status != StatusPending || n.Beat.TriggerLevel > playerLevel {
		return false
	}
	for _, pred := range g.dependencyPredecessors(nodeID) {
		p, ok := g.Nodes[pred]
		if !ok || p.Status != StatusCompleted {
			return false
		}
	}
	return true
}

// EligibleNodes returns all node ids eligible to trigger at the level, in
// ascending (triggerLevel, id) order.
func (g Graph) EligibleNodes(playerLevel int) []string {
	var ids []string
	for id := range g.Nodes {
		if g.Eligible(id, playerLevel) {
			ids = append(ids, id)
		}
	}
	sort.Slice(ids, func(i, j int) bool {
		a, b := g.Nodes[ids[i]], g.Nodes[ids[j]]
		if a.Beat.TriggerLevel != b.Beat.TriggerLevel {
			return a.Beat.TriggerLevel < b.Beat.TriggerLevel
		}
		return ids[i] < ids[j]
	})
	return ids
}

// SetStatus transitions a node, enforcing monotonicity. Allowed moves:
// PENDING->TRIGGERED, TRIGGERED->COMPLETED, and any non-terminal ->
// ABANDONED.
func (g Graph) SetStatus(nodeID string, status NodeStatus) (Graph, error) {
	n, ok := g.Nodes[nodeID]
	if !ok {
		return g, fmt.Errorf("plot: node %q not in graph", nodeID)
	}
	if n.Status.Terminal() {
		return g, fmt.Errorf("plot: node %q is %s (terminal)", nodeID, n.Status)
	}
	valid := false
	switch status {
	case StatusTriggered:
		valid = n.Status == StatusPending
	case StatusCompleted:
		valid = n.Status == StatusTriggered
	case StatusAbandoned:
		valid = true
	}
	if !valid {
		return g, fmt.Errorf("plot: invalid transition %s -> %s for node %q", n.Status, status, nodeID)
	}

	out := g.Clone()
	n.Status = status
	out.Nodes[nodeID] = n
	return out, nil
}

// NonTerminal returns the subgraph of PENDING and TRIGGERED nodes and the
// edges connecting them. The planner seeds each new version with this.
func (g Graph) NonTerminal() Graph {
	out := Graph{GameID: g.GameID, Version: g.Version,
		Nodes: map[string]Node{}, Edges: map[string]Edge{}}
	for id, n := range g.Nodes {
		if !n.Status.Terminal() {
			out.Nodes[id] = n
		}
	}
	for id, e := range g.Edges {
		_, fromOK := out.Nodes[e.FromNodeID]
		_, toOK := out.Nodes[e.ToNodeID]
		if fromOK && toOK {
			out.Edges[id] = e
		}
	}
	return out
}
