package plot

import (
	"fmt"
	"sort"
)

// AgentType identifies one of the four perspective agents feeding the
// planner. Each carries a fixed priority weight used when averaging beat
// ratings.
type AgentType string

const (
	AgentCharacter AgentType = "CHARACTER"
	AgentWorld     AgentType = "WORLD"
	AgentConflict  AgentType = "CONFLICT"
	AgentMystery   AgentType = "MYSTERY"
)

// Weight returns the agent's rating weight. Character development leads,
// the mystery perspective trails.
func (a AgentType) Weight() float64 {
	switch a {
	case AgentCharacter:
		return 1.0
	case AgentWorld, AgentConflict:
		return 0.9
	case AgentMystery:
		return 0.8
	}
	return 0.8
}

// Proposal is one agent's suggested additions to the plot graph, with a
// self-rating in [0,1] per proposed node.
type Proposal struct {
	Agent     AgentType
	Nodes     []Node
	Edges     []Edge
	Ratings   map[string]float64
	Reasoning string
}

// ConsensusType summarises how much of the panel the surviving beats
// represent.
type ConsensusType string

const (
	ConsensusUnanimous ConsensusType = "UNANIMOUS"
	ConsensusMajority  ConsensusType = "MAJORITY"
	ConsensusSplit     ConsensusType = "SPLIT"
	ConsensusNone      ConsensusType = "NO_CONSENSUS"
)

// ConflictKind labels a disagreement the merge had to resolve.
type ConflictKind string

const (
	ConflictContradiction ConflictKind = "CONTRADICTION"
	ConflictCycle         ConflictKind = "CYCLE"
	ConflictUnreachable   ConflictKind = "UNREACHABLE"
)

// Conflict records a resolved disagreement for the planner's audit trail.
type Conflict struct {
	Kind        ConflictKind
	Description string
	NodeIDs     []string
	EdgeID      string
}

// Result is the merged, accepted output of one consensus round.
type Result struct {
	Nodes     []Node
	Edges     []Edge
	Ratings   map[string]float64 // accepted node id -> surviving rating
	Rejected  []string           // rejected node ids, sorted
	Conflicts []Conflict
	Type      ConsensusType
}

// acceptance thresholds: a merged beat survives when the weighted mean
// rating clears meanFloor and at least one contributor rated it at or
// above championFloor.
const (
	meanFloor     = 0.5
	championFloor = 0.6
)

type candidate struct {
	node   Node
	agent  AgentType
	rating float64
}

type group struct {
	rep     Node // first member; duplicate matching compares against this
	members []candidate
}

// sameBeat is the duplicate predicate: two proposed nodes describe the
// same beat when they share a thread and either the same beat id, or
// trigger levels within 2 of each other and the same beat type.
func sameBeat(a, b Node) bool {
	if a.ThreadID != b.ThreadID {
		return false
	}
	if a.Beat.ID == b.Beat.ID {
		return true
	}
	d := a.Beat.TriggerLevel - b.Beat.TriggerLevel
	if d < 0 {
		d = -d
	}
	return d <= 2 && a.Beat.Type == b.Beat.Type
}

// Merge runs one consensus round over the agents' proposals. It
// deduplicates equivalent beats, accepts those whose priority-weighted
// mean rating and best single rating clear the floors, re-sequences each
// thread by trigger level, carries over proposed edges between accepted
// beats, synthesises DEPENDENCY edges between consecutive beats of a
// thread, and breaks dependency cycles at the lowest-weight edge.
// Accepted nodes that were proposed behind dependency predecessors but
// lost them all (to rejection or to cycle breaking) are recorded as
// UNREACHABLE conflicts and retained.
//
// Merging is idempotent: feeding an accepted Result back in as a single
// proposal (with its recorded Ratings) yields the same nodes and edges.
func Merge(proposals []Proposal) Result {
	var groups []*group
	proposed := map[AgentType]bool{}
	for _, p := range proposals {
		for _, n := range p.Nodes {
			proposed[p.Agent] = true
			r, ok := p.Ratings[n.ID]
			if !ok {
				r = meanFloor
			}
			c := candidate{node: n, agent: p.Agent, rating: r}
			placed := false
			for _, g := range groups {
				if sameBeat(g.rep, n) {
					g.members = append(g.members, c)
					placed = true
					break
				}
			}
			if !placed {
				groups = append(groups, &group{rep: n, members: []candidate{c}})
			}
		}
	}

	res := Result{Ratings: map[string]float64{}}
	accepted := map[string]bool{}
	acceptedBy := map[AgentType]bool{}
	idAlias := map[string]string{} // proposed node id -> accepted node id

	for _, g := range groups {
		var weightSum, ratingSum, maxRating float64
		best := g.members[0]
		for _, m := range g.members {
			w := m.agent.Weight()
			weightSum += w
			ratingSum += w * m.rating
			if m.rating > maxRating {
				maxRating = m.rating
			}
			if m.rating > best.rating {
				best = m
			}
		}
		mean := ratingSum / weightSum

		ids := make([]string, 0, len(g.members))
		for _, m := range g.members {
			ids = append(ids, m.node.ID)
		}

		if mean < meanFloor || maxRating < championFloor {
			res.Rejected = append(res.Rejected, best.node.ID)
			continue
		}

		merged := best.node
		merged.Status = StatusPending
		res.Nodes = append(res.Nodes, merged)
		// Record the champion's rating, not the mean, so re-merging the
		// accepted output clears the floors again.
		res.Ratings[merged.ID] = maxRating
		accepted[merged.ID] = true
		for _, id := range ids {
			idAlias[id] = merged.ID
		}
		for _, m := range g.members {
			acceptedBy[m.agent] = true
		}

		if c := contradictionIn(g.members); c != nil {
			res.Conflicts = append(res.Conflicts, *c)
		}
	}
	sort.Strings(res.Rejected)

	resequence(res.Nodes)

	res.Edges = carryEdges(proposals, idAlias, accepted)
	res.Edges = append(res.Edges, synthesiseDependencies(res.Nodes, res.Edges)...)

	var cycleConflicts []Conflict
	res.Edges, cycleConflicts = breakCycles(res.Edges)
	res.Conflicts = append(res.Conflicts, cycleConflicts...)
	res.Conflicts = append(res.Conflicts, markUnreachable(proposals, idAlias, accepted, res.Edges)...)

	res.Type = classify(len(res.Nodes), len(proposed), len(acceptedBy))
	return res
}

// markUnreachable records one conflict per accepted node that was proposed
// with at least one incoming DEPENDENCY edge but has none left in the
// final edge set: nothing pending leads to it any more. The node stays in
// the result; completing another thread may still reach it later.
func markUnreachable(proposals []Proposal, alias map[string]string, accepted map[string]bool, edges []Edge) []Conflict {
	gated := map[string]bool{}
	for _, p := range proposals {
		for _, e := range p.Edges {
			if e.Type != EdgeDependency {
				continue
			}
			if to, ok := alias[e.ToNodeID]; ok && accepted[to] {
				gated[to] = true
			}
		}
	}
	for _, e := range edges {
		if e.Type == EdgeDependency && !e.Disabled {
			delete(gated, e.ToNodeID)
		}
	}

	ids := make([]string, 0, len(gated))
	for id := range gated {
		ids = append(ids, id)
	}
	sort.Strings(ids)

	var out []Conflict
	for _, id := range ids {
		out = append(out, Conflict{
			Kind:        ConflictUnreachable,
			Description: fmt.Sprintf("node %q lost every dependency predecessor; kept for later triggering", id),
			NodeIDs:     []string{id},
		})
	}
	return out
}

// contradictionIn flags groups whose members agree on the beat id but
// disagree on its consequences. The champion's version wins; the conflict
// is only recorded.
func contradictionIn(members []candidate) *Conflict {
	for i := 1; i < len(members); i++ {
		a, b := members[0].node, members[i].node
		if a.Beat.ID != b.Beat.ID {
			continue
		}
		if !sameStrings(a.Beat.Consequences, b.Beat.Consequences) {
			return &Conflict{
				Kind:        ConflictContradiction,
				Description: fmt.Sprintf("agents disagree on consequences of beat %q", a.Beat.ID),
				NodeIDs:     []string{a.ID, b.ID},
			}
		}
	}
	return nil
}

func sameStrings(a, b []string) bool {
	if len(a) != len(b) {
		return false
	}
	seen := map[string]int{}
	for _, s := range a {
		seen[s]++
	}
	for _, s := range b {
		if seen[s] == 0 {
			return false
		}
		seen[s]--
	}
	return true
}

// resequence orders each thread by trigger level and rewrites the
// Sequence positions to a dense 1..n.
func resequence(nodes []Node) {
	byThread := map[string][]int{}
	for i, n := range nodes {
		byThread[n.ThreadID] = append(byThread[n.ThreadID], i)
	}
	for _, idxs := range byThread {
		sort.Slice(idxs, func(a, b int) bool {
			na, nb := nodes[idxs[a]], nodes[idxs[b]]
			if na.Beat.TriggerLevel != nb.Beat.TriggerLevel {
				return na.Beat.TriggerLevel < nb.Beat.TriggerLevel
			}
			return na.ID < nb.ID
		})
		for seq, i := range idxs {
			nodes[i].Position.Sequence = seq + 1
		}
	}
	sort.Slice(nodes, func(i, j int) bool {
		if nodes[i].ThreadID != nodes[j].ThreadID {
			return nodes[i].ThreadID < nodes[j].ThreadID
		}
		return nodes[i].Position.Sequence < nodes[j].Position.Sequence
	})
}

// carryEdges keeps proposed edges whose endpoints both survived, remapped
// onto the accepted node ids and deduplicated by (from, to, type).
func carryEdges(proposals []Proposal, alias map[string]string, accepted map[string]bool) []Edge {
	var out []Edge
	seen := map[string]bool{}
	for _, p := range proposals {
		for _, e := range p.Edges {
			from, okF := alias[e.FromNodeID]
			to, okT := alias[e.ToNodeID]
			if !okF || !okT || !accepted[from] || !accepted[to] || from == to {
				continue
			}
			key := from + "|" + to + "|" + string(e.Type)
			if seen[key] {
				continue
			}
			seen[key] = true
			e.FromNodeID = from
			e.ToNodeID = to
			if e.ID == "" {
				e.ID = fmt.Sprintf("edge_%s_%s_%s", e.Type, from, to)
			}
			out = append(out, e)
		}
	}
	return out
}

// synthesiseDependencies adds a DEPENDENCY edge between each pair of
// consecutive beats in a thread that no existing edge already links, so
// accepted threads always play out in sequence order.
func synthesiseDependencies(nodes []Node, existing []Edge) []Edge {
	linked := map[string]bool{}
	for _, e := range existing {
		linked[e.FromNodeID+"|"+e.ToNodeID] = true
		linked[e.ToNodeID+"|"+e.FromNodeID] = true
	}

	byThread := map[string][]Node{}
	for _, n := range nodes {
		byThread[n.ThreadID] = append(byThread[n.ThreadID], n)
	}

	var threads []string
	for id := range byThread {
		threads = append(threads, id)
	}
	sort.Strings(threads)

	var out []Edge
	for _, tid := range threads {
		ns := byThread[tid]
		sort.Slice(ns, func(i, j int) bool { return ns[i].Position.Sequence < ns[j].Position.Sequence })
		for i := 1; i < len(ns); i++ {
			from, to := ns[i-1].ID, ns[i].ID
			if linked[from+"|"+to] {
				continue
			}
			linked[from+"|"+to] = true
			linked[to+"|"+from] = true
			out = append(out, Edge{
				ID:         fmt.Sprintf("dep_%s_%s", from, to),
				FromNodeID: from,
				ToNodeID:   to,
				Type:       EdgeDependency,
				Weight:     0.5,
			})
		}
	}
	return out
}

// breakCycles removes dependency cycles by dropping the lowest-weight
// edge on each cycle found, recording a conflict per removal.
func breakCycles(edges []Edge) ([]Edge, []Conflict) {
	var conflicts []Conflict
	for {
		cycle := findDependencyCycle(edges)
		if cycle == nil {
			return edges, conflicts
		}
		weakest := 0
		for i := range cycle {
			if edges[cycle[i]].Weight < edges[cycle[weakest]].Weight {
				weakest = i
			}
		}
		victim := edges[cycle[weakest]]
		conflicts = append(conflicts, Conflict{
			Kind:        ConflictCycle,
			Description: fmt.Sprintf("dependency cycle broken at edge %s", victim.ID),
			EdgeID:      victim.ID,
		})
		edges = append(edges[:cycle[weakest]:cycle[weakest]], edges[cycle[weakest]+1:]...)
	}
}

// findDependencyCycle returns the edge indices of one DEPENDENCY cycle,
// or nil if the dependency subgraph is acyclic.
func findDependencyCycle(edges []Edge) []int {
	adj := map[string][]int{}
	for i, e := range edges {
		if e.Type == EdgeDependency && !e.Disabled {
			adj[e.FromNodeID] = append(adj[e.FromNodeID], i)
		}
	}

	const (
		white = 0
		grey  = 1
		black = 2
	)
	color := map[string]int{}
	var stack []int

	var visit func(node string) []int
	visit = func(node string) []int {
		color[node] = grey
		for _, ei := range adj[node] {
			next := edges[ei].ToNodeID
			switch color[next] {
			case grey:
				// Trim the stack down to the cycle entry point.
				cycle := append([]int{}, stack...)
				cycle = append(cycle, ei)
				for j, idx := range cycle {
					if edges[idx].FromNodeID == next {
						return cycle[j:]
					}
				}
				return cycle
			case white:
				stack = append(stack, ei)
				if c := visit(next); c != nil {
					return c
				}
				stack = stack[:len(stack)-1]
			}
		}
		color[node] = black
		return nil
	}

	var roots []string
	for n := range adj {
		roots = append(roots, n)
	}
	sort.Strings(roots)
	for _, n := range roots {
		if color[n] == white {
			if c := visit(n); c != nil {
				return c
			}
		}
	}
	return nil
}

// classify maps accepted-vs-proposing agent counts onto a consensus type.
func classify(acceptedNodes, proposing, acceptedAgents int) ConsensusType {
	if acceptedNodes == 0 || proposing == 0 {
		return ConsensusNone
	}
	switch {
	case acceptedAgents == proposing:
		return ConsensusUnanimous
	case acceptedAgents*2 >= proposing:
		return ConsensusMajority
	default:
		return ConsensusSplit
	}
}
