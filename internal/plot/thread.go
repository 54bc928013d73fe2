package plot

import "sort"

// ThreadStatus summarises a thread's overall progress.
type ThreadStatus string

const (
	// ThreadActive means at least one beat can still fire.
	ThreadActive ThreadStatus = "ACTIVE"

	// ThreadCompleted means the thread is resolved and something landed.
	ThreadCompleted ThreadStatus = "COMPLETED"

	// ThreadAbandoned means every beat was abandoned.
	ThreadAbandoned ThreadStatus = "ABANDONED"
)

// Thread is the per-storyline projection of the graph: the nodes of one
// thread in sequence order, with a coarse progress summary. Priority is
// the highest ThreadPriority among the thread's nodes; Category is the
// first non-empty ThreadCategory in sequence order.
type Thread struct {
	ID        string       `json:"id"`
	Priority  float64      `json:"priority"`
	Category  string       `json:"category,omitempty"`
	Status    ThreadStatus `json:"status"`
	Nodes     []Node       `json:"nodes"`
	Completed int          `json:"completed"`
	Abandoned int          `json:"abandoned"`
	Remaining int          `json:"remaining"`
}

// Resolved reports whether nothing in the thread can still fire.
func (t Thread) Resolved() bool {
	return t.Remaining == 0
}

// Threads projects the graph into per-thread slices ordered by
// (Position.Sequence, Beat.TriggerLevel, ID). Threads are returned in
// ascending id order so callers get a stable layout.
func (g Graph) Threads() []Thread {
	byThread := map[string][]Node{}
	for _, n := range g.Nodes {
		byThread[n.ThreadID] = append(byThread[n.ThreadID], n)
	}

	out := make([]Thread, 0, len(byThread))
	for id, nodes := range byThread {
		sort.Slice(nodes, func(i, j int) bool {
			if nodes[i].Position.Sequence != nodes[j].Position.Sequence {
				return nodes[i].Position.Sequence < nodes[j].Position.Sequence
			}
			if nodes[i].Beat.TriggerLevel != nodes[j].Beat.TriggerLevel {
				return nodes[i].Beat.TriggerLevel < nodes[j].Beat.TriggerLevel
			}
			return nodes[i].ID < nodes[j].ID
		})
		t := Thread{ID: id, Nodes: nodes}
		for _, n := range nodes {
			switch n.Status {
			case StatusCompleted:
				t.Completed++
			case StatusAbandoned:
				t.Abandoned++
			default:
				t.Remaining++
			}
			if n.ThreadPriority > t.Priority {
				t.Priority = n.ThreadPriority
			}
			if t.Category == "" {
				t.Category = n.ThreadCategory
			}
		}
		switch {
		case t.Remaining > 0:
			t.Status = ThreadActive
		case t.Completed > 0:
			t.Status = ThreadCompleted
		default:
			t.Status = ThreadAbandoned
		}
		out = append(out, t)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}
