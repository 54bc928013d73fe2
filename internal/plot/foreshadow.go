package plot

import "sort"

// Foreshadow is a queued hint the narrator should weave into prose before
// the player outgrows it.
type Foreshadow struct {
	NodeID       string `json:"node_id"`
	ThreadID     string `json:"thread_id"`
	Hint         string `json:"hint"`
	MustAppearBy int    `json:"must_appear_by"` // player level; 0 means no deadline
	QueuedAtTurn int    `json:"queued_at_turn"`
}

// ForeshadowQueue is a FIFO of pending hints. Like the graph it is a value
// snapshot: Push and Next return updated copies.
type ForeshadowQueue struct {
	Items []Foreshadow `json:"items"`
}

// Push appends a hint unless the node already has one queued.
func (q ForeshadowQueue) Push(f Foreshadow) ForeshadowQueue {
	for _, it := range q.Items {
		if it.NodeID == f.NodeID {
			return q
		}
	}
	out := ForeshadowQueue{Items: make([]Foreshadow, len(q.Items), len(q.Items)+1)}
	copy(out.Items, q.Items)
	out.Items = append(out.Items, f)
	return out
}

// QueueFromResult enqueues hints for every accepted node that carries
// foreshadowing text, with the beat's trigger level as the deadline.
func (q ForeshadowQueue) QueueFromResult(res Result, turn int) ForeshadowQueue {
	out := q
	for _, n := range res.Nodes {
		if n.Beat.Foreshadowing == "" {
			continue
		}
		out = out.Push(Foreshadow{
			NodeID:       n.ID,
			ThreadID:     n.ThreadID,
			Hint:         n.Beat.Foreshadowing,
			MustAppearBy: n.Beat.TriggerLevel,
			QueuedAtTurn: turn,
		})
	}
	return out
}

// Next dequeues the oldest still-valid hint for the given player level.
// Hints whose deadline has passed are dropped rather than delivered late
// and returned in expired so the caller can log them.
func (q ForeshadowQueue) Next(playerLevel int) (ForeshadowQueue, *Foreshadow, []Foreshadow) {
	var expired []Foreshadow
	rest := make([]Foreshadow, 0, len(q.Items))
	var picked *Foreshadow
	for _, it := range q.Items {
		if it.MustAppearBy > 0 && playerLevel > it.MustAppearBy {
			expired = append(expired, it)
			continue
		}
		if picked == nil {
			f := it
			picked = &f
			continue
		}
		rest = append(rest, it)
	}
	return ForeshadowQueue{Items: rest}, picked, expired
}

// DropNode removes any queued hint for the node, used when a beat
// triggers or is abandoned before its hint was delivered.
func (q ForeshadowQueue) DropNode(nodeID string) ForeshadowQueue {
	rest := make([]Foreshadow, 0, len(q.Items))
	for _, it := range q.Items {
		if it.NodeID != nodeID {
			rest = append(rest, it)
		}
	}
	return ForeshadowQueue{Items: rest}
}

// Pending returns the queued hints ordered by deadline then node id, for
// UI display.
func (q ForeshadowQueue) Pending() []Foreshadow {
	out := append([]Foreshadow{}, q.Items...)
	sort.Slice(out, func(i, j int) bool {
		if out[i].MustAppearBy != out[j].MustAppearBy {
			return out[i].MustAppearBy < out[j].MustAppearBy
		}
		return out[i].NodeID < out[j].NodeID
	})
	return out
}
