package plot

import "testing"

func TestForeshadowQueue_FIFOAndExpiry(t *testing.T) {
	t.Parallel()
	var q ForeshadowQueue
	q = q.Push(Foreshadow{NodeID: "n1", Hint: "a cold wind from the north", MustAppearBy: 5})
	q = q.Push(Foreshadow{NodeID: "n2", Hint: "the merchant's nervous glance", MustAppearBy: 20})
	q = q.Push(Foreshadow{NodeID: "n1", Hint: "duplicate"}) // ignored

	if len(q.Items) != 2 {
		t.Fatalf("items = %d, want 2 (duplicate node dropped)", len(q.Items))
	}

	// At level 10, n1's deadline (5) has passed: dropped, n2 delivered.
	q, picked, expired := q.Next(10)
	if len(expired) != 1 || expired[0].NodeID != "n1" {
		t.Errorf("expired = %+v, want n1", expired)
	}
	if picked == nil || picked.NodeID != "n2" {
		t.Fatalf("picked = %+v, want n2", picked)
	}
	if len(q.Items) != 0 {
		t.Errorf("queue = %+v, want empty", q.Items)
	}

	// Empty queue yields nothing.
	if _, picked, expired := q.Next(10); picked != nil || expired != nil {
		t.Errorf("empty queue returned %+v / %+v", picked, expired)
	}
}

func TestForeshadowQueue_OldestValidFirst(t *testing.T) {
	t.Parallel()
	var q ForeshadowQueue
	q = q.Push(Foreshadow{NodeID: "n1", Hint: "first in", MustAppearBy: 30})
	q = q.Push(Foreshadow{NodeID: "n2", Hint: "second in", MustAppearBy: 8})

	q, picked, expired := q.Next(5)
	if picked == nil || picked.NodeID != "n1" {
		t.Errorf("picked = %+v, want n1 (insertion order, not deadline)", picked)
	}
	if expired != nil {
		t.Errorf("expired = %+v, want none at level 5", expired)
	}
	if len(q.Items) != 1 || q.Items[0].NodeID != "n2" {
		t.Errorf("remaining = %+v", q.Items)
	}
}

func TestForeshadowQueue_QueueFromResult(t *testing.T) {
	t.Parallel()
	res := Result{Nodes: []Node{
		{ID: "n1", ThreadID: "t1", Beat: Beat{Foreshadowing: "distant bells", TriggerLevel: 12}},
		{ID: "n2", ThreadID: "t1", Beat: Beat{TriggerLevel: 15}}, // no hint text
	}}

	var q ForeshadowQueue
	q = q.QueueFromResult(res, 7)
	if len(q.Items) != 1 {
		t.Fatalf("items = %d, want 1", len(q.Items))
	}
	f := q.Items[0]
	if f.NodeID != "n1" || f.MustAppearBy != 12 || f.QueuedAtTurn != 7 {
		t.Errorf("queued = %+v", f)
	}
}

func TestForeshadowQueue_DropNode(t *testing.T) {
	t.Parallel()
	var q ForeshadowQueue
	q = q.Push(Foreshadow{NodeID: "n1", Hint: "x"})
	q = q.Push(Foreshadow{NodeID: "n2", Hint: "y"})

	q = q.DropNode("n1")
	if len(q.Items) != 1 || q.Items[0].NodeID != "n2" {
		t.Errorf("items = %+v, want only n2", q.Items)
	}
}
