package plot

import "testing"

func proposedNode(id, thread string, beatID string, bt BeatType, trigger int) Node {
	return Node{
		ID:       id,
		ThreadID: thread,
		Beat:     Beat{ID: beatID, Title: beatID, Type: bt, TriggerLevel: trigger},
		Status:   StatusPending,
	}
}

func TestMerge_DeduplicatesEquivalentBeats(t *testing.T) {
	t.Parallel()
	// Character and World propose the same confrontation two levels apart.
	proposals := []Proposal{
		{
			Agent:   AgentCharacter,
			Nodes:   []Node{proposedNode("c1", "t1", "duel", BeatConfrontation, 10)},
			Ratings: map[string]float64{"c1": 0.7},
		},
		{
			Agent:   AgentWorld,
			Nodes:   []Node{proposedNode("w1", "t1", "duel-at-gate", BeatConfrontation, 12)},
			Ratings: map[string]float64{"w1": 0.6},
		},
	}

	res := Merge(proposals)
	if len(res.Nodes) != 1 {
		t.Fatalf("nodes = %d, want 1 after dedup", len(res.Nodes))
	}
	// The higher-rated contributor's version wins.
	if res.Nodes[0].ID != "c1" {
		t.Errorf("representative = %s, want c1", res.Nodes[0].ID)
	}
	if res.Type != ConsensusUnanimous {
		t.Errorf("type = %s, want UNANIMOUS (both agents contributed)", res.Type)
	}
}

func TestMerge_AcceptanceFloors(t *testing.T) {
	t.Parallel()
	cases := []struct {
		name    string
		ratings []float64 // one per agent, Character then Mystery
		accept  bool
	}{
		{"champion and mean clear", []float64{0.9, 0.5}, true},
		{"mean ok but no champion", []float64{0.55, 0.55}, false},
		{"champion ok but mean sunk", []float64{0.85, 0.0}, false},
	}

	for _, tc := range cases {
		tc := tc
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()
			proposals := []Proposal{
				{
					Agent:   AgentCharacter,
					Nodes:   []Node{proposedNode("a", "t1", "beat", BeatDiscovery, 5)},
					Ratings: map[string]float64{"a": tc.ratings[0]},
				},
				{
					Agent:   AgentMystery,
					Nodes:   []Node{proposedNode("b", "t1", "beat", BeatDiscovery, 5)},
					Ratings: map[string]float64{"b": tc.ratings[1]},
				},
			}
			res := Merge(proposals)
			if got := len(res.Nodes) == 1; got != tc.accept {
				t.Errorf("accepted = %v, want %v (rejected %v)", got, tc.accept, res.Rejected)
			}
			if !tc.accept && res.Type != ConsensusNone {
				t.Errorf("type = %s, want NO_CONSENSUS", res.Type)
			}
		})
	}
}

func TestMerge_WeightedMean(t *testing.T) {
	t.Parallel()
	// Character weight 1.0 at 0.8, Mystery weight 0.8 at 0.1:
	// mean = (0.8 + 0.08) / 1.8 = 0.489 < 0.5 -> rejected, even though a
	// plain average (0.45) would also fail; flip Mystery to 0.25 and the
	// weighted mean (0.544) accepts where priority matters.
	low := Merge([]Proposal{
		{Agent: AgentCharacter, Nodes: []Node{proposedNode("a", "t", "x", BeatTwist, 4)},
			Ratings: map[string]float64{"a": 0.8}},
		{Agent: AgentMystery, Nodes: []Node{proposedNode("b", "t", "x", BeatTwist, 4)},
			Ratings: map[string]float64{"b": 0.1}},
	})
	if len(low.Nodes) != 0 {
		t.Error("beat accepted below weighted mean floor")
	}

	ok := Merge([]Proposal{
		{Agent: AgentCharacter, Nodes: []Node{proposedNode("a", "t", "x", BeatTwist, 4)},
			Ratings: map[string]float64{"a": 0.8}},
		{Agent: AgentMystery, Nodes: []Node{proposedNode("b", "t", "x", BeatTwist, 4)},
			Ratings: map[string]float64{"b": 0.25}},
	})
	if len(ok.Nodes) != 1 {
		t.Error("beat rejected despite weighted mean above floor")
	}
}

func TestMerge_ResequencesAndSynthesisesDependencies(t *testing.T) {
	t.Parallel()
	proposals := []Proposal{{
		Agent: AgentConflict,
		Nodes: []Node{
			proposedNode("late", "t1", "finale", BeatClimax, 20),
			proposedNode("early", "t1", "spark", BeatSetup, 3),
			proposedNode("mid", "t1", "chase", BeatConfrontation, 10),
		},
		Ratings: map[string]float64{"late": 0.9, "early": 0.9, "mid": 0.9},
	}}

	res := Merge(proposals)
	if len(res.Nodes) != 3 {
		t.Fatalf("nodes = %d, want 3", len(res.Nodes))
	}
	order := []string{res.Nodes[0].ID, res.Nodes[1].ID, res.Nodes[2].ID}
	if order[0] != "early" || order[1] != "mid" || order[2] != "late" {
		t.Errorf("sequence order = %v", order)
	}
	for i, n := range res.Nodes {
		if n.Position.Sequence != i+1 {
			t.Errorf("node %s sequence = %d, want %d", n.ID, n.Position.Sequence, i+1)
		}
	}

	deps := 0
	for _, e := range res.Edges {
		if e.Type == EdgeDependency {
			deps++
		}
	}
	if deps != 2 {
		t.Errorf("dependency edges = %d, want 2 chaining the thread", deps)
	}
}

func TestMerge_BreaksDependencyCycle(t *testing.T) {
	t.Parallel()
	a := proposedNode("a", "t1", "a", BeatSetup, 1)
	b := proposedNode("b", "t2", "b", BeatSetup, 1)
	proposals := []Proposal{{
		Agent:   AgentWorld,
		Nodes:   []Node{a, b},
		Ratings: map[string]float64{"a": 0.9, "b": 0.9},
		Edges: []Edge{
			{ID: "ab", FromNodeID: "a", ToNodeID: "b", Type: EdgeDependency, Weight: 0.9},
			{ID: "ba", FromNodeID: "b", ToNodeID: "a", Type: EdgeDependency, Weight: 0.3},
		},
	}}

	res := Merge(proposals)
	for _, e := range res.Edges {
		if e.ID == "ba" {
			t.Error("lowest-weight cycle edge survived")
		}
	}
	found := false
	for _, c := range res.Conflicts {
		if c.Kind == ConflictCycle && c.EdgeID == "ba" {
			found = true
		}
	}
	if !found {
		t.Errorf("cycle conflict not recorded: %+v", res.Conflicts)
	}
}

func TestMerge_RecordsUnreachableNode(t *testing.T) {
	t.Parallel()
	propose := func(gateRating float64) []Proposal {
		return []Proposal{{
			Agent: AgentWorld,
			Nodes: []Node{
				proposedNode("gate", "t1", "gate", BeatSetup, 3),
				proposedNode("vault", "t2", "vault", BeatDiscovery, 6),
			},
			Ratings: map[string]float64{"gate": gateRating, "vault": 0.9},
			Edges: []Edge{
				{ID: "gv", FromNodeID: "gate", ToNodeID: "vault", Type: EdgeDependency, Weight: 0.8},
			},
		}}
	}

	// The vault's only predecessor misses the floors, so the vault keeps
	// its place but is flagged as cut off.
	res := Merge(propose(0.2))
	if len(res.Nodes) != 1 || res.Nodes[0].ID != "vault" {
		t.Fatalf("nodes = %+v, want just vault", res.Nodes)
	}
	found := false
	for _, c := range res.Conflicts {
		if c.Kind == ConflictUnreachable {
			found = true
			if len(c.NodeIDs) != 1 || c.NodeIDs[0] != "vault" {
				t.Errorf("unreachable node ids = %v, want [vault]", c.NodeIDs)
			}
		}
	}
	if !found {
		t.Errorf("no unreachable conflict recorded: %+v", res.Conflicts)
	}

	// With the predecessor accepted the dependency survives and nothing
	// is flagged.
	res = Merge(propose(0.9))
	if len(res.Nodes) != 2 {
		t.Fatalf("nodes = %d, want 2", len(res.Nodes))
	}
	for _, c := range res.Conflicts {
		if c.Kind == ConflictUnreachable {
			t.Errorf("reachable node flagged unreachable: %+v", c)
		}
	}
}

func TestMerge_RecordsContradiction(t *testing.T) {
	t.Parallel()
	a := proposedNode("a", "t1", "betrayal", BeatRevelation, 8)
	a.Beat.Consequences = []string{"mentor revealed as traitor"}
	b := proposedNode("b", "t1", "betrayal", BeatRevelation, 8)
	b.Beat.Consequences = []string{"mentor dies protecting the player"}

	res := Merge([]Proposal{
		{Agent: AgentCharacter, Nodes: []Node{a}, Ratings: map[string]float64{"a": 0.8}},
		{Agent: AgentConflict, Nodes: []Node{b}, Ratings: map[string]float64{"b": 0.7}},
	})
	if len(res.Nodes) != 1 {
		t.Fatalf("nodes = %d, want 1", len(res.Nodes))
	}
	if len(res.Conflicts) != 1 || res.Conflicts[0].Kind != ConflictContradiction {
		t.Errorf("conflicts = %+v, want one contradiction", res.Conflicts)
	}
	// Higher-rated version wins.
	if res.Nodes[0].Beat.Consequences[0] != "mentor revealed as traitor" {
		t.Errorf("kept consequences = %v", res.Nodes[0].Beat.Consequences)
	}
}

func TestMerge_ConsensusTypes(t *testing.T) {
	t.Parallel()
	strong := func(agent AgentType, id string) Proposal {
		return Proposal{Agent: agent,
			Nodes:   []Node{proposedNode(id, "t-"+id, id, BeatDiscovery, 5)},
			Ratings: map[string]float64{id: 0.9}}
	}
	weak := func(agent AgentType, id string) Proposal {
		return Proposal{Agent: agent,
			Nodes:   []Node{proposedNode(id, "t-"+id, id, BeatDiscovery, 5)},
			Ratings: map[string]float64{id: 0.1}}
	}

	if res := Merge([]Proposal{strong(AgentCharacter, "a"), strong(AgentWorld, "b")}); res.Type != ConsensusUnanimous {
		t.Errorf("all accepted: type = %s", res.Type)
	}
	if res := Merge([]Proposal{strong(AgentCharacter, "a"), strong(AgentWorld, "b"),
		weak(AgentConflict, "c"), weak(AgentMystery, "d")}); res.Type != ConsensusMajority {
		t.Errorf("half accepted: type = %s", res.Type)
	}
	if res := Merge([]Proposal{strong(AgentCharacter, "a"), weak(AgentWorld, "b"),
		weak(AgentConflict, "c"), weak(AgentMystery, "d")}); res.Type != ConsensusSplit {
		t.Errorf("one of four accepted: type = %s", res.Type)
	}
	if res := Merge([]Proposal{weak(AgentCharacter, "a")}); res.Type != ConsensusNone {
		t.Errorf("nothing accepted: type = %s", res.Type)
	}
}

func TestMerge_Idempotent(t *testing.T) {
	t.Parallel()
	first := Merge([]Proposal{
		{
			Agent: AgentCharacter,
			Nodes: []Node{
				proposedNode("a", "t1", "spark", BeatSetup, 2),
				proposedNode("b", "t1", "flame", BeatConfrontation, 9),
			},
			Ratings: map[string]float64{"a": 0.7, "b": 0.65},
		},
		{
			Agent:   AgentMystery,
			Nodes:   []Node{proposedNode("c", "t2", "whisper", BeatRevelation, 6)},
			Ratings: map[string]float64{"c": 0.8},
		},
		{
			Agent:   AgentConflict,
			Nodes:   []Node{proposedNode("d", "t2", "rumor", BeatRevelation, 7)},
			Ratings: map[string]float64{"d": 0.4},
		},
	})

	again := Merge([]Proposal{{
		Agent:   AgentCharacter,
		Nodes:   first.Nodes,
		Edges:   first.Edges,
		Ratings: first.Ratings,
	}})

	if len(again.Nodes) != len(first.Nodes) {
		t.Fatalf("re-merge nodes = %d, want %d", len(again.Nodes), len(first.Nodes))
	}
	for i := range first.Nodes {
		if again.Nodes[i].ID != first.Nodes[i].ID ||
			again.Nodes[i].Position.Sequence != first.Nodes[i].Position.Sequence {
			t.Errorf("node %d changed across re-merge: %+v vs %+v",
				i, first.Nodes[i], again.Nodes[i])
		}
	}
	if len(again.Edges) != len(first.Edges) {
		t.Errorf("re-merge edges = %d, want %d", len(again.Edges), len(first.Edges))
	}
	if len(again.Rejected) != 0 {
		t.Errorf("re-merge rejected accepted beats: %v", again.Rejected)
	}
}
