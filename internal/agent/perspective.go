package agent

import (
	"context"
	"fmt"
	"strings"

	"github.com/google/uuid"

	"github.com/questweaver/questweaver/internal/plot"
	"github.com/questweaver/questweaver/pkg/provider/llm"
)

// perspectiveDirectives gives each agent type its editorial stance.
var perspectiveDirectives = map[plot.AgentType]string{
	plot.AgentCharacter: "You champion the player's personal arc: growth, relationships, cost of power.",
	plot.AgentWorld:     "You champion the world: places, factions, consequences that outlive the player.",
	plot.AgentConflict:  "You champion escalating opposition: rivals, battles, stakes that sharpen.",
	plot.AgentMystery:   "You champion the central mystery: clues, misdirection, revelations earned late.",
}

const perspectivePromptTail = `
You propose story beats for the campaign's plot graph. Respond with ONLY JSON:
{"nodes": [{"id": "...", "thread_id": "...",
            "thread_priority": 0.9, "thread_category": "rivalry",
            "beat": {"id": "...", "title": "...", "description": "...",
                     "type": "SETUP|DISCOVERY|CONFRONTATION|REVELATION|TWIST|CLIMAX",
                     "trigger_level": 5, "foreshadowing": "...",
                     "consequences": ["..."]}}],
 "edges": [{"from": "<node id>", "to": "<node id>",
            "type": "DEPENDENCY|FORESHADOWS|ALTERNATIVE|CONTINUES", "weight": 0.7}],
 "ratings": {"<node id>": 0.8},
 "reasoning": "..."}.
Propose 2-5 beats. Ratings are your own confidence in [0,1]. Reuse existing
thread ids where a beat continues a thread; invent a new thread id otherwise.
thread_priority in [0,1] ranks the storyline's importance; thread_category is
a one-word label for it.`

// PerspectiveAgent is one of the four story-planning voices. Each planner
// run gives it a fresh session; proposals carry no state between runs.
type PerspectiveAgent struct {
	Type     plot.AgentType
	provider llm.Provider
}

// NewPerspectiveAgent returns the agent for the given perspective.
func NewPerspectiveAgent(t plot.AgentType, p llm.Provider) *PerspectiveAgent {
	return &PerspectiveAgent{Type: t, provider: p}
}

// PlannerContext is the shared snapshot every perspective agent receives.
type PlannerContext struct {
	SystemSummary string   // rendered SystemDefinition
	StateSummary  string   // player level, grade, location, active quests
	ActiveThreads []string // "thread-id: 2 of 5 beats completed"
	RecentEvents  []string
	PlayerLevel   int
}

type proposalDraft struct {
	Nodes []struct {
		ID             string  `json:"id"`
		ThreadID       string  `json:"thread_id"`
		ThreadPriority float64 `json:"thread_priority"`
		ThreadCategory string  `json:"thread_category"`
		Beat           struct {
			ID            string   `json:"id"`
			Title         string   `json:"title"`
			Description   string   `json:"description"`
			Type          string   `json:"type"`
			TriggerLevel  int      `json:"trigger_level"`
			Foreshadowing string   `json:"foreshadowing"`
			Consequences  []string `json:"consequences"`
		} `json:"beat"`
	} `json:"nodes"`
	Edges []struct {
		From   string  `json:"from"`
		To     string  `json:"to"`
		Type   string  `json:"type"`
		Weight float64 `json:"weight"`
	} `json:"edges"`
	Ratings   map[string]float64 `json:"ratings"`
	Reasoning string             `json:"reasoning"`
}

// Propose asks the agent for plot beats. Malformed output degrades to an
// empty proposal so a single bad agent never sinks the planner run.
func (a *PerspectiveAgent) Propose(ctx context.Context, pc PlannerContext) (plot.Proposal, error) {
	empty := plot.Proposal{Agent: a.Type}

	system := perspectiveDirectives[a.Type] + perspectivePromptTail
	var draft proposalDraft
	if err := oneShot(ctx, a.provider, system, pc.render(), &draft); err != nil {
		return empty, err
	}

	prop := plot.Proposal{
		Agent:     a.Type,
		Ratings:   map[string]float64{},
		Reasoning: draft.Reasoning,
	}
	for _, n := range draft.Nodes {
		if n.Beat.Title == "" || n.ThreadID == "" {
			continue
		}
		id := n.ID
		if id == "" {
			id = uuid.NewString()
		}
		beatID := n.Beat.ID
		if beatID == "" {
			beatID = slugify(n.Beat.Title)
		}
		trigger := n.Beat.TriggerLevel
		if trigger < 1 {
			trigger = pc.PlayerLevel + 1
		}
		// Absent thread metadata falls back to the proposing perspective:
		// its weight as priority, its name as category.
		priority := clamp01(n.ThreadPriority)
		if priority == 0 {
			priority = a.Type.Weight()
		}
		category := strings.TrimSpace(n.ThreadCategory)
		if category == "" {
			category = strings.ToLower(string(a.Type))
		}
		prop.Nodes = append(prop.Nodes, plot.Node{
			ID:             id,
			ThreadID:       n.ThreadID,
			Status:         plot.StatusPending,
			ThreadPriority: priority,
			ThreadCategory: category,
			Beat: plot.Beat{
				ID:            beatID,
				Title:         n.Beat.Title,
				Description:   n.Beat.Description,
				Type:          normaliseBeatType(n.Beat.Type),
				TriggerLevel:  trigger,
				Foreshadowing: n.Beat.Foreshadowing,
				Consequences:  n.Beat.Consequences,
			},
		})
		if r, ok := draft.Ratings[n.ID]; ok {
			prop.Ratings[id] = clamp01(r)
		}
	}
	for _, e := range draft.Edges {
		if e.From == "" || e.To == "" {
			continue
		}
		prop.Edges = append(prop.Edges, plot.Edge{
			ID:         fmt.Sprintf("edge_%s_%s", e.From, e.To),
			FromNodeID: e.From,
			ToNodeID:   e.To,
			Type:       normaliseEdgeType(e.Type),
			Weight:     clamp01(e.Weight),
		})
	}
	return prop, nil
}

func (pc PlannerContext) render() string {
	var b strings.Builder
	b.WriteString("System:\n")
	b.WriteString(pc.SystemSummary)
	b.WriteString("\nPlayer state: ")
	b.WriteString(pc.StateSummary)
	b.WriteString("\n")
	if len(pc.ActiveThreads) > 0 {
		b.WriteString("Active threads:\n")
		for _, t := range pc.ActiveThreads {
			b.WriteString("- " + t + "\n")
		}
	}
	if len(pc.RecentEvents) > 0 {
		b.WriteString("Recent events:\n")
		for _, e := range pc.RecentEvents {
			b.WriteString("- " + e + "\n")
		}
	}
	fmt.Fprintf(&b, "Propose beats reachable from level %d onward.", pc.PlayerLevel)
	return b.String()
}

func normaliseBeatType(s string) plot.BeatType {
	switch plot.BeatType(strings.ToUpper(strings.TrimSpace(s))) {
	case plot.BeatSetup:
		return plot.BeatSetup
	case plot.BeatDiscovery:
		return plot.BeatDiscovery
	case plot.BeatConfrontation:
		return plot.BeatConfrontation
	case plot.BeatRevelation:
		return plot.BeatRevelation
	case plot.BeatTwist:
		return plot.BeatTwist
	case plot.BeatClimax:
		return plot.BeatClimax
	}
	return plot.BeatDiscovery
}

func normaliseEdgeType(s string) plot.EdgeType {
	switch plot.EdgeType(strings.ToUpper(strings.TrimSpace(s))) {
	case plot.EdgeDependency:
		return plot.EdgeDependency
	case plot.EdgeForeshadows:
		return plot.EdgeForeshadows
	case plot.EdgeAlternative:
		return plot.EdgeAlternative
	case plot.EdgeContinues:
		return plot.EdgeContinues
	}
	return plot.EdgeContinues
}

func clamp01(v float64) float64 {
	if v < 0 {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}
