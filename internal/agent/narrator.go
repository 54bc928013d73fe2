package agent

import (
	"context"
	"strings"

	"github.com/questweaver/questweaver/pkg/provider/llm"
)

const narratorSystemPrompt = `You are the narrator of a text-driven RPG. You receive a
structured context package each turn and answer with vivid second-person prose.
Rules:
- Narrate consequences of the player's action; never decide for the player.
- Weave in any foreshadowing hints naturally, without naming them as hints.
- Reference upcoming story beats only obliquely.
- Keep mechanical outcomes (damage numbers, XP) out of the prose; the engine
  reports those separately.
- 2 to 4 paragraphs, no headings, no lists.`

// NarrationContext is everything the narrator sees for one turn. All fields
// are preassembled text; the orchestrator owns what goes in.
type NarrationContext struct {
	StateSummary  string
	PlayerInput   string
	Intent        Intent
	ToolResults   []string
	UpcomingBeats []string
	Foreshadowing []string
	RecentEvents  []string

	// Memories are older events recalled by semantic similarity to the
	// input, beyond the recent-events window.
	Memories []string
}

// Narrator produces the streamed turn narrative. It keeps one conversation
// per game so prose stays tonally continuous across turns.
type Narrator struct {
	session *Session
}

// NewNarrator starts a narrator conversation on the provider.
func NewNarrator(p llm.Provider) *Narrator {
	return &Narrator{
		session: NewSession(p, narratorSystemPrompt, WithTemperature(0.9)),
	}
}

// Narrate streams the narrative for one turn. The channel follows the
// llm.Provider chunk contract.
func (n *Narrator) Narrate(ctx context.Context, nc NarrationContext) (<-chan llm.Chunk, error) {
	return n.session.Send(ctx, nc.render())
}

func (nc NarrationContext) render() string {
	var b strings.Builder
	section := func(title string, lines []string) {
		if len(lines) == 0 {
			return
		}
		b.WriteString(title)
		b.WriteString(":\n")
		for _, l := range lines {
			b.WriteString("- ")
			b.WriteString(l)
			b.WriteString("\n")
		}
	}

	b.WriteString("Current state: ")
	b.WriteString(nc.StateSummary)
	b.WriteString("\nPlayer input: ")
	b.WriteString(nc.PlayerInput)
	b.WriteString("\nClassified intent: ")
	b.WriteString(string(nc.Intent))
	b.WriteString("\n")
	section("Mechanical outcomes this turn", nc.ToolResults)
	section("Upcoming beats (do not reveal directly)", nc.UpcomingBeats)
	section("Foreshadowing to weave in", nc.Foreshadowing)
	section("Recent events", nc.RecentEvents)
	section("Older events the player may remember", nc.Memories)
	b.WriteString("Narrate this turn.")
	return b.String()
}
