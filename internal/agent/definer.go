package agent

import (
	"context"
	"fmt"

	"github.com/questweaver/questweaver/internal/game"
	"github.com/questweaver/questweaver/pkg/provider/llm"
)

const definerSystemPrompt = `You invent the identity of "the System" — the voice that
narrates, judges and rewards the player — for a new text RPG game.
Respond with ONLY JSON:
{"name": "...", "personality": "...", "central_mystery": "...", "threat": "...",
 "theme": "...", "factions": ["..."], "hooks": ["..."]}.
The central mystery is a question the whole campaign circles; hooks are 2-4
opening threads; factions are 2-4 named powers.`

// SystemDefiner produces a unique SystemDefinition at game creation.
type SystemDefiner struct {
	provider llm.Provider
}

// NewSystemDefiner returns a definer over the provider.
func NewSystemDefiner(p llm.Provider) *SystemDefiner {
	return &SystemDefiner{provider: p}
}

// Define creates the system identity for a new game. A broken model answer
// degrades to a serviceable default themed on the system type.
func (d *SystemDefiner) Define(ctx context.Context, st game.SystemType, ws game.WorldSettings) (game.SystemDefinition, error) {
	user := fmt.Sprintf("System type: %s\nTone: %s\nSetting seed: %s\nMagic: %s\nTech: %s",
		st, ws.Tone, ws.Setting, ws.MagicLevel, ws.TechLevel)

	var def game.SystemDefinition
	if err := oneShot(ctx, d.provider, definerSystemPrompt, user, &def); err != nil || def.Name == "" {
		return defaultDefinition(st), err
	}
	return def, nil
}

func defaultDefinition(st game.SystemType) game.SystemDefinition {
	return game.SystemDefinition{
		Name:           "The System",
		Personality:    "precise, sparing with praise, never absent",
		CentralMystery: "why the System chose this player at all",
		Threat:         "something older than the System stirring at the edges",
		Theme:          string(st),
		Hooks:          []string{"a first quest that was clearly meant for someone else"},
	}
}
