package agent

import (
	"context"
	"fmt"
	"strings"

	"github.com/google/uuid"

	"github.com/questweaver/questweaver/internal/game"
	"github.com/questweaver/questweaver/pkg/provider/llm"
)

// Generators produce strictly-typed world objects from free-form model
// output. Parsing is tolerant; when the model's JSON is irrecoverable the
// generator substitutes a minimal plausible default instead of failing the
// turn.

const npcGeneratorPrompt = `You create NPCs for a text RPG. Respond with ONLY JSON:
{"name": "...", "archetype": "...", "personality": "...", "lore": "...",
 "greeting_context": "...", "has_shop": false}.
The archetype is one or two words ("blacksmith", "wandering scholar").`

// NPCGenerator creates NPCs fitting a location and system definition.
type NPCGenerator struct {
	provider llm.Provider
}

// NewNPCGenerator returns a generator over the provider.
func NewNPCGenerator(p llm.Provider) *NPCGenerator {
	return &NPCGenerator{provider: p}
}

type npcDraft struct {
	Name            string `json:"name"`
	Archetype       string `json:"archetype"`
	Personality     string `json:"personality"`
	Lore            string `json:"lore"`
	GreetingContext string `json:"greeting_context"`
	HasShop         bool   `json:"has_shop"`
}

// Generate creates an NPC for the location. hint is free text from the
// player input or the narrator ("the innkeeper", "a hooded stranger").
func (g *NPCGenerator) Generate(ctx context.Context, loc game.Location, systemTheme, hint string) (game.NPC, error) {
	user := fmt.Sprintf("Location: %s — %s (tags: %s)\nWorld theme: %s\nWanted: %s",
		loc.Name, loc.Description, strings.Join(loc.Tags, ", "), systemTheme, hint)

	var draft npcDraft
	if err := g.complete(ctx, npcGeneratorPrompt, user, &draft); err != nil || draft.Name == "" {
		return defaultNPC(loc, hint), err
	}

	npc := game.NPC{
		ID:              uuid.NewString(),
		Name:            draft.Name,
		Archetype:       draft.Archetype,
		LocationID:      loc.ID,
		Personality:     draft.Personality,
		Lore:            draft.Lore,
		GreetingContext: draft.GreetingContext,
		Affinity:        map[string]int{},
	}
	if draft.HasShop {
		npc.Shop = &game.Shop{Name: draft.Name + "'s Wares", BuybackPercent: 50}
	}
	return npc, nil
}

func defaultNPC(loc game.Location, hint string) game.NPC {
	name := strings.TrimSpace(hint)
	if name == "" {
		name = "Stranger"
	}
	return game.NPC{
		ID:         uuid.NewString(),
		Name:       name,
		Archetype:  "local",
		LocationID: loc.ID,
		Affinity:   map[string]int{},
	}
}

const locationGeneratorPrompt = `You create locations for a text RPG. Respond with ONLY JSON:
{"name": "...", "description": "...", "tags": ["..."], "danger_level": 1}.
Tags come from: forest, water, mountain, cliff, town, dungeon, ruins, road,
dark, sacred, anomaly. danger_level is 1-10.`

// LocationGenerator creates custom locations discovered during play.
type LocationGenerator struct {
	provider llm.Provider
}

// NewLocationGenerator returns a generator over the provider.
func NewLocationGenerator(p llm.Provider) *LocationGenerator {
	return &LocationGenerator{provider: p}
}

type locationDraft struct {
	Name        string   `json:"name"`
	Description string   `json:"description"`
	Tags        []string `json:"tags"`
	DangerLevel int      `json:"danger_level"`
}

// Generate creates a location adjacent to from, themed on the discovery cue.
func (g *LocationGenerator) Generate(ctx context.Context, from game.Location, systemTheme, cue string) (game.Location, error) {
	user := fmt.Sprintf("Adjacent to: %s — %s\nWorld theme: %s\nDiscovery cue: %s",
		from.Name, from.Description, systemTheme, cue)

	var draft locationDraft
	if err := g.complete(ctx, locationGeneratorPrompt, user, &draft); err != nil || draft.Name == "" {
		return defaultLocation(from, cue), err
	}
	return game.Location{
		ID:          slugify(draft.Name),
		Name:        draft.Name,
		Description: draft.Description,
		Tags:        draft.Tags,
		DangerLevel: draft.DangerLevel,
		Custom:      true,
	}, nil
}

func defaultLocation(from game.Location, cue string) game.Location {
	name := strings.TrimSpace(cue)
	if name == "" {
		name = "Uncharted Path"
	}
	return game.Location{
		ID:          slugify(name) + "-" + uuid.NewString()[:8],
		Name:        name,
		Description: "A place beyond " + from.Name + " that no map records.",
		DangerLevel: from.DangerLevel + 1,
		Custom:      true,
	}
}

const questGeneratorPrompt = `You create quests for a text RPG. Respond with ONLY JSON:
{"name": "...", "description": "...", "type": "side",
 "objectives": [{"description": "...", "target_progress": 1}],
 "xp_reward": 100, "gold_reward": 20}.
type is one of: main, side, hidden, daily. 1-3 objectives.`

// QuestGenerator creates quests offered by NPCs or discovered in the world.
type QuestGenerator struct {
	provider llm.Provider
}

// NewQuestGenerator returns a generator over the provider.
func NewQuestGenerator(p llm.Provider) *QuestGenerator {
	return &QuestGenerator{provider: p}
}

type questDraft struct {
	Name        string `json:"name"`
	Description string `json:"description"`
	Type        string `json:"type"`
	Objectives  []struct {
		Description    string `json:"description"`
		TargetProgress int    `json:"target_progress"`
	} `json:"objectives"`
	XPReward   int `json:"xp_reward"`
	GoldReward int `json:"gold_reward"`
}

// Generate creates a quest. giverID may be empty for world quests.
func (g *QuestGenerator) Generate(ctx context.Context, giverID, systemTheme, cue string, playerLevel int) (game.Quest, error) {
	user := fmt.Sprintf("World theme: %s\nPlayer level: %d\nPrompt: %s", systemTheme, playerLevel, cue)

	var draft questDraft
	if err := g.complete(ctx, questGeneratorPrompt, user, &draft); err != nil || draft.Name == "" || len(draft.Objectives) == 0 {
		return defaultQuest(giverID, cue, playerLevel), err
	}

	q := game.Quest{
		ID:          uuid.NewString(),
		Name:        draft.Name,
		Description: draft.Description,
		Type:        game.QuestType(draft.Type),
		GiverNPCID:  giverID,
		Status:      game.QuestNotStarted,
		Rewards:     game.QuestRewards{XP: draft.XPReward, Gold: draft.GoldReward},
	}
	switch q.Type {
	case game.QuestMain, game.QuestSide, game.QuestHidden, game.QuestDaily:
	default:
		q.Type = game.QuestSide
	}
	for _, o := range draft.Objectives {
		target := o.TargetProgress
		if target < 1 {
			target = 1
		}
		q.Objectives = append(q.Objectives, game.Objective{
			Description:    o.Description,
			TargetProgress: target,
		})
	}
	return q, nil
}

func defaultQuest(giverID, cue string, playerLevel int) game.Quest {
	name := strings.TrimSpace(cue)
	if name == "" {
		name = "An Errand"
	}
	return game.Quest{
		ID:          uuid.NewString(),
		Name:        name,
		Description: "A small task that may lead to larger things.",
		Type:        game.QuestSide,
		GiverNPCID:  giverID,
		Status:      game.QuestNotStarted,
		Objectives:  []game.Objective{{Description: name, TargetProgress: 1}},
		Rewards:     game.QuestRewards{XP: 50 * playerLevel, Gold: 10},
	}
}

// complete is the shared one-shot call + tolerant parse used by all three
// generators.
func (g *NPCGenerator) complete(ctx context.Context, system, user string, out any) error {
	return oneShot(ctx, g.provider, system, user, out)
}

func (g *LocationGenerator) complete(ctx context.Context, system, user string, out any) error {
	return oneShot(ctx, g.provider, system, user, out)
}

func (g *QuestGenerator) complete(ctx context.Context, system, user string, out any) error {
	return oneShot(ctx, g.provider, system, user, out)
}

func oneShot(ctx context.Context, p llm.Provider, system, user string, out any) error {
	resp, err := p.Complete(ctx, llm.CompletionRequest{
		SystemPrompt: system,
		Messages:     []llm.Message{{Role: "user", Content: user}},
		Temperature:  0.8,
		MaxTokens:    600,
	})
	if err != nil {
		return err
	}
	return ExtractJSON(resp.Content, out)
}

// slugify lowercases and dashes a display name into an id.
func slugify(name string) string {
	var b strings.Builder
	lastDash := true
	for _, r := range strings.ToLower(name) {
		switch {
		case r >= 'a' && r <= 'z', r >= '0' && r <= '9':
			b.WriteRune(r)
			lastDash = false
		default:
			if !lastDash {
				b.WriteByte('-')
				lastDash = true
			}
		}
	}
	return strings.TrimSuffix(b.String(), "-")
}
