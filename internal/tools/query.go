package tools

import (
	"context"
	"fmt"
	"sort"
	"strings"

	"github.com/questweaver/questweaver/internal/agent"
	"github.com/questweaver/questweaver/internal/game"
	"github.com/questweaver/questweaver/internal/store"
)

func (r *Registry) getPlayerTool() Tool {
	return Tool{
		Name:        "get_player",
		Description: "Summarise the player character: level, grade, resources, stats, skills.",
		Effect:      EffectStateRead,
		Run: func(_ context.Context, req Request) (Result, error) {
			cs := req.State.Sheet
			return Result{Text: RenderSheet(cs), Data: cs}, nil
		},
	}
}

// RenderSheet produces the narrator-facing character summary.
func RenderSheet(cs game.CharacterSheet) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Level %d (%s grade), %d XP", cs.Level, cs.Grade, cs.XP)
	if cs.Class != "" {
		fmt.Fprintf(&b, ", class %s", cs.Class)
	}
	fmt.Fprintf(&b, "\nHP %d/%d, Mana %d/%d, Energy %d/%d, Gold %d",
		cs.HP.Current, cs.HP.Max, cs.Mana.Current, cs.Mana.Max,
		cs.Energy.Current, cs.Energy.Max, cs.Gold)
	eff := game.EffectiveStats(cs)
	fmt.Fprintf(&b, "\nSTR %d DEX %d INT %d WIS %d CON %d CHA %d DEF %d",
		eff.Strength, eff.Dexterity, eff.Intelligence, eff.Wisdom,
		eff.Constitution, eff.Charisma, eff.Defense)
	if cs.StatPoints > 0 {
		fmt.Fprintf(&b, "\nUnspent stat points: %d", cs.StatPoints)
	}
	if len(cs.Skills) > 0 {
		names := make([]string, 0, len(cs.Skills))
		for _, s := range cs.Skills {
			ready := ""
			if !s.Ready() {
				ready = fmt.Sprintf(" (cooldown %d)", s.CurrentCooldown)
			}
			names = append(names, fmt.Sprintf("%s Lv%d%s", s.Name, s.Level, ready))
		}
		fmt.Fprintf(&b, "\nSkills: %s", strings.Join(names, ", "))
	}
	return b.String()
}

func (r *Registry) getLocationTool() Tool {
	return Tool{
		Name:        "get_location",
		Description: "Describe the current location, its NPCs and connections.",
		Effect:      EffectStateRead,
		Run: func(_ context.Context, req Request) (Result, error) {
			loc := req.State.CurrentLocation
			var b strings.Builder
			fmt.Fprintf(&b, "%s (danger %d): %s", loc.Name, loc.DangerLevel, loc.Description)
			if npcs := req.State.NPCsByLocation[loc.ID]; len(npcs) > 0 {
				names := make([]string, len(npcs))
				for i, n := range npcs {
					names[i] = n.Name
				}
				fmt.Fprintf(&b, "\nPresent: %s", strings.Join(names, ", "))
			}
			if len(loc.Connections) > 0 {
				fmt.Fprintf(&b, "\nPaths lead to: %s", strings.Join(loc.Connections, ", "))
			}
			return Result{Text: b.String(), Data: loc}, nil
		},
	}
}

func (r *Registry) inspectInventoryTool() Tool {
	return Tool{
		Name:        "inspect_inventory",
		Description: "List carried items and equipped gear.",
		Effect:      EffectStateRead,
		Run: func(_ context.Context, req Request) (Result, error) {
			cs := req.State.Sheet
			var b strings.Builder
			fmt.Fprintf(&b, "Inventory (%d/%d slots):", len(cs.Inventory), cs.MaxSlots)
			ids := make([]string, 0, len(cs.Inventory))
			for id := range cs.Inventory {
				ids = append(ids, id)
			}
			sort.Strings(ids)
			for _, id := range ids {
				it := cs.Inventory[id]
				fmt.Fprintf(&b, "\n- %s x%d (%s, value %d)", it.Name, it.Quantity, it.Kind, it.Value)
			}
			for slot, it := range map[string]*game.Item{
				"weapon": cs.Equipment.Weapon, "armor": cs.Equipment.Armor,
				"accessory": cs.Equipment.Accessory,
			} {
				if it != nil {
					fmt.Fprintf(&b, "\nEquipped %s: %s", slot, it.Name)
				}
			}
			return Result{Text: b.String(), Data: cs.Inventory}, nil
		},
	}
}

func (r *Registry) searchEventsTool() Tool {
	return Tool{
		Name:        "search_events",
		Description: "Full-text search over the game's event log.",
		Effect:      EffectStateRead,
		Run: func(ctx context.Context, req Request) (Result, error) {
			events, err := r.deps.Store.SearchEvents(ctx, req.State.GameID, req.Args.Query,
				store.SearchOpts{NPCID: req.Args.NPCID, Limit: req.Args.Limit})
			if err != nil {
				return Result{}, fmt.Errorf("tools: search events: %w", err)
			}
			return Result{Text: renderEvents(events), Data: events}, nil
		},
	}
}

func (r *Registry) recentEventsTool() Tool {
	return Tool{
		Name:        "recent_events",
		Description: "Summarise the latest events of the game.",
		Effect:      EffectStateRead,
		Run: func(ctx context.Context, req Request) (Result, error) {
			limit := req.Args.Limit
			if limit <= 0 {
				limit = 10
			}
			events, err := r.deps.Store.RecentEvents(ctx, req.State.GameID, limit)
			if err != nil {
				return Result{}, fmt.Errorf("tools: recent events: %w", err)
			}
			return Result{Text: renderEvents(events), Data: events}, nil
		},
	}
}

func renderEvents(events []game.GameEvent) string {
	if len(events) == 0 {
		return "Nothing of note has happened."
	}
	lines := make([]string, len(events))
	for i, e := range events {
		lines[i] = fmt.Sprintf("[%s] %s", e.Category, e.Text)
	}
	return strings.Join(lines, "\n")
}

func (r *Registry) analyzeIntentTool() Tool {
	return Tool{
		Name:        "analyze_intent",
		Description: "Classify free-form player input into one of the twelve intents.",
		Effect:      EffectLLM,
		Run: func(ctx context.Context, req Request) (Result, error) {
			result := r.deps.Intent.Analyze(ctx, req.Args.Query, RenderSheet(req.State.Sheet))
			return Result{Text: string(result.Intent), Data: result}, nil
		},
	}
}

func (r *Registry) validateActionTool() Tool {
	return Tool{
		Name:        "validate_action",
		Description: "Check whether a classified action is possible in the current state.",
		Effect:      EffectPure,
		Run: func(_ context.Context, req Request) (Result, error) {
			if err := ValidateAction(req.State, req.Args.Intent, req.Args.Target); err != nil {
				return Result{Text: err.Error(), Data: false}, nil
			}
			return Result{Text: "ok", Data: true}, nil
		},
	}
}

// ValidateAction checks an intent/target pair against the snapshot. A nil
// return means the orchestrator may dispatch; a non-nil error is the
// player-facing reason the action is impossible.
func ValidateAction(gs game.GameState, intent agent.Intent, target string) error {
	switch intent {
	case agent.IntentNPCDialogue:
		if target == "" {
			if len(gs.NPCsByLocation[gs.CurrentLocation.ID]) == 0 {
				return fmt.Errorf("there is nobody here to talk to")
			}
			return nil
		}
		if _, ok := ResolveNPC(gs, target); !ok && !tradeTargetResolvable(gs, target) {
			return fmt.Errorf("there is no %q here", target)
		}
	case agent.IntentUseSkill:
		if target != "" {
			if ResolveSkill(gs.Sheet, target) < 0 {
				return fmt.Errorf("you know no skill called %q", target)
			}
		}
	case agent.IntentSkillEvolution, agent.IntentSkillFusion, agent.IntentSkillMenu:
		if len(gs.Sheet.Skills) == 0 {
			return fmt.Errorf("you have not learned any skills yet")
		}
	case agent.IntentClassSelection:
		if gs.Sheet.Class != "" {
			return fmt.Errorf("you already walk the path of the %s", gs.Sheet.Class)
		}
	}
	if gs.Sheet.IsDead() {
		return fmt.Errorf("you are in no state to act")
	}
	return nil
}

// tradeTargetResolvable reports whether the target names merchandise
// rather than a person: an item a local shopkeeper stocks, or one the
// player carries and could sell here.
func tradeTargetResolvable(gs game.GameState, target string) bool {
	want := strings.ToLower(target)
	for _, n := range gs.NPCsByLocation[gs.CurrentLocation.ID] {
		if n.Shop == nil {
			continue
		}
		for _, line := range n.Shop.Stock {
			if strings.Contains(want, strings.ToLower(line.Item.Name)) {
				return true
			}
		}
		for _, it := range gs.Sheet.Inventory {
			if strings.Contains(want, strings.ToLower(it.Name)) {
				return true
			}
		}
	}
	return false
}

// ResolveNPC resolves a target against NPC names, case-insensitively,
// current location first.
func ResolveNPC(gs game.GameState, target string) (game.NPC, bool) {
	want := strings.ToLower(strings.TrimSpace(target))
	for _, n := range gs.NPCsByLocation[gs.CurrentLocation.ID] {
		if strings.ToLower(n.Name) == want || strings.Contains(strings.ToLower(n.Name), want) {
			return n, true
		}
	}
	for _, npcs := range gs.NPCsByLocation {
		for _, n := range npcs {
			if strings.ToLower(n.Name) == want {
				return n, true
			}
		}
	}
	return game.NPC{}, false
}

// ResolveSkill resolves a skill by id or case-insensitive name, returning
// its index or -1.
func ResolveSkill(cs game.CharacterSheet, target string) int {
	if idx := cs.FindSkill(target); idx >= 0 {
		return idx
	}
	want := strings.ToLower(strings.TrimSpace(target))
	for i, s := range cs.Skills {
		if strings.ToLower(s.Name) == want {
			return i
		}
	}
	return -1
}
