package orchestrator

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/questweaver/questweaver/internal/agent"
	"github.com/questweaver/questweaver/internal/game"
	"github.com/questweaver/questweaver/internal/skill"
	"github.com/questweaver/questweaver/internal/tools"
)

// dialogueAffinityDelta is the bounded per-conversation relationship shift.
const dialogueAffinityDelta = 1

// dispatch routes a validated intent to its handler. Every handler returns
// tool-style results whose mutations the pipeline applies in order over
// the snapshot.
func (o *Orchestrator) dispatch(ctx context.Context, slot *gameSlot, gs game.GameState, input string, ir agent.IntentResult) ([]tools.Result, error) {
	switch ir.Intent {
	case agent.IntentCombat:
		return o.handleCombat(ctx, slot, gs, ir)
	case agent.IntentNPCDialogue:
		return o.handleDialogue(ctx, gs, input, ir)
	case agent.IntentUseSkill:
		return o.handleUseSkill(gs, ir)
	case agent.IntentSkillEvolution:
		return o.handleEvolution(gs, ir)
	case agent.IntentSkillFusion:
		return o.handleFusion(gs, input)
	case agent.IntentClassSelection:
		return o.handleClassSelection(gs, ir)
	case agent.IntentQuestAction:
		return o.handleQuestAction(ctx, gs, input, ir)
	case agent.IntentExploration:
		return o.handleExploration(ctx, gs, ir)
	case agent.IntentStatusMenu, agent.IntentSkillMenu:
		return o.invoke(ctx, gs, "get_player", tools.Args{})
	case agent.IntentInventoryMenu:
		return o.handleInventory(ctx, gs, input, ir)
	case agent.IntentSystemQuery:
		return o.handleSystemQuery(ctx, gs, input)
	}
	return o.invoke(ctx, gs, "get_location", tools.Args{})
}

// invoke wraps a single registry call into the handler result shape.
func (o *Orchestrator) invoke(ctx context.Context, gs game.GameState, tool string, args tools.Args) ([]tools.Result, error) {
	res, err := o.tools.Invoke(ctx, tool, tools.Request{State: gs, Args: args})
	if err != nil {
		o.metrics.RecordToolCall(ctx, tool, "error")
		return nil, err
	}
	o.metrics.RecordToolCall(ctx, tool, "ok")
	return []tools.Result{res}, nil
}

// handleCombat resolves the fight deterministically, seeded by the event
// log position so a replay of the same log reproduces the same fight, and
// ticks skill cooldowns and status effects afterwards.
func (o *Orchestrator) handleCombat(ctx context.Context, slot *gameSlot, gs game.GameState, ir agent.IntentResult) ([]tools.Result, error) {
	results, err := o.invoke(ctx, gs, "resolve_combat", tools.Args{
		Target: ir.Target,
		Seed:   slot.lastEventID + 1,
	})
	if err != nil {
		return nil, err
	}
	results = append(results, tools.Result{
		Mutations: []tools.MutationProposal{{
			Description: "tick cooldowns and status effects",
			Apply: func(s game.GameState) (game.GameState, error) {
				s.Sheet = skill.TickCooldowns(s.Sheet)
				s.Sheet = game.TickStatusEffects(s.Sheet)
				return s, nil
			},
		}},
	})
	return results, nil
}

// handleInventory routes equip/use phrasing to the item tools and plain
// inventory talk to inspection.
func (o *Orchestrator) handleInventory(ctx context.Context, gs game.GameState, input string, ir agent.IntentResult) ([]tools.Result, error) {
	lower := strings.ToLower(input)
	switch {
	case strings.Contains(lower, "equip") || strings.Contains(lower, "wear"):
		if ir.Target != "" {
			return o.invoke(ctx, gs, "equip_item", tools.Args{Target: ir.Target})
		}
	case strings.Contains(lower, "use") || strings.Contains(lower, "drink"):
		if ir.Target != "" {
			return o.invoke(ctx, gs, "use_item", tools.Args{Target: ir.Target})
		}
	}
	return o.invoke(ctx, gs, "inspect_inventory", tools.Args{})
}

// handleDialogue routes shop phrasing to the trade tools when a shopkeeper
// is present; otherwise it appends the player's line to the NPC's
// conversation and nudges affinity by a bounded delta. The NPC's spoken
// reply is the narrator's job; the mechanical record lives here.
func (o *Orchestrator) handleDialogue(ctx context.Context, gs game.GameState, input string, ir agent.IntentResult) ([]tools.Result, error) {
	lower := strings.ToLower(input)
	if strings.Contains(lower, "buy") || strings.Contains(lower, "sell") {
		if results, ok := o.tryShop(ctx, gs, lower); ok {
			return results, nil
		}
	}
	return o.plainDialogue(gs, input, ir)
}

// tryShop resolves a shopkeeper at the current location and the item named
// in the input. Unresolvable trades fall back to plain conversation.
func (o *Orchestrator) tryShop(ctx context.Context, gs game.GameState, lower string) ([]tools.Result, bool) {
	var keeper *game.NPC
	for _, n := range gs.NPCsByLocation[gs.CurrentLocation.ID] {
		if n.Shop != nil {
			n := n
			keeper = &n
			break
		}
	}
	if keeper == nil {
		return nil, false
	}

	if strings.Contains(lower, "sell") {
		for id, it := range gs.Sheet.Inventory {
			if strings.Contains(lower, strings.ToLower(it.Name)) {
				results, err := o.invoke(ctx, gs, "shop_sell", tools.Args{
					NPCID: keeper.ID, ItemID: id,
				})
				if err != nil {
					return nil, false
				}
				return results, true
			}
		}
		return nil, false
	}

	for _, line := range keeper.Shop.Stock {
		if strings.Contains(lower, strings.ToLower(line.Item.Name)) {
			results, err := o.invoke(ctx, gs, "shop_buy", tools.Args{
				NPCID: keeper.ID, ItemID: line.Item.ID,
			})
			if err != nil {
				return nil, false
			}
			return results, true
		}
	}
	return nil, false
}

func (o *Orchestrator) plainDialogue(gs game.GameState, input string, ir agent.IntentResult) ([]tools.Result, error) {
	npc, ok := tools.ResolveNPC(gs, ir.Target)
	if !ok {
		// Validation allows a bare "talk" when someone is present.
		present := gs.NPCsByLocation[gs.CurrentLocation.ID]
		if len(present) == 0 {
			return nil, fmt.Errorf("there is nobody here to talk to")
		}
		npc = present[0]
	}

	updated := npc.
		AppendDialogue("player", input, time.Now().UTC()).
		UpdateRelationship(gs.GameID, dialogueAffinityDelta)

	res := tools.Result{
		Text: fmt.Sprintf("%s (%s) listens. Affinity %d.",
			npc.Name, npc.Archetype, updated.AffinityFor(gs.GameID)),
		Data: updated,
		Mutations: []tools.MutationProposal{{
			Description: "record dialogue with " + npc.Name,
			Apply: func(s game.GameState) (game.GameState, error) {
				return s.ReplaceNPC(updated)
			},
		}},
		Events: []game.GameEvent{{
			GameID:     gs.GameID,
			Type:       game.EventNPCDialogue,
			Category:   game.CategoryDialogue,
			Importance: game.ImportanceNormal,
			Text:       fmt.Sprintf("%s spoke with %s: %q", gs.PlayerName, npc.Name, input),
			NPCID:      npc.ID,
			LocationID: npc.LocationID,
		}},
	}
	return []tools.Result{res}, nil
}

// handleUseSkill executes the named skill against a notional target scaled
// off the location's danger level.
func (o *Orchestrator) handleUseSkill(gs game.GameState, ir agent.IntentResult) ([]tools.Result, error) {
	idx := tools.ResolveSkill(gs.Sheet, ir.Target)
	if idx < 0 {
		if len(gs.Sheet.Skills) == 0 {
			return nil, fmt.Errorf("you have not learned any skills yet")
		}
		idx = 0
	}

	targetDefense := gs.CurrentLocation.DangerLevel * 2
	sheet, exec, err := skill.Execute(gs.Sheet, idx, targetDefense, gs.CurrentLocation.DangerLevel)
	if err != nil {
		return nil, err
	}

	text := fmt.Sprintf("%s unleashed for %d damage (+%d skill XP)",
		exec.SkillName, exec.TotalDamage(), exec.XPGained)
	events := []game.GameEvent{game.NewEvent(gs.GameID, game.EventCombatLog,
		game.CategoryCombat, text)}
	if exec.LeveledUp {
		events = append(events, game.NewEvent(gs.GameID, game.EventStatChange,
			game.CategorySystem,
			fmt.Sprintf("%s advanced to skill level %d", exec.SkillName, exec.NewLevel)))
	}

	res := tools.Result{
		Text: text,
		Data: exec,
		Mutations: []tools.MutationProposal{{
			Description: "apply skill execution of " + exec.SkillName,
			Apply: func(s game.GameState) (game.GameState, error) {
				s.Sheet = sheet
				return s, nil
			},
		}},
		Events: events,
	}
	return []tools.Result{res}, nil
}

// handleEvolution evolves a max-level skill down its first satisfied path.
func (o *Orchestrator) handleEvolution(gs game.GameState, ir agent.IntentResult) ([]tools.Result, error) {
	idx := tools.ResolveSkill(gs.Sheet, ir.Target)
	if idx < 0 {
		return nil, fmt.Errorf("you know no skill called %q", ir.Target)
	}
	s := gs.Sheet.Skills[idx]

	paths := skill.AvailablePaths(gs.Sheet, s.ID, gs.CompletedQuests)
	if len(paths) == 0 {
		return nil, fmt.Errorf("%s is not ready to evolve", s.Name)
	}

	sheet, evo, err := skill.Evolve(gs.Sheet, s.ID, paths[0].ResultSkillID, o.library, gs.CompletedQuests)
	if err != nil {
		return nil, err
	}

	text := fmt.Sprintf("%s has evolved into %s", s.Name, evo.NewName)
	res := tools.Result{
		Text: text,
		Data: evo,
		Mutations: []tools.MutationProposal{{
			Description: "evolve " + s.ID,
			Apply: func(st game.GameState) (game.GameState, error) {
				st.Sheet = sheet
				return st, nil
			},
		}},
		Events: []game.GameEvent{game.NewEvent(gs.GameID, game.EventSkillEvolved,
			game.CategorySystem, text).WithImportance(game.ImportanceHigh)},
	}
	return []tools.Result{res}, nil
}

// handleFusion fuses every owned skill named in the input. A near-miss
// (no recipe) surfaces the hints instead of failing the turn.
func (o *Orchestrator) handleFusion(gs game.GameState, input string) ([]tools.Result, error) {
	lower := strings.ToLower(input)
	var inputIDs []string
	for _, s := range gs.Sheet.Skills {
		if strings.Contains(lower, strings.ToLower(s.Name)) {
			inputIDs = append(inputIDs, s.ID)
		}
	}
	if len(inputIDs) < 2 {
		return nil, fmt.Errorf("name at least two of your skills to fuse")
	}

	sheet, fusion, hints, err := skill.Fuse(gs.Sheet, inputIDs, o.library.Recipes(), o.library)
	if err != nil {
		if len(hints) > 0 {
			return []tools.Result{{
				Text: "The skills resist fusion. " + strings.Join(hints, " "),
			}}, nil
		}
		return nil, err
	}

	text := fmt.Sprintf("Skills %s fused into %s",
		strings.Join(fusion.ConsumedSkills, " + "), fusion.ResultName)
	res := tools.Result{
		Text: text,
		Data: fusion,
		Mutations: []tools.MutationProposal{{
			Description: "fuse skills into " + fusion.ResultSkillID,
			Apply: func(st game.GameState) (game.GameState, error) {
				st.Sheet = sheet
				return st, nil
			},
		}},
		Events: []game.GameEvent{game.NewEvent(gs.GameID, game.EventSkillFused,
			game.CategorySystem, text).WithImportance(game.ImportanceHigh)},
	}
	return []tools.Result{res}, nil
}

// handleClassSelection rebuilds the sheet on the chosen class while
// carrying over earned XP, gold, inventory, and insight progress.
func (o *Orchestrator) handleClassSelection(gs game.GameState, ir agent.IntentResult) ([]tools.Result, error) {
	classID := o.resolveClass(ir.Target)
	if classID == "" {
		return nil, fmt.Errorf("no such class %q; choose from %s",
			ir.Target, strings.Join(o.library.ClassIDs(), ", "))
	}

	fresh, err := o.library.NewCharacter(classID)
	if err != nil {
		return nil, err
	}
	old := gs.Sheet
	fresh.Gold += old.Gold
	fresh.Insight = old.Insight
	for _, it := range old.Inventory {
		if next, aerr := game.AddItem(fresh, it); aerr == nil {
			fresh = next
		}
	}
	fresh, summary := game.GainXP(fresh, old.XP)

	text := fmt.Sprintf("You have taken the path of the %s (level %d)", classID, fresh.Level)
	res := tools.Result{
		Text: text,
		Data: summary,
		Mutations: []tools.MutationProposal{{
			Description: "apply class " + classID,
			Apply: func(st game.GameState) (game.GameState, error) {
				st.Sheet = fresh
				return st, nil
			},
		}},
		Events: []game.GameEvent{game.NewEvent(gs.GameID, game.EventStatChange,
			game.CategorySystem, text).WithImportance(game.ImportanceHigh)},
	}
	return []tools.Result{res}, nil
}

func (o *Orchestrator) resolveClass(target string) string {
	want := strings.ToLower(strings.TrimSpace(target))
	if want == "" {
		return ""
	}
	for _, id := range o.library.ClassIDs() {
		if id == want || strings.Contains(want, id) {
			return id
		}
	}
	return ""
}

// handleQuestAction advances a named active quest, or generates a new one
// when nothing matches.
func (o *Orchestrator) handleQuestAction(ctx context.Context, gs game.GameState, input string, ir agent.IntentResult) ([]tools.Result, error) {
	if q, ok := matchActiveQuest(gs, input, ir.Target); ok {
		return o.advanceQuest(gs, q)
	}
	hint := ir.Target
	if hint == "" {
		hint = input
	}
	return o.invoke(ctx, gs, "generate_quest", tools.Args{Hint: hint})
}

func matchActiveQuest(gs game.GameState, input, target string) (game.Quest, bool) {
	lower := strings.ToLower(input + " " + target)
	for _, q := range gs.ActiveQuests {
		if q.Name != "" && strings.Contains(lower, strings.ToLower(q.Name)) {
			return q, true
		}
	}
	return game.Quest{}, false
}

// advanceQuest pushes the first incomplete objective forward one step and
// settles rewards when the quest completes.
func (o *Orchestrator) advanceQuest(gs game.GameState, q game.Quest) ([]tools.Result, error) {
	objective := 0
	for i, obj := range q.Objectives {
		if !obj.Complete() {
			objective = i
			break
		}
	}
	updated, err := q.AdvanceObjective(objective, 1)
	if err != nil {
		return nil, err
	}

	text := fmt.Sprintf("Quest %q: %s (%d/%d)", updated.Name,
		updated.Objectives[objective].Description,
		updated.Objectives[objective].CurrentProgress,
		updated.Objectives[objective].TargetProgress)
	events := []game.GameEvent{{
		GameID:   gs.GameID,
		Type:     game.EventQuestUpdate,
		Category: game.CategoryExploration, Importance: game.ImportanceNormal,
		Text: text, QuestID: updated.ID,
	}}

	mutations := []tools.MutationProposal{{
		Description: "advance quest " + updated.ID,
		Apply: func(st game.GameState) (game.GameState, error) {
			return st.PutQuest(updated)
		},
	}}

	if updated.Status == game.QuestCompleted {
		rewards := updated.Rewards
		doneText := fmt.Sprintf("Quest %q complete: +%d XP, +%d gold",
			updated.Name, rewards.XP, rewards.Gold)
		text = doneText
		events = append(events, game.GameEvent{
			GameID:   gs.GameID,
			Type:     game.EventQuestUpdate,
			Category: game.CategoryExploration, Importance: game.ImportanceHigh,
			Text: doneText, QuestID: updated.ID,
		})
		mutations = append(mutations, tools.MutationProposal{
			Description: "settle rewards for quest " + updated.ID,
			Apply: func(st game.GameState) (game.GameState, error) {
				next, cerr := st.CompleteQuest(updated.ID)
				if cerr != nil {
					return st, cerr
				}
				sheet, _ := game.GainXP(next.Sheet, rewards.XP)
				sheet.Gold += rewards.Gold
				for _, it := range rewards.Items {
					if withItem, aerr := game.AddItem(sheet, it); aerr == nil {
						sheet = withItem
					}
				}
				next.Sheet = sheet
				return next, nil
			},
		})
	}

	return []tools.Result{{Text: text, Data: updated, Mutations: mutations, Events: events}}, nil
}

// handleExploration generates a new location when the player pushes toward
// somewhere specific, and describes the surroundings otherwise.
func (o *Orchestrator) handleExploration(ctx context.Context, gs game.GameState, ir agent.IntentResult) ([]tools.Result, error) {
	if ir.Target != "" {
		return o.invoke(ctx, gs, "generate_location", tools.Args{Hint: ir.Target})
	}
	return o.invoke(ctx, gs, "get_location", tools.Args{})
}

// handleSystemQuery answers questions about the System and the recent past
// without touching state.
func (o *Orchestrator) handleSystemQuery(ctx context.Context, gs game.GameState, input string) ([]tools.Result, error) {
	results, err := o.invoke(ctx, gs, "recent_events", tools.Args{Limit: 5})
	if err != nil {
		results = nil
	}
	sys := gs.System
	text := fmt.Sprintf("%s — %s. Theme: %s.", sys.Name, sys.Personality, sys.Theme)
	if sys.Name == "" {
		text = "The System has not yet revealed itself."
	}
	return append([]tools.Result{{Text: text}}, results...), nil
}
