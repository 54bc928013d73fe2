package tools

import (
	"context"
	"fmt"
	"math/rand"
	"strings"

	"github.com/questweaver/questweaver/internal/game"
)

func (r *Registry) resolveCombatTool() Tool {
	return Tool{
		Name:        "resolve_combat",
		Description: "Resolve a full combat exchange and propose the resulting sheet changes.",
		Effect:      EffectStateWrite,
		Run: func(_ context.Context, req Request) (Result, error) {
			target := r.combatTarget(req)
			rng := rand.New(rand.NewSource(req.Args.Seed))

			sheet, outcome := game.ResolveCombat(req.State.Sheet, target, rng)

			res := Result{
				Text: outcome.Summary(),
				Data: outcome,
			}
			res.Events = append(res.Events, game.NewEvent(req.State.GameID,
				game.EventCombatLog, game.CategoryCombat, outcome.Summary()))

			if !outcome.Victory {
				died := sheet.IsDead()
				res.Mutations = append(res.Mutations, MutationProposal{
					Description: fmt.Sprintf("defeat by %s", target.Name),
					Apply: func(gs game.GameState) (game.GameState, error) {
						gs.Sheet = sheet
						if died {
							gs.DeathCount++
						}
						return gs, nil
					},
				})
				return res, nil
			}

			leveled, summary := game.GainXP(sheet, outcome.XPGained)
			if summary.LevelsGained > 0 {
				res.Events = append(res.Events, game.NewEvent(req.State.GameID,
					game.EventStatChange, game.CategorySystem,
					fmt.Sprintf("Level up! Now level %d (%s grade)", summary.NewLevel, leveled.Grade)).
					WithImportance(game.ImportanceHigh))
			}
			for _, it := range outcome.Loot {
				res.Events = append(res.Events, game.NewEvent(req.State.GameID,
					game.EventItemGained, game.CategoryCombat,
					fmt.Sprintf("Looted %s x%d", it.Name, it.Quantity)))
			}

			loot := outcome.Loot
			gold := outcome.Gold
			res.Mutations = append(res.Mutations, MutationProposal{
				Description: fmt.Sprintf("victory over %s", target.Name),
				Apply: func(gs game.GameState) (game.GameState, error) {
					cs := leveled
					cs.Gold += gold
					// A full inventory drops remaining loot; the loot events
					// still record what fell.
					for _, it := range loot {
						next, err := game.AddItem(cs, it)
						if err != nil {
							break
						}
						cs = next
					}
					gs.Sheet = cs
					return gs, nil
				},
			})
			return res, nil
		},
	}
}

// combatTarget resolves the enemy: an explicit override wins, otherwise one
// is improvised from the location's danger level and any matching loot
// table.
func (r *Registry) combatTarget(req Request) game.CombatTarget {
	if req.Args.CombatTarget != nil {
		return *req.Args.CombatTarget
	}
	loc := req.State.CurrentLocation
	level := max(loc.DangerLevel, 1)

	name := req.Args.Target
	if name == "" {
		name = "a lurking beast"
	}
	target := game.CombatTarget{
		Name:     name,
		Level:    level,
		HP:       15 * level,
		Attack:   4 + 3*level,
		Defense:  2 * level,
		XPReward: 50 * level,
		GoldMin:  2 * level,
		GoldMax:  6 * level,
	}
	if r.deps.Library != nil {
		for tag, table := range map[string]string{
			"forest": "forest_beasts",
			"goblin": "goblin_warband",
			"ruins":  "ruins_cache",
		} {
			if loc.HasTag(tag) {
				target.LootTable = r.deps.Library.LootTable(table)
				break
			}
		}
	}
	return target
}

func (r *Registry) equipItemTool() Tool {
	return Tool{
		Name:        "equip_item",
		Description: "Equip a weapon, armor piece or accessory from the inventory.",
		Effect:      EffectStateWrite,
		Run: func(_ context.Context, req Request) (Result, error) {
			itemID, err := resolveItem(req.State.Sheet, req.Args.ItemID, req.Args.Target)
			if err != nil {
				return Result{Text: err.Error()}, err
			}
			cs, err := game.EquipItem(req.State.Sheet, itemID)
			if err != nil {
				return Result{Text: err.Error()}, err
			}
			name := req.State.Sheet.Inventory[itemID].Name
			return Result{
				Text: fmt.Sprintf("Equipped %s.", name),
				Mutations: []MutationProposal{{
					Description: "equip " + itemID,
					Apply: func(gs game.GameState) (game.GameState, error) {
						gs.Sheet = cs
						return gs, nil
					},
				}},
			}, nil
		},
	}
}

func (r *Registry) useItemTool() Tool {
	return Tool{
		Name:        "use_item",
		Description: "Consume a usable item and apply its restores.",
		Effect:      EffectStateWrite,
		Run: func(_ context.Context, req Request) (Result, error) {
			itemID, err := resolveItem(req.State.Sheet, req.Args.ItemID, req.Args.Target)
			if err != nil {
				return Result{Text: err.Error()}, err
			}
			name := req.State.Sheet.Inventory[itemID].Name
			cs, err := game.UseItem(req.State.Sheet, itemID)
			if err != nil {
				return Result{Text: err.Error()}, err
			}
			return Result{
				Text: fmt.Sprintf("Used %s.", name),
				Events: []game.GameEvent{
					func() game.GameEvent {
						e := game.NewEvent(req.State.GameID, game.EventStatChange,
							game.CategorySystem, fmt.Sprintf("Used %s", name))
						e.ItemID = itemID
						return e
					}(),
				},
				Mutations: []MutationProposal{{
					Description: "use " + itemID,
					Apply: func(gs game.GameState) (game.GameState, error) {
						gs.Sheet = cs
						return gs, nil
					},
				}},
			}, nil
		},
	}
}

// resolveItem finds an inventory item by explicit id first, then by
// case-insensitive name.
func resolveItem(cs game.CharacterSheet, itemID, target string) (string, error) {
	if itemID != "" {
		if _, ok := cs.Inventory[itemID]; ok {
			return itemID, nil
		}
		return "", fmt.Errorf("tools: no item %q in inventory", itemID)
	}
	for id, it := range cs.Inventory {
		if strings.EqualFold(it.Name, target) {
			return id, nil
		}
	}
	return "", fmt.Errorf("tools: no item called %q in inventory", target)
}

func (r *Registry) shopBuyTool() Tool {
	return Tool{
		Name:        "shop_buy",
		Description: "Buy an item from an NPC's shop, gated by stock, level and affinity.",
		Effect:      EffectStateWrite,
		Run: func(_ context.Context, req Request) (Result, error) {
			npc, ok := req.State.FindNPC(req.Args.NPCID)
			if !ok {
				return Result{}, fmt.Errorf("tools: no npc %q", req.Args.NPCID)
			}
			qty := max(req.Args.Quantity, 1)
			updated, item, price, err := npc.Purchase(
				req.State.GameID, req.Args.ItemID, qty, req.State.Sheet.Level)
			if err != nil {
				return Result{Text: err.Error()}, err
			}
			if req.State.Sheet.Gold < price {
				err := fmt.Errorf("tools: %d gold short for %s", price-req.State.Sheet.Gold, item.Name)
				return Result{Text: err.Error()}, err
			}

			e := game.NewEvent(req.State.GameID, game.EventItemGained, game.CategoryDialogue,
				fmt.Sprintf("Bought %s x%d for %d gold from %s", item.Name, qty, price, npc.Name))
			e.NPCID = npc.ID
			e.ItemID = item.ID

			return Result{
				Text:   fmt.Sprintf("Bought %s x%d for %d gold.", item.Name, qty, price),
				Data:   item,
				Events: []game.GameEvent{e},
				Mutations: []MutationProposal{{
					Description: fmt.Sprintf("buy %s from %s", item.ID, npc.ID),
					Apply: func(gs game.GameState) (game.GameState, error) {
						cs := gs.Sheet
						cs.Gold -= price
						cs, err := game.AddItem(cs, item)
						if err != nil {
							return gs, err
						}
						gs.Sheet = cs
						return gs.ReplaceNPC(updated)
					},
				}},
			}, nil
		},
	}
}

func (r *Registry) shopSellTool() Tool {
	return Tool{
		Name:        "shop_sell",
		Description: "Sell an inventory item to a shopkeeper at their buyback rate.",
		Effect:      EffectStateWrite,
		Run: func(_ context.Context, req Request) (Result, error) {
			npc, ok := req.State.FindNPC(req.Args.NPCID)
			if !ok {
				return Result{}, fmt.Errorf("tools: no npc %q", req.Args.NPCID)
			}
			itemID, err := resolveItem(req.State.Sheet, req.Args.ItemID, req.Args.Target)
			if err != nil {
				return Result{Text: err.Error()}, err
			}
			item := req.State.Sheet.Inventory[itemID]
			qty := max(req.Args.Quantity, 1)
			proceeds, err := npc.Sell(item, qty)
			if err != nil {
				return Result{Text: err.Error()}, err
			}

			return Result{
				Text: fmt.Sprintf("Sold %s x%d for %d gold.", item.Name, qty, proceeds),
				Mutations: []MutationProposal{{
					Description: fmt.Sprintf("sell %s to %s", itemID, npc.ID),
					Apply: func(gs game.GameState) (game.GameState, error) {
						cs, err := game.RemoveItem(gs.Sheet, itemID, qty)
						if err != nil {
							return gs, err
						}
						cs.Gold += proceeds
						gs.Sheet = cs
						return gs, nil
					},
				}},
			}, nil
		},
	}
}
