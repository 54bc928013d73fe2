package tools

import (
	"context"
	"fmt"

	"github.com/questweaver/questweaver/internal/game"
)

func (r *Registry) generateNPCTool() Tool {
	return Tool{
		Name:        "generate_npc",
		Description: "Invent an NPC fitting the current location and add them to it.",
		Effect:      EffectLLM,
		Run: func(ctx context.Context, req Request) (Result, error) {
			npc, err := r.deps.NPCs.Generate(ctx, req.State.CurrentLocation,
				req.State.System.Theme, req.Args.Hint)
			if err != nil {
				// The generator degraded to a usable default; note it and
				// carry on.
				r.deps.Log.Warn("npc generation degraded",
					"game_id", req.State.GameID, "err", err)
			}

			e := game.NewEvent(req.State.GameID, game.EventSystemNotification,
				game.CategorySetup, fmt.Sprintf("%s appears at %s", npc.Name, req.State.CurrentLocation.Name))
			e.NPCID = npc.ID
			e.LocationID = npc.LocationID

			return Result{
				Text:   fmt.Sprintf("%s, %s: %s", npc.Name, npc.Archetype, npc.Personality),
				Data:   npc,
				Events: []game.GameEvent{e},
				Mutations: []MutationProposal{{
					Description: "add npc " + npc.ID,
					Apply: func(gs game.GameState) (game.GameState, error) {
						return gs.PutNPC(npc), nil
					},
				}},
			}, nil
		},
	}
}

func (r *Registry) generateLocationTool() Tool {
	return Tool{
		Name:        "generate_location",
		Description: "Invent a new location reachable from here and connect it.",
		Effect:      EffectLLM,
		Run: func(ctx context.Context, req Request) (Result, error) {
			loc, err := r.deps.Locations.Generate(ctx, req.State.CurrentLocation,
				req.State.System.Theme, req.Args.Hint)
			if err != nil {
				r.deps.Log.Warn("location generation degraded",
					"game_id", req.State.GameID, "err", err)
			}

			e := game.NewEvent(req.State.GameID, game.EventLocationFound,
				game.CategoryExploration, fmt.Sprintf("Discovered %s", loc.Name))
			e.LocationID = loc.ID

			return Result{
				Text:   fmt.Sprintf("%s (danger %d): %s", loc.Name, loc.DangerLevel, loc.Description),
				Data:   loc,
				Events: []game.GameEvent{e},
				Mutations: []MutationProposal{{
					Description: "add location " + loc.ID,
					Apply: func(gs game.GameState) (game.GameState, error) {
						return gs.AddCustomLocation(loc), nil
					},
				}},
			}, nil
		},
	}
}

func (r *Registry) generateQuestTool() Tool {
	return Tool{
		Name:        "generate_quest",
		Description: "Invent a quest offered by an NPC and activate it.",
		Effect:      EffectLLM,
		Run: func(ctx context.Context, req Request) (Result, error) {
			q, err := r.deps.Quests.Generate(ctx, req.Args.NPCID,
				req.State.System.Theme, req.Args.Hint, req.State.Sheet.Level)
			if err != nil {
				r.deps.Log.Warn("quest generation degraded",
					"game_id", req.State.GameID, "err", err)
			}

			e := game.NewEvent(req.State.GameID, game.EventQuestUpdate,
				game.CategoryNarrative, fmt.Sprintf("New quest: %s", q.Name))
			e.QuestID = q.ID
			e.NPCID = req.Args.NPCID

			return Result{
				Text:   fmt.Sprintf("%s: %s (reward %d XP, %d gold)", q.Name, q.Description, q.Rewards.XP, q.Rewards.Gold),
				Data:   q,
				Events: []game.GameEvent{e},
				Mutations: []MutationProposal{{
					Description: "add quest " + q.ID,
					Apply: func(gs game.GameState) (game.GameState, error) {
						return gs.PutQuest(q)
					},
				}},
			}, nil
		},
	}
}
