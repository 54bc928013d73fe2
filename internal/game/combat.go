package game

import (
	"fmt"
	"math/rand"
)

// CombatTarget describes an enemy for deterministic combat resolution.
// Targets come from the content loot tables or are improvised by the
// narrator tools.
type CombatTarget struct {
	Name      string  `json:"name"`
	Level     int     `json:"level"`
	HP        int     `json:"hp"`
	Attack    int     `json:"attack"`
	Defense   int     `json:"defense"`
	XPReward  int     `json:"xp_reward"`
	GoldMin   int     `json:"gold_min"`
	GoldMax   int     `json:"gold_max"`
	LootTable []Drop  `json:"loot_table,omitempty"`
	FleeOdds  float64 `json:"flee_odds,omitempty"`
}

// Drop is one loot-table line with a drop chance in [0,1].
type Drop struct {
	Item   Item    `json:"item"`
	Chance float64 `json:"chance"`
}

// CombatOutcome is the full result of one combat resolution.
type CombatOutcome struct {
	Victory     bool
	Rounds      int
	DamageDealt int
	DamageTaken int
	XPGained    int
	Gold        int
	Loot        []Item
	TargetName  string
}

// Summary renders a short log line for the combat event.
func (o CombatOutcome) Summary() string {
	if !o.Victory {
		return fmt.Sprintf("Defeated by %s after %d rounds (%d damage dealt, %d taken)",
			o.TargetName, o.Rounds, o.DamageDealt, o.DamageTaken)
	}
	return fmt.Sprintf("Defeated %s in %d rounds: +%d XP, +%d gold (%d damage dealt, %d taken)",
		o.TargetName, o.Rounds, o.XPGained, o.Gold, o.DamageDealt, o.DamageTaken)
}

// ResolveCombat simulates a full exchange between the character and the
// target. All randomness comes from rng, so a fixed seed replays the same
// fight. The returned sheet has damage applied but XP not yet granted; the
// caller runs GainXP with outcome.XPGained so level-up events can be
// observed separately.
func ResolveCombat(cs CharacterSheet, target CombatTarget, rng *rand.Rand) (CharacterSheet, CombatOutcome) {
	eff := EffectiveStats(cs)
	outcome := CombatOutcome{TargetName: target.Name}

	playerAttack := eff.Strength + eff.Dexterity/2
	if playerAttack < 1 {
		playerAttack = 1
	}

	targetHP := target.HP
	if targetHP <= 0 {
		targetHP = 10 * max(target.Level, 1)
	}

	// Alternating rounds, player first. Capped to keep outcomes bounded for
	// absurd matchups.
	const maxRounds = 100
	for round := 1; round <= maxRounds; round++ {
		outcome.Rounds = round

		// Player swing: base attack with ±25% variance, less target defense.
		variance := 0.75 + rng.Float64()*0.5
		dmg := int(float64(playerAttack) * variance)
		dmg -= target.Defense / 2
		if dmg < 1 {
			dmg = 1
		}
		outcome.DamageDealt += dmg
		targetHP -= dmg
		if targetHP <= 0 {
			outcome.Victory = true
			break
		}

		// Target swing: attack less player defense mitigation.
		variance = 0.75 + rng.Float64()*0.5
		taken := int(float64(target.Attack) * variance)
		mitigation := float64(eff.Defense) * 0.02
		if mitigation > 0.75 {
			mitigation = 0.75
		}
		taken = int(float64(taken) * (1 - mitigation))
		if taken < 0 {
			taken = 0
		}
		outcome.DamageTaken += taken
		cs = TakeDamage(cs, taken)
		if cs.IsDead() {
			break
		}
	}

	if !outcome.Victory {
		return cs, outcome
	}

	outcome.XPGained = target.XPReward
	if outcome.XPGained <= 0 {
		outcome.XPGained = 50 * max(target.Level, 1)
	}

	if target.GoldMax > target.GoldMin {
		outcome.Gold = target.GoldMin + rng.Intn(target.GoldMax-target.GoldMin+1)
	} else {
		outcome.Gold = target.GoldMin
	}

	for _, drop := range target.LootTable {
		if rng.Float64() < drop.Chance {
			item := drop.Item
			if item.Quantity < 1 {
				item.Quantity = 1
			}
			outcome.Loot = append(outcome.Loot, item)
		}
	}
	return cs, outcome
}
