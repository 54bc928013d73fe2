package skill

import (
	"errors"
	"fmt"
	"math"

	"github.com/questweaver/questweaver/internal/game"
)

// Sentinel errors callers branch on.
var (
	ErrSkillNotReady      = errors.New("skill is on cooldown")
	ErrInsufficientMana   = errors.New("not enough mana")
	ErrInsufficientEnergy = errors.New("not enough energy")
	ErrInsufficientHP     = errors.New("health cost would be lethal")
	ErrPassiveSkill       = errors.New("passive skills cannot be executed")
)

// Defense mitigation caps per damage type.
const (
	physicalCap = 0.75
	magicalCap  = 0.60
	poisonCap   = 0.50
)

// xpPerUseBase is multiplied by the skill's rarity XP multiplier on each use.
const xpPerUseBase = 10

// EffectOutcome is the resolved result of one skill effect.
type EffectOutcome struct {
	Kind   game.EffectKind
	Amount int

	// Stat and Duration are set for buffs, debuffs and periodic effects.
	Stat     game.StatName
	Duration int
}

// ExecutionResult reports everything one skill use produced.
type ExecutionResult struct {
	SkillID   string
	SkillName string
	Outcomes  []EffectOutcome
	XPGained  int
	LeveledUp bool
	NewLevel  int
}

// TotalDamage sums the damage outcomes.
func (r ExecutionResult) TotalDamage() int {
	total := 0
	for _, o := range r.Outcomes {
		if o.Kind.IsDamage() {
			total += o.Amount
		}
	}
	return total
}

// CanUse reports whether the sheet can execute the skill right now: off
// cooldown, affordable mana/energy, and a health cost that leaves at least
// 1 HP.
func CanUse(cs game.CharacterSheet, s game.Skill) error {
	if s.Passive {
		return ErrPassiveSkill
	}
	if !s.Ready() {
		return fmt.Errorf("%w: %d turns remain", ErrSkillNotReady, s.CurrentCooldown)
	}
	if cs.Mana.Current < s.ManaCost {
		return fmt.Errorf("%w: need %d, have %d", ErrInsufficientMana, s.ManaCost, cs.Mana.Current)
	}
	if cs.Energy.Current < s.EnergyCost {
		return fmt.Errorf("%w: need %d, have %d", ErrInsufficientEnergy, s.EnergyCost, cs.Energy.Current)
	}
	if s.HealthCost > 0 && cs.HP.Current <= s.HealthCost {
		return fmt.Errorf("%w: cost %d, have %d", ErrInsufficientHP, s.HealthCost, cs.HP.Current)
	}
	return nil
}

// Execute validates and runs the skill at index idx of the sheet's skill
// list against a target with the given defense and wisdom. On success the
// returned sheet has resources spent, the cooldown started, and skill XP
// applied (with level-ups resolved). The input sheet is not modified.
func Execute(cs game.CharacterSheet, idx int, targetDefense, targetWisdom int) (game.CharacterSheet, ExecutionResult, error) {
	if idx < 0 || idx >= len(cs.Skills) {
		return cs, ExecutionResult{}, fmt.Errorf("skill: no skill at index %d", idx)
	}
	s := cs.Skills[idx]
	if err := CanUse(cs, s); err != nil {
		return cs, ExecutionResult{}, err
	}

	stats := game.EffectiveStats(cs)
	result := ExecutionResult{SkillID: s.ID, SkillName: s.Name}

	for _, eff := range s.Effects {
		out := resolveEffect(eff, s, stats, targetDefense, targetWisdom)
		result.Outcomes = append(result.Outcomes, out)
	}

	// Spend, then apply self-directed outcomes.
	cs = game.SpendMana(cs, s.ManaCost)
	cs = game.SpendEnergy(cs, s.EnergyCost)
	if s.HealthCost > 0 {
		cs = game.TakeDamage(cs, s.HealthCost)
	}
	for _, out := range result.Outcomes {
		switch out.Kind {
		case game.EffectHeal:
			cs = game.Heal(cs, out.Amount)
		case game.EffectRestoreMana:
			cs = game.RestoreMana(cs, out.Amount)
		case game.EffectRestoreEnergy:
			cs = game.RestoreEnergy(cs, out.Amount)
		}
	}

	// Cooldown + XP on the owned copy of the skill.
	skills := cs.CloneSkills()
	s = skills[idx]
	s.CurrentCooldown = s.BaseCooldown

	result.XPGained = int(xpPerUseBase * s.Rarity.XPMultiplier())
	if !s.AtMaxLevel() {
		s.XP += result.XPGained
		for !s.AtMaxLevel() && s.XP >= s.XPPerLevel() {
			s.XP -= s.XPPerLevel()
			s.Level++
			result.LeveledUp = true
		}
		if s.AtMaxLevel() {
			s.XP = 0
		}
	}
	result.NewLevel = s.Level

	skills[idx] = s
	cs.Skills = skills
	return cs, result, nil
}

// resolveEffect computes one effect's magnitude. Damage and heal effects
// scale as (base × rarityPower + stat × ratio) × (1 + 0.1 × skillLevel);
// damage is then reduced by the target's type-specific mitigation.
func resolveEffect(eff game.SkillEffect, s game.Skill, stats game.Stats, targetDefense, targetWisdom int) EffectOutcome {
	levelScale := 1 + 0.1*float64(s.Level)
	scaling := float64(stats.Get(eff.ScalingStat)) * eff.Ratio

	out := EffectOutcome{Kind: eff.Kind, Stat: eff.Stat, Duration: eff.Duration}

	switch eff.Kind {
	case game.EffectPhysicalDamage, game.EffectMagicalDamage,
		game.EffectPoisonDamage, game.EffectTrueDamage:
		raw := (eff.Base*s.Rarity.Power() + scaling) * levelScale
		out.Amount = int(math.Floor(raw * (1 - mitigation(eff.Kind, targetDefense, targetWisdom))))
		if out.Amount < 0 {
			out.Amount = 0
		}

	case game.EffectHeal, game.EffectShield,
		game.EffectRestoreMana, game.EffectRestoreEnergy:
		out.Amount = int(math.Floor((eff.Base + scaling) * levelScale))

	case game.EffectBuff, game.EffectDebuff:
		out.Amount = int(math.Floor((eff.Base + scaling) * levelScale))
		if out.Duration <= 0 {
			out.Duration = 3
		}

	case game.EffectDamageOverTime, game.EffectHealOverTime:
		out.Amount = int(math.Floor((eff.Base + scaling) * levelScale))
		if out.Duration <= 0 {
			out.Duration = 3
		}

	case game.EffectPassiveStat:
		out.Amount = int(eff.Base)
	}
	return out
}

// mitigation returns the fraction of damage the target absorbs.
func mitigation(kind game.EffectKind, defense, wisdom int) float64 {
	switch kind {
	case game.EffectPhysicalDamage:
		return math.Min(physicalCap, float64(defense)*0.02)
	case game.EffectMagicalDamage:
		return math.Min(magicalCap, float64(wisdom)*0.015)
	case game.EffectPoisonDamage:
		return math.Min(poisonCap, float64(defense)*0.01)
	case game.EffectTrueDamage:
		return 0
	default:
		return 0
	}
}

// TickCooldowns decrements every skill's current cooldown by one, floored
// at zero. Called once per combat tick by the orchestrator.
func TickCooldowns(cs game.CharacterSheet) game.CharacterSheet {
	skills := cs.CloneSkills()
	for i := range skills {
		if skills[i].CurrentCooldown > 0 {
			skills[i].CurrentCooldown--
		}
	}
	cs.Skills = skills
	return cs
}
