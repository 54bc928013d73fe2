package skill

import (
	"errors"
	"testing"

	"github.com/questweaver/questweaver/internal/game"
)

func sheetWith(skills ...game.Skill) game.CharacterSheet {
	cs := testSheet()
	cs.Skills = skills
	return cs
}

func TestExecute_PhysicalDamageFormula(t *testing.T) {
	t.Parallel()
	strike, _ := testCatalog().SkillByID("power_strike")
	strike.Level = 3
	cs := sheetWith(strike)

	cs, result, err := Execute(cs, 0, 10, 0)
	if err != nil {
		t.Fatalf("Execute: %v", err)
	}

	// raw = (15*1.0 + 10*1.5) * (1 + 0.1*3) = 30 * 1.3 = 39
	// mitigation = min(0.75, 10*0.02) = 0.20 -> 39 * 0.8 = 31.2 -> 31
	if got := result.TotalDamage(); got != 31 {
		t.Errorf("damage = %d, want 31", got)
	}
	if cs.Energy.Current != 90 {
		t.Errorf("energy = %d, want 90 after 10 cost", cs.Energy.Current)
	}
	if cs.Skills[0].CurrentCooldown != 2 {
		t.Errorf("cooldown = %d, want 2", cs.Skills[0].CurrentCooldown)
	}
	if result.XPGained != 10 {
		t.Errorf("xp = %d, want 10 for COMMON", result.XPGained)
	}
}

func TestExecute_MitigationCaps(t *testing.T) {
	t.Parallel()
	strike, _ := testCatalog().SkillByID("power_strike")
	cs := sheetWith(strike)

	// defense 100 would be 200% mitigation; capped at 75%.
	// raw = (15 + 15) * 1.1 = 33 -> 33 * 0.25 = 8.25 -> 8
	_, result, err := Execute(cs, 0, 100, 0)
	if err != nil {
		t.Fatalf("Execute: %v", err)
	}
	if got := result.TotalDamage(); got != 8 {
		t.Errorf("damage = %d, want 8 under 75%% cap", got)
	}
}

func TestExecute_TrueDamageIgnoresDefense(t *testing.T) {
	t.Parallel()
	s := game.Skill{
		ID: "soul-rend", Name: "Soul Rend", Rarity: game.RarityRare,
		Level: 1, MaxLevel: 5, BaseCooldown: 4,
		Effects: []game.SkillEffect{{Kind: game.EffectTrueDamage, Base: 20}},
	}
	cs := sheetWith(s)
	_, result, err := Execute(cs, 0, 999, 999)
	if err != nil {
		t.Fatalf("Execute: %v", err)
	}
	// raw = 20*1.5 * 1.1 = 33, no mitigation.
	if got := result.TotalDamage(); got != 33 {
		t.Errorf("damage = %d, want 33", got)
	}
}

func TestExecute_CooldownBlocks(t *testing.T) {
	t.Parallel()
	strike, _ := testCatalog().SkillByID("power_strike")
	strike.CurrentCooldown = 1
	cs := sheetWith(strike)

	_, _, err := Execute(cs, 0, 0, 0)
	if !errors.Is(err, ErrSkillNotReady) {
		t.Errorf("got %v, want ErrSkillNotReady", err)
	}
}

func TestExecute_ResourceGates(t *testing.T) {
	t.Parallel()
	fireball, _ := testCatalog().SkillByID("fireball")
	cs := sheetWith(fireball)
	cs.Mana.Current = 5

	_, _, err := Execute(cs, 0, 0, 0)
	if !errors.Is(err, ErrInsufficientMana) {
		t.Errorf("got %v, want ErrInsufficientMana", err)
	}
}

func TestExecute_HealthCostLeavesOneHP(t *testing.T) {
	t.Parallel()
	s := game.Skill{
		ID: "blood-pact", Name: "Blood Pact", Rarity: game.RarityRare,
		HealthCost: 30, Level: 1, MaxLevel: 5, BaseCooldown: 5,
		Effects: []game.SkillEffect{{Kind: game.EffectTrueDamage, Base: 50}},
	}
	cs := sheetWith(s)

	// Exactly equal HP is rejected: the cost must leave at least 1.
	cs.HP.Current = 30
	if _, _, err := Execute(cs, 0, 0, 0); !errors.Is(err, ErrInsufficientHP) {
		t.Errorf("got %v, want ErrInsufficientHP at HP == cost", err)
	}

	cs.HP.Current = 31
	after, _, err := Execute(cs, 0, 0, 0)
	if err != nil {
		t.Fatalf("Execute: %v", err)
	}
	if after.HP.Current != 1 {
		t.Errorf("HP = %d, want 1", after.HP.Current)
	}
}

func TestExecute_HealAppliesToSelf(t *testing.T) {
	t.Parallel()
	s := game.Skill{
		ID: "mend", Name: "Mend", Rarity: game.RarityCommon,
		ManaCost: 10, Level: 1, MaxLevel: 5, BaseCooldown: 1,
		Effects: []game.SkillEffect{{
			Kind: game.EffectHeal, Base: 20, ScalingStat: game.StatWisdom, Ratio: 1.0,
		}},
	}
	cs := sheetWith(s)
	cs = game.TakeDamage(cs, 60) // 40 HP

	after, result, err := Execute(cs, 0, 0, 0)
	if err != nil {
		t.Fatalf("Execute: %v", err)
	}
	// heal = (20 + 6) * 1.1 = 28.6 -> 28
	if result.Outcomes[0].Amount != 28 {
		t.Errorf("heal = %d, want 28", result.Outcomes[0].Amount)
	}
	if after.HP.Current != 68 {
		t.Errorf("HP = %d, want 68", after.HP.Current)
	}
}

func TestExecute_SkillLevelUp(t *testing.T) {
	t.Parallel()
	strike, _ := testCatalog().SkillByID("power_strike")
	strike.XP = 45 // needs 50*1 = 50 at level 1 with COMMON multiplier
	cs := sheetWith(strike)

	after, result, err := Execute(cs, 0, 0, 0)
	if err != nil {
		t.Fatalf("Execute: %v", err)
	}
	if !result.LeveledUp || result.NewLevel != 2 {
		t.Errorf("leveledUp=%v newLevel=%d, want level 2", result.LeveledUp, result.NewLevel)
	}
	if after.Skills[0].XP != 5 {
		t.Errorf("leftover xp = %d, want 5", after.Skills[0].XP)
	}
}

func TestExecute_NoXPAtMaxLevel(t *testing.T) {
	t.Parallel()
	strike, _ := testCatalog().SkillByID("power_strike")
	strike.Level = strike.MaxLevel
	cs := sheetWith(strike)

	after, _, err := Execute(cs, 0, 0, 0)
	if err != nil {
		t.Fatalf("Execute: %v", err)
	}
	if after.Skills[0].XP != 0 || after.Skills[0].Level != strike.MaxLevel {
		t.Errorf("max-level skill changed: level %d xp %d", after.Skills[0].Level, after.Skills[0].XP)
	}
}

func TestTickCooldowns_Exactness(t *testing.T) {
	t.Parallel()
	strike, _ := testCatalog().SkillByID("power_strike")
	cs := sheetWith(strike)

	cs, _, err := Execute(cs, 0, 0, 0)
	if err != nil {
		t.Fatalf("Execute: %v", err)
	}
	base := cs.Skills[0].CurrentCooldown

	for i := 0; i < base; i++ {
		if cs.Skills[0].CurrentCooldown <= 0 {
			t.Fatalf("cooldown hit 0 after only %d ticks of %d", i, base)
		}
		cs = TickCooldowns(cs)
	}
	if got := cs.Skills[0].CurrentCooldown; got != 0 {
		t.Errorf("cooldown = %d after %d ticks, want 0", got, base)
	}

	// Extra ticks stay at 0.
	cs = TickCooldowns(cs)
	if got := cs.Skills[0].CurrentCooldown; got != 0 {
		t.Errorf("cooldown = %d after extra tick, want 0", got)
	}
}
