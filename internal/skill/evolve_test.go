package skill

import (
	"errors"
	"testing"

	"github.com/questweaver/questweaver/internal/game"
)

func evolvableStrike() game.Skill {
	s, _ := testCatalog().SkillByID("power_strike")
	s.Level = s.MaxLevel
	s.Evolutions = []game.EvolutionPath{
		{
			ResultSkillID:  "flame_blade",
			MinStats:       game.Stats{Strength: 12},
			MinPlayerLevel: 3,
		},
	}
	return s
}

func TestEvolve_HappyPath(t *testing.T) {
	t.Parallel()
	cs := sheetWith(evolvableStrike())
	cs.Level = 5
	cs.Stats.Strength = 15

	cs, result, err := Evolve(cs, "power_strike", "flame_blade", testCatalog(), nil)
	if err != nil {
		t.Fatalf("Evolve: %v", err)
	}
	if result.NewSkillID != "flame_blade" || result.OldSkillID != "power_strike" {
		t.Errorf("result = %+v", result)
	}
	if cs.HasSkill("power_strike") {
		t.Error("old skill still owned")
	}
	idx := cs.FindSkill("flame_blade")
	if idx < 0 {
		t.Fatal("evolved skill missing")
	}
	src := cs.Skills[idx].Source
	if src.Kind != game.SourceEvolution || src.FromSkillID != "power_strike" {
		t.Errorf("source = %+v", src)
	}
	if len(cs.EvolutionHistory) != 1 || cs.EvolutionHistory[0] != "power_strike" {
		t.Errorf("history = %v", cs.EvolutionHistory)
	}
}

func TestEvolve_RequiresMaxLevel(t *testing.T) {
	t.Parallel()
	s := evolvableStrike()
	s.Level = 2
	cs := sheetWith(s)
	cs.Level = 10
	cs.Stats.Strength = 20

	_, _, err := Evolve(cs, "power_strike", "flame_blade", testCatalog(), nil)
	if !errors.Is(err, ErrNotMaxLevel) {
		t.Errorf("got %v, want ErrNotMaxLevel", err)
	}
}

func TestEvolve_RequirementGates(t *testing.T) {
	t.Parallel()
	cs := sheetWith(evolvableStrike())

	// Level too low.
	cs.Level = 2
	cs.Stats.Strength = 20
	if _, _, err := Evolve(cs, "power_strike", "flame_blade", testCatalog(), nil); !errors.Is(err, ErrRequirementsNot) {
		t.Errorf("level gate: got %v", err)
	}

	// Strength too low.
	cs.Level = 5
	cs.Stats.Strength = 5
	if _, _, err := Evolve(cs, "power_strike", "flame_blade", testCatalog(), nil); !errors.Is(err, ErrRequirementsNot) {
		t.Errorf("stat gate: got %v", err)
	}
}

func TestEvolve_QuestRequirement(t *testing.T) {
	t.Parallel()
	s := evolvableStrike()
	s.Evolutions[0].RequiredQuests = []string{"trial-of-flame"}
	cs := sheetWith(s)
	cs.Level = 5
	cs.Stats.Strength = 15

	if _, _, err := Evolve(cs, "power_strike", "flame_blade", testCatalog(), nil); !errors.Is(err, ErrRequirementsNot) {
		t.Errorf("quest gate: got %v", err)
	}
	if _, _, err := Evolve(cs, "power_strike", "flame_blade", testCatalog(),
		map[string]bool{"trial-of-flame": true}); err != nil {
		t.Errorf("with quest done: %v", err)
	}
}

func TestAvailablePaths(t *testing.T) {
	t.Parallel()
	cs := sheetWith(evolvableStrike())
	cs.Level = 5
	cs.Stats.Strength = 15

	paths := AvailablePaths(cs, "power_strike", nil)
	if len(paths) != 1 {
		t.Fatalf("paths = %d, want 1", len(paths))
	}

	cs.Stats.Strength = 5
	if paths := AvailablePaths(cs, "power_strike", nil); len(paths) != 0 {
		t.Errorf("paths = %d with unmet stats, want 0", len(paths))
	}
}
