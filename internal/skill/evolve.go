package skill

import (
	"errors"
	"fmt"

	"github.com/questweaver/questweaver/internal/game"
)

var (
	ErrNotMaxLevel     = errors.New("skill has not reached max level")
	ErrNoSuchPath      = errors.New("no such evolution path")
	ErrRequirementsNot = errors.New("evolution requirements not met")
)

// EvolutionResult reports a successful evolution.
type EvolutionResult struct {
	OldSkillID string
	NewSkillID string
	NewName    string
}

// AvailablePaths returns the evolution paths of the identified skill whose
// requirements the character currently satisfies.
func AvailablePaths(cs game.CharacterSheet, skillID string, completedQuests map[string]bool) []game.EvolutionPath {
	idx := cs.FindSkill(skillID)
	if idx < 0 || !cs.Skills[idx].AtMaxLevel() {
		return nil
	}
	var paths []game.EvolutionPath
	for _, p := range cs.Skills[idx].Evolutions {
		if meetsPath(cs, p, completedQuests) == nil {
			paths = append(paths, p)
		}
	}
	return paths
}

// Evolve replaces a max-level skill with the chosen path's result. The new
// skill keeps provenance via an EVOLUTION acquisition source, and the old
// skill id joins the sheet's evolution history.
func Evolve(cs game.CharacterSheet, skillID, resultSkillID string, catalog Catalog, completedQuests map[string]bool) (game.CharacterSheet, EvolutionResult, error) {
	idx := cs.FindSkill(skillID)
	if idx < 0 {
		return cs, EvolutionResult{}, fmt.Errorf("skill: %q not owned", skillID)
	}
	old := cs.Skills[idx]
	if !old.AtMaxLevel() {
		return cs, EvolutionResult{}, fmt.Errorf("%w: %s is level %d of %d",
			ErrNotMaxLevel, old.Name, old.Level, old.MaxLevel)
	}

	var path *game.EvolutionPath
	for i := range old.Evolutions {
		if old.Evolutions[i].ResultSkillID == resultSkillID {
			path = &old.Evolutions[i]
			break
		}
	}
	if path == nil {
		return cs, EvolutionResult{}, fmt.Errorf("%w: %s does not evolve into %q",
			ErrNoSuchPath, old.Name, resultSkillID)
	}
	if err := meetsPath(cs, *path, completedQuests); err != nil {
		return cs, EvolutionResult{}, err
	}

	evolved, ok := catalog.SkillByID(resultSkillID)
	if !ok {
		return cs, EvolutionResult{}, fmt.Errorf("skill: evolution result %q not in catalog", resultSkillID)
	}
	evolved.Source = game.AcquisitionSource{
		Kind:        game.SourceEvolution,
		FromSkillID: old.ID,
	}

	skills := cs.CloneSkills()
	skills[idx] = evolved
	cs.Skills = skills

	history := make([]string, len(cs.EvolutionHistory), len(cs.EvolutionHistory)+1)
	copy(history, cs.EvolutionHistory)
	cs.EvolutionHistory = append(history, old.ID)

	return cs, EvolutionResult{OldSkillID: old.ID, NewSkillID: evolved.ID, NewName: evolved.Name}, nil
}

// meetsPath checks one path's stat minima, player level, and quest
// prerequisites against the character.
func meetsPath(cs game.CharacterSheet, p game.EvolutionPath, completedQuests map[string]bool) error {
	if cs.Level < p.MinPlayerLevel {
		return fmt.Errorf("%w: requires level %d", ErrRequirementsNot, p.MinPlayerLevel)
	}
	eff := game.EffectiveStats(cs)
	for _, check := range []struct {
		name game.StatName
		min  int
	}{
		{game.StatStrength, p.MinStats.Strength},
		{game.StatDexterity, p.MinStats.Dexterity},
		{game.StatConstitution, p.MinStats.Constitution},
		{game.StatIntelligence, p.MinStats.Intelligence},
		{game.StatWisdom, p.MinStats.Wisdom},
		{game.StatCharisma, p.MinStats.Charisma},
		{game.StatDefense, p.MinStats.Defense},
	} {
		if check.min > 0 && eff.Get(check.name) < check.min {
			return fmt.Errorf("%w: requires %s %d", ErrRequirementsNot, check.name, check.min)
		}
	}
	for _, q := range p.RequiredQuests {
		if !completedQuests[q] {
			return fmt.Errorf("%w: requires completed quest %q", ErrRequirementsNot, q)
		}
	}
	return nil
}
