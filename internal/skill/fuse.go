package skill

import (
	"errors"
	"fmt"
	"sort"
	"strings"

	"github.com/questweaver/questweaver/internal/game"
)

var ErrNoRecipe = errors.New("no fusion recipe matches")

// RecipeInput names one required input skill and its minimum level.
type RecipeInput struct {
	SkillID  string `yaml:"skill_id" json:"skill_id"`
	MinLevel int    `yaml:"min_level" json:"min_level"`
}

// Recipe is one row of the static fusion table, keyed by the exact set of
// input skill ids.
type Recipe struct {
	ID            string        `yaml:"id" json:"id"`
	ResultSkillID string        `yaml:"result_skill_id" json:"result_skill_id"`
	Inputs        []RecipeInput `yaml:"inputs" json:"inputs"`
}

// matches reports whether the given id set equals the recipe's input set.
func (r Recipe) matches(ids []string) bool {
	if len(ids) != len(r.Inputs) {
		return false
	}
	want := map[string]bool{}
	for _, in := range r.Inputs {
		want[in.SkillID] = true
	}
	for _, id := range ids {
		if !want[id] {
			return false
		}
	}
	return true
}

// FusionResult reports a successful fusion.
type FusionResult struct {
	RecipeID        string
	ResultSkillID   string
	ResultName      string
	ConsumedSkills  []string
	WasNewDiscovery bool
}

// Fuse combines the named owned skills per the recipe table. On a full
// match with sufficient levels, inputs are removed from the sheet, the
// result skill is added with FUSION provenance, and the recipe is marked
// discovered. On a near miss, the returned error wraps ErrNoRecipe and the
// hints describe what was close.
func Fuse(cs game.CharacterSheet, inputIDs []string, recipes []Recipe, catalog Catalog) (game.CharacterSheet, FusionResult, []string, error) {
	if len(inputIDs) < 2 {
		return cs, FusionResult{}, nil, fmt.Errorf("skill: fusion needs at least two inputs")
	}
	for _, id := range inputIDs {
		if !cs.HasSkill(id) {
			return cs, FusionResult{}, nil, fmt.Errorf("skill: %q not owned", id)
		}
	}

	for _, r := range recipes {
		if !r.matches(inputIDs) {
			continue
		}
		// Exact set match; verify levels.
		var short []string
		for _, in := range r.Inputs {
			owned := cs.Skills[cs.FindSkill(in.SkillID)]
			if owned.Level < in.MinLevel {
				short = append(short, fmt.Sprintf("%s must reach level %d (now %d)",
					owned.Name, in.MinLevel, owned.Level))
			}
		}
		if len(short) > 0 {
			return cs, FusionResult{}, short, fmt.Errorf("%w: input levels too low", ErrNoRecipe)
		}

		result, ok := catalog.SkillByID(r.ResultSkillID)
		if !ok {
			return cs, FusionResult{}, nil, fmt.Errorf("skill: fusion result %q not in catalog", r.ResultSkillID)
		}

		consumed := append([]string(nil), inputIDs...)
		sort.Strings(consumed)
		result.Source = game.AcquisitionSource{
			Kind:     game.SourceFusion,
			Inputs:   consumed,
			RecipeID: r.ID,
		}

		var kept []game.Skill
		for _, s := range cs.Skills {
			if !contains(inputIDs, s.ID) {
				kept = append(kept, s)
			}
		}
		cs.Skills = append(kept, result)

		wasNew := !cs.KnownRecipes[r.ID]
		known := make(map[string]bool, len(cs.KnownRecipes)+1)
		for k, v := range cs.KnownRecipes {
			known[k] = v
		}
		known[r.ID] = true
		cs.KnownRecipes = known

		return cs, FusionResult{
			RecipeID:        r.ID,
			ResultSkillID:   result.ID,
			ResultName:      result.Name,
			ConsumedSkills:  consumed,
			WasNewDiscovery: wasNew,
		}, nil, nil
	}

	return cs, FusionResult{}, nearMissHints(cs, inputIDs, recipes), ErrNoRecipe
}

// nearMissHints finds recipes one input away from the attempted set and
// renders tag-compatibility hints without revealing the missing skill.
func nearMissHints(cs game.CharacterSheet, inputIDs []string, recipes []Recipe) []string {
	var hints []string
	for _, r := range recipes {
		missing, matched := diffRecipe(r, inputIDs)
		if len(missing) != 1 || matched < len(inputIDs) {
			continue
		}
		// Describe the near miss through the attempted skills' fusion tags.
		var tags []string
		for _, id := range inputIDs {
			if idx := cs.FindSkill(id); idx >= 0 {
				tags = append(tags, cs.Skills[idx].FusionTags...)
			}
		}
		hint := "These skills resonate, but the combination feels incomplete."
		if len(tags) > 0 {
			hint = fmt.Sprintf("These skills resonate (%s), but something is missing.",
				strings.Join(dedupe(tags), ", "))
		}
		hints = append(hints, hint)
	}
	return dedupe(hints)
}

// diffRecipe returns the recipe inputs absent from ids and the count of ids
// that do appear in the recipe.
func diffRecipe(r Recipe, ids []string) (missing []string, matched int) {
	have := map[string]bool{}
	for _, id := range ids {
		have[id] = true
	}
	for _, in := range r.Inputs {
		if have[in.SkillID] {
			matched++
		} else {
			missing = append(missing, in.SkillID)
		}
	}
	return missing, matched
}

func contains(list []string, s string) bool {
	for _, v := range list {
		if v == s {
			return true
		}
	}
	return false
}

func dedupe(list []string) []string {
	seen := map[string]bool{}
	var out []string
	for _, v := range list {
		if !seen[v] {
			seen[v] = true
			out = append(out, v)
		}
	}
	return out
}
