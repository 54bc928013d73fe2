package skill

import (
	"errors"
	"testing"

	"github.com/questweaver/questweaver/internal/game"
)

func flameBladeRecipe() []Recipe {
	return []Recipe{{
		ID:            "fusion_flame_blade",
		ResultSkillID: "flame_blade",
		Inputs: []RecipeInput{
			{SkillID: "fireball", MinLevel: 5},
			{SkillID: "power_strike", MinLevel: 5},
		},
	}}
}

func fusionReadySheet(level int) game.CharacterSheet {
	catalog := testCatalog()
	fb, _ := catalog.SkillByID("fireball")
	ps, _ := catalog.SkillByID("power_strike")
	fb.Level = level
	ps.Level = level
	return sheetWith(fb, ps)
}

func TestFuse_HappyPath(t *testing.T) {
	t.Parallel()
	cs := fusionReadySheet(5)

	cs, result, hints, err := Fuse(cs, []string{"fireball", "power_strike"}, flameBladeRecipe(), testCatalog())
	if err != nil {
		t.Fatalf("Fuse: %v (hints %v)", err, hints)
	}
	if result.ResultSkillID != "flame_blade" || result.RecipeID != "fusion_flame_blade" {
		t.Errorf("result = %+v", result)
	}
	if !result.WasNewDiscovery {
		t.Error("first fusion should be a new discovery")
	}
	if cs.HasSkill("fireball") || cs.HasSkill("power_strike") {
		t.Error("inputs not consumed")
	}
	idx := cs.FindSkill("flame_blade")
	if idx < 0 {
		t.Fatal("flame_blade missing")
	}
	src := cs.Skills[idx].Source
	if src.Kind != game.SourceFusion || src.RecipeID != "fusion_flame_blade" || len(src.Inputs) != 2 {
		t.Errorf("source = %+v", src)
	}
	if !cs.KnownRecipes["fusion_flame_blade"] {
		t.Error("recipe not marked discovered")
	}
}

func TestFuse_SecondDiscoveryNotNew(t *testing.T) {
	t.Parallel()
	cs := fusionReadySheet(5)
	cs.KnownRecipes = map[string]bool{"fusion_flame_blade": true}

	_, result, _, err := Fuse(cs, []string{"fireball", "power_strike"}, flameBladeRecipe(), testCatalog())
	if err != nil {
		t.Fatalf("Fuse: %v", err)
	}
	if result.WasNewDiscovery {
		t.Error("known recipe reported as new discovery")
	}
}

func TestFuse_LevelTooLow(t *testing.T) {
	t.Parallel()
	cs := fusionReadySheet(3)

	_, _, hints, err := Fuse(cs, []string{"fireball", "power_strike"}, flameBladeRecipe(), testCatalog())
	if !errors.Is(err, ErrNoRecipe) {
		t.Fatalf("got %v, want ErrNoRecipe", err)
	}
	if len(hints) != 2 {
		t.Errorf("hints = %v, want one per underleveled input", hints)
	}
}

func TestFuse_NearMissHint(t *testing.T) {
	t.Parallel()
	catalog := testCatalog()
	fb, _ := catalog.SkillByID("fireball")
	fb.Level = 5
	cs := sheetWith(fb)

	// Owning only fireball and trying to fuse it with itself-adjacent junk
	// is rejected up front; a single matching input against a two-input
	// recipe yields a resonance hint.
	s := game.Skill{ID: "stone-skin", Name: "Stone Skin", Rarity: game.RarityCommon,
		Level: 5, MaxLevel: 5, FusionTags: []string{"earth"}}
	cs.Skills = append(cs.Skills, s)

	_, _, hints, err := Fuse(cs, []string{"fireball", "stone-skin"}, flameBladeRecipe(), catalog)
	if !errors.Is(err, ErrNoRecipe) {
		t.Fatalf("got %v, want ErrNoRecipe", err)
	}
	if len(hints) != 0 {
		// stone-skin is not part of the recipe, so matched < len(inputs).
		t.Errorf("hints = %v, want none for a wrong-input attempt", hints)
	}
}

func TestFuse_UnownedInput(t *testing.T) {
	t.Parallel()
	cs := fusionReadySheet(5)
	if _, _, _, err := Fuse(cs, []string{"fireball", "ice-lance"}, flameBladeRecipe(), testCatalog()); err == nil {
		t.Error("expected error for unowned input")
	}
}
