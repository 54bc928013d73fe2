// Package skill implements the skill subsystem: action-insight learning,
// skill execution, evolution, fusion, and cooldown management. Skill data
// types live in internal/game; this package holds the transitions.
package skill

import (
	"strings"

	"github.com/antzucaro/matchr"
)

// ActionContext carries the situational facts the classifier combines with
// the player's words.
type ActionContext struct {
	// WeaponType is the equipped weapon's type tag ("sword", "bow", …), or
	// empty when unarmed.
	WeaponType string

	// LocationTags are the current location's tags ("forest", "water", …).
	LocationTags []string

	// InCombat marks that a fight is in progress.
	InCombat bool
}

// verbGroups maps a canonical action verb to its accepted synonyms.
var verbGroups = map[string][]string{
	"slash":    {"slash", "cut", "slice", "swing", "hack"},
	"stab":     {"stab", "thrust", "pierce", "lunge"},
	"shoot":    {"shoot", "fire", "loose", "nock"},
	"bash":     {"bash", "smash", "pound", "crush"},
	"punch":    {"punch", "jab", "box"},
	"dodge":    {"dodge", "evade", "sidestep"},
	"block":    {"block", "parry", "deflect"},
	"sneak":    {"sneak", "hide", "skulk", "creep"},
	"swim":     {"swim", "dive", "wade"},
	"climb":    {"climb", "scale", "clamber"},
	"meditate": {"meditate", "focus", "breathe"},
	"cast":     {"cast", "chant", "channel", "invoke"},
	"sprint":   {"sprint", "dash", "bolt"},
}

// weaponComposable lists canonical verbs that combine with an equipped
// weapon into a weapon-specific action token ("slash" + sword = sword_slash).
var weaponComposable = map[string]bool{
	"slash": true,
	"stab":  true,
	"shoot": true,
	"bash":  true,
}

// fuzzyVerbThreshold is the Jaro-Winkler score above which a misspelled word
// still counts as a verb ("slassh" -> "slash").
const fuzzyVerbThreshold = 0.90

// Classify maps the player's free-text input to zero or more action-type
// tokens, in first-occurrence order with duplicates removed. Matching is
// synonym-based first, then fuzzy (Jaro-Winkler + Double Metaphone) so that
// typos still train insight.
func Classify(input string, ctx ActionContext) []string {
	var (
		tokens []string
		seen   = map[string]bool{}
	)

	for _, word := range strings.Fields(strings.ToLower(input)) {
		word = strings.Trim(word, ".,!?;:'\"")
		if len(word) < 3 {
			continue
		}
		canonical, ok := matchVerb(word)
		if !ok {
			continue
		}
		action := composeAction(canonical, ctx)
		if action != "" && !seen[action] {
			seen[action] = true
			tokens = append(tokens, action)
		}
	}
	return tokens
}

// matchVerb resolves a word to its canonical verb, exactly or fuzzily.
func matchVerb(word string) (string, bool) {
	for canonical, synonyms := range verbGroups {
		for _, syn := range synonyms {
			if word == syn {
				return canonical, true
			}
		}
	}

	// Fuzzy pass: best Jaro-Winkler over all synonyms, confirmed by a shared
	// Double Metaphone code to avoid matching unrelated short words.
	bestScore := 0.0
	bestVerb := ""
	wordPrimary, wordSecondary := matchr.DoubleMetaphone(word)
	for canonical, synonyms := range verbGroups {
		for _, syn := range synonyms {
			score := matchr.JaroWinkler(word, syn, false)
			if score < fuzzyVerbThreshold || score <= bestScore {
				continue
			}
			p, s := matchr.DoubleMetaphone(syn)
			if !phoneticOverlap(wordPrimary, wordSecondary, p, s) {
				continue
			}
			bestScore = score
			bestVerb = canonical
		}
	}
	return bestVerb, bestVerb != ""
}

func phoneticOverlap(ap, as, bp, bs string) bool {
	for _, a := range []string{ap, as} {
		if a == "" {
			continue
		}
		if a == bp || (bs != "" && a == bs) {
			return true
		}
	}
	return false
}

// composeAction specialises a canonical verb with the context. Weapon verbs
// bind to the equipped weapon; movement verbs bind to terrain.
func composeAction(canonical string, ctx ActionContext) string {
	if weaponComposable[canonical] {
		if ctx.WeaponType != "" {
			return ctx.WeaponType + "_" + canonical
		}
		// Bare-handed strikes still train unarmed actions.
		return "unarmed_" + canonical
	}

	switch canonical {
	case "swim":
		if !hasTag(ctx.LocationTags, "water") {
			return ""
		}
	case "climb":
		if !hasTag(ctx.LocationTags, "mountain") && !hasTag(ctx.LocationTags, "cliff") {
			return ""
		}
	case "dodge", "block":
		if ctx.InCombat {
			return "combat_" + canonical
		}
	}
	return canonical
}

func hasTag(tags []string, want string) bool {
	for _, t := range tags {
		if t == want {
			return true
		}
	}
	return false
}
