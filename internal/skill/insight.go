package skill

import (
	"fmt"

	"github.com/questweaver/questweaver/internal/game"
)

// Threshold is one row of the static insight table: repeating an action type
// partialCount times reveals the skill as a hint, fullCount times grants it.
type Threshold struct {
	ActionType   string `yaml:"action_type" json:"action_type"`
	SkillID      string `yaml:"skill_id" json:"skill_id"`
	PartialCount int    `yaml:"partial_count" json:"partial_count"`
	FullCount    int    `yaml:"full_count" json:"full_count"`

	// BlindName is the obscured name shown before the full unlock
	// ("??? (something about sword arcs)").
	BlindName string `yaml:"blind_name" json:"blind_name"`
}

// Catalog resolves skill ids to their full definitions.
type Catalog interface {
	SkillByID(id string) (game.Skill, bool)
}

// UpdateKind discriminates insight tracking outcomes.
type UpdateKind string

const (
	// UpdateProgress fires when a count crosses a 25% boundary toward the
	// full unlock.
	UpdateProgress UpdateKind = "progress"

	// UpdatePartial fires when the partial threshold is reached and the
	// blind-named skill is revealed.
	UpdatePartial UpdateKind = "partial"

	// UpdateGranted fires when the skill is granted.
	UpdateGranted UpdateKind = "granted"
)

// Update reports one observable insight change from TrackActions.
type Update struct {
	Kind       UpdateKind
	ActionType string
	SkillID    string
	Count      int
	Percent    int
	Message    string
}

// TrackActions increments the insight counts for the classified action
// tokens and resolves threshold crossings against the table. Thresholds are
// evaluated in table order; when several action types map to one skill, the
// first crossing in emission order wins and later ones are no-ops (a skill
// is granted at most once across all pathways). The input sheet is not
// modified.
func TrackActions(cs game.CharacterSheet, actions []string, table []Threshold, catalog Catalog) (game.CharacterSheet, []Update, error) {
	if len(actions) == 0 {
		return cs, nil, nil
	}

	tracker := cloneTracker(cs.Insight)
	var updates []Update

	for _, action := range actions {
		tracker.Counts[action]++
		count := tracker.Counts[action]

		for _, th := range table {
			if th.ActionType != action {
				continue
			}

			granted := tracker.Granted[th.SkillID] || cs.HasSkill(th.SkillID)
			switch {
			case count >= th.FullCount && !granted:
				def, ok := catalog.SkillByID(th.SkillID)
				if !ok {
					return cs, nil, fmt.Errorf("skill: insight table references unknown skill %q", th.SkillID)
				}
				def.Source = game.AcquisitionSource{
					Kind:        game.SourceInsight,
					ActionType:  action,
					Repetitions: count,
				}
				cs.Skills = append(cs.CloneSkills(), def)
				tracker.Granted[th.SkillID] = true
				tracker.Partial = removePartial(tracker.Partial, th.SkillID)
				updates = append(updates, Update{
					Kind:       UpdateGranted,
					ActionType: action,
					SkillID:    th.SkillID,
					Count:      count,
					Percent:    100,
					Message:    fmt.Sprintf("Skill acquired: %s (learned from %d repetitions of %s)", def.Name, count, action),
				})

			case count == th.PartialCount && !granted && !hasPartial(tracker.Partial, th.SkillID):
				tracker.Partial = append(tracker.Partial, game.PartialSkill{
					SkillID:    th.SkillID,
					ActionType: action,
					BlindName:  th.BlindName,
				})
				updates = append(updates, Update{
					Kind:       UpdatePartial,
					ActionType: action,
					SkillID:    th.SkillID,
					Count:      count,
					Percent:    count * 100 / th.FullCount,
					Message:    fmt.Sprintf("Something stirs: %s", th.BlindName),
				})

			case !granted:
				if pct, crossed := quarterCrossed(count, th.FullCount); crossed {
					updates = append(updates, Update{
						Kind:       UpdateProgress,
						ActionType: action,
						SkillID:    th.SkillID,
						Count:      count,
						Percent:    pct,
						Message:    fmt.Sprintf("Insight grows: %s (%d%%)", action, pct),
					})
				}
			}
		}
	}

	cs.Insight = tracker
	return cs, updates, nil
}

// quarterCrossed reports whether count just crossed a 25% boundary of full,
// excluding 0% and 100%.
func quarterCrossed(count, full int) (int, bool) {
	if full <= 0 || count >= full {
		return 0, false
	}
	pct := count * 100 / full
	prev := (count - 1) * 100 / full
	if pct/25 > prev/25 && pct >= 25 {
		return pct / 25 * 25, true
	}
	return 0, false
}

func cloneTracker(t game.InsightTracker) game.InsightTracker {
	out := game.InsightTracker{
		Counts:  make(map[string]int, len(t.Counts)+1),
		Granted: make(map[string]bool, len(t.Granted)+1),
		Partial: make([]game.PartialSkill, len(t.Partial)),
	}
	for k, v := range t.Counts {
		out.Counts[k] = v
	}
	for k, v := range t.Granted {
		out.Granted[k] = v
	}
	copy(out.Partial, t.Partial)
	return out
}

func hasPartial(partials []game.PartialSkill, skillID string) bool {
	for _, p := range partials {
		if p.SkillID == skillID {
			return true
		}
	}
	return false
}

func removePartial(partials []game.PartialSkill, skillID string) []game.PartialSkill {
	out := partials[:0:0]
	for _, p := range partials {
		if p.SkillID != skillID {
			out = append(out, p)
		}
	}
	return out
}
