// Package content ships the static gameplay tables: the skill catalog,
// insight thresholds, fusion recipes, starting classes, template locations
// and loot tables. Everything is embedded YAML parsed once at startup.
package content

import (
	"bytes"
	"embed"
	"fmt"
	"io/fs"
	"sort"

	"gopkg.in/yaml.v3"

	"github.com/questweaver/questweaver/internal/game"
	"github.com/questweaver/questweaver/internal/skill"
)

//go:embed data/*.yaml
var dataFS embed.FS

// StartLocationID is where every new game begins regardless of system type.
const StartLocationID = "tutorial-grove"

// Library is the parsed, immutable content set. Accessors return copies so
// callers can't corrupt the catalog.
type Library struct {
	skills     map[string]game.Skill
	thresholds []skill.Threshold
	recipes    []skill.Recipe
	classes    map[string]Class
	items      map[string]game.Item
	loot       map[string][]game.Drop

	common    []game.Location
	perSystem map[game.SystemType][]game.Location
}

// Class is a starting archetype: base stats, resources, and the skills and
// items a fresh character begins with.
type Class struct {
	ID          string
	Name        string
	Description string
	BaseStats   game.Stats
	MaxHP       int
	MaxMana     int
	MaxEnergy   int
	Skills      []string
	Items       []string
	Gold        int
}

// Load parses the embedded tables and cross-checks every id reference.
func Load() (*Library, error) {
	raw, err := readAll()
	if err != nil {
		return nil, err
	}

	lib := &Library{
		skills:    map[string]game.Skill{},
		classes:   map[string]Class{},
		items:     map[string]game.Item{},
		loot:      map[string][]game.Drop{},
		perSystem: map[game.SystemType][]game.Location{},
	}

	var sf skillsFile
	if err := decodeStrict(raw["skills.yaml"], &sf); err != nil {
		return nil, fmt.Errorf("content: skills.yaml: %w", err)
	}
	for _, d := range sf.Skills {
		if _, dup := lib.skills[d.ID]; dup {
			return nil, fmt.Errorf("content: duplicate skill id %q", d.ID)
		}
		lib.skills[d.ID] = d.toSkill()
	}

	var inf insightFile
	if err := decodeStrict(raw["insight.yaml"], &inf); err != nil {
		return nil, fmt.Errorf("content: insight.yaml: %w", err)
	}
	lib.thresholds = inf.Thresholds

	var rf recipesFile
	if err := decodeStrict(raw["recipes.yaml"], &rf); err != nil {
		return nil, fmt.Errorf("content: recipes.yaml: %w", err)
	}
	lib.recipes = rf.Recipes

	var itf itemsFile
	if err := decodeStrict(raw["items.yaml"], &itf); err != nil {
		return nil, fmt.Errorf("content: items.yaml: %w", err)
	}
	for _, d := range itf.Items {
		if _, dup := lib.items[d.ID]; dup {
			return nil, fmt.Errorf("content: duplicate item id %q", d.ID)
		}
		lib.items[d.ID] = d.toItem()
	}

	var lf lootFile
	if err := decodeStrict(raw["loot.yaml"], &lf); err != nil {
		return nil, fmt.Errorf("content: loot.yaml: %w", err)
	}
	for _, tbl := range lf.Tables {
		drops := make([]game.Drop, 0, len(tbl.Drops))
		for _, d := range tbl.Drops {
			it, ok := lib.items[d.ItemID]
			if !ok {
				return nil, fmt.Errorf("content: loot table %q references unknown item %q", tbl.Name, d.ItemID)
			}
			drops = append(drops, game.Drop{Item: it, Chance: d.Chance})
		}
		lib.loot[tbl.Name] = drops
	}

	var cf classesFile
	if err := decodeStrict(raw["classes.yaml"], &cf); err != nil {
		return nil, fmt.Errorf("content: classes.yaml: %w", err)
	}
	for _, d := range cf.Classes {
		lib.classes[d.ID] = d.toClass()
	}

	var locf locationsFile
	if err := decodeStrict(raw["locations.yaml"], &locf); err != nil {
		return nil, fmt.Errorf("content: locations.yaml: %w", err)
	}
	for _, d := range locf.Common {
		lib.common = append(lib.common, d.toLocation())
	}
	for system, defs := range locf.Systems {
		st := game.SystemType(system)
		if !st.IsValid() {
			return nil, fmt.Errorf("content: locations.yaml: unknown system type %q", system)
		}
		for _, d := range defs {
			lib.perSystem[st] = append(lib.perSystem[st], d.toLocation())
		}
	}

	if err := lib.validate(); err != nil {
		return nil, err
	}
	return lib, nil
}

func readAll() (map[string][]byte, error) {
	out := map[string][]byte{}
	entries, err := fs.ReadDir(dataFS, "data")
	if err != nil {
		return nil, fmt.Errorf("content: read embedded data: %w", err)
	}
	for _, e := range entries {
		b, err := dataFS.ReadFile("data/" + e.Name())
		if err != nil {
			return nil, fmt.Errorf("content: read %s: %w", e.Name(), err)
		}
		out[e.Name()] = b
	}
	return out, nil
}

func decodeStrict(b []byte, out any) error {
	if len(b) == 0 {
		return fmt.Errorf("file missing or empty")
	}
	dec := yaml.NewDecoder(bytes.NewReader(b))
	dec.KnownFields(true)
	return dec.Decode(out)
}

// validate cross-checks references between tables so a broken catalog
// fails at startup, not mid-session.
func (l *Library) validate() error {
	for _, t := range l.thresholds {
		if _, ok := l.skills[t.SkillID]; !ok {
			return fmt.Errorf("content: insight threshold %q references unknown skill %q", t.ActionType, t.SkillID)
		}
	}
	for _, r := range l.recipes {
		if _, ok := l.skills[r.ResultSkillID]; !ok {
			return fmt.Errorf("content: recipe %q produces unknown skill %q", r.ID, r.ResultSkillID)
		}
		for _, in := range r.Inputs {
			if _, ok := l.skills[in.SkillID]; !ok {
				return fmt.Errorf("content: recipe %q requires unknown skill %q", r.ID, in.SkillID)
			}
		}
	}
	for id, c := range l.classes {
		for _, sid := range c.Skills {
			if _, ok := l.skills[sid]; !ok {
				return fmt.Errorf("content: class %q grants unknown skill %q", id, sid)
			}
		}
		for _, iid := range c.Items {
			if _, ok := l.items[iid]; !ok {
				return fmt.Errorf("content: class %q grants unknown item %q", id, iid)
			}
		}
	}
	found := false
	for _, loc := range l.common {
		if loc.ID == StartLocationID {
			found = true
		}
	}
	if !found {
		return fmt.Errorf("content: start location %q missing from common locations", StartLocationID)
	}
	return nil
}

// SkillByID implements skill.Catalog.
func (l *Library) SkillByID(id string) (game.Skill, bool) {
	s, ok := l.skills[id]
	return s, ok
}

var _ skill.Catalog = (*Library)(nil)

// SkillIDs returns every catalog skill id, sorted.
func (l *Library) SkillIDs() []string {
	ids := make([]string, 0, len(l.skills))
	for id := range l.skills {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}

// Thresholds returns the insight threshold table in file order. Order
// matters: when one action crosses several thresholds, the first row wins.
func (l *Library) Thresholds() []skill.Threshold {
	return append([]skill.Threshold{}, l.thresholds...)
}

// Recipes returns the fusion recipe table.
func (l *Library) Recipes() []skill.Recipe {
	return append([]skill.Recipe{}, l.recipes...)
}

// Class returns the starting class definition for the id.
func (l *Library) Class(id string) (Class, bool) {
	c, ok := l.classes[id]
	return c, ok
}

// ClassIDs returns the available class ids, sorted.
func (l *Library) ClassIDs() []string {
	ids := make([]string, 0, len(l.classes))
	for id := range l.classes {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}

// Item returns the item template for the id, Quantity 1.
func (l *Library) Item(id string) (game.Item, bool) {
	it, ok := l.items[id]
	return it, ok
}

// LootTable returns the named loot table, or nil.
func (l *Library) LootTable(name string) []game.Drop {
	return append([]game.Drop{}, l.loot[name]...)
}

// StartingLocations returns the template map for a system type: the common
// locations (always including the start location) plus the system's themed
// additions.
func (l *Library) StartingLocations(st game.SystemType) []game.Location {
	out := append([]game.Location{}, l.common...)
	out = append(out, l.perSystem[st]...)
	return out
}

// NewCharacter builds a fresh sheet for the class: base stats and
// resources from the class table, starting skills stamped with CLASS
// provenance, and starting items in inventory.
func (l *Library) NewCharacter(classID string) (game.CharacterSheet, error) {
	c, ok := l.classes[classID]
	if !ok {
		return game.CharacterSheet{}, fmt.Errorf("content: unknown class %q", classID)
	}
	cs := game.NewCharacterSheet(c.BaseStats, c.MaxHP, c.MaxMana, c.MaxEnergy)
	cs.Class = c.ID
	cs.Gold = c.Gold
	for _, sid := range c.Skills {
		s := l.skills[sid]
		s.Source = game.AcquisitionSource{Kind: game.SourceClass}
		cs.Skills = append(cs.Skills, s)
	}
	for _, iid := range c.Items {
		it := l.items[iid]
		if it.Quantity == 0 {
			it.Quantity = 1
		}
		var err error
		cs, err = game.AddItem(cs, it)
		if err != nil {
			return game.CharacterSheet{}, fmt.Errorf("content: class %q starting items: %w", classID, err)
		}
	}
	return cs, nil
}
