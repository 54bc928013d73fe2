package game

// StatName identifies one of the seven base character statistics.
type StatName string

const (
	StatStrength     StatName = "strength"
	StatDexterity    StatName = "dexterity"
	StatConstitution StatName = "constitution"
	StatIntelligence StatName = "intelligence"
	StatWisdom       StatName = "wisdom"
	StatCharisma     StatName = "charisma"
	StatDefense      StatName = "defense"
)

// Stats holds the seven base statistics. All values are >= 0.
type Stats struct {
	Strength     int `json:"strength"`
	Dexterity    int `json:"dexterity"`
	Constitution int `json:"constitution"`
	Intelligence int `json:"intelligence"`
	Wisdom       int `json:"wisdom"`
	Charisma     int `json:"charisma"`
	Defense      int `json:"defense"`
}

// Get returns the named stat value. Unknown names return 0.
func (s Stats) Get(name StatName) int {
	switch name {
	case StatStrength:
		return s.Strength
	case StatDexterity:
		return s.Dexterity
	case StatConstitution:
		return s.Constitution
	case StatIntelligence:
		return s.Intelligence
	case StatWisdom:
		return s.Wisdom
	case StatCharisma:
		return s.Charisma
	case StatDefense:
		return s.Defense
	default:
		return 0
	}
}

// Add returns s with the named stat increased by delta, floored at 0.
func (s Stats) Add(name StatName, delta int) Stats {
	apply := func(v int) int {
		v += delta
		if v < 0 {
			return 0
		}
		return v
	}
	switch name {
	case StatStrength:
		s.Strength = apply(s.Strength)
	case StatDexterity:
		s.Dexterity = apply(s.Dexterity)
	case StatConstitution:
		s.Constitution = apply(s.Constitution)
	case StatIntelligence:
		s.Intelligence = apply(s.Intelligence)
	case StatWisdom:
		s.Wisdom = apply(s.Wisdom)
	case StatCharisma:
		s.Charisma = apply(s.Charisma)
	case StatDefense:
		s.Defense = apply(s.Defense)
	}
	return s
}

// Plus returns the component-wise sum of s and o.
func (s Stats) Plus(o Stats) Stats {
	return Stats{
		Strength:     s.Strength + o.Strength,
		Dexterity:    s.Dexterity + o.Dexterity,
		Constitution: s.Constitution + o.Constitution,
		Intelligence: s.Intelligence + o.Intelligence,
		Wisdom:       s.Wisdom + o.Wisdom,
		Charisma:     s.Charisma + o.Charisma,
		Defense:      s.Defense + o.Defense,
	}
}

// Resource is a current/max pair with 0 <= Current <= Max.
type Resource struct {
	Current int `json:"current"`
	Max     int `json:"max"`
}

// clamp returns r with Current clipped into [0, Max].
func (r Resource) clamp() Resource {
	if r.Current < 0 {
		r.Current = 0
	}
	if r.Current > r.Max {
		r.Current = r.Max
	}
	return r
}

// ItemKind classifies inventory items.
type ItemKind string

const (
	ItemWeapon     ItemKind = "weapon"
	ItemArmor      ItemKind = "armor"
	ItemAccessory  ItemKind = "accessory"
	ItemConsumable ItemKind = "consumable"
	ItemMaterial   ItemKind = "material"
	ItemQuestItem  ItemKind = "quest_item"
)

// Item is an inventory entry. Equipment items carry stat bonuses; consumables
// carry restore amounts.
type Item struct {
	ID          string   `json:"id"`
	Name        string   `json:"name"`
	Kind        ItemKind `json:"kind"`
	Description string   `json:"description,omitempty"`
	Quantity    int      `json:"quantity"`
	Value       int      `json:"value"`

	// WeaponType tags weapons for the insight classifier ("sword", "bow", …).
	WeaponType string `json:"weapon_type,omitempty"`

	// Bonuses apply while the item is equipped.
	Bonuses Stats `json:"bonuses,omitempty"`

	// RestoreHP/Mana/Energy apply when a consumable is used.
	RestoreHP     int `json:"restore_hp,omitempty"`
	RestoreMana   int `json:"restore_mana,omitempty"`
	RestoreEnergy int `json:"restore_energy,omitempty"`
}

// Equipment holds the three equip slots. Nil means the slot is empty.
type Equipment struct {
	Weapon    *Item `json:"weapon,omitempty"`
	Armor     *Item `json:"armor,omitempty"`
	Accessory *Item `json:"accessory,omitempty"`
}

// Bonuses returns the summed stat bonuses of all equipped items.
func (e Equipment) Bonuses() Stats {
	var total Stats
	for _, it := range []*Item{e.Weapon, e.Armor, e.Accessory} {
		if it != nil {
			total = total.Plus(it.Bonuses)
		}
	}
	return total
}

// StatusEffect is a temporary modifier on the sheet. RemainingTurns >= 1
// while the effect is live; expired effects are removed on tick.
type StatusEffect struct {
	ID             string `json:"id"`
	Name           string `json:"name"`
	Modifiers      Stats  `json:"modifiers"`
	RemainingTurns int    `json:"remaining_turns"`

	// DamagePerTurn > 0 is a DoT; < 0 heals per turn.
	DamagePerTurn int `json:"damage_per_turn,omitempty"`
}

// DefaultMaxSlots is the inventory capacity of a fresh character.
const DefaultMaxSlots = 20

// CharacterSheet is the full mechanical description of the player character.
// Sheets are value snapshots: transitions return a modified copy.
type CharacterSheet struct {
	Level int `json:"level"`

	// XP is cumulative and never decreases.
	XP int `json:"xp"`

	Stats  Stats    `json:"stats"`
	HP     Resource `json:"hp"`
	Mana   Resource `json:"mana"`
	Energy Resource `json:"energy"`

	Skills    []Skill         `json:"skills"`
	Equipment Equipment       `json:"equipment"`
	Inventory map[string]Item `json:"inventory"`
	MaxSlots  int             `json:"max_slots"`

	StatusEffects []StatusEffect `json:"status_effects,omitempty"`

	Grade Grade  `json:"grade"`
	Class string `json:"class,omitempty"`

	// EvolutionHistory records skill ids replaced by evolution, oldest first.
	EvolutionHistory []string `json:"evolution_history,omitempty"`

	// StatPoints are unspent points from grade transitions.
	StatPoints int `json:"stat_points"`

	Insight InsightTracker `json:"insight"`

	// KnownRecipes holds fusion recipe ids the player has discovered.
	KnownRecipes map[string]bool `json:"known_recipes,omitempty"`

	Gold int `json:"gold"`
}

// InsightTracker accumulates classified action repetitions and the partial
// skills revealed by them. Counts only ever increase.
type InsightTracker struct {
	Counts map[string]int `json:"counts,omitempty"`

	// Partial lists skills revealed but not yet granted, by skill id.
	Partial []PartialSkill `json:"partial,omitempty"`

	// Granted records skill ids already granted through insight, so a skill
	// is granted at most once even if several action types map to it.
	Granted map[string]bool `json:"granted,omitempty"`
}

// PartialSkill is a revealed-but-locked skill hint.
type PartialSkill struct {
	SkillID    string `json:"skill_id"`
	ActionType string `json:"action_type"`
	BlindName  string `json:"blind_name"`
}

// NewCharacterSheet returns a level-1 sheet with the given base stats and
// resource maxima, resources full.
func NewCharacterSheet(base Stats, maxHP, maxMana, maxEnergy int) CharacterSheet {
	return CharacterSheet{
		Level:     1,
		Stats:     base,
		HP:        Resource{Current: maxHP, Max: maxHP},
		Mana:      Resource{Current: maxMana, Max: maxMana},
		Energy:    Resource{Current: maxEnergy, Max: maxEnergy},
		Inventory: map[string]Item{},
		MaxSlots:  DefaultMaxSlots,
		Grade:     GradeFromLevel(1),
		Insight: InsightTracker{
			Counts:  map[string]int{},
			Granted: map[string]bool{},
		},
		KnownRecipes: map[string]bool{},
	}
}

// IsDead reports whether the sheet is in the dead state.
func (cs CharacterSheet) IsDead() bool {
	return cs.HP.Current <= 0
}

// FindSkill returns the index of the skill with the given id, or -1.
func (cs CharacterSheet) FindSkill(id string) int {
	for i := range cs.Skills {
		if cs.Skills[i].ID == id {
			return i
		}
	}
	return -1
}

// HasSkill reports whether the sheet owns a skill with the given id.
func (cs CharacterSheet) HasSkill(id string) bool {
	return cs.FindSkill(id) >= 0
}

// CloneSkills returns a deep copy of the skill list so callers can mutate a
// snapshot without aliasing the original.
func (cs CharacterSheet) CloneSkills() []Skill {
	out := make([]Skill, len(cs.Skills))
	copy(out, cs.Skills)
	return out
}
