package game

// Rarity tiers a skill's power and XP scaling.
type Rarity string

const (
	RarityCommon    Rarity = "COMMON"
	RarityUncommon  Rarity = "UNCOMMON"
	RarityRare      Rarity = "RARE"
	RarityEpic      Rarity = "EPIC"
	RarityLegendary Rarity = "LEGENDARY"
)

// Power is the damage multiplier applied to a skill effect's base value.
func (r Rarity) Power() float64 {
	switch r {
	case RarityCommon:
		return 1.0
	case RarityUncommon:
		return 1.2
	case RarityRare:
		return 1.5
	case RarityEpic:
		return 2.0
	case RarityLegendary:
		return 3.0
	default:
		return 1.0
	}
}

// XPMultiplier scales both the XP a skill earns per use and the XP it needs
// per level.
func (r Rarity) XPMultiplier() float64 {
	switch r {
	case RarityCommon:
		return 1.0
	case RarityUncommon:
		return 1.5
	case RarityRare:
		return 2.0
	case RarityEpic:
		return 3.0
	case RarityLegendary:
		return 5.0
	default:
		return 1.0
	}
}

// EffectKind discriminates the sealed set of skill effect variants.
type EffectKind string

const (
	EffectPhysicalDamage EffectKind = "PHYSICAL_DAMAGE"
	EffectMagicalDamage  EffectKind = "MAGICAL_DAMAGE"
	EffectPoisonDamage   EffectKind = "POISON_DAMAGE"
	EffectTrueDamage     EffectKind = "TRUE_DAMAGE"
	EffectHeal           EffectKind = "HEAL"
	EffectBuff           EffectKind = "BUFF"
	EffectDebuff         EffectKind = "DEBUFF"
	EffectDamageOverTime EffectKind = "DOT"
	EffectHealOverTime   EffectKind = "HOT"
	EffectShield         EffectKind = "SHIELD"
	EffectRestoreMana    EffectKind = "RESTORE_MANA"
	EffectRestoreEnergy  EffectKind = "RESTORE_ENERGY"
	EffectPassiveStat    EffectKind = "PASSIVE_STAT"
)

// IsDamage reports whether the kind deals direct damage.
func (k EffectKind) IsDamage() bool {
	switch k {
	case EffectPhysicalDamage, EffectMagicalDamage, EffectPoisonDamage, EffectTrueDamage:
		return true
	}
	return false
}

// SkillEffect is one component of a skill. Damage and heal effects scale
// with Base, the scaling stat, and the skill's level and rarity; buffs and
// periodic effects additionally carry a duration in turns.
type SkillEffect struct {
	Kind        EffectKind `json:"kind"`
	Base        float64    `json:"base"`
	ScalingStat StatName   `json:"scaling_stat,omitempty"`
	Ratio       float64    `json:"ratio,omitempty"`

	// Stat is the affected stat for BUFF/DEBUFF/PASSIVE_STAT.
	Stat StatName `json:"stat,omitempty"`

	// Duration in turns for BUFF/DEBUFF/DOT/HOT/SHIELD.
	Duration int `json:"duration,omitempty"`
}

// TargetType states what a skill may be aimed at.
type TargetType string

const (
	TargetEnemy TargetType = "enemy"
	TargetSelf  TargetType = "self"
	TargetAlly  TargetType = "ally"
	TargetArea  TargetType = "area"
)

// SourceKind discriminates how a skill was acquired.
type SourceKind string

const (
	SourceClass     SourceKind = "CLASS"
	SourceQuest     SourceKind = "QUEST"
	SourceInsight   SourceKind = "ACTION_INSIGHT"
	SourceEvolution SourceKind = "EVOLUTION"
	SourceFusion    SourceKind = "FUSION"
	SourceItem      SourceKind = "ITEM"
)

// AcquisitionSource records a skill's provenance. Only the fields relevant
// to Kind are set.
type AcquisitionSource struct {
	Kind SourceKind `json:"kind"`

	// Insight provenance.
	ActionType  string `json:"action_type,omitempty"`
	Repetitions int    `json:"repetitions,omitempty"`

	// Evolution provenance: the skill this one evolved from.
	FromSkillID string `json:"from_skill_id,omitempty"`

	// Fusion provenance.
	Inputs   []string `json:"inputs,omitempty"`
	RecipeID string   `json:"recipe_id,omitempty"`
}

// EvolutionPath is one upgrade option available when a skill hits max level.
type EvolutionPath struct {
	ResultSkillID  string   `json:"result_skill_id"`
	MinStats       Stats    `json:"min_stats,omitempty"`
	MinPlayerLevel int      `json:"min_player_level,omitempty"`
	RequiredQuests []string `json:"required_quests,omitempty"`
}

// Skill is an owned ability. CurrentCooldown counts down to 0 in combat
// ticks; XP resets to 0 on level-up and stops accumulating at MaxLevel.
type Skill struct {
	ID     string `json:"id"`
	Name   string `json:"name"`
	Rarity Rarity `json:"rarity"`

	ManaCost   int `json:"mana_cost,omitempty"`
	EnergyCost int `json:"energy_cost,omitempty"`
	HealthCost int `json:"health_cost,omitempty"`

	BaseCooldown    int `json:"base_cooldown"`
	CurrentCooldown int `json:"current_cooldown"`

	Level    int `json:"level"`
	MaxLevel int `json:"max_level"`
	XP       int `json:"xp"`

	Effects []SkillEffect `json:"effects"`

	Passive    bool       `json:"passive,omitempty"`
	TargetType TargetType `json:"target_type,omitempty"`

	Evolutions []EvolutionPath   `json:"evolutions,omitempty"`
	FusionTags []string          `json:"fusion_tags,omitempty"`
	Source     AcquisitionSource `json:"source"`
	Category   string            `json:"category,omitempty"`
}

// XPPerLevel returns the XP a skill at the given level needs to advance,
// scaled by rarity.
func (s Skill) XPPerLevel() int {
	return int(float64(50*s.Level) * s.Rarity.XPMultiplier())
}

// AtMaxLevel reports whether the skill can no longer gain levels and is
// eligible for evolution.
func (s Skill) AtMaxLevel() bool {
	return s.MaxLevel > 0 && s.Level >= s.MaxLevel
}

// Ready reports whether the cooldown has fully elapsed.
func (s Skill) Ready() bool {
	return s.CurrentCooldown == 0
}
