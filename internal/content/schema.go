package content

import (
	"github.com/questweaver/questweaver/internal/game"
	"github.com/questweaver/questweaver/internal/skill"
)

// YAML document shapes. The runtime types in internal/game carry json tags
// for persistence; these mirror them with yaml tags so the tables stay
// strict-decodable without loosening the game structs.

type skillsFile struct {
	Skills []skillDef `yaml:"skills"`
}

type skillDef struct {
	ID          string      `yaml:"id"`
	Name        string      `yaml:"name"`
	Description string      `yaml:"description,omitempty"`
	Rarity      string      `yaml:"rarity"`
	MaxLevel    int         `yaml:"max_level"`
	Cooldown    int         `yaml:"cooldown"`
	ManaCost    int         `yaml:"mana_cost,omitempty"`
	EnergyCost  int         `yaml:"energy_cost,omitempty"`
	HealthCost  int         `yaml:"health_cost,omitempty"`
	Passive     bool        `yaml:"passive,omitempty"`
	Target      string      `yaml:"target,omitempty"`
	Category    string      `yaml:"category,omitempty"`
	Effects     []effectDef `yaml:"effects"`
	Evolutions  []evoDef    `yaml:"evolutions,omitempty"`
	FusionTags  []string    `yaml:"fusion_tags,omitempty"`
}

type effectDef struct {
	Kind        string  `yaml:"kind"`
	Base        float64 `yaml:"base,omitempty"`
	ScalingStat string  `yaml:"scaling_stat,omitempty"`
	Ratio       float64 `yaml:"ratio,omitempty"`
	Stat        string  `yaml:"stat,omitempty"`
	Duration    int     `yaml:"duration,omitempty"`
}

type evoDef struct {
	ResultSkillID  string   `yaml:"result_skill_id"`
	MinStats       statsDef `yaml:"min_stats,omitempty"`
	MinPlayerLevel int      `yaml:"min_player_level,omitempty"`
	RequiredQuests []string `yaml:"required_quests,omitempty"`
}

type statsDef struct {
	Strength     int `yaml:"strength,omitempty"`
	Dexterity    int `yaml:"dexterity,omitempty"`
	Constitution int `yaml:"constitution,omitempty"`
	Intelligence int `yaml:"intelligence,omitempty"`
	Wisdom       int `yaml:"wisdom,omitempty"`
	Charisma     int `yaml:"charisma,omitempty"`
	Defense      int `yaml:"defense,omitempty"`
}

func (d statsDef) toStats() game.Stats {
	return game.Stats{
		Strength:     d.Strength,
		Dexterity:    d.Dexterity,
		Constitution: d.Constitution,
		Intelligence: d.Intelligence,
		Wisdom:       d.Wisdom,
		Charisma:     d.Charisma,
		Defense:      d.Defense,
	}
}

func (d skillDef) toSkill() game.Skill {
	s := game.Skill{
		ID:           d.ID,
		Name:         d.Name,
		Rarity:       game.Rarity(d.Rarity),
		ManaCost:     d.ManaCost,
		EnergyCost:   d.EnergyCost,
		HealthCost:   d.HealthCost,
		BaseCooldown: d.Cooldown,
		Level:        1,
		MaxLevel:     d.MaxLevel,
		Passive:      d.Passive,
		TargetType:   game.TargetType(d.Target),
		FusionTags:   d.FusionTags,
		Category:     d.Category,
	}
	for _, e := range d.Effects {
		s.Effects = append(s.Effects, game.SkillEffect{
			Kind:        game.EffectKind(e.Kind),
			Base:        e.Base,
			ScalingStat: game.StatName(e.ScalingStat),
			Ratio:       e.Ratio,
			Stat:        game.StatName(e.Stat),
			Duration:    e.Duration,
		})
	}
	for _, ev := range d.Evolutions {
		s.Evolutions = append(s.Evolutions, game.EvolutionPath{
			ResultSkillID:  ev.ResultSkillID,
			MinStats:       ev.MinStats.toStats(),
			MinPlayerLevel: ev.MinPlayerLevel,
			RequiredQuests: ev.RequiredQuests,
		})
	}
	return s
}

type insightFile struct {
	Thresholds []skill.Threshold `yaml:"thresholds"`
}

type recipesFile struct {
	Recipes []skill.Recipe `yaml:"recipes"`
}

type itemsFile struct {
	Items []itemDef `yaml:"items"`
}

type itemDef struct {
	ID            string   `yaml:"id"`
	Name          string   `yaml:"name"`
	Kind          string   `yaml:"kind"`
	Description   string   `yaml:"description,omitempty"`
	Value         int      `yaml:"value,omitempty"`
	WeaponType    string   `yaml:"weapon_type,omitempty"`
	Bonuses       statsDef `yaml:"bonuses,omitempty"`
	RestoreHP     int      `yaml:"restore_hp,omitempty"`
	RestoreMana   int      `yaml:"restore_mana,omitempty"`
	RestoreEnergy int      `yaml:"restore_energy,omitempty"`
}

func (d itemDef) toItem() game.Item {
	return game.Item{
		ID:            d.ID,
		Name:          d.Name,
		Kind:          game.ItemKind(d.Kind),
		Description:   d.Description,
		Quantity:      1,
		Value:         d.Value,
		WeaponType:    d.WeaponType,
		Bonuses:       d.Bonuses.toStats(),
		RestoreHP:     d.RestoreHP,
		RestoreMana:   d.RestoreMana,
		RestoreEnergy: d.RestoreEnergy,
	}
}

type lootFile struct {
	Tables []lootTableDef `yaml:"tables"`
}

type lootTableDef struct {
	Name  string    `yaml:"name"`
	Drops []dropDef `yaml:"drops"`
}

type dropDef struct {
	ItemID string  `yaml:"item_id"`
	Chance float64 `yaml:"chance"`
}

type classesFile struct {
	Classes []classDef `yaml:"classes"`
}

type classDef struct {
	ID          string   `yaml:"id"`
	Name        string   `yaml:"name"`
	Description string   `yaml:"description,omitempty"`
	BaseStats   statsDef `yaml:"base_stats"`
	MaxHP       int      `yaml:"max_hp"`
	MaxMana     int      `yaml:"max_mana"`
	MaxEnergy   int      `yaml:"max_energy"`
	Skills      []string `yaml:"skills,omitempty"`
	Items       []string `yaml:"items,omitempty"`
	Gold        int      `yaml:"gold,omitempty"`
}

func (d classDef) toClass() Class {
	return Class{
		ID:          d.ID,
		Name:        d.Name,
		Description: d.Description,
		BaseStats:   d.BaseStats.toStats(),
		MaxHP:       d.MaxHP,
		MaxMana:     d.MaxMana,
		MaxEnergy:   d.MaxEnergy,
		Skills:      d.Skills,
		Items:       d.Items,
		Gold:        d.Gold,
	}
}

type locationsFile struct {
	Common  []locationDef            `yaml:"common"`
	Systems map[string][]locationDef `yaml:"systems"`
}

type locationDef struct {
	ID          string   `yaml:"id"`
	Name        string   `yaml:"name"`
	Description string   `yaml:"description"`
	Tags        []string `yaml:"tags,omitempty"`
	Connections []string `yaml:"connections,omitempty"`
	DangerLevel int      `yaml:"danger_level,omitempty"`
}

func (d locationDef) toLocation() game.Location {
	return game.Location{
		ID:          d.ID,
		Name:        d.Name,
		Description: d.Description,
		Tags:        d.Tags,
		Connections: d.Connections,
		DangerLevel: d.DangerLevel,
	}
}
