package game

import "fmt"

// Per-level growth applied on each level gained.
const (
	levelGrowthStrCon    = 2
	levelGrowthOther     = 1
	levelGrowthMaxHP     = 10
	levelGrowthMaxMana   = 5
	levelGrowthMaxEnergy = 10
)

// LevelUpSummary describes what GainXP changed beyond the XP total.
type LevelUpSummary struct {
	LevelsGained     int
	NewLevel         int
	GradeChanged     bool
	NewGrade         Grade
	StatPointsEarned int
}

// GainXP adds amount (>= 0) to the sheet's cumulative XP and resolves any
// level-ups. Each level gained applies fixed stat growth (+2 STR/CON,
// +1 DEX/INT/WIS/CHA), raises resource maxima (+10 HP, +5 mana, +10 energy)
// and refills all resources. A grade transition additionally awards the
// grade's stat points. The input sheet is not modified.
func GainXP(cs CharacterSheet, amount int) (CharacterSheet, LevelUpSummary) {
	if amount < 0 {
		amount = 0
	}
	cs.XP += amount

	summary := LevelUpSummary{NewLevel: cs.Level, NewGrade: cs.Grade}
	for cs.XP >= XPForLevel(cs.Level+1) {
		cs.Level++
		summary.LevelsGained++

		cs.Stats.Strength += levelGrowthStrCon
		cs.Stats.Constitution += levelGrowthStrCon
		cs.Stats.Dexterity += levelGrowthOther
		cs.Stats.Intelligence += levelGrowthOther
		cs.Stats.Wisdom += levelGrowthOther
		cs.Stats.Charisma += levelGrowthOther

		cs.HP.Max += levelGrowthMaxHP
		cs.Mana.Max += levelGrowthMaxMana
		cs.Energy.Max += levelGrowthMaxEnergy
	}

	if summary.LevelsGained > 0 {
		// Level-ups restore the character fully.
		cs.HP.Current = cs.HP.Max
		cs.Mana.Current = cs.Mana.Max
		cs.Energy.Current = cs.Energy.Max

		newGrade := GradeFromLevel(cs.Level)
		if newGrade.Outranks(cs.Grade) {
			summary.GradeChanged = true
			points := newGrade.StatPointsForGrade()
			cs.StatPoints += points
			summary.StatPointsEarned = points
			cs.Grade = newGrade
		}
	}

	summary.NewLevel = cs.Level
	summary.NewGrade = cs.Grade
	return cs, summary
}

// EffectiveStats returns base stats plus equipment bonuses plus the sum of
// active status-effect modifiers. Pure.
func EffectiveStats(cs CharacterSheet) Stats {
	total := cs.Stats.Plus(cs.Equipment.Bonuses())
	for _, eff := range cs.StatusEffects {
		total = total.Plus(eff.Modifiers)
	}
	// Passive skills contribute standing stat bonuses.
	for _, sk := range cs.Skills {
		if !sk.Passive {
			continue
		}
		for _, e := range sk.Effects {
			if e.Kind == EffectPassiveStat {
				total = total.Add(e.Stat, int(e.Base))
			}
		}
	}
	return total
}

// TakeDamage reduces HP by amount, clamped to [0, max].
func TakeDamage(cs CharacterSheet, amount int) CharacterSheet {
	if amount < 0 {
		amount = 0
	}
	cs.HP.Current -= amount
	cs.HP = cs.HP.clamp()
	return cs
}

// Heal raises HP by amount, clamped to [0, max].
func Heal(cs CharacterSheet, amount int) CharacterSheet {
	if amount < 0 {
		amount = 0
	}
	cs.HP.Current += amount
	cs.HP = cs.HP.clamp()
	return cs
}

// SpendMana reduces mana by amount, clamped at 0.
func SpendMana(cs CharacterSheet, amount int) CharacterSheet {
	cs.Mana.Current -= amount
	cs.Mana = cs.Mana.clamp()
	return cs
}

// SpendEnergy reduces energy by amount, clamped at 0.
func SpendEnergy(cs CharacterSheet, amount int) CharacterSheet {
	cs.Energy.Current -= amount
	cs.Energy = cs.Energy.clamp()
	return cs
}

// RestoreMana raises mana by amount, clamped to max.
func RestoreMana(cs CharacterSheet, amount int) CharacterSheet {
	cs.Mana.Current += amount
	cs.Mana = cs.Mana.clamp()
	return cs
}

// RestoreEnergy raises energy by amount, clamped to max.
func RestoreEnergy(cs CharacterSheet, amount int) CharacterSheet {
	cs.Energy.Current += amount
	cs.Energy = cs.Energy.clamp()
	return cs
}

// SpendStatPoint allocates one unspent stat point to the named stat.
func SpendStatPoint(cs CharacterSheet, stat StatName) (CharacterSheet, error) {
	if cs.StatPoints <= 0 {
		return cs, fmt.Errorf("game: no unspent stat points")
	}
	cs.StatPoints--
	cs.Stats = cs.Stats.Add(stat, 1)
	return cs, nil
}

// TickStatusEffects advances all status effects by one turn: DoT/HoT damage
// applies, durations decrement, expired effects drop.
func TickStatusEffects(cs CharacterSheet) CharacterSheet {
	var kept []StatusEffect
	for _, eff := range cs.StatusEffects {
		if eff.DamagePerTurn > 0 {
			cs = TakeDamage(cs, eff.DamagePerTurn)
		} else if eff.DamagePerTurn < 0 {
			cs = Heal(cs, -eff.DamagePerTurn)
		}
		eff.RemainingTurns--
		if eff.RemainingTurns >= 1 {
			kept = append(kept, eff)
		}
	}
	cs.StatusEffects = kept
	return cs
}

// AddItem inserts or stacks an item, respecting MaxSlots for new entries.
func AddItem(cs CharacterSheet, item Item) (CharacterSheet, error) {
	if item.Quantity < 1 {
		item.Quantity = 1
	}
	inv := make(map[string]Item, len(cs.Inventory)+1)
	for k, v := range cs.Inventory {
		inv[k] = v
	}
	if existing, ok := inv[item.ID]; ok {
		existing.Quantity += item.Quantity
		inv[item.ID] = existing
	} else {
		if len(inv) >= cs.MaxSlots {
			return cs, fmt.Errorf("game: inventory full (%d slots)", cs.MaxSlots)
		}
		inv[item.ID] = item
	}
	cs.Inventory = inv
	return cs, nil
}

// RemoveItem decrements quantity and drops the entry when it hits zero.
func RemoveItem(cs CharacterSheet, itemID string, qty int) (CharacterSheet, error) {
	existing, ok := cs.Inventory[itemID]
	if !ok {
		return cs, fmt.Errorf("game: item %q not in inventory", itemID)
	}
	if existing.Quantity < qty {
		return cs, fmt.Errorf("game: item %q: have %d, need %d", itemID, existing.Quantity, qty)
	}
	inv := make(map[string]Item, len(cs.Inventory))
	for k, v := range cs.Inventory {
		inv[k] = v
	}
	existing.Quantity -= qty
	if existing.Quantity == 0 {
		delete(inv, itemID)
	} else {
		inv[itemID] = existing
	}
	cs.Inventory = inv
	return cs, nil
}

// EquipItem moves an inventory item into its equipment slot, returning any
// previously equipped item to the inventory.
func EquipItem(cs CharacterSheet, itemID string) (CharacterSheet, error) {
	item, ok := cs.Inventory[itemID]
	if !ok {
		return cs, fmt.Errorf("game: item %q not in inventory", itemID)
	}

	var slot **Item
	eq := cs.Equipment
	switch item.Kind {
	case ItemWeapon:
		slot = &eq.Weapon
	case ItemArmor:
		slot = &eq.Armor
	case ItemAccessory:
		slot = &eq.Accessory
	default:
		return cs, fmt.Errorf("game: item %q is not equippable", itemID)
	}

	var err error
	cs, err = RemoveItem(cs, itemID, 1)
	if err != nil {
		return cs, err
	}
	if prev := *slot; prev != nil {
		returned := *prev
		returned.Quantity = 1
		cs, err = AddItem(cs, returned)
		if err != nil {
			return cs, err
		}
	}
	equipped := item
	equipped.Quantity = 1
	*slot = &equipped
	cs.Equipment = eq
	return cs, nil
}

// UseItem consumes one unit of a consumable and applies its restores.
func UseItem(cs CharacterSheet, itemID string) (CharacterSheet, error) {
	item, ok := cs.Inventory[itemID]
	if !ok {
		return cs, fmt.Errorf("game: item %q not in inventory", itemID)
	}
	if item.Kind != ItemConsumable {
		return cs, fmt.Errorf("game: item %q is not consumable", itemID)
	}
	cs, err := RemoveItem(cs, itemID, 1)
	if err != nil {
		return cs, err
	}
	cs = Heal(cs, item.RestoreHP)
	cs = RestoreMana(cs, item.RestoreMana)
	cs = RestoreEnergy(cs, item.RestoreEnergy)
	return cs, nil
}
