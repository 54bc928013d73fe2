package game

import (
	"fmt"
	"time"
)

// SystemType selects the narrative framework a game runs under.
type SystemType string

const (
	SystemIntegration   SystemType = "SYSTEM_INTEGRATION"
	SystemCultivation   SystemType = "CULTIVATION_PATH"
	SystemDeathLoop     SystemType = "DEATH_LOOP"
	SystemDungeonDelve  SystemType = "DUNGEON_DELVE"
	SystemArcaneAcademy SystemType = "ARCANE_ACADEMY"
	SystemTabletop      SystemType = "TABLETOP_CLASSIC"
	SystemEpicJourney   SystemType = "EPIC_JOURNEY"
	SystemHeroAwakening SystemType = "HERO_AWAKENING"
)

// SystemTypes lists all recognised system types.
var SystemTypes = []SystemType{
	SystemIntegration, SystemCultivation, SystemDeathLoop, SystemDungeonDelve,
	SystemArcaneAcademy, SystemTabletop, SystemEpicJourney, SystemHeroAwakening,
}

// IsValid reports whether t is a recognised system type.
func (t SystemType) IsValid() bool {
	for _, s := range SystemTypes {
		if t == s {
			return true
		}
	}
	return false
}

// Difficulty scales combat and progression pacing.
type Difficulty string

const (
	DifficultyEasy      Difficulty = "easy"
	DifficultyNormal    Difficulty = "normal"
	DifficultyHard      Difficulty = "hard"
	DifficultyNightmare Difficulty = "nightmare"
)

// IsValid reports whether d is a recognised difficulty.
func (d Difficulty) IsValid() bool {
	switch d {
	case DifficultyEasy, DifficultyNormal, DifficultyHard, DifficultyNightmare:
		return true
	}
	return false
}

// Game is the per-save identity record.
type Game struct {
	ID              string     `json:"id"`
	PlayerName      string     `json:"player_name"`
	SystemType      SystemType `json:"system_type"`
	Difficulty      Difficulty `json:"difficulty"`
	Level           int        `json:"level"`
	PlaytimeSeconds int64      `json:"playtime_seconds"`
	CreatedAt       time.Time  `json:"created_at"`
	UpdatedAt       time.Time  `json:"updated_at"`
}

// WorldSettings tunes world generation at game creation.
type WorldSettings struct {
	Tone           string `json:"tone,omitempty"`    // "grim", "hopeful", …
	Setting        string `json:"setting,omitempty"` // free-text world seed
	MagicLevel     string `json:"magic_level,omitempty"`
	TechLevel      string `json:"tech_level,omitempty"`
	PermadeathMode bool   `json:"permadeath_mode,omitempty"`
}

// SystemDefinition is the unique identity the System Definer agent gives a
// game's "System" at creation: the voice that narrates, judges, and rewards.
type SystemDefinition struct {
	Name           string   `json:"name"`
	Personality    string   `json:"personality"`
	CentralMystery string   `json:"central_mystery"`
	Threat         string   `json:"threat"`
	Theme          string   `json:"theme"`
	Factions       []string `json:"factions,omitempty"`
	Hooks          []string `json:"hooks,omitempty"`
}

// GameState is the complete in-memory snapshot of a running game. States are
// value snapshots: transitions return modified copies; only the orchestrator
// replaces the current state cell.
type GameState struct {
	GameID        string           `json:"game_id"`
	SystemType    SystemType       `json:"system_type"`
	WorldSettings WorldSettings    `json:"world_settings"`
	System        SystemDefinition `json:"system,omitempty"`

	Sheet           CharacterSheet `json:"sheet"`
	CurrentLocation Location       `json:"current_location"`
	PlayerName      string         `json:"player_name"`
	Backstory       string         `json:"backstory,omitempty"`

	// DiscoveredLocations is the set of template-location ids seen so far.
	DiscoveredLocations map[string]bool `json:"discovered_locations"`

	// CustomLocations maps id to player-created locations.
	CustomLocations map[string]Location `json:"custom_locations,omitempty"`

	// NPCsByLocation maps locationId to the ordered NPCs present there.
	// Invariant: every NPC's LocationID equals its map key.
	NPCsByLocation map[string][]NPC `json:"npcs_by_location,omitempty"`

	// ActiveQuests maps questId to quest. Invariant: no active quest id
	// appears in CompletedQuests.
	ActiveQuests    map[string]Quest `json:"active_quests,omitempty"`
	CompletedQuests map[string]bool  `json:"completed_quests,omitempty"`

	DeathCount             int  `json:"death_count"`
	OpeningNarrationPlayed bool `json:"opening_narration_played"`
}

// Validate checks the cross-map invariants, returning the first violation.
func (gs GameState) Validate() error {
	for locID, npcs := range gs.NPCsByLocation {
		for _, n := range npcs {
			if n.LocationID != locID {
				return fmt.Errorf("game: npc %q claims location %q but is keyed under %q",
					n.ID, n.LocationID, locID)
			}
		}
	}
	for qID := range gs.ActiveQuests {
		if gs.CompletedQuests[qID] {
			return fmt.Errorf("game: quest %q is both active and completed", qID)
		}
	}
	return nil
}

// FindNPC locates an NPC by id across all locations.
func (gs GameState) FindNPC(npcID string) (NPC, bool) {
	for _, npcs := range gs.NPCsByLocation {
		for _, n := range npcs {
			if n.ID == npcID {
				return n, true
			}
		}
	}
	return NPC{}, false
}

// FindNPCByName locates an NPC by case-exact name at the current location
// first, then anywhere.
func (gs GameState) FindNPCByName(name string) (NPC, bool) {
	for _, n := range gs.NPCsByLocation[gs.CurrentLocation.ID] {
		if n.Name == name {
			return n, true
		}
	}
	for _, npcs := range gs.NPCsByLocation {
		for _, n := range npcs {
			if n.Name == name {
				return n, true
			}
		}
	}
	return NPC{}, false
}

// PutNPC inserts or replaces an NPC under its LocationID key, preserving
// order for replacements.
func (gs GameState) PutNPC(n NPC) GameState {
	byLoc := make(map[string][]NPC, len(gs.NPCsByLocation))
	for k, v := range gs.NPCsByLocation {
		byLoc[k] = v
	}

	// Drop any stale entry (possibly under an old location).
	for locID, npcs := range byLoc {
		for i := range npcs {
			if npcs[i].ID == n.ID {
				updated := make([]NPC, 0, len(npcs))
				updated = append(updated, npcs[:i]...)
				updated = append(updated, npcs[i+1:]...)
				if len(updated) == 0 {
					delete(byLoc, locID)
				} else {
					byLoc[locID] = updated
				}
				goto insert
			}
		}
	}
insert:
	list := make([]NPC, len(byLoc[n.LocationID]), len(byLoc[n.LocationID])+1)
	copy(list, byLoc[n.LocationID])
	byLoc[n.LocationID] = append(list, n)
	gs.NPCsByLocation = byLoc
	return gs
}

// ReplaceNPC swaps an NPC in place without reordering. The NPC must already
// exist under the same location key.
func (gs GameState) ReplaceNPC(n NPC) (GameState, error) {
	npcs, ok := gs.NPCsByLocation[n.LocationID]
	if !ok {
		return gs, fmt.Errorf("game: no NPCs at location %q", n.LocationID)
	}
	for i := range npcs {
		if npcs[i].ID == n.ID {
			updated := make([]NPC, len(npcs))
			copy(updated, npcs)
			updated[i] = n

			byLoc := make(map[string][]NPC, len(gs.NPCsByLocation))
			for k, v := range gs.NPCsByLocation {
				byLoc[k] = v
			}
			byLoc[n.LocationID] = updated
			gs.NPCsByLocation = byLoc
			return gs, nil
		}
	}
	return gs, fmt.Errorf("game: npc %q not found at location %q", n.ID, n.LocationID)
}

// AddCustomLocation registers a generated location, connects it to the
// current location, and marks it discovered.
func (gs GameState) AddCustomLocation(loc Location) GameState {
	loc.Custom = true

	custom := make(map[string]Location, len(gs.CustomLocations)+1)
	for k, v := range gs.CustomLocations {
		custom[k] = v
	}
	custom[loc.ID] = loc
	gs.CustomLocations = custom

	gs.CurrentLocation = gs.CurrentLocation.Connect(loc.ID)

	discovered := make(map[string]bool, len(gs.DiscoveredLocations)+1)
	for k, v := range gs.DiscoveredLocations {
		discovered[k] = v
	}
	discovered[loc.ID] = true
	gs.DiscoveredLocations = discovered
	return gs
}

// CompleteQuest moves a quest from active to completed.
func (gs GameState) CompleteQuest(questID string) (GameState, error) {
	q, ok := gs.ActiveQuests[questID]
	if !ok {
		return gs, fmt.Errorf("game: quest %q is not active", questID)
	}
	if q.Status != QuestCompleted {
		return gs, fmt.Errorf("game: quest %q is not in COMPLETED status", questID)
	}

	active := make(map[string]Quest, len(gs.ActiveQuests))
	for k, v := range gs.ActiveQuests {
		active[k] = v
	}
	delete(active, questID)
	gs.ActiveQuests = active

	completed := make(map[string]bool, len(gs.CompletedQuests)+1)
	for k, v := range gs.CompletedQuests {
		completed[k] = v
	}
	completed[questID] = true
	gs.CompletedQuests = completed
	return gs, nil
}

// PutQuest inserts or replaces an active quest. Completed quest ids are
// rejected to preserve the active/completed invariant.
func (gs GameState) PutQuest(q Quest) (GameState, error) {
	if gs.CompletedQuests[q.ID] {
		return gs, fmt.Errorf("game: quest %q already completed", q.ID)
	}
	active := make(map[string]Quest, len(gs.ActiveQuests)+1)
	for k, v := range gs.ActiveQuests {
		active[k] = v
	}
	active[q.ID] = q
	gs.ActiveQuests = active
	return gs, nil
}

// LocationByID resolves a location id against custom locations and the
// current location.
func (gs GameState) LocationByID(id string) (Location, bool) {
	if gs.CurrentLocation.ID == id {
		return gs.CurrentLocation, true
	}
	loc, ok := gs.CustomLocations[id]
	return loc, ok
}
