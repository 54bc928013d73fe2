package game

import "time"

// EventCategory buckets log entries for indexed search.
type EventCategory string

const (
	CategoryNarrative   EventCategory = "NARRATIVE"
	CategoryCombat      EventCategory = "COMBAT"
	CategorySystem      EventCategory = "SYSTEM"
	CategoryDialogue    EventCategory = "DIALOGUE"
	CategoryExploration EventCategory = "EXPLORATION"
	CategorySetup       EventCategory = "SETUP"
	CategoryAICall      EventCategory = "AI_CALL"
)

// EventImportance weights entries for retention and recall.
type EventImportance string

const (
	ImportanceLow    EventImportance = "LOW"
	ImportanceNormal EventImportance = "NORMAL"
	ImportanceHigh   EventImportance = "HIGH"
)

// EventType discriminates the sealed set of event variants.
type EventType string

const (
	EventNarratorText       EventType = "NARRATOR_TEXT"
	EventNPCDialogue        EventType = "NPC_DIALOGUE"
	EventSystemNotification EventType = "SYSTEM_NOTIFICATION"
	EventCombatLog          EventType = "COMBAT_LOG"
	EventStatChange         EventType = "STAT_CHANGE"
	EventItemGained         EventType = "ITEM_GAINED"
	EventQuestUpdate        EventType = "QUEST_UPDATE"
	EventLocationFound      EventType = "LOCATION_DISCOVERED"
	EventInsightProgress    EventType = "INSIGHT_PROGRESS"
	EventLearnedFromInsight EventType = "LEARNED_FROM_INSIGHT"
	EventSkillEvolved       EventType = "SKILL_EVOLVED"
	EventSkillFused         EventType = "SKILL_FUSED"
	EventPlotTriggered      EventType = "PLOT_TRIGGERED"
)

// GameEvent is one entry of a game's append-only event log. ID is assigned
// by the store, monotone per game. The denormalised reference fields exist
// for indexed lookup only; Text is the canonical content.
type GameEvent struct {
	ID         int64           `json:"id"`
	GameID     string          `json:"game_id"`
	Type       EventType       `json:"type"`
	Category   EventCategory   `json:"category"`
	Importance EventImportance `json:"importance"`
	Text       string          `json:"text"`

	NPCID      string `json:"npc_id,omitempty"`
	LocationID string `json:"location_id,omitempty"`
	QuestID    string `json:"quest_id,omitempty"`
	ItemID     string `json:"item_id,omitempty"`

	Timestamp time.Time `json:"timestamp"`
}

// NewEvent builds an unsaved event with NORMAL importance.
func NewEvent(gameID string, typ EventType, category EventCategory, text string) GameEvent {
	return GameEvent{
		GameID:     gameID,
		Type:       typ,
		Category:   category,
		Importance: ImportanceNormal,
		Text:       text,
	}
}

// WithImportance returns e with the importance replaced.
func (e GameEvent) WithImportance(imp EventImportance) GameEvent {
	e.Importance = imp
	return e
}
