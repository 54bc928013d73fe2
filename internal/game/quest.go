package game

import "fmt"

// QuestStatus is the quest lifecycle. COMPLETED and FAILED are terminal.
type QuestStatus string

const (
	QuestNotStarted QuestStatus = "NOT_STARTED"
	QuestInProgress QuestStatus = "IN_PROGRESS"
	QuestCompleted  QuestStatus = "COMPLETED"
	QuestFailed     QuestStatus = "FAILED"
)

// Terminal reports whether the status admits no further transitions.
func (s QuestStatus) Terminal() bool {
	return s == QuestCompleted || s == QuestFailed
}

// QuestType categorises quests for generation and search.
type QuestType string

const (
	QuestMain   QuestType = "main"
	QuestSide   QuestType = "side"
	QuestHidden QuestType = "hidden"
	QuestDaily  QuestType = "daily"
)

// Objective is one step of a quest with bounded progress.
type Objective struct {
	Description     string `json:"description"`
	CurrentProgress int    `json:"current_progress"`
	TargetProgress  int    `json:"target_progress"`
}

// Complete reports whether the objective has reached its target.
func (o Objective) Complete() bool {
	return o.CurrentProgress >= o.TargetProgress
}

// QuestRewards is what completing a quest grants.
type QuestRewards struct {
	XP                int      `json:"xp,omitempty"`
	Gold              int      `json:"gold,omitempty"`
	Items             []Item   `json:"items,omitempty"`
	UnlockedLocations []string `json:"unlocked_locations,omitempty"`
}

// Quest is a persistent quest instance.
type Quest struct {
	ID            string       `json:"id"`
	Name          string       `json:"name"`
	Description   string       `json:"description"`
	Type          QuestType    `json:"type"`
	Objectives    []Objective  `json:"objectives"`
	Rewards       QuestRewards `json:"rewards"`
	Prerequisites []string     `json:"prerequisites,omitempty"`
	GiverNPCID    string       `json:"giver_npc_id,omitempty"`
	Status        QuestStatus  `json:"status"`
}

// AllObjectivesComplete reports whether every objective hit its target.
func (q Quest) AllObjectivesComplete() bool {
	for _, o := range q.Objectives {
		if !o.Complete() {
			return false
		}
	}
	return len(q.Objectives) > 0
}

// AdvanceObjective adds delta progress to the objective at index, clamped to
// its target. When all objectives complete, status becomes COMPLETED.
// Terminal quests reject further progress.
func (q Quest) AdvanceObjective(index, delta int) (Quest, error) {
	if q.Status.Terminal() {
		return q, fmt.Errorf("game: quest %q is %s", q.Name, q.Status)
	}
	if index < 0 || index >= len(q.Objectives) {
		return q, fmt.Errorf("game: quest %q has no objective %d", q.Name, index)
	}

	objs := make([]Objective, len(q.Objectives))
	copy(objs, q.Objectives)
	o := &objs[index]
	o.CurrentProgress += delta
	if o.CurrentProgress > o.TargetProgress {
		o.CurrentProgress = o.TargetProgress
	}
	if o.CurrentProgress < 0 {
		o.CurrentProgress = 0
	}
	q.Objectives = objs

	if q.Status == QuestNotStarted {
		q.Status = QuestInProgress
	}
	if q.AllObjectivesComplete() {
		q.Status = QuestCompleted
	}
	return q, nil
}

// Fail marks the quest FAILED unless it is already terminal.
func (q Quest) Fail() (Quest, error) {
	if q.Status.Terminal() {
		return q, fmt.Errorf("game: quest %q is %s", q.Name, q.Status)
	}
	q.Status = QuestFailed
	return q, nil
}
