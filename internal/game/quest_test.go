package game

import "testing"

func sampleQuest() Quest {
	return Quest{
		ID: "herbs", Name: "Gather Herbs", Type: QuestSide,
		Status: QuestNotStarted,
		Objectives: []Objective{
			{Description: "Collect moonleaf", TargetProgress: 3},
			{Description: "Return to Miriel", TargetProgress: 1},
		},
		Rewards: QuestRewards{XP: 120, Gold: 30},
	}
}

func TestAdvanceObjective_Lifecycle(t *testing.T) {
	t.Parallel()
	q := sampleQuest()

	q, err := q.AdvanceObjective(0, 2)
	if err != nil {
		t.Fatalf("AdvanceObjective: %v", err)
	}
	if q.Status != QuestInProgress {
		t.Errorf("status = %s, want IN_PROGRESS", q.Status)
	}

	q, _ = q.AdvanceObjective(0, 5)
	if q.Objectives[0].CurrentProgress != 3 {
		t.Errorf("progress = %d, want clamped 3", q.Objectives[0].CurrentProgress)
	}
	if q.Status != QuestInProgress {
		t.Errorf("status = %s with one objective open, want IN_PROGRESS", q.Status)
	}

	q, _ = q.AdvanceObjective(1, 1)
	if q.Status != QuestCompleted {
		t.Errorf("status = %s, want COMPLETED", q.Status)
	}
}

func TestAdvanceObjective_TerminalRejected(t *testing.T) {
	t.Parallel()
	q := sampleQuest()
	q, _ = q.AdvanceObjective(0, 3)
	q, _ = q.AdvanceObjective(1, 1)
	if q.Status != QuestCompleted {
		t.Fatalf("setup: status = %s", q.Status)
	}
	if _, err := q.AdvanceObjective(0, 1); err == nil {
		t.Error("expected error advancing a COMPLETED quest")
	}

	failed := sampleQuest()
	failed, err := failed.Fail()
	if err != nil {
		t.Fatalf("Fail: %v", err)
	}
	if _, err := failed.Fail(); err == nil {
		t.Error("expected error failing a FAILED quest")
	}
}

func TestAdvanceObjective_BadIndex(t *testing.T) {
	t.Parallel()
	q := sampleQuest()
	if _, err := q.AdvanceObjective(5, 1); err == nil {
		t.Error("expected error for out-of-range objective index")
	}
}
