package agent

import (
	"context"
	"errors"
	"testing"

	"github.com/questweaver/questweaver/pkg/provider/llm/mock"
)

func TestAnalyze_ParsesModelAnswer(t *testing.T) {
	t.Parallel()
	p := &mock.Provider{Replies: []string{`{"intent": "COMBAT", "target": "goblin"}`}}
	a := NewIntentAnalyzer(p)

	got := a.Analyze(context.Background(), "attack the goblin", "level 1, tutorial grove")
	if got.Intent != IntentCombat || got.Target != "goblin" {
		t.Errorf("result = %+v", got)
	}
	if p.CompleteCalls[0].Req.Temperature != 0.0 {
		t.Errorf("classification should use greedy decoding, got %v", p.CompleteCalls[0].Req.Temperature)
	}
}

func TestAnalyze_FallsBackOnGarbage(t *testing.T) {
	t.Parallel()
	cases := []struct {
		name    string
		replies []string
	}{
		{"prose", []string{"I think the player wants to fight."}},
		{"unknown intent", []string{`{"intent": "DANCE_BATTLE"}`}},
	}
	for _, tc := range cases {
		tc := tc
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()
			a := NewIntentAnalyzer(&mock.Provider{Replies: tc.replies})
			got := a.Analyze(context.Background(), "attack the goblin", "")
			if got.Intent != IntentCombat {
				t.Errorf("fallback intent = %s, want COMBAT", got.Intent)
			}
		})
	}
}

func TestAnalyze_FallsBackOnProviderError(t *testing.T) {
	t.Parallel()
	a := NewIntentAnalyzer(&mock.Provider{CompleteErr: errors.New("down")})
	got := a.Analyze(context.Background(), "talk to the innkeeper", "")
	if got.Intent != IntentNPCDialogue {
		t.Errorf("intent = %s, want NPC_DIALOGUE", got.Intent)
	}
	if got.Target != "the innkeeper" {
		t.Errorf("target = %q", got.Target)
	}
}

func TestFallbackIntent(t *testing.T) {
	t.Parallel()
	cases := []struct {
		input string
		want  Intent
	}{
		{"attack goblin", IntentCombat},
		{"fight!", IntentCombat},
		{"talk to the blacksmith", IntentNPCDialogue},
		{"fuse fireball and power strike", IntentSkillFusion},
		{"evolve power strike", IntentSkillEvolution},
		{"check my inventory", IntentInventoryMenu},
		{"show status", IntentStatusMenu},
		{"accept the quest", IntentQuestAction},
		{"become a warrior", IntentClassSelection},
		{"what are the rules here", IntentSystemQuery},
		{"wander north along the river", IntentExploration},
		{"", IntentExploration},
	}
	for _, tc := range cases {
		if got := FallbackIntent(tc.input); got.Intent != tc.want {
			t.Errorf("FallbackIntent(%q) = %s, want %s", tc.input, got.Intent, tc.want)
		}
	}
}

func TestFallbackIntent_FuzzyKeyword(t *testing.T) {
	t.Parallel()
	// A single transposition still lands in the combat bucket.
	if got := FallbackIntent("attakc the wolf"); got.Intent != IntentCombat {
		t.Errorf("intent = %s, want COMBAT for near-miss keyword", got.Intent)
	}
}
