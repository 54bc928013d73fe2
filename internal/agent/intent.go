package agent

import (
	"context"
	"strings"

	"github.com/antzucaro/matchr"

	"github.com/questweaver/questweaver/pkg/provider/llm"
)

// Intent is the closed classification of player input.
type Intent string

const (
	IntentCombat         Intent = "COMBAT"
	IntentNPCDialogue    Intent = "NPC_DIALOGUE"
	IntentSystemQuery    Intent = "SYSTEM_QUERY"
	IntentQuestAction    Intent = "QUEST_ACTION"
	IntentClassSelection Intent = "CLASS_SELECTION"
	IntentSkillMenu      Intent = "SKILL_MENU"
	IntentUseSkill       Intent = "USE_SKILL"
	IntentSkillEvolution Intent = "SKILL_EVOLUTION"
	IntentSkillFusion    Intent = "SKILL_FUSION"
	IntentStatusMenu     Intent = "STATUS_MENU"
	IntentInventoryMenu  Intent = "INVENTORY_MENU"
	IntentExploration    Intent = "EXPLORATION"
)

var allIntents = []Intent{
	IntentCombat, IntentNPCDialogue, IntentSystemQuery, IntentQuestAction,
	IntentClassSelection, IntentSkillMenu, IntentUseSkill, IntentSkillEvolution,
	IntentSkillFusion, IntentStatusMenu, IntentInventoryMenu, IntentExploration,
}

// IsValid reports whether i is one of the twelve known intents.
func (i Intent) IsValid() bool {
	for _, v := range allIntents {
		if i == v {
			return true
		}
	}
	return false
}

// IntentResult is a classified input with an optional extracted target
// (NPC name, skill id, enemy description).
type IntentResult struct {
	Intent Intent `json:"intent"`
	Target string `json:"target,omitempty"`
}

const intentSystemPrompt = `You classify a player's input for a text RPG engine.
Respond with ONLY a JSON object: {"intent": "<INTENT>", "target": "<optional target>"}.
Valid intents: COMBAT, NPC_DIALOGUE, SYSTEM_QUERY, QUEST_ACTION, CLASS_SELECTION,
SKILL_MENU, USE_SKILL, SKILL_EVOLUTION, SKILL_FUSION, STATUS_MENU, INVENTORY_MENU,
EXPLORATION. Use EXPLORATION when unsure. The target is who or what the action
is aimed at, if any.`

// IntentAnalyzer classifies player input. Each call is a fresh one-shot
// exchange; classification carries no useful conversational state.
type IntentAnalyzer struct {
	provider llm.Provider
}

// NewIntentAnalyzer returns an analyzer over the provider.
func NewIntentAnalyzer(p llm.Provider) *IntentAnalyzer {
	return &IntentAnalyzer{provider: p}
}

// Analyze classifies the input given a short textual state summary. The
// model's answer is parsed tolerantly; any failure, including an unknown
// intent value or a dead provider, falls back to deterministic keyword
// heuristics, so classification always yields a usable intent.
func (a *IntentAnalyzer) Analyze(ctx context.Context, input, stateSummary string) IntentResult {
	resp, err := a.provider.Complete(ctx, llm.CompletionRequest{
		SystemPrompt: intentSystemPrompt,
		Messages: []llm.Message{{
			Role:    "user",
			Content: "State: " + stateSummary + "\nInput: " + input,
		}},
		Temperature: 0.0,
		MaxTokens:   100,
	})
	if err == nil {
		var result IntentResult
		if perr := ExtractJSON(resp.Content, &result); perr == nil && result.Intent.IsValid() {
			return result
		}
	}
	return FallbackIntent(input)
}

// intentKeywords maps trigger words to intents, checked in declaration
// order so the more specific buckets win over EXPLORATION-adjacent verbs.
var intentKeywords = []struct {
	intent Intent
	words  []string
}{
	{IntentSkillFusion, []string{"fuse", "fusion", "combine", "merge"}},
	{IntentSkillEvolution, []string{"evolve", "evolution", "awaken", "upgrade"}},
	{IntentUseSkill, []string{"use", "cast", "activate", "unleash"}},
	{IntentCombat, []string{"attack", "fight", "strike", "kill", "slay", "hit", "slash", "stab", "shoot", "battle"}},
	{IntentNPCDialogue, []string{"talk", "speak", "ask", "tell", "say", "greet", "chat", "buy", "sell", "shop", "trade"}},
	{IntentQuestAction, []string{"quest", "accept", "complete", "objective", "bounty"}},
	{IntentClassSelection, []string{"class", "warrior", "mage", "rogue", "ranger", "become", "choose"}},
	{IntentStatusMenu, []string{"status", "stats", "sheet", "character", "level"}},
	{IntentInventoryMenu, []string{"inventory", "bag", "items", "equip", "wear", "drink"}},
	{IntentSkillMenu, []string{"skills", "abilities", "spells"}},
	{IntentSystemQuery, []string{"system", "help", "how", "what", "explain", "rules"}},
}

// fallbackFuzzyThreshold matches lightly misspelled keywords.
const fallbackFuzzyThreshold = 0.92

// FallbackIntent classifies input with keyword heuristics alone. Exported
// so the orchestrator can classify without an LLM round-trip when the
// provider is down.
func FallbackIntent(input string) IntentResult {
	words := strings.Fields(strings.ToLower(input))
	for _, w := range words {
		w = strings.Trim(w, ".,!?\"'")
		for _, bucket := range intentKeywords {
			for _, kw := range bucket.words {
				if w == kw || matchr.JaroWinkler(w, kw, false) >= fallbackFuzzyThreshold {
					return IntentResult{Intent: bucket.intent, Target: fallbackTarget(words, w)}
				}
			}
		}
	}
	return IntentResult{Intent: IntentExploration}
}

// fallbackTarget takes the words after the matched verb as the target,
// dropping a leading preposition.
func fallbackTarget(words []string, matched string) string {
	for i, w := range words {
		if strings.Trim(w, ".,!?\"'") != matched || i+1 >= len(words) {
			continue
		}
		rest := words[i+1:]
		switch rest[0] {
		case "to", "at", "with", "on":
			rest = rest[1:]
		}
		return strings.Trim(strings.Join(rest, " "), ".,!?\"'")
	}
	return ""
}
