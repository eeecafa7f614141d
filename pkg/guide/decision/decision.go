// Package decision classifies free-text user replies at workflow branch
// points. Branch detection is inherently heuristic, so the whole table of
// (language, intent) keyword sets lives here as one enumerable structure
// instead of string checks scattered through the state machine.
package decision

import "strings"

// Intent is one recognizable branch decision.
type Intent string

const (
	IntentAffirm        Intent = "affirm"
	IntentNegate        Intent = "negate"
	IntentSkip          Intent = "skip"
	IntentCancel        Intent = "cancel"
	IntentNewTask       Intent = "new_task"
	IntentProceedAnyway Intent = "proceed_anyway"
)

// keywords maps (language, intent) to the substrings that signal it.
// Matching is substring-based on the lowercased reply, which deliberately
// mirrors how replies like "yes please" or "ok, skip this one" read.
var keywords = map[string]map[Intent][]string{
	"en": {
		IntentAffirm:        {"yes", "solved", "done", "completed", "finished", "managed", "succeeded", "show", "start"},
		IntentNegate:        {"no", "failed", "didn't", "couldn't", "unable", "not solved", "thanks", "thank you"},
		IntentSkip:          {"skip"},
		IntentCancel:        {"cancel"},
		IntentNewTask:       {"new task"},
		IntentProceedAnyway: {"try anyway", "all the same", "proceed anyway"},
	},
	"ru": {
		IntentAffirm:        {"да", "решил", "получилось", "готово", "удалось"},
		IntentNegate:        {"нет", "не получилось", "не удалось", "спасибо"},
		IntentSkip:          {"пропусти"},
		IntentCancel:        {"отмен"},
		IntentNewTask:       {"новая задача"},
		IntentProceedAnyway: {"всё равно", "все равно", "попробу"},
	},
}

// interactionVerbs flag step texts that describe a physical UI interaction.
// Used as the lexical fallback when no vision capability is configured.
var interactionVerbs = map[string][]string{
	"en": {"click", "press", "select", "choose", "open"},
	"ru": {"нажми", "нажать", "кликни", "выбери", "выбрать", "открой", "открыть"},
}

// Matches reports whether the reply contains any keyword of the intent, in
// any supported language. Replies are not guaranteed to match the query
// language, so all tables are consulted.
func Matches(intent Intent, reply string) bool {
	lowered := strings.ToLower(reply)
	if lowered == "" {
		return false
	}
	for _, table := range keywords {
		for _, kw := range table[intent] {
			if strings.Contains(lowered, kw) {
				return true
			}
		}
	}
	return false
}

// RequiresInteraction reports whether a step text mentions an interaction
// verb in any supported language.
func RequiresInteraction(stepText string) bool {
	lowered := strings.ToLower(stepText)
	if lowered == "" {
		return false
	}
	for _, verbs := range interactionVerbs {
		for _, verb := range verbs {
			if strings.Contains(lowered, verb) {
				return true
			}
		}
	}
	return false
}
