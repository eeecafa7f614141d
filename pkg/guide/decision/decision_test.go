package decision

import "testing"

func TestMatches(t *testing.T) {
	tests := []struct {
		name   string
		intent Intent
		reply  string
		want   bool
	}{
		{"plain yes", IntentAffirm, "yes", true},
		{"yes in sentence", IntentAffirm, "Yes, I solved it", true},
		{"russian yes", IntentAffirm, "да, получилось", true},
		{"plain no", IntentNegate, "no", true},
		{"thanks is a polite no", IntentNegate, "thanks, I'm good", true},
		{"russian no", IntentNegate, "нет, не удалось", true},
		{"skip", IntentSkip, "skip this one", true},
		{"russian skip", IntentSkip, "пропусти этот шаг", true},
		{"cancel", IntentCancel, "cancel", true},
		{"russian cancel", IntentCancel, "отменить задачу", true},
		{"new task", IntentNewTask, "I want a new task", true},
		{"try anyway", IntentProceedAnyway, "let's try anyway", true},
		{"proceed anyway", IntentProceedAnyway, "proceed anyway please", true},
		{"russian try anyway", IntentProceedAnyway, "давай всё равно попробуем", true},
		{"empty reply", IntentAffirm, "", false},
		{"unrelated reply", IntentSkip, "what does this step mean?", false},
		{"affirm does not match negative", IntentAffirm, "not really", false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := Matches(tt.intent, tt.reply); got != tt.want {
				t.Errorf("Matches(%v, %q) = %v, want %v", tt.intent, tt.reply, got, tt.want)
			}
		})
	}
}

func TestRequiresInteraction(t *testing.T) {
	tests := []struct {
		name string
		text string
		want bool
	}{
		{"click verb", "Click the Device Browser icon", true},
		{"press verb", "Press Tab to switch views", true},
		{"select verb", "Select the audio track", true},
		{"open verb", "Open the Preferences window", true},
		{"russian click", "Нажмите на кнопку записи", true},
		{"russian open", "Откройте окно настроек", true},
		{"no interaction", "Listen to the loop and adjust to taste", false},
		{"empty text", "", false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := RequiresInteraction(tt.text); got != tt.want {
				t.Errorf("RequiresInteraction(%q) = %v, want %v", tt.text, got, tt.want)
			}
		})
	}
}
