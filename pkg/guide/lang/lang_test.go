package lang

import "testing"

func TestDetect(t *testing.T) {
	tests := []struct {
		name string
		text string
		want string
	}{
		{"empty text", "", English},
		{"plain english", "How do I add an audio effect?", English},
		{"plain russian", "Как добавить аудиоэффект?", Russian},
		{"mixed mostly english", "Open the Ableton browser and drag Reverb", English},
		{"mixed mostly russian", "Открой браузер Ableton и перетащи Reverb туда", Russian},
		{"digits and punctuation only", "123 !?", English},
		{"single cyrillic word", "да", Russian},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := Detect(tt.text); got != tt.want {
				t.Errorf("Detect(%q) = %q, want %q", tt.text, got, tt.want)
			}
		})
	}
}

func TestMessageFollowsDetectedLanguage(t *testing.T) {
	if got := Message(MsgCompletionQuestion, "how do I do this"); got != "Did you manage to solve the task?" {
		t.Errorf("english completion question = %q", got)
	}
	if got := Message(MsgCompletionQuestion, "как это сделать"); got != "Удалось ли решить задачу?" {
		t.Errorf("russian completion question = %q", got)
	}
}

func TestMessageUnknownKey(t *testing.T) {
	if got := Message("missing_key", "text"); got != "" {
		t.Errorf("unknown key should yield empty string, got %q", got)
	}
}

func TestMessageNeverEmptyForKnownKeys(t *testing.T) {
	keys := []string{
		MsgCompletionQuestion, MsgTaskCompleted, MsgRestart,
		MsgClosing, MsgCouldNotComplete, MsgInternalError,
	}
	for _, key := range keys {
		for _, text := range []string{"hello", "привет"} {
			if Message(key, text) == "" {
				t.Errorf("Message(%q, %q) is empty", key, text)
			}
		}
	}
}
