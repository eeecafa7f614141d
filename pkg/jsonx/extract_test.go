package jsonx

import (
	"encoding/json"
	"testing"
)

func TestExtract(t *testing.T) {
	tests := []struct {
		name     string
		response string
		want     string
	}{
		{
			name:     "pure JSON",
			response: `{"valid": true}`,
			want:     `{"valid": true}`,
		},
		{
			name:     "JSON wrapped in prose",
			response: `Sure, here are the coordinates: {"x": 10, "y": 20} hope that helps!`,
			want:     `{"x": 10, "y": 20}`,
		},
		{
			name:     "nested braces",
			response: `result: {"steps": [{"text": "Open menu", "requires_click": true}], "done": false}`,
			want:     `{"steps": [{"text": "Open menu", "requires_click": true}], "done": false}`,
		},
		{
			name:     "braces inside string values",
			response: `{"explanation": "use {curly} braces here"}`,
			want:     `{"explanation": "use {curly} braces here"}`,
		},
		{
			name:     "escaped quote inside string",
			response: `{"text": "click \"OK\" button"}`,
			want:     `{"text": "click \"OK\" button"}`,
		},
		{
			name:     "truncated object",
			response: `{"x": 10, "y":`,
			want:     "",
		},
		{
			name:     "no JSON at all",
			response: "I could not find the button on this screenshot.",
			want:     "",
		},
		{
			name:     "empty input",
			response: "",
			want:     "",
		},
		{
			name:     "first of several objects",
			response: `{"a": 1} and later {"b": 2}`,
			want:     `{"a": 1}`,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := Extract(tt.response)
			if got != tt.want {
				t.Errorf("Extract() = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestExtractProducesValidJSON(t *testing.T) {
	response := "Analysis complete.\n```json\n{\"allowed\": false, \"explanation\": \"Suite only\"}\n```"
	extracted := Extract(response)

	var out map[string]any
	if err := json.Unmarshal([]byte(extracted), &out); err != nil {
		t.Fatalf("extracted content is not valid JSON: %v", err)
	}
	if out["allowed"] != false {
		t.Errorf("allowed = %v, want false", out["allowed"])
	}
}
