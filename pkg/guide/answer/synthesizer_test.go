package answer

import (
	"context"
	"errors"
	"io"
	"log"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"ableton-smart-assistant/pkg/llm"
	"ableton-smart-assistant/pkg/retrieval"
)

type fakeLLM struct {
	response string
	err      error
}

func (f *fakeLLM) Generate(context.Context, string, ...llm.Option) (string, error) {
	return f.response, f.err
}

func (f *fakeLLM) Chat(context.Context, []llm.Message, ...llm.Option) (string, error) {
	return f.response, f.err
}

func testLogger() *log.Logger { return log.New(io.Discard, "", 0) }

func TestFromFragmentsParsesProseWrappedJSON(t *testing.T) {
	prov := &fakeLLM{response: `Sure, here is the guide:
{"explanation": "Use the browser.", "steps": [
	{"text": "Open the browser", "requires_click": true},
	{"text": "Listen carefully"}]}`}
	s := NewSynthesizer(prov, testLogger())

	res := s.FromFragments(context.Background(), "how?", "Suite", nil, true, "")

	assert.Equal(t, "Use the browser.", res.Answer)
	require.Len(t, res.Steps, 2)
	assert.True(t, res.Steps[0].RequiresClick)
	// Missing requires_click defaults to false in generation mode, even for
	// texts the lexical heuristic would flag.
	assert.False(t, res.Steps[1].RequiresClick)
}

func TestFromFragmentsDegrades(t *testing.T) {
	tests := []struct {
		name string
		prov *fakeLLM
	}{
		{"backend error", &fakeLLM{err: errors.New("down")}},
		{"no JSON in response", &fakeLLM{response: "I cannot answer that."}},
		{"truncated JSON", &fakeLLM{response: `{"explanation": "half`}},
		{"nil provider", nil},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var prov llm.Provider
			if tt.prov != nil {
				prov = tt.prov
			}
			s := NewSynthesizer(prov, testLogger())
			res := s.FromFragments(context.Background(), "how?", "Suite", nil, true, "")

			assert.Equal(t, UnavailableMessage, res.Answer)
			assert.Empty(t, res.Steps)
		})
	}
}

func TestFromAnswerLexicalFallback(t *testing.T) {
	prov := &fakeLLM{response: `{"explanation": "summary", "steps": [
	{"text": "Click the record button"},
	{"text": "Wait for the count-in"}]}`}
	s := NewSynthesizer(prov, testLogger())

	steps := s.FromAnswer(context.Background(), "how do I record?", "Suite", "Click the record button. Wait for the count-in.")

	require.Len(t, steps, 2)
	assert.True(t, steps[0].RequiresClick, "click verb must trigger the lexical fallback")
	assert.False(t, steps[1].RequiresClick)
}

func TestFromAnswerErrorsYieldNoSteps(t *testing.T) {
	s := NewSynthesizer(&fakeLLM{err: errors.New("down")}, testLogger())
	assert.Nil(t, s.FromAnswer(context.Background(), "q", "Suite", "Some answer."))

	s = NewSynthesizer(nil, testLogger())
	assert.Nil(t, s.FromAnswer(context.Background(), "q", "Suite", "Some answer."))
}

func TestContextBlock(t *testing.T) {
	fragments := []retrieval.Fragment{
		{
			Content:  "Reverb is an audio effect.",
			Metadata: retrieval.FragmentMetadata{Title: "Audio Effects", Page: "12"},
		},
		{Content: "Drag devices onto tracks."},
	}

	got := ContextBlock(fragments)

	assert.Equal(t, "[Section: Audio Effects, Page: 12]\n\nReverb is an audio effect.\n\n---\n\nDrag devices onto tracks.", got)
	assert.Empty(t, ContextBlock(nil))
}
