package workflow

import (
	"context"
	"errors"
	"io"
	"log"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"ableton-smart-assistant/pkg/guide/answer"
	"ableton-smart-assistant/pkg/guide/interaction"
	"ableton-smart-assistant/pkg/guide/lang"
	"ableton-smart-assistant/pkg/guide/session"
	"ableton-smart-assistant/pkg/guide/validate"
	"ableton-smart-assistant/pkg/llm"
	"ableton-smart-assistant/pkg/retrieval"
	"ableton-smart-assistant/pkg/vision"
)

type cannedRule struct {
	contains string
	response string
}

// fakeLLM answers by matching prompt substrings against canned rules.
type fakeLLM struct {
	rules []cannedRule
	err   error
}

func (f *fakeLLM) Generate(_ context.Context, prompt string, _ ...llm.Option) (string, error) {
	return f.respond(prompt)
}

func (f *fakeLLM) Chat(_ context.Context, history []llm.Message, _ ...llm.Option) (string, error) {
	var sb strings.Builder
	for _, m := range history {
		sb.WriteString(m.Content)
		sb.WriteString("\n")
	}
	return f.respond(sb.String())
}

func (f *fakeLLM) respond(prompt string) (string, error) {
	if f.err != nil {
		return "", f.err
	}
	for _, r := range f.rules {
		if strings.Contains(prompt, r.contains) {
			return r.response, nil
		}
	}
	return "", errors.New("no canned response for prompt")
}

type fakeVision struct {
	response string
	err      error
}

func (f *fakeVision) Analyze(_ context.Context, _ string, _ []byte) (string, error) {
	return f.response, f.err
}

type fakeShots struct{}

func (fakeShots) Resolve(string) ([]byte, error) { return []byte("png"), nil }

type fixedEmbedder struct{}

func (fixedEmbedder) Generate(context.Context, string) ([]float32, error) {
	return []float32{1, 0}, nil
}

const synthResponse = `{"explanation": "Reverb lives in the Audio Effects browser.", "steps": [
	{"text": "Open the Device Browser", "requires_click": true},
	{"text": "Drag Reverb onto the track", "requires_click": false},
	{"text": "Adjust the Dry/Wet knob", "requires_click": false}]}`

func defaultRules() []cannedRule {
	return []cannedRule{
		{"Classify the user's message", "ableton_question"},
		{"checking whether a task can be done", `{"allowed": true, "explanation": ""}`},
		{"requires clicking a button", `{"requires_click": false}`},
		{"step-by-step guide in JSON format", synthResponse},
	}
}

func testWorkflow(t *testing.T, prov *fakeLLM, vis *fakeVision, general, compat []retrieval.Fragment) *Workflow {
	t.Helper()
	logger := log.New(io.Discard, "", 0)
	store := retrieval.NewStoreFromFragments(general, compat)
	// A nil *fakeVision must stay a nil interface.
	var visProv vision.Provider
	if vis != nil {
		visProv = vis
	}
	classifier := interaction.NewClassifier(prov, visProv, fakeShots{}, logger)
	validator := validate.NewValidator(visProv, fakeShots{}, logger)
	return New(fixedEmbedder{}, store, answer.NewSynthesizer(prov, logger), classifier, validator, prov, logger)
}

func generalFragments() []retrieval.Fragment {
	return []retrieval.Fragment{
		{ID: "g1", Content: "Drag devices from the browser onto a track.", Embedding: []float32{1, 0}},
	}
}

// walkToSteps runs a fresh session through answer synthesis and into
// step-by-step delivery, returning at the first presented step.
func walkToSteps(t *testing.T, w *Workflow, sess *session.Session) string {
	t.Helper()
	w.Run(context.Background(), sess)
	require.Equal(t, session.AwaitStepChoice, sess.AwaitingStage)
	sess.LastDecision = "yes"
	return w.Run(context.Background(), sess)
}

func TestHappyPathThreeSteps(t *testing.T) {
	prov := &fakeLLM{rules: defaultRules()}
	w := testWorkflow(t, prov, nil, generalFragments(), nil)
	sess := session.New("s1", "How do I add reverb to a track?", "Suite")

	text := w.Run(context.Background(), sess)
	assert.Equal(t, "Reverb lives in the Audio Effects browser.\n\n"+lang.Message(lang.MsgOfferSteps, sess.Query), text)
	assert.Equal(t, session.AwaitStepChoice, sess.AwaitingStage)
	require.Len(t, sess.Steps, 3)

	sess.LastDecision = "yes"
	text = w.Run(context.Background(), sess)
	assert.Equal(t, "Step 1 of 3:\nOpen the Device Browser", text)
	assert.Equal(t, session.AwaitUserAction, sess.AwaitingStage)
	assert.Equal(t, session.ModeStepByStep, sess.Mode)
	assert.Equal(t, 0, sess.Cursor)

	sess.LastDecision = "done"
	text = w.Run(context.Background(), sess)
	assert.Equal(t, "Step 2 of 3:\nDrag Reverb onto the track", text)
	assert.Equal(t, 1, sess.Cursor)

	sess.LastDecision = "done"
	text = w.Run(context.Background(), sess)
	assert.Equal(t, "Step 3 of 3:\nAdjust the Dry/Wet knob", text)

	sess.LastDecision = "done"
	text = w.Run(context.Background(), sess)
	assert.Equal(t, "Step 3 of 3:\nAdjust the Dry/Wet knob\n\n"+lang.Message(lang.MsgCompletionQuestion, sess.Query), text)
	assert.Equal(t, session.AwaitCompletionChoice, sess.AwaitingStage)
	assert.Equal(t, len(sess.Steps), sess.Cursor)

	sess.LastDecision = "yes, solved"
	text = w.Run(context.Background(), sess)
	assert.Equal(t, lang.Message(lang.MsgTaskCompleted, sess.Query), text)
	assert.Empty(t, sess.AwaitingStage)
	assert.Equal(t, session.ModeDirectAnswer, sess.Mode)
}

func TestStepChoiceDeclined(t *testing.T) {
	prov := &fakeLLM{rules: defaultRules()}
	w := testWorkflow(t, prov, nil, generalFragments(), nil)
	sess := session.New("s1", "How do I add reverb?", "Suite")

	w.Run(context.Background(), sess)
	sess.LastDecision = "no thanks"
	text := w.Run(context.Background(), sess)

	assert.Equal(t, lang.Message(lang.MsgClosing, sess.Query), text)
	assert.Empty(t, sess.AwaitingStage)
	assert.Equal(t, session.ModeDirectAnswer, sess.Mode)
}

func TestRestartFromFirstStep(t *testing.T) {
	prov := &fakeLLM{rules: defaultRules()}
	w := testWorkflow(t, prov, nil, generalFragments(), nil)
	sess := session.New("s1", "How do I add reverb?", "Suite")

	walkToSteps(t, w, sess)
	for i := 0; i < 3; i++ {
		sess.LastDecision = "done"
		w.Run(context.Background(), sess)
	}
	require.Equal(t, session.AwaitCompletionChoice, sess.AwaitingStage)

	sess.LastDecision = "no, it didn't work"
	text := w.Run(context.Background(), sess)

	assert.Equal(t, "Step 1 of 3:\nOpen the Device Browser", text)
	assert.Equal(t, 0, sess.Cursor)
	assert.Equal(t, session.AwaitUserAction, sess.AwaitingStage)
	assert.Equal(t, session.ModeStepByStep, sess.Mode)
}

func TestAmbiguousCompletionReAsks(t *testing.T) {
	prov := &fakeLLM{rules: defaultRules()}
	w := testWorkflow(t, prov, nil, generalFragments(), nil)
	sess := session.New("s1", "How do I add reverb?", "Suite")

	walkToSteps(t, w, sess)
	var asked string
	for i := 0; i < 3; i++ {
		sess.LastDecision = "done"
		asked = w.Run(context.Background(), sess)
	}
	require.Equal(t, session.AwaitCompletionChoice, sess.AwaitingStage)

	sess.LastDecision = "hmm, sort of"
	text := w.Run(context.Background(), sess)

	assert.Equal(t, asked, text)
	assert.Equal(t, "Step 3 of 3:\nAdjust the Dry/Wet knob\n\n"+lang.Message(lang.MsgCompletionQuestion, sess.Query), text)
	assert.Equal(t, session.AwaitCompletionChoice, sess.AwaitingStage)
}

func TestSkipAdvancesWithoutValidation(t *testing.T) {
	prov := &fakeLLM{rules: defaultRules()}
	vis := &fakeVision{response: `{"valid": false, "explanation": "should never be consulted"}`}
	w := testWorkflow(t, prov, vis, generalFragments(), nil)
	sess := session.New("s1", "How do I add reverb?", "Suite")
	sess.ScreenshotRef = "/tmp/shot.png"

	walkToSteps(t, w, sess)
	sess.LastDecision = "skip"
	text := w.Run(context.Background(), sess)

	assert.Equal(t, "Step 2 of 3:\nDrag Reverb onto the track", text)
	assert.Equal(t, 1, sess.Cursor)
}

func TestCancelDuringSteps(t *testing.T) {
	prov := &fakeLLM{rules: defaultRules()}
	w := testWorkflow(t, prov, nil, generalFragments(), nil)
	sess := session.New("s1", "How do I add reverb?", "Suite")

	walkToSteps(t, w, sess)
	sess.LastDecision = "cancel"
	text := w.Run(context.Background(), sess)

	assert.Equal(t, lang.Message(lang.MsgClosing, sess.Query), text)
	assert.Empty(t, sess.AwaitingStage)
}

func TestValidationWarningPrefixesNextStep(t *testing.T) {
	rules := append([]cannedRule{
		{"requires clicking a button", `{"requires_click": true}`},
	}, defaultRules()...)
	prov := &fakeLLM{rules: rules}
	vis := &fakeVision{response: `{"found": false}`}
	w := testWorkflow(t, prov, vis, generalFragments(), nil)
	sess := session.New("s1", "How do I add reverb?", "Suite")
	sess.ScreenshotRef = "/tmp/shot.png"

	walkToSteps(t, w, sess)
	vis.response = `{"valid": false, "explanation": "The browser is still closed."}`
	sess.LastDecision = "done"
	text := w.Run(context.Background(), sess)

	assert.True(t, strings.HasPrefix(text, validate.WarningPrefix+"The browser is still closed."), "got %q", text)
	assert.Contains(t, text, "Step 2 of 3:\nDrag Reverb onto the track")
	assert.Equal(t, 1, sess.Cursor, "advisory validation must not block advancement")
}

func TestIncompatibleEditionChoices(t *testing.T) {
	rules := []cannedRule{
		{"Classify the user's message", "ableton_question"},
		{"checking whether a task can be done", `{"allowed": false, "explanation": "Max for Live requires Suite."}`},
		{"requires clicking a button", `{"requires_click": false}`},
		{"step-by-step guide in JSON format", synthResponse},
	}
	prov := &fakeLLM{rules: rules}
	compat := []retrieval.Fragment{
		{ID: "c1", Content: "Max for Live is a Suite-only feature.", Embedding: []float32{1, 0}},
	}
	w := testWorkflow(t, prov, nil, generalFragments(), compat)
	sess := session.New("s1", "How do I open a Max for Live device?", "Intro")

	text := w.Run(context.Background(), sess)
	assert.Contains(t, text, "Max for Live requires Suite.")
	assert.Contains(t, text, lang.Message(lang.MsgCompatChoices, sess.Query))
	assert.Equal(t, session.AwaitCompatibilityChoice, sess.AwaitingStage)
	require.NotNil(t, sess.Allowed)
	assert.False(t, *sess.Allowed)

	sess.LastDecision = "let's try anyway"
	text = w.Run(context.Background(), sess)
	assert.True(t, *sess.Allowed, "try anyway must flip the verdict")
	assert.Equal(t, session.AwaitStepChoice, sess.AwaitingStage)
	assert.Contains(t, text, "Reverb lives in the Audio Effects browser.")
}

func TestIncompatibleEditionCancel(t *testing.T) {
	rules := []cannedRule{
		{"Classify the user's message", "ableton_question"},
		{"checking whether a task can be done", `{"allowed": false, "explanation": "Not available in Intro."}`},
	}
	prov := &fakeLLM{rules: rules}
	compat := []retrieval.Fragment{
		{ID: "c1", Content: "Feature matrix.", Embedding: []float32{1, 0}},
	}
	w := testWorkflow(t, prov, nil, generalFragments(), compat)
	sess := session.New("s1", "How do I use the Wavetable synth?", "Intro")

	w.Run(context.Background(), sess)
	sess.LastDecision = "cancel"
	text := w.Run(context.Background(), sess)

	assert.Equal(t, lang.Message(lang.MsgClosing, sess.Query), text)
	assert.Empty(t, sess.AwaitingStage)
}

func TestPreSuppliedAnswerPreserved(t *testing.T) {
	const supplied = "First, click the Device Browser. Then drag Reverb onto your track."
	rules := []cannedRule{
		{"Break down the provided answer", `{"explanation": "Two steps.", "steps": [
			{"text": "First, click the Device Browser.", "requires_click": true},
			{"text": "Then drag Reverb onto your track.", "requires_click": false}]}`},
		{"requires clicking a button", `{"requires_click": false}`},
	}
	prov := &fakeLLM{rules: rules}
	w := testWorkflow(t, prov, nil, generalFragments(), nil)
	sess := session.New("s1", "How do I add reverb?", "Suite")
	sess.Answer = supplied
	sess.SeededAnswer = true

	require.Equal(t, StageGenerateAnswer, w.EntryStage(sess))
	text := w.Run(context.Background(), sess)

	assert.Equal(t, supplied, sess.Answer, "supplied answer must be preserved byte-for-byte")
	assert.Equal(t, supplied+"\n\n"+lang.Message(lang.MsgOfferSteps, sess.Query), text)
	require.Len(t, sess.Steps, 2)
	assert.Equal(t, "First, click the Device Browser.", sess.Steps[0].Text)
}

func TestFreshQueryRegeneratesAfterEarlierAnswer(t *testing.T) {
	rules := []cannedRule{
		{"Classify the user's message", "ableton_question"},
		{"requires clicking a button", `{"requires_click": false}`},
		{"step-by-step guide in JSON format", `{"explanation": "Arm the track and move a parameter during playback.", "steps": []}`},
	}
	prov := &fakeLLM{rules: rules}
	// Both collections empty, as when neither data file is present.
	w := testWorkflow(t, prov, nil, nil, nil)
	sess := session.New("s1", "How do I add reverb?", "Suite")
	sess.Answer = "Reverb lives in the Audio Effects browser."
	sess.Query = "How do I record automation?"

	require.Equal(t, StageDetectIntent, w.EntryStage(sess))
	text := w.Run(context.Background(), sess)

	assert.Equal(t, "Arm the track and move a parameter during playback.", sess.Answer,
		"a fresh query must regenerate, not reuse the earlier answer")
	assert.Equal(t, sess.Answer, text)
}

func TestOutOfScopeQuestion(t *testing.T) {
	prov := &fakeLLM{rules: []cannedRule{{"Classify the user's message", "other"}}}
	w := testWorkflow(t, prov, nil, generalFragments(), nil)
	sess := session.New("s1", "What is the weather like today?", "Suite")

	text := w.Run(context.Background(), sess)

	assert.Equal(t, lang.Message(lang.MsgOutOfScope, sess.Query), text)
	assert.Equal(t, session.IntentOther, sess.Intent)
	assert.Empty(t, sess.AwaitingStage)
}

func TestLLMFailureDegradesGracefully(t *testing.T) {
	prov := &fakeLLM{err: errors.New("backend down")}
	w := testWorkflow(t, prov, nil, generalFragments(), nil)
	sess := session.New("s1", "How do I add reverb?", "Suite")

	text := w.Run(context.Background(), sess)

	// Intent and compatibility failures resolve open; synthesis failure
	// degrades to the unavailability notice with no steps to offer.
	assert.Equal(t, answer.UnavailableMessage, text)
	assert.Empty(t, sess.AwaitingStage)
	require.NotNil(t, sess.Allowed)
	assert.True(t, *sess.Allowed)
}

func TestLocateControlFillsRegion(t *testing.T) {
	rules := append([]cannedRule{
		{"requires clicking a button", `{"requires_click": true}`},
	}, defaultRules()...)
	prov := &fakeLLM{rules: rules}
	vis := &fakeVision{response: `{"x": 10, "y": 20, "width": 30, "height": 40}`}
	w := testWorkflow(t, prov, vis, generalFragments(), nil)
	sess := session.New("s1", "How do I add reverb?", "Suite")
	sess.ScreenshotRef = "/tmp/shot.png"

	text := walkToSteps(t, w, sess)

	assert.Equal(t, "Step 1 of 3:\nOpen the Device Browser", text)
	step := sess.CurrentStep()
	require.NotNil(t, step)
	require.NotNil(t, step.Region)
	assert.Equal(t, &session.Region{X: 10, Y: 20, Width: 30, Height: 40}, step.Region)
}

func TestFallbackReviewResumesFromFlaggedStep(t *testing.T) {
	rules := append([]cannedRule{
		{"could not complete the task", `{"problematic_steps": [2, 3]}`},
	}, defaultRules()...)
	prov := &fakeLLM{rules: rules}
	w := testWorkflow(t, prov, nil, generalFragments(), nil)
	sess := session.New("s1", "How do I add reverb?", "Suite")

	walkToSteps(t, w, sess)
	sess.AwaitingStage = ""
	text := w.RunFrom(context.Background(), sess, StageFallbackReview)

	assert.Equal(t, 1, sess.Cursor)
	assert.Contains(t, text, "starting from step 2")
	assert.Contains(t, text, "Step 2 of 3:\nDrag Reverb onto the track")
	assert.Equal(t, session.AwaitUserAction, sess.AwaitingStage)
}

func TestIterationCap(t *testing.T) {
	prov := &fakeLLM{rules: defaultRules()}
	w := testWorkflow(t, prov, nil, generalFragments(), nil)
	sess := session.New("s1", "How do I add reverb?", "Suite")

	w.handlers["spin"] = func(context.Context, *session.Session, bool) (Stage, bool) {
		return "spin", false
	}
	text := w.RunFrom(context.Background(), sess, "spin")

	assert.Equal(t, lang.Message(lang.MsgCouldNotComplete, sess.Query), text)
}

func TestCompatibilityAskedOncePerSession(t *testing.T) {
	prov := &fakeLLM{rules: defaultRules()}
	compat := []retrieval.Fragment{
		{ID: "c1", Content: "Feature matrix.", Embedding: []float32{1, 0}},
	}
	w := testWorkflow(t, prov, nil, generalFragments(), compat)
	sess := session.New("s1", "How do I add reverb?", "Suite")

	w.Run(context.Background(), sess)
	require.True(t, sess.HasVerdict())

	// Replace the verdict rule with one that would flip the answer; a
	// recorded verdict means it must never be consulted again.
	prov.rules = []cannedRule{
		{"checking whether a task can be done", `{"allowed": false, "explanation": "flip"}`},
		{"requires clicking a button", `{"requires_click": false}`},
	}
	sess.LastDecision = "yes"
	w.Run(context.Background(), sess)

	assert.True(t, *sess.Allowed)
	assert.Equal(t, session.AwaitUserAction, sess.AwaitingStage)
}
