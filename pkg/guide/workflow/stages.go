package workflow

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"ableton-smart-assistant/pkg/guide/answer"
	"ableton-smart-assistant/pkg/guide/decision"
	"ableton-smart-assistant/pkg/guide/lang"
	"ableton-smart-assistant/pkg/guide/session"
	"ableton-smart-assistant/pkg/jsonx"
	"ableton-smart-assistant/pkg/llm"
)

// detectIntent gates the session: only Ableton questions enter the pipeline.
// The verdict is sticky for the life of the session. Without an LLM the gate
// stays open.
func (w *Workflow) detectIntent(ctx context.Context, sess *session.Session, _ bool) (Stage, bool) {
	if sess.Intent != "" {
		return StageCheckCompatibility, false
	}
	if w.llm == nil {
		sess.Intent = session.IntentAbletonQuestion
		return StageCheckCompatibility, false
	}

	prompt := fmt.Sprintf(
		"Classify the user's message. If it is a question about using Ableton Live, respond with exactly: ableton_question. Otherwise respond with exactly: other.\n\nMessage: %s",
		sess.Query,
	)
	resp, err := w.llm.Generate(ctx, prompt, llm.WithTemperature(0), llm.WithMaxTokens(10))
	if err != nil {
		w.logger.Printf("[WARN] Intent detection failed, assuming in scope: %v", err)
		sess.Intent = session.IntentAbletonQuestion
		return StageCheckCompatibility, false
	}

	if strings.Contains(strings.ToLower(resp), "ableton") {
		sess.Intent = session.IntentAbletonQuestion
		return StageCheckCompatibility, false
	}
	sess.Intent = session.IntentOther
	sess.ResponseText = lang.Message(lang.MsgOutOfScope, sess.Query)
	return StageEnd, false
}

// checkCompatibility decides once per session whether the task is possible in
// the user's edition, based on the compatibility collection. Failures of the
// external model resolve to allowed so a broken checker never blocks a user.
func (w *Workflow) checkCompatibility(ctx context.Context, sess *session.Session, _ bool) (Stage, bool) {
	if decision.Matches(decision.IntentProceedAnyway, sess.LastDecision) {
		sess.SetVerdict(true, sess.CompatReason)
		return StageRetrieve, false
	}
	if sess.HasVerdict() {
		if *sess.Allowed {
			return StageRetrieve, false
		}
		return StageAwaitCompatibilityChoice, false
	}

	vec := w.queryVector(ctx, sess)
	refs := w.store.Retrieve(vec, sess.Edition, w.topK).Compatibility
	if len(refs) == 0 || w.llm == nil {
		sess.SetVerdict(true, "")
		return StageRetrieve, false
	}

	prompt := fmt.Sprintf(
		"You are checking whether a task can be done in Ableton Live %s.\n\nReference notes:\n%s\n\nTask: %s\n\nRespond with JSON only: {\"allowed\": true or false, \"explanation\": \"short reason\"}",
		sess.Edition, answer.ContextBlock(refs), sess.Query,
	)
	resp, err := w.llm.Generate(ctx, prompt, llm.WithTemperature(0.1), llm.WithJSONOnly())
	if err != nil {
		w.logger.Printf("[WARN] Compatibility check failed, allowing task: %v", err)
		sess.SetVerdict(true, "")
		return StageRetrieve, false
	}

	var verdict struct {
		Allowed     bool   `json:"allowed"`
		Explanation string `json:"explanation"`
	}
	raw := jsonx.Extract(resp)
	if raw == "" || json.Unmarshal([]byte(raw), &verdict) != nil {
		w.logger.Printf("[WARN] Unparseable compatibility verdict, allowing task")
		sess.SetVerdict(true, "")
		return StageRetrieve, false
	}

	sess.SetVerdict(verdict.Allowed, verdict.Explanation)
	if verdict.Allowed {
		return StageRetrieve, false
	}
	return StageAwaitCompatibilityChoice, false
}

// awaitCompatibilityChoice pauses with the incompatibility warning. Cancel
// and new-task replies close the session; try-anyway flips the verdict via
// checkCompatibility; anything else proceeds as-is.
func (w *Workflow) awaitCompatibilityChoice(_ context.Context, sess *session.Session, resumed bool) (Stage, bool) {
	if !resumed {
		text := lang.Message(lang.MsgCompatChoices, sess.Query)
		if sess.CompatReason != "" {
			text = "⚠️ " + sess.CompatReason + "\n\n" + text
		}
		sess.ResponseText = text
		sess.AwaitingStage = session.AwaitCompatibilityChoice
		return StageAwaitCompatibilityChoice, true
	}

	sess.AwaitingStage = ""
	if decision.Matches(decision.IntentCancel, sess.LastDecision) ||
		decision.Matches(decision.IntentNewTask, sess.LastDecision) {
		sess.ResponseText = lang.Message(lang.MsgClosing, sess.Query)
		return StageEnd, false
	}
	if decision.Matches(decision.IntentProceedAnyway, sess.LastDecision) {
		return StageCheckCompatibility, false
	}
	return StageRetrieve, false
}

func (w *Workflow) retrieve(ctx context.Context, sess *session.Session, _ bool) (Stage, bool) {
	vec := w.queryVector(ctx, sess)
	sess.Fragments = w.store.Retrieve(vec, sess.Edition, w.topK).General
	return StageGenerateAnswer, false
}

// generateAnswer synthesizes an answer from retrieved fragments, or segments
// a pre-supplied answer into steps without rewording it.
func (w *Workflow) generateAnswer(ctx context.Context, sess *session.Session, _ bool) (Stage, bool) {
	if sess.SeededAnswer && sess.Answer != "" {
		sess.Steps = w.synth.FromAnswer(ctx, sess.Query, sess.Edition, sess.Answer)
		return StageAwaitStepChoice, false
	}

	allowed := sess.Allowed == nil || *sess.Allowed
	res := w.synth.FromFragments(ctx, sess.Query, sess.Edition, sess.Fragments, allowed, sess.CompatReason)
	sess.Answer = res.Answer
	sess.Steps = res.Steps
	return StageAwaitStepChoice, false
}

// awaitStepChoice offers step-by-step delivery when steps exist. A clearly
// negative reply closes with the plain answer; everything else proceeds into
// delivery, which is the forgiving default for replies like "sure" or "ok".
func (w *Workflow) awaitStepChoice(_ context.Context, sess *session.Session, resumed bool) (Stage, bool) {
	if len(sess.Steps) == 0 {
		sess.Mode = session.ModeDirectAnswer
		sess.ResponseText = sess.Answer
		return StageEnd, false
	}

	if !resumed {
		sess.ResponseText = sess.Answer + "\n\n" + lang.Message(lang.MsgOfferSteps, sess.Query)
		sess.AwaitingStage = session.AwaitStepChoice
		return StageAwaitStepChoice, true
	}

	sess.AwaitingStage = ""
	if decision.Matches(decision.IntentNegate, sess.LastDecision) {
		sess.Mode = session.ModeDirectAnswer
		sess.ResponseText = lang.Message(lang.MsgClosing, sess.Query)
		return StageEnd, false
	}
	return StageStartSteps, false
}

func (w *Workflow) startSteps(_ context.Context, sess *session.Session, _ bool) (Stage, bool) {
	sess.Mode = session.ModeStepByStep
	sess.Cursor = 0
	return StageClassifyInteraction, false
}

func (w *Workflow) classifyInteraction(ctx context.Context, sess *session.Session, _ bool) (Stage, bool) {
	w.classifier.Classify(ctx, sess)
	if step := sess.CurrentStep(); step != nil && step.RequiresClick {
		return StageLocateControl, false
	}
	return StageAwaitUserAction, false
}

func (w *Workflow) locateControl(ctx context.Context, sess *session.Session, _ bool) (Stage, bool) {
	w.classifier.Locate(ctx, sess)
	return StageAwaitUserAction, false
}

// awaitUserAction presents the current step and waits for the user to act on
// it. Skip advances without validation; cancel closes the session; any other
// reply is treated as a completion report and validated.
func (w *Workflow) awaitUserAction(_ context.Context, sess *session.Session, resumed bool) (Stage, bool) {
	if !resumed {
		sess.ResponseText = w.present(sess, presentStep(sess))
		sess.AwaitingStage = session.AwaitUserAction
		return StageAwaitUserAction, true
	}

	sess.AwaitingStage = ""
	if decision.Matches(decision.IntentCancel, sess.LastDecision) {
		sess.ResponseText = lang.Message(lang.MsgClosing, sess.Query)
		return StageEnd, false
	}
	if decision.Matches(decision.IntentSkip, sess.LastDecision) {
		return StageAdvance, false
	}
	return StageValidate, false
}

// validateStep is advisory: the validator may record a warning on the
// session, but the walk advances regardless.
func (w *Workflow) validateStep(ctx context.Context, sess *session.Session, _ bool) (Stage, bool) {
	w.validator.Check(ctx, sess)
	return StageAdvance, false
}

func (w *Workflow) advance(_ context.Context, sess *session.Session, _ bool) (Stage, bool) {
	sess.Cursor++
	if sess.Cursor < len(sess.Steps) {
		return StageClassifyInteraction, false
	}
	return StageFinalConfirmation, false
}

// finalConfirmation re-presents the last step with the completion question.
// Affirmative closes the session; negative restarts delivery from the first
// step; anything ambiguous re-presents the same question unchanged, unlike
// the permissive step-choice branch, because mistaking "sort of" for done
// would strand the user.
func (w *Workflow) finalConfirmation(_ context.Context, sess *session.Session, resumed bool) (Stage, bool) {
	if !resumed {
		sess.ResponseText = w.present(sess, completionPrompt(sess))
		sess.AwaitingStage = session.AwaitCompletionChoice
		return StageFinalConfirmation, true
	}

	sess.AwaitingStage = ""
	if decision.Matches(decision.IntentNegate, sess.LastDecision) {
		sess.Cursor = 0
		sess.Mode = session.ModeStepByStep
		return StageClassifyInteraction, false
	}
	if decision.Matches(decision.IntentAffirm, sess.LastDecision) {
		sess.Mode = session.ModeDirectAnswer
		sess.ResponseText = lang.Message(lang.MsgTaskCompleted, sess.Query)
		return StageEnd, false
	}

	sess.ResponseText = completionPrompt(sess)
	sess.AwaitingStage = session.AwaitCompletionChoice
	return StageFinalConfirmation, true
}

// completionPrompt is the last-step header plus the completion question.
// Presented on entry and again verbatim after an ambiguous reply.
func completionPrompt(sess *session.Session) string {
	text := lang.Message(lang.MsgCompletionQuestion, sess.Query)
	if n := len(sess.Steps); n > 0 {
		text = fmt.Sprintf("Step %d of %d:\n%s\n\n%s", n, n, sess.Steps[n-1].Text, text)
	}
	return text
}

// fallbackReview asks the model which steps were likely problematic after a
// failed walkthrough and resumes delivery from the first flagged step. Only
// reachable through the explicit review entry, never from the normal
// restart branch.
func (w *Workflow) fallbackReview(ctx context.Context, sess *session.Session, _ bool) (Stage, bool) {
	if w.llm == nil || len(sess.Steps) == 0 {
		sess.ResponseText = lang.Message(lang.MsgCouldNotComplete, sess.Query)
		return StageEnd, false
	}

	var listing strings.Builder
	for i, step := range sess.Steps {
		fmt.Fprintf(&listing, "%d. %s\n", i+1, step.Text)
	}
	prompt := fmt.Sprintf(
		"The user followed these instructions but could not complete the task.\n\nTask: %s\n\nSteps:\n%s\nIdentify which steps were most likely problematic. Respond with JSON only: {\"problematic_steps\": [step numbers]}",
		sess.Query, listing.String(),
	)
	resp, err := w.llm.Generate(ctx, prompt, llm.WithTemperature(0.3), llm.WithJSONOnly())
	if err != nil {
		w.logger.Printf("[WARN] Fallback review failed: %v", err)
		sess.ResponseText = lang.Message(lang.MsgCouldNotComplete, sess.Query)
		return StageEnd, false
	}

	var parsed struct {
		ProblematicSteps []int `json:"problematic_steps"`
	}
	target := 0
	if raw := jsonx.Extract(resp); raw != "" && json.Unmarshal([]byte(raw), &parsed) == nil {
		if len(parsed.ProblematicSteps) > 0 {
			if n := parsed.ProblematicSteps[0]; n >= 1 && n <= len(sess.Steps) {
				target = n - 1
			}
		}
	}

	sess.Cursor = target
	sess.Mode = session.ModeStepByStep
	if target == 0 {
		sess.ResponseText = lang.Message(lang.MsgRestart, sess.Query)
	} else {
		sess.ResponseText = fmt.Sprintf(lang.Message(lang.MsgReviewFrom, sess.Query), target+1)
	}
	return StageClassifyInteraction, false
}

func presentStep(sess *session.Session) string {
	step := sess.CurrentStep()
	if step == nil {
		return ""
	}
	return fmt.Sprintf("Step %d of %d:\n%s", sess.Cursor+1, len(sess.Steps), step.Text)
}

// present prefixes text with anything an earlier stage of the same turn
// already queued on the session, such as a validation warning or a review
// notice.
func (w *Workflow) present(sess *session.Session, text string) string {
	if sess.ResponseText != "" && text != "" {
		return sess.ResponseText + "\n\n" + text
	}
	if text == "" {
		return sess.ResponseText
	}
	return text
}
