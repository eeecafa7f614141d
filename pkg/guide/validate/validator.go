package validate

import (
	"context"
	"encoding/json"
	"fmt"
	"log"

	"ableton-smart-assistant/pkg/guide/decision"
	"ableton-smart-assistant/pkg/guide/session"
	"ableton-smart-assistant/pkg/jsonx"
	"ableton-smart-assistant/pkg/screenshot"
	"ableton-smart-assistant/pkg/vision"
)

// WarningPrefix marks a validation failure in presented text. The workflow
// layer treats any response starting with this sentinel as "step likely not
// completed".
const WarningPrefix = "⚠️ "

// Validator checks whether the expected post-step state is visible on a
// screenshot. Validation is advisory only: it annotates the presented text
// and never blocks advancement.
type Validator struct {
	visionProvider vision.Provider
	screenshots    screenshot.Source
	logger         *log.Logger
}

func NewValidator(visionProvider vision.Provider, screenshots screenshot.Source, logger *log.Logger) *Validator {
	return &Validator{
		visionProvider: visionProvider,
		screenshots:    screenshots,
		logger:         logger,
	}
}

// Check validates the step at the cursor. It only runs when the step is
// marked as an interaction and a screenshot is present; a skip decision
// bypasses it entirely. On a negative verdict the session's presented text
// becomes the warning-prefixed explanation.
func (v *Validator) Check(ctx context.Context, sess *session.Session) {
	step := sess.CurrentStep()
	if step == nil {
		return
	}

	if decision.Matches(decision.IntentSkip, sess.LastDecision) {
		return
	}
	if !step.RequiresClick {
		return
	}
	if v.visionProvider == nil || sess.ScreenshotRef == "" {
		return
	}

	image, err := v.screenshots.Resolve(sess.ScreenshotRef)
	if err != nil {
		v.logger.Printf("[WARN] Screenshot unavailable for validation: %v", err)
		return
	}

	prompt := fmt.Sprintf(`Do you see the state after completing the step: %s? Return JSON: {"valid": true/false, "explanation": "brief explanation"}`, step.Text)

	response, err := v.visionProvider.Analyze(ctx, prompt, image)
	if err != nil {
		v.logger.Printf("[WARN] Step validation failed: %v", err)
		return
	}

	content := jsonx.Extract(response)
	if content == "" {
		return
	}

	var verdict struct {
		Valid       *bool  `json:"valid"`
		Explanation string `json:"explanation"`
	}
	if err := json.Unmarshal([]byte(content), &verdict); err != nil {
		return
	}

	if verdict.Valid != nil && !*verdict.Valid {
		explanation := verdict.Explanation
		if explanation == "" {
			explanation = "Step was not completed correctly."
		}
		sess.ResponseText = WarningPrefix + explanation
	}
}
