package interaction

import (
	"context"
	"encoding/json"
	"fmt"
	"log"

	"ableton-smart-assistant/pkg/guide/decision"
	"ableton-smart-assistant/pkg/guide/session"
	"ableton-smart-assistant/pkg/jsonx"
	"ableton-smart-assistant/pkg/llm"
	"ableton-smart-assistant/pkg/screenshot"
	"ableton-smart-assistant/pkg/vision"
)

// Fallback control size when the vision model reports a point without extent.
const (
	defaultRegionWidth  = 50
	defaultRegionHeight = 50
)

// Classifier decides whether the step at the session cursor needs a physical
// UI interaction, and locates the control on a screenshot when one is
// available. All vision failures are soft: the region stays absent and the
// step delivery continues.
type Classifier struct {
	llmProvider    llm.Provider
	visionProvider vision.Provider
	screenshots    screenshot.Source
	logger         *log.Logger
}

func NewClassifier(llmProvider llm.Provider, visionProvider vision.Provider, screenshots screenshot.Source, logger *log.Logger) *Classifier {
	return &Classifier{
		llmProvider:    llmProvider,
		visionProvider: visionProvider,
		screenshots:    screenshots,
		logger:         logger,
	}
}

// Classify fills RequiresClick for the step at the cursor. With a backend it
// asks for a JSON verdict; without one it falls back to the lexical
// interaction-verb heuristic. No-op when the cursor is terminal.
func (c *Classifier) Classify(ctx context.Context, sess *session.Session) {
	step := sess.CurrentStep()
	if step == nil {
		return
	}

	if c.llmProvider == nil {
		step.RequiresClick = decision.RequiresInteraction(step.Text)
		return
	}

	response, err := c.llmProvider.Chat(ctx,
		[]llm.Message{
			{Role: "system", Content: `Analyze if this step requires clicking a button or UI element in Ableton Live. Respond with JSON: {"requires_click": true/false}`},
			{Role: "user", Content: fmt.Sprintf("Step: %s", step.Text)},
		},
		llm.WithTemperature(0.1),
		llm.WithJSONOnly(),
	)
	if err != nil {
		c.logger.Printf("[WARN] Interaction classification failed, using heuristic: %v", err)
		step.RequiresClick = decision.RequiresInteraction(step.Text)
		return
	}

	var verdict struct {
		RequiresClick bool `json:"requires_click"`
	}
	content := jsonx.Extract(response)
	if content == "" || json.Unmarshal([]byte(content), &verdict) != nil {
		step.RequiresClick = decision.RequiresInteraction(step.Text)
		return
	}

	step.RequiresClick = verdict.RequiresClick
}

// Locate asks the vision backend for the on-screen region matching the
// current step and stores it on the step. Missing screenshot, missing
// backend, fetch failures and malformed responses all leave the region
// absent.
func (c *Classifier) Locate(ctx context.Context, sess *session.Session) {
	step := sess.CurrentStep()
	if step == nil {
		return
	}
	step.Region = nil

	if c.visionProvider == nil || sess.ScreenshotRef == "" {
		return
	}

	image, err := c.screenshots.Resolve(sess.ScreenshotRef)
	if err != nil {
		c.logger.Printf("[WARN] Screenshot unavailable for locate: %v", err)
		return
	}

	prompt := fmt.Sprintf(`Analyze the Ableton Live screenshot and find the coordinates of the button or UI element corresponding to the instruction: %s

Return JSON with coordinates: {"x": number, "y": number, "width": number, "height": number} or {"found": false} if element not found.`, step.Text)

	response, err := c.visionProvider.Analyze(ctx, prompt, image)
	if err != nil {
		c.logger.Printf("[WARN] Control lookup failed: %v", err)
		return
	}

	step.Region = parseRegion(response)
}

// parseRegion extracts a region from the raw vision response. Returns nil on
// any malformation or an explicit not-found signal.
func parseRegion(response string) *session.Region {
	content := jsonx.Extract(response)
	if content == "" {
		return nil
	}

	var raw struct {
		Found  *bool `json:"found"`
		X      *int  `json:"x"`
		Y      *int  `json:"y"`
		Width  int   `json:"width"`
		Height int   `json:"height"`
	}
	if err := json.Unmarshal([]byte(content), &raw); err != nil {
		return nil
	}
	if raw.Found != nil && !*raw.Found {
		return nil
	}
	if raw.X == nil || raw.Y == nil {
		return nil
	}

	region := &session.Region{
		X:      *raw.X,
		Y:      *raw.Y,
		Width:  raw.Width,
		Height: raw.Height,
	}
	if region.Width == 0 {
		region.Width = defaultRegionWidth
	}
	if region.Height == 0 {
		region.Height = defaultRegionHeight
	}
	return region
}
