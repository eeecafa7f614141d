package answer

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"strings"

	"ableton-smart-assistant/pkg/guide/decision"
	"ableton-smart-assistant/pkg/guide/lang"
	"ableton-smart-assistant/pkg/guide/session"
	"ableton-smart-assistant/pkg/jsonx"
	"ableton-smart-assistant/pkg/llm"
	"ableton-smart-assistant/pkg/retrieval"
)

// UnavailableMessage is returned as the answer when no generation backend is
// configured or the call fails before producing anything usable.
const UnavailableMessage = "The assistant service is currently unavailable. Please try again later."

// Result is one synthesized answer plus its extracted steps.
type Result struct {
	Answer string
	Steps  []*session.Step
}

// Synthesizer turns retrieved fragments (or a pre-supplied answer) into a
// prose explanation and an ordered step list.
type Synthesizer struct {
	llmProvider llm.Provider
	logger      *log.Logger
}

func NewSynthesizer(llmProvider llm.Provider, logger *log.Logger) *Synthesizer {
	return &Synthesizer{
		llmProvider: llmProvider,
		logger:      logger,
	}
}

// structured response shape shared by both modes
type generation struct {
	Explanation string `json:"explanation"`
	Steps       []struct {
		Text          string `json:"text"`
		RequiresClick *bool  `json:"requires_click"`
	} `json:"steps"`
}

// FromFragments generates a fresh answer grounded in the retrieved context.
// Any backend failure degrades to the unavailability message with zero steps;
// zero steps means the caller proceeds in direct-answer mode.
func (s *Synthesizer) FromFragments(ctx context.Context, query, edition string, fragments []retrieval.Fragment, allowed bool, compatReason string) Result {
	if s.llmProvider == nil {
		return Result{Answer: UnavailableMessage}
	}

	systemPrompt := fmt.Sprintf("You are Ableton Smart Assistant. Reference Ableton documentation snippets when answering.\nUser's edition: %s\n", edition)
	if !allowed && compatReason != "" {
		systemPrompt += fmt.Sprintf("\nNote: The user is attempting something that may not be fully compatible with their edition: %s", compatReason)
	}

	userPrompt := fmt.Sprintf(`User question: %s

Documentation context:
%s

Please provide:
1. A clear explanation of how to accomplish this task
2. A step-by-step guide in JSON format with the following structure:
{
  "explanation": "Full explanation text",
  "steps": [
    {
      "text": "Step description",
      "requires_click": true/false
    }
  ]
}

Make sure the steps are actionable and specific.`, query, ContextBlock(fragments))

	response, err := s.llmProvider.Chat(ctx,
		[]llm.Message{
			{Role: "system", Content: systemPrompt},
			{Role: "user", Content: userPrompt},
		},
		llm.WithTemperature(0.7),
		llm.WithJSONOnly(),
	)
	if err != nil {
		s.logger.Printf("[ERROR] Answer generation failed: %v", err)
		return Result{Answer: UnavailableMessage}
	}

	parsed, err := parseGeneration(response)
	if err != nil {
		s.logger.Printf("[ERROR] Answer generation parse failed: %v", err)
		return Result{Answer: UnavailableMessage}
	}

	return Result{
		Answer: parsed.Explanation,
		Steps:  toSteps(parsed, false),
	}
}

// FromAnswer segments an existing answer into steps without regenerating it.
// The supplied answer text is authoritative: the caller keeps it byte-for-byte
// and only the returned steps matter. Errors degrade to zero steps.
func (s *Synthesizer) FromAnswer(ctx context.Context, query, edition, existing string) []*session.Step {
	if s.llmProvider == nil {
		return nil
	}

	detected := lang.Detect(existing)
	if detected == lang.English {
		detected = lang.Detect(query)
	}
	language := "English"
	if detected == lang.Russian {
		language = "Russian"
	}

	systemPrompt := fmt.Sprintf(`You are Ableton Smart Assistant. Break down the provided answer into actionable steps.
User's edition: %s

Analyze the answer and extract step-by-step instructions. For each step, determine if it requires clicking a button or UI element in Ableton Live.
Words like click, press, select, choose, open indicate requires_click=true.

IMPORTANT: Extract steps EXACTLY from the original answer. Use THE EXACT SAME wording as in the original answer. Don't create new steps, don't rewrite text. Keep the same language (%s).`, edition, language)

	userPrompt := fmt.Sprintf(`User question: %s

Answer to break into steps:
%s

Please extract step-by-step instructions from this answer in JSON format:
{
  "explanation": "Brief summary (can reuse parts of the answer)",
  "steps": [
    {
      "text": "Step description (EXACT text from the answer, word-for-word if possible)",
      "requires_click": true/false
    }
  ]
}

CRITICAL REQUIREMENTS:
- Extract steps in the EXACT order they appear in the answer
- Use the EXACT wording from the original answer - do NOT rewrite or rephrase
- Keep the SAME language as the original answer
- Do NOT create new steps - only extract what's already in the answer
- Do NOT change the number of steps - extract exactly what's there
- If a step mentions clicking, pressing, selecting buttons or UI elements, set requires_click=true
- Preserve the original formatting and style`, query, existing)

	response, err := s.llmProvider.Chat(ctx,
		[]llm.Message{
			{Role: "system", Content: systemPrompt},
			{Role: "user", Content: userPrompt},
		},
		llm.WithTemperature(0.1),
		llm.WithJSONOnly(),
	)
	if err != nil {
		s.logger.Printf("[ERROR] Step extraction failed: %v", err)
		return nil
	}

	parsed, err := parseGeneration(response)
	if err != nil {
		s.logger.Printf("[ERROR] Step extraction parse failed: %v", err)
		return nil
	}

	steps := toSteps(parsed, true)
	s.logger.Printf("[SYNTH] Extracted %d steps from supplied answer (language: %s)", len(steps), detected)
	return steps
}

// ContextBlock concatenates fragment texts, each prefixed with whatever
// manual position metadata is available.
func ContextBlock(fragments []retrieval.Fragment) string {
	parts := make([]string, 0, len(fragments))
	for _, f := range fragments {
		var meta []string
		if f.Metadata.Title != "" {
			meta = append(meta, fmt.Sprintf("Section: %s", f.Metadata.Title))
		}
		if f.Metadata.Page != "" {
			meta = append(meta, fmt.Sprintf("Page: %s", f.Metadata.Page))
		}
		if f.Metadata.Chapter != "" {
			meta = append(meta, fmt.Sprintf("Chapter: %s", f.Metadata.Chapter))
		}

		text := f.Content
		if len(meta) > 0 {
			text = fmt.Sprintf("[%s]\n\n%s", strings.Join(meta, ", "), text)
		}
		parts = append(parts, text)
	}
	return strings.Join(parts, "\n\n---\n\n")
}

func parseGeneration(response string) (*generation, error) {
	content := jsonx.Extract(response)
	if content == "" {
		return nil, fmt.Errorf("no JSON found in response")
	}

	var parsed generation
	if err := json.Unmarshal([]byte(content), &parsed); err != nil {
		return nil, fmt.Errorf("json unmarshal failed: %w", err)
	}
	return &parsed, nil
}

// toSteps converts the raw generation into session steps. A missing
// requires_click defaults to false; in lexical-fallback mode it defaults to
// the interaction-verb heuristic instead.
func toSteps(parsed *generation, lexicalFallback bool) []*session.Step {
	steps := make([]*session.Step, 0, len(parsed.Steps))
	for _, raw := range parsed.Steps {
		step := &session.Step{Text: raw.Text}
		switch {
		case raw.RequiresClick != nil:
			step.RequiresClick = *raw.RequiresClick
		case lexicalFallback:
			step.RequiresClick = decision.RequiresInteraction(raw.Text)
		}
		steps = append(steps, step)
	}
	return steps
}
