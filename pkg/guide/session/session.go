package session

import "ableton-smart-assistant/pkg/retrieval"

// Mode values for answer delivery.
const (
	ModeDirectAnswer = "direct_answer"
	ModeStepByStep   = "step_by_step"
)

// Intent values from the gating classifier.
const (
	IntentAbletonQuestion = "ableton_question"
	IntentOther           = "other"
)

// Awaiting-input markers. When set, the workflow halted at that stage and the
// next incoming message resumes from it.
const (
	AwaitCompatibilityChoice = "wait_version_choice"
	AwaitStepChoice          = "wait_step_choice"
	AwaitUserAction          = "wait_user_action"
	AwaitCompletionChoice    = "wait_task_completion_choice"
)

// Region is a located on-screen control for a step.
type Region struct {
	X      int `json:"x"`
	Y      int `json:"y"`
	Width  int `json:"width"`
	Height int `json:"height"`
}

// Step is one discrete instruction extracted from an answer.
// RequiresClick is filled lazily by the interaction classifier; Region is
// filled lazily by screenshot analysis and may be invalidated and recomputed
// when the user asks to locate the control again.
type Step struct {
	Text          string  `json:"text"`
	RequiresClick bool    `json:"requires_click"`
	Region        *Region `json:"button_coords,omitempty"`
}

// HistoryEntry is one transcript message supplied by the client each turn.
type HistoryEntry struct {
	Role          string `json:"role"`
	Text          string `json:"text"`
	ScreenshotRef string `json:"screenshot_url,omitempty"`
}

// Session is the unit of conversation continuity, keyed by an opaque ID.
// Mutated by every workflow stage that runs; at most one in-flight turn per
// ID (the service layer holds a per-ID lock across each turn).
// SeededAnswer marks sessions whose answer was supplied by an external
// pipeline; it gates the segment-only synthesis path and is cleared when a
// fresh query lands.
//
// Invariant: 0 <= Cursor <= len(Steps); Cursor == len(Steps) only in the
// terminal completion state.
type Session struct {
	ID            string               `json:"id"`
	Query         string               `json:"query"`
	Edition       string               `json:"edition"`
	History       []HistoryEntry       `json:"history"`
	ScreenshotRef string               `json:"screenshot_url,omitempty"`
	Intent        string               `json:"intent,omitempty"`
	Allowed       *bool                `json:"allowed,omitempty"`
	CompatReason  string               `json:"compat_reason,omitempty"`
	Fragments     []retrieval.Fragment `json:"-"`
	Answer        string               `json:"answer,omitempty"`
	SeededAnswer  bool                 `json:"seeded_answer,omitempty"`
	Steps         []*Step              `json:"steps"`
	Cursor        int                  `json:"cursor"`
	Mode          string               `json:"mode"`
	LastDecision  string               `json:"last_decision,omitempty"`
	AwaitingStage string               `json:"awaiting_stage,omitempty"`
	ResponseText  string               `json:"response_text,omitempty"`
}

// New creates a fresh session in direct-answer mode.
func New(id, query, edition string) *Session {
	return &Session{
		ID:      id,
		Query:   query,
		Edition: edition,
		Mode:    ModeDirectAnswer,
	}
}

// CurrentStep returns the step at the cursor, or nil when the cursor sits at
// the terminal position.
func (s *Session) CurrentStep() *Step {
	if s.Cursor < 0 || s.Cursor >= len(s.Steps) {
		return nil
	}
	return s.Steps[s.Cursor]
}

// SetVerdict records the compatibility verdict once per session.
func (s *Session) SetVerdict(allowed bool, reason string) {
	s.Allowed = &allowed
	s.CompatReason = reason
}

// HasVerdict reports whether compatibility was already decided.
func (s *Session) HasVerdict() bool { return s.Allowed != nil }
