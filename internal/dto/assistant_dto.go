package dto

import (
	"time"

	"ableton-smart-assistant/pkg/guide/session"
)

type ConversationEntry struct {
	Role          string `json:"role" validate:"required"`
	Text          string `json:"text"`
	ScreenshotURL string `json:"screenshot_url,omitempty"`
}

type ChatRequest struct {
	Message        string              `json:"message" validate:"required"`
	SessionID      string              `json:"session_id"`
	History        []ConversationEntry `json:"history"`
	AbletonEdition string              `json:"ableton_edition" validate:"required"`
	ScreenshotURL  string              `json:"screenshot_url"`
}

// StepByStepRequest seeds a session with an answer produced elsewhere; the
// workflow only segments it into steps.
type StepByStepRequest struct {
	Message        string              `json:"message" validate:"required"`
	RagAnswer      string              `json:"rag_answer" validate:"required"`
	SessionID      string              `json:"session_id"`
	History        []ConversationEntry `json:"history"`
	AbletonEdition string              `json:"ableton_edition" validate:"required"`
	ScreenshotURL  string              `json:"screenshot_url"`
}

type StepInfo struct {
	Text          string          `json:"text"`
	RequiresClick bool            `json:"requires_click"`
	ButtonCoords  *session.Region `json:"button_coords,omitempty"`
}

type ChatResponse struct {
	Response       string     `json:"response"`
	SessionID      string     `json:"session_id"`
	Mode           string     `json:"mode"`
	Steps          []StepInfo `json:"steps,omitempty"`
	ActionRequired string     `json:"action_required,omitempty"`
}

type StepRequest struct {
	SessionID     string `json:"session_id" validate:"required"`
	UserAction    string `json:"user_action" validate:"required"`
	ScreenshotURL string `json:"screenshot_url"`
}

type StepResponse struct {
	StepText       string          `json:"step_text"`
	StepIndex      int             `json:"step_index"`
	TotalSteps     int             `json:"total_steps"`
	RequiresClick  bool            `json:"requires_click"`
	ButtonCoords   *session.Region `json:"button_coords,omitempty"`
	ActionRequired string          `json:"action_required,omitempty"`
}

type ValidateStepRequest struct {
	SessionID     string `json:"session_id" validate:"required"`
	ScreenshotURL string `json:"screenshot_url" validate:"required"`
	StepIndex     int    `json:"step_index" validate:"min=0"`
}

type ValidateStepResponse struct {
	Valid       bool   `json:"valid"`
	Explanation string `json:"explanation,omitempty"`
}

type SessionStatusResponse struct {
	Mode            string    `json:"mode"`
	CurrentStep     *int      `json:"current_step,omitempty"`
	TotalSteps      *int      `json:"total_steps,omitempty"`
	CurrentStepInfo *StepInfo `json:"current_step_info,omitempty"`
}

type ArchivedTurn struct {
	Query          string    `json:"query"`
	Edition        string    `json:"edition"`
	Response       string    `json:"response"`
	ActionRequired string    `json:"action_required,omitempty"`
	CreatedAt      time.Time `json:"created_at"`
}

type SessionHistoryResponse struct {
	SessionID string         `json:"session_id"`
	Turns     []ArchivedTurn `json:"turns"`
}

// TurnCompletedMessage is the payload published after every completed turn
// and consumed by the archive worker.
type TurnCompletedMessage struct {
	SessionID      string     `json:"session_id"`
	Query          string     `json:"query"`
	Edition        string     `json:"edition"`
	Response       string     `json:"response"`
	ActionRequired string     `json:"action_required,omitempty"`
	Steps          []StepInfo `json:"steps,omitempty"`
	CompletedAt    time.Time  `json:"completed_at"`
}
