package service

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"

	"ableton-smart-assistant/internal/dto"
	"ableton-smart-assistant/internal/pkg/logger"
	"ableton-smart-assistant/internal/repository/contract"
	"ableton-smart-assistant/pkg/guide/interaction"
	"ableton-smart-assistant/pkg/guide/session"
	"ableton-smart-assistant/pkg/guide/validate"
	"ableton-smart-assistant/pkg/guide/workflow"
)

type IAssistantService interface {
	Chat(ctx context.Context, req *dto.ChatRequest) (*dto.ChatResponse, error)
	ChatStepByStep(ctx context.Context, req *dto.StepByStepRequest) (*dto.ChatResponse, error)
	Step(ctx context.Context, req *dto.StepRequest) (*dto.StepResponse, error)
	ValidateStep(ctx context.Context, req *dto.ValidateStepRequest) (*dto.ValidateStepResponse, error)
	SessionStatus(ctx context.Context, sessionID string) (*dto.SessionStatusResponse, error)
	SessionHistory(ctx context.Context, sessionID string) (*dto.SessionHistoryResponse, error)
}

type assistantService struct {
	sessions   contract.SessionRepository
	turns      contract.TurnArchiveRepository
	workflow   *workflow.Workflow
	classifier *interaction.Classifier
	validator  *validate.Validator
	publisher  IPublisherService
	sysLogger  logger.ILogger
	locks      sessionLocks
}

func NewAssistantService(
	sessions contract.SessionRepository,
	turns contract.TurnArchiveRepository,
	wf *workflow.Workflow,
	classifier *interaction.Classifier,
	validator *validate.Validator,
	publisher IPublisherService,
	sysLogger logger.ILogger,
) IAssistantService {
	return &assistantService{
		sessions:   sessions,
		turns:      turns,
		workflow:   wf,
		classifier: classifier,
		validator:  validator,
		publisher:  publisher,
		sysLogger:  sysLogger,
		locks:      sessionLocks{byID: make(map[string]*sync.Mutex)},
	}
}

// sessionLocks serializes turns per session ID. The transport runs handlers
// concurrently, while sessions are mutated in place by the workflow, so the
// whole Get-Run-Save sequence of a turn must hold the ID's lock.
type sessionLocks struct {
	mu   sync.Mutex
	byID map[string]*sync.Mutex
}

func (l *sessionLocks) lock(id string) func() {
	l.mu.Lock()
	m, ok := l.byID[id]
	if !ok {
		m = &sync.Mutex{}
		l.byID[id] = m
	}
	l.mu.Unlock()
	m.Lock()
	return m.Unlock
}

// Chat is the main conversational turn. While the session awaits input the
// incoming message is the user's decision and the original query is kept;
// otherwise the message replaces the query and a fresh walk begins.
func (s *assistantService) Chat(ctx context.Context, req *dto.ChatRequest) (*dto.ChatResponse, error) {
	sessionID := req.SessionID
	if sessionID == "" {
		sessionID = uuid.New().String()
	}
	unlock := s.locks.lock(sessionID)
	defer unlock()

	sess, found := s.sessions.Get(sessionID)
	if !found {
		sess = session.New(sessionID, req.Message, req.AbletonEdition)
	}
	refreshSession(sess, req.History, req.ScreenshotURL, req.AbletonEdition)

	if strings.EqualFold(strings.TrimSpace(req.Message), "show_button") && req.ScreenshotURL != "" {
		return s.showButton(ctx, sess)
	}

	if sess.AwaitingStage != "" {
		sess.LastDecision = req.Message
	} else {
		sess.Query = req.Message
		sess.LastDecision = ""
		sess.SeededAnswer = false
	}

	text := s.workflow.Run(ctx, sess)
	s.sessions.Save(sess)
	s.publishTurn(ctx, sess, text)

	s.sysLogger.Info("assistant", "Chat turn completed", map[string]interface{}{
		"session_id":      sess.ID,
		"mode":            sess.Mode,
		"action_required": sess.AwaitingStage,
		"steps":           len(sess.Steps),
	})

	return s.chatResponse(sess, text), nil
}

// ChatStepByStep seeds (or reseeds) a session with an answer produced by an
// external retrieval pipeline and enters the walk at step extraction. The
// supplied answer is kept verbatim.
func (s *assistantService) ChatStepByStep(ctx context.Context, req *dto.StepByStepRequest) (*dto.ChatResponse, error) {
	sessionID := req.SessionID
	if sessionID == "" {
		sessionID = uuid.New().String()
	}
	unlock := s.locks.lock(sessionID)
	defer unlock()

	sess, found := s.sessions.Get(sessionID)
	if !found {
		sess = session.New(sessionID, req.Message, req.AbletonEdition)
	}
	refreshSession(sess, req.History, req.ScreenshotURL, req.AbletonEdition)

	sess.Query = req.Message
	sess.Answer = req.RagAnswer
	sess.SeededAnswer = true
	sess.Intent = session.IntentAbletonQuestion
	sess.SetVerdict(true, "")
	sess.Fragments = nil
	sess.Steps = nil
	sess.Cursor = 0
	sess.AwaitingStage = ""
	sess.LastDecision = ""

	text := s.workflow.Run(ctx, sess)
	s.sessions.Save(sess)
	s.publishTurn(ctx, sess, text)

	return s.chatResponse(sess, text), nil
}

// Step drives the step-by-step walk: next/skip/cancel/done plus free-text
// completion reports, and the "review" re-entry after a failed walkthrough.
func (s *assistantService) Step(ctx context.Context, req *dto.StepRequest) (*dto.StepResponse, error) {
	unlock := s.locks.lock(req.SessionID)
	defer unlock()

	sess, found := s.sessions.Get(req.SessionID)
	if !found {
		return nil, fiber.NewError(fiber.StatusNotFound, "Session not found")
	}
	if len(sess.Steps) == 0 {
		return nil, fiber.NewError(fiber.StatusBadRequest, "Session has no steps")
	}

	if req.ScreenshotURL != "" {
		sess.ScreenshotRef = req.ScreenshotURL
	}
	sess.LastDecision = req.UserAction

	var text string
	if strings.EqualFold(strings.TrimSpace(req.UserAction), "review") {
		sess.AwaitingStage = ""
		text = s.workflow.RunFrom(ctx, sess, workflow.StageFallbackReview)
	} else {
		if sess.AwaitingStage == "" {
			if sess.Cursor >= len(sess.Steps) {
				return nil, fiber.NewError(fiber.StatusBadRequest, "No more steps")
			}
			sess.AwaitingStage = session.AwaitUserAction
		}
		resumedFromAction := sess.AwaitingStage == session.AwaitUserAction
		prevCursor := sess.Cursor

		text = s.workflow.Run(ctx, sess)

		// The one self-healing case: still walking but the cursor failed to
		// move. Force it forward once and re-present.
		if resumedFromAction && sess.AwaitingStage == session.AwaitUserAction && sess.Cursor == prevCursor {
			s.sysLogger.Warn("assistant", "Cursor did not advance, forcing", map[string]interface{}{
				"session_id": sess.ID,
				"cursor":     prevCursor,
			})
			sess.Cursor = prevCursor + 1
			sess.AwaitingStage = ""
			sess.LastDecision = ""
			if sess.Cursor < len(sess.Steps) {
				text = s.workflow.RunFrom(ctx, sess, workflow.StageClassifyInteraction)
			} else {
				sess.Cursor = len(sess.Steps)
				text = s.workflow.RunFrom(ctx, sess, workflow.StageFinalConfirmation)
			}
		}
	}

	s.sessions.Save(sess)
	s.publishTurn(ctx, sess, text)

	idx := sess.Cursor
	if idx >= len(sess.Steps) {
		idx = len(sess.Steps) - 1
	}
	step := sess.Steps[idx]

	return &dto.StepResponse{
		StepText:       text,
		StepIndex:      idx,
		TotalSteps:     len(sess.Steps),
		RequiresClick:  step.RequiresClick,
		ButtonCoords:   step.Region,
		ActionRequired: sess.AwaitingStage,
	}, nil
}

// ValidateStep checks an arbitrary step against a screenshot without touching
// the live walk state.
func (s *assistantService) ValidateStep(ctx context.Context, req *dto.ValidateStepRequest) (*dto.ValidateStepResponse, error) {
	unlock := s.locks.lock(req.SessionID)
	defer unlock()

	sess, found := s.sessions.Get(req.SessionID)
	if !found {
		return nil, fiber.NewError(fiber.StatusNotFound, "Session not found")
	}
	if req.StepIndex >= len(sess.Steps) {
		return nil, fiber.NewError(fiber.StatusBadRequest, "Invalid step index")
	}

	scratch := *sess
	scratch.Cursor = req.StepIndex
	scratch.ScreenshotRef = req.ScreenshotURL
	scratch.LastDecision = ""
	scratch.ResponseText = ""

	s.validator.Check(ctx, &scratch)

	if strings.HasPrefix(scratch.ResponseText, validate.WarningPrefix) {
		return &dto.ValidateStepResponse{Valid: false, Explanation: scratch.ResponseText}, nil
	}
	return &dto.ValidateStepResponse{Valid: true}, nil
}

func (s *assistantService) SessionStatus(_ context.Context, sessionID string) (*dto.SessionStatusResponse, error) {
	unlock := s.locks.lock(sessionID)
	defer unlock()

	sess, found := s.sessions.Get(sessionID)
	if !found {
		return nil, fiber.NewError(fiber.StatusNotFound, "Session not found")
	}

	resp := &dto.SessionStatusResponse{Mode: sess.Mode}
	if sess.Mode == session.ModeStepByStep && len(sess.Steps) > 0 {
		cur := sess.Cursor
		total := len(sess.Steps)
		resp.CurrentStep = &cur
		resp.TotalSteps = &total
		if cur < total {
			info := toStepInfo(sess.Steps[cur])
			resp.CurrentStepInfo = &info
		}
	}
	return resp, nil
}

// SessionHistory returns the archived turns of a session, oldest first.
// Available only when a database is configured.
func (s *assistantService) SessionHistory(ctx context.Context, sessionID string) (*dto.SessionHistoryResponse, error) {
	if s.turns == nil {
		return nil, fiber.NewError(fiber.StatusServiceUnavailable, "Turn history is not available")
	}

	archived, err := s.turns.FindBySessionId(ctx, sessionID)
	if err != nil {
		s.sysLogger.Error("assistant", "Failed to load turn history", map[string]interface{}{
			"session_id": sessionID,
			"error":      err,
		})
		return nil, fiber.NewError(fiber.StatusInternalServerError, "Failed to load turn history")
	}

	turns := make([]dto.ArchivedTurn, 0, len(archived))
	for _, turn := range archived {
		turns = append(turns, dto.ArchivedTurn{
			Query:          turn.Query,
			Edition:        turn.Edition,
			Response:       turn.Response,
			ActionRequired: turn.ActionRequired,
			CreatedAt:      turn.CreatedAt,
		})
	}

	return &dto.SessionHistoryResponse{SessionID: sessionID, Turns: turns}, nil
}

// showButton re-runs screenshot analysis for the current step on request.
func (s *assistantService) showButton(ctx context.Context, sess *session.Session) (*dto.ChatResponse, error) {
	step := sess.CurrentStep()
	if step == nil {
		return nil, fiber.NewError(fiber.StatusBadRequest, "No active step to locate")
	}

	s.classifier.Locate(ctx, sess)

	text := fmt.Sprintf("Step %d of %d:\n%s", sess.Cursor+1, len(sess.Steps), step.Text)
	if step.Region != nil {
		text += fmt.Sprintf("\n\nButton location: x=%d, y=%d", step.Region.X, step.Region.Y)
	} else {
		text += "\n\nCould not locate the button on this screenshot."
	}

	sess.AwaitingStage = session.AwaitUserAction
	sess.ResponseText = text
	s.sessions.Save(sess)

	return s.chatResponse(sess, text), nil
}

func (s *assistantService) chatResponse(sess *session.Session, text string) *dto.ChatResponse {
	return &dto.ChatResponse{
		Response:       text,
		SessionID:      sess.ID,
		Mode:           sess.Mode,
		Steps:          toStepInfos(sess.Steps),
		ActionRequired: sess.AwaitingStage,
	}
}

func (s *assistantService) publishTurn(ctx context.Context, sess *session.Session, text string) {
	s.publisher.PublishTurnCompleted(ctx, &dto.TurnCompletedMessage{
		SessionID:      sess.ID,
		Query:          sess.Query,
		Edition:        sess.Edition,
		Response:       text,
		ActionRequired: sess.AwaitingStage,
		Steps:          toStepInfos(sess.Steps),
		CompletedAt:    time.Now(),
	})
}

func refreshSession(sess *session.Session, history []dto.ConversationEntry, screenshotURL, edition string) {
	entries := make([]session.HistoryEntry, 0, len(history))
	for _, h := range history {
		entries = append(entries, session.HistoryEntry{
			Role:          h.Role,
			Text:          h.Text,
			ScreenshotRef: h.ScreenshotURL,
		})
	}
	sess.History = entries
	sess.ScreenshotRef = screenshotURL
	if edition != "" {
		sess.Edition = edition
	}
}

func toStepInfo(step *session.Step) dto.StepInfo {
	return dto.StepInfo{
		Text:          step.Text,
		RequiresClick: step.RequiresClick,
		ButtonCoords:  step.Region,
	}
}

func toStepInfos(steps []*session.Step) []dto.StepInfo {
	if len(steps) == 0 {
		return nil
	}
	infos := make([]dto.StepInfo, 0, len(steps))
	for _, step := range steps {
		infos = append(infos, toStepInfo(step))
	}
	return infos
}
