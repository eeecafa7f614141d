package service

import (
	"context"
	"io"
	"log"
	"sync"
	"testing"
	"time"

	"github.com/ThreeDotsLabs/watermill"
	"github.com/ThreeDotsLabs/watermill/pubsub/gochannel"
	"github.com/gofiber/fiber/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"ableton-smart-assistant/internal/dto"
	"ableton-smart-assistant/internal/entity"
	"ableton-smart-assistant/internal/repository/contract"
	"ableton-smart-assistant/internal/repository/memory"
	"ableton-smart-assistant/pkg/guide/answer"
	"ableton-smart-assistant/pkg/guide/interaction"
	"ableton-smart-assistant/pkg/guide/session"
	"ableton-smart-assistant/pkg/guide/validate"
	"ableton-smart-assistant/pkg/guide/workflow"
	"ableton-smart-assistant/pkg/retrieval"
	"ableton-smart-assistant/pkg/screenshot"
)

type noopLogger struct{}

func (noopLogger) Debug(string, string, map[string]interface{}) {}
func (noopLogger) Info(string, string, map[string]interface{})  {}
func (noopLogger) Warn(string, string, map[string]interface{})  {}
func (noopLogger) Error(string, string, map[string]interface{}) {}
func (noopLogger) Sync() error                                  { return nil }

type fakeTurnRepo struct {
	mu    sync.Mutex
	turns []*entity.TurnArchive
	err   error
}

func (r *fakeTurnRepo) Create(_ context.Context, turn *entity.TurnArchive) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.turns = append(r.turns, turn)
	return nil
}

func (r *fakeTurnRepo) FindBySessionId(_ context.Context, sessionId string) ([]*entity.TurnArchive, error) {
	if r.err != nil {
		return nil, r.err
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []*entity.TurnArchive
	for _, turn := range r.turns {
		if turn.SessionId == sessionId {
			out = append(out, turn)
		}
	}
	return out, nil
}

// newTestService wires the service over an empty knowledge store with no
// model backends, so every turn resolves deterministically to a direct answer.
func newTestService(t *testing.T, turns contract.TurnArchiveRepository) IAssistantService {
	t.Helper()
	l := log.New(io.Discard, "", 0)
	store := retrieval.NewStoreFromFragments(nil, nil)
	shots := screenshot.NewResolver()
	classifier := interaction.NewClassifier(nil, nil, shots, l)
	validator := validate.NewValidator(nil, shots, l)
	synth := answer.NewSynthesizer(nil, l)
	wf := workflow.New(nil, store, synth, classifier, validator, nil, l)
	pubSub := gochannel.NewGoChannel(gochannel.Config{}, watermill.NopLogger{})
	publisher := NewPublisherService("TURN_COMPLETED", pubSub, nil)
	return NewAssistantService(memory.NewSessionRepository(), turns, wf, classifier, validator, publisher, noopLogger{})
}

func TestChatSerializesTurnsPerSession(t *testing.T) {
	svc := newTestService(t, nil)

	var wg sync.WaitGroup
	for i := 0; i < 16; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := svc.Chat(context.Background(), &dto.ChatRequest{
				Message:        "How do I add reverb?",
				SessionID:      "s1",
				AbletonEdition: "Suite",
			})
			assert.NoError(t, err)
		}()
	}
	wg.Wait()

	status, err := svc.SessionStatus(context.Background(), "s1")
	require.NoError(t, err)
	assert.Equal(t, session.ModeDirectAnswer, status.Mode)
}

func TestSessionHistoryReturnsArchivedTurns(t *testing.T) {
	now := time.Now()
	repo := &fakeTurnRepo{turns: []*entity.TurnArchive{
		{SessionId: "s1", Query: "How do I add reverb?", Edition: "Suite", Response: "Use the Audio Effects browser.", CreatedAt: now},
		{SessionId: "other", Query: "unrelated", CreatedAt: now},
	}}
	svc := newTestService(t, repo)

	res, err := svc.SessionHistory(context.Background(), "s1")
	require.NoError(t, err)
	assert.Equal(t, "s1", res.SessionID)
	require.Len(t, res.Turns, 1)
	assert.Equal(t, "How do I add reverb?", res.Turns[0].Query)
	assert.Equal(t, "Use the Audio Effects browser.", res.Turns[0].Response)
}

func TestSessionHistoryUnavailableWithoutDatabase(t *testing.T) {
	svc := newTestService(t, nil)

	_, err := svc.SessionHistory(context.Background(), "s1")
	var fiberErr *fiber.Error
	require.ErrorAs(t, err, &fiberErr)
	assert.Equal(t, fiber.StatusServiceUnavailable, fiberErr.Code)
}
