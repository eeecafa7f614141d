package service

import (
	"context"
	"encoding/json"
	"log"

	"github.com/ThreeDotsLabs/watermill/message"
	"github.com/ThreeDotsLabs/watermill/pubsub/gochannel"
	"github.com/google/uuid"
	"github.com/pgvector/pgvector-go"
	"gorm.io/datatypes"

	"ableton-smart-assistant/internal/dto"
	"ableton-smart-assistant/internal/entity"
	"ableton-smart-assistant/internal/repository/contract"
	"ableton-smart-assistant/pkg/embedding"
)

type IConsumerService interface {
	Consume(ctx context.Context) error
}

// consumerService archives completed turns off the hot path. Without a
// database it drains the topic and drops the messages, so the publisher side
// never needs to know whether archiving is on.
type consumerService struct {
	pubSub            *gochannel.GoChannel
	topicName         string
	turnRepo          contract.TurnArchiveRepository
	embeddingProvider embedding.Provider
}

func NewConsumerService(
	pubSub *gochannel.GoChannel,
	topicName string,
	turnRepo contract.TurnArchiveRepository,
	embeddingProvider embedding.Provider,
) IConsumerService {
	return &consumerService{
		pubSub:            pubSub,
		topicName:         topicName,
		turnRepo:          turnRepo,
		embeddingProvider: embeddingProvider,
	}
}

func (cs *consumerService) Consume(ctx context.Context) error {
	messages, err := cs.pubSub.Subscribe(ctx, cs.topicName)
	if err != nil {
		return err
	}

	go func() {
		for msg := range messages {
			cs.processMessage(ctx, msg)
		}
	}()

	return nil
}

func (cs *consumerService) processMessage(ctx context.Context, msg *message.Message) {
	var payload dto.TurnCompletedMessage
	if err := json.Unmarshal(msg.Payload, &payload); err != nil {
		log.Printf("[ERROR] Failed to unmarshal turn event: %v", err)
		msg.Ack() // Ack invalid messages to prevent infinite retry
		return
	}

	if cs.turnRepo == nil {
		msg.Ack()
		return
	}

	log.Printf("[INFO] Archiving turn for session %s", payload.SessionID)

	stepsJSON, err := json.Marshal(payload.Steps)
	if err != nil {
		log.Printf("[ERROR] Failed to marshal steps for session %s: %v", payload.SessionID, err)
		msg.Ack()
		return
	}

	turn := &entity.TurnArchive{
		Id:             uuid.New(),
		SessionId:      payload.SessionID,
		Query:          payload.Query,
		Edition:        payload.Edition,
		Response:       payload.Response,
		ActionRequired: payload.ActionRequired,
		Steps:          datatypes.JSON(stepsJSON),
		CreatedAt:      payload.CompletedAt,
	}

	// The query embedding makes the archive searchable by similarity later.
	// Embedding failures are soft: the turn is archived without a vector.
	if cs.embeddingProvider != nil && payload.Query != "" {
		vec, err := cs.embeddingProvider.Generate(ctx, payload.Query)
		if err != nil {
			log.Printf("[WARN] Failed to embed archived query for session %s: %v", payload.SessionID, err)
		} else {
			turn.QueryEmbedding = pgvector.NewVector(vec)
		}
	}

	if err := cs.turnRepo.Create(ctx, turn); err != nil {
		log.Printf("[ERROR] Failed to archive turn for session %s: %v", payload.SessionID, err)
		msg.Nack() // Retriable
		return
	}

	log.Printf("[SUCCESS] Turn archived for session %s", payload.SessionID)
	msg.Ack()
}
