package service

import (
	"context"
	"encoding/json"
	"log"

	"github.com/ThreeDotsLabs/watermill"
	"github.com/ThreeDotsLabs/watermill/message"
	"github.com/ThreeDotsLabs/watermill/pubsub/gochannel"

	"ableton-smart-assistant/internal/dto"
	"ableton-smart-assistant/pkg/events"
	pkgNats "ableton-smart-assistant/pkg/nats"
)

type IPublisherService interface {
	PublishTurnCompleted(ctx context.Context, msg *dto.TurnCompletedMessage)
}

// publisherService fans a completed turn out to the in-process bus (for the
// archive consumer) and mirrors it to NATS when a publisher is configured.
// Publishing is fire-and-forget: a broken bus must never fail a user turn.
type publisherService struct {
	topicName string
	pubSub    *gochannel.GoChannel
	natsPub   *pkgNats.Publisher
}

func NewPublisherService(topicName string, pubSub *gochannel.GoChannel, natsPub *pkgNats.Publisher) IPublisherService {
	return &publisherService{
		topicName: topicName,
		pubSub:    pubSub,
		natsPub:   natsPub,
	}
}

func (p *publisherService) PublishTurnCompleted(ctx context.Context, msg *dto.TurnCompletedMessage) {
	payload, err := json.Marshal(msg)
	if err != nil {
		log.Printf("[ERROR] Failed to marshal turn event: %v", err)
		return
	}

	wmMsg := message.NewMessage(watermill.NewUUID(), payload)
	if err := p.pubSub.Publish(p.topicName, wmMsg); err != nil {
		log.Printf("[ERROR] Failed to publish turn event: %v", err)
	}

	if p.natsPub != nil {
		event := events.NewTurnCompleted(msg.SessionID, map[string]interface{}{
			"query":           msg.Query,
			"edition":         msg.Edition,
			"action_required": msg.ActionRequired,
			"completed_at":    msg.CompletedAt,
		})
		if err := p.natsPub.Publish(ctx, event); err != nil {
			log.Printf("[WARN] Failed to mirror turn event to NATS: %v", err)
		}
	}
}
