package contract

import (
	"context"

	"ableton-smart-assistant/internal/entity"
)

type TurnArchiveRepository interface {
	Create(ctx context.Context, turn *entity.TurnArchive) error
	FindBySessionId(ctx context.Context, sessionId string) ([]*entity.TurnArchive, error)
}
