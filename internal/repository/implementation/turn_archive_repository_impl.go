package implementation

import (
	"context"

	"gorm.io/gorm"

	"ableton-smart-assistant/internal/entity"
	"ableton-smart-assistant/internal/repository/contract"
)

type TurnArchiveRepositoryImpl struct {
	db *gorm.DB
}

func NewTurnArchiveRepository(db *gorm.DB) contract.TurnArchiveRepository {
	return &TurnArchiveRepositoryImpl{
		db: db,
	}
}

func (r *TurnArchiveRepositoryImpl) Create(ctx context.Context, turn *entity.TurnArchive) error {
	return r.db.WithContext(ctx).Create(turn).Error
}

func (r *TurnArchiveRepositoryImpl) FindBySessionId(ctx context.Context, sessionId string) ([]*entity.TurnArchive, error) {
	var turns []*entity.TurnArchive
	err := r.db.WithContext(ctx).
		Where("session_id = ?", sessionId).
		Order("created_at ASC").
		Find(&turns).Error
	if err != nil {
		return nil, err
	}
	return turns, nil
}
