package entity

import (
	"time"

	"github.com/google/uuid"
	"github.com/pgvector/pgvector-go"
	"gorm.io/datatypes"
)

// TurnArchive is one completed conversation turn persisted for offline
// analysis. Written asynchronously by the consumer worker; read back only by
// the session history endpoint, never by the live workflow.
type TurnArchive struct {
	Id             uuid.UUID `gorm:"type:uuid;primaryKey"`
	SessionId      string    `gorm:"index"`
	Query          string
	Edition        string
	Response       string
	ActionRequired string
	Steps          datatypes.JSON
	QueryEmbedding pgvector.Vector `gorm:"type:vector(3072)"` // text-embedding-3-large dimensions
	CreatedAt      time.Time
}

func (TurnArchive) TableName() string {
	return "turn_archives"
}
