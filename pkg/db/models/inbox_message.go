package models

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"
)

// InboxMessage records a consumed broker message. The unique message_id is the
// deduplication boundary: a row already present means the effect was applied
// and must not be applied again.
type InboxMessage struct {
	ID         uuid.UUID       `gorm:"column:id;type:uuid;primaryKey"`
	MessageID  string          `gorm:"column:message_id;not null;uniqueIndex:ux_inbox_message_id"`
	Topic      string          `gorm:"column:topic;not null"`
	Payload    json.RawMessage `gorm:"column:payload;type:jsonb;not null"`
	ReceivedAt time.Time       `gorm:"column:received_at;not null"`
	Processed  bool            `gorm:"column:processed;not null;default:false"`
}

// TableName keeps the original table name.
func (InboxMessage) TableName() string {
	return "inbox_message"
}
