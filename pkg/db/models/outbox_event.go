package models

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"

	"github.com/angelmondragon/ordersync-backend/pkg/enums"
)

// OutboxEvent is an append-only record of a domain event awaiting publication.
// It is written in the same transaction as the business mutation it announces
// and flipped to processed only after the broker confirms the publish. Rows are
// retained indefinitely for audit.
type OutboxEvent struct {
	ID            uuid.UUID                 `gorm:"column:id;type:uuid;primaryKey"`
	AggregateType enums.OutboxAggregateType `gorm:"column:aggregate_type;not null"`
	AggregateID   uuid.UUID                 `gorm:"column:aggregate_id;type:uuid;not null"`
	EventType     enums.OutboxEventType     `gorm:"column:event_type;not null"`
	Payload       json.RawMessage           `gorm:"column:payload;type:jsonb;not null"`
	OccurredOn    time.Time                 `gorm:"column:occurred_on;not null;index"`
	Processed     bool                      `gorm:"column:processed;not null;default:false"`
	AttemptCount  int                       `gorm:"column:attempt_count;not null;default:0"`
	LastError     *string                   `gorm:"column:last_error"`
}

// TableName keeps the original table name.
func (OutboxEvent) TableName() string {
	return "outbox_event"
}
