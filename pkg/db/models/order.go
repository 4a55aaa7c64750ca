package models

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/angelmondragon/ordersync-backend/pkg/enums"
)

// Order is the orders service's aggregate. Status only ever moves
// NEW -> FINISHED or NEW -> CANCELLED.
type Order struct {
	ID          uuid.UUID         `gorm:"column:id;type:uuid;primaryKey"`
	UserID      uuid.UUID         `gorm:"column:user_id;type:uuid;not null;index"`
	Amount      decimal.Decimal   `gorm:"column:amount;type:numeric(19,2);not null"`
	Description string            `gorm:"column:description"`
	Status      enums.OrderStatus `gorm:"column:status;not null"`
	CreatedAt   time.Time         `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt   *time.Time        `gorm:"column:updated_at"`
}

// TableName keeps the original table name.
func (Order) TableName() string {
	return "order_table"
}
