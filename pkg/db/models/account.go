package models

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// Account is the payments service's ledger row: one per user, balance never
// negative. Mutated only by top-ups and payment debits inside their own
// transactions.
type Account struct {
	UserID    uuid.UUID       `gorm:"column:user_id;type:uuid;primaryKey"`
	Balance   decimal.Decimal `gorm:"column:balance;type:numeric(19,2);not null"`
	CreatedAt time.Time       `gorm:"column:created_at;not null;autoCreateTime"`
	UpdatedAt *time.Time      `gorm:"column:updated_at;autoUpdateTime:false"`
}

// TableName keeps the original table name.
func (Account) TableName() string {
	return "account"
}
