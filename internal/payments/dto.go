package payments

import (
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// AccountView is the balance projection returned by the accounts API.
type AccountView struct {
	UserID  uuid.UUID       `json:"user_id"`
	Balance decimal.Decimal `json:"balance"`
}

// TopUpInput carries a balance top-up request.
type TopUpInput struct {
	UserID uuid.UUID
	Amount decimal.Decimal
}
