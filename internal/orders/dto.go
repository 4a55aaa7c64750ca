package orders

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/angelmondragon/ordersync-backend/pkg/enums"
)

// CreateOrderInput carries the request data for a new order.
type CreateOrderInput struct {
	UserID      uuid.UUID
	Amount      decimal.Decimal
	Description string
}

// OrderFilters describe the inputs supported by the orders list.
type OrderFilters struct {
	UserID *uuid.UUID
	Status *enums.OrderStatus
}

// OrderSummary exposes the fields returned in the orders list.
type OrderSummary struct {
	ID          uuid.UUID         `json:"id"`
	UserID      uuid.UUID         `json:"user_id"`
	Amount      decimal.Decimal   `json:"amount"`
	Description string            `json:"description,omitempty"`
	Status      enums.OrderStatus `json:"status"`
	CreatedAt   time.Time         `json:"created_at"`
}

// OrderList wraps the paginated orders plus the next page cursor.
type OrderList struct {
	Orders     []OrderSummary `json:"orders"`
	NextCursor string         `json:"next_cursor,omitempty"`
}

// PaymentOutcomeInput is what the payment.processed consumer hands the
// service after decoding a broker message.
type PaymentOutcomeInput struct {
	OrderID   uuid.UUID
	PaymentID uuid.UUID
	Status    enums.PaymentStatus
	Reason    *string
}
