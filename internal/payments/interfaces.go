package payments

import (
	"context"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"

	"github.com/angelmondragon/ordersync-backend/pkg/db/models"
)

// Repository defines persistence operations for the account table.
type Repository interface {
	WithTx(tx *gorm.DB) Repository
	CreateAccount(ctx context.Context, account *models.Account) (*models.Account, error)
	FindAccount(ctx context.Context, userID uuid.UUID) (*models.Account, error)
	// FindAccountForUpdate locks the row for the duration of the transaction
	// so concurrent debits cannot both pass the balance check.
	FindAccountForUpdate(ctx context.Context, userID uuid.UUID) (*models.Account, error)
	UpdateBalance(ctx context.Context, userID uuid.UUID, balance decimal.Decimal) error
}
