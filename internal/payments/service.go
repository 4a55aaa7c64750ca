package payments

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"

	"github.com/angelmondragon/ordersync-backend/pkg/db"
	"github.com/angelmondragon/ordersync-backend/pkg/db/models"
	"github.com/angelmondragon/ordersync-backend/pkg/enums"
	pkgerrors "github.com/angelmondragon/ordersync-backend/pkg/errors"
	"github.com/angelmondragon/ordersync-backend/pkg/events"
	"github.com/angelmondragon/ordersync-backend/pkg/logger"
	"github.com/angelmondragon/ordersync-backend/pkg/outbox"
)

type txRunner interface {
	WithTx(ctx context.Context, fn func(tx *gorm.DB) error) error
}

type outboxPublisher interface {
	Emit(ctx context.Context, tx *gorm.DB, event outbox.DomainEvent) error
}

// Service defines account-level operations plus order payment processing.
type Service interface {
	CreateAccount(ctx context.Context, userID uuid.UUID) (*models.Account, error)
	TopUpBalance(ctx context.Context, input TopUpInput) (*models.Account, error)
	GetBalance(ctx context.Context, userID uuid.UUID) (*AccountView, error)
	ProcessOrderPayment(ctx context.Context, tx *gorm.DB, order events.OrderCreated) error
}

type service struct {
	repo   Repository
	tx     txRunner
	outbox outboxPublisher
	logg   *logger.Logger
}

// NewService builds a payments service with the required dependencies.
func NewService(repo Repository, tx txRunner, outboxSvc outboxPublisher, logg *logger.Logger) (Service, error) {
	if repo == nil {
		return nil, fmt.Errorf("payments repository required")
	}
	if tx == nil {
		return nil, fmt.Errorf("transaction runner required")
	}
	if outboxSvc == nil {
		return nil, fmt.Errorf("outbox publisher required")
	}
	return &service{
		repo:   repo,
		tx:     tx,
		outbox: outboxSvc,
		logg:   logg,
	}, nil
}

func (s *service) CreateAccount(ctx context.Context, userID uuid.UUID) (*models.Account, error) {
	if userID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "user id required")
	}

	account := &models.Account{
		UserID:  userID,
		Balance: decimal.Zero,
	}
	if _, err := s.repo.CreateAccount(ctx, account); err != nil {
		if db.IsUniqueViolation(err, "") {
			return nil, pkgerrors.New(pkgerrors.CodeConflict, "account already exists")
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "create account")
	}

	if s.logg != nil {
		s.logg.Info(s.logg.WithFields(ctx, map[string]any{
			"user_id": userID.String(),
		}), "account created")
	}
	return account, nil
}

func (s *service) TopUpBalance(ctx context.Context, input TopUpInput) (*models.Account, error) {
	if input.UserID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "user id required")
	}
	if !input.Amount.GreaterThan(decimal.Zero) {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "amount must be positive")
	}

	var updated *models.Account
	err := s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		repo := s.repo.WithTx(tx)
		account, err := repo.FindAccountForUpdate(ctx, input.UserID)
		if err != nil {
			if err == gorm.ErrRecordNotFound {
				return pkgerrors.New(pkgerrors.CodeNotFound, "account not found")
			}
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load account")
		}
		account.Balance = account.Balance.Add(input.Amount)
		if err := repo.UpdateBalance(ctx, account.UserID, account.Balance); err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "update balance")
		}
		updated = account
		return nil
	})
	if err != nil {
		return nil, err
	}

	if s.logg != nil {
		s.logg.Info(s.logg.WithFields(ctx, map[string]any{
			"user_id": input.UserID.String(),
			"amount":  input.Amount.String(),
		}), "balance topped up")
	}
	return updated, nil
}

func (s *service) GetBalance(ctx context.Context, userID uuid.UUID) (*AccountView, error) {
	if userID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "user id required")
	}
	account, err := s.repo.FindAccount(ctx, userID)
	if err != nil {
		if err == gorm.ErrRecordNotFound {
			return nil, pkgerrors.New(pkgerrors.CodeNotFound, "account not found")
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load account")
	}
	return &AccountView{UserID: account.UserID, Balance: account.Balance}, nil
}

// ProcessOrderPayment debits the buyer's account and queues the outcome event
// on the caller's transaction. It always reaches a decision: business-rule
// failures become FAILURE outcomes rather than errors, so the order never
// hangs in NEW. Only infrastructure errors propagate, which rolls the
// consumer's transaction back and lets the broker redeliver.
func (s *service) ProcessOrderPayment(ctx context.Context, tx *gorm.DB, order events.OrderCreated) error {
	if tx == nil {
		return pkgerrors.New(pkgerrors.CodeInternal, "transaction required")
	}
	if order.ID == uuid.Nil {
		return pkgerrors.New(pkgerrors.CodeValidation, "order id required")
	}

	repo := s.repo.WithTx(tx)
	outcome, err := s.decideOutcome(ctx, repo, order)
	if err != nil {
		return err
	}

	if s.logg != nil {
		fields := map[string]any{
			"order_id":       order.ID.String(),
			"payment_id":     outcome.PaymentID.String(),
			"payment_status": string(outcome.PaymentStatus),
		}
		if outcome.Reason != nil {
			fields["reason"] = *outcome.Reason
		}
		s.logg.Info(s.logg.WithFields(ctx, fields), "order payment processed")
	}

	eventType := enums.EventPaymentSuccess
	if outcome.PaymentStatus == enums.PaymentStatusFailure {
		eventType = enums.EventPaymentFailed
	}
	return s.outbox.Emit(ctx, tx, outbox.DomainEvent{
		EventType:     eventType,
		AggregateType: enums.AggregatePayment,
		AggregateID:   outcome.PaymentID,
		Data:          outcome,
	})
}

func (s *service) decideOutcome(ctx context.Context, repo Repository, order events.OrderCreated) (events.PaymentProcessed, error) {
	if order.UserID == uuid.Nil || !order.Amount.GreaterThan(decimal.Zero) {
		// Malformed business data cannot succeed on retry either; settle it.
		return events.NewPaymentFailed(order.ID, order.UserID, order.Amount, enums.FailureReasonInternalError), nil
	}

	account, err := repo.FindAccountForUpdate(ctx, order.UserID)
	if err != nil {
		if err == gorm.ErrRecordNotFound {
			return events.NewPaymentFailed(order.ID, order.UserID, order.Amount, enums.FailureReasonAccountNotFound), nil
		}
		return events.PaymentProcessed{}, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load account")
	}

	if account.Balance.LessThan(order.Amount) {
		return events.NewPaymentFailed(order.ID, order.UserID, order.Amount, enums.FailureReasonInsufficientFunds), nil
	}

	newBalance := account.Balance.Sub(order.Amount)
	if err := repo.UpdateBalance(ctx, account.UserID, newBalance); err != nil {
		return events.PaymentProcessed{}, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "debit account")
	}
	return events.NewPaymentSucceeded(order.ID, order.UserID, order.Amount), nil
}
