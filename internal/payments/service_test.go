package payments

import (
	"context"
	"errors"
	"testing"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"

	"github.com/angelmondragon/ordersync-backend/pkg/db/models"
	"github.com/angelmondragon/ordersync-backend/pkg/enums"
	pkgerrors "github.com/angelmondragon/ordersync-backend/pkg/errors"
	"github.com/angelmondragon/ordersync-backend/pkg/events"
	"github.com/angelmondragon/ordersync-backend/pkg/outbox"
)

type stubPaymentsRepo struct {
	account        *models.Account
	createdAccount *models.Account
	createErr      error
	findErr        error
	updateErr      error
	updatedBalance decimal.Decimal
	updatedUserID  uuid.UUID
}

func (s *stubPaymentsRepo) WithTx(tx *gorm.DB) Repository {
	return s
}

func (s *stubPaymentsRepo) CreateAccount(ctx context.Context, account *models.Account) (*models.Account, error) {
	if s.createErr != nil {
		return nil, s.createErr
	}
	s.createdAccount = account
	return account, nil
}

func (s *stubPaymentsRepo) FindAccount(ctx context.Context, userID uuid.UUID) (*models.Account, error) {
	return s.findAccount(userID)
}

func (s *stubPaymentsRepo) FindAccountForUpdate(ctx context.Context, userID uuid.UUID) (*models.Account, error) {
	return s.findAccount(userID)
}

func (s *stubPaymentsRepo) findAccount(userID uuid.UUID) (*models.Account, error) {
	if s.findErr != nil {
		return nil, s.findErr
	}
	if s.account == nil || s.account.UserID != userID {
		return nil, gorm.ErrRecordNotFound
	}
	// copy so balance mutations stay visible only after UpdateBalance
	copied := *s.account
	return &copied, nil
}

func (s *stubPaymentsRepo) UpdateBalance(ctx context.Context, userID uuid.UUID, balance decimal.Decimal) error {
	if s.updateErr != nil {
		return s.updateErr
	}
	s.updatedUserID = userID
	s.updatedBalance = balance
	if s.account != nil && s.account.UserID == userID {
		s.account.Balance = balance
	}
	return nil
}

type stubOutboxPublisher struct {
	event  outbox.DomainEvent
	called bool
	err    error
}

func (s *stubOutboxPublisher) Emit(ctx context.Context, tx *gorm.DB, event outbox.DomainEvent) error {
	if s.err != nil {
		return s.err
	}
	s.called = true
	s.event = event
	return nil
}

type stubTxRunner struct{}

func (stubTxRunner) WithTx(ctx context.Context, fn func(tx *gorm.DB) error) error {
	return fn(nil)
}

func money(value string) decimal.Decimal {
	return decimal.RequireFromString(value)
}

func TestCreateAccount(t *testing.T) {
	repo := &stubPaymentsRepo{}
	svc, err := NewService(repo, stubTxRunner{}, &stubOutboxPublisher{}, nil)
	if err != nil {
		t.Fatalf("NewService: %v", err)
	}

	userID := uuid.New()
	account, err := svc.CreateAccount(context.Background(), userID)
	if err != nil {
		t.Fatalf("CreateAccount: %v", err)
	}
	if account.UserID != userID {
		t.Fatalf("unexpected user id %s", account.UserID)
	}
	if !account.Balance.IsZero() {
		t.Fatalf("expected zero starting balance, got %s", account.Balance)
	}
}

func TestCreateAccountConflict(t *testing.T) {
	repo := &stubPaymentsRepo{createErr: errors.New(`duplicate key value violates unique constraint "account_pkey"`)}
	svc, _ := NewService(repo, stubTxRunner{}, &stubOutboxPublisher{}, nil)

	_, err := svc.CreateAccount(context.Background(), uuid.New())
	assertCode(t, err, pkgerrors.CodeConflict)
}

func TestTopUpBalance(t *testing.T) {
	userID := uuid.New()
	repo := &stubPaymentsRepo{account: &models.Account{UserID: userID, Balance: money("10.00")}}
	svc, _ := NewService(repo, stubTxRunner{}, &stubOutboxPublisher{}, nil)

	account, err := svc.TopUpBalance(context.Background(), TopUpInput{UserID: userID, Amount: money("5.50")})
	if err != nil {
		t.Fatalf("TopUpBalance: %v", err)
	}
	if !account.Balance.Equal(money("15.50")) {
		t.Fatalf("expected balance 15.50, got %s", account.Balance)
	}
	if !repo.updatedBalance.Equal(money("15.50")) {
		t.Fatalf("expected persisted balance 15.50, got %s", repo.updatedBalance)
	}
}

func TestTopUpBalanceValidation(t *testing.T) {
	svc, _ := NewService(&stubPaymentsRepo{}, stubTxRunner{}, &stubOutboxPublisher{}, nil)

	_, err := svc.TopUpBalance(context.Background(), TopUpInput{Amount: money("5")})
	assertCode(t, err, pkgerrors.CodeValidation)

	_, err = svc.TopUpBalance(context.Background(), TopUpInput{UserID: uuid.New(), Amount: money("0")})
	assertCode(t, err, pkgerrors.CodeValidation)

	_, err = svc.TopUpBalance(context.Background(), TopUpInput{UserID: uuid.New(), Amount: money("-2")})
	assertCode(t, err, pkgerrors.CodeValidation)
}

func TestTopUpBalanceUnknownAccount(t *testing.T) {
	svc, _ := NewService(&stubPaymentsRepo{}, stubTxRunner{}, &stubOutboxPublisher{}, nil)
	_, err := svc.TopUpBalance(context.Background(), TopUpInput{UserID: uuid.New(), Amount: money("5")})
	assertCode(t, err, pkgerrors.CodeNotFound)
}

func TestGetBalance(t *testing.T) {
	userID := uuid.New()
	repo := &stubPaymentsRepo{account: &models.Account{UserID: userID, Balance: money("42.00")}}
	svc, _ := NewService(repo, stubTxRunner{}, &stubOutboxPublisher{}, nil)

	view, err := svc.GetBalance(context.Background(), userID)
	if err != nil {
		t.Fatalf("GetBalance: %v", err)
	}
	if !view.Balance.Equal(money("42.00")) {
		t.Fatalf("expected 42.00, got %s", view.Balance)
	}

	_, err = svc.GetBalance(context.Background(), uuid.New())
	assertCode(t, err, pkgerrors.CodeNotFound)
}

func TestProcessOrderPaymentSuccess(t *testing.T) {
	userID := uuid.New()
	repo := &stubPaymentsRepo{account: &models.Account{UserID: userID, Balance: money("100.00")}}
	outboxStub := &stubOutboxPublisher{}
	svc, _ := NewService(repo, stubTxRunner{}, outboxStub, nil)

	order := events.OrderCreated{ID: uuid.New(), UserID: userID, Amount: money("30.00")}
	if err := svc.ProcessOrderPayment(context.Background(), &gorm.DB{}, order); err != nil {
		t.Fatalf("ProcessOrderPayment: %v", err)
	}

	if !repo.updatedBalance.Equal(money("70.00")) {
		t.Fatalf("expected balance 70.00 after debit, got %s", repo.updatedBalance)
	}
	if outboxStub.event.EventType != enums.EventPaymentSuccess {
		t.Fatalf("expected PAYMENT_SUCCESS event, got %s", outboxStub.event.EventType)
	}
	outcome := outboxStub.event.Data.(events.PaymentProcessed)
	if outcome.PaymentStatus != enums.PaymentStatusSuccess || outcome.Reason != nil {
		t.Fatalf("unexpected outcome %+v", outcome)
	}
	if outcome.OrderID != order.ID || outcome.PaymentID == uuid.Nil {
		t.Fatalf("outcome identity mismatch %+v", outcome)
	}
}

func TestProcessOrderPaymentExactBalance(t *testing.T) {
	userID := uuid.New()
	repo := &stubPaymentsRepo{account: &models.Account{UserID: userID, Balance: money("30.00")}}
	outboxStub := &stubOutboxPublisher{}
	svc, _ := NewService(repo, stubTxRunner{}, outboxStub, nil)

	order := events.OrderCreated{ID: uuid.New(), UserID: userID, Amount: money("30.00")}
	if err := svc.ProcessOrderPayment(context.Background(), &gorm.DB{}, order); err != nil {
		t.Fatalf("ProcessOrderPayment: %v", err)
	}
	if !repo.updatedBalance.IsZero() {
		t.Fatalf("expected zero balance, got %s", repo.updatedBalance)
	}
	if outboxStub.event.EventType != enums.EventPaymentSuccess {
		t.Fatalf("expected success for exact balance, got %s", outboxStub.event.EventType)
	}
}

func TestProcessOrderPaymentInsufficientFunds(t *testing.T) {
	userID := uuid.New()
	repo := &stubPaymentsRepo{account: &models.Account{UserID: userID, Balance: money("10.00")}}
	outboxStub := &stubOutboxPublisher{}
	svc, _ := NewService(repo, stubTxRunner{}, outboxStub, nil)

	order := events.OrderCreated{ID: uuid.New(), UserID: userID, Amount: money("30.00")}
	if err := svc.ProcessOrderPayment(context.Background(), &gorm.DB{}, order); err != nil {
		t.Fatalf("ProcessOrderPayment: %v", err)
	}

	if repo.updatedUserID != uuid.Nil {
		t.Fatal("balance must not change on failed payment")
	}
	outcome := outboxStub.event.Data.(events.PaymentProcessed)
	if outcome.PaymentStatus != enums.PaymentStatusFailure {
		t.Fatalf("expected FAILURE, got %s", outcome.PaymentStatus)
	}
	if outcome.Reason == nil || *outcome.Reason != string(enums.FailureReasonInsufficientFunds) {
		t.Fatalf("expected INSUFFICIENT_FUNDS reason, got %v", outcome.Reason)
	}
}

func TestProcessOrderPaymentAccountNotFound(t *testing.T) {
	outboxStub := &stubOutboxPublisher{}
	svc, _ := NewService(&stubPaymentsRepo{}, stubTxRunner{}, outboxStub, nil)

	order := events.OrderCreated{ID: uuid.New(), UserID: uuid.New(), Amount: money("30.00")}
	if err := svc.ProcessOrderPayment(context.Background(), &gorm.DB{}, order); err != nil {
		t.Fatalf("ProcessOrderPayment: %v", err)
	}

	outcome := outboxStub.event.Data.(events.PaymentProcessed)
	if outcome.Reason == nil || *outcome.Reason != string(enums.FailureReasonAccountNotFound) {
		t.Fatalf("expected ACCOUNT_NOT_FOUND reason, got %v", outcome.Reason)
	}
	if outboxStub.event.EventType != enums.EventPaymentFailed {
		t.Fatalf("expected PAYMENT_FAILED event, got %s", outboxStub.event.EventType)
	}
}

func TestProcessOrderPaymentMalformedOrderSettlesAsInternalError(t *testing.T) {
	outboxStub := &stubOutboxPublisher{}
	svc, _ := NewService(&stubPaymentsRepo{}, stubTxRunner{}, outboxStub, nil)

	order := events.OrderCreated{ID: uuid.New(), UserID: uuid.New(), Amount: money("-5.00")}
	if err := svc.ProcessOrderPayment(context.Background(), &gorm.DB{}, order); err != nil {
		t.Fatalf("ProcessOrderPayment: %v", err)
	}

	outcome := outboxStub.event.Data.(events.PaymentProcessed)
	if outcome.Reason == nil || *outcome.Reason != string(enums.FailureReasonInternalError) {
		t.Fatalf("expected INTERNAL_ERROR reason, got %v", outcome.Reason)
	}
}

func TestProcessOrderPaymentInfrastructureErrorPropagates(t *testing.T) {
	userID := uuid.New()
	repo := &stubPaymentsRepo{
		account:   &models.Account{UserID: userID, Balance: money("100.00")},
		updateErr: errors.New("connection reset"),
	}
	outboxStub := &stubOutboxPublisher{}
	svc, _ := NewService(repo, stubTxRunner{}, outboxStub, nil)

	order := events.OrderCreated{ID: uuid.New(), UserID: userID, Amount: money("30.00")}
	err := svc.ProcessOrderPayment(context.Background(), &gorm.DB{}, order)
	assertCode(t, err, pkgerrors.CodeDependency)
	if outboxStub.called {
		t.Fatal("no outcome event should be queued when the debit fails")
	}
}

func assertCode(t *testing.T, err error, code pkgerrors.Code) {
	t.Helper()
	if err == nil {
		t.Fatal("expected error")
	}
	appErr := pkgerrors.As(err)
	if appErr == nil {
		t.Fatalf("expected app error, got %T: %v", err, err)
	}
	if appErr.Code() != code {
		t.Fatalf("expected code %s, got %s", code, appErr.Code())
	}
}
