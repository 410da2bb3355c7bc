package service

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"go.uber.org/zap"

	"github.com/brianDahlin/Star-driver/internal/audit"
	"github.com/brianDahlin/Star-driver/internal/dedup"
	registrymemory "github.com/brianDahlin/Star-driver/internal/registry/memory"

	"github.com/brianDahlin/Star-driver/internal/registry"
)

// MockProvisioner реализует Provisioner для тестов
type MockProvisioner struct {
	mock.Mock
}

func (m *MockProvisioner) BuyStars(ctx context.Context, recipient string, quantity int, showSender bool) (string, error) {
	args := m.Called(ctx, recipient, quantity, showSender)
	return args.String(0), args.Error(1)
}

// MockResolver реализует RecipientResolver для тестов
type MockResolver struct {
	mock.Mock
}

func (m *MockResolver) ResolveUsername(ctx context.Context, requesterID int64) (string, error) {
	args := m.Called(ctx, requesterID)
	return args.String(0), args.Error(1)
}

// MockNotifier реализует Notifier для тестов
type MockNotifier struct {
	mock.Mock
}

func (m *MockNotifier) NotifySuccess(ctx context.Context, requesterID int64, quantity int, isGift bool, recipient, externalOrderID string) error {
	args := m.Called(ctx, requesterID, quantity, isGift, recipient, externalOrderID)
	return args.Error(0)
}

func (m *MockNotifier) NotifyFailure(ctx context.Context, requesterID int64, quantity int, isGift bool, errorDetail string) error {
	args := m.Called(ctx, requesterID, quantity, isGift, errorDetail)
	return args.Error(0)
}

func (m *MockNotifier) NotifyDeclined(ctx context.Context, requesterID int64, orderID string) error {
	args := m.Called(ctx, requesterID, orderID)
	return args.Error(0)
}

// MockAuditLog реализует audit.Log для тестов
type MockAuditLog struct {
	mock.Mock
}

func (m *MockAuditLog) Record(ctx context.Context, rec audit.Record) error {
	args := m.Called(ctx, rec)
	return args.Error(0)
}

// noopPublisher - пустой publisher для тестов
type noopPublisher struct{}

func (noopPublisher) PublishWebhookProcessed(ctx context.Context, event ProcessedEvent) error {
	return nil
}

type fixture struct {
	orch        *Orchestrator
	registry    registry.Registry
	claims      *dedup.MemoryClaimer
	provisioner *MockProvisioner
	resolver    *MockResolver
	notifier    *MockNotifier
	auditLog    *MockAuditLog
}

func newFixture(t *testing.T) *fixture {
	t.Helper()

	f := &fixture{
		registry:    registrymemory.NewMemoryRegistry(),
		claims:      dedup.NewMemoryClaimer(time.Hour),
		provisioner: new(MockProvisioner),
		resolver:    new(MockResolver),
		notifier:    new(MockNotifier),
		auditLog:    new(MockAuditLog),
	}
	f.orch = NewOrchestrator(
		zap.NewNop(),
		f.registry,
		f.claims,
		f.provisioner,
		f.resolver,
		f.notifier,
		f.auditLog,
		noopPublisher{},
	)
	return f
}

func paidEvent(orderID string) PaymentEvent {
	return PaymentEvent{
		Provider:      "crypay",
		TransactionID: "inv-1",
		OrderID:       orderID,
		Amount:        100.50,
		Currency:      "USDT",
		Status:        StatusPaid,
	}
}

func TestOrchestrator_HandlePaid_Success(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)

	err := f.registry.Put(ctx, registry.Intent{OrderID: "ord-1", RequesterID: 42, Quantity: 100})
	assert.NoError(t, err)

	f.resolver.On("ResolveUsername", ctx, int64(42)).Return("alice", nil).Once()
	f.provisioner.On("BuyStars", ctx, "alice", 100, false).Return("frg-777", nil).Once()
	f.auditLog.On("Record", ctx, mock.MatchedBy(func(rec audit.Record) bool {
		return rec.Outcome == audit.OutcomeFulfilled && rec.ExternalOrderID == "frg-777"
	})).Return(nil).Once()
	f.notifier.On("NotifySuccess", ctx, int64(42), 100, false, "alice", "frg-777").Return(nil).Once()

	key := dedup.Key("crypay", "inv-1", "ord-1")
	err = f.orch.HandlePaid(ctx, paidEvent("ord-1"), key)
	assert.NoError(t, err)

	// Намерение удалено после успешного fulfillment
	_, err = f.registry.Get(ctx, "ord-1")
	assert.ErrorIs(t, err, registry.ErrNotFound)

	f.provisioner.AssertExpectations(t)
	f.notifier.AssertExpectations(t)
	f.auditLog.AssertExpectations(t)
}

func TestOrchestrator_HandlePaid_GiftRecipient(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)

	err := f.registry.Put(ctx, registry.Intent{
		OrderID:       "ord-2",
		RequesterID:   42,
		Quantity:      50,
		IsGift:        true,
		GiftRecipient: "alice",
	})
	assert.NoError(t, err)

	// Для подарка с указанным получателем username заказчика не разрешается
	f.provisioner.On("BuyStars", ctx, "alice", 50, false).Return("frg-1", nil).Once()
	f.auditLog.On("Record", ctx, mock.Anything).Return(nil).Once()
	f.notifier.On("NotifySuccess", ctx, int64(42), 50, true, "alice", "frg-1").Return(nil).Once()

	err = f.orch.HandlePaid(ctx, paidEvent("ord-2"), dedup.Key("crypay", "inv-1", "ord-2"))
	assert.NoError(t, err)

	f.provisioner.AssertExpectations(t)
	f.resolver.AssertExpectations(t)
	f.notifier.AssertExpectations(t)
}

func TestOrchestrator_HandlePaid_PlaceholderWhenUsernameUnresolved(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)

	err := f.registry.Put(ctx, registry.Intent{OrderID: "ord-3", RequesterID: 99, Quantity: 75})
	assert.NoError(t, err)

	t.Run("resolver error", func(t *testing.T) {
		f.resolver.On("ResolveUsername", ctx, int64(99)).Return("", errors.New("telegram unavailable")).Once()
		f.provisioner.On("BuyStars", ctx, "id99", 75, false).Return("frg-2", nil).Once()
		f.auditLog.On("Record", ctx, mock.Anything).Return(nil).Once()
		f.notifier.On("NotifySuccess", ctx, int64(99), 75, false, "id99", "frg-2").Return(nil).Once()

		err := f.orch.HandlePaid(ctx, paidEvent("ord-3"), dedup.Key("crypay", "inv-1", "ord-3"))
		assert.NoError(t, err)
		f.provisioner.AssertExpectations(t)
	})

	t.Run("empty username", func(t *testing.T) {
		err := f.registry.Put(ctx, registry.Intent{OrderID: "ord-4", RequesterID: 99, Quantity: 75})
		assert.NoError(t, err)

		f.resolver.On("ResolveUsername", ctx, int64(99)).Return("", nil).Once()
		f.provisioner.On("BuyStars", ctx, "id99", 75, false).Return("frg-3", nil).Once()
		f.auditLog.On("Record", ctx, mock.Anything).Return(nil).Once()
		f.notifier.On("NotifySuccess", ctx, int64(99), 75, false, "id99", "frg-3").Return(nil).Once()

		err = f.orch.HandlePaid(ctx, paidEvent("ord-4"), dedup.Key("crypay", "inv-1", "ord-4"))
		assert.NoError(t, err)
		f.provisioner.AssertExpectations(t)
	})
}

func TestOrchestrator_HandlePaid_UnknownOrder(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)

	// Вебхук по незарегистрированному заказу: ни покупки, ни уведомления,
	// но запись аудита с outcome=unmatched
	f.auditLog.On("Record", ctx, mock.MatchedBy(func(rec audit.Record) bool {
		return rec.Outcome == audit.OutcomeUnmatched
	})).Return(nil).Once()

	err := f.orch.HandlePaid(ctx, paidEvent("missing"), dedup.Key("crypay", "inv-1", "missing"))
	assert.NoError(t, err)

	f.provisioner.AssertExpectations(t)
	f.notifier.AssertExpectations(t)
	f.auditLog.AssertExpectations(t)
}

func TestOrchestrator_HandlePaid_ProvisioningFailure(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)

	err := f.registry.Put(ctx, registry.Intent{OrderID: "ord-5", RequesterID: 42, Quantity: 100})
	assert.NoError(t, err)

	key := dedup.Key("wata", "tx-9", "ord-5")
	claimed, err := f.claims.Claim(ctx, key)
	assert.NoError(t, err)
	assert.True(t, claimed)

	provisionErr := errors.New("fragment api unavailable")
	f.resolver.On("ResolveUsername", ctx, int64(42)).Return("alice", nil)
	f.provisioner.On("BuyStars", ctx, "alice", 100, false).Return("", provisionErr).Once()
	f.auditLog.On("Record", ctx, mock.MatchedBy(func(rec audit.Record) bool {
		return rec.Outcome == audit.OutcomeFailed && rec.ErrorDetail == provisionErr.Error()
	})).Return(nil).Once()
	f.notifier.On("NotifyFailure", ctx, int64(42), 100, false, provisionErr.Error()).Return(nil).Once()

	event := paidEvent("ord-5")
	err = f.orch.HandlePaid(ctx, event, key)
	assert.Error(t, err)
	assert.ErrorIs(t, err, provisionErr)

	// Намерение сохранено - повторная доставка вебхука сможет его найти
	intent, err := f.registry.Get(ctx, "ord-5")
	assert.NoError(t, err)
	assert.Equal(t, 100, intent.Quantity)

	// Захват снят - повторная доставка пройдёт дедупликацию
	claimed, err = f.claims.Claim(ctx, key)
	assert.NoError(t, err)
	assert.True(t, claimed)

	f.provisioner.AssertExpectations(t)
	f.notifier.AssertExpectations(t)
}

func TestOrchestrator_HandlePaid_NotificationFailureDoesNotFailFulfillment(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)

	err := f.registry.Put(ctx, registry.Intent{OrderID: "ord-6", RequesterID: 42, Quantity: 60})
	assert.NoError(t, err)

	f.resolver.On("ResolveUsername", ctx, int64(42)).Return("alice", nil).Once()
	f.provisioner.On("BuyStars", ctx, "alice", 60, false).Return("frg-5", nil).Once()
	f.auditLog.On("Record", ctx, mock.Anything).Return(nil).Once()
	// Уведомление не доставлено - fulfillment всё равно успешен
	f.notifier.On("NotifySuccess", ctx, int64(42), 60, false, "alice", "frg-5").Return(errors.New("chat not found")).Once()

	err = f.orch.HandlePaid(ctx, paidEvent("ord-6"), dedup.Key("crypay", "inv-1", "ord-6"))
	assert.NoError(t, err)

	_, err = f.registry.Get(ctx, "ord-6")
	assert.ErrorIs(t, err, registry.ErrNotFound)
}

func TestOrchestrator_HandleDeclined(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)

	err := f.registry.Put(ctx, registry.Intent{OrderID: "ord-7", RequesterID: 42, Quantity: 100})
	assert.NoError(t, err)

	f.auditLog.On("Record", ctx, mock.MatchedBy(func(rec audit.Record) bool {
		return rec.Outcome == audit.OutcomeDeclined
	})).Return(nil).Once()
	f.notifier.On("NotifyDeclined", ctx, int64(42), "ord-7").Return(nil).Once()

	event := paidEvent("ord-7")
	event.Status = StatusDeclined
	err = f.orch.HandleDeclined(ctx, event, dedup.Key("crypay", "inv-1", "ord-7"))
	assert.NoError(t, err)

	// Намерение НЕ удаляется: пользователь может оплатить заказ повторно
	_, err = f.registry.Get(ctx, "ord-7")
	assert.NoError(t, err)

	// Покупка звёзд не вызывалась
	f.provisioner.AssertExpectations(t)
	f.notifier.AssertExpectations(t)
	f.auditLog.AssertExpectations(t)
}

// erroringRegistry имитирует недоступный реестр заказов
type erroringRegistry struct {
	err error
}

func (r erroringRegistry) Put(ctx context.Context, intent registry.Intent) error {
	return r.err
}

func (r erroringRegistry) Get(ctx context.Context, orderID string) (registry.Intent, error) {
	return registry.Intent{}, r.err
}

func (r erroringRegistry) Remove(ctx context.Context, orderID string) error {
	return r.err
}

func TestOrchestrator_HandlePaid_RegistryUnavailable(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	storeErr := errors.New("redis: connection refused")
	f.orch.registry = erroringRegistry{err: storeErr}

	key := dedup.Key("crypay", "inv-1", "ord-r1")
	claimed, err := f.claims.Claim(ctx, key)
	assert.NoError(t, err)
	assert.True(t, claimed)

	// Сбой стора - это failed, а не unmatched
	f.auditLog.On("Record", ctx, mock.MatchedBy(func(rec audit.Record) bool {
		return rec.Outcome == audit.OutcomeFailed && rec.ErrorDetail == storeErr.Error()
	})).Return(nil).Once()

	err = f.orch.HandlePaid(ctx, paidEvent("ord-r1"), key)
	assert.Error(t, err)
	assert.ErrorIs(t, err, storeErr)

	// Захват снят - retry провайдера повторит обработку
	claimed, err = f.claims.Claim(ctx, key)
	assert.NoError(t, err)
	assert.True(t, claimed)

	// Ни покупки, ни уведомлений
	f.provisioner.AssertExpectations(t)
	f.notifier.AssertExpectations(t)
	f.auditLog.AssertExpectations(t)
}

func TestOrchestrator_HandleDeclined_RegistryUnavailable(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	storeErr := errors.New("redis: connection refused")
	f.orch.registry = erroringRegistry{err: storeErr}

	key := dedup.Key("crypay", "inv-1", "ord-r2")
	claimed, err := f.claims.Claim(ctx, key)
	assert.NoError(t, err)
	assert.True(t, claimed)

	f.auditLog.On("Record", ctx, mock.MatchedBy(func(rec audit.Record) bool {
		return rec.Outcome == audit.OutcomeFailed
	})).Return(nil).Once()

	event := paidEvent("ord-r2")
	event.Status = StatusDeclined
	err = f.orch.HandleDeclined(ctx, event, key)
	assert.Error(t, err)
	assert.ErrorIs(t, err, storeErr)

	claimed, err = f.claims.Claim(ctx, key)
	assert.NoError(t, err)
	assert.True(t, claimed)

	f.notifier.AssertExpectations(t)
	f.auditLog.AssertExpectations(t)
}

func TestOrchestrator_HandlePaid_RevealSenderPassedThrough(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)

	err := f.registry.Put(ctx, registry.Intent{OrderID: "ord-8", RequesterID: 42, Quantity: 100})
	assert.NoError(t, err)

	f.resolver.On("ResolveUsername", ctx, int64(42)).Return("alice", nil).Once()
	// Флаг showSender берётся из события, не хардкодится
	f.provisioner.On("BuyStars", ctx, "alice", 100, true).Return("frg-9", nil).Once()
	f.auditLog.On("Record", ctx, mock.Anything).Return(nil).Once()
	f.notifier.On("NotifySuccess", ctx, int64(42), 100, false, "alice", "frg-9").Return(nil).Once()

	event := paidEvent("ord-8")
	event.RevealSender = true
	err = f.orch.HandlePaid(ctx, event, dedup.Key("crypay", "inv-1", "ord-8"))
	assert.NoError(t, err)

	f.provisioner.AssertExpectations(t)
}
