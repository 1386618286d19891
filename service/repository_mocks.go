package service

import (
	"context"

	"parimutuel/events"
	"parimutuel/models"

	"github.com/stretchr/testify/mock"
)

// MockAccountRepository is a mock implementation of AccountRepository
type MockAccountRepository struct {
	mock.Mock
}

func (m *MockAccountRepository) GetOrCreateForUpdate(ctx context.Context, memberID int64, defaultBalance int64) (*models.Account, bool, error) {
	args := m.Called(ctx, memberID, defaultBalance)
	if args.Get(0) == nil {
		return nil, args.Bool(1), args.Error(2)
	}
	return args.Get(0).(*models.Account), args.Bool(1), args.Error(2)
}

func (m *MockAccountRepository) UpdateBalance(ctx context.Context, memberID int64, newBalance int64) error {
	args := m.Called(ctx, memberID, newBalance)
	return args.Error(0)
}

// MockBalanceHistoryRepository is a mock implementation of BalanceHistoryRepository
type MockBalanceHistoryRepository struct {
	mock.Mock
}

func (m *MockBalanceHistoryRepository) Record(ctx context.Context, history *models.BalanceHistory) error {
	args := m.Called(ctx, history)
	return args.Error(0)
}

// MockEventPublisher is a mock implementation of EventPublisher for testing
type MockEventPublisher struct {
	mock.Mock
}

func (m *MockEventPublisher) Publish(event events.Event) {
	m.Called(event)
}

// MockUnitOfWork is a mock implementation of UnitOfWork
type MockUnitOfWork struct {
	mock.Mock
	accountRepo        AccountRepository
	balanceHistoryRepo BalanceHistoryRepository
	eventBus           EventPublisher
}

// SetRepositories sets the repositories returned by the unit of work
func (m *MockUnitOfWork) SetRepositories(accountRepo AccountRepository, balanceHistoryRepo BalanceHistoryRepository, eventBus EventPublisher) {
	m.accountRepo = accountRepo
	m.balanceHistoryRepo = balanceHistoryRepo
	m.eventBus = eventBus
}

func (m *MockUnitOfWork) Begin(ctx context.Context) error {
	args := m.Called(ctx)
	return args.Error(0)
}

func (m *MockUnitOfWork) Commit() error {
	args := m.Called()
	return args.Error(0)
}

func (m *MockUnitOfWork) Rollback() error {
	args := m.Called()
	return args.Error(0)
}

func (m *MockUnitOfWork) AccountRepository() AccountRepository {
	return m.accountRepo
}

func (m *MockUnitOfWork) BalanceHistoryRepository() BalanceHistoryRepository {
	return m.balanceHistoryRepo
}

func (m *MockUnitOfWork) EventBus() EventPublisher {
	return m.eventBus
}

// MockUnitOfWorkFactory is a mock implementation of UnitOfWorkFactory
type MockUnitOfWorkFactory struct {
	mock.Mock
}

func (m *MockUnitOfWorkFactory) CreateForCommunity(communityID int64) UnitOfWork {
	args := m.Called(communityID)
	return args.Get(0).(UnitOfWork)
}

// MockCommunityLedger is a mock implementation of CommunityLedger
type MockCommunityLedger struct {
	mock.Mock
}

func (m *MockCommunityLedger) GetBalance(ctx context.Context, memberID int64) (int64, error) {
	args := m.Called(ctx, memberID)
	return args.Get(0).(int64), args.Error(1)
}

func (m *MockCommunityLedger) AdjustBalance(ctx context.Context, adj models.BalanceAdjustment) (int64, error) {
	args := m.Called(ctx, adj)
	return args.Get(0).(int64), args.Error(1)
}

func (m *MockCommunityLedger) ApplyBatch(ctx context.Context, adjs []models.BalanceAdjustment) error {
	args := m.Called(ctx, adjs)
	return args.Error(0)
}

// MockLedger is a mock implementation of Ledger
type MockLedger struct {
	mock.Mock
}

func (m *MockLedger) ForCommunity(communityID int64) CommunityLedger {
	args := m.Called(communityID)
	return args.Get(0).(CommunityLedger)
}

// MockRenderer is a mock implementation of Renderer
type MockRenderer struct {
	mock.Mock
}

func (m *MockRenderer) RenderStatus(ctx context.Context, snapshot *models.RoundSnapshot) error {
	args := m.Called(ctx, snapshot)
	return args.Error(0)
}
