package mocks

import (
	"context"

	"github.com/stretchr/testify/mock"

	"convertflow/internal/domain"
)

// MockCreditRepo is a mock implementation of port.CreditRepository.
type MockCreditRepo struct {
	mock.Mock
}

func (m *MockCreditRepo) GetOrCreate(ctx context.Context, userID string) (*domain.CreditBalance, error) {
	args := m.Called(ctx, userID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.CreditBalance), args.Error(1)
}

func (m *MockCreditRepo) Deduct(ctx context.Context, userID string, amount float64, reason string, meta domain.TransactionMetadata) (*domain.CreditTransaction, error) {
	args := m.Called(ctx, userID, amount, reason, meta)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.CreditTransaction), args.Error(1)
}

func (m *MockCreditRepo) Add(ctx context.Context, userID string, amount float64, reason string, meta domain.TransactionMetadata) (*domain.CreditTransaction, error) {
	args := m.Called(ctx, userID, amount, reason, meta)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.CreditTransaction), args.Error(1)
}

func (m *MockCreditRepo) ListTransactions(ctx context.Context, userID string, limit int) ([]domain.CreditTransaction, error) {
	args := m.Called(ctx, userID, limit)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]domain.CreditTransaction), args.Error(1)
}
