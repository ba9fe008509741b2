package mocks

import (
	"context"

	"github.com/stretchr/testify/mock"

	"convertflow/internal/domain"
)

// MockCreditService is a mock implementation of service.CreditService.
type MockCreditService struct {
	mock.Mock
}

func (m *MockCreditService) GetBalance(ctx context.Context, userID string) (*domain.CreditBalance, error) {
	args := m.Called(ctx, userID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.CreditBalance), args.Error(1)
}

func (m *MockCreditService) Deduct(ctx context.Context, userID string, amount float64, reason string, meta domain.TransactionMetadata) (*domain.CreditMutation, error) {
	args := m.Called(ctx, userID, amount, reason, meta)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.CreditMutation), args.Error(1)
}

func (m *MockCreditService) Add(ctx context.Context, userID string, amount float64, reason string, meta domain.TransactionMetadata) (*domain.CreditMutation, error) {
	args := m.Called(ctx, userID, amount, reason, meta)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.CreditMutation), args.Error(1)
}

func (m *MockCreditService) History(ctx context.Context, userID string, limit int) ([]domain.CreditTransaction, error) {
	args := m.Called(ctx, userID, limit)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]domain.CreditTransaction), args.Error(1)
}
