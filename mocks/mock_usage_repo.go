package mocks

import (
	"context"
	"time"

	"github.com/stretchr/testify/mock"

	"convertflow/internal/domain"
)

// MockUsageRepo is a mock implementation of port.EngineUsageRepository.
type MockUsageRepo struct {
	mock.Mock
}

func (m *MockUsageRepo) Get(ctx context.Context, userID string, day time.Time) (*domain.DailyUsage, error) {
	args := m.Called(ctx, userID, day)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.DailyUsage), args.Error(1)
}

func (m *MockUsageRepo) Reserve(ctx context.Context, userID string, day time.Time, pages, maxDocs, maxPages int) (bool, error) {
	args := m.Called(ctx, userID, day, pages, maxDocs, maxPages)
	return args.Bool(0), args.Error(1)
}
