package mocks

import (
	"context"

	"github.com/stretchr/testify/mock"

	"convertflow/internal/domain"
)

// MockQAAuditRepo is a mock implementation of port.QAAuditRepository.
type MockQAAuditRepo struct {
	mock.Mock
}

func (m *MockQAAuditRepo) Create(ctx context.Context, result *domain.QAValidationResult) error {
	args := m.Called(ctx, result)
	return args.Error(0)
}

func (m *MockQAAuditRepo) ListRecent(ctx context.Context, limit int) ([]domain.QAValidationResult, error) {
	args := m.Called(ctx, limit)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]domain.QAValidationResult), args.Error(1)
}
