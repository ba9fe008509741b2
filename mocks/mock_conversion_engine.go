package mocks

import (
	"context"

	"github.com/stretchr/testify/mock"

	"convertflow/internal/domain"
	"convertflow/internal/port"
)

// MockConversionEngine is a mock implementation of port.ConversionEngine.
type MockConversionEngine struct {
	mock.Mock
	EngineName domain.Engine
}

func (m *MockConversionEngine) Name() domain.Engine {
	return m.EngineName
}

func (m *MockConversionEngine) Convert(ctx context.Context, input port.ConvertInput) (*port.ConvertOutput, error) {
	args := m.Called(ctx, input)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*port.ConvertOutput), args.Error(1)
}
