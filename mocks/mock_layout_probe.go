package mocks

import (
	"context"

	"github.com/stretchr/testify/mock"

	"convertflow/internal/port"
)

// MockLayoutProbe is a mock implementation of port.LayoutProbe.
type MockLayoutProbe struct {
	mock.Mock
}

func (m *MockLayoutProbe) Probe(ctx context.Context, pdf []byte) (*port.ProbeResult, error) {
	args := m.Called(ctx, pdf)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*port.ProbeResult), args.Error(1)
}
