package mocks

import (
	"context"

	"github.com/stretchr/testify/mock"

	"convertflow/internal/port"
)

// MockArtifactStorage is a mock implementation of port.ArtifactStorage.
type MockArtifactStorage struct {
	mock.Mock
}

func (m *MockArtifactStorage) Put(ctx context.Context, input port.PutObjectInput) (*port.PutObjectOutput, error) {
	args := m.Called(ctx, input)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*port.PutObjectOutput), args.Error(1)
}

func (m *MockArtifactStorage) Delete(ctx context.Context, key string) error {
	args := m.Called(ctx, key)
	return args.Error(0)
}

func (m *MockArtifactStorage) PresignedURL(ctx context.Context, key string, expirySeconds int64) (string, error) {
	args := m.Called(ctx, key, expirySeconds)
	return args.String(0), args.Error(1)
}
