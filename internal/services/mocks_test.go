package services

import (
	"context"

	"github.com/stretchr/testify/mock"

	"github.com/emadnahed/linkguard/internal/models"
)

// MockMappingStore is a mock implementation of repository.MappingStore.
type MockMappingStore struct {
	mock.Mock
}

func (m *MockMappingStore) Exists(ctx context.Context, code string) (bool, error) {
	args := m.Called(ctx, code)
	return args.Bool(0), args.Error(1)
}

func (m *MockMappingStore) Create(ctx context.Context, code, target string) (*models.Mapping, error) {
	args := m.Called(ctx, code, target)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.Mapping), args.Error(1)
}

func (m *MockMappingStore) Get(ctx context.Context, code string) (*models.Mapping, error) {
	args := m.Called(ctx, code)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.Mapping), args.Error(1)
}

func (m *MockMappingStore) IncrementAccessCount(ctx context.Context, code string) error {
	args := m.Called(ctx, code)
	return args.Error(0)
}

func (m *MockMappingStore) HealthCheck(ctx context.Context) error {
	args := m.Called(ctx)
	return args.Error(0)
}

// MockAllocator is a mock implementation of Allocator.
type MockAllocator struct {
	mock.Mock
}

func (m *MockAllocator) Allocate(ctx context.Context, target string) (*models.Mapping, error) {
	args := m.Called(ctx, target)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.Mapping), args.Error(1)
}
