package session

import (
	"context"

	"github.com/stretchr/testify/mock"
)

// MockStore is a mock implementation of the Store interface for testing
type MockStore struct {
	mock.Mock
}

func (m *MockStore) Get(ctx context.Context, id string) (State, error) {
	args := m.Called(ctx, id)
	return args.Get(0).(State), args.Error(1)
}

func (m *MockStore) Update(ctx context.Context, id string, fn UpdateFunc) (State, error) {
	args := m.Called(ctx, id, fn)
	return args.Get(0).(State), args.Error(1)
}

func (m *MockStore) Delete(ctx context.Context, id string) error {
	args := m.Called(ctx, id)
	return args.Error(0)
}

func (m *MockStore) Close() error {
	args := m.Called()
	return args.Error(0)
}
