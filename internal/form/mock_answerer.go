package form

import (
	"context"

	"github.com/stretchr/testify/mock"

	"pdf-insights/internal/qa"
)

// MockAnswerer is a mock implementation of Answerer using testify/mock.
type MockAnswerer struct {
	mock.Mock
}

func (m *MockAnswerer) Answer(ctx context.Context, in qa.Input) (qa.Output, error) {
	args := m.Called(ctx, in)
	return args.Get(0).(qa.Output), args.Error(1)
}
