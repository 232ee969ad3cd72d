package llm

import (
	"context"

	"github.com/stretchr/testify/mock"

	"pdf-insights/internal/prompt"
)

// MockClient is a mock implementation of Client using testify/mock.
type MockClient struct {
	mock.Mock
}

func (m *MockClient) Generate(ctx context.Context, parts []prompt.Part) (string, error) {
	args := m.Called(ctx, parts)
	return args.String(0), args.Error(1)
}
