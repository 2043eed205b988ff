package mocks

import (
	"context"

	"github.com/stretchr/testify/mock"
)

// MockSession is a mock implementation of domain.Session
type MockSession struct {
	mock.Mock
}

func (m *MockSession) AuthenticatedRequest(ctx context.Context, method, path string, body any) ([]byte, error) {
	args := m.Called(ctx, method, path, body)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]byte), args.Error(1)
}
