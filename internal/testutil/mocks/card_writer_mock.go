package mocks

import (
	"context"

	"github.com/mmcdole/recall/internal/domain"
	"github.com/stretchr/testify/mock"
)

// MockCardWriter is a mock implementation of domain.CardWriter
type MockCardWriter struct {
	mock.Mock
}

func (m *MockCardWriter) Memorize(ctx context.Context, cardID string, grade domain.Grade) (*domain.Card, error) {
	args := m.Called(ctx, cardID, grade)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.Card), args.Error(1)
}

func (m *MockCardWriter) Grade(ctx context.Context, cardID string, grade domain.Grade) (*domain.Card, error) {
	args := m.Called(ctx, cardID, grade)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.Card), args.Error(1)
}

func (m *MockCardWriter) ReviewCrammed(ctx context.Context, cardID string, grade domain.Grade) (*domain.Card, error) {
	args := m.Called(ctx, cardID, grade)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.Card), args.Error(1)
}

func (m *MockCardWriter) Forget(ctx context.Context, cardID string) (*domain.Card, error) {
	args := m.Called(ctx, cardID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.Card), args.Error(1)
}
