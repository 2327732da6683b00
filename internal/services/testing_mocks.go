package services

import (
	"context"

	"github.com/stretchr/testify/mock"

	"github.com/irfndi/stockcast/internal/models"
)

// MockBarSource implements interfaces.BarSource for testing
type MockBarSource struct {
	mock.Mock
}

func (m *MockBarSource) Name() string {
	return "mock"
}

func (m *MockBarSource) GetBars(ctx context.Context, symbol string, limit int) (models.BarSeries, error) {
	args := m.Called(ctx, symbol, limit)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(models.BarSeries), args.Error(1)
}

// MockBarStore implements interfaces.BarStore for testing
type MockBarStore struct {
	MockBarSource
}

func (m *MockBarStore) SaveBars(ctx context.Context, symbol string, series models.BarSeries) error {
	args := m.Called(ctx, symbol, series)
	return args.Error(0)
}
