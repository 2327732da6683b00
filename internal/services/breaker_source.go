package services

import (
	"context"

	"github.com/irfndi/stockcast/internal/models"
	"github.com/irfndi/stockcast/pkg/interfaces"
)

type breakerSource struct {
	source  interfaces.BarSource
	breaker *CircuitBreaker
}

type breakerStore struct {
	breakerSource
	writer interfaces.BarWriter
}

// WithCircuitBreaker wraps source so calls fail fast with ErrCircuitOpen while breaker is open.
// The result accepts writes exactly when source does.
func WithCircuitBreaker(source interfaces.BarSource, breaker *CircuitBreaker) interfaces.BarSource {
	wrapped := breakerSource{source: source, breaker: breaker}
	if writer, ok := source.(interfaces.BarWriter); ok {
		return &breakerStore{breakerSource: wrapped, writer: writer}
	}
	return &wrapped
}

func (s *breakerSource) Name() string {
	return s.source.Name()
}

func (s *breakerSource) GetBars(ctx context.Context, symbol string, limit int) (models.BarSeries, error) {
	var series models.BarSeries
	err := s.breaker.Execute(ctx, func(ctx context.Context) error {
		var err error
		series, err = s.source.GetBars(ctx, symbol, limit)
		return err
	})
	return series, err
}

func (s *breakerStore) SaveBars(ctx context.Context, symbol string, series models.BarSeries) error {
	return s.breaker.Execute(ctx, func(ctx context.Context) error {
		return s.writer.SaveBars(ctx, symbol, series)
	})
}
