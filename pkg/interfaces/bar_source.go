package interfaces

import (
	"context"

	"github.com/irfndi/stockcast/internal/models"
)

// BarSource loads the most recent bars for a symbol in chronological order.
// Implementations return utils.ErrNoBars when nothing is stored for the symbol.
type BarSource interface {
	Name() string
	GetBars(ctx context.Context, symbol string, limit int) (models.BarSeries, error)
}

// BarWriter stores bars for a symbol, replacing any bar already held for the same date.
type BarWriter interface {
	SaveBars(ctx context.Context, symbol string, series models.BarSeries) error
}

// BarStore is a source that also accepts writes.
type BarStore interface {
	BarSource
	BarWriter
}
