package interfaces

import (
	"time"

	"github.com/shopspring/decimal"

	"github.com/irfndi/stockcast/internal/models"
)

// MarketSnapshot summarises the latest bar of a series for API responses
type MarketSnapshot struct {
	Symbol        string          `json:"symbol"`
	Date          time.Time       `json:"date"`
	Price         decimal.Decimal `json:"current_price"`
	Open          decimal.Decimal `json:"open"`
	High          decimal.Decimal `json:"high"`
	Low           decimal.Decimal `json:"low"`
	Volume        int64           `json:"volume"`
	Change        decimal.Decimal `json:"change"`
	ChangePercent decimal.Decimal `json:"change_percent"`
}

// NewMarketSnapshot builds a snapshot from the last two bars of series.
// It returns false for an empty series.
func NewMarketSnapshot(symbol string, series models.BarSeries) (*MarketSnapshot, bool) {
	last, ok := series.Last()
	if !ok {
		return nil, false
	}

	price := decimal.NewFromFloat(last.Close)
	snapshot := &MarketSnapshot{
		Symbol: symbol,
		Date:   last.Date,
		Price:  price.Round(2),
		Open:   decimal.NewFromFloat(last.Open).Round(2),
		High:   decimal.NewFromFloat(last.High).Round(2),
		Low:    decimal.NewFromFloat(last.Low).Round(2),
		Volume: last.Volume,
	}

	if len(series) > 1 {
		prev := decimal.NewFromFloat(series[len(series)-2].Close)
		change := price.Sub(prev)
		snapshot.Change = change.Round(2)
		if !prev.IsZero() {
			snapshot.ChangePercent = change.Div(prev).Mul(decimal.NewFromInt(100)).Round(2)
		}
	}
	return snapshot, true
}

// GetPrice returns the price as float64
func (s *MarketSnapshot) GetPrice() float64 {
	return s.Price.InexactFloat64()
}
