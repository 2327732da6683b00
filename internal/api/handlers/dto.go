package handlers

import (
	"math"

	"github.com/shopspring/decimal"

	"github.com/irfndi/stockcast/internal/models"
	"github.com/irfndi/stockcast/internal/utils"
)

// Decimal places used in responses.
const (
	pricePlaces     = 4
	indicatorPlaces = 4
	signalPlaces    = 2
)

// BarDTO is the wire form of one OHLCV bar.
type BarDTO struct {
	Date   string  `json:"date" binding:"required"`
	Open   float64 `json:"open"`
	High   float64 `json:"high"`
	Low    float64 `json:"low"`
	Close  float64 `json:"close"`
	Volume int64   `json:"volume"`
}

// toSeries parses and validates bars.
func toSeries(bars []BarDTO) (models.BarSeries, error) {
	series := make(models.BarSeries, len(bars))
	for i, b := range bars {
		date, err := models.ParseDate(b.Date)
		if err != nil {
			return nil, utils.NewValidationErrorf("bars[%d]: %v", i, err)
		}
		series[i] = models.Bar{Date: date, Open: b.Open, High: b.High, Low: b.Low, Close: b.Close, Volume: b.Volume}
	}
	if err := series.Validate(); err != nil {
		return nil, err
	}
	return series, nil
}

// IndicatorRowDTO is one row of the indicator table. Undefined values are null.
type IndicatorRowDTO struct {
	Date       string              `json:"date"`
	Open       decimal.Decimal     `json:"open"`
	High       decimal.Decimal     `json:"high"`
	Low        decimal.Decimal     `json:"low"`
	Close      decimal.Decimal     `json:"close"`
	Volume     int64               `json:"volume"`
	SMAShort   decimal.NullDecimal `json:"sma_short"`
	SMALong    decimal.NullDecimal `json:"sma_long"`
	RSI        decimal.NullDecimal `json:"rsi"`
	EMAFast    decimal.NullDecimal `json:"ema_fast"`
	EMASlow    decimal.NullDecimal `json:"ema_slow"`
	MACD       decimal.NullDecimal `json:"macd"`
	MACDSignal decimal.NullDecimal `json:"macd_signal"`
	BBUpper    decimal.NullDecimal `json:"bb_upper"`
	BBMiddle   decimal.NullDecimal `json:"bb_middle"`
	BBLower    decimal.NullDecimal `json:"bb_lower"`
	ATR        decimal.NullDecimal `json:"atr"`
	Support    decimal.NullDecimal `json:"support"`
	Resistance decimal.NullDecimal `json:"resistance"`
}

// roundNullable rounds v, or returns an invalid NullDecimal for NaN and infinities.
func roundNullable(v float64, places int32) decimal.NullDecimal {
	if math.IsNaN(v) || math.IsInf(v, 0) {
		return decimal.NullDecimal{}
	}
	return decimal.NewNullDecimal(decimal.NewFromFloat(v).Round(places))
}

func round(v float64, places int32) decimal.Decimal {
	if math.IsNaN(v) || math.IsInf(v, 0) {
		return decimal.Zero
	}
	return decimal.NewFromFloat(v).Round(places)
}

func newIndicatorRowDTO(r models.IndicatorRow) IndicatorRowDTO {
	return IndicatorRowDTO{
		Date:       r.Date.Format(models.DateLayout),
		Open:       round(r.Open, pricePlaces),
		High:       round(r.High, pricePlaces),
		Low:        round(r.Low, pricePlaces),
		Close:      round(r.Close, pricePlaces),
		Volume:     r.Volume,
		SMAShort:   roundNullable(r.SMAShort, indicatorPlaces),
		SMALong:    roundNullable(r.SMALong, indicatorPlaces),
		RSI:        roundNullable(r.RSI, indicatorPlaces),
		EMAFast:    roundNullable(r.EMAFast, indicatorPlaces),
		EMASlow:    roundNullable(r.EMASlow, indicatorPlaces),
		MACD:       roundNullable(r.MACD, indicatorPlaces),
		MACDSignal: roundNullable(r.MACDSignal, indicatorPlaces),
		BBUpper:    roundNullable(r.BBUpper, indicatorPlaces),
		BBMiddle:   roundNullable(r.BBMiddle, indicatorPlaces),
		BBLower:    roundNullable(r.BBLower, indicatorPlaces),
		ATR:        roundNullable(r.ATR, indicatorPlaces),
		Support:    roundNullable(r.Support, indicatorPlaces),
		Resistance: roundNullable(r.Resistance, indicatorPlaces),
	}
}

// indicatorTable converts the complete rows of frame.
func indicatorTable(frame *models.IndicatorFrame) []IndicatorRowDTO {
	rows := frame.CompleteRows()
	out := make([]IndicatorRowDTO, len(rows))
	for i, r := range rows {
		out[i] = newIndicatorRowDTO(r)
	}
	return out
}

// SignalDTO is the consensus signal with rounded risk levels.
type SignalDTO struct {
	Signal     models.SignalType  `json:"signal"`
	Confidence models.Confidence  `json:"confidence"`
	Score      int                `json:"score"`
	EntryPrice decimal.Decimal    `json:"entry_price"`
	StopLoss   decimal.Decimal    `json:"stop_loss"`
	TakeProfit decimal.Decimal    `json:"take_profit"`
	Strategy   string             `json:"strategy"`
	Analysis   []models.SubSignal `json:"analysis"`
}

func newSignalDTO(s *models.SignalResult) *SignalDTO {
	if s == nil {
		return nil
	}
	return &SignalDTO{
		Signal:     s.Signal,
		Confidence: s.Confidence,
		Score:      s.Score,
		EntryPrice: round(s.EntryPrice, signalPlaces),
		StopLoss:   round(s.StopLoss, signalPlaces),
		TakeProfit: round(s.TakeProfit, signalPlaces),
		Strategy:   s.Strategy,
		Analysis:   s.Analysis,
	}
}

// ForecastPointDTO is one predicted close.
type ForecastPointDTO struct {
	Date  string          `json:"date"`
	Price decimal.Decimal `json:"price"`
}

// HoldoutDTO reports holdout errors of the trend model.
type HoldoutDTO struct {
	Samples int                 `json:"samples"`
	MAE     decimal.NullDecimal `json:"mae"`
	RMSE    decimal.NullDecimal `json:"rmse"`
}

// ForecastDTO is the wire form of a forecast.
type ForecastDTO struct {
	Model       models.ModelType   `json:"model"`
	Backend     string             `json:"backend"`
	Predictions []ForecastPointDTO `json:"predictions"`
	Holdout     *HoldoutDTO        `json:"holdout,omitempty"`
}

func newForecastDTO(f *models.Forecast) *ForecastDTO {
	if f == nil {
		return nil
	}
	dto := &ForecastDTO{
		Model:       f.Model,
		Backend:     f.Backend,
		Predictions: make([]ForecastPointDTO, len(f.Points)),
	}
	for i, p := range f.Points {
		dto.Predictions[i] = ForecastPointDTO{
			Date:  p.Date.Format(models.DateLayout),
			Price: round(p.Price, pricePlaces),
		}
	}
	if f.Holdout != nil {
		dto.Holdout = &HoldoutDTO{
			Samples: f.Holdout.Samples,
			MAE:     roundNullable(f.Holdout.MAE, pricePlaces),
			RMSE:    roundNullable(f.Holdout.RMSE, pricePlaces),
		}
	}
	return dto
}
