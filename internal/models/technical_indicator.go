package models

import "math"

// IndicatorRow is one bar with its derived indicator columns.
// Columns whose window is not yet filled hold NaN.
type IndicatorRow struct {
	Bar
	SMAShort   float64
	SMALong    float64
	RSI        float64
	EMAFast    float64
	EMASlow    float64
	MACD       float64
	MACDSignal float64
	BBUpper    float64
	BBMiddle   float64
	BBLower    float64
	ATR        float64
	Support    float64
	Resistance float64
}

// Complete reports whether every derived column is defined.
func (r IndicatorRow) Complete() bool {
	for _, v := range []float64{
		r.SMAShort, r.SMALong, r.RSI, r.EMAFast, r.EMASlow, r.MACD, r.MACDSignal,
		r.BBUpper, r.BBMiddle, r.BBLower, r.ATR, r.Support, r.Resistance,
	} {
		if math.IsNaN(v) {
			return false
		}
	}
	return true
}

// IndicatorWindows records the windows a frame was computed with.
type IndicatorWindows struct {
	SMAShort          int     `json:"sma_short" mapstructure:"sma_short"`
	SMALong           int     `json:"sma_long" mapstructure:"sma_long"`
	RSI               int     `json:"rsi" mapstructure:"rsi"`
	EMAFast           int     `json:"ema_fast" mapstructure:"ema_fast"`
	EMASlow           int     `json:"ema_slow" mapstructure:"ema_slow"`
	MACDFast          int     `json:"macd_fast" mapstructure:"macd_fast"`
	MACDSlow          int     `json:"macd_slow" mapstructure:"macd_slow"`
	MACDSignal        int     `json:"macd_signal" mapstructure:"macd_signal"`
	BollingerWindow   int     `json:"bollinger_window" mapstructure:"bollinger_window"`
	BollingerStdDev   float64 `json:"bollinger_std_dev" mapstructure:"bollinger_std_dev"`
	ATR               int     `json:"atr" mapstructure:"atr"`
	SupportResistance int     `json:"support_resistance" mapstructure:"support_resistance"`
}

// IndicatorFrame is a bar series augmented with indicator columns.
// Rows are copies of the input bars; the frame shares no memory with its source series.
type IndicatorFrame struct {
	Windows IndicatorWindows
	Rows    []IndicatorRow
}

// Len returns the number of rows, complete or not.
func (f *IndicatorFrame) Len() int {
	if f == nil {
		return 0
	}
	return len(f.Rows)
}

// Latest returns the last row.
func (f *IndicatorFrame) Latest() (IndicatorRow, bool) {
	if f.Len() == 0 {
		return IndicatorRow{}, false
	}
	return f.Rows[len(f.Rows)-1], true
}

// CompleteRows returns the rows with every column defined, in order.
func (f *IndicatorFrame) CompleteRows() []IndicatorRow {
	if f == nil {
		return nil
	}
	rows := make([]IndicatorRow, 0, len(f.Rows))
	for _, r := range f.Rows {
		if r.Complete() {
			rows = append(rows, r)
		}
	}
	return rows
}

// DefaultIndicatorWindows returns the standard windows: SMA 20/50, RSI 14, EMA 9/21,
// MACD 12/26/9, Bollinger 20 at 2σ, ATR 14 and a 10-bar support/resistance range.
func DefaultIndicatorWindows() IndicatorWindows {
	return IndicatorWindows{
		SMAShort:          20,
		SMALong:           50,
		RSI:               14,
		EMAFast:           9,
		EMASlow:           21,
		MACDFast:          12,
		MACDSlow:          26,
		MACDSignal:        9,
		BollingerWindow:   20,
		BollingerStdDev:   2.0,
		ATR:               14,
		SupportResistance: 10,
	}
}
