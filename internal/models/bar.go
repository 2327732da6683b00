package models

import (
	"fmt"
	"strings"
	"time"

	"github.com/irfndi/stockcast/internal/utils"
)

// DateLayout is the calendar-date format used on the wire and in storage.
const DateLayout = "2006-01-02"

// Bar is one period of OHLCV market data.
type Bar struct {
	Date   time.Time `json:"date"`
	Open   float64   `json:"open"`
	High   float64   `json:"high"`
	Low    float64   `json:"low"`
	Close  float64   `json:"close"`
	Volume int64     `json:"volume"`
}

// Validate checks that the bar carries usable prices.
func (b Bar) Validate() error {
	if b.Date.IsZero() {
		return utils.NewValidationError("bar date is required")
	}
	if b.Open <= 0 || b.High <= 0 || b.Low <= 0 || b.Close <= 0 {
		return utils.NewValidationErrorf("bar %s: prices must be positive", b.Date.Format(DateLayout))
	}
	if b.High < b.Low {
		return utils.NewValidationErrorf("bar %s: high %.4f below low %.4f", b.Date.Format(DateLayout), b.High, b.Low)
	}
	if b.Volume < 0 {
		return utils.NewValidationErrorf("bar %s: volume must not be negative", b.Date.Format(DateLayout))
	}
	return nil
}

// BarSeries is a chronologically ordered set of bars. Gaps between dates are allowed.
type BarSeries []Bar

// Validate checks every bar and the strict date ordering.
func (s BarSeries) Validate() error {
	for i, b := range s {
		if err := b.Validate(); err != nil {
			return err
		}
		if i > 0 && !b.Date.After(s[i-1].Date) {
			return utils.NewValidationErrorf("bars must be strictly ascending by date: %s follows %s",
				b.Date.Format(DateLayout), s[i-1].Date.Format(DateLayout))
		}
	}
	return nil
}

// Closes returns a fresh slice of close prices.
func (s BarSeries) Closes() []float64 {
	closes := make([]float64, len(s))
	for i, b := range s {
		closes[i] = b.Close
	}
	return closes
}

// Last returns the most recent bar.
func (s BarSeries) Last() (Bar, bool) {
	if len(s) == 0 {
		return Bar{}, false
	}
	return s[len(s)-1], true
}

// Clone copies the series so callers can hand it to code that must not alias the input.
func (s BarSeries) Clone() BarSeries {
	if s == nil {
		return nil
	}
	out := make(BarSeries, len(s))
	copy(out, s)
	return out
}

// TruncateDate normalises a timestamp to its UTC calendar date.
func TruncateDate(t time.Time) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

// ParseDate parses a YYYY-MM-DD string into a UTC date.
func ParseDate(value string) (time.Time, error) {
	t, err := time.ParseInLocation(DateLayout, value, time.UTC)
	if err != nil {
		return time.Time{}, fmt.Errorf("invalid date %q: %w", value, err)
	}
	return t, nil
}

// NormalizeSymbol trims and upper-cases a ticker so stores key it consistently.
func NormalizeSymbol(symbol string) string {
	return strings.ToUpper(strings.TrimSpace(symbol))
}
