package interfaces

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/irfndi/stockcast/internal/models"
)

func TestNewMarketSnapshot(t *testing.T) {
	day := time.Date(2024, 5, 1, 0, 0, 0, 0, time.UTC)
	series := models.BarSeries{
		{Date: day, Open: 99, High: 101, Low: 98, Close: 100, Volume: 10},
		{Date: day.AddDate(0, 0, 1), Open: 100.5, High: 103.456, Low: 100.1, Close: 102.5, Volume: 25},
	}

	snapshot, ok := NewMarketSnapshot("AAPL", series)
	require.True(t, ok)

	assert.Equal(t, "AAPL", snapshot.Symbol)
	assert.Equal(t, day.AddDate(0, 0, 1), snapshot.Date)
	assert.Equal(t, "102.5", snapshot.Price.String())
	assert.Equal(t, "103.46", snapshot.High.String())
	assert.Equal(t, int64(25), snapshot.Volume)
	assert.Equal(t, "2.5", snapshot.Change.String())
	assert.Equal(t, "2.5", snapshot.ChangePercent.String())
	assert.Equal(t, 102.5, snapshot.GetPrice())
}

func TestNewMarketSnapshot_SingleBar(t *testing.T) {
	series := models.BarSeries{
		{Date: time.Date(2024, 5, 1, 0, 0, 0, 0, time.UTC), Open: 10, High: 11, Low: 9, Close: 10.25, Volume: 1},
	}

	snapshot, ok := NewMarketSnapshot("XAUUSD", series)
	require.True(t, ok)
	assert.True(t, snapshot.Change.IsZero())
	assert.True(t, snapshot.ChangePercent.IsZero())
}

func TestNewMarketSnapshot_Empty(t *testing.T) {
	snapshot, ok := NewMarketSnapshot("AAPL", nil)
	assert.False(t, ok)
	assert.Nil(t, snapshot)
}
