package services

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/irfndi/stockcast/internal/config"
	"github.com/irfndi/stockcast/internal/models"
	"github.com/irfndi/stockcast/internal/utils"
)

func defaultSignalsConfig() config.SignalsConfig {
	return config.SignalsConfig{
		DefaultStrategy: "day_trading",
		Scalping: config.ScalpingConfig{
			StopDistance:    4.0,
			TargetDistance:  7.5,
			NeutralDistance: 4.0,
		},
		DayTrading: config.DayTradingConfig{
			SupportATRMultiple: 2.0,
			StopATRMultiple:    1.5,
			MinRiskATRMultiple: 0.5,
			RewardRatio:        2.0,
			NeutralATRMultiple: 1.0,
		},
	}
}

func setupConsensusService() *SignalConsensusService {
	return NewSignalConsensusService(defaultSignalsConfig(), testLogger())
}

func evaluateSeries(t *testing.T, series models.BarSeries, strategy models.Strategy) *models.SignalResult {
	t.Helper()
	frame, err := setupTestService().Compute(series)
	require.NoError(t, err)
	result, err := setupConsensusService().Evaluate(frame, strategy)
	require.NoError(t, err)
	return result
}

// bullishFrame returns rows where every sub-signal points up on the last bar.
func bullishFrame(entry, support float64) *models.IndicatorFrame {
	rows := make([]models.IndicatorRow, MinSignalRows)
	for i := range rows {
		rows[i] = models.IndicatorRow{
			Bar:        models.Bar{Date: seriesStart.AddDate(0, 0, i), Open: entry, High: entry + 1, Low: entry - 1, Close: entry},
			RSI:        25,
			EMAFast:    entry + 1,
			EMASlow:    entry,
			MACD:       -1,
			MACDSignal: 0,
			BBUpper:    entry + 10,
			BBLower:    entry,
			ATR:        2,
			Support:    support,
			Resistance: entry + 5,
		}
	}
	rows[len(rows)-1].MACD = 1
	return &models.IndicatorFrame{Windows: models.DefaultIndicatorWindows(), Rows: rows}
}

func TestSignalConsensusService_Evaluate_InsufficientRows(t *testing.T) {
	frame, err := setupTestService().Compute(generateRisingSeries(19, 100))
	require.NoError(t, err)

	result, err := setupConsensusService().Evaluate(frame, models.StrategyDayTrading)
	assert.Nil(t, result)
	assert.ErrorIs(t, err, utils.ErrInsufficientData)
}

func TestSignalConsensusService_Evaluate_RisingSeries(t *testing.T) {
	result := evaluateSeries(t, generateRisingSeries(80, 100), models.StrategyDayTrading)

	require.Len(t, result.Analysis, 4)
	assert.Equal(t, "RSI (14)", result.Analysis[0].Name)
	assert.Equal(t, "100.00", result.Analysis[0].Value)
	assert.Equal(t, models.SignalSell, result.Analysis[0].Signal, "RSI of a loss-free run reads as overbought")
	assert.Equal(t, "MACD", result.Analysis[1].Name)
	assert.Equal(t, models.SignalBuy, result.Analysis[1].Signal)
	assert.Equal(t, "EMA Trend (9 vs 21)", result.Analysis[2].Name)
	assert.Equal(t, "Bullish", result.Analysis[2].Value)
	assert.Equal(t, models.SignalBuy, result.Analysis[2].Signal)
	assert.Equal(t, "Bollinger Bands", result.Analysis[3].Name)
	assert.Equal(t, models.SignalNeutral, result.Analysis[3].Signal)

	assert.Equal(t, 1, result.Score)
	assert.Equal(t, models.SignalBuy, result.Signal)
	assert.Equal(t, models.ConfidenceMedium, result.Confidence)
	assert.Equal(t, "Day Trading (Intraday)", result.Strategy)
	assert.Equal(t, 179.0, result.EntryPrice)
	assert.InDelta(t, 176.0, result.StopLoss, 1e-9)
	assert.InDelta(t, 185.0, result.TakeProfit, 1e-9)
}

func TestSignalConsensusService_Evaluate_FallingSeries(t *testing.T) {
	series := make(models.BarSeries, 80)
	for i := range series {
		c := 200.0 - float64(i)
		series[i] = models.Bar{Date: seriesStart.AddDate(0, 0, i), Open: c, High: c + 1, Low: c - 1, Close: c, Volume: 10}
	}
	result := evaluateSeries(t, series, models.StrategyDayTrading)

	assert.Equal(t, models.SignalBuy, result.Analysis[0].Signal)
	assert.Equal(t, models.SignalSell, result.Analysis[1].Signal)
	assert.Equal(t, "Bearish", result.Analysis[2].Value)
	assert.Equal(t, models.SignalNeutral, result.Analysis[3].Signal)
	assert.Equal(t, -1, result.Score)
	assert.Equal(t, models.SignalSell, result.Signal)
	assert.InDelta(t, 124.0, result.StopLoss, 1e-9)
	assert.InDelta(t, 115.0, result.TakeProfit, 1e-9)
}

func TestSignalConsensusService_Evaluate_FlatSeriesTouchesLowerBand(t *testing.T) {
	result := evaluateSeries(t, generateFlatSeries(25, 50), models.StrategyDayTrading)

	assert.Equal(t, models.SignalStrongBuy, result.Analysis[3].Signal)
	assert.Equal(t, models.SignalNeutral, result.Analysis[1].Signal)
	assert.Equal(t, "Neutral", result.Analysis[2].Value)
	assert.Equal(t, 1, result.Score)
	assert.Equal(t, models.SignalBuy, result.Signal)
	assert.Equal(t, 50.0, result.StopLoss)
	assert.Equal(t, 50.0, result.TakeProfit)
}

func TestSignalConsensusService_Evaluate_FlatSeriesBoundaryAtInexactPrices(t *testing.T) {
	for _, price := range []float64{0.1, 0.3, 3.3, 50.1, 1999.99} {
		result := evaluateSeries(t, generateFlatSeries(60, price), models.StrategyDayTrading)
		assert.Equal(t, models.SignalStrongBuy, result.Analysis[3].Signal, "price %v", price)
	}
}

func TestSignalConsensusService_Evaluate_StrongBuyUsesSupport(t *testing.T) {
	result, err := setupConsensusService().Evaluate(bullishFrame(100, 99), models.StrategyDayTrading)
	require.NoError(t, err)

	assert.Equal(t, models.SignalStrongBuy, result.Analysis[1].Signal, "MACD crossed its signal line")
	assert.Equal(t, 6, result.Score)
	assert.Equal(t, models.SignalStrongBuy, result.Signal)
	assert.Equal(t, models.ConfidenceHigh, result.Confidence)
	assert.Equal(t, 99.0, result.StopLoss)
	assert.Equal(t, 102.0, result.TakeProfit)
}

func TestSignalConsensusService_Evaluate_NonPositiveRiskFallsBack(t *testing.T) {
	result, err := setupConsensusService().Evaluate(bullishFrame(100, 100), models.StrategyDayTrading)
	require.NoError(t, err)

	assert.Equal(t, 100.0, result.StopLoss)
	assert.Equal(t, 102.0, result.TakeProfit, "risk replaced by half an ATR")
}

func TestSignalConsensusService_ScalpingLevels(t *testing.T) {
	scs := setupConsensusService()
	tests := []struct {
		name         string
		signal       models.SignalType
		stop, target float64
	}{
		{"strong buy", models.SignalStrongBuy, 96, 107.5},
		{"buy", models.SignalBuy, 96, 107.5},
		{"sell", models.SignalSell, 104, 92.5},
		{"strong sell", models.SignalStrongSell, 104, 92.5},
		{"neutral", models.SignalNeutral, 96, 104},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			stop, target := scs.scalpingLevels(tt.signal, 100)
			assert.Equal(t, tt.stop, stop)
			assert.Equal(t, tt.target, target)
		})
	}

	result, err := scs.Evaluate(bullishFrame(100, 99), models.StrategyScalpingXAU)
	require.NoError(t, err)
	assert.Equal(t, "XAU Scalping (Fixed Pips)", result.Strategy)
	assert.Equal(t, 96.0, result.StopLoss)
	assert.Equal(t, 107.5, result.TakeProfit)
}

func TestSignalConsensusService_DayTradingNeutral(t *testing.T) {
	stop, target := setupConsensusService().dayTradingLevels(models.SignalNeutral, 100, 2, 90, 110)
	assert.Equal(t, 98.0, stop)
	assert.Equal(t, 102.0, target)
}

func TestSignalConsensusService_Evaluate_UnknownStrategy(t *testing.T) {
	_, err := setupConsensusService().Evaluate(bullishFrame(100, 99), models.Strategy("swing"))
	var vErr *utils.ValidationError
	assert.ErrorAs(t, err, &vErr)
}

func TestClassifyScore(t *testing.T) {
	tests := []struct {
		score      int
		signal     models.SignalType
		confidence models.Confidence
	}{
		{8, models.SignalStrongBuy, models.ConfidenceHigh},
		{3, models.SignalStrongBuy, models.ConfidenceHigh},
		{2, models.SignalBuy, models.ConfidenceMedium},
		{1, models.SignalBuy, models.ConfidenceMedium},
		{0, models.SignalNeutral, models.ConfidenceLow},
		{-1, models.SignalSell, models.ConfidenceMedium},
		{-2, models.SignalSell, models.ConfidenceMedium},
		{-3, models.SignalStrongSell, models.ConfidenceHigh},
	}
	for _, tt := range tests {
		signal, confidence := classifyScore(tt.score)
		assert.Equal(t, tt.signal, signal)
		assert.Equal(t, tt.confidence, confidence)
	}
}
