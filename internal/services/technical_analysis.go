package services

import (
	"math"

	"github.com/cinar/indicator/v2/helper"
	"github.com/cinar/indicator/v2/trend"
	"github.com/sirupsen/logrus"
	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/stat"

	"github.com/irfndi/stockcast/internal/models"
	"github.com/irfndi/stockcast/internal/utils"
)

// minIndicatorBars is the shortest series the indicator engine accepts.
const minIndicatorBars = 2

// TechnicalAnalysisService derives indicator columns from a bar series.
type TechnicalAnalysisService struct {
	windows models.IndicatorWindows
	logger  *logrus.Logger
}

// NewTechnicalAnalysisService creates a new technical analysis service
func NewTechnicalAnalysisService(windows models.IndicatorWindows, logger *logrus.Logger) *TechnicalAnalysisService {
	return &TechnicalAnalysisService{
		windows: windows,
		logger:  logger,
	}
}

// GetDefaultIndicatorConfig returns default configuration for indicators
func (tas *TechnicalAnalysisService) GetDefaultIndicatorConfig() models.IndicatorWindows {
	return models.DefaultIndicatorWindows()
}

// Windows returns the windows this service computes with.
func (tas *TechnicalAnalysisService) Windows() models.IndicatorWindows {
	return tas.windows
}

// Compute builds a new indicator frame from series. The series is not modified.
// Rows inside an indicator's warm-up window carry NaN for that column.
func (tas *TechnicalAnalysisService) Compute(series models.BarSeries) (*models.IndicatorFrame, error) {
	if len(series) < minIndicatorBars {
		return nil, utils.NewInsufficientDataError("indicator engine", minIndicatorBars, len(series))
	}

	w := tas.windows
	n := len(series)
	closes := series.Closes()
	highs := make([]float64, n)
	lows := make([]float64, n)
	ranges := make([]float64, n)
	for i, bar := range series {
		highs[i] = bar.High
		lows[i] = bar.Low
		ranges[i] = bar.High - bar.Low
	}

	smaShort := tas.calculateSMA(closes, w.SMAShort)
	smaLong := tas.calculateSMA(closes, w.SMALong)
	emaFast := calculateEMA(closes, w.EMAFast)
	emaSlow := calculateEMA(closes, w.EMASlow)
	macdLine, macdSignal := calculateMACD(closes, w.MACDFast, w.MACDSlow, w.MACDSignal)
	rsi := tas.calculateRSI(closes, w.RSI)
	upper, middle, lower := tas.calculateBollingerBands(closes, w.BollingerWindow, w.BollingerStdDev)
	// ATR here is the mean high-low range; the prior-close gap of the classical
	// true range is deliberately left out.
	atr := tas.calculateSMA(ranges, w.ATR)
	support := calculateMovingMin(lows, w.SupportResistance)
	resistance := calculateMovingMax(highs, w.SupportResistance)

	rows := make([]models.IndicatorRow, n)
	for i, bar := range series {
		rows[i] = models.IndicatorRow{
			Bar:        bar,
			SMAShort:   smaShort[i],
			SMALong:    smaLong[i],
			RSI:        rsi[i],
			EMAFast:    emaFast[i],
			EMASlow:    emaSlow[i],
			MACD:       macdLine[i],
			MACDSignal: macdSignal[i],
			BBUpper:    upper[i],
			BBMiddle:   middle[i],
			BBLower:    lower[i],
			ATR:        atr[i],
			Support:    support[i],
			Resistance: resistance[i],
		}
	}

	frame := &models.IndicatorFrame{Windows: w, Rows: rows}
	if tas.logger != nil {
		tas.logger.WithFields(logrus.Fields{
			"bars":          n,
			"complete_rows": len(frame.CompleteRows()),
		}).Debug("Indicator frame computed")
	}
	return frame, nil
}

// calculateSMA calculates Simple Moving Average aligned to the input; the first period-1 slots are NaN.
func (tas *TechnicalAnalysisService) calculateSMA(values []float64, period int) []float64 {
	if period <= 0 || len(values) < period {
		return nanSlice(len(values))
	}
	sma := trend.NewSmaWithPeriod[float64](period)
	return alignTail(len(values), helper.ChanToSlice(sma.Compute(helper.SliceToChan(values))))
}

// calculateMovingMin returns the lowest value of each trailing window.
func calculateMovingMin(values []float64, period int) []float64 {
	if period <= 0 || len(values) < period {
		return nanSlice(len(values))
	}
	movingMin := trend.NewMovingMinWithPeriod[float64](period)
	return alignTail(len(values), helper.ChanToSlice(movingMin.Compute(helper.SliceToChan(values))))
}

// calculateMovingMax returns the highest value of each trailing window.
func calculateMovingMax(values []float64, period int) []float64 {
	if period <= 0 || len(values) < period {
		return nanSlice(len(values))
	}
	movingMax := trend.NewMovingMaxWithPeriod[float64](period)
	return alignTail(len(values), helper.ChanToSlice(movingMax.Compute(helper.SliceToChan(values))))
}

// alignTail right-aligns an indicator result to n slots. The indicators skip
// their idle period, so the leading slots stay NaN.
func alignTail(n int, result []float64) []float64 {
	out := nanSlice(n)
	copy(out[n-len(result):], result)
	return out
}

// calculateRSI calculates Relative Strength Index from simple rolling means of gains and losses.
func (tas *TechnicalAnalysisService) calculateRSI(closes []float64, period int) []float64 {
	out := nanSlice(len(closes))
	if period <= 0 || len(closes) < period+1 {
		return out
	}

	gains := make([]float64, len(closes)-1)
	losses := make([]float64, len(closes)-1)
	for i := 1; i < len(closes); i++ {
		delta := closes[i] - closes[i-1]
		gains[i-1] = math.Max(delta, 0)
		losses[i-1] = math.Max(-delta, 0)
	}

	avgGain := tas.calculateSMA(gains, period)
	avgLoss := tas.calculateSMA(losses, period)
	for i := range gains {
		if math.IsNaN(avgGain[i]) || math.IsNaN(avgLoss[i]) {
			continue
		}
		out[i+1] = relativeStrengthIndex(avgGain[i], avgLoss[i])
	}
	return out
}

// relativeStrengthIndex maps mean gain and mean loss to RSI.
// A zero mean loss makes RS infinite, which is taken as RSI 100.
func relativeStrengthIndex(avgGain, avgLoss float64) float64 {
	if avgLoss <= 0 {
		return 100
	}
	rs := avgGain / avgLoss
	return 100 - 100/(1+rs)
}

// calculateBollingerBands calculates Bollinger Bands around the window mean using population standard deviation.
func (tas *TechnicalAnalysisService) calculateBollingerBands(prices []float64, period int, stdDev float64) (upper, middle, lower []float64) {
	upper = nanSlice(len(prices))
	middle = nanSlice(len(prices))
	lower = nanSlice(len(prices))
	if period <= 0 {
		return upper, middle, lower
	}

	for i := period - 1; i < len(prices); i++ {
		mean, sd := windowMeanStdDev(prices[i-period+1 : i+1])
		middle[i] = mean
		upper[i] = mean + stdDev*sd
		lower[i] = mean - stdDev*sd
	}
	return upper, middle, lower
}

// windowMeanStdDev returns the mean and population standard deviation of window.
// A flat window yields its exact value and zero spread, so the bands collapse onto the price.
func windowMeanStdDev(window []float64) (mean, sd float64) {
	if floats.Min(window) == floats.Max(window) {
		return window[0], 0
	}
	return stat.PopMeanStdDev(window, nil)
}

// calculateEMA seeds with the first value and applies α = 2/(period+1) from there on.
func calculateEMA(values []float64, period int) []float64 {
	out := make([]float64, len(values))
	if len(values) == 0 {
		return out
	}
	alpha := 2.0 / float64(period+1)
	out[0] = values[0]
	for i := 1; i < len(values); i++ {
		out[i] = out[i-1] + alpha*(values[i]-out[i-1])
	}
	return out
}

// calculateMACD returns the MACD line and its signal line.
func calculateMACD(closes []float64, fastPeriod, slowPeriod, signalPeriod int) (line, signal []float64) {
	fast := calculateEMA(closes, fastPeriod)
	slow := calculateEMA(closes, slowPeriod)
	line = make([]float64, len(closes))
	for i := range closes {
		line[i] = fast[i] - slow[i]
	}
	return line, calculateEMA(line, signalPeriod)
}

func nanSlice(n int) []float64 {
	out := make([]float64, n)
	for i := range out {
		out[i] = math.NaN()
	}
	return out
}
