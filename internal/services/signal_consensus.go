package services

import (
	"fmt"
	"math"

	"github.com/sirupsen/logrus"

	"github.com/irfndi/stockcast/internal/config"
	"github.com/irfndi/stockcast/internal/models"
	"github.com/irfndi/stockcast/internal/utils"
)

// MinSignalRows is the shortest frame the consensus engine evaluates.
const MinSignalRows = 20

// RSI thresholds.
const (
	rsiOversold   = 30.0
	rsiOverbought = 70.0
)

// Strategy display names.
var strategyNames = map[models.Strategy]string{
	models.StrategyDayTrading:  "Day Trading (Intraday)",
	models.StrategyScalpingXAU: "XAU Scalping (Fixed Pips)",
}

// SignalConsensusService combines indicator sub-signals into one recommendation
// and attaches stop-loss and take-profit levels for the chosen strategy.
type SignalConsensusService struct {
	config config.SignalsConfig
	logger *logrus.Logger
}

// NewSignalConsensusService creates a new signal consensus service
func NewSignalConsensusService(cfg config.SignalsConfig, logger *logrus.Logger) *SignalConsensusService {
	return &SignalConsensusService{
		config: cfg,
		logger: logger,
	}
}

// DefaultStrategy returns the configured strategy used when a request names none.
func (scs *SignalConsensusService) DefaultStrategy() models.Strategy {
	strategy, err := models.ParseStrategy(scs.config.DefaultStrategy, models.StrategyDayTrading)
	if err != nil {
		return models.StrategyDayTrading
	}
	return strategy
}

// Evaluate scores the latest row of frame. It needs at least MinSignalRows rows.
func (scs *SignalConsensusService) Evaluate(frame *models.IndicatorFrame, strategy models.Strategy) (*models.SignalResult, error) {
	if frame.Len() < MinSignalRows {
		return nil, utils.NewInsufficientDataError("signal consensus", MinSignalRows, frame.Len())
	}
	if strategy == "" {
		strategy = scs.DefaultStrategy()
	}
	name, ok := strategyNames[strategy]
	if !ok {
		return nil, utils.NewValidationErrorf("unknown strategy %q", strategy)
	}

	latest := frame.Rows[frame.Len()-1]
	previous := frame.Rows[frame.Len()-2]
	w := frame.Windows

	rsiSignal := rsiSubSignal(latest.RSI)
	macdSignal := macdSubSignal(latest, previous)
	emaSignal := emaSubSignal(latest.EMAFast, latest.EMASlow)
	bbSignal := bollingerSubSignal(latest.Close, latest.BBLower, latest.BBUpper)

	analysis := []models.SubSignal{
		{
			Name:      fmt.Sprintf("RSI (%d)", w.RSI),
			Value:     fmt.Sprintf("%.2f", latest.RSI),
			Signal:    rsiSignal,
			Condition: fmt.Sprintf("Momentum (<%.0f Buy, >%.0f Sell)", rsiOversold, rsiOverbought),
		},
		{
			Name:      "MACD",
			Value:     fmt.Sprintf("%.2f", latest.MACD),
			Signal:    macdSignal,
			Condition: "Trend Crossover",
		},
		{
			Name:      fmt.Sprintf("EMA Trend (%d vs %d)", w.EMAFast, w.EMASlow),
			Value:     trendLabel(emaSignal),
			Signal:    emaSignal,
			Condition: "Fast Moving Averages",
		},
		{
			Name:      "Bollinger Bands",
			Value:     fmt.Sprintf("%.2f / %.2f", latest.BBLower, latest.BBUpper),
			Signal:    bbSignal,
			Condition: "Reversion (Outer Bands)",
		},
	}

	score := 0
	for _, sub := range analysis {
		score += sub.Signal.Score()
	}
	overall, confidence := classifyScore(score)

	result := &models.SignalResult{
		Signal:     overall,
		Confidence: confidence,
		Score:      score,
		EntryPrice: latest.Close,
		Strategy:   name,
		Analysis:   analysis,
	}

	switch strategy {
	case models.StrategyScalpingXAU:
		result.StopLoss, result.TakeProfit = scs.scalpingLevels(overall, latest.Close)
	default:
		if math.IsNaN(latest.ATR) || math.IsNaN(latest.Support) || math.IsNaN(latest.Resistance) {
			return nil, utils.NewComputationError("signal consensus", fmt.Errorf("latest row has no ATR or support/resistance"))
		}
		result.StopLoss, result.TakeProfit = scs.dayTradingLevels(overall, latest.Close, latest.ATR, latest.Support, latest.Resistance)
	}

	if scs.logger != nil {
		scs.logger.WithFields(logrus.Fields{
			"signal":     overall,
			"score":      score,
			"strategy":   strategy,
			"confidence": confidence,
		}).Debug("Signal consensus evaluated")
	}

	return result, nil
}

func rsiSubSignal(rsi float64) models.SignalType {
	switch {
	case rsi < rsiOversold:
		return models.SignalBuy
	case rsi > rsiOverbought:
		return models.SignalSell
	default:
		return models.SignalNeutral
	}
}

// macdSubSignal treats a crossover between the previous and latest rows as the strong case.
func macdSubSignal(latest, previous models.IndicatorRow) models.SignalType {
	switch {
	case latest.MACD > latest.MACDSignal && previous.MACD <= previous.MACDSignal:
		return models.SignalStrongBuy
	case latest.MACD < latest.MACDSignal && previous.MACD >= previous.MACDSignal:
		return models.SignalStrongSell
	case latest.MACD > latest.MACDSignal:
		return models.SignalBuy
	case latest.MACD < latest.MACDSignal:
		return models.SignalSell
	default:
		return models.SignalNeutral
	}
}

func emaSubSignal(fast, slow float64) models.SignalType {
	switch {
	case fast > slow:
		return models.SignalBuy
	case fast < slow:
		return models.SignalSell
	default:
		return models.SignalNeutral
	}
}

// bollingerSubSignal checks the lower band first, so a zero-width band reads as STRONG_BUY.
func bollingerSubSignal(close, lower, upper float64) models.SignalType {
	switch {
	case close <= lower:
		return models.SignalStrongBuy
	case close >= upper:
		return models.SignalStrongSell
	default:
		return models.SignalNeutral
	}
}

func trendLabel(signal models.SignalType) string {
	switch signal {
	case models.SignalBuy:
		return "Bullish"
	case models.SignalSell:
		return "Bearish"
	default:
		return "Neutral"
	}
}

func classifyScore(score int) (models.SignalType, models.Confidence) {
	switch {
	case score >= 3:
		return models.SignalStrongBuy, models.ConfidenceHigh
	case score >= 1:
		return models.SignalBuy, models.ConfidenceMedium
	case score <= -3:
		return models.SignalStrongSell, models.ConfidenceHigh
	case score <= -1:
		return models.SignalSell, models.ConfidenceMedium
	default:
		return models.SignalNeutral, models.ConfidenceLow
	}
}

func (scs *SignalConsensusService) scalpingLevels(signal models.SignalType, entry float64) (stop, target float64) {
	cfg := scs.config.Scalping
	switch {
	case signal.IsBuy():
		return entry - cfg.StopDistance, entry + cfg.TargetDistance
	case signal.IsSell():
		return entry + cfg.StopDistance, entry - cfg.TargetDistance
	default:
		return entry - cfg.StopDistance, entry + cfg.NeutralDistance
	}
}

// dayTradingLevels uses the nearby swing level as the stop when it lies within the
// support multiple of ATR, and an ATR-based stop otherwise. A non-positive risk falls
// back to the minimum risk multiple; the stop itself is left where it was.
func (scs *SignalConsensusService) dayTradingLevels(signal models.SignalType, entry, atr, support, resistance float64) (stop, target float64) {
	cfg := scs.config.DayTrading
	switch {
	case signal.IsBuy():
		stop = entry - cfg.StopATRMultiple*atr
		if entry-support < cfg.SupportATRMultiple*atr {
			stop = support
		}
		risk := entry - stop
		if risk <= 0 {
			risk = cfg.MinRiskATRMultiple * atr
		}
		return stop, entry + cfg.RewardRatio*risk
	case signal.IsSell():
		stop = entry + cfg.StopATRMultiple*atr
		if resistance-entry < cfg.SupportATRMultiple*atr {
			stop = resistance
		}
		risk := stop - entry
		if risk <= 0 {
			risk = cfg.MinRiskATRMultiple * atr
		}
		return stop, entry - cfg.RewardRatio*risk
	default:
		return entry - cfg.NeutralATRMultiple*atr, entry + cfg.NeutralATRMultiple*atr
	}
}
