package models

import (
	"fmt"
	"strings"
)

// SignalType is a directional recommendation.
type SignalType string

const (
	SignalStrongBuy  SignalType = "STRONG_BUY"
	SignalBuy        SignalType = "BUY"
	SignalNeutral    SignalType = "NEUTRAL"
	SignalSell       SignalType = "SELL"
	SignalStrongSell SignalType = "STRONG_SELL"
)

// Score returns the consensus weight of the signal.
func (s SignalType) Score() int {
	switch s {
	case SignalStrongBuy:
		return 2
	case SignalBuy:
		return 1
	case SignalSell:
		return -1
	case SignalStrongSell:
		return -2
	default:
		return 0
	}
}

// IsBuy reports BUY or STRONG_BUY.
func (s SignalType) IsBuy() bool { return s == SignalBuy || s == SignalStrongBuy }

// IsSell reports SELL or STRONG_SELL.
func (s SignalType) IsSell() bool { return s == SignalSell || s == SignalStrongSell }

// Confidence describes how strongly the sub-signals agree.
type Confidence string

const (
	ConfidenceLow    Confidence = "Low"
	ConfidenceMedium Confidence = "Medium"
	ConfidenceHigh   Confidence = "High"
)

// Strategy selects the risk-management rules applied to a signal.
type Strategy string

const (
	StrategyDayTrading  Strategy = "day_trading"
	StrategyScalpingXAU Strategy = "scalping_xau"
)

// ParseStrategy accepts the wire names of the strategies. An empty value yields the fallback.
func ParseStrategy(value string, fallback Strategy) (Strategy, error) {
	switch Strategy(strings.ToLower(strings.TrimSpace(value))) {
	case "":
		return fallback, nil
	case StrategyDayTrading:
		return StrategyDayTrading, nil
	case StrategyScalpingXAU:
		return StrategyScalpingXAU, nil
	default:
		return "", fmt.Errorf("unknown strategy %q", value)
	}
}

// SubSignal is one indicator's contribution to the consensus.
type SubSignal struct {
	Name      string     `json:"name"`
	Value     string     `json:"value"`
	Signal    SignalType `json:"signal"`
	Condition string     `json:"condition"`
}

// SignalResult is the consensus signal with its risk levels.
type SignalResult struct {
	Signal     SignalType  `json:"signal"`
	Confidence Confidence  `json:"confidence"`
	Score      int         `json:"score"`
	EntryPrice float64     `json:"entry_price"`
	StopLoss   float64     `json:"stop_loss"`
	TakeProfit float64     `json:"take_profit"`
	Strategy   string      `json:"strategy"`
	Analysis   []SubSignal `json:"analysis"`
}
