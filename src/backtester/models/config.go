package models

import (
	"fmt"
	"time"
)

type PositionSizingMethod string

const (
	PositionSizingEqualWeight        PositionSizingMethod = "equal_weight"
	PositionSizingFixedFraction      PositionSizingMethod = "fixed_fraction"
	PositionSizingVolatilityAdjusted PositionSizingMethod = "volatility_adjusted"
)

func (m PositionSizingMethod) Validate() error {
	switch m {
	case PositionSizingEqualWeight, PositionSizingFixedFraction, PositionSizingVolatilityAdjusted:
		return nil
	default:
		return fmt.Errorf("unknown position sizing method: %s", m)
	}
}

type RebalanceFrequency string

const (
	RebalanceNone    RebalanceFrequency = "none"
	RebalanceDaily   RebalanceFrequency = "daily"
	RebalanceWeekly  RebalanceFrequency = "weekly"
	RebalanceMonthly RebalanceFrequency = "monthly"
)

func (f RebalanceFrequency) Validate() error {
	switch f {
	case RebalanceNone, RebalanceDaily, RebalanceWeekly, RebalanceMonthly:
		return nil
	default:
		return fmt.Errorf("unknown rebalance frequency: %s", f)
	}
}

// BacktestConfig holds the immutable parameters of a single run. Validate is
// called once before the run starts; the engine never mutates the config
// afterwards.
type BacktestConfig struct {
	StartDate          time.Time            `json:"start_date" yaml:"start_date"`
	EndDate            time.Time            `json:"end_date" yaml:"end_date"`
	InitialCapital     float64              `json:"initial_capital" yaml:"initial_capital"`
	MaxPositions       int                  `json:"max_positions" yaml:"max_positions"`
	PositionSizing     PositionSizingMethod `json:"position_sizing_method" yaml:"position_sizing_method"`
	FixedFraction      float64              `json:"fixed_fraction" yaml:"fixed_fraction"`
	CommissionPerTrade float64              `json:"commission_per_trade" yaml:"commission_per_trade"`
	SlippagePercent    float64              `json:"slippage_percent" yaml:"slippage_percent"`
	EnableStopLoss     bool                 `json:"enable_stop_loss" yaml:"enable_stop_loss"`
	StopLossPercent    float64              `json:"stop_loss_percent" yaml:"stop_loss_percent"`
	EnableTakeProfit   bool                 `json:"enable_take_profit" yaml:"enable_take_profit"`
	TakeProfitPercent  float64              `json:"take_profit_percent" yaml:"take_profit_percent"`
	RebalanceFrequency RebalanceFrequency   `json:"rebalance_frequency" yaml:"rebalance_frequency"`
	MinPositionSize    float64              `json:"min_position_size" yaml:"min_position_size"`
	LookbackPeriod     int                  `json:"lookback_period" yaml:"lookback_period"`
}

// ApplyDefaults fills in the optional fields a caller left at their zero
// value. Loaders call it before Validate.
func (c *BacktestConfig) ApplyDefaults() {
	if c.PositionSizing == "" {
		c.PositionSizing = PositionSizingEqualWeight
	}

	if c.RebalanceFrequency == "" {
		c.RebalanceFrequency = RebalanceNone
	}

	if c.PositionSizing == PositionSizingFixedFraction && c.FixedFraction == 0 {
		c.FixedFraction = 0.1
	}

	if c.LookbackPeriod == 0 {
		c.LookbackPeriod = 30
	}
}

func (c *BacktestConfig) Validate() error {
	if c.InitialCapital <= 0 {
		return fmt.Errorf("initial capital must be positive, got %.2f", c.InitialCapital)
	}

	if c.StartDate.IsZero() || c.EndDate.IsZero() {
		return fmt.Errorf("start date and end date are required")
	}

	if c.EndDate.Before(c.StartDate) {
		return fmt.Errorf("end date %s is before start date %s", c.EndDate.Format("2006-01-02"), c.StartDate.Format("2006-01-02"))
	}

	if c.MaxPositions <= 0 {
		return fmt.Errorf("max positions must be positive, got %d", c.MaxPositions)
	}

	if err := c.PositionSizing.Validate(); err != nil {
		return err
	}

	if c.PositionSizing == PositionSizingFixedFraction {
		if c.FixedFraction <= 0 || c.FixedFraction > 1 {
			return fmt.Errorf("fixed fraction must be in (0, 1], got %.4f", c.FixedFraction)
		}
	}

	if c.CommissionPerTrade < 0 {
		return fmt.Errorf("commission per trade cannot be negative, got %.2f", c.CommissionPerTrade)
	}

	if c.SlippagePercent < 0 || c.SlippagePercent >= 100 {
		return fmt.Errorf("slippage percent must be in [0, 100), got %.4f", c.SlippagePercent)
	}

	if c.EnableStopLoss && c.StopLossPercent <= 0 {
		return fmt.Errorf("stop loss percent must be positive when stop loss is enabled, got %.4f", c.StopLossPercent)
	}

	if c.EnableTakeProfit && c.TakeProfitPercent <= 0 {
		return fmt.Errorf("take profit percent must be positive when take profit is enabled, got %.4f", c.TakeProfitPercent)
	}

	if err := c.RebalanceFrequency.Validate(); err != nil {
		return err
	}

	if c.MinPositionSize < 0 {
		return fmt.Errorf("min position size cannot be negative, got %.2f", c.MinPositionSize)
	}

	if c.LookbackPeriod <= 0 {
		return fmt.Errorf("lookback period must be positive, got %d", c.LookbackPeriod)
	}

	return nil
}
