// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package trading is a paper-trading engine over aggregated market
// prices. All fills are simulated at the current quoted probability;
// no order ever leaves the process.
package trading

import (
	"errors"
	"fmt"
	"log/slog"
	"os"
	"strconv"
)

// Default risk limits, overridable via environment.
const (
	DefaultMaxPositionSize  = 1000.0
	DefaultMaxTotalExposure = 5000.0
	DefaultMaxBalanceShare  = 0.20
	DefaultStartingBalance  = 10000.0
)

// ErrRiskRejected wraps every pre-trade rejection so callers can tell
// risk refusals from execution failures.
var ErrRiskRejected = errors.New("order rejected by risk limits")

// RiskLimits holds the pre-trade checks every order passes through.
type RiskLimits struct {
	// MaxPositionSize caps the dollar size of a single position.
	MaxPositionSize float64
	// MaxTotalExposure caps the sum of open position costs.
	MaxTotalExposure float64
	// MaxBalanceShare caps one order as a fraction of current balance.
	MaxBalanceShare float64
	// StartingBalance seeds a fresh ledger.
	StartingBalance float64
}

// DefaultRiskLimits returns the stock limits.
func DefaultRiskLimits() RiskLimits {
	return RiskLimits{
		MaxPositionSize:  DefaultMaxPositionSize,
		MaxTotalExposure: DefaultMaxTotalExposure,
		MaxBalanceShare:  DefaultMaxBalanceShare,
		StartingBalance:  DefaultStartingBalance,
	}
}

// RiskLimitsFromEnv reads TRADING_MAX_POSITION, TRADING_MAX_EXPOSURE,
// TRADING_MAX_BALANCE_SHARE and TRADING_STARTING_BALANCE, falling back
// to the defaults for anything unset or unparsable.
func RiskLimitsFromEnv() RiskLimits {
	limits := DefaultRiskLimits()
	limits.MaxPositionSize = envFloat("TRADING_MAX_POSITION", limits.MaxPositionSize)
	limits.MaxTotalExposure = envFloat("TRADING_MAX_EXPOSURE", limits.MaxTotalExposure)
	limits.MaxBalanceShare = envFloat("TRADING_MAX_BALANCE_SHARE", limits.MaxBalanceShare)
	limits.StartingBalance = envFloat("TRADING_STARTING_BALANCE", limits.StartingBalance)
	return limits
}

func envFloat(key string, fallback float64) float64 {
	raw := os.Getenv(key)
	if raw == "" {
		return fallback
	}
	v, err := strconv.ParseFloat(raw, 64)
	if err != nil || v <= 0 {
		slog.Warn("Ignoring unparsable risk limit", "key", key, "value", raw)
		return fallback
	}
	return v
}

// CheckOrder validates one prospective order of size amount against the
// current balance and open exposure. A nil return means the order may
// proceed.
func (r RiskLimits) CheckOrder(amount, balance, openExposure float64) error {
	if amount <= 0 {
		return fmt.Errorf("%w: order amount must be positive, got %.2f", ErrRiskRejected, amount)
	}
	if amount > balance {
		return fmt.Errorf("%w: amount $%.2f exceeds available balance $%.2f", ErrRiskRejected, amount, balance)
	}
	if amount > r.MaxPositionSize {
		return fmt.Errorf("%w: amount $%.2f exceeds max position size $%.2f", ErrRiskRejected, amount, r.MaxPositionSize)
	}
	if share := r.MaxBalanceShare * balance; amount > share {
		return fmt.Errorf("%w: amount $%.2f exceeds %.0f%% of balance ($%.2f)",
			ErrRiskRejected, amount, r.MaxBalanceShare*100, share)
	}
	if openExposure+amount > r.MaxTotalExposure {
		return fmt.Errorf("%w: total exposure $%.2f would exceed limit $%.2f",
			ErrRiskRejected, openExposure+amount, r.MaxTotalExposure)
	}
	return nil
}
