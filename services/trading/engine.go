// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package trading

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/AleutianAI/AleutianOracle/services/markets"
)

// Position sides.
const (
	SideYes = "yes"
	SideNo  = "no"
)

// ErrPositionNotFound is returned when a close targets an unknown or
// already closed position.
var ErrPositionNotFound = errors.New("position not found")

// Position is one simulated holding. Cost is the dollars committed at
// entry; Shares is Cost divided by the entry price of the chosen side.
type Position struct {
	ID         string     `json:"id"`
	MarketID   string     `json:"market_id"`
	Title      string     `json:"title"`
	Platform   string     `json:"platform"`
	Side       string     `json:"side"`
	Shares     float64    `json:"shares"`
	EntryPrice float64    `json:"entry_price"`
	Cost       float64    `json:"cost"`
	OpenedAt   time.Time  `json:"opened_at"`
	Closed     bool       `json:"closed"`
	ClosedAt   *time.Time `json:"closed_at,omitempty"`
	ExitPrice  float64    `json:"exit_price,omitempty"`
	PnL        float64    `json:"pnl,omitempty"`
}

// PositionView is a Position plus its current mark for reporting.
type PositionView struct {
	Position
	CurrentPrice float64 `json:"current_price"`
	CurrentValue float64 `json:"current_value"`
	UnrealizedPL float64 `json:"unrealized_pl"`
}

// Portfolio is a point-in-time account summary.
type Portfolio struct {
	Balance       float64        `json:"balance"`
	OpenPositions []PositionView `json:"open_positions"`
	OpenExposure  float64        `json:"open_exposure"`
	TotalValue    float64        `json:"total_value"`
	RealizedPL    float64        `json:"realized_pl"`
	UnrealizedPL  float64        `json:"unrealized_pl"`
}

// ArbitrageExecution reports both legs of a paired trade.
type ArbitrageExecution struct {
	BuyLeg  *Position `json:"buy_leg"`
	SellLeg *Position `json:"sell_leg"`
	// LockedSpread is the per-share probability gap captured at entry.
	LockedSpread float64 `json:"locked_spread"`
}

// PriceSource resolves a prefixed market ID to a current snapshot.
// *markets.Aggregator satisfies it.
type PriceSource interface {
	Get(ctx context.Context, marketID string) (markets.Snapshot, error)
}

// Engine is the paper-trading ledger: a cash balance plus simulated
// positions filled at quoted probabilities. All methods are safe for
// concurrent use. The store may be nil for a purely in-memory ledger.
type Engine struct {
	prices PriceSource
	limits RiskLimits
	store  *Store

	mu        sync.Mutex
	balance   float64
	positions []*Position
}

// NewEngine builds an engine, restoring any persisted ledger from the
// store when one is present.
func NewEngine(prices PriceSource, limits RiskLimits, store *Store) (*Engine, error) {
	e := &Engine{
		prices:  prices,
		limits:  limits,
		store:   store,
		balance: limits.StartingBalance,
	}
	if store != nil {
		state, ok, err := store.Load()
		if err != nil {
			return nil, err
		}
		if ok {
			e.balance = state.Balance
			e.positions = state.Positions
			slog.Info("Restored trading ledger", "balance", e.balance, "positions", len(e.positions))
		}
	}
	return e, nil
}

// Buy opens a simulated position of amount dollars on one side of a
// market, filling at the current quoted price.
func (e *Engine) Buy(ctx context.Context, marketID, side string, amount float64) (*Position, error) {
	side = strings.ToLower(strings.TrimSpace(side))
	if side != SideYes && side != SideNo {
		return nil, fmt.Errorf("invalid side %q: want %s or %s", side, SideYes, SideNo)
	}

	snap, err := e.prices.Get(ctx, marketID)
	if err != nil {
		return nil, fmt.Errorf("pricing %s: %w", marketID, err)
	}
	price, err := sidePrice(snap, side)
	if err != nil {
		return nil, err
	}

	e.mu.Lock()
	defer e.mu.Unlock()

	if err := e.limits.CheckOrder(amount, e.balance, e.openExposureLocked()); err != nil {
		return nil, err
	}

	pos := e.openLocked(snap, side, price, amount)
	if err := e.persistLocked(); err != nil {
		// A failed save must leave the ledger as it was.
		e.balance += amount
		e.positions = e.positions[:len(e.positions)-1]
		return nil, fmt.Errorf("saving ledger: %w", err)
	}
	slog.Info("Opened paper position",
		"position_id", pos.ID, "market_id", marketID, "side", side,
		"amount", amount, "price", price, "shares", pos.Shares)
	return pos, nil
}

// Close exits an open position at the market's current price and
// realizes the P&L into the balance.
func (e *Engine) Close(ctx context.Context, positionID string) (*Position, error) {
	e.mu.Lock()
	pos := e.findOpenLocked(positionID)
	e.mu.Unlock()
	if pos == nil {
		return nil, fmt.Errorf("position %s: %w", positionID, ErrPositionNotFound)
	}

	snap, err := e.prices.Get(ctx, pos.MarketID)
	if err != nil {
		return nil, fmt.Errorf("pricing %s: %w", pos.MarketID, err)
	}
	price, err := sidePrice(snap, pos.Side)
	if err != nil {
		return nil, err
	}

	e.mu.Lock()
	defer e.mu.Unlock()

	// Re-check under lock; a concurrent Close may have won.
	if pos = e.findOpenLocked(positionID); pos == nil {
		return nil, fmt.Errorf("position %s: %w", positionID, ErrPositionNotFound)
	}

	proceeds := pos.Shares * price
	now := time.Now()
	prev := *pos
	pos.Closed = true
	pos.ClosedAt = &now
	pos.ExitPrice = price
	pos.PnL = proceeds - pos.Cost
	e.balance += proceeds

	if err := e.persistLocked(); err != nil {
		*pos = prev
		e.balance -= proceeds
		return nil, fmt.Errorf("saving ledger: %w", err)
	}
	slog.Info("Closed paper position",
		"position_id", pos.ID, "exit_price", price, "pnl", pos.PnL, "balance", e.balance)
	return pos, nil
}

// ExecuteArbitrage opens both legs of a cross-platform pair: YES on the
// cheaper market, NO on the richer one, amount dollars per leg. Both
// legs are risk-checked against the post-first-leg state before either
// position is opened, so a rejection leaves the ledger untouched.
func (e *Engine) ExecuteArbitrage(ctx context.Context, buyMarketID, sellMarketID string, amount float64) (*ArbitrageExecution, error) {
	buySnap, err := e.prices.Get(ctx, buyMarketID)
	if err != nil {
		return nil, fmt.Errorf("pricing buy leg %s: %w", buyMarketID, err)
	}
	sellSnap, err := e.prices.Get(ctx, sellMarketID)
	if err != nil {
		return nil, fmt.Errorf("pricing sell leg %s: %w", sellMarketID, err)
	}

	yesPrice, err := sidePrice(buySnap, SideYes)
	if err != nil {
		return nil, fmt.Errorf("buy leg: %w", err)
	}
	noPrice, err := sidePrice(sellSnap, SideNo)
	if err != nil {
		return nil, fmt.Errorf("sell leg: %w", err)
	}

	e.mu.Lock()
	defer e.mu.Unlock()

	// Both legs must clear risk before either mutates the ledger.
	exposure := e.openExposureLocked()
	if err := e.limits.CheckOrder(amount, e.balance, exposure); err != nil {
		return nil, fmt.Errorf("buy leg: %w", err)
	}
	if err := e.limits.CheckOrder(amount, e.balance-amount, exposure+amount); err != nil {
		return nil, fmt.Errorf("sell leg: %w", err)
	}

	buyLeg := e.openLocked(buySnap, SideYes, yesPrice, amount)
	sellLeg := e.openLocked(sellSnap, SideNo, noPrice, amount)
	if err := e.persistLocked(); err != nil {
		e.balance += 2 * amount
		e.positions = e.positions[:len(e.positions)-2]
		return nil, fmt.Errorf("saving ledger: %w", err)
	}

	spread := 0.0
	if sellSnap.Probability != nil && buySnap.Probability != nil {
		spread = *sellSnap.Probability - *buySnap.Probability
	}
	slog.Info("Executed paper arbitrage",
		"buy_market", buyMarketID, "sell_market", sellMarketID,
		"amount_per_leg", amount, "locked_spread", spread)
	return &ArbitrageExecution{BuyLeg: buyLeg, SellLeg: sellLeg, LockedSpread: spread}, nil
}

// Portfolio marks every open position to current prices. Markets that
// fail to price mark at their entry price.
func (e *Engine) Portfolio(ctx context.Context) Portfolio {
	e.mu.Lock()
	balance := e.balance
	var open []*Position
	realized := 0.0
	for _, p := range e.positions {
		if p.Closed {
			realized += p.PnL
		} else {
			open = append(open, p)
		}
	}
	e.mu.Unlock()

	out := Portfolio{Balance: balance, RealizedPL: realized}
	for _, p := range open {
		view := PositionView{Position: *p, CurrentPrice: p.EntryPrice}
		if snap, err := e.prices.Get(ctx, p.MarketID); err == nil {
			if price, err := sidePrice(snap, p.Side); err == nil {
				view.CurrentPrice = price
			}
		} else {
			slog.Warn("Could not mark position to market", "position_id", p.ID, "error", err)
		}
		view.CurrentValue = view.Shares * view.CurrentPrice
		view.UnrealizedPL = view.CurrentValue - view.Cost
		out.OpenPositions = append(out.OpenPositions, view)
		out.OpenExposure += p.Cost
		out.UnrealizedPL += view.UnrealizedPL
		out.TotalValue += view.CurrentValue
	}
	out.TotalValue += balance
	return out
}

// Limits exposes the engine's risk configuration.
func (e *Engine) Limits() RiskLimits { return e.limits }

// Balance returns the current cash balance.
func (e *Engine) Balance() float64 {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.balance
}

// --- internal ---

// openLocked mutates balance and positions; caller holds mu and has
// already risk-checked.
func (e *Engine) openLocked(snap markets.Snapshot, side string, price, amount float64) *Position {
	pos := &Position{
		ID:         uuid.NewString(),
		MarketID:   snap.ID,
		Title:      snap.Title,
		Platform:   string(snap.Platform),
		Side:       side,
		Shares:     amount / price,
		EntryPrice: price,
		Cost:       amount,
		OpenedAt:   time.Now(),
	}
	e.balance -= amount
	e.positions = append(e.positions, pos)
	return pos
}

func (e *Engine) findOpenLocked(positionID string) *Position {
	for _, p := range e.positions {
		if p.ID == positionID && !p.Closed {
			return p
		}
	}
	return nil
}

func (e *Engine) openExposureLocked() float64 {
	total := 0.0
	for _, p := range e.positions {
		if !p.Closed {
			total += p.Cost
		}
	}
	return total
}

func (e *Engine) persistLocked() error {
	if e.store == nil {
		return nil
	}
	return e.store.Save(ledgerState{Balance: e.balance, Positions: e.positions})
}

// sidePrice extracts the fill price for a side from a snapshot.
func sidePrice(snap markets.Snapshot, side string) (float64, error) {
	if snap.Probability == nil {
		return 0, fmt.Errorf("market %s has no current price", snap.ID)
	}
	p := *snap.Probability
	if side == SideNo {
		if snap.NoPrice != nil {
			p = *snap.NoPrice
		} else {
			p = 1 - p
		}
	} else if snap.YesPrice != nil {
		p = *snap.YesPrice
	}
	if p <= 0 || p >= 1 {
		return 0, fmt.Errorf("market %s %s price %.4f is outside (0,1)", snap.ID, side, p)
	}
	return p, nil
}
