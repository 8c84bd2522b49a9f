// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package ux

import (
	"fmt"
	"strings"

	"github.com/AleutianAI/AleutianOracle/services/markets"
	"github.com/AleutianAI/AleutianOracle/services/trading"
)

const titleWidth = 58

// MarketLine renders one snapshot as a single table row.
func (u *UX) MarketLine(s markets.Snapshot) string {
	title := s.Title
	if len(title) > titleWidth {
		title = title[:titleWidth-1] + "…"
	}
	prob := s.FormattedProbability()
	if !u.plain {
		prob = Styles.Highlight.Render(prob)
	}
	platform := u.Styled(Styles.Muted, fmt.Sprintf("%-10s", string(s.Platform)))
	return fmt.Sprintf("%s  %7s  %-*s  %s", platform, prob, titleWidth, title, u.Styled(Styles.Muted, s.ID))
}

// PrintMarkets writes a snapshot table.
func (u *UX) PrintMarkets(snaps []markets.Snapshot) {
	if len(snaps) == 0 {
		u.Mutedln("No markets found.")
		return
	}
	for _, s := range snaps {
		u.Println(u.MarketLine(s))
	}
}

// PrintOpportunities writes an arbitrage table, widest spread first.
func (u *UX) PrintOpportunities(opps []markets.Opportunity) {
	if len(opps) == 0 {
		u.Mutedln("No cross-platform spreads above threshold.")
		return
	}
	for i, o := range opps {
		spread := fmt.Sprintf("%.1f pts", o.Spread*100)
		if !u.plain {
			spread = Styles.Success.Render(spread)
		}
		u.Print("%d. %s spread (similarity %.0f%%)\n", i+1, spread, o.Similarity*100)
		u.Println("   buy  " + u.MarketLine(o.BuyMarket))
		u.Println("   sell " + u.MarketLine(o.SellMarket))
	}
}

// PrintPortfolio writes the paper portfolio.
func (u *UX) PrintPortfolio(p trading.Portfolio) {
	var b strings.Builder
	fmt.Fprintf(&b, "Balance        $%.2f\n", p.Balance)
	fmt.Fprintf(&b, "Open exposure  $%.2f\n", p.OpenExposure)
	fmt.Fprintf(&b, "Total value    $%.2f\n", p.TotalValue)
	fmt.Fprintf(&b, "Realized P&L   %s\n", u.pnl(p.RealizedPL))
	fmt.Fprintf(&b, "Unrealized P&L %s", u.pnl(p.UnrealizedPL))
	u.Box(b.String())

	if len(p.OpenPositions) == 0 {
		u.Mutedln("No open positions.")
		return
	}
	for _, pos := range p.OpenPositions {
		u.Print("%s  %s %s  %.1f shares @ %.2f  cost $%.2f  now %s\n",
			u.Styled(Styles.Muted, pos.ID),
			pos.Side, pos.MarketID, pos.Shares, pos.EntryPrice, pos.Cost, u.pnl(pos.UnrealizedPL))
	}
}

func (u *UX) pnl(v float64) string {
	s := fmt.Sprintf("%+.2f", v)
	if u.plain {
		return s
	}
	if v < 0 {
		return Styles.Error.Render(s)
	}
	return Styles.Success.Render(s)
}
