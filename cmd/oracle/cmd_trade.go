// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package main

import (
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/AleutianAI/AleutianOracle/services/trading"
)

func runPortfolio(cmd *cobra.Command, args []string) error {
	u := newUX()
	d, err := buildTradingDeps()
	if err != nil {
		return err
	}
	defer d.close()

	u.PrintPortfolio(d.engine.Portfolio(cmd.Context()))
	return nil
}

func runTradeOpen(cmd *cobra.Command, args []string) error {
	u := newUX()
	d, err := buildTradingDeps()
	if err != nil {
		return err
	}
	defer d.close()

	pos, err := d.engine.Buy(cmd.Context(), args[0], tradeSide, tradeAmount)
	if err != nil {
		if errors.Is(err, trading.ErrRiskRejected) {
			u.Errorln(fmt.Sprintf("Rejected by risk limits: %v", err))
			return nil
		}
		return err
	}

	u.Successln(fmt.Sprintf("Opened %s: %s %s, %.1f shares @ %.2f ($%.2f)",
		pos.ID, pos.Side, pos.MarketID, pos.Shares, pos.EntryPrice, pos.Cost))
	return nil
}

func runTradeClose(cmd *cobra.Command, args []string) error {
	u := newUX()
	d, err := buildTradingDeps()
	if err != nil {
		return err
	}
	defer d.close()

	pos, err := d.engine.Close(cmd.Context(), args[0])
	if err != nil {
		return err
	}

	u.Successln(fmt.Sprintf("Closed %s at %.2f, P&L %+.2f", pos.ID, pos.ExitPrice, pos.PnL))
	return nil
}
