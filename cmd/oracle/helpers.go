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
	"fmt"
	"os"
	"path/filepath"

	"github.com/mattn/go-isatty"

	"github.com/AleutianAI/AleutianOracle/pkg/ux"
	"github.com/AleutianAI/AleutianOracle/services/agent"
	"github.com/AleutianAI/AleutianOracle/services/llm"
	"github.com/AleutianAI/AleutianOracle/services/markets"
	"github.com/AleutianAI/AleutianOracle/services/social"
	"github.com/AleutianAI/AleutianOracle/services/trading"
)

func defaultLedgerPath() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return ".oracle/ledger"
	}
	return filepath.Join(home, ".oracle", "ledger")
}

func newUX() *ux.UX {
	if plainOutput {
		return ux.New(os.Stdout, true)
	}
	return ux.NewAuto()
}

// deps are the in-process backends the CLI commands share.
type deps struct {
	aggregator *markets.Aggregator
	matcher    *markets.Matcher
	engine     *trading.Engine
	store      *trading.Store
	xClient    *social.XClient
}

// buildMarketDeps wires the market side only (no model, no ledger).
func buildMarketDeps() *deps {
	return &deps{
		aggregator: markets.DefaultAggregator(nil),
		matcher:    markets.NewMatcher(0, minSpread),
	}
}

// buildTradingDeps wires markets plus the persistent paper ledger.
func buildTradingDeps() (*deps, error) {
	d := buildMarketDeps()

	store, err := trading.OpenStore(ledgerPath)
	if err != nil {
		return nil, fmt.Errorf("opening ledger at %s: %w", ledgerPath, err)
	}
	d.store = store

	d.engine, err = trading.NewEngine(d.aggregator, trading.RiskLimitsFromEnv(), store)
	if err != nil {
		store.Close()
		return nil, err
	}
	return d, nil
}

func (d *deps) close() {
	if d.store != nil {
		d.store.Close()
	}
}

// buildAgent assembles a full in-process agent with every tool group.
func buildAgent() (*agent.Agent, *deps, error) {
	d, err := buildTradingDeps()
	if err != nil {
		return nil, nil, err
	}
	d.xClient = social.NewXClientFromEnv(nil)

	var client llm.Client
	if llmProvider != "" {
		client, err = llm.NewClient(llmProvider)
	} else {
		client, err = llm.NewClientFromEnv()
	}
	if err != nil {
		d.close()
		return nil, nil, err
	}

	mem := agent.NewMemory()
	router := agent.NewRouter()
	if err := router.RegisterGroup("market", agent.MarketTools(d.aggregator, d.matcher, mem)); err != nil {
		d.close()
		return nil, nil, err
	}
	if err := router.RegisterGroup("social", agent.SocialTools(d.xClient)); err != nil {
		d.close()
		return nil, nil, err
	}
	if err := router.RegisterGroup("trading", agent.TradingTools(d.engine)); err != nil {
		d.close()
		return nil, nil, err
	}

	a := agent.New(client, router, mem, agent.Config{ToolBudget: toolBudget})
	return a, d, nil
}

func stdinIsTerminal() bool {
	return isatty.IsTerminal(os.Stdin.Fd()) || isatty.IsCygwinTerminal(os.Stdin.Fd())
}
