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
	"github.com/spf13/cobra"
)

// --- Global Command Variables ---
var (
	llmProvider string
	ledgerPath  string
	toolBudget  int
	plainOutput bool
	searchLimit int
	minSpread   float64
	servePort   int
	tradeSide   string
	tradeAmount float64

	rootCmd = &cobra.Command{
		Use:   "oracle",
		Short: "A prediction-market research agent",
		Long: `Oracle researches prediction markets with an LLM agent: it
searches Polymarket, Manifold, Metaculus and PredictIt, scans for
cross-platform arbitrage, paper-trades against its findings, and can
post results to X.`,
		SilenceUsage:      true,
		PersistentPreRunE: loadConfigForCommand,
	}

	chatCmd = &cobra.Command{
		Use:   "chat",
		Short: "Chat with the research agent interactively",
		RunE:  runChat, // Defined in cmd_chat.go
	}

	askCmd = &cobra.Command{
		Use:   "ask [question]",
		Short: "Ask the agent a single question and exit",
		Args:  cobra.MinimumNArgs(1),
		RunE:  runAsk, // Defined in cmd_chat.go
	}

	marketsCmd = &cobra.Command{
		Use:   "markets",
		Short: "Search and inspect prediction markets",
	}
	marketsSearchCmd = &cobra.Command{
		Use:   "search [query]",
		Short: "Search all platforms for markets",
		Args:  cobra.MinimumNArgs(1),
		RunE:  runMarketsSearch, // Defined in cmd_markets.go
	}
	marketsTrendingCmd = &cobra.Command{
		Use:   "trending",
		Short: "Show the most active markets per platform",
		RunE:  runMarketsTrending,
	}
	marketsGetCmd = &cobra.Command{
		Use:   "get [market-id]",
		Short: "Fetch one market by prefixed ID",
		Args:  cobra.ExactArgs(1),
		RunE:  runMarketsGet,
	}

	arbCmd = &cobra.Command{
		Use:   "arb [query]",
		Short: "Scan for cross-platform arbitrage on a topic",
		Args:  cobra.MinimumNArgs(1),
		RunE:  runArbScan, // Defined in cmd_markets.go
	}

	portfolioCmd = &cobra.Command{
		Use:   "portfolio",
		Short: "Show the paper-trading portfolio",
		RunE:  runPortfolio, // Defined in cmd_trade.go
	}
	tradeCmd = &cobra.Command{
		Use:   "trade",
		Short: "Manage paper positions",
	}
	tradeOpenCmd = &cobra.Command{
		Use:   "open [market-id]",
		Short: "Open a paper position at the current price",
		Args:  cobra.ExactArgs(1),
		RunE:  runTradeOpen,
	}
	tradeCloseCmd = &cobra.Command{
		Use:   "close [position-id]",
		Short: "Close a paper position and realize the P&L",
		Args:  cobra.ExactArgs(1),
		RunE:  runTradeClose,
	}

	serveCmd = &cobra.Command{
		Use:   "serve",
		Short: "Run the agent HTTP API server",
		RunE:  runServe, // Defined in cmd_serve.go
	}
)

func init() {
	rootCmd.PersistentFlags().StringVar(&llmProvider, "provider", "", "LLM provider (anthropic, openai); auto-detected when empty")
	rootCmd.PersistentFlags().StringVar(&ledgerPath, "ledger", defaultLedgerPath(), "badger directory for the paper-trading ledger")
	rootCmd.PersistentFlags().BoolVar(&plainOutput, "plain", false, "disable styled output")

	chatCmd.Flags().IntVar(&toolBudget, "tool-budget", 0, "max tool calls per turn (0 = default)")
	askCmd.Flags().IntVar(&toolBudget, "tool-budget", 0, "max tool calls per turn (0 = default)")

	marketsSearchCmd.Flags().IntVar(&searchLimit, "limit", 15, "maximum total results")
	marketsTrendingCmd.Flags().IntVar(&searchLimit, "limit", 5, "results per platform")
	arbCmd.Flags().Float64Var(&minSpread, "min-spread", 0, "minimum probability spread (0 = default 0.05)")

	tradeOpenCmd.Flags().StringVar(&tradeSide, "side", "yes", "position side: yes or no")
	tradeOpenCmd.Flags().Float64Var(&tradeAmount, "amount", 100, "dollars to commit")

	serveCmd.Flags().IntVar(&servePort, "port", 0, "HTTP listen port (0 = default 12310)")

	marketsCmd.AddCommand(marketsSearchCmd, marketsTrendingCmd, marketsGetCmd)
	tradeCmd.AddCommand(tradeOpenCmd, tradeCloseCmd)
	rootCmd.AddCommand(chatCmd, askCmd, marketsCmd, arbCmd, portfolioCmd, tradeCmd, serveCmd)
}
