// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Command oracle is the prediction-market research agent CLI.
//
// It can chat with the agent interactively, search markets across
// platforms, scan for cross-platform arbitrage, inspect the paper
// portfolio, and run the HTTP API server.
//
// Configuration comes from environment variables (optionally a .env
// file in the working directory):
//
//   - ANTHROPIC_API_KEY / OPENAI_API_KEY: model credentials
//   - LLM_PROVIDER: "anthropic" or "openai" (auto-detected when unset)
//   - X_ACCESS_TOKEN, X_USERNAME: optional X posting credentials
//   - TRADING_*: paper-trading risk limit overrides
package main

import (
	"os"

	"github.com/joho/godotenv"

	"github.com/AleutianAI/AleutianOracle/pkg/logging"
)

func main() {
	// A missing .env is fine; explicit env always wins.
	_ = godotenv.Load()

	// Keep the terminal clean for the REPL; logs go to the file sink.
	logger := logging.New(logging.Config{
		Service: "oracle",
		Level:   logging.ParseLevel(os.Getenv("ORACLE_LOG_LEVEL")),
		LogDir:  os.Getenv("ORACLE_LOG_DIR"),
		Quiet:   os.Getenv("ORACLE_LOG_STDERR") == "",
	})
	defer logger.Close()
	logger.SetDefault()

	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}
