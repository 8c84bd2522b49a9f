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
	"bytes"
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"
)

// maxConfigFileSize caps the config file read at 1MB.
const maxConfigFileSize = 1024 * 1024

// fileConfig is the optional on-disk configuration. Every field maps to a
// flag; explicit flags always win over file values.
type fileConfig struct {
	Provider   string  `yaml:"provider"`
	Ledger     string  `yaml:"ledger"`
	ToolBudget int     `yaml:"tool_budget"`
	MinSpread  float64 `yaml:"min_spread"`
	Port       int     `yaml:"port"`
	Plain      bool    `yaml:"plain"`
}

// configFilePath returns the config file location: ORACLE_CONFIG when set,
// otherwise ~/.oracle/config.yaml.
func configFilePath() string {
	if p := os.Getenv("ORACLE_CONFIG"); p != "" {
		return p
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return ""
	}
	return filepath.Join(home, ".oracle", "config.yaml")
}

// loadFileConfig reads and strictly decodes a YAML config file. A missing
// file is not an error; unknown keys are.
func loadFileConfig(path string) (fileConfig, error) {
	var cfg fileConfig
	if path == "" {
		return cfg, nil
	}

	info, err := os.Stat(path)
	if os.IsNotExist(err) {
		return cfg, nil
	}
	if err != nil {
		return cfg, fmt.Errorf("stat config %s: %w", path, err)
	}
	if info.Size() > maxConfigFileSize {
		return cfg, fmt.Errorf("config %s exceeds %d bytes", path, maxConfigFileSize)
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return cfg, fmt.Errorf("read config %s: %w", path, err)
	}

	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	if err := dec.Decode(&cfg); err != nil {
		return cfg, fmt.Errorf("parse config %s: %w", path, err)
	}
	return cfg, nil
}

// applyFileConfig copies file values into the command variables for any flag
// the user did not set on the command line.
func applyFileConfig(cmd *cobra.Command, cfg fileConfig) {
	unset := func(name string) bool {
		f := cmd.Flags().Lookup(name)
		return f != nil && !f.Changed
	}

	if cfg.Provider != "" && unset("provider") {
		llmProvider = cfg.Provider
	}
	if cfg.Ledger != "" && unset("ledger") {
		ledgerPath = cfg.Ledger
	}
	if cfg.ToolBudget > 0 && unset("tool-budget") {
		toolBudget = cfg.ToolBudget
	}
	if cfg.MinSpread > 0 && unset("min-spread") {
		minSpread = cfg.MinSpread
	}
	if cfg.Port > 0 && unset("port") {
		servePort = cfg.Port
	}
	if cfg.Plain && unset("plain") {
		plainOutput = true
	}
}

func loadConfigForCommand(cmd *cobra.Command, _ []string) error {
	cfg, err := loadFileConfig(configFilePath())
	if err != nil {
		return err
	}
	applyFileConfig(cmd, cfg)
	return nil
}
