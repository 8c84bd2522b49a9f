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
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"os"

	"github.com/dgraph-io/badger/v4"
)

const ledgerKey = "trading/ledger"

// ledgerState is the serialized form of the engine's mutable state.
type ledgerState struct {
	Balance   float64     `json:"balance"`
	Positions []*Position `json:"positions"`
}

// Store persists the paper-trading ledger in BadgerDB so positions and
// balance survive restarts.
type Store struct {
	db *badger.DB
}

// badgerLogger adapts slog to BadgerDB's Logger interface.
type badgerLogger struct {
	logger *slog.Logger
}

func (l *badgerLogger) Errorf(format string, args ...interface{}) {
	l.logger.Error(fmt.Sprintf(format, args...))
}

func (l *badgerLogger) Warningf(format string, args ...interface{}) {
	l.logger.Warn(fmt.Sprintf(format, args...))
}

func (l *badgerLogger) Infof(format string, args ...interface{}) {
	l.logger.Info(fmt.Sprintf(format, args...))
}

func (l *badgerLogger) Debugf(format string, args ...interface{}) {
	l.logger.Debug(fmt.Sprintf(format, args...))
}

// OpenStore opens a persistent ledger store at path, creating the
// directory if needed.
func OpenStore(path string) (*Store, error) {
	if path == "" {
		return nil, errors.New("trading: store path is required")
	}
	if err := os.MkdirAll(path, 0750); err != nil {
		return nil, fmt.Errorf("create ledger directory %s: %w", path, err)
	}
	opts := badger.DefaultOptions(path).
		WithSyncWrites(true).
		WithNumVersionsToKeep(1).
		WithLogger(&badgerLogger{logger: slog.Default()})
	db, err := badger.Open(opts)
	if err != nil {
		return nil, fmt.Errorf("open ledger database: %w", err)
	}
	return &Store{db: db}, nil
}

// OpenInMemoryStore opens a throwaway store for tests and ephemeral runs.
func OpenInMemoryStore() (*Store, error) {
	opts := badger.DefaultOptions("").WithInMemory(true).WithLogger(nil)
	db, err := badger.Open(opts)
	if err != nil {
		return nil, fmt.Errorf("open in-memory ledger database: %w", err)
	}
	return &Store{db: db}, nil
}

// Save writes the full ledger state in one transaction.
func (s *Store) Save(state ledgerState) error {
	payload, err := json.Marshal(state)
	if err != nil {
		return fmt.Errorf("marshal ledger state: %w", err)
	}
	err = s.db.Update(func(txn *badger.Txn) error {
		return txn.Set([]byte(ledgerKey), payload)
	})
	if err != nil {
		return fmt.Errorf("persist ledger state: %w", err)
	}
	return nil
}

// Load reads the ledger state. ok is false when no state has ever been
// saved, letting the engine seed a fresh ledger.
func (s *Store) Load() (state ledgerState, ok bool, err error) {
	err = s.db.View(func(txn *badger.Txn) error {
		item, err := txn.Get([]byte(ledgerKey))
		if errors.Is(err, badger.ErrKeyNotFound) {
			return nil
		}
		if err != nil {
			return err
		}
		return item.Value(func(val []byte) error {
			if err := json.Unmarshal(val, &state); err != nil {
				return fmt.Errorf("decode ledger state: %w", err)
			}
			ok = true
			return nil
		})
	})
	if err != nil {
		return ledgerState{}, false, fmt.Errorf("load ledger state: %w", err)
	}
	return state, ok, nil
}

// Close releases the underlying database.
func (s *Store) Close() error {
	return s.db.Close()
}
