// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package graph

import (
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"os"

	"github.com/dgraph-io/badger/v4"

	"github.com/oldnordic/splice/ast"
)

// Store persists symbols in an embedded BadgerDB for cross-invocation
// queries. Keys are laid out as
//
//	sym/<file>\x00<name>\x00<ordinal>
//
// with JSON-encoded ast.Symbol values, so prefix scans answer both
// per-file and per-file-per-name lookups.
//
// The store is optional: every patch operation works from the in-memory
// Index alone.
//
// Thread Safety: The underlying *badger.DB is safe for concurrent use;
// Badger's directory lock gives one invocation exclusive write access.
type Store struct {
	db *badger.DB
}

// StoreConfig holds configuration for a Store.
type StoreConfig struct {
	// Path is the database directory. Required unless InMemory is set.
	Path string

	// InMemory opens the database without disk persistence. Useful for
	// testing.
	InMemory bool

	// SyncWrites enables synchronous writes for durability.
	SyncWrites bool

	// Logger receives BadgerDB's internal logging. Nil disables it.
	Logger *slog.Logger
}

// DefaultStoreConfig returns the production configuration for path.
func DefaultStoreConfig(path string) StoreConfig {
	return StoreConfig{Path: path, SyncWrites: true}
}

// InMemoryStoreConfig returns a configuration for tests.
func InMemoryStoreConfig() StoreConfig {
	return StoreConfig{InMemory: true}
}

// badgerLogger adapts slog.Logger to BadgerDB's Logger interface.
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

// OpenStore opens (creating if needed) a symbol store.
func OpenStore(cfg StoreConfig) (*Store, error) {
	if !cfg.InMemory && cfg.Path == "" {
		return nil, errors.New("path is required for persistent store")
	}

	var opts badger.Options
	if cfg.InMemory {
		opts = badger.DefaultOptions("").WithInMemory(true)
	} else {
		if err := os.MkdirAll(cfg.Path, 0o750); err != nil {
			return nil, fmt.Errorf("create store directory %s: %w", cfg.Path, err)
		}
		opts = badger.DefaultOptions(cfg.Path)
	}

	opts = opts.WithSyncWrites(cfg.SyncWrites)
	opts = opts.WithNumVersionsToKeep(1)

	if cfg.Logger != nil {
		opts = opts.WithLogger(&badgerLogger{logger: cfg.Logger})
	} else {
		opts = opts.WithLogger(nil)
	}

	db, err := badger.Open(opts)
	if err != nil {
		return nil, fmt.Errorf("open symbol store: %w", err)
	}

	return &Store{db: db}, nil
}

// Close releases the database and its directory lock.
func (s *Store) Close() error {
	return s.db.Close()
}

func symbolPrefix(file string) []byte {
	return []byte("sym/" + file + "\x00")
}

func symbolNamePrefix(file, name string) []byte {
	return []byte("sym/" + file + "\x00" + name + "\x00")
}

// PutFileSymbols replaces the persisted symbols of one file with the
// given set.
func (s *Store) PutFileSymbols(file string, symbols []ast.Symbol) error {
	return s.db.Update(func(txn *badger.Txn) error {
		// Drop stale entries for the file first.
		it := txn.NewIterator(badger.IteratorOptions{Prefix: symbolPrefix(file)})
		var stale [][]byte
		for it.Rewind(); it.Valid(); it.Next() {
			stale = append(stale, it.Item().KeyCopy(nil))
		}
		it.Close()
		for _, key := range stale {
			if err := txn.Delete(key); err != nil {
				return err
			}
		}

		counts := make(map[string]int)
		for _, sym := range symbols {
			value, err := json.Marshal(sym)
			if err != nil {
				return fmt.Errorf("encode symbol %s: %w", sym.Name, err)
			}
			ordinal := counts[sym.Name]
			counts[sym.Name]++
			key := append(symbolNamePrefix(file, sym.Name), []byte(fmt.Sprintf("%04d", ordinal))...)
			if err := txn.Set(key, value); err != nil {
				return err
			}
		}
		return nil
	})
}

// FileSymbols returns every persisted symbol of file.
func (s *Store) FileSymbols(file string) ([]ast.Symbol, error) {
	return s.scan(symbolPrefix(file))
}

// SymbolsByFileName returns the persisted symbols matching (file, name).
func (s *Store) SymbolsByFileName(file, name string) ([]ast.Symbol, error) {
	return s.scan(symbolNamePrefix(file, name))
}

func (s *Store) scan(prefix []byte) ([]ast.Symbol, error) {
	var symbols []ast.Symbol
	err := s.db.View(func(txn *badger.Txn) error {
		it := txn.NewIterator(badger.IteratorOptions{Prefix: prefix})
		defer it.Close()
		for it.Rewind(); it.Valid(); it.Next() {
			err := it.Item().Value(func(value []byte) error {
				var sym ast.Symbol
				if err := json.Unmarshal(value, &sym); err != nil {
					return fmt.Errorf("decode symbol: %w", err)
				}
				symbols = append(symbols, sym)
				return nil
			})
			if err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return symbols, nil
}
