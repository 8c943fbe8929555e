// ModelVault - Versioned Persistence for Trained Model Artifacts
// Copyright 2026 ModelVault Contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/modelvault/modelvault

package persistence

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/dgraph-io/badger/v4"
	"github.com/goccy/go-json"
	"github.com/google/uuid"
)

// recordKeySeparator joins the kind prefix and the record id in badger keys.
const recordKeySeparator = ":"

// BadgerRecordStore is a RecordStore backed by an embedded BadgerDB.
// Records are stored as JSON documents under keys of the form "<kind>:<id>".
type BadgerRecordStore struct {
	db *badger.DB
}

// NewBadgerRecordStore creates a record store on top of an opened BadgerDB.
// The caller retains ownership of the database handle.
func NewBadgerRecordStore(db *badger.DB) *BadgerRecordStore {
	return &BadgerRecordStore{db: db}
}

// OpenBadgerRecordStore opens a BadgerDB at dir and wraps it in a record
// store. An empty dir opens an in-memory database, useful for tests.
func OpenBadgerRecordStore(dir string) (*BadgerRecordStore, func() error, error) {
	opts := badger.DefaultOptions(dir).WithLogger(nil)
	if dir == "" {
		opts = opts.WithInMemory(true)
	}

	db, err := badger.Open(opts)
	if err != nil {
		return nil, nil, fmt.Errorf("%w: %v", ErrStoreUnavailable, err)
	}

	return NewBadgerRecordStore(db), db.Close, nil
}

// GenerateID mints a fresh UUID. Collision-free under concurrent callers.
func (s *BadgerRecordStore) GenerateID() string {
	return uuid.NewString()
}

// SaveDict stores record under kind. An empty id gets a fresh one.
func (s *BadgerRecordStore) SaveDict(_ context.Context, record Record, kind, id string) (string, error) {
	if kind == "" {
		return "", fmt.Errorf("record kind is required")
	}
	if id == "" {
		id = s.GenerateID()
	}

	data, err := json.Marshal(record)
	if err != nil {
		return "", fmt.Errorf("failed to marshal record: %w", err)
	}

	err = s.db.Update(func(txn *badger.Txn) error {
		return txn.Set(recordKey(kind, id), data)
	})
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrStoreUnavailable, err)
	}

	return id, nil
}

// RecoverDict returns the record stored under id and kind.
func (s *BadgerRecordStore) RecoverDict(_ context.Context, id, kind string) (Record, error) {
	var record Record

	err := s.db.View(func(txn *badger.Txn) error {
		item, err := txn.Get(recordKey(kind, id))
		if errors.Is(err, badger.ErrKeyNotFound) {
			return fmt.Errorf("%w: record %s of kind %s", ErrUnknownID, id, kind)
		}
		if err != nil {
			return fmt.Errorf("%w: %v", ErrStoreUnavailable, err)
		}

		return item.Value(func(val []byte) error {
			return json.Unmarshal(val, &record)
		})
	})
	if err != nil {
		return nil, err
	}

	return record, nil
}

// AllDictIDs enumerates the ids of every record stored under kind.
func (s *BadgerRecordStore) AllDictIDs(_ context.Context, kind string) ([]string, error) {
	var ids []string

	err := s.db.View(func(txn *badger.Txn) error {
		opts := badger.DefaultIteratorOptions
		opts.PrefetchValues = false
		it := txn.NewIterator(opts)
		defer it.Close()

		prefix := []byte(kind + recordKeySeparator)
		for it.Seek(prefix); it.ValidForPrefix(prefix); it.Next() {
			key := string(it.Item().Key())
			ids = append(ids, strings.TrimPrefix(key, string(prefix)))
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrStoreUnavailable, err)
	}

	return ids, nil
}

// DictSize returns the encoded size in bytes of the stored record, taken
// from store metadata without decoding the document.
func (s *BadgerRecordStore) DictSize(_ context.Context, id, kind string) (int64, error) {
	var size int64

	err := s.db.View(func(txn *badger.Txn) error {
		item, err := txn.Get(recordKey(kind, id))
		if errors.Is(err, badger.ErrKeyNotFound) {
			return fmt.Errorf("%w: record %s of kind %s", ErrUnknownID, id, kind)
		}
		if err != nil {
			return fmt.Errorf("%w: %v", ErrStoreUnavailable, err)
		}

		size = item.ValueSize()
		return nil
	})
	if err != nil {
		return 0, err
	}

	return size, nil
}

func recordKey(kind, id string) []byte {
	return []byte(kind + recordKeySeparator + id)
}
