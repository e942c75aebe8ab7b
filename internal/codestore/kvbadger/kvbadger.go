// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

// Package kvbadger implements the codestore.KV surface on top of
// dgraph-io/badger, an embedded key-value store. It backs C2's
// fast/small-value surface (the rolling `latest` pointer and fixed-version
// keys).
package kvbadger

import (
	"os"

	"github.com/dgraph-io/badger/v4"
)

// DB wraps a badger database opened either in-memory or at a path.
type DB struct {
	inner *badger.DB
}

// OpenInMemory opens an ephemeral badger database, suitable for tests and
// for single-process deployments that don't need the KV surface to survive
// a restart.
func OpenInMemory() (*DB, error) {
	opts := badger.DefaultOptions("").WithInMemory(true).WithLogger(nil)
	db, err := badger.Open(opts)
	if err != nil {
		return nil, err
	}
	return &DB{inner: db}, nil
}

// OpenWithPath opens (creating if absent) a badger database rooted at dir.
func OpenWithPath(dir string) (*DB, error) {
	if err := os.MkdirAll(dir, 0o750); err != nil {
		return nil, err
	}
	opts := badger.DefaultOptions(dir).WithLogger(nil)
	db, err := badger.Open(opts)
	if err != nil {
		return nil, err
	}
	return &DB{inner: db}, nil
}

func (d *DB) Close() error {
	return d.inner.Close()
}

// Get returns the value for key, or (nil, nil) on miss.
func (d *DB) Get(key string) ([]byte, error) {
	var out []byte
	err := d.inner.View(func(txn *badger.Txn) error {
		item, err := txn.Get([]byte(key))
		if err == badger.ErrKeyNotFound {
			return nil
		}
		if err != nil {
			return err
		}
		return item.Value(func(val []byte) error {
			out = append([]byte(nil), val...)
			return nil
		})
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

// Put unconditionally overwrites key with value.
func (d *DB) Put(key string, value []byte) error {
	return d.inner.Update(func(txn *badger.Txn) error {
		return txn.Set([]byte(key), value)
	})
}

// Delete removes key; no-op (no error) if absent.
func (d *DB) Delete(key string) error {
	return d.inner.Update(func(txn *badger.Txn) error {
		err := txn.Delete([]byte(key))
		if err == badger.ErrKeyNotFound {
			return nil
		}
		return err
	})
}

// Exists reports whether key is present.
func (d *DB) Exists(key string) (bool, error) {
	var found bool
	err := d.inner.View(func(txn *badger.Txn) error {
		_, err := txn.Get([]byte(key))
		if err == badger.ErrKeyNotFound {
			return nil
		}
		if err != nil {
			return err
		}
		found = true
		return nil
	})
	return found, err
}

// ListKeysWithPrefix returns every key (as strings) stored under prefix.
func (d *DB) ListKeysWithPrefix(prefix string) ([]string, error) {
	var keys []string
	err := d.inner.View(func(txn *badger.Txn) error {
		opts := badger.DefaultIteratorOptions
		opts.PrefetchValues = false
		opts.Prefix = []byte(prefix)
		it := txn.NewIterator(opts)
		defer it.Close()
		for it.Seek([]byte(prefix)); it.ValidForPrefix([]byte(prefix)); it.Next() {
			keys = append(keys, string(it.Item().KeyCopy(nil)))
		}
		return nil
	})
	return keys, err
}
