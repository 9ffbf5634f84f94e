// Package boltengine realizes the engine contract on top of an embedded
// go.etcd.io/bbolt database instead of the built-in append-only log. It
// exists to demonstrate that internal/server depends only on the engine
// contract, never on the built-in engine's concrete types, and gives the
// engine-selection marker file a second real backend to switch between.
package boltengine

import (
	"errors"
	"path/filepath"

	bolt "go.etcd.io/bbolt"

	"github.com/lighkLife/kvs/internal/engine"
)

var bucketName = []byte("kv")

// Store wraps a *bolt.DB opened against a single file inside the data
// directory. Like the built-in engine, a *Store is cheaply duplicable:
// bbolt's *DB is already safe for concurrent use by many goroutines, so
// handing out the same pointer to every connection is sufficient.
type Store struct {
	db *bolt.DB
}

// Open opens (creating if absent) a bbolt database file named kvs.db inside
// dir and ensures the kv bucket exists.
func Open(dir string) (*Store, error) {
	db, err := bolt.Open(filepath.Join(dir, "kvs.db"), 0o644, nil)
	if err != nil {
		return nil, engine.NewIOError(err)
	}
	err = db.Update(func(tx *bolt.Tx) error {
		_, err := tx.CreateBucketIfNotExists(bucketName)
		return err
	})
	if err != nil {
		db.Close()
		return nil, engine.NewIOError(err)
	}
	return &Store{db: db}, nil
}

func (s *Store) Get(key string) (string, bool, error) {
	var value []byte
	err := s.db.View(func(tx *bolt.Tx) error {
		v := tx.Bucket(bucketName).Get([]byte(key))
		if v != nil {
			value = append([]byte(nil), v...)
		}
		return nil
	})
	if err != nil {
		return "", false, engine.NewIOError(err)
	}
	if value == nil {
		return "", false, nil
	}
	return string(value), true, nil
}

func (s *Store) Set(key, value string) error {
	err := s.db.Update(func(tx *bolt.Tx) error {
		return tx.Bucket(bucketName).Put([]byte(key), []byte(value))
	})
	if err != nil {
		return engine.NewIOError(err)
	}
	return nil
}

func (s *Store) Remove(key string) error {
	err := s.db.Update(func(tx *bolt.Tx) error {
		b := tx.Bucket(bucketName)
		if b.Get([]byte(key)) == nil {
			return engine.ErrKeyNotFound
		}
		return b.Delete([]byte(key))
	})
	if err != nil {
		var kvErr *engine.Error
		if errors.As(err, &kvErr) {
			return err
		}
		return engine.NewIOError(err)
	}
	return nil
}

func (s *Store) Close() error {
	if err := s.db.Close(); err != nil {
		return engine.NewIOError(err)
	}
	return nil
}
