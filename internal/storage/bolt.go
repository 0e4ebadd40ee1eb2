package storage

import (
	"context"
	"fmt"
	"path/filepath"
	"strings"
	"time"

	"go.etcd.io/bbolt"
)

const localStorageBucket = "localStorage"

// Bolt is a BoltDB-backed backend.
type Bolt struct {
	db *bbolt.DB
}

// OpenBolt opens a BoltDB-backed backend at the provided path.
func OpenBolt(path string) (*Bolt, error) {
	if strings.TrimSpace(path) == "" {
		return nil, ErrEmptyPath
	}

	db, err := bbolt.Open(filepath.Clean(path), 0o600, &bbolt.Options{Timeout: time.Second})
	if err != nil {
		return nil, fmt.Errorf("open storage db: %w", err)
	}

	err = db.Update(func(tx *bbolt.Tx) error {
		_, err := tx.CreateBucketIfNotExists([]byte(localStorageBucket))
		return err
	})
	if err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("create %s bucket: %w", localStorageBucket, err)
	}

	return &Bolt{db: db}, nil
}

// Get implements Backend.
func (b *Bolt) Get(ctx context.Context, key string) (string, bool, error) {
	if err := ctx.Err(); err != nil {
		return "", false, err
	}

	var (
		value string
		ok    bool
	)
	err := b.db.View(func(tx *bbolt.Tx) error {
		bucket := tx.Bucket([]byte(localStorageBucket))
		if bucket == nil {
			return fmt.Errorf("%s bucket is missing", localStorageBucket)
		}
		if v := bucket.Get([]byte(key)); v != nil {
			// v is only valid inside the transaction.
			value, ok = string(v), true
		}
		return nil
	})
	if err != nil {
		return "", false, b.wrap(err)
	}
	return value, ok, nil
}

// Set implements Backend.
func (b *Bolt) Set(ctx context.Context, key, value string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	return b.wrap(b.db.Update(func(tx *bbolt.Tx) error {
		bucket := tx.Bucket([]byte(localStorageBucket))
		if bucket == nil {
			return fmt.Errorf("%s bucket is missing", localStorageBucket)
		}
		return bucket.Put([]byte(key), []byte(value))
	}))
}

// Remove implements Backend.
func (b *Bolt) Remove(ctx context.Context, key string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	return b.wrap(b.db.Update(func(tx *bbolt.Tx) error {
		bucket := tx.Bucket([]byte(localStorageBucket))
		if bucket == nil {
			return fmt.Errorf("%s bucket is missing", localStorageBucket)
		}
		return bucket.Delete([]byte(key))
	}))
}

// Close closes the underlying BoltDB database.
func (b *Bolt) Close() error {
	if b == nil || b.db == nil {
		return nil
	}
	return b.db.Close()
}

func (b *Bolt) wrap(err error) error {
	if err == bbolt.ErrDatabaseNotOpen {
		return ErrClosed
	}
	return err
}
