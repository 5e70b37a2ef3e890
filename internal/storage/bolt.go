package storage

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"time"

	bolt "go.etcd.io/bbolt"
	"go.uber.org/zap"

	"github.com/OrlandoBitencourt/bandeira/internal/domain"
)

var flagsBucket = []byte("flags")

// BoltStore is a Store backed by a single bbolt file.
type BoltStore struct {
	path   string
	db     *bolt.DB
	logger *zap.Logger

	counters
}

// NewBoltStore returns a BoltStore for the file at path. Call Open before use.
func NewBoltStore(path string) *BoltStore {
	return &BoltStore{
		path:   path,
		logger: zap.NewNop(),
	}
}

// WithLogger sets the logger on the store.
func (s *BoltStore) WithLogger(l *zap.Logger) {
	s.logger = l
}

// Open creates the bolt file if it doesn't exist and opens it otherwise.
func (s *BoltStore) Open(ctx context.Context) error {
	if err := os.MkdirAll(filepath.Dir(s.path), 0700); err != nil {
		return fmt.Errorf("unable to create directory %s: %v", s.path, err)
	}

	db, err := bolt.Open(s.path, 0600, &bolt.Options{Timeout: 1 * time.Second})
	if err != nil {
		return fmt.Errorf("unable to open boltdb file %v", err)
	}

	if err := db.Update(func(tx *bolt.Tx) error {
		_, err := tx.CreateBucketIfNotExists(flagsBucket)
		return err
	}); err != nil {
		db.Close()
		return fmt.Errorf("unable to create flags bucket: %v", err)
	}
	s.db = db

	s.logger.Info("Resources opened", zap.String("path", s.path))
	return nil
}

// Close the connection to the bolt database
func (s *BoltStore) Close() error {
	if s.db != nil {
		return s.db.Close()
	}
	return nil
}

func (s *BoltStore) Get(ctx context.Context, name string) (*domain.FeatureFlag, error) {
	if err := checkContext(ctx); err != nil {
		return nil, err
	}

	var data []byte
	err := s.db.View(func(tx *bolt.Tx) error {
		v := tx.Bucket(flagsBucket).Get([]byte(name))
		if v == nil {
			return ErrNotFound
		}
		// v is only valid inside the transaction
		data = append([]byte(nil), v...)
		return nil
	})

	s.gets.Add(1)
	if err == ErrNotFound {
		s.misses.Add(1)
		return nil, err
	}
	if err != nil {
		s.errors.Add(1)
		return nil, err
	}
	return Decode(data)
}

func (s *BoltStore) Put(ctx context.Context, flag domain.FeatureFlag) error {
	if err := checkContext(ctx); err != nil {
		return err
	}

	data, err := Encode(flag)
	if err != nil {
		return err
	}

	if err := s.db.Update(func(tx *bolt.Tx) error {
		return tx.Bucket(flagsBucket).Put([]byte(flag.Name), data)
	}); err != nil {
		s.errors.Add(1)
		return err
	}

	s.puts.Add(1)
	return nil
}

func (s *BoltStore) Delete(ctx context.Context, name string) error {
	if err := checkContext(ctx); err != nil {
		return err
	}

	err := s.db.Update(func(tx *bolt.Tx) error {
		b := tx.Bucket(flagsBucket)
		if b.Get([]byte(name)) == nil {
			return ErrNotFound
		}
		return b.Delete([]byte(name))
	})
	switch {
	case err == ErrNotFound:
		return err
	case err != nil:
		s.errors.Add(1)
		return err
	}

	s.deletes.Add(1)
	return nil
}

func (s *BoltStore) Exists(ctx context.Context, name string) (bool, error) {
	if err := checkContext(ctx); err != nil {
		return false, err
	}

	var found bool
	err := s.db.View(func(tx *bolt.Tx) error {
		found = tx.Bucket(flagsBucket).Get([]byte(name)) != nil
		return nil
	})
	return found, err
}

func (s *BoltStore) List(ctx context.Context) ([]domain.FeatureFlag, error) {
	if err := checkContext(ctx); err != nil {
		return nil, err
	}

	var flags []domain.FeatureFlag
	err := s.db.View(func(tx *bolt.Tx) error {
		return tx.Bucket(flagsBucket).ForEach(func(k, v []byte) error {
			flag, err := Decode(v)
			if err != nil {
				s.logger.Warn("Skipping undecodable flag", zap.ByteString("key", k), zap.Error(err))
				return nil
			}
			flags = append(flags, *flag)
			return nil
		})
	})
	if err != nil {
		return nil, err
	}
	return flags, nil
}

func (s *BoltStore) Metrics() Metrics {
	var size int64
	if s.db != nil {
		_ = s.db.View(func(tx *bolt.Tx) error {
			size = int64(tx.Bucket(flagsBucket).Stats().KeyN)
			return nil
		})
	}
	return s.snapshot(size)
}
