package storage

import (
	"context"
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"sync"

	"github.com/cespare/xxhash/v2"
	"go.uber.org/zap"

	"github.com/OrlandoBitencourt/bandeira/internal/domain"
)

const (
	fileExt = ".json"

	// maxEscapedName keeps file names under the common 255 byte NAME_MAX
	// once the hash suffix and extension are added.
	maxEscapedName = 200
)

// DiskStore keeps one JSON file per flag under dir. Writes go to a temp file
// that is renamed into place, so readers never see a partial flag.
type DiskStore struct {
	dir    string
	logger *zap.Logger
	counters
	mu sync.RWMutex
}

// NewDiskStore creates dir if needed and returns a store rooted there
func NewDiskStore(dir string, logger *zap.Logger) (*DiskStore, error) {
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, fmt.Errorf("unable to create directory %s: %w", dir, err)
	}
	if logger == nil {
		logger = zap.NewNop()
	}

	logger.Info("Disk store opened", zap.String("dir", dir))
	return &DiskStore{dir: dir, logger: logger}, nil
}

func (d *DiskStore) filePath(name string) string {
	return filepath.Join(d.dir, fileName(name))
}

// fileName escapes name so a "/" cannot leave dir. Escaping can triple a
// name's length, so long names are truncated and suffixed with a hash of
// the full name. Truncated names are always longer than maxEscapedName and
// cannot collide with untruncated ones.
func fileName(name string) string {
	escaped := url.PathEscape(name)
	if len(escaped) <= maxEscapedName {
		return escaped + fileExt
	}
	return fmt.Sprintf("%s~%016x%s", escaped[:maxEscapedName], xxhash.Sum64String(name), fileExt)
}

func (d *DiskStore) Get(ctx context.Context, name string) (*domain.FeatureFlag, error) {
	if err := checkContext(ctx); err != nil {
		return nil, err
	}

	d.mu.RLock()
	defer d.mu.RUnlock()

	d.gets.Add(1)
	data, err := os.ReadFile(d.filePath(name))
	if err != nil {
		if os.IsNotExist(err) {
			d.misses.Add(1)
			return nil, ErrNotFound
		}
		d.errors.Add(1)
		return nil, err
	}

	return Decode(data)
}

func (d *DiskStore) Put(ctx context.Context, flag domain.FeatureFlag) error {
	if err := checkContext(ctx); err != nil {
		return err
	}

	data, err := Encode(flag)
	if err != nil {
		return err
	}

	d.mu.Lock()
	defer d.mu.Unlock()

	tmp, err := os.CreateTemp(d.dir, "flag-*.tmp")
	if err != nil {
		d.errors.Add(1)
		return err
	}
	defer os.Remove(tmp.Name())

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		d.errors.Add(1)
		return err
	}
	if err := tmp.Close(); err != nil {
		d.errors.Add(1)
		return err
	}

	if err := os.Rename(tmp.Name(), d.filePath(flag.Name)); err != nil {
		d.errors.Add(1)
		return err
	}

	d.puts.Add(1)
	return nil
}

func (d *DiskStore) Delete(ctx context.Context, name string) error {
	if err := checkContext(ctx); err != nil {
		return err
	}

	d.mu.Lock()
	defer d.mu.Unlock()

	if err := os.Remove(d.filePath(name)); err != nil {
		if os.IsNotExist(err) {
			return ErrNotFound
		}
		d.errors.Add(1)
		return err
	}

	d.deletes.Add(1)
	return nil
}

func (d *DiskStore) Exists(ctx context.Context, name string) (bool, error) {
	if err := checkContext(ctx); err != nil {
		return false, err
	}

	d.mu.RLock()
	defer d.mu.RUnlock()

	_, err := os.Stat(d.filePath(name))
	if err == nil {
		return true, nil
	}
	if os.IsNotExist(err) {
		return false, nil
	}
	return false, err
}

func (d *DiskStore) List(ctx context.Context) ([]domain.FeatureFlag, error) {
	if err := checkContext(ctx); err != nil {
		return nil, err
	}

	d.mu.RLock()
	defer d.mu.RUnlock()

	entries, err := os.ReadDir(d.dir)
	if err != nil {
		return nil, err
	}

	var flags []domain.FeatureFlag
	for _, entry := range entries {
		if !isFlagFile(entry) {
			continue
		}
		name := entry.Name()

		data, err := os.ReadFile(filepath.Join(d.dir, name))
		if err != nil {
			return nil, err
		}
		flag, err := Decode(data)
		if err != nil {
			d.logger.Warn("Skipping unreadable flag file", zap.String("file", name), zap.Error(err))
			continue
		}
		flags = append(flags, *flag)
	}
	return flags, nil
}

func (d *DiskStore) Metrics() Metrics {
	d.mu.RLock()
	defer d.mu.RUnlock()

	var size int64
	entries, err := os.ReadDir(d.dir)
	if err == nil {
		for _, e := range entries {
			if isFlagFile(e) {
				size++
			}
		}
	}
	return d.snapshot(size)
}

func (d *DiskStore) Close() error { return nil }

func isFlagFile(e os.DirEntry) bool {
	return !e.IsDir() && filepath.Ext(e.Name()) == fileExt
}
