package kvstore

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"slices"
	"strings"
	"sync"
	"time"

	"github.com/gofrs/flock"
)

const fileLockRetryDelay = 25 * time.Millisecond

// FileStore keeps records in a JSON file. Every operation takes an
// in-process mutex and an flock on path+".lock", then reads and rewrites the
// whole file, so several processes may share one file safely.
type FileStore struct {
	path   string
	lock   *flock.Flock
	mu     sync.Mutex
	closed bool
}

// OpenFile prepares a file-backed store at path. The file is created lazily
// on the first write.
func OpenFile(path string) (*FileStore, error) {
	if strings.TrimSpace(path) == "" {
		return nil, errors.New("kvstore: file path is required")
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, fmt.Errorf("create store directory: %w", err)
	}
	return &FileStore{path: path, lock: flock.New(path + ".lock")}, nil
}

// Path returns the JSON file path.
func (s *FileStore) Path() string { return s.path }

func (s *FileStore) Load(ctx context.Context, prefix string) ([]Record, error) {
	var out []Record
	err := s.withLock(ctx, func(records []Record) ([]Record, bool, error) {
		out = filterPrefix(records, prefix)
		return records, false, nil
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

func (s *FileStore) Put(ctx context.Context, key string, value []byte) error {
	return s.withLock(ctx, func(records []Record) ([]Record, bool, error) {
		var next int64
		for _, rec := range records {
			next = max(next, rec.Seq)
		}
		records = slices.DeleteFunc(records, func(rec Record) bool { return rec.Key == key })
		records = append(records, Record{Key: key, Value: slices.Clone(value), Seq: next + 1})
		return records, true, nil
	})
}

func (s *FileStore) Delete(ctx context.Context, key string) error {
	return s.withLock(ctx, func(records []Record) ([]Record, bool, error) {
		before := len(records)
		records = slices.DeleteFunc(records, func(rec Record) bool { return rec.Key == key })
		return records, len(records) != before, nil
	})
}

func (s *FileStore) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.closed = true
	return nil
}

func (s *FileStore) withLock(ctx context.Context, fn func([]Record) ([]Record, bool, error)) error {
	ctx = ensureContext(ctx)
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return ErrClosed
	}

	locked, err := s.lock.TryLockContext(ctx, fileLockRetryDelay)
	if err != nil {
		return fmt.Errorf("lock %s: %w", s.path, err)
	}
	if !locked {
		return fmt.Errorf("lock %s: not acquired", s.path)
	}
	defer func() { _ = s.lock.Unlock() }()

	records, err := s.read()
	if err != nil {
		return err
	}
	updated, changed, err := fn(records)
	if err != nil || !changed {
		return err
	}
	return s.write(updated)
}

func (s *FileStore) read() ([]Record, error) {
	data, err := os.ReadFile(s.path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, nil
		}
		return nil, fmt.Errorf("read store file: %w", err)
	}
	if len(data) == 0 {
		return nil, nil
	}
	var records []Record
	if err := json.Unmarshal(data, &records); err != nil {
		return nil, fmt.Errorf("parse store file %s: %w", s.path, err)
	}
	return records, nil
}

// write replaces the file atomically via a temp file.
func (s *FileStore) write(records []Record) error {
	data, err := json.MarshalIndent(records, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal store: %w", err)
	}
	tmpPath := s.path + ".tmp"
	if err := os.WriteFile(tmpPath, data, 0o644); err != nil {
		return fmt.Errorf("write temp file: %w", err)
	}
	if err := os.Rename(tmpPath, s.path); err != nil {
		_ = os.Remove(tmpPath)
		return fmt.Errorf("rename temp file: %w", err)
	}
	return nil
}
