// Package localfile is the default durable tier: an in-memory map
// flushed to a single JSON file at regular intervals and on Close. It
// is the process-restart analogue of browser local storage - no
// per-entry expiry, no cross-process coordination, last writer wins.
package localfile

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/medrec-labs/profilecache/store"
)

const defaultFlushInterval = 10 * time.Second

var ErrClosed = errors.New("localfile store: closed")

type Store struct {
	mu     sync.RWMutex
	data   map[string][]byte
	dirty  bool
	closed bool

	path   string
	ticker *time.Ticker
	stopCh chan struct{}
	wg     sync.WaitGroup
	once   sync.Once
}

var _ store.Store = (*Store)(nil)

type Config struct {
	// Path of the backing file. Created (with parent directories) if
	// missing.
	Path string
	// FlushInterval between background flushes; 0 => 10s.
	FlushInterval time.Duration
}

// Open loads the backing file into memory and starts the flush loop.
func Open(cfg Config) (*Store, error) {
	if cfg.Path == "" {
		return nil, errors.New("localfile store: path is required")
	}
	interval := cfg.FlushInterval
	if interval <= 0 {
		interval = defaultFlushInterval
	}

	s := &Store{
		data:   make(map[string][]byte),
		path:   cfg.Path,
		stopCh: make(chan struct{}),
	}

	f, err := os.Open(cfg.Path)
	if err != nil {
		if !os.IsNotExist(err) {
			return nil, fmt.Errorf("localfile store: open %s: %w", cfg.Path, err)
		}
		if err := os.MkdirAll(filepath.Dir(cfg.Path), 0o755); err != nil {
			return nil, fmt.Errorf("localfile store: mkdir: %w", err)
		}
	} else {
		dec := json.NewDecoder(f)
		if err := dec.Decode(&s.data); err != nil && err != io.EOF {
			f.Close()
			// A torn write from a previous crash is not fatal: start
			// empty, the cache refills from the network.
			s.data = make(map[string][]byte)
		} else {
			f.Close()
		}
	}

	s.ticker = time.NewTicker(interval)
	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		for {
			select {
			case <-s.ticker.C:
				_ = s.flush()
			case <-s.stopCh:
				return
			}
		}
	}()
	return s, nil
}

func (s *Store) Get(_ context.Context, key string) ([]byte, bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.closed {
		return nil, false, ErrClosed
	}
	b, ok := s.data[key]
	if !ok {
		return nil, false, nil
	}
	return b, true, nil
}

func (s *Store) Set(_ context.Context, key string, value []byte, _ time.Duration) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return false, ErrClosed
	}
	cp := make([]byte, len(value))
	copy(cp, value)
	s.data[key] = cp
	s.dirty = true
	return true, nil
}

func (s *Store) Del(_ context.Context, key string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return ErrClosed
	}
	if _, ok := s.data[key]; ok {
		delete(s.data, key)
		s.dirty = true
	}
	return nil
}

// flush writes the current state via a temp file + rename so readers of
// the backing file never observe a torn snapshot.
func (s *Store) flush() error {
	s.mu.Lock()
	if !s.dirty {
		s.mu.Unlock()
		return nil
	}
	b, err := json.Marshal(s.data)
	s.dirty = false
	s.mu.Unlock()
	if err != nil {
		return fmt.Errorf("localfile store: encode: %w", err)
	}

	tmp := s.path + ".tmp"
	if err := os.WriteFile(tmp, b, 0o644); err != nil {
		return fmt.Errorf("localfile store: write %s: %w", tmp, err)
	}
	return os.Rename(tmp, s.path)
}

// Close stops the flush loop and persists one last time. After Close,
// Get/Set/Del return ErrClosed. A closed store cannot be reused.
func (s *Store) Close(_ context.Context) error {
	var err error
	s.once.Do(func() {
		close(s.stopCh)
		s.ticker.Stop()
		s.wg.Wait()
		err = s.flush()
		s.mu.Lock()
		s.closed = true
		s.mu.Unlock()
	})
	return err
}
