// Package state persists the incident poll's high-water mark between runs.
package state

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"github.com/redis/go-redis/v9"
	"gopkg.in/yaml.v3"

	"github.com/invisible-tech/xdr-responder/internal/types"
)

// Store loads and saves the last run. Load returns the zero LastRun when
// nothing has been saved.
type Store interface {
	Load(ctx context.Context) (types.LastRun, error)
	Save(ctx context.Context, last types.LastRun) error
}

// Config selects a store backend.
type Config struct {
	// Backend is "memory", "file" or "redis".
	Backend  string
	Path     string
	RedisURL string
	RedisKey string
}

// DefaultRedisKey is the key the mark is stored under.
const DefaultRedisKey = "xdr-responder:last-run"

// New builds the store described by cfg.
func New(cfg Config) (Store, error) {
	switch cfg.Backend {
	case "", "memory":
		return &MemoryStore{}, nil
	case "file":
		if cfg.Path == "" {
			return nil, fmt.Errorf("file state store requires a path")
		}
		return NewFileStore(cfg.Path), nil
	case "redis":
		opts, err := redis.ParseURL(cfg.RedisURL)
		if err != nil {
			return nil, fmt.Errorf("invalid redis url: %w", err)
		}
		return NewRedisStore(redis.NewClient(opts), cfg.RedisKey), nil
	default:
		return nil, fmt.Errorf("unknown state backend %q", cfg.Backend)
	}
}

// MemoryStore keeps the mark in process memory.
type MemoryStore struct {
	mu   sync.Mutex
	last types.LastRun
}

func (s *MemoryStore) Load(context.Context) (types.LastRun, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.last, nil
}

func (s *MemoryStore) Save(_ context.Context, last types.LastRun) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.last = last
	return nil
}

// FileStore keeps the mark in a YAML file. Writes go through a temp file
// and rename.
type FileStore struct {
	path string
	mu   sync.Mutex
}

// NewFileStore creates a FileStore at path.
func NewFileStore(path string) *FileStore {
	return &FileStore{path: path}
}

func (s *FileStore) Load(context.Context) (types.LastRun, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var last types.LastRun
	data, err := os.ReadFile(s.path)
	if errors.Is(err, os.ErrNotExist) {
		return last, nil
	}
	if err != nil {
		return last, fmt.Errorf("failed to read state: %w", err)
	}
	if err := yaml.Unmarshal(data, &last); err != nil {
		return last, fmt.Errorf("failed to parse state %s: %w", s.path, err)
	}
	return last, nil
}

func (s *FileStore) Save(_ context.Context, last types.LastRun) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	data, err := yaml.Marshal(last)
	if err != nil {
		return fmt.Errorf("failed to encode state: %w", err)
	}
	if err := os.MkdirAll(filepath.Dir(s.path), 0o755); err != nil {
		return fmt.Errorf("failed to create state dir: %w", err)
	}
	tmp := s.path + ".tmp"
	if err := os.WriteFile(tmp, data, 0o600); err != nil {
		return fmt.Errorf("failed to write state: %w", err)
	}
	return os.Rename(tmp, s.path)
}

// RedisStore keeps the mark as a JSON string under one key, so several
// replicas can share it.
type RedisStore struct {
	client *redis.Client
	key    string
}

// NewRedisStore creates a RedisStore. An empty key uses DefaultRedisKey.
func NewRedisStore(client *redis.Client, key string) *RedisStore {
	if key == "" {
		key = DefaultRedisKey
	}
	return &RedisStore{client: client, key: key}
}

func (s *RedisStore) Load(ctx context.Context) (types.LastRun, error) {
	var last types.LastRun
	data, err := s.client.Get(ctx, s.key).Bytes()
	if errors.Is(err, redis.Nil) {
		return last, nil
	}
	if err != nil {
		return last, fmt.Errorf("redis get %s: %w", s.key, err)
	}
	if err := json.Unmarshal(data, &last); err != nil {
		return last, fmt.Errorf("failed to parse state: %w", err)
	}
	return last, nil
}

func (s *RedisStore) Save(ctx context.Context, last types.LastRun) error {
	data, err := json.Marshal(last)
	if err != nil {
		return fmt.Errorf("failed to encode state: %w", err)
	}
	if err := s.client.Set(ctx, s.key, data, 0).Err(); err != nil {
		return fmt.Errorf("redis set %s: %w", s.key, err)
	}
	return nil
}

// Close releases the Redis connection pool.
func (s *RedisStore) Close() error {
	return s.client.Close()
}
