package redisstore

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/redis/go-redis/v9"
)

// DefaultPrefix namespaces every key the store touches.
const DefaultPrefix = "tead:"

// Store is a Redis-backed capture.Sink and query.Source.
//
// Thread-safety: safe for concurrent use; the client pools connections.
type Store struct {
	client redis.UniversalClient
	prefix string
	logger *slog.Logger
	owned  bool
}

// Option configures a Store.
type Option func(*Store)

// WithPrefix replaces DefaultPrefix.
func WithPrefix(prefix string) Option {
	return func(s *Store) {
		s.prefix = prefix
	}
}

// WithLogger replaces slog.Default().
func WithLogger(l *slog.Logger) Option {
	return func(s *Store) {
		s.logger = l
	}
}

// Open connects to the Redis server at addr and checks it responds.
// The returned store owns the client and closes it on Close.
func Open(ctx context.Context, addr string, opts ...Option) (*Store, error) {
	client := redis.NewClient(&redis.Options{Addr: addr})
	if err := client.Ping(ctx).Err(); err != nil {
		client.Close()
		return nil, fmt.Errorf("connect to redis at %s: %w", addr, err)
	}
	s := New(client, opts...)
	s.owned = true
	return s, nil
}

// New wraps an existing client. Close leaves the client open.
func New(client redis.UniversalClient, opts ...Option) *Store {
	s := &Store{client: client, prefix: DefaultPrefix, logger: slog.Default()}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Close releases the client if Open created it.
func (s *Store) Close() error {
	if !s.owned {
		return nil
	}
	return s.client.Close()
}

// Count returns the number of stored entries.
func (s *Store) Count(ctx context.Context) (int, error) {
	n, err := s.client.HLen(ctx, s.entriesKey()).Result()
	if err != nil {
		return 0, fmt.Errorf("count entries: %w", err)
	}
	return int(n), nil
}

func (s *Store) entriesKey() string {
	return s.prefix + "entries"
}

func (s *Store) targetsKey() string {
	return s.prefix + "targets"
}

func (s *Store) targetKey(target string) string {
	return s.prefix + "target:" + target
}
