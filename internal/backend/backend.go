// Package backend opens the storage backend a configuration names.
package backend

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/roach88/tead/internal/capture"
	"github.com/roach88/tead/internal/config"
	"github.com/roach88/tead/internal/query"
	"github.com/roach88/tead/internal/redisstore"
	"github.com/roach88/tead/internal/store"
	"github.com/roach88/tead/internal/tracefile"
)

// Backend records and serves entries.
type Backend interface {
	capture.Sink
	query.Source
	io.Closer
}

// Open connects to the backend s selects. The caller must Close it.
func Open(ctx context.Context, s config.Storage, logger *slog.Logger) (Backend, error) {
	if logger == nil {
		logger = slog.Default()
	}
	switch s.Backend {
	case config.BackendFiles:
		format, err := tracefile.ParseFormat(s.Format)
		if err != nil {
			return nil, err
		}
		dir, err := tracefile.Open(s.Dir, tracefile.WithFormat(format), tracefile.WithLogger(logger))
		if err != nil {
			return nil, err
		}
		return files{dir}, nil
	case config.BackendSQLite:
		if err := os.MkdirAll(filepath.Dir(s.DB), 0o755); err != nil {
			return nil, fmt.Errorf("create database directory: %w", err)
		}
		st, err := store.Open(s.DB, store.WithLogger(logger))
		if err != nil {
			return nil, err
		}
		return st, nil
	case config.BackendRedis:
		rs, err := redisstore.Open(ctx, s.RedisAddr, redisstore.WithPrefix(s.RedisPrefix), redisstore.WithLogger(logger))
		if err != nil {
			return nil, err
		}
		return rs, nil
	default:
		return nil, fmt.Errorf("unknown storage backend %q", s.Backend)
	}
}

// Describe names the location of the backend s selects, for messages.
func Describe(s config.Storage) string {
	switch s.Backend {
	case config.BackendSQLite:
		return "sqlite:" + s.DB
	case config.BackendRedis:
		return "redis://" + s.RedisAddr + "/" + s.RedisPrefix
	default:
		return s.Dir
	}
}

// files adds a no-op Close to a trace directory.
type files struct {
	*tracefile.Dir
}

func (files) Close() error { return nil }
