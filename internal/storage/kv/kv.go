// Package kv persists small string values under fixed keys, the way the
// browser widget keeps its settings in localStorage.
package kv

import (
	"context"

	"github.com/pkg/errors"
)

// ErrClosed is returned by a store used after Close.
var ErrClosed = errors.New("kv store closed")

// Drivers accepted by Open.
const (
	DriverMemory = "memory"
	DriverSQLite = "sqlite"
	DriverRedis  = "redis"
)

// Store is a string-valued key-value store.
type Store interface {
	// Get returns the value for key; ok is false when the key is absent.
	Get(ctx context.Context, key string) (value string, ok bool, err error)
	Set(ctx context.Context, key, value string) error
	// SetMany writes all values or none of them.
	SetMany(ctx context.Context, values map[string]string) error
	// Delete removes the keys. Missing keys are not an error.
	Delete(ctx context.Context, keys ...string) error
	Close() error
}

// Options selects and configures the backend built by Open.
type Options struct {
	Driver     string
	SQLitePath string
	Redis      RedisOptions
}

// Open builds the Store selected by opts.Driver.
func Open(ctx context.Context, opts Options) (Store, error) {
	switch opts.Driver {
	case DriverMemory, "":
		return NewMemoryStore(), nil
	case DriverSQLite:
		return NewSQLiteStore(ctx, opts.SQLitePath)
	case DriverRedis:
		return NewRedisStore(ctx, opts.Redis)
	default:
		return nil, errors.Errorf("unknown storage driver %q", opts.Driver)
	}
}
