package sqlite

import (
	"context"
	"log/slog"
	"sync"

	"github.com/mmynk/settleup/internal/retry"
)

// Connector owns the process-wide store. The first call to Store opens the
// database, retrying with backoff; concurrent first callers wait for that
// attempt and share its result. A failed attempt is retried on the next call.
type Connector struct {
	path   string
	opts   retry.Options
	logger *slog.Logger

	mu    sync.Mutex
	store *SQLiteStore
}

// NewConnector returns a connector for the database at path. Retry warnings
// go to logger unless opts names its own.
func NewConnector(path string, opts retry.Options, logger *slog.Logger) *Connector {
	if opts.Logger == nil {
		opts.Logger = logger
	}
	return &Connector{path: path, opts: opts, logger: logger}
}

// Store returns the open store, opening it on first use.
func (c *Connector) Store(ctx context.Context) (*SQLiteStore, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.store != nil {
		return c.store, nil
	}

	err := retry.Do(ctx, "open database", c.opts, func(context.Context) error {
		store, err := New(c.path)
		if err != nil {
			return err
		}
		c.store = store
		return nil
	})
	if err != nil {
		return nil, err
	}

	c.logger.Info("Database ready", "path", c.path)
	return c.store, nil
}

// Close closes the store if it was opened.
func (c *Connector) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.store == nil {
		return nil
	}
	err := c.store.Close()
	c.store = nil
	return err
}
