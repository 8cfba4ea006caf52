package cache

import (
	"context"
	"encoding/json"
	"errors"
	"log"
	"time"

	"github.com/arifmahmud/navtree/pkg/navtree/tree"
)

// Config controls the coordinator. When Enabled is false every read
// recomputes the tree and the backend is only touched by Invalidate.
type Config struct {
	Enabled bool
	Key     string
	TTL     time.Duration
}

// TreeFunc computes a fresh snapshot from the store.
type TreeFunc func(ctx context.Context) ([]tree.GroupView, error)

// Coordinator serves the menu tree through a read-through cache entry.
// Concurrent misses may recompute redundantly (last writer wins); that
// is safe because recomputation is deterministic and side-effect-free.
// Backend failures degrade to direct recomputation, never to a failed read.
type Coordinator struct {
	backend Backend
	cfg     Config
	build   TreeFunc
}

// NewCoordinator creates a coordinator over the given backend and builder.
func NewCoordinator(backend Backend, cfg Config, build TreeFunc) *Coordinator {
	return &Coordinator{backend: backend, cfg: cfg, build: build}
}

// GetTree returns the current menu snapshot, from cache when possible.
func (c *Coordinator) GetTree(ctx context.Context) ([]tree.GroupView, error) {
	if !c.cfg.Enabled {
		return c.build(ctx)
	}

	data, err := c.backend.Get(ctx, c.cfg.Key)
	if err == nil {
		var snapshot []tree.GroupView
		if err := json.Unmarshal(data, &snapshot); err == nil {
			return snapshot, nil
		}
		log.Printf("Discarding undecodable cache entry %q: %v", c.cfg.Key, err)
	} else if !errors.Is(err, ErrMiss) {
		log.Printf("Cache get for %q failed, recomputing: %v", c.cfg.Key, err)
	}

	snapshot, err := c.build(ctx)
	if err != nil {
		return nil, err
	}

	if data, err := json.Marshal(snapshot); err == nil {
		if err := c.backend.Set(ctx, c.cfg.Key, data, c.cfg.TTL); err != nil {
			log.Printf("Cache set for %q failed: %v", c.cfg.Key, err)
		}
	}

	return snapshot, nil
}

// Invalidate drops the cached snapshot. It runs regardless of Enabled so
// a later enable/disable toggle never serves stale data.
func (c *Coordinator) Invalidate(ctx context.Context) {
	if err := c.backend.Delete(ctx, c.cfg.Key); err != nil {
		log.Printf("Cache invalidation for %q failed: %v", c.cfg.Key, err)
	}
}
