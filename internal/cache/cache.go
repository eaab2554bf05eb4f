// Package cache is a small in-process read cache for program definitions,
// backed by dgraph-io/ristretto. Programs are read on every guided session
// start and change rarely; mutations invalidate by ID.
package cache

import (
	"time"

	"github.com/claude/repcoach/internal/models"
	"github.com/dgraph-io/ristretto/v2"
	"github.com/google/uuid"
)

// ProgramCache caches loaded programs keyed by program ID.
type ProgramCache struct {
	c   *ristretto.Cache[string, *models.Program]
	ttl time.Duration
}

// New creates a program cache holding at most maxEntries programs, each kept
// for ttl.
func New(maxEntries int64, ttl time.Duration) (*ProgramCache, error) {
	if maxEntries <= 0 {
		maxEntries = 256
	}
	c, err := ristretto.NewCache(&ristretto.Config[string, *models.Program]{
		NumCounters: maxEntries * 10, // ~10x expected items
		MaxCost:     maxEntries,
		BufferItems: 64,
	})
	if err != nil {
		return nil, err
	}
	return &ProgramCache{c: c, ttl: ttl}, nil
}

// Get retrieves a cached program.
func (pc *ProgramCache) Get(id uuid.UUID) (*models.Program, bool) {
	return pc.c.Get(id.String())
}

// Put stores a program at unit cost.
func (pc *ProgramCache) Put(p *models.Program) {
	pc.c.SetWithTTL(p.ID.String(), p, 1, pc.ttl)
}

// Invalidate drops a program after an update or delete.
func (pc *ProgramCache) Invalidate(id uuid.UUID) {
	pc.c.Del(id.String())
}

// Close shuts down the cache and releases resources.
func (pc *ProgramCache) Close() {
	pc.c.Close()
}
