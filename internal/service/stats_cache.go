package service

import (
	"context"
	"sync"

	"github.com/phrazzld/tasktrack-api/internal/domain"
)

// StatsCache stores computed per-user statistics. A cached entry is only a
// copy of a recomputation and may be dropped at any time.
type StatsCache interface {
	Get(ctx context.Context, userID int64) (*domain.UserStats, bool, error)
	Set(ctx context.Context, stats domain.UserStats) error
	Invalidate(ctx context.Context, userID int64) error
}

// NopStatsCache never holds anything.
type NopStatsCache struct{}

// Get always misses.
func (NopStatsCache) Get(context.Context, int64) (*domain.UserStats, bool, error) {
	return nil, false, nil
}

// Set discards stats.
func (NopStatsCache) Set(context.Context, domain.UserStats) error { return nil }

// Invalidate does nothing.
func (NopStatsCache) Invalidate(context.Context, int64) error { return nil }

// generations counts invalidations per user. A recomputation started under
// one generation is only cached if no invalidation happened meanwhile.
type generations struct {
	mu  sync.Mutex
	gen map[int64]uint64
}

func newGenerations() *generations {
	return &generations{gen: make(map[int64]uint64)}
}

func (g *generations) current(userID int64) uint64 {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.gen[userID]
}

func (g *generations) bump(userID int64) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.gen[userID]++
}
