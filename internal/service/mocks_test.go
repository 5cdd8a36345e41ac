package service

import (
	"context"
	"sync"

	"github.com/phrazzld/tasktrack-api/internal/domain"
	"github.com/phrazzld/tasktrack-api/internal/events"
	"github.com/stretchr/testify/mock"
)

// MockEventEmitter mocks the events.EventEmitter interface
type MockEventEmitter struct {
	mock.Mock
}

func (m *MockEventEmitter) EmitEvent(ctx context.Context, event *events.TaskEvent) error {
	args := m.Called(ctx, event)
	return args.Error(0)
}

// MockStatsCache mocks the StatsCache interface
type MockStatsCache struct {
	mock.Mock
}

func (m *MockStatsCache) Get(ctx context.Context, userID int64) (*domain.UserStats, bool, error) {
	args := m.Called(ctx, userID)
	if args.Get(0) == nil {
		return nil, args.Bool(1), args.Error(2)
	}
	return args.Get(0).(*domain.UserStats), args.Bool(1), args.Error(2)
}

func (m *MockStatsCache) Set(ctx context.Context, stats domain.UserStats) error {
	args := m.Called(ctx, stats)
	return args.Error(0)
}

func (m *MockStatsCache) Invalidate(ctx context.Context, userID int64) error {
	args := m.Called(ctx, userID)
	return args.Error(0)
}

// mapStatsCache is a working in-memory StatsCache.
type mapStatsCache struct {
	mu      sync.Mutex
	entries map[int64]domain.UserStats
	hits    int
}

func newMapStatsCache() *mapStatsCache {
	return &mapStatsCache{entries: make(map[int64]domain.UserStats)}
}

func (c *mapStatsCache) Get(_ context.Context, userID int64) (*domain.UserStats, bool, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	s, ok := c.entries[userID]
	if !ok {
		return nil, false, nil
	}
	c.hits++
	return &s, true, nil
}

func (c *mapStatsCache) Set(_ context.Context, stats domain.UserStats) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.entries[stats.UserID] = stats
	return nil
}

func (c *mapStatsCache) Invalidate(_ context.Context, userID int64) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.entries, userID)
	return nil
}

func (c *mapStatsCache) hitCount() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.hits
}

// hookStatsCache runs beforeSet ahead of each write.
type hookStatsCache struct {
	*mapStatsCache
	beforeSet func()
}

func (c *hookStatsCache) Set(ctx context.Context, stats domain.UserStats) error {
	if c.beforeSet != nil {
		c.beforeSet()
	}
	return c.mapStatsCache.Set(ctx, stats)
}
