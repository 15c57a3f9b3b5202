package tenant

import (
	"context"
	"database/sql"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	lru "github.com/hashicorp/golang-lru/v2"
	"golang.org/x/sync/singleflight"

	"github.com/platinummonkey/cashpro/pkg/database"
	"github.com/platinummonkey/cashpro/pkg/observability"
)

// DefaultCloseDelay is how long an evicted pool stays open for callers that
// already hold it.
const DefaultCloseDelay = time.Minute

// URLFunc builds the connection URL of a tenant database.
type URLFunc func(dbName string) (string, error)

// OpenFunc opens a connection pool. database.Open in production.
type OpenFunc func(ctx context.Context, url string, cfg database.PoolConfig) (*sql.DB, error)

// ManagerConfig configures the tenant pool cache.
type ManagerConfig struct {
	Size int
	// TTL is the idle time after which SweepIdle drops a pool. Zero keeps
	// pools until they are pushed out by Size.
	TTL time.Duration
	// CloseDelay defaults to DefaultCloseDelay.
	CloseDelay time.Duration
	Pool       database.PoolConfig
	URL        URLFunc
	Open       OpenFunc
	Metrics    *observability.Metrics
	Logger     *observability.Logger
	Now        func() time.Time
}

type pool struct {
	db       *sql.DB
	lastUsed atomic.Int64
}

func (p *pool) touch(now time.Time) {
	p.lastUsed.Store(now.UnixNano())
}

// Manager caches one connection pool per tenant database. Every DB call
// counts as use; pools idle for longer than TTL, or pushed out when the
// cache is full, are retired. A retired pool is closed CloseDelay later,
// so handles already given out keep working until then.
type Manager struct {
	cache      *lru.Cache[string, *pool]
	group      singleflight.Group
	url        URLFunc
	open       OpenFunc
	pool       database.PoolConfig
	ttl        time.Duration
	closeDelay time.Duration
	now        func() time.Time
	metrics    *observability.Metrics
	logger     *observability.Logger

	mu       sync.Mutex
	closed   bool
	retiring map[*sql.DB]*time.Timer
}

// NewManager creates a tenant pool cache.
func NewManager(cfg ManagerConfig) *Manager {
	if cfg.Size <= 0 {
		cfg.Size = 128
	}
	if cfg.CloseDelay <= 0 {
		cfg.CloseDelay = DefaultCloseDelay
	}
	if cfg.Open == nil {
		cfg.Open = database.Open
	}
	if cfg.Now == nil {
		cfg.Now = time.Now
	}
	if cfg.Logger == nil {
		cfg.Logger = observability.NewDiscardLogger()
	}

	m := &Manager{
		url:        cfg.URL,
		open:       cfg.Open,
		pool:       cfg.Pool,
		ttl:        cfg.TTL,
		closeDelay: cfg.CloseDelay,
		now:        cfg.Now,
		metrics:    cfg.Metrics,
		logger:     cfg.Logger,
		retiring:   make(map[*sql.DB]*time.Timer),
	}
	// Only a non-positive size can fail, and that is ruled out above.
	m.cache, _ = lru.NewWithEvict[string, *pool](cfg.Size, m.onEvict)
	return m
}

func (m *Manager) onEvict(name string, p *pool) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.closed {
		m.closePool(name, p.db)
		return
	}
	m.retiring[p.db] = time.AfterFunc(m.closeDelay, func() {
		m.mu.Lock()
		_, pending := m.retiring[p.db]
		delete(m.retiring, p.db)
		m.mu.Unlock()
		if pending {
			m.closePool(name, p.db)
		}
	})
	m.logger.WithField("database", name).Debug("Tenant pool retired")
}

func (m *Manager) closePool(name string, db *sql.DB) {
	if err := db.Close(); err != nil {
		m.logger.WithError(err).WithField("database", name).Warn("Failed to close tenant pool")
	}
	m.metrics.TenantPoolClosed()
	m.logger.WithField("database", name).Debug("Tenant pool closed")
}

// DB returns the pool for a tenant database, opening it on first use.
// Concurrent first opens of the same database share one attempt.
func (m *Manager) DB(ctx context.Context, name string) (*sql.DB, error) {
	if p, ok := m.cache.Get(name); ok {
		p.touch(m.now())
		return p.db, nil
	}

	v, err, _ := m.group.Do(name, func() (interface{}, error) {
		if p, ok := m.cache.Get(name); ok {
			return p, nil
		}
		url, err := m.url(name)
		if err != nil {
			return nil, fmt.Errorf("failed to build tenant url: %w", err)
		}
		db, err := m.open(ctx, url, m.pool)
		if err != nil {
			return nil, fmt.Errorf("failed to open tenant database %s: %w", name, err)
		}
		p := &pool{db: db}
		p.touch(m.now())
		m.cache.Add(name, p)
		m.metrics.TenantPoolOpened()
		m.logger.WithField("database", name).Debug("Tenant pool opened")
		return p, nil
	})
	if err != nil {
		return nil, err
	}
	p := v.(*pool)
	p.touch(m.now())
	return p.db, nil
}

// SweepIdle retires pools unused for longer than TTL and returns how many.
func (m *Manager) SweepIdle() int {
	if m.ttl <= 0 {
		return 0
	}
	cutoff := m.now().Add(-m.ttl).UnixNano()
	swept := 0
	for _, name := range m.cache.Keys() {
		p, ok := m.cache.Peek(name)
		if !ok || p.lastUsed.Load() > cutoff {
			continue
		}
		if m.cache.Remove(name) {
			swept++
		}
	}
	return swept
}

// StartIdleSweep runs SweepIdle every half TTL until ctx is done. It does
// nothing when TTL is zero.
func (m *Manager) StartIdleSweep(ctx context.Context) {
	if m.ttl <= 0 {
		return
	}
	ticker := time.NewTicker(m.ttl / 2)
	go func() {
		defer ticker.Stop()
		for {
			select {
			case <-ticker.C:
				if n := m.SweepIdle(); n > 0 {
					m.logger.WithField("pools", n).Debug("Idle tenant pools retired")
				}
			case <-ctx.Done():
				return
			}
		}
	}()
}

// Evict retires the pool for name, if open.
func (m *Manager) Evict(name string) {
	m.cache.Remove(name)
}

// Len returns the number of cached pools, not counting retired ones.
func (m *Manager) Len() int {
	return m.cache.Len()
}

// Close closes every pool now, including retired ones still in their delay.
func (m *Manager) Close() error {
	m.mu.Lock()
	m.closed = true
	pending := m.retiring
	m.retiring = make(map[*sql.DB]*time.Timer)
	m.mu.Unlock()

	for db, timer := range pending {
		timer.Stop()
		m.closePool("retired", db)
	}
	m.cache.Purge()
	return nil
}
