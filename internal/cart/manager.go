package cart

import (
	"sync"
	"time"

	"github.com/sirupsen/logrus"

	"cart-service/internal/storage"
)

// Manager hands out one Aggregator per session so every request for a
// session goes through the same single writer.
type Manager struct {
	store   storage.Storage
	coupons CouponValidator
	logger  *logrus.Entry

	mu       sync.Mutex
	sessions map[string]*session
}

type session struct {
	agg      *Aggregator
	lastUsed time.Time
}

func NewManager(store storage.Storage, coupons CouponValidator, logger *logrus.Entry) *Manager {
	if logger == nil {
		logger = logrus.NewEntry(logrus.StandardLogger())
	}
	return &Manager{
		store:    store,
		coupons:  coupons,
		logger:   logger,
		sessions: make(map[string]*session),
	}
}

// Store returns the snapshot storage shared by all sessions.
func (m *Manager) Store() storage.Storage { return m.store }

// Get returns the aggregator of a session, creating it on first use. The
// snapshot is loaded lazily by the aggregator.
func (m *Manager) Get(tenantID, sessionID string) *Aggregator {
	key := StorageKey(tenantID, sessionID)

	m.mu.Lock()
	defer m.mu.Unlock()

	if s, ok := m.sessions[key]; ok {
		s.lastUsed = time.Now()
		return s.agg
	}
	agg := NewAggregator(tenantID, sessionID, m.store, m.coupons, m.logger)
	m.sessions[key] = &session{agg: agg, lastUsed: time.Now()}
	return agg
}

// ForKey returns the aggregator behind a storage key.
func (m *Manager) ForKey(key string) (*Aggregator, bool) {
	tenantID, sessionID, ok := SessionFromKey(key)
	if !ok {
		return nil, false
	}
	return m.Get(tenantID, sessionID), true
}

// Sweep drops sessions unused for longer than idle. Their carts stay in
// storage and are reloaded on next use.
func (m *Manager) Sweep(idle time.Duration) int {
	cutoff := time.Now().Add(-idle)

	m.mu.Lock()
	defer m.mu.Unlock()

	removed := 0
	for key, s := range m.sessions {
		if !s.lastUsed.Before(cutoff) {
			continue
		}
		// skip sessions with a mutation in flight
		if !s.agg.mu.TryLock() {
			continue
		}
		delete(m.sessions, key)
		s.agg.mu.Unlock()
		removed++
	}
	return removed
}

// Len returns the number of sessions held in memory.
func (m *Manager) Len() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.sessions)
}
