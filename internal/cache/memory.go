package cache

import (
	"context"
	"sync"
	"time"

	"backoffice/internal/model"

	"github.com/google/uuid"
)

type memoryEntry struct {
	price     model.ResolvedPrice
	expiresAt time.Time
}

// Memory is an in-process PriceCache for single-node deployments without Redis.
type Memory struct {
	mu      sync.RWMutex
	ttl     time.Duration
	now     func() time.Time
	entries map[uuid.UUID]map[string]memoryEntry
}

func NewMemory(ttl time.Duration) *Memory {
	return &Memory{ttl: ttl, now: time.Now, entries: make(map[uuid.UUID]map[string]memoryEntry)}
}

func (m *Memory) Get(_ context.Context, serviceID uuid.UUID, scopeKey string) (*model.ResolvedPrice, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	e, ok := m.entries[serviceID][scopeKey]
	if !ok || m.now().After(e.expiresAt) {
		return nil, false
	}
	p := e.price
	return &p, true
}

func (m *Memory) Set(_ context.Context, serviceID uuid.UUID, scopeKey string, price model.ResolvedPrice) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.entries[serviceID] == nil {
		m.entries[serviceID] = make(map[string]memoryEntry)
	}
	now := m.now()
	m.entries[serviceID][scopeKey] = memoryEntry{price: price, expiresAt: now.Add(entryTTL(m.ttl, price, now))}
}

func (m *Memory) InvalidateService(_ context.Context, serviceID uuid.UUID) {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.entries, serviceID)
}
