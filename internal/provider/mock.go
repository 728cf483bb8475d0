package provider

import (
	"context"
	"fmt"
	"sync"

	"kc-steward.io/steward/internal/domain"
)

// MockRealms implements RealmProvider and RealmPinger in memory, for tests and
// local runs without a Keycloak instance.
type MockRealms struct {
	mu sync.RWMutex
	// realms: cluster ID -> category -> key -> entity
	realms     map[string]map[domain.Category]map[string]domain.Entity
	fetchFails map[string]error
	syncFails  map[string]error
	syncCalls  []SyncCall
}

// SyncCall records one SyncEntity invocation.
type SyncCall struct {
	Source      string
	Destination string
	Category    domain.Category
	Key         string
}

// NewMockRealms creates an empty MockRealms.
func NewMockRealms() *MockRealms {
	return &MockRealms{
		realms:     make(map[string]map[domain.Category]map[string]domain.Entity),
		fetchFails: make(map[string]error),
		syncFails:  make(map[string]error),
	}
}

// Seed stores entities for a cluster, replacing entities with the same key.
func (m *MockRealms) Seed(clusterID string, entities ...domain.Entity) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, e := range entities {
		m.put(clusterID, e)
	}
}

func (m *MockRealms) put(clusterID string, e domain.Entity) {
	byCat, ok := m.realms[clusterID]
	if !ok {
		byCat = make(map[domain.Category]map[string]domain.Entity)
		m.realms[clusterID] = byCat
	}
	byKey, ok := byCat[e.Category()]
	if !ok {
		byKey = make(map[string]domain.Entity)
		byCat[e.Category()] = byKey
	}
	byKey[e.Key()] = e
}

// FailFetch makes every fetch from clusterID return err. A nil err clears it.
func (m *MockRealms) FailFetch(clusterID string, err error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err == nil {
		delete(m.fetchFails, clusterID)
		return
	}
	m.fetchFails[clusterID] = err
}

// FailSync makes syncing key return err. A nil err clears it.
func (m *MockRealms) FailSync(key string, err error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err == nil {
		delete(m.syncFails, key)
		return
	}
	m.syncFails[key] = err
}

// SyncCalls returns the recorded sync invocations in call order.
func (m *MockRealms) SyncCalls() []SyncCall {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return append([]SyncCall(nil), m.syncCalls...)
}

// Reset clears all mock data.
func (m *MockRealms) Reset() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.realms = make(map[string]map[domain.Category]map[string]domain.Entity)
	m.fetchFails = make(map[string]error)
	m.syncFails = make(map[string]error)
	m.syncCalls = nil
}

func (m *MockRealms) Name() string { return "mock" }

// FetchEntities implements EntitySource.
func (m *MockRealms) FetchEntities(_ context.Context, clusterID string, category domain.Category) ([]domain.Entity, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if err, ok := m.fetchFails[clusterID]; ok {
		return nil, err
	}
	byKey := m.realms[clusterID][category]
	out := make([]domain.Entity, 0, len(byKey))
	for _, e := range byKey {
		out = append(out, e)
	}
	return out, nil
}

// SyncEntity implements EntitySyncer by copying the source entity.
func (m *MockRealms) SyncEntity(_ context.Context, sourceClusterID, destinationClusterID string, category domain.Category, key string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.syncCalls = append(m.syncCalls, SyncCall{
		Source:      sourceClusterID,
		Destination: destinationClusterID,
		Category:    category,
		Key:         key,
	})
	if err, ok := m.syncFails[key]; ok {
		return err
	}
	e, ok := m.realms[sourceClusterID][category][key]
	if !ok {
		return fmt.Errorf("%s %q in %s: %w", category, key, sourceClusterID, ErrEntityNotFound)
	}
	m.put(destinationClusterID, e)
	return nil
}

// Ping implements RealmPinger. A cluster with a fetch failure is unreachable.
func (m *MockRealms) Ping(_ context.Context, cluster domain.Cluster) error {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.fetchFails[cluster.ID]
}
