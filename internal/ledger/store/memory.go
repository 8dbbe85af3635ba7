package store

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/depinlabs/sensorledger/internal/ledger/model"
)

// MemoryStore is an in-memory, thread-safe Store implementation. The hosting
// runtime serialises operations per record in production; here a single
// mutex provides the same all-or-nothing visibility for tests and
// single-process deployments.
type MemoryStore struct {
	mu       sync.RWMutex
	sensors  map[uuid.UUID]*model.SensorRegistration
	byDevice map[string]uuid.UUID
	proofs   map[uuid.UUID]*model.ProofRecord
	batches  map[uuid.UUID]*model.BatchProofRecord

	// insertion order, for stable listing
	proofOrder map[uuid.UUID][]uuid.UUID
	batchOrder map[uuid.UUID][]uuid.UUID
	sensorSeq  []uuid.UUID
}

// NewMemory creates an empty MemoryStore.
func NewMemory() *MemoryStore {
	return &MemoryStore{
		sensors:    make(map[uuid.UUID]*model.SensorRegistration),
		byDevice:   make(map[string]uuid.UUID),
		proofs:     make(map[uuid.UUID]*model.ProofRecord),
		batches:    make(map[uuid.UUID]*model.BatchProofRecord),
		proofOrder: make(map[uuid.UUID][]uuid.UUID),
		batchOrder: make(map[uuid.UUID][]uuid.UUID),
	}
}

// CreateSensor implements Store.
func (m *MemoryStore) CreateSensor(_ context.Context, reg *model.SensorRegistration) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if _, exists := m.byDevice[reg.DeviceID]; exists {
		return ErrDuplicateDevice
	}
	cp := *reg
	m.sensors[reg.ID] = &cp
	m.byDevice[reg.DeviceID] = reg.ID
	m.sensorSeq = append(m.sensorSeq, reg.ID)
	return nil
}

// GetSensor implements Store.
func (m *MemoryStore) GetSensor(_ context.Context, id uuid.UUID) (*model.SensorRegistration, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.sensorLocked(id)
}

// GetSensorByDevice implements Store.
func (m *MemoryStore) GetSensorByDevice(_ context.Context, deviceID string) (*model.SensorRegistration, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	id, ok := m.byDevice[deviceID]
	if !ok {
		return nil, ErrNotFound
	}
	return m.sensorLocked(id)
}

// ListSensors implements Store.
func (m *MemoryStore) ListSensors(_ context.Context, limit, offset int) ([]*model.SensorRegistration, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	ids := append([]uuid.UUID(nil), m.sensorSeq...)
	// Newest first.
	sort.SliceStable(ids, func(i, j int) bool {
		return m.sensors[ids[i]].CreatedAt.After(m.sensors[ids[j]].CreatedAt)
	})
	return page(ids, limit, offset, func(id uuid.UUID) *model.SensorRegistration {
		cp := *m.sensors[id]
		return &cp
	}), nil
}

// SetSensorActive implements Store.
func (m *MemoryStore) SetSensorActive(_ context.Context, id uuid.UUID, active bool) (*model.SensorRegistration, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	reg, ok := m.sensors[id]
	if !ok {
		return nil, ErrNotFound
	}
	reg.IsActive = active
	reg.UpdatedAt = time.Now().UTC()
	cp := *reg
	return &cp, nil
}

// AppendProof implements Store.
func (m *MemoryStore) AppendProof(_ context.Context, proof *model.ProofRecord, upd CounterUpdate) (*model.SensorRegistration, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	reg, ok := m.sensors[proof.SensorID]
	if !ok {
		return nil, ErrNotFound
	}

	cp := *proof
	m.proofs[proof.ID] = &cp
	m.proofOrder[proof.SensorID] = append(m.proofOrder[proof.SensorID], proof.ID)
	applyCounters(reg, upd)

	out := *reg
	return &out, nil
}

// AppendBatch implements Store.
func (m *MemoryStore) AppendBatch(_ context.Context, batch *model.BatchProofRecord, upd CounterUpdate) (*model.SensorRegistration, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	reg, ok := m.sensors[batch.SensorID]
	if !ok {
		return nil, ErrNotFound
	}

	cp := *batch
	cp.MerkleRoot = append([]byte(nil), batch.MerkleRoot...)
	m.batches[batch.ID] = &cp
	m.batchOrder[batch.SensorID] = append(m.batchOrder[batch.SensorID], batch.ID)
	applyCounters(reg, upd)

	out := *reg
	return &out, nil
}

// GetProof implements Store.
func (m *MemoryStore) GetProof(_ context.Context, id uuid.UUID) (*model.ProofRecord, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	p, ok := m.proofs[id]
	if !ok {
		return nil, ErrNotFound
	}
	cp := *p
	return &cp, nil
}

// ListProofsBySensor implements Store.
func (m *MemoryStore) ListProofsBySensor(_ context.Context, sensorID uuid.UUID, limit, offset int) ([]*model.ProofRecord, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	ids := m.proofOrder[sensorID]
	return page(ids, limit, offset, func(id uuid.UUID) *model.ProofRecord {
		cp := *m.proofs[id]
		return &cp
	}), nil
}

// GetBatch implements Store.
func (m *MemoryStore) GetBatch(_ context.Context, id uuid.UUID) (*model.BatchProofRecord, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	b, ok := m.batches[id]
	if !ok {
		return nil, ErrNotFound
	}
	cp := *b
	return &cp, nil
}

// ListBatchesBySensor implements Store.
func (m *MemoryStore) ListBatchesBySensor(_ context.Context, sensorID uuid.UUID, limit, offset int) ([]*model.BatchProofRecord, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	ids := m.batchOrder[sensorID]
	return page(ids, limit, offset, func(id uuid.UUID) *model.BatchProofRecord {
		cp := *m.batches[id]
		return &cp
	}), nil
}

func (m *MemoryStore) sensorLocked(id uuid.UUID) (*model.SensorRegistration, error) {
	reg, ok := m.sensors[id]
	if !ok {
		return nil, ErrNotFound
	}
	cp := *reg
	return &cp, nil
}

// applyCounters performs the three registry field writes that accompany a
// new record. Monotonicity of LastProofTimestamp is not enforced here.
func applyCounters(reg *model.SensorRegistration, upd CounterUpdate) {
	reg.ProofCount += upd.ProofDelta
	reg.TotalProofsVerified += upd.ProofDelta
	reg.LastProofTimestamp = upd.LastProofTimestamp
	reg.UpdatedAt = time.Now().UTC()
}

// page applies limit/offset and materialises records via get.
func page[T any](ids []uuid.UUID, limit, offset int, get func(uuid.UUID) T) []T {
	if limit <= 0 {
		limit = 50
	}
	if offset < 0 {
		offset = 0
	}
	if offset >= len(ids) {
		return []T{}
	}
	end := offset + limit
	if end > len(ids) {
		end = len(ids)
	}
	out := make([]T, 0, end-offset)
	for _, id := range ids[offset:end] {
		out = append(out, get(id))
	}
	return out
}
