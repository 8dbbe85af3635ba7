// Package store provides the durable keyed store behind the attestation
// ledger. Two implementations exist: MemoryStore for tests and single-process
// development, and PostgresStore for production.
//
// AppendProof and AppendBatch are atomic multi-record commands: the new
// immutable record and the registration counter updates are committed
// together or not at all. No partial application is ever observable.
package store

import (
	"context"
	"errors"

	"github.com/google/uuid"

	"github.com/depinlabs/sensorledger/internal/ledger/model"
)

// ErrNotFound is returned when a requested record does not exist.
var ErrNotFound = errors.New("record not found")

// ErrDuplicateDevice is returned when a registration already exists for the
// device. Uniqueness is the store's responsibility, not the state machine's.
var ErrDuplicateDevice = errors.New("device already registered")

// CounterUpdate carries the registration field writes that accompany a new
// proof or batch record. Exactly these three registry fields change.
type CounterUpdate struct {
	ProofDelta         uint64
	LastProofTimestamp int64
}

// Store is the persistence interface for the attestation ledger.
type Store interface {
	// CreateSensor inserts a new registration. Fails with ErrDuplicateDevice
	// when the device_id is already registered.
	CreateSensor(ctx context.Context, reg *model.SensorRegistration) error

	// GetSensor retrieves a registration by its handle.
	GetSensor(ctx context.Context, id uuid.UUID) (*model.SensorRegistration, error)

	// GetSensorByDevice retrieves a registration by device identifier.
	GetSensorByDevice(ctx context.Context, deviceID string) (*model.SensorRegistration, error)

	// ListSensors returns registrations, newest first.
	ListSensors(ctx context.Context, limit, offset int) ([]*model.SensorRegistration, error)

	// SetSensorActive toggles the activation gate. Idempotent: setting the
	// current state again is not an error.
	SetSensorActive(ctx context.Context, id uuid.UUID, active bool) (*model.SensorRegistration, error)

	// AppendProof writes the proof record and applies the counter update to
	// its registration in one atomic command.
	AppendProof(ctx context.Context, proof *model.ProofRecord, upd CounterUpdate) (*model.SensorRegistration, error)

	// AppendBatch writes the batch record and applies the counter update to
	// its registration in one atomic command.
	AppendBatch(ctx context.Context, batch *model.BatchProofRecord, upd CounterUpdate) (*model.SensorRegistration, error)

	GetProof(ctx context.Context, id uuid.UUID) (*model.ProofRecord, error)
	ListProofsBySensor(ctx context.Context, sensorID uuid.UUID, limit, offset int) ([]*model.ProofRecord, error)

	GetBatch(ctx context.Context, id uuid.UUID) (*model.BatchProofRecord, error)
	ListBatchesBySensor(ctx context.Context, sensorID uuid.UUID, limit, offset int) ([]*model.BatchProofRecord, error)
}
