// Package service implements the attestation ledger state machine: who may
// register, submit, and toggle sensors, and in what order preconditions are
// checked. Precondition order is fixed per operation and the first failure
// wins; a failed operation applies no state writes.
package service

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/depinlabs/sensorledger/internal/audit"
	"github.com/depinlabs/sensorledger/internal/clock"
	"github.com/depinlabs/sensorledger/internal/ledger/model"
	"github.com/depinlabs/sensorledger/internal/ledger/store"
	"github.com/depinlabs/sensorledger/internal/sensorproof"
)

// LedgerService contains the business logic for sensor registrations,
// individual proofs, and batch commitments.
type LedgerService struct {
	store  store.Store
	clock  clock.Clock
	trail  audit.Ledger // nil = no audit trail writes
	logger *zap.Logger
}

// New creates a LedgerService. trail may be nil to disable audit writes.
func New(st store.Store, clk clock.Clock, trail audit.Ledger, logger *zap.Logger) *LedgerService {
	return &LedgerService{store: st, clock: clk, trail: trail, logger: logger}
}

// appendTrail records an audit entry in a non-fatal manner: the primary
// operation has already committed, so a trail failure is logged, not returned.
func (s *LedgerService) appendTrail(ctx context.Context, deviceID, action, actor string, payload any) {
	if s.trail == nil {
		return
	}
	if _, err := s.trail.Append(ctx, deviceID, action, actor, payload); err != nil {
		s.logger.Error("audit trail append failed (non-fatal)",
			zap.String("action", action),
			zap.String("device_id", deviceID),
			zap.Error(err),
		)
	}
}

// Register creates a sensor registration for the caller's identity. The
// caller becomes the immutable authority. Counters start at zero and the
// registration is active. Device uniqueness is enforced by the store.
func (s *LedgerService) Register(ctx context.Context, caller string, req *model.RegisterRequest) (*model.SensorRegistration, error) {
	if err := model.ValidateDeviceID(req.DeviceID); err != nil {
		return nil, err
	}
	if _, err := model.DecodeIdentity(caller); err != nil {
		return nil, &model.ErrValidation{Msg: "caller identity must be a 32-byte hex Ed25519 public key"}
	}

	now := s.clock.Now().UTC()
	reg := &model.SensorRegistration{
		ID:        uuid.New(),
		Authority: caller,
		DeviceID:  req.DeviceID,
		IsActive:  true,
		CreatedAt: now,
		UpdatedAt: now,
	}

	if err := s.store.CreateSensor(ctx, reg); err != nil {
		return nil, err
	}

	s.logger.Info("sensor registered",
		zap.String("id", reg.ID.String()),
		zap.String("device_id", reg.DeviceID),
	)

	s.appendTrail(ctx, reg.DeviceID, "register", caller, map[string]string{
		"sensor_id": reg.ID.String(),
		"authority": reg.Authority,
	})
	return reg, nil
}

// SubmitProof verifies and records one individually signed proof.
//
// Preconditions, in order: registration active; claimed timestamp not in the
// future (no lower bound, arbitrarily old proofs are accepted); Ed25519
// signature by the caller's key over the canonical message. On success the
// record insert and the three registry counter writes commit atomically.
func (s *LedgerService) SubmitProof(ctx context.Context, caller string, sensorID uuid.UUID, req *model.SubmitProofRequest) (*model.ProofRecord, *model.SensorRegistration, error) {
	if err := model.ValidateSensorType(req.SensorType); err != nil {
		return nil, nil, err
	}
	if len(req.Data) > model.MaxDataLen {
		return nil, nil, &model.ErrValidation{Msg: fmt.Sprintf("data exceeds %d bytes", model.MaxDataLen)}
	}
	if len(req.Signature) != sensorproof.SignatureSize {
		return nil, nil, &model.ErrValidation{Msg: "signature must be 64 bytes"}
	}
	pub, err := model.DecodeIdentity(caller)
	if err != nil {
		return nil, nil, &model.ErrValidation{Msg: "caller identity must be a 32-byte hex Ed25519 public key"}
	}

	reg, err := s.store.GetSensor(ctx, sensorID)
	if err != nil {
		return nil, nil, err
	}

	if !reg.IsActive {
		return nil, nil, model.ErrAccountInactive
	}

	now := s.clock.Now().Unix()
	if req.Timestamp > now {
		return nil, nil, model.ErrInvalidTimestamp
	}

	msg := sensorproof.EncodeMessage(req.SensorType, req.Timestamp, req.Data, reg.DeviceID)
	if err := sensorproof.VerifySignature(req.Signature, pub, msg); err != nil {
		return nil, nil, model.ErrInvalidSignature
	}

	proof := &model.ProofRecord{
		ID:         uuid.New(),
		SensorID:   reg.ID,
		SensorType: req.SensorType,
		Timestamp:  req.Timestamp,
		Data:       req.Data,
		Signature:  req.Signature,
		Verifier:   caller,
		VerifiedAt: now,
	}

	updated, err := s.store.AppendProof(ctx, proof, store.CounterUpdate{
		ProofDelta:         1,
		LastProofTimestamp: req.Timestamp,
	})
	if err != nil {
		return nil, nil, fmt.Errorf("append proof: %w", err)
	}

	s.logger.Info("proof verified and stored",
		zap.String("proof_id", proof.ID.String()),
		zap.String("device_id", reg.DeviceID),
		zap.Uint64("proof_count", updated.ProofCount),
	)

	s.appendTrail(ctx, reg.DeviceID, "proof", caller, map[string]any{
		"proof_id":    proof.ID.String(),
		"sensor_type": proof.SensorType,
		"timestamp":   proof.Timestamp,
	})
	return proof, updated, nil
}

// SubmitBatch records a Merkle commitment over an externally built proof set.
//
// Preconditions, in order: registration active; claimed proof count positive;
// start timestamp not after end timestamp. No signature is checked and the
// root is trusted at submission; individual leaves are falsifiable later via
// VerifyMerkleProof. The end timestamp is deliberately not compared against
// the current time.
func (s *LedgerService) SubmitBatch(ctx context.Context, caller string, sensorID uuid.UUID, root sensorproof.Hash, proofCount uint32, start, end int64) (*model.BatchProofRecord, *model.SensorRegistration, error) {
	if _, err := model.DecodeIdentity(caller); err != nil {
		return nil, nil, &model.ErrValidation{Msg: "caller identity must be a 32-byte hex Ed25519 public key"}
	}

	reg, err := s.store.GetSensor(ctx, sensorID)
	if err != nil {
		return nil, nil, err
	}

	if !reg.IsActive {
		return nil, nil, model.ErrAccountInactive
	}
	if proofCount == 0 {
		return nil, nil, model.ErrInvalidProofCount
	}
	if start > end {
		return nil, nil, model.ErrInvalidTimestampRange
	}

	batch := &model.BatchProofRecord{
		ID:             uuid.New(),
		SensorID:       reg.ID,
		MerkleRoot:     root[:],
		ProofCount:     proofCount,
		StartTimestamp: start,
		EndTimestamp:   end,
		SubmittedAt:    s.clock.Now().Unix(),
		Submitter:      caller,
	}

	updated, err := s.store.AppendBatch(ctx, batch, store.CounterUpdate{
		ProofDelta:         uint64(proofCount),
		LastProofTimestamp: end,
	})
	if err != nil {
		return nil, nil, fmt.Errorf("append batch: %w", err)
	}

	s.logger.Info("batch commitment stored",
		zap.String("batch_id", batch.ID.String()),
		zap.String("device_id", reg.DeviceID),
		zap.Uint32("batch_proofs", proofCount),
		zap.Uint64("proof_count", updated.ProofCount),
	)

	s.appendTrail(ctx, reg.DeviceID, "batch", caller, map[string]any{
		"batch_id":    batch.ID.String(),
		"proof_count": proofCount,
	})
	return batch, updated, nil
}

// VerifyMerkleProof recomputes a root from (leaf, path, index) and compares
// it to the batch's stored commitment. Read-only and side-effect free: no
// counter moves, any caller may invoke it any number of times. A mismatch is
// ErrInvalidMerkleProof, never a partial success.
func (s *LedgerService) VerifyMerkleProof(ctx context.Context, batchID uuid.UUID, leaf sensorproof.Hash, path []sensorproof.Hash, index uint32) error {
	batch, err := s.store.GetBatch(ctx, batchID)
	if err != nil {
		return err
	}

	var root sensorproof.Hash
	copy(root[:], batch.MerkleRoot)

	if !sensorproof.VerifyInclusion(root, leaf, path, index) {
		return model.ErrInvalidMerkleProof
	}
	return nil
}

// SetActive toggles the registration's activation gate. Only the authority
// may do so; setting the current state again is not an error.
func (s *LedgerService) SetActive(ctx context.Context, caller string, sensorID uuid.UUID, active bool) (*model.SensorRegistration, error) {
	reg, err := s.store.GetSensor(ctx, sensorID)
	if err != nil {
		return nil, err
	}
	if caller != reg.Authority {
		return nil, model.ErrUnauthorized
	}

	updated, err := s.store.SetSensorActive(ctx, sensorID, active)
	if err != nil {
		return nil, err
	}

	action := "deactivate"
	if active {
		action = "activate"
	}
	s.logger.Info("sensor "+action+"d",
		zap.String("id", sensorID.String()),
		zap.String("device_id", reg.DeviceID),
	)
	s.appendTrail(ctx, reg.DeviceID, action, caller, nil)
	return updated, nil
}

// Stats returns the registration's counter snapshot. Pure read.
func (s *LedgerService) Stats(ctx context.Context, sensorID uuid.UUID) (model.SensorStats, error) {
	reg, err := s.store.GetSensor(ctx, sensorID)
	if err != nil {
		return model.SensorStats{}, err
	}
	return reg.Stats(), nil
}

// GetSensor retrieves a registration by handle.
func (s *LedgerService) GetSensor(ctx context.Context, id uuid.UUID) (*model.SensorRegistration, error) {
	return s.store.GetSensor(ctx, id)
}

// GetSensorByDevice retrieves a registration by device identifier.
func (s *LedgerService) GetSensorByDevice(ctx context.Context, deviceID string) (*model.SensorRegistration, error) {
	return s.store.GetSensorByDevice(ctx, deviceID)
}

// ListSensors returns registrations, newest first.
func (s *LedgerService) ListSensors(ctx context.Context, limit, offset int) ([]*model.SensorRegistration, error) {
	return s.store.ListSensors(ctx, limit, offset)
}

// GetProof retrieves an individual proof record.
func (s *LedgerService) GetProof(ctx context.Context, id uuid.UUID) (*model.ProofRecord, error) {
	return s.store.GetProof(ctx, id)
}

// ListProofs returns a sensor's individual proofs, newest first.
func (s *LedgerService) ListProofs(ctx context.Context, sensorID uuid.UUID, limit, offset int) ([]*model.ProofRecord, error) {
	return s.store.ListProofsBySensor(ctx, sensorID, limit, offset)
}

// GetBatch retrieves a batch commitment record.
func (s *LedgerService) GetBatch(ctx context.Context, id uuid.UUID) (*model.BatchProofRecord, error) {
	return s.store.GetBatch(ctx, id)
}

// ListBatches returns a sensor's batch commitments, newest first.
func (s *LedgerService) ListBatches(ctx context.Context, sensorID uuid.UUID, limit, offset int) ([]*model.BatchProofRecord, error) {
	return s.store.ListBatchesBySensor(ctx, sensorID, limit, offset)
}
