package store

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
	"go.uber.org/zap"

	"github.com/depinlabs/sensorledger/internal/ledger/model"
)

// uniqueViolation is the PostgreSQL error code for unique constraint violations.
const uniqueViolation = "23505"

// PostgresStore persists the attestation ledger to PostgreSQL. It implements
// the Store interface. Atomic multi-record commands run inside a single
// transaction so the record insert and the registration counter writes are
// never observed separately.
type PostgresStore struct {
	pool   *pgxpool.Pool
	logger *zap.Logger
}

// NewPostgres creates a PostgresStore backed by the given connection pool.
func NewPostgres(pool *pgxpool.Pool, logger *zap.Logger) *PostgresStore {
	return &PostgresStore{pool: pool, logger: logger}
}

const sensorColumns = `id, authority, device_id, proof_count, total_proofs_verified,
	last_proof_timestamp, is_active, created_at, updated_at`

// CreateSensor implements Store.
func (s *PostgresStore) CreateSensor(ctx context.Context, reg *model.SensorRegistration) error {
	_, err := s.pool.Exec(ctx, `
		INSERT INTO sensor_registrations (
			id, authority, device_id, proof_count, total_proofs_verified,
			last_proof_timestamp, is_active, created_at, updated_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)`,
		reg.ID, reg.Authority, reg.DeviceID, reg.ProofCount, reg.TotalProofsVerified,
		reg.LastProofTimestamp, reg.IsActive, reg.CreatedAt, reg.UpdatedAt,
	)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == uniqueViolation {
			return ErrDuplicateDevice
		}
		return fmt.Errorf("insert sensor registration: %w", err)
	}
	return nil
}

// GetSensor implements Store.
func (s *PostgresStore) GetSensor(ctx context.Context, id uuid.UUID) (*model.SensorRegistration, error) {
	row := s.pool.QueryRow(ctx,
		`SELECT `+sensorColumns+` FROM sensor_registrations WHERE id = $1`, id)
	return scanSensor(row)
}

// GetSensorByDevice implements Store.
func (s *PostgresStore) GetSensorByDevice(ctx context.Context, deviceID string) (*model.SensorRegistration, error) {
	row := s.pool.QueryRow(ctx,
		`SELECT `+sensorColumns+` FROM sensor_registrations WHERE device_id = $1`, deviceID)
	return scanSensor(row)
}

// ListSensors implements Store.
func (s *PostgresStore) ListSensors(ctx context.Context, limit, offset int) ([]*model.SensorRegistration, error) {
	limit, offset = clampPage(limit, offset)
	rows, err := s.pool.Query(ctx,
		`SELECT `+sensorColumns+` FROM sensor_registrations
		 ORDER BY created_at DESC LIMIT $1 OFFSET $2`, limit, offset)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var sensors []*model.SensorRegistration
	for rows.Next() {
		reg, err := scanSensor(rows)
		if err != nil {
			return nil, err
		}
		sensors = append(sensors, reg)
	}
	return sensors, rows.Err()
}

// SetSensorActive implements Store.
func (s *PostgresStore) SetSensorActive(ctx context.Context, id uuid.UUID, active bool) (*model.SensorRegistration, error) {
	row := s.pool.QueryRow(ctx, `
		UPDATE sensor_registrations
		SET is_active = $2, updated_at = $3
		WHERE id = $1
		RETURNING `+sensorColumns,
		id, active, time.Now().UTC())
	return scanSensor(row)
}

// AppendProof implements Store. The proof insert and the counter update
// commit together or roll back together.
func (s *PostgresStore) AppendProof(ctx context.Context, proof *model.ProofRecord, upd CounterUpdate) (*model.SensorRegistration, error) {
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return nil, fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback(ctx) //nolint:errcheck

	if _, err := tx.Exec(ctx, `
		INSERT INTO proof_records (
			id, sensor_id, sensor_type, timestamp, data, signature, verifier, verified_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8)`,
		proof.ID, proof.SensorID, proof.SensorType, proof.Timestamp,
		proof.Data, proof.Signature, proof.Verifier, proof.VerifiedAt,
	); err != nil {
		return nil, fmt.Errorf("insert proof record: %w", err)
	}

	reg, err := applyCountersTx(ctx, tx, proof.SensorID, upd)
	if err != nil {
		return nil, err
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, fmt.Errorf("commit proof tx: %w", err)
	}

	s.logger.Debug("proof appended",
		zap.String("proof_id", proof.ID.String()),
		zap.String("sensor_id", proof.SensorID.String()),
	)
	return reg, nil
}

// AppendBatch implements Store.
func (s *PostgresStore) AppendBatch(ctx context.Context, batch *model.BatchProofRecord, upd CounterUpdate) (*model.SensorRegistration, error) {
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return nil, fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback(ctx) //nolint:errcheck

	if _, err := tx.Exec(ctx, `
		INSERT INTO batch_proof_records (
			id, sensor_id, merkle_root, proof_count,
			start_timestamp, end_timestamp, submitted_at, submitter
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8)`,
		batch.ID, batch.SensorID, batch.MerkleRoot, batch.ProofCount,
		batch.StartTimestamp, batch.EndTimestamp, batch.SubmittedAt, batch.Submitter,
	); err != nil {
		return nil, fmt.Errorf("insert batch record: %w", err)
	}

	reg, err := applyCountersTx(ctx, tx, batch.SensorID, upd)
	if err != nil {
		return nil, err
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, fmt.Errorf("commit batch tx: %w", err)
	}

	s.logger.Debug("batch appended",
		zap.String("batch_id", batch.ID.String()),
		zap.String("sensor_id", batch.SensorID.String()),
		zap.Uint32("proof_count", batch.ProofCount),
	)
	return reg, nil
}

// GetProof implements Store.
func (s *PostgresStore) GetProof(ctx context.Context, id uuid.UUID) (*model.ProofRecord, error) {
	row := s.pool.QueryRow(ctx, `
		SELECT id, sensor_id, sensor_type, timestamp, data, signature, verifier, verified_at
		FROM proof_records WHERE id = $1`, id)
	return scanProof(row)
}

// ListProofsBySensor implements Store.
func (s *PostgresStore) ListProofsBySensor(ctx context.Context, sensorID uuid.UUID, limit, offset int) ([]*model.ProofRecord, error) {
	limit, offset = clampPage(limit, offset)
	rows, err := s.pool.Query(ctx, `
		SELECT id, sensor_id, sensor_type, timestamp, data, signature, verifier, verified_at
		FROM proof_records WHERE sensor_id = $1
		ORDER BY verified_at DESC LIMIT $2 OFFSET $3`, sensorID, limit, offset)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var proofs []*model.ProofRecord
	for rows.Next() {
		p, err := scanProof(rows)
		if err != nil {
			return nil, err
		}
		proofs = append(proofs, p)
	}
	return proofs, rows.Err()
}

// GetBatch implements Store.
func (s *PostgresStore) GetBatch(ctx context.Context, id uuid.UUID) (*model.BatchProofRecord, error) {
	row := s.pool.QueryRow(ctx, `
		SELECT id, sensor_id, merkle_root, proof_count,
		       start_timestamp, end_timestamp, submitted_at, submitter
		FROM batch_proof_records WHERE id = $1`, id)
	return scanBatch(row)
}

// ListBatchesBySensor implements Store.
func (s *PostgresStore) ListBatchesBySensor(ctx context.Context, sensorID uuid.UUID, limit, offset int) ([]*model.BatchProofRecord, error) {
	limit, offset = clampPage(limit, offset)
	rows, err := s.pool.Query(ctx, `
		SELECT id, sensor_id, merkle_root, proof_count,
		       start_timestamp, end_timestamp, submitted_at, submitter
		FROM batch_proof_records WHERE sensor_id = $1
		ORDER BY submitted_at DESC LIMIT $2 OFFSET $3`, sensorID, limit, offset)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var batches []*model.BatchProofRecord
	for rows.Next() {
		b, err := scanBatch(rows)
		if err != nil {
			return nil, err
		}
		batches = append(batches, b)
	}
	return batches, rows.Err()
}

// applyCountersTx performs the registration counter writes inside tx and
// returns the updated row.
func applyCountersTx(ctx context.Context, tx pgx.Tx, sensorID uuid.UUID, upd CounterUpdate) (*model.SensorRegistration, error) {
	row := tx.QueryRow(ctx, `
		UPDATE sensor_registrations
		SET proof_count           = proof_count + $2,
		    total_proofs_verified = total_proofs_verified + $2,
		    last_proof_timestamp  = $3,
		    updated_at            = $4
		WHERE id = $1
		RETURNING `+sensorColumns,
		sensorID, upd.ProofDelta, upd.LastProofTimestamp, time.Now().UTC())
	reg, err := scanSensor(row)
	if err != nil {
		return nil, fmt.Errorf("update sensor counters: %w", err)
	}
	return reg, nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanSensor(row rowScanner) (*model.SensorRegistration, error) {
	var reg model.SensorRegistration
	err := row.Scan(
		&reg.ID, &reg.Authority, &reg.DeviceID, &reg.ProofCount, &reg.TotalProofsVerified,
		&reg.LastProofTimestamp, &reg.IsActive, &reg.CreatedAt, &reg.UpdatedAt,
	)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("scan sensor registration: %w", err)
	}
	return &reg, nil
}

func scanProof(row rowScanner) (*model.ProofRecord, error) {
	var p model.ProofRecord
	err := row.Scan(
		&p.ID, &p.SensorID, &p.SensorType, &p.Timestamp,
		&p.Data, &p.Signature, &p.Verifier, &p.VerifiedAt,
	)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("scan proof record: %w", err)
	}
	return &p, nil
}

func scanBatch(row rowScanner) (*model.BatchProofRecord, error) {
	var b model.BatchProofRecord
	err := row.Scan(
		&b.ID, &b.SensorID, &b.MerkleRoot, &b.ProofCount,
		&b.StartTimestamp, &b.EndTimestamp, &b.SubmittedAt, &b.Submitter,
	)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("scan batch record: %w", err)
	}
	return &b, nil
}

func clampPage(limit, offset int) (int, int) {
	if limit <= 0 {
		limit = 50
	}
	if offset < 0 {
		offset = 0
	}
	return limit, offset
}
