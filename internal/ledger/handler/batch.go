package handler

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/depinlabs/sensorledger/internal/identity"
	"github.com/depinlabs/sensorledger/internal/ledger/model"
	"github.com/depinlabs/sensorledger/internal/ledger/service"
	"github.com/depinlabs/sensorledger/internal/sensorproof"
)

// BatchHandler handles batch commitments and Merkle inclusion verification.
type BatchHandler struct {
	svc    *service.LedgerService
	logger *zap.Logger
}

// NewBatchHandler creates a BatchHandler.
func NewBatchHandler(svc *service.LedgerService, logger *zap.Logger) *BatchHandler {
	return &BatchHandler{svc: svc, logger: logger}
}

// Register mounts the batch routes on the given router group.
func (h *BatchHandler) Register(rg *gin.RouterGroup) {
	rg.POST("/sensors/:id/batches", identity.RequireCaller(), h.SubmitBatch)
	rg.GET("/sensors/:id/batches", h.ListBatches)
	rg.GET("/batches/:id", h.GetBatch)
	// Verification is open to anyone; it never mutates state.
	rg.POST("/batches/:id/verify", h.VerifyProof)
}

// SubmitBatch handles POST /sensors/:id/batches. Commits a Merkle root over
// an externally built proof set.
func (h *BatchHandler) SubmitBatch(c *gin.Context) {
	sensorID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid sensor ID"})
		return
	}

	var req model.SubmitBatchRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	root, err := parseHash(req.MerkleRoot)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "merkle_root must be 32 bytes of hex"})
		return
	}

	caller := identity.CallerFromCtx(c)
	batch, reg, err := h.svc.SubmitBatch(c.Request.Context(), caller, sensorID,
		root, req.ProofCount, req.StartTimestamp, req.EndTimestamp)
	if err != nil {
		h.logger.Warn("submit batch rejected",
			zap.String("sensor_id", sensorID.String()),
			zap.Error(err),
		)
		RecordBatchSubmission(false)
		writeError(c, err, "batch submission failed")
		return
	}

	RecordBatchSubmission(true)
	c.JSON(http.StatusCreated, gin.H{
		"batch":  batch,
		"sensor": reg,
	})
}

// ListBatches handles GET /sensors/:id/batches.
func (h *BatchHandler) ListBatches(c *gin.Context) {
	sensorID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid sensor ID"})
		return
	}

	limit, offset := pageParams(c)
	batches, err := h.svc.ListBatches(c.Request.Context(), sensorID, limit, offset)
	if err != nil {
		h.logger.Error("list batches", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to list batches"})
		return
	}
	if batches == nil {
		batches = []*model.BatchProofRecord{}
	}
	c.JSON(http.StatusOK, gin.H{"batches": batches, "count": len(batches)})
}

// GetBatch handles GET /batches/:id.
func (h *BatchHandler) GetBatch(c *gin.Context) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid batch ID"})
		return
	}

	batch, err := h.svc.GetBatch(c.Request.Context(), id)
	if err != nil {
		writeError(c, err, "failed to get batch")
		return
	}
	c.JSON(http.StatusOK, gin.H{"batch": batch})
}

// VerifyProof handles POST /batches/:id/verify. Recomputes a Merkle root
// from the supplied leaf, path, and index and reports whether it matches the
// stored commitment. A mismatch is reported in the body, not as an HTTP
// failure, because the request itself succeeded.
func (h *BatchHandler) VerifyProof(c *gin.Context) {
	batchID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid batch ID"})
		return
	}

	var req model.VerifyProofRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	leaf, err := parseHash(req.ProofHash)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "proof_hash must be 32 bytes of hex"})
		return
	}
	path := make([]sensorproof.Hash, 0, len(req.MerklePath))
	for _, p := range req.MerklePath {
		sibling, err := parseHash(p)
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "merkle_path elements must be 32 bytes of hex"})
			return
		}
		path = append(path, sibling)
	}

	err = h.svc.VerifyMerkleProof(c.Request.Context(), batchID, leaf, path, req.Index)
	switch {
	case err == nil:
		RecordMerkleVerification(true)
		c.JSON(http.StatusOK, gin.H{"valid": true})
	case errors.Is(err, model.ErrInvalidMerkleProof):
		RecordMerkleVerification(false)
		c.JSON(http.StatusOK, gin.H{"valid": false, "error": err.Error()})
	default:
		writeError(c, err, "verification failed")
	}
}
