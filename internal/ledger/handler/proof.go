package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/depinlabs/sensorledger/internal/identity"
	"github.com/depinlabs/sensorledger/internal/ledger/model"
	"github.com/depinlabs/sensorledger/internal/ledger/service"
)

// ProofHandler handles individual proof submission and reads.
type ProofHandler struct {
	svc    *service.LedgerService
	logger *zap.Logger
}

// NewProofHandler creates a ProofHandler.
func NewProofHandler(svc *service.LedgerService, logger *zap.Logger) *ProofHandler {
	return &ProofHandler{svc: svc, logger: logger}
}

// Register mounts the proof routes on the given router group.
func (h *ProofHandler) Register(rg *gin.RouterGroup) {
	rg.POST("/sensors/:id/proofs", identity.RequireCaller(), h.SubmitProof)
	rg.GET("/sensors/:id/proofs", h.ListProofs)
	rg.GET("/proofs/:id", h.GetProof)
}

// SubmitProof handles POST /sensors/:id/proofs. Verifies and records one
// individually signed proof.
func (h *ProofHandler) SubmitProof(c *gin.Context) {
	sensorID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid sensor ID"})
		return
	}

	var req model.SubmitProofRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	caller := identity.CallerFromCtx(c)
	proof, reg, err := h.svc.SubmitProof(c.Request.Context(), caller, sensorID, &req)
	if err != nil {
		h.logger.Warn("submit proof rejected",
			zap.String("sensor_id", sensorID.String()),
			zap.Error(err),
		)
		RecordProofSubmission(false)
		writeError(c, err, "proof submission failed")
		return
	}

	RecordProofSubmission(true)
	c.JSON(http.StatusCreated, gin.H{
		"proof":  proof,
		"sensor": reg,
	})
}

// ListProofs handles GET /sensors/:id/proofs.
func (h *ProofHandler) ListProofs(c *gin.Context) {
	sensorID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid sensor ID"})
		return
	}

	limit, offset := pageParams(c)
	proofs, err := h.svc.ListProofs(c.Request.Context(), sensorID, limit, offset)
	if err != nil {
		h.logger.Error("list proofs", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to list proofs"})
		return
	}
	if proofs == nil {
		proofs = []*model.ProofRecord{}
	}
	c.JSON(http.StatusOK, gin.H{"proofs": proofs, "count": len(proofs)})
}

// GetProof handles GET /proofs/:id.
func (h *ProofHandler) GetProof(c *gin.Context) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid proof ID"})
		return
	}

	proof, err := h.svc.GetProof(c.Request.Context(), id)
	if err != nil {
		writeError(c, err, "failed to get proof")
		return
	}
	c.JSON(http.StatusOK, gin.H{"proof": proof})
}
