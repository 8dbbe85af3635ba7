package handler

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/depinlabs/sensorledger/internal/audit"
)

// AuditHandler exposes read-only endpoints for the audit trail.
type AuditHandler struct {
	trail  audit.Ledger
	logger *zap.Logger
}

// NewAuditHandler creates an AuditHandler.
func NewAuditHandler(trail audit.Ledger, logger *zap.Logger) *AuditHandler {
	return &AuditHandler{trail: trail, logger: logger}
}

// Register mounts the audit routes on the given router group.
func (h *AuditHandler) Register(rg *gin.RouterGroup) {
	a := rg.Group("/audit")
	{
		a.GET("", h.Overview)
		a.GET("/verify", h.Verify)
		a.GET("/entries/:idx", h.GetEntry)
	}
}

// Overview handles GET /audit reporting chain length and current head hash.
func (h *AuditHandler) Overview(c *gin.Context) {
	ctx := c.Request.Context()

	count, err := h.trail.Count(ctx)
	if err != nil {
		h.logger.Error("audit Count", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to query audit trail"})
		return
	}
	head, err := h.trail.Head(ctx)
	if err != nil {
		h.logger.Error("audit Head", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to query audit head"})
		return
	}

	c.JSON(http.StatusOK, gin.H{"entries": count, "head": head})
}

// Verify handles GET /audit/verify by walking the full chain.
func (h *AuditHandler) Verify(c *gin.Context) {
	if err := h.trail.Verify(c.Request.Context()); err != nil {
		h.logger.Warn("audit integrity check failed", zap.Error(err))
		c.JSON(http.StatusOK, gin.H{"valid": false, "error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{"valid": true})
}

// GetEntry handles GET /audit/entries/:idx.
func (h *AuditHandler) GetEntry(c *gin.Context) {
	idx, err := strconv.Atoi(c.Param("idx"))
	if err != nil || idx < 0 {
		c.JSON(http.StatusBadRequest, gin.H{"error": "idx must be a non-negative integer"})
		return
	}

	entry, err := h.trail.Get(c.Request.Context(), idx)
	if err != nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "entry not found"})
		return
	}
	c.JSON(http.StatusOK, entry)
}
