package handler

import (
	"encoding/hex"
	"errors"
	"fmt"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"github.com/depinlabs/sensorledger/internal/ledger/model"
	"github.com/depinlabs/sensorledger/internal/ledger/store"
	"github.com/depinlabs/sensorledger/internal/sensorproof"
)

// writeError maps domain errors onto HTTP statuses. Precondition failures
// are 422 (the request was well-formed but the state machine refused it),
// field violations 400, capability failures 403.
func writeError(c *gin.Context, err error, fallback string) {
	var valErr *model.ErrValidation
	switch {
	case errors.As(err, &valErr):
		c.JSON(http.StatusBadRequest, gin.H{"error": valErr.Msg})
	case errors.Is(err, store.ErrNotFound):
		c.JSON(http.StatusNotFound, gin.H{"error": "record not found"})
	case errors.Is(err, store.ErrDuplicateDevice):
		c.JSON(http.StatusConflict, gin.H{"error": err.Error()})
	case errors.Is(err, model.ErrUnauthorized):
		c.JSON(http.StatusForbidden, gin.H{"error": err.Error()})
	case errors.Is(err, model.ErrAccountInactive),
		errors.Is(err, model.ErrInvalidTimestamp),
		errors.Is(err, model.ErrInvalidSignature),
		errors.Is(err, model.ErrInvalidProofCount),
		errors.Is(err, model.ErrInvalidTimestampRange):
		c.JSON(http.StatusUnprocessableEntity, gin.H{"error": err.Error()})
	default:
		c.JSON(http.StatusInternalServerError, gin.H{"error": fallback})
	}
}

// parseHash decodes a 64-character hex string into a 32-byte hash.
func parseHash(s string) (sensorproof.Hash, error) {
	var h sensorproof.Hash
	raw, err := hex.DecodeString(s)
	if err != nil {
		return h, fmt.Errorf("decode hash: %w", err)
	}
	if len(raw) != sensorproof.HashSize {
		return h, fmt.Errorf("hash must be %d bytes, got %d", sensorproof.HashSize, len(raw))
	}
	copy(h[:], raw)
	return h, nil
}

// pageParams reads limit/offset query parameters with the shared defaults.
func pageParams(c *gin.Context) (int, int) {
	limit, _ := strconv.Atoi(c.DefaultQuery("limit", "50"))
	offset, _ := strconv.Atoi(c.DefaultQuery("offset", "0"))
	if limit <= 0 || limit > 200 {
		limit = 50
	}
	if offset < 0 {
		offset = 0
	}
	return limit, offset
}
