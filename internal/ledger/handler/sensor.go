// Package handler exposes the attestation ledger operations over HTTP with
// gin. Mutating routes require a caller token (see internal/identity);
// reads, including Merkle inclusion verification, are public.
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

// SensorHandler handles registration and lifecycle requests.
type SensorHandler struct {
	svc    *service.LedgerService
	logger *zap.Logger
}

// NewSensorHandler creates a SensorHandler.
func NewSensorHandler(svc *service.LedgerService, logger *zap.Logger) *SensorHandler {
	return &SensorHandler{svc: svc, logger: logger}
}

// Register mounts the sensor routes on the given router group.
func (h *SensorHandler) Register(rg *gin.RouterGroup) {
	sensors := rg.Group("/sensors")
	{
		sensors.POST("", identity.RequireCaller(), h.CreateSensor)
		sensors.GET("", h.ListSensors)
		sensors.GET("/:id", h.GetSensor)
		sensors.GET("/:id/stats", h.GetStats)
		sensors.POST("/:id/activate", identity.RequireCaller(), h.ActivateSensor)
		sensors.POST("/:id/deactivate", identity.RequireCaller(), h.DeactivateSensor)
	}
}

// CreateSensor handles POST /sensors, registering a device under the caller's
// authority.
func (h *SensorHandler) CreateSensor(c *gin.Context) {
	var req model.RegisterRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	reg, err := h.svc.Register(c.Request.Context(), identity.CallerFromCtx(c), &req)
	if err != nil {
		h.logger.Warn("register sensor", zap.String("device_id", req.DeviceID), zap.Error(err))
		writeError(c, err, "registration failed")
		return
	}

	RecordRegistration()
	c.JSON(http.StatusCreated, gin.H{"sensor": reg})
}

// ListSensors handles GET /sensors. Optional ?device_id= looks up a single
// registration by device identifier.
func (h *SensorHandler) ListSensors(c *gin.Context) {
	ctx := c.Request.Context()

	if deviceID := c.Query("device_id"); deviceID != "" {
		reg, err := h.svc.GetSensorByDevice(ctx, deviceID)
		if err != nil {
			writeError(c, err, "failed to look up sensor")
			return
		}
		c.JSON(http.StatusOK, gin.H{"sensors": []*model.SensorRegistration{reg}, "count": 1})
		return
	}

	limit, offset := pageParams(c)
	sensors, err := h.svc.ListSensors(ctx, limit, offset)
	if err != nil {
		h.logger.Error("list sensors", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to list sensors"})
		return
	}
	if sensors == nil {
		sensors = []*model.SensorRegistration{}
	}
	c.JSON(http.StatusOK, gin.H{"sensors": sensors, "count": len(sensors)})
}

// GetSensor handles GET /sensors/:id.
func (h *SensorHandler) GetSensor(c *gin.Context) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid sensor ID"})
		return
	}

	reg, err := h.svc.GetSensor(c.Request.Context(), id)
	if err != nil {
		writeError(c, err, "failed to get sensor")
		return
	}
	c.JSON(http.StatusOK, gin.H{"sensor": reg})
}

// GetStats handles GET /sensors/:id/stats with the counter snapshot.
func (h *SensorHandler) GetStats(c *gin.Context) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid sensor ID"})
		return
	}

	stats, err := h.svc.Stats(c.Request.Context(), id)
	if err != nil {
		writeError(c, err, "failed to get sensor stats")
		return
	}
	c.JSON(http.StatusOK, stats)
}

// ActivateSensor handles POST /sensors/:id/activate.
func (h *SensorHandler) ActivateSensor(c *gin.Context) {
	h.setActive(c, true)
}

// DeactivateSensor handles POST /sensors/:id/deactivate.
func (h *SensorHandler) DeactivateSensor(c *gin.Context) {
	h.setActive(c, false)
}

func (h *SensorHandler) setActive(c *gin.Context, active bool) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid sensor ID"})
		return
	}

	reg, err := h.svc.SetActive(c.Request.Context(), identity.CallerFromCtx(c), id, active)
	if err != nil {
		writeError(c, err, "failed to update sensor status")
		return
	}
	c.JSON(http.StatusOK, gin.H{"sensor": reg})
}
