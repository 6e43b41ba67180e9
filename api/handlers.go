package api

import (
	"errors"
	"io"
	"net/http"
	"strconv"

	"github.com/dratasich/thingspeak-go-dashboard/devices"
	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog/log"
)

type Handler struct {
	telemetry TelemetryService
	alert     BalanceAlert
	devices   DeviceService
	chat      ChatService
}

// NewHandler constructs a handler; alert may be nil
func NewHandler(t TelemetryService, alert BalanceAlert, d DeviceService, c ChatService) *Handler {
	return &Handler{telemetry: t, alert: alert, devices: d, chat: c}
}

// GetTelemetry returns the sample window and the latest snapshot.
// GET /api/v1/telemetry
func (h *Handler) GetTelemetry(c *gin.Context) {
	resp := TelemetryResponse{State: h.telemetry.State()}
	if h.alert != nil {
		resp.LowBalance = h.alert.Low()
	}
	c.JSON(http.StatusOK, resp)
}

// GET /api/v1/devices
func (h *Handler) ListDevices(c *gin.Context) {
	c.JSON(http.StatusOK, DevicesResponse{Devices: h.devices.Devices()})
}

// GET /api/v1/devices/:device_id
func (h *Handler) GetDevice(c *gin.Context) {
	id, ok := deviceID(c)
	if !ok {
		return
	}

	d, err := h.devices.Device(id)
	if err != nil {
		writeDeviceError(c, err)
		return
	}
	c.JSON(http.StatusOK, d)
}

// PostToggle switches a device, an empty body flips it.
// POST /api/v1/devices/:device_id/toggle
func (h *Handler) PostToggle(c *gin.Context) {
	id, ok := deviceID(c)
	if !ok {
		return
	}

	var req ToggleRequest
	if err := c.ShouldBindJSON(&req); err != nil && !errors.Is(err, io.EOF) {
		c.JSON(http.StatusBadRequest, ErrorResponse{Msg: "invalid payload: " + err.Error()})
		return
	}

	var (
		d   devices.Device
		err error
	)
	if req.On == nil {
		d, err = h.devices.Toggle(id)
	} else {
		d, err = h.devices.Set(id, *req.On)
	}
	if err != nil {
		writeDeviceError(c, err)
		return
	}
	c.JSON(http.StatusOK, d)
}

// PostChat answers a chat message. Device commands are queued, the
// response does not wait for them.
// POST /api/v1/chat
func (h *Handler) PostChat(c *gin.Context) {
	var req ChatRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, ErrorResponse{Msg: "invalid payload: " + err.Error()})
		return
	}

	reply := h.chat.Match(req.Message)
	if reply.Command != nil {
		log.Info().Msgf("Chat requested device %d %v", reply.Command.DeviceID, reply.Command.On)
		h.devices.Request(*reply.Command)
	}
	c.JSON(http.StatusOK, ChatResponse{Text: reply.Text, Command: reply.Command})
}

func deviceID(c *gin.Context) (int, bool) {
	id, err := strconv.Atoi(c.Param("device_id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, ErrorResponse{Msg: "invalid device ID"})
		return 0, false
	}
	return id, true
}

func writeDeviceError(c *gin.Context, err error) {
	if errors.Is(err, devices.ErrDeviceNotFound) {
		c.JSON(http.StatusNotFound, ErrorResponse{Msg: "device not found"})
		return
	}
	log.Error().Msgf("Device request failed: %s", err)
	c.JSON(http.StatusInternalServerError, ErrorResponse{Msg: "internal error"})
}
