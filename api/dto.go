package api

import (
	"github.com/dratasich/thingspeak-go-dashboard/devices"
	"github.com/dratasich/thingspeak-go-dashboard/telemetry"
)

type TelemetryResponse struct {
	telemetry.State
	LowBalance bool `json:"low_balance"`
}

type DevicesResponse struct {
	Devices []devices.Device `json:"devices"`
}

// ToggleRequest without "on" flips the device
type ToggleRequest struct {
	On *bool `json:"on"`
}

type ChatRequest struct {
	Message string `json:"message" binding:"required"`
}

type ChatResponse struct {
	Text    string                  `json:"text"`
	Command *devices.CommandRequest `json:"command,omitempty"`
}

type ErrorResponse struct {
	Msg string `json:"msg"`
}
