package api

import (
	"github.com/dratasich/thingspeak-go-dashboard/chat"
	"github.com/dratasich/thingspeak-go-dashboard/devices"
	"github.com/dratasich/thingspeak-go-dashboard/telemetry"
)

// TelemetryService is implemented by *telemetry.Poller
type TelemetryService interface {
	State() telemetry.State
}

// BalanceAlert is implemented by *telemetry.LowBalanceWatcher
type BalanceAlert interface {
	Low() bool
}

// DeviceService is implemented by *devices.Controller
type DeviceService interface {
	Devices() []devices.Device
	Device(id int) (devices.Device, error)
	Set(id int, on bool) (devices.Device, error)
	Toggle(id int) (devices.Device, error)
	Request(req devices.CommandRequest)
}

// ChatService is implemented by *chat.Matcher
type ChatService interface {
	Match(message string) chat.Reply
}
