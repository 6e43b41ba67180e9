package devices

import "errors"

var (
	ErrDeviceNotFound = errors.New("device not found")
	ErrNotWritable    = errors.New("device has no remote field")
)

// Device is a simulated smart-home appliance.
// CurrentUsage is a simulated load in kW, not a measurement.
type Device struct {
	ID           int     `json:"id"`
	Name         string  `json:"name"`
	CurrentUsage float64 `json:"current_usage"`
	IsOn         bool    `json:"is_on"`
}

// CommandRequest asks for one device to be switched on or off
type CommandRequest struct {
	DeviceID int  `json:"device_id"`
	On       bool `json:"on"`
}

type usageRange struct {
	min, max float64
}

type catalogEntry struct {
	id    int
	name  string
	field int // channel field holding the on/off state
	usage usageRange
}

const (
	Light          = 1
	WashingMachine = 2
)

var catalog = []catalogEntry{
	{id: Light, name: "Light", field: 7, usage: usageRange{0.01, 0.10}},
	{id: WashingMachine, name: "Washing Machine", field: 8, usage: usageRange{0.30, 0.90}},
}

func lookup(id int) (catalogEntry, bool) {
	for _, e := range catalog {
		if e.id == id {
			return e, true
		}
	}
	return catalogEntry{}, false
}

// FieldFor returns the channel field written for a device
func FieldFor(id int) (int, error) {
	e, ok := lookup(id)
	if !ok {
		return 0, ErrNotWritable
	}
	return e.field, nil
}
