package devices

import (
	"context"
	"math/rand/v2"
	"sync"

	"github.com/rs/zerolog/log"
)

type Commander interface {
	Dispatch(deviceID int, on bool) int
}

// Controller owns the local device states.
//
// Every OFF/ON transition re-randomizes (ON) or zeroes (OFF) the simulated
// usage and hands the new state to the Commander once.
type Controller struct {
	commander Commander
	mailbox   Mailbox
	wake      chan struct{}

	// held from a state change until its dispatch and listeners are done,
	// so they see transitions in order
	orderMu sync.Mutex

	mu        sync.Mutex
	devices   []*Device
	random    func() float64
	listeners []func(Device)
}

func NewController(commander Commander) *Controller {
	c := &Controller{
		commander: commander,
		wake:      make(chan struct{}, 1),
		random:    rand.Float64,
	}
	for _, e := range catalog {
		c.devices = append(c.devices, &Device{ID: e.id, Name: e.name})
	}
	return c
}

func (c *Controller) Devices() []Device {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make([]Device, 0, len(c.devices))
	for _, d := range c.devices {
		out = append(out, *d)
	}
	return out
}

func (c *Controller) Device(id int) (Device, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	d := c.find(id)
	if d == nil {
		return Device{}, ErrDeviceNotFound
	}
	return *d, nil
}

func (c *Controller) find(id int) *Device {
	for _, d := range c.devices {
		if d.ID == id {
			return d
		}
	}
	return nil
}

// OnChange registers a function called after every transition, in the
// order of the transitions. It must not switch devices itself.
func (c *Controller) OnChange(fn func(Device)) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.listeners = append(c.listeners, fn)
}

// Set switches a device. Setting the state it already has does nothing.
func (c *Controller) Set(id int, on bool) (Device, error) {
	return c.update(id, func(bool) bool { return on })
}

// Toggle flips a device
func (c *Controller) Toggle(id int) (Device, error) {
	return c.update(id, func(isOn bool) bool { return !isOn })
}

func (c *Controller) update(id int, next func(isOn bool) bool) (Device, error) {
	c.orderMu.Lock()
	defer c.orderMu.Unlock()

	c.mu.Lock()
	d := c.find(id)
	if d == nil {
		c.mu.Unlock()
		return Device{}, ErrDeviceNotFound
	}
	on := next(d.IsOn)
	if on == d.IsOn {
		out := *d
		c.mu.Unlock()
		return out, nil
	}

	d.IsOn = on
	d.CurrentUsage = 0
	if on {
		e, _ := lookup(id)
		r := e.usage
		d.CurrentUsage = r.min + c.random()*(r.max-r.min)
	}
	out := *d
	listeners := c.listeners
	c.mu.Unlock()

	log.Info().Msgf("%s switched %s", out.Name, onOff(on))
	c.commander.Dispatch(id, on)
	for _, fn := range listeners {
		fn(out)
	}
	return out, nil
}

// Request leaves a command for Run (or Drain) to pick up.
// A command still waiting is replaced.
func (c *Controller) Request(req CommandRequest) {
	c.mailbox.Set(req)
	select {
	case c.wake <- struct{}{}:
	default:
	}
}

// Drain applies the waiting command, if any
func (c *Controller) Drain() (CommandRequest, bool) {
	req, ok := c.mailbox.TakeAndClear()
	if !ok {
		return req, false
	}
	if _, err := c.Set(req.DeviceID, req.On); err != nil {
		log.Error().Msgf("Failed to apply command for device %d: %s", req.DeviceID, err)
	}
	return req, true
}

// Run applies requested commands until ctx is done
func (c *Controller) Run(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			return
		case <-c.wake:
			c.Drain()
		}
	}
}

func onOff(on bool) string {
	if on {
		return "on"
	}
	return "off"
}
