package devices

import (
	"context"
	"strconv"
	"sync"
	"time"

	"github.com/dratasich/thingspeak-go-dashboard/metrics"
	"github.com/google/uuid"
	"github.com/rs/zerolog/log"
)

// Write configuration
type DispatchConfig struct {
	Attempts int           `env:"ATTEMPTS,default=15"` // writes per command
	Spacing  time.Duration `env:"SPACING,default=2s"`  // time between two writes
	Timeout  time.Duration `env:"TIMEOUT,default=5s"`  // per write
}

type FieldWriter interface {
	WriteField(ctx context.Context, field int, value int) error
}

type Timer interface {
	Stop() bool
}

type Scheduler interface {
	AfterFunc(d time.Duration, f func()) Timer
}

type clock struct{}

func (clock) AfterFunc(d time.Duration, f func()) Timer { return time.AfterFunc(d, f) }

// Dispatcher propagates device states to the channel.
//
// The endpoint drops writes now and then, so every command is written
// several times. All writes are scheduled up front; they do not look at
// each other's results and nothing is reported back to the caller.
type Dispatcher struct {
	writer    FieldWriter
	config    DispatchConfig
	scheduler Scheduler

	mu      sync.Mutex
	nextID  uint64
	pending map[uint64]Timer
	closed  bool
}

func NewDispatcher(writer FieldWriter, cfg DispatchConfig, scheduler Scheduler) *Dispatcher {
	if cfg.Attempts <= 0 {
		cfg.Attempts = 15
	}
	if cfg.Spacing <= 0 {
		cfg.Spacing = 2 * time.Second
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 5 * time.Second
	}
	if scheduler == nil {
		scheduler = clock{}
	}
	return &Dispatcher{
		writer:    writer,
		config:    cfg,
		scheduler: scheduler,
		pending:   map[uint64]Timer{},
	}
}

// Dispatch schedules the writes for one device state and returns the
// number of scheduled writes (0 for devices without a remote field).
func (d *Dispatcher) Dispatch(deviceID int, on bool) int {
	field, err := FieldFor(deviceID)
	if err != nil {
		log.Debug().Msgf("Not dispatching device %d: %s", deviceID, err)
		return 0
	}
	value := 0
	if on {
		value = 1
	}
	batch := uuid.NewString()

	d.mu.Lock()
	defer d.mu.Unlock()
	if d.closed {
		return 0
	}

	for i := range d.config.Attempts {
		id := d.nextID
		d.nextID++
		attempt := i + 1
		d.pending[id] = d.scheduler.AfterFunc(time.Duration(i)*d.config.Spacing, func() {
			if d.take(id) {
				d.write(batch, attempt, field, value)
			}
		})
	}

	log.Info().Str("batch", batch).Msgf("Scheduled %d writes of field%d=%d for device %d",
		d.config.Attempts, field, value, deviceID)
	return d.config.Attempts
}

// take removes a scheduled write, false if Close already dropped it
func (d *Dispatcher) take(id uint64) bool {
	d.mu.Lock()
	defer d.mu.Unlock()
	_, ok := d.pending[id]
	delete(d.pending, id)
	return ok
}

func (d *Dispatcher) write(batch string, attempt, field, value int) {
	ctx, cancel := context.WithTimeout(context.Background(), d.config.Timeout)
	defer cancel()

	label := strconv.Itoa(field)
	if err := d.writer.WriteField(ctx, field, value); err != nil {
		log.Error().Str("batch", batch).Msgf("Write %d/%d field%d=%d failed: %s",
			attempt, d.config.Attempts, field, value, err)
		metrics.WriteAttempts.WithLabelValues(label, "error").Inc()
		return
	}
	log.Info().Str("batch", batch).Msgf("Write %d/%d field%d=%d done",
		attempt, d.config.Attempts, field, value)
	metrics.WriteAttempts.WithLabelValues(label, "ok").Inc()
}

// Pending returns the number of writes not fired yet
func (d *Dispatcher) Pending() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return len(d.pending)
}

// Close drops all writes that have not fired yet
func (d *Dispatcher) Close() {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.closed = true
	for id, t := range d.pending {
		t.Stop()
		delete(d.pending, id)
	}
}
