package telemetry

import (
	"context"
	"errors"
	"math"
	"sync"
	"time"

	"github.com/dratasich/thingspeak-go-dashboard/events"
	"github.com/dratasich/thingspeak-go-dashboard/metrics"
	"github.com/rs/zerolog/log"
)

// samples with usage or predicted usage at or above this value are dropped
const sampleLimit = 1.0

// Polling configuration
type Config struct {
	Interval   time.Duration `env:"INTERVAL,default=2s"`    // time between two fetches
	Window     int           `env:"WINDOW,default=50"`      // number of samples kept for the chart
	LowBalance float64       `env:"LOW_BALANCE,default=15"` // balance alert threshold in percent
}

type FeedReader interface {
	LatestFeed(ctx context.Context) (*events.Feed, error)
}

// Snapshot holds the latest non-historized values, overwritten on every fetch
type Snapshot struct {
	RemainingBalancePercent float64   `json:"remaining_balance_percent"`
	BatteryTemperature      float64   `json:"battery_temperature"`
	UpdatedAt               time.Time `json:"updated_at"`
}

type State struct {
	Samples    []Sample `json:"samples"`
	Snapshot   Snapshot `json:"snapshot"`
	TotalUsage float64  `json:"total_usage"`
}

// Update is handed to observers once per applied record.
// Nil pointers mark values that were not published by this record.
type Update struct {
	Sample      *Sample
	Balance     *float64
	Temperature *float64
	State       State
}

type Observer interface {
	Observe(u Update)
}

type ObserverFunc func(u Update)

func (f ObserverFunc) Observe(u Update) { f(u) }

// Poller keeps a live view of the telemetry channel.
//
// Observers are called one at a time, never concurrently, and never after
// the Handle that produced the record has been stopped.
type Poller struct {
	reader    FeedReader
	config    Config
	observers []Observer

	// serializes publication, guards observers and Handle.stopped
	pubMu sync.Mutex

	mu         sync.RWMutex
	window     *SampleWindow
	snapshot   Snapshot
	totalUsage float64
}

func NewPoller(reader FeedReader, cfg Config, observers ...Observer) *Poller {
	if cfg.Interval <= 0 {
		cfg.Interval = 2 * time.Second
	}
	return &Poller{
		reader:    reader,
		config:    cfg,
		observers: observers,
		window:    NewSampleWindow(cfg.Window),
	}
}

func (p *Poller) Subscribe(o Observer) {
	p.pubMu.Lock()
	defer p.pubMu.Unlock()
	p.observers = append(p.observers, o)
}

// State returns a copy of the current samples and snapshot
func (p *Poller) State() State {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.stateLocked()
}

func (p *Poller) stateLocked() State {
	return State{
		Samples:    p.window.Samples(),
		Snapshot:   p.snapshot,
		TotalUsage: p.totalUsage,
	}
}

// Handle of a running poll loop, see Poller.Start
type Handle struct {
	poller *Poller
	cancel context.CancelFunc
	done   chan struct{}

	// guarded by poller.pubMu
	stopped bool
}

// Start fetches immediately and then once per interval until the handle is
// stopped or ctx is done.
func (p *Poller) Start(ctx context.Context) *Handle {
	ctx, cancel := context.WithCancel(ctx)
	h := &Handle{
		poller: p,
		cancel: cancel,
		done:   make(chan struct{}),
	}
	log.Info().Msgf("Start polling telemetry every %s", p.config.Interval)
	go h.loop(ctx)
	return h
}

func (h *Handle) loop(ctx context.Context) {
	defer close(h.done)

	ticker := time.NewTicker(h.poller.config.Interval)
	defer ticker.Stop()

	h.tick(ctx)
	for {
		select {
		case <-ctx.Done():
			h.markStopped()
			return
		case <-ticker.C:
			h.tick(ctx)
		}
	}
}

// tick does not wait for the response, a slow response may arrive after
// the next tick's one (last applied wins)
func (h *Handle) tick(ctx context.Context) {
	// in-flight requests survive Stop, their results are discarded in Apply
	fetchCtx := context.WithoutCancel(ctx)
	go func() {
		feed, err := h.poller.reader.LatestFeed(fetchCtx)
		if err != nil {
			log.Error().Msgf("Failed to fetch telemetry: %s", err)
			metrics.Polls.WithLabelValues("error").Inc()
			return
		}
		metrics.Polls.WithLabelValues("ok").Inc()
		h.Apply(feed)
	}()
}

// Stop cancels the poll loop. No observer is called after Stop returns.
// Safe to call more than once; must not be called from an observer.
func (h *Handle) Stop() {
	h.markStopped()
	h.cancel()
	<-h.done
	log.Info().Msg("Stopped polling telemetry")
}

func (h *Handle) markStopped() {
	h.poller.pubMu.Lock()
	h.stopped = true
	h.poller.pubMu.Unlock()
}

// Apply validates a record, updates the state and notifies the observers.
// Records applied after Stop are dropped.
func (h *Handle) Apply(feed *events.Feed) {
	p := h.poller
	p.pubMu.Lock()
	defer p.pubMu.Unlock()

	if h.stopped {
		log.Debug().Msgf("Dropping telemetry entry %d, poller stopped", feed.EntryId)
		return
	}

	update := p.apply(feed)
	for _, o := range p.observers {
		o.Observe(update)
	}
}

func (p *Poller) apply(feed *events.Feed) Update {
	var update Update

	ts := feed.CreatedAt
	if ts.IsZero() {
		ts = time.Now()
	}

	usage, usageErr := finite(feed.Float(events.FieldUsage))
	predicted, predictedErr := finite(feed.Float(events.FieldPredicted))
	balance, balanceErr := notNaN(feed.Float(events.FieldBalance))
	// NaN and Inf cannot be encoded as JSON
	temperature, temperatureErr := finite(feed.Float(events.FieldTemperature))

	p.mu.Lock()
	defer p.mu.Unlock()

	// both values must parse and stay below the limit; balance and
	// temperature are not filtered
	if usageErr == nil && predictedErr == nil && usage < sampleLimit && predicted < sampleLimit {
		s := Sample{Timestamp: ts, Usage: usage, Predicted: predicted}
		p.window.Add(s)
		p.totalUsage += usage
		update.Sample = &s
		metrics.Samples.WithLabelValues("accepted").Inc()
	} else {
		logFieldError(usageErr)
		logFieldError(predictedErr)
		log.Debug().Msgf("Skipping sample of entry %d (usage=%v, predicted=%v)", feed.EntryId, usage, predicted)
		metrics.Samples.WithLabelValues("rejected").Inc()
	}

	if balanceErr == nil {
		b := math.Min(100, math.Max(0, balance))
		p.snapshot.RemainingBalancePercent = b
		p.snapshot.UpdatedAt = ts
		update.Balance = &b
		metrics.RemainingBalance.Set(b)
	} else {
		logFieldError(balanceErr)
	}

	if temperatureErr == nil {
		p.snapshot.BatteryTemperature = temperature
		p.snapshot.UpdatedAt = ts
		update.Temperature = &temperature
		metrics.BatteryTemperature.Set(temperature)
	} else {
		logFieldError(temperatureErr)
	}

	update.State = p.stateLocked()
	return update
}

var (
	errNotFinite = errors.New("not a finite number")
	errNaN       = errors.New("not a number")
)

// notNaN accepts ±Inf, used for values that get clamped afterwards
func notNaN(v float64, err error) (float64, error) {
	if err != nil {
		return 0, err
	}
	if math.IsNaN(v) {
		return 0, errNaN
	}
	return v, nil
}

func finite(v float64, err error) (float64, error) {
	if err != nil {
		return 0, err
	}
	if math.IsNaN(v) || math.IsInf(v, 0) {
		return 0, errNotFinite
	}
	return v, nil
}

func logFieldError(err error) {
	switch {
	case err == nil:
	case errors.Is(err, events.ErrFieldMissing):
		log.Debug().Msgf("Telemetry %s", err)
	default:
		log.Warn().Msgf("Failed to parse telemetry: %s", err)
	}
}
