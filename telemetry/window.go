package telemetry

import "time"

const DefaultWindow = 50

// Sample is one accepted usage reading, plotted by the usage chart
type Sample struct {
	Timestamp time.Time `json:"timestamp"`
	Usage     float64   `json:"usage"`
	Predicted float64   `json:"predicted"`
}

// SampleWindow keeps the most recent samples in arrival order.
// Once full, adding a sample evicts the oldest one.
//
// Not safe for concurrent use.
type SampleWindow struct {
	buf   []Sample
	start int
	size  int
}

func NewSampleWindow(capacity int) *SampleWindow {
	if capacity <= 0 {
		capacity = DefaultWindow
	}
	return &SampleWindow{buf: make([]Sample, capacity)}
}

func (w *SampleWindow) Add(s Sample) {
	if w.size < len(w.buf) {
		w.buf[(w.start+w.size)%len(w.buf)] = s
		w.size++
		return
	}
	w.buf[w.start] = s
	w.start = (w.start + 1) % len(w.buf)
}

// Samples returns a copy, oldest first
func (w *SampleWindow) Samples() []Sample {
	out := make([]Sample, w.size)
	for i := range w.size {
		out[i] = w.buf[(w.start+i)%len(w.buf)]
	}
	return out
}

func (w *SampleWindow) Len() int { return w.size }
func (w *SampleWindow) Cap() int { return len(w.buf) }
