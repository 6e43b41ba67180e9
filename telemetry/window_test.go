package telemetry

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestSampleWindowKeepsMostRecent(t *testing.T) {
	// arrange
	w := NewSampleWindow(50)
	t0 := time.Date(2024, 5, 1, 10, 0, 0, 0, time.UTC)

	// act
	for i := range 120 {
		w.Add(Sample{Timestamp: t0.Add(time.Duration(i) * time.Second), Usage: float64(i)})
	}

	// assert
	samples := w.Samples()
	assert.Equal(t, 50, w.Len())
	assert.Len(t, samples, 50)
	for i, s := range samples {
		assert.Equal(t, float64(70+i), s.Usage, "sample %d out of order", i)
	}
}

func TestSampleWindowPartial(t *testing.T) {
	w := NewSampleWindow(3)
	w.Add(Sample{Usage: 0.1})
	w.Add(Sample{Usage: 0.2})

	assert.Equal(t, []Sample{{Usage: 0.1}, {Usage: 0.2}}, w.Samples())
	assert.Equal(t, 3, w.Cap())
}

func TestSampleWindowDefaultCapacity(t *testing.T) {
	assert.Equal(t, DefaultWindow, NewSampleWindow(0).Cap())
}

func TestSampleWindowSamplesIsCopy(t *testing.T) {
	w := NewSampleWindow(2)
	w.Add(Sample{Usage: 0.1})

	samples := w.Samples()
	samples[0].Usage = 0.9

	assert.Equal(t, 0.1, w.Samples()[0].Usage)
}
