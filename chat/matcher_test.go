package chat

import (
	"testing"

	"github.com/dratasich/thingspeak-go-dashboard/devices"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMatchDeviceCommands(t *testing.T) {
	cases := map[string]devices.CommandRequest{
		"Turn on the light":                   {DeviceID: devices.Light, On: true},
		"please, turn OFF the light!":         {DeviceID: devices.Light, On: false},
		"lights on":                           {DeviceID: devices.Light, On: true},
		"Could you start the washing machine": {DeviceID: devices.WashingMachine, On: true},
		"washing machine off.":                {DeviceID: devices.WashingMachine, On: false},
	}
	m := NewMatcher(nil)
	for message, want := range cases {
		t.Run(message, func(t *testing.T) {
			reply := m.Match(message)

			require.NotNil(t, reply.Command)
			assert.Equal(t, want, *reply.Command)
			assert.NotEmpty(t, reply.Text)
		})
	}
}

func TestMatchNoCommand(t *testing.T) {
	m := NewMatcher(nil)

	greeting := m.Match("Hi there")
	assert.Nil(t, greeting.Command)
	assert.Contains(t, greeting.Text, "Hello")

	unknown := m.Match("order a pizza")
	assert.Nil(t, unknown.Command)
	assert.Equal(t, fallback, unknown.Text)

	// words are matched whole
	assert.Equal(t, fallback, m.Match("lighthouse onward").Text)
}

func TestMatchStatus(t *testing.T) {
	m := NewMatcher(StatusFunc(func() string { return BalanceStatus(42, 1.5) }))

	reply := m.Match("What is my balance?")

	assert.Nil(t, reply.Command)
	assert.Equal(t, "Your remaining balance is 42% and you used 1.50 kWh so far.", reply.Text)
}

func TestMatchStatusWithoutTelemetry(t *testing.T) {
	reply := NewMatcher(nil).Match("status")

	assert.Equal(t, "I have no telemetry yet.", reply.Text)
}
