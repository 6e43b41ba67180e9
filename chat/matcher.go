// Package chat maps fixed phrases to device commands and canned replies.
package chat

import (
	"fmt"
	"strings"
	"unicode"

	"github.com/dratasich/thingspeak-go-dashboard/devices"
)

const fallback = "Sorry, I can only switch the light and the washing machine."

// Reply to a chat message. Text is what the assistant says, Command is
// set when the message asked for a device to be switched.
type Reply struct {
	Text    string                  `json:"text"`
	Command *devices.CommandRequest `json:"command,omitempty"`
}

type rule struct {
	phrases []string
	command *devices.CommandRequest
	text    string
	status  bool
}

func command(id int, on bool) *devices.CommandRequest {
	return &devices.CommandRequest{DeviceID: id, On: on}
}

// first match wins, the more specific phrases go first
var rules = []rule{
	{
		phrases: []string{"turn on the light", "switch on the light", "turn the light on", "lights on", "light on"},
		command: command(devices.Light, true),
		text:    "Turning on the light.",
	},
	{
		phrases: []string{"turn off the light", "switch off the light", "turn the light off", "lights off", "light off"},
		command: command(devices.Light, false),
		text:    "Turning off the light.",
	},
	{
		phrases: []string{"start the washing machine", "turn on the washing machine", "washing machine on"},
		command: command(devices.WashingMachine, true),
		text:    "Starting the washing machine.",
	},
	{
		phrases: []string{"stop the washing machine", "turn off the washing machine", "washing machine off"},
		command: command(devices.WashingMachine, false),
		text:    "Stopping the washing machine.",
	},
	{
		phrases: []string{"balance", "how much power", "status", "usage"},
		status:  true,
	},
	{
		phrases: []string{"hello", "hi", "hey"},
		text:    "Hello! Ask me to switch the light or the washing machine.",
	},
}

// Status describes the current telemetry for status questions
type Status interface {
	StatusText() string
}

type Matcher struct {
	status Status
}

// NewMatcher creates a matcher; status may be nil
func NewMatcher(status Status) *Matcher {
	return &Matcher{status: status}
}

func (m *Matcher) Match(message string) Reply {
	text := normalize(message)
	padded := " " + text + " "
	for _, r := range rules {
		for _, p := range r.phrases {
			if !strings.Contains(padded, " "+p+" ") {
				continue
			}
			if r.status {
				return Reply{Text: m.statusText()}
			}
			return Reply{Text: r.text, Command: r.command}
		}
	}
	return Reply{Text: fallback}
}

func (m *Matcher) statusText() string {
	if m.status == nil {
		return "I have no telemetry yet."
	}
	return m.status.StatusText()
}

// normalize lowercases and reduces the message to words separated by
// single spaces
func normalize(s string) string {
	fields := strings.FieldsFunc(strings.ToLower(s), func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsDigit(r)
	})
	return strings.Join(fields, " ")
}

// StatusFunc adapts a function to Status
type StatusFunc func() string

func (f StatusFunc) StatusText() string { return f() }

// BalanceStatus formats remaining balance and total usage
func BalanceStatus(balance, totalUsage float64) string {
	return fmt.Sprintf("Your remaining balance is %.0f%% and you used %.2f kWh so far.", balance, totalUsage)
}
