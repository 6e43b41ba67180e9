package mqtt

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/url"
	"strconv"
	"strings"
	"sync/atomic"
	"time"

	"github.com/dratasich/thingspeak-go-dashboard/devices"
	"github.com/dratasich/thingspeak-go-dashboard/telemetry"
	"github.com/eclipse/paho.golang/autopaho"
	"github.com/eclipse/paho.golang/paho"
	"github.com/rs/zerolog/log"
)

// MQTT configuration of the home broker the dashboard state is mirrored to
type Config struct {
	ServerURL string `env:"SERVER_URL"` // MQTT server URL, empty disables the bridge
	ClientID  string `env:"CLIENT_ID,default=thingspeak-dashboard"`
	Username  string `env:"USERNAME"` // MQTT Username to use when connecting to server
	Password  string `env:"PASSWORD"` // MQTT Password to use when connecting to server

	TopicPrefix string `env:"TOPIC_PREFIX,default=dashboard"` // root of all topics below

	KeepAlive uint16 `env:"KEEP_ALIVE,default=60"` // seconds between keepalive packets
}

// Bridge mirrors telemetry and device states to an MQTT broker and
// receives device commands from it
type Bridge struct {
	config      Config
	client      *autopaho.ConnectionManager
	isConnected atomic.Bool

	// device commands received from the broker
	CommandQueue chan *devices.CommandRequest
}

const (
	qos = byte(1) // qos to utilise when publishing

	telemetryTopic   = "/telemetry"
	deviceStateTopic = "/devices/%d/state"
	deviceSetTopic   = "/devices/+/set"

	connectTimeout = 10 * time.Second
	publishTimeout = 2 * time.Second
)

var (
	ErrNotConnected = errors.New("mqtt not connected")
	ErrBadTopic     = errors.New("unexpected topic")
	ErrBadPayload   = errors.New("unexpected payload")
)

func NewBridge(cfg Config) *Bridge {
	if cfg.TopicPrefix == "" {
		cfg.TopicPrefix = "dashboard"
	}
	return &Bridge{
		config:       cfg,
		CommandQueue: make(chan *devices.CommandRequest, 10),
	}
}

func (b *Bridge) topic(suffix string) string {
	return strings.TrimRight(b.config.TopicPrefix, "/") + suffix
}

// Connect starts the connection manager, which lives until ctx is done.
// It waits up to connectTimeout for the first connection; on timeout the
// manager keeps retrying in the background and the error is returned.
func (b *Bridge) Connect(ctx context.Context) error {
	parsedURL, err := url.Parse(b.config.ServerURL)
	if err != nil {
		return fmt.Errorf("failed to parse server URL (%s): %w", b.config.ServerURL, err)
	}

	var subscriptions = []paho.SubscribeOptions{
		// listen to device commands
		{
			Topic: b.topic(deviceSetTopic),
			QoS:   qos,
		},
	}

	cliCfg := autopaho.ClientConfig{
		ServerUrls:                    []*url.URL{parsedURL},
		KeepAlive:                     b.config.KeepAlive,
		CleanStartOnInitialConnection: true,
		OnConnectionUp: func(cm *autopaho.ConnectionManager, connAck *paho.Connack) {
			log.Info().Msg("MQTT connection up")
			b.isConnected.Store(true)
			if _, err := cm.Subscribe(context.Background(), &paho.Subscribe{
				Subscriptions: subscriptions,
			}); err != nil {
				log.Error().Msgf("Failed to subscribe: %s", err)
				return
			}
			log.Info().Msg("MQTT subscription made")
		},

		OnConnectionDown: b.connectionDown,

		OnConnectError: func(err error) {
			log.Error().Msgf("Error whilst attempting connection: %s", err)
		},

		ClientConfig: paho.ClientConfig{
			ClientID: b.config.ClientID,
			OnPublishReceived: []func(paho.PublishReceived) (bool, error){
				func(pr paho.PublishReceived) (bool, error) {
					b.handle(pr.Packet)
					return true, nil
				},
			},
			OnClientError: func(err error) {
				log.Error().Msgf("Client error: %s", err)
			},
			OnServerDisconnect: func(d *paho.Disconnect) {
				b.isConnected.Store(false)
				if d.Properties != nil {
					log.Error().Msgf("Server requested disconnect: %s", d.Properties.ReasonString)
				} else {
					log.Error().Msgf("Server requested disconnect with reason code: %d", d.ReasonCode)
				}
			},
		},
	}

	if b.config.Username != "" {
		cliCfg.ConnectUsername = b.config.Username
		cliCfg.ConnectPassword = []byte(b.config.Password)
	}

	log.Info().Msgf("Connect to MQTT %s ...", b.config.ServerURL)
	b.client, err = autopaho.NewConnection(ctx, cliCfg)
	if err != nil {
		return fmt.Errorf("failed to connect to MQTT: %w", err)
	}
	// Wait for the connection to come up
	awaitCtx, cancel := context.WithTimeout(ctx, connectTimeout)
	defer cancel()
	if err = b.client.AwaitConnection(awaitCtx); err != nil {
		return fmt.Errorf("failed to connect to MQTT: %w", err)
	}
	return nil
}

// connectionDown is called by the connection manager whenever the connection
// is lost, with or without a DISCONNECT from the server
func (b *Bridge) connectionDown() bool {
	log.Warn().Msg("MQTT connection down")
	b.isConnected.Store(false)
	return true // reconnect
}

func (b *Bridge) Disconnect(ctx context.Context) {
	if b.client != nil {
		err := b.client.Disconnect(ctx)
		if err != nil {
			log.Error().Msgf("Failed to disconnect: %s", err)
		}
	}
	b.isConnected.Store(false)
	log.Info().Msg("Disconnected from MQTT")
}

// handle device commands
//
// topic: {prefix}/devices/{id}/set, payload: 1/0, on/off, true/false or {"on": true}
func (b *Bridge) handle(msg *paho.Publish) {
	id, err := ParseSetTopic(b.config.TopicPrefix, msg.Topic)
	if err != nil {
		log.Error().Msgf("Ignoring message: %s", err)
		return
	}
	on, err := ParseSetPayload(msg.Payload)
	if err != nil {
		log.Error().Msgf("Message could not be parsed: %s. Payload: %s", err, msg.Payload)
		return
	}

	req := &devices.CommandRequest{DeviceID: id, On: on}
	log.Debug().Msgf("Pushing device command to queue: %+v", *req)
	select {
	case b.CommandQueue <- req:
	default:
		log.Warn().Msgf("Command queue full, dropping command for device %d", id)
	}
}

// Publish a message to the broker
//
// skipped while disconnected; internal function for error handling/logging
func (b *Bridge) publishMessage(msg *paho.Publish) error {
	if !b.isConnected.Load() {
		return ErrNotConnected
	}

	ctx, cancel := context.WithTimeout(context.Background(), publishTimeout)
	defer cancel()
	if _, err := b.client.Publish(ctx, msg); err != nil {
		return fmt.Errorf("failed to publish message: %w", err)
	}
	return nil
}

type telemetryMessage struct {
	telemetry.Snapshot
	TotalUsage float64           `json:"total_usage"`
	Sample     *telemetry.Sample `json:"sample,omitempty"`
}

// Observe publishes every telemetry update (retained)
func (b *Bridge) Observe(u telemetry.Update) {
	payload, err := json.Marshal(telemetryMessage{
		Snapshot:   u.State.Snapshot,
		TotalUsage: u.State.TotalUsage,
		Sample:     u.Sample,
	})
	if err != nil {
		// an empty retained payload would clear the topic
		log.Error().Msgf("Failed to encode telemetry: %s", err)
		return
	}

	err = b.publishMessage(&paho.Publish{
		QoS:     qos,
		Retain:  true,
		Topic:   b.topic(telemetryTopic),
		Payload: payload,
	})
	if err != nil {
		log.Debug().Msgf("Telemetry not mirrored: %s", err)
	}
}

// PublishDevice publishes the state of a device (retained)
func (b *Bridge) PublishDevice(d devices.Device) {
	payload, err := json.Marshal(d)
	if err != nil {
		log.Error().Msgf("Failed to encode state of device %d: %s", d.ID, err)
		return
	}

	err = b.publishMessage(&paho.Publish{
		QoS:     qos,
		Retain:  true,
		Topic:   b.topic(fmt.Sprintf(deviceStateTopic, d.ID)),
		Payload: payload,
	})
	if err != nil {
		log.Error().Msgf("Failed to publish state of device %d: %s", d.ID, err)
		return
	}
	log.Info().Msgf("Published device state: %s", payload)
}

// ParseSetTopic extracts the device id of a command topic
func ParseSetTopic(prefix, topic string) (int, error) {
	rest, found := strings.CutPrefix(topic, strings.TrimRight(prefix, "/")+"/devices/")
	if !found {
		return 0, fmt.Errorf("%w: %s", ErrBadTopic, topic)
	}
	idStr, found := strings.CutSuffix(rest, "/set")
	if !found {
		return 0, fmt.Errorf("%w: %s", ErrBadTopic, topic)
	}
	id, err := strconv.Atoi(idStr)
	if err != nil {
		return 0, fmt.Errorf("%w: device id %q", ErrBadTopic, idStr)
	}
	return id, nil
}

func ParseSetPayload(payload []byte) (bool, error) {
	s := strings.ToLower(strings.TrimSpace(string(payload)))
	switch s {
	case "1", "on", "true":
		return true, nil
	case "0", "off", "false":
		return false, nil
	}

	var body struct {
		On *bool `json:"on"`
	}
	if err := json.Unmarshal(payload, &body); err != nil || body.On == nil {
		return false, fmt.Errorf("%w: %q", ErrBadPayload, s)
	}
	return *body.On, nil
}
