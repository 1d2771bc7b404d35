// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad

// Package publish mirrors link snapshots to an MQTT broker and accepts
// board commands from a command topic.
package publish

import (
	"encoding/json"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/Thermoquad/boardlink/pkg/lineproto"
	"github.com/Thermoquad/boardlink/pkg/link"
	mqtt "github.com/eclipse/paho.mqtt.golang"
	"github.com/google/uuid"
	"github.com/rs/zerolog/log"
)

const (
	publishTimeout = 2 * time.Second
	pendingSize    = 16
)

// Issuer accepts commands for the board, e.g. *link.Worker
type Issuer interface {
	Issue(cmd lineproto.Command) error
}

// StatePayload is the JSON document published for every snapshot
type StatePayload struct {
	Time       time.Time `json:"time"`
	Link       string    `json:"link"`
	Leds       []bool    `json:"leds"`
	RGB        [3]uint8  `json:"rgb"`
	Segment    string    `json:"segment"`
	AdcRaw     int       `json:"adc_raw"`
	Adc        int       `json:"adc"`
	Progress   int       `json:"progress"`
	Mode       string    `json:"mode"`
	ModeDetail string    `json:"mode_detail,omitempty"`
	FlashInfo  string    `json:"flash_info,omitempty"`
	Status     string    `json:"status,omitempty"`
	LastLine   string    `json:"last_line,omitempty"`
}

// NewStatePayload flattens a snapshot for publishing
func NewStatePayload(s link.Snapshot, at time.Time) StatePayload {
	d := s.Device
	return StatePayload{
		Time:       at,
		Link:       s.Link.String(),
		Leds:       d.Leds[:],
		RGB:        [3]uint8{d.Color.R, d.Color.G, d.Color.B},
		Segment:    d.Segment,
		AdcRaw:     d.AdcRaw,
		Adc:        d.AdcDisplay,
		Progress:   d.Progress,
		Mode:       d.Mode.String(),
		ModeDetail: d.ModeDetail,
		FlashInfo:  d.FlashInfo,
		Status:     d.StatusText,
		LastLine:   s.LastLine,
	}
}

// MQTTPublisher publishes snapshots to an MQTT broker
type MQTTPublisher struct {
	client       mqtt.Client
	newClient    func(*mqtt.ClientOptions) mqtt.Client
	stopCh       chan struct{}
	pending      chan link.Snapshot
	done         chan struct{}
	unsubscribe  func()
	issuer       Issuer
	stopOnce     sync.Once
	started      bool
	broker       string
	topic        string
	commandTopic string
}

// NewMQTTPublisher creates a publisher for broker. An empty commandTopic
// disables remote commands.
func NewMQTTPublisher(broker, topic, commandTopic string) *MQTTPublisher {
	return &MQTTPublisher{
		broker:       broker,
		topic:        topic,
		commandTopic: commandTopic,
		newClient:    mqtt.NewClient,
		stopCh:       make(chan struct{}),
		pending:      make(chan link.Snapshot, pendingSize),
		done:         make(chan struct{}),
	}
}

// brokerURL adds the tcp:// scheme when the broker is given as host:port
func brokerURL(broker string) string {
	if strings.Contains(broker, "://") {
		return broker
	}
	return "tcp://" + broker
}

// Start connects to the broker, subscribes to store and, if configured,
// forwards command topic messages to issuer.
func (p *MQTTPublisher) Start(store *link.Store, issuer Issuer) error {
	opts := mqtt.NewClientOptions()
	opts.AddBroker(brokerURL(p.broker))
	opts.SetClientID("boardlink-" + uuid.New().String()[:8])
	opts.SetAutoReconnect(true)
	opts.SetConnectRetry(true)
	opts.SetConnectTimeout(10 * time.Second)

	opts.OnConnect = func(_ mqtt.Client) {
		log.Info().Str("broker", p.broker).Msg("mqtt publisher: connected")
	}
	opts.OnConnectionLost = func(_ mqtt.Client, err error) {
		log.Warn().Err(err).Msg("mqtt publisher: connection lost")
	}

	p.client = p.newClient(opts)

	token := p.client.Connect()
	if token.Wait() && token.Error() != nil {
		return fmt.Errorf("failed to connect to MQTT broker: %w", token.Error())
	}

	if p.commandTopic != "" && issuer != nil {
		p.issuer = issuer
		token := p.client.Subscribe(p.commandTopic, 0, p.handleCommand)
		if token.Wait() && token.Error() != nil {
			p.client.Disconnect(250)
			return fmt.Errorf("failed to subscribe to %s: %w", p.commandTopic, token.Error())
		}
		log.Info().Str("topic", p.commandTopic).Msg("mqtt publisher: accepting commands")
	}

	log.Info().Str("broker", p.broker).Str("topic", p.topic).Msg("mqtt publisher: started")

	p.started = true
	go p.publishSnapshots()
	p.unsubscribe = store.Subscribe(p.enqueue)
	return nil
}

// Stop unsubscribes from the store and disconnects from the broker
func (p *MQTTPublisher) Stop() {
	p.stopOnce.Do(func() {
		if p.unsubscribe != nil {
			p.unsubscribe()
		}
		close(p.stopCh)
		if p.started {
			<-p.done
		}
		if p.client != nil && p.client.IsConnected() {
			log.Debug().Msg("mqtt publisher: disconnecting")
			p.client.Disconnect(250)
		}
	})
}

// enqueue runs on the link worker goroutine and must not block it
func (p *MQTTPublisher) enqueue(s link.Snapshot) {
	select {
	case p.pending <- s:
	default:
		log.Debug().Msg("mqtt publisher: backlog full, dropping snapshot")
	}
}

func (p *MQTTPublisher) publishSnapshots() {
	defer close(p.done)

	for {
		select {
		case <-p.stopCh:
			return
		case snap := <-p.pending:
			p.publish(snap)
		}
	}
}

func (p *MQTTPublisher) publish(snap link.Snapshot) {
	payload, err := json.Marshal(NewStatePayload(snap, time.Now()))
	if err != nil {
		log.Error().Err(err).Msg("mqtt publisher: failed to marshal snapshot")
		return
	}

	token := p.client.Publish(p.topic, 0, true, payload)
	if !token.WaitTimeout(publishTimeout) {
		log.Warn().Msg("mqtt publisher: publish timed out")
		return
	}
	if token.Error() != nil {
		log.Error().Err(token.Error()).Msg("mqtt publisher: failed to publish snapshot")
	}
}

// handleCommand parses a command topic payload (e.g. "BTN1", "RGB:0,0,255")
// and issues it
func (p *MQTTPublisher) handleCommand(_ mqtt.Client, msg mqtt.Message) {
	text := string(msg.Payload())

	cmd, err := lineproto.ParseCommand(text)
	if err != nil {
		log.Warn().Err(err).Str("payload", text).Msg("mqtt publisher: rejected command")
		return
	}
	if err := p.issuer.Issue(cmd); err != nil {
		log.Warn().Err(err).Str("payload", text).Msg("mqtt publisher: failed to queue command")
		return
	}
	log.Debug().Str("payload", text).Msg("mqtt publisher: command queued")
}
