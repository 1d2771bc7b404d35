// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad

package publish

import (
	"sync"
	"time"

	"github.com/Thermoquad/boardlink/pkg/lineproto"
	mqtt "github.com/eclipse/paho.mqtt.golang"
)

// mockMQTTClient implements mqtt.Client for testing
type mockMQTTClient struct {
	connectError   error
	subscribeError error
	publishedMsgs  []publishedMessage
	handlers       map[string]mqtt.MessageHandler
	brokers        []string
	disconnectCall int
	connected      bool
	mu             sync.Mutex
}

type publishedMessage struct {
	topic    string
	payload  []byte
	qos      byte
	retained bool
}

func newMockMQTTClient() *mockMQTTClient {
	return &mockMQTTClient{
		handlers: make(map[string]mqtt.MessageHandler),
	}
}

// factory returns a newClient replacement capturing the broker list
func (m *mockMQTTClient) factory() func(*mqtt.ClientOptions) mqtt.Client {
	return func(opts *mqtt.ClientOptions) mqtt.Client {
		m.mu.Lock()
		defer m.mu.Unlock()
		for _, u := range opts.Servers {
			m.brokers = append(m.brokers, u.String())
		}
		return m
	}
}

func (m *mockMQTTClient) published() []publishedMessage {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]publishedMessage, len(m.publishedMsgs))
	copy(out, m.publishedMsgs)
	return out
}

func (m *mockMQTTClient) handler(topic string) mqtt.MessageHandler {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.handlers[topic]
}

func (m *mockMQTTClient) IsConnected() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.connected
}

func (m *mockMQTTClient) IsConnectionOpen() bool {
	return m.IsConnected()
}

func (m *mockMQTTClient) Connect() mqtt.Token {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.connectError != nil {
		return &mockToken{err: m.connectError}
	}
	m.connected = true
	return &mockToken{complete: true}
}

func (m *mockMQTTClient) Disconnect(_ uint) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.connected = false
	m.disconnectCall++
}

func (m *mockMQTTClient) Publish(topic string, qos byte, retained bool, payload any) mqtt.Token {
	m.mu.Lock()
	defer m.mu.Unlock()

	data, _ := payload.([]byte)
	m.publishedMsgs = append(m.publishedMsgs, publishedMessage{
		topic:    topic,
		qos:      qos,
		retained: retained,
		payload:  data,
	})
	return &mockToken{complete: true}
}

func (m *mockMQTTClient) Subscribe(topic string, _ byte, handler mqtt.MessageHandler) mqtt.Token {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.subscribeError != nil {
		return &mockToken{err: m.subscribeError}
	}
	m.handlers[topic] = handler
	return &mockToken{complete: true}
}

func (*mockMQTTClient) SubscribeMultiple(_ map[string]byte, _ mqtt.MessageHandler) mqtt.Token {
	return &mockToken{complete: true}
}

func (*mockMQTTClient) Unsubscribe(_ ...string) mqtt.Token {
	return &mockToken{complete: true}
}

func (*mockMQTTClient) AddRoute(_ string, _ mqtt.MessageHandler) {}

func (*mockMQTTClient) OptionsReader() mqtt.ClientOptionsReader {
	return mqtt.ClientOptionsReader{}
}

// mockToken implements mqtt.Token for testing
type mockToken struct {
	err      error
	complete bool
}

func (*mockToken) Wait() bool {
	return true
}

func (t *mockToken) WaitTimeout(_ time.Duration) bool {
	return t.complete
}

func (*mockToken) Done() <-chan struct{} {
	ch := make(chan struct{})
	close(ch)
	return ch
}

func (t *mockToken) Error() error {
	return t.err
}

// mockMessage implements mqtt.Message for testing
type mockMessage struct {
	payload []byte
}

func (*mockMessage) Duplicate() bool   { return false }
func (*mockMessage) Qos() byte         { return 0 }
func (*mockMessage) Retained() bool    { return false }
func (*mockMessage) Topic() string     { return "boardlink/command" }
func (*mockMessage) MessageID() uint16 { return 0 }
func (m *mockMessage) Payload() []byte { return m.payload }
func (*mockMessage) Ack()              {}

// recordingIssuer collects issued commands
type recordingIssuer struct {
	mu     sync.Mutex
	issued []lineproto.Command
	err    error
}

func (r *recordingIssuer) Issue(cmd lineproto.Command) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.err != nil {
		return r.err
	}
	r.issued = append(r.issued, cmd)
	return nil
}

func (r *recordingIssuer) commands() []lineproto.Command {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]lineproto.Command, len(r.issued))
	copy(out, r.issued)
	return out
}
