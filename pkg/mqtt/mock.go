package mqtt

import (
	"context"
	"strings"
	"sync"
)

// Published records one call to MockClient.Publish
type Published struct {
	Topic    string
	QoS      byte
	Retained bool
	Payload  []byte
}

// MockClient is an in-memory Client for tests. Deliver routes a message to
// every matching subscription, honouring + and # wildcards.
type MockClient struct {
	mu        sync.Mutex
	connected bool
	handlers  map[string]MessageHandler
	published []Published

	ConnectErr error
	PublishErr error
}

// NewMockClient creates a disconnected mock client
func NewMockClient() *MockClient {
	return &MockClient{handlers: make(map[string]MessageHandler)}
}

func (m *MockClient) Connect(ctx context.Context) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.ConnectErr != nil {
		return m.ConnectErr
	}
	m.connected = true
	return nil
}

func (m *MockClient) Disconnect() {
	m.mu.Lock()
	m.connected = false
	m.mu.Unlock()
}

func (m *MockClient) Subscribe(topic string, qos byte, handler MessageHandler) error {
	m.mu.Lock()
	m.handlers[topic] = handler
	m.mu.Unlock()
	return nil
}

func (m *MockClient) Unsubscribe(topic string) error {
	m.mu.Lock()
	delete(m.handlers, topic)
	m.mu.Unlock()
	return nil
}

func (m *MockClient) Publish(topic string, qos byte, retained bool, payload []byte) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.PublishErr != nil {
		return m.PublishErr
	}
	m.published = append(m.published, Published{
		Topic:    topic,
		QoS:      qos,
		Retained: retained,
		Payload:  append([]byte(nil), payload...),
	})
	return nil
}

func (m *MockClient) IsConnected() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.connected
}

// SetConnected flips the reported connection state
func (m *MockClient) SetConnected(connected bool) {
	m.mu.Lock()
	m.connected = connected
	m.mu.Unlock()
}

// Deliver hands a message to the subscribed handlers and reports whether any matched
func (m *MockClient) Deliver(topic string, payload []byte, retained bool) bool {
	m.mu.Lock()
	var matched []MessageHandler
	for filter, h := range m.handlers {
		if TopicMatches(filter, topic) {
			matched = append(matched, h)
		}
	}
	m.mu.Unlock()

	msg := &mockMessage{topic: topic, payload: payload, retained: retained}
	for _, h := range matched {
		h(msg)
	}
	return len(matched) > 0
}

// Published returns a copy of everything published so far
func (m *MockClient) Published() []Published {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]Published(nil), m.published...)
}

// Subscriptions lists the active topic filters
func (m *MockClient) Subscriptions() []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	topics := make([]string, 0, len(m.handlers))
	for t := range m.handlers {
		topics = append(topics, t)
	}
	return topics
}

type mockMessage struct {
	topic    string
	payload  []byte
	retained bool
}

func (m *mockMessage) Topic() string   { return m.topic }
func (m *mockMessage) Payload() []byte { return m.payload }
func (m *mockMessage) Retained() bool  { return m.retained }
func (m *mockMessage) Ack()            {}

// TopicMatches reports whether topic matches an MQTT subscription filter
func TopicMatches(filter, topic string) bool {
	f := strings.Split(filter, "/")
	t := strings.Split(topic, "/")
	for i, part := range f {
		if part == "#" {
			return true
		}
		if i >= len(t) {
			return false
		}
		if part != "+" && part != t[i] {
			return false
		}
	}
	return len(f) == len(t)
}
