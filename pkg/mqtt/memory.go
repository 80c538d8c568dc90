package mqtt

import (
	"strings"
	"sync"
)

// Message is a published payload recorded by MemoryTransport.
type Message struct {
	Topic   string
	Payload []byte
}

// MemoryTransport delivers messages in process. Subscribers are called
// synchronously from Publish and Deliver.
type MemoryTransport struct {
	mu        sync.Mutex
	published []Message
	handlers  map[string][]func(topic string, payload []byte)
	offline   bool
}

// NewMemoryTransport creates an empty in-process transport.
func NewMemoryTransport() *MemoryTransport {
	return &MemoryTransport{
		handlers: make(map[string][]func(string, []byte)),
	}
}

// Publish records the message and passes it to matching subscribers.
func (m *MemoryTransport) Publish(topic string, payload []byte) bool {
	m.mu.Lock()
	if m.offline {
		m.mu.Unlock()
		return false
	}
	m.published = append(m.published, Message{Topic: topic, Payload: append([]byte(nil), payload...)})
	handlers := append([]func(string, []byte){}, m.handlers[topic]...)
	m.mu.Unlock()

	for _, h := range handlers {
		h(topic, payload)
	}
	return true
}

// Subscribe registers handler for an exact topic.
func (m *MemoryTransport) Subscribe(topic string, handler func(topic string, payload []byte)) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.handlers[topic] = append(m.handlers[topic], handler)
	return nil
}

// Deliver simulates an incoming message from the broker without recording it.
func (m *MemoryTransport) Deliver(topic string, payload []byte) {
	m.mu.Lock()
	handlers := append([]func(string, []byte){}, m.handlers[topic]...)
	m.mu.Unlock()

	for _, h := range handlers {
		h(topic, payload)
	}
}

// SetOffline makes Publish fail while offline is true.
func (m *MemoryTransport) SetOffline(offline bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.offline = offline
}

// Published returns all recorded messages whose topic has the given suffix.
// An empty suffix returns everything.
func (m *MemoryTransport) Published(suffix string) []Message {
	m.mu.Lock()
	defer m.mu.Unlock()

	var out []Message
	for _, msg := range m.published {
		if strings.HasSuffix(msg.Topic, suffix) {
			out = append(out, msg)
		}
	}
	return out
}

// Reset drops recorded messages.
func (m *MemoryTransport) Reset() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.published = nil
}
