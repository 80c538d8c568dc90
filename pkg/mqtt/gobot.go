package mqtt

import (
	"fmt"

	gobotmqtt "gobot.io/x/gobot/v2/platforms/mqtt"
)

// GobotTransport sends messages through a gobot MQTT adaptor.
type GobotTransport struct {
	broker  string
	adaptor *gobotmqtt.Adaptor
}

// NewGobotTransport creates an adaptor for broker (e.g. "tcp://localhost:1883").
// Call Connect before publishing.
func NewGobotTransport(broker, clientID string) *GobotTransport {
	adaptor := gobotmqtt.NewAdaptor(broker, clientID)
	adaptor.SetAutoReconnect(true)
	return &GobotTransport{broker: broker, adaptor: adaptor}
}

// Connect opens the broker connection.
func (g *GobotTransport) Connect() error {
	if err := g.adaptor.Connect(); err != nil {
		return fmt.Errorf("connecting to %s: %w", g.broker, err)
	}
	return nil
}

// Close disconnects from the broker.
func (g *GobotTransport) Close() error {
	return g.adaptor.Finalize()
}

// Publish sends payload to topic.
func (g *GobotTransport) Publish(topic string, payload []byte) bool {
	return g.adaptor.Publish(topic, payload)
}

// Subscribe registers handler for topic.
func (g *GobotTransport) Subscribe(topic string, handler func(topic string, payload []byte)) error {
	ok := g.adaptor.On(topic, func(msg gobotmqtt.Message) {
		handler(msg.Topic(), msg.Payload())
	})
	if !ok {
		return fmt.Errorf("subscribing to %s failed", topic)
	}
	return nil
}
