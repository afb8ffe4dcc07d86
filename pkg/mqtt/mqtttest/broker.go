// Package mqtttest provides an in-memory broker for tests.
package mqtttest

import (
	"fmt"
	"strings"
	"sync"

	paho "github.com/eclipse/paho.mqtt.golang"
)

// Published is a message seen by the broker.
type Published struct {
	Topic    string
	Payload  []byte
	QoS      byte
	Retained bool
}

// Broker routes publishes to subscribers synchronously.
type Broker struct {
	lock      sync.Mutex
	subs      map[string]map[*client]paho.MessageHandler
	retained  map[string][]byte
	published []Published
}

// NewBroker creates a Broker.
func NewBroker() *Broker {
	return &Broker{
		subs:     make(map[string]map[*client]paho.MessageHandler),
		retained: make(map[string][]byte),
	}
}

// Client returns a paho.Client connected to the broker.
// Only the methods used by a Queue are implemented.
func (b *Broker) Client() paho.Client {
	return &client{broker: b}
}

// Published returns all messages published so far.
func (b *Broker) Published() []Published {
	b.lock.Lock()
	defer b.lock.Unlock()
	return append([]Published(nil), b.published...)
}

// Retained returns the retained payload of topic.
func (b *Broker) Retained(topic string) ([]byte, bool) {
	b.lock.Lock()
	defer b.lock.Unlock()
	payload, ok := b.retained[topic]
	return payload, ok
}

// Subscribed tells whether any client subscribed filter.
func (b *Broker) Subscribed(filter string) bool {
	b.lock.Lock()
	defer b.lock.Unlock()
	return len(b.subs[filter]) > 0
}

// Publish delivers payload to matching subscribers.
func (b *Broker) Publish(topic string, qos byte, retained bool, payload []byte) {
	b.lock.Lock()
	b.published = append(b.published, Published{Topic: topic, Payload: payload, QoS: qos, Retained: retained})
	if retained {
		if len(payload) == 0 {
			delete(b.retained, topic)
		} else {
			b.retained[topic] = payload
		}
	}
	var handlers []paho.MessageHandler
	for filter, hs := range b.subs {
		if !matchFilter(topic, filter) {
			continue
		}
		for _, h := range hs {
			handlers = append(handlers, h)
		}
	}
	b.lock.Unlock()
	msg := &message{topic: topic, payload: payload, qos: qos, retained: retained}
	for _, h := range handlers {
		h(nil, msg)
	}
}

func (b *Broker) subscribe(c *client, filter string, h paho.MessageHandler) {
	b.lock.Lock()
	if b.subs[filter] == nil {
		b.subs[filter] = make(map[*client]paho.MessageHandler)
	}
	b.subs[filter][c] = h
	var retained []*message
	for topic, payload := range b.retained {
		if matchFilter(topic, filter) {
			retained = append(retained, &message{topic: topic, payload: payload, retained: true})
		}
	}
	b.lock.Unlock()
	for _, msg := range retained {
		h(nil, msg)
	}
}

func (b *Broker) unsubscribe(c *client, filter string) {
	b.lock.Lock()
	if hs := b.subs[filter]; hs != nil {
		delete(hs, c)
		if len(hs) == 0 {
			delete(b.subs, filter)
		}
	}
	b.lock.Unlock()
}

func matchFilter(topic, filter string) bool {
	levels, filters := strings.Split(topic, "/"), strings.Split(filter, "/")
	for i, f := range filters {
		if f == "#" {
			return true
		}
		if i >= len(levels) || (f != "+" && f != levels[i]) {
			return false
		}
	}
	return len(levels) == len(filters)
}

type client struct {
	paho.Client
	broker *Broker

	lock      sync.Mutex
	connected bool
}

func (c *client) Connect() paho.Token {
	c.lock.Lock()
	c.connected = true
	c.lock.Unlock()
	return &paho.DummyToken{}
}

func (c *client) Disconnect(uint) {
	c.lock.Lock()
	c.connected = false
	c.lock.Unlock()
}

func (c *client) IsConnected() bool {
	c.lock.Lock()
	defer c.lock.Unlock()
	return c.connected
}

func (c *client) IsConnectionOpen() bool {
	return c.IsConnected()
}

func (c *client) Publish(topic string, qos byte, retained bool, payload interface{}) paho.Token {
	var data []byte
	switch p := payload.(type) {
	case []byte:
		data = append([]byte(nil), p...)
	case string:
		data = []byte(p)
	default:
		panic(fmt.Sprintf("unsupported payload type %T", payload))
	}
	c.broker.Publish(topic, qos, retained, data)
	return &paho.DummyToken{}
}

func (c *client) Subscribe(topic string, _ byte, callback paho.MessageHandler) paho.Token {
	c.broker.subscribe(c, topic, callback)
	return &paho.DummyToken{}
}

func (c *client) SubscribeMultiple(filters map[string]byte, callback paho.MessageHandler) paho.Token {
	for topic := range filters {
		c.broker.subscribe(c, topic, callback)
	}
	return &paho.DummyToken{}
}

func (c *client) Unsubscribe(topics ...string) paho.Token {
	for _, topic := range topics {
		c.broker.unsubscribe(c, topic)
	}
	return &paho.DummyToken{}
}

type message struct {
	topic    string
	payload  []byte
	qos      byte
	retained bool
}

func (m *message) Duplicate() bool   { return false }
func (m *message) Qos() byte         { return m.qos }
func (m *message) Retained() bool    { return m.retained }
func (m *message) Topic() string     { return m.topic }
func (m *message) MessageID() uint16 { return 0 }
func (m *message) Payload() []byte   { return m.payload }
func (m *message) Ack()              {}
