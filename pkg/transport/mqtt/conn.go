// Package mqtt tunnels the Firmata byte stream through an MQTT broker.
//
// A device bridged to MQTT publishes its output on <prefix><id>/tx and
// reads its input from <prefix><id>/rx.
package mqtt

import (
	"context"
	"fmt"
	"io"
	"net/url"
	"path"
	"strings"
	"sync"

	"github.com/robotalks/firmata.go/pkg/mqtt"
)

// Topic suffixes, named from the device's point of view.
const (
	TopicTx = "tx"
	TopicRx = "rx"
)

// Conn is a byte stream over a pair of topics.
type Conn struct {
	Queue    *mqtt.Queue
	SubTopic string
	PubTopic string

	sub       *mqtt.Subscription
	packetCh  chan []byte
	closeCh   chan struct{}
	closeOnce sync.Once
	ownsQueue bool

	readLock sync.Mutex
	pending  []byte
}

func newConn(q *mqtt.Queue, sub, pub string) *Conn {
	c := &Conn{
		Queue:    q,
		SubTopic: sub,
		PubTopic: pub,
		packetCh: make(chan []byte, 64),
		closeCh:  make(chan struct{}),
	}
	c.sub = q.Sub(sub, c.handleMsg)
	return c
}

// NewHost creates the host end for the device with id.
func NewHost(q *mqtt.Queue, id string) *Conn {
	return newConn(q, id+"/"+TopicTx, id+"/"+TopicRx)
}

// NewDevice creates the device end with id, used to expose a local device.
func NewDevice(q *mqtt.Queue, id string) *Conn {
	return newConn(q, id+"/"+TopicRx, id+"/"+TopicTx)
}

// SplitURL separates the board id, the last path element, from a
// broker URL.
func SplitURL(rawURL string) (brokerURL, id string, err error) {
	u, err := url.Parse(rawURL)
	if err != nil {
		return "", "", err
	}
	trimmed := strings.TrimSuffix(u.Path, "/")
	id = path.Base(trimmed)
	if trimmed == "" || id == "/" || id == "." {
		return "", "", fmt.Errorf("missing board id in %q", rawURL)
	}
	u.Path = strings.TrimSuffix(trimmed, id)
	if u.Scheme == "mqtts" {
		u.Scheme = "ssl"
	}
	return u.String(), id, nil
}

// Dial connects to the broker and opens the host end of the device
// addressed by the URL path.
func Dial(ctx context.Context, rawURL string) (*Conn, error) {
	brokerURL, id, err := SplitURL(rawURL)
	if err != nil {
		return nil, err
	}
	q, err := mqtt.NewQueueFromURL(brokerURL)
	if err != nil {
		return nil, err
	}
	if err := q.Connect(ctx); err != nil {
		q.Close()
		return nil, err
	}
	c := NewHost(q, id)
	if err := mqtt.Wait(ctx, c.sub.Token); err != nil {
		c.sub.Close()
		q.Close()
		return nil, err
	}
	c.ownsQueue = true
	return c, nil
}

func (c *Conn) handleMsg(_ string, payload []byte) {
	if len(payload) == 0 {
		return
	}
	select {
	case c.packetCh <- append([]byte(nil), payload...):
	case <-c.closeCh:
	}
}

// Read implements io.Reader.
func (c *Conn) Read(p []byte) (int, error) {
	c.readLock.Lock()
	defer c.readLock.Unlock()
	if len(c.pending) == 0 {
		select {
		case c.pending = <-c.packetCh:
		case <-c.closeCh:
			return 0, io.EOF
		}
	}
	n := copy(p, c.pending)
	c.pending = c.pending[n:]
	return n, nil
}

// Write publishes p as one message.
func (c *Conn) Write(p []byte) (int, error) {
	select {
	case <-c.closeCh:
		return 0, io.ErrClosedPipe
	default:
	}
	token := c.Queue.Pub(c.PubTopic, p)
	token.Wait()
	if err := token.Error(); err != nil {
		return 0, err
	}
	return len(p), nil
}

// Close unsubscribes, and disconnects when the queue was created by Dial.
func (c *Conn) Close() (err error) {
	c.closeOnce.Do(func() {
		close(c.closeCh)
		err = c.sub.Close()
		if c.ownsQueue {
			c.Queue.Close()
		}
	})
	return
}
