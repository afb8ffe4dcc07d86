// Package websocket carries the Firmata byte stream in binary websocket
// messages.
package websocket

import (
	"context"
	"io"
	"net/http"
	"sync"

	"golang.org/x/net/websocket"
)

// Conn adapts a websocket connection to a byte stream. Each Write is
// sent as one binary message, reads drain received messages in order.
type Conn struct {
	ws      *websocket.Conn
	lock    sync.Mutex
	pending []byte
}

// New wraps a websocket connection.
func New(ws *websocket.Conn) *Conn {
	ws.PayloadType = websocket.BinaryFrame
	return &Conn{ws: ws}
}

// Dial connects to a websocket endpoint.
func Dial(ctx context.Context, rawURL, origin string) (*Conn, error) {
	config, err := websocket.NewConfig(rawURL, origin)
	if err != nil {
		return nil, err
	}
	ws, err := config.DialContext(ctx)
	if err != nil {
		return nil, err
	}
	return New(ws), nil
}

// Read implements io.Reader.
func (c *Conn) Read(p []byte) (int, error) {
	c.lock.Lock()
	defer c.lock.Unlock()
	for len(c.pending) == 0 {
		var msg []byte
		if err := websocket.Message.Receive(c.ws, &msg); err != nil {
			return 0, err
		}
		c.pending = msg
	}
	n := copy(p, c.pending)
	c.pending = c.pending[n:]
	return n, nil
}

// Write implements io.Writer.
func (c *Conn) Write(p []byte) (int, error) {
	if err := websocket.Message.Send(c.ws, p); err != nil {
		return 0, err
	}
	return len(p), nil
}

// Close implements io.Closer.
func (c *Conn) Close() error {
	return c.ws.Close()
}

// Handler serves each websocket connection with fn, for exposing a
// device stream over HTTP.
func Handler(fn func(io.ReadWriteCloser)) http.Handler {
	return websocket.Handler(func(ws *websocket.Conn) {
		fn(New(ws))
	})
}
