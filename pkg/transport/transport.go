// Package transport opens byte streams to Firmata devices by URL.
//
// Supported schemes:
//
//	serial:///dev/ttyACM0?baud=57600
//	tcp://host:port
//	ws://host:port/path, wss://...
//	mqtt://broker:1883/prefix/board-id
//	sim://?pins=20&analog=6
package transport

import (
	"context"
	"fmt"
	"io"
	"net"
	"net/url"
	"strconv"
	"time"

	"github.com/robotalks/firmata.go/pkg/transport/mqtt"
	"github.com/robotalks/firmata.go/pkg/transport/serial"
	"github.com/robotalks/firmata.go/pkg/transport/websocket"
)

// Transport is a byte stream to a device. Read may return (0, nil)
// when no data is available.
type Transport = io.ReadWriteCloser

// Default settings.
const (
	DefaultBaudRate    = 57600
	DefaultDialTimeout = 5 * time.Second
)

// Options for Open.
type Options struct {
	BaudRate    int
	DialTimeout time.Duration
	Origin      string
}

// Option configures Open.
type Option func(*Options)

// WithBaudRate overrides the default serial baud rate.
func WithBaudRate(baud int) Option {
	return func(o *Options) { o.BaudRate = baud }
}

// WithDialTimeout limits connection establishment.
func WithDialTimeout(d time.Duration) Option {
	return func(o *Options) { o.DialTimeout = d }
}

// WithOrigin sets the websocket origin.
func WithOrigin(origin string) Option {
	return func(o *Options) { o.Origin = origin }
}

// UnsupportedSchemeError is returned by Open for unknown URL schemes.
type UnsupportedSchemeError struct {
	Scheme string
}

func (e *UnsupportedSchemeError) Error() string {
	return fmt.Sprintf("unsupported transport scheme %q", e.Scheme)
}

// Open connects to the device at rawURL.
func Open(ctx context.Context, rawURL string, opts ...Option) (Transport, error) {
	options := Options{BaudRate: DefaultBaudRate, DialTimeout: DefaultDialTimeout}
	for _, opt := range opts {
		opt(&options)
	}
	u, err := url.Parse(rawURL)
	if err != nil {
		return nil, err
	}
	ctx, cancel := context.WithTimeout(ctx, options.DialTimeout)
	defer cancel()

	switch u.Scheme {
	case "serial", "":
		baud := options.BaudRate
		if val := u.Query().Get("baud"); val != "" {
			if baud, err = strconv.Atoi(val); err != nil || baud <= 0 {
				return nil, fmt.Errorf("invalid baud rate %q", val)
			}
		}
		name := u.Path
		if name == "" {
			name = u.Opaque
		}
		return serial.Open(name, baud)
	case "tcp":
		var dialer net.Dialer
		return dialer.DialContext(ctx, "tcp", u.Host)
	case "ws", "wss":
		origin := options.Origin
		if origin == "" {
			origin = "http://localhost/"
		}
		conn, err := websocket.Dial(ctx, rawURL, origin)
		if err != nil {
			return nil, err
		}
		return conn, nil
	case "mqtt", "mqtts":
		conn, err := mqtt.Dial(ctx, rawURL)
		if err != nil {
			return nil, err
		}
		return conn, nil
	case "sim":
		conn, err := openSim(u)
		if err != nil {
			return nil, err
		}
		return conn, nil
	}
	return nil, &UnsupportedSchemeError{Scheme: u.Scheme}
}
