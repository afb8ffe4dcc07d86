package transport

import (
	"context"
	"fmt"
	"net"
	"net/url"
	"strconv"
	"sync"

	"github.com/golang/glog"

	"github.com/robotalks/firmata.go/pkg/sim"
)

// Simulated default layout, an Arduino Uno.
const (
	DefaultSimPins   = 20
	DefaultSimAnalog = 6
)

// SimConn is a Transport connected to an in-process simulated board.
type SimConn struct {
	net.Conn
	Board *sim.Board

	cancel    context.CancelFunc
	done      chan struct{}
	closeOnce sync.Once
	closeErr  error
}

// NewSim serves board over an in-memory pipe.
func NewSim(board *sim.Board) *SimConn {
	host, device := net.Pipe()
	ctx, cancel := context.WithCancel(context.Background())
	conn := &SimConn{Conn: host, Board: board, cancel: cancel, done: make(chan struct{})}
	go func() {
		defer close(conn.done)
		if err := board.Serve(ctx, device); err != nil {
			glog.Warningf("sim: %v", err)
		}
	}()
	return conn
}

// Close stops the board.
func (c *SimConn) Close() error {
	c.closeOnce.Do(func() {
		c.closeErr = c.Conn.Close()
		c.cancel()
		<-c.done
	})
	return c.closeErr
}

func openSim(u *url.URL) (*SimConn, error) {
	query := u.Query()
	pins, err := queryInt(query, "pins", DefaultSimPins)
	if err != nil {
		return nil, err
	}
	analog, err := queryInt(query, "analog", DefaultSimAnalog)
	if err != nil {
		return nil, err
	}
	if pins <= 0 || pins > 128 || analog < 0 || analog > pins || analog > 16 {
		return nil, fmt.Errorf("invalid simulated layout pins=%d analog=%d", pins, analog)
	}
	board := sim.NewBoard(pins, analog)
	board.AutoReport = query.Get("auto-report") != "false"
	if name := query.Get("name"); name != "" {
		board.Name = name
	}
	return NewSim(board), nil
}

func queryInt(query url.Values, key string, def int) (int, error) {
	val := query.Get(key)
	if val == "" {
		return def, nil
	}
	n, err := strconv.Atoi(val)
	if err != nil {
		return 0, fmt.Errorf("invalid %s %q", key, val)
	}
	return n, nil
}
