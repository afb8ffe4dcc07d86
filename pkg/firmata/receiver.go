package firmata

import (
	"context"
	"fmt"

	"github.com/golang/glog"

	"github.com/robotalks/firmata.go/pkg/firmata/codec"
)

const readBufferSize = 1024

// Tracer observes raw bytes on the wire.
type Tracer interface {
	TraceRead(data []byte)
	TraceWrite(data []byte)
}

// MessageHandler is called by the receiver loop for every decoded
// message, after the state is updated. pins lists the pins the message
// touched. msg is nil when pins were changed by the client's own commands.
// It must not call the Client, which waits for the loop. This includes
// Close, which waits for the loop to exit; use go c.Close() instead.
type MessageHandler interface {
	HandleMessage(ctx context.Context, msg codec.Message, pins []int)
}

// HandleMessageFunc is func type of MessageHandler.
type HandleMessageFunc func(context.Context, codec.Message, []int)

// HandleMessage implements MessageHandler.
func (f HandleMessageFunc) HandleMessage(ctx context.Context, msg codec.Message, pins []int) {
	f(ctx, msg, pins)
}

type echo struct {
	cmd  codec.Command
	done chan struct{}
}

// readLoop pulls chunks from the transport until it fails.
func (c *Client) readLoop(chunkCh chan<- []byte, errCh chan<- error) {
	buf := make([]byte, readBufferSize)
	for {
		n, err := c.rw.Read(buf)
		if n > 0 {
			chunk := append([]byte(nil), buf[:n]...)
			select {
			case chunkCh <- chunk:
			case <-c.doneCh:
				return
			}
		}
		if err != nil {
			errCh <- err
			return
		}
	}
}

// receive is the receiver loop, the only writer of the state.
func (c *Client) receive(ctx context.Context) {
	chunkCh, errCh := make(chan []byte), make(chan error, 1)
	go c.readLoop(chunkCh, errCh)
	var dec codec.Decoder
	for {
		select {
		case chunk := <-chunkCh:
			c.handleChunk(ctx, &dec, chunk)
		case e := <-c.echoCh:
			pins := c.state.applyCommand(e.cmd)
			close(e.done)
			if h := c.handler; h != nil && len(pins) > 0 {
				h.HandleMessage(ctx, nil, pins)
			}
		case err := <-errCh:
			c.shutdown(err)
			return
		case <-c.closingCh:
			c.shutdown(nil)
			return
		}
	}
}

func (c *Client) handleChunk(ctx context.Context, dec *codec.Decoder, chunk []byte) {
	if t := c.tracer; t != nil {
		t.TraceRead(chunk)
	}
	msgs, err := dec.Feed(chunk)
	if err != nil {
		glog.Warningf("firmata: %v", err)
	}
	for _, msg := range msgs {
		if glog.V(2) {
			glog.Infof("firmata: recv %T %+v", msg, msg)
		}
		if _, ok := msg.(codec.Unknown); ok {
			continue
		}
		pins := c.state.apply(msg)
		c.pending.fulfill(msg)
		if h := c.handler; h != nil {
			h.HandleMessage(ctx, msg, pins)
		}
	}
}

// shutdown ends the loop: the transport is closed and pending requests
// fail with ErrClosed.
func (c *Client) shutdown(readErr error) {
	err := ErrClosed
	select {
	case <-c.closingCh:
	default:
		if readErr != nil {
			glog.Warningf("firmata: read failed: %v", readErr)
			err = fmt.Errorf("%w: %w", ErrClosed, &TransportError{Op: "read", Err: readErr})
		}
	}
	c.closeTransport()
	c.err = err
	c.pending.close(err)
	close(c.doneCh)
	c.cancel()
}
