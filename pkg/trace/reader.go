package trace

import (
	"errors"
	"io"

	"github.com/fxamacker/cbor/v2"

	"github.com/robotalks/firmata.go/pkg/firmata/codec"
)

// Reader reads Events from a trace stream.
type Reader struct {
	decoder *cbor.Decoder
}

// NewReader creates a Reader.
func NewReader(r io.Reader) *Reader {
	return &Reader{decoder: decMode.NewDecoder(r)}
}

// Next returns the next Event, io.EOF at the end of the stream.
func (r *Reader) Next() (Event, error) {
	var ev Event
	if err := r.decoder.Decode(&ev); err != nil {
		return Event{}, err
	}
	return ev, nil
}

// ReadAll reads all remaining Events.
func (r *Reader) ReadAll() ([]Event, error) {
	var events []Event
	for {
		ev, err := r.Next()
		if errors.Is(err, io.EOF) {
			return events, nil
		}
		if err != nil {
			return events, err
		}
		events = append(events, ev)
	}
}

// Frame is an Event with the frames it completed.
type Frame struct {
	Event
	Messages []codec.Message
	Commands []codec.Command
	Err      error
}

// Replay decodes the Events of a trace. Chunks are reassembled per session
// and direction, so frames split across reads are decoded once complete.
func Replay(r io.Reader, fn func(Frame) error) error {
	type decoders struct {
		in  codec.Decoder
		out codec.CommandDecoder
	}
	sessions := make(map[string]*decoders)
	reader := NewReader(r)
	for {
		ev, err := reader.Next()
		if errors.Is(err, io.EOF) {
			return nil
		}
		if err != nil {
			return err
		}
		d := sessions[ev.Session]
		if d == nil {
			d = &decoders{}
			sessions[ev.Session] = d
		}
		frame := Frame{Event: ev}
		if ev.Direction == DirectionOut {
			frame.Commands, frame.Err = d.out.Feed(ev.Data)
		} else {
			frame.Messages, frame.Err = d.in.Feed(ev.Data)
		}
		if err = fn(frame); err != nil {
			return err
		}
	}
}
