// Package bridge mirrors a Firmata board onto MQTT.
//
// Topics, relative to the queue prefix and the board id:
//
//	meta               retained JSON description, cleared when the bridge leaves
//	pin/<n>            pin value
//	i2c/<addr>         last I2C reply data
//	string             last string from the device
//	cmd/pin/<n>/<op>   op is mode, digital, analog or servo
//
// Payloads are protobuf google.protobuf.Value messages.
package bridge

import (
	"context"
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
	"sync"

	paho "github.com/eclipse/paho.mqtt.golang"
	"github.com/golang/glog"

	"github.com/robotalks/firmata.go/pkg/firmata"
	"github.com/robotalks/firmata.go/pkg/firmata/codec"
	"github.com/robotalks/firmata.go/pkg/mqtt"
)

// Board is the part of firmata.Client used by the bridge.
type Board interface {
	State() *firmata.State
	SetPinMode(pin int, mode codec.PinMode) error
	DigitalWritePin(pin int, value bool) error
	AnalogWrite(pin, value int) error
	ServoWrite(pin, degrees int) error
}

// Meta is published retained on the meta topic.
type Meta struct {
	ID       string            `json:"id"`
	Online   bool              `json:"online"`
	Firmware *firmata.Firmware `json:"firmware,omitempty"`
	Protocol string            `json:"protocol,omitempty"`
	Pins     int               `json:"pins"`
}

// Bridge publishes board changes and executes pin commands.
type Bridge struct {
	Queue *mqtt.Queue
	ID    string

	lock  sync.RWMutex
	board Board
}

// New creates a Bridge.
func New(q *mqtt.Queue, id string) *Bridge {
	return &Bridge{Queue: q, ID: id}
}

// SetWill clears the retained meta topic when the connection drops.
// It must be applied to the options before the queue is created.
func SetWill(opts *paho.ClientOptions, topicPrefix, id string) {
	opts.SetBinaryWill(topicPrefix+id+"/meta", []byte{}, 0, true)
}

// Attach sets the board. The bridge is usually the message handler of
// the client it's attached to, so it's created first.
func (b *Bridge) Attach(board Board) {
	b.lock.Lock()
	b.board = board
	b.lock.Unlock()
}

// Board returns the attached board, nil if none.
func (b *Bridge) Board() Board {
	b.lock.RLock()
	defer b.lock.RUnlock()
	return b.board
}

func (b *Bridge) topic(parts ...string) string {
	return b.ID + "/" + strings.Join(parts, "/")
}

func (b *Bridge) publish(payload []byte, retain bool, parts ...string) {
	topic := b.topic(parts...)
	glog.V(3).Infof("bridge: PUB %s", topic)
	b.Queue.PubWith(topic, payload, b.Queue.QoS, retain)
}

// HandleMessage implements firmata.MessageHandler.
func (b *Bridge) HandleMessage(_ context.Context, msg codec.Message, pins []int) {
	board := b.Board()
	if board == nil {
		return
	}
	state := board.State()
	for _, pin := range pins {
		b.publishPin(state, pin)
	}
	switch m := msg.(type) {
	case codec.FirmwareReport, codec.ProtocolVersionReport, codec.CapabilityReport:
		b.publishMeta(true)
	case codec.I2CReply:
		payload, err := BytesValue(m.Data)
		if err != nil {
			glog.Warningf("bridge: encode i2c: %v", err)
			return
		}
		b.publish(payload, false, "i2c", strconv.Itoa(m.Address))
	case codec.StringReport:
		payload, err := StringValue(m.Text)
		if err != nil {
			glog.Warningf("bridge: encode string: %v", err)
			return
		}
		b.publish(payload, false, "string")
	}
}

func (b *Bridge) publishPin(state *firmata.State, pin int) {
	p, ok := state.Pin(pin)
	if !ok {
		return
	}
	payload, err := NumberValue(p.Value)
	if err != nil {
		glog.Warningf("bridge: encode pin %d: %v", pin, err)
		return
	}
	b.publish(payload, false, "pin", strconv.Itoa(pin))
}

// MetaOf describes the board.
func (b *Bridge) MetaOf(online bool) Meta {
	meta := Meta{ID: b.ID, Online: online}
	board := b.Board()
	if board == nil {
		return meta
	}
	state := board.State()
	if fw, ok := state.Firmware(); ok {
		meta.Firmware = &fw
	}
	if v, ok := state.ProtocolVersion(); ok {
		meta.Protocol = fmt.Sprintf("%d.%d", v.Major, v.Minor)
	}
	meta.Pins = state.PinCount()
	return meta
}

func (b *Bridge) publishMeta(online bool) {
	payload, err := json.Marshal(b.MetaOf(online))
	if err != nil {
		glog.Warningf("bridge: encode meta: %v", err)
		return
	}
	b.publish(payload, true, "meta")
}

// Run implements framework.Runnable. It publishes the current state,
// then serves commands until ctx is done.
func (b *Bridge) Run(ctx context.Context) error {
	sub := b.Queue.Sub(b.topic("cmd", "pin", "+", "+"), b.handleCommand)
	defer sub.Close()
	if err := mqtt.Wait(ctx, sub.Token); err != nil {
		return err
	}
	b.publishMeta(true)
	if board := b.Board(); board != nil {
		state := board.State()
		for _, entry := range state.Pins() {
			b.publishPin(state, entry.Index)
		}
	}
	glog.Infof("bridge: serving %s%s", b.Queue.TopicPrefix, b.ID)
	<-ctx.Done()
	b.publishMeta(false)
	return ctx.Err()
}

func (b *Bridge) handleCommand(topic string, payload []byte) {
	if err := b.Execute(topic, payload); err != nil {
		glog.Warningf("bridge: %s: %v", topic, err)
	}
}

// Execute runs the command of a cmd/pin/<n>/<op> topic.
func (b *Bridge) Execute(topic string, payload []byte) error {
	parts := strings.Split(strings.TrimPrefix(topic, b.ID+"/"), "/")
	if len(parts) != 4 || parts[0] != "cmd" || parts[1] != "pin" {
		return fmt.Errorf("unexpected topic")
	}
	pin, err := strconv.Atoi(parts[2])
	if err != nil {
		return fmt.Errorf("invalid pin %q", parts[2])
	}
	board := b.Board()
	if board == nil {
		return firmata.ErrNotConnected
	}
	value, err := DecodeValue(payload)
	if err != nil {
		return err
	}
	switch op := parts[3]; op {
	case "mode":
		mode, err := ModeOf(value)
		if err != nil {
			return err
		}
		return board.SetPinMode(pin, mode)
	case "digital":
		n, err := IntOf(value)
		if err != nil {
			return err
		}
		return board.DigitalWritePin(pin, n != 0)
	case "analog":
		n, err := IntOf(value)
		if err != nil {
			return err
		}
		return board.AnalogWrite(pin, n)
	case "servo":
		n, err := IntOf(value)
		if err != nil {
			return err
		}
		return board.ServoWrite(pin, n)
	default:
		return fmt.Errorf("unknown op %q", op)
	}
}
