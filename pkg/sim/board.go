// Package sim provides a simulated Firmata board speaking the device side
// of the protocol, for tests and for running without hardware.
package sim

import (
	"context"
	"errors"
	"io"
	"sort"
	"sync"
	"time"

	"github.com/golang/glog"

	"github.com/robotalks/firmata.go/pkg/firmata/codec"
	fx "github.com/robotalks/firmata.go/pkg/framework"
)

// Defaults of a simulated board.
const (
	DefaultName             = "SimFirmata"
	DefaultSamplingInterval = 19 * time.Millisecond
)

// Protocol version reported by the board.
const (
	ProtocolMajor = 2
	ProtocolMinor = 6
)

var pwmPins = map[int]bool{3: true, 5: true, 6: true, 9: true, 10: true, 11: true}

// Board is a simulated Firmata device.
type Board struct {
	Name         string
	Major, Minor int
	Capabilities [][]codec.ModeCapability
	Channels     []int
	// Announce sends the version and firmware reports when serving starts.
	Announce bool
	// AutoReport reports analog channels and I2C reads every sampling interval.
	AutoReport bool
	// Filter drops commands it returns false for.
	Filter func(codec.Command) bool

	lock          sync.Mutex
	writeLock     sync.Mutex
	w             io.Writer
	modes         []codec.PinMode
	values        []int
	reportAnalog  map[int]bool
	reportDigital map[int]bool
	i2c           map[int]map[int]byte
	i2cReads      map[int]codec.I2CRequest
	sampling      time.Duration
	lastString    string
}

// NewBoard creates an Arduino-like board with n pins, the last analog of
// them with 10-bit analog inputs.
func NewBoard(n, analog int) *Board {
	b := &Board{
		Name:         DefaultName,
		Major:        2,
		Minor:        5,
		Capabilities: make([][]codec.ModeCapability, n),
		Channels:     make([]int, n),
	}
	for pin := 0; pin < n; pin++ {
		caps := []codec.ModeCapability{
			{Mode: codec.ModeInput, Resolution: 1},
			{Mode: codec.ModeOutput, Resolution: 1},
			{Mode: codec.ModeInputPullup, Resolution: 1},
		}
		b.Channels[pin] = codec.NoChannel
		if ch := pin - (n - analog); ch >= 0 {
			caps = append(caps, codec.ModeCapability{Mode: codec.ModeAnalog, Resolution: 10})
			b.Channels[pin] = ch
		}
		if pwmPins[pin] {
			caps = append(caps, codec.ModeCapability{Mode: codec.ModePWM, Resolution: 8})
		}
		if pin >= 2 {
			caps = append(caps, codec.ModeCapability{Mode: codec.ModeServo, Resolution: 14})
		}
		if pin == 18 || pin == 19 {
			caps = append(caps, codec.ModeCapability{Mode: codec.ModeI2C, Resolution: 1})
		}
		b.Capabilities[pin] = caps
	}
	b.reset()
	return b
}

func (b *Board) reset() {
	n := len(b.Capabilities)
	b.modes, b.values = make([]codec.PinMode, n), make([]int, n)
	for pin := range b.modes {
		b.modes[pin] = codec.ModeOutput
		if b.Channels[pin] != codec.NoChannel {
			b.modes[pin] = codec.ModeAnalog
		}
	}
	b.reportAnalog = make(map[int]bool)
	b.reportDigital = make(map[int]bool)
	b.i2cReads = make(map[int]codec.I2CRequest)
	if b.i2c == nil {
		b.i2c = make(map[int]map[int]byte)
	}
	b.sampling = DefaultSamplingInterval
}

// Serve runs the device side over rw until ctx is done or reading fails.
func (b *Board) Serve(ctx context.Context, rw io.ReadWriter) error {
	b.lock.Lock()
	b.w = rw
	b.lock.Unlock()
	if b.Announce {
		b.send(codec.ProtocolVersionReport{Major: ProtocolMajor, Minor: ProtocolMinor},
			codec.FirmwareReport{Major: b.Major, Minor: b.Minor, Name: b.Name})
	}
	if b.AutoReport {
		subCtx, cancel := context.WithCancel(ctx)
		defer cancel()
		go b.reportLoop(subCtx)
	}
	var onCancel func()
	if closer, ok := rw.(io.Closer); ok {
		onCancel = func() { closer.Close() }
	}
	err := fx.RunWithContextCancel(ctx, onCancel, func() error {
		return b.readLoop(rw)
	})
	if errors.Is(err, io.EOF) || errors.Is(err, io.ErrClosedPipe) {
		return nil
	}
	return err
}

func (b *Board) readLoop(r io.Reader) error {
	var dec codec.CommandDecoder
	buf := make([]byte, 256)
	for {
		n, err := r.Read(buf)
		if n > 0 {
			cmds, derr := dec.Feed(buf[:n])
			if derr != nil {
				glog.Warningf("sim: %v", derr)
			}
			for _, cmd := range cmds {
				b.handle(cmd)
			}
		}
		if err != nil {
			return err
		}
	}
}

func (b *Board) reportLoop(ctx context.Context) {
	for {
		b.lock.Lock()
		interval := b.sampling
		b.lock.Unlock()
		select {
		case <-ctx.Done():
			return
		case <-time.After(interval):
			b.Report()
		}
	}
}

func (b *Board) send(msgs ...codec.Message) {
	var out []byte
	for _, msg := range msgs {
		var err error
		if out, err = msg.AppendFrame(out); err != nil {
			glog.Errorf("sim: encode %T: %v", msg, err)
			return
		}
	}
	b.lock.Lock()
	w := b.w
	b.lock.Unlock()
	if w == nil || len(out) == 0 {
		return
	}
	b.writeLock.Lock()
	defer b.writeLock.Unlock()
	if _, err := w.Write(out); err != nil {
		glog.V(1).Infof("sim: write: %v", err)
	}
}

func (b *Board) validPin(pin int) bool {
	return pin >= 0 && pin < len(b.modes)
}

func (b *Board) portMask(port int) int {
	mask := 0
	for bit := 0; bit < 8; bit++ {
		if pin := port*8 + bit; b.validPin(pin) && b.values[pin] != 0 && isInput(b.modes[pin]) {
			mask |= 1 << uint(bit)
		}
	}
	return mask
}

// isInput reports whether a pin is part of the port reports.
func isInput(mode codec.PinMode) bool {
	return mode == codec.ModeInput || mode == codec.ModeInputPullup
}

func (b *Board) handle(cmd codec.Command) {
	if f := b.Filter; f != nil && !f(cmd) {
		return
	}
	if glog.V(3) {
		glog.Infof("sim: %T %+v", cmd, cmd)
	}
	if reply := b.apply(cmd); len(reply) > 0 {
		b.send(reply...)
	}
}

// apply updates the board and returns the replies.
func (b *Board) apply(cmd codec.Command) []codec.Message {
	b.lock.Lock()
	defer b.lock.Unlock()
	switch c := cmd.(type) {
	case codec.SetPinMode:
		if b.validPin(c.Pin) {
			b.modes[c.Pin], b.values[c.Pin] = c.Mode, 0
		}
	case codec.DigitalWrite:
		for bit := 0; bit < 8; bit++ {
			if pin := c.Port*8 + bit; b.validPin(pin) && b.modes[pin] == codec.ModeOutput {
				b.values[pin] = (c.Mask >> uint(bit)) & 1
			}
		}
	case codec.DigitalPinWrite:
		if b.validPin(c.Pin) {
			b.values[c.Pin] = 0
			if c.Value {
				b.values[c.Pin] = 1
			}
		}
	case codec.AnalogWrite:
		if b.validPin(c.Pin) {
			b.values[c.Pin] = c.Value
		}
	case codec.ReportAnalog:
		b.reportAnalog[c.Channel] = c.Enable
	case codec.ReportDigital:
		b.reportDigital[c.Port] = c.Enable
		if c.Enable {
			return []codec.Message{codec.DigitalPortReport{Port: c.Port, Mask: b.portMask(c.Port)}}
		}
	case codec.SetSamplingInterval:
		if c.Interval > 0 {
			b.sampling = c.Interval
		}
	case codec.StringWrite:
		b.lastString = c.Text
		return []codec.Message{codec.StringReport{Text: c.Text}}
	case codec.I2CRequest:
		return b.applyI2C(c)
	case codec.RequestFirmware:
		return []codec.Message{codec.FirmwareReport{Major: b.Major, Minor: b.Minor, Name: b.Name}}
	case codec.RequestProtocolVersion:
		return []codec.Message{codec.ProtocolVersionReport{Major: ProtocolMajor, Minor: ProtocolMinor}}
	case codec.RequestCapabilities:
		return []codec.Message{codec.CapabilityReport{Pins: b.Capabilities}}
	case codec.RequestAnalogMapping:
		return []codec.Message{codec.AnalogMappingReport{Channels: b.Channels}}
	case codec.RequestPinState:
		if b.validPin(c.Pin) {
			return []codec.Message{codec.PinStateReport{Pin: c.Pin, Mode: b.modes[c.Pin], State: b.values[c.Pin]}}
		}
	case codec.SystemReset:
		b.reset()
	}
	return nil
}

func (b *Board) applyI2C(c codec.I2CRequest) []codec.Message {
	switch c.Mode {
	case codec.I2CWrite:
		data, reg := c.Data, c.Register
		if reg == codec.NoRegister {
			if len(data) == 0 {
				return nil
			}
			reg, data = int(data[0]), data[1:]
		}
		regs := b.i2c[c.Address]
		if regs == nil {
			regs = make(map[int]byte)
			b.i2c[c.Address] = regs
		}
		for n, v := range data {
			regs[reg+n] = v
		}
	case codec.I2CRead:
		return []codec.Message{b.readI2C(c)}
	case codec.I2CReadContinuously:
		b.i2cReads[c.Address] = c
	case codec.I2CStopReading:
		delete(b.i2cReads, c.Address)
	}
	return nil
}

func (b *Board) readI2C(c codec.I2CRequest) codec.I2CReply {
	reply := codec.I2CReply{Address: c.Address, Register: c.Register, Data: make([]byte, c.ReadLength)}
	start := c.Register
	if start == codec.NoRegister {
		start = 0
	}
	regs := b.i2c[c.Address]
	for n := range reply.Data {
		reply.Data[n] = regs[start+n]
	}
	return reply
}

// Report sends the values of enabled analog channels and continuous I2C reads.
func (b *Board) Report() {
	var msgs []codec.Message
	b.lock.Lock()
	for pin, ch := range b.Channels {
		if ch != codec.NoChannel && b.reportAnalog[ch] && b.validPin(pin) {
			msgs = append(msgs, codec.AnalogPinReport{Channel: ch, Value: b.values[pin]})
		}
	}
	addrs := make([]int, 0, len(b.i2cReads))
	for addr := range b.i2cReads {
		addrs = append(addrs, addr)
	}
	sort.Ints(addrs)
	for _, addr := range addrs {
		msgs = append(msgs, b.readI2C(b.i2cReads[addr]))
	}
	b.lock.Unlock()
	if len(msgs) > 0 {
		b.send(msgs...)
	}
}

// SetInput changes the value seen on an input pin, reporting it when
// reporting of its port or channel is enabled.
func (b *Board) SetInput(pin, value int) {
	var msgs []codec.Message
	b.lock.Lock()
	if b.validPin(pin) {
		b.values[pin] = value
		if port := pin / 8; b.reportDigital[port] && isInput(b.modes[pin]) {
			msgs = append(msgs, codec.DigitalPortReport{Port: port, Mask: b.portMask(port)})
		}
		if ch := b.Channels[pin]; ch != codec.NoChannel && b.reportAnalog[ch] && b.modes[pin] == codec.ModeAnalog {
			msgs = append(msgs, codec.AnalogPinReport{Channel: ch, Value: value})
		}
	}
	b.lock.Unlock()
	if len(msgs) > 0 {
		b.send(msgs...)
	}
}

// Pin returns the mode and value of a pin.
func (b *Board) Pin(pin int) (codec.PinMode, int) {
	b.lock.Lock()
	defer b.lock.Unlock()
	if !b.validPin(pin) {
		return codec.ModeUnknown, 0
	}
	return b.modes[pin], b.values[pin]
}

// SetI2C stores bytes in the registers of a simulated I2C device.
func (b *Board) SetI2C(address, register int, data ...byte) {
	b.lock.Lock()
	defer b.lock.Unlock()
	regs := b.i2c[address]
	if regs == nil {
		regs = make(map[int]byte)
		b.i2c[address] = regs
	}
	for n, v := range data {
		regs[register+n] = v
	}
}

// I2C returns bytes from the registers of a simulated I2C device.
func (b *Board) I2C(address, register, n int) []byte {
	b.lock.Lock()
	defer b.lock.Unlock()
	out := make([]byte, n)
	for i := range out {
		out[i] = b.i2c[address][register+i]
	}
	return out
}

// SamplingInterval returns the current sampling interval.
func (b *Board) SamplingInterval() time.Duration {
	b.lock.Lock()
	defer b.lock.Unlock()
	return b.sampling
}

// LastString returns the last text received.
func (b *Board) LastString() string {
	b.lock.Lock()
	defer b.lock.Unlock()
	return b.lastString
}
