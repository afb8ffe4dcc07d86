package firmata

import (
	"context"
	"errors"
	"io"
	"sync"
	"time"

	"github.com/golang/glog"

	"github.com/robotalks/firmata.go/pkg/firmata/codec"
	fx "github.com/robotalks/firmata.go/pkg/framework"
)

// DefaultTimeout is the default time a query waits for its reply.
const DefaultTimeout = 1 * time.Second

// Option configures a Client.
type Option func(*Client)

// WithTimeout sets the timeout of queries whose context has no deadline.
func WithTimeout(d time.Duration) Option {
	return func(c *Client) { c.timeout = d }
}

// WithTracer installs a Tracer.
func WithTracer(t Tracer) Option {
	return func(c *Client) { c.tracer = t }
}

// WithMessageHandler installs a MessageHandler.
func WithMessageHandler(h MessageHandler) Option {
	return func(c *Client) { c.handler = h }
}

// Client talks to a Firmata device over a transport.
type Client struct {
	rw      io.ReadWriteCloser
	timeout time.Duration
	tracer  Tracer
	handler MessageHandler
	state   *State
	pending pendingList

	writeLock sync.Mutex
	portLock  sync.Mutex

	echoCh        chan echo
	closingCh     chan struct{}
	doneCh        chan struct{}
	closeOnce     sync.Once
	transportOnce sync.Once
	transportErr  error
	err           error
	cancel        context.CancelFunc
}

// New creates a Client and starts its receiver loop.
// The client owns rw and closes it on Close.
func New(rw io.ReadWriteCloser, opts ...Option) *Client {
	c := &Client{
		rw:        rw,
		timeout:   DefaultTimeout,
		state:     NewState(),
		echoCh:    make(chan echo),
		closingCh: make(chan struct{}),
		doneCh:    make(chan struct{}),
	}
	for _, opt := range opts {
		opt(c)
	}
	var ctx context.Context
	ctx, c.cancel = context.WithCancel(context.Background())
	go c.receive(ctx)
	return c
}

// State returns the live board state.
func (c *Client) State() *State {
	return c.state
}

// Done is closed when the receiver loop exits.
func (c *Client) Done() <-chan struct{} {
	return c.doneCh
}

// Err returns why the receiver loop exited, nil while running.
func (c *Client) Err() error {
	select {
	case <-c.doneCh:
		return c.err
	default:
		return nil
	}
}

// Close closes the transport and waits for the receiver loop.
// It blocks forever when called from a MessageHandler.
func (c *Client) Close() error {
	c.closeOnce.Do(func() { close(c.closingCh) })
	err := c.closeTransport()
	<-c.doneCh
	return err
}

func (c *Client) closeTransport() error {
	c.transportOnce.Do(func() {
		c.transportErr = c.rw.Close()
	})
	return c.transportErr
}

// Run implements framework.Runnable.
func (c *Client) Run(ctx context.Context) error {
	return fx.RunWithContextCloser(ctx, c, func() error {
		<-c.doneCh
		if c.err == ErrClosed {
			return nil
		}
		return c.err
	})
}

func (c *Client) write(data []byte) error {
	c.writeLock.Lock()
	defer c.writeLock.Unlock()
	select {
	case <-c.doneCh:
		return c.err
	default:
	}
	if t := c.tracer; t != nil {
		t.TraceWrite(data)
	}
	if glog.V(3) {
		glog.Infof("firmata: send % x", data)
	}
	if _, err := c.rw.Write(data); err != nil {
		return &TransportError{Op: "write", Err: err}
	}
	return nil
}

// echo hands a written command to the receiver loop and waits until
// the state reflects it.
func (c *Client) echo(cmd codec.Command) {
	e := echo{cmd: cmd, done: make(chan struct{})}
	select {
	case c.echoCh <- e:
		<-e.done
	case <-c.doneCh:
	}
}

func (c *Client) send(cmd codec.Command) error {
	data, err := codec.Encode(cmd)
	if err != nil {
		return err
	}
	if err = c.write(data); err != nil {
		return err
	}
	c.echo(cmd)
	return nil
}

// Send writes a command without further validation.
func (c *Client) Send(cmd codec.Command) error {
	return c.send(cmd)
}

// Do sends a command and returns a Request completed by the first
// incoming message accepted by match.
func (c *Client) Do(cmd codec.Command, match Matcher) *Request {
	r := newRequest(match)
	data, err := codec.Encode(cmd)
	if err != nil {
		r.resultCh <- Result{Err: err}
		return r
	}
	if !c.pending.add(r) {
		return r
	}
	if err = c.write(data); err != nil {
		c.pending.fail(r, err)
	}
	return r
}

// Wait waits for the result of a Request. Without a deadline in ctx the
// client timeout applies.
func (c *Client) Wait(ctx context.Context, r *Request) (codec.Message, error) {
	if _, ok := ctx.Deadline(); !ok && c.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, c.timeout)
		defer cancel()
	}
	select {
	case res := <-r.ResultChan():
		return res.Msg, res.Err
	case <-ctx.Done():
		if !r.Cancel() {
			// fulfilled while cancelling
			res := <-r.ResultChan()
			return res.Msg, res.Err
		}
		if errors.Is(ctx.Err(), context.DeadlineExceeded) {
			return nil, ErrTimeout
		}
		return nil, ctx.Err()
	}
}

func (c *Client) query(ctx context.Context, cmd codec.Command, match Matcher) (codec.Message, error) {
	return c.Wait(ctx, c.Do(cmd, match))
}

func (c *Client) checkPin(pin int) error {
	if pin < 0 {
		return invalidArg("pin", pin, "negative")
	}
	if n := c.state.PinCount(); n > 0 && pin >= n {
		return invalidArg("pin", pin, "board has %d pins", n)
	}
	if pin > codec.MaxPin {
		return invalidArg("pin", pin, "exceeds %d", codec.MaxPin)
	}
	return nil
}

func (c *Client) checkPort(port int) error {
	if port < 0 || port > codec.MaxPort {
		return invalidArg("port", port, "not in [0, %d]", codec.MaxPort)
	}
	if n := c.state.PinCount(); n > 0 && port*8 >= n {
		return invalidArg("port", port, "board has %d pins", n)
	}
	return nil
}

func (c *Client) checkValue(name string, value, max int) error {
	if value < 0 || value > max {
		return invalidArg(name, value, "not in [0, %d]", max)
	}
	return nil
}

// maxValue returns the largest value of a pin in mode, or def
// without a known resolution.
func (c *Client) maxValue(pin int, mode codec.PinMode, def int) int {
	p, ok := c.state.Pin(pin)
	if !ok {
		return def
	}
	capability, ok := p.Supports(mode)
	if !ok || capability.Resolution <= 0 {
		return def
	}
	return capability.MaxValue()
}

// SetPinMode configures the mode of a pin.
func (c *Client) SetPinMode(pin int, mode codec.PinMode) error {
	if err := c.checkPin(pin); err != nil {
		return err
	}
	if mode > 0x7F {
		return invalidArg("mode", int(mode), "not a wire mode")
	}
	if p, ok := c.state.Pin(pin); ok {
		if _, ok := p.Supports(mode); !ok {
			return invalidArg("pin", pin, "mode %s not supported", mode)
		}
	}
	return c.send(codec.SetPinMode{Pin: pin, Mode: mode})
}

// DigitalWrite sets the output values of the 8 pins of a port.
func (c *Client) DigitalWrite(port, mask int) error {
	if err := c.checkPort(port); err != nil {
		return err
	}
	if err := c.checkValue("mask", mask, 0xFF); err != nil {
		return err
	}
	c.portLock.Lock()
	defer c.portLock.Unlock()
	return c.send(codec.DigitalWrite{Port: port, Mask: mask})
}

// DigitalWritePin sets one output pin, keeping the levels last written to
// the other output pins of its port.
func (c *Client) DigitalWritePin(pin int, value bool) error {
	if err := c.checkPin(pin); err != nil {
		return err
	}
	c.portLock.Lock()
	defer c.portLock.Unlock()
	port, mask := pin/8, 0
	for bit := 0; bit < 8; bit++ {
		if p, ok := c.state.Pin(port*8 + bit); ok && p.Mode == codec.ModeOutput && p.Output != 0 {
			mask |= 1 << uint(bit)
		}
	}
	if value {
		mask |= 1 << uint(pin%8)
	} else {
		mask &^= 1 << uint(pin%8)
	}
	return c.send(codec.DigitalWrite{Port: port, Mask: mask})
}

// DigitalPinWrite sets one output pin with SET_DIGITAL_PIN_VALUE.
func (c *Client) DigitalPinWrite(pin int, value bool) error {
	if err := c.checkPin(pin); err != nil {
		return err
	}
	return c.send(codec.DigitalPinWrite{Pin: pin, Value: value})
}

// AnalogWrite sets the PWM duty or analog output of a pin.
func (c *Client) AnalogWrite(pin, value int) error {
	if err := c.checkPin(pin); err != nil {
		return err
	}
	mode := codec.ModePWM
	if p, ok := c.state.Pin(pin); ok && p.Mode == codec.ModeAnalog {
		mode = p.Mode
	}
	if err := c.checkValue("value", value, c.maxValue(pin, mode, codec.Max14Bit)); err != nil {
		return err
	}
	return c.send(codec.AnalogWrite{Pin: pin, Value: value})
}

// ServoWrite sets the angle of a servo.
func (c *Client) ServoWrite(pin, degrees int) error {
	if err := c.checkPin(pin); err != nil {
		return err
	}
	if err := c.checkValue("degrees", degrees, c.maxValue(pin, codec.ModeServo, codec.MaxServoDeg)); err != nil {
		return err
	}
	return c.send(codec.ServoWrite{Pin: pin, Degrees: degrees})
}

// ServoConfig sets the pulse range of a servo in microseconds.
func (c *Client) ServoConfig(pin, minPulse, maxPulse int) error {
	if err := c.checkPin(pin); err != nil {
		return err
	}
	if err := c.checkValue("min pulse", minPulse, codec.Max14Bit); err != nil {
		return err
	}
	if maxPulse < minPulse {
		return invalidArg("max pulse", maxPulse, "less than min pulse %d", minPulse)
	}
	if err := c.checkValue("max pulse", maxPulse, codec.Max14Bit); err != nil {
		return err
	}
	return c.send(codec.ServoConfig{Pin: pin, MinPulse: minPulse, MaxPulse: maxPulse})
}

// SetSamplingInterval sets how often the device reports analog and I2C data.
func (c *Client) SetSamplingInterval(d time.Duration) error {
	ms := int(d / time.Millisecond)
	if ms < 1 || ms > codec.Max14Bit {
		return invalidArg("sampling interval", ms, "not in [1, %d] ms", codec.Max14Bit)
	}
	return c.send(codec.SetSamplingInterval{Interval: time.Duration(ms) * time.Millisecond})
}

// StringWrite sends a text message.
func (c *Client) StringWrite(text string) error {
	if text == "" {
		return invalidArg("text", 0, "empty")
	}
	return c.send(codec.StringWrite{Text: text})
}

// ReportAnalog toggles reporting of an analog channel.
func (c *Client) ReportAnalog(channel int, enable bool) error {
	if err := c.checkValue("channel", channel, codec.MaxChannel); err != nil {
		return err
	}
	return c.send(codec.ReportAnalog{Channel: channel, Enable: enable})
}

// ReportDigital toggles reporting of a digital port.
func (c *Client) ReportDigital(port int, enable bool) error {
	if err := c.checkPort(port); err != nil {
		return err
	}
	return c.send(codec.ReportDigital{Port: port, Enable: enable})
}

// SystemReset resets the device.
func (c *Client) SystemReset() error {
	return c.send(codec.SystemReset{})
}

func checkI2C(address, register int) error {
	if address < 0 || address > codec.MaxI2CAddr {
		return invalidArg("address", address, "not in [0, 0x%x]", codec.MaxI2CAddr)
	}
	if register != codec.NoRegister && (register < 0 || register > codec.Max14Bit) {
		return invalidArg("register", register, "not in [0, 0x%x]", codec.Max14Bit)
	}
	return nil
}

// I2CConfig sets the delay between I2C write and read.
func (c *Client) I2CConfig(delay time.Duration) error {
	us := int(delay / time.Microsecond)
	if err := c.checkValue("delay", us, codec.Max14Bit); err != nil {
		return err
	}
	return c.send(codec.I2CConfig{Delay: us})
}

// I2CWrite writes data to an I2C device, starting at register unless
// it's codec.NoRegister.
func (c *Client) I2CWrite(address, register int, data []byte) error {
	if err := checkI2C(address, register); err != nil {
		return err
	}
	if len(data) == 0 && register == codec.NoRegister {
		return invalidArg("data", 0, "empty")
	}
	return c.send(codec.I2CRequest{Address: address, Mode: codec.I2CWrite, Register: register, Data: data})
}

// I2CReadContinuously asks the device to report n bytes every sampling interval.
func (c *Client) I2CReadContinuously(address, register, n int) error {
	if err := checkI2C(address, register); err != nil {
		return err
	}
	if n < 1 || n > codec.Max14Bit {
		return invalidArg("length", n, "not in [1, %d]", codec.Max14Bit)
	}
	return c.send(codec.I2CRequest{
		Address:    address,
		Mode:       codec.I2CReadContinuously,
		Register:   register,
		ReadLength: n,
	})
}

// I2CStopReading stops continuous reads of an I2C device.
func (c *Client) I2CStopReading(address int) error {
	if err := checkI2C(address, codec.NoRegister); err != nil {
		return err
	}
	return c.send(codec.I2CRequest{Address: address, Mode: codec.I2CStopReading, Register: codec.NoRegister})
}

// I2CRead reads n bytes from an I2C device.
func (c *Client) I2CRead(ctx context.Context, address, register, n int) ([]byte, error) {
	if err := checkI2C(address, register); err != nil {
		return nil, err
	}
	if n < 1 || n > codec.Max14Bit {
		return nil, invalidArg("length", n, "not in [1, %d]", codec.Max14Bit)
	}
	msg, err := c.query(ctx, codec.I2CRequest{
		Address:    address,
		Mode:       codec.I2CRead,
		Register:   register,
		ReadLength: n,
	}, func(msg codec.Message) bool {
		reply, ok := msg.(codec.I2CReply)
		return ok && reply.Address == address
	})
	if err != nil {
		return nil, err
	}
	return msg.(codec.I2CReply).Data, nil
}

func isFirmware(msg codec.Message) bool {
	_, ok := msg.(codec.FirmwareReport)
	return ok
}

func isProtocolVersion(msg codec.Message) bool {
	_, ok := msg.(codec.ProtocolVersionReport)
	return ok
}

func isCapabilities(msg codec.Message) bool {
	_, ok := msg.(codec.CapabilityReport)
	return ok
}

func isAnalogMapping(msg codec.Message) bool {
	_, ok := msg.(codec.AnalogMappingReport)
	return ok
}

// RequestFirmware queries the firmware name and version.
func (c *Client) RequestFirmware(ctx context.Context) (Firmware, error) {
	msg, err := c.query(ctx, codec.RequestFirmware{}, isFirmware)
	if err != nil {
		return Firmware{}, err
	}
	m := msg.(codec.FirmwareReport)
	return Firmware{Name: m.Name, Major: m.Major, Minor: m.Minor}, nil
}

// RequestProtocolVersion queries the protocol version.
func (c *Client) RequestProtocolVersion(ctx context.Context) (Version, error) {
	msg, err := c.query(ctx, codec.RequestProtocolVersion{}, isProtocolVersion)
	if err != nil {
		return Version{}, err
	}
	m := msg.(codec.ProtocolVersionReport)
	return Version{Major: m.Major, Minor: m.Minor}, nil
}

// RequestCapabilities queries the modes supported by every pin.
func (c *Client) RequestCapabilities(ctx context.Context) (codec.CapabilityReport, error) {
	msg, err := c.query(ctx, codec.RequestCapabilities{}, isCapabilities)
	if err != nil {
		return codec.CapabilityReport{}, err
	}
	return msg.(codec.CapabilityReport), nil
}

// RequestAnalogMapping queries which pins have analog channels.
func (c *Client) RequestAnalogMapping(ctx context.Context) (codec.AnalogMappingReport, error) {
	msg, err := c.query(ctx, codec.RequestAnalogMapping{}, isAnalogMapping)
	if err != nil {
		return codec.AnalogMappingReport{}, err
	}
	return msg.(codec.AnalogMappingReport), nil
}

// RequestPinState queries the mode and state of a pin.
func (c *Client) RequestPinState(ctx context.Context, pin int) (codec.PinStateReport, error) {
	if err := c.checkPin(pin); err != nil {
		return codec.PinStateReport{}, err
	}
	msg, err := c.query(ctx, codec.RequestPinState{Pin: pin}, func(msg codec.Message) bool {
		m, ok := msg.(codec.PinStateReport)
		return ok && m.Pin == pin
	})
	if err != nil {
		return codec.PinStateReport{}, err
	}
	return msg.(codec.PinStateReport), nil
}

// Populate queries firmware, capabilities and analog mapping into the state.
func (c *Client) Populate(ctx context.Context) error {
	fw, err := c.RequestFirmware(ctx)
	if err != nil {
		return err
	}
	glog.Infof("firmata: firmware %s %d.%d", fw.Name, fw.Major, fw.Minor)
	if _, err = c.RequestCapabilities(ctx); err != nil {
		return err
	}
	if _, err = c.RequestAnalogMapping(ctx); err != nil {
		return err
	}
	glog.V(1).Infof("firmata: %d pins", c.state.PinCount())
	return nil
}
