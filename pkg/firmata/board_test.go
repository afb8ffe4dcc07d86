package firmata

import (
	"context"
	"net"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/robotalks/firmata.go/pkg/firmata/codec"
	"github.com/robotalks/firmata.go/pkg/sim"
)

func newBoardTestClient(t *testing.T, board *sim.Board) *Client {
	host, dev := net.Pipe()
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		defer close(done)
		board.Serve(ctx, dev)
	}()
	c := New(host)
	t.Cleanup(func() {
		c.Close()
		cancel()
		<-done
	})
	return c
}

func TestPopulateWithBoard(t *testing.T) {
	c := newBoardTestClient(t, sim.NewBoard(20, 6))
	require.NoError(t, c.Populate(context.Background()))

	fw, ok := c.State().Firmware()
	require.True(t, ok)
	require.Equal(t, sim.DefaultName, fw.Name)
	require.Equal(t, 20, c.State().PinCount())
	pin, ok := c.State().AnalogPin(0)
	require.True(t, ok)
	require.Equal(t, 14, pin)

	p, ok := c.State().Pin(3)
	require.True(t, ok)
	_, ok = p.Supports(codec.ModePWM)
	require.True(t, ok)
	require.ErrorIs(t, c.SetPinMode(4, codec.ModePWM), ErrInvalidArgument)
	require.ErrorIs(t, c.SetPinMode(20, codec.ModeOutput), ErrInvalidArgument)

	v, err := c.RequestProtocolVersion(context.Background())
	require.NoError(t, err)
	require.Equal(t, Version{Major: sim.ProtocolMajor, Minor: sim.ProtocolMinor}, v)
}

func TestPinStateWithBoard(t *testing.T) {
	board := sim.NewBoard(20, 6)
	c := newBoardTestClient(t, board)

	require.NoError(t, c.SetPinMode(13, codec.ModeOutput))
	require.NoError(t, c.DigitalWritePin(13, true))
	ps, err := c.RequestPinState(context.Background(), 13)
	require.NoError(t, err)
	require.Equal(t, codec.PinStateReport{Pin: 13, Mode: codec.ModeOutput, State: 1}, ps)
	mode, value := board.Pin(13)
	require.Equal(t, codec.ModeOutput, mode)
	require.Equal(t, 1, value)

	require.NoError(t, c.SetPinMode(9, codec.ModeServo))
	require.NoError(t, c.ServoWrite(9, 120))
	ps, err = c.RequestPinState(context.Background(), 9)
	require.NoError(t, err)
	require.Equal(t, 120, ps.State)
}

func TestI2CWithBoard(t *testing.T) {
	board := sim.NewBoard(20, 6)
	board.SetI2C(0x68, 0x3B, 1, 2, 3)
	c := newBoardTestClient(t, board)

	data, err := c.I2CRead(context.Background(), 0x68, 0x3B, 3)
	require.NoError(t, err)
	require.Equal(t, []byte{1, 2, 3}, data)

	require.NoError(t, c.I2CWrite(0x68, 0x10, []byte{0xAA, 0xBB}))
	data, err = c.I2CRead(context.Background(), 0x68, 0x10, 2)
	require.NoError(t, err)
	require.Equal(t, []byte{0xAA, 0xBB}, data)
	require.Equal(t, []byte{0xAA, 0xBB}, board.I2C(0x68, 0x10, 2))
}

func TestReportsWithBoard(t *testing.T) {
	board := sim.NewBoard(20, 6)
	c := newBoardTestClient(t, board)
	require.NoError(t, c.Populate(context.Background()))

	require.NoError(t, c.SetPinMode(2, codec.ModeInput))
	require.NoError(t, c.ReportDigital(0, true))
	board.SetInput(2, 1)
	require.Eventually(t, func() bool {
		p, _ := c.State().Pin(2)
		return p.Value == 1
	}, time.Second, time.Millisecond)

	require.NoError(t, c.ReportAnalog(0, true))
	board.SetInput(14, 512)
	require.Eventually(t, func() bool {
		p, _ := c.State().Pin(14)
		return p.Value == 512
	}, time.Second, time.Millisecond)

	require.NoError(t, c.StringWrite("hello"))
	require.Eventually(t, func() bool {
		return c.State().LastString() == "hello"
	}, time.Second, time.Millisecond)

	require.NoError(t, c.SetSamplingInterval(50*time.Millisecond))
	require.Eventually(t, func() bool {
		return board.SamplingInterval() == 50*time.Millisecond
	}, time.Second, time.Millisecond)
}

func TestBoardIgnoringQueries(t *testing.T) {
	board := sim.NewBoard(4, 0)
	board.Filter = func(cmd codec.Command) bool {
		_, isFirmware := cmd.(codec.RequestFirmware)
		return !isFirmware
	}
	c := newBoardTestClient(t, board)
	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()
	_, err := c.RequestFirmware(ctx)
	require.ErrorIs(t, err, ErrTimeout)
	require.Zero(t, c.pending.count())
}
