package sim

import (
	"context"
	"net"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/robotalks/firmata.go/pkg/firmata/codec"
)

type boardTestEnv struct {
	t     *testing.T
	board *Board
	conn  net.Conn
	dec   codec.Decoder
	queue []codec.Message
}

func newBoardTestEnv(t *testing.T, board *Board) *boardTestEnv {
	host, dev := net.Pipe()
	ctx, cancel := context.WithCancel(context.Background())
	errCh := make(chan error, 1)
	go func() { errCh <- board.Serve(ctx, dev) }()
	t.Cleanup(func() {
		host.Close()
		cancel()
		<-errCh
	})
	return &boardTestEnv{t: t, board: board, conn: host}
}

func (e *boardTestEnv) send(cmds ...codec.Command) {
	for _, cmd := range cmds {
		data, err := codec.Encode(cmd)
		require.NoError(e.t, err)
		_, err = e.conn.Write(data)
		require.NoError(e.t, err)
	}
}

func (e *boardTestEnv) recv() codec.Message {
	buf := make([]byte, 256)
	for len(e.queue) == 0 {
		require.NoError(e.t, e.conn.SetReadDeadline(time.Now().Add(time.Second)))
		n, err := e.conn.Read(buf)
		require.NoError(e.t, err)
		msgs, err := e.dec.Feed(buf[:n])
		require.NoError(e.t, err)
		e.queue = append(e.queue, msgs...)
	}
	msg := e.queue[0]
	e.queue = e.queue[1:]
	return msg
}

func TestNewBoard(t *testing.T) {
	b := NewBoard(20, 6)
	require.Len(t, b.Capabilities, 20)
	require.Equal(t, codec.NoChannel, b.Channels[13])
	require.Equal(t, 0, b.Channels[14])
	require.Equal(t, 5, b.Channels[19])
	mode, _ := b.Pin(14)
	require.Equal(t, codec.ModeAnalog, mode)
	mode, _ = b.Pin(13)
	require.Equal(t, codec.ModeOutput, mode)
	mode, _ = b.Pin(20)
	require.Equal(t, codec.ModeUnknown, mode)
}

func TestBoardQueries(t *testing.T) {
	env := newBoardTestEnv(t, NewBoard(4, 1))

	env.send(codec.RequestFirmware{})
	require.Equal(t, codec.FirmwareReport{Major: 2, Minor: 5, Name: DefaultName}, env.recv())

	env.send(codec.RequestProtocolVersion{})
	require.Equal(t, codec.ProtocolVersionReport{Major: ProtocolMajor, Minor: ProtocolMinor}, env.recv())

	env.send(codec.RequestAnalogMapping{})
	require.Equal(t, codec.AnalogMappingReport{Channels: []int{codec.NoChannel, codec.NoChannel, codec.NoChannel, 0}}, env.recv())

	env.send(codec.RequestCapabilities{})
	caps, ok := env.recv().(codec.CapabilityReport)
	require.True(t, ok)
	require.Equal(t, env.board.Capabilities, caps.Pins)

	env.send(codec.SetPinMode{Pin: 2, Mode: codec.ModeOutput}, codec.DigitalPinWrite{Pin: 2, Value: true}, codec.RequestPinState{Pin: 2})
	require.Equal(t, codec.PinStateReport{Pin: 2, Mode: codec.ModeOutput, State: 1}, env.recv())

	env.send(codec.StringWrite{Text: "ping"})
	require.Equal(t, codec.StringReport{Text: "ping"}, env.recv())
	require.Equal(t, "ping", env.board.LastString())
}

func TestBoardReports(t *testing.T) {
	env := newBoardTestEnv(t, NewBoard(20, 6))

	env.send(codec.SetPinMode{Pin: 2, Mode: codec.ModeInput}, codec.ReportDigital{Port: 0, Enable: true})
	require.Equal(t, codec.DigitalPortReport{Port: 0, Mask: 0}, env.recv())
	go env.board.SetInput(2, 1)
	require.Equal(t, codec.DigitalPortReport{Port: 0, Mask: 0x04}, env.recv())

	// output levels are not part of the port report
	env.send(codec.SetPinMode{Pin: 3, Mode: codec.ModeOutput}, codec.DigitalPinWrite{Pin: 3, Value: true})
	require.Eventually(t, func() bool {
		_, v := env.board.Pin(3)
		return v == 1
	}, time.Second, time.Millisecond)
	env.send(codec.SetPinMode{Pin: 4, Mode: codec.ModeInputPullup})
	go env.board.SetInput(4, 1)
	require.Equal(t, codec.DigitalPortReport{Port: 0, Mask: 0x14}, env.recv())

	env.send(codec.ReportAnalog{Channel: 1, Enable: true})
	go env.board.SetInput(15, 300)
	require.Equal(t, codec.AnalogPinReport{Channel: 1, Value: 300}, env.recv())

	env.board.SetI2C(0x40, 0, 7, 8)
	env.send(codec.I2CRequest{Address: 0x40, Mode: codec.I2CReadContinuously, Register: codec.NoRegister, ReadLength: 2})
	env.send(codec.ReportAnalog{Channel: 1, Enable: false})
	go env.board.Report()
	require.Equal(t, codec.I2CReply{Address: 0x40, Register: codec.NoRegister, Data: []byte{7, 8}}, env.recv())
}

func TestBoardAutoReport(t *testing.T) {
	board := NewBoard(20, 6)
	board.AutoReport = true
	board.Announce = true
	env := newBoardTestEnv(t, board)

	require.Equal(t, codec.ProtocolVersionReport{Major: ProtocolMajor, Minor: ProtocolMinor}, env.recv())
	require.Equal(t, codec.FirmwareReport{Major: 2, Minor: 5, Name: DefaultName}, env.recv())

	board.SetInput(16, 99)
	env.send(codec.SetSamplingInterval{Interval: 5 * time.Millisecond}, codec.ReportAnalog{Channel: 2, Enable: true})
	require.Equal(t, codec.AnalogPinReport{Channel: 2, Value: 99}, env.recv())
	require.Equal(t, 5*time.Millisecond, board.SamplingInterval())
}
