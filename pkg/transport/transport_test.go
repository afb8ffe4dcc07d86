package transport

import (
	"context"
	"errors"
	"io"
	"net"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/robotalks/firmata.go/pkg/firmata"
	"github.com/robotalks/firmata.go/pkg/sim"
	"github.com/robotalks/firmata.go/pkg/transport/websocket"
)

func requireFirmware(t *testing.T, rw io.ReadWriteCloser) {
	c := firmata.New(rw)
	defer c.Close()
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	fw, err := c.RequestFirmware(ctx)
	require.NoError(t, err)
	require.Equal(t, sim.DefaultName, fw.Name)
}

func TestOpenSim(t *testing.T) {
	rw, err := Open(context.Background(), "sim://?pins=10&analog=2&auto-report=false")
	require.NoError(t, err)
	conn := rw.(*SimConn)
	require.Len(t, conn.Board.Capabilities, 10)
	require.False(t, conn.Board.AutoReport)
	requireFirmware(t, rw)
	require.NoError(t, rw.Close())
}

func TestOpenSimInvalid(t *testing.T) {
	for _, u := range []string{
		"sim://?pins=0",
		"sim://?pins=200",
		"sim://?pins=4&analog=5",
		"sim://?pins=x",
	} {
		_, err := Open(context.Background(), u)
		require.Error(t, err, u)
	}
}

func TestOpenUnsupported(t *testing.T) {
	_, err := Open(context.Background(), "gopher://host")
	var schemeErr *UnsupportedSchemeError
	require.True(t, errors.As(err, &schemeErr))
	require.Equal(t, "gopher", schemeErr.Scheme)
}

func TestOpenSerialInvalidBaud(t *testing.T) {
	_, err := Open(context.Background(), "serial:///dev/null?baud=fast")
	require.Error(t, err)
	require.True(t, strings.Contains(err.Error(), "baud"))
}

func TestOpenTCP(t *testing.T) {
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	defer ln.Close()
	go func() {
		conn, err := ln.Accept()
		if err != nil {
			return
		}
		sim.NewBoard(20, 6).Serve(context.Background(), conn)
	}()
	rw, err := Open(context.Background(), "tcp://"+ln.Addr().String())
	require.NoError(t, err)
	requireFirmware(t, rw)
}

func TestOpenTCPRefused(t *testing.T) {
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	addr := ln.Addr().String()
	ln.Close()
	_, err = Open(context.Background(), "tcp://"+addr, WithDialTimeout(time.Second))
	require.Error(t, err)
}

func TestOpenWebsocket(t *testing.T) {
	server := httptest.NewServer(websocket.Handler(func(rw io.ReadWriteCloser) {
		sim.NewBoard(20, 6).Serve(context.Background(), rw)
	}))
	defer server.Close()
	rw, err := Open(context.Background(), "ws"+strings.TrimPrefix(server.URL, "http"), WithOrigin(server.URL))
	require.NoError(t, err)
	requireFirmware(t, rw)
}
