package sh

import (
	"bytes"
	"context"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/robotalks/firmata.go/pkg/env"
	"github.com/robotalks/firmata.go/pkg/firmata"
	"github.com/robotalks/firmata.go/pkg/sim"
	"github.com/robotalks/firmata.go/pkg/transport"
)

type shellTestEnv struct {
	t     *testing.T
	shell *Shell
}

func newShellTestEnv(t *testing.T) *shellTestEnv {
	conf := env.NewConfig()
	conf.URL = "sim://?auto-report=false"
	conf.Trace = ""
	s := &Shell{Config: conf}
	t.Cleanup(s.Disconnect)
	return &shellTestEnv{t: t, shell: s}
}

func (e *shellTestEnv) exec(line string) (string, error) {
	args := strings.Fields(line)
	cmd := Find(args[0])
	require.NotNil(e.t, cmd, args[0])
	var out bytes.Buffer
	err := cmd.Exec(context.Background(), e.shell, args[1:], &out)
	return strings.TrimSpace(out.String()), err
}

func (e *shellTestEnv) run(line string) string {
	out, err := e.exec(line)
	require.NoError(e.t, err, line)
	return out
}

func TestNotConnected(t *testing.T) {
	e := newShellTestEnv(t)
	_, err := e.exec("firmware")
	require.ErrorIs(t, err, firmata.ErrNotConnected)
	require.Equal(t, "OK", e.run("disconnect"))
}

func TestQueryCommands(t *testing.T) {
	e := newShellTestEnv(t)
	require.Equal(t, "OK", e.run("connect"))
	require.Equal(t, sim.DefaultName+" 2.5", e.run("fw"))
	require.Equal(t, "2.6", e.run("version"))
	require.Contains(t, e.run("caps"), "pin  3: [input: 1, output: 1, pullup: 1, pwm: 8, servo: 14]")
	require.Contains(t, e.run("mapping"), "A0: pin 14")

	e.shell.OutputJSON = true
	require.Equal(t, `{"Name":"`+sim.DefaultName+`","Major":2,"Minor":5}`, e.run("firmware"))
	require.Equal(t, `{"Major":2,"Minor":6}`, e.run("version"))
}

func TestPinCommands(t *testing.T) {
	e := newShellTestEnv(t)
	e.run("connect")
	require.Equal(t, "OK", e.run("mode 13 output"))
	require.Equal(t, "OK", e.run("dwrite 13 on"))
	require.Equal(t, "pin 13: output   1", e.run("pin 13"))
	require.Equal(t, "pin 13: output 1", e.run("pinstate 13"))
	require.Equal(t, "OK", e.run("mode 3 pwm"))
	require.Equal(t, "OK", e.run("awrite 3 0x80"))
	require.Equal(t, "OK", e.run("mode 9 servo"))
	require.Equal(t, "OK", e.run("servo 9 90 544 2400"))
	require.Contains(t, e.run("pins"), "pin  9: servo    90")

	e.shell.OutputJSON = true
	require.Equal(t, `{"pin":14,"mode":"unknown","value":0,"channel":0}`, e.run("pin 14"))

	_, err := e.exec("mode 4 pwm")
	require.ErrorIs(t, err, firmata.ErrInvalidArgument)
	_, err = e.exec("dwrite 13 maybe")
	require.Error(t, err)
	_, err = e.exec("awrite 3")
	require.Error(t, err)
	_, err = e.exec("pin 99")
	require.Error(t, err)
}

func TestMiscCommands(t *testing.T) {
	e := newShellTestEnv(t)
	e.run("connect sim://?pins=20&analog=6&auto-report=false")
	require.NotNil(t, e.shell.Env.Client)

	require.Equal(t, "OK", e.run("report analog 0 on"))
	require.Equal(t, "OK", e.run("report d 1 off"))
	_, err := e.exec("report x 1 on")
	require.Error(t, err)
	require.Equal(t, "OK", e.run("sampling 50"))
	require.Equal(t, "OK", e.run("i2c-config 100"))
	require.Equal(t, "OK", e.run("i2c-write 0x68 0x10 1 2 3"))
	require.Equal(t, "01 02", e.run("i2c-read 0x68 0x10 2"))
	e.shell.OutputJSON = true
	require.Equal(t, "[1,2,3]", e.run("i2c-read 0x68 0x10 3"))
	e.shell.OutputJSON = false
	_, err = e.exec("i2c-write 0x68 - 256")
	require.Error(t, err)
	require.Equal(t, "OK", e.run("string hello board"))
	require.Equal(t, "OK", e.run("reset"))
	require.Equal(t, "OK", e.run("disconnect"))
	require.Nil(t, e.shell.Env)
}

func TestConnectFailure(t *testing.T) {
	e := newShellTestEnv(t)
	_, err := e.exec("connect gopher://x")
	var schemeErr *transport.UnsupportedSchemeError
	require.ErrorAs(t, err, &schemeErr)
	require.Nil(t, e.shell.Env)
}

func TestReplayCommand(t *testing.T) {
	e := newShellTestEnv(t)
	path := filepath.Join(t.TempDir(), "wire.trace")
	e.shell.Config.Trace = path
	require.Equal(t, "OK", e.run("connect"))
	require.Equal(t, sim.DefaultName+" 2.5", e.run("fw"))
	require.Equal(t, "OK", e.run("disconnect"))

	out := e.run("replay " + path)
	require.Contains(t, out, "OUT RequestFirmware")
	require.Contains(t, out, "IN  FirmwareReport {Major:2 Minor:5 Name:"+sim.DefaultName+"}")

	e.shell.OutputJSON = true
	out = e.run("replay " + path)
	require.Contains(t, out, `"direction":"OUT","type":"RequestFirmware"`)

	_, err := e.exec("replay")
	require.Error(t, err)
	_, err = e.exec("replay " + filepath.Join(t.TempDir(), "missing"))
	require.Error(t, err)
}
