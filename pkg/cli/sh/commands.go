package sh

import (
	"context"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/robotalks/firmata.go/pkg/firmata"
	"github.com/robotalks/firmata.go/pkg/firmata/codec"
	"github.com/robotalks/firmata.go/pkg/trace"
)

func parseInt(name, s string) (int, error) {
	n, err := strconv.ParseInt(s, 0, 0)
	if err != nil {
		return 0, fmt.Errorf("invalid %s %q", name, s)
	}
	return int(n), nil
}

func parseInts(names []string, args []string) ([]int, error) {
	if len(args) < len(names) {
		return nil, fmt.Errorf("expect %s", strings.ToUpper(strings.Join(names, " ")))
	}
	values := make([]int, len(names))
	for n, name := range names {
		v, err := parseInt(name, args[n])
		if err != nil {
			return nil, err
		}
		values[n] = v
	}
	return values, nil
}

func parseBool(s string) (bool, error) {
	switch strings.ToLower(s) {
	case "1", "on", "high", "true":
		return true, nil
	case "0", "off", "low", "false":
		return false, nil
	}
	return false, fmt.Errorf("invalid switch %q", s)
}

func client(s *Shell) *firmata.Client {
	c, _ := s.Client()
	return c
}

func ok(w io.Writer) error {
	_, err := fmt.Fprintln(w, "OK")
	return err
}

type pinJSON struct {
	Pin     int    `json:"pin"`
	Mode    string `json:"mode"`
	Value   int    `json:"value"`
	Channel *int   `json:"channel,omitempty"`
}

func pinInfo(index int, p firmata.Pin) pinJSON {
	info := pinJSON{Pin: index, Mode: p.Mode.String(), Value: p.Value}
	if p.AnalogChannel != codec.NoChannel {
		ch := p.AnalogChannel
		info.Channel = &ch
	}
	return info
}

func (p pinJSON) String() string {
	s := fmt.Sprintf("pin %2d: %-8s %d", p.Pin, p.Mode, p.Value)
	if p.Channel != nil {
		s += fmt.Sprintf(" (A%d)", *p.Channel)
	}
	return s
}

type replayJSON struct {
	Time      time.Time   `json:"time"`
	Session   string      `json:"session"`
	Direction string      `json:"direction"`
	Type      string      `json:"type"`
	Frame     interface{} `json:"frame,omitempty"`
	Error     string      `json:"error,omitempty"`
}

func (r replayJSON) String() string {
	session := r.Session
	if len(session) > 8 {
		session = session[:8]
	}
	prefix := fmt.Sprintf("%s %s %-3s", r.Time.Format("15:04:05.000"), session, r.Direction)
	if r.Error != "" {
		return prefix + " error: " + r.Error
	}
	return fmt.Sprintf("%s %s %+v", prefix, r.Type, r.Frame)
}

func replayFrame(s *Shell, w io.Writer, frame trace.Frame) error {
	entry := replayJSON{
		Time:      frame.Timestamp,
		Session:   frame.Session,
		Direction: frame.Direction.String(),
	}
	var values []interface{}
	for _, msg := range frame.Messages {
		values = append(values, msg)
	}
	for _, cmd := range frame.Commands {
		values = append(values, cmd)
	}
	for _, v := range values {
		entry.Type, entry.Frame = strings.TrimPrefix(fmt.Sprintf("%T", v), "codec."), v
		if err := s.output(w, entry, entry.String()); err != nil {
			return err
		}
	}
	if frame.Err != nil {
		entry.Type, entry.Frame, entry.Error = "", nil, frame.Err.Error()
		return s.output(w, entry, entry.String())
	}
	return nil
}

// Commands are the shell commands.
var Commands = []*Command{
	{
		Name:    "connect",
		Aliases: []string{"c"},
		Help:    "[URL]",
		Run: func(ctx context.Context, s *Shell, args []string, w io.Writer) error {
			var url string
			if len(args) > 0 {
				url = args[0]
			}
			if err := s.Connect(ctx, url); err != nil {
				return err
			}
			return ok(w)
		},
	},
	{
		Name:    "disconnect",
		Aliases: []string{"d"},
		Run: func(_ context.Context, s *Shell, _ []string, w io.Writer) error {
			s.Disconnect()
			return ok(w)
		},
	},
	{
		Name:      "firmware",
		Aliases:   []string{"fw"},
		Connected: true,
		Run: func(ctx context.Context, s *Shell, _ []string, w io.Writer) error {
			fw, err := client(s).RequestFirmware(ctx)
			if err != nil {
				return err
			}
			return s.output(w, fw, fmt.Sprintf("%s %d.%d", fw.Name, fw.Major, fw.Minor))
		},
	},
	{
		Name:      "version",
		Connected: true,
		Run: func(ctx context.Context, s *Shell, _ []string, w io.Writer) error {
			v, err := client(s).RequestProtocolVersion(ctx)
			if err != nil {
				return err
			}
			return s.output(w, v, fmt.Sprintf("%d.%d", v.Major, v.Minor))
		},
	},
	{
		Name:      "caps",
		Connected: true,
		Run: func(ctx context.Context, s *Shell, _ []string, w io.Writer) error {
			report, err := client(s).RequestCapabilities(ctx)
			if err != nil {
				return err
			}
			return s.output(w, report.Pins, strings.TrimSuffix(report.String(), "\n"))
		},
	},
	{
		Name:      "mapping",
		Connected: true,
		Run: func(ctx context.Context, s *Shell, _ []string, w io.Writer) error {
			report, err := client(s).RequestAnalogMapping(ctx)
			if err != nil {
				return err
			}
			var lines []string
			for pin, ch := range report.Channels {
				if ch != codec.NoChannel {
					lines = append(lines, fmt.Sprintf("A%d: pin %d", ch, pin))
				}
			}
			return s.output(w, report.Channels, strings.Join(lines, "\n"))
		},
	},
	{
		Name:      "mode",
		Help:      "PIN MODE",
		Connected: true,
		Run: func(_ context.Context, s *Shell, args []string, w io.Writer) error {
			if len(args) < 2 {
				return fmt.Errorf("expect PIN MODE")
			}
			pin, err := parseInt("pin", args[0])
			if err != nil {
				return err
			}
			mode, err := codec.ParsePinMode(args[1])
			if err != nil {
				return err
			}
			if err := client(s).SetPinMode(pin, mode); err != nil {
				return err
			}
			return ok(w)
		},
	},
	{
		Name:      "dwrite",
		Help:      "PIN 0|1",
		Connected: true,
		Run: func(_ context.Context, s *Shell, args []string, w io.Writer) error {
			if len(args) < 2 {
				return fmt.Errorf("expect PIN 0|1")
			}
			pin, err := parseInt("pin", args[0])
			if err != nil {
				return err
			}
			value, err := parseBool(args[1])
			if err != nil {
				return err
			}
			if err := client(s).DigitalWritePin(pin, value); err != nil {
				return err
			}
			return ok(w)
		},
	},
	{
		Name:      "awrite",
		Help:      "PIN VALUE",
		Connected: true,
		Run: func(_ context.Context, s *Shell, args []string, w io.Writer) error {
			v, err := parseInts([]string{"pin", "value"}, args)
			if err != nil {
				return err
			}
			if err := client(s).AnalogWrite(v[0], v[1]); err != nil {
				return err
			}
			return ok(w)
		},
	},
	{
		Name:      "servo",
		Help:      "PIN DEGREES [MIN_PULSE MAX_PULSE]",
		Connected: true,
		Run: func(_ context.Context, s *Shell, args []string, w io.Writer) error {
			v, err := parseInts([]string{"pin", "degrees"}, args)
			if err != nil {
				return err
			}
			if len(args) >= 4 {
				pulses, err := parseInts([]string{"min", "max"}, args[2:])
				if err != nil {
					return err
				}
				if err := client(s).ServoConfig(v[0], pulses[0], pulses[1]); err != nil {
					return err
				}
			}
			if err := client(s).ServoWrite(v[0], v[1]); err != nil {
				return err
			}
			return ok(w)
		},
	},
	{
		Name:      "pin",
		Help:      "PIN",
		Connected: true,
		Run: func(_ context.Context, s *Shell, args []string, w io.Writer) error {
			v, err := parseInts([]string{"pin"}, args)
			if err != nil {
				return err
			}
			p, found := client(s).State().Pin(v[0])
			if !found {
				return fmt.Errorf("pin %d unknown", v[0])
			}
			info := pinInfo(v[0], p)
			return s.output(w, info, info.String())
		},
	},
	{
		Name:      "pins",
		Connected: true,
		Run: func(_ context.Context, s *Shell, _ []string, w io.Writer) error {
			entries := client(s).State().Pins()
			infos := make([]pinJSON, len(entries))
			lines := make([]string, len(entries))
			for n, entry := range entries {
				infos[n] = pinInfo(entry.Index, entry.Pin)
				lines[n] = infos[n].String()
			}
			return s.output(w, infos, strings.Join(lines, "\n"))
		},
	},
	{
		Name:      "pinstate",
		Help:      "PIN",
		Connected: true,
		Run: func(ctx context.Context, s *Shell, args []string, w io.Writer) error {
			v, err := parseInts([]string{"pin"}, args)
			if err != nil {
				return err
			}
			st, err := client(s).RequestPinState(ctx, v[0])
			if err != nil {
				return err
			}
			return s.output(w, st, fmt.Sprintf("pin %d: %s %d", st.Pin, st.Mode, st.State))
		},
	},
	{
		Name:      "report",
		Help:      "analog|digital N on|off",
		Connected: true,
		Run: func(_ context.Context, s *Shell, args []string, w io.Writer) error {
			if len(args) < 3 {
				return fmt.Errorf("expect analog|digital N on|off")
			}
			n, err := parseInt("number", args[1])
			if err != nil {
				return err
			}
			enable, err := parseBool(args[2])
			if err != nil {
				return err
			}
			switch args[0] {
			case "analog", "a":
				err = client(s).ReportAnalog(n, enable)
			case "digital", "d":
				err = client(s).ReportDigital(n, enable)
			default:
				err = fmt.Errorf("unknown report %q", args[0])
			}
			if err != nil {
				return err
			}
			return ok(w)
		},
	},
	{
		Name:      "sampling",
		Help:      "MILLISECONDS",
		Connected: true,
		Run: func(_ context.Context, s *Shell, args []string, w io.Writer) error {
			v, err := parseInts([]string{"ms"}, args)
			if err != nil {
				return err
			}
			if err := client(s).SetSamplingInterval(time.Duration(v[0]) * time.Millisecond); err != nil {
				return err
			}
			return ok(w)
		},
	},
	{
		Name:      "i2c-config",
		Help:      "DELAY_US",
		Connected: true,
		Run: func(_ context.Context, s *Shell, args []string, w io.Writer) error {
			v, err := parseInts([]string{"delay"}, args)
			if err != nil {
				return err
			}
			if err := client(s).I2CConfig(time.Duration(v[0]) * time.Microsecond); err != nil {
				return err
			}
			return ok(w)
		},
	},
	{
		Name:      "i2c-read",
		Help:      "ADDR REG|- N",
		Connected: true,
		Run: func(ctx context.Context, s *Shell, args []string, w io.Writer) error {
			if len(args) < 3 {
				return fmt.Errorf("expect ADDR REG|- N")
			}
			addr, err := parseInt("address", args[0])
			if err != nil {
				return err
			}
			reg := codec.NoRegister
			if args[1] != "-" {
				if reg, err = parseInt("register", args[1]); err != nil {
					return err
				}
			}
			n, err := parseInt("length", args[2])
			if err != nil {
				return err
			}
			data, err := client(s).I2CRead(ctx, addr, reg, n)
			if err != nil {
				return err
			}
			values := make([]int, len(data))
			for n, b := range data {
				values[n] = int(b)
			}
			return s.output(w, values, fmt.Sprintf("% x", data))
		},
	},
	{
		Name:      "i2c-write",
		Help:      "ADDR REG|- BYTES...",
		Connected: true,
		Run: func(_ context.Context, s *Shell, args []string, w io.Writer) error {
			if len(args) < 2 {
				return fmt.Errorf("expect ADDR REG|- BYTES...")
			}
			addr, err := parseInt("address", args[0])
			if err != nil {
				return err
			}
			reg := codec.NoRegister
			if args[1] != "-" {
				if reg, err = parseInt("register", args[1]); err != nil {
					return err
				}
			}
			data := make([]byte, 0, len(args)-2)
			for _, arg := range args[2:] {
				b, err := parseInt("byte", arg)
				if err != nil {
					return err
				}
				if b < 0 || b > 0xFF {
					return fmt.Errorf("byte out of range: %d", b)
				}
				data = append(data, byte(b))
			}
			if err := client(s).I2CWrite(addr, reg, data); err != nil {
				return err
			}
			return ok(w)
		},
	},
	{
		Name:      "string",
		Help:      "TEXT...",
		Connected: true,
		Run: func(_ context.Context, s *Shell, args []string, w io.Writer) error {
			if err := client(s).StringWrite(strings.Join(args, " ")); err != nil {
				return err
			}
			return ok(w)
		},
	},
	{
		Name:      "reset",
		Connected: true,
		Run: func(_ context.Context, s *Shell, _ []string, w io.Writer) error {
			if err := client(s).SystemReset(); err != nil {
				return err
			}
			return ok(w)
		},
	},
	{
		Name: "replay",
		Help: "FILE",
		Run: func(_ context.Context, s *Shell, args []string, w io.Writer) error {
			if len(args) < 1 {
				return fmt.Errorf("expect FILE")
			}
			f, err := os.Open(args[0])
			if err != nil {
				return err
			}
			defer f.Close()
			return trace.Replay(f, func(frame trace.Frame) error {
				return replayFrame(s, w, frame)
			})
		},
	},
}

// Find looks up a command by name or alias.
func Find(name string) *Command {
	for _, cmd := range Commands {
		if cmd.Name == name {
			return cmd
		}
		for _, alias := range cmd.Aliases {
			if alias == name {
				return cmd
			}
		}
	}
	return nil
}
