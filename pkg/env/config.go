// Package env sets up a Firmata client from flags, environment
// variables and an optional YAML file.
package env

import (
	"context"
	"flag"
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/denisbrodbeck/machineid"
	"github.com/golang/glog"
	"gopkg.in/yaml.v3"

	"github.com/robotalks/firmata.go/pkg/firmata"
	fx "github.com/robotalks/firmata.go/pkg/framework"
	"github.com/robotalks/firmata.go/pkg/trace"
	"github.com/robotalks/firmata.go/pkg/transport"
)

// Config provides common options to connect to a board.
type Config struct {
	// URL of the device, e.g. serial:///dev/ttyACM0, tcp://host:3030, sim://.
	URL string `yaml:"url"`
	// BaudRate of serial devices without a baud query parameter.
	BaudRate int `yaml:"baud"`
	// Timeout of queries.
	Timeout time.Duration `yaml:"timeout"`
	// Trace is a file to record wire traffic into.
	Trace string `yaml:"trace"`
	// Populate queries firmware, capabilities and analog mapping on connect.
	Populate bool `yaml:"populate"`

	// MQTTURL is the broker for the bridge, e.g. mqtt://host:1883/firmata/.
	MQTTURL string `yaml:"mqtt"`
	// BoardID names the board on MQTT, the machine id by default.
	BoardID string `yaml:"id"`
}

var defaultConfig = Config{
	URL:      "sim://",
	BaudRate: transport.DefaultBaudRate,
	Timeout:  firmata.DefaultTimeout,
	Populate: true,
	MQTTURL:  "mqtt://localhost:1883/firmata/",
}

func init() {
	if err := defaultConfig.LoadEnv(os.Getenv); err != nil {
		glog.Warningf("env: %v", err)
	}
}

// LoadEnv overrides fields from FIRMATA_* variables.
func (c *Config) LoadEnv(getenv func(string) string) error {
	if val := getenv("FIRMATA_URL"); val != "" {
		c.URL = val
	}
	if val := getenv("FIRMATA_BAUD"); val != "" {
		baud, err := strconv.Atoi(val)
		if err != nil {
			return fmt.Errorf("invalid FIRMATA_BAUD %q", val)
		}
		c.BaudRate = baud
	}
	if val := getenv("FIRMATA_TIMEOUT"); val != "" {
		d, err := time.ParseDuration(val)
		if err != nil {
			return fmt.Errorf("invalid FIRMATA_TIMEOUT %q: %w", val, err)
		}
		c.Timeout = d
	}
	if val := getenv("FIRMATA_TRACE"); val != "" {
		c.Trace = val
	}
	if val := getenv("FIRMATA_MQTT_URL"); val != "" {
		c.MQTTURL = val
	}
	if val := getenv("FIRMATA_BOARD_ID"); val != "" {
		c.BoardID = val
	}
	return nil
}

// LoadFile overrides fields present in a YAML file.
func (c *Config) LoadFile(path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return err
	}
	if err := yaml.Unmarshal(data, c); err != nil {
		return fmt.Errorf("%s: %w", path, err)
	}
	return nil
}

// SetupFlags sets up command line flags. -config loads a file into the
// values of flags not given before it.
func SetupFlags() {
	SetupFlagSet(flag.CommandLine, &defaultConfig)
}

// SetupFlagSet registers flags of c on fs.
func SetupFlagSet(fs *flag.FlagSet, c *Config) {
	fs.Func("config", "YAML config file", c.LoadFile)
	fs.StringVar(&c.URL, "url", c.URL, "Device URL (serial, tcp, ws, mqtt, sim)")
	fs.IntVar(&c.BaudRate, "baud", c.BaudRate, "Serial baud rate")
	fs.DurationVar(&c.Timeout, "timeout", c.Timeout, "Query timeout")
	fs.StringVar(&c.Trace, "trace", c.Trace, "Record wire traffic into file")
	fs.BoolVar(&c.Populate, "populate", c.Populate, "Query board info on connect")
	fs.StringVar(&c.MQTTURL, "mqtt", c.MQTTURL, "MQTT broker URL")
	fs.StringVar(&c.BoardID, "id", c.BoardID, "Board ID on MQTT")
}

// Default gets the default config.
func Default() *Config {
	return &defaultConfig
}

// NewConfig creates a Config with default configurations.
func NewConfig() *Config {
	conf := defaultConfig
	return &conf
}

// MachineID retrieves the unique ID identifying the machine.
func MachineID() (string, error) {
	return machineid.ProtectedID("firmata")
}

// ID returns BoardID or the machine id.
func (c *Config) ID() (string, error) {
	if c.BoardID != "" {
		return c.BoardID, nil
	}
	return MachineID()
}

// Validate checks the configuration.
func (c *Config) Validate() error {
	if c.URL == "" {
		return fmt.Errorf("device URL is required")
	}
	if c.Timeout <= 0 {
		return fmt.Errorf("timeout must be positive")
	}
	if c.BaudRate <= 0 {
		return fmt.Errorf("invalid baud rate %d", c.BaudRate)
	}
	return nil
}

// Env is a connected client with the resources set up for it.
type Env struct {
	Config   *Config
	Client   *firmata.Client
	Recorder *trace.Recorder
}

// Connect opens the device and creates a client. opts are applied
// after the ones derived from the config.
func (c *Config) Connect(ctx context.Context, opts ...firmata.Option) (*Env, error) {
	if err := c.Validate(); err != nil {
		return nil, err
	}
	env := &Env{Config: c}
	var tracer firmata.Tracer = trace.GlogTracer{}
	if c.Trace != "" {
		rec, err := trace.Create(c.Trace)
		if err != nil {
			return nil, fmt.Errorf("create trace: %w", err)
		}
		env.Recorder = rec
		tracer = trace.Tracers{rec, trace.GlogTracer{}}
	}
	t, err := transport.Open(ctx, c.URL, transport.WithBaudRate(c.BaudRate))
	if err != nil {
		env.Close()
		return nil, fmt.Errorf("open %s: %w", c.URL, err)
	}
	clientOpts := append([]firmata.Option{
		firmata.WithTimeout(c.Timeout),
		firmata.WithTracer(tracer),
	}, opts...)
	env.Client = firmata.New(t, clientOpts...)
	glog.Infof("connected to %s", c.URL)
	if c.Populate {
		if err := env.Client.Populate(ctx); err != nil {
			env.Close()
			return nil, fmt.Errorf("populate: %w", err)
		}
	}
	return env, nil
}

// MustConnect connects and fails on error.
func (c *Config) MustConnect(ctx context.Context, opts ...firmata.Option) *Env {
	env, err := c.Connect(ctx, opts...)
	if err != nil {
		glog.Exit(err)
	}
	return env
}

// Close closes the client and the trace.
func (e *Env) Close() error {
	var errs fx.AggregatedError
	if e.Client != nil {
		if err := e.Client.Close(); err != nil && err != firmata.ErrClosed {
			errs.Add(err)
		}
	}
	if e.Recorder != nil {
		errs.Add(e.Recorder.Close())
	}
	return errs.Aggregate()
}
