// Package sh provides an interactive shell over a Firmata client.
package sh

import (
	"bytes"
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"io"

	"github.com/abiosoft/ishell"
	"github.com/golang/glog"

	"github.com/robotalks/firmata.go/pkg/env"
	"github.com/robotalks/firmata.go/pkg/firmata"
)

// Shell provides ishell backed interactive shell.
type Shell struct {
	Interactive bool
	OutputJSON  bool
	AutoConnect bool

	Shell  *ishell.Shell
	Config *env.Config
	Env    *env.Env
}

const (
	shellKey          = "$shell"
	unconnectedPrompt = "[none] > "
)

var (
	evalOnly   bool
	outputJSON bool
)

func init() {
	flag.BoolVar(&evalOnly, "e", evalOnly, "Evaluation only, no interactive shell.")
	flag.BoolVar(&outputJSON, "json", outputJSON, "Print output in JSON.")
}

// New creates a new shell.
func New(conf *env.Config) *Shell {
	s := &Shell{
		Interactive: !evalOnly,
		OutputJSON:  outputJSON,
		Shell:       ishell.New(),
		Config:      conf,
	}
	s.Shell.Set(shellKey, s)
	s.Shell.SetPrompt(unconnectedPrompt)
	for _, cmd := range Commands {
		s.Shell.AddCmd(cmd.ishellCmd())
	}
	return s
}

// ShellFrom gets Shell from ishell context.
func ShellFrom(c *ishell.Context) *Shell {
	return c.Get(shellKey).(*Shell)
}

// WithAutoConnect sets AutoConnect.
func (s *Shell) WithAutoConnect(en bool) *Shell {
	s.AutoConnect = en
	return s
}

// Client returns the connected client or firmata.ErrNotConnected.
func (s *Shell) Client() (*firmata.Client, error) {
	if s.Env == nil {
		return nil, firmata.ErrNotConnected
	}
	return s.Env.Client, nil
}

// Connect connects the device at url, or the configured one when empty.
func (s *Shell) Connect(ctx context.Context, url string) error {
	conf := *s.Config
	if url != "" {
		conf.URL = url
	}
	e, err := conf.Connect(ctx)
	if err != nil {
		return err
	}
	s.Disconnect()
	s.Env = e
	if s.Shell != nil {
		s.Shell.SetPrompt(fmt.Sprintf("[%s] > ", conf.URL))
	}
	return nil
}

// Disconnect closes the current connection.
func (s *Shell) Disconnect() {
	if s.Env == nil {
		return
	}
	if err := s.Env.Close(); err != nil {
		glog.Warningf("disconnect: %v", err)
	}
	s.Env = nil
	if s.Shell != nil {
		s.Shell.SetPrompt(unconnectedPrompt)
	}
}

// output prints v as JSON in JSON mode, or text otherwise.
func (s *Shell) output(w io.Writer, v interface{}, text string) error {
	if s.OutputJSON {
		out, err := json.Marshal(v)
		if err != nil {
			return err
		}
		_, err = fmt.Fprintln(w, string(out))
		return err
	}
	_, err := fmt.Fprintln(w, text)
	return err
}

// Run runs the shell.
func (s *Shell) Run(args ...string) {
	if s.AutoConnect && s.Config.URL != "" {
		if s.Interactive {
			s.Shell.Printf("Connecting %s ...\n", s.Config.URL)
		}
		if err := s.Connect(context.Background(), ""); err != nil {
			glog.Exitf("connect %q failed: %v", s.Config.URL, err)
		}
	}
	defer s.Disconnect()

	if len(args) > 0 {
		if err := s.Shell.Process(args...); err != nil {
			glog.Exit(err)
		}
		return
	}
	if s.Interactive {
		s.Shell.Run()
		return
	}
	glog.Exit("command expected")
}

// Command is a shell command writing its output to w.
type Command struct {
	Name      string
	Aliases   []string
	Help      string
	Connected bool
	Run       func(ctx context.Context, s *Shell, args []string, w io.Writer) error
}

// Exec runs the command outside of ishell.
func (cmd *Command) Exec(ctx context.Context, s *Shell, args []string, w io.Writer) error {
	if cmd.Connected && s.Env == nil {
		return firmata.ErrNotConnected
	}
	return cmd.Run(ctx, s, args, w)
}

func (cmd *Command) ishellCmd() *ishell.Cmd {
	return &ishell.Cmd{
		Name:    cmd.Name,
		Aliases: cmd.Aliases,
		Help:    cmd.Help,
		Func: func(c *ishell.Context) {
			var out bytes.Buffer
			err := cmd.Exec(context.Background(), ShellFrom(c), c.Args, &out)
			if out.Len() > 0 {
				c.Print(out.String())
			}
			if err != nil {
				c.Err(err)
			}
		},
	}
}

// Main is a helper to provide a single call in main.
func Main() {
	flag.Parse()
	New(env.NewConfig()).WithAutoConnect(true).Run(flag.Args()...)
}
