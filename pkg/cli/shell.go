// Package cli implements the interactive neurocli shell on top of the
// binding client.
package cli

import (
	"encoding/json"
	"flag"
	"fmt"
	"log"
	"net"
	"os"
	"strconv"
	"time"

	"github.com/abiosoft/ishell"

	"github.com/atspaeth/Neurobot/pkg/binding"
	"github.com/atspaeth/Neurobot/pkg/drive"
	"github.com/atspaeth/Neurobot/pkg/hsr"
)

// Shell provides ishell backed interactive shell.
type Shell struct {
	Interactive bool
	OutputJSON  bool

	Shell  *ishell.Shell
	Socket string

	Client *binding.Client
	conn   net.Conn
}

const (
	shellKey           = "$shell"
	disconnectedPrompt = "[none] > "
)

var (
	// flags

	evalOnly   bool
	outputJSON bool
	socketPath = "/run/neurobot.sock"
)

func init() {
	if val := os.Getenv("NEUROBOT_SOCKET"); val != "" {
		socketPath = val
	}
	flag.BoolVar(&evalOnly, "e", evalOnly, "Evaluation only, no interactive shell.")
	flag.BoolVar(&outputJSON, "json", outputJSON, "Print output in JSON.")
	flag.StringVar(&socketPath, "socket", socketPath, "Daemon socket to connect to.")
}

// New creates a new shell.
func New(socket string) *Shell {
	s := &Shell{
		Interactive: !evalOnly,
		OutputJSON:  outputJSON,

		Shell:  ishell.New(),
		Socket: socket,
	}
	s.Shell.Set(shellKey, s)
	s.Shell.SetPrompt(disconnectedPrompt)
	for _, cmd := range commands {
		s.Shell.AddCmd(cmd)
	}
	return s
}

// ShellFrom gets Shell from ishell context.
func ShellFrom(c *ishell.Context) *Shell {
	return c.Get(shellKey).(*Shell)
}

// MustBeConnected wraps command func requires a connection.
func MustBeConnected(fn func(c *ishell.Context)) func(c *ishell.Context) {
	return func(c *ishell.Context) {
		if ShellFrom(c).Client == nil {
			c.Err(fmt.Errorf("not connected"))
			return
		}
		fn(c)
	}
}

// Connect dials the daemon socket.
func (s *Shell) Connect() error {
	client, conn, err := binding.Dial(s.Socket)
	if err != nil {
		return err
	}
	s.Client, s.conn = client, conn
	s.refreshPrompt()
	return nil
}

// Disconnect drops the daemon connection.
func (s *Shell) Disconnect() {
	if s.conn != nil {
		s.conn.Close()
		s.Client, s.conn = nil, nil
		s.Shell.SetPrompt(disconnectedPrompt)
	}
}

func (s *Shell) refreshPrompt() {
	state, err := s.Client.State()
	if err != nil {
		s.Shell.SetPrompt("[?] > ")
		return
	}
	s.Shell.SetPrompt(fmt.Sprintf("[%s] > ", state))
}

func (s *Shell) printOK(c *ishell.Context) {
	if s.OutputJSON {
		c.Println(`{"ok":true}`)
		return
	}
	c.Println("OK")
}

// Run runs the shell.
func (s *Shell) Run(args ...string) {
	if err := s.Connect(); err != nil {
		log.Fatalf("connect %q failed: %v", s.Socket, err)
	}
	defer s.Disconnect()

	if len(args) > 0 {
		if err := s.Shell.Process(args...); err != nil {
			log.Fatalln(err)
		}
		return
	}
	if s.Interactive {
		s.Shell.Run()
		return
	}
	log.Fatalln("command expected")
}

var commands = []*ishell.Cmd{
	{
		Name: "open",
		Help: "[DEVICE]",
		Func: MustBeConnected(func(c *ishell.Context) {
			s := ShellFrom(c)
			path := hsr.DefaultDevicePath
			if len(c.Args) > 0 {
				path = c.Args[0]
			}
			if err := s.Client.Open(path); err != nil {
				c.Err(err)
				return
			}
			s.refreshPrompt()
			s.printOK(c)
		}),
	},
	{
		Name:    "configure",
		Aliases: []string{"conf"},
		Help:    "[PERIOD-US [PWM-MAX]]",
		Func: MustBeConnected(func(c *ishell.Context) {
			s := ShellFrom(c)
			conf := drive.DefaultConfig()
			if len(c.Args) > 0 {
				us, err := strconv.Atoi(c.Args[0])
				if err != nil {
					c.Err(err)
					return
				}
				conf.Period = time.Duration(us) * time.Microsecond
			}
			if len(c.Args) > 1 {
				pm, err := strconv.ParseFloat(c.Args[1], 32)
				if err != nil {
					c.Err(err)
					return
				}
				conf.PWMMax = float32(pm)
			}
			if err := s.Client.Configure(conf); err != nil {
				c.Err(err)
				return
			}
			s.refreshPrompt()
			s.printOK(c)
		}),
	},
	{
		Name: "start",
		Help: "",
		Func: MustBeConnected(func(c *ishell.Context) {
			s := ShellFrom(c)
			if err := s.Client.Start(); err != nil {
				c.Err(err)
				return
			}
			s.refreshPrompt()
			s.printOK(c)
		}),
	},
	{
		Name:    "read",
		Aliases: []string{"r"},
		Help:    "",
		Func: MustBeConnected(func(c *ishell.Context) {
			s := ShellFrom(c)
			smp, err := s.Client.ReadLatest()
			if err != nil {
				c.Err(err)
				return
			}
			if smp == nil {
				c.Println("no sample yet")
				return
			}
			if s.OutputJSON {
				out, err := json.Marshal(smp)
				if err != nil {
					c.Err(err)
					return
				}
				c.Println(string(out))
				return
			}
			c.Printf("gen=%d t=%s adc=%v digital=%#x\n",
				smp.Gen, smp.Time.Format("15:04:05.000000"), smp.ADC, smp.Digital)
		}),
	},
	{
		Name:    "write",
		Aliases: []string{"w"},
		Help:    "DUTY0 [DUTY1 DUTY2 DUTY3]",
		Func: MustBeConnected(func(c *ishell.Context) {
			s := ShellFrom(c)
			if len(c.Args) == 0 {
				c.Err(fmt.Errorf("duty cycle expected"))
				return
			}
			var cmd drive.Command
			for i, arg := range c.Args {
				if i >= len(cmd.Duty) {
					break
				}
				d, err := strconv.ParseFloat(arg, 32)
				if err != nil {
					c.Err(err)
					return
				}
				cmd.Duty[i] = float32(d)
			}
			if err := s.Client.WriteCommand(cmd); err != nil {
				c.Err(err)
				return
			}
			s.printOK(c)
		}),
	},
	{
		Name: "stop",
		Help: "",
		Func: MustBeConnected(func(c *ishell.Context) {
			s := ShellFrom(c)
			if err := s.Client.Stop(); err != nil {
				c.Err(err)
				return
			}
			s.refreshPrompt()
			s.printOK(c)
		}),
	},
	{
		Name: "close",
		Help: "",
		Func: MustBeConnected(func(c *ishell.Context) {
			s := ShellFrom(c)
			if err := s.Client.Close(); err != nil {
				c.Err(err)
				return
			}
			s.refreshPrompt()
			s.printOK(c)
		}),
	},
	{
		Name:    "state",
		Aliases: []string{"s"},
		Help:    "",
		Func: MustBeConnected(func(c *ishell.Context) {
			s := ShellFrom(c)
			state, err := s.Client.State()
			if err != nil {
				c.Err(err)
				return
			}
			if s.OutputJSON {
				c.Printf("{\"state\":%q}\n", state.String())
				return
			}
			c.Println(state.String())
		}),
	},
	{
		Name: "config",
		Help: "",
		Func: MustBeConnected(func(c *ishell.Context) {
			s := ShellFrom(c)
			conf, err := s.Client.GetConfig()
			if err != nil {
				c.Err(err)
				return
			}
			if s.OutputJSON {
				out, err := json.Marshal(conf)
				if err != nil {
					c.Err(err)
					return
				}
				c.Println(string(out))
				return
			}
			c.Printf("period=%s pwm-max=%g%%\n", conf.Period, conf.PWMMax)
			for i, ch := range conf.Analog {
				c.Printf("  adc%d pin=%d enabled=%v\n", i, ch.Pin, ch.Enabled)
			}
			for i, ch := range conf.PWM {
				c.Printf("  pwm%d pin=%d enabled=%v\n", i, ch.Pin, ch.Enabled)
			}
		}),
	},
}

// Main is a helper to provide a single call in main.
func Main() {
	flag.Parse()
	New(socketPath).Run(flag.Args()...)
}
