package sh

import (
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"log"
	"strconv"
	"strings"

	"github.com/abiosoft/ishell"

	"github.com/robotalks/softuart/pkg/env"
)

// Shell provides ishell backed interactive shell over a Session.
type Shell struct {
	Interactive bool
	OutputJSON  bool

	Shell   *ishell.Shell
	Config  *env.Config
	Session *Session
}

const shellKey = "$shell"

var (
	// flags

	evalOnly   bool
	outputJSON bool

	// commands
	commands = []*ishell.Cmd{
		&SendCmd,
		&RecvCmd,
		&PendingCmd,
		&StatusCmd,
		&StatsCmd,
		&RxCmd,
		&ClearOverflowCmd,
		&RunCmd,
		&FlushCmd,
	}

	errArgs = errors.New("invalid arguments")
)

// flushTicks bounds the flush command.
const flushTicks = 1 << 16

func init() {
	flag.BoolVar(&evalOnly, "e", evalOnly, "Evaluation only, no interactive shell.")
	flag.BoolVar(&outputJSON, "json", outputJSON, "Print output in JSON.")
}

// New creates a new shell with a link set up from conf.
func New(conf *env.Config) (*Shell, error) {
	session, err := NewSession(conf.LinkConfig())
	if err != nil {
		return nil, err
	}
	s := &Shell{
		Interactive: !evalOnly,
		OutputJSON:  outputJSON,

		Shell:   ishell.New(),
		Config:  conf,
		Session: session,
	}
	s.Shell.Set(shellKey, s)
	s.Shell.SetPrompt(fmt.Sprintf("%s@%s > ", conf.ID, conf.Speed))
	for _, cmd := range commands {
		s.Shell.AddCmd(cmd)
	}
	return s, nil
}

// ShellFrom gets Shell from ishell context.
func ShellFrom(c *ishell.Context) *Shell {
	return c.Get(shellKey).(*Shell)
}

// Print prints v as JSON or with its default format.
func Print(c *ishell.Context, v interface{}) {
	if ShellFrom(c).OutputJSON {
		out, err := json.Marshal(v)
		if err != nil {
			c.Err(err)
			return
		}
		c.Println(string(out))
		return
	}
	c.Printf("%+v\n", v)
}

// Run runs the shell.
func (s *Shell) Run(args ...string) {
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

var (
	// SendCmd queues text for transmission.
	SendCmd = ishell.Cmd{
		Name:    "send",
		Aliases: []string{"s"},
		Help:    "TEXT",
		Func: func(c *ishell.Context) {
			text := strings.Join(c.Args, " ")
			n := ShellFrom(c).Session.Send([]byte(text))
			if n < len(text) {
				c.Printf("queued %d of %d bytes, transmit buffer full\n", n, len(text))
				return
			}
			c.Printf("queued %d bytes\n", n)
		},
	}

	// RecvCmd prints the received bytes.
	RecvCmd = ishell.Cmd{
		Name:    "recv",
		Aliases: []string{"r"},
		Help:    "",
		Func: func(c *ishell.Context) {
			data := ShellFrom(c).Session.Receive()
			if ShellFrom(c).OutputJSON {
				Print(c, data)
				return
			}
			c.Printf("%q\n", data)
		},
	}

	// PendingCmd prints the pending byte counts.
	PendingCmd = ishell.Cmd{
		Name: "pending",
		Help: "",
		Func: func(c *ishell.Context) {
			st := ShellFrom(c).Session.Link.Status()
			Print(c, map[string]int{"rx": st.RxPending, "tx": st.TxPending})
		},
	}

	// StatusCmd prints the link status.
	StatusCmd = ishell.Cmd{
		Name:    "status",
		Aliases: []string{"st"},
		Help:    "",
		Func: func(c *ishell.Context) {
			Print(c, ShellFrom(c).Session.Link.Status())
		},
	}

	// StatsCmd prints the link counters.
	StatsCmd = ishell.Cmd{
		Name: "stats",
		Help: "",
		Func: func(c *ishell.Context) {
			Print(c, ShellFrom(c).Session.Link.Stats())
		},
	}

	// RxCmd enables or disables receiving.
	RxCmd = ishell.Cmd{
		Name: "rx",
		Help: "on|off",
		Func: func(c *ishell.Context) {
			link := ShellFrom(c).Session.Link
			if len(c.Args) != 1 {
				c.Err(errArgs)
				return
			}
			switch c.Args[0] {
			case "on":
				link.EnableReceive()
			case "off":
				link.DisableReceive()
			default:
				c.Err(errArgs)
			}
		},
	}

	// ClearOverflowCmd clears the receive overflow condition.
	ClearOverflowCmd = ishell.Cmd{
		Name: "clear-overflow",
		Help: "",
		Func: func(c *ishell.Context) {
			ShellFrom(c).Session.Link.ClearOverflow()
		},
	}

	// RunCmd advances the board.
	RunCmd = ishell.Cmd{
		Name: "run",
		Help: "TICKS",
		Func: func(c *ishell.Context) {
			if len(c.Args) != 1 {
				c.Err(errArgs)
				return
			}
			ticks, err := strconv.Atoi(c.Args[0])
			if err != nil || ticks < 0 {
				c.Err(fmt.Errorf("invalid TICKS %q", c.Args[0]))
				return
			}
			s := ShellFrom(c).Session
			s.Advance(ticks)
			c.Printf("now %d counts\n", s.Board.Now())
		},
	}

	// FlushCmd advances until everything queued has been transmitted.
	FlushCmd = ishell.Cmd{
		Name: "flush",
		Help: "",
		Func: func(c *ishell.Context) {
			ticks, err := ShellFrom(c).Session.Flush(flushTicks)
			if err != nil {
				c.Err(err)
				return
			}
			c.Printf("idle after %d ticks\n", ticks)
		},
	}
)

// Main is a helper to provide a single call in main.
func Main() {
	flag.Parse()
	conf := env.Default()
	if err := conf.Load(flag.CommandLine); err != nil {
		log.Fatalln(err)
	}
	s, err := New(conf)
	if err != nil {
		log.Fatalln(err)
	}
	s.Run(flag.Args()...)
}
