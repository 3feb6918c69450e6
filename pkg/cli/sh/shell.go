package sh

import (
	"encoding/json"
	"flag"
	"fmt"
	"log"
	"strconv"
	"strings"
	"time"

	"github.com/abiosoft/ishell"

	"github.com/robotalks/streambuf/pkg/env"
	"github.com/robotalks/streambuf/pkg/streambuf"
)

// Shell provides ishell backed interactive shell.
type Shell struct {
	Interactive bool
	OutputJSON  bool

	Shell   *ishell.Shell
	Session *Session
}

const (
	shellKey       = "$shell"
	noBufferPrompt = "[none] > "
)

var (
	// flags

	evalOnly   bool
	outputJSON bool

	// commands
	commands = []*ishell.Cmd{
		&CreateCmd,
		&SendCmd,
		&SendFromISRCmd,
		&RecvCmd,
		&RecvFromISRCmd,
		&PeekCmd,
		&StatCmd,
		&ResetCmd,
		&TriggerCmd,
		&DeleteCmd,
	}
)

func init() {
	flag.BoolVar(&evalOnly, "e", evalOnly, "Evaluation only, no interactive shell.")
	flag.BoolVar(&outputJSON, "json", outputJSON, "Print output in JSON.")
}

// New creates a new shell.
func New(session *Session) *Shell {
	s := &Shell{
		Interactive: !evalOnly,
		OutputJSON:  outputJSON,

		Shell:   ishell.New(),
		Session: session,
	}
	s.Shell.Set(shellKey, s)
	s.updatePrompt()
	for _, cmd := range commands {
		s.Shell.AddCmd(cmd)
	}
	return s
}

// ShellFrom gets Shell from ishell context.
func ShellFrom(c *ishell.Context) *Shell {
	return c.Get(shellKey).(*Shell)
}

func (s *Shell) updatePrompt() {
	b := s.Session.Buffer
	if b == nil {
		s.Shell.SetPrompt(noBufferPrompt)
		return
	}
	s.Shell.SetPrompt(fmt.Sprintf("[%s %d/%d] > ", b.Mode(), b.BytesAvailable(), b.Capacity()-1))
}

// Run runs the shell.
func (s *Shell) Run(args ...string) {
	if len(args) > 0 {
		for _, line := range strings.Split(strings.Join(args, " "), ";") {
			if fields := strings.Fields(line); len(fields) > 0 {
				if err := s.Shell.Process(fields...); err != nil {
					log.Fatalln(err)
				}
			}
		}
		return
	}
	if s.Interactive {
		s.Shell.Run()
		return
	}
	log.Fatalln("command expected")
}

// FormatState prints State in a friendly form.
func FormatState(st streambuf.State) string {
	var w strings.Builder
	fmt.Fprintf(&w, "#%d %s capacity=%d trigger=%d used=%d free=%d head=%d tail=%d",
		st.Number, st.Mode, st.Capacity, st.TriggerLevel, st.Used, st.Free, st.Head, st.Tail)
	if st.Static {
		w.WriteString(" static")
	}
	if st.WaitingToSend != "" {
		fmt.Fprintf(&w, " sender=%s", st.WaitingToSend)
	}
	if st.WaitingToReceive != "" {
		fmt.Fprintf(&w, " receiver=%s", st.WaitingToReceive)
	}
	return w.String()
}

// parseArgs parses a leading -t TIMEOUT option.
func parseArgs(args []string) (time.Duration, []string, error) {
	timeout := DefaultTimeout
	if len(args) >= 2 && args[0] == "-t" {
		d, err := time.ParseDuration(args[1])
		if err != nil {
			return 0, nil, err
		}
		timeout, args = d, args[2:]
	}
	return timeout, args, nil
}

func parseMax(args []string) (int, error) {
	if len(args) == 0 {
		return 256, nil
	}
	return strconv.Atoi(args[0])
}

func (s *Shell) printResult(c *ishell.Context, v interface{}, text string) {
	if s.OutputJSON {
		out, err := json.Marshal(v)
		if err != nil {
			c.Err(err)
			return
		}
		c.Println(string(out))
		return
	}
	c.Println(text)
}

// printer adapts ishell output to io.Writer.
type printer struct {
	c *ishell.Context
}

func (p printer) Write(b []byte) (int, error) {
	p.c.Print(string(b))
	return len(b), nil
}

func cmdFunc(fn func(s *Shell, c *ishell.Context) error) func(c *ishell.Context) {
	return func(c *ishell.Context) {
		s := ShellFrom(c)
		if err := fn(s, c); err != nil {
			c.Err(err)
		}
		s.updatePrompt()
	}
}

var (
	// CreateCmd creates the buffer.
	CreateCmd = ishell.Cmd{
		Name: "create",
		Help: "[-mode stream|message] [-size N] [-trigger N] [-prefix N] [-static]",
		Func: cmdFunc(func(s *Shell, c *ishell.Context) error {
			if err := s.Session.Create(printer{c}, c.Args...); err != nil {
				return err
			}
			s.printResult(c, s.Session.Buffer.State(), FormatState(s.Session.Buffer.State()))
			return nil
		}),
	}

	// SendCmd sends text as a task.
	SendCmd = ishell.Cmd{
		Name: "send",
		Help: "[-t TIMEOUT] TEXT...",
		Func: cmdFunc(func(s *Shell, c *ishell.Context) error {
			timeout, args, err := parseArgs(c.Args)
			if err != nil {
				return err
			}
			n, err := s.Session.Send([]byte(strings.Join(args, " ")), timeout)
			if err != nil {
				return err
			}
			s.printResult(c, map[string]int{"sent": n}, fmt.Sprintf("sent %d", n))
			return nil
		}),
	}

	// SendFromISRCmd sends text from an interrupt handler.
	SendFromISRCmd = ishell.Cmd{
		Name: "isr.send",
		Help: "TEXT...",
		Func: cmdFunc(func(s *Shell, c *ishell.Context) error {
			n, woken, err := s.Session.SendFromISR([]byte(strings.Join(c.Args, " ")))
			if err != nil {
				return err
			}
			s.printResult(c, map[string]interface{}{"sent": n, "woken": woken},
				fmt.Sprintf("sent %d woken=%v", n, woken))
			return nil
		}),
	}

	// RecvCmd receives as a task.
	RecvCmd = ishell.Cmd{
		Name:    "recv",
		Aliases: []string{"receive"},
		Help:    "[-t TIMEOUT] [MAX]",
		Func: cmdFunc(func(s *Shell, c *ishell.Context) error {
			timeout, args, err := parseArgs(c.Args)
			if err != nil {
				return err
			}
			max, err := parseMax(args)
			if err != nil {
				return err
			}
			data, err := s.Session.Receive(max, timeout)
			if err != nil {
				return err
			}
			s.printResult(c, map[string]string{"data": string(data)}, fmt.Sprintf("%d %q", len(data), data))
			return nil
		}),
	}

	// RecvFromISRCmd receives from an interrupt handler.
	RecvFromISRCmd = ishell.Cmd{
		Name: "isr.recv",
		Help: "[MAX]",
		Func: cmdFunc(func(s *Shell, c *ishell.Context) error {
			max, err := parseMax(c.Args)
			if err != nil {
				return err
			}
			data, woken, err := s.Session.ReceiveFromISR(max)
			if err != nil {
				return err
			}
			s.printResult(c, map[string]interface{}{"data": string(data), "woken": woken},
				fmt.Sprintf("%d %q woken=%v", len(data), data, woken))
			return nil
		}),
	}

	// PeekCmd shows the length of the next message.
	PeekCmd = ishell.Cmd{
		Name: "peek",
		Help: "",
		Func: cmdFunc(func(s *Shell, c *ishell.Context) error {
			n, err := s.Session.Peek()
			if err != nil {
				return err
			}
			s.printResult(c, map[string]int{"length": n}, strconv.Itoa(n))
			return nil
		}),
	}

	// StatCmd shows the buffer state.
	StatCmd = ishell.Cmd{
		Name:    "stat",
		Aliases: []string{"s"},
		Help:    "",
		Func: cmdFunc(func(s *Shell, c *ishell.Context) error {
			st, err := s.Session.Stat()
			if err != nil {
				return err
			}
			s.printResult(c, st, FormatState(st))
			return nil
		}),
	}

	// ResetCmd resets the buffer.
	ResetCmd = ishell.Cmd{
		Name: "reset",
		Help: "",
		Func: cmdFunc(func(s *Shell, c *ishell.Context) error {
			return s.Session.Reset()
		}),
	}

	// TriggerCmd changes the trigger level.
	TriggerCmd = ishell.Cmd{
		Name: "trigger",
		Help: "LEVEL",
		Func: cmdFunc(func(s *Shell, c *ishell.Context) error {
			if len(c.Args) != 1 {
				return fmt.Errorf("trigger level expected")
			}
			level, err := strconv.Atoi(c.Args[0])
			if err != nil {
				return err
			}
			return s.Session.SetTriggerLevel(level)
		}),
	}

	// DeleteCmd deletes the buffer.
	DeleteCmd = ishell.Cmd{
		Name: "delete",
		Help: "",
		Func: cmdFunc(func(s *Shell, c *ishell.Context) error {
			return s.Session.Delete()
		}),
	}
)

// Main is a helper to provide a single call in main.
func Main() {
	flag.Parse()
	session, err := NewSession(env.NewConfig())
	if err != nil {
		log.Fatalln(err)
	}
	New(session).Run(flag.Args()...)
}
